package synthetic

import (
	"sync"
	"time"
)

type anchor struct {
	price float64
	at    time.Time
	exp   time.Time
}

// ContinuityCache remembers the last emitted price per symbol so that
// consecutive synthetic quotes walk from the previous value instead of
// jumping back to the deterministic baseline. Entries expire after ttl;
// an expired anchor means the outage gap was long enough that re-anchoring
// on the baseline is acceptable.
type ContinuityCache struct {
	mu  sync.RWMutex
	m   map[string]anchor
	ttl time.Duration
}

// NewContinuityCache creates a continuity cache. ttl <= 0 disables expiry.
func NewContinuityCache(ttl time.Duration) *ContinuityCache {
	return &ContinuityCache{m: make(map[string]anchor), ttl: ttl}
}

// Last returns the remembered price and its timestamp for symbol.
func (c *ContinuityCache) Last(symbol string) (float64, time.Time, bool) {
	c.mu.RLock()
	a, ok := c.m[symbol]
	c.mu.RUnlock()
	if !ok {
		return 0, time.Time{}, false
	}
	if !a.exp.IsZero() && time.Now().After(a.exp) {
		c.mu.Lock()
		delete(c.m, symbol)
		c.mu.Unlock()
		return 0, time.Time{}, false
	}
	return a.price, a.at, true
}

// Remember stores the latest price for symbol.
func (c *ContinuityCache) Remember(symbol string, price float64, at time.Time) {
	var exp time.Time
	if c.ttl > 0 {
		exp = time.Now().Add(c.ttl)
	}
	c.mu.Lock()
	c.m[symbol] = anchor{price: price, at: at, exp: exp}
	c.mu.Unlock()
}

// Forget drops the anchor for symbol. Real quotes call this indirectly by
// overwriting via Remember, so Forget mostly serves tests.
func (c *ContinuityCache) Forget(symbol string) {
	c.mu.Lock()
	delete(c.m, symbol)
	c.mu.Unlock()
}

// Len returns the number of live anchors.
func (c *ContinuityCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}
