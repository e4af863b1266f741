package cache

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"
)

// defaultTTL bounds entries stored with a non-positive expiration so the
// janitor can still reclaim them.
const defaultTTL = 10 * time.Minute

type memoryEntry struct {
	data     []byte
	expireAt time.Time
}

func (e *memoryEntry) expired() bool {
	return time.Now().After(e.expireAt)
}

// MemoryCache implements Service in process memory with LRU eviction.
// Values are kept in the same marshaled form Redis would hold so Get
// behaves identically across layers.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*memoryEntry
	touched map[string]time.Time
	maxSize int
	janitor *time.Ticker
}

// NewMemoryCache creates an in-memory cache and starts its janitor.
func NewMemoryCache(opts ...MemoryOption) *MemoryCache {
	cfg := &MemoryConfig{
		MaxSize:         1000,
		CleanupInterval: 5 * time.Minute,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	m := &MemoryCache{
		entries: make(map[string]*memoryEntry),
		touched: make(map[string]time.Time),
		maxSize: cfg.MaxSize,
		janitor: time.NewTicker(cfg.CleanupInterval),
	}
	go m.sweep()
	return m
}

func (m *MemoryCache) Set(_ context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := marshalValue(value)
	if err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.entries[key]; !ok && len(m.entries) >= m.maxSize {
		m.evictOldest()
	}

	if expiration <= 0 {
		expiration = defaultTTL
	}
	m.entries[key] = &memoryEntry{data: data, expireAt: time.Now().Add(expiration)}
	m.touched[key] = time.Now()
	return nil
}

func (m *MemoryCache) Get(_ context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok || e.expired() {
		if ok {
			delete(m.entries, key)
			delete(m.touched, key)
		}
		return ErrCacheMiss
	}

	m.touched[key] = time.Now()
	return unmarshalValue(e.data, dest)
}

func (m *MemoryCache) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, key := range keys {
		delete(m.entries, key)
		delete(m.touched, key)
	}
	return nil
}

// DeleteByPattern drops everything. Pattern matching over a flat map is not
// worth the cost for an L1 that refills itself.
func (m *MemoryCache) DeleteByPattern(_ context.Context, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.entries = make(map[string]*memoryEntry)
	m.touched = make(map[string]time.Time)
	return nil
}

func (m *MemoryCache) Exists(_ context.Context, keys ...string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, key := range keys {
		if e, ok := m.entries[key]; ok && !e.expired() {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryCache) Increment(_ context.Context, key string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.entries[key]
	if !ok || e.expired() {
		m.entries[key] = &memoryEntry{data: []byte("1"), expireAt: time.Now().Add(defaultTTL)}
		m.touched[key] = time.Now()
		return 1, nil
	}

	val, err := strconv.ParseInt(string(e.data), 10, 64)
	if err != nil {
		return 0, err
	}
	val++
	e.data = []byte(strconv.FormatInt(val, 10))
	m.touched[key] = time.Now()
	return val, nil
}

func (m *MemoryCache) Expire(_ context.Context, key string, expiration time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[key]; ok {
		e.expireAt = time.Now().Add(expiration)
		return true, nil
	}
	return false, nil
}

func (m *MemoryCache) MSet(ctx context.Context, values map[string]interface{}, expiration time.Duration) error {
	for key, value := range values {
		if err := m.Set(ctx, key, value, expiration); err != nil {
			return err
		}
	}
	return nil
}

func (m *MemoryCache) MGet(_ context.Context, keys ...string) (map[string]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	found := make(map[string]string)
	for _, key := range keys {
		if e, ok := m.entries[key]; ok && !e.expired() {
			found[key] = string(e.data)
		}
	}
	return found, nil
}

func (m *MemoryCache) TryLock(_ context.Context, key string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e, ok := m.entries[key]; ok && !e.expired() {
		return false, nil
	}
	m.entries[key] = &memoryEntry{data: []byte("locked"), expireAt: time.Now().Add(ttl)}
	m.touched[key] = time.Now()
	return true, nil
}

func (m *MemoryCache) Unlock(ctx context.Context, key string) error {
	return m.Delete(ctx, key)
}

// evictOldest removes the least recently touched entry. Called with the
// write lock held.
func (m *MemoryCache) evictOldest() {
	if len(m.entries) == 0 {
		return
	}

	var oldestKey string
	oldestAt := time.Now()
	for key, at := range m.touched {
		if at.Before(oldestAt) {
			oldestAt = at
			oldestKey = key
		}
	}
	if oldestKey != "" {
		delete(m.entries, oldestKey)
		delete(m.touched, oldestKey)
	}
}

func (m *MemoryCache) sweep() {
	for range m.janitor.C {
		m.mu.Lock()
		now := time.Now()
		for key, e := range m.entries {
			if now.After(e.expireAt) {
				delete(m.entries, key)
				delete(m.touched, key)
			}
		}
		m.mu.Unlock()
	}
}

// Close stops the janitor.
func (m *MemoryCache) Close() error {
	if m.janitor != nil {
		m.janitor.Stop()
	}
	return nil
}

func marshalValue(value interface{}) ([]byte, error) {
	switch v := value.(type) {
	case []byte:
		return v, nil
	case string:
		return []byte(v), nil
	default:
		return json.Marshal(value)
	}
}

func unmarshalValue(data []byte, dest interface{}) error {
	switch d := dest.(type) {
	case *[]byte:
		*d = append([]byte(nil), data...)
		return nil
	case *string:
		*d = string(data)
		return nil
	default:
		return json.Unmarshal(data, dest)
	}
}
