package logger

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"
)

// CollectorConfig controls error aggregation.
type CollectorConfig struct {
	Retention  time.Duration // how long a silent group survives (e.g., 10m)
	MaxEntries int           // max distinct error groups held (e.g., 100)
}

// AggregatedError is one deduplicated error group.
type AggregatedError struct {
	Message   string                 `json:"message"`
	Fields    map[string]interface{} `json:"fields"`
	FirstSeen time.Time              `json:"first_seen"`
	LastSeen  time.Time              `json:"last_seen"`
	Count     int                    `json:"count"`
}

// ErrorCollector aggregates repeated error events in memory so the ops
// surface can answer "what has been failing lately" without a log backend.
type ErrorCollector struct {
	config *CollectorConfig
	groups map[string]*AggregatedError
	mu     sync.RWMutex
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewErrorCollector(config *CollectorConfig) *ErrorCollector {
	if config == nil {
		config = &CollectorConfig{}
	}
	if config.Retention <= 0 {
		config.Retention = 10 * time.Minute
	}
	if config.MaxEntries <= 0 {
		config.MaxEntries = 100
	}

	ctx, cancel := context.WithCancel(context.Background())

	collector := &ErrorCollector{
		config: config,
		groups: make(map[string]*AggregatedError),
		ctx:    ctx,
		cancel: cancel,
	}

	collector.wg.Add(1)
	go collector.sweepLoop()

	return collector
}

// Record folds one error event into its group.
func (c *ErrorCollector) Record(message string, fields []Field) {
	now := time.Now()

	fieldMap := make(map[string]interface{}, len(fields))
	for _, field := range fields {
		key, value := field.GetKeyValue()
		fieldMap[key] = value
	}
	key := c.groupKey(message, fieldMap)

	c.mu.Lock()
	defer c.mu.Unlock()

	if entry, exists := c.groups[key]; exists {
		entry.Count++
		entry.LastSeen = now
		return
	}

	if len(c.groups) >= c.config.MaxEntries {
		c.evictOldestLocked()
	}

	c.groups[key] = &AggregatedError{
		Message:   message,
		Fields:    fieldMap,
		FirstSeen: now,
		LastSeen:  now,
		Count:     1,
	}
}

// Snapshot returns the current groups, most recent first.
func (c *ErrorCollector) Snapshot() []AggregatedError {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]AggregatedError, 0, len(c.groups))
	for _, entry := range c.groups {
		out = append(out, *entry)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastSeen.After(out[j].LastSeen) })
	return out
}

func (c *ErrorCollector) groupKey(message string, fields map[string]interface{}) string {
	data := struct {
		Message string                 `json:"message"`
		Fields  map[string]interface{} `json:"fields"`
	}{
		Message: message,
		Fields:  fields,
	}

	raw, _ := json.Marshal(data)
	sum := sha256.Sum256(raw)
	return fmt.Sprintf("%x", sum)
}

func (c *ErrorCollector) evictOldestLocked() {
	var oldestKey string
	var oldest time.Time
	for key, entry := range c.groups {
		if oldestKey == "" || entry.LastSeen.Before(oldest) {
			oldestKey = key
			oldest = entry.LastSeen
		}
	}
	if oldestKey != "" {
		delete(c.groups, oldestKey)
	}
}

func (c *ErrorCollector) sweepLoop() {
	defer c.wg.Done()

	ticker := time.NewTicker(c.config.Retention / 2)
	defer ticker.Stop()

	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			cutoff := time.Now().Add(-c.config.Retention)
			c.mu.Lock()
			for key, entry := range c.groups {
				if entry.LastSeen.Before(cutoff) {
					delete(c.groups, key)
				}
			}
			c.mu.Unlock()
		}
	}
}

func (c *ErrorCollector) Close() {
	c.cancel()
	c.wg.Wait()
}
