package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrCacheMiss is returned when a key does not exist. Callers treat it as
// an expected outcome, not a failure.
var ErrCacheMiss = errors.New("cache: key not found")

// Service is the cache surface the rest of the service programs against,
// implemented by the memory, Redis, and layered caches.
type Service interface {
	// Single-key operations.
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error
	Get(ctx context.Context, key string, dest interface{}) error
	Exists(ctx context.Context, keys ...string) (bool, error)
	Expire(ctx context.Context, key string, expiration time.Duration) (bool, error)
	Increment(ctx context.Context, key string) (int64, error)

	// Bulk operations.
	Delete(ctx context.Context, keys ...string) error
	DeleteByPattern(ctx context.Context, pattern string) error
	MSet(ctx context.Context, values map[string]interface{}, expiration time.Duration) error
	MGet(ctx context.Context, keys ...string) (map[string]string, error)

	// Cooperative locks.
	TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, key string) error
}

// GetTyped reads one key into a value of type T.
func GetTyped[T any](ctx context.Context, c Service, key string) (T, error) {
	var obj T
	err := c.Get(ctx, key, &obj)
	return obj, err
}

// MGetTyped reads several keys into a typed map. Keys that are missing or
// hold values that fail to decode are left out.
func MGetTyped[T any](ctx context.Context, c Service, keys ...string) (map[string]T, error) {
	if len(keys) == 0 {
		return make(map[string]T), nil
	}

	raw, err := c.MGet(ctx, keys...)
	if err != nil {
		return nil, err
	}

	typed := make(map[string]T, len(raw))
	for key, val := range raw {
		var obj T
		if json.Unmarshal([]byte(val), &obj) == nil {
			typed[key] = obj
		}
	}
	return typed, nil
}
