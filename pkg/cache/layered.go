package cache

import (
	"context"
	"time"
)

// LayeredCache fronts Redis with an in-process memory layer. Reads hit
// memory first; writes go through to Redis so other instances see them.
type LayeredCache struct {
	local  *MemoryCache
	remote *RedisCache
}

// NewLayeredCache creates a layered cache over an existing Redis cache.
func NewLayeredCache(remote *RedisCache, opts ...LayeredOption) *LayeredCache {
	cfg := &LayeredConfig{
		MemoryMaxSize: 1000,
	}
	for _, opt := range opts {
		opt(cfg)
	}
	return &LayeredCache{
		local:  NewMemoryCache(WithMemoryMaxSize(cfg.MemoryMaxSize)),
		remote: remote,
	}
}

// Set writes through: Redis first so a failed write never leaves memory
// ahead of the shared store.
func (c *LayeredCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	if err := c.remote.Set(ctx, key, value, expiration); err != nil {
		return err
	}
	_ = c.local.Set(ctx, key, value, expiration)
	return nil
}

// Get reads memory first and falls back to Redis, backfilling memory on a
// remote hit.
func (c *LayeredCache) Get(ctx context.Context, key string, dest interface{}) error {
	if err := c.local.Get(ctx, key, dest); err == nil {
		return nil
	}

	var raw []byte
	if err := c.remote.Get(ctx, key, &raw); err != nil {
		return err
	}
	_ = c.local.Set(ctx, key, raw, 0)
	return unmarshalValue(raw, dest)
}

func (c *LayeredCache) Delete(ctx context.Context, keys ...string) error {
	_ = c.local.Delete(ctx, keys...)
	return c.remote.Delete(ctx, keys...)
}

func (c *LayeredCache) DeleteByPattern(ctx context.Context, pattern string) error {
	_ = c.local.DeleteByPattern(ctx, pattern)
	return c.remote.DeleteByPattern(ctx, pattern)
}

// The remaining operations need cross-instance agreement, so they skip the
// memory layer entirely.

func (c *LayeredCache) Exists(ctx context.Context, keys ...string) (bool, error) {
	return c.remote.Exists(ctx, keys...)
}

func (c *LayeredCache) Increment(ctx context.Context, key string) (int64, error) {
	return c.remote.Increment(ctx, key)
}

func (c *LayeredCache) Expire(ctx context.Context, key string, expiration time.Duration) (bool, error) {
	return c.remote.Expire(ctx, key, expiration)
}

func (c *LayeredCache) MSet(ctx context.Context, values map[string]interface{}, expiration time.Duration) error {
	return c.remote.MSet(ctx, values, expiration)
}

func (c *LayeredCache) MGet(ctx context.Context, keys ...string) (map[string]string, error) {
	return c.remote.MGet(ctx, keys...)
}

func (c *LayeredCache) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.remote.TryLock(ctx, key, ttl)
}

func (c *LayeredCache) Unlock(ctx context.Context, key string) error {
	return c.remote.Unlock(ctx, key)
}

// Close closes both layers.
func (c *LayeredCache) Close() error {
	_ = c.local.Close()
	return c.remote.Close()
}
