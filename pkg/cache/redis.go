package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisCache implements Service on a Redis connection. Every key is
// namespaced under the configured prefix.
type RedisCache struct {
	rdb    *redis.Client
	prefix string
}

func defaultRedisConfig() *RedisConfig {
	return &RedisConfig{
		Addr:         "localhost:6379",
		Prefix:       "marketpulse",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 5,
		PoolTimeout:  30 * time.Second,
	}
}

// NewRedisCache connects to Redis and verifies the connection with a ping,
// so a bad address fails at startup rather than on first use.
func NewRedisCache(opts ...RedisOption) (*RedisCache, error) {
	cfg := defaultRedisConfig()
	for _, opt := range opts {
		opt(cfg)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		MinIdleConns: cfg.MinIdleConns,
		PoolSize:     cfg.PoolSize,
		PoolTimeout:  cfg.PoolTimeout,
	})
	if err := pingRedis(rdb); err != nil {
		return nil, err
	}

	return &RedisCache{rdb: rdb, prefix: cfg.Prefix}, nil
}

func pingRedis(rdb *redis.Client) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Client exposes the underlying connection for components that share it,
// like the job queue.
func (c *RedisCache) Client() *redis.Client {
	return c.rdb
}

// Close closes the connection pool.
func (c *RedisCache) Close() error {
	return c.rdb.Close()
}

func (c *RedisCache) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) error {
	data, err := marshalValue(value)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, c.qualify(key), data, expiration).Err()
}

func (c *RedisCache) Get(ctx context.Context, key string, dest interface{}) error {
	data, err := c.rdb.Get(ctx, c.qualify(key)).Bytes()
	if err != nil {
		return redisErr(err)
	}
	return unmarshalValue(data, dest)
}

// redisErr maps redis.Nil onto ErrCacheMiss and passes everything else
// through.
func redisErr(err error) error {
	if errors.Is(err, redis.Nil) {
		return ErrCacheMiss
	}
	return err
}

func (c *RedisCache) Delete(ctx context.Context, keys ...string) error {
	return c.rdb.Unlink(ctx, c.qualifyAll(keys...)...).Err()
}

// DeleteByPattern walks matching keys with SCAN so large keyspaces never
// block the server the way KEYS would.
func (c *RedisCache) DeleteByPattern(ctx context.Context, pattern string) error {
	iter := c.rdb.Scan(ctx, 0, c.qualify(pattern), 100).Iterator()

	batch := make([]string, 0, 100)
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := c.rdb.Unlink(ctx, batch...).Err(); err != nil {
				return err
			}
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return err
	}
	if len(batch) == 0 {
		return nil
	}
	return c.rdb.Unlink(ctx, batch...).Err()
}

func (c *RedisCache) Exists(ctx context.Context, keys ...string) (bool, error) {
	n, err := c.rdb.Exists(ctx, c.qualifyAll(keys...)...).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *RedisCache) Increment(ctx context.Context, key string) (int64, error) {
	return c.rdb.Incr(ctx, c.qualify(key)).Result()
}

func (c *RedisCache) Expire(ctx context.Context, key string, expiration time.Duration) (bool, error) {
	return c.rdb.Expire(ctx, c.qualify(key), expiration).Result()
}

func (c *RedisCache) MSet(ctx context.Context, values map[string]interface{}, expiration time.Duration) error {
	if len(values) == 0 {
		return nil
	}

	pipe := c.rdb.TxPipeline()
	for key, val := range values {
		data, err := marshalValue(val)
		if err != nil {
			return err
		}
		pipe.Set(ctx, c.qualify(key), data, expiration)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// MGet returns the found subset keyed by the caller's unqualified keys.
// Missing keys are simply absent.
func (c *RedisCache) MGet(ctx context.Context, keys ...string) (map[string]string, error) {
	if len(keys) == 0 {
		return make(map[string]string), nil
	}

	vals, err := c.rdb.MGet(ctx, c.qualifyAll(keys...)...).Result()
	if err != nil {
		return nil, err
	}

	found := make(map[string]string, len(keys))
	for i, key := range keys {
		if s, ok := vals[i].(string); ok {
			found[key] = s
		}
	}
	return found, nil
}

func (c *RedisCache) TryLock(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, c.qualify(key), "locked", ttl).Result()
}

func (c *RedisCache) Unlock(ctx context.Context, key string) error {
	if err := c.rdb.Del(ctx, c.qualify(key)).Err(); err != nil {
		return redisErr(err)
	}
	return nil
}

func (c *RedisCache) qualify(key string) string {
	return c.prefix + ":" + key
}

func (c *RedisCache) qualifyAll(keys ...string) []string {
	out := make([]string, len(keys))
	for i, key := range keys {
		out[i] = c.qualify(key)
	}
	return out
}
