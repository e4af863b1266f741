package usecase

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"MarketPulse/internal/domain/models"
	"MarketPulse/pkg/cache"
)

// downCache fails every operation, simulating an unreachable backend.
type downCache struct{}

var errCacheDown = errors.New("cache backend unreachable")

func (downCache) Set(context.Context, string, interface{}, time.Duration) error { return errCacheDown }
func (downCache) Get(context.Context, string, interface{}) error                { return errCacheDown }
func (downCache) Delete(context.Context, ...string) error                       { return errCacheDown }
func (downCache) DeleteByPattern(context.Context, string) error                 { return errCacheDown }
func (downCache) Exists(context.Context, ...string) (bool, error)               { return false, errCacheDown }
func (downCache) Increment(context.Context, string) (int64, error)              { return 0, errCacheDown }
func (downCache) Expire(context.Context, string, time.Duration) (bool, error)   { return false, errCacheDown }
func (downCache) MSet(context.Context, map[string]interface{}, time.Duration) error {
	return errCacheDown
}
func (downCache) MGet(context.Context, ...string) (map[string]string, error) {
	return nil, errCacheDown
}
func (downCache) TryLock(context.Context, string, time.Duration) (bool, error) {
	return false, errCacheDown
}
func (downCache) Unlock(context.Context, string) error { return errCacheDown }

var _ cache.Service = downCache{}

func TestHealthCheckHealthy(t *testing.T) {
	env := newCollectorEnv(t, testConfig(), &fakeSource{name: "one", tier: 0.95})
	h := NewHealth(env.collector, env.limiter, env.cache, nil, env.log)

	st := h.Check(context.Background())
	if st.Status != "healthy" {
		t.Fatalf("expected healthy, got %q", st.Status)
	}
	if !st.CacheReachable {
		t.Fatal("memory cache should be reachable")
	}
	if st.StreamConnected {
		t.Fatal("no warmer configured, stream must report disconnected")
	}
}

func TestHealthCheckDegradedWhenCacheDown(t *testing.T) {
	env := newCollectorEnv(t, testConfig(), &fakeSource{name: "one", tier: 0.95})
	h := NewHealth(env.collector, env.limiter, downCache{}, nil, env.log)

	st := h.Check(context.Background())
	if st.Status != "degraded" {
		t.Fatalf("unreachable cache should degrade health, got %q", st.Status)
	}
	if st.CacheReachable {
		t.Fatal("cache probe should have failed")
	}
}

func TestHealthCheckDegradedWhenAllProvidersBlocked(t *testing.T) {
	env := newCollectorEnv(t, testConfig(),
		&fakeSource{name: "one", tier: 0.95},
		&fakeSource{name: "two", tier: 0.85},
	)
	env.limiter.RecordThrottle("one", time.Hour)
	env.limiter.RecordThrottle("two", time.Hour)
	h := NewHealth(env.collector, env.limiter, env.cache, nil, env.log)

	st := h.Check(context.Background())
	if st.Status != "degraded" {
		t.Fatalf("all providers in backoff should degrade health, got %q", st.Status)
	}
	if !st.Providers["one"].InBackoff || !st.Providers["two"].InBackoff {
		t.Fatalf("provider snapshot should show backoff: %+v", st.Providers)
	}
}

func TestHealthCheckHealthyWhileOneProviderRemains(t *testing.T) {
	env := newCollectorEnv(t, testConfig(),
		&fakeSource{name: "one", tier: 0.95},
		&fakeSource{name: "two", tier: 0.85},
	)
	env.limiter.RecordThrottle("one", time.Hour)
	h := NewHealth(env.collector, env.limiter, env.cache, nil, env.log)

	if st := h.Check(context.Background()); st.Status != "healthy" {
		t.Fatalf("one live provider should keep the service healthy, got %q", st.Status)
	}
}

func TestHealthReportsCollectedErrors(t *testing.T) {
	env := newCollectorEnv(t, testConfig(), &fakeSource{name: "one", tier: 0.95})
	env.log.AttachCollector(nil)
	env.log.Error("source fetch failed")
	h := NewHealth(env.collector, env.limiter, env.cache, nil, env.log)

	st := h.Check(context.Background())
	if len(st.RecentErrors) != 1 || st.RecentErrors[0].Message != "source fetch failed" {
		t.Fatalf("recent errors missing from health: %+v", st.RecentErrors)
	}
}

func TestPerformanceRates(t *testing.T) {
	cfg := testConfig()
	cfg.Collector.FallbackToMock = false
	src := &fakeSource{name: "one", tier: 0.95}
	env := newCollectorEnv(t, cfg, src)
	ctx := context.Background()

	env.collector.GetQuote(ctx, "AAPL") // miss then live fetch
	env.collector.GetQuote(ctx, "AAPL") // fresh-bucket hit
	src.fail = failAll(models.NewProviderError("one", models.ErrUnavailable, errors.New("down")))
	env.collector.GetQuote(ctx, "MSFT") // miss, no stale entry, zero sentinel

	h := NewHealth(env.collector, env.limiter, env.cache, nil, env.log)
	rep := h.Performance()

	if rep.Requests != 3 {
		t.Fatalf("expected 3 requests, got %d", rep.Requests)
	}
	if math.Abs(rep.CacheHitRate-1.0/3.0) > 1e-9 {
		t.Fatalf("cache hit rate wrong: %v", rep.CacheHitRate)
	}
	if math.Abs(rep.ErrorRate-1.0/3.0) > 1e-9 {
		t.Fatalf("error rate wrong: %v", rep.ErrorRate)
	}
}
