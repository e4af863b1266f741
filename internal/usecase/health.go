package usecase

import (
	"context"
	"time"

	"MarketPulse/internal/service/ratelimit"
	"MarketPulse/pkg/cache"
	"MarketPulse/pkg/logger"
)

// HealthStatus is the detailed health report served by the ops endpoints.
type HealthStatus struct {
	Status          string                              `json:"status"`
	Uptime          string                              `json:"uptime"`
	LastLatency     string                              `json:"last_latency"`
	CacheReachable  bool                                `json:"cache_reachable"`
	StreamConnected bool                                `json:"stream_connected"`
	Providers       map[string]ratelimit.ProviderStatus `json:"providers,omitempty"`
	RecentErrors    []logger.AggregatedError            `json:"recent_errors,omitempty"`
}

// PerformanceReport summarizes the collector throughput counters.
type PerformanceReport struct {
	Requests        int64   `json:"requests"`
	CacheHitRate    float64 `json:"cache_hit_rate"`
	AvgResponseTime string  `json:"avg_response_time"`
	ErrorRate       float64 `json:"error_rate"`
}

// Health answers liveness and performance questions for the ops surface.
// The warmer may be nil when streaming is disabled.
type Health struct {
	collector *Collector
	limiter   *ratelimit.Limiter
	cache     cache.Service
	warmer    *StreamWarmer
	log       *logger.Logger
	started   time.Time
}

// NewHealth creates a health reporter.
func NewHealth(collector *Collector, limiter *ratelimit.Limiter, c cache.Service, warmer *StreamWarmer, log *logger.Logger) *Health {
	return &Health{
		collector: collector,
		limiter:   limiter,
		cache:     c,
		warmer:    warmer,
		log:       log,
		started:   time.Now(),
	}
}

// Check reports the current service health. Degraded means the cache is
// unreachable or every configured provider sits in a backoff window.
func (h *Health) Check(ctx context.Context) *HealthStatus {
	st := &HealthStatus{
		Status:         "healthy",
		Uptime:         time.Since(h.started).Round(time.Second).String(),
		LastLatency:    h.collector.Stats().LastLatency.String(),
		CacheReachable: h.probeCache(ctx),
		Providers:      h.limiter.Snapshot(),
	}
	if h.warmer != nil {
		st.StreamConnected = h.warmer.IsConnected()
	}
	if coll := h.log.Collector(); coll != nil {
		st.RecentErrors = coll.Snapshot()
	}

	if !st.CacheReachable || h.allProvidersBlocked() {
		st.Status = "degraded"
	}
	return st
}

// Performance summarizes collection effectiveness since process start.
func (h *Health) Performance() *PerformanceReport {
	s := h.collector.Stats()

	rep := &PerformanceReport{
		Requests:        s.Requests,
		AvgResponseTime: s.AvgLatency.String(),
	}
	if lookups := s.CacheHits + s.CacheMisses; lookups > 0 {
		rep.CacheHitRate = float64(s.CacheHits) / float64(lookups)
	}
	if s.Requests > 0 {
		rep.ErrorRate = float64(s.Degraded) / float64(s.Requests)
	}
	return rep
}

// probeCache round-trips a sentinel value through the cache.
func (h *Health) probeCache(ctx context.Context) bool {
	key := cache.GenerateKey("health", "probe")
	if err := h.cache.Set(ctx, key, time.Now().Unix(), 10*time.Second); err != nil {
		return false
	}
	var v int64
	return h.cache.Get(ctx, key, &v) == nil
}

// allProvidersBlocked reports whether every configured source is inside a
// backoff window. An empty source chain never counts as blocked.
func (h *Health) allProvidersBlocked() bool {
	names := h.collector.SourceNames()
	if len(names) == 0 {
		return false
	}
	for _, name := range names {
		if !h.limiter.InBackoff(name) {
			return false
		}
	}
	return true
}
