package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"MarketPulse/internal/domain/models"
	drepo "MarketPulse/internal/domain/repository"
	"MarketPulse/internal/service/ratelimit"
	"MarketPulse/internal/service/synthetic"
	"MarketPulse/pkg/cache"
	"MarketPulse/pkg/config"
	"MarketPulse/pkg/logger"
)

// staleConfidenceFactor degrades the confidence of a last-known quote served
// after every live source has failed.
const staleConfidenceFactor = 0.7

// Collector resolves quotes through the fallback chain: fresh cache bucket,
// live sources in tier order, last-known cache, synthetic generator, zero
// sentinel. GetQuote never returns an error; the worst case is the explicit
// zero-confidence sentinel.
type Collector struct {
	sources []drepo.QuoteSource
	limiter *ratelimit.Limiter
	cache   cache.Service
	gen     *synthetic.Generator
	metrics drepo.Metrics
	log     *logger.Logger

	quoteTTL       time.Duration
	seriesTTL      time.Duration
	lastKnownTTL   time.Duration
	sourceDelay    time.Duration
	symbolDelay    time.Duration
	maxConcurrent  int
	useMockData    bool
	fallbackToMock bool

	requests    atomic.Int64
	degraded    atomic.Int64
	cacheHits   atomic.Int64
	cacheMisses atomic.Int64
	latencySum  atomic.Int64
	lastLatency atomic.Int64
}

// NewCollector creates a collector over the given source chain. Sources are
// tried in slice order, so the slice encodes provider preference.
func NewCollector(cfg *config.Config, sources []drepo.QuoteSource, limiter *ratelimit.Limiter, c cache.Service, gen *synthetic.Generator, metrics drepo.Metrics, log *logger.Logger) *Collector {
	return &Collector{
		sources:        sources,
		limiter:        limiter,
		cache:          c,
		gen:            gen,
		metrics:        metrics,
		log:            log,
		quoteTTL:       cfg.Cache.QuoteTTL,
		seriesTTL:      cfg.Cache.SeriesTTL,
		lastKnownTTL:   cfg.Cache.LastKnownTTL,
		sourceDelay:    cfg.Collector.SourceDelay,
		symbolDelay:    cfg.Collector.SymbolDelay,
		maxConcurrent:  cfg.Collector.MaxConcurrent,
		useMockData:    cfg.Collector.UseMockData,
		fallbackToMock: cfg.Collector.FallbackToMock,
	}
}

// SourceNames returns the configured provider chain in order.
func (c *Collector) SourceNames() []string {
	names := make([]string, len(c.sources))
	for i, src := range c.sources {
		names[i] = src.Name()
	}
	return names
}

// GetQuote resolves one realtime quote for symbol. The result is always
// usable: cached, live, stale, synthetic, or the zero sentinel.
func (c *Collector) GetQuote(ctx context.Context, symbol string) *models.Quote {
	start := time.Now()
	defer func() {
		elapsed := int64(time.Since(start))
		c.requests.Add(1)
		c.latencySum.Add(elapsed)
		c.lastLatency.Store(elapsed)
	}()

	now := time.Now()
	if c.useMockData {
		c.metrics.RecordFallback("synthetic")
		return c.gen.Quote(symbol, now)
	}

	if q, ok := c.cachedQuote(ctx, symbol, now); ok {
		return q
	}

	if q := c.fetchLive(ctx, symbol); q != nil {
		c.storeQuote(ctx, q)
		return q
	}

	c.degraded.Add(1)
	if q, ok := c.staleQuote(ctx, symbol); ok {
		c.metrics.RecordFallback("cache")
		return q
	}
	if c.fallbackToMock {
		c.metrics.RecordFallback("synthetic")
		return c.gen.Quote(symbol, now)
	}

	c.metrics.RecordFallback("zero")
	c.log.Warn("every fallback stage exhausted", logger.String("symbol", symbol))
	return models.ZeroQuote(symbol, now)
}

// GetSeries resolves a historical series for symbol over period. The chain
// mirrors GetQuote with series keys and a longer TTL. With synthetic
// fallback disabled a failed fetch returns an empty series plus the last
// provider error; callers treat empty as insufficient data.
func (c *Collector) GetSeries(ctx context.Context, symbol string, period drepo.Period) (*models.Series, error) {
	now := time.Now()
	if c.useMockData {
		c.metrics.RecordFallback("synthetic")
		return c.gen.Series(symbol, period, now), nil
	}

	key := cache.SeriesKey(symbol, string(period), cache.TimeBucket(now, c.seriesTTL))
	cached, err := cache.GetTyped[models.Series](ctx, c.cache, key)
	if err == nil {
		c.cacheHits.Add(1)
		c.metrics.RecordCacheHit("series")
		return &cached, nil
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		c.metrics.RecordError("cache")
		c.log.Warn("series cache read failed", logger.String("symbol", symbol), logger.Error(models.NewCacheError("get", err)))
	}
	c.cacheMisses.Add(1)
	c.metrics.RecordCacheMiss("series")

	var lastErr error
	for i, src := range c.sources {
		if i > 0 && !c.pause(ctx, c.sourceDelay) {
			break
		}
		name := src.Name()
		if err := c.limiter.WaitIfNeeded(ctx, name); err != nil {
			lastErr = err
			break
		}

		fetchStart := time.Now()
		series, err := src.FetchSeries(ctx, symbol, period)
		c.metrics.RecordFetchLatency(name, time.Since(fetchStart).Seconds())
		if err != nil {
			lastErr = err
			if ctx.Err() == nil {
				c.recordFailure(name, symbol, err)
			}
			continue
		}

		c.limiter.RecordSuccess(name)
		c.metrics.RecordFetch(name, "success")
		if err := c.cache.Set(ctx, key, series, c.seriesTTL); err != nil {
			c.metrics.RecordError("cache")
			c.log.Warn("series cache write failed", logger.String("symbol", symbol), logger.Error(models.NewCacheError("set", err)))
		}
		return series, nil
	}

	c.degraded.Add(1)
	if c.fallbackToMock {
		c.metrics.RecordFallback("synthetic")
		return c.gen.Series(symbol, period, now), nil
	}

	c.metrics.RecordFallback("empty")
	if lastErr == nil {
		lastErr = fmt.Errorf("no sources configured")
	}
	return &models.Series{Symbol: symbol}, fmt.Errorf("collect series %s: %w", symbol, lastErr)
}

// fetchLive walks the source chain with pacing and an inter-source delay.
// Returns nil when every source failed or the context ended.
func (c *Collector) fetchLive(ctx context.Context, symbol string) *models.Quote {
	for i, src := range c.sources {
		if i > 0 && !c.pause(ctx, c.sourceDelay) {
			return nil
		}
		q, err := c.trySource(ctx, src, symbol)
		if err == nil {
			return q
		}
		if ctx.Err() != nil {
			return nil
		}
	}
	return nil
}

// trySource performs one paced fetch against src.
func (c *Collector) trySource(ctx context.Context, src drepo.QuoteSource, symbol string) (*models.Quote, error) {
	name := src.Name()
	if err := c.limiter.WaitIfNeeded(ctx, name); err != nil {
		return nil, err
	}

	start := time.Now()
	q, err := src.FetchQuote(ctx, symbol)
	c.metrics.RecordFetchLatency(name, time.Since(start).Seconds())
	if err != nil {
		if ctx.Err() == nil {
			c.recordFailure(name, symbol, err)
		}
		return nil, err
	}

	c.limiter.RecordSuccess(name)
	c.metrics.RecordFetch(name, "success")
	return q, nil
}

// recordFailure counts one failed attempt and escalates backoff on
// throttles. Unclassified errors carrying the throttle signature escalate
// too, without a window.
func (c *Collector) recordFailure(provider, symbol string, err error) {
	outcome := "error"
	if pe, ok := models.AsProviderError(err); ok {
		outcome = string(pe.Kind)
		if pe.Kind == models.ErrRateLimited {
			c.limiter.RecordThrottle(provider, pe.RetryAfter)
		}
	} else if models.HasThrottleSignature(err) {
		outcome = string(models.ErrRateLimited)
		c.limiter.RecordThrottle(provider, 0)
	}

	c.metrics.RecordFetch(provider, outcome)
	c.log.Warn("source fetch failed",
		logger.String("provider", provider),
		logger.String("symbol", symbol),
		logger.String("outcome", outcome),
		logger.Error(err))
}

// cachedQuote looks up the current bucket for symbol. Cache failures are
// non-fatal and reported as misses.
func (c *Collector) cachedQuote(ctx context.Context, symbol string, now time.Time) (*models.Quote, bool) {
	key := cache.QuoteKey(symbol, cache.TimeBucket(now, c.quoteTTL))
	q, err := cache.GetTyped[models.Quote](ctx, c.cache, key)
	if err == nil {
		c.cacheHits.Add(1)
		c.metrics.RecordCacheHit("quote")
		return &q, true
	}
	if !errors.Is(err, cache.ErrCacheMiss) {
		c.metrics.RecordError("cache")
		c.log.Warn("quote cache read failed", logger.String("symbol", symbol), logger.Error(models.NewCacheError("get", err)))
	}
	c.cacheMisses.Add(1)
	c.metrics.RecordCacheMiss("quote")
	return nil, false
}

// storeQuote writes q into the current bucket and refreshes the last-known
// key. The bucket is derived from wall-clock time, not the quote timestamp,
// so the next read within the TTL window finds it.
func (c *Collector) storeQuote(ctx context.Context, q *models.Quote) {
	key := cache.QuoteKey(q.Symbol, cache.TimeBucket(time.Now(), c.quoteTTL))
	if err := c.cache.Set(ctx, key, q, c.quoteTTL); err != nil {
		c.metrics.RecordError("cache")
		c.log.Warn("quote cache write failed", logger.String("symbol", q.Symbol), logger.Error(models.NewCacheError("set", err)))
	}
	if err := c.cache.Set(ctx, cache.LastKnownKey(q.Symbol), q, c.lastKnownTTL); err != nil {
		c.metrics.RecordError("cache")
		c.log.Warn("last-known cache write failed", logger.String("symbol", q.Symbol), logger.Error(models.NewCacheError("set", err)))
	}
	c.metrics.RecordLastPrice(q.Symbol, q.Price)
}

// staleQuote serves the last known good quote with degraded confidence. The
// stored entry keeps its original confidence; only the returned copy decays.
func (c *Collector) staleQuote(ctx context.Context, symbol string) (*models.Quote, bool) {
	q, err := cache.GetTyped[models.Quote](ctx, c.cache, cache.LastKnownKey(symbol))
	if err != nil {
		if !errors.Is(err, cache.ErrCacheMiss) {
			c.metrics.RecordError("cache")
			c.log.Warn("last-known cache read failed", logger.String("symbol", symbol), logger.Error(models.NewCacheError("get", err)))
		}
		return nil, false
	}
	c.metrics.RecordCacheHit("last_known")
	q.Confidence *= staleConfidenceFactor
	return &q, true
}

// pause sleeps d unless the context ends first.
func (c *Collector) pause(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// Stats is a point-in-time view of the collector counters.
type Stats struct {
	Requests    int64
	Degraded    int64
	CacheHits   int64
	CacheMisses int64
	AvgLatency  time.Duration
	LastLatency time.Duration
}

// Stats snapshots the collector counters.
func (c *Collector) Stats() Stats {
	s := Stats{
		Requests:    c.requests.Load(),
		Degraded:    c.degraded.Load(),
		CacheHits:   c.cacheHits.Load(),
		CacheMisses: c.cacheMisses.Load(),
		LastLatency: time.Duration(c.lastLatency.Load()),
	}
	if s.Requests > 0 {
		s.AvgLatency = time.Duration(c.latencySum.Load() / s.Requests)
	}
	return s
}
