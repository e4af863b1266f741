package di

import (
	"fmt"

	"MarketPulse/internal/domain/repository"
	domsvc "MarketPulse/internal/domain/service"
	"MarketPulse/internal/handler/api"
	internalrepo "MarketPulse/internal/repository"
	"MarketPulse/internal/service/alphavantage"
	"MarketPulse/internal/service/finnhub"
	"MarketPulse/internal/service/marketclock"
	"MarketPulse/internal/service/ratelimit"
	"MarketPulse/internal/service/synthetic"
	"MarketPulse/internal/service/yahoo"
	"MarketPulse/internal/services/analytics"
	"MarketPulse/internal/usecase"
	"MarketPulse/pkg/cache"
	"MarketPulse/pkg/config"
	xhttp "MarketPulse/pkg/http"
	pkgkafka "MarketPulse/pkg/kafka"
	"MarketPulse/pkg/logger"
	"MarketPulse/pkg/metrics"
	pkgqueue "MarketPulse/pkg/queue"
	"MarketPulse/pkg/server"
)

// Confidence tiers per provider. Finnhub is the paid realtime feed,
// AlphaVantage trails by a few seconds, Yahoo is scraped and unauthenticated.
const (
	finnhubTier      = 0.95
	alphavantageTier = 0.85
	yahooTier        = 0.75
)

// ProvideLogger creates the application logger with an error collector
// attached so /api/v1/health can report recent failures.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	lgr, err := logger.New(&logger.Config{
		Level:  cfg.Logger.Level,
		Format: cfg.Logger.Format,
		Output: cfg.Logger.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	lgr.AttachCollector(nil)
	return lgr, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideRedisCache creates the Redis cache backend, or nil when Redis is
// disabled and the in-memory cache stands alone.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	if !cfg.Cache.Redis.Enabled {
		return nil, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Cache.Redis.Addr),
		cache.WithRedisPassword(cfg.Cache.Redis.Password),
		cache.WithRedisDB(cfg.Cache.Redis.DB),
		cache.WithRedisPrefix(cfg.Cache.KeyPrefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return rc, nil
}

// ProvideCache selects the cache service: layered (memory over Redis) when
// Redis is configured, plain in-memory otherwise.
func ProvideCache(cfg *config.Config, rc *cache.RedisCache) cache.Service {
	if rc == nil {
		return cache.NewMemoryCache(
			cache.WithMemoryMaxSize(cfg.Cache.Memory.MaxEntries),
			cache.WithMemoryCleanup(cfg.Cache.Memory.CleanupInterval),
		)
	}
	return cache.NewLayeredCache(rc, cache.WithLayeredMemorySize(cfg.Cache.Memory.MaxEntries))
}

// ProvideLimiter creates the shared rate limiter with each enabled
// provider's minimum request interval.
func ProvideLimiter(cfg *config.Config) *ratelimit.Limiter {
	var opts []ratelimit.Option
	if cfg.Providers.Finnhub.Enabled {
		opts = append(opts, ratelimit.WithProviderInterval("finnhub", cfg.Providers.Finnhub.MinInterval))
	}
	if cfg.Providers.AlphaVantage.Enabled {
		opts = append(opts, ratelimit.WithProviderInterval("alphavantage", cfg.Providers.AlphaVantage.MinInterval))
	}
	if cfg.Providers.Yahoo.Enabled {
		opts = append(opts, ratelimit.WithProviderInterval("yahoo", cfg.Providers.Yahoo.MinInterval))
	}
	return ratelimit.New(opts...)
}

// ProvideSources builds the ordered provider chain. Order is fallback
// priority: the collector walks the slice front to back.
func ProvideSources(cfg *config.Config) []repository.QuoteSource {
	var sources []repository.QuoteSource
	if cfg.Providers.Finnhub.Enabled {
		sources = append(sources, finnhub.NewClient(
			cfg.Providers.Finnhub.APIKey,
			cfg.Providers.Finnhub.BaseURL,
			cfg.Providers.Finnhub.Timeout,
			finnhubTier,
		))
	}
	if cfg.Providers.AlphaVantage.Enabled {
		sources = append(sources, alphavantage.NewClient(
			cfg.Providers.AlphaVantage.APIKey,
			cfg.Providers.AlphaVantage.BaseURL,
			cfg.Providers.AlphaVantage.Timeout,
			alphavantageTier,
		))
	}
	if cfg.Providers.Yahoo.Enabled {
		sources = append(sources, yahoo.NewClient(
			cfg.Providers.Yahoo.BaseURL,
			cfg.Providers.Yahoo.Timeout,
			yahooTier,
		))
	}
	return sources
}

// ProvideSynthetic creates the synthetic quote generator with its
// continuity cache so consecutive fallback quotes stay on one random walk.
func ProvideSynthetic(cfg *config.Config) *synthetic.Generator {
	continuity := synthetic.NewContinuityCache(cfg.Synthetic.ContinuityTTL)
	return synthetic.NewGenerator(continuity,
		synthetic.WithMaxStepPct(cfg.Synthetic.MaxStepPct),
		synthetic.WithTrendPeriod(cfg.Synthetic.TrendPeriod),
	)
}

// ProvideCollector creates the resilient quote collector use case.
func ProvideCollector(
	cfg *config.Config,
	sources []repository.QuoteSource,
	limiter *ratelimit.Limiter,
	c cache.Service,
	gen *synthetic.Generator,
	m repository.Metrics,
	lgr *logger.Logger,
) *usecase.Collector {
	return usecase.NewCollector(cfg, sources, limiter, c, gen, m, lgr)
}

// ProvideAnalyzer creates the stateless analysis engine.
func ProvideAnalyzer(cfg *config.Config) domsvc.Analyzer {
	return analytics.NewEngine(cfg)
}

// ProvideClock creates the trading calendar clock. With the calendar
// disabled the clock reports the market as always open, so the monitor
// runs on every tick.
func ProvideClock(cfg *config.Config) repository.MarketClock {
	if !cfg.Monitor.Calendar.Enabled {
		return marketclock.New(cfg.Monitor.Calendar.MIC, true)
	}
	return marketclock.New(cfg.Monitor.Calendar.MIC, cfg.Monitor.Calendar.AlwaysOpen)
}

// ProvideKafkaProducer creates a Kafka producer, or nil when the feed is
// disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.BatchTimeout),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideFeedPublisher creates the Kafka feed publisher repository.
func ProvideFeedPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.Publisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewFeedPublisher(producer, cfg.Kafka.QuotesTopic, cfg.Kafka.SnapshotsTopic)
}

// ProvideMarketStream creates the Finnhub WebSocket stream, or nil when
// streaming is disabled.
func ProvideMarketStream(cfg *config.Config) repository.MarketStream {
	if !cfg.Stream.Enabled || !cfg.Providers.Finnhub.Enabled {
		return nil
	}
	return finnhub.NewStream(
		cfg.Providers.Finnhub.APIKey,
		cfg.Providers.Finnhub.WebSocketURL,
		cfg.Collector.Symbols,
		finnhubTier,
		cfg.Providers.Finnhub.ReconnectDelay,
		cfg.Providers.Finnhub.PingInterval,
	)
}

// ProvideStreamWarmer creates the cache warmer over the live stream.
func ProvideStreamWarmer(
	cfg *config.Config,
	stream repository.MarketStream,
	c cache.Service,
	pub repository.Publisher,
	m repository.Metrics,
	lgr *logger.Logger,
) *usecase.StreamWarmer {
	if stream == nil {
		return nil
	}
	return usecase.NewStreamWarmer(cfg, stream, c, pub, m, lgr)
}

// ProvideQueue creates the Redis-backed job queue. The queue piggybacks on
// the cache's Redis connection, so it requires cache.redis to be enabled.
func ProvideQueue(cfg *config.Config, lgr *logger.Logger, rc *cache.RedisCache) *pkgqueue.RedisQueue {
	if !cfg.Queue.Enabled || rc == nil {
		return nil
	}
	return pkgqueue.NewRedisQueue(lgr,
		&pkgqueue.QueueConfig{
			Workers:    cfg.Queue.Workers,
			RetryLimit: cfg.Queue.RetryLimit,
			RetryDelay: cfg.Queue.RetryDelay,
		},
		rc.Client(),
		pkgqueue.ModeProducerConsumer,
		pkgqueue.WithKeyPrefix(cfg.Queue.KeyPrefix),
	)
}

// ProvideQueueService narrows the queue to its publish side. Returns a true
// nil interface when the queue is off so callers can compare against nil.
func ProvideQueueService(q *pkgqueue.RedisQueue) pkgqueue.QueueService {
	if q == nil {
		return nil
	}
	return q
}

// ProvideMonitor creates the periodic analysis monitor, or nil when
// monitoring is disabled.
func ProvideMonitor(
	cfg *config.Config,
	collector *usecase.Collector,
	analyzer domsvc.Analyzer,
	clock repository.MarketClock,
	pub repository.Publisher,
	qs pkgqueue.QueueService,
	c cache.Service,
	m repository.Metrics,
	lgr *logger.Logger,
) *usecase.Monitor {
	if !cfg.Monitor.Enabled {
		return nil
	}
	return usecase.NewMonitor(cfg, collector, analyzer, clock, pub, qs, c, m, lgr)
}

// ProvideHealth creates the health and performance reporter.
func ProvideHealth(
	collector *usecase.Collector,
	limiter *ratelimit.Limiter,
	c cache.Service,
	warmer *usecase.StreamWarmer,
	lgr *logger.Logger,
) *usecase.Health {
	return usecase.NewHealth(collector, limiter, c, warmer, lgr)
}

// ProvideHandler creates the ops HTTP handler.
func ProvideHandler(lgr *logger.Logger, health *usecase.Health, cfg *config.Config) xhttp.Handler {
	return api.NewHealthHandler(lgr, health, cfg.Collector.Symbols)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	lgr *logger.Logger,
	handler xhttp.Handler,
	warmer *usecase.StreamWarmer,
	monitor *usecase.Monitor,
	q *pkgqueue.RedisQueue,
	pub repository.Publisher,
) *server.App {
	// Register the analysis job on the consumer side so monitor passes
	// enqueued on one instance run on whichever instance pops them.
	if q != nil && monitor != nil {
		q.RegisterJobs([]pkgqueue.Job{usecase.NewAnalysisJob(monitor)})
	}
	return server.New(cfg, lgr, handler, warmer, monitor, q, pub)
}
