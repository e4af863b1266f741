package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	fetchesTotal   *prometheus.CounterVec
	fetchLatency   *prometheus.HistogramVec
	fallbacksTotal *prometheus.CounterVec
	cacheHits      *prometheus.CounterVec
	cacheMisses    *prometheus.CounterVec
	errorsTotal    *prometheus.CounterVec
	lastPrice      *prometheus.GaugeVec
	batchSize      prometheus.Histogram
	streamQuotes   *prometheus.CounterVec
}

// New registers every collector metric with the default registry and
// returns the recorder.
func New() *Recorder {
	return &Recorder{
		fetchesTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketpulse_fetches_total",
				Help: "Total number of provider fetch attempts by outcome",
			},
			[]string{"provider", "outcome"},
		),
		fetchLatency: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "marketpulse_fetch_duration_seconds",
				Help:    "Duration of provider fetches in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
		fallbacksTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketpulse_fallbacks_total",
				Help: "Total number of fallback transitions by stage",
			},
			[]string{"stage"},
		),
		cacheHits: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketpulse_cache_hits_total",
				Help: "Total number of cache hits by key kind",
			},
			[]string{"kind"},
		),
		cacheMisses: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketpulse_cache_misses_total",
				Help: "Total number of cache misses by key kind",
			},
			[]string{"kind"},
		),
		errorsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketpulse_errors_total",
				Help: "Total errors by kind",
			},
			[]string{"type"},
		),
		lastPrice: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "marketpulse_last_price",
				Help: "Most recent collected price per symbol",
			},
			[]string{"symbol"},
		),
		batchSize: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "marketpulse_batch_size",
				Help:    "Number of symbols per batch collection",
				Buckets: []float64{1, 2, 5, 10, 20, 50, 100},
			},
		),
		streamQuotes: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "marketpulse_stream_quotes_total",
				Help: "Total number of quotes received over the live stream",
			},
			[]string{"symbol"},
		),
	}
}

// RecordFetch counts one provider fetch attempt by outcome.
func (r *Recorder) RecordFetch(provider, outcome string) {
	r.fetchesTotal.WithLabelValues(provider, outcome).Inc()
}

// RecordFetchLatency observes one provider fetch duration.
func (r *Recorder) RecordFetchLatency(provider string, seconds float64) {
	r.fetchLatency.WithLabelValues(provider).Observe(seconds)
}

// RecordFallback counts one fallback transition into the given stage.
func (r *Recorder) RecordFallback(stage string) { r.fallbacksTotal.WithLabelValues(stage).Inc() }

// RecordCacheHit counts a hit on the given key kind.
func (r *Recorder) RecordCacheHit(kind string) { r.cacheHits.WithLabelValues(kind).Inc() }

// RecordCacheMiss counts a miss on the given key kind.
func (r *Recorder) RecordCacheMiss(kind string) { r.cacheMisses.WithLabelValues(kind).Inc() }

// RecordError counts one error of the given kind.
func (r *Recorder) RecordError(kind string) { r.errorsTotal.WithLabelValues(kind).Inc() }

// RecordLastPrice tracks the freshest price seen for a symbol.
func (r *Recorder) RecordLastPrice(symbol string, price float64) {
	r.lastPrice.WithLabelValues(symbol).Set(price)
}

// RecordBatchSize observes how many symbols one batch collected.
func (r *Recorder) RecordBatchSize(n int) { r.batchSize.Observe(float64(n)) }

// RecordStreamQuote counts one quote delivered over the live stream.
func (r *Recorder) RecordStreamQuote(symbol string) { r.streamQuotes.WithLabelValues(symbol).Inc() }
