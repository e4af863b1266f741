package usecase

import (
	"context"
	"fmt"
	"time"

	"MarketPulse/internal/domain/models"
	drepo "MarketPulse/internal/domain/repository"
	mid "MarketPulse/internal/middleware"
	"MarketPulse/pkg/cache"
	"MarketPulse/pkg/config"
	"MarketPulse/pkg/logger"
)

// StreamWarmer consumes the live provider stream and keeps the quote cache
// warm, so collection requests during market hours mostly short-circuit on
// a fresh bucket instead of spending a provider call.
type StreamWarmer struct {
	stream  drepo.MarketStream
	pipe    *mid.StreamPipeline
	cache   cache.Service
	metrics drepo.Metrics
	log     *logger.Logger

	quoteTTL     time.Duration
	lastKnownTTL time.Duration
}

// NewStreamWarmer creates a warmer over stream. A nil publisher disables
// feed publishing.
func NewStreamWarmer(cfg *config.Config, stream drepo.MarketStream, c cache.Service, pub drepo.Publisher, metrics drepo.Metrics, log *logger.Logger) *StreamWarmer {
	w := &StreamWarmer{
		stream:       stream,
		cache:        c,
		metrics:      metrics,
		log:          log,
		quoteTTL:     cfg.Cache.QuoteTTL,
		lastKnownTTL: cfg.Cache.LastKnownTTL,
	}

	opts := []mid.PipelineOption{
		mid.WithBufferSize(cfg.Stream.BufferSize),
		mid.WithSymbolGap(cfg.Stream.ThrottlePerSym),
		mid.WithMaxAgeSkew(cfg.Stream.MaxPriceAgeSkew),
	}
	if pub != nil && cfg.Stream.PublishToFeed {
		opts = append(opts, mid.WithFeed(pub, cfg.Stream.FlushInterval))
	}
	w.pipe = mid.NewStreamPipeline(w, metrics, opts...)
	return w
}

// Start connects, subscribes, and launches the consume loop.
func (w *StreamWarmer) Start(ctx context.Context) error {
	if err := w.stream.Connect(ctx); err != nil {
		return fmt.Errorf("stream connect: %w", err)
	}
	if err := w.stream.Subscribe(ctx); err != nil {
		return fmt.Errorf("stream subscribe: %w", err)
	}
	w.pipe.Start(ctx)
	qCh, errCh := w.stream.Read(ctx)
	go w.consume(ctx, qCh, errCh)
	w.log.Info("stream warmer started")
	return nil
}

func (w *StreamWarmer) consume(ctx context.Context, qCh <-chan *models.Quote, errCh <-chan error) {
	for {
		select {
		case <-ctx.Done():
			return
		case err, ok := <-errCh:
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				w.metrics.RecordError("stream")
				w.log.Warn("stream read failed, reconnecting", logger.Error(err))
			} else if !ok {
				w.log.Warn("stream closed, reconnecting")
			}
			// The read loop closes both channels on exit, so after a
			// reconnect the warmer must re-arm with fresh ones.
			for {
				rerr := w.stream.Reconnect(ctx)
				if rerr == nil {
					break
				}
				if ctx.Err() != nil {
					return
				}
				w.log.Error("stream reconnect failed", logger.Error(rerr))
			}
			qCh, errCh = w.stream.Read(ctx)
		case q, ok := <-qCh:
			if !ok {
				// Parked until the error side re-arms the channels.
				qCh = nil
				continue
			}
			if q == nil {
				continue
			}
			_ = w.pipe.Process(ctx, q)
			w.metrics.RecordLastPrice(q.Symbol, q.Price)
		}
	}
}

// Process writes one accepted stream quote into the current bucket and the
// last-known key. It is the pipeline's sink.
func (w *StreamWarmer) Process(ctx context.Context, q *models.Quote) error {
	bucket := cache.TimeBucket(time.Now(), w.quoteTTL)
	if err := w.cache.Set(ctx, cache.QuoteKey(q.Symbol, bucket), q, w.quoteTTL); err != nil {
		return models.NewCacheError("set", err)
	}
	if err := w.cache.Set(ctx, cache.LastKnownKey(q.Symbol), q, w.lastKnownTTL); err != nil {
		return models.NewCacheError("set", err)
	}
	w.metrics.RecordStreamQuote(q.Symbol)
	return nil
}

// IsConnected reports the stream connection state.
func (w *StreamWarmer) IsConnected() bool { return w.stream.IsConnected() }

// Shutdown stops the pipeline and closes the stream.
func (w *StreamWarmer) Shutdown(ctx context.Context) error {
	w.pipe.Stop()
	return w.stream.Close()
}

var _ mid.Sink = (*StreamWarmer)(nil)
