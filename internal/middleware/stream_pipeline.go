package middleware

import (
	"context"
	"fmt"
	"sync"
	"time"

	"MarketPulse/internal/domain/models"
	domrepo "MarketPulse/internal/domain/repository"
)

// Sink is the downstream the pipeline delivers accepted quotes to.
type Sink interface {
	Process(ctx context.Context, q *models.Quote) error
}

// StreamPipeline sits between the websocket stream and the cache/feed. It
// validates, throttles per symbol, delivers to the sink with a retry buffer
// for downstream hiccups, and batches accepted quotes onto the feed.
type StreamPipeline struct {
	sink    Sink
	metrics domrepo.Metrics

	feed       domrepo.Publisher
	flushEvery time.Duration

	minGap  time.Duration
	maxSkew time.Duration
	bufSize int

	bufCh   chan *models.Quote
	stopCh  chan struct{}
	started bool
	mu      sync.Mutex

	// lastSeen is only touched by Process, which runs on the single stream
	// consumer goroutine.
	lastSeen map[string]time.Time
	pending  []models.Quote
}

type PipelineOption func(*StreamPipeline)

// WithBufferSize sets the retry buffer capacity.
func WithBufferSize(n int) PipelineOption {
	return func(p *StreamPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithSymbolGap sets the minimum spacing between accepted quotes per symbol.
func WithSymbolGap(d time.Duration) PipelineOption {
	return func(p *StreamPipeline) {
		if d > 0 {
			p.minGap = d
		}
	}
}

// WithMaxAgeSkew bounds how far a quote timestamp may sit from wall clock,
// in either direction, before the quote is rejected.
func WithMaxAgeSkew(d time.Duration) PipelineOption {
	return func(p *StreamPipeline) {
		if d > 0 {
			p.maxSkew = d
		}
	}
}

// WithFeed publishes accepted quotes to pub in batches every interval.
func WithFeed(pub domrepo.Publisher, interval time.Duration) PipelineOption {
	return func(p *StreamPipeline) {
		p.feed = pub
		if interval > 0 {
			p.flushEvery = interval
		}
	}
}

// NewStreamPipeline creates a pipeline delivering to sink.
func NewStreamPipeline(sink Sink, metrics domrepo.Metrics, opts ...PipelineOption) *StreamPipeline {
	p := &StreamPipeline{
		sink:       sink,
		metrics:    metrics,
		flushEvery: 200 * time.Millisecond,
		minGap:     500 * time.Millisecond,
		maxSkew:    5 * time.Minute,
		bufSize:    1000,
		stopCh:     make(chan struct{}),
		lastSeen:   make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan *models.Quote, p.bufSize)
	return p
}

// Start launches the retry flusher and, when a feed is configured, the
// batch publisher loop.
func (p *StreamPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.mu.Unlock()

	go p.retryLoop(ctx)
	if p.feed != nil {
		go p.feedLoop(ctx)
	}
}

// Stop halts the background loops and flushes any pending feed batch.
func (p *StreamPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	p.mu.Unlock()
	close(p.stopCh)

	if p.feed != nil {
		p.flushFeed(context.Background())
	}
}

// Process validates and throttles q, delivers it to the sink, and stages it
// for the next feed batch. Sink failures park the quote in the retry buffer.
func (p *StreamPipeline) Process(ctx context.Context, q *models.Quote) error {
	now := time.Now()
	if err := p.validate(q, now); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if !p.allow(q.Symbol, now) {
		p.metrics.RecordError("pipeline_throttle")
		return nil
	}

	if p.feed != nil {
		p.mu.Lock()
		p.pending = append(p.pending, *q)
		p.mu.Unlock()
	}

	if err := p.sink.Process(ctx, q); err != nil {
		p.metrics.RecordError("pipeline_process")
		select {
		case p.bufCh <- q:
		default:
			p.metrics.RecordError("pipeline_buffer_full")
		}
		return fmt.Errorf("pipeline sink: %w", err)
	}
	return nil
}

// retryLoop re-delivers buffered quotes with capped exponential backoff.
func (p *StreamPipeline) retryLoop(ctx context.Context) {
	backoff := 50 * time.Millisecond
	for {
		select {
		case <-p.stopCh:
			return
		case q := <-p.bufCh:
			if q == nil {
				continue
			}
			if err := p.sink.Process(ctx, q); err != nil {
				if backoff < 2*time.Second {
					backoff *= 2
				}
				p.metrics.RecordError("pipeline_flush")
				time.Sleep(backoff)
				select {
				case p.bufCh <- q:
				default:
					p.metrics.RecordError("pipeline_buffer_drop")
				}
			} else {
				backoff = 50 * time.Millisecond
			}
		}
	}
}

// feedLoop publishes the staged batch every flush interval. The feed is
// best effort: a failed publish drops the batch and counts the error.
func (p *StreamPipeline) feedLoop(ctx context.Context) {
	ticker := time.NewTicker(p.flushEvery)
	defer ticker.Stop()

	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			p.flushFeed(ctx)
		}
	}
}

func (p *StreamPipeline) flushFeed(ctx context.Context) {
	p.mu.Lock()
	batch := p.pending
	p.pending = nil
	p.mu.Unlock()

	if len(batch) == 0 {
		return
	}
	if err := p.feed.PublishQuotes(ctx, batch); err != nil {
		p.metrics.RecordError("feed_publish")
	}
}

func (p *StreamPipeline) validate(q *models.Quote, now time.Time) error {
	if q == nil {
		return fmt.Errorf("quote nil")
	}
	if q.Symbol == "" {
		return fmt.Errorf("symbol empty")
	}
	if q.Timestamp.IsZero() {
		return fmt.Errorf("timestamp zero")
	}
	if skew := now.Sub(q.Timestamp); skew > p.maxSkew || skew < -p.maxSkew {
		return fmt.Errorf("timestamp skew %s exceeds %s", skew, p.maxSkew)
	}
	if q.Price <= 0 || q.Volume < 0 {
		return fmt.Errorf("non-positive price or negative volume")
	}
	return nil
}

// allow enforces the per-symbol minimum gap between accepted quotes.
func (p *StreamPipeline) allow(symbol string, now time.Time) bool {
	if p.minGap <= 0 {
		return true
	}
	last := p.lastSeen[symbol]
	if !last.IsZero() && now.Sub(last) < p.minGap {
		return false
	}
	p.lastSeen[symbol] = now
	return true
}
