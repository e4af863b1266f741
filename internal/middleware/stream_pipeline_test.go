package middleware

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"MarketPulse/internal/domain/models"
)

type captureSink struct {
	mu    sync.Mutex
	got   []models.Quote
	fails int
}

func (s *captureSink) Process(ctx context.Context, q *models.Quote) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fails > 0 {
		s.fails--
		return errors.New("sink down")
	}
	s.got = append(s.got, *q)
	return nil
}

func (s *captureSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.got)
}

type capturePublisher struct {
	mu     sync.Mutex
	quotes []models.Quote
}

func (p *capturePublisher) PublishQuotes(ctx context.Context, quotes []models.Quote) error {
	p.mu.Lock()
	p.quotes = append(p.quotes, quotes...)
	p.mu.Unlock()
	return nil
}

func (p *capturePublisher) PublishSnapshot(ctx context.Context, snap *models.MarketSnapshot) error {
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func (p *capturePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.quotes)
}

type pipeMetrics struct {
	mu     sync.Mutex
	errors map[string]int
}

func newPipeMetrics() *pipeMetrics { return &pipeMetrics{errors: map[string]int{}} }

func (m *pipeMetrics) errCount(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

func (m *pipeMetrics) RecordError(kind string) {
	m.mu.Lock()
	m.errors[kind]++
	m.mu.Unlock()
}

func (m *pipeMetrics) RecordFetch(string, string)         {}
func (m *pipeMetrics) RecordFetchLatency(string, float64) {}
func (m *pipeMetrics) RecordFallback(string)              {}
func (m *pipeMetrics) RecordCacheHit(string)              {}
func (m *pipeMetrics) RecordCacheMiss(string)             {}
func (m *pipeMetrics) RecordLastPrice(string, float64)    {}
func (m *pipeMetrics) RecordBatchSize(int)                {}
func (m *pipeMetrics) RecordStreamQuote(string)           {}

func goodQuote(symbol string) *models.Quote {
	return &models.Quote{
		Symbol:     symbol,
		Timestamp:  time.Now(),
		Price:      100,
		Volume:     500,
		Source:     "finnhub",
		Confidence: 0.95,
	}
}

func TestProcessRejectsMalformedQuotes(t *testing.T) {
	sink := &captureSink{}
	m := newPipeMetrics()
	p := NewStreamPipeline(sink, m, WithMaxAgeSkew(100*time.Millisecond))
	ctx := context.Background()

	stale := goodQuote("AAPL")
	stale.Timestamp = time.Now().Add(-time.Second)
	future := goodQuote("AAPL")
	future.Timestamp = time.Now().Add(time.Second)
	noPrice := goodQuote("AAPL")
	noPrice.Price = 0
	negVolume := goodQuote("AAPL")
	negVolume.Volume = -1
	noSymbol := goodQuote("")
	noStamp := goodQuote("AAPL")
	noStamp.Timestamp = time.Time{}

	bad := []*models.Quote{nil, noSymbol, noStamp, stale, future, noPrice, negVolume}
	for i, q := range bad {
		if err := p.Process(ctx, q); err == nil {
			t.Fatalf("case %d should have been rejected", i)
		}
	}
	if sink.count() != 0 {
		t.Fatalf("rejected quotes must never reach the sink, got %d", sink.count())
	}
	if m.errCount("pipeline_validate") != len(bad) {
		t.Fatalf("expected %d validation errors, got %d", len(bad), m.errCount("pipeline_validate"))
	}
}

func TestProcessThrottlesPerSymbol(t *testing.T) {
	sink := &captureSink{}
	m := newPipeMetrics()
	p := NewStreamPipeline(sink, m, WithSymbolGap(80*time.Millisecond))
	ctx := context.Background()

	if err := p.Process(ctx, goodQuote("AAPL")); err != nil {
		t.Fatalf("first quote: %v", err)
	}
	// Inside the gap: dropped silently, not an error.
	if err := p.Process(ctx, goodQuote("AAPL")); err != nil {
		t.Fatalf("throttled quote should not error: %v", err)
	}
	if err := p.Process(ctx, goodQuote("MSFT")); err != nil {
		t.Fatalf("other symbol: %v", err)
	}

	if sink.count() != 2 {
		t.Fatalf("expected 2 delivered quotes, got %d", sink.count())
	}
	if m.errCount("pipeline_throttle") != 1 {
		t.Fatalf("expected 1 throttle drop, got %d", m.errCount("pipeline_throttle"))
	}

	time.Sleep(90 * time.Millisecond)
	if err := p.Process(ctx, goodQuote("AAPL")); err != nil {
		t.Fatalf("post-gap quote: %v", err)
	}
	if sink.count() != 3 {
		t.Fatalf("gap expiry should re-admit the symbol, got %d", sink.count())
	}
}

func TestProcessParksAndRetriesOnSinkFailure(t *testing.T) {
	sink := &captureSink{fails: 1}
	m := newPipeMetrics()
	p := NewStreamPipeline(sink, m)
	ctx := context.Background()

	p.Start(ctx)
	defer p.Stop()

	if err := p.Process(ctx, goodQuote("AAPL")); err == nil {
		t.Fatal("sink failure should surface from Process")
	}

	deadline := time.Now().Add(500 * time.Millisecond)
	for sink.count() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("parked quote was never redelivered")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestFeedReceivesAcceptedQuotes(t *testing.T) {
	sink := &captureSink{}
	pub := &capturePublisher{}
	m := newPipeMetrics()
	p := NewStreamPipeline(sink, m, WithFeed(pub, time.Hour))
	ctx := context.Background()

	p.Start(ctx)
	for _, sym := range []string{"AAPL", "MSFT", "GOOG"} {
		if err := p.Process(ctx, goodQuote(sym)); err != nil {
			t.Fatalf("process %s: %v", sym, err)
		}
	}

	// The flush interval is far away; Stop must drain the staged batch.
	p.Stop()
	if pub.count() != 3 {
		t.Fatalf("expected 3 quotes on the feed after stop, got %d", pub.count())
	}
}
