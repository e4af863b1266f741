package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"MarketPulse/internal/domain/models"
)

func failSymbol(bad string, err error) func(string) error {
	return func(symbol string) error {
		if symbol == bad {
			return err
		}
		return nil
	}
}

func TestCollectManyPreservesOrder(t *testing.T) {
	src := &fakeSource{name: "one", tier: 0.95}
	env := newCollectorEnv(t, testConfig(), src)

	symbols := []string{"AAPL", "MSFT", "GOOG"}
	res := env.collector.CollectMany(context.Background(), symbols)

	if len(res.Quotes) != len(symbols) {
		t.Fatalf("expected %d quotes, got %d", len(symbols), len(res.Quotes))
	}
	for i, q := range res.Quotes {
		if q.Symbol != symbols[i] {
			t.Fatalf("order broken at %d: got %q want %q", i, q.Symbol, symbols[i])
		}
	}
	if res.Errors != nil {
		t.Fatalf("clean batch should carry a nil error map, got %v", res.Errors)
	}
}

func TestCollectManyPartialFailure(t *testing.T) {
	cfg := testConfig()
	cfg.Collector.FallbackToMock = false
	src := &fakeSource{
		name: "one",
		tier: 0.95,
		fail: failSymbol("BAD", models.NewProviderError("one", models.ErrInvalidData, errors.New("unknown symbol"))),
	}
	env := newCollectorEnv(t, cfg, src)

	res := env.collector.CollectMany(context.Background(), []string{"AAPL", "BAD", "MSFT"})

	if len(res.Quotes) != 2 {
		t.Fatalf("expected two good quotes, got %d", len(res.Quotes))
	}
	if res.Quotes[0].Symbol != "AAPL" || res.Quotes[1].Symbol != "MSFT" {
		t.Fatalf("good quotes out of order: %+v", res.Quotes)
	}
	if msg, ok := res.Errors["BAD"]; !ok || msg != zeroQuoteMsg {
		t.Fatalf("failed symbol should land in Errors with the sentinel message, got %v", res.Errors)
	}
}

func TestCollectManyCancellationMarksRemaining(t *testing.T) {
	cfg := testConfig()
	cfg.Collector.SymbolDelay = 60 * time.Millisecond
	src := &fakeSource{name: "one", tier: 0.95}
	env := newCollectorEnv(t, cfg, src)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	res := env.collector.CollectMany(ctx, []string{"AAPL", "MSFT", "GOOG"})

	if len(res.Quotes) != 1 || res.Quotes[0].Symbol != "AAPL" {
		t.Fatalf("first symbol should complete before the deadline, got %+v", res.Quotes)
	}
	// Every symbol must land somewhere: the unprocessed tail goes to Errors.
	for _, sym := range []string{"MSFT", "GOOG"} {
		if _, ok := res.Errors[sym]; !ok {
			t.Fatalf("cancelled symbol %s missing from Errors: %v", sym, res.Errors)
		}
	}
}

func TestCollectManyAsyncPreservesInputOrder(t *testing.T) {
	cfg := testConfig()
	cfg.Collector.MaxConcurrent = 3
	cfg.Collector.FallbackToMock = false
	src := &fakeSource{
		name:  "one",
		tier:  0.95,
		delay: 5 * time.Millisecond,
		fail:  failSymbol("BAD", models.NewProviderError("one", models.ErrUnavailable, errors.New("down"))),
	}
	env := newCollectorEnv(t, cfg, src)

	symbols := []string{"AAA", "BBB", "BAD", "CCC", "DDD", "EEE"}
	res := env.collector.CollectManyAsync(context.Background(), symbols)

	want := []string{"AAA", "BBB", "CCC", "DDD", "EEE"}
	if len(res.Quotes) != len(want) {
		t.Fatalf("expected %d quotes, got %d", len(want), len(res.Quotes))
	}
	for i, q := range res.Quotes {
		if q.Symbol != want[i] {
			t.Fatalf("input order broken at %d: got %q want %q", i, q.Symbol, want[i])
		}
	}
	if msg := res.Errors["BAD"]; msg != zeroQuoteMsg {
		t.Fatalf("failed symbol should land in Errors, got %v", res.Errors)
	}
}

func TestCollectManyAsyncBoundsConcurrency(t *testing.T) {
	cfg := testConfig()
	cfg.Collector.MaxConcurrent = 2
	src := &fakeSource{name: "one", tier: 0.95, delay: 20 * time.Millisecond}
	env := newCollectorEnv(t, cfg, src)

	symbols := []string{"S1", "S2", "S3", "S4", "S5", "S6", "S7", "S8"}
	res := env.collector.CollectManyAsync(context.Background(), symbols)

	if len(res.Quotes) != len(symbols) {
		t.Fatalf("expected %d quotes, got %d", len(symbols), len(res.Quotes))
	}
	src.mu.Lock()
	maxActive := src.maxActive
	src.mu.Unlock()
	if maxActive > 2 {
		t.Fatalf("worker pool exceeded its bound: %d concurrent fetches", maxActive)
	}
}

func TestCollectManyAsyncEmptyInput(t *testing.T) {
	env := newCollectorEnv(t, testConfig(), &fakeSource{name: "one", tier: 0.95})

	res := env.collector.CollectManyAsync(context.Background(), nil)
	if len(res.Quotes) != 0 || res.Errors != nil {
		t.Fatalf("empty batch should produce an empty result, got %+v", res)
	}
}
