package synthetic

import (
	"math"
	"testing"
	"time"

	"MarketPulse/internal/domain/repository"
)

func TestSeedIsStablePerSymbol(t *testing.T) {
	if Seed("AAPL") != Seed("AAPL") {
		t.Fatal("seed must be stable for the same symbol")
	}
	if Seed("AAPL") == Seed("MSFT") {
		t.Fatal("different symbols should not share a seed")
	}
}

func TestQuoteDeterministicFromFreshAnchor(t *testing.T) {
	at := time.Date(2024, 3, 1, 15, 30, 0, 0, time.UTC)

	g1 := NewGenerator(NewContinuityCache(time.Hour))
	g2 := NewGenerator(NewContinuityCache(time.Hour))

	q1 := g1.Quote("AAPL", at)
	q2 := g2.Quote("AAPL", at)

	if q1.Price != q2.Price || q1.Volume != q2.Volume {
		t.Fatalf("fresh quotes must be reproducible: %+v vs %+v", q1, q2)
	}
	if q1.Source != SourceName {
		t.Fatalf("source = %q", q1.Source)
	}
	if q1.Confidence != Confidence {
		t.Fatalf("confidence = %v", q1.Confidence)
	}
}

func TestQuoteAlwaysPositive(t *testing.T) {
	g := NewGenerator(NewContinuityCache(time.Hour))
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	for _, sym := range []string{"AAPL", "MSFT", "GOOG", "X", "BRK.B", "0001.HK"} {
		for i := 0; i < 50; i++ {
			q := g.Quote(sym, at.Add(time.Duration(i)*time.Minute))
			if q.Price <= 0 || math.IsNaN(q.Price) {
				t.Fatalf("%s: bad price %v at step %d", sym, q.Price, i)
			}
			if q.Volume < 0 {
				t.Fatalf("%s: negative volume %v", sym, q.Volume)
			}
		}
	}
}

func TestQuoteContinuityBoundsSteps(t *testing.T) {
	const maxStep = 0.02
	g := NewGenerator(NewContinuityCache(time.Hour), WithMaxStepPct(maxStep))
	at := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

	prev := g.Quote("TSLA", at)
	for i := 1; i < 100; i++ {
		q := g.Quote("TSLA", at.Add(time.Duration(i)*time.Second))
		jump := math.Abs(q.Price-prev.Price) / prev.Price
		if jump > maxStep+1e-9 {
			t.Fatalf("step %d jumped %.4f%%, bound is %.4f%%", i, jump*100, maxStep*100)
		}
		prev = q
	}
}

func TestQuoteWalksFromExternalAnchor(t *testing.T) {
	cc := NewContinuityCache(time.Hour)
	g := NewGenerator(cc, WithMaxStepPct(0.02))

	// A real quote recorded before the outage anchors the walk.
	cc.Remember("NVDA", 500, time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))

	q := g.Quote("NVDA", time.Date(2024, 3, 1, 9, 1, 0, 0, time.UTC))
	if math.Abs(q.Price-500)/500 > 0.02+1e-9 {
		t.Fatalf("first synthetic quote should step from the anchor, got %v", q.Price)
	}
}

func TestSeriesDeterministic(t *testing.T) {
	g := NewGenerator(NewContinuityCache(time.Hour))
	now := time.Date(2024, 3, 1, 15, 30, 0, 0, time.UTC)

	s1 := g.Series("AAPL", repository.Period3M, now)
	s2 := g.Series("AAPL", repository.Period3M, now)

	if len(s1.Bars) != repository.Period3M.Bars() {
		t.Fatalf("bar count = %d, want %d", len(s1.Bars), repository.Period3M.Bars())
	}
	for i := range s1.Bars {
		if s1.Bars[i] != s2.Bars[i] {
			t.Fatalf("bar %d differs between identical calls", i)
		}
	}
	if err := s1.Validate(); err != nil {
		t.Fatalf("synthetic series should be well-formed: %v", err)
	}
}

func TestSeriesBarsAreCoherent(t *testing.T) {
	g := NewGenerator(NewContinuityCache(time.Hour))
	s := g.Series("MSFT", repository.Period1M, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC))

	for i, b := range s.Bars {
		if b.High < b.Open || b.High < b.Close {
			t.Fatalf("bar %d: high %v below open/close", i, b.High)
		}
		if b.Low > b.Open || b.Low > b.Close {
			t.Fatalf("bar %d: low %v above open/close", i, b.Low)
		}
	}
}

func TestContinuityCacheExpiry(t *testing.T) {
	cc := NewContinuityCache(20 * time.Millisecond)
	cc.Remember("AAPL", 100, time.Now())

	if _, _, ok := cc.Last("AAPL"); !ok {
		t.Fatal("anchor should be present before expiry")
	}

	time.Sleep(30 * time.Millisecond)
	if _, _, ok := cc.Last("AAPL"); ok {
		t.Fatal("anchor should expire")
	}
	if cc.Len() != 0 {
		t.Fatalf("expired anchor should be dropped, len=%d", cc.Len())
	}
}
