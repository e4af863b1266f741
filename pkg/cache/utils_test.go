package cache

import (
	"testing"
	"time"
)

func TestTimeBucketSameWindow(t *testing.T) {
	base := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	ttl := time.Minute

	b1 := TimeBucket(base, ttl)
	b2 := TimeBucket(base.Add(59*time.Second), ttl)
	if b1 != b2 {
		t.Fatalf("expected same bucket inside ttl window, got %d and %d", b1, b2)
	}

	b3 := TimeBucket(base.Add(time.Minute), ttl)
	if b3 != b1+1 {
		t.Fatalf("expected next bucket after ttl, got %d (prev %d)", b3, b1)
	}
}

func TestTimeBucketZeroTTL(t *testing.T) {
	now := time.Date(2024, 3, 1, 10, 0, 30, 0, time.UTC)
	if got := TimeBucket(now, 0); got != now.Unix() {
		t.Fatalf("zero ttl should fall back to unix seconds, got %d", got)
	}
}

func TestQuoteKeyStableWithinBucket(t *testing.T) {
	ttl := 60 * time.Second
	at := time.Date(2024, 3, 1, 10, 0, 5, 0, time.UTC)

	k1 := QuoteKey("AAPL", TimeBucket(at, ttl))
	k2 := QuoteKey("AAPL", TimeBucket(at.Add(30*time.Second), ttl))
	if k1 != k2 {
		t.Fatalf("keys diverged inside one bucket: %q vs %q", k1, k2)
	}

	k3 := QuoteKey("MSFT", TimeBucket(at, ttl))
	if k3 == k1 {
		t.Fatalf("different symbols must not collide: %q", k3)
	}
}

func TestSeriesKeyIncludesPeriod(t *testing.T) {
	b := int64(123)
	if SeriesKey("AAPL", "3mo", b) == SeriesKey("AAPL", "1y", b) {
		t.Fatal("series keys for different periods must differ")
	}
}
