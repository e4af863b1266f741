package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestWaitIfNeededPacesCalls(t *testing.T) {
	l := New(WithProviderInterval("prov", 50*time.Millisecond))
	ctx := context.Background()

	if err := l.WaitIfNeeded(ctx, "prov"); err != nil {
		t.Fatalf("first call: %v", err)
	}

	start := time.Now()
	if err := l.WaitIfNeeded(ctx, "prov"); err != nil {
		t.Fatalf("second call: %v", err)
	}
	if waited := time.Since(start); waited < 40*time.Millisecond {
		t.Fatalf("second call admitted too early, waited %v", waited)
	}
}

func TestWaitIfNeededIndependentProviders(t *testing.T) {
	l := New(WithProviderInterval("slow", time.Hour))
	ctx := context.Background()

	if err := l.WaitIfNeeded(ctx, "slow"); err != nil {
		t.Fatalf("slow: %v", err)
	}

	// A different provider must not inherit the slow interval.
	start := time.Now()
	if err := l.WaitIfNeeded(ctx, "fast"); err != nil {
		t.Fatalf("fast: %v", err)
	}
	if time.Since(start) > 20*time.Millisecond {
		t.Fatal("fast provider was blocked by slow provider state")
	}
}

func TestRecordThrottleEscalates(t *testing.T) {
	l := New(WithInitialBackoff(40*time.Millisecond), WithMaxBackoff(time.Second))

	before := time.Now()
	l.RecordThrottle("prov", 0)
	s1 := l.Snapshot()["prov"]
	first := s1.BackoffUntil.Sub(before)
	if first < 40*time.Millisecond || first > 60*time.Millisecond {
		t.Fatalf("first window should be the initial backoff, got %v", first)
	}

	before = time.Now()
	l.RecordThrottle("prov", 0)
	second := l.Snapshot()["prov"].BackoffUntil.Sub(before)
	if second < 80*time.Millisecond || second > 100*time.Millisecond {
		t.Fatalf("second throttle should double the window, got %v", second)
	}
}

func TestRecordThrottleCapsAtMax(t *testing.T) {
	l := New(WithInitialBackoff(30*time.Millisecond), WithMaxBackoff(60*time.Millisecond))

	l.RecordThrottle("prov", 0) // 30ms, penalty -> 60ms
	l.RecordThrottle("prov", 0) // 60ms, penalty stays capped
	before := time.Now()
	l.RecordThrottle("prov", 0)
	window := l.Snapshot()["prov"].BackoffUntil.Sub(before)
	if window > 80*time.Millisecond {
		t.Fatalf("window should be capped at max backoff, got %v", window)
	}
}

func TestRecordThrottleHonorsRetryAfter(t *testing.T) {
	l := New(WithInitialBackoff(time.Hour))

	before := time.Now()
	l.RecordThrottle("prov", 30*time.Millisecond)
	window := l.Snapshot()["prov"].BackoffUntil.Sub(before)
	if window < 30*time.Millisecond || window > 50*time.Millisecond {
		t.Fatalf("retry-after should win over penalty, got %v", window)
	}

	time.Sleep(60 * time.Millisecond)
	if l.InBackoff("prov") {
		t.Fatal("backoff should have expired")
	}
}

func TestRecordSuccessResetsEscalation(t *testing.T) {
	l := New(WithInitialBackoff(20*time.Millisecond), WithMaxBackoff(time.Second))

	l.RecordThrottle("prov", 0)
	l.RecordThrottle("prov", 0) // penalty now 80ms for the next offense
	l.RecordSuccess("prov")

	time.Sleep(70 * time.Millisecond) // let the active window expire

	before := time.Now()
	l.RecordThrottle("prov", 0)
	window := l.Snapshot()["prov"].BackoffUntil.Sub(before)
	if window > 40*time.Millisecond {
		t.Fatalf("success should reset penalty to initial, got window %v", window)
	}
}

func TestWaitIfNeededBlocksDuringBackoff(t *testing.T) {
	l := New()
	ctx := context.Background()

	if err := l.WaitIfNeeded(ctx, "prov"); err != nil {
		t.Fatalf("admit: %v", err)
	}
	l.RecordThrottle("prov", 60*time.Millisecond)

	start := time.Now()
	if err := l.WaitIfNeeded(ctx, "prov"); err != nil {
		t.Fatalf("wait: %v", err)
	}
	if waited := time.Since(start); waited < 50*time.Millisecond {
		t.Fatalf("call admitted inside backoff window after %v", waited)
	}
}

func TestWaitIfNeededCancellable(t *testing.T) {
	l := New()
	l.RecordThrottle("prov", time.Hour)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	if err := l.WaitIfNeeded(ctx, "prov"); err != context.DeadlineExceeded {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestSnapshotCountsThrottles(t *testing.T) {
	l := New(WithInitialBackoff(time.Millisecond))
	l.RecordThrottle("a", 0)
	l.RecordThrottle("a", 0)
	l.RecordThrottle("b", 0)

	snap := l.Snapshot()
	if snap["a"].Throttles != 2 || snap["b"].Throttles != 1 {
		t.Fatalf("throttle counts wrong: %+v", snap)
	}
}
