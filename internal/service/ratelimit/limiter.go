package ratelimit

import (
	"context"
	"sync"
	"time"
)

// providerState tracks pacing for one provider. lastCall advances when a
// call is admitted, backoffUntil blocks admission entirely, and penalty is
// the next backoff window applied when the provider throttles us without
// saying for how long.
type providerState struct {
	minInterval  time.Duration
	lastCall     time.Time
	backoffUntil time.Time
	penalty      time.Duration
	throttles    int64
}

// ProviderStatus is a read-only view of one provider's pacing state.
type ProviderStatus struct {
	MinInterval  time.Duration `json:"min_interval"`
	LastCall     time.Time     `json:"last_call"`
	BackoffUntil time.Time     `json:"backoff_until"`
	InBackoff    bool          `json:"in_backoff"`
	Throttles    int64         `json:"throttles"`
}

// Limiter gates outbound provider calls. Each provider gets an independent
// minimum interval between calls plus an escalating backoff window raised
// on throttle responses.
type Limiter struct {
	mu     sync.Mutex
	states map[string]*providerState

	initialBackoff time.Duration
	maxBackoff     time.Duration
}

// Option configures Limiter.
type Option func(*Limiter)

// WithInitialBackoff sets the first penalty window raised on a throttle
// without an explicit retry-after.
func WithInitialBackoff(d time.Duration) Option {
	return func(l *Limiter) {
		l.initialBackoff = d
	}
}

// WithMaxBackoff caps the escalating penalty window.
func WithMaxBackoff(d time.Duration) Option {
	return func(l *Limiter) {
		l.maxBackoff = d
	}
}

// WithProviderInterval sets the minimum spacing between calls to provider.
func WithProviderInterval(provider string, d time.Duration) Option {
	return func(l *Limiter) {
		l.state(provider).minInterval = d
	}
}

// New creates a limiter.
func New(opts ...Option) *Limiter {
	l := &Limiter{
		states:         make(map[string]*providerState),
		initialBackoff: 60 * time.Second,
		maxBackoff:     10 * time.Minute,
	}

	for _, opt := range opts {
		opt(l)
	}
	return l
}

// state returns the provider entry, creating it on first use. Callers must
// not hold l.mu except during construction.
func (l *Limiter) state(provider string) *providerState {
	s, ok := l.states[provider]
	if !ok {
		s = &providerState{penalty: l.initialBackoff}
		l.states[provider] = s
	}
	if s.penalty == 0 {
		s.penalty = l.initialBackoff
	}
	return s
}

// SetMinInterval adjusts the spacing for provider at runtime.
func (l *Limiter) SetMinInterval(provider string, d time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state(provider).minInterval = d
}

// WaitIfNeeded blocks until provider may be called again, honoring both the
// minimum interval and any active backoff window. It stamps the admission
// time on success so the next caller is paced from this call.
func (l *Limiter) WaitIfNeeded(ctx context.Context, provider string) error {
	for {
		l.mu.Lock()
		s := l.state(provider)
		now := time.Now()

		readyAt := s.lastCall.Add(s.minInterval)
		if s.backoffUntil.After(readyAt) {
			readyAt = s.backoffUntil
		}

		if !now.Before(readyAt) {
			s.lastCall = now
			l.mu.Unlock()
			return nil
		}
		wait := readyAt.Sub(now)
		l.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			// Re-check state: backoff may have been extended while waiting.
		}
	}
}

// RecordThrottle raises the backoff window for provider. When the provider
// supplied a retry-after it wins; otherwise the penalty window is applied
// and doubled for the next offense, up to the cap.
func (l *Limiter) RecordThrottle(provider string, retryAfter time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	s := l.state(provider)
	s.throttles++
	now := time.Now()

	window := retryAfter
	if window <= 0 {
		window = s.penalty
		s.penalty *= 2
		if s.penalty > l.maxBackoff {
			s.penalty = l.maxBackoff
		}
	}

	until := now.Add(window)
	if until.After(s.backoffUntil) {
		s.backoffUntil = until
	}
}

// RecordSuccess resets the penalty escalation for provider after a clean
// call. An already-expired backoff window is left as-is.
func (l *Limiter) RecordSuccess(provider string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.state(provider).penalty = l.initialBackoff
}

// InBackoff reports whether provider is currently blocked by a backoff
// window, ignoring the regular interval pacing.
func (l *Limiter) InBackoff(provider string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return time.Now().Before(l.state(provider).backoffUntil)
}

// Snapshot returns the current pacing state of every known provider.
func (l *Limiter) Snapshot() map[string]ProviderStatus {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := time.Now()
	out := make(map[string]ProviderStatus, len(l.states))
	for name, s := range l.states {
		out[name] = ProviderStatus{
			MinInterval:  s.minInterval,
			LastCall:     s.lastCall,
			BackoffUntil: s.backoffUntil,
			InBackoff:    now.Before(s.backoffUntil),
			Throttles:    s.throttles,
		}
	}
	return out
}
