package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrorKind classifies provider failures.
type ErrorKind string

const (
	ErrTimeout     ErrorKind = "timeout"
	ErrRateLimited ErrorKind = "rate_limited"
	ErrUnavailable ErrorKind = "unavailable"
	ErrInvalidData ErrorKind = "invalid_data"
)

// ProviderError is a classified failure from one quote source attempt.
// RetryAfter is only meaningful for ErrRateLimited and may be zero when the
// provider did not report a window.
type ProviderError struct {
	Provider   string
	Kind       ErrorKind
	RetryAfter time.Duration
	Err        error
}

func (e *ProviderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Kind)
}

func (e *ProviderError) Unwrap() error { return e.Err }

// NewProviderError builds a classified provider failure.
func NewProviderError(provider string, kind ErrorKind, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: kind, Err: err}
}

// NewRateLimited builds a throttle failure carrying the reported window.
func NewRateLimited(provider string, retryAfter time.Duration, err error) *ProviderError {
	return &ProviderError{Provider: provider, Kind: ErrRateLimited, RetryAfter: retryAfter, Err: err}
}

// AsProviderError unwraps err to a ProviderError if one is in the chain.
func AsProviderError(err error) (*ProviderError, bool) {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe, true
	}
	return nil, false
}

// IsRateLimited reports whether err carries an ErrRateLimited classification.
func IsRateLimited(err error) bool {
	pe, ok := AsProviderError(err)
	return ok && pe.Kind == ErrRateLimited
}

// ClassifyStatus maps an HTTP status code onto the provider error taxonomy.
func ClassifyStatus(status int) ErrorKind {
	switch {
	case status == 429:
		return ErrRateLimited
	case status == 400 || status == 404 || status == 422:
		return ErrInvalidData
	case status == 408 || status == 504:
		return ErrTimeout
	default:
		return ErrUnavailable
	}
}

// HasThrottleSignature reports whether an unclassified error message looks
// like provider throttling. Some providers return generic 200 bodies or
// plain errors when rate limiting, so the collector escalates backoff on
// this signature even without a retry-after window.
func HasThrottleSignature(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "too many requests") ||
		strings.Contains(msg, "call frequency") ||
		strings.Contains(msg, "rate limit")
}

// CacheError wraps a cache backend failure. Always non-fatal: callers log
// it, count it, and proceed as if the lookup missed.
type CacheError struct {
	Op  string
	Err error
}

func (e *CacheError) Error() string {
	return fmt.Sprintf("cache %s: %v", e.Op, e.Err)
}

func (e *CacheError) Unwrap() error { return e.Err }

// NewCacheError wraps a backend failure for op.
func NewCacheError(op string, err error) *CacheError {
	return &CacheError{Op: op, Err: err}
}

// InvalidInputError marks a caller contract violation in the analysis
// functions. It surfaces to the caller instead of being coerced.
type InvalidInputError struct {
	Reason string
}

func (e *InvalidInputError) Error() string {
	return fmt.Sprintf("invalid input: %s", e.Reason)
}

// NewInvalidInput builds an InvalidInputError.
func NewInvalidInput(reason string) *InvalidInputError {
	return &InvalidInputError{Reason: reason}
}

// IsInvalidInput reports whether err is a caller contract violation.
func IsInvalidInput(err error) bool {
	var ie *InvalidInputError
	return errors.As(err, &ie)
}
