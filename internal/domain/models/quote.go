package models

import (
	"fmt"
	"math"
	"time"
)

// Quote is one normalized realtime observation for a symbol.
// Confidence reflects the provider tier and fallback depth; consumers
// treat confidence below 0.5 as "do not alert on this".
type Quote struct {
	Symbol        string
	Timestamp     time.Time
	Price         float64
	Volume        float64
	Change        float64
	ChangePercent float64
	Source        string
	Confidence    float64
}

// IsZero reports whether q is the zero-value sentinel returned when every
// fallback stage is exhausted.
func (q *Quote) IsZero() bool {
	return q.Price == 0 && q.Confidence == 0
}

// ZeroQuote builds the explicit low-confidence sentinel for symbol.
func ZeroQuote(symbol string, now time.Time) *Quote {
	return &Quote{Symbol: symbol, Timestamp: now, Source: "none", Confidence: 0}
}

// Bar is one OHLCV sample.
type Bar struct {
	Date   time.Time
	Open   float64
	High   float64
	Low    float64
	Close  float64
	Volume float64
}

// Series is a chronologically sorted run of bars for one symbol.
// Dates are strictly increasing; duplicates are a contract violation.
type Series struct {
	Symbol string
	Bars   []Bar
}

func (s *Series) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Bars)
}

// Closes returns the close column as a fresh slice.
func (s *Series) Closes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Close
	}
	return out
}

// Volumes returns the volume column as a fresh slice.
func (s *Series) Volumes() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Volume
	}
	return out
}

// Highs returns the high column as a fresh slice.
func (s *Series) Highs() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.High
	}
	return out
}

// Lows returns the low column as a fresh slice.
func (s *Series) Lows() []float64 {
	out := make([]float64, len(s.Bars))
	for i, b := range s.Bars {
		out[i] = b.Low
	}
	return out
}

// LastClose returns the most recent close, or 0 for an empty series.
func (s *Series) LastClose() float64 {
	if s.Len() == 0 {
		return 0
	}
	return s.Bars[len(s.Bars)-1].Close
}

// Validate enforces the series contract: known symbol, strictly increasing
// dates, positive finite prices. Violations surface as InvalidInputError
// because they indicate a caller bug, not a data-quality event.
func (s *Series) Validate() error {
	if s == nil {
		return NewInvalidInput("nil series")
	}
	if s.Symbol == "" {
		return NewInvalidInput("series symbol is empty")
	}
	var prev time.Time
	for i, b := range s.Bars {
		if i > 0 && !b.Date.After(prev) {
			return NewInvalidInput(fmt.Sprintf("bar %d date %s not after %s", i, b.Date.Format("2006-01-02"), prev.Format("2006-01-02")))
		}
		prev = b.Date
		if b.Close <= 0 || math.IsNaN(b.Close) || math.IsInf(b.Close, 0) {
			return NewInvalidInput(fmt.Sprintf("bar %d close %v is not a positive finite price", i, b.Close))
		}
		if b.Volume < 0 || math.IsNaN(b.Volume) {
			return NewInvalidInput(fmt.Sprintf("bar %d volume %v is negative or NaN", i, b.Volume))
		}
	}
	return nil
}

// BatchResult carries the partial outcome of a multi-symbol collection.
// Failed symbols land in Errors and never abort the batch.
type BatchResult struct {
	Quotes []Quote
	Errors map[string]string
}
