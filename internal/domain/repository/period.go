package repository

// Period represents a historical lookback range for series fetches.
type Period string

const (
	Period5D Period = "5d"
	Period1M Period = "1mo"
	Period3M Period = "3mo"
	Period6M Period = "6mo"
	Period1Y Period = "1y"
)

// IsValidPeriod returns true if p is a supported period.
func IsValidPeriod(p Period) bool {
	switch p {
	case Period5D, Period1M, Period3M, Period6M, Period1Y:
		return true
	default:
		return false
	}
}

// DefaultPeriod returns the default lookback range.
func DefaultPeriod() Period { return Period3M }

// NormalizePeriod converts a raw string to a valid period (or default).
func NormalizePeriod(s string) Period {
	if s == "" {
		return DefaultPeriod()
	}
	p := Period(s)
	if IsValidPeriod(p) {
		return p
	}
	return DefaultPeriod()
}

// Days returns the calendar span of the period, used to build from/to
// request windows.
func (p Period) Days() int {
	switch p {
	case Period5D:
		return 7
	case Period1M:
		return 31
	case Period3M:
		return 92
	case Period6M:
		return 183
	case Period1Y:
		return 366
	default:
		return 92
	}
}

// Bars returns the approximate trading-bar count the period covers at
// daily resolution, used to size synthetic fallback series.
func (p Period) Bars() int {
	switch p {
	case Period5D:
		return 5
	case Period1M:
		return 22
	case Period3M:
		return 64
	case Period6M:
		return 128
	case Period1Y:
		return 256
	default:
		return 64
	}
}
