package service

import (
	"MarketPulse/internal/domain/models"
)

// Analyzer turns a validated OHLCV series into a full market snapshot.
// Implementations are pure: same series in, same snapshot out.
type Analyzer interface {
	Analyze(series *models.Series) (*models.MarketSnapshot, error)
}

// IndicatorEngine computes the indicator columns for a series.
type IndicatorEngine interface {
	ComputeIndicators(series *models.Series) (*models.IndicatorSet, error)
}
