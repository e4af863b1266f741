package analytics

import (
    "math"

    "MarketPulse/internal/domain/models"
    "MarketPulse/internal/services/features"
    "MarketPulse/pkg/config"
)

// RegimeClassifier buckets the trailing window into one of four
// volatility/trend regimes.
type RegimeClassifier struct {
    window         int
    volQuantile    float64
    trendThreshold float64
}

func NewRegimeClassifier(cfg *config.Config) *RegimeClassifier {
    r := cfg.Analysis.Regime
    return &RegimeClassifier{
        window:         r.Window,
        volQuantile:    r.VolQuantile,
        trendThreshold: r.TrendThreshold,
    }
}

// Classify ranks the trailing window's return volatility against the
// series' own rolling-volatility history and measures how linear the drift
// is over the same window. Too little history yields the unknown regime
// with zero confidence.
func (c *RegimeClassifier) Classify(series *models.Series) models.MarketRegime {
    out := models.MarketRegime{Regime: models.RegimeUnknown}

    closes := series.Closes()
    rets := features.Returns(closes)
    if len(rets) < c.window+1 {
        return out
    }

    volHist := features.RollingStd(rets, c.window)
    defined := volHist[c.window-1:]
    cur := defined[len(defined)-1]

    below := 0
    for _, v := range defined {
        if v < cur {
            below++
        }
    }
    rank := float64(below) / float64(len(defined))
    highVol := rank >= c.volQuantile

    tail := closes[len(closes)-c.window:]
    strength := math.Abs(features.TrendCorrelation(tail))
    trending := strength >= c.trendThreshold

    switch {
    case trending && highVol:
        out.Regime = models.RegimeTrendingHighVol
    case trending:
        out.Regime = models.RegimeTrendingLowVol
    case highVol:
        out.Regime = models.RegimeRangingHighVol
    default:
        out.Regime = models.RegimeRangingLowVol
    }
    out.Volatility = cur
    out.TrendStrength = strength

    var volConf float64
    if highVol {
        volConf = (rank - c.volQuantile) / (1 - c.volQuantile)
    } else {
        volConf = (c.volQuantile - rank) / c.volQuantile
    }
    var trendConf float64
    if trending {
        trendConf = (strength - c.trendThreshold) / (1 - c.trendThreshold)
    } else {
        trendConf = (c.trendThreshold - strength) / c.trendThreshold
    }
    out.Confidence = clamp01((volConf + trendConf) / 2)
    return out
}
