package analytics

import (
    "math"

    "MarketPulse/internal/domain/models"
    "MarketPulse/pkg/config"
)

// TrendClassifier votes a direction from the latest indicator values.
type TrendClassifier struct {
    rsiOverbought float64
    rsiOversold   float64
}

func NewTrendClassifier(cfg *config.Config) *TrendClassifier {
    return &TrendClassifier{
        rsiOverbought: cfg.Analysis.Trend.RSIOverbought,
        rsiOversold:   cfg.Analysis.Trend.RSIOversold,
    }
}

// Classify runs three voters over the latest bar: short vs long moving
// average, MACD line vs its signal line, and the RSI momentum zone around
// 50. Voters whose inputs are undefined or dead even abstain; the majority
// wins, ties are neutral, and strength is the winning share of cast votes.
func (t *TrendClassifier) Classify(ind *models.IndicatorSet) models.TrendAnalysis {
    if ind == nil || ind.Length == 0 {
        return models.TrendAnalysis{Trend: models.TrendNeutral}
    }
    last := ind.Length - 1

    var bull, bear, cast int
    var signals []string

    smaS, smaL := ind.SMAShort[last], ind.SMALong[last]
    if !math.IsNaN(smaS) && !math.IsNaN(smaL) && smaS != smaL {
        cast++
        if smaS > smaL {
            bull++
            signals = append(signals, "sma_short_above_long")
        } else {
            bear++
            signals = append(signals, "sma_short_below_long")
        }
    }

    macd, sig := ind.MACD[last], ind.MACDSignal[last]
    if !math.IsNaN(macd) && !math.IsNaN(sig) && macd != sig {
        cast++
        if macd > sig {
            bull++
            signals = append(signals, "macd_above_signal")
        } else {
            bear++
            signals = append(signals, "macd_below_signal")
        }
    }

    r := ind.RSI[last]
    if !math.IsNaN(r) && r != 50 {
        cast++
        switch {
        case r > t.rsiOverbought:
            bull++
            signals = append(signals, "rsi_overbought")
        case r > 50:
            bull++
            signals = append(signals, "rsi_bullish_momentum")
        case r < t.rsiOversold:
            bear++
            signals = append(signals, "rsi_oversold")
        default:
            bear++
            signals = append(signals, "rsi_bearish_momentum")
        }
    }

    out := models.TrendAnalysis{Trend: models.TrendNeutral, ContributingSignals: signals}
    switch {
    case bull > bear:
        out.Trend = models.TrendBullish
        out.Strength = float64(bull) / float64(cast)
    case bear > bull:
        out.Trend = models.TrendBearish
        out.Strength = float64(bear) / float64(cast)
    }
    return out
}
