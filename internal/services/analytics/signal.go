package analytics

import (
    "math"

    "MarketPulse/internal/domain/models"
    "MarketPulse/pkg/config"
)

// SignalGenerator turns the latest indicator values into a weighted
// buy/sell/hold call.
type SignalGenerator struct {
    rsiWeight     float64
    macdWeight    float64
    bbWeight      float64
    rsiOverbought float64
    rsiOversold   float64
}

func NewSignalGenerator(cfg *config.Config) *SignalGenerator {
    return &SignalGenerator{
        rsiWeight:     cfg.Analysis.Signal.RSIWeight,
        macdWeight:    cfg.Analysis.Signal.MACDWeight,
        bbWeight:      cfg.Analysis.Signal.BollingerWeight,
        rsiOverbought: cfg.Analysis.Trend.RSIOverbought,
        rsiOversold:   cfg.Analysis.Trend.RSIOversold,
    }
}

// Generate weighs the qualifying conditions on the latest bar: RSI past an
// extreme, a MACD cross confirmed by its histogram, and price at or through
// a Bollinger band edge. The heavier side wins; a dead heat holds with
// confidence equal to the (zero) margin.
func (g *SignalGenerator) Generate(ind *models.IndicatorSet) models.Signal {
    sig := models.Signal{Action: models.ActionHold}
    if ind == nil || ind.Length == 0 {
        return sig
    }
    last := ind.Length - 1

    var buy, sell float64
    var reasons []string

    r := ind.RSI[last]
    if !math.IsNaN(r) {
        if r < g.rsiOversold {
            buy += g.rsiWeight
            reasons = append(reasons, "rsi_oversold")
        } else if r > g.rsiOverbought {
            sell += g.rsiWeight
            reasons = append(reasons, "rsi_overbought")
        }
    }

    macd, msig, hist := ind.MACD[last], ind.MACDSignal[last], ind.MACDHist[last]
    if !math.IsNaN(macd) && !math.IsNaN(msig) && !math.IsNaN(hist) {
        if macd > msig && hist > 0 {
            buy += g.macdWeight
            reasons = append(reasons, "macd_bullish")
        } else if macd < msig && hist < 0 {
            sell += g.macdWeight
            reasons = append(reasons, "macd_bearish")
        }
    }

    price, upper, lower := ind.Close[last], ind.BBUpper[last], ind.BBLower[last]
    if !math.IsNaN(upper) && !math.IsNaN(lower) && upper > lower {
        if price <= lower {
            buy += g.bbWeight
            reasons = append(reasons, "price_at_lower_band")
        } else if price >= upper {
            sell += g.bbWeight
            reasons = append(reasons, "price_at_upper_band")
        }
    }

    sig.BuyScore = buy
    sig.SellScore = sell
    sig.Reasons = reasons
    switch {
    case buy > sell:
        sig.Action = models.ActionBuy
        sig.Confidence = clamp01(buy)
    case sell > buy:
        sig.Action = models.ActionSell
        sig.Confidence = clamp01(sell)
    default:
        sig.Confidence = clamp01(math.Abs(buy - sell))
    }
    return sig
}

func clamp01(x float64) float64 {
    if x < 0 {
        return 0
    }
    if x > 1 {
        return 1
    }
    return x
}
