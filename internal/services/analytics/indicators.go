package analytics

import (
    "math"

    "MarketPulse/internal/domain/models"
    domsvc "MarketPulse/internal/domain/service"
    "MarketPulse/pkg/config"
)

// IndicatorEngine computes the indicator columns for one series. It keeps
// no state between calls, so a single instance is safe for concurrent use
// across symbols.
type IndicatorEngine struct {
    minWindow    int
    rsiPeriod    int
    macdFast     int
    macdSlow     int
    macdSignal   int
    bbWindow     int
    bbK          float64
    smaShort     int
    smaLong      int
    volumeWindow int
}

func NewIndicatorEngine(cfg *config.Config) *IndicatorEngine {
    a := cfg.Analysis
    return &IndicatorEngine{
        minWindow:    a.MinWindow,
        rsiPeriod:    a.RSIPeriod,
        macdFast:     a.MACDFast,
        macdSlow:     a.MACDSlow,
        macdSignal:   a.MACDSignal,
        bbWindow:     a.BollingerWindow,
        bbK:          a.BollingerK,
        smaShort:     a.SMAShort,
        smaLong:      a.SMALong,
        volumeWindow: a.VolumeWindow,
    }
}

// ComputeIndicators builds the full indicator set for series. A series
// shorter than the minimum window yields all-NaN columns, which callers
// treat as insufficient data rather than an error. Rolling-window columns
// are NaN until their window fills; the EMA family is seeded at the first
// bar and defined from index 0.
func (e *IndicatorEngine) ComputeIndicators(series *models.Series) (*models.IndicatorSet, error) {
    if err := series.Validate(); err != nil {
        return nil, err
    }

    n := series.Len()
    closes := series.Closes()
    volumes := series.Volumes()

    set := &models.IndicatorSet{Length: n, Close: closes}
    if n < e.minWindow {
        set.RSI = nanSlice(n)
        set.MACD = nanSlice(n)
        set.MACDSignal = nanSlice(n)
        set.MACDHist = nanSlice(n)
        set.BBUpper = nanSlice(n)
        set.BBMiddle = nanSlice(n)
        set.BBLower = nanSlice(n)
        set.SMAShort = nanSlice(n)
        set.SMALong = nanSlice(n)
        set.EMAFast = nanSlice(n)
        set.EMASlow = nanSlice(n)
        set.OBV = nanSlice(n)
        set.VolumeSMA = nanSlice(n)
        return set, nil
    }

    set.RSI = rsi(closes, e.rsiPeriod)

    set.EMAFast = ema(closes, e.macdFast)
    set.EMASlow = ema(closes, e.macdSlow)
    macd := make([]float64, n)
    for i := range macd {
        macd[i] = set.EMAFast[i] - set.EMASlow[i]
    }
    set.MACD = macd
    set.MACDSignal = ema(macd, e.macdSignal)
    hist := make([]float64, n)
    for i := range hist {
        hist[i] = macd[i] - set.MACDSignal[i]
    }
    set.MACDHist = hist

    set.BBMiddle = sma(closes, e.bbWindow)
    std := rollingPopStd(closes, e.bbWindow)
    upper := make([]float64, n)
    lower := make([]float64, n)
    for i := range upper {
        upper[i] = set.BBMiddle[i] + e.bbK*std[i]
        lower[i] = set.BBMiddle[i] - e.bbK*std[i]
    }
    set.BBUpper = upper
    set.BBLower = lower

    set.SMAShort = sma(closes, e.smaShort)
    set.SMALong = sma(closes, e.smaLong)
    set.OBV = obv(closes, volumes)
    set.VolumeSMA = sma(volumes, e.volumeWindow)

    return set, nil
}

func nanSlice(n int) []float64 {
    out := make([]float64, n)
    for i := range out {
        out[i] = math.NaN()
    }
    return out
}

// sma computes the simple moving average; the first window-1 entries are NaN.
func sma(xs []float64, window int) []float64 {
    out := make([]float64, len(xs))
    sum := 0.0
    for i, x := range xs {
        sum += x
        if i >= window {
            sum -= xs[i-window]
        }
        if i < window-1 {
            out[i] = math.NaN()
            continue
        }
        out[i] = sum / float64(window)
    }
    return out
}

// ema computes the exponential moving average seeded at the first value.
func ema(xs []float64, period int) []float64 {
    out := make([]float64, len(xs))
    if len(xs) == 0 {
        return out
    }
    alpha := 2.0 / (float64(period) + 1)
    out[0] = xs[0]
    for i := 1; i < len(xs); i++ {
        out[i] = alpha*xs[i] + (1-alpha)*out[i-1]
    }
    return out
}

// rsi computes the Wilder-smoothed relative strength index. The first
// period entries are NaN; a flat stretch settles at 50, an all-gain run
// at 100 and an all-loss run at 0.
func rsi(closes []float64, period int) []float64 {
    n := len(closes)
    out := nanSlice(n)
    if n <= period {
        return out
    }

    var avgGain, avgLoss float64
    for i := 1; i <= period; i++ {
        d := closes[i] - closes[i-1]
        if d > 0 {
            avgGain += d
        } else {
            avgLoss -= d
        }
    }
    avgGain /= float64(period)
    avgLoss /= float64(period)
    out[period] = rsiValue(avgGain, avgLoss)

    for i := period + 1; i < n; i++ {
        d := closes[i] - closes[i-1]
        gain, loss := 0.0, 0.0
        if d > 0 {
            gain = d
        } else {
            loss = -d
        }
        avgGain = (avgGain*float64(period-1) + gain) / float64(period)
        avgLoss = (avgLoss*float64(period-1) + loss) / float64(period)
        out[i] = rsiValue(avgGain, avgLoss)
    }
    return out
}

func rsiValue(avgGain, avgLoss float64) float64 {
    if avgGain == 0 && avgLoss == 0 {
        return 50
    }
    if avgLoss == 0 {
        return 100
    }
    return 100 - 100/(1+avgGain/avgLoss)
}

// obv accumulates volume signed by the close-to-close direction.
func obv(closes, volumes []float64) []float64 {
    out := make([]float64, len(closes))
    for i := 1; i < len(closes); i++ {
        switch {
        case closes[i] > closes[i-1]:
            out[i] = out[i-1] + volumes[i]
        case closes[i] < closes[i-1]:
            out[i] = out[i-1] - volumes[i]
        default:
            out[i] = out[i-1]
        }
    }
    return out
}

// rollingPopStd computes the trailing population standard deviation used
// for the Bollinger envelope; the first window-1 entries are NaN.
func rollingPopStd(xs []float64, window int) []float64 {
    out := make([]float64, len(xs))
    for i := range xs {
        if i < window-1 {
            out[i] = math.NaN()
            continue
        }
        m := 0.0
        for j := i - window + 1; j <= i; j++ {
            m += xs[j]
        }
        m /= float64(window)
        v := 0.0
        for j := i - window + 1; j <= i; j++ {
            d := xs[j] - m
            v += d * d
        }
        out[i] = math.Sqrt(v / float64(window))
    }
    return out
}

var _ domsvc.IndicatorEngine = (*IndicatorEngine)(nil)
