package analytics

import (
    "math"
    "testing"
    "time"

    "github.com/creasty/defaults"

    "MarketPulse/internal/domain/models"
    "MarketPulse/pkg/config"
)

func testConfig(t *testing.T) *config.Config {
    t.Helper()
    cfg := &config.Config{}
    if err := defaults.Set(cfg); err != nil {
        t.Fatalf("defaults: %v", err)
    }
    return cfg
}

func testSeries(t *testing.T, closes, volumes []float64) *models.Series {
    t.Helper()
    start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
    bars := make([]models.Bar, len(closes))
    for i, c := range closes {
        v := 1000.0
        if volumes != nil {
            v = volumes[i]
        }
        bars[i] = models.Bar{
            Date:   start.AddDate(0, 0, i),
            Open:   c,
            High:   c,
            Low:    c,
            Close:  c,
            Volume: v,
        }
    }
    return &models.Series{Symbol: "TEST", Bars: bars}
}

func flatCloses(n int, price float64) []float64 {
    out := make([]float64, n)
    for i := range out {
        out[i] = price
    }
    return out
}

func risingCloses(n int, start, step float64) []float64 {
    out := make([]float64, n)
    for i := range out {
        out[i] = start + float64(i)*step
    }
    return out
}

func allNaN(xs []float64) bool {
    for _, x := range xs {
        if !math.IsNaN(x) {
            return false
        }
    }
    return true
}

func TestComputeIndicatorsShortSeriesAllNaN(t *testing.T) {
    cfg := testConfig(t)
    eng := NewIndicatorEngine(cfg)

    series := testSeries(t, risingCloses(10, 100, 1), nil)
    set, err := eng.ComputeIndicators(series)
    if err != nil {
        t.Fatalf("unexpected error: %v", err)
    }
    if set.Length != 10 {
        t.Fatalf("length = %d, want 10", set.Length)
    }
    for name, col := range map[string][]float64{
        "rsi":         set.RSI,
        "macd":        set.MACD,
        "macd_signal": set.MACDSignal,
        "macd_hist":   set.MACDHist,
        "bb_upper":    set.BBUpper,
        "bb_middle":   set.BBMiddle,
        "bb_lower":    set.BBLower,
        "sma_short":   set.SMAShort,
        "sma_long":    set.SMALong,
        "ema_fast":    set.EMAFast,
        "ema_slow":    set.EMASlow,
        "obv":         set.OBV,
        "volume_sma":  set.VolumeSMA,
    } {
        if len(col) != 10 {
            t.Fatalf("%s length = %d, want 10", name, len(col))
        }
        if !allNaN(col) {
            t.Fatalf("%s should be all NaN below the minimum window", name)
        }
    }
}

func TestRSIConventions(t *testing.T) {
    period := 14

    flat := rsi(flatCloses(30, 100), period)
    for i := 0; i < period; i++ {
        if !math.IsNaN(flat[i]) {
            t.Fatalf("rsi[%d] = %v, want NaN before the period fills", i, flat[i])
        }
    }
    if got := flat[len(flat)-1]; got != 50 {
        t.Fatalf("flat rsi = %v, want 50", got)
    }

    up := rsi(risingCloses(30, 100, 1), period)
    if got := up[len(up)-1]; got != 100 {
        t.Fatalf("all-gain rsi = %v, want 100", got)
    }

    down := rsi(risingCloses(30, 100, -1), period)
    if got := down[len(down)-1]; got != 0 {
        t.Fatalf("all-loss rsi = %v, want 0", got)
    }
}

func TestSMAWindowConvention(t *testing.T) {
    xs := []float64{1, 2, 3, 4, 5}
    out := sma(xs, 3)
    if !math.IsNaN(out[0]) || !math.IsNaN(out[1]) {
        t.Fatalf("first window-1 entries must be NaN, got %v", out[:2])
    }
    if out[2] != 2 || out[3] != 3 || out[4] != 4 {
        t.Fatalf("sma values = %v", out[2:])
    }
}

func TestEMASeededAtFirstValue(t *testing.T) {
    xs := []float64{10, 10, 10, 10}
    out := ema(xs, 3)
    for i, v := range out {
        if v != 10 {
            t.Fatalf("ema[%d] = %v, want 10", i, v)
        }
    }

    rising := ema(risingCloses(20, 100, 1), 5)
    if math.IsNaN(rising[0]) || rising[0] != 100 {
        t.Fatalf("ema seed = %v, want first value", rising[0])
    }
    last := len(rising) - 1
    if rising[last] >= 100+float64(last) {
        t.Fatalf("ema must lag a rising series, got %v at close %v", rising[last], 100+float64(last))
    }
}

func TestOBVAccumulation(t *testing.T) {
    closes := []float64{10, 11, 11, 9, 12}
    volumes := []float64{100, 200, 300, 400, 500}
    out := obv(closes, volumes)
    want := []float64{0, 200, 200, -200, 300}
    for i := range want {
        if out[i] != want[i] {
            t.Fatalf("obv[%d] = %v, want %v", i, out[i], want[i])
        }
    }
}

func TestBollingerFlatCollapsesToMiddle(t *testing.T) {
    cfg := testConfig(t)
    cfg.Analysis.MinWindow = 20
    eng := NewIndicatorEngine(cfg)

    set, err := eng.ComputeIndicators(testSeries(t, flatCloses(30, 100), nil))
    if err != nil {
        t.Fatalf("unexpected error: %v", err)
    }
    last := set.Length - 1
    if set.BBMiddle[last] != 100 || set.BBUpper[last] != 100 || set.BBLower[last] != 100 {
        t.Fatalf("flat bands = %v/%v/%v, want all 100",
            set.BBLower[last], set.BBMiddle[last], set.BBUpper[last])
    }
    if !math.IsNaN(set.BBMiddle[0]) {
        t.Fatalf("bb middle must be NaN before the window fills")
    }
}
