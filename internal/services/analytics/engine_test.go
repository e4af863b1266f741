package analytics

import (
    "math"
    "reflect"
    "testing"
    "time"

    "MarketPulse/internal/domain/models"
)

func TestClassifyTrendFlatNeutral(t *testing.T) {
    cfg := testConfig(t)
    cfg.Analysis.MinWindow = 20
    cfg.Analysis.SMAShort = 5
    cfg.Analysis.SMALong = 20

    set, err := NewIndicatorEngine(cfg).ComputeIndicators(testSeries(t, flatCloses(30, 100), nil))
    if err != nil {
        t.Fatalf("indicators: %v", err)
    }
    trend := NewTrendClassifier(cfg).Classify(set)
    if trend.Trend != models.TrendNeutral {
        t.Fatalf("flat trend = %s, want neutral", trend.Trend)
    }
    if trend.Strength != 0 {
        t.Fatalf("flat strength = %v, want 0", trend.Strength)
    }
}

func TestClassifyTrendRisingBullish(t *testing.T) {
    cfg := testConfig(t)
    cfg.Analysis.MinWindow = 20
    cfg.Analysis.SMAShort = 5
    cfg.Analysis.SMALong = 20

    set, err := NewIndicatorEngine(cfg).ComputeIndicators(testSeries(t, risingCloses(30, 100, 1), nil))
    if err != nil {
        t.Fatalf("indicators: %v", err)
    }

    trend := NewTrendClassifier(cfg).Classify(set)
    if trend.Trend != models.TrendBullish {
        t.Fatalf("rising trend = %s, want bullish", trend.Trend)
    }
    if trend.Strength != 1 {
        t.Fatalf("rising strength = %v, want 1 (unanimous)", trend.Strength)
    }

    sig := NewSignalGenerator(cfg).Generate(set)
    if sig.BuyScore <= 0 {
        t.Fatalf("rising series must carry buy evidence, got BuyScore %v", sig.BuyScore)
    }
    found := false
    for _, r := range sig.Reasons {
        if r == "macd_bullish" {
            found = true
        }
    }
    if !found {
        t.Fatalf("reasons %v must include macd_bullish", sig.Reasons)
    }
}

func TestGenerateSignalTieHolds(t *testing.T) {
    set := &models.IndicatorSet{
        Length:     1,
        Close:      []float64{100},
        RSI:        []float64{85},
        MACD:       []float64{1},
        MACDSignal: []float64{0.5},
        MACDHist:   []float64{0.5},
        BBUpper:    []float64{200},
        BBLower:    []float64{50},
    }
    sig := NewSignalGenerator(testConfig(t)).Generate(set)
    if sig.Action != models.ActionHold {
        t.Fatalf("tied evidence action = %s, want hold", sig.Action)
    }
    if sig.Confidence != 0 {
        t.Fatalf("tied confidence = %v, want 0", sig.Confidence)
    }
    if sig.BuyScore != 0.3 || sig.SellScore != 0.3 {
        t.Fatalf("scores = %v/%v, want 0.3/0.3", sig.BuyScore, sig.SellScore)
    }
}

func TestDetectAnomaliesVolumeSpikeExactlyOne(t *testing.T) {
    cfg := testConfig(t)
    volumes := make([]float64, 30)
    for i := range volumes {
        volumes[i] = 1000
    }
    volumes[29] = 10_000_000
    series := testSeries(t, flatCloses(30, 1000), volumes)

    ind, err := NewIndicatorEngine(cfg).ComputeIndicators(series)
    if err != nil {
        t.Fatalf("indicators: %v", err)
    }

    spikes := 0
    for _, a := range NewAnomalyDetector(cfg).Detect(series, ind) {
        switch a.Type {
        case models.AnomalyVolumeSpike:
            spikes++
            if a.Severity != models.SeverityHigh {
                t.Fatalf("volume spike severity = %s, want high", a.Severity)
            }
        case models.AnomalyPriceSpike, models.AnomalyRSIExtreme:
            t.Fatalf("unexpected %s on a flat-price series", a.Type)
        }
    }
    if spikes != 1 {
        t.Fatalf("volume spikes = %d, want exactly 1", spikes)
    }
}

func TestDetectAnomaliesPriceSpikeSeverity(t *testing.T) {
    cfg := testConfig(t)
    cases := []struct {
        name     string
        last     float64
        severity string
    }{
        {"medium", 107, models.SeverityMedium},
        {"high", 115, models.SeverityHigh},
    }
    for _, tc := range cases {
        t.Run(tc.name, func(t *testing.T) {
            closes := flatCloses(30, 100)
            closes[29] = tc.last
            series := testSeries(t, closes, nil)

            ind, err := NewIndicatorEngine(cfg).ComputeIndicators(series)
            if err != nil {
                t.Fatalf("indicators: %v", err)
            }

            spikes := 0
            for _, a := range NewAnomalyDetector(cfg).Detect(series, ind) {
                if a.Type != models.AnomalyPriceSpike {
                    continue
                }
                spikes++
                if a.Severity != tc.severity {
                    t.Fatalf("severity = %s, want %s", a.Severity, tc.severity)
                }
            }
            if spikes != 1 {
                t.Fatalf("price spikes = %d, want exactly 1", spikes)
            }
        })
    }
}

func TestOutlierDetectorQuietOnFlatSeries(t *testing.T) {
    d := NewOutlierDetector(testConfig(t))
    if got := d.Detect(testSeries(t, flatCloses(40, 100), nil)); len(got) != 0 {
        t.Fatalf("flat series flagged: %+v", got)
    }
}

func TestOutlierDetectorFlagsVolumeShock(t *testing.T) {
    volumes := make([]float64, 30)
    for i := range volumes {
        volumes[i] = 1000
    }
    volumes[29] = 10_000_000
    series := testSeries(t, flatCloses(30, 1000), volumes)

    got := NewOutlierDetector(testConfig(t)).Detect(series)
    if len(got) != 1 {
        t.Fatalf("detections = %d, want 1", len(got))
    }
    if got[0].Type != models.AnomalyML {
        t.Fatalf("type = %s, want %s", got[0].Type, models.AnomalyML)
    }
    if got[0].Confidence != 0.8 {
        t.Fatalf("confidence = %v, want 0.8", got[0].Confidence)
    }
}

func TestAnalyzeIdempotent(t *testing.T) {
    engine := NewEngine(testConfig(t))

    closes := make([]float64, 60)
    volumes := make([]float64, 60)
    for i := range closes {
        closes[i] = 100 + 10*math.Sin(float64(i)/5) + 0.3*float64(i)
        volumes[i] = 1000 + float64((i*7)%13)*500
    }
    series := testSeries(t, closes, volumes)

    first, err := engine.Analyze(series)
    if err != nil {
        t.Fatalf("first analyze: %v", err)
    }
    second, err := engine.Analyze(series)
    if err != nil {
        t.Fatalf("second analyze: %v", err)
    }
    if !reflect.DeepEqual(first, second) {
        t.Fatalf("analyze is not idempotent:\nfirst:  %+v\nsecond: %+v", first, second)
    }
    if first.Symbol != "TEST" {
        t.Fatalf("symbol = %s", first.Symbol)
    }
}

func TestAnalyzeRejectsMalformedSeries(t *testing.T) {
    engine := NewEngine(testConfig(t))

    day := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
    dup := &models.Series{Symbol: "TEST", Bars: []models.Bar{
        {Date: day, Close: 100, Volume: 1},
        {Date: day, Close: 101, Volume: 1},
    }}
    if _, err := engine.Analyze(dup); err == nil || !models.IsInvalidInput(err) {
        t.Fatalf("duplicate dates: err = %v, want invalid input", err)
    }

    anon := &models.Series{Bars: nil}
    if _, err := engine.Analyze(anon); err == nil || !models.IsInvalidInput(err) {
        t.Fatalf("empty symbol: err = %v, want invalid input", err)
    }
}

func TestAnalyzeShortSeriesStillTotal(t *testing.T) {
    engine := NewEngine(testConfig(t))
    snap, err := engine.Analyze(testSeries(t, flatCloses(5, 100), nil))
    if err != nil {
        t.Fatalf("short series must not fail: %v", err)
    }
    if snap.Trend.Trend != models.TrendNeutral {
        t.Fatalf("trend = %s, want neutral", snap.Trend.Trend)
    }
    if snap.Signal.Action != models.ActionHold {
        t.Fatalf("action = %s, want hold", snap.Signal.Action)
    }
    if snap.Regime.Regime != models.RegimeUnknown {
        t.Fatalf("regime = %s, want unknown", snap.Regime.Regime)
    }
}

func TestRegimeClassification(t *testing.T) {
    reg := NewRegimeClassifier(testConfig(t))

    rising := reg.Classify(testSeries(t, risingCloses(60, 100, 1), nil))
    if rising.Regime != models.RegimeTrendingLowVol {
        t.Fatalf("rising regime = %s, want trending_low_vol", rising.Regime)
    }
    if rising.TrendStrength < 0.99 {
        t.Fatalf("rising trend strength = %v, want ~1", rising.TrendStrength)
    }

    flat := reg.Classify(testSeries(t, flatCloses(60, 100), nil))
    if flat.Regime != models.RegimeRangingLowVol {
        t.Fatalf("flat regime = %s, want ranging_low_vol", flat.Regime)
    }

    short := reg.Classify(testSeries(t, flatCloses(10, 100), nil))
    if short.Regime != models.RegimeUnknown || short.Confidence != 0 {
        t.Fatalf("short regime = %s conf %v, want unknown with zero confidence",
            short.Regime, short.Confidence)
    }
}
