package analytics

import (
    "math"
    "testing"
    "time"

    "MarketPulse/internal/domain/models"
)

// zigzagSeries oscillates between 100 and 110 with a 10-bar period, so
// peaks land on every pos==5 bar and troughs on every pos==0 bar.
func zigzagSeries(t *testing.T, n int) *models.Series {
    t.Helper()
    start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
    bars := make([]models.Bar, n)
    for i := range bars {
        pos := i % 10
        var c float64
        if pos <= 5 {
            c = 100 + 2*float64(pos)
        } else {
            c = 100 + 2*float64(10-pos)
        }
        bars[i] = models.Bar{
            Date:   start.AddDate(0, 0, i),
            Open:   c,
            High:   c,
            Low:    c,
            Close:  c,
            Volume: 1000,
        }
    }
    return &models.Series{Symbol: "ZZ", Bars: bars}
}

func TestSupportResistanceZigzag(t *testing.T) {
    d := NewLevelDetector(testConfig(t))
    sr := d.DetectSupportResistance(zigzagSeries(t, 41))

    if len(sr.Support) != 1 {
        t.Fatalf("support levels = %d, want 1: %+v", len(sr.Support), sr.Support)
    }
    if len(sr.Resistance) != 1 {
        t.Fatalf("resistance levels = %d, want 1: %+v", len(sr.Resistance), sr.Resistance)
    }

    sup := sr.Support[0]
    if sup.Price != 100 || sup.TouchCount != 3 || sup.StrengthPercent != 60 {
        t.Fatalf("support = %+v, want price 100 touches 3 strength 60", sup)
    }
    res := sr.Resistance[0]
    if res.Price != 110 || res.TouchCount != 4 || res.StrengthPercent != 80 {
        t.Fatalf("resistance = %+v, want price 110 touches 4 strength 80", res)
    }
}

func TestSupportResistanceFlatSeriesEmpty(t *testing.T) {
    d := NewLevelDetector(testConfig(t))
    sr := d.DetectSupportResistance(testSeries(t, flatCloses(30, 100), nil))
    if len(sr.Support) != 0 || len(sr.Resistance) != 0 {
        t.Fatalf("flat series produced levels: %+v", sr)
    }
}

func TestFibonacciLadder(t *testing.T) {
    d := NewLevelDetector(testConfig(t))
    series := &models.Series{Symbol: "FIB", Bars: []models.Bar{{
        Date:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
        Open:   100,
        High:   110,
        Low:    90,
        Close:  99,
        Volume: 1000,
    }}}

    fib := d.ComputeFibonacci(series)
    if fib.High != 110 || fib.Low != 90 {
        t.Fatalf("range = %v..%v, want 90..110", fib.Low, fib.High)
    }
    if len(fib.Levels) != 7 {
        t.Fatalf("levels = %d, want 7", len(fib.Levels))
    }
    if fib.Levels[0].Price != 110 || fib.Levels[6].Price != 90 {
        t.Fatalf("endpoints = %v/%v, want 110/90", fib.Levels[0].Price, fib.Levels[6].Price)
    }
    if fib.Nearest.Label != "50.0%" {
        t.Fatalf("nearest = %s at %v, want the 50.0%% level", fib.Nearest.Label, fib.Nearest.Price)
    }
    wantDist := 1.0 / 99.0 * 100
    if math.Abs(fib.NearestDistancePct-wantDist) > 1e-9 {
        t.Fatalf("nearest distance = %v, want %v", fib.NearestDistancePct, wantDist)
    }
}

func TestFibonacciUsesTrailingWindowOnly(t *testing.T) {
    d := NewLevelDetector(testConfig(t))

    start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
    bars := make([]models.Bar, 60)
    for i := range bars {
        bars[i] = models.Bar{
            Date: start.AddDate(0, 0, i), Open: 100, High: 100, Low: 100, Close: 100, Volume: 1,
        }
    }
    bars[5].High = 200  // outside the 50-bar window
    bars[30].High = 150 // inside

    fib := d.ComputeFibonacci(&models.Series{Symbol: "FIB", Bars: bars})
    if fib.High != 150 {
        t.Fatalf("window high = %v, want 150 (stale extreme must be ignored)", fib.High)
    }
}
