package features

import (
    "math"
    "testing"
)

func TestReturns(t *testing.T) {
    rets := Returns([]float64{100, 110, 99})
    if len(rets) != 2 {
        t.Fatalf("len = %d, want 2", len(rets))
    }
    if math.Abs(rets[0]-0.1) > 1e-12 {
        t.Fatalf("rets[0] = %v, want 0.1", rets[0])
    }
    if math.Abs(rets[1]+0.1) > 1e-12 {
        t.Fatalf("rets[1] = %v, want -0.1", rets[1])
    }
    if Returns([]float64{100}) != nil {
        t.Fatalf("single value must yield nil")
    }
}

func TestStdSampleDenominator(t *testing.T) {
    if got := Std([]float64{1, 2, 3}); math.Abs(got-1) > 1e-12 {
        t.Fatalf("std = %v, want 1", got)
    }
    if got := Std([]float64{7}); got != 0 {
        t.Fatalf("std of one value = %v, want 0", got)
    }
}

func TestRollingStdWindow(t *testing.T) {
    out := RollingStd([]float64{1, 1, 1, 5}, 3)
    if !math.IsNaN(out[0]) || !math.IsNaN(out[1]) {
        t.Fatalf("entries before the window must be NaN, got %v", out[:2])
    }
    if out[2] != 0 {
        t.Fatalf("out[2] = %v, want 0", out[2])
    }
    want := Std([]float64{1, 1, 5})
    if math.Abs(out[3]-want) > 1e-12 {
        t.Fatalf("out[3] = %v, want %v", out[3], want)
    }
}

func TestTrendCorrelation(t *testing.T) {
    if got := TrendCorrelation([]float64{1, 2, 3, 4}); math.Abs(got-1) > 1e-12 {
        t.Fatalf("rising correlation = %v, want 1", got)
    }
    if got := TrendCorrelation([]float64{4, 3, 2, 1}); math.Abs(got+1) > 1e-12 {
        t.Fatalf("falling correlation = %v, want -1", got)
    }
    if got := TrendCorrelation([]float64{5, 5, 5}); got != 0 {
        t.Fatalf("flat correlation = %v, want 0", got)
    }
}

func TestWindowFeatures(t *testing.T) {
    closes := []float64{100, 110, 121, 133.1}
    volumes := []float64{1, 2, 3, 4}

    rows := WindowFeatures(closes, volumes, 3)
    if len(rows) != 2 {
        t.Fatalf("rows = %d, want 2", len(rows))
    }

    row := rows[0]
    if math.Abs(row[0]-0.1) > 1e-9 {
        t.Fatalf("return mean = %v, want 0.1", row[0])
    }
    if math.Abs(row[1]) > 1e-9 {
        t.Fatalf("return std = %v, want 0", row[1])
    }
    if row[2] != 2 || math.Abs(row[3]-1) > 1e-12 {
        t.Fatalf("volume mean/std = %v/%v, want 2/1", row[2], row[3])
    }
    if math.Abs(row[4]-0.21) > 1e-9 {
        t.Fatalf("window return = %v, want 0.21", row[4])
    }

    if WindowFeatures(closes[:2], volumes[:2], 3) != nil {
        t.Fatalf("short input must yield nil")
    }
}
