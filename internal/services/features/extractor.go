package features

import (
    "math"
)

// Returns computes simple returns r_t = C_t/C_{t-1} - 1.
// It returns a slice of length len(closes)-1, or nil if insufficient data.
func Returns(closes []float64) []float64 {
    if len(closes) < 2 {
        return nil
    }
    out := make([]float64, 0, len(closes)-1)
    for i := 1; i < len(closes); i++ {
        prev := closes[i-1]
        cur := closes[i]
        if prev <= 0 || cur <= 0 {
            out = append(out, 0)
            continue
        }
        out = append(out, cur/prev-1)
    }
    return out
}

// Mean returns the arithmetic mean of xs, or 0 for an empty slice.
func Mean(xs []float64) float64 {
    if len(xs) == 0 {
        return 0
    }
    sum := 0.0
    for _, x := range xs {
        sum += x
    }
    return sum / float64(len(xs))
}

// Std returns the sample standard deviation of xs (n-1 denominator),
// or 0 when fewer than two values are given.
func Std(xs []float64) float64 {
    n := len(xs)
    if n < 2 {
        return 0
    }
    mean := Mean(xs)
    sum2 := 0.0
    for _, x := range xs {
        d := x - mean
        sum2 += d * d
    }
    variance := sum2 / float64(n-1)
    if variance < 0 {
        variance = 0
    }
    return math.Sqrt(variance)
}

// RollingStd computes the trailing sample standard deviation over window.
// out[i] covers xs[i-window+1..i]; entries before the window fills are NaN.
func RollingStd(xs []float64, window int) []float64 {
    out := make([]float64, len(xs))
    for i := range out {
        if i < window-1 || window < 2 {
            out[i] = math.NaN()
            continue
        }
        out[i] = Std(xs[i-window+1 : i+1])
    }
    return out
}

// TrendCorrelation returns the Pearson correlation of xs against its own
// index, a [-1,1] measure of how linear the drift is. A flat or too-short
// series yields 0.
func TrendCorrelation(xs []float64) float64 {
    n := len(xs)
    if n < 2 {
        return 0
    }
    meanIdx := float64(n-1) / 2
    meanX := Mean(xs)
    var cov, varIdx, varX float64
    for i, x := range xs {
        di := float64(i) - meanIdx
        dx := x - meanX
        cov += di * dx
        varIdx += di * di
        varX += dx * dx
    }
    if varIdx == 0 || varX == 0 {
        return 0
    }
    return cov / math.Sqrt(varIdx*varX)
}

// WindowFeatures builds one feature row per trailing window position over
// the bar columns: mean and stddev of in-window returns, mean and stddev of
// in-window volume, and the window's cumulative return. Row i covers bars
// [i, i+window); nil when the series is shorter than the window.
func WindowFeatures(closes, volumes []float64, window int) [][]float64 {
    n := len(closes)
    if window < 2 || n < window || len(volumes) != n {
        return nil
    }
    rows := make([][]float64, 0, n-window+1)
    rets := Returns(closes)
    for i := 0; i+window <= n; i++ {
        wr := rets[i : i+window-1]
        wv := volumes[i : i+window]
        cum := 0.0
        if closes[i] > 0 {
            cum = closes[i+window-1]/closes[i] - 1
        }
        rows = append(rows, []float64{
            Mean(wr),
            Std(wr),
            Mean(wv),
            Std(wv),
            cum,
        })
    }
    return rows
}
