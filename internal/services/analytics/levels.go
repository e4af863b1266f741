package analytics

import (
    "math"
    "sort"

    "MarketPulse/internal/domain/models"
    "MarketPulse/pkg/config"
)

var fibRatios = []struct {
    label string
    ratio float64
}{
    {"0.0%", 0},
    {"23.6%", 0.236},
    {"38.2%", 0.382},
    {"50.0%", 0.5},
    {"61.8%", 0.618},
    {"78.6%", 0.786},
    {"100.0%", 1},
}

// LevelDetector finds clustered support/resistance pivots and Fibonacci
// retracements over a trailing window.
type LevelDetector struct {
    separation    int
    prominencePct float64
    tolerancePct  float64
    maxLevels     int
    fibWindow     int
}

func NewLevelDetector(cfg *config.Config) *LevelDetector {
    l := cfg.Analysis.Levels
    return &LevelDetector{
        separation:    l.Separation,
        prominencePct: l.ProminencePct,
        tolerancePct:  l.ClusterTolerancePct,
        maxLevels:     l.MaxLevels,
        fibWindow:     l.FibWindow,
    }
}

// DetectSupportResistance picks pivots (local extremes with minimum
// separation and a prominence floor), clusters them within the price
// tolerance, and returns the strongest levels on each side of the last
// close. Strength grows with touch count and saturates at 100.
func (d *LevelDetector) DetectSupportResistance(series *models.Series) models.SupportResistance {
    out := models.SupportResistance{}
    n := series.Len()
    if n == 0 {
        return out
    }

    highs := series.Highs()
    lows := series.Lows()
    lastClose := series.LastClose()

    var pivots []float64
    for i := d.separation; i < n-d.separation; i++ {
        winHigh, winLow := windowExtremes(highs, lows, i-d.separation, i+d.separation)
        if highs[i] >= winHigh && highs[i] > 0 &&
            (highs[i]-winLow)/highs[i]*100 >= d.prominencePct {
            pivots = append(pivots, highs[i])
        }
        if lows[i] <= winLow && lows[i] > 0 &&
            (winHigh-lows[i])/lows[i]*100 >= d.prominencePct {
            pivots = append(pivots, lows[i])
        }
    }
    if len(pivots) == 0 {
        return out
    }

    levels := clusterPivots(pivots, d.tolerancePct)
    var support, resistance []models.SupportResistanceLevel
    for _, lv := range levels {
        if lv.Price <= lastClose {
            support = append(support, lv)
        } else {
            resistance = append(resistance, lv)
        }
    }

    sortLevels(support)
    sortLevels(resistance)
    if len(support) > d.maxLevels {
        support = support[:d.maxLevels]
    }
    if len(resistance) > d.maxLevels {
        resistance = resistance[:d.maxLevels]
    }
    out.Support = support
    out.Resistance = resistance
    return out
}

// ComputeFibonacci derives the retracement ladder from the high/low range
// of the trailing window, plus the level nearest the last close.
func (d *LevelDetector) ComputeFibonacci(series *models.Series) models.FibonacciLevels {
    out := models.FibonacciLevels{}
    n := series.Len()
    if n == 0 {
        return out
    }

    w := d.fibWindow
    if w > n {
        w = n
    }
    highs := series.Highs()[n-w:]
    lows := series.Lows()[n-w:]
    hi, lo := highs[0], lows[0]
    for i := 1; i < w; i++ {
        if highs[i] > hi {
            hi = highs[i]
        }
        if lows[i] < lo {
            lo = lows[i]
        }
    }
    out.High = hi
    out.Low = lo

    lastClose := series.LastClose()
    bestDist := math.Inf(1)
    for _, fr := range fibRatios {
        lv := models.FibLevel{Label: fr.label, Price: hi - (hi-lo)*fr.ratio}
        out.Levels = append(out.Levels, lv)
        if dist := math.Abs(lv.Price - lastClose); dist < bestDist {
            bestDist = dist
            out.Nearest = lv
        }
    }
    if lastClose > 0 {
        out.NearestDistancePct = bestDist / lastClose * 100
    }
    return out
}

func windowExtremes(highs, lows []float64, from, to int) (float64, float64) {
    hi, lo := highs[from], lows[from]
    for i := from + 1; i <= to; i++ {
        if highs[i] > hi {
            hi = highs[i]
        }
        if lows[i] < lo {
            lo = lows[i]
        }
    }
    return hi, lo
}

// clusterPivots greedily merges sorted pivot prices whose distance from the
// running cluster mean stays inside the tolerance.
func clusterPivots(pivots []float64, tolerancePct float64) []models.SupportResistanceLevel {
    sorted := append([]float64(nil), pivots...)
    sort.Float64s(sorted)

    var out []models.SupportResistanceLevel
    sum := sorted[0]
    count := 1
    flush := func() {
        mean := sum / float64(count)
        strength := float64(count) * 20
        if strength > 100 {
            strength = 100
        }
        out = append(out, models.SupportResistanceLevel{
            Price:           mean,
            TouchCount:      count,
            StrengthPercent: strength,
        })
    }
    for _, p := range sorted[1:] {
        mean := sum / float64(count)
        if mean > 0 && (p-mean)/mean*100 <= tolerancePct {
            sum += p
            count++
            continue
        }
        flush()
        sum = p
        count = 1
    }
    flush()
    return out
}

// sortLevels orders by strength, strongest first, with price as the
// deterministic tie break.
func sortLevels(levels []models.SupportResistanceLevel) {
    sort.Slice(levels, func(i, j int) bool {
        if levels[i].StrengthPercent != levels[j].StrengthPercent {
            return levels[i].StrengthPercent > levels[j].StrengthPercent
        }
        return levels[i].Price < levels[j].Price
    })
}
