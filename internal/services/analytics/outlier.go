package analytics

import (
    "fmt"
    "math"
    "sort"

    "MarketPulse/internal/domain/models"
    "MarketPulse/internal/services/features"
    "MarketPulse/pkg/config"
)

// outlierMinWindows is the fewest feature rows worth ranking; below this a
// quantile cut is meaningless.
const outlierMinWindows = 10

// OutlierDetector flags the latest rolling window when its feature vector
// sits in the far tail of the series' own distribution. It fits fresh on
// every call: z-score each feature column over all windows, take the
// euclidean distance per window in z-space, and flag the latest window when
// its distance ranks past the (1 - contamination) quantile.
type OutlierDetector struct {
    window        int
    contamination float64
}

func NewOutlierDetector(cfg *config.Config) *OutlierDetector {
    return &OutlierDetector{
        window:        cfg.Analysis.Anomaly.WindowSize,
        contamination: cfg.Analysis.Anomaly.Contamination,
    }
}

// Detect returns at most one ml_anomaly, for the latest window.
func (d *OutlierDetector) Detect(series *models.Series) []models.Anomaly {
    rows := features.WindowFeatures(series.Closes(), series.Volumes(), d.window)
    if len(rows) < outlierMinWindows {
        return nil
    }

    dists := zDistances(rows)
    latest := dists[len(dists)-1]

    below := 0
    for _, v := range dists {
        if v < latest {
            below++
        }
    }
    rank := float64(below) / float64(len(dists))
    if rank < 1-d.contamination {
        return nil
    }

    sorted := append([]float64(nil), dists...)
    sort.Float64s(sorted)
    cut := sorted[int(float64(len(sorted))*(1-d.contamination))]

    return []models.Anomaly{{
        Type:         models.AnomalyML,
        Severity:     models.SeverityMedium,
        Message:      fmt.Sprintf("latest %d-bar window deviates from history (z-distance %.2f)", d.window, latest),
        CurrentValue: latest,
        Threshold:    cut,
        Confidence:   0.8,
    }}
}

// zDistances z-scores each feature column over all rows and returns the
// per-row euclidean distance in z-space. Zero-variance columns contribute
// nothing.
func zDistances(rows [][]float64) []float64 {
    nRows := len(rows)
    nCols := len(rows[0])

    means := make([]float64, nCols)
    stds := make([]float64, nCols)
    col := make([]float64, nRows)
    for j := 0; j < nCols; j++ {
        for i := range rows {
            col[i] = rows[i][j]
        }
        means[j] = features.Mean(col)
        stds[j] = features.Std(col)
    }

    out := make([]float64, nRows)
    for i, row := range rows {
        sum := 0.0
        for j, x := range row {
            if stds[j] == 0 {
                continue
            }
            z := (x - means[j]) / stds[j]
            sum += z * z
        }
        out[i] = math.Sqrt(sum)
    }
    return out
}
