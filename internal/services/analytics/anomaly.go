package analytics

import (
    "fmt"
    "math"

    "MarketPulse/internal/domain/models"
    "MarketPulse/internal/services/features"
    "MarketPulse/pkg/config"
)

// AnomalyDetector applies the rule thresholds plus the statistical outlier
// check to one series. Detections are fresh per call; deduplication belongs
// to the alerting layer downstream.
type AnomalyDetector struct {
    volumeWindow     int
    volumeMultiplier float64
    priceChangePct   float64
    priceChangeHigh  float64
    rsiHigh          float64
    rsiLow           float64
    outlier          *OutlierDetector
}

func NewAnomalyDetector(cfg *config.Config) *AnomalyDetector {
    a := cfg.Analysis.Anomaly
    return &AnomalyDetector{
        volumeWindow:     a.WindowSize,
        volumeMultiplier: a.VolumeMultiplier,
        priceChangePct:   a.PriceChangePct,
        priceChangeHigh:  a.PriceChangeHighPct,
        rsiHigh:          a.RSIHigh,
        rsiLow:           a.RSILow,
        outlier:          NewOutlierDetector(cfg),
    }
}

// Detect returns every anomaly present on the latest bar, rule hits first
// and the statistical outlier check last.
func (d *AnomalyDetector) Detect(series *models.Series, ind *models.IndicatorSet) []models.Anomaly {
    var out []models.Anomaly
    n := series.Len()
    if n == 0 {
        return out
    }

    // volume against the trailing average, current bar excluded
    if n > d.volumeWindow {
        vols := series.Volumes()
        avg := features.Mean(vols[n-1-d.volumeWindow : n-1])
        cur := vols[n-1]
        if avg > 0 && cur > d.volumeMultiplier*avg {
            out = append(out, models.Anomaly{
                Type:         models.AnomalyVolumeSpike,
                Severity:     models.SeverityHigh,
                Message:      fmt.Sprintf("volume %.0f is %.1fx the %d-bar average", cur, cur/avg, d.volumeWindow),
                CurrentValue: cur,
                Threshold:    d.volumeMultiplier * avg,
                Confidence:   0.9,
            })
        }
    }

    // day-over-day close change
    if n >= 2 {
        closes := series.Closes()
        prev := closes[n-2]
        if prev > 0 {
            pct := math.Abs(closes[n-1]/prev-1) * 100
            if pct > d.priceChangePct {
                sev := models.SeverityMedium
                if pct > d.priceChangeHigh {
                    sev = models.SeverityHigh
                }
                out = append(out, models.Anomaly{
                    Type:         models.AnomalyPriceSpike,
                    Severity:     sev,
                    Message:      fmt.Sprintf("close moved %.1f%% in one bar", pct),
                    CurrentValue: pct,
                    Threshold:    d.priceChangePct,
                    Confidence:   0.9,
                })
            }
        }
    }

    if ind != nil && ind.Length == n {
        r := ind.RSI[n-1]
        if !math.IsNaN(r) {
            switch {
            case r > d.rsiHigh:
                out = append(out, models.Anomaly{
                    Type:         models.AnomalyRSIExtreme,
                    Severity:     models.SeverityHigh,
                    Message:      fmt.Sprintf("rsi %.1f above %.0f", r, d.rsiHigh),
                    CurrentValue: r,
                    Threshold:    d.rsiHigh,
                    Confidence:   0.9,
                })
            case r < d.rsiLow:
                out = append(out, models.Anomaly{
                    Type:         models.AnomalyRSIExtreme,
                    Severity:     models.SeverityHigh,
                    Message:      fmt.Sprintf("rsi %.1f below %.0f", r, d.rsiLow),
                    CurrentValue: r,
                    Threshold:    d.rsiLow,
                    Confidence:   0.9,
                })
            }
        }
    }

    out = append(out, d.outlier.Detect(series)...)
    return out
}
