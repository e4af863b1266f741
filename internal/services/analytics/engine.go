package analytics

import (
    "time"

    "MarketPulse/internal/domain/models"
    domsvc "MarketPulse/internal/domain/service"
    svcmetrics "MarketPulse/internal/service/metrics"
    "MarketPulse/pkg/config"
)

// Engine composes the indicator and signal stages into the one-shot
// analysis pass. It keeps no state between calls, so the same series always
// produces the same snapshot.
type Engine struct {
    indicators *IndicatorEngine
    trend      *TrendClassifier
    anomalies  *AnomalyDetector
    signals    *SignalGenerator
    levels     *LevelDetector
    regimes    *RegimeClassifier
}

func NewEngine(cfg *config.Config) *Engine {
    svcmetrics.Register()
    return &Engine{
        indicators: NewIndicatorEngine(cfg),
        trend:      NewTrendClassifier(cfg),
        anomalies:  NewAnomalyDetector(cfg),
        signals:    NewSignalGenerator(cfg),
        levels:     NewLevelDetector(cfg),
        regimes:    NewRegimeClassifier(cfg),
    }
}

// Analyze validates series then runs every stage over it. Malformed input
// surfaces as InvalidInputError; well-formed input never fails, however
// short.
func (e *Engine) Analyze(series *models.Series) (*models.MarketSnapshot, error) {
    if err := series.Validate(); err != nil {
        svcmetrics.AnalysisErrors.WithLabelValues("validate").Inc()
        return nil, err
    }

    started := time.Now()
    ind, err := e.indicators.ComputeIndicators(series)
    if err != nil {
        svcmetrics.AnalysisErrors.WithLabelValues("indicators").Inc()
        return nil, err
    }
    svcmetrics.AnalysisLatency.WithLabelValues("indicators").Observe(time.Since(started).Seconds())

    started = time.Now()
    snap := &models.MarketSnapshot{
        Symbol:    series.Symbol,
        Trend:     e.trend.Classify(ind),
        Anomalies: e.anomalies.Detect(series, ind),
        Signal:    e.signals.Generate(ind),
        Levels:    e.levels.DetectSupportResistance(series),
        Fibonacci: e.levels.ComputeFibonacci(series),
        Regime:    e.regimes.Classify(series),
    }
    svcmetrics.AnalysisLatency.WithLabelValues("signals").Observe(time.Since(started).Seconds())
    svcmetrics.SnapshotsTotal.Inc()

    return snap, nil
}

var _ domsvc.Analyzer = (*Engine)(nil)
