package usecase

import (
	"context"
	"fmt"
	"time"

	domsvc "MarketPulse/internal/domain/service"

	drepo "MarketPulse/internal/domain/repository"
	"MarketPulse/pkg/cache"
	"MarketPulse/pkg/config"
	"MarketPulse/pkg/logger"
	"MarketPulse/pkg/queue"
)

// Monitor runs the periodic pass over the configured watchlist: batch-collect
// the universe, feed the quotes downstream, then collect a series per symbol,
// analyze it, and publish the snapshot. Passes are skipped outside trading
// hours. With a queue attached the analysis half enqueues jobs for the
// workers instead of running inline.
type Monitor struct {
	collector *Collector
	analyzer  domsvc.Analyzer
	clock     drepo.MarketClock
	pub       drepo.Publisher
	queue     queue.QueueService
	cache     cache.Service
	metrics   drepo.Metrics
	log       *logger.Logger

	symbols  []string
	interval time.Duration
	period   drepo.Period
	lockKey  string

	stopCh chan struct{}
}

// NewMonitor creates a monitor. pub and q may be nil; with a nil q every
// pass analyzes inline.
func NewMonitor(cfg *config.Config, collector *Collector, analyzer domsvc.Analyzer, clock drepo.MarketClock, pub drepo.Publisher, q queue.QueueService, c cache.Service, metrics drepo.Metrics, log *logger.Logger) *Monitor {
	return &Monitor{
		collector: collector,
		analyzer:  analyzer,
		clock:     clock,
		pub:       pub,
		queue:     q,
		cache:     c,
		metrics:   metrics,
		log:       log,
		symbols:   cfg.Collector.Symbols,
		interval:  cfg.Monitor.Interval,
		period:    drepo.NormalizePeriod(cfg.Monitor.Period),
		lockKey:   cache.GenerateKey("monitor", "lock"),
		stopCh:    make(chan struct{}),
	}
}

// Start launches the pass loop.
func (m *Monitor) Start(ctx context.Context) {
	go m.run(ctx)
	m.log.Info("monitor started",
		logger.Int("symbols", len(m.symbols)),
		logger.Duration("interval", m.interval))
}

// Stop halts the pass loop.
func (m *Monitor) Stop() {
	close(m.stopCh)
}

func (m *Monitor) run(ctx context.Context) {
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-m.stopCh:
			return
		case <-ticker.C:
			if !m.clock.IsOpen(time.Now()) {
				m.log.Debug("market closed, skipping pass")
				continue
			}
			m.runPass(ctx)
		}
	}
}

// runPass collects the universe, feeds the quotes downstream, then walks
// the watchlist for analysis. A cache lock keyed per pass interval keeps
// concurrent instances from duplicating the work.
func (m *Monitor) runPass(ctx context.Context) {
	locked, err := m.cache.TryLock(ctx, m.lockKey, m.interval)
	if err != nil {
		m.metrics.RecordError("monitor_lock")
		m.log.Warn("monitor lock failed", logger.Error(err))
		return
	}
	if !locked {
		m.log.Debug("monitor pass held elsewhere")
		return
	}
	defer func() {
		if err := m.cache.Unlock(ctx, m.lockKey); err != nil {
			m.log.Warn("monitor unlock failed", logger.Error(err))
		}
	}()

	batch := m.collector.CollectManyAsync(ctx, m.symbols)
	m.log.Info("universe collected",
		logger.Int("quotes", len(batch.Quotes)),
		logger.Int("failures", len(batch.Errors)))
	if m.pub != nil && len(batch.Quotes) > 0 {
		if err := m.pub.PublishQuotes(ctx, batch.Quotes); err != nil {
			m.metrics.RecordError("quote_publish")
			m.log.Warn("quote feed publish failed", logger.Error(err))
		}
	}

	for _, sym := range m.symbols {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if m.queue != nil {
			payload := AnalysisPayload{Symbol: sym, Period: string(m.period)}
			if err := m.queue.PublishMessage(ctx, analysisJobType, payload); err != nil {
				m.metrics.RecordError("monitor_enqueue")
				m.log.Warn("analysis enqueue failed", logger.String("symbol", sym), logger.Error(err))
			}
			continue
		}

		if err := m.AnalyzeSymbol(ctx, sym, m.period); err != nil {
			m.log.Warn("analysis pass failed", logger.String("symbol", sym), logger.Error(err))
		}
	}
}

// AnalyzeSymbol collects, analyzes, and publishes one symbol. Shared by the
// inline pass and the queued job handler.
func (m *Monitor) AnalyzeSymbol(ctx context.Context, symbol string, period drepo.Period) error {
	series, err := m.collector.GetSeries(ctx, symbol, period)
	if err != nil {
		m.metrics.RecordError("monitor_series")
		return fmt.Errorf("collect series: %w", err)
	}
	if series.Len() == 0 {
		return fmt.Errorf("no series data for %s", symbol)
	}

	snap, err := m.analyzer.Analyze(series)
	if err != nil {
		m.metrics.RecordError("monitor_analyze")
		return fmt.Errorf("analyze %s: %w", symbol, err)
	}

	if m.pub != nil {
		if err := m.pub.PublishSnapshot(ctx, snap); err != nil {
			m.metrics.RecordError("snapshot_publish")
			return fmt.Errorf("publish snapshot %s: %w", symbol, err)
		}
	}

	m.log.Info("analysis snapshot",
		logger.String("symbol", symbol),
		logger.String("trend", snap.Trend.Trend),
		logger.String("signal", snap.Signal.Action),
		logger.Int("anomalies", len(snap.Anomalies)))
	return nil
}
