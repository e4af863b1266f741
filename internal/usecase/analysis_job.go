package usecase

import (
	"context"
	"fmt"

	drepo "MarketPulse/internal/domain/repository"
	"MarketPulse/pkg/queue"
)

// analysisJobType is the queue message type for snapshot requests.
const analysisJobType = "analysis.snapshot"

// AnalysisPayload is the queued analysis request body.
type AnalysisPayload struct {
	Symbol string `json:"symbol"`
	Period string `json:"period"`
}

// AnalysisJob processes queued analysis requests through the monitor.
type AnalysisJob struct {
	mon *Monitor
}

// NewAnalysisJob creates the job handler.
func NewAnalysisJob(mon *Monitor) *AnalysisJob {
	return &AnalysisJob{mon: mon}
}

func (j *AnalysisJob) Name() string { return "market-analysis" }

func (j *AnalysisJob) Type() string { return analysisJobType }

// Handle parses the payload and runs one analysis pass for its symbol.
func (j *AnalysisJob) Handle(ctx context.Context, payload interface{}) error {
	p, err := queue.ParsePayload[AnalysisPayload](payload)
	if err != nil {
		return fmt.Errorf("parse analysis payload: %w", err)
	}
	return j.mon.AnalyzeSymbol(ctx, p.Symbol, drepo.NormalizePeriod(p.Period))
}

var _ queue.Job = (*AnalysisJob)(nil)
