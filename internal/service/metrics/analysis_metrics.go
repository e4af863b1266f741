package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	AnalysisLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "marketpulse",
			Subsystem: "analysis",
			Name:      "stage_duration_seconds",
			Help:      "Latency of analysis stages",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"stage"},
	)

	AnalysisErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "marketpulse",
			Subsystem: "analysis",
			Name:      "errors_total",
			Help:      "Errors by analysis stage",
		},
		[]string{"stage"},
	)

	SnapshotsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "marketpulse",
			Subsystem: "analysis",
			Name:      "snapshots_total",
			Help:      "Completed market snapshots",
		},
	)
)

func Register() {
	once.Do(func() {
		prometheus.MustRegister(AnalysisLatency, AnalysisErrors, SnapshotsTotal)
	})
}
