package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collectors for the money-moving core. Registered on the default registry and
// exposed on /metrics.
var (
	AllocationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stashpal_allocations_total",
		Help: "Income allocations processed, by outcome.",
	}, []string{"outcome"})

	SettlementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stashpal_settlements_total",
		Help: "Escrow settlement operations, by operation and outcome.",
	}, []string{"operation", "outcome"})

	AutoDeductBatchesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stashpal_autodeduct_batches_total",
		Help: "Auto-deduct scheduler batches run.",
	})

	AutoDeductAttemptsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stashpal_autodeduct_attempts_total",
		Help: "Auto-deduct attempts, by outcome.",
	}, []string{"outcome"})

	AutoDeductBatchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "stashpal_autodeduct_batch_duration_seconds",
		Help:    "Duration of auto-deduct scheduler batches.",
		Buckets: prometheus.DefBuckets,
	})
)
