// Package metrics exposes Prometheus instrumentation for the indexer.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	engineOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blockindex7000",
		Subsystem: "engine",
		Name:      "operations_total",
		Help:      "Count of indexing engine operations.",
	}, []string{"operation", "status"})
	engineOperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "blockindex7000",
		Subsystem: "engine",
		Name:      "operation_duration_seconds",
		Help:      "Duration of indexing engine operations.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation", "status"})
)

// EngineObserver satisfies the engine's metrics interface.
type EngineObserver struct{}

// Observe records one engine operation outcome.
func (EngineObserver) Observe(operation string, err error, started time.Time) {
	status := "success"
	if err != nil {
		status = "error"
	}

	engineOperationsTotal.WithLabelValues(operation, status).Inc()
	engineOperationDuration.WithLabelValues(operation, status).Observe(time.Since(started).Seconds())
}
