package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	rpcRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "blockindex7000",
		Subsystem: "node_rpc",
		Name:      "operations_total",
		Help:      "Count of remote node RPC calls.",
	}, []string{"operation", "status"})
	rpcRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "blockindex7000",
		Subsystem: "node_rpc",
		Name:      "operation_duration_seconds",
		Help:      "Duration of remote node RPC calls.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation", "status"})
)

// RPCObserver satisfies the node client's metrics interface.
type RPCObserver struct{}

// Observe records one RPC call outcome.
func (RPCObserver) Observe(operation string, err error, started time.Time) {
	status := "success"
	if err != nil {
		status = "error"
	}

	rpcRequestsTotal.WithLabelValues(operation, status).Inc()
	rpcRequestDuration.WithLabelValues(operation, status).Observe(time.Since(started).Seconds())
}
