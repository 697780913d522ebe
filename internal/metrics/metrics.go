// Package metrics holds the Prometheus collectors shared by every surface
// that drives the task list.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tasklist_operations_total",
			Help: "Total number of task list operations by outcome",
		},
		[]string{"operation", "outcome"},
	)

	operationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "tasklist_operation_duration_seconds",
			Help:    "Histogram of task list operation durations",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	snapshotFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "tasklist_snapshot_failures_total",
			Help: "Total number of failed automatic snapshot exports",
		},
	)
)

// ObserveOperation records one controller operation and how long it took.
func ObserveOperation(operation, outcome string, started time.Time) {
	operationsTotal.WithLabelValues(operation, outcome).Inc()
	operationDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

func IncSnapshotFailures() {
	snapshotFailures.Inc()
}

// OperationCounter exposes the counter for an operation/outcome pair.
func OperationCounter(operation, outcome string) prometheus.Counter {
	return operationsTotal.WithLabelValues(operation, outcome)
}

func SnapshotFailures() prometheus.Counter {
	return snapshotFailures
}
