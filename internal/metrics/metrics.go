// Package metrics holds the Prometheus collectors of the matcher.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace = "govcon"
	subsystem = "matching"
)

var (
	// OperationDuration records external operation latency in seconds by operation and outcome.
	OperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "operation_duration_seconds",
			Help:      "Operation duration",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"operation", "outcome"},
	)

	// PreselectSize records how many neighbours the ANN preselect returned per pool.
	PreselectSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "preselect_size",
			Help:      "Preselected pool size",
			Buckets:   []float64{0, 1, 5, 10, 20, 30, 50},
		},
		[]string{"pool"},
	)

	// FailuresTotal counts structured failures returned to callers by kind.
	FailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "failures_total",
			Help:      "Structured failures",
		},
		[]string{"operation", "kind"},
	)

	// EmbeddingCacheTotal counts vector cache lookups by result (hit/miss).
	EmbeddingCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "embedding",
			Name:      "cache_lookups_total",
			Help:      "Embedding cache lookups",
		},
		[]string{"profile", "result"},
	)
)

func init() {
	prometheus.MustRegister(
		OperationDuration,
		PreselectSize,
		FailuresTotal,
		EmbeddingCacheTotal,
	)
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
