package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	operationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deploy_operations_total",
		Help: "Completed lifecycle operations by operation and result",
	}, []string{"operation", "result"})

	operationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "deploy_operation_duration_seconds",
		Help:    "Duration of lifecycle operations",
		Buckets: []float64{1, 5, 15, 60, 300, 900, 1800, 3600},
	}, []string{"operation"})

	healthChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "deploy_health_checks_total",
		Help: "Health checks performed by resulting status",
	}, []string{"status"})
)

// ObserveOperation records one completed lifecycle operation.
func ObserveOperation(operation, result string, seconds float64) {
	operationsTotal.WithLabelValues(operation, result).Inc()
	operationDuration.WithLabelValues(operation).Observe(seconds)
}

// ObserveHealthCheck records one completed health check.
func ObserveHealthCheck(status string) {
	healthChecksTotal.WithLabelValues(status).Inc()
}
