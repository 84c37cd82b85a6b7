package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Backend calls by backend/operation/outcome
	BackendRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studio",
			Subsystem: "backend",
			Name:      "requests_total",
			Help:      "Total number of generation backend calls",
		},
		[]string{"backend", "operation", "outcome"},
	)

	BackendRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "studio",
			Subsystem: "backend",
			Name:      "request_duration_seconds",
			Help:      "Generation backend call duration in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"backend", "operation"},
	)

	PollPassesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "studio",
			Subsystem: "poller",
			Name:      "passes_total",
			Help:      "Readiness check passes over pending URLs",
		},
	)

	PollReadyTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "studio",
			Subsystem: "poller",
			Name:      "ready_total",
			Help:      "Pending URLs observed ready",
		},
	)

	ActiveSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "studio",
			Subsystem: "sessions",
			Name:      "active",
			Help:      "Sessions currently held in memory",
		},
	)

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "studio",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)
)

// RecordBackendCall records a single backend round trip
func RecordBackendCall(backend, operation, outcome string, durationSec float64) {
	BackendRequestsTotal.WithLabelValues(backend, operation, outcome).Inc()
	BackendRequestDuration.WithLabelValues(backend, operation).Observe(durationSec)
}

// RecordPollPass records one readiness pass and how many URLs turned ready
func RecordPollPass(ready int) {
	PollPassesTotal.Inc()
	if ready > 0 {
		PollReadyTotal.Add(float64(ready))
	}
}

// RecordHTTPRequest records an HTTP request served by the studio API
func RecordHTTPRequest(method, route, status string) {
	HTTPRequestsTotal.WithLabelValues(method, route, status).Inc()
}
