// Package observability wires the assistant's metrics, health checks,
// tracing, and the HTTP surface that exposes them.
package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTP metrics
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "assistant_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// Conversation metrics
	turnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_turns_total",
			Help: "Total number of chat turns by outcome",
		},
		[]string{"status"},
	)

	turnDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "assistant_turn_duration_seconds",
			Help:    "End-to-end chat turn duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	inferenceDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "assistant_inference_duration_seconds",
			Help:    "Model inference duration in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"provider"},
	)

	// Storage metrics
	storeOperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "assistant_store_operations_total",
			Help: "Total number of session store operations",
		},
		[]string{"op", "status"},
	)

	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "assistant_active_sessions",
			Help: "Number of sessions resident in memory",
		},
	)

	initOnce sync.Once
)

// InitMetrics initializes Prometheus metrics
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			httpRequestsTotal,
			httpRequestDuration,
			turnsTotal,
			turnDuration,
			inferenceDuration,
			storeOperationsTotal,
			activeSessions,
		)
	})
}

// MetricsHandler returns an HTTP handler for Prometheus metrics
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records HTTP request metrics
func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordTurn records the outcome and duration of one chat turn
func RecordTurn(status string, duration time.Duration) {
	turnsTotal.WithLabelValues(status).Inc()
	turnDuration.Observe(duration.Seconds())
}

// RecordInference records model inference duration
func RecordInference(provider string, duration time.Duration) {
	inferenceDuration.WithLabelValues(provider).Observe(duration.Seconds())
}

// RecordStoreOperation records a session store operation
func RecordStoreOperation(op, status string) {
	storeOperationsTotal.WithLabelValues(op, status).Inc()
}

// SetActiveSessions sets the resident session gauge
func SetActiveSessions(count int) {
	activeSessions.Set(float64(count))
}
