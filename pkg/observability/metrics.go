// Package observability exposes Prometheus metrics and health endpoints for
// the travel agent service.
package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Turn metrics
	turnsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voyagent_turns_total",
			Help: "Total number of conversation turns processed",
		},
		[]string{"status"},
	)

	turnDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voyagent_turn_duration_seconds",
			Help:    "Conversation turn duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"status"},
	)

	// Node metrics
	nodeExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voyagent_node_executions_total",
			Help: "Total number of workflow node executions",
		},
		[]string{"node", "status"},
	)

	nodeDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voyagent_node_duration_seconds",
			Help:    "Workflow node execution duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"node"},
	)

	// External tool metrics
	toolCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voyagent_tool_calls_total",
			Help: "Total number of external tool calls",
		},
		[]string{"tool", "status"},
	)

	toolCallDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voyagent_tool_call_duration_seconds",
			Help:    "External tool call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"tool"},
	)

	// HTTP metrics
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voyagent_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "voyagent_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	initOnce sync.Once
)

// InitMetrics registers all Prometheus metrics. Safe to call more than once.
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			turnsTotal,
			turnDuration,
			nodeExecutionsTotal,
			nodeDuration,
			toolCallsTotal,
			toolCallDuration,
			httpRequestsTotal,
			httpRequestDuration,
		)
	})
}

// MetricsHandler returns an HTTP handler for Prometheus metrics.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// RecordTurn records a completed conversation turn.
func RecordTurn(status string, duration time.Duration) {
	turnsTotal.WithLabelValues(status).Inc()
	turnDuration.WithLabelValues(status).Observe(duration.Seconds())
}

// RecordNodeExecution records a workflow node execution.
func RecordNodeExecution(node, status string, duration time.Duration) {
	nodeExecutionsTotal.WithLabelValues(node, status).Inc()
	nodeDuration.WithLabelValues(node).Observe(duration.Seconds())
}

// RecordToolCall records an external tool call.
func RecordToolCall(tool, status string, duration time.Duration) {
	toolCallsTotal.WithLabelValues(tool, status).Inc()
	toolCallDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// RecordHTTPRequest records HTTP request metrics.
func RecordHTTPRequest(method, path, status string, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
