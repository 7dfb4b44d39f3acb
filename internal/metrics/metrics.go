// Package metrics exposes the hub's Prometheus vectors, grounded on the
// teacher's internal/metrics/metrics.go promauto usage.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ToolCallsTotal counts every dispatched tool call, labeled by
	// server/tool/status (status: success, error, rejected). Executor-level
	// retries and confirmation denials are not counted here.
	ToolCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hub_tool_calls_total",
		Help: "The total number of tool calls dispatched through the hub",
	}, []string{"server", "tool", "status"})

	// ConnectionStatus mirrors a server's lifecycle state as a gauge
	// (0=disconnected, 1=connecting, 2=connected).
	ConnectionStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "hub_connection_status",
		Help: "Connection lifecycle state per server (0=disconnected, 1=connecting, 2=connected)",
	}, []string{"server"})

	// ActiveOperations mirrors activeOperationCount against MAX_CONCURRENT_OPERATIONS.
	ActiveOperations = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "hub_active_operations",
		Help: "Number of tool calls currently admitted and executing",
	})

	// ComposedToolExecutionsTotal counts composed-tool runs by outcome.
	ComposedToolExecutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "hub_composed_tool_executions_total",
		Help: "The total number of composed tool executions",
	}, []string{"tool", "status"})

	// ToolCallDuration measures wall-clock time of a single tools/call.
	ToolCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "hub_tool_call_duration_seconds",
		Help:    "Duration of a single tool call",
		Buckets: prometheus.DefBuckets,
	}, []string{"server", "tool"})
)

// StatusGaugeValue maps a connection status string to the gauge's numeric
// convention.
func StatusGaugeValue(status string) float64 {
	switch status {
	case "connecting":
		return 1
	case "connected":
		return 2
	default:
		return 0
	}
}
