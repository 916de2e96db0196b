// Package metrics exposes Prometheus collectors for the SDK.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry holds the SDK-specific Prometheus collectors.
	Registry = prometheus.NewRegistry()

	engineRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "endure",
			Subsystem: "engine",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests sent to the durable engine.",
		},
		[]string{"operation", "status"},
	)

	engineDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "endure",
			Subsystem: "engine",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests to the durable engine.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10), // 5ms to ~2.6s
		},
		[]string{"operation"},
	)

	actionExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "endure",
			Subsystem: "actions",
			Name:      "total",
			Help:      "Total number of action executions by outcome.",
		},
		[]string{"status"},
	)

	actionRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "endure",
			Subsystem: "actions",
			Name:      "retries_total",
			Help:      "Total number of engine-scheduled action retries.",
		},
	)

	actionDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "endure",
			Subsystem: "actions",
			Name:      "execution_duration_seconds",
			Help:      "Duration of action executions.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~2s
		},
		[]string{"status"},
	)

	workflowRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "endure",
			Subsystem: "workflows",
			Name:      "requests_total",
			Help:      "Total number of workflow invocations handled.",
		},
		[]string{"service", "workflow", "status"},
	)
)

func init() {
	Registry.MustRegister(
		engineRequests,
		engineDuration,
		actionExecutions,
		actionRetries,
		actionDuration,
		workflowRequests,
		collectors.NewGoCollector(),
	)
}

// ObserveEngineRequest records one engine HTTP call. A zero status means the
// engine was unreachable.
func ObserveEngineRequest(operation string, status int, elapsed time.Duration) {
	label := "unreachable"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	engineRequests.WithLabelValues(operation, label).Inc()
	engineDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// ObserveAction records one action execution attempt outcome.
func ObserveAction(status string, elapsed time.Duration) {
	actionExecutions.WithLabelValues(status).Inc()
	actionDuration.WithLabelValues(status).Observe(elapsed.Seconds())
}

// RecordActionRetry counts an engine-scheduled retry.
func RecordActionRetry() {
	actionRetries.Inc()
}

// ObserveWorkflowRequest records one handled workflow invocation.
func ObserveWorkflowRequest(service, workflow string, status int) {
	workflowRequests.WithLabelValues(service, workflow, strconv.Itoa(status)).Inc()
}

// Handler exposes the SDK metrics registry over HTTP.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}
