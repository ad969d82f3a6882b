// Package metrics exposes Prometheus instrumentation for the protocol
// server: tool executions, push-channel population and module reloads.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the process.
type Metrics struct {
	registry *prometheus.Registry

	// Tool metrics
	ToolExecutionsTotal   *prometheus.CounterVec
	ToolExecutionDuration *prometheus.HistogramVec

	// Push-channel metrics
	PushClientsActive prometheus.Gauge
	PushClientsTotal  prometheus.Counter

	// Reload metrics
	ModuleReloadsTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all metrics on a private registry.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		ToolExecutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tool_executions_total",
				Help: "Total number of tool executions",
			},
			[]string{"tool_name", "status"},
		),
		ToolExecutionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tool_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"tool_name"},
		),

		PushClientsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "push_clients_active",
				Help: "Number of currently subscribed push clients",
			},
		),
		PushClientsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "push_clients_total",
				Help: "Total number of push clients ever connected",
			},
		),

		ModuleReloadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "module_reloads_total",
				Help: "Total number of module hot reloads",
			},
			[]string{"status"},
		),
	}

	registry.MustRegister(
		m.ToolExecutionsTotal,
		m.ToolExecutionDuration,
		m.PushClientsActive,
		m.PushClientsTotal,
		m.ModuleReloadsTotal,
	)

	return m
}

// RecordToolExecution records one tool invocation.
func (m *Metrics) RecordToolExecution(toolName, status string, duration time.Duration) {
	m.ToolExecutionsTotal.WithLabelValues(toolName, status).Inc()
	m.ToolExecutionDuration.WithLabelValues(toolName).Observe(duration.Seconds())
}

// ClientConnected records a new push subscriber.
func (m *Metrics) ClientConnected() {
	m.PushClientsActive.Inc()
	m.PushClientsTotal.Inc()
}

// ClientDisconnected records a departed push subscriber.
func (m *Metrics) ClientDisconnected() {
	m.PushClientsActive.Dec()
}

// RecordReload records one hot-reload attempt.
func (m *Metrics) RecordReload(status string) {
	m.ModuleReloadsTotal.WithLabelValues(status).Inc()
}

// Handler returns the HTTP handler serving the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
