// Package metrics exposes Prometheus instruments for the provisioning pipeline.
package metrics

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zenGate-Global/palmyra-workspaces/platform/go/retry"
)

const namespace = "palmyra_workspaces"

// Metrics groups the provisioning instruments.
type Metrics struct {
	StepAttempts   *prometheus.CounterVec
	StepDuration   *prometheus.HistogramVec
	RequestsClosed *prometheus.CounterVec
	ActiveRuns     prometheus.Gauge
	ProviderCalls  *prometheus.CounterVec
	registry       *prometheus.Registry
}

// New registers the instruments on a fresh registry that also carries the Go and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		StepAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "step_attempts_total",
			Help:      "Step attempts by step and outcome",
		}, []string{"step", "outcome"}),
		StepDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "step_attempt_duration_seconds",
			Help:      "Duration of a single step attempt",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
		}, []string{"step"}),
		RequestsClosed: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "requests_finished_total",
			Help:      "Provisioning runs that reached a terminal status",
		}, []string{"status"}),
		ActiveRuns: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "pipeline",
			Name:      "active_runs",
			Help:      "Provisioning runs currently driven by this process",
		}),
		ProviderCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "provider",
			Name:      "http_requests_total",
			Help:      "Provider API calls by provider and status class",
		}, []string{"provider", "code"}),
	}
}

// ObserveAttempt matches retry.Observer.
func (m *Metrics) ObserveAttempt(_ context.Context, a retry.Attempt) {
	m.StepAttempts.WithLabelValues(a.Step, string(a.Outcome)).Inc()
	m.StepDuration.WithLabelValues(a.Step).Observe(a.Duration.Seconds())
}

// Finished counts a terminal status.
func (m *Metrics) Finished(status string) {
	m.RequestsClosed.WithLabelValues(status).Inc()
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
