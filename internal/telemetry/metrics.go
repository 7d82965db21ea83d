package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tjfontaine/polyglot-dashboard/internal/core/domain"
)

const namespace = "dashboard"

// Metrics holds the dashboard's Prometheus collectors on a private registry.
type Metrics struct {
	registry *prometheus.Registry

	// StageExecutions counts stage executions by stage and result ("ok" or an error kind).
	StageExecutions *prometheus.CounterVec

	// StageDuration tracks upstream latency per stage.
	StageDuration *prometheus.HistogramVec

	// RunsStarted counts runs begun.
	RunsStarted prometheus.Counter

	// RunsEnded counts runs ended by outcome.
	RunsEnded *prometheus.CounterVec

	// ActiveRuns is runs started and not yet ended in this process.
	ActiveRuns prometheus.Gauge
}

// NewMetrics registers the dashboard collectors plus the Go and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		StageExecutions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "stage_executions_total",
				Help:      "Stage executions by stage and result",
			},
			[]string{"stage", "result"},
		),
		StageDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "stage_duration_seconds",
				Help:      "Stage execution time including the upstream call",
				Buckets:   prometheus.ExponentialBuckets(0.025, 2, 10),
			},
			[]string{"stage"},
		),
		RunsStarted: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_started_total",
				Help:      "Runs begun",
			},
		),
		RunsEnded: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "runs_ended_total",
				Help:      "Runs ended by outcome",
			},
			[]string{"outcome"},
		),
		ActiveRuns: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "active_runs",
				Help:      "Runs started and not yet ended",
			},
		),
	}
}

// ObserveStage records one stage execution. An empty kind means success.
func (m *Metrics) ObserveStage(stage domain.StageName, kind domain.ErrorKind, d time.Duration) {
	result := "ok"
	if kind != "" {
		result = string(kind)
	}
	m.StageExecutions.WithLabelValues(string(stage), result).Inc()
	m.StageDuration.WithLabelValues(string(stage)).Observe(d.Seconds())
}

func (m *Metrics) RunStarted() {
	m.RunsStarted.Inc()
	m.ActiveRuns.Inc()
}

func (m *Metrics) RunEnded(outcome string) {
	m.RunsEnded.WithLabelValues(outcome).Inc()
	m.ActiveRuns.Dec()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
