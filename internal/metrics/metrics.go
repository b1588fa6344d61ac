// Package metrics counts what a compile run did. The registry can be
// written in the Prometheus text exposition format for CI collectors.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "apispecc"

// Operation outcomes.
const (
	StatusEmitted  = "emitted"
	StatusRejected = "rejected"
	StatusFiltered = "filtered"
)

// Metrics holds the compile metrics. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	Operations    *prometheus.CounterVec
	Violations    *prometheus.CounterVec
	Artifacts     *prometheus.CounterVec
	StageDuration *prometheus.HistogramVec
}

// New creates the metrics on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Operations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "operations",
				Name:      "total",
				Help:      "Operations processed, by outcome",
			},
			[]string{"status"},
		),
		Violations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "violations",
				Name:      "total",
				Help:      "Validation violations, by kind",
			},
			[]string{"kind"},
		),
		Artifacts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "artifacts",
				Name:      "written_total",
				Help:      "Artifacts handed to the output sink, by target",
			},
			[]string{"target"},
		),
		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "stage",
				Name:      "duration_seconds",
				Help:      "Time spent per pipeline stage",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"stage"},
		),
	}
	m.registry.MustRegister(m.Operations, m.Violations, m.Artifacts, m.StageDuration)
	return m
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Operation(status string) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(status).Inc()
}

func (m *Metrics) Violation(kind string) {
	if m == nil {
		return
	}
	m.Violations.WithLabelValues(kind).Inc()
}

func (m *Metrics) Artifact(target string, n int) {
	if m == nil {
		return
	}
	m.Artifacts.WithLabelValues(target).Add(float64(n))
}

// Stage starts timing stage and returns the function that stops it.
func (m *Metrics) Stage(stage string) func() {
	if m == nil {
		return func() {}
	}
	start := time.Now()
	return func() {
		m.StageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
	}
}

// WriteFile writes the registry to path in the text exposition format.
func (m *Metrics) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}
	return nil
}
