package telemetry

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics provides Prometheus metrics for lifecycle phases and component
// operations. A CLI run is short-lived, so metrics are written to a
// node-exporter textfile instead of being scraped.
type Metrics struct {
	config MetricsConfig

	phases        *prometheus.CounterVec
	phaseDuration *prometheus.HistogramVec
	componentOps  *prometheus.CounterVec
	policyDenials *prometheus.CounterVec
	errorsByClass *prometheus.CounterVec

	registry *prometheus.Registry
}

// NewMetrics creates a new metrics collector with the given configuration.
func NewMetrics(cfg MetricsConfig) (*Metrics, error) {
	if !cfg.Enabled {
		return &Metrics{config: cfg}, nil
	}

	namespace := cfg.Namespace
	buckets := cfg.DefaultHistogramBuckets
	if len(buckets) == 0 {
		buckets = prometheus.DefBuckets
	}

	registry := prometheus.NewRegistry()

	m := &Metrics{
		config:   cfg,
		registry: registry,

		phases: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "phase_total",
				Help:      "Total number of lifecycle phases run, by result",
			},
			[]string{"phase", "result"},
		),
		phaseDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "phase_duration_seconds",
				Help:      "Duration of lifecycle phases in seconds",
				Buckets:   buckets,
			},
			[]string{"phase"},
		),
		componentOps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "component_operations_total",
				Help:      "Total number of component operations, by result",
			},
			[]string{"operation", "component", "result"},
		),
		policyDenials: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "policy_denials_total",
				Help:      "Total number of provision or deploy items denied by policy",
			},
			[]string{"phase", "component"},
		),
		errorsByClass: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "errors_total",
				Help:      "Total number of errors by class",
			},
			[]string{"class"},
		),
	}

	collectors := []prometheus.Collector{
		m.phases,
		m.phaseDuration,
		m.componentOps,
		m.policyDenials,
		m.errorsByClass,
	}
	for _, c := range collectors {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("failed to register metric: %w", err)
		}
	}

	return m, nil
}

// Enabled returns true if metrics are collected.
func (m *Metrics) Enabled() bool {
	return m.registry != nil
}

// RecordPhase records a finished phase.
func (m *Metrics) RecordPhase(phase, result string, duration time.Duration) {
	if !m.Enabled() {
		return
	}
	m.phases.WithLabelValues(phase, result).Inc()
	m.phaseDuration.WithLabelValues(phase).Observe(duration.Seconds())
}

// RecordComponentOperation records one component operation.
func (m *Metrics) RecordComponentOperation(operation, component, result string) {
	if !m.Enabled() {
		return
	}
	m.componentOps.WithLabelValues(operation, component, result).Inc()
}

// RecordPolicyDenial records a provision or deploy item denied by policy.
func (m *Metrics) RecordPolicyDenial(phase, component string) {
	if !m.Enabled() {
		return
	}
	m.policyDenials.WithLabelValues(phase, component).Inc()
}

// RecordError records an error by class.
func (m *Metrics) RecordError(errorClass string) {
	if !m.Enabled() {
		return
	}
	m.errorsByClass.WithLabelValues(errorClass).Inc()
}

// Registry returns the metrics registry, nil when disabled.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// WriteFile writes the current metrics in the text exposition format to
// the configured file. It is a no-op without a file.
func (m *Metrics) WriteFile() error {
	if !m.Enabled() || m.config.File == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(m.config.File), 0o755); err != nil {
		return fmt.Errorf("failed to create metrics folder: %w", err)
	}
	if err := prometheus.WriteToTextfile(m.config.File, m.registry); err != nil {
		return fmt.Errorf("failed to write metrics file: %w", err)
	}
	return nil
}

// Timer measures elapsed time.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
