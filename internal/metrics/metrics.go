package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Label values used across the engine.
const (
	OutcomeSkipped = "skipped"
	OutcomeChecked = "checked"
	OutcomeErrored = "errored"

	AlertSent       = "sent"
	AlertFailed     = "failed"
	AlertSuppressed = "suppressed"

	RollupSummarized = "summarized"
	RollupExisting   = "existing"
	RollupEmpty      = "empty"
	RollupFailed     = "failed"
)

// Metrics holds the engine's collectors. A nil *Metrics records nothing, so
// components and tests can run without a registry.
type Metrics struct {
	passTargets   *prometheus.CounterVec
	checks        *prometheus.CounterVec
	checkDuration *prometheus.HistogramVec
	alerts        *prometheus.CounterVec
	passDuration  prometheus.Histogram
	rollups       *prometheus.CounterVec
}

// New declares the collectors and registers them on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		passTargets: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uptimeguard_pass_targets_total",
			Help: "Targets processed per pass by outcome.",
		}, []string{"outcome"}),
		checks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uptimeguard_checks_total",
			Help: "Executed checks by resulting status.",
		}, []string{"status"}),
		checkDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "uptimeguard_check_duration_seconds",
			Help:    "Wall time of a single check.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 15},
		}, []string{"type"}),
		alerts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uptimeguard_alerts_total",
			Help: "Alert decisions by kind and delivery result.",
		}, []string{"kind", "result"}),
		passDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "uptimeguard_pass_duration_seconds",
			Help:    "Wall time of a full check pass.",
			Buckets: []float64{0.1, 0.5, 1, 2.5, 5, 10, 20, 30, 60, 120},
		}),
		rollups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "uptimeguard_rollups_total",
			Help: "Daily rollup results per target.",
		}, []string{"result"}),
	}
	if reg != nil {
		reg.MustRegister(m.passTargets, m.checks, m.checkDuration, m.alerts, m.passDuration, m.rollups)
	}
	return m
}

func (m *Metrics) RecordTarget(outcome string) {
	if m == nil {
		return
	}
	m.passTargets.WithLabelValues(outcome).Inc()
}

func (m *Metrics) RecordCheck(targetType, status string, d time.Duration) {
	if m == nil {
		return
	}
	m.checks.WithLabelValues(status).Inc()
	m.checkDuration.WithLabelValues(targetType).Observe(d.Seconds())
}

func (m *Metrics) RecordAlert(kind, result string) {
	if m == nil {
		return
	}
	m.alerts.WithLabelValues(kind, result).Inc()
}

func (m *Metrics) RecordPass(d time.Duration) {
	if m == nil {
		return
	}
	m.passDuration.Observe(d.Seconds())
}

func (m *Metrics) RecordRollup(result string) {
	if m == nil {
		return
	}
	m.rollups.WithLabelValues(result).Inc()
}
