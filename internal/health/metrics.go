package health

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/systmms/tierup/internal/unit"
)

var (
	// Rollout metrics
	rolloutStartedTotal *prometheus.CounterVec
	unitOutcomeTotal    *prometheus.CounterVec
	tierDuration        *prometheus.HistogramVec
	rolloutDuration     *prometheus.HistogramVec

	// Probe metrics
	probeDuration *prometheus.HistogramVec
	probeTotal    *prometheus.CounterVec
	unitStatus    *prometheus.GaugeVec

	// Registration guard
	metricsOnce       sync.Once
	metricsRegistered bool
)

// Metrics records probe and rollout metrics. It is a no-op until InitMetrics
// has been called.
type Metrics struct{}

// NewMetrics creates a new Metrics instance.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// InitMetrics registers all Prometheus metrics with the default registry.
// It is safe to call more than once.
func InitMetrics() {
	metricsOnce.Do(func() {
		rolloutStartedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tierup_rollout_started_total",
				Help: "Total number of rollouts started",
			},
			[]string{"mode"},
		)

		unitOutcomeTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tierup_unit_outcome_total",
				Help: "Final unit states per tier",
			},
			[]string{"tier", "state"},
		)

		tierDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tierup_tier_duration_seconds",
				Help:    "Time from tier start to its gate decision",
				Buckets: []float64{1, 5, 15, 30, 60, 180, 600},
			},
			[]string{"tier", "state"},
		)

		rolloutDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tierup_rollout_duration_seconds",
				Help:    "Duration of whole rollouts in seconds",
				Buckets: []float64{5, 30, 60, 300, 900, 1800},
			},
			[]string{"mode", "result"},
		)

		probeDuration = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tierup_probe_duration_seconds",
				Help:    "Duration of health probes in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5},
			},
			[]string{"unit", "kind"},
		)

		probeTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tierup_probe_total",
				Help: "Total number of health probes by reported status",
			},
			[]string{"unit", "kind", "status"},
		)

		unitStatus = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "tierup_unit_healthy",
				Help: "Last probe result (1=healthy, 0=not healthy)",
			},
			[]string{"unit"},
		)

		metricsRegistered = true
	})
}

// RecordProbe records a single probe result.
func (m *Metrics) RecordProbe(unitName, kind string, status unit.Status, durationSeconds float64) {
	if !metricsRegistered {
		return
	}

	probeDuration.WithLabelValues(unitName, kind).Observe(durationSeconds)
	probeTotal.WithLabelValues(unitName, kind, status.String()).Inc()

	value := 0.0
	if status == unit.StatusHealthy {
		value = 1.0
	}
	unitStatus.WithLabelValues(unitName).Set(value)
}

// RecordRolloutStarted records the start of a run.
func (m *Metrics) RecordRolloutStarted(mode string) {
	if !metricsRegistered {
		return
	}
	rolloutStartedTotal.WithLabelValues(mode).Inc()
}

// RecordRolloutCompleted records the end of a run.
func (m *Metrics) RecordRolloutCompleted(mode, result string, durationSeconds float64) {
	if !metricsRegistered {
		return
	}
	rolloutDuration.WithLabelValues(mode, result).Observe(durationSeconds)
}

// RecordUnitOutcome records a unit's final state within a tier.
func (m *Metrics) RecordUnitOutcome(tier, state string) {
	if !metricsRegistered {
		return
	}
	unitOutcomeTotal.WithLabelValues(tier, state).Inc()
}

// RecordTier records how long a tier took and how it ended.
func (m *Metrics) RecordTier(tier, state string, durationSeconds float64) {
	if !metricsRegistered {
		return
	}
	tierDuration.WithLabelValues(tier, state).Observe(durationSeconds)
}

// GetProbeTotal returns the probe counter for testing.
func GetProbeTotal() *prometheus.CounterVec {
	return probeTotal
}

// GetUnitOutcomeTotal returns the unit outcome counter for testing.
func GetUnitOutcomeTotal() *prometheus.CounterVec {
	return unitOutcomeTotal
}

// GetRolloutStartedTotal returns the rollout started counter for testing.
func GetRolloutStartedTotal() *prometheus.CounterVec {
	return rolloutStartedTotal
}
