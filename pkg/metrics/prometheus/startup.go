package prometheus

import (
	"time"

	"github.com/marmos91/thunder/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// sequencerStates lists every state so SetState can zero the others.
var sequencerStates = []string{
	"Idle", "ClientConnecting", "IdentityFetching", "CommandsRegistering",
	"RestartNoticeResolving", "Ready", "Failed",
}

type startupMetrics struct {
	stepDuration *prometheus.HistogramVec
	rateLimits   *prometheus.CounterVec
	rateWait     *prometheus.CounterVec
	state        *prometheus.GaugeVec
}

// NewStartupMetrics registers the startup collectors on the process
// registry. Returns nil if metrics are not enabled.
func NewStartupMetrics() *startupMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &startupMetrics{
		stepDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "startup_step_duration_seconds",
				Help:      "Duration of startup sequencer steps",
				Buckets:   []float64{.01, .05, .1, .5, 1, 5, 15, 30, 60, 300},
			},
			[]string{"step", "outcome"},
		),
		rateLimits: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "startup_rate_limited_total",
				Help:      "Rate-limit responses received during startup by step",
			},
			[]string{"step"},
		),
		rateWait: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "startup_rate_limit_wait_seconds_total",
				Help:      "Total time spent waiting out rate limits during startup",
			},
			[]string{"step"},
		),
		state: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "startup_state",
				Help:      "Current startup sequencer state (1 for the active state)",
			},
			[]string{"state"},
		),
	}
}

func (m *startupMetrics) ObserveStep(step, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.stepDuration.WithLabelValues(step, outcome).Observe(d.Seconds())
}

func (m *startupMetrics) RecordRateLimit(step string, wait time.Duration) {
	if m == nil {
		return
	}
	m.rateLimits.WithLabelValues(step).Inc()
	m.rateWait.WithLabelValues(step).Add(wait.Seconds())
}

func (m *startupMetrics) SetState(state string) {
	if m == nil {
		return
	}
	for _, s := range sequencerStates {
		v := 0.0
		if s == state {
			v = 1
		}
		m.state.WithLabelValues(s).Set(v)
	}
}
