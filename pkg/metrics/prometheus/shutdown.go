package prometheus

import (
	"time"

	"github.com/marmos91/thunder/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type shutdownMetrics struct {
	steps *prometheus.HistogramVec
}

// NewShutdownMetrics returns nil if metrics are not enabled.
func NewShutdownMetrics() *shutdownMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	return &shutdownMetrics{
		steps: promauto.With(metrics.GetRegistry()).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "shutdown_step_duration_seconds",
				Help:      "Duration of teardown steps by outcome",
				Buckets:   []float64{.01, .05, .1, .5, 1, 2, 5, 10},
			},
			[]string{"step", "outcome"},
		),
	}
}

func (m *shutdownMetrics) ObserveTeardownStep(step, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.steps.WithLabelValues(step, outcome).Observe(d.Seconds())
}
