package prometheus

import (
	"time"

	"github.com/marmos91/thunder/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type taskMetrics struct {
	running    *prometheus.GaugeVec
	starts     *prometheus.CounterVec
	iterations *prometheus.HistogramVec
}

// NewTaskMetrics returns nil if metrics are not enabled.
func NewTaskMetrics() *taskMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &taskMetrics{
		running: promauto.With(reg).NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "task_running",
				Help:      "Whether a supervised background task is running",
			},
			[]string{"task"},
		),
		starts: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "task_starts_total",
				Help:      "Supervised task launches",
			},
			[]string{"task"},
		),
		iterations: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "task_iteration_duration_seconds",
				Help:      "Duration of recurring task iterations by outcome",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"task", "outcome"},
		),
	}
}

func (m *taskMetrics) TaskStarted(label string) {
	if m == nil {
		return
	}
	m.starts.WithLabelValues(label).Inc()
	m.running.WithLabelValues(label).Set(1)
}

func (m *taskMetrics) TaskStopped(label string) {
	if m == nil {
		return
	}
	m.running.WithLabelValues(label).Set(0)
}

func (m *taskMetrics) ObserveIteration(label, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.iterations.WithLabelValues(label, outcome).Observe(d.Seconds())
}
