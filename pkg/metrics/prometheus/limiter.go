package prometheus

import (
	"time"

	"github.com/marmos91/thunder/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type limiterMetrics struct {
	queueDepth prometheus.Gauge
	executions *prometheus.CounterVec
	queueWait  prometheus.Histogram
	dropped    prometheus.Counter
}

// NewLimiterMetrics returns nil if metrics are not enabled.
func NewLimiterMetrics() *limiterMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &limiterMetrics{
		queueDepth: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ratelimit_queue_depth",
			Help:      "Requests waiting in the rate-limited executor queue",
		}),
		executions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ratelimit_executions_total",
				Help:      "Requests executed by the rate limiter by outcome",
			},
			[]string{"outcome"},
		),
		queueWait: promauto.With(reg).NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "ratelimit_queue_wait_seconds",
			Help:      "Time a request spent queued before execution",
			Buckets:   []float64{.001, .01, .05, .1, .5, 1, 5, 30},
		}),
		dropped: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ratelimit_dropped_total",
			Help:      "Queued requests discarded at shutdown",
		}),
	}
}

func (m *limiterMetrics) SetQueueDepth(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}

func (m *limiterMetrics) ObserveExecution(outcome string, wait time.Duration) {
	if m == nil {
		return
	}
	m.executions.WithLabelValues(outcome).Inc()
	m.queueWait.Observe(wait.Seconds())
}

func (m *limiterMetrics) RecordDropped(n int) {
	if m == nil {
		return
	}
	m.dropped.Add(float64(n))
}
