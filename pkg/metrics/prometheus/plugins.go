package prometheus

import (
	"time"

	"github.com/marmos91/thunder/pkg/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type pluginMetrics struct {
	loadDuration *prometheus.HistogramVec
	loads        *prometheus.CounterVec
	discovered   prometheus.Gauge
	loaded       prometheus.Gauge
	dispatches   *prometheus.CounterVec
}

// NewPluginMetrics returns nil if metrics are not enabled.
func NewPluginMetrics() *pluginMetrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return &pluginMetrics{
		loadDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "plugin_load_duration_seconds",
				Help:      "Time spent loading a single plugin",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"source"}, // lua, builtin
		),
		loads: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "plugin_loads_total",
				Help:      "Plugin load attempts by source and outcome",
			},
			[]string{"source", "outcome"},
		),
		discovered: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "plugins_discovered",
			Help:      "Plugins discovered in the last loader pass",
		}),
		loaded: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "plugins_loaded",
			Help:      "Plugins loaded successfully in the last loader pass",
		}),
		dispatches: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "command_dispatch_total",
				Help:      "Chat commands dispatched to plugin handlers",
			},
			[]string{"command", "outcome"},
		),
	}
}

func (m *pluginMetrics) ObserveLoad(source, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.loadDuration.WithLabelValues(source).Observe(d.Seconds())
	m.loads.WithLabelValues(source, outcome).Inc()
}

func (m *pluginMetrics) SetLoaded(total, succeeded int) {
	if m == nil {
		return
	}
	m.discovered.Set(float64(total))
	m.loaded.Set(float64(succeeded))
}

func (m *pluginMetrics) RecordDispatch(command, outcome string) {
	if m == nil {
		return
	}
	m.dispatches.WithLabelValues(command, outcome).Inc()
}
