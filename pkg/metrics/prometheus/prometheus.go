// Package prometheus provides the client_golang implementations of the
// interfaces in pkg/metrics. Importing it for side effects installs them.
package prometheus

import "github.com/marmos91/thunder/pkg/metrics"

const namespace = "thunder"

func init() {
	metrics.RegisterConstructors(metrics.Constructors{
		Startup:  func() metrics.StartupMetrics { return NewStartupMetrics() },
		Plugin:   func() metrics.PluginMetrics { return NewPluginMetrics() },
		Task:     func() metrics.TaskMetrics { return NewTaskMetrics() },
		Limiter:  func() metrics.LimiterMetrics { return NewLimiterMetrics() },
		Shutdown: func() metrics.ShutdownMetrics { return NewShutdownMetrics() },
	})
}
