package metrics

import "time"

// Outcome labels shared by startup steps and plugin loads.
const (
	OutcomeOK          = "ok"
	OutcomeRateLimited = "rate_limited"
	OutcomeFailed      = "failed"
	OutcomeSkipped     = "skipped"
)

// StartupMetrics records startup sequencer activity.
type StartupMetrics interface {
	ObserveStep(step, outcome string, d time.Duration)
	RecordRateLimit(step string, wait time.Duration)
	SetState(state string)
}

// PluginMetrics records plugin loader passes.
type PluginMetrics interface {
	ObserveLoad(source, outcome string, d time.Duration)
	SetLoaded(total, succeeded int)
	RecordDispatch(command, outcome string)
}

// TaskMetrics records supervised task lifecycles and iterations.
type TaskMetrics interface {
	TaskStarted(label string)
	TaskStopped(label string)
	ObserveIteration(label, outcome string, d time.Duration)
}

// LimiterMetrics records request executor throughput.
type LimiterMetrics interface {
	SetQueueDepth(n int)
	ObserveExecution(outcome string, wait time.Duration)
	RecordDropped(n int)
}

// ShutdownMetrics records teardown steps.
type ShutdownMetrics interface {
	ObserveTeardownStep(step, outcome string, d time.Duration)
}

// Installed by pkg/metrics/prometheus during init.
var (
	newStartupMetrics  func() StartupMetrics
	newPluginMetrics   func() PluginMetrics
	newTaskMetrics     func() TaskMetrics
	newLimiterMetrics  func() LimiterMetrics
	newShutdownMetrics func() ShutdownMetrics
)

// Constructors groups the implementation hooks registered by a backend.
type Constructors struct {
	Startup  func() StartupMetrics
	Plugin   func() PluginMetrics
	Task     func() TaskMetrics
	Limiter  func() LimiterMetrics
	Shutdown func() ShutdownMetrics
}

// RegisterConstructors installs a metrics backend.
func RegisterConstructors(c Constructors) {
	newStartupMetrics = c.Startup
	newPluginMetrics = c.Plugin
	newTaskMetrics = c.Task
	newLimiterMetrics = c.Limiter
	newShutdownMetrics = c.Shutdown
}

// NewStartupMetrics returns nil when metrics are disabled.
func NewStartupMetrics() StartupMetrics {
	if !IsEnabled() || newStartupMetrics == nil {
		return nil
	}
	return newStartupMetrics()
}

// NewPluginMetrics returns nil when metrics are disabled.
func NewPluginMetrics() PluginMetrics {
	if !IsEnabled() || newPluginMetrics == nil {
		return nil
	}
	return newPluginMetrics()
}

// NewTaskMetrics returns nil when metrics are disabled.
func NewTaskMetrics() TaskMetrics {
	if !IsEnabled() || newTaskMetrics == nil {
		return nil
	}
	return newTaskMetrics()
}

// NewLimiterMetrics returns nil when metrics are disabled.
func NewLimiterMetrics() LimiterMetrics {
	if !IsEnabled() || newLimiterMetrics == nil {
		return nil
	}
	return newLimiterMetrics()
}

// NewShutdownMetrics returns nil when metrics are disabled.
func NewShutdownMetrics() ShutdownMetrics {
	if !IsEnabled() || newShutdownMetrics == nil {
		return nil
	}
	return newShutdownMetrics()
}

// ObserveStep records a startup step if m is non-nil.
func ObserveStep(m StartupMetrics, step, outcome string, d time.Duration) {
	if m != nil {
		m.ObserveStep(step, outcome, d)
	}
}

// RecordRateLimit records a provider-imposed wait if m is non-nil.
func RecordRateLimit(m StartupMetrics, step string, wait time.Duration) {
	if m != nil {
		m.RecordRateLimit(step, wait)
	}
}

// SetState records the sequencer state if m is non-nil.
func SetState(m StartupMetrics, state string) {
	if m != nil {
		m.SetState(state)
	}
}

// ObserveLoad records one plugin load if m is non-nil.
func ObserveLoad(m PluginMetrics, source, outcome string, d time.Duration) {
	if m != nil {
		m.ObserveLoad(source, outcome, d)
	}
}

// SetLoaded records the result of a loader pass if m is non-nil.
func SetLoaded(m PluginMetrics, total, succeeded int) {
	if m != nil {
		m.SetLoaded(total, succeeded)
	}
}

// RecordDispatch records a chat command dispatch if m is non-nil.
func RecordDispatch(m PluginMetrics, command, outcome string) {
	if m != nil {
		m.RecordDispatch(command, outcome)
	}
}

// TaskStarted records a task start if m is non-nil.
func TaskStarted(m TaskMetrics, label string) {
	if m != nil {
		m.TaskStarted(label)
	}
}

// TaskStopped records a task exit if m is non-nil.
func TaskStopped(m TaskMetrics, label string) {
	if m != nil {
		m.TaskStopped(label)
	}
}

// ObserveIteration records one recurring-loop iteration if m is non-nil.
func ObserveIteration(m TaskMetrics, label, outcome string, d time.Duration) {
	if m != nil {
		m.ObserveIteration(label, outcome, d)
	}
}

// SetQueueDepth records the executor queue depth if m is non-nil.
func SetQueueDepth(m LimiterMetrics, n int) {
	if m != nil {
		m.SetQueueDepth(n)
	}
}

// ObserveExecution records a drained request if m is non-nil.
func ObserveExecution(m LimiterMetrics, outcome string, wait time.Duration) {
	if m != nil {
		m.ObserveExecution(outcome, wait)
	}
}

// RecordDropped records requests discarded at shutdown if m is non-nil.
func RecordDropped(m LimiterMetrics, n int) {
	if m != nil && n > 0 {
		m.RecordDropped(n)
	}
}

// ObserveTeardownStep records one shutdown step if m is non-nil.
func ObserveTeardownStep(m ShutdownMetrics, step, outcome string, d time.Duration) {
	if m != nil {
		m.ObserveTeardownStep(step, outcome, d)
	}
}
