package logger

import (
	"context"
	"time"
)

type contextKey struct{}

var logContextKey = contextKey{}

// LogContext carries the fields that identify where in the orchestrator a log
// line was produced. It is attached to a context once and cloned on change.
type LogContext struct {
	TraceID   string
	SpanID    string
	Component string // sequencer, loader, supervisor, coordinator, api
	Step      string // startup step name
	Task      string // supervised task label
	Plugin    string // plugin being loaded or dispatched
	StartTime time.Time
}

// WithContext returns a copy of ctx carrying lc.
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext returns the LogContext stored in ctx, or nil.
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext starts a LogContext for the given component.
func NewLogContext(component string) *LogContext {
	return &LogContext{Component: component, StartTime: time.Now()}
}

// Clone returns a shallow copy. A nil receiver yields nil.
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	c := *lc
	return &c
}

// WithStep returns a copy with the startup step set.
func (lc *LogContext) WithStep(step string) *LogContext {
	c := lc.Clone()
	if c != nil {
		c.Step = step
	}
	return c
}

// WithTask returns a copy with the supervised task label set.
func (lc *LogContext) WithTask(task string) *LogContext {
	c := lc.Clone()
	if c != nil {
		c.Task = task
	}
	return c
}

// WithPlugin returns a copy with the plugin name set.
func (lc *LogContext) WithPlugin(name string) *LogContext {
	c := lc.Clone()
	if c != nil {
		c.Plugin = name
	}
	return c
}

// WithTrace returns a copy with trace identifiers set.
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	c := lc.Clone()
	if c != nil {
		c.TraceID = traceID
		c.SpanID = spanID
	}
	return c
}

// DurationMs returns the time since StartTime in milliseconds.
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return Since(lc.StartTime)
}

// withContextFields prepends the LogContext fields of ctx to args.
func withContextFields(ctx context.Context, args []any) []any {
	lc := FromContext(ctx)
	if lc == nil {
		return args
	}

	out := make([]any, 0, 12+len(args))
	if lc.TraceID != "" {
		out = append(out, KeyTraceID, lc.TraceID)
	}
	if lc.SpanID != "" {
		out = append(out, KeySpanID, lc.SpanID)
	}
	if lc.Component != "" {
		out = append(out, KeyComponent, lc.Component)
	}
	if lc.Step != "" {
		out = append(out, KeyStep, lc.Step)
	}
	if lc.Task != "" {
		out = append(out, KeyTask, lc.Task)
	}
	if lc.Plugin != "" {
		out = append(out, KeyPlugin, lc.Plugin)
	}
	return append(out, args...)
}
