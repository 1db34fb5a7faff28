package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys used on orchestrator spans.
const (
	AttrBotID     = "thunder.bot.id"
	AttrBotName   = "thunder.bot.username"
	AttrStore     = "thunder.store.type"
	AttrStep      = "thunder.startup.step"
	AttrState     = "thunder.startup.state"
	AttrAttempt   = "thunder.startup.attempt"
	AttrWait      = "thunder.ratelimit.wait_ms"
	AttrPlugin    = "thunder.plugin.name"
	AttrPluginSrc = "thunder.plugin.source" // lua or builtin
	AttrTask      = "thunder.task.label"
	AttrTeardown  = "thunder.shutdown.step"
	AttrCommand   = "thunder.command"
	AttrChatID    = "thunder.chat.id"
	AttrOutcome   = "thunder.outcome"
)

// Span names.
const (
	SpanStartup       = "startup.run"
	SpanStartupStep   = "startup.step"
	SpanPluginPass    = "plugin.load_all"
	SpanPluginLoad    = "plugin.load"
	SpanTaskIteration = "task.iteration"
	SpanShutdown      = "shutdown.teardown"
	SpanShutdownStep  = "shutdown.step"
	SpanDispatch      = "webhook.dispatch"
)

// BotID returns the bot user id attribute.
func BotID(id int64) attribute.KeyValue { return attribute.Int64(AttrBotID, id) }

// BotUsername returns the bot username attribute.
func BotUsername(name string) attribute.KeyValue { return attribute.String(AttrBotName, name) }

// StoreType returns the persistence backend attribute.
func StoreType(t string) attribute.KeyValue { return attribute.String(AttrStore, t) }

// Step returns the startup step attribute.
func Step(name string) attribute.KeyValue { return attribute.String(AttrStep, name) }

// State returns the sequencer state attribute.
func State(name string) attribute.KeyValue { return attribute.String(AttrState, name) }

// Attempt returns the attempt number attribute.
func Attempt(n int) attribute.KeyValue { return attribute.Int(AttrAttempt, n) }

// WaitMs returns the signalled rate-limit wait in milliseconds.
func WaitMs(ms int64) attribute.KeyValue { return attribute.Int64(AttrWait, ms) }

// Plugin returns the plugin name attribute.
func Plugin(name string) attribute.KeyValue { return attribute.String(AttrPlugin, name) }

// PluginSource returns the plugin source attribute.
func PluginSource(src string) attribute.KeyValue { return attribute.String(AttrPluginSrc, src) }

// Task returns the supervised task label attribute.
func Task(label string) attribute.KeyValue { return attribute.String(AttrTask, label) }

// TeardownStep returns the shutdown step attribute.
func TeardownStep(name string) attribute.KeyValue { return attribute.String(AttrTeardown, name) }

// Command returns the chat command attribute.
func Command(name string) attribute.KeyValue { return attribute.String(AttrCommand, name) }

// ChatID returns the chat id attribute.
func ChatID(id int64) attribute.KeyValue { return attribute.Int64(AttrChatID, id) }

// Outcome returns the outcome attribute (ok, rate_limited, failed, ...).
func Outcome(o string) attribute.KeyValue { return attribute.String(AttrOutcome, o) }

// StartStepSpan starts a span for a single startup step.
func StartStepSpan(ctx context.Context, step string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	all := append([]attribute.KeyValue{Step(step)}, attrs...)
	return StartSpan(ctx, SpanStartupStep, trace.WithAttributes(all...))
}

// StartPluginSpan starts a span for loading one plugin.
func StartPluginSpan(ctx context.Context, name, source string) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanPluginLoad, trace.WithAttributes(Plugin(name), PluginSource(source)))
}

// StartTaskSpan starts a span for one iteration of a recurring task.
func StartTaskSpan(ctx context.Context, label string) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanTaskIteration, trace.WithAttributes(Task(label)))
}

// StartTeardownSpan starts a span for one shutdown step.
func StartTeardownSpan(ctx context.Context, step string) (context.Context, trace.Span) {
	return StartSpan(ctx, SpanShutdownStep, trace.WithAttributes(TeardownStep(step)))
}
