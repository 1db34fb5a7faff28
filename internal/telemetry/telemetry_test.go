package telemetry

import (
	"context"
	"errors"
	"runtime/pprof"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.opentelemetry.io/otel/trace"
)

// recordSpans routes spans into an in-memory recorder for the test.
func recordSpans(t *testing.T, serviceName string) *tracetest.SpanRecorder {
	t.Helper()

	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	shutdown, err := Init(context.Background(), Config{ServiceName: serviceName}, WithTracerProvider(tp))
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = shutdown(context.Background())
		_ = tp.Shutdown(context.Background())
	})
	return sr
}

func attrMap(kvs []attribute.KeyValue) map[string]any {
	m := make(map[string]any, len(kvs))
	for _, kv := range kvs {
		m[string(kv.Key)] = kv.Value.AsInterface()
	}
	return m
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.False(t, cfg.Enabled)
	assert.Equal(t, "thunder", cfg.ServiceName)
	assert.Equal(t, "dev", cfg.ServiceVersion)
	assert.Equal(t, "localhost:4317", cfg.Endpoint)
	assert.True(t, cfg.Insecure)
	assert.Equal(t, 1.0, cfg.SampleRate)
}

func TestInitDisabled(t *testing.T) {
	ctx := context.Background()

	shutdown, err := Init(ctx, DefaultConfig())
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	assert.NoError(t, shutdown(ctx))
	assert.False(t, IsEnabled())

	_, span := StartSpan(ctx, SpanStartup)
	assert.False(t, span.SpanContext().IsValid())
	span.End()
}

func TestSetBotIgnoredWhileDisabled(t *testing.T) {
	_, err := Init(context.Background(), DefaultConfig())
	require.NoError(t, err)

	SetBot(42, "thunderbot")
	assert.False(t, IsEnabled())
	assert.Empty(t, current().bot)
}

func TestSamplerFor(t *testing.T) {
	assert.Contains(t, samplerFor(1).Description(), "AlwaysOn")
	assert.Contains(t, samplerFor(0).Description(), "AlwaysOff")
	assert.Contains(t, samplerFor(0.25).Description(), "TraceIDRatioBased")
}

func TestHelpersWithoutSpan(t *testing.T) {
	ctx := context.Background()

	require.NotPanics(t, func() {
		AddEvent(ctx, "noop.event")
		RecordError(ctx, nil)
		RecordError(ctx, errors.New("boom"))
	})
}

func TestTracerNamedAfterService(t *testing.T) {
	sr := recordSpans(t, "thunder-bot")

	_, span := StartSpan(context.Background(), SpanStartup)
	span.End()

	ended := sr.Ended()
	require.Len(t, ended, 1)
	assert.Equal(t, "thunder-bot", ended[0].InstrumentationScope().Name)
}

func TestShutdownRestoresNoOp(t *testing.T) {
	tp := sdktrace.NewTracerProvider()
	shutdown, err := Init(context.Background(), Config{ServiceName: "thunder"}, WithTracerProvider(tp))
	require.NoError(t, err)
	assert.True(t, IsEnabled())

	require.NoError(t, shutdown(context.Background()))
	assert.False(t, IsEnabled())
}

func TestStartStepSpanRecordsAttributes(t *testing.T) {
	sr := recordSpans(t, "thunder")

	ctx, span := StartStepSpan(context.Background(), "connect", Attempt(2))
	assert.True(t, trace.SpanContextFromContext(ctx).HasTraceID())
	RecordError(ctx, errors.New("flood wait"))
	span.End()

	ended := sr.Ended()
	require.Len(t, ended, 1)
	s := ended[0]
	assert.Equal(t, SpanStartupStep, s.Name())
	assert.Equal(t, codes.Error, s.Status().Code)

	attrs := attrMap(s.Attributes())
	assert.Equal(t, "connect", attrs[AttrStep])
	assert.Equal(t, int64(2), attrs[AttrAttempt])
	assert.NotContains(t, attrs, AttrBotID, "identity is unknown before SetBot")
}

func TestSpansCarryBotIdentity(t *testing.T) {
	sr := recordSpans(t, "thunder")

	SetBot(42, "thunderbot")
	_, span := StartSpan(context.Background(), SpanDispatch, trace.WithAttributes(Command("start")))
	span.End()

	ended := sr.Ended()
	require.Len(t, ended, 1)
	attrs := attrMap(ended[0].Attributes())
	assert.Equal(t, int64(42), attrs[AttrBotID])
	assert.Equal(t, "thunderbot", attrs[AttrBotName])
	assert.Equal(t, "start", attrs[AttrCommand])
}

func TestDomainSpans(t *testing.T) {
	sr := recordSpans(t, "thunder")
	ctx := context.Background()

	_, s1 := StartPluginSpan(ctx, "greet", "lua")
	s1.End()
	_, s2 := StartTaskSpan(ctx, "token-cleanup")
	s2.End()
	_, s3 := StartTeardownSpan(ctx, "client.close")
	s3.End()

	ended := sr.Ended()
	require.Len(t, ended, 3)
	assert.Equal(t, SpanPluginLoad, ended[0].Name())
	assert.Equal(t, SpanTaskIteration, ended[1].Name())
	assert.Equal(t, SpanShutdownStep, ended[2].Name())
}

func TestAttributeHelpers(t *testing.T) {
	tests := []struct {
		name string
		got  any
		want any
	}{
		{"Plugin", Plugin("greet").Value.AsString(), "greet"},
		{"Task", Task("keepalive").Value.AsString(), "keepalive"},
		{"WaitMs", WaitMs(1500).Value.AsInt64(), int64(1500)},
		{"ChatID", ChatID(-100).Value.AsInt64(), int64(-100)},
		{"Outcome", Outcome("ok").Value.AsString(), "ok"},
		{"StoreType", StoreType("badger").Value.AsString(), "badger"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
	assert.Equal(t, AttrCommand, string(Command("start").Key))
	assert.Equal(t, AttrState, string(State("Ready").Key))
}

func TestParseProfileTypes(t *testing.T) {
	types, err := ParseProfileTypes(DefaultProfileTypes)
	require.NoError(t, err)
	assert.Len(t, types, len(DefaultProfileTypes))

	types, err = ParseProfileTypes(nil)
	require.NoError(t, err)
	assert.Empty(t, types)

	_, err = ParseProfileTypes([]string{"cpu", "heap"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"heap"`)
	assert.Contains(t, err.Error(), "block_duration")
}

func TestInitProfilingDisabled(t *testing.T) {
	shutdown, err := InitProfiling(ProfilingConfig{Enabled: false})
	require.NoError(t, err)
	assert.NoError(t, shutdown())
	assert.False(t, IsProfilingEnabled())
}

func TestInitProfilingRejectsUnknownType(t *testing.T) {
	_, err := InitProfiling(ProfilingConfig{Enabled: true, Endpoint: "http://localhost:4040", ProfileTypes: []string{"heap"}})
	assert.Error(t, err)
	assert.False(t, IsProfilingEnabled())
}

func TestProfileCommandLabelsContext(t *testing.T) {
	var label string
	var ok bool
	ProfileCommand(context.Background(), "ping", func(ctx context.Context) {
		label, ok = pprof.Label(ctx, labelCommand)
	})
	assert.True(t, ok)
	assert.Equal(t, "ping", label)
}
