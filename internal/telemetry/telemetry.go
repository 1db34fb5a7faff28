// Package telemetry traces the bot lifecycle: startup steps, plugin loads,
// recurring task iterations, webhook dispatches and teardown.
package telemetry

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"google.golang.org/grpc"
)

// flushTimeout bounds the exporter flush on shutdown.
const flushTimeout = 5 * time.Second

// tracing is the active tracer plus the bot identity stamped on every span.
// It is replaced as a whole, never mutated.
type tracing struct {
	tracer  trace.Tracer
	enabled bool
	bot     []attribute.KeyValue
}

var (
	disabled = &tracing{tracer: noop.NewTracerProvider().Tracer("")}
	active   atomic.Pointer[tracing]
)

func current() *tracing {
	if t := active.Load(); t != nil {
		return t
	}
	return disabled
}

// Option customizes Init.
type Option func(*options)

type options struct {
	provider trace.TracerProvider
	attrs    []attribute.KeyValue
}

// WithTracerProvider traces into tp instead of an OTLP exporter, even when
// cfg.Enabled is false. The caller owns tp's shutdown.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(o *options) { o.provider = tp }
}

// WithResourceAttributes adds attributes to the exported resource.
func WithResourceAttributes(attrs ...attribute.KeyValue) Option {
	return func(o *options) { o.attrs = append(o.attrs, attrs...) }
}

// Init installs the tracer named cfg.ServiceName. The returned function
// flushes pending spans and restores the no-op tracer.
func Init(ctx context.Context, cfg Config, opts ...Option) (func(context.Context) error, error) {
	var o options
	for _, opt := range opts {
		opt(&o)
	}

	if o.provider != nil {
		active.Store(&tracing{tracer: o.provider.Tracer(cfg.ServiceName), enabled: true})
		return func(context.Context) error {
			active.Store(nil)
			return nil
		}, nil
	}

	if !cfg.Enabled {
		active.Store(nil)
		return func(context.Context) error { return nil }, nil
	}

	exporterOpts := []otlptracegrpc.Option{
		otlptracegrpc.WithEndpoint(cfg.Endpoint),
		otlptracegrpc.WithDialOption(grpc.WithUserAgent(cfg.ServiceName + "/" + cfg.ServiceVersion)),
	}
	if cfg.Insecure {
		exporterOpts = append(exporterOpts, otlptracegrpc.WithInsecure())
	}
	exporter, err := otlptracegrpc.New(ctx, exporterOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create OTLP exporter: %w", err)
	}

	res, err := resource.New(ctx,
		resource.WithAttributes(append([]attribute.KeyValue{
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			semconv.ServiceInstanceID(uuid.NewString()),
		}, o.attrs...)...),
		resource.WithHost(),
		resource.WithProcess(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create resource: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(samplerFor(cfg.SampleRate)),
	)
	otel.SetTracerProvider(tp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))
	active.Store(&tracing{tracer: tp.Tracer(cfg.ServiceName), enabled: true})

	return func(ctx context.Context) error {
		active.Store(nil)
		flushCtx, cancel := context.WithTimeout(ctx, flushTimeout)
		defer cancel()
		return tp.Shutdown(flushCtx)
	}, nil
}

func samplerFor(rate float64) sdktrace.Sampler {
	switch {
	case rate >= 1.0:
		return sdktrace.AlwaysSample()
	case rate <= 0.0:
		return sdktrace.NeverSample()
	default:
		return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(rate))
	}
}

// SetBot stamps the bot identity on every span started afterwards. The
// identity is only known once the startup sequence has fetched it.
func SetBot(id int64, username string) {
	t := current()
	if !t.enabled {
		return
	}
	active.Store(&tracing{
		tracer:  t.tracer,
		enabled: true,
		bot:     []attribute.KeyValue{BotID(id), BotUsername(username)},
	})
}

// IsEnabled reports whether spans are recorded anywhere.
func IsEnabled() bool {
	return current().enabled
}

// StartSpan starts a span carrying the bot identity, if known. The caller
// must End it.
func StartSpan(ctx context.Context, name string, opts ...trace.SpanStartOption) (context.Context, trace.Span) {
	t := current()
	if len(t.bot) > 0 {
		opts = append(opts, trace.WithAttributes(t.bot...))
	}
	return t.tracer.Start(ctx, name, opts...)
}

// AddEvent adds an event to the span in ctx.
func AddEvent(ctx context.Context, name string, attrs ...attribute.KeyValue) {
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}

// RecordError records err on the span in ctx and marks it failed.
func RecordError(ctx context.Context, err error) {
	if err == nil {
		return
	}
	span := trace.SpanFromContext(ctx)
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
