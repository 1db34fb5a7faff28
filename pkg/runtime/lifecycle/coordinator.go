// Package lifecycle tears the bot down in a fixed order once it has been
// asked to stop.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/thunder/internal/logger"
	"github.com/marmos91/thunder/internal/telemetry"
	"github.com/marmos91/thunder/pkg/metrics"
)

// DefaultShutdownTimeout is the default budget for the whole teardown.
const DefaultShutdownTimeout = 20 * time.Second

// TaskCanceller cancels and joins the background tasks.
type TaskCanceller interface {
	CancelAll(ctx context.Context) error
}

// ClientCloser releases the messaging client's connections.
type ClientCloser interface {
	Close(ctx context.Context) error
}

// LimiterShutdowner stops the request executor.
type LimiterShutdowner interface {
	Shutdown(ctx context.Context) error
}

// Listener is the HTTP endpoint.
type Listener interface {
	Stop(ctx context.Context) error
}

// Components are the parts released on teardown. Nil parts are skipped.
type Components struct {
	Tasks    TaskCanceller
	Client   ClientCloser
	Limiter  LimiterShutdowner
	Listener Listener
}

// Coordinator runs the teardown sequence exactly once.
type Coordinator struct {
	components Components
	timeout    time.Duration
	metrics    metrics.ShutdownMetrics

	once sync.Once
	err  error
}

// New creates a coordinator. A zero timeout uses DefaultShutdownTimeout.
func New(components Components, timeout time.Duration, m metrics.ShutdownMetrics) *Coordinator {
	if timeout <= 0 {
		timeout = DefaultShutdownTimeout
	}
	return &Coordinator{
		components: components,
		timeout:    timeout,
		metrics:    m,
	}
}

type teardownStep struct {
	name string
	run  func(ctx context.Context) error
}

func (c *Coordinator) steps() []teardownStep {
	var steps []teardownStep
	add := func(name string, present bool, run func(context.Context) error) {
		if !present {
			run = nil
		}
		steps = append(steps, teardownStep{name: name, run: run})
	}

	add("cancel_tasks", c.components.Tasks != nil, func(ctx context.Context) error {
		return c.components.Tasks.CancelAll(ctx)
	})
	add("close_client", c.components.Client != nil, func(ctx context.Context) error {
		return c.components.Client.Close(ctx)
	})
	add("shutdown_limiter", c.components.Limiter != nil, func(ctx context.Context) error {
		return c.components.Limiter.Shutdown(ctx)
	})
	add("stop_listener", c.components.Listener != nil, func(ctx context.Context) error {
		return c.components.Listener.Stop(ctx)
	})
	return steps
}

// Teardown cancels the background tasks, then closes the client, shuts the
// limiter down and stops the listener. Each step gets an equal slice of the
// shutdown timeout. Failures are logged and joined; they never prevent the
// following steps. Calls after the first return the first result.
//
// ctx is usually already cancelled by the time teardown starts, so only its
// values are kept.
func (c *Coordinator) Teardown(ctx context.Context) error {
	c.once.Do(func() {
		c.err = c.teardown(context.WithoutCancel(ctx))
	})
	return c.err
}

func (c *Coordinator) teardown(ctx context.Context) error {
	ctx, span := telemetry.StartSpan(ctx, telemetry.SpanShutdown)
	defer span.End()

	steps := c.steps()
	slice := c.timeout / time.Duration(len(steps))
	start := time.Now()
	logger.InfoCtx(ctx, "Shutting down", "timeout", c.timeout)

	var errs []error
	for _, step := range steps {
		if err := c.runStep(ctx, step, slice); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", step.name, err))
		}
	}

	err := errors.Join(errs...)
	telemetry.RecordError(ctx, err)
	logger.InfoCtx(ctx, "Shutdown complete", logger.KeyDurationMs, logger.Since(start), "errors", len(errs))
	return err
}

func (c *Coordinator) runStep(ctx context.Context, step teardownStep, budget time.Duration) error {
	if step.run == nil {
		metrics.ObserveTeardownStep(c.metrics, step.name, metrics.OutcomeSkipped, 0)
		return nil
	}

	ctx, span := telemetry.StartTeardownSpan(ctx, step.name)
	defer span.End()
	ctx, cancel := context.WithTimeout(ctx, budget)
	defer cancel()

	logger.DebugCtx(ctx, "Shutdown step", logger.Step(step.name))
	start := time.Now()
	err := safeRun(ctx, step.run)

	outcome := metrics.OutcomeOK
	if err != nil {
		outcome = metrics.OutcomeFailed
		telemetry.RecordError(ctx, err)
		logger.WarnCtx(ctx, "Shutdown step failed", logger.Step(step.name), logger.Err(err))
	}
	span.SetAttributes(telemetry.Outcome(outcome))
	metrics.ObserveTeardownStep(c.metrics, step.name, outcome, time.Since(start))
	return err
}

func safeRun(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}
