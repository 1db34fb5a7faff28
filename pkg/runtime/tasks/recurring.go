package tasks

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/marmos91/thunder/internal/logger"
	"github.com/marmos91/thunder/internal/telemetry"
	"github.com/marmos91/thunder/pkg/metrics"
)

// ErrInvalidInterval is returned by a recurring unit whose interval is not
// positive.
var ErrInvalidInterval = errors.New("recurring interval must be positive")

// Recurring returns a unit that waits interval and then calls fn, forever.
// A failing iteration, error or panic, is logged and the loop continues on
// its normal schedule. Cancellation ends the loop without error.
func Recurring(label string, interval time.Duration, fn func(ctx context.Context) error, m metrics.TaskMetrics) Unit {
	return func(ctx context.Context) error {
		if interval <= 0 {
			return fmt.Errorf("%s: %w: %v", label, ErrInvalidInterval, interval)
		}

		timer := time.NewTimer(interval)
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil
			case <-timer.C:
			}

			iterate(ctx, label, fn, m)
			if ctx.Err() != nil {
				return nil
			}
			timer.Reset(interval)
		}
	}
}

func iterate(ctx context.Context, label string, fn func(context.Context) error, m metrics.TaskMetrics) {
	ctx, span := telemetry.StartTaskSpan(ctx, label)
	defer span.End()

	start := time.Now()
	err := safeIteration(ctx, fn)

	outcome := metrics.OutcomeOK
	if err != nil && ctx.Err() == nil {
		outcome = metrics.OutcomeFailed
		telemetry.RecordError(ctx, err)
		logger.ErrorCtx(ctx, "Background iteration failed", logger.Task(label), logger.Err(err))
	}
	metrics.ObserveIteration(m, label, outcome, time.Since(start))
}

func safeIteration(ctx context.Context, fn func(context.Context) error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn(ctx)
}
