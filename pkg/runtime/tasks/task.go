// Package tasks supervises the long-lived background units the bot runs
// for its whole lifetime. Each unit is a goroutine with its own cancel
// handle and a done channel.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/marmos91/thunder/internal/logger"
	"github.com/marmos91/thunder/pkg/metrics"
)

// Unit is the body of a supervised task. It must return once ctx is done.
type Unit func(ctx context.Context) error

// Task is a handle to one running unit.
type Task struct {
	label  string
	cancel context.CancelFunc
	done   chan struct{}

	cancelOnce sync.Once
	cancelled  chan struct{}

	err error
}

func start(ctx context.Context, label string, unit Unit, m metrics.TaskMetrics) *Task {
	ctx, cancel := context.WithCancel(ctx)
	ctx = logger.WithContext(ctx, logger.NewLogContext("tasks").WithTask(label))

	t := &Task{
		label:     label,
		cancel:    cancel,
		done:      make(chan struct{}),
		cancelled: make(chan struct{}),
	}

	metrics.TaskStarted(m, label)
	go func() {
		defer close(t.done)
		defer metrics.TaskStopped(m, label)
		defer cancel()

		t.err = run(ctx, unit)
		switch {
		case t.err == nil, errors.Is(t.err, context.Canceled):
			logger.DebugCtx(ctx, "Background task stopped", logger.Task(label))
		default:
			logger.ErrorCtx(ctx, "Background task failed", logger.Task(label), logger.Err(t.err))
		}
	}()
	return t
}

func run(ctx context.Context, unit Unit) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return unit(ctx)
}

// Label returns the task's name.
func (t *Task) Label() string { return t.label }

// Cancel requests the task to stop. It does not wait and may be called any
// number of times.
func (t *Task) Cancel() {
	t.cancelOnce.Do(func() {
		close(t.cancelled)
		t.cancel()
	})
}

// CancelRequested reports whether Cancel has been called.
func (t *Task) CancelRequested() bool {
	select {
	case <-t.cancelled:
		return true
	default:
		return false
	}
}

// Done is closed once the unit has returned.
func (t *Task) Done() <-chan struct{} { return t.done }

// Err returns the unit's result. It is only meaningful after Done is closed.
func (t *Task) Err() error {
	select {
	case <-t.done:
		return t.err
	default:
		return nil
	}
}

// Wait blocks until the unit returns or ctx is done.
func (t *Task) Wait(ctx context.Context) error {
	select {
	case <-t.done:
		return nil
	default:
	}

	select {
	case <-t.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
