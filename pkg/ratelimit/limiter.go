// Package ratelimit queues outgoing platform requests and drains them at a
// bounded global rate while spacing requests that target the same chat.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Workiva/go-datastructures/queue"
	"github.com/google/uuid"
	cmap "github.com/orcaman/concurrent-map/v2"
	"github.com/panjf2000/ants/v2"

	"github.com/marmos91/thunder/internal/logger"
	"github.com/marmos91/thunder/pkg/metrics"
)

var (
	// ErrClosed is returned for requests submitted after, or still queued at,
	// Shutdown.
	ErrClosed = errors.New("rate limiter is shut down")

	// ErrQueueFull is returned when QueueSize requests are already pending.
	ErrQueueFull = errors.New("rate limiter queue is full")
)

const pollTimeout = 100 * time.Millisecond

// request is one queued unit of work.
type request struct {
	id       string
	key      string
	fn       func(context.Context) error
	ctx      context.Context
	enqueued time.Time
	done     chan error
}

func (r *request) finish(err error) {
	r.done <- err
}

// Limiter is the request executor. Submit enqueues work, Run drains the
// queue until its context is cancelled or Shutdown is called.
type Limiter struct {
	config  Config
	queue   *queue.Queue
	pool    *ants.Pool
	nextRun cmap.ConcurrentMap[string, time.Time]
	metrics metrics.LimiterMetrics

	closed       atomic.Bool
	shutdownOnce sync.Once

	// admitMu orders inflight.Add against Shutdown setting closed, so no
	// request joins inflight once Shutdown may be waiting on it.
	admitMu  sync.Mutex
	inflight sync.WaitGroup
}

// New creates a limiter with its worker pool.
func New(config Config) (*Limiter, error) {
	config.ApplyDefaults()

	pool, err := ants.NewPool(config.Workers, ants.WithPanicHandler(func(p any) {
		logger.Error("Rate-limited request panicked", "panic", fmt.Sprint(p))
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}

	return &Limiter{
		config:  config,
		queue:   queue.New(int64(config.QueueSize)),
		pool:    pool,
		nextRun: cmap.New[time.Time](),
		metrics: metrics.NewLimiterMetrics(),
	}, nil
}

// Submit enqueues fn under key and waits for its result. Requests sharing a
// key run at least PerChatInterval apart.
func (l *Limiter) Submit(ctx context.Context, key string, fn func(context.Context) error) error {
	if l.closed.Load() {
		return ErrClosed
	}
	if l.queue.Len() >= int64(l.config.QueueSize) {
		return ErrQueueFull
	}

	req := &request{
		id:       uuid.NewString(),
		key:      key,
		fn:       fn,
		ctx:      ctx,
		enqueued: time.Now(),
		done:     make(chan error, 1),
	}
	if err := l.queue.Put(req); err != nil {
		if errors.Is(err, queue.ErrDisposed) {
			return ErrClosed
		}
		return err
	}
	metrics.SetQueueDepth(l.metrics, int(l.queue.Len()))

	select {
	case err := <-req.done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// QueueDepth returns the number of pending requests.
func (l *Limiter) QueueDepth() int {
	return int(l.queue.Len())
}

// Run drains the queue. It returns nil when ctx is cancelled or the limiter
// is shut down.
func (l *Limiter) Run(ctx context.Context) error {
	interval := l.config.dispatchInterval()

	for {
		if ctx.Err() != nil {
			return nil
		}

		items, err := l.queue.Poll(1, pollTimeout)
		if err != nil {
			if errors.Is(err, queue.ErrDisposed) {
				return nil
			}
			if errors.Is(err, queue.ErrTimeout) {
				continue
			}
			return fmt.Errorf("failed to poll request queue: %w", err)
		}
		metrics.SetQueueDepth(l.metrics, int(l.queue.Len()))

		for _, item := range items {
			l.dispatch(item.(*request))
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(interval):
		}
	}
}

// reserve returns the earliest time the request for key may run and books
// the following slot.
func (l *Limiter) reserve(key string, now time.Time) time.Time {
	var at time.Time
	l.nextRun.Upsert(key, now, func(exist bool, prev, _ time.Time) time.Time {
		at = now
		if exist && prev.After(now) {
			at = prev
		}
		return at.Add(l.config.PerChatInterval)
	})
	return at
}

func (l *Limiter) dispatch(req *request) {
	if err := req.ctx.Err(); err != nil {
		req.finish(err)
		metrics.ObserveExecution(l.metrics, "cancelled", time.Since(req.enqueued))
		return
	}

	if !l.admit() {
		req.finish(ErrClosed)
		return
	}

	runAt := l.reserve(req.key, time.Now())
	err := l.pool.Submit(func() {
		defer l.inflight.Done()

		if d := time.Until(runAt); d > 0 {
			select {
			case <-req.ctx.Done():
				req.finish(req.ctx.Err())
				return
			case <-time.After(d):
			}
		}

		wait := time.Since(req.enqueued)
		err := safeCall(req)
		outcome := metrics.OutcomeOK
		if err != nil {
			outcome = metrics.OutcomeFailed
			logger.Debug("Rate-limited request failed", "request_id", req.id, "key", req.key, logger.KeyError, err)
		}
		metrics.ObserveExecution(l.metrics, outcome, wait)
		req.finish(err)
	})
	if err != nil {
		l.inflight.Done()
		req.finish(ErrClosed)
	}
}

// admit reserves an inflight slot unless the limiter is shut down.
func (l *Limiter) admit() bool {
	l.admitMu.Lock()
	defer l.admitMu.Unlock()
	if l.closed.Load() {
		return false
	}
	l.inflight.Add(1)
	return true
}

func safeCall(req *request) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("request %s panicked: %v", req.id, p)
		}
	}()
	return req.fn(req.ctx)
}

// Shutdown stops accepting requests, fails everything still queued with
// ErrClosed and releases the worker pool, waiting for running requests
// until ctx expires.
func (l *Limiter) Shutdown(ctx context.Context) error {
	var shutdownErr error
	l.shutdownOnce.Do(func() {
		l.admitMu.Lock()
		l.closed.Store(true)
		l.admitMu.Unlock()

		pending := l.queue.Dispose()
		for _, item := range pending {
			item.(*request).finish(ErrClosed)
		}
		metrics.RecordDropped(l.metrics, len(pending))
		metrics.SetQueueDepth(l.metrics, 0)
		if len(pending) > 0 {
			logger.Info("Rate limiter dropped queued requests", logger.KeyCount, len(pending))
		}

		done := make(chan struct{})
		go func() {
			l.inflight.Wait()
			close(done)
		}()

		select {
		case <-done:
		case <-ctx.Done():
			shutdownErr = fmt.Errorf("rate limiter shutdown: %w", ctx.Err())
		}
		l.pool.Release()
	})
	return shutdownErr
}
