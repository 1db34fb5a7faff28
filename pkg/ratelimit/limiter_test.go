package ratelimit

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, cfg Config) (*Limiter, context.CancelFunc) {
	t.Helper()
	if cfg.GlobalRate == 0 {
		cfg.GlobalRate = 1000
	}
	if cfg.PerChatInterval == 0 {
		cfg.PerChatInterval = time.Millisecond
	}
	l, err := New(cfg)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		assert.NoError(t, l.Run(ctx))
	}()
	t.Cleanup(func() {
		cancel()
		<-done
		_ = l.Shutdown(context.Background())
	})
	return l, cancel
}

func TestDefaults(t *testing.T) {
	var c Config
	c.ApplyDefaults()
	assert.Equal(t, 30, c.GlobalRate)
	assert.Equal(t, time.Second, c.PerChatInterval)
	assert.Equal(t, 1000, c.QueueSize)
	assert.Equal(t, 8, c.Workers)
	assert.Equal(t, time.Second/30, c.dispatchInterval())
}

func TestSubmitReturnsResult(t *testing.T) {
	l, _ := newTestLimiter(t, Config{})
	ctx := context.Background()

	var ran atomic.Bool
	require.NoError(t, l.Submit(ctx, "1", func(context.Context) error {
		ran.Store(true)
		return nil
	}))
	assert.True(t, ran.Load())

	boom := errors.New("boom")
	assert.ErrorIs(t, l.Submit(ctx, "1", func(context.Context) error { return boom }), boom)
}

func TestSubmitRecoversPanic(t *testing.T) {
	l, _ := newTestLimiter(t, Config{})

	err := l.Submit(context.Background(), "1", func(context.Context) error { panic("kaboom") })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "kaboom")

	assert.NoError(t, l.Submit(context.Background(), "1", func(context.Context) error { return nil }))
}

func TestPerKeySpacing(t *testing.T) {
	const spacing = 50 * time.Millisecond
	l, _ := newTestLimiter(t, Config{PerChatInterval: spacing})

	var mu sync.Mutex
	var times []time.Time
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = l.Submit(context.Background(), "chat", func(context.Context) error {
				mu.Lock()
				times = append(times, time.Now())
				mu.Unlock()
				return nil
			})
		}()
	}
	wg.Wait()

	require.Len(t, times, 3)
	first, last := times[0], times[0]
	for _, ts := range times {
		if ts.Before(first) {
			first = ts
		}
		if ts.After(last) {
			last = ts
		}
	}
	assert.GreaterOrEqual(t, last.Sub(first), 2*spacing-5*time.Millisecond)
}

func TestReserve(t *testing.T) {
	l, err := New(Config{PerChatInterval: time.Second})
	require.NoError(t, err)
	defer l.Shutdown(context.Background())

	now := time.Now()
	assert.Equal(t, now, l.reserve("a", now))
	assert.Equal(t, now.Add(time.Second), l.reserve("a", now))
	assert.Equal(t, now, l.reserve("b", now), "keys are independent")
	later := now.Add(10 * time.Second)
	assert.Equal(t, later, l.reserve("a", later))
}

func TestSubmitContextCancelled(t *testing.T) {
	l, err := New(Config{})
	require.NoError(t, err)
	defer l.Shutdown(context.Background())

	// no Run loop: the request stays queued until the caller gives up
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = l.Submit(ctx, "1", func(context.Context) error { return nil })
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestQueueFull(t *testing.T) {
	l, err := New(Config{QueueSize: 1})
	require.NoError(t, err)
	defer l.Shutdown(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	go func() { _ = l.Submit(ctx, "1", func(context.Context) error { return nil }) }()
	require.Eventually(t, func() bool { return l.QueueDepth() == 1 }, time.Second, 5*time.Millisecond)

	assert.ErrorIs(t, l.Submit(context.Background(), "2", func(context.Context) error { return nil }), ErrQueueFull)
	cancel()
}

func TestShutdownFailsQueuedAndRejectsNew(t *testing.T) {
	l, err := New(Config{})
	require.NoError(t, err)

	result := make(chan error, 1)
	go func() {
		result <- l.Submit(context.Background(), "1", func(context.Context) error { return nil })
	}()
	require.Eventually(t, func() bool { return l.QueueDepth() == 1 }, time.Second, 5*time.Millisecond)

	require.NoError(t, l.Shutdown(context.Background()))
	assert.ErrorIs(t, <-result, ErrClosed)

	assert.ErrorIs(t, l.Submit(context.Background(), "1", func(context.Context) error { return nil }), ErrClosed)
	assert.NoError(t, l.Shutdown(context.Background()), "second shutdown is a no-op")

	// Run returns immediately on a disposed queue
	assert.NoError(t, l.Run(context.Background()))
}

func TestDispatchAfterShutdownIsRejected(t *testing.T) {
	l, err := New(Config{})
	require.NoError(t, err)
	require.NoError(t, l.Shutdown(context.Background()))

	// A request the executor polled just before Shutdown disposed the queue.
	var ran atomic.Bool
	req := &request{
		id:       "late",
		key:      "1",
		fn:       func(context.Context) error { ran.Store(true); return nil },
		ctx:      context.Background(),
		enqueued: time.Now(),
		done:     make(chan error, 1),
	}
	l.dispatch(req)

	assert.ErrorIs(t, <-req.done, ErrClosed)
	assert.False(t, ran.Load())

	waited := make(chan struct{})
	go func() {
		l.inflight.Wait()
		close(waited)
	}()
	select {
	case <-waited:
	case <-time.After(time.Second):
		t.Fatal("rejected request left an inflight slot behind")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	l, err := New(Config{})
	require.NoError(t, err)
	defer l.Shutdown(context.Background())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
