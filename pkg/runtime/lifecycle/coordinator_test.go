package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/thunder/pkg/runtime/tasks"
)

type journal struct {
	mu      sync.Mutex
	entries []string
}

func (j *journal) add(e string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, e)
}

func (j *journal) snapshot() []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	return append([]string(nil), j.entries...)
}

// observedRelease records a release call and whether every task had been
// asked to stop at that moment.
type observedRelease struct {
	name    string
	journal *journal
	sup     *tasks.Supervisor
	allSeen bool
	err     error
}

func (o *observedRelease) release(context.Context) error {
	o.allSeen = true
	for _, t := range o.sup.Tasks() {
		if !t.CancelRequested() {
			o.allSeen = false
		}
	}
	o.journal.add(o.name)
	return o.err
}

func (o *observedRelease) Close(ctx context.Context) error    { return o.release(ctx) }
func (o *observedRelease) Shutdown(ctx context.Context) error { return o.release(ctx) }
func (o *observedRelease) Stop(ctx context.Context) error     { return o.release(ctx) }

type journaledTasks struct {
	*tasks.Supervisor
	journal *journal
}

func (j journaledTasks) CancelAll(ctx context.Context) error {
	err := j.Supervisor.CancelAll(ctx)
	j.journal.add("cancel_tasks")
	return err
}

func busySupervisor(j *journal) *tasks.Supervisor {
	iterate := func(label string) tasks.Unit {
		return tasks.Recurring(label, time.Microsecond, func(context.Context) error {
			j.add("iteration:" + label)
			return nil
		}, nil)
	}
	return tasks.NewSupervisor(nil,
		tasks.Spec{Label: "request-executor", Run: iterate("request-executor")},
		tasks.Spec{Label: "keepalive", Run: iterate("keepalive")},
		tasks.Spec{Label: "token-cleanup", Run: iterate("token-cleanup")},
	)
}

func TestTeardownOrder(t *testing.T) {
	for round := 0; round < 25; round++ {
		j := &journal{}
		sup := busySupervisor(j)
		sup.LaunchAll(context.Background())
		time.Sleep(time.Duration(round%5) * time.Millisecond)

		client := &observedRelease{name: "close_client", journal: j, sup: sup}
		limiter := &observedRelease{name: "shutdown_limiter", journal: j, sup: sup}
		listener := &observedRelease{name: "stop_listener", journal: j, sup: sup}

		c := New(Components{
			Tasks:    journaledTasks{Supervisor: sup, journal: j},
			Client:   client,
			Limiter:  limiter,
			Listener: listener,
		}, 2*time.Second, nil)

		require.NoError(t, c.Teardown(context.Background()))

		assert.True(t, client.allSeen, "round %d: client released before all tasks were cancelled", round)
		assert.True(t, limiter.allSeen, "round %d: limiter released before all tasks were cancelled", round)

		var releases []string
		for _, e := range j.snapshot() {
			switch e {
			case "cancel_tasks", "close_client", "shutdown_limiter", "stop_listener":
				releases = append(releases, e)
			}
		}
		assert.Equal(t, []string{"cancel_tasks", "close_client", "shutdown_limiter", "stop_listener"}, releases)

		after := false
		for _, e := range j.snapshot() {
			if e == "cancel_tasks" {
				after = true
				continue
			}
			if after {
				assert.NotContains(t, e, "iteration:", "round %d: iteration ran after tasks were joined", round)
			}
		}
	}
}

func TestTeardownContinuesAfterFailures(t *testing.T) {
	j := &journal{}
	sup := tasks.NewSupervisor(nil)
	clientErr := errors.New("close failed")

	client := &observedRelease{name: "close_client", journal: j, sup: sup, err: clientErr}
	limiter := &observedRelease{name: "shutdown_limiter", journal: j, sup: sup}

	c := New(Components{Tasks: sup, Client: client, Limiter: limiter}, time.Second, nil)
	err := c.Teardown(context.Background())

	assert.ErrorIs(t, err, clientErr)
	assert.Equal(t, []string{"close_client", "shutdown_limiter"}, j.snapshot())
}

func TestTeardownRunsOnce(t *testing.T) {
	j := &journal{}
	sup := tasks.NewSupervisor(nil)
	client := &observedRelease{name: "close_client", journal: j, sup: sup}

	c := New(Components{Client: client}, time.Second, nil)
	require.NoError(t, c.Teardown(context.Background()))
	require.NoError(t, c.Teardown(context.Background()))

	assert.Equal(t, []string{"close_client"}, j.snapshot())
}

func TestTeardownWithCancelledContext(t *testing.T) {
	var stepCtxErr error
	listener := listenerFunc(func(ctx context.Context) error {
		stepCtxErr = ctx.Err()
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, New(Components{Listener: listener}, time.Second, nil).Teardown(ctx))
	assert.NoError(t, stepCtxErr, "steps get a live context even when the trigger was cancellation")
}

func TestTeardownRecoversPanics(t *testing.T) {
	listener := listenerFunc(func(context.Context) error { panic("listener bug") })

	err := New(Components{Listener: listener}, time.Second, nil).Teardown(context.Background())
	assert.ErrorContains(t, err, "listener bug")
}

type listenerFunc func(ctx context.Context) error

func (f listenerFunc) Stop(ctx context.Context) error { return f(ctx) }
