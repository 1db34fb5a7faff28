package tasks

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/marmos91/thunder/internal/logger"
	"github.com/marmos91/thunder/pkg/metrics"
)

// DefaultJoinTimeout bounds CancelAll when the caller's context carries no
// deadline.
const DefaultJoinTimeout = 5 * time.Second

// Spec names a unit to launch.
type Spec struct {
	Label string
	Run   Unit
}

// Supervisor owns the background tasks.
type Supervisor struct {
	mu       sync.Mutex
	specs    []Spec
	tasks    []*Task
	launched bool
	metrics  metrics.TaskMetrics
}

// NewSupervisor creates a supervisor for specs. m may be nil.
func NewSupervisor(m metrics.TaskMetrics, specs ...Spec) *Supervisor {
	return &Supervisor{specs: specs, metrics: m}
}

// LaunchAll starts every unit once. Later calls return the running tasks.
func (s *Supervisor) LaunchAll(ctx context.Context) []*Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.launched {
		return append([]*Task(nil), s.tasks...)
	}
	s.launched = true

	for _, spec := range s.specs {
		s.tasks = append(s.tasks, start(ctx, spec.Label, spec.Run, s.metrics))
		logger.Debug("Background task started", logger.Task(spec.Label))
	}
	return append([]*Task(nil), s.tasks...)
}

// Tasks returns the launched tasks.
func (s *Supervisor) Tasks() []*Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*Task(nil), s.tasks...)
}

// CancelAll requests cancellation of every task before waiting for any of
// them, then joins them until ctx is done (DefaultJoinTimeout if ctx has no
// deadline). Tasks still running at the deadline are reported in the error.
func (s *Supervisor) CancelAll(ctx context.Context) error {
	tasks := s.Tasks()
	for _, t := range tasks {
		t.Cancel()
	}

	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultJoinTimeout)
		defer cancel()
	}

	var pending []string
	for _, t := range tasks {
		if err := t.Wait(ctx); err != nil {
			pending = append(pending, t.Label())
		}
	}
	if len(pending) > 0 {
		return fmt.Errorf("tasks did not stop in time: %s", strings.Join(pending, ", "))
	}
	return nil
}
