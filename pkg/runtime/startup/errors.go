package startup

import (
	"errors"
	"fmt"
)

// ErrAlreadyRun is returned by a second call to Sequencer.Run.
var ErrAlreadyRun = errors.New("startup sequence already run")

// StepError is a fatal startup failure. State is the step that failed.
type StepError struct {
	State State
	Err   error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("startup failed at %s: %v", e.State, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}
