package plugin

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidPlugin is returned when a plugin file cannot be read or compiled.
	ErrInvalidPlugin = errors.New("invalid plugin")

	// ErrPluginTimeout is returned when plugin code exceeds its execution budget.
	ErrPluginTimeout = errors.New("plugin execution timed out")

	// ErrDuplicatePlugin is returned when two plugins in a pass share a name.
	ErrDuplicatePlugin = errors.New("duplicate plugin name")

	// ErrDuplicateCommand is returned when a command is already bound.
	ErrDuplicateCommand = errors.New("command already registered")

	// ErrUnknownCommand is returned by Dispatch for unbound commands.
	ErrUnknownCommand = errors.New("unknown command")
)

// PanicError wraps a value recovered from a panic inside plugin code.
type PanicError struct {
	Plugin string
	Value  any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("plugin %s panicked: %v", e.Plugin, e.Value)
}
