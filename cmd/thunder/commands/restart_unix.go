//go:build !windows

package commands

import (
	"fmt"
	"os"
	"syscall"
)

// restartProcess replaces the current process with a fresh copy of the same
// binary and arguments. It only returns on failure.
func restartProcess() error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to locate executable: %w", err)
	}
	if err := syscall.Exec(exe, os.Args, os.Environ()); err != nil {
		return fmt.Errorf("failed to re-exec %s: %w", exe, err)
	}
	return nil
}
