//go:build windows

package commands

import (
	"fmt"
	"os"
	"os/exec"
)

// restartProcess starts a detached copy of the same binary and arguments.
// The caller exits once it returns.
func restartProcess() error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to locate executable: %w", err)
	}

	cmd := exec.Command(exe, os.Args[1:]...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	cmd.Env = os.Environ()
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start %s: %w", exe, err)
	}
	return cmd.Process.Release()
}
