//go:build !linux && !darwin

package logger

// isTerminal disables colour on platforms without a termios probe.
func isTerminal(uintptr) bool { return false }
