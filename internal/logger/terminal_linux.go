//go:build linux

package logger

import (
	"syscall"
	"unsafe"
)

const ioctlTCGETS = 0x5401

// isTerminal reports whether fd refers to a terminal (TCGETS on Linux).
func isTerminal(fd uintptr) bool {
	var termios syscall.Termios
	_, _, errno := syscall.Syscall6(syscall.SYS_IOCTL, fd, ioctlTCGETS,
		uintptr(unsafe.Pointer(&termios)), 0, 0, 0)
	return errno == 0
}
