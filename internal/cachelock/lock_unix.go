//go:build linux || darwin || freebsd || openbsd || netbsd

package cachelock

import (
	"errors"
	"os"
	"syscall"

	"golang.org/x/sys/unix"
)

func tryFlock(f *os.File, mode Mode) error {
	op := unix.LOCK_EX
	if mode == Shared {
		op = unix.LOCK_SH
	}
	return unix.Flock(int(f.Fd()), op|unix.LOCK_NB)
}

func unflock(f *os.File) error {
	return unix.Flock(int(f.Fd()), unix.LOCK_UN)
}

func isWouldBlock(err error) bool {
	return errors.Is(err, unix.EWOULDBLOCK) || errors.Is(err, unix.EAGAIN)
}

// processAlive probes liveness with a signal-0 kill, per spec: EPERM still
// counts as alive (the process exists, we just can't signal it).
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	err := syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM)
}
