// Package cachelock implements the advisory file lock that serializes
// concurrent scanners against a shared cache file: shared/exclusive modes,
// bounded retry with exponential backoff, and stale-holder recovery.
package cachelock

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sonroyaalmerol/indu/internal/corelog"
)

// Mode is the lock mode requested by a caller.
type Mode int

const (
	// Shared allows any number of concurrent shared holders.
	Shared Mode = iota
	// Exclusive allows exactly one holder, shared or exclusive.
	Exclusive
)

func (m Mode) String() string {
	if m == Exclusive {
		return "exclusive"
	}
	return "shared"
}

const (
	staleThreshold   = 300 * time.Second
	initialRetryWait = 10 * time.Millisecond
	maxRetryWait     = 500 * time.Millisecond
)

// ErrWouldBlock is returned by Acquire when timeoutSec is 0 and the lock is
// held by another process.
var ErrWouldBlock = errors.New("cachelock: would block")

// ErrTimeout is returned by Acquire when the bounded timeout elapses without
// acquiring the lock.
var ErrTimeout = errors.New("cachelock: timed out waiting for lock")

// Lock is a single process's handle on one cache file's lock file. A Lock
// holds at most one mode at a time; re-acquiring a compatible mode is a
// cheap no-op.
type Lock struct {
	mu   sync.Mutex
	log  *corelog.Logger
	path string
	fd   *os.File
	held bool
	mode Mode
}

// New creates a Lock that logs stale-takeover and contention events to log
// (nil is fine; logging becomes a no-op).
func New(log *corelog.Logger) *Lock {
	return &Lock{log: log}
}

// Init records the lock file path as cachePath + ".lock" and releases any
// previously held lock.
func (l *Lock) Init(cachePath string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.releaseLocked()
	l.path = cachePath + ".lock"
}

// Acquire takes the lock in the given mode. timeoutSec is -1 for blocking,
// 0 for non-blocking, or a positive bound in seconds. On failure no partial
// state is left behind.
func (l *Lock) Acquire(mode Mode, timeoutSec int) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.path == "" {
		return errors.New("cachelock: Init not called")
	}

	if l.held {
		if l.mode == Exclusive {
			return nil
		}
		if mode == Shared {
			return nil
		}
		// Upgrading shared -> exclusive: release first, tolerate the gap.
		l.releaseLocked()
	}

	f, err := os.OpenFile(l.path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("cachelock: open %s: %w", l.path, err)
	}

	start := time.Now()
	delay := initialRetryWait
	firstAttempt := true

	for {
		if err := tryFlock(f, mode); err == nil {
			if mode == Exclusive {
				if werr := writeLockInfo(f); werr != nil {
					_ = unflock(f)
					f.Close()
					return fmt.Errorf("cachelock: write lock body: %w", werr)
				}
			}
			l.fd, l.mode, l.held = f, mode, true
			return nil
		} else if !isWouldBlock(err) {
			f.Close()
			return fmt.Errorf("cachelock: flock: %w", err)
		}

		if firstAttempt {
			firstAttempt = false
			if stale, holderPID := isStale(f); stale {
				if l.tryStealLocked(f, mode, holderPID) {
					return nil
				}
			}
		}

		if timeoutSec == 0 {
			f.Close()
			return ErrWouldBlock
		}
		if timeoutSec > 0 && time.Since(start) >= time.Duration(timeoutSec)*time.Second {
			f.Close()
			return ErrTimeout
		}

		time.Sleep(delay)
		delay *= 2
		if delay > maxRetryWait {
			delay = maxRetryWait
		}
	}
}

// tryStealLocked attempts a one-shot takeover of a stale holder's lock. f's
// fd must already be open; on success the Lock takes ownership of f.
func (l *Lock) tryStealLocked(f *os.File, mode Mode, holderPID int) bool {
	if err := tryFlock(f, Exclusive); err != nil {
		// Raced and lost: ordinary contention, caller keeps retrying.
		return false
	}

	if mode == Exclusive {
		if err := writeLockInfo(f); err != nil {
			_ = unflock(f)
			return false
		}
	} else {
		_ = unflock(f)
		if err := tryFlock(f, Shared); err != nil {
			return false
		}
	}

	l.fd, l.mode, l.held = f, mode, true
	l.log.Warn().
		WithField("lock_file", l.path).
		WithField("stale_pid", holderPID).
		WithField("mode", mode.String()).
		WithMessage("took over stale cache lock").
		Write()
	return true
}

// Release releases any currently held lock. No-op if none is held.
func (l *Lock) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.releaseLocked()
}

func (l *Lock) releaseLocked() {
	if !l.held {
		return
	}
	_ = unflock(l.fd)
	l.fd.Close()
	l.fd = nil
	l.held = false
}

// Cleanup releases any held lock and forgets the path.
func (l *Lock) Cleanup() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.releaseLocked()
	l.path = ""
}

func writeLockInfo(f *os.File) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	body := fmt.Sprintf("%d %d\n", os.Getpid(), time.Now().Unix())
	if _, err := f.WriteString(body); err != nil {
		return err
	}
	return f.Sync()
}

func readLockInfo(f *os.File) (pid int, timestamp int64, err error) {
	if _, err = f.Seek(0, 0); err != nil {
		return 0, 0, err
	}
	buf := make([]byte, 64)
	n, err := f.Read(buf)
	if err != nil && n == 0 {
		return 0, 0, err
	}
	if _, err := fmt.Sscanf(string(buf[:n]), "%d %d", &pid, &timestamp); err != nil {
		return 0, 0, err
	}
	return pid, timestamp, nil
}

// isStale reports whether the current holder of f's body looks dead or
// old enough to steal from.
func isStale(f *os.File) (stale bool, holderPID int) {
	pid, ts, err := readLockInfo(f)
	if err != nil {
		return true, 0
	}
	if !processAlive(pid) {
		return true, pid
	}
	if ts > 0 && time.Since(time.Unix(ts, 0)) > staleThreshold {
		return true, pid
	}
	return false, pid
}
