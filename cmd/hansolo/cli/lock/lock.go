// Package lock provides advisory file locking for session files and the
// shared working tree. Locks are flock(2)-based: process-scoped, released
// on close or process exit, so a crashed invocation can never wedge the
// workspace.
package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/errkind"
)

// ErrLocked is returned by a non-blocking attempt when another process
// holds an incompatible lock.
var ErrLocked = errors.New("file is locked by another process")

// Mode selects between shared (read) and exclusive (write) locks.
type Mode int

const (
	Shared Mode = iota
	Exclusive
)

// DefaultTimeout bounds lock acquisition when the caller does not
// specify one.
const DefaultTimeout = 30 * time.Second

// retryInterval is the pause between non-blocking acquisition attempts.
const retryInterval = 50 * time.Millisecond

// Handle is a held lock. Release is idempotent.
type Handle struct {
	path string
	file *os.File
}

// Path returns the lock file path.
func (h *Handle) Path() string { return h.path }

// Release drops the lock and closes the underlying file.
// Safe to call multiple times and from deferred panic paths.
func (h *Handle) Release() error {
	if h.file == nil {
		return nil
	}
	f := h.file
	h.file = nil
	// Closing the descriptor releases the flock.
	if err := unlock(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("unlocking %s: %w", h.path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("closing lock file %s: %w", h.path, err)
	}
	return nil
}

// TryAcquire attempts to take the lock without blocking.
// Returns ErrLocked if another process holds an incompatible lock.
func TryAcquire(path string, mode Mode) (*Handle, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("creating lock directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600) //nolint:gosec // lock paths come from the workspace layout
	if err != nil {
		return nil, fmt.Errorf("opening lock file %s: %w", path, err)
	}
	if err := tryLock(f, mode); err != nil {
		_ = f.Close()
		if errors.Is(err, ErrLocked) {
			return nil, ErrLocked
		}
		return nil, fmt.Errorf("locking %s: %w", path, err)
	}
	return &Handle{path: path, file: f}, nil
}

// Acquire takes the lock, retrying until timeout elapses or ctx is
// cancelled. Timeout <= 0 means DefaultTimeout. On timeout the error is
// classified Busy; on cancellation, Cancelled.
func Acquire(ctx context.Context, path string, mode Mode, timeout time.Duration) (*Handle, error) {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	deadline := time.Now().Add(timeout)

	for {
		h, err := TryAcquire(path, mode)
		if err == nil {
			return h, nil
		}
		if !errors.Is(err, ErrLocked) {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, errkind.New(errkind.Busy, "timed out after %s waiting for lock %s", timeout, path).
				WithSuggestion("another hansolo invocation is running; retry once it finishes")
		}
		select {
		case <-ctx.Done():
			return nil, errkind.Wrap(errkind.Cancelled, ctx.Err(), "cancelled while waiting for lock %s", path)
		case <-time.After(retryInterval):
		}
	}
}
