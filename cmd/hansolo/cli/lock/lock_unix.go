//go:build unix

package lock

import (
	"os"
	"syscall"
)

// tryLock acquires a non-blocking flock(2) on f.
// Shared maps to LOCK_SH, Exclusive to LOCK_EX; LOCK_NB makes the attempt
// return ErrLocked instead of blocking.
func tryLock(f *os.File, mode Mode) error {
	how := syscall.LOCK_EX
	if mode == Shared {
		how = syscall.LOCK_SH
	}
	err := syscall.Flock(int(f.Fd()), how|syscall.LOCK_NB)
	if err != nil {
		if err == syscall.EWOULDBLOCK {
			return ErrLocked
		}
		return err
	}
	return nil
}

// unlock releases the flock on f. Safe to call even if not locked.
func unlock(f *os.File) error {
	return syscall.Flock(int(f.Fd()), syscall.LOCK_UN)
}
