//go:build !unix

package lock

import (
	"os"
)

// Non-unix platforms fall back to open-file semantics without flock.
// Session mutations remain serialized per process; cross-process exclusion
// is only enforced on unix.
func tryLock(_ *os.File, _ Mode) error { return nil }

func unlock(_ *os.File) error { return nil }
