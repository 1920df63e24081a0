package lock

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/errkind"
)

func lockPath(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "locks", "test.lock")
}

func TestTryAcquireExclusive(t *testing.T) {
	t.Parallel()
	path := lockPath(t)

	h, err := TryAcquire(path, Exclusive)
	require.NoError(t, err)
	defer h.Release()

	_, err = TryAcquire(path, Exclusive)
	assert.ErrorIs(t, err, ErrLocked)

	_, err = TryAcquire(path, Shared)
	assert.ErrorIs(t, err, ErrLocked)
}

func TestTryAcquireSharedCompatible(t *testing.T) {
	t.Parallel()
	path := lockPath(t)

	a, err := TryAcquire(path, Shared)
	require.NoError(t, err)
	defer a.Release()

	b, err := TryAcquire(path, Shared)
	require.NoError(t, err, "shared locks do not exclude each other")
	defer b.Release()

	_, err = TryAcquire(path, Exclusive)
	assert.ErrorIs(t, err, ErrLocked)
}

func TestReleaseAllowsReacquire(t *testing.T) {
	t.Parallel()
	path := lockPath(t)

	h, err := TryAcquire(path, Exclusive)
	require.NoError(t, err)
	require.NoError(t, h.Release())

	h2, err := TryAcquire(path, Exclusive)
	require.NoError(t, err)
	defer h2.Release()
}

func TestReleaseIdempotent(t *testing.T) {
	t.Parallel()

	h, err := TryAcquire(lockPath(t), Exclusive)
	require.NoError(t, err)
	require.NoError(t, h.Release())
	assert.NoError(t, h.Release())
}

func TestAcquireWaitsForRelease(t *testing.T) {
	t.Parallel()
	path := lockPath(t)

	held, err := TryAcquire(path, Exclusive)
	require.NoError(t, err)

	go func() {
		time.Sleep(100 * time.Millisecond)
		_ = held.Release()
	}()

	h, err := Acquire(context.Background(), path, Exclusive, 2*time.Second)
	require.NoError(t, err)
	defer h.Release()
}

func TestAcquireTimeoutIsBusy(t *testing.T) {
	t.Parallel()
	path := lockPath(t)

	held, err := TryAcquire(path, Exclusive)
	require.NoError(t, err)
	defer held.Release()

	_, err = Acquire(context.Background(), path, Exclusive, 100*time.Millisecond)
	require.Error(t, err)
	assert.Equal(t, errkind.Busy, errkind.KindOf(err))
}

func TestAcquireCancellation(t *testing.T) {
	t.Parallel()
	path := lockPath(t)

	held, err := TryAcquire(path, Exclusive)
	require.NoError(t, err)
	defer held.Release()

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err = Acquire(ctx, path, Exclusive, 10*time.Second)
	require.Error(t, err)
	assert.Equal(t, errkind.Cancelled, errkind.KindOf(err))
}

func TestAcquireCreatesParentDir(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "deep", "nested", "test.lock")

	h, err := Acquire(context.Background(), path, Exclusive, time.Second)
	require.NoError(t, err)
	defer h.Release()
	assert.Equal(t, path, h.Path())
}
