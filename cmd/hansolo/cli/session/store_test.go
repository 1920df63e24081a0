package session

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/errkind"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(t.TempDir(), StoreOptions{LockTimeout: 2 * time.Second})
}

func TestStoreCreateAndGet(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)

	s := New("feature/add-auth", WorkflowStandard)
	require.NoError(t, st.Create(ctx, s))

	assert.False(t, s.UpdatedAt.IsZero())
	assert.False(t, s.ExpiresAt.IsZero(), "create must stamp the TTL")

	got, err := st.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.ID, got.ID)
	assert.Equal(t, "feature/add-auth", got.BranchName)
	assert.Equal(t, StateInit, got.State)
}

func TestStoreGetNotFound(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)

	_, err := st.Get(context.Background(), "no-such-session")
	require.Error(t, err)
	assert.Equal(t, errkind.NotFound, errkind.KindOf(err))
}

func TestStoreGetRejectsUnsafeID(t *testing.T) {
	t.Parallel()
	st := newTestStore(t)

	_, err := st.Get(context.Background(), "../../etc/passwd")
	require.Error(t, err)
}

func TestStoreCreateEnforcesBranchUniqueness(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)

	first := New("feature/dup", WorkflowStandard)
	require.NoError(t, st.Create(ctx, first))

	second := New("feature/dup", WorkflowStandard)
	err := st.Create(ctx, second)
	require.Error(t, err)
	assert.Equal(t, errkind.AlreadyExists, errkind.KindOf(err))
}

func TestStoreCreateAllowsReuseAfterTerminal(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)

	first := New("feature/reuse", WorkflowStandard)
	require.NoError(t, st.Create(ctx, first))
	_, err := st.Mutate(ctx, first.ID, func(s *Session) error {
		return s.Apply(StateAborted, "abort", "alice")
	})
	require.NoError(t, err)

	second := New("feature/reuse", WorkflowStandard)
	assert.NoError(t, st.Create(ctx, second), "terminal sessions do not hold the branch")
}

func TestStoreMutate(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)

	s := New("feature/mutate", WorkflowStandard)
	require.NoError(t, st.Create(ctx, s))
	createdExpiry := s.ExpiresAt

	time.Sleep(10 * time.Millisecond)
	got, err := st.Mutate(ctx, s.ID, func(s *Session) error {
		return s.Apply(StateBranchReady, "launch", "alice")
	})
	require.NoError(t, err)
	assert.Equal(t, StateBranchReady, got.State)
	assert.True(t, got.ExpiresAt.After(createdExpiry), "mutation must refresh the TTL")

	reread, err := st.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, StateBranchReady, reread.State)
	require.Len(t, reread.StateHistory, 1)
}

func TestStoreMutateErrorLeavesFileUntouched(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)

	s := New("feature/untouched", WorkflowStandard)
	require.NoError(t, st.Create(ctx, s))

	_, err := st.Mutate(ctx, s.ID, func(s *Session) error {
		s.State = StateComplete
		return errkind.New(errkind.Internal, "boom")
	})
	require.Error(t, err)

	got, err := st.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, StateInit, got.State)
}

func TestStoreMutatePreservesUnknownFields(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)

	s := New("feature/forward-compat", WorkflowStandard)
	require.NoError(t, st.Create(ctx, s))

	// Simulate a newer writer extending the file on disk.
	file := filepath.Join(st.Dir(), s.ID+".json")
	data, err := os.ReadFile(file)
	require.NoError(t, err)
	extended := append(data[:len(data)-len("}\n")], []byte(`,"reviewers":["alice"]}`)...)
	require.NoError(t, os.WriteFile(file, extended, 0o600))

	_, err = st.Mutate(ctx, s.ID, func(s *Session) error {
		return s.Apply(StateBranchReady, "launch", "alice")
	})
	require.NoError(t, err)

	after, err := os.ReadFile(file)
	require.NoError(t, err)
	assert.Contains(t, string(after), `"reviewers"`)
}

func TestStoreDelete(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)

	s := New("feature/gone", WorkflowStandard)
	require.NoError(t, st.Create(ctx, s))

	require.NoError(t, st.Delete(ctx, s.ID))
	_, err := st.Get(ctx, s.ID)
	assert.Equal(t, errkind.NotFound, errkind.KindOf(err))

	assert.NoError(t, st.Delete(ctx, s.ID), "delete is idempotent")
}

func TestStoreList(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)

	t.Run("empty_dir", func(t *testing.T) {
		empty := newTestStore(t)
		got, err := empty.List(ctx)
		require.NoError(t, err)
		assert.Empty(t, got)
	})

	a := New("feature/a", WorkflowStandard)
	require.NoError(t, st.Create(ctx, a))
	time.Sleep(10 * time.Millisecond)
	b := New("feature/b", WorkflowStandard)
	require.NoError(t, st.Create(ctx, b))

	// Corrupt and leftover temp files must not block listing.
	require.NoError(t, os.WriteFile(filepath.Join(st.Dir(), "broken.json"), []byte("{not json"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(st.Dir(), "partial.json.tmp"), []byte("{"), 0o600))

	got, err := st.List(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, a.ID, got[0].ID, "sorted by creation time")
	assert.Equal(t, b.ID, got[1].ID)
}

func TestStoreFindByBranch(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)

	active := New("feature/active", WorkflowStandard)
	require.NoError(t, st.Create(ctx, active))

	done := New("feature/done", WorkflowStandard)
	require.NoError(t, st.Create(ctx, done))
	_, err := st.Mutate(ctx, done.ID, func(s *Session) error {
		return s.Apply(StateAborted, "abort", "alice")
	})
	require.NoError(t, err)

	got, err := st.FindByBranch(ctx, "feature/active")
	require.NoError(t, err)
	assert.Equal(t, active.ID, got.ID)

	_, err = st.FindByBranch(ctx, "feature/done")
	assert.Equal(t, errkind.NotFound, errkind.KindOf(err), "terminal sessions are not findable")

	_, err = st.FindByBranch(ctx, "feature/never-existed")
	assert.Equal(t, errkind.NotFound, errkind.KindOf(err))
}

func TestStoreListActive(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	st := newTestStore(t)

	a := New("feature/a", WorkflowStandard)
	require.NoError(t, st.Create(ctx, a))
	b := New("feature/b", WorkflowStandard)
	require.NoError(t, st.Create(ctx, b))
	_, err := st.Mutate(ctx, b.ID, func(s *Session) error {
		return s.Apply(StateAborted, "abort", "alice")
	})
	require.NoError(t, err)

	active, err := st.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, a.ID, active[0].ID)
}
