package tools

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/session"
)

func TestCommit(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("first_commit", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, "feature/x")
		seed := f.seedSession(t, "feature/x", session.WorkflowStandard, session.StateBranchReady)
		f.git.clean = false

		res := f.rt.Commit(ctx, CommitInput{Message: "feat: add auth"})
		require.True(t, res.Success, "errors: %v", res.Errors)

		assert.Equal(t, "abc1234", res.Data["commitHash"])
		s := f.session(t, seed.ID)
		assert.Equal(t, session.StateChangesCommitted, s.State)
		assert.Equal(t, 1, f.git.commits)
	})

	t.Run("repeat_commit_stays_committed", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, "feature/x")
		seed := f.seedSession(t, "feature/x", session.WorkflowStandard, session.StateChangesCommitted)
		f.git.clean = false

		res := f.rt.Commit(ctx, CommitInput{Message: "fix: typo"})
		require.True(t, res.Success, "errors: %v", res.Errors)
		assert.Equal(t, session.StateChangesCommitted, f.session(t, seed.ID).State)
	})

	t.Run("hotfix_session_uses_hotfix_state", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, "hotfix/cve")
		seed := f.seedSession(t, "hotfix/cve", session.WorkflowHotfix, session.StateHotfixReady)
		f.git.clean = false

		res := f.rt.Commit(ctx, CommitInput{Message: "fix: patch cve"})
		require.True(t, res.Success, "errors: %v", res.Errors)
		assert.Equal(t, session.StateHotfixCommitted, f.session(t, seed.ID).State)
	})

	t.Run("requires_message", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, "feature/x")

		res := f.rt.Commit(ctx, CommitInput{})
		assert.False(t, res.Success)
	})

	t.Run("clean_tree_blocks", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, "feature/x")
		f.seedSession(t, "feature/x", session.WorkflowStandard, session.StateBranchReady)

		res := f.rt.Commit(ctx, CommitInput{Message: "feat: nothing"})
		require.False(t, res.Success)
		assert.Equal(t, 0, f.git.commits)
	})

	t.Run("on_main_blocks", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, "main")
		f.git.clean = false

		res := f.rt.Commit(ctx, CommitInput{Message: "feat: nope"})
		assert.False(t, res.Success)
	})

	t.Run("no_session_blocks", func(t *testing.T) {
		t.Parallel()
		f := newFixture(t, "feature/orphan")
		f.git.clean = false

		res := f.rt.Commit(ctx, CommitInput{Message: "feat: orphan"})
		assert.False(t, res.Success)
	})
}
