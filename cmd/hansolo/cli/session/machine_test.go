package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/errkind"
)

func TestEdgeFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		wt   WorkflowType
		from State
		to   State
		tool string
		ok   bool
	}{
		{name: "launch", wt: WorkflowStandard, from: StateInit, to: StateBranchReady, tool: "launch", ok: true},
		{name: "first_commit", wt: WorkflowStandard, from: StateBranchReady, to: StateChangesCommitted, tool: "commit", ok: true},
		{name: "repeat_commit", wt: WorkflowStandard, from: StateChangesCommitted, to: StateChangesCommitted, tool: "commit", ok: true},
		{name: "ship_push", wt: WorkflowStandard, from: StateChangesCommitted, to: StatePushed, tool: "ship", ok: true},
		{name: "conflict_park", wt: WorkflowStandard, from: StateChangesCommitted, to: StateConflict, tool: "ship", ok: true},
		{name: "conflict_resume", wt: WorkflowStandard, from: StateConflict, to: StatePushed, tool: "ship", ok: true},
		{name: "rebase_back_to_pr", wt: WorkflowStandard, from: StateRebasing, to: StatePRCreated, tool: "ship", ok: true},
		{name: "final", wt: WorkflowStandard, from: StateCleanup, to: StateComplete, tool: "ship", ok: true},
		{name: "wrong_tool", wt: WorkflowStandard, from: StateInit, to: StateBranchReady, tool: "commit", ok: false},
		{name: "skipped_state", wt: WorkflowStandard, from: StateInit, to: StatePushed, tool: "ship", ok: false},
		{name: "backwards", wt: WorkflowStandard, from: StatePushed, to: StateChangesCommitted, tool: "ship", ok: false},
		{name: "hotfix_edge_not_in_standard", wt: WorkflowStandard, from: StateHotfixInit, to: StateHotfixReady, tool: "hotfix", ok: false},
		{name: "hotfix_init", wt: WorkflowHotfix, from: StateHotfixInit, to: StateHotfixReady, tool: "hotfix", ok: true},
		{name: "hotfix_validate", wt: WorkflowHotfix, from: StateHotfixPushed, to: StateHotfixValidated, tool: "ship", ok: true},
		{name: "hotfix_final", wt: WorkflowHotfix, from: StateHotfixCleanup, to: StateHotfixComplete, tool: "ship", ok: true},
		{name: "standard_edge_not_in_hotfix", wt: WorkflowHotfix, from: StateInit, to: StateBranchReady, tool: "launch", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			edge, ok := EdgeFor(tt.wt, tt.from, tt.to, tt.tool)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.from, edge.From)
				assert.Equal(t, tt.to, edge.To)
				assert.Equal(t, tt.tool, edge.Tool)
			}
		})
	}
}

func TestEdgeFor_AbortFromAnyNonTerminal(t *testing.T) {
	t.Parallel()

	nonTerminal := []State{
		StateInit, StateBranchReady, StateChangesCommitted, StatePushed,
		StatePRCreated, StateWaitingApproval, StateRebasing, StateMerging,
		StateCleanup, StateConflict,
	}
	for _, from := range nonTerminal {
		_, ok := EdgeFor(WorkflowStandard, from, StateAborted, "abort")
		assert.True(t, ok, "abort must be legal from %s", from)
	}

	for _, from := range []State{StateHotfixReady, StateHotfixPushed} {
		_, ok := EdgeFor(WorkflowHotfix, from, StateAborted, "abort")
		assert.True(t, ok, "abort must be legal from %s", from)
	}

	for _, from := range []State{StateComplete, StateAborted, StateHotfixComplete} {
		_, ok := EdgeFor(WorkflowStandard, from, StateAborted, "abort")
		assert.False(t, ok, "abort must be illegal from terminal %s", from)
	}

	// Only the abort tool may take the ABORTED edge.
	_, ok := EdgeFor(WorkflowStandard, StatePushed, StateAborted, "ship")
	assert.False(t, ok)
}

func TestApply(t *testing.T) {
	t.Parallel()

	t.Run("happy_path_appends_history", func(t *testing.T) {
		t.Parallel()
		s := New("feature/x", WorkflowStandard)
		require.NoError(t, s.Apply(StateBranchReady, "launch", "alice"))
		require.NoError(t, s.Apply(StateChangesCommitted, "commit", "alice"))

		assert.Equal(t, StateChangesCommitted, s.State)
		require.Len(t, s.StateHistory, 2)
		assert.Equal(t, StateInit, s.StateHistory[0].From)
		assert.Equal(t, StateBranchReady, s.StateHistory[0].To)
		assert.Equal(t, "launch", s.StateHistory[0].Tool)
		assert.Equal(t, StateBranchReady, s.StateHistory[1].From)
		assert.False(t, s.StateHistory[1].At.IsZero())
	})

	t.Run("illegal_transition_leaves_session_untouched", func(t *testing.T) {
		t.Parallel()
		s := New("feature/x", WorkflowStandard)
		err := s.Apply(StatePushed, "ship", "alice")
		require.Error(t, err)
		assert.Equal(t, errkind.InvalidTransition, errkind.KindOf(err))
		assert.Equal(t, StateInit, s.State)
		assert.Empty(t, s.StateHistory)
	})

	t.Run("terminal_state_is_frozen", func(t *testing.T) {
		t.Parallel()
		s := New("feature/x", WorkflowStandard)
		require.NoError(t, s.Apply(StateAborted, "abort", "alice"))
		require.True(t, s.State.Terminal())

		err := s.Apply(StateBranchReady, "launch", "alice")
		require.Error(t, err)
		assert.Equal(t, errkind.InvalidTransition, errkind.KindOf(err))
		assert.Equal(t, StateAborted, s.State)
		assert.Len(t, s.StateHistory, 1)
	})

	t.Run("full_standard_run", func(t *testing.T) {
		t.Parallel()
		s := New("feature/x", WorkflowStandard)
		steps := []struct {
			to   State
			tool string
		}{
			{StateBranchReady, "launch"},
			{StateChangesCommitted, "commit"},
			{StatePushed, "ship"},
			{StatePRCreated, "ship"},
			{StateWaitingApproval, "ship"},
			{StateRebasing, "ship"},
			{StatePRCreated, "ship"},
			{StateMerging, "ship"},
			{StateCleanup, "ship"},
			{StateComplete, "ship"},
		}
		for _, step := range steps {
			require.NoError(t, s.Apply(step.to, step.tool, "alice"), "transition to %s", step.to)
		}
		assert.True(t, s.State.Terminal())
		assert.NoError(t, s.ValidateHistory())
	})

	t.Run("full_hotfix_run", func(t *testing.T) {
		t.Parallel()
		s := New("hotfix/cve", WorkflowHotfix)
		steps := []struct {
			to   State
			tool string
		}{
			{StateHotfixReady, "hotfix"},
			{StateHotfixCommitted, "commit"},
			{StateHotfixPushed, "ship"},
			{StateHotfixValidated, "ship"},
			{StateHotfixDeployed, "ship"},
			{StateHotfixCleanup, "ship"},
			{StateHotfixComplete, "ship"},
		}
		for _, step := range steps {
			require.NoError(t, s.Apply(step.to, step.tool, "bob"), "transition to %s", step.to)
		}
		assert.Equal(t, StateHotfixComplete, s.State)
		assert.NoError(t, s.ValidateHistory())
	})
}

func TestValidateHistory(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()

	t.Run("empty_history_is_valid", func(t *testing.T) {
		t.Parallel()
		s := New("feature/x", WorkflowStandard)
		assert.NoError(t, s.ValidateHistory())
	})

	t.Run("broken_chain", func(t *testing.T) {
		t.Parallel()
		s := New("feature/x", WorkflowStandard)
		s.State = StateChangesCommitted
		s.StateHistory = []Transition{
			{From: StateInit, To: StateBranchReady, At: now, Tool: "launch"},
			{From: StateChangesCommitted, To: StateChangesCommitted, At: now, Tool: "commit"},
		}
		assert.Error(t, s.ValidateHistory())
	})

	t.Run("illegal_edge_in_history", func(t *testing.T) {
		t.Parallel()
		s := New("feature/x", WorkflowStandard)
		s.State = StatePushed
		s.StateHistory = []Transition{
			{From: StateInit, To: StatePushed, At: now, Tool: "ship"},
		}
		assert.Error(t, s.ValidateHistory())
	})

	t.Run("state_mismatch_with_last_entry", func(t *testing.T) {
		t.Parallel()
		s := New("feature/x", WorkflowStandard)
		s.State = StateInit
		s.StateHistory = []Transition{
			{From: StateInit, To: StateBranchReady, At: now, Tool: "launch"},
		}
		assert.Error(t, s.ValidateHistory())
	})
}
