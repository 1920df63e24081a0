package session

import (
	"time"

	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/errkind"
)

// Edge is one legal transition in a workflow state machine. Guard names
// the pre-flight checks that must pass against the current environment
// before the transition may fire; the caller evaluates them.
type Edge struct {
	From  State
	To    State
	Tool  string
	Guard []string
}

// standardEdges is the closed edge set of the standard workflow.
// CONFLICT is suspended-but-active: ship parks there on rebase
// conflicts and resumes once the user has resolved them.
var standardEdges = []Edge{
	{From: StateInit, To: StateBranchReady, Tool: "launch"},
	{From: StateBranchReady, To: StateChangesCommitted, Tool: "commit"},
	{From: StateChangesCommitted, To: StateChangesCommitted, Tool: "commit"},
	{From: StateChangesCommitted, To: StatePushed, Tool: "ship", Guard: []string{"has-commits-to-ship"}},
	{From: StateChangesCommitted, To: StateConflict, Tool: "ship"},
	{From: StateConflict, To: StatePushed, Tool: "ship"},
	{From: StatePushed, To: StatePRCreated, Tool: "ship", Guard: []string{"forge-authenticated"}},
	{From: StatePRCreated, To: StateWaitingApproval, Tool: "ship"},
	{From: StatePRCreated, To: StateConflict, Tool: "ship"},
	{From: StatePRCreated, To: StatePushed, Tool: "ship"},
	{From: StateWaitingApproval, To: StateRebasing, Tool: "ship"},
	{From: StateRebasing, To: StatePRCreated, Tool: "ship"},
	{From: StateRebasing, To: StateConflict, Tool: "ship"},
	{From: StatePRCreated, To: StateMerging, Tool: "ship"},
	{From: StateWaitingApproval, To: StateMerging, Tool: "ship"},
	{From: StateMerging, To: StateCleanup, Tool: "ship"},
	{From: StateCleanup, To: StateComplete, Tool: "ship"},
}

// hotfixEdges is the closed edge set of the hotfix workflow.
var hotfixEdges = []Edge{
	{From: StateHotfixInit, To: StateHotfixReady, Tool: "hotfix"},
	{From: StateHotfixReady, To: StateHotfixCommitted, Tool: "commit"},
	{From: StateHotfixCommitted, To: StateHotfixCommitted, Tool: "commit"},
	{From: StateHotfixCommitted, To: StateHotfixPushed, Tool: "ship", Guard: []string{"has-commits-to-ship"}},
	{From: StateHotfixPushed, To: StateHotfixValidated, Tool: "ship", Guard: []string{"forge-authenticated"}},
	{From: StateHotfixValidated, To: StateHotfixDeployed, Tool: "ship"},
	{From: StateHotfixDeployed, To: StateHotfixCleanup, Tool: "ship"},
	{From: StateHotfixCleanup, To: StateHotfixComplete, Tool: "ship"},
}

// edges returns the edge set for a workflow type.
func edges(wt WorkflowType) []Edge {
	if wt == WorkflowHotfix {
		return hotfixEdges
	}
	return standardEdges
}

// EdgeFor looks up the edge (from, to, tool) in the workflow's edge
// set. Abort is legal from any non-terminal state in both machines.
func EdgeFor(wt WorkflowType, from, to State, tool string) (Edge, bool) {
	if to == StateAborted && tool == "abort" && !from.Terminal() {
		return Edge{From: from, To: StateAborted, Tool: tool}, true
	}
	for _, e := range edges(wt) {
		if e.From == from && e.To == to && e.Tool == tool {
			return e, true
		}
	}
	return Edge{}, false
}

// Apply performs the transition (s.State, to, tool) on the session:
// it rejects illegal or post-terminal transitions, appends the history
// entry, and advances State. UpdatedAt/ExpiresAt stamping is the
// store's job.
func (s *Session) Apply(to State, tool, actor string) error {
	if s.State.Terminal() {
		return errkind.New(errkind.InvalidTransition,
			"session %s is terminal (%s); no further transitions", s.ID, s.State)
	}
	if _, ok := EdgeFor(s.WorkflowType, s.State, to, tool); !ok {
		return errkind.New(errkind.InvalidTransition,
			"%s workflow has no transition %s -> %s via %s", s.WorkflowType, s.State, to, tool)
	}
	s.StateHistory = append(s.StateHistory, Transition{
		From:  s.State,
		To:    to,
		At:    time.Now().UTC(),
		Tool:  tool,
		Actor: actor,
	})
	s.State = to
	return nil
}

// ValidateHistory checks the recorded history against the machine:
// entries chain from -> to without gaps and every hop is a legal edge.
func (s *Session) ValidateHistory() error {
	prev := StateInit
	if s.WorkflowType == WorkflowHotfix {
		prev = StateHotfixInit
	}
	for i, t := range s.StateHistory {
		if t.From != prev {
			return errkind.New(errkind.Internal,
				"history entry %d: from %s does not chain to previous state %s", i, t.From, prev)
		}
		if _, ok := EdgeFor(s.WorkflowType, t.From, t.To, t.Tool); !ok {
			return errkind.New(errkind.Internal,
				"history entry %d: illegal transition %s -> %s via %s", i, t.From, t.To, t.Tool)
		}
		prev = t.To
	}
	if len(s.StateHistory) > 0 && s.State != prev {
		return errkind.New(errkind.Internal,
			"state %s does not match last history entry %s", s.State, prev)
	}
	return nil
}
