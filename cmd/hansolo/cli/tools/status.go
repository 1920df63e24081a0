package tools

import (
	"context"

	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/forge"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/logging"
)

// SessionsInput are the parameters of the sessions tool.
type SessionsInput struct {
	// All includes terminal sessions.
	All bool `json:"all,omitempty"`
	// Verbose includes metadata and state history per session.
	Verbose bool `json:"verbose,omitempty"`
	// Cleanup runs a maintenance pass (cleanup without branch
	// deletion) before listing.
	Cleanup bool `json:"cleanup,omitempty"`
}

// Sessions lists sessions without mutating anything, unless Cleanup is
// set, in which case it first runs the branch-preserving cleanup pass.
func (rt *Runtime) SessionsList(ctx context.Context, in SessionsInput) *ToolResult {
	ctx = logging.WithTool(ctx, "sessions")
	if in.Cleanup {
		if res := rt.ExpireSessions(ctx); !res.Success {
			return res
		}
	}

	res := newResult()
	if err := cancelled(ctx); err != nil {
		res.fail(err)
		return res
	}

	unlock, err := rt.lockWorktree(ctx, false)
	if err != nil {
		res.fail(err)
		return res
	}
	defer unlock.Release()
	defer func() {
		rt.record(ctx, "sessions", "", summarize(), res)
	}()

	list, err := rt.Sessions.List(ctx)
	if err != nil {
		res.fail(err)
		return res
	}

	var snaps []sessionSnapshot
	active := 0
	for _, s := range list {
		if s.Active() {
			active++
		} else if !in.All {
			continue
		}
		snaps = append(snaps, snapshot(s, in.Verbose))
	}
	res.Data["sessions"] = snaps
	res.Data["activeCount"] = active
	return res
}

// StatusInput are the parameters of the status tool.
type StatusInput struct {
	// BranchName selects a session; defaults to the current branch.
	BranchName string `json:"branchName,omitempty"`
}

// Status reports the current branch, its session (if any), working
// tree counts, distance from main, and the live PR state.
func (rt *Runtime) Status(ctx context.Context, in StatusInput) *ToolResult {
	res := newResult()
	ctx = logging.WithTool(ctx, "status")
	if err := cancelled(ctx); err != nil {
		res.fail(err)
		return res
	}

	unlock, err := rt.lockWorktree(ctx, false)
	if err != nil {
		res.fail(err)
		return res
	}
	defer unlock.Release()
	defer func() {
		rt.record(ctx, "status", res.sessionID(), summarize("branch", in.BranchName), res)
	}()

	branch := in.BranchName
	current, err := rt.Git.CurrentBranch(ctx)
	if err != nil {
		res.fail(err)
		return res
	}
	if branch == "" {
		branch = current
	}
	res.Data["currentBranch"] = current
	res.Data["mainBranch"] = rt.Config.MainBranch

	st, err := rt.Git.Status(ctx)
	if err != nil {
		res.fail(err)
		return res
	}
	res.Data["workingTree"] = st

	if branch != rt.Config.MainBranch {
		if ab, err := rt.Git.BranchAheadBehind(ctx, branch, rt.Config.MainBranch); err == nil {
			res.Data["aheadBehind"] = ab
		}
	}

	s, err := rt.Sessions.FindByBranch(ctx, branch)
	if err != nil {
		res.Data["session"] = nil
		res.addStep("no session on this branch; run 'hansolo launch' to start one")
		return res
	}
	res.Data["sessionId"] = s.ID
	res.Data["session"] = snapshot(s, true)

	if s.PR != nil {
		if pr, err := rt.Forge.GetPR(ctx, s.PR.Number, ""); err == nil {
			res.Data["pr"] = pr
			if pr.State == forge.PRMerged && s.Active() {
				res.addStep("PR is merged; run 'hansolo ship' to finish cleanup")
			}
		} else {
			res.warn("cannot read PR #%d: %v", s.PR.Number, err)
		}
	}
	return res
}
