package tools

import (
	"context"
	"time"

	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/checks"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/forge"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/gitx"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/logging"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/session"
)

// CleanupInput are the parameters of the cleanup tool.
type CleanupInput struct {
	// DeleteBranches also deletes the branches of removed sessions.
	DeleteBranches bool `json:"deleteBranches,omitempty"`
}

// Cleanup removes terminal sessions whose work is finished: branch
// merged into main, branch gone from both ends, or session past its
// TTL. Active sessions are left alone unless their work was merged
// behind the session's back, on the forge or directly on main; those
// are reconciled like any other merged session. Sessions whose branch
// still exists unmerged are always kept, and the current branch is
// never deleted.
func (rt *Runtime) Cleanup(ctx context.Context, in CleanupInput) *ToolResult {
	res := newResult()
	ctx = logging.WithTool(ctx, "cleanup")
	if err := cancelled(ctx); err != nil {
		res.fail(err)
		return res
	}

	unlock, err := rt.lockWorktree(ctx, true)
	if err != nil {
		res.fail(err)
		return res
	}
	defer unlock.Release()
	defer func() {
		rt.record(ctx, "cleanup", "", summarize(), res)
	}()

	env := rt.env("")
	if !res.foldPreFlight(checks.Run(ctx, env, []string{"in-git-repo"})) {
		return res
	}

	// Refresh main first: squash merges only become recognisable as
	// merged once the local view of main contains the squash commit.
	if err := rt.Git.Fetch(ctx, rt.Config.MainBranch); err != nil {
		res.warn("cannot fetch %s: %v", rt.Config.MainBranch, err)
	}
	current, err := rt.Git.CurrentBranch(ctx)
	if err != nil {
		res.fail(err)
		return res
	}
	if current == rt.Config.MainBranch {
		if err := rt.Git.PullFF(ctx, rt.Config.MainBranch); err != nil {
			res.warn("cannot fast-forward %s: %v", rt.Config.MainBranch, err)
		}
	}
	mainRef := rt.Git.RemoteRef(rt.Config.MainBranch)

	all, err := rt.Sessions.List(ctx)
	if err != nil {
		res.fail(err)
		return res
	}

	now := time.Now().UTC()
	var removed, deletedBranches, kept []string
	for _, s := range all {
		merged := rt.branchMerged(ctx, s, mainRef)

		// An active session whose PR was merged from the forge UI is
		// finished work the session never saw; it is reconciled like
		// any merged session. Active unmerged sessions are untouchable.
		if s.Active() && !merged {
			continue
		}

		localExists, _ := rt.Git.BranchExists(ctx, s.BranchName, false)
		remoteExists, _ := rt.Git.BranchExists(ctx, s.BranchName, true)
		branchGone := !localExists && !remoteExists

		if !merged && !branchGone && !s.Expired(now) {
			kept = append(kept, s.BranchName)
			continue
		}

		if in.DeleteBranches && merged && s.BranchName != current {
			if localExists {
				if err := rt.Git.DeleteBranch(ctx, s.BranchName, gitx.DeleteBranchOptions{Force: true}); err != nil {
					res.warn("cannot delete branch %s: %v", s.BranchName, err)
				} else {
					deletedBranches = append(deletedBranches, s.BranchName)
				}
			}
			if remoteExists {
				if err := rt.Git.DeleteRemoteBranch(ctx, s.BranchName); err != nil {
					res.warn("cannot delete remote branch %s: %v", s.BranchName, err)
				}
			}
		}

		if err := rt.Sessions.Delete(ctx, s.ID); err != nil {
			res.warn("cannot remove session %s: %v", s.ID, err)
			continue
		}
		removed = append(removed, s.ID)
	}

	res.Data["removedSessions"] = removed
	res.Data["deletedBranches"] = deletedBranches
	if len(kept) > 0 {
		res.Data["keptSessions"] = kept
	}
	return res
}

// branchMerged reports whether the session's work has landed on main.
// When the session has a PR the forge is asked first: a squash merge
// rewrites the commits, so the ancestry check alone cannot see it.
func (rt *Runtime) branchMerged(ctx context.Context, s *session.Session, mainRef string) bool {
	if s.PR != nil {
		if pr, err := rt.Forge.GetPR(ctx, s.PR.Number, ""); err == nil && pr.State == forge.PRMerged {
			return true
		}
	}
	ok, err := rt.Git.IsMergedInto(ctx, s.BranchName, mainRef)
	return err == nil && ok
}

// ExpireSessions is the maintenance entry behind `sessions --cleanup`:
// a cleanup pass that never touches branches.
func (rt *Runtime) ExpireSessions(ctx context.Context) *ToolResult {
	return rt.Cleanup(ctx, CleanupInput{})
}

// sessionSnapshot is the read-only view returned by Sessions and Status.
type sessionSnapshot struct {
	ID           string               `json:"id"`
	BranchName   string               `json:"branchName"`
	WorkflowType session.WorkflowType `json:"workflowType"`
	State        session.State        `json:"state"`
	CreatedAt    string               `json:"createdAt"`
	UpdatedAt    string               `json:"updatedAt"`
	ExpiresAt    string               `json:"expiresAt"`
	Expired      bool                 `json:"expired,omitempty"`
	PR           *session.PRRef       `json:"pr,omitempty"`
	Metadata     map[string]string    `json:"metadata,omitempty"`
	History      []session.Transition `json:"history,omitempty"`
}

func snapshot(s *session.Session, verbose bool) sessionSnapshot {
	snap := sessionSnapshot{
		ID:           s.ID,
		BranchName:   s.BranchName,
		WorkflowType: s.WorkflowType,
		State:        s.State,
		CreatedAt:    s.CreatedAt.Format(time.RFC3339),
		UpdatedAt:    s.UpdatedAt.Format(time.RFC3339),
		ExpiresAt:    s.ExpiresAt.Format(time.RFC3339),
		Expired:      s.Expired(time.Now().UTC()),
		PR:           s.PR,
	}
	if verbose {
		snap.Metadata = s.Metadata
		snap.History = s.StateHistory
	}
	return snap
}
