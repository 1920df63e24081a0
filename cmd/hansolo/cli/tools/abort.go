package tools

import (
	"context"

	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/checks"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/gitx"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/logging"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/session"
)

// AbortInput are the parameters of the abort tool.
type AbortInput struct {
	// BranchName selects the session to abort. Defaults to the
	// current branch's session.
	BranchName string `json:"branchName,omitempty"`
	// DeleteBranch also removes the branch, local and remote.
	DeleteBranch bool `json:"deleteBranch,omitempty"`
}

// Abort terminates a session. Uncommitted work is stashed, never
// discarded; the stash ref lands in the session metadata so it stays
// recoverable after the session is gone.
func (rt *Runtime) Abort(ctx context.Context, in AbortInput) *ToolResult {
	res := newResult()
	ctx = logging.WithTool(ctx, "abort")
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
		rt.record(ctx, "abort", res.sessionID(), summarize("branch", in.BranchName), res)
	}()

	env := rt.env(in.BranchName)
	if !res.foldPreFlight(checks.Run(ctx, env, []string{"session-exists"})) {
		return res
	}

	branch := in.BranchName
	if branch == "" {
		current, err := rt.Git.CurrentBranch(ctx)
		if err != nil {
			res.fail(err)
			return res
		}
		branch = current
	}
	ctx = logging.WithBranch(ctx, branch)

	s, err := rt.Sessions.FindByBranch(ctx, branch)
	if err != nil {
		res.fail(err)
		return res
	}
	ctx = logging.WithSession(ctx, s.ID)
	res.Data["sessionId"] = s.ID

	current, err := rt.Git.CurrentBranch(ctx)
	if err != nil {
		res.fail(err)
		return res
	}

	// Park uncommitted work before touching the branch.
	var stashRef string
	if current == branch {
		clean, err := rt.Git.IsClean(ctx)
		if err != nil {
			res.fail(err)
			return res
		}
		if !clean {
			stashRef, err = rt.Git.Stash(ctx, "abort-"+branch)
			if err != nil {
				res.fail(err)
				return res
			}
			res.Data["stashRef"] = stashRef
			res.addStep("recover stashed changes with 'git stash pop " + stashRef + "'")
		}
	}

	s, err = rt.Sessions.Mutate(ctx, s.ID, func(s *session.Session) error {
		if stashRef != "" {
			s.SetMeta(session.MetaStashRef, stashRef)
		}
		return s.Apply(session.StateAborted, "abort", rt.Actor)
	})
	if err != nil {
		res.fail(err)
		return res
	}
	env.Facts.Session = s

	if in.DeleteBranch {
		if current == branch {
			if err := rt.Git.Checkout(ctx, rt.Config.MainBranch, gitx.CheckoutOptions{}); err != nil {
				res.fail(err)
				return res
			}
			env.Facts.CheckedOutBranch = rt.Config.MainBranch
		}
		if err := rt.Git.DeleteBranch(ctx, branch, gitx.DeleteBranchOptions{Force: true}); err != nil {
			res.warn("cannot delete local branch %s: %v", branch, err)
		} else {
			env.Facts.LocalBranchDeleted = true
		}
		if exists, err := rt.Git.BranchExists(ctx, branch, true); err == nil && exists {
			if err := rt.Git.DeleteRemoteBranch(ctx, branch); err != nil {
				res.warn("cannot delete remote branch %s: %v", branch, err)
			} else {
				env.Facts.RemoteBranchDeleted = true
			}
		}
	}

	postflight := []string{"session-state=" + string(session.StateAborted)}
	if in.DeleteBranch {
		postflight = append(postflight, "branch-deleted-local")
	}
	res.foldPostFlight(checks.Run(ctx, env, postflight))

	res.Data["state"] = string(s.State)
	return res
}
