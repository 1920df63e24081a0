package tools

import (
	"context"

	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/checks"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/errkind"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/gitx"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/logging"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/session"
)

// SwapInput are the parameters of the swap tool.
type SwapInput struct {
	// BranchName is the session branch to switch to.
	BranchName string `json:"branchName"`
	// Stash stashes a dirty working tree before switching.
	Stash bool `json:"stash,omitempty"`
}

// Swap switches the working tree to another session's branch. A dirty
// tree is stashed when requested, labelled so launch and swap can find
// it again; a stash recorded on the target session is popped.
func (rt *Runtime) Swap(ctx context.Context, in SwapInput) *ToolResult {
	res := newResult()
	ctx = logging.WithTool(ctx, "swap")
	if err := cancelled(ctx); err != nil {
		res.fail(err)
		return res
	}
	if in.BranchName == "" {
		res.fail(errkind.New(errkind.Unsupported, "branchName is required"))
		return res
	}

	unlock, err := rt.lockWorktree(ctx, true)
	if err != nil {
		res.fail(err)
		return res
	}
	defer unlock.Release()
	defer func() {
		rt.record(ctx, "swap", res.sessionID(), summarize("branch", in.BranchName), res)
	}()

	env := rt.env(in.BranchName)
	preflight := []string{"session-exists"}
	if !in.Stash {
		preflight = append(preflight, "working-directory-clean")
	}
	if !res.foldPreFlight(checks.Run(ctx, env, preflight)) {
		return res
	}

	target, err := rt.Sessions.FindByBranch(ctx, in.BranchName)
	if err != nil {
		res.fail(err)
		return res
	}
	res.Data["sessionId"] = target.ID

	current, err := rt.Git.CurrentBranch(ctx)
	if err != nil {
		res.fail(err)
		return res
	}
	if current == in.BranchName {
		res.Data["branchName"] = current
		res.warn("already on %s", current)
		return res
	}

	// Stash the tree we are leaving and remember it on the session we
	// are leaving, so swapping back restores it. The session records
	// the stash label, not the numeric ref: stash@{N} renumbers on
	// every later push, the label stays stable.
	if in.Stash {
		clean, err := rt.Git.IsClean(ctx)
		if err != nil {
			res.fail(err)
			return res
		}
		if !clean {
			label := "swap-from-" + current
			if _, err := rt.Git.Stash(ctx, label); err != nil {
				res.fail(err)
				return res
			}
			if cur, err := rt.Sessions.FindByBranch(ctx, current); err == nil {
				if _, err := rt.Sessions.Mutate(ctx, cur.ID, func(s *session.Session) error {
					s.SetMeta(session.MetaStashRef, label)
					return nil
				}); err != nil {
					res.warn("cannot record stash on session %s: %v", cur.ID, err)
				}
			}
			res.Data["stashRef"] = label
		}
	}

	if err := rt.Git.Checkout(ctx, in.BranchName, gitx.CheckoutOptions{}); err != nil {
		res.fail(err)
		return res
	}
	env.Facts.CheckedOutBranch = in.BranchName

	// Restore the target session's parked stash, if any. The recorded
	// label is resolved to its current ref at pop time; refs written
	// by older sessions are tried as-is.
	if ref := target.Meta(session.MetaStashRef); ref != "" {
		if resolved, err := rt.Git.FindStash(ctx, ref); err == nil {
			ref = resolved
		}
		if err := rt.Git.StashPop(ctx, ref); err != nil {
			res.warn("cannot pop stash %s: %v", ref, err)
			res.addStep("pop it manually with 'git stash pop " + ref + "'")
		} else {
			env.Facts.StashPopped = true
			if _, err := rt.Sessions.Mutate(ctx, target.ID, func(s *session.Session) error {
				delete(s.Metadata, session.MetaStashRef)
				return nil
			}); err != nil {
				res.warn("cannot clear stash ref on session %s: %v", target.ID, err)
			}
		}
	}
	env.Facts.Session = target

	res.foldPostFlight(checks.Run(ctx, env, []string{
		"branch-checked-out=" + in.BranchName,
	}))

	res.Data["branchName"] = in.BranchName
	res.Data["state"] = string(target.State)
	return res
}
