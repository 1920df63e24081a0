package tools

import (
	"context"

	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/checks"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/errkind"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/gitx"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/logging"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/naming"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/session"
)

// LaunchInput are the parameters of the launch tool.
type LaunchInput struct {
	// BranchName is the branch to create. Derived from Description
	// when empty.
	BranchName string `json:"branchName,omitempty"`
	// Description is slugged into a branch name when BranchName is empty.
	Description string `json:"description,omitempty"`
	// StashRef, when set, is popped onto the new branch.
	StashRef string `json:"stashRef,omitempty"`
	// PopStash controls whether StashRef is popped. Defaults to true.
	PopStash *bool `json:"popStash,omitempty"`
}

// Launch starts a standard workflow session: creates the branch off
// main, checks it out, optionally pops a stash, and persists a session
// in BRANCH_READY.
func (rt *Runtime) Launch(ctx context.Context, in LaunchInput) *ToolResult {
	res := newResult()
	ctx = logging.WithTool(ctx, "launch")
	if err := cancelled(ctx); err != nil {
		res.fail(err)
		return res
	}

	branch := in.BranchName
	if branch == "" {
		if in.Description == "" {
			res.fail(errkind.New(errkind.Unsupported, "either branchName or description is required"))
			return res
		}
		derived, err := naming.FromDescription(in.Description, naming.DefaultType)
		if err != nil {
			res.fail(err)
			return res
		}
		branch = derived
	}
	if err := naming.Validate(branch); err != nil {
		res.fail(err)
		return res
	}
	ctx = logging.WithBranch(ctx, branch)

	unlock, err := rt.lockWorktree(ctx, true)
	if err != nil {
		res.fail(err)
		return res
	}
	defer unlock.Release()
	defer func() {
		rt.record(ctx, "launch", res.sessionID(), summarize(
			"branch", branch, "stashRef", in.StashRef), res)
	}()

	// A stale origin/main makes main-up-to-date meaningless.
	if err := rt.Git.Fetch(ctx, rt.Config.MainBranch); err != nil {
		res.warn("cannot fetch %s: %v", rt.Config.MainBranch, err)
	}

	preflight := []string{
		"hansolo-initialized", "in-git-repo", "on-main-branch",
		"main-up-to-date", "no-existing-session", "branch-name-available",
	}
	if in.StashRef == "" {
		preflight = append(preflight, "working-directory-clean")
	}
	env := rt.env(branch)
	if !res.foldPreFlight(checks.Run(ctx, env, preflight)) {
		return res
	}

	if err := rt.Git.CreateBranch(ctx, branch, rt.Config.MainBranch); err != nil {
		res.fail(err)
		return res
	}
	if err := rt.Git.Checkout(ctx, branch, gitx.CheckoutOptions{}); err != nil {
		res.fail(err)
		return res
	}
	env.Facts.CheckedOutBranch = branch

	popStash := in.PopStash == nil || *in.PopStash
	if in.StashRef != "" && popStash {
		if err := rt.Git.StashPop(ctx, in.StashRef); err != nil {
			res.fail(err)
			res.addStep("pop the stash manually with 'git stash pop " + in.StashRef + "'")
			return res
		}
		env.Facts.StashPopped = true
	}

	s := session.New(branch, session.WorkflowStandard)
	if err := s.Apply(session.StateBranchReady, "launch", rt.Actor); err != nil {
		res.fail(err)
		return res
	}
	if env.Facts.StashPopped {
		if diff, err := rt.Git.DiffSummary(ctx, ""); err == nil && diff != "" {
			s.SetMeta(session.MetaInitialDiff, diff)
		}
	}
	if err := rt.Sessions.Create(ctx, s); err != nil {
		res.fail(err)
		return res
	}
	env.Facts.SessionCreated = true
	env.Facts.Session = s

	postflight := []string{
		"branch-checked-out", "session-created", "session-state=" + string(session.StateBranchReady),
	}
	if !env.Facts.StashPopped {
		postflight = append(postflight, "working-directory-clean")
	}
	res.foldPostFlight(checks.Run(ctx, env, postflight))

	res.Data["sessionId"] = s.ID
	res.Data["branchName"] = branch
	res.Data["state"] = string(s.State)
	res.addStep("make your changes, then run 'hansolo commit'")
	return res
}

// sessionID extracts the session id from result data for audit entries.
func (r *ToolResult) sessionID() string {
	if id, ok := r.Data["sessionId"].(string); ok {
		return id
	}
	return ""
}
