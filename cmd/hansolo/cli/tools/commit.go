package tools

import (
	"context"

	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/checks"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/errkind"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/gitx"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/logging"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/session"
)

// CommitInput are the parameters of the commit tool.
type CommitInput struct {
	// Message is the commit message. Conventional-commit style is
	// recommended but not enforced.
	Message string `json:"message"`
	// StagedOnly commits only what is already staged.
	StagedOnly bool `json:"stagedOnly,omitempty"`
}

// Commit records the working tree onto the session branch and advances
// the session to CHANGES_COMMITTED. Repeat commits stay there.
func (rt *Runtime) Commit(ctx context.Context, in CommitInput) *ToolResult {
	res := newResult()
	ctx = logging.WithTool(ctx, "commit")
	if err := cancelled(ctx); err != nil {
		res.fail(err)
		return res
	}
	if in.Message == "" {
		res.fail(errkind.New(errkind.Unsupported, "commit message is required"))
		return res
	}

	unlock, err := rt.lockWorktree(ctx, true)
	if err != nil {
		res.fail(err)
		return res
	}
	defer unlock.Release()
	defer func() {
		rt.record(ctx, "commit", res.sessionID(), summarize("message", in.Message), res)
	}()

	env := rt.env("")
	if !res.foldPreFlight(checks.Run(ctx, env, []string{
		"session-exists", "not-on-main-branch", "has-uncommitted-changes",
	})) {
		return res
	}

	branch, err := rt.Git.CurrentBranch(ctx)
	if err != nil {
		res.fail(err)
		return res
	}
	ctx = logging.WithBranch(ctx, branch)
	s, err := rt.Sessions.FindByBranch(ctx, branch)
	if err != nil {
		res.fail(err)
		return res
	}
	ctx = logging.WithSession(ctx, s.ID)
	res.Data["sessionId"] = s.ID

	hash, err := rt.Git.Commit(ctx, gitx.CommitOptions{
		StageAll: !in.StagedOnly,
		Message:  in.Message,
	})
	if err != nil {
		res.fail(err)
		return res
	}
	env.Facts.CommitHash = hash

	target := session.StateChangesCommitted
	if s.WorkflowType == session.WorkflowHotfix {
		target = session.StateHotfixCommitted
	}
	s, err = rt.Sessions.Mutate(ctx, s.ID, func(s *session.Session) error {
		return s.Apply(target, "commit", rt.Actor)
	})
	if err != nil {
		res.fail(err)
		return res
	}
	env.Facts.Session = s

	postflight := []string{"commit-created", "session-state=" + string(target)}
	if !in.StagedOnly {
		postflight = append(postflight, "working-directory-clean")
	}
	res.foldPostFlight(checks.Run(ctx, env, postflight))

	res.Data["commitHash"] = hash
	res.Data["state"] = string(s.State)
	res.addStep("run 'hansolo ship' when the branch is ready")
	return res
}
