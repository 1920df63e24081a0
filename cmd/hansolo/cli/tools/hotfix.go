package tools

import (
	"context"
	"strconv"

	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/checks"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/errkind"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/gitx"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/logging"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/naming"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/session"
)

// HotfixInput are the parameters of the hotfix tool.
type HotfixInput struct {
	// Issue identifies the incident; its slug names the branch.
	Issue string `json:"issue"`
	// Severity is recorded on the session (e.g. critical, high).
	Severity string `json:"severity,omitempty"`
	// SkipReview bypasses human approvals during ship. Required
	// checks are never bypassed.
	SkipReview bool `json:"skipReview,omitempty"`
	// AutoMerge lets ship merge as soon as checks pass.
	AutoMerge bool `json:"autoMerge,omitempty"`
}

// Hotfix starts an emergency session on the hotfix machine. Same shape
// as launch, but the branch is always hotfix/<issue-slug>.
func (rt *Runtime) Hotfix(ctx context.Context, in HotfixInput) *ToolResult {
	res := newResult()
	ctx = logging.WithTool(ctx, "hotfix")
	if err := cancelled(ctx); err != nil {
		res.fail(err)
		return res
	}
	if in.Issue == "" {
		res.fail(errkind.New(errkind.Unsupported, "issue is required"))
		return res
	}

	branch, err := naming.FromDescription(in.Issue, "hotfix")
	if err != nil {
		res.fail(err)
		return res
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
		rt.record(ctx, "hotfix", res.sessionID(), summarize(
			"issue", in.Issue, "severity", in.Severity), res)
	}()

	if err := rt.Git.Fetch(ctx, rt.Config.MainBranch); err != nil {
		res.warn("cannot fetch %s: %v", rt.Config.MainBranch, err)
	}

	env := rt.env(branch)
	if !res.foldPreFlight(checks.Run(ctx, env, []string{
		"hansolo-initialized", "in-git-repo", "on-main-branch",
		"working-directory-clean", "main-up-to-date",
		"no-existing-session", "branch-name-available",
	})) {
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

	s := session.New(branch, session.WorkflowHotfix)
	if err := s.Apply(session.StateHotfixReady, "hotfix", rt.Actor); err != nil {
		res.fail(err)
		return res
	}
	s.SetMeta(session.MetaIssue, in.Issue)
	if in.Severity != "" {
		s.SetMeta(session.MetaSeverity, in.Severity)
	}
	s.SetMeta(session.MetaSkipReview, strconv.FormatBool(in.SkipReview))
	s.SetMeta(session.MetaAutoMerge, strconv.FormatBool(in.AutoMerge))
	if err := rt.Sessions.Create(ctx, s); err != nil {
		res.fail(err)
		return res
	}
	env.Facts.SessionCreated = true
	env.Facts.Session = s

	res.foldPostFlight(checks.Run(ctx, env, []string{
		"branch-checked-out", "session-created",
		"session-state=" + string(session.StateHotfixReady),
	}))

	res.Data["sessionId"] = s.ID
	res.Data["branchName"] = branch
	res.Data["state"] = string(s.State)
	res.addStep("apply the fix, then run 'hansolo commit' and 'hansolo ship'")
	return res
}
