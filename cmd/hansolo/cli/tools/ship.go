package tools

import (
	"context"
	"fmt"
	"strings"

	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/checks"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/errkind"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/forge"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/gitx"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/logging"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/session"
)

// ShipInput are the parameters of the ship tool.
type ShipInput struct {
	// Push controls the push step. Defaults to true.
	Push *bool `json:"push,omitempty"`
	// CreatePR controls the pull-request step. Defaults to true.
	CreatePR *bool `json:"createPR,omitempty"`
	// Merge controls the merge-and-cleanup steps. Defaults to true.
	Merge *bool `json:"merge,omitempty"`
	// PRDescription is required the first time a PR is opened.
	PRDescription string `json:"prDescription,omitempty"`
	// PRTitle overrides the derived title.
	PRTitle string `json:"prTitle,omitempty"`
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

// shipStates maps the workflow-specific state names ship moves through.
type shipStates struct {
	pushed    session.State
	prCreated session.State
	validated session.State
	merging   session.State
	cleanup   session.State
	complete  session.State
}

func statesFor(wt session.WorkflowType) shipStates {
	if wt == session.WorkflowHotfix {
		return shipStates{
			pushed:    session.StateHotfixPushed,
			prCreated: session.StateHotfixPushed,
			validated: session.StateHotfixValidated,
			merging:   session.StateHotfixDeployed,
			cleanup:   session.StateHotfixCleanup,
			complete:  session.StateHotfixComplete,
		}
	}
	return shipStates{
		pushed:    session.StatePushed,
		prCreated: session.StatePRCreated,
		validated: session.StatePRCreated,
		merging:   session.StateMerging,
		cleanup:   session.StateCleanup,
		complete:  session.StateComplete,
	}
}

// transition applies one state machine edge under the session lock.
func (rt *Runtime) transition(ctx context.Context, id string, to session.State, tool string) (*session.Session, error) {
	return rt.Sessions.Mutate(ctx, id, func(s *session.Session) error {
		if s.State == to {
			return nil
		}
		return s.Apply(to, tool, rt.Actor)
	})
}

// Ship drives a session from committed changes to a merged PR and a
// cleaned-up branch. Every intermediate state is a legal stopping
// point; re-invoking ship resumes from wherever the session stands.
func (rt *Runtime) Ship(ctx context.Context, in ShipInput) *ToolResult {
	res := newResult()
	ctx = logging.WithTool(ctx, "ship")
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
		rt.record(ctx, "ship", res.sessionID(), summarize("prTitle", in.PRTitle), res)
	}()

	env := rt.env("")
	if !res.foldPreFlight(checks.Run(ctx, env, []string{
		"session-exists", "not-on-main-branch", "has-commits-to-ship",
		"forge-authenticated", "no-merge-conflicts-with-main",
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
	states := statesFor(s.WorkflowType)

	// Merged on the forge already? Jump straight to cleanup.
	if s.PR != nil {
		if pr, err := rt.Forge.GetPR(ctx, s.PR.Number, ""); err == nil && pr.State == forge.PRMerged {
			env.Facts.PRNumber = s.PR.Number
			env.Facts.PRMerged = true
			if s.State != states.merging && s.State != states.cleanup {
				if s, err = rt.transition(ctx, s.ID, states.merging, "ship"); err != nil {
					res.fail(err)
					return res
				}
			}
			return rt.shipCleanup(ctx, res, env, s, states, branch)
		}
	}

	mainRef := rt.Git.RemoteRef(rt.Config.MainBranch)

	// Resume a parked conflict before anything else.
	conflictResolved := false
	if s.State == session.StateConflict {
		if rt.Git.RebaseInProgress(ctx) {
			result, err := rt.Git.ContinueRebase(ctx)
			if err != nil {
				res.fail(err)
				return res
			}
			if !result.OK() {
				res.fail(errkind.New(errkind.Conflict, "rebase still has conflicts").
					WithSuggestion("resolve the conflicted files, stage them, and run ship again"))
				res.Data["conflicts"] = result.Conflicts
				return res
			}
			conflictResolved = true
		} else {
			// Rebase was aborted out-of-band; redo it from scratch.
			logging.Info(ctx, "no rebase in progress; retrying from rebase step")
		}
	}

	// Step 1+2: rebase onto origin/main, then push.
	skipRebase := false
	if s.State == session.StateWaitingApproval {
		ab, err := rt.Git.BranchAheadBehind(ctx, branch, mainRef)
		if err != nil {
			res.fail(err)
			return res
		}
		if ab.Behind == 0 {
			skipRebase = true
		} else {
			if s, err = rt.transition(ctx, s.ID, session.StateRebasing, "ship"); err != nil {
				res.fail(err)
				return res
			}
		}
	}
	if needsRebaseAndPush(s.State) && !skipRebase {
		rebased := conflictResolved
		if !conflictResolved {
			result, err := rt.Git.RebaseOnto(ctx, mainRef)
			if err != nil {
				res.fail(err)
				return res
			}
			if !result.OK() {
				if s.WorkflowType == session.WorkflowStandard {
					if s, err = rt.transition(ctx, s.ID, session.StateConflict, "ship"); err != nil {
						res.fail(err)
						return res
					}
					res.Data["state"] = string(s.State)
				}
				res.fail(errkind.New(errkind.Conflict, "rebase onto %s hit conflicts", mainRef).
					WithSuggestion("resolve the conflicted files, stage them, and run ship again"))
				res.Data["conflicts"] = result.Conflicts
				return res
			}
			rebased = true
		}

		if !boolOr(in.Push, true) {
			res.addStep("run ship again with push enabled to continue")
			return res
		}
		if err := rt.Git.PushCurrent(ctx, gitx.PushOptions{SetUpstream: true, Force: rebased}); err != nil {
			res.fail(err)
			return res
		}
		// A rebase resumed from WAITING_APPROVAL goes back to
		// PR_CREATED; first-time ships land on PUSHED.
		target := states.pushed
		if s.State == session.StateRebasing {
			target = states.prCreated
		}
		if s, err = rt.transition(ctx, s.ID, target, "ship"); err != nil {
			res.fail(err)
			return res
		}
		res.Data["state"] = string(s.State)
	}

	// Step 3: open or update the pull request.
	if !boolOr(in.CreatePR, true) {
		res.addStep("run ship again with createPR enabled to continue")
		return res
	}
	if s.PR == nil {
		if in.PRDescription == "" {
			res.fail(errkind.New(errkind.Unsupported, "prDescription is required when opening a pull request"))
			return res
		}
		opened, err := rt.Forge.OpenPR(ctx, forge.OpenPRInput{
			Branch: branch,
			Base:   rt.Config.MainBranch,
			Title:  prTitle(in.PRTitle, s),
			Body:   in.PRDescription,
		})
		if err != nil {
			res.fail(err)
			return res
		}
		if !opened.AlreadyExisted {
			ab, err := rt.Git.BranchAheadBehind(ctx, branch, rt.Config.MainBranch)
			if err == nil && ab.Ahead == 0 {
				res.fail(errkind.New(errkind.Unsupported, "nothing to ship: branch has no commits ahead of %s", rt.Config.MainBranch))
				return res
			}
		}
		s, err = rt.Sessions.Mutate(ctx, s.ID, func(s *session.Session) error {
			s.PR = &session.PRRef{Number: opened.Number, URL: opened.URL, Base: rt.Config.MainBranch}
			if s.State != states.prCreated {
				return s.Apply(states.prCreated, "ship", rt.Actor)
			}
			return nil
		})
		if err != nil {
			res.fail(err)
			return res
		}
	} else {
		update := forge.UpdatePRInput{}
		if in.PRTitle != "" {
			update.Title = &in.PRTitle
		}
		if in.PRDescription != "" {
			update.Body = &in.PRDescription
		}
		if err := rt.Forge.UpdatePR(ctx, s.PR.Number, update); err != nil {
			res.fail(err)
			return res
		}
		if s.State != states.prCreated && s.State == states.pushed {
			if s, err = rt.transition(ctx, s.ID, states.prCreated, "ship"); err != nil {
				res.fail(err)
				return res
			}
		}
	}
	env.Facts.PRNumber = s.PR.Number
	res.Data["prNumber"] = s.PR.Number
	res.Data["prUrl"] = s.PR.URL
	res.Data["state"] = string(s.State)

	if !boolOr(in.Merge, true) {
		res.addStep("run ship again with merge enabled to finish")
		return res
	}

	// Step 4: wait for required checks.
	if rt.Config.CIRequired {
		wait, err := rt.Forge.WaitForChecks(ctx, s.PR.Number, forge.WaitOptions{
			PollInterval:   rt.Config.PollInterval,
			OverallTimeout: rt.Config.CheckTimeout,
			RequiredSet:    rt.Config.RequiredChecks,
		})
		if err != nil {
			res.fail(err)
			return res
		}
		switch wait.Verdict {
		case forge.WaitFailed:
			res.warn("checks failed: %s", strings.Join(wait.Failed, ", "))
			res.Success = false
			res.addStep("fix the failing checks, push, and run ship again")
			return res
		case forge.WaitTimedOut:
			res.fail(errkind.New(errkind.TimedOut, "checks did not finish within %s", rt.Config.CheckTimeout).
				WithSuggestion("run ship again once CI settles"))
			return res
		}
	}
	if s.WorkflowType == session.WorkflowHotfix && s.State == session.StateHotfixPushed {
		if s, err = rt.transition(ctx, s.ID, session.StateHotfixValidated, "ship"); err != nil {
			res.fail(err)
			return res
		}
	}

	// Approvals. Hotfix with skipReview bypasses approvals only; the
	// required check set above is never bypassed.
	skipReview := s.WorkflowType == session.WorkflowHotfix && s.Meta(session.MetaSkipReview) == "true"
	if !skipReview {
		pr, err := rt.Forge.GetPR(ctx, s.PR.Number, "")
		if err != nil {
			res.fail(err)
			return res
		}
		if !pr.RequiredApprovalsMet {
			if s.WorkflowType == session.WorkflowStandard && s.State != session.StateWaitingApproval {
				if s, err = rt.transition(ctx, s.ID, session.StateWaitingApproval, "ship"); err != nil {
					res.fail(err)
					return res
				}
			}
			res.Data["state"] = string(s.State)
			res.warn("pull request #%d is waiting for approvals", s.PR.Number)
			res.addStep("request a review, then run ship again")
			return res
		}
	}

	// Step 5: squash merge.
	merged, err := rt.Forge.MergePR(ctx, s.PR.Number, forge.MergePRInput{Method: forge.MergeSquash})
	if err != nil {
		res.fail(err)
		return res
	}
	env.Facts.PRMerged = true
	s, err = rt.Sessions.Mutate(ctx, s.ID, func(s *session.Session) error {
		s.SetMeta(session.MetaMergedSHA, merged.MergedSHA)
		return s.Apply(states.merging, "ship", rt.Actor)
	})
	if err != nil {
		res.fail(err)
		return res
	}
	res.Data["mergedSha"] = merged.MergedSHA

	return rt.shipCleanup(ctx, res, env, s, states, branch)
}

// needsRebaseAndPush reports whether the session state still requires
// the rebase-and-push phase.
func needsRebaseAndPush(st session.State) bool {
	switch st {
	case session.StateChangesCommitted, session.StateConflict,
		session.StateRebasing, session.StateHotfixCommitted:
		return true
	}
	return false
}

// shipCleanup is step 6: back to main, fast-forward, delete the branch
// on both ends, and complete the session.
func (rt *Runtime) shipCleanup(ctx context.Context, res *ToolResult, env *checks.Env, s *session.Session, states shipStates, branch string) *ToolResult {
	if err := rt.Git.Checkout(ctx, rt.Config.MainBranch, gitx.CheckoutOptions{}); err != nil {
		res.fail(err)
		return res
	}
	env.Facts.CheckedOutBranch = rt.Config.MainBranch
	if err := rt.Git.PullFF(ctx, rt.Config.MainBranch); err != nil {
		res.fail(err)
		return res
	}

	var err error
	if s.State != states.cleanup {
		if s, err = rt.transition(ctx, s.ID, states.cleanup, "ship"); err != nil {
			res.fail(err)
			return res
		}
	}

	// The squash commit makes the branch look unmerged to git; force
	// deletion is safe once the forge reports the PR merged.
	if err := rt.Git.DeleteBranch(ctx, branch, gitx.DeleteBranchOptions{Force: true}); err != nil {
		res.warn("cannot delete local branch %s: %v", branch, err)
	} else {
		env.Facts.LocalBranchDeleted = true
	}
	if err := rt.Forge.DeleteRemoteBranch(ctx, branch); err != nil {
		res.warn("cannot delete remote branch %s: %v", branch, err)
	} else {
		env.Facts.RemoteBranchDeleted = true
	}

	if s, err = rt.transition(ctx, s.ID, states.complete, "ship"); err != nil {
		res.fail(err)
		return res
	}
	env.Facts.Session = s
	if s.PR != nil {
		env.Facts.PRNumber = s.PR.Number
	}

	res.foldPostFlight(checks.Run(ctx, env, []string{
		"on-main-branch", "working-directory-clean", "pr-merged",
		"branch-deleted-local", "branch-deleted-remote",
		"session-state=" + string(states.complete),
	}))

	res.Data["state"] = string(s.State)
	res.addStep("run 'hansolo launch' to start the next change")
	return res
}

// prTitle derives the PR title from the branch when no override is
// given: "[launch] feature/add-auth" or "[hotfix] hotfix/cve-fix".
func prTitle(override string, s *session.Session) string {
	if override != "" {
		return override
	}
	prefix := "[launch]"
	if s.WorkflowType == session.WorkflowHotfix {
		prefix = "[hotfix]"
	}
	return fmt.Sprintf("%s %s", prefix, s.BranchName)
}
