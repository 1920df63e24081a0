package checks

import (
	"context"
	"fmt"

	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/session"
)

// postflightCatalogue lists the post-flight verifications in evaluation
// order. A failed verification marks the operation unsuccessful and
// blocks the final success transition; it never rolls back side effects.
var postflightCatalogue = []Check{
	{Name: "session-created", Severity: SeverityError, Eval: verifySessionCreated},
	{Name: "branch-checked-out", Severity: SeverityError, Eval: verifyBranchCheckedOut},
	{Name: "commit-created", Severity: SeverityError, Eval: verifyCommitCreated},
	{Name: "pr-opened", Severity: SeverityError, Eval: verifyPROpened},
	{Name: "pr-merged", Severity: SeverityError, Eval: verifyPRMerged},
	{Name: "branch-deleted-local", Severity: SeverityWarning, Eval: verifyBranchDeletedLocal},
	{Name: "branch-deleted-remote", Severity: SeverityWarning, Eval: verifyBranchDeletedRemote},
	{Name: "session-state", Severity: SeverityError, Eval: verifySessionState},
}

// Post-flight sets reuse the pre-flight "on-main-branch" and
// "working-directory-clean" entries; those checks read the live
// environment, so they verify the tool's end state just as well.

func verifySessionCreated(_ context.Context, env *Env, _ string) Outcome {
	if !env.Facts.SessionCreated || env.Facts.Session == nil {
		return fail("session was not created")
	}
	return pass("session " + env.Facts.Session.ID + " created")
}

func verifyBranchCheckedOut(ctx context.Context, env *Env, param string) Outcome {
	want := param
	if want == "" {
		want = env.Facts.CheckedOutBranch
	}
	if want == "" {
		return fail("no branch recorded as checked out")
	}
	current, err := env.Git.CurrentBranch(ctx)
	if err != nil {
		return evalErr("cannot determine current branch", err)
	}
	if current != want {
		out := fail(fmt.Sprintf("on branch %s, expected %s", current, want))
		out.Expected = want
		out.Actual = current
		return out
	}
	return pass("checked out " + want)
}

func verifyCommitCreated(_ context.Context, env *Env, _ string) Outcome {
	if env.Facts.CommitHash == "" {
		return fail("no commit was created")
	}
	return pass("created commit " + env.Facts.CommitHash)
}

func verifyPROpened(_ context.Context, env *Env, _ string) Outcome {
	if env.Facts.PRNumber == 0 {
		return fail("no pull request was opened")
	}
	return pass(fmt.Sprintf("pull request #%d open", env.Facts.PRNumber))
}

func verifyPRMerged(_ context.Context, env *Env, _ string) Outcome {
	if !env.Facts.PRMerged {
		return fail("pull request was not merged")
	}
	return pass(fmt.Sprintf("pull request #%d merged", env.Facts.PRNumber))
}

func verifyBranchDeletedLocal(_ context.Context, env *Env, _ string) Outcome {
	if !env.Facts.LocalBranchDeleted {
		return fail("local branch was not deleted")
	}
	return pass("local branch deleted")
}

func verifyBranchDeletedRemote(_ context.Context, env *Env, _ string) Outcome {
	if !env.Facts.RemoteBranchDeleted {
		return fail("remote branch was not deleted")
	}
	return pass("remote branch deleted")
}

func verifySessionState(_ context.Context, env *Env, param string) Outcome {
	if env.Facts.Session == nil {
		return fail("no session recorded")
	}
	want := session.State(param)
	if env.Facts.Session.State != want {
		out := fail(fmt.Sprintf("session is in state %s, expected %s", env.Facts.Session.State, want))
		out.Expected = string(want)
		out.Actual = string(env.Facts.Session.State)
		return out
	}
	return pass("session in state " + param)
}
