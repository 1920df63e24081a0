package checks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/errkind"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/paths"
)

// preflightCatalogue lists the pre-flight checks in evaluation order.
var preflightCatalogue = []Check{
	{Name: "hansolo-initialized", Severity: SeverityError, Eval: evalInitialized},
	{Name: "in-git-repo", Severity: SeverityError, Eval: evalInGitRepo},
	{Name: "on-main-branch", Severity: SeverityError, Eval: evalOnMain},
	{Name: "not-on-main-branch", Severity: SeverityError, Eval: evalNotOnMain},
	{Name: "working-directory-clean", Severity: SeverityError, Eval: evalClean},
	{Name: "main-up-to-date", Severity: SeverityError, Eval: evalMainUpToDate},
	{Name: "no-existing-session", Severity: SeverityError, Eval: evalNoExistingSession},
	{Name: "session-exists", Severity: SeverityError, Eval: evalSessionExists},
	{Name: "branch-name-available", Severity: SeverityError, Eval: evalBranchAvailable},
	{Name: "has-uncommitted-changes", Severity: SeverityError, Eval: evalHasUncommitted},
	{Name: "has-commits-to-ship", Severity: SeverityError, Eval: evalHasCommits},
	{Name: "no-merge-conflicts-with-main", Severity: SeverityError, Eval: evalNoConflicts},
	{Name: "forge-authenticated", Severity: SeverityError, Eval: evalForgeAuth},
}

func pass(msg string) Outcome {
	return Outcome{Passed: true, Message: msg}
}

func fail(msg string) Outcome {
	return Outcome{Passed: false, Message: msg}
}

// evalErr turns an adapter error into a failed outcome.
func evalErr(what string, err error) Outcome {
	out := Outcome{Passed: false, Message: fmt.Sprintf("%s: %v", what, err)}
	var ke *errkind.Error
	if errors.As(err, &ke) && ke.Suggestion != "" {
		out.Suggestion = ke.Suggestion
	}
	return out
}

func evalInitialized(_ context.Context, env *Env, _ string) Outcome {
	cfg := filepath.Join(env.RepoRoot, paths.ConfigFile)
	sessions := filepath.Join(env.RepoRoot, paths.SessionsDir)
	if _, err := os.Stat(cfg); err != nil {
		out := fail("workspace is not initialized: missing " + paths.ConfigFile)
		out.Suggestion = "run 'hansolo init' first"
		return out
	}
	if info, err := os.Stat(sessions); err != nil || !info.IsDir() {
		out := fail("workspace is not initialized: missing " + paths.SessionsDir)
		out.Suggestion = "run 'hansolo init' first"
		return out
	}
	return pass("workspace initialized")
}

func evalInGitRepo(ctx context.Context, env *Env, _ string) Outcome {
	if _, err := env.Git.CurrentBranch(ctx); err != nil {
		return evalErr("not inside a git repository", err)
	}
	return pass("inside a git repository")
}

func evalOnMain(ctx context.Context, env *Env, _ string) Outcome {
	current, err := env.Git.CurrentBranch(ctx)
	if err != nil {
		return evalErr("cannot determine current branch", err)
	}
	if current != env.Config.MainBranch {
		out := fail(fmt.Sprintf("on branch %s, not %s", current, env.Config.MainBranch))
		out.Expected = env.Config.MainBranch
		out.Actual = current
		out.Suggestion = fmt.Sprintf("checkout %s first, or use swap", env.Config.MainBranch)
		return out
	}
	return pass("on " + env.Config.MainBranch)
}

func evalNotOnMain(ctx context.Context, env *Env, _ string) Outcome {
	current, err := env.Git.CurrentBranch(ctx)
	if err != nil {
		return evalErr("cannot determine current branch", err)
	}
	if current == env.Config.MainBranch {
		out := fail("on " + env.Config.MainBranch + "; this operation needs a feature branch")
		out.Suggestion = "launch a session first"
		return out
	}
	return pass("on branch " + current)
}

func evalClean(ctx context.Context, env *Env, _ string) Outcome {
	clean, err := env.Git.IsClean(ctx)
	if err != nil {
		return evalErr("cannot read working tree status", err)
	}
	if !clean {
		out := fail("working directory has uncommitted changes")
		out.Suggestion = "commit or stash them first"
		return out
	}
	return pass("working directory clean")
}

func evalMainUpToDate(ctx context.Context, env *Env, _ string) Outcome {
	main := env.Config.MainBranch
	ab, err := env.Git.BranchAheadBehind(ctx, main, env.Git.RemoteRef(main))
	if err != nil {
		return evalErr("cannot compare "+main+" with its remote", err)
	}
	if ab.Behind > 0 {
		out := fail(fmt.Sprintf("%s is %d commit(s) behind %s", main, ab.Behind, env.Git.RemoteRef(main)))
		out.Suggestion = "pull " + main + " first"
		return out
	}
	return pass(main + " is up to date")
}

func evalNoExistingSession(ctx context.Context, env *Env, _ string) Outcome {
	if env.ProposedBranch == "" {
		return fail("no branch proposed")
	}
	s, err := env.Sessions.FindByBranch(ctx, env.ProposedBranch)
	if err == nil && s != nil {
		out := fail(fmt.Sprintf("branch %s already has an active session (state %s)", env.ProposedBranch, s.State))
		out.Suggestion = "swap to it, or abort it first"
		return out
	}
	return pass("no active session for " + env.ProposedBranch)
}

func evalSessionExists(ctx context.Context, env *Env, _ string) Outcome {
	branch := env.ProposedBranch
	if branch == "" {
		current, err := env.Git.CurrentBranch(ctx)
		if err != nil {
			return evalErr("cannot determine current branch", err)
		}
		branch = current
	}
	if _, err := env.Sessions.FindByBranch(ctx, branch); err != nil {
		out := fail("no active session for branch " + branch)
		out.Suggestion = "launch a session first"
		return out
	}
	return pass("session exists for " + branch)
}

func evalBranchAvailable(ctx context.Context, env *Env, _ string) Outcome {
	name := env.ProposedBranch
	if name == "" {
		return fail("no branch proposed")
	}
	if exists, err := env.Git.BranchExists(ctx, name, false); err != nil {
		return evalErr("cannot check local branches", err)
	} else if exists {
		out := fail("local branch " + name + " already exists")
		out.Suggestion = "pick a different name, or swap to the existing branch"
		return out
	}
	if exists, err := env.Git.BranchExists(ctx, name, true); err != nil {
		return evalErr("cannot check remote branches", err)
	} else if exists {
		out := fail("remote branch " + name + " already exists")
		out.Suggestion = "pick a different name"
		return out
	}
	return pass("branch name " + name + " is available")
}

func evalHasUncommitted(ctx context.Context, env *Env, _ string) Outcome {
	clean, err := env.Git.IsClean(ctx)
	if err != nil {
		return evalErr("cannot read working tree status", err)
	}
	if clean {
		out := fail("nothing to commit; working directory is clean")
		return out
	}
	return pass("working directory has changes to commit")
}

func evalHasCommits(ctx context.Context, env *Env, _ string) Outcome {
	current, err := env.Git.CurrentBranch(ctx)
	if err != nil {
		return evalErr("cannot determine current branch", err)
	}
	ab, err := env.Git.BranchAheadBehind(ctx, current, env.Config.MainBranch)
	if err != nil {
		return evalErr("cannot compare with "+env.Config.MainBranch, err)
	}
	if ab.Ahead == 0 {
		out := fail("branch has no commits ahead of " + env.Config.MainBranch)
		out.Suggestion = "commit your changes first"
		return out
	}
	return pass(fmt.Sprintf("%d commit(s) to ship", ab.Ahead))
}

func evalNoConflicts(ctx context.Context, env *Env, _ string) Outcome {
	conflicts, err := env.Git.HasConflictsWith(ctx, env.Git.RemoteRef(env.Config.MainBranch))
	if err != nil {
		return evalErr("cannot run trial merge", err)
	}
	if conflicts {
		out := fail("branch conflicts with " + env.Config.MainBranch)
		out.Suggestion = "rebase onto " + env.Config.MainBranch + " and resolve conflicts"
		return out
	}
	return pass("no merge conflicts with " + env.Config.MainBranch)
}

func evalForgeAuth(ctx context.Context, env *Env, _ string) Outcome {
	login, err := env.Forge.Whoami(ctx)
	if err != nil {
		return evalErr("forge authentication failed", err)
	}
	return pass("authenticated as " + login)
}
