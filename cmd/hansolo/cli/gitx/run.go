package gitx

import (
	"context"
	"errors"
	"os/exec"
	"strings"

	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/errkind"
)

// Sentinel errors for the adapter-level failure names. Each is carried
// inside an errkind.Error so callers can match either way.
var (
	ErrNothingToCommit = errors.New("nothing to commit")
	ErrNotFastForward  = errors.New("not a fast-forward")
	ErrRemoteRejected  = errors.New("remote rejected push")
	ErrBranchNotMerged = errors.New("branch is not fully merged")
	ErrBranchExists    = errors.New("branch already exists")
)

// run executes a git command in the repo directory with the configured
// timeout and returns trimmed stdout. Failures are classified.
func (r *Repo) run(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.dir
	output, err := cmd.CombinedOutput()
	text := strings.TrimSpace(string(output))
	if err != nil {
		return text, r.classify(ctx, args, text, err)
	}
	return text, nil
}

// classify maps raw git failures onto the domain error taxonomy.
func (r *Repo) classify(ctx context.Context, args []string, output string, err error) error {
	if ctx.Err() == context.DeadlineExceeded {
		return errkind.Wrap(errkind.TimedOut, err, "git %s timed out after %s", args[0], r.timeout)
	}
	if ctx.Err() == context.Canceled {
		return errkind.Wrap(errkind.Cancelled, err, "git %s cancelled", args[0])
	}

	lower := strings.ToLower(output)
	switch {
	case strings.Contains(lower, "nothing to commit"),
		strings.Contains(lower, "no changes added to commit"):
		return errkind.Wrap(errkind.Unsupported, ErrNothingToCommit, "git commit: %s", firstLine(output))
	case strings.Contains(lower, "not possible to fast-forward"),
		strings.Contains(lower, "not a fast-forward"),
		strings.Contains(lower, "have diverged"):
		return errkind.Wrap(errkind.Conflict, ErrNotFastForward, "git %s: %s", args[0], firstLine(output)).
			WithSuggestion("the branches have diverged; rebase before retrying")
	case strings.Contains(lower, "[rejected]"),
		strings.Contains(lower, "failed to push"):
		return errkind.Wrap(errkind.Conflict, ErrRemoteRejected, "git push: %s", firstLine(output)).
			WithSuggestion("the remote has commits you do not have; rebase onto it first")
	case strings.Contains(lower, "not fully merged"):
		return errkind.Wrap(errkind.Conflict, ErrBranchNotMerged, "git branch: %s", firstLine(output)).
			WithSuggestion("merge or ship the branch first, or delete with force")
	case strings.Contains(lower, "already exists"):
		return errkind.Wrap(errkind.AlreadyExists, ErrBranchExists, "git %s: %s", args[0], firstLine(output))
	case strings.Contains(lower, "did not match any"),
		strings.Contains(lower, "unknown revision"),
		strings.Contains(lower, "no such ref"):
		return errkind.Wrap(errkind.NotFound, err, "git %s: %s", args[0], firstLine(output))
	case strings.Contains(lower, "not a git repository"):
		return errkind.Wrap(errkind.Unsupported, err, "not a git repository")
	case strings.Contains(lower, "could not read from remote"),
		strings.Contains(lower, "authentication failed"),
		strings.Contains(lower, "permission denied"):
		return errkind.Wrap(errkind.Unauthorized, err, "git %s: %s", args[0], firstLine(output))
	}
	return errkind.Wrap(errkind.Internal, err, "git %s failed: %s", strings.Join(args, " "), firstLine(output))
}

func firstLine(s string) string {
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	if s == "" {
		return "(no output)"
	}
	return s
}
