package gitx

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"

	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/errkind"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/validation"
)

// Repo is the git adapter for a single repository.
type Repo struct {
	dir     string
	remote  string
	timeout time.Duration
}

// Open creates a Repo for the given options and verifies the directory is
// a git repository.
func Open(opts Options) (*Repo, error) {
	dir := opts.Dir
	if dir == "" {
		dir = "."
	}
	remote := opts.Remote
	if remote == "" {
		remote = "origin"
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	if _, err := git.PlainOpenWithOptions(dir, &git.PlainOpenOptions{DetectDotGit: true}); err != nil {
		return nil, errkind.Wrap(errkind.Unsupported, err, "%s is not a git repository", dir)
	}

	return &Repo{dir: dir, remote: remote, timeout: timeout}, nil
}

// Remote returns the configured remote name.
func (r *Repo) Remote() string { return r.remote }

// open re-opens the go-git handle. go-git caches packed refs aggressively,
// so a fresh open per read keeps us consistent with CLI mutations.
func (r *Repo) open() (*git.Repository, error) {
	repo, err := git.PlainOpenWithOptions(r.dir, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, errkind.Wrap(errkind.Unsupported, err, "failed to open repository at %s", r.dir)
	}
	return repo, nil
}

// CurrentBranch returns the short name of the checked-out branch. git
// detaches HEAD for the duration of a rebase, so a conflict-stopped
// rebase is resolved to the branch the rebase was started from.
func (r *Repo) CurrentBranch(ctx context.Context) (string, error) {
	repo, err := r.open()
	if err != nil {
		return "", err
	}
	head, err := repo.Head()
	if err != nil {
		return "", errkind.Wrap(errkind.Internal, err, "failed to get HEAD")
	}
	if !head.Name().IsBranch() {
		if name, ok := r.rebaseHeadName(ctx); ok {
			return name, nil
		}
		return "", errkind.New(errkind.Unsupported, "not on a branch (detached HEAD)")
	}
	return head.Name().Short(), nil
}

// rebaseHeadName recovers the branch an in-progress rebase was started
// from, recorded in rebase-merge/head-name (rebase-apply/head-name for
// am-based rebases).
func (r *Repo) rebaseHeadName(ctx context.Context) (string, bool) {
	for _, state := range []string{"rebase-merge", "rebase-apply"} {
		path, err := r.run(ctx, "rev-parse", "--git-path", state+"/head-name")
		if err != nil {
			continue
		}
		if !filepath.IsAbs(path) {
			path = filepath.Join(r.dir, path)
		}
		data, err := os.ReadFile(path) //nolint:gosec // path comes from rev-parse
		if err != nil {
			continue
		}
		ref := strings.TrimSpace(string(data))
		if name, ok := strings.CutPrefix(ref, "refs/heads/"); ok && name != "" {
			return name, true
		}
	}
	return "", false
}

// IsClean reports whether the working tree has no uncommitted changes.
// Ignored untracked files are excluded.
func (r *Repo) IsClean(ctx context.Context) (bool, error) {
	st, err := r.Status(ctx)
	if err != nil {
		return false, err
	}
	return st.Clean(), nil
}

// Status returns staged/unstaged/untracked counts with a bounded sample of
// changed paths. Uses porcelain output rather than go-git's worktree status,
// which is slow on large trees and disagrees with git about ignore rules.
func (r *Repo) Status(ctx context.Context) (Status, error) {
	out, err := r.run(ctx, "status", "--porcelain")
	if err != nil {
		return Status{}, err
	}

	var st Status
	for line := range strings.Lines(out) {
		line = strings.TrimRight(line, "\n")
		if len(line) < 3 {
			continue
		}
		index, worktree := line[0], line[1]
		path := strings.TrimSpace(line[3:])
		switch {
		case index == '?' && worktree == '?':
			st.Untracked++
		default:
			if index != ' ' {
				st.Staged++
			}
			if worktree != ' ' {
				st.Unstaged++
			}
		}
		if len(st.Modified) < SamplePaths {
			st.Modified = append(st.Modified, path)
		}
	}
	return st, nil
}

// Checkout switches to the named branch, creating it when opts.Create.
// Fails AlreadyExists when create-and-exists.
func (r *Repo) Checkout(ctx context.Context, name string, opts CheckoutOptions) error {
	if err := validation.ValidateBranchRef(name); err != nil {
		return errkind.Wrap(errkind.Unsupported, err, "refusing checkout")
	}
	args := []string{"checkout"}
	if opts.Create {
		args = append(args, "-b")
	}
	args = append(args, name)
	_, err := r.run(ctx, args...)
	return err
}

// CreateBranch creates a branch at the given start point without checking
// it out. from may be empty, meaning HEAD.
func (r *Repo) CreateBranch(ctx context.Context, name, from string) error {
	if err := validation.ValidateBranchRef(name); err != nil {
		return errkind.Wrap(errkind.Unsupported, err, "refusing branch creation")
	}
	args := []string{"branch", name}
	if from != "" {
		args = append(args, from)
	}
	_, err := r.run(ctx, args...)
	return err
}

// DeleteBranch removes a local branch, and the remote branch too when
// opts.Remote. Without force, an unmerged local branch fails Conflict.
func (r *Repo) DeleteBranch(ctx context.Context, name string, opts DeleteBranchOptions) error {
	if err := validation.ValidateBranchRef(name); err != nil {
		return errkind.Wrap(errkind.Unsupported, err, "refusing branch deletion")
	}
	flag := "-d"
	if opts.Force {
		flag = "-D"
	}
	if _, err := r.run(ctx, "branch", flag, name); err != nil {
		return err
	}
	if opts.Remote {
		return r.DeleteRemoteBranch(ctx, name)
	}
	return nil
}

// DeleteRemoteBranch removes a branch on the remote. Idempotent: a branch
// that is already gone is not an error.
func (r *Repo) DeleteRemoteBranch(ctx context.Context, name string) error {
	if err := validation.ValidateBranchRef(name); err != nil {
		return errkind.Wrap(errkind.Unsupported, err, "refusing remote branch deletion")
	}
	_, err := r.run(ctx, "push", r.remote, "--delete", name)
	if err != nil && errkind.Is(err, errkind.NotFound) {
		return nil
	}
	return err
}

// Commit records staged changes (all changes when opts.StageAll) and
// returns the new commit hash. Fails Unsupported/ErrNothingToCommit when
// the tree is clean.
func (r *Repo) Commit(ctx context.Context, opts CommitOptions) (string, error) {
	if opts.Message == "" {
		return "", errkind.New(errkind.Unsupported, "commit message cannot be empty")
	}
	if opts.StageAll {
		if _, err := r.run(ctx, "add", "-A"); err != nil {
			return "", err
		}
	}
	if _, err := r.run(ctx, "commit", "-m", opts.Message); err != nil {
		return "", err
	}
	return r.run(ctx, "rev-parse", "HEAD")
}

// PushCurrent pushes the checked-out branch. Force uses --force-with-lease
// so a rebased branch can replace its remote counterpart without clobbering
// commits we have never seen.
func (r *Repo) PushCurrent(ctx context.Context, opts PushOptions) error {
	args := []string{"push"}
	if opts.SetUpstream {
		args = append(args, "-u")
	}
	if opts.Force {
		args = append(args, "--force-with-lease")
	}
	args = append(args, r.remote, "HEAD")
	_, err := r.run(ctx, args...)
	return err
}

// PullFF fast-forwards the named branch from the remote.
// Fails Conflict/ErrNotFastForward when histories diverged.
func (r *Repo) PullFF(ctx context.Context, branch string) error {
	if err := validation.ValidateBranchRef(branch); err != nil {
		return errkind.Wrap(errkind.Unsupported, err, "refusing pull")
	}
	_, err := r.run(ctx, "pull", "--ff-only", r.remote, branch)
	return err
}

// Fetch updates remote-tracking refs for the named branch.
func (r *Repo) Fetch(ctx context.Context, branch string) error {
	if err := validation.ValidateBranchRef(branch); err != nil {
		return errkind.Wrap(errkind.Unsupported, err, "refusing fetch")
	}
	_, err := r.run(ctx, "fetch", r.remote, branch)
	return err
}

// RebaseOnto rebases the current branch onto ref. On conflict the rebase is
// left in progress and the unmerged paths are returned; the caller parks the
// session in its conflict state and the user resolves before re-running.
func (r *Repo) RebaseOnto(ctx context.Context, ref string) (RebaseResult, error) {
	_, err := r.run(ctx, "rebase", ref)
	if err == nil {
		return RebaseResult{}, nil
	}
	if !errkind.Is(err, errkind.Internal) && !errkind.Is(err, errkind.Conflict) {
		return RebaseResult{}, err
	}

	// A rebase stopped by conflicts leaves unmerged entries in the index.
	out, listErr := r.run(ctx, "diff", "--name-only", "--diff-filter=U")
	if listErr != nil || out == "" {
		// Not a conflict stop; make sure no half-applied rebase lingers.
		_, _ = r.run(ctx, "rebase", "--abort")
		return RebaseResult{}, err
	}
	return RebaseResult{Conflicts: strings.Split(out, "\n")}, nil
}

// RebaseInProgress reports whether a rebase is currently stopped midway.
func (r *Repo) RebaseInProgress(ctx context.Context) bool {
	_, err := r.run(ctx, "rev-parse", "-q", "--verify", "REBASE_HEAD")
	return err == nil
}

// ContinueRebase resumes a conflict-stopped rebase after the user staged
// resolutions. Returns remaining conflicts if the next commit stops too.
func (r *Repo) ContinueRebase(ctx context.Context) (RebaseResult, error) {
	_, err := r.run(ctx, "-c", "core.editor=true", "rebase", "--continue")
	if err == nil {
		return RebaseResult{}, nil
	}
	out, listErr := r.run(ctx, "diff", "--name-only", "--diff-filter=U")
	if listErr == nil && out != "" {
		return RebaseResult{Conflicts: strings.Split(out, "\n")}, nil
	}
	return RebaseResult{}, err
}

// Stash saves the working tree under a label and returns the stash ref.
func (r *Repo) Stash(ctx context.Context, message string) (string, error) {
	if message == "" {
		return "", errkind.New(errkind.Unsupported, "stash message cannot be empty")
	}
	out, err := r.run(ctx, "stash", "push", "--include-untracked", "-m", message)
	if err != nil {
		return "", err
	}
	if strings.Contains(out, "No local changes") {
		return "", errkind.Wrap(errkind.Unsupported, ErrNothingToCommit, "nothing to stash")
	}

	// The new entry is always stash@{0}, but the label is the stable handle.
	entries, err := r.StashList(ctx)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if e.Message == message {
			return e.Ref, nil
		}
	}
	return "stash@{0}", nil
}

// StashPop applies and drops the given stash ref.
func (r *Repo) StashPop(ctx context.Context, ref string) error {
	if ref == "" {
		ref = "stash@{0}"
	}
	_, err := r.run(ctx, "stash", "pop", ref)
	return err
}

// StashList returns the stash reflog as labelled entries.
func (r *Repo) StashList(ctx context.Context) ([]StashEntry, error) {
	out, err := r.run(ctx, "stash", "list", "--format=%gd%x00%gs")
	if err != nil {
		return nil, err
	}
	var entries []StashEntry
	for line := range strings.Lines(out) {
		line = strings.TrimRight(line, "\n")
		ref, subject, found := strings.Cut(line, "\x00")
		if !found {
			continue
		}
		// Subjects look like "On main: <message>" or "WIP on main: ...".
		message := subject
		if _, after, ok := strings.Cut(subject, ": "); ok {
			message = after
		}
		entries = append(entries, StashEntry{Ref: ref, Message: message})
	}
	return entries, nil
}

// FindStash returns the ref of the stash entry with the given label, or
// NotFound.
func (r *Repo) FindStash(ctx context.Context, message string) (string, error) {
	entries, err := r.StashList(ctx)
	if err != nil {
		return "", err
	}
	for _, e := range entries {
		if e.Message == message {
			return e.Ref, nil
		}
	}
	return "", errkind.New(errkind.NotFound, "no stash entry labelled %q", message)
}

// BranchExists reports whether the named branch exists locally, or on the
// remote-tracking refs when remote is true.
func (r *Repo) BranchExists(ctx context.Context, name string, remote bool) (bool, error) {
	repo, err := r.open()
	if err != nil {
		return false, err
	}
	refName := plumbing.NewBranchReferenceName(name)
	if remote {
		refName = plumbing.NewRemoteReferenceName(r.remote, name)
	}
	_, err = repo.Reference(refName, true)
	if err != nil {
		if errors.Is(err, plumbing.ErrReferenceNotFound) {
			return false, nil
		}
		return false, errkind.Wrap(errkind.Internal, err, "failed to check branch %s", name)
	}
	return true, nil
}

// BranchAheadBehind returns the commit distance of branch relative to base.
func (r *Repo) BranchAheadBehind(ctx context.Context, branch, base string) (AheadBehind, error) {
	out, err := r.run(ctx, "rev-list", "--left-right", "--count", base+"..."+branch)
	if err != nil {
		return AheadBehind{}, err
	}
	fields := strings.Fields(out)
	if len(fields) != 2 {
		return AheadBehind{}, errkind.New(errkind.Internal, "unexpected rev-list output %q", out)
	}
	behind, err := strconv.Atoi(fields[0])
	if err != nil {
		return AheadBehind{}, errkind.Wrap(errkind.Internal, err, "parsing rev-list output %q", out)
	}
	ahead, err := strconv.Atoi(fields[1])
	if err != nil {
		return AheadBehind{}, errkind.Wrap(errkind.Internal, err, "parsing rev-list output %q", out)
	}
	return AheadBehind{Ahead: ahead, Behind: behind}, nil
}

// MergeBase returns the common ancestor hash of two refs.
func (r *Repo) MergeBase(ctx context.Context, a, b string) (string, error) {
	return r.run(ctx, "merge-base", a, b)
}

// HasConflictsWith runs a trial merge-tree of the current branch against
// ref without touching the working tree.
func (r *Repo) HasConflictsWith(ctx context.Context, ref string) (bool, error) {
	head, err := r.run(ctx, "rev-parse", "HEAD")
	if err != nil {
		return false, err
	}
	out, err := r.run(ctx, "merge-tree", "--write-tree", "--name-only", ref, head)
	if err != nil {
		// merge-tree exits 1 when the merge has conflicts; the output then
		// lists the conflicted paths after the tree OID.
		if errkind.Is(err, errkind.Internal) && out != "" {
			return true, nil
		}
		return false, err
	}
	return false, nil
}

// IsMergedInto reports whether branch's tip is an ancestor of base, i.e.
// the branch is fully contained in base.
func (r *Repo) IsMergedInto(ctx context.Context, branch, base string) (bool, error) {
	_, err := r.run(ctx, "merge-base", "--is-ancestor", branch, base)
	if err == nil {
		return true, nil
	}
	if errkind.Is(err, errkind.Internal) {
		// Exit code 1 means "not an ancestor".
		return false, nil
	}
	return false, err
}

// RemoteRef returns "<remote>/<branch>" for use as a rebase or comparison
// target.
func (r *Repo) RemoteRef(branch string) string {
	return fmt.Sprintf("%s/%s", r.remote, branch)
}
