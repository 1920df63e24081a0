package gitx

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/errkind"
)

// maxDiffBytes bounds the per-file content read when summarizing a diff.
// Files larger than this are reported by size only.
const maxDiffBytes = 512 * 1024

// DiffSummary returns a bounded, human-readable summary of uncommitted
// changes relative to ref (HEAD when empty): one "+added/-removed path"
// line per modified file, with a trailing count for the rest.
func (r *Repo) DiffSummary(ctx context.Context, ref string) (string, error) {
	if ref == "" {
		ref = "HEAD"
	}
	st, err := r.Status(ctx)
	if err != nil {
		return "", err
	}
	if st.Clean() {
		return "", nil
	}

	repo, err := r.open()
	if err != nil {
		return "", err
	}
	hash, err := repo.ResolveRevision(plumbing.Revision(ref))
	if err != nil {
		return "", errkind.Wrap(errkind.NotFound, err, "cannot resolve %s", ref)
	}
	commit, err := repo.CommitObject(*hash)
	if err != nil {
		return "", errkind.Wrap(errkind.Internal, err, "cannot read commit %s", ref)
	}
	tree, err := commit.Tree()
	if err != nil {
		return "", errkind.Wrap(errkind.Internal, err, "cannot read tree of %s", ref)
	}

	dmp := diffmatchpatch.New()
	var b strings.Builder
	total := st.Staged + st.Unstaged + st.Untracked
	for _, path := range st.Modified {
		before := treeFileContent(tree, path)
		after, size := worktreeFileContent(r.dir, path)
		if size > maxDiffBytes {
			fmt.Fprintf(&b, "  %s (%d bytes, too large to diff)\n", path, size)
			continue
		}
		added, removed := countLineChanges(dmp, before, after)
		fmt.Fprintf(&b, "  +%d/-%d %s\n", added, removed, path)
	}
	if total > len(st.Modified) {
		fmt.Fprintf(&b, "  ... and %d more file(s)\n", total-len(st.Modified))
	}
	return strings.TrimRight(b.String(), "\n"), nil
}

// treeFileContent reads a file's content at a commit tree.
// Missing files (new in the worktree) yield empty content.
func treeFileContent(tree *object.Tree, path string) string {
	f, err := tree.File(path)
	if err != nil {
		if errors.Is(err, object.ErrFileNotFound) {
			return ""
		}
		return ""
	}
	content, err := f.Contents()
	if err != nil {
		return ""
	}
	return content
}

// worktreeFileContent reads a file from the working tree, returning its
// content and on-disk size. Deleted files yield empty content.
func worktreeFileContent(dir, path string) (string, int64) {
	full := filepath.Join(dir, path)
	info, err := os.Stat(full)
	if err != nil {
		return "", 0
	}
	if info.Size() > maxDiffBytes {
		return "", info.Size()
	}
	data, err := os.ReadFile(full) //nolint:gosec // path comes from git status output
	if err != nil {
		return "", info.Size()
	}
	return string(data), info.Size()
}

// countLineChanges computes added/removed line counts between two texts
// using a line-mode diff.
func countLineChanges(dmp *diffmatchpatch.DiffMatchPatch, before, after string) (added, removed int) {
	a, b, lines := dmp.DiffLinesToChars(before, after)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)
	for _, d := range diffs {
		n := strings.Count(d.Text, "\n")
		if n == 0 && d.Text != "" {
			n = 1
		}
		switch d.Type {
		case diffmatchpatch.DiffInsert:
			added += n
		case diffmatchpatch.DiffDelete:
			removed += n
		case diffmatchpatch.DiffEqual:
		}
	}
	return added, removed
}
