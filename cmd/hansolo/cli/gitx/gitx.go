// Package gitx wraps the local git repository behind a narrow adapter.
// Reads go through go-git; mutations shell out to the git CLI, which avoids
// the go-git v5 checkout bug with untracked files and keeps behavior
// identical to what the user sees on their own command line.
//
// The adapter owns git error classification: callers receive errkind-typed
// errors and never inspect git output or the working tree directly.
package gitx

import (
	"time"
)

// Status summarizes the working tree.
type Status struct {
	Staged    int      `json:"staged"`
	Unstaged  int      `json:"unstaged"`
	Untracked int      `json:"untracked"`
	// Modified is a bounded sample of changed paths, at most SamplePaths.
	Modified []string `json:"modified,omitempty"`
}

// SamplePaths bounds the Modified sample in Status.
const SamplePaths = 10

// Clean reports whether the working tree has no changes of any kind.
func (s Status) Clean() bool {
	return s.Staged == 0 && s.Unstaged == 0 && s.Untracked == 0
}

// AheadBehind is the commit distance between a branch and its base.
type AheadBehind struct {
	Ahead  int `json:"ahead"`
	Behind int `json:"behind"`
}

// RebaseResult reports the outcome of a rebase. Conflicts is empty on
// success; when non-empty the rebase is left in progress for the user
// to resolve.
type RebaseResult struct {
	Conflicts []string `json:"conflicts,omitempty"`
}

// OK reports whether the rebase completed without conflicts.
func (r RebaseResult) OK() bool { return len(r.Conflicts) == 0 }

// StashEntry is one labelled entry in the stash reflog.
type StashEntry struct {
	Ref     string `json:"ref"`     // e.g. "stash@{0}"
	Message string `json:"message"` // the label given at stash time
}

// CheckoutOptions controls Checkout behavior.
type CheckoutOptions struct {
	Create bool
}

// DeleteBranchOptions controls branch deletion.
type DeleteBranchOptions struct {
	Force  bool
	Remote bool
}

// CommitOptions controls Commit behavior.
type CommitOptions struct {
	StageAll bool
	Message  string
}

// PushOptions controls PushCurrent behavior.
type PushOptions struct {
	SetUpstream bool
	Force       bool
}

// Options configures a Repo.
type Options struct {
	// Dir is the repository root. Empty means the process working directory.
	Dir string

	// Remote is the git remote name. Empty means "origin".
	Remote string

	// Timeout bounds each git invocation. Zero means DefaultTimeout.
	Timeout time.Duration
}

// DefaultTimeout bounds a single git operation when no timeout is configured.
const DefaultTimeout = 60 * time.Second
