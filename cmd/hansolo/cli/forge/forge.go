// Package forge wraps the hosted-forge API (GitHub) behind a narrow
// adapter: open/update/read/merge pull requests, poll CI checks, delete
// remote branches. All calls go through the gh CLI so authentication,
// host selection, and enterprise quirks stay gh's problem.
package forge

import (
	"time"
)

// PRState is the lifecycle state of a pull request.
type PRState string

const (
	PROpen   PRState = "open"
	PRMerged PRState = "merged"
	PRClosed PRState = "closed"
)

// Mergeable is the forge's merge-conflict verdict for a pull request.
type Mergeable string

const (
	MergeableYes     Mergeable = "yes"
	MergeableNo      Mergeable = "no"
	MergeableUnknown Mergeable = "unknown"
)

// CheckState is the state of a single CI check.
type CheckState string

const (
	CheckQueued    CheckState = "queued"
	CheckRunning   CheckState = "running"
	CheckSuccess   CheckState = "success"
	CheckFailure   CheckState = "failure"
	CheckNeutral   CheckState = "neutral"
	CheckTimedOut  CheckState = "timed_out"
	CheckCancelled CheckState = "cancelled"
)

// Terminal reports whether the check has finished running.
func (s CheckState) Terminal() bool {
	switch s {
	case CheckSuccess, CheckFailure, CheckNeutral, CheckTimedOut, CheckCancelled:
		return true
	case CheckQueued, CheckRunning:
		return false
	}
	return false
}

// Passing reports whether a terminal check counts as green.
// Neutral conclusions (e.g. skipped jobs) do not block a merge.
func (s CheckState) Passing() bool {
	return s == CheckSuccess || s == CheckNeutral
}

// Check is one CI check attached to a pull request head.
type Check struct {
	Name  string     `json:"name"`
	State CheckState `json:"state"`
}

// PR is a pull request snapshot.
type PR struct {
	Number               int       `json:"number"`
	URL                  string    `json:"url"`
	State                PRState   `json:"state"`
	Base                 string    `json:"base"`
	Draft                bool      `json:"draft"`
	Mergeable            Mergeable `json:"mergeable"`
	Checks               []Check   `json:"checks,omitempty"`
	RequiredApprovalsMet bool      `json:"required_approvals_met"`
}

// OpenPRInput describes a pull request to open.
type OpenPRInput struct {
	Branch string
	Base   string
	Title  string
	Body   string
	Draft  bool
}

// OpenPRResult carries the opened (or pre-existing) pull request.
type OpenPRResult struct {
	Number         int    `json:"number"`
	URL            string `json:"url"`
	AlreadyExisted bool   `json:"already_existed"`
}

// UpdatePRInput describes a pull request edit. Nil fields are left as-is.
type UpdatePRInput struct {
	Title *string
	Body  *string
	Base  *string
}

// MergeMethod is the PR merge strategy. Squash is the only method the
// workflow supports; everything else breaks linear history.
type MergeMethod string

const MergeSquash MergeMethod = "squash"

// MergePRInput describes a merge request.
type MergePRInput struct {
	Method        MergeMethod
	TitleOverride string
	BodyOverride  string
}

// MergePRResult carries the squash commit the merge produced.
type MergePRResult struct {
	MergedSHA string `json:"merged_sha"`
}

// WaitVerdict is the outcome of a WaitForChecks call.
type WaitVerdict string

const (
	WaitAllSucceeded WaitVerdict = "all_succeeded"
	WaitFailed       WaitVerdict = "failed"
	WaitTimedOut     WaitVerdict = "timed_out"
)

// WaitResult reports how a check-polling round ended. Failed carries the
// names of the checks that failed.
type WaitResult struct {
	Verdict WaitVerdict `json:"verdict"`
	Failed  []string    `json:"failed,omitempty"`
}

// WaitOptions bounds a WaitForChecks call.
type WaitOptions struct {
	// PollInterval caps the backoff between polls. Zero means 10s.
	PollInterval time.Duration
	// OverallTimeout bounds the whole wait. Zero means 20 minutes.
	OverallTimeout time.Duration
	// RequiredSet restricts which checks gate the verdict. Empty means
	// every reported check is required.
	RequiredSet []string
}

// Options configures a GitHub adapter.
type Options struct {
	// Timeout bounds a single gh invocation. Zero means 30s.
	Timeout time.Duration
}

// DefaultTimeout bounds a single forge call when none is configured.
const DefaultTimeout = 30 * time.Second
