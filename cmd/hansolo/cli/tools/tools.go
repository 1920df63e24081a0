// Package tools implements the workflow operations: launch, commit,
// ship, swap, abort, hotfix, cleanup, sessions, status. Each tool is
// one atomic operation with the same envelope: acquire the worktree
// lock, evaluate pre-flight checks, run the body, evaluate post-flight
// verifications, write an audit entry, and return a ToolResult.
package tools

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/audit"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/checks"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/config"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/errkind"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/forge"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/gitx"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/lock"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/logging"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/paths"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/session"
)

// GitClient is the slice of the git adapter the tools consume.
// *gitx.Repo implements it; tests substitute fakes.
type GitClient interface {
	checks.GitEnv

	Status(ctx context.Context) (gitx.Status, error)
	DiffSummary(ctx context.Context, ref string) (string, error)
	Checkout(ctx context.Context, name string, opts gitx.CheckoutOptions) error
	CreateBranch(ctx context.Context, name, from string) error
	DeleteBranch(ctx context.Context, name string, opts gitx.DeleteBranchOptions) error
	DeleteRemoteBranch(ctx context.Context, name string) error
	Commit(ctx context.Context, opts gitx.CommitOptions) (string, error)
	PushCurrent(ctx context.Context, opts gitx.PushOptions) error
	PullFF(ctx context.Context, branch string) error
	Fetch(ctx context.Context, branch string) error
	RebaseOnto(ctx context.Context, ref string) (gitx.RebaseResult, error)
	RebaseInProgress(ctx context.Context) bool
	ContinueRebase(ctx context.Context) (gitx.RebaseResult, error)
	Stash(ctx context.Context, message string) (string, error)
	StashPop(ctx context.Context, ref string) error
	FindStash(ctx context.Context, message string) (string, error)
	IsMergedInto(ctx context.Context, branch, base string) (bool, error)
}

// ForgeClient is the slice of the forge adapter the tools consume.
// *forge.GitHub implements it; tests substitute fakes.
type ForgeClient interface {
	checks.ForgeEnv

	OpenPR(ctx context.Context, in forge.OpenPRInput) (forge.OpenPRResult, error)
	UpdatePR(ctx context.Context, number int, in forge.UpdatePRInput) error
	GetPR(ctx context.Context, number int, branch string) (forge.PR, error)
	WaitForChecks(ctx context.Context, number int, opts forge.WaitOptions) (forge.WaitResult, error)
	MergePR(ctx context.Context, number int, in forge.MergePRInput) (forge.MergePRResult, error)
	DeleteRemoteBranch(ctx context.Context, branch string) error
}

// SessionStore is the slice of the session store the tools consume.
type SessionStore interface {
	checks.SessionEnv

	Get(ctx context.Context, id string) (*session.Session, error)
	Create(ctx context.Context, s *session.Session) error
	Mutate(ctx context.Context, id string, fn func(*session.Session) error) (*session.Session, error)
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]*session.Session, error)
	ListActive(ctx context.Context) ([]*session.Session, error)
}

// AuditLog records tool invocations.
type AuditLog interface {
	Append(ctx context.Context, e audit.Entry) error
}

// Runtime wires the adapters a tool invocation runs against.
type Runtime struct {
	Git      GitClient
	Forge    ForgeClient
	Sessions SessionStore
	Audit    AuditLog
	Config   *config.Config
	RepoRoot string

	// Actor is recorded in state history entries. Usually the forge
	// login, falling back to the OS user.
	Actor string
}

// ToolResult is the uniform result shape every tool returns.
type ToolResult struct {
	Success    bool           `json:"success"`
	PreFlight  *checks.Report `json:"preFlight,omitempty"`
	PostFlight *checks.Report `json:"postFlight,omitempty"`
	Errors     []string       `json:"errors,omitempty"`
	Warnings   []string       `json:"warnings,omitempty"`
	Data       map[string]any `json:"data,omitempty"`
	NextSteps  []string       `json:"nextSteps,omitempty"`
}

func newResult() *ToolResult {
	return &ToolResult{Success: true, Data: map[string]any{}}
}

// fail records an error and marks the result unsuccessful. An errkind
// suggestion, when present, becomes a next step.
func (r *ToolResult) fail(err error) {
	r.Success = false
	r.Errors = append(r.Errors, err.Error())
	var ke *errkind.Error
	if errors.As(err, &ke) && ke.Suggestion != "" {
		r.addStep(ke.Suggestion)
	}
}

func (r *ToolResult) warn(format string, args ...any) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

func (r *ToolResult) addStep(step string) {
	for _, s := range r.NextSteps {
		if s == step {
			return
		}
	}
	r.NextSteps = append(r.NextSteps, step)
}

// foldPreFlight attaches a pre-flight report; failures turn into
// errors, warnings into warnings. Returns whether the tool may proceed.
func (r *ToolResult) foldPreFlight(report checks.Report) bool {
	r.PreFlight = &report
	for _, w := range report.Warnings() {
		r.warn("%s: %s", w.Name, w.Message)
	}
	if report.Passed() {
		return true
	}
	r.Success = false
	for _, f := range report.Failures() {
		r.Errors = append(r.Errors, fmt.Sprintf("%s: %s", f.Name, f.Message))
		if f.Suggestion != "" {
			r.addStep(f.Suggestion)
		}
	}
	return false
}

// foldPostFlight attaches a post-flight report. Failures mark the
// operation unsuccessful but never roll anything back.
func (r *ToolResult) foldPostFlight(report checks.Report) {
	r.PostFlight = &report
	for _, w := range report.Warnings() {
		r.warn("%s: %s", w.Name, w.Message)
	}
	if !report.Passed() {
		r.Success = false
		for _, f := range report.Failures() {
			r.Errors = append(r.Errors, fmt.Sprintf("%s: %s", f.Name, f.Message))
		}
	}
}

// env builds a check evaluation context for this invocation.
func (rt *Runtime) env(proposedBranch string) *checks.Env {
	return &checks.Env{
		Git:            rt.Git,
		Forge:          rt.Forge,
		Sessions:       rt.Sessions,
		Config:         rt.Config,
		RepoRoot:       rt.RepoRoot,
		ProposedBranch: proposedBranch,
	}
}

// lockWorktree serialises access to the git working tree. Mutating
// tools hold it exclusively; read-only tools hold it shared.
func (rt *Runtime) lockWorktree(ctx context.Context, mutating bool) (*lock.Handle, error) {
	mode := lock.Shared
	if mutating {
		mode = lock.Exclusive
	}
	path := filepath.Join(rt.RepoRoot, paths.LocksDir, paths.WorktreeLockName)
	return lock.Acquire(ctx, path, mode, rt.Config.SessionLockTimeout)
}

// record writes the audit entry for a finished invocation. Audit
// failures are logged, never surfaced; the operation itself succeeded
// or failed on its own terms.
func (rt *Runtime) record(ctx context.Context, tool, sessionID, input string, res *ToolResult) {
	outcome := audit.OutcomeSuccess
	if !res.Success {
		outcome = audit.OutcomeFailure
	}
	digest := ""
	if res.PreFlight != nil || res.PostFlight != nil {
		digest = audit.ReportDigest(struct {
			Pre  *checks.Report `json:"pre,omitempty"`
			Post *checks.Report `json:"post,omitempty"`
		}{res.PreFlight, res.PostFlight})
	}
	entry := audit.Entry{
		SessionID:    sessionID,
		Tool:         tool,
		Input:        input,
		Outcome:      outcome,
		ReportDigest: digest,
	}
	if err := rt.Audit.Append(ctx, entry); err != nil {
		logging.Warn(ctx, "cannot write audit entry", "tool", tool, "error", err)
	}
}

// summarize renders a bounded single-line input summary for the audit
// log. Values are the caller's own inputs, never derived content.
func summarize(pairs ...string) string {
	var parts []string
	for i := 0; i+1 < len(pairs); i += 2 {
		if pairs[i+1] == "" {
			continue
		}
		parts = append(parts, pairs[i]+"="+pairs[i+1])
	}
	return strings.Join(parts, " ")
}

// cancelled reports whether the invocation was cancelled before any
// side effect; tools call it once up front.
func cancelled(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return errkind.Wrap(errkind.Cancelled, err, "operation cancelled")
	}
	return nil
}
