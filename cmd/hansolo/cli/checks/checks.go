// Package checks is the validation engine: a registry of named
// pre-flight checks and post-flight verifications. Tools declare which
// names they need; the engine evaluates them in catalogue order and
// always returns the full report, so the caller sees every blocker at
// once. A failed pre-flight blocks the operation with no override path.
package checks

import (
	"context"
	"strings"

	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/config"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/gitx"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/session"
)

// Severity grades a check result. Only error-severity failures block.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Outcome is the raw result of evaluating one check.
type Outcome struct {
	Passed     bool   `json:"passed"`
	Message    string `json:"message"`
	Expected   string `json:"expected,omitempty"`
	Actual     string `json:"actual,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
}

// Result is one named entry in a check report.
type Result struct {
	Name     string   `json:"name"`
	Severity Severity `json:"severity"`
	Outcome
}

// Report is the outcome of evaluating a check set.
type Report struct {
	Results []Result `json:"results"`
}

// Passed reports whether no error-severity check failed. Warnings are
// surfaced but never block.
func (r Report) Passed() bool {
	for _, res := range r.Results {
		if !res.Outcome.Passed && res.Severity == SeverityError {
			return false
		}
	}
	return true
}

// Failures returns the error-severity failures.
func (r Report) Failures() []Result {
	var failed []Result
	for _, res := range r.Results {
		if !res.Outcome.Passed && res.Severity == SeverityError {
			failed = append(failed, res)
		}
	}
	return failed
}

// Warnings returns the non-blocking failures.
func (r Report) Warnings() []Result {
	var warned []Result
	for _, res := range r.Results {
		if !res.Outcome.Passed && res.Severity != SeverityError {
			warned = append(warned, res)
		}
	}
	return warned
}

// GitEnv is the slice of the git adapter the checks need.
type GitEnv interface {
	CurrentBranch(ctx context.Context) (string, error)
	IsClean(ctx context.Context) (bool, error)
	BranchExists(ctx context.Context, name string, remote bool) (bool, error)
	BranchAheadBehind(ctx context.Context, branch, base string) (gitx.AheadBehind, error)
	HasConflictsWith(ctx context.Context, ref string) (bool, error)
	RemoteRef(branch string) string
}

// ForgeEnv is the slice of the forge adapter the checks need.
type ForgeEnv interface {
	Whoami(ctx context.Context) (string, error)
}

// SessionEnv is the slice of the session store the checks need.
type SessionEnv interface {
	FindByBranch(ctx context.Context, branch string) (*session.Session, error)
}

// Facts are operation outcomes recorded by a tool for post-flight
// verification. A verification that needs a fact fails when the fact
// was never recorded.
type Facts struct {
	SessionCreated      bool
	CheckedOutBranch    string
	CommitHash          string
	PRNumber            int
	PRMerged            bool
	LocalBranchDeleted  bool
	RemoteBranchDeleted bool
	StashPopped         bool
	Session             *session.Session
}

// Env is the evaluation context shared by all checks in one run.
type Env struct {
	Git      GitEnv
	Forge    ForgeEnv
	Sessions SessionEnv
	Config   *config.Config
	RepoRoot string

	// ProposedBranch is the branch a tool is about to create or target.
	ProposedBranch string

	// Facts carry tool outcomes for post-flight verification.
	Facts Facts
}

// Check is one registered check or verification. Eval receives the
// parameter following "=" in the requested name, empty for plain names.
type Check struct {
	Name     string
	Severity Severity
	Eval     func(ctx context.Context, env *Env, param string) Outcome
}

// catalogue is the ordered registry. Evaluation order always follows
// catalogue order regardless of the order names were requested in.
var catalogue = append(preflightCatalogue, postflightCatalogue...)

// Lookup finds a check by name, splitting an "=param" suffix.
func Lookup(name string) (Check, string, bool) {
	base, param, _ := strings.Cut(name, "=")
	for _, c := range catalogue {
		if c.Name == base {
			return c, param, true
		}
	}
	return Check{}, "", false
}

// Run evaluates the requested checks in catalogue order and returns the
// full report. Unknown names fail their own entry rather than aborting
// the run.
func Run(ctx context.Context, env *Env, names []string) Report {
	requested := make(map[string]string, len(names))
	var unknown []string
	for _, name := range names {
		base, param, _ := strings.Cut(name, "=")
		if _, _, ok := Lookup(base); !ok {
			unknown = append(unknown, name)
			continue
		}
		requested[base] = param
	}

	var report Report
	for _, c := range catalogue {
		param, ok := requested[c.Name]
		if !ok {
			continue
		}
		outcome := c.Eval(ctx, env, param)
		report.Results = append(report.Results, Result{
			Name:     c.Name,
			Severity: c.Severity,
			Outcome:  outcome,
		})
	}
	for _, name := range unknown {
		report.Results = append(report.Results, Result{
			Name:     name,
			Severity: SeverityError,
			Outcome:  Outcome{Passed: false, Message: "unknown check " + name},
		})
	}
	return report
}
