package forge

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	gh "github.com/cli/go-gh/v2"

	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/errkind"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/logging"
)

// GitHub talks to GitHub through the gh CLI. go-gh resolves the token
// (GH_TOKEN, GITHUB_TOKEN, or gh auth login) and the host for us.
type GitHub struct {
	timeout time.Duration
}

// NewGitHub returns a GitHub adapter.
func NewGitHub(opts Options) *GitHub {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &GitHub{timeout: timeout}
}

// run executes a gh command with the configured per-call timeout and
// returns trimmed stdout. Failures are classified onto the error taxonomy.
func (g *GitHub) run(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	stdout, stderr, err := gh.ExecContext(ctx, args...)
	logging.LogDuration(ctx, slog.LevelDebug, fmt.Sprintf("gh %s", args[0]), start)
	if err != nil {
		return strings.TrimSpace(stdout.String()), g.classify(ctx, args, stderr.String(), err)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// classify maps gh CLI failures onto the domain error taxonomy.
func (g *GitHub) classify(ctx context.Context, args []string, stderr string, err error) error {
	if ctx.Err() == context.DeadlineExceeded {
		return errkind.Wrap(errkind.TimedOut, err, "gh %s timed out after %s", args[0], g.timeout)
	}
	if ctx.Err() == context.Canceled {
		return errkind.Wrap(errkind.Cancelled, err, "gh %s cancelled", args[0])
	}

	lower := strings.ToLower(stderr)
	switch {
	case strings.Contains(lower, "http 401"),
		strings.Contains(lower, "authentication"),
		strings.Contains(lower, "not logged in"),
		strings.Contains(lower, "gh auth login"):
		return errkind.Wrap(errkind.Unauthorized, err, "gh %s: %s", args[0], firstLine(stderr)).
			WithSuggestion("run 'gh auth login' or set GH_TOKEN")
	case strings.Contains(lower, "http 403"):
		return errkind.Wrap(errkind.Unauthorized, err, "gh %s: %s", args[0], firstLine(stderr))
	case strings.Contains(lower, "http 404"),
		strings.Contains(lower, "no pull requests found"),
		strings.Contains(lower, "could not resolve"),
		strings.Contains(lower, "not found"):
		return errkind.Wrap(errkind.NotFound, err, "gh %s: %s", args[0], firstLine(stderr))
	case strings.Contains(lower, "already exists"):
		return errkind.Wrap(errkind.AlreadyExists, err, "gh %s: %s", args[0], firstLine(stderr))
	case strings.Contains(lower, "not mergeable"),
		strings.Contains(lower, "merge conflict"),
		strings.Contains(lower, "base branch was modified"):
		return errkind.Wrap(errkind.Conflict, err, "gh %s: %s", args[0], firstLine(stderr)).
			WithSuggestion("rebase the branch onto its base and push again")
	}
	return errkind.Wrap(errkind.Internal, err, "gh %s failed: %s", strings.Join(args, " "), firstLine(stderr))
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if idx := strings.IndexByte(s, '\n'); idx >= 0 {
		return s[:idx]
	}
	if s == "" {
		return "(no output)"
	}
	return s
}

// prListEntry is the subset of gh pr list --json output we read.
type prListEntry struct {
	Number int    `json:"number"`
	URL    string `json:"url"`
}

// OpenPR opens a pull request for branch onto base. If an open PR for
// the same head and base already exists it is returned unchanged with
// AlreadyExisted set.
func (g *GitHub) OpenPR(ctx context.Context, in OpenPRInput) (OpenPRResult, error) {
	out, err := g.run(ctx, "pr", "list",
		"--head", in.Branch, "--base", in.Base,
		"--state", "open", "--json", "number,url")
	if err != nil {
		return OpenPRResult{}, err
	}
	var existing []prListEntry
	if out != "" {
		if err := json.Unmarshal([]byte(out), &existing); err != nil {
			return OpenPRResult{}, errkind.Wrap(errkind.Internal, err, "cannot parse gh pr list output")
		}
	}
	if len(existing) > 0 {
		return OpenPRResult{
			Number:         existing[0].Number,
			URL:            existing[0].URL,
			AlreadyExisted: true,
		}, nil
	}

	args := []string{"pr", "create",
		"--head", in.Branch, "--base", in.Base,
		"--title", in.Title, "--body", in.Body}
	if in.Draft {
		args = append(args, "--draft")
	}
	if _, err := g.run(ctx, args...); err != nil {
		return OpenPRResult{}, err
	}

	out, err = g.run(ctx, "pr", "view", in.Branch, "--json", "number,url")
	if err != nil {
		return OpenPRResult{}, err
	}
	var created prListEntry
	if err := json.Unmarshal([]byte(out), &created); err != nil {
		return OpenPRResult{}, errkind.Wrap(errkind.Internal, err, "cannot parse gh pr view output")
	}
	return OpenPRResult{Number: created.Number, URL: created.URL}, nil
}

// UpdatePR edits the title, body, or base of an open pull request.
func (g *GitHub) UpdatePR(ctx context.Context, number int, in UpdatePRInput) error {
	args := []string{"pr", "edit", strconv.Itoa(number)}
	if in.Title != nil {
		args = append(args, "--title", *in.Title)
	}
	if in.Body != nil {
		args = append(args, "--body", *in.Body)
	}
	if in.Base != nil {
		args = append(args, "--base", *in.Base)
	}
	if len(args) == 3 {
		return nil
	}
	_, err := g.run(ctx, args...)
	return err
}

// ghPR mirrors the gh pr view --json payload we request.
type ghPR struct {
	Number            int    `json:"number"`
	URL               string `json:"url"`
	State             string `json:"state"`
	IsDraft           bool   `json:"isDraft"`
	BaseRefName       string `json:"baseRefName"`
	Mergeable         string `json:"mergeable"`
	ReviewDecision    string `json:"reviewDecision"`
	StatusCheckRollup []struct {
		TypeName   string `json:"__typename"`
		Name       string `json:"name"`
		Status     string `json:"status"`
		Conclusion string `json:"conclusion"`
		Context    string `json:"context"`
		State      string `json:"state"`
	} `json:"statusCheckRollup"`
}

const prViewFields = "number,url,state,isDraft,baseRefName,mergeable,reviewDecision,statusCheckRollup"

// GetPR returns a snapshot of the pull request identified by number or,
// when number is zero, by head branch.
func (g *GitHub) GetPR(ctx context.Context, number int, branch string) (PR, error) {
	selector := branch
	if number > 0 {
		selector = strconv.Itoa(number)
	}
	if selector == "" {
		return PR{}, errkind.New(errkind.Unsupported, "no PR selector given")
	}
	out, err := g.run(ctx, "pr", "view", selector, "--json", prViewFields)
	if err != nil {
		return PR{}, err
	}
	var raw ghPR
	if err := json.Unmarshal([]byte(out), &raw); err != nil {
		return PR{}, errkind.Wrap(errkind.Internal, err, "cannot parse gh pr view output")
	}
	return mapPR(raw), nil
}

func mapPR(raw ghPR) PR {
	pr := PR{
		Number:               raw.Number,
		URL:                  raw.URL,
		State:                PRState(strings.ToLower(raw.State)),
		Base:                 raw.BaseRefName,
		Draft:                raw.IsDraft,
		Mergeable:            mapMergeable(raw.Mergeable),
		RequiredApprovalsMet: mapReviewDecision(raw.ReviewDecision),
	}
	for _, c := range raw.StatusCheckRollup {
		switch c.TypeName {
		case "StatusContext":
			pr.Checks = append(pr.Checks, Check{Name: c.Context, State: mapStatusState(c.State)})
		default:
			pr.Checks = append(pr.Checks, Check{Name: c.Name, State: mapCheckRun(c.Status, c.Conclusion)})
		}
	}
	return pr
}

func mapMergeable(s string) Mergeable {
	switch s {
	case "MERGEABLE":
		return MergeableYes
	case "CONFLICTING":
		return MergeableNo
	}
	return MergeableUnknown
}

// mapReviewDecision treats an empty decision as met: the repository has
// no required reviewers configured.
func mapReviewDecision(s string) bool {
	switch s {
	case "", "APPROVED":
		return true
	}
	return false
}

func mapCheckRun(status, conclusion string) CheckState {
	if status != "COMPLETED" {
		if status == "QUEUED" {
			return CheckQueued
		}
		return CheckRunning
	}
	switch conclusion {
	case "SUCCESS":
		return CheckSuccess
	case "NEUTRAL", "SKIPPED":
		return CheckNeutral
	case "CANCELLED":
		return CheckCancelled
	case "TIMED_OUT":
		return CheckTimedOut
	}
	return CheckFailure
}

func mapStatusState(state string) CheckState {
	switch state {
	case "SUCCESS":
		return CheckSuccess
	case "PENDING", "EXPECTED":
		return CheckRunning
	}
	return CheckFailure
}

// MergePR squash-merges an open pull request and returns the squash
// commit. Squash is the only supported method.
func (g *GitHub) MergePR(ctx context.Context, number int, in MergePRInput) (MergePRResult, error) {
	if in.Method != "" && in.Method != MergeSquash {
		return MergePRResult{}, errkind.New(errkind.Unsupported, "merge method %q is not supported; only squash merges are allowed", in.Method)
	}
	args := []string{"pr", "merge", strconv.Itoa(number), "--squash"}
	if in.TitleOverride != "" {
		args = append(args, "--subject", in.TitleOverride)
	}
	if in.BodyOverride != "" {
		args = append(args, "--body", in.BodyOverride)
	}
	if _, err := g.run(ctx, args...); err != nil {
		return MergePRResult{}, err
	}

	out, err := g.run(ctx, "pr", "view", strconv.Itoa(number), "--json", "mergeCommit", "--jq", ".mergeCommit.oid")
	if err != nil {
		return MergePRResult{}, err
	}
	return MergePRResult{MergedSHA: out}, nil
}

// DeleteRemoteBranch deletes a branch ref on the forge. A missing ref is
// not an error; deletion is idempotent.
func (g *GitHub) DeleteRemoteBranch(ctx context.Context, branch string) error {
	_, err := g.run(ctx, "api", "-X", "DELETE",
		fmt.Sprintf("repos/{owner}/{repo}/git/refs/heads/%s", branch))
	if err != nil && errkind.Is(err, errkind.NotFound) {
		return nil
	}
	if err != nil && strings.Contains(strings.ToLower(err.Error()), "reference does not exist") {
		return nil
	}
	return err
}

// Whoami returns the login of the authenticated user.
func (g *GitHub) Whoami(ctx context.Context) (string, error) {
	return g.run(ctx, "api", "user", "--jq", ".login")
}
