package forge

import (
	"context"
	"sort"
	"time"

	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/errkind"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/logging"
)

const (
	defaultPollInterval   = 10 * time.Second
	defaultOverallTimeout = 20 * time.Minute
	initialBackoff        = 2 * time.Second
)

// PollFunc fetches a fresh PR snapshot for one polling round.
type PollFunc func(ctx context.Context) (PR, error)

// WaitForChecks polls the pull request until every required check
// reaches a terminal state, a required check fails, or the overall
// timeout elapses. A timeout is reported as a verdict, not an error;
// context cancellation is an error.
func (g *GitHub) WaitForChecks(ctx context.Context, number int, opts WaitOptions) (WaitResult, error) {
	return WaitForChecks(ctx, func(ctx context.Context) (PR, error) {
		return g.GetPR(ctx, number, "")
	}, opts)
}

// WaitForChecks is the polling loop behind (*GitHub).WaitForChecks,
// split out so callers can supply their own snapshot source.
func WaitForChecks(ctx context.Context, poll PollFunc, opts WaitOptions) (WaitResult, error) {
	interval := opts.PollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}
	overall := opts.OverallTimeout
	if overall <= 0 {
		overall = defaultOverallTimeout
	}

	deadline := time.Now().Add(overall)
	backoff := initialBackoff
	if backoff > interval {
		backoff = interval
	}

	for {
		pr, err := poll(ctx)
		if err != nil {
			if errkind.Is(err, errkind.Cancelled) {
				return WaitResult{}, err
			}
			// Transient forge errors do not end the wait.
			logging.Warn(ctx, "check poll failed", "error", err)
		} else {
			if done, result := evaluateChecks(pr.Checks, opts.RequiredSet); done {
				return result, nil
			}
		}

		if time.Now().After(deadline) {
			return WaitResult{Verdict: WaitTimedOut}, nil
		}

		select {
		case <-ctx.Done():
			return WaitResult{}, errkind.Wrap(errkind.Cancelled, ctx.Err(), "check wait cancelled")
		case <-time.After(backoff):
		}
		backoff *= 2
		if backoff > interval {
			backoff = interval
		}
	}
}

// evaluateChecks decides whether polling can stop. With an explicit
// required set, checks not yet reported keep the wait going; without
// one, every reported check must pass and at least one must exist.
func evaluateChecks(checks []Check, required []string) (bool, WaitResult) {
	byName := make(map[string]CheckState, len(checks))
	for _, c := range checks {
		byName[c.Name] = c.State
	}

	var failed []string
	if len(required) > 0 {
		allDone := true
		for _, name := range required {
			state, ok := byName[name]
			if !ok || !state.Terminal() {
				allDone = false
				continue
			}
			if !state.Passing() {
				failed = append(failed, name)
			}
		}
		if len(failed) > 0 {
			sort.Strings(failed)
			return true, WaitResult{Verdict: WaitFailed, Failed: failed}
		}
		if allDone {
			return true, WaitResult{Verdict: WaitAllSucceeded}
		}
		return false, WaitResult{}
	}

	if len(checks) == 0 {
		return false, WaitResult{}
	}
	allDone := true
	for _, c := range checks {
		if !c.State.Terminal() {
			allDone = false
			continue
		}
		if !c.State.Passing() {
			failed = append(failed, c.Name)
		}
	}
	if len(failed) > 0 {
		sort.Strings(failed)
		return true, WaitResult{Verdict: WaitFailed, Failed: failed}
	}
	if allDone {
		return true, WaitResult{Verdict: WaitAllSucceeded}
	}
	return false, WaitResult{}
}
