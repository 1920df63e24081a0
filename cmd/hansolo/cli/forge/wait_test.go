package forge

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/errkind"
)

func TestCheckState(t *testing.T) {
	t.Parallel()

	tests := []struct {
		state    CheckState
		terminal bool
		passing  bool
	}{
		{CheckQueued, false, false},
		{CheckRunning, false, false},
		{CheckSuccess, true, true},
		{CheckNeutral, true, true},
		{CheckFailure, true, false},
		{CheckTimedOut, true, false},
		{CheckCancelled, true, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.terminal, tt.state.Terminal(), "Terminal(%s)", tt.state)
		assert.Equal(t, tt.passing, tt.state.Passing(), "Passing(%s)", tt.state)
	}
}

func TestEvaluateChecks(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		checks   []Check
		required []string
		done     bool
		verdict  WaitVerdict
		failed   []string
	}{
		{
			name: "all_green",
			checks: []Check{
				{Name: "build", State: CheckSuccess},
				{Name: "lint", State: CheckNeutral},
			},
			done:    true,
			verdict: WaitAllSucceeded,
		},
		{
			name: "one_still_running",
			checks: []Check{
				{Name: "build", State: CheckSuccess},
				{Name: "test", State: CheckRunning},
			},
			done: false,
		},
		{
			name:   "no_checks_reported_yet",
			checks: nil,
			done:   false,
		},
		{
			name: "failure_ends_wait_even_with_others_running",
			checks: []Check{
				{Name: "test", State: CheckFailure},
				{Name: "build", State: CheckRunning},
			},
			done:    true,
			verdict: WaitFailed,
			failed:  []string{"test"},
		},
		{
			name: "failed_names_sorted",
			checks: []Check{
				{Name: "zeta", State: CheckFailure},
				{Name: "alpha", State: CheckTimedOut},
			},
			done:    true,
			verdict: WaitFailed,
			failed:  []string{"alpha", "zeta"},
		},
		{
			name: "required_subset_ignores_other_failures",
			checks: []Check{
				{Name: "build", State: CheckSuccess},
				{Name: "optional-fuzz", State: CheckFailure},
			},
			required: []string{"build"},
			done:     true,
			verdict:  WaitAllSucceeded,
		},
		{
			name: "required_check_not_yet_reported_keeps_waiting",
			checks: []Check{
				{Name: "build", State: CheckSuccess},
			},
			required: []string{"build", "deploy-gate"},
			done:     false,
		},
		{
			name: "required_check_failed",
			checks: []Check{
				{Name: "build", State: CheckFailure},
				{Name: "deploy-gate", State: CheckRunning},
			},
			required: []string{"build", "deploy-gate"},
			done:     true,
			verdict:  WaitFailed,
			failed:   []string{"build"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			done, result := evaluateChecks(tt.checks, tt.required)
			require.Equal(t, tt.done, done)
			if done {
				assert.Equal(t, tt.verdict, result.Verdict)
				assert.Equal(t, tt.failed, result.Failed)
			}
		})
	}
}

func TestWaitForChecks_Succeeds(t *testing.T) {
	t.Parallel()

	// First poll: still running. Second poll: green.
	polls := 0
	poll := func(context.Context) (PR, error) {
		polls++
		if polls == 1 {
			return PR{Checks: []Check{{Name: "build", State: CheckRunning}}}, nil
		}
		return PR{Checks: []Check{{Name: "build", State: CheckSuccess}}}, nil
	}

	result, err := WaitForChecks(context.Background(), poll, WaitOptions{
		PollInterval:   time.Millisecond,
		OverallTimeout: time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, WaitAllSucceeded, result.Verdict)
	assert.GreaterOrEqual(t, polls, 2)
}

func TestWaitForChecks_Failure(t *testing.T) {
	t.Parallel()

	poll := func(context.Context) (PR, error) {
		return PR{Checks: []Check{{Name: "test", State: CheckFailure}}}, nil
	}

	result, err := WaitForChecks(context.Background(), poll, WaitOptions{
		PollInterval:   time.Millisecond,
		OverallTimeout: time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, WaitFailed, result.Verdict)
	assert.Equal(t, []string{"test"}, result.Failed)
}

func TestWaitForChecks_TimeoutIsVerdictNotError(t *testing.T) {
	t.Parallel()

	poll := func(context.Context) (PR, error) {
		return PR{Checks: []Check{{Name: "build", State: CheckRunning}}}, nil
	}

	result, err := WaitForChecks(context.Background(), poll, WaitOptions{
		PollInterval:   time.Millisecond,
		OverallTimeout: 20 * time.Millisecond,
	})
	require.NoError(t, err)
	assert.Equal(t, WaitTimedOut, result.Verdict)
}

func TestWaitForChecks_TransientPollErrorsDoNotEndWait(t *testing.T) {
	t.Parallel()

	polls := 0
	poll := func(context.Context) (PR, error) {
		polls++
		if polls < 3 {
			return PR{}, errkind.New(errkind.Internal, "flaky forge")
		}
		return PR{Checks: []Check{{Name: "build", State: CheckSuccess}}}, nil
	}

	result, err := WaitForChecks(context.Background(), poll, WaitOptions{
		PollInterval:   time.Millisecond,
		OverallTimeout: time.Second,
	})
	require.NoError(t, err)
	assert.Equal(t, WaitAllSucceeded, result.Verdict)
	assert.Equal(t, 3, polls)
}

func TestWaitForChecks_CancellationIsAnError(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	poll := func(context.Context) (PR, error) {
		cancel()
		return PR{Checks: []Check{{Name: "build", State: CheckRunning}}}, nil
	}

	_, err := WaitForChecks(ctx, poll, WaitOptions{
		PollInterval:   50 * time.Millisecond,
		OverallTimeout: time.Second,
	})
	require.Error(t, err)
	assert.Equal(t, errkind.Cancelled, errkind.KindOf(err))
}

func TestWaitForChecks_CancelledPollErrorEndsWait(t *testing.T) {
	t.Parallel()

	poll := func(context.Context) (PR, error) {
		return PR{}, errkind.New(errkind.Cancelled, "poll cancelled")
	}

	_, err := WaitForChecks(context.Background(), poll, WaitOptions{
		PollInterval:   time.Millisecond,
		OverallTimeout: time.Second,
	})
	require.Error(t, err)
	assert.Equal(t, errkind.Cancelled, errkind.KindOf(err))
}
