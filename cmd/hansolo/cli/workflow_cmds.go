package cli

import (
	"github.com/spf13/cobra"

	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/tools"
)

func newLaunchCmd() *cobra.Command {
	var in tools.LaunchInput
	var noPop bool

	cmd := &cobra.Command{
		Use:   "launch",
		Short: "Start a feature session on a new branch",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := buildRuntime(cmd.Context())
			if err != nil {
				return err
			}
			if noPop {
				f := false
				in.PopStash = &f
			}
			return renderResult(cmd, rt.Launch(cmd.Context(), in))
		},
	}

	cmd.Flags().StringVarP(&in.BranchName, "branch", "b", "", "branch name (derived from description when omitted)")
	cmd.Flags().StringVarP(&in.Description, "description", "d", "", "description to derive the branch name from")
	cmd.Flags().StringVar(&in.StashRef, "stash-ref", "", "stash to pop onto the new branch")
	cmd.Flags().BoolVar(&noPop, "no-pop", false, "do not pop the given stash")
	return cmd
}

func newCommitCmd() *cobra.Command {
	var in tools.CommitInput

	cmd := &cobra.Command{
		Use:   "commit",
		Short: "Commit working tree changes onto the session branch",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := buildRuntime(cmd.Context())
			if err != nil {
				return err
			}
			return renderResult(cmd, rt.Commit(cmd.Context(), in))
		},
	}

	cmd.Flags().StringVarP(&in.Message, "message", "m", "", "commit message (required)")
	cmd.Flags().BoolVar(&in.StagedOnly, "staged-only", false, "commit only staged changes")
	_ = cmd.MarkFlagRequired("message")
	return cmd
}

func newShipCmd() *cobra.Command {
	var in tools.ShipInput
	var noPush, noPR, noMerge bool

	cmd := &cobra.Command{
		Use:   "ship",
		Short: "Push, open a PR, wait for checks, squash-merge, clean up",
		Long: "Ship drives the session branch to a squash-merged pull request.\n" +
			"Every intermediate state is a legal stopping point; running ship\n" +
			"again resumes from wherever the session stands.",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := buildRuntime(cmd.Context())
			if err != nil {
				return err
			}
			f := false
			if noPush {
				in.Push = &f
			}
			if noPR {
				in.CreatePR = &f
			}
			if noMerge {
				in.Merge = &f
			}
			return renderResult(cmd, rt.Ship(cmd.Context(), in))
		},
	}

	cmd.Flags().StringVar(&in.PRDescription, "pr-description", "", "PR body (required when opening the PR)")
	cmd.Flags().StringVar(&in.PRTitle, "pr-title", "", "PR title (derived from the branch when omitted)")
	cmd.Flags().BoolVar(&noPush, "no-push", false, "stop before pushing")
	cmd.Flags().BoolVar(&noPR, "no-pr", false, "stop before opening the PR")
	cmd.Flags().BoolVar(&noMerge, "no-merge", false, "stop before merging")
	return cmd
}

func newSwapCmd() *cobra.Command {
	var in tools.SwapInput

	cmd := &cobra.Command{
		Use:   "swap <branch>",
		Short: "Switch to another session's branch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime(cmd.Context())
			if err != nil {
				return err
			}
			in.BranchName = args[0]
			return renderResult(cmd, rt.Swap(cmd.Context(), in))
		},
	}

	cmd.Flags().BoolVar(&in.Stash, "stash", false, "stash a dirty working tree before switching")
	return cmd
}

func newAbortCmd() *cobra.Command {
	var in tools.AbortInput

	cmd := &cobra.Command{
		Use:   "abort [branch]",
		Short: "Abort a session, stashing any uncommitted work",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime(cmd.Context())
			if err != nil {
				return err
			}
			if len(args) == 1 {
				in.BranchName = args[0]
			}
			return renderResult(cmd, rt.Abort(cmd.Context(), in))
		},
	}

	cmd.Flags().BoolVar(&in.DeleteBranch, "delete-branch", false, "also delete the branch, local and remote")
	return cmd
}

func newHotfixCmd() *cobra.Command {
	var in tools.HotfixInput

	cmd := &cobra.Command{
		Use:   "hotfix",
		Short: "Start an emergency hotfix session",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := buildRuntime(cmd.Context())
			if err != nil {
				return err
			}
			return renderResult(cmd, rt.Hotfix(cmd.Context(), in))
		},
	}

	cmd.Flags().StringVar(&in.Issue, "issue", "", "incident identifier (required)")
	cmd.Flags().StringVar(&in.Severity, "severity", "", "incident severity")
	cmd.Flags().BoolVar(&in.SkipReview, "skip-review", false, "bypass approvals (required checks still gate)")
	cmd.Flags().BoolVar(&in.AutoMerge, "auto-merge", false, "merge as soon as checks pass")
	_ = cmd.MarkFlagRequired("issue")
	return cmd
}

func newCleanupCmd() *cobra.Command {
	var in tools.CleanupInput

	cmd := &cobra.Command{
		Use:   "cleanup",
		Short: "Remove finished sessions and optionally their branches",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := buildRuntime(cmd.Context())
			if err != nil {
				return err
			}
			return renderResult(cmd, rt.Cleanup(cmd.Context(), in))
		},
	}

	cmd.Flags().BoolVar(&in.DeleteBranches, "delete-branches", false, "also delete merged branches")
	return cmd
}

func newSessionsCmd() *cobra.Command {
	var in tools.SessionsInput

	cmd := &cobra.Command{
		Use:   "sessions",
		Short: "List workflow sessions",
		RunE: func(cmd *cobra.Command, _ []string) error {
			rt, err := buildRuntime(cmd.Context())
			if err != nil {
				return err
			}
			return renderResult(cmd, rt.SessionsList(cmd.Context(), in))
		},
	}

	cmd.Flags().BoolVarP(&in.All, "all", "a", false, "include terminal sessions")
	cmd.Flags().BoolVarP(&in.Verbose, "verbose", "v", false, "include metadata and state history")
	cmd.Flags().BoolVar(&in.Cleanup, "cleanup", false, "run a maintenance pass first (never deletes branches)")
	return cmd
}

func newStatusCmd() *cobra.Command {
	var in tools.StatusInput

	cmd := &cobra.Command{
		Use:   "status [branch]",
		Short: "Show the current branch, session, and PR state",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			rt, err := buildRuntime(cmd.Context())
			if err != nil {
				return err
			}
			if len(args) == 1 {
				in.BranchName = args[0]
			}
			return renderResult(cmd, rt.Status(cmd.Context(), in))
		},
	}
	return cmd
}
