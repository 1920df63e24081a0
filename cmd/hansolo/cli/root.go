// Package cli wires the workflow tools into the hansolo command tree.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/logging"
)

const gettingStarted = `

Getting Started:
  Run 'hansolo init' inside a git repository to set up the workspace,
  then 'hansolo launch' to start a feature session.
`

// Version information (can be set at build time)
var (
	Version = "dev"
	Commit  = "unknown"
)

// SilentError signals that the command already rendered its own error
// output; main must not print it again.
type SilentError struct {
	Err error
}

func (e *SilentError) Error() string { return e.Err.Error() }
func (e *SilentError) Unwrap() error { return e.Err }

// NewRootCmd builds the hansolo command tree.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "hansolo",
		Short: "An opinionated Git workflow orchestrator",
		Long: "hansolo drives branches from launch to squash-merged PR through\n" +
			"enforced pre-flight checks, per-branch sessions, and linear history." + gettingStarted,
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPreRun: func(_ *cobra.Command, _ []string) {
			_ = logging.Init()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	cmd.PersistentFlags().Bool("json", false, "print results as JSON")

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newLaunchCmd())
	cmd.AddCommand(newCommitCmd())
	cmd.AddCommand(newShipCmd())
	cmd.AddCommand(newSwapCmd())
	cmd.AddCommand(newAbortCmd())
	cmd.AddCommand(newHotfixCmd())
	cmd.AddCommand(newCleanupCmd())
	cmd.AddCommand(newSessionsCmd())
	cmd.AddCommand(newStatusCmd())
	cmd.AddCommand(newAuditCmd())
	cmd.AddCommand(newMCPCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "hansolo %s (%s)\n", Version, Commit)
		},
	}
}
