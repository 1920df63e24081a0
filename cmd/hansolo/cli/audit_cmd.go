package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/audit"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/errkind"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/jsonutil"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/paths"
)

func newAuditCmd() *cobra.Command {
	var tail int
	var sessionID string

	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Show recent audit log entries",
		RunE: func(cmd *cobra.Command, _ []string) error {
			root, err := paths.RepoRoot()
			if err != nil {
				return errkind.Wrap(errkind.Unsupported, err, "not inside a git repository")
			}

			entries, err := audit.Open(root).Tail(cmd.Context(), tail)
			if err != nil {
				return err
			}
			if sessionID != "" {
				var filtered []audit.Entry
				for _, e := range entries {
					if e.SessionID == sessionID {
						filtered = append(filtered, e)
					}
				}
				entries = filtered
			}

			out := cmd.OutOrStdout()
			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				data, err := jsonutil.MarshalIndentWithNewline(entries, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprint(out, string(data))
				return nil
			}
			for _, e := range entries {
				line := fmt.Sprintf("%s  %-8s %-7s", e.At.Format("2006-01-02 15:04:05"), e.Tool, e.Outcome)
				if e.SessionID != "" {
					line += "  session=" + e.SessionID
				}
				if e.Input != "" {
					line += "  " + e.Input
				}
				fmt.Fprintln(out, line)
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&tail, "tail", "n", 50, "number of entries to show")
	cmd.Flags().StringVar(&sessionID, "session", "", "only entries for this session")
	return cmd
}
