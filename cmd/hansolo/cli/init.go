package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/config"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/errkind"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/paths"
)

func newInitCmd() *cobra.Command {
	var mainBranch, remote string
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Set up the hansolo workspace in this repository",
		RunE: func(cmd *cobra.Command, _ []string) error {
			root, err := paths.RepoRoot()
			if err != nil {
				return errkind.Wrap(errkind.Unsupported, err, "not inside a git repository")
			}

			cfgPath := filepath.Join(root, paths.ConfigFile)
			if _, err := os.Stat(cfgPath); err == nil && !force {
				return errkind.New(errkind.AlreadyExists, "workspace already initialized at %s", cfgPath).
					WithSuggestion("use --force to rewrite the config")
			}

			cfg := config.Default()
			if mainBranch != "" {
				cfg.MainBranch = mainBranch
			}
			if remote != "" {
				cfg.Remote = remote
			}
			if err := config.Save(cfg, cfgPath); err != nil {
				return err
			}

			for _, dir := range []string{paths.SessionsDir, paths.LogsDir, paths.LocksDir} {
				if err := os.MkdirAll(filepath.Join(root, dir), 0o750); err != nil {
					return errkind.Wrap(errkind.Internal, err, "cannot create %s", dir)
				}
			}
			if err := ensureGitignore(root); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "initialized %s (main: %s, remote: %s)\n",
				paths.HansoloDir, cfg.MainBranch, cfg.Remote)
			return nil
		},
	}

	cmd.Flags().StringVar(&mainBranch, "main", "", "main branch name (default main)")
	cmd.Flags().StringVar(&remote, "remote", "", "git remote name (default origin)")
	cmd.Flags().BoolVar(&force, "force", false, "rewrite an existing config")
	return cmd
}

// ensureGitignore keeps session state, logs, and locks out of version
// control. The config file itself is meant to be committed.
func ensureGitignore(root string) error {
	ignorePath := filepath.Join(root, ".gitignore")
	wanted := []string{
		paths.SessionsDir + "/",
		paths.LogsDir + "/",
		paths.LocksDir + "/",
		paths.AuditFile,
	}

	existing := ""
	if data, err := os.ReadFile(ignorePath); err == nil { //nolint:gosec // path within repo root
		existing = string(data)
	}

	var missing []string
	for _, line := range wanted {
		if !containsLine(existing, line) {
			missing = append(missing, line)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	var b strings.Builder
	b.WriteString(existing)
	if existing != "" && !strings.HasSuffix(existing, "\n") {
		b.WriteString("\n")
	}
	for _, line := range missing {
		b.WriteString(line + "\n")
	}
	if err := os.WriteFile(ignorePath, []byte(b.String()), 0o644); err != nil { //nolint:gosec
		return errkind.Wrap(errkind.Internal, err, "cannot update .gitignore")
	}
	return nil
}

func containsLine(content, line string) bool {
	for _, l := range strings.Split(content, "\n") {
		if strings.TrimSpace(l) == line {
			return true
		}
	}
	return false
}
