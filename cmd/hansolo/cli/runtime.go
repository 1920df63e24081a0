package cli

import (
	"context"
	"os"
	"os/user"

	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/audit"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/config"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/errkind"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/forge"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/gitx"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/logging"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/paths"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/session"
	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/tools"
)

// buildRuntime assembles the adapters a tool invocation runs against.
// Called once per command; configuration is loaded fresh each time.
func buildRuntime(ctx context.Context) (*tools.Runtime, error) {
	root, err := paths.RepoRoot()
	if err != nil {
		return nil, errkind.Wrap(errkind.Unsupported, err, "not inside a git repository")
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	logging.SetLogLevelGetter(func() string { return cfg.LogLevel })

	repo, err := gitx.Open(gitx.Options{
		Dir:     root,
		Remote:  cfg.Remote,
		Timeout: cfg.GitTimeout,
	})
	if err != nil {
		return nil, err
	}

	if cfg.Forge != config.ForgeGitHub {
		return nil, errkind.New(errkind.Unsupported, "forge %q is not supported yet; only github", cfg.Forge)
	}
	gh := forge.NewGitHub(forge.Options{Timeout: cfg.ForgeTimeout})

	store := session.NewStore(root, session.StoreOptions{
		TTL:         cfg.SessionTTL,
		LockTimeout: cfg.SessionLockTimeout,
	})

	rt := &tools.Runtime{
		Git:      repo,
		Forge:    gh,
		Sessions: store,
		Audit:    audit.Open(root),
		Config:   cfg,
		RepoRoot: root,
		Actor:    localActor(ctx),
	}
	return rt, nil
}

// localActor names the human behind the invocation for state history.
// The OS user is good enough; the forge login would cost a network
// round-trip on every command.
func localActor(_ context.Context) string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return os.Getenv("USER")
}
