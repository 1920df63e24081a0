package paths

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
)

// Workspace layout constants, relative to the repository root.
const (
	HansoloDir  = ".hansolo"
	ConfigFile  = ".hansolo/config.yaml"
	SessionsDir = ".hansolo/sessions"
	AuditFile   = ".hansolo/audit.log"
	LogsDir     = ".hansolo/logs"
	LocksDir    = ".hansolo/locks"
)

// WorktreeLockName is the lock file guarding the git working tree.
// Mutating tools hold it exclusively; read-only tools hold it shared.
const WorktreeLockName = "worktree.lock"

// AuditLockName is the lock file guarding audit log appends.
const AuditLockName = "audit.lock"

// repoRootCache caches the repository root to avoid repeated git commands.
// The cache is keyed by the current working directory to handle directory changes.
var (
	repoRootMu       sync.RWMutex
	repoRootCache    string
	repoRootCacheDir string
)

// RepoRoot returns the git repository root directory.
// Uses 'git rev-parse --show-toplevel' which works from any subdirectory.
// The result is cached per working directory.
// Returns an error if not inside a git repository.
func RepoRoot() (string, error) {
	cwd, err := os.Getwd()
	if err != nil {
		cwd = ""
	}

	repoRootMu.RLock()
	if repoRootCache != "" && repoRootCacheDir == cwd {
		cached := repoRootCache
		repoRootMu.RUnlock()
		return cached, nil
	}
	repoRootMu.RUnlock()

	ctx := context.Background()
	cmd := exec.CommandContext(ctx, "git", "rev-parse", "--show-toplevel")
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("failed to get git repository root: %w", err)
	}

	root := strings.TrimSpace(string(output))

	repoRootMu.Lock()
	repoRootCache = root
	repoRootCacheDir = cwd
	repoRootMu.Unlock()

	return root, nil
}

// ClearRepoRootCache clears the cached repository root.
// This is primarily useful for testing when changing directories.
func ClearRepoRootCache() {
	repoRootMu.Lock()
	repoRootCache = ""
	repoRootCacheDir = ""
	repoRootMu.Unlock()
}

// RepoRootOr returns the git repository root directory, or the given fallback
// if not inside a git repository.
func RepoRootOr(fallback string) string {
	root, err := RepoRoot()
	if err != nil {
		return fallback
	}
	return root
}

// AbsPath returns the absolute path for a relative path within the repository.
// If the path is already absolute, it is returned as-is.
func AbsPath(relPath string) (string, error) {
	if filepath.IsAbs(relPath) {
		return relPath, nil
	}

	root, err := RepoRoot()
	if err != nil {
		return "", err
	}

	return filepath.Join(root, relPath), nil
}

// IsInfrastructurePath returns true if the path is part of workspace
// infrastructure (i.e., inside the .hansolo directory).
func IsInfrastructurePath(path string) bool {
	return strings.HasPrefix(path, HansoloDir+"/") || path == HansoloDir
}

// SessionFile returns the path (repo-relative) of a session's JSON file.
func SessionFile(sessionID string) string {
	return SessionsDir + "/" + sessionID + ".json"
}

// SessionLockFile returns the path (repo-relative) of a session's lock file.
func SessionLockFile(sessionID string) string {
	return SessionsDir + "/" + sessionID + ".lock"
}

// IsInitialized reports whether the workspace has been bootstrapped:
// .hansolo/ exists with a config file and a sessions directory.
func IsInitialized() bool {
	cfg, err := AbsPath(ConfigFile)
	if err != nil {
		return false
	}
	if _, err := os.Stat(cfg); err != nil {
		return false
	}
	sessions, err := AbsPath(SessionsDir)
	if err != nil {
		return false
	}
	info, err := os.Stat(sessions)
	return err == nil && info.IsDir()
}
