// Package config loads the workspace configuration from .hansolo/config.yaml.
// The core treats configuration as read-only; it is loaded once per tool
// invocation.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hansolo-vcs/hansolo/cmd/hansolo/cli/paths"
)

// ForgeKind identifies the hosted forge behind the forge adapter.
type ForgeKind string

const (
	ForgeGitHub ForgeKind = "github"
	ForgeGitLab ForgeKind = "gitlab"
)

// Config is the parsed .hansolo/config.yaml.
type Config struct {
	// MainBranch is the protected integration branch (default "main").
	MainBranch string `yaml:"main_branch"`

	// Remote is the git remote name (default "origin").
	Remote string `yaml:"remote"`

	// Forge selects the hosted forge (default "github").
	Forge ForgeKind `yaml:"forge"`

	// RequiredChecks lists CI check names that must succeed before merge.
	// Empty means all reported checks are required.
	RequiredChecks []string `yaml:"required_checks,omitempty"`

	// CIRequired gates merging on CI checks. When false, ship merges
	// without waiting for checks.
	CIRequired bool `yaml:"ci_required"`

	// AutoMerge allows ship to merge without an explicit merge flag.
	AutoMerge bool `yaml:"auto_merge"`

	// PollInterval caps the backoff between CI check polls.
	PollInterval time.Duration `yaml:"poll_interval"`

	// CheckTimeout bounds a single waitForChecks call.
	CheckTimeout time.Duration `yaml:"check_timeout"`

	// GitTimeout bounds a single git operation.
	GitTimeout time.Duration `yaml:"git_timeout"`

	// ForgeTimeout bounds a single forge API call.
	ForgeTimeout time.Duration `yaml:"forge_timeout"`

	// SessionTTL is how long a session lives past its last mutation.
	SessionTTL time.Duration `yaml:"session_ttl"`

	// SessionLockTimeout bounds session lock acquisition.
	SessionLockTimeout time.Duration `yaml:"session_lock_timeout"`

	// LogLevel sets logging verbosity (debug, info, warn, error).
	// HANSOLO_LOG_LEVEL takes precedence.
	LogLevel string `yaml:"log_level,omitempty"`
}

// Default returns the configuration used when no config file exists
// and the baseline that loaded files are merged over.
func Default() *Config {
	return &Config{
		MainBranch:         "main",
		Remote:             "origin",
		Forge:              ForgeGitHub,
		CIRequired:         true,
		AutoMerge:          false,
		PollInterval:       10 * time.Second,
		CheckTimeout:       20 * time.Minute,
		GitTimeout:         60 * time.Second,
		ForgeTimeout:       30 * time.Second,
		SessionTTL:         7 * 24 * time.Hour,
		SessionLockTimeout: 30 * time.Second,
	}
}

// Load reads .hansolo/config.yaml from the repository root.
// Returns defaults if the file does not exist.
func Load() (*Config, error) {
	path, err := paths.AbsPath(paths.ConfigFile)
	if err != nil {
		path = paths.ConfigFile
	}
	return LoadFrom(path)
}

// LoadFrom reads a config file from an explicit path.
// Missing file yields defaults; a malformed file is an error.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path) //nolint:gosec // path is from AbsPath or caller-controlled test fixture
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}
	applyDefaults(cfg)
	return cfg, nil
}

// Save writes the configuration to the given path, creating parent
// directories as needed.
func Save(cfg *Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	//nolint:gosec // config is not a secret; 0o644 is appropriate
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// applyDefaults fills zero values left by a partial config file.
func applyDefaults(cfg *Config) {
	def := Default()
	if cfg.MainBranch == "" {
		cfg.MainBranch = def.MainBranch
	}
	if cfg.Remote == "" {
		cfg.Remote = def.Remote
	}
	if cfg.Forge == "" {
		cfg.Forge = def.Forge
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = def.PollInterval
	}
	if cfg.CheckTimeout <= 0 {
		cfg.CheckTimeout = def.CheckTimeout
	}
	if cfg.GitTimeout <= 0 {
		cfg.GitTimeout = def.GitTimeout
	}
	if cfg.ForgeTimeout <= 0 {
		cfg.ForgeTimeout = def.ForgeTimeout
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = def.SessionTTL
	}
	if cfg.SessionLockTimeout <= 0 {
		cfg.SessionLockTimeout = def.SessionLockTimeout
	}
}
