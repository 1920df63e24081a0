package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := Default()
	assert.Equal(t, "main", cfg.MainBranch)
	assert.Equal(t, "origin", cfg.Remote)
	assert.Equal(t, ForgeGitHub, cfg.Forge)
	assert.True(t, cfg.CIRequired)
	assert.False(t, cfg.AutoMerge)
	assert.Equal(t, 10*time.Second, cfg.PollInterval)
	assert.Equal(t, 20*time.Minute, cfg.CheckTimeout)
	assert.Equal(t, 7*24*time.Hour, cfg.SessionTTL)
}

func TestLoadFromMissingFileYieldsDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFromPartialFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"main_branch: trunk\nci_required: false\ncheck_timeout: 5m\n"), 0o600))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)

	assert.Equal(t, "trunk", cfg.MainBranch)
	assert.False(t, cfg.CIRequired)
	assert.Equal(t, 5*time.Minute, cfg.CheckTimeout)

	// Unset fields keep their defaults.
	assert.Equal(t, "origin", cfg.Remote)
	assert.Equal(t, ForgeGitHub, cfg.Forge)
	assert.Equal(t, 10*time.Second, cfg.PollInterval)
}

func TestLoadFromRequiredChecks(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(
		"required_checks:\n  - build\n  - test\n"), 0o600))

	cfg, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"build", "test"}, cfg.RequiredChecks)
}

func TestLoadFromMalformedFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("main_branch: [unclosed\n"), 0o600))

	_, err := LoadFrom(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	want := Default()
	want.MainBranch = "trunk"
	want.RequiredChecks = []string{"build"}

	require.NoError(t, Save(want, path))

	got, err := LoadFrom(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)
}
