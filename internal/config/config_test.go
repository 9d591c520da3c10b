package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mnemo/internal/config"
)

func TestDefaultPassesValidation(t *testing.T) {
	cfg := config.Default()
	require.NoError(t, cfg.Validate())
}

func TestLoadAppliesEnvOverrides(t *testing.T) {
	os.Setenv("MNEMO_WORKSPACE", "scratch")
	os.Setenv("MNEMO_HALF_LIFE_DAYS", "14")
	os.Setenv("MNEMO_BACKEND", "sqlite")
	os.Setenv("MNEMO_SQLITE_PATH", filepath.Join(t.TempDir(), "mnemo.db"))
	defer func() {
		os.Unsetenv("MNEMO_WORKSPACE")
		os.Unsetenv("MNEMO_HALF_LIFE_DAYS")
		os.Unsetenv("MNEMO_BACKEND")
		os.Unsetenv("MNEMO_SQLITE_PATH")
	}()

	cfg, err := config.Load("")
	require.NoError(t, err)

	assert.Equal(t, "scratch", cfg.Workspace)
	assert.Equal(t, 14.0, cfg.Decay.HalfLifeDays)
	assert.Equal(t, config.BackendSQLite, cfg.Backend)
}

func TestLoadFromYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
workspace: yaml-workspace
data_dir: `+dir+`
manifest:
  summarize_top_keywords: 12
`), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	assert.Equal(t, "yaml-workspace", cfg.Workspace)
	assert.Equal(t, 12, cfg.Manifest.TopKeywords)
	assert.Equal(t, config.BackendFile, cfg.Backend) // untouched field keeps its default
}

func TestUnrecognizedBackendFallsBackToFile(t *testing.T) {
	os.Setenv("MNEMO_BACKEND", "s3")
	defer os.Unsetenv("MNEMO_BACKEND")

	cfg, err := config.Load("")
	require.NoError(t, err)
	assert.Equal(t, config.BackendFile, cfg.Backend)
}

func TestSQLiteBackendRequiresPath(t *testing.T) {
	cfg := config.Default()
	cfg.Backend = config.BackendSQLite
	cfg.SQLitePath = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sqlite_path")
}

func TestEngineParamsTranslation(t *testing.T) {
	cfg := config.Default()
	cfg.Decay.HalfLifeDays = 10
	cfg.Activation.Steps = 4

	params := cfg.EngineParams()
	assert.Equal(t, 10.0, params.Decay.BaseHalfLifeDays)
	assert.Equal(t, 4, params.Activation.Steps)
	assert.Equal(t, 2*time.Second, params.RecallTimeout)
}

func TestInitialPolicyCarriesConfiguredSources(t *testing.T) {
	cfg := config.Default()
	cfg.Policy.DecayFn = "(lambda (e dt hl) (* e 0.5))"
	cfg.Exploration.Fn = "(lambda (rank n) rank)"

	pol := cfg.InitialPolicy()
	assert.Equal(t, cfg.Policy.DecayFn, pol.DecayFn)
	assert.Equal(t, cfg.Exploration.Fn, pol.ExplorationFn)
}
