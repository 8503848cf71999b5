package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cogsched/internal/attention"
)

func TestDefaultConfigValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Len(t, cfg.Scheduler.Weights, attention.NumFeatures)
	assert.Equal(t, 4, cfg.Scheduler.AttentionLevels)
	assert.InDelta(t, 1.2, cfg.Scheduler.EmergentBoost, 1e-9)
}

func TestLoadMissingFileYieldsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Scheduler.MaxProcs, cfg.Scheduler.MaxProcs)
}

func TestLoadPartialFileFillsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cogsched.yaml")
	body := "scheduler:\n  max_procs: 8\n  emergent_boost: 1.5\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8, cfg.Scheduler.MaxProcs)
	assert.InDelta(t, 1.5, cfg.Scheduler.EmergentBoost, 1e-9)
	// untouched knobs come from defaults
	assert.Equal(t, DefaultConfig().Scheduler.TimeWindow, cfg.Scheduler.TimeWindow)
	assert.Len(t, cfg.Scheduler.Weights, attention.NumFeatures)
}

func TestLoadRejectsBadWeights(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cogsched.yaml")
	body := "scheduler:\n  weights: [0.5, 0.5]\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "weights")
}

func TestLoadRejectsNegativeWeight(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cogsched.yaml")
	body := "scheduler:\n  weights: [0.2, 0.15, 0.1, 0.25, 0.15, 0.05, 0.05, -0.05]\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("COGSCHED_MAX_PROCS", "128")
	t.Setenv("COGSCHED_EMERGENT_BOOST", "2.0")
	t.Setenv("COGSCHED_DEBUG", "true")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 128, cfg.Scheduler.MaxProcs)
	assert.InDelta(t, 2.0, cfg.Scheduler.EmergentBoost, 1e-9)
	assert.True(t, cfg.Logging.DebugMode)
}

func TestParamsRoundTrip(t *testing.T) {
	cfg := DefaultConfig()
	params := cfg.Scheduler.Params()

	assert.Equal(t, cfg.Scheduler.MaxProcs, params.MaxProcs)
	assert.Equal(t, attention.Tick(cfg.Scheduler.RecencyTicks), params.RecencyTicks)
	assert.Equal(t, attention.DefaultWeights(), params.Weights)
}
