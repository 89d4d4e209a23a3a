package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, ModeIntelligent, cfg.Mode)
	assert.Equal(t, 10000, cfg.Store.FSMaxItems)
	assert.Equal(t, 100000, cfg.Store.FSSMaxItems)
	assert.Equal(t, 3, cfg.ML.K)
	assert.False(t, cfg.ML.PredictWithFewNeighbors)
	assert.Equal(t, -30.0, cfg.ML.LogSelFloor)
	assert.Equal(t, 20, cfg.Tuning.WindowSize)
	assert.Equal(t, 100, cfg.Tuning.MaxIterations)
	assert.Equal(t, "file", cfg.Snapshot.Backend)

	require.NoError(t, validateConfig(cfg))
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig("/nonexistent/path/aqo.json")
	assert.Error(t, err)
}

func TestLoadConfig_OverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "aqo.json")

	partial := map[string]interface{}{
		"mode": "forced",
		"ml": map[string]interface{}{
			"k": 5,
		},
	}
	data, err := json.Marshal(partial)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, ModeForced, cfg.Mode)
	assert.Equal(t, 5, cfg.ML.K)
	// Fields not present in the file keep their defaults.
	assert.Equal(t, 10000, cfg.Store.FSMaxItems)
}

func TestLoadConfig_InvalidMode(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "aqo.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"mode":"bogus"}`), 0o644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestValidateConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Store.FSMaxItems = 0
	assert.Error(t, validateConfig(cfg))

	cfg = DefaultConfig()
	cfg.ML.K = 0
	assert.Error(t, validateConfig(cfg))

	cfg = DefaultConfig()
	cfg.Snapshot.Backend = "sqlite"
	assert.Error(t, validateConfig(cfg))
}

func TestLoadConfigOrDefault_NoEnvNoFiles(t *testing.T) {
	old := os.Getenv("AQO_CONFIG")
	defer os.Setenv("AQO_CONFIG", old)
	os.Unsetenv("AQO_CONFIG")

	cfg := LoadConfigOrDefault()
	require.NotNil(t, cfg)
	assert.Equal(t, ModeIntelligent, cfg.Mode)
}
