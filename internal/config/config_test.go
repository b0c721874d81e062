package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFile_UsesDefaults(t *testing.T) {
	// Given: no config file at the resolved path
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))

	// Then: defaults are returned unmodified
	require.NoError(t, err)
	assert.Equal(t, 0.15, cfg.Engine.KeepRatio)
	assert.Equal(t, 1.5, cfg.Engine.PromotionStrength)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	// Given: a YAML file tuning keep_ratio and mirror_window_days
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine:\n  keep_ratio: 0.34\nmirror:\n  mirror_window_days: 7\n"), 0o644))

	// When: loading
	cfg, err := Load(path)

	// Then: the file's values win, untouched fields keep defaults
	require.NoError(t, err)
	assert.Equal(t, 0.34, cfg.Engine.KeepRatio)
	assert.Equal(t, 7, cfg.Mirror.WindowDays)
	assert.Equal(t, 1.5, cfg.Engine.PromotionStrength)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("engine:\n  keep_ratio: 0.34\n"), 0o644))
	t.Setenv("RECONSOLIDATE_KEEP_RATIO", "0.5")

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, 0.5, cfg.Engine.KeepRatio)
}

func TestValidate_RejectsOutOfRangeKeepRatio(t *testing.T) {
	cfg := Default()
	cfg.Engine.KeepRatio = 1.5
	assert.Error(t, cfg.Validate())

	cfg.Engine.KeepRatio = 0
	assert.Error(t, cfg.Validate())
}

func TestValidate_RejectsNegativePromotionStrength(t *testing.T) {
	cfg := Default()
	cfg.Engine.PromotionStrength = -1
	assert.Error(t, cfg.Validate())
}

func TestWriteYAML_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "config.yaml")
	cfg := Default()
	cfg.Engine.KeepRatio = 0.2

	require.NoError(t, cfg.WriteYAML(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.2, loaded.Engine.KeepRatio)
}
