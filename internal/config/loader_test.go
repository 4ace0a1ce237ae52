package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_FallsBackToDefaultsWhenMissing(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)
	assert.Equal(t, Default().Profile, cfg.Profile)
}

func TestLoad_ParsesConfigYAML(t *testing.T) {
	dir := t.TempDir()
	content := `
catalog_dir: /etc/aegisrt/catalog
profile: production
auto_optimize: false
thresholds:
  memory:
    warning: 60
    critical: 80
    emergency: 95
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(content), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "production", cfg.Profile)
	assert.False(t, cfg.AutoOptimize)
	assert.Equal(t, 80.0, cfg.Thresholds["memory"].Critical)
}
