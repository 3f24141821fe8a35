package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultFillsSaneValues(t *testing.T) {
	cfg := Default("/tmp/data")
	assert.Equal(t, "/tmp/data", cfg.DataDir)
	assert.Equal(t, 1, cfg.MinimumFreeGB)
	assert.Equal(t, int64(1000), cfg.RevLimit)
}

func TestLoadOverridesAndFillsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("revLimit: 50\nlogLevel: debug\n"), 0o644))

	cfg, err := Load(path, "/var/lib/gocouch")
	require.NoError(t, err)
	assert.Equal(t, int64(50), cfg.RevLimit)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "/var/lib/gocouch", cfg.DataDir)
	assert.Equal(t, 1, cfg.MinimumFreeGB)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml", "/tmp/data")
	assert.Error(t, err)
}
