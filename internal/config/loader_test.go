package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "127.0.0.1", cfg.Server.Host)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.Equal(t, 30000, cfg.Module.TimeoutMs)
	assert.True(t, cfg.Module.Watch)
	assert.Equal(t, 30000, cfg.SSE.HeartbeatIntervalMs)
	assert.Equal(t, 300000, cfg.SSE.StaleAfterMs)
	assert.Equal(t, "@every 1m", cfg.SSE.SweepSchedule)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Audit.Enabled)
}

func TestLoad_MissingFileYieldsDefaults(t *testing.T) {
	loader := NewLoader(filepath.Join(t.TempDir(), "absent.json"))

	cfg, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.NotEmpty(t, cfg.DataDir)
	assert.NotEmpty(t, cfg.Logging.File)
	assert.NotEmpty(t, cfg.Audit.Path)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mcpify.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
  "server": {"host": "0.0.0.0", "port": 8080},
  "module": {"path": "/srv/tools.js", "timeout_ms": 5000, "watch": false},
  "audit": {"enabled": true}
}`), 0600))

	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "/srv/tools.js", cfg.Module.Path)
	assert.Equal(t, 5000, cfg.Module.TimeoutMs)
	assert.False(t, cfg.Module.Watch)
	assert.True(t, cfg.Audit.Enabled)

	// Untouched sections keep their defaults.
	assert.Equal(t, "@every 1m", cfg.SSE.SweepSchedule)
}

func TestLoad_EnvOverridesDefaults(t *testing.T) {
	t.Setenv("MCPIFY_SERVER_HOST", "0.0.0.0")
	t.Setenv("MCPIFY_SSE_SWEEP_SCHEDULE", "@every 5m")

	cfg, err := NewLoader(filepath.Join(t.TempDir(), "absent.json")).Load()
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, "@every 5m", cfg.SSE.SweepSchedule)
	assert.Equal(t, 3000, cfg.Server.Port, "untouched keys keep their defaults")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mcpify.json")
	require.NoError(t, os.WriteFile(path, []byte(`{
  "server": {"port": 8080},
  "module": {"watch": true}
}`), 0600))

	t.Setenv("MCPIFY_SERVER_PORT", "9999")
	t.Setenv("MCPIFY_MODULE_WATCH", "false")

	cfg, err := NewLoader(path).Load()
	require.NoError(t, err)

	assert.Equal(t, 9999, cfg.Server.Port, "env wins over the file")
	assert.False(t, cfg.Module.Watch)
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mcpify.json")
	require.NoError(t, os.WriteFile(path, []byte(`{not json`), 0600))

	_, err := NewLoader(path).Load()
	require.Error(t, err)
}

func TestSaveThenLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "mcpify.json")
	loader := NewLoader(path)

	cfg := DefaultConfig()
	cfg.Server.Port = 4242
	cfg.Module.Path = "/opt/mod.js"
	require.NoError(t, loader.Save(cfg))

	loaded, err := loader.Load()
	require.NoError(t, err)
	assert.Equal(t, 4242, loaded.Server.Port)
	assert.Equal(t, "/opt/mod.js", loaded.Module.Path)
}
