package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig_Validates(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
}

func TestConfig_Validate_RejectsBadPort(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Server.Port = 0
	assert.Error(t, cfg.Validate())
}

func TestConfig_Validate_RejectsUnknownBackendKind(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend.Kind = "not-a-backend"
	assert.Error(t, cfg.Validate())
}

func TestConfig_Validate_AllowsUnknownBackendKindInTestMode(t *testing.T) {
	cfg := DefaultConfig()
	cfg.TestMode = true
	cfg.Backend.Kind = "whatever"
	assert.NoError(t, cfg.Validate())
}

func TestLoader_LoadsFromYAMLFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
server:
  port: 9000
backend:
  kind: ollama
  ollama_api_base: http://localhost:11434/v1
`), 0o644))

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)
	assert.Equal(t, 9000, cfg.Server.Port)
	assert.Equal(t, "ollama", cfg.Backend.Kind)
	assert.Equal(t, "http://localhost:11434/v1", cfg.Backend.OllamaAPIBase)
}

func TestLoader_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 9000\n"), 0o644))

	t.Setenv("MINER_SERVER_PORT", "9100")
	t.Setenv("MINER_MLTS_KEY_TTL", "1h")

	cfg, err := NewLoader().WithConfigPath(path).Load()
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, time.Hour, cfg.MLTS.KeyTTL)
}

func TestLoader_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := NewLoader().WithConfigPath("/nonexistent/path.yaml").Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Server.Port, cfg.Server.Port)
}

func TestLoader_WithValidator(t *testing.T) {
	_, err := NewLoader().WithValidator(func(c *Config) error {
		return assert.AnError
	}).Load()
	assert.Error(t, err)
}
