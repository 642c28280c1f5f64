package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("KODA_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("OLLAMA_HOST", "")
	t.Setenv("KODA_MODEL", "")
	t.Setenv("KODA_BACKEND", "")
	t.Setenv("KODA_START_MODE", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "gemini", cfg.API.Backend)
	assert.Equal(t, "plan", cfg.Session.StartMode)
	assert.Equal(t, 4, cfg.Subagent.MaxParallel)
	assert.Equal(t, 3, cfg.Retry.MaxRetries)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("XDG_CONFIG_HOME", dir)

	configDir := filepath.Join(dir, "koda")
	require.NoError(t, os.MkdirAll(configDir, 0700))
	body := "api:\n  backend: ollama\nmodel:\n  name: qwen3\nsession:\n  start_mode: act\n"
	require.NoError(t, os.WriteFile(filepath.Join(configDir, "config.yaml"), []byte(body), 0600))

	t.Setenv("KODA_MODEL", "qwen3:32b")
	t.Setenv("KODA_BACKEND", "")
	t.Setenv("KODA_START_MODE", "")

	cfg, err := Load()
	require.NoError(t, err)

	// File overrides defaults, env overrides file.
	assert.Equal(t, "ollama", cfg.API.Backend)
	assert.Equal(t, "act", cfg.Session.StartMode)
	assert.Equal(t, "qwen3:32b", cfg.Model.Name)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.API.Backend = "gemini"
	cfg.API.APIKey = ""
	assert.ErrorIs(t, cfg.Validate(), ErrMissingAuth)

	cfg.API.APIKey = "key"
	assert.NoError(t, cfg.Validate())

	cfg.API.Backend = "ollama"
	cfg.API.APIKey = ""
	assert.NoError(t, cfg.Validate())

	cfg.API.Backend = "nope"
	assert.Error(t, cfg.Validate())

	cfg.API.Backend = "ollama"
	cfg.Session.StartMode = "weird"
	assert.Error(t, cfg.Validate())
}

func TestSaveRoundTrip(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("KODA_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("OLLAMA_HOST", "")
	t.Setenv("KODA_MODEL", "")
	t.Setenv("KODA_BACKEND", "")
	t.Setenv("KODA_START_MODE", "")

	cfg := DefaultConfig()
	cfg.Model.Name = "gemini-2.5-pro"
	require.NoError(t, cfg.Save())

	loaded, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-pro", loaded.Model.Name)
}
