package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8000, cfg.Gateway.Port)
	assert.Equal(t, "http://localhost:11434", cfg.Ollama.BaseURL)
	assert.Equal(t, 6, cfg.Agent.MaxToolIterations)
	assert.Contains(t, cfg.Sandbox.Denylist, "/proc")
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
gateway:
  port: 9100
ollama:
  model: llama3.2:3b
sandbox:
  root: /home/user/work
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9100, cfg.Gateway.Port)
	assert.Equal(t, "llama3.2:3b", cfg.Ollama.Model)
	assert.Equal(t, "/home/user/work", cfg.Sandbox.Root)
	// untouched sections keep defaults
	assert.Equal(t, 60, cfg.Agent.ToolTimeoutSecs)
	assert.Equal(t, "sqlite", cfg.Session.Store)
}

func TestLoadInvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("gateway: [bad"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	var cfgErr *ConfigError
	assert.ErrorAs(t, err, &cfgErr)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("LORI_GATEWAY_PORT", "9999")
	t.Setenv("LORI_MODEL", "qwen3:14b")
	t.Setenv("LORI_SANDBOX_DENYLIST", "/proc:/sys")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Gateway.Port)
	assert.Equal(t, "qwen3:14b", cfg.Ollama.Model)
	assert.Equal(t, []string{"/proc", "/sys"}, cfg.Sandbox.Denylist)
}

func TestExpandSensitiveFields(t *testing.T) {
	t.Setenv("MY_TOKEN", "secret123")
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := "gateway:\n  auth:\n    token: ${MY_TOKEN}\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "secret123", cfg.Gateway.Auth.Token)
}

func TestValidateCatchesBadValues(t *testing.T) {
	cfg := Defaults()
	cfg.Gateway.Port = 99999
	cfg.Gateway.Bind = "weird"
	cfg.Agent.MaxToolIterations = 0
	cfg.Sandbox.Root = "relative/path"
	cfg.Session.Store = "redis"

	issues := Validate(&cfg)
	paths := make([]string, 0, len(issues))
	for _, i := range issues {
		paths = append(paths, i.Path)
	}
	assert.Contains(t, paths, "gateway.port")
	assert.Contains(t, paths, "gateway.bind")
	assert.Contains(t, paths, "agent.maxToolIterations")
	assert.Contains(t, paths, "sandbox.root")
	assert.Contains(t, paths, "session.store")
}

func TestValidateDefaultsClean(t *testing.T) {
	cfg := Defaults()
	assert.Empty(t, Validate(&cfg))
}

func TestConfigPathHelpers(t *testing.T) {
	raw := map[string]any{}
	path, err := ParseConfigPath("ollama.model")
	require.NoError(t, err)

	SetValueAtPath(raw, path, "qwen3:8b")
	v, ok := GetValueAtPath(raw, path)
	require.True(t, ok)
	assert.Equal(t, "qwen3:8b", v)

	assert.True(t, UnsetValueAtPath(raw, path))
	_, ok = GetValueAtPath(raw, path)
	assert.False(t, ok)

	_, err = ParseConfigPath("a..b")
	assert.Error(t, err)
	_, err = ParseConfigPath("__proto__.x")
	assert.Error(t, err)
}
