package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(map[string]string{"HOME": "/home/dev"})
	require.NoError(t, err)

	assert.Equal(t, "ibm/granite4", cfg.Model)
	assert.Equal(t, "http://localhost:11434", cfg.BaseURL)
	assert.Equal(t, "ollama", cfg.APIKey)
	assert.Equal(t, "direct", cfg.Mode)
	assert.Equal(t, 3, cfg.MaxIterations)
	assert.Equal(t, 50000, cfg.MaxOutputBytes)
	assert.Equal(t, filepath.Join("/home/dev", ".granitecoder", "history.db"), cfg.HistoryPath)
	assert.Empty(t, cfg.WatchAddr)
}

func TestLoad_EnvOverrides(t *testing.T) {
	cfg, err := Load(map[string]string{
		"GRANITE_MODEL":          "qwen2.5-coder",
		"GRANITE_BASE_URL":       "http://gpu-box:11434",
		"GRANITE_API_KEY":        "secret",
		"GRANITE_MODE":           "responses",
		"GRANITE_MAX_ITERATIONS": "7",
		"GRANITE_HISTORY_DB":     "/data/h.db",
		"GRANITE_WATCH_ADDR":     ":8089",
		"GRANITE_LOG_LEVEL":      "debug",
	})
	require.NoError(t, err)

	assert.Equal(t, "qwen2.5-coder", cfg.Model)
	assert.Equal(t, "http://gpu-box:11434", cfg.BaseURL)
	assert.Equal(t, "secret", cfg.APIKey)
	assert.Equal(t, "responses", cfg.Mode)
	assert.Equal(t, 7, cfg.MaxIterations)
	assert.Equal(t, "/data/h.db", cfg.HistoryPath)
	assert.Equal(t, ":8089", cfg.WatchAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoad_InvalidMode(t *testing.T) {
	_, err := Load(map[string]string{"GRANITE_MODE": "turbo"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid mode "turbo"`)
}

func TestLoad_InvalidMaxIterations(t *testing.T) {
	_, err := Load(map[string]string{"GRANITE_MAX_ITERATIONS": "three"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be an integer")

	_, err = Load(map[string]string{"GRANITE_MAX_ITERATIONS": "0"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "at least 1")
}

func TestLoad_YAMLFileThenEnv(t *testing.T) {
	// given
	path := filepath.Join(t.TempDir(), "granite.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
model: granite-code:8b
mode: rlm
max_iterations: 5
max_output_bytes: 1024
`), 0644))

	// when
	cfg, err := Load(map[string]string{
		"GRANITE_CONFIG": path,
		"GRANITE_MODE":   "responses",
	})

	// then
	require.NoError(t, err)
	assert.Equal(t, "granite-code:8b", cfg.Model)
	assert.Equal(t, "responses", cfg.Mode)
	assert.Equal(t, 5, cfg.MaxIterations)
	assert.Equal(t, 1024, cfg.MaxOutputBytes)
	assert.Equal(t, "http://localhost:11434", cfg.BaseURL)
}

func TestLoad_MissingYAMLFile(t *testing.T) {
	_, err := Load(map[string]string{"GRANITE_CONFIG": filepath.Join(t.TempDir(), "nope.yaml")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("model: [unterminated"), 0644))

	_, err := Load(map[string]string{"GRANITE_CONFIG": path})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parsing config file")
}

func TestValidate(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	cfg.Model = ""
	assert.Error(t, cfg.Validate())

	cfg = Default()
	cfg.MaxOutputBytes = -1
	assert.Error(t, cfg.Validate())
}
