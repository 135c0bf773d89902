package config

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	DefaultModel          = "ibm/granite4"
	DefaultBaseURL        = "http://localhost:11434"
	DefaultAPIKey         = "ollama"
	DefaultMode           = "direct"
	DefaultMaxIterations  = 3
	DefaultMaxTokens      = 4096
	DefaultMaxOutputBytes = 50000
)

var validModes = []string{"direct", "rlm", "responses"}

type Config struct {
	Model          string `yaml:"model"`
	BaseURL        string `yaml:"base_url"`
	APIKey         string `yaml:"api_key"`
	Mode           string `yaml:"mode"`
	MaxIterations  int    `yaml:"max_iterations"`
	MaxTokens      int    `yaml:"max_tokens"`
	MaxOutputBytes int    `yaml:"max_output_bytes"`
	HistoryPath    string `yaml:"history_path"`
	WatchAddr      string `yaml:"watch_addr"`
	LogLevel       string `yaml:"log_level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Model:          DefaultModel,
		BaseURL:        DefaultBaseURL,
		APIKey:         DefaultAPIKey,
		Mode:           DefaultMode,
		MaxIterations:  DefaultMaxIterations,
		MaxTokens:      DefaultMaxTokens,
		MaxOutputBytes: DefaultMaxOutputBytes,
		LogLevel:       "warn",
	}
}

// Load reads config from env map. For production use LoadFromEnv.
// GRANITE_CONFIG names an optional YAML file applied before the env vars.
func Load(env map[string]string) (*Config, error) {
	cfg := Default()

	if path := env["GRANITE_CONFIG"]; path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	if v := env["GRANITE_MODEL"]; v != "" {
		cfg.Model = v
	}
	if v := env["GRANITE_BASE_URL"]; v != "" {
		cfg.BaseURL = v
	}
	if v := env["GRANITE_API_KEY"]; v != "" {
		cfg.APIKey = v
	}
	if v := env["GRANITE_MODE"]; v != "" {
		cfg.Mode = v
	}
	if v := env["GRANITE_MAX_ITERATIONS"]; v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return nil, errors.Errorf("invalid GRANITE_MAX_ITERATIONS %q: must be an integer", v)
		}
		cfg.MaxIterations = n
	}
	if v := env["GRANITE_HISTORY_DB"]; v != "" {
		cfg.HistoryPath = v
	}
	if v := env["GRANITE_WATCH_ADDR"]; v != "" {
		cfg.WatchAddr = v
	}
	if v := env["GRANITE_LOG_LEVEL"]; v != "" {
		cfg.LogLevel = v
	}

	if cfg.HistoryPath == "" {
		home := env["HOME"]
		if home == "" {
			home = "."
		}
		cfg.HistoryPath = filepath.Join(home, ".granitecoder", "history.db")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadFromEnv loads config from os environment variables.
func LoadFromEnv() (*Config, error) {
	env := map[string]string{}
	for _, key := range []string{
		"GRANITE_CONFIG",
		"GRANITE_MODEL",
		"GRANITE_BASE_URL",
		"GRANITE_API_KEY",
		"GRANITE_MODE",
		"GRANITE_MAX_ITERATIONS",
		"GRANITE_HISTORY_DB",
		"GRANITE_WATCH_ADDR",
		"GRANITE_LOG_LEVEL",
	} {
		env[key] = os.Getenv(key)
	}
	if home, err := os.UserHomeDir(); err == nil {
		env["HOME"] = home
	}
	return Load(env)
}

// Validate checks the fields that callers cannot recover from.
func (c *Config) Validate() error {
	if c.Model == "" {
		return errors.New("model required")
	}
	if c.BaseURL == "" {
		return errors.New("base URL required")
	}
	if !isValidMode(c.Mode) {
		return errors.Errorf("invalid mode %q: must be one of %s", c.Mode, strings.Join(validModes, ", "))
	}
	if c.MaxIterations < 1 {
		return errors.Errorf("invalid max iterations %d: must be at least 1", c.MaxIterations)
	}
	if c.MaxTokens < 1 {
		return errors.Errorf("invalid max tokens %d: must be at least 1", c.MaxTokens)
	}
	if c.MaxOutputBytes < 0 {
		return errors.Errorf("invalid max output bytes %d", c.MaxOutputBytes)
	}
	return nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "reading config file")
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.Wrapf(err, "parsing config file %s", path)
	}
	return nil
}

func isValidMode(mode string) bool {
	for _, m := range validModes {
		if m == mode {
			return true
		}
	}
	return false
}
