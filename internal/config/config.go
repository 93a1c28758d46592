// Package config handles Scribe configuration loading.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultSearchPaths returns the config file search order.
// An explicit path (from -config flag) is checked first.
// Then: ./config.yaml, ~/.config/scribe/config.yaml, /etc/scribe/config.yaml.
func DefaultSearchPaths() []string {
	paths := []string{"config.yaml"}

	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".config", "scribe", "config.yaml"))
	}

	paths = append(paths, "/etc/scribe/config.yaml")
	return paths
}

// FindConfig locates a config file. If explicit is non-empty, it must exist.
// Otherwise, searches DefaultSearchPaths and returns the first that exists.
// Returns the path found, or an error if nothing was found.
func FindConfig(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	for _, p := range DefaultSearchPaths() {
		if _, err := os.Stat(p); err == nil {
			return p, nil
		}
	}

	return "", fmt.Errorf("no config file found (searched: %v)", DefaultSearchPaths())
}

// Config holds all Scribe configuration.
type Config struct {
	Listen    ListenConfig    `yaml:"listen"`
	LLM       LLMConfig       `yaml:"llm"`
	Dashboard DashboardConfig `yaml:"dashboard"`
	Storage   StorageConfig   `yaml:"storage"`
	DataDir   string          `yaml:"data_dir"`
	LogLevel  string          `yaml:"log_level"`
	LogFormat string          `yaml:"log_format"`
}

// ListenConfig defines the API server settings.
type ListenConfig struct {
	Address string `yaml:"address"` // Bind address (default: "" = all interfaces)
	Port    int    `yaml:"port"`
}

// LLMConfig defines LLM gateway settings. Provider API keys are never
// stored here — they are read from the environment (DASHSCOPE_API_KEY,
// DEEPSEEK_API_KEY, DOUBAO_API_KEY) so that config files stay shareable.
type LLMConfig struct {
	// DefaultModel is used when a command or request omits -model.
	DefaultModel string `yaml:"default_model"`
	// GenerateTimeoutSec bounds a single generation request (default 300).
	GenerateTimeoutSec int `yaml:"generate_timeout_sec"`
	// EvaluateTimeoutSec bounds a single evaluation request (default 120).
	// One value covers both CLI and API callers.
	EvaluateTimeoutSec int `yaml:"evaluate_timeout_sec"`
}

// GenerateTimeout returns the generation timeout as a duration.
func (l LLMConfig) GenerateTimeout() time.Duration {
	return time.Duration(l.GenerateTimeoutSec) * time.Second
}

// EvaluateTimeout returns the evaluation timeout as a duration.
func (l LLMConfig) EvaluateTimeout() time.Duration {
	return time.Duration(l.EvaluateTimeoutSec) * time.Second
}

// DashboardConfig controls the embedded web dashboard.
type DashboardConfig struct {
	Enabled bool `yaml:"enabled"`
}

// StorageConfig defines advisory file-lock behavior for the storage layer.
type StorageConfig struct {
	// LockTimeoutMS is how long a caller waits for a busy path (default 5000).
	LockTimeoutMS int `yaml:"lock_timeout_ms"`
	// LockPollMS is the poll interval while waiting (default 25).
	LockPollMS int `yaml:"lock_poll_ms"`
}

// LockTimeout returns the lock acquisition timeout as a duration.
func (s StorageConfig) LockTimeout() time.Duration {
	return time.Duration(s.LockTimeoutMS) * time.Millisecond
}

// LockPoll returns the lock poll interval as a duration.
func (s StorageConfig) LockPoll() time.Duration {
	return time.Duration(s.LockPollMS) * time.Millisecond
}

// PromptsDir returns the root of the versioned prompt tree.
func (c *Config) PromptsDir() string { return filepath.Join(c.DataDir, "prompts") }

// OutputsDir returns where generated summaries are written.
func (c *Config) OutputsDir() string { return filepath.Join(c.DataDir, "outputs") }

// EvaluationsDir returns where evaluation reports are written.
func (c *Config) EvaluationsDir() string { return filepath.Join(c.DataDir, "evaluations") }

// LogsDir returns the root of the JSONL command/evaluation logs.
func (c *Config) LogsDir() string { return filepath.Join(c.DataDir, "logs") }

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, err
	}
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Default returns a default configuration.
func Default() *Config {
	cfg := &Config{
		Listen:    ListenConfig{Port: 8080},
		Dashboard: DashboardConfig{Enabled: true},
	}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills zero-valued fields. Called after unmarshal so a
// config file that sets only what it cares about still gets working values.
func (c *Config) applyDefaults() {
	if c.Listen.Port == 0 {
		c.Listen.Port = 8080
	}
	if c.DataDir == "" {
		c.DataDir = "."
	}
	if c.LLM.DefaultModel == "" {
		c.LLM.DefaultModel = "qwen-max"
	}
	if c.LLM.GenerateTimeoutSec == 0 {
		c.LLM.GenerateTimeoutSec = 300
	}
	if c.LLM.EvaluateTimeoutSec == 0 {
		c.LLM.EvaluateTimeoutSec = 120
	}
	if c.Storage.LockTimeoutMS == 0 {
		c.Storage.LockTimeoutMS = 5000
	}
	if c.Storage.LockPollMS == 0 {
		c.Storage.LockPollMS = 25
	}
}

// Validate checks for values that would fail later in confusing ways.
func (c *Config) Validate() error {
	if c.LogLevel != "" {
		if _, err := ParseLogLevel(c.LogLevel); err != nil {
			return fmt.Errorf("log_level: %w", err)
		}
	}
	if c.LogFormat != "" && c.LogFormat != "text" && c.LogFormat != "json" {
		return fmt.Errorf("log_format: %q (valid: text, json)", c.LogFormat)
	}
	if c.Listen.Port < 0 || c.Listen.Port > 65535 {
		return fmt.Errorf("listen.port: %d out of range", c.Listen.Port)
	}
	return nil
}

// ApplyEnvOverrides applies HOST and PORT environment overrides to the
// listen settings. Container platforms commonly inject these instead of
// editing the config file.
func (c *Config) ApplyEnvOverrides() {
	if host := os.Getenv("HOST"); host != "" {
		c.Listen.Address = host
	}
	if port := os.Getenv("PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil && p > 0 && p <= 65535 {
			c.Listen.Port = p
		}
	}
}
