// Package config persists slurmslim settings as a JSON file under the
// XDG config directory, with environment overrides layered on top.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/JianYang-Lab/SlurmSlim/internal/llm"
	"github.com/JianYang-Lab/SlurmSlim/internal/slurm"
	"github.com/JianYang-Lab/SlurmSlim/internal/xdg"
)

// Defaults applied when neither the file nor the environment sets a
// value.
const (
	DefaultModel          = "deepseek-r1"
	DefaultServerCommand  = "slurmslim-server"
	DefaultTimeoutSeconds = 120
	DefaultMaxFiles       = 16
)

// Config holds the persistent slurmslim settings.
type Config struct {
	// BaseURL is the OpenAI-compatible endpoint queried for estimates.
	BaseURL string `json:"base_url,omitempty"`

	// APIKey authenticates against the endpoint. Prefer setting
	// SLURMSLIM_API_KEY (or DASHSCOPE_API_KEY) over persisting it here.
	APIKey string `json:"api_key,omitempty"`

	// Model is the chat model asked for estimates.
	Model string `json:"model,omitempty"`

	// ServerCommand launches the tool server the estimator talks to.
	ServerCommand string `json:"server_command,omitempty"`

	// TimeoutSeconds bounds one full estimation run.
	TimeoutSeconds int `json:"timeout_seconds,omitempty"`

	// Headroom is the safety margin added to the suggested allocation.
	// Zero means the built-in default.
	Headroom float64 `json:"headroom,omitempty"`

	// MemStepMiB rounds the suggested allocation up to this many MiB.
	// Zero means the built-in default.
	MemStepMiB uint64 `json:"mem_step_mib,omitempty"`

	// MaxFiles caps how many discovered files are sized per run.
	MaxFiles int `json:"max_files,omitempty"`

	// SentryDSN enables crash reporting when set.
	SentryDSN string `json:"sentry_dsn,omitempty"`
}

// Path returns the config file location.
func Path() string {
	return filepath.Join(xdg.ConfigDir(), "config.json")
}

// Load reads the config file and applies environment overrides. A
// missing file yields the defaults.
func Load() (*Config, error) {
	cfg, err := LoadFile()
	if err != nil {
		return nil, err
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	return cfg, nil
}

// LoadFile reads only the file, with no environment overrides and no
// defaults. Editing commands use this view so ambient values are never
// written back to disk.
func LoadFile() (*Config, error) {
	cfg := &Config{}
	data, err := os.ReadFile(Path())
	if err == nil {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", Path(), err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, nil
}

// Save writes cfg to the config file, creating the directory as
// needed.
func Save(cfg *Config) error {
	path := Path()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func (c *Config) applyEnv() {
	if v := os.Getenv("SLURMSLIM_BASE_URL"); v != "" {
		c.BaseURL = v
	}
	if v := os.Getenv("SLURMSLIM_API_KEY"); v != "" {
		c.APIKey = v
	} else if v := os.Getenv("DASHSCOPE_API_KEY"); v != "" && c.APIKey == "" {
		// The environment variable the original deployment used.
		c.APIKey = v
	}
	if v := os.Getenv("SLURMSLIM_MODEL"); v != "" {
		c.Model = v
	}
	if v := os.Getenv("SLURMSLIM_SERVER_COMMAND"); v != "" {
		c.ServerCommand = v
	}
	if v := os.Getenv("SLURMSLIM_TIMEOUT_SECONDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.TimeoutSeconds = n
		}
	}
	if v := os.Getenv("SLURMSLIM_SENTRY_DSN"); v != "" {
		c.SentryDSN = v
	}
}

func (c *Config) applyDefaults() {
	if c.BaseURL == "" {
		c.BaseURL = llm.DefaultBaseURL
	}
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.ServerCommand == "" {
		c.ServerCommand = DefaultServerCommand
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = DefaultTimeoutSeconds
	}
	if c.MaxFiles <= 0 {
		c.MaxFiles = DefaultMaxFiles
	}
}

// Timeout returns the per-run deadline.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// SlurmOptions folds the headroom settings into slurm options, keeping
// the package defaults for unset values.
func (c *Config) SlurmOptions() slurm.Options {
	opts := slurm.DefaultOptions()
	if c.Headroom > 0 {
		opts.Headroom = c.Headroom
	}
	if c.MemStepMiB > 0 {
		opts.StepMiB = c.MemStepMiB
	}
	return opts
}
