// Package config provides configuration loading and validation for the
// repolens server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for environment variable overrides.
const EnvPrefix = "REPOLENS"

// Defaults applied when a field is absent from the configuration file.
const (
	// DefaultMaxTrackedFiles caps how many files a single tracking
	// operation may resolve, bounding payload size.
	DefaultMaxTrackedFiles = 200

	// DefaultTruncateBytes is the cap applied when a mode emits
	// truncated content.
	DefaultTruncateBytes = 2000

	// DefaultContentRetentionBytes is the per-file cap above which prior
	// content is not retained for diffing.
	DefaultContentRetentionBytes = 512 * 1024

	// DefaultGitTimeout bounds every git invocation.
	DefaultGitTimeout = 30 * time.Second

	// DefaultSearchLimit caps search_files results.
	DefaultSearchLimit = 20
)

// Config represents the root configuration structure
type Config struct {
	// BaseDir is the directory scanned for git repositories
	BaseDir string `yaml:"baseDir"`

	// StateDir is the directory holding persisted tracking state
	StateDir string `yaml:"stateDir"`

	// MaxTrackedFiles caps the file set of one tracking operation
	MaxTrackedFiles int `yaml:"maxTrackedFiles,omitempty"`

	// TruncateBytes caps truncated content payloads
	TruncateBytes int `yaml:"truncateBytes,omitempty"`

	// ContentRetentionBytes caps per-file prior-content retention
	ContentRetentionBytes int `yaml:"contentRetentionBytes,omitempty"`

	// GitTimeout bounds git operations (e.g. "30s")
	GitTimeout string `yaml:"gitTimeout,omitempty"`

	// SearchLimit caps file search results
	SearchLimit int `yaml:"searchLimit,omitempty"`

	// HTTPAddress enables the read-only ops HTTP server when non-empty
	HTTPAddress string `yaml:"httpAddress,omitempty"`

	gitTimeout time.Duration
}

// GitTimeoutDuration returns the parsed git timeout. Validate must have
// been called first; an unvalidated Config falls back to the default.
func (c *Config) GitTimeoutDuration() time.Duration {
	if c.gitTimeout > 0 {
		return c.gitTimeout
	}
	return DefaultGitTimeout
}

// Default returns a configuration built from environment overrides and
// defaults alone. It is not validated; callers fill in the required
// directories first.
func Default() *Config {
	cfg := &Config{}
	applyEnvOverrides(cfg)
	cfg.applyDefaults()
	return cfg
}

// Loader defines the interface for loading configuration
type Loader interface {
	Load(path string) (*Config, error)
}

type loader struct{}

// NewLoader creates a new configuration Loader
func NewLoader() Loader {
	return &loader{}
}

// Load reads the optional YAML configuration file, applies environment
// overrides and defaults, and validates the result. An empty path yields
// a configuration built from environment and defaults alone.
func (*loader) Load(path string) (*Config, error) {
	cfg := &Config{}

	if path != "" {
		cleanPath := filepath.Clean(path)
		data, err := os.ReadFile(cleanPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnvOverrides lets REPOLENS_* environment variables override file
// values, matching the flag/env precedence of the serve command.
func applyEnvOverrides(cfg *Config) {
	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if s := v.GetString("BASE_DIR"); s != "" {
		cfg.BaseDir = s
	}
	if s := v.GetString("STATE_DIR"); s != "" {
		cfg.StateDir = s
	}
	if s := v.GetString("HTTP_ADDRESS"); s != "" {
		cfg.HTTPAddress = s
	}
	if s := v.GetString("GIT_TIMEOUT"); s != "" {
		cfg.GitTimeout = s
	}
}

func (c *Config) applyDefaults() {
	if c.MaxTrackedFiles == 0 {
		c.MaxTrackedFiles = DefaultMaxTrackedFiles
	}
	if c.TruncateBytes == 0 {
		c.TruncateBytes = DefaultTruncateBytes
	}
	if c.ContentRetentionBytes == 0 {
		c.ContentRetentionBytes = DefaultContentRetentionBytes
	}
	if c.GitTimeout == "" {
		c.GitTimeout = DefaultGitTimeout.String()
	}
	if c.SearchLimit == 0 {
		c.SearchLimit = DefaultSearchLimit
	}
}

// Validate checks the configuration for structural problems
func (c *Config) Validate() error {
	if c.BaseDir == "" {
		return fmt.Errorf("baseDir is required")
	}
	if c.StateDir == "" {
		return fmt.Errorf("stateDir is required")
	}
	if !filepath.IsAbs(c.BaseDir) {
		abs, err := filepath.Abs(c.BaseDir)
		if err != nil {
			return fmt.Errorf("failed to resolve baseDir: %w", err)
		}
		c.BaseDir = abs
	}
	if !filepath.IsAbs(c.StateDir) {
		abs, err := filepath.Abs(c.StateDir)
		if err != nil {
			return fmt.Errorf("failed to resolve stateDir: %w", err)
		}
		c.StateDir = abs
	}
	if c.MaxTrackedFiles < 1 {
		return fmt.Errorf("maxTrackedFiles must be positive, got %d", c.MaxTrackedFiles)
	}
	if c.TruncateBytes < 1 {
		return fmt.Errorf("truncateBytes must be positive, got %d", c.TruncateBytes)
	}
	d, err := time.ParseDuration(c.GitTimeout)
	if err != nil {
		return fmt.Errorf("invalid gitTimeout %q: %w", c.GitTimeout, err)
	}
	if d <= 0 {
		return fmt.Errorf("gitTimeout must be positive, got %s", c.GitTimeout)
	}
	c.gitTimeout = d
	return nil
}
