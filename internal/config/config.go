// ABOUTME: Server configuration loading and parsing for formgate
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete formgate server configuration.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Settings SettingsConfig `yaml:"settings"`
	Spool    SpoolConfig    `yaml:"spool"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// ServerConfig holds the HTTP listen address.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// SettingsConfig locates the sealed settings blob and its key file.
type SettingsConfig struct {
	Path    string `yaml:"path"`
	KeyFile string `yaml:"key_file"`
}

// SpoolConfig holds the submission spool database path and retry policy.
type SpoolConfig struct {
	Path        string `yaml:"path"`
	MaxAttempts int    `yaml:"max_attempts"`

	RetryInterval time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	RetryIntervalRaw string `yaml:"retry_interval"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig holds metrics endpoint configuration.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// Load reads a configuration file from the given path and returns a parsed
// Config. Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding
// environment variable values. Unset variables expand to the empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills in values the file may omit.
func (c *Config) applyDefaults() {
	if c.Server.Addr == "" {
		c.Server.Addr = ":8400"
	}
	if c.Spool.RetryInterval == 0 {
		c.Spool.RetryInterval = 30 * time.Second
	}
	if c.Spool.MaxAttempts == 0 {
		c.Spool.MaxAttempts = 20
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
}

// Validate checks that all required configuration fields are present and
// valid. Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Settings.Path == "" {
		return fmt.Errorf("settings.path is required")
	}
	if c.Settings.KeyFile == "" {
		return fmt.Errorf("settings.key_file is required")
	}
	if c.Spool.Path == "" {
		return fmt.Errorf("spool.path is required")
	}
	return nil
}

// parseDurations converts the raw duration strings into time.Duration values.
func parseDurations(cfg *Config) error {
	if cfg.Spool.RetryIntervalRaw != "" {
		interval, err := time.ParseDuration(cfg.Spool.RetryIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing retry_interval %q: %w", cfg.Spool.RetryIntervalRaw, err)
		}
		cfg.Spool.RetryInterval = interval
	}
	return nil
}
