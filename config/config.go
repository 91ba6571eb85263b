//file: config/config.go

package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Logging    LogConfig        `json:"logging" yaml:"logging"`
	Metrics    MetricsConfig    `json:"metrics" yaml:"metrics"`
	Conditions ConditionsConfig `json:"conditions" yaml:"conditions"`
}

type LogConfig struct {
	Level      string `json:"level" yaml:"level" mapstructure:"level"`                // debug, info, warn, error
	OutputPath string `json:"outputPath" yaml:"outputPath" mapstructure:"outputPath"` // file path or "stdout"
	Encoding   string `json:"encoding" yaml:"encoding" mapstructure:"encoding"`       // json or console
}

type MetricsConfig struct {
	Enabled   bool   `json:"enabled" yaml:"enabled"`
	Namespace string `json:"namespace" yaml:"namespace"`
}

// ConditionsConfig tunes the condition engine defaults.
type ConditionsConfig struct {
	// Moment-style layouts used when a date/time control has no format of its own
	DefaultDateFormat string `json:"defaultDateFormat" yaml:"defaultDateFormat"`
	DefaultTimeFormat string `json:"defaultTimeFormat" yaml:"defaultTimeFormat"`

	// Must contain exactly one %s, replaced with the control label
	RequiredMessage string `json:"requiredMessage" yaml:"requiredMessage"`

	// Upper bound on rows visited per table during a pass (0 = unlimited)
	MaxTableRows int `json:"maxTableRows" yaml:"maxTableRows"`
}

// Load reads and parses the configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config

	ext := strings.ToLower(filepath.Ext(path))
	var parseErr error

	switch ext {
	case ".yaml", ".yml":
		parseErr = yaml.Unmarshal(data, &config)
	case ".json":
		parseErr = json.Unmarshal(data, &config)
	default:
		// Try JSON first, then YAML if JSON fails
		parseErr = json.Unmarshal(data, &config)
		if parseErr != nil {
			yamlErr := yaml.Unmarshal(data, &config)
			if yamlErr != nil {
				return nil, fmt.Errorf("failed to parse config file (tried JSON and YAML): %w", parseErr)
			}
			parseErr = nil
		}
	}

	if parseErr != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", parseErr)
	}

	setDefaults(&config)

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Default returns a configuration with every default applied
func Default() *Config {
	cfg := &Config{}
	setDefaults(cfg)
	return cfg
}

// setDefaults sets default values for configuration
func setDefaults(cfg *Config) {
	// Logging defaults
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.OutputPath == "" {
		cfg.Logging.OutputPath = "stdout"
	}
	if cfg.Logging.Encoding == "" {
		cfg.Logging.Encoding = "json"
	}

	// Metrics defaults
	if cfg.Metrics.Namespace == "" {
		cfg.Metrics.Namespace = "conditions"
	}

	// Conditions defaults
	if cfg.Conditions.DefaultDateFormat == "" {
		cfg.Conditions.DefaultDateFormat = "YYYY-MM-DD"
	}
	if cfg.Conditions.DefaultTimeFormat == "" {
		cfg.Conditions.DefaultTimeFormat = "HH:mm:ss"
	}
	if cfg.Conditions.RequiredMessage == "" {
		cfg.Conditions.RequiredMessage = "Required parameter '%s' has no value"
	}
}

// Validate checks the configuration, e.g. after ApplyOverrides
func (c *Config) Validate() error {
	return validateConfig(c)
}

// validateConfig performs validation of all configuration values
func validateConfig(cfg *Config) error {
	switch cfg.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid log level: %s", cfg.Logging.Level)
	}

	switch cfg.Logging.Encoding {
	case "json", "console":
	default:
		return fmt.Errorf("invalid log encoding: %s", cfg.Logging.Encoding)
	}

	if strings.Count(cfg.Conditions.RequiredMessage, "%s") != 1 {
		return fmt.Errorf("required message must contain exactly one %%s placeholder: %q", cfg.Conditions.RequiredMessage)
	}
	if cfg.Conditions.MaxTableRows < 0 {
		return fmt.Errorf("max table rows cannot be negative")
	}

	return nil
}

// ApplyOverrides applies command line flag overrides to the configuration
func (c *Config) ApplyOverrides(logLevel string, metricsEnabled bool) {
	if logLevel != "" {
		c.Logging.Level = logLevel
	}
	if metricsEnabled {
		c.Metrics.Enabled = true
	}
}
