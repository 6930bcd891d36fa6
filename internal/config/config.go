package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultReportDir is where newman artifacts land when NEWMAN_REPORT_DIR is unset.
const DefaultReportDir = "e2e-logs"

// ErrMissingAuthToken is returned when the end-to-end suites are requested
// without E2E_TEST_AUTH_TOKEN.
var ErrMissingAuthToken = errors.New("E2E_TEST_AUTH_TOKEN environment variable is not set")

// HistoryConfig represents run history configuration
type HistoryConfig struct {
	// Enabled turns on recording of per-target results
	Enabled bool `yaml:"enabled"`

	// DBPath is the path to the history database, relative to the repo root
	DBPath string `yaml:"db_path"`
}

// Config represents monorun configuration options
type Config struct {
	// LogLevel sets the logging verbosity (trace, debug, info, warn, error)
	LogLevel string `yaml:"log_level"`

	// LogDir is the directory where run logs are written, relative to the repo root
	LogDir string `yaml:"log_dir"`

	// Verbose raises console logging to debug
	Verbose bool `yaml:"verbose"`

	// ReportDir is where newman writes its report artifacts
	ReportDir string `yaml:"report_dir"`

	// History contains run history configuration
	History HistoryConfig `yaml:"history"`

	// CI is set when running under a CI provider. Environment only.
	CI bool `yaml:"-"`

	// Production is set for production builds. Environment only.
	Production bool `yaml:"-"`

	// AuthToken is injected into the e2e collections. Environment only.
	AuthToken string `yaml:"-"`
}

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	return &Config{
		LogLevel:  "info",
		LogDir:    ".monorun/logs",
		ReportDir: DefaultReportDir,
		History: HistoryConfig{
			Enabled: true,
			DBPath:  ".monorun/history.db",
		},
	}
}

// LoadConfig loads configuration from the specified file path.
// If the file doesn't exist, returns default configuration without error.
// If the file exists but is malformed, returns an error.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var fileCfg Config
	if err := yaml.Unmarshal(data, &fileCfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if fileCfg.LogLevel != "" {
		cfg.LogLevel = fileCfg.LogLevel
	}
	if fileCfg.LogDir != "" {
		cfg.LogDir = fileCfg.LogDir
	}
	if fileCfg.Verbose {
		cfg.Verbose = true
	}
	if fileCfg.ReportDir != "" {
		cfg.ReportDir = fileCfg.ReportDir
	}

	// The history section is merged key by key so an explicit
	// "enabled: false" is distinguishable from an absent key.
	var rawMap map[string]interface{}
	if err := yaml.Unmarshal(data, &rawMap); err == nil {
		if section, ok := rawMap["history"].(map[string]interface{}); ok {
			if _, exists := section["enabled"]; exists {
				cfg.History.Enabled = fileCfg.History.Enabled
			}
			if _, exists := section["db_path"]; exists {
				cfg.History.DBPath = fileCfg.History.DBPath
			}
		}
	}

	return cfg, nil
}

// LoadConfigFromDir loads configuration from .monorun/config.yaml in the specified directory.
// If the directory or file doesn't exist, returns default configuration without error.
func LoadConfigFromDir(dir string) (*Config, error) {
	return LoadConfig(filepath.Join(dir, ".monorun", "config.yaml"))
}

// ApplyEnv resolves the environment-driven settings once. lookup has the
// signature of os.LookupEnv so tests can pass a map-backed function.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if token, ok := lookup("E2E_TEST_AUTH_TOKEN"); ok {
		c.AuthToken = strings.TrimSpace(token)
	}
	if dir, ok := lookup("NEWMAN_REPORT_DIR"); ok && strings.TrimSpace(dir) != "" {
		c.ReportDir = strings.TrimSpace(dir)
	}
	if v, ok := lookup("CI"); ok {
		c.CI = truthy(v)
	}
	if v, ok := lookup("VERBOSE"); ok && truthy(v) {
		c.Verbose = true
	}
	if v, ok := lookup("PRODUCTION"); ok {
		c.Production = truthy(v)
	}
}

func truthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "true", "1":
		return true
	}
	return false
}

// MergeWithFlags merges CLI flags into the configuration.
// Non-nil flag values override configuration values.
func (c *Config) MergeWithFlags(logLevel *string, verbose *bool) {
	if logLevel != nil && *logLevel != "" {
		c.LogLevel = *logLevel
	}
	if verbose != nil && *verbose {
		c.Verbose = true
	}
}

// RequireAuthToken returns ErrMissingAuthToken when no token was resolved.
func (c *Config) RequireAuthToken() (string, error) {
	if c.AuthToken == "" {
		return "", ErrMissingAuthToken
	}
	return c.AuthToken, nil
}

// Resolve returns p joined onto root unless p is already absolute.
func Resolve(root, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

// Validate validates the configuration values
func (c *Config) Validate() error {
	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("invalid log_level %q, must be one of: trace, debug, info, warn, error", c.LogLevel)
	}

	if c.ReportDir == "" {
		return fmt.Errorf("report_dir cannot be empty")
	}

	if c.History.Enabled && c.History.DBPath == "" {
		return fmt.Errorf("history.db_path cannot be empty when history is enabled")
	}

	return nil
}
