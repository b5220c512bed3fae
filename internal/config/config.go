// Package config loads tierup.yaml, validates it against the embedded JSON
// schema and resolves it, together with environment overrides, into the
// settings and registry input the rest of the program uses.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	dserrors "github.com/systmms/tierup/internal/errors"
	"github.com/systmms/tierup/internal/logging"
)

// DefaultPath is the configuration file used when --config is not given.
const DefaultPath = "tierup.yaml"

// Config holds the runtime configuration
type Config struct {
	Path       string
	Logger     *logging.Logger
	Definition *Definition

	// LogDir, when set from --log-dir, wins over the file and environment.
	LogDir string
}

// Definition represents the tierup.yaml structure
type Definition struct {
	Version        int                `yaml:"version"`
	ComposeCommand []string           `yaml:"compose_command,omitempty"`
	ScanRoots      []string           `yaml:"scan_roots,omitempty"`
	LogDir         string             `yaml:"log_dir,omitempty"`
	Defaults       Defaults           `yaml:"defaults,omitempty"`
	Tiers          []TierConfig       `yaml:"tiers"`
	Assignments    []AssignmentConfig `yaml:"assignments,omitempty"`
	Notifications  NotificationConfig `yaml:"notifications,omitempty"`
	Metrics        MetricsConfig      `yaml:"metrics,omitempty"`
}

// Defaults holds engine-wide polling settings. Durations use Go syntax ("3s").
type Defaults struct {
	PollInterval string `yaml:"poll_interval,omitempty"`
	ProbeTimeout string `yaml:"probe_timeout,omitempty"`
	MaxRetries   int    `yaml:"max_retries,omitempty"`
	Workers      int    `yaml:"workers,omitempty"`
}

// TierConfig is one entry of the tier table.
type TierConfig struct {
	Name    string       `yaml:"name"`
	Policy  string       `yaml:"policy,omitempty"`
	Default bool         `yaml:"default,omitempty"`
	Units   []UnitConfig `yaml:"units,omitempty"`
}

// UnitConfig declares a unit explicitly. Compose paths are relative to the
// configuration file.
type UnitConfig struct {
	Name    string        `yaml:"name"`
	Compose string        `yaml:"compose"`
	Profile string        `yaml:"profile,omitempty"`
	Health  *HealthConfig `yaml:"health,omitempty"`
	Retries int           `yaml:"retries,omitempty"`
	Timeout string        `yaml:"timeout,omitempty"`
}

// HealthConfig selects at most one check.
type HealthConfig struct {
	Runtime bool               `yaml:"runtime,omitempty"`
	HTTP    *HTTPHealthConfig  `yaml:"http,omitempty"`
	SQL     *SQLHealthConfig   `yaml:"sql,omitempty"`
	Redis   *RedisHealthConfig `yaml:"redis,omitempty"`
	Command []string           `yaml:"command,omitempty"`
}

type HTTPHealthConfig struct {
	URL            string            `yaml:"url"`
	ExpectedStatus int               `yaml:"expected_status,omitempty"`
	Headers        map[string]string `yaml:"headers,omitempty"`
}

type SQLHealthConfig struct {
	Driver string `yaml:"driver"`
	DSN    string `yaml:"dsn"`
}

type RedisHealthConfig struct {
	Addr string `yaml:"addr"`
}

// AssignmentConfig routes scanned units to a tier by glob pattern.
type AssignmentConfig struct {
	Pattern string `yaml:"pattern"`
	Tier    string `yaml:"tier"`
}

// MetricsConfig configures the Prometheus endpoints.
type MetricsConfig struct {
	Listen      string `yaml:"listen,omitempty"`
	Pushgateway string `yaml:"pushgateway,omitempty"`
	Job         string `yaml:"job,omitempty"`
}

// Load reads, schema-checks and parses the configuration file
func (c *Config) Load() error {
	data, err := os.ReadFile(c.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return dserrors.ConfigError{
				Field:      "path",
				Value:      c.Path,
				Message:    "configuration file not found",
				Suggestion: "Create a tierup.yaml or pass --config <path>",
			}
		}
		return dserrors.UserError{
			Message:    "Failed to read configuration file",
			Details:    err.Error(),
			Suggestion: "Check file permissions and path",
			Err:        err,
		}
	}

	def, err := Parse(data)
	if err != nil {
		return err
	}

	c.Definition = def
	return nil
}

// Parse validates raw YAML against the schema and decodes it.
func Parse(data []byte) (*Definition, error) {
	var raw interface{}
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, dserrors.ConfigError{
			Message:    fmt.Sprintf("invalid YAML syntax in configuration file: %v", err),
			Suggestion: "Check for indentation errors, missing quotes, or invalid characters. Use a YAML validator",
		}
	}

	if err := validateSchema(raw); err != nil {
		return nil, err
	}

	var def Definition
	if err := yaml.Unmarshal(data, &def); err != nil {
		return nil, dserrors.ConfigError{
			Message:    fmt.Sprintf("configuration does not match the expected structure: %v", err),
			Suggestion: "Run 'tierup validate' for details",
		}
	}

	if def.Version != 0 {
		return nil, dserrors.ConfigError{
			Field:      "version",
			Value:      def.Version,
			Message:    "unsupported configuration version",
			Suggestion: "Set 'version: 0' at the top of your tierup.yaml file",
		}
	}

	return &def, nil
}

// Dir returns the directory relative paths in the file are resolved against.
func (c *Config) Dir() string {
	dir := filepath.Dir(c.Path)
	if abs, err := filepath.Abs(dir); err == nil {
		return abs
	}
	return dir
}

func (c *Config) resolvePath(p string) string {
	if p == "" || filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(c.Dir(), p)
}

func (c *Config) loaded() error {
	if c.Definition == nil {
		return dserrors.UserError{
			Message:    "Configuration not loaded",
			Suggestion: "This is an internal error. Please report it",
		}
	}
	return nil
}
