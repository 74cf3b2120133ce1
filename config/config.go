// Package config provides configuration loading and validation.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/artpar/querywire/core/schema"
	"github.com/joeshaw/envdecode"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "QUERYWIRE_"

// Config is the root configuration structure.
type Config struct {
	Schemas SchemasConfig `yaml:"schemas"`
	Limits  LimitsConfig  `yaml:"limits"`
	Server  ServerConfig  `yaml:"server"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// SchemasConfig locates the action schema definitions.
type SchemasConfig struct {
	Dir           string `yaml:"dir" env:"QUERYWIRE_SCHEMAS_DIR"`
	Watch         bool   `yaml:"watch" env:"QUERYWIRE_SCHEMAS_WATCH"`                   // Reload definitions when files change
	CollectErrors bool   `yaml:"collect_errors" env:"QUERYWIRE_SCHEMAS_COLLECT_ERRORS"` // Report every invalid parameter
}

// LimitsConfig bounds the wire paths accepted during extraction.
type LimitsConfig struct {
	MaxIndex int `yaml:"max_index" env:"QUERYWIRE_LIMITS_MAX_INDEX"`
	MaxDepth int `yaml:"max_depth" env:"QUERYWIRE_LIMITS_MAX_DEPTH"`
}

// Schema converts the limits for use with schema.WithLimits.
func (l LimitsConfig) Schema() schema.Limits {
	return schema.Limits{MaxIndex: l.MaxIndex, MaxDepth: l.MaxDepth}
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	Host            string        `yaml:"host" env:"QUERYWIRE_SERVER_HOST"`
	Port            int           `yaml:"port" env:"QUERYWIRE_SERVER_PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"QUERYWIRE_SERVER_READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"QUERYWIRE_SERVER_WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"QUERYWIRE_SERVER_SHUTDOWN_TIMEOUT"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes" env:"QUERYWIRE_SERVER_MAX_BODY_BYTES"`
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"QUERYWIRE_LOG_LEVEL"`   // "debug", "info", "warn", "error"
	Format string `yaml:"format" env:"QUERYWIRE_LOG_FORMAT"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" env:"QUERYWIRE_METRICS_ENABLED"` // Enable /metrics endpoint
	Path    string `yaml:"path" env:"QUERYWIRE_METRICS_PATH"`       // Custom path (default: /metrics)
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return finish(&cfg)
}

// LoadFromEnv creates configuration entirely from environment variables.
//
// Environment variables:
//
//	QUERYWIRE_SCHEMAS_DIR        - Schema definition directory (default: schemas)
//	QUERYWIRE_SCHEMAS_WATCH      - Reload definitions on change (default: false)
//	QUERYWIRE_LIMITS_MAX_INDEX   - Largest accepted list index (default: 10000)
//	QUERYWIRE_LIMITS_MAX_DEPTH   - Largest accepted path depth (default: 32)
//	QUERYWIRE_SERVER_HOST        - Server host (default: 0.0.0.0)
//	QUERYWIRE_SERVER_PORT        - Server port (default: 8080)
//	QUERYWIRE_LOG_LEVEL          - Log level: debug, info, warn, error (default: info)
//	QUERYWIRE_LOG_FORMAT         - Log format: json or console (default: json)
//	QUERYWIRE_METRICS_ENABLED    - Enable /metrics endpoint (default: false)
func LoadFromEnv() (*Config, error) {
	return finish(&Config{})
}

// LoadWithFallback loads the file at path if it exists, otherwise the
// environment alone.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return LoadFromEnv()
}

// HasEnvConfig returns true if any QUERYWIRE_* variable is set.
func HasEnvConfig() bool {
	for _, kv := range os.Environ() {
		if strings.HasPrefix(kv, EnvPrefix) {
			return true
		}
	}
	return false
}

func finish(cfg *Config) (*Config, error) {
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	setDefaults(cfg)

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// applyEnvOverrides applies QUERYWIRE_* environment variables to the config.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) error {
	err := envdecode.StrictDecode(cfg)
	if err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return fmt.Errorf("env overrides: %w", err)
	}
	return nil
}

func setDefaults(cfg *Config) {
	if cfg.Schemas.Dir == "" {
		cfg.Schemas.Dir = "schemas"
	}

	defaults := schema.DefaultLimits()
	if cfg.Limits.MaxIndex == 0 {
		cfg.Limits.MaxIndex = defaults.MaxIndex
	}
	if cfg.Limits.MaxDepth == 0 {
		cfg.Limits.MaxDepth = defaults.MaxDepth
	}

	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 30 * time.Second
	}
	if cfg.Server.ShutdownTimeout == 0 {
		cfg.Server.ShutdownTimeout = 15 * time.Second
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = 1 << 20
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

// Validate checks a configuration with defaults applied.
func Validate(cfg *Config) error {
	if cfg.Limits.MaxIndex < 0 {
		return fmt.Errorf("limits.max_index must not be negative, got %d", cfg.Limits.MaxIndex)
	}
	if cfg.Limits.MaxDepth < 0 {
		return fmt.Errorf("limits.max_depth must not be negative, got %d", cfg.Limits.MaxDepth)
	}

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", cfg.Server.Port)
	}
	if cfg.Server.MaxBodyBytes < 0 {
		return fmt.Errorf("server.max_body_bytes must not be negative")
	}

	if _, err := zerolog.ParseLevel(cfg.Logging.Level); err != nil {
		return fmt.Errorf("logging.level %q: %w", cfg.Logging.Level, err)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", cfg.Logging.Format)
	}

	if !strings.HasPrefix(cfg.Metrics.Path, "/") {
		return fmt.Errorf("metrics.path must start with '/', got %q", cfg.Metrics.Path)
	}

	return nil
}
