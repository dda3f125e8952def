// Package config loads and validates the application configuration from a
// YAML file, with defaults for anything unset. API keys never live here;
// they are read from the environment.
package config

import (
	"fmt"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config holds all configuration for the application.
type Config struct {
	// LogLevel is the logging level (debug, info, warn, error).
	LogLevel string `koanf:"log_level"`

	Server   ServerConfig   `koanf:"server"`
	Provider ProviderConfig `koanf:"provider"`
	Session  SessionConfig  `koanf:"session"`
	Sources  SourcesConfig  `koanf:"sources"`
	Audit    AuditConfig    `koanf:"audit"`
	Tracing  TracingConfig  `koanf:"tracing"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	// Port is the port the API server listens on.
	Port int `koanf:"port"`
}

// ProviderConfig selects and tunes the model backend.
type ProviderConfig struct {
	// Name is one of "gemini", "anthropic", "mock".
	Name string `koanf:"name"`

	// Model overrides the backend's default model when set.
	Model string `koanf:"model"`

	MaxTokens   int     `koanf:"max_tokens"`
	Temperature float64 `koanf:"temperature"`

	// MaxRetries bounds retries on transient backend errors.
	MaxRetries int `koanf:"max_retries"`

	// ScenarioPath is the scripted conversation used by the mock backend.
	ScenarioPath string `koanf:"scenario_path"`
}

// SessionConfig bounds an analysis session.
type SessionConfig struct {
	MaxIterations  int `koanf:"max_iterations"`
	TimeoutSeconds int `koanf:"timeout_seconds"`

	// ToolTimeoutSeconds bounds each individual tool execution.
	ToolTimeoutSeconds int `koanf:"tool_timeout_seconds"`
}

// SourcesConfig configures the data source backends.
type SourcesConfig struct {
	// GCPProject is the Google Cloud project for BigQuery and Firestore.
	// When empty, cloud-backed sources report themselves unavailable.
	GCPProject string `koanf:"gcp_project"`

	// FixturesPath points at a static dataset used instead of cloud
	// backends. Required for the mock provider.
	FixturesPath string `koanf:"fixtures_path"`

	// WatchlistPath is the company alias file, hot-reloaded on change.
	WatchlistPath string `koanf:"watchlist_path"`

	// PatentLimit caps rows fetched per patent query.
	PatentLimit int `koanf:"patent_limit"`

	// CacheSize is the per-source LRU capacity. Zero disables caching.
	CacheSize int `koanf:"cache_size"`

	FetchTimeoutSeconds int `koanf:"fetch_timeout_seconds"`
}

// AuditConfig configures the JSONL audit trail.
type AuditConfig struct {
	// Dir is where session audit files are written. Empty disables auditing.
	Dir string `koanf:"dir"`
}

// TracingConfig configures OpenTelemetry trace export.
type TracingConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Endpoint string `koanf:"endpoint"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Server:   ServerConfig{Port: 8080},
		Provider: ProviderConfig{
			Name:        "gemini",
			MaxTokens:   8192,
			Temperature: 0.0,
			MaxRetries:  3,
		},
		Session: SessionConfig{
			MaxIterations:      6,
			TimeoutSeconds:     300,
			ToolTimeoutSeconds: 30,
		},
		Sources: SourcesConfig{
			PatentLimit:         50,
			CacheSize:           128,
			FetchTimeoutSeconds: 20,
		},
	}
}

// ReadFile reads the config file at path, merged over defaults, without
// validating. Callers apply overrides (flags) and then Validate. An empty
// path returns the defaults.
func ReadFile(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		k := koanf.New(".")
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config from %q: %w", path, err)
		}
		if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
			return nil, fmt.Errorf("parsing config from %q: %w", path, err)
		}
	}
	return cfg, nil
}

// Load reads and validates the config file at path.
func Load(path string) (*Config, error) {
	cfg, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

var validProviders = map[string]bool{"gemini": true, "anthropic": true, "mock": true}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if !validLogLevels[c.LogLevel] {
		return NewConfigError(fmt.Sprintf("log_level %q must be one of debug, info, warn, error", c.LogLevel))
	}

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return NewConfigError("server.port must be between 1 and 65535")
	}

	if !validProviders[c.Provider.Name] {
		return NewConfigError(fmt.Sprintf("provider.name %q must be one of gemini, anthropic, mock", c.Provider.Name))
	}
	if c.Provider.Name == "mock" && c.Provider.ScenarioPath == "" {
		return NewConfigError("provider.scenario_path must be set for the mock provider")
	}
	if c.Provider.MaxTokens < 1 {
		return NewConfigError("provider.max_tokens must be at least 1")
	}
	if c.Provider.Temperature < 0 || c.Provider.Temperature > 2 {
		return NewConfigError("provider.temperature must be between 0 and 2")
	}
	if c.Provider.MaxRetries < 0 {
		return NewConfigError("provider.max_retries must not be negative")
	}

	if c.Session.MaxIterations < 1 || c.Session.MaxIterations > 20 {
		return NewConfigError("session.max_iterations must be between 1 and 20")
	}
	if c.Session.TimeoutSeconds < 1 {
		return NewConfigError("session.timeout_seconds must be at least 1")
	}

	if c.Sources.GCPProject == "" && c.Sources.FixturesPath == "" {
		return NewConfigError("either sources.gcp_project or sources.fixtures_path must be set")
	}
	if c.Sources.PatentLimit < 1 {
		return NewConfigError("sources.patent_limit must be at least 1")
	}
	if c.Sources.CacheSize < 0 {
		return NewConfigError("sources.cache_size must not be negative")
	}

	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		return NewConfigError("tracing.endpoint must be set when tracing is enabled")
	}

	return nil
}

// ConfigError represents a configuration error.
type ConfigError struct {
	message string
}

// NewConfigError creates a new configuration error.
func NewConfigError(message string) *ConfigError {
	return &ConfigError{message: message}
}

// Error returns the error message.
func (e *ConfigError) Error() string {
	return e.message
}
