// Package config provides configuration loading using koanf.
// Precedence: environment (optionally seeded from a .env file) → compiled defaults.
package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"

	"github.com/aelexs/realtime-chat-client/internal/domain"
)

// DefaultAPIURL is the local development endpoint used when API_URL is unset.
const DefaultAPIURL = "http://localhost:8000"

// Config holds all client configuration.
type Config struct {
	// Environment identifier: "local", "dev", "prod"
	Environment string `koanf:"environment"`

	// Logging configuration
	Log LogConfig `koanf:"log"`

	// Chat server API. The realtime channel scheme follows the API scheme.
	API APIConfig `koanf:"api"`

	// WebSocket dial configuration
	WS WSConfig `koanf:"ws"`

	// OpenTelemetry configuration
	OTEL OTELConfig `koanf:"otel"`

	// Terminal presentation
	Terminal TerminalConfig `koanf:"terminal"`
}

// LogConfig holds structured logger configuration.
type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

// APIConfig holds the chat server endpoint.
type APIConfig struct {
	URL     string        `koanf:"url"`
	Timeout time.Duration `koanf:"timeout"` // Per directory request
}

// WSConfig holds realtime channel configuration.
type WSConfig struct {
	DialTimeout time.Duration `koanf:"dialtimeout"`
}

// TerminalConfig holds presentation settings.
type TerminalConfig struct {
	Colours bool `koanf:"colours"`
}

// OTELConfig holds OpenTelemetry configuration.
type OTELConfig struct {
	Endpoint    string `koanf:"endpoint"` // Empty disables OTLP export
	ServiceName string `koanf:"servicename"`
}

// defaults returns a Config with compiled default values.
func defaults() *Config {
	return &Config{
		Environment: "local",
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		API: APIConfig{
			URL:     DefaultAPIURL,
			Timeout: domain.DirectoryTimeout,
		},
		WS: WSConfig{
			DialTimeout: domain.DialTimeout,
		},
		OTEL: OTELConfig{
			ServiceName: "chat-client",
		},
		Terminal: TerminalConfig{
			Colours: true,
		},
	}
}

// envKeys maps the environment variables the client reads to config keys.
// Everything else in the environment is ignored.
var envKeys = map[string]string{
	"ENVIRONMENT":       "environment",
	"LOG_LEVEL":         "log.level",
	"LOG_FORMAT":        "log.format",
	"API_URL":           "api.url",
	"API_TIMEOUT":       "api.timeout",
	"WS_DIALTIMEOUT":    "ws.dialtimeout",
	"OTEL_ENDPOINT":     "otel.endpoint",
	"OTEL_SERVICE_NAME": "otel.servicename",
	"TERMINAL_COLOURS":  "terminal.colours",
}

// Load loads configuration following the precedence:
// 1. Environment variables (highest)
// 2. Compiled defaults (lowest)
//
// Only the variables in envKeys are read (API_URL → api.url,
// OTEL_SERVICE_NAME → otel.servicename).
func Load(ctx context.Context) (*Config, error) {
	k := koanf.New(".")

	cfg := defaults()

	// An empty key makes the provider skip the variable.
	err := k.Load(env.Provider("", ".", func(s string) string {
		return envKeys[s]
	}), nil)
	if err != nil {
		return nil, fmt.Errorf("load env vars: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// An explicitly empty API_URL falls back to the development endpoint.
	if strings.TrimSpace(cfg.API.URL) == "" {
		cfg.API.URL = DefaultAPIURL
	}

	if err := validateRequired(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadDotEnv seeds the process environment from the given files. Variables
// already set win. Missing files are ignored; any other read error is returned.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", p, err)
		}
	}
	return nil
}

// validateRequired checks that required configuration is present and usable.
func validateRequired(cfg *Config) error {
	u, err := url.Parse(cfg.API.URL)
	if err != nil {
		return fmt.Errorf("%w: api.url: %v", domain.ErrConfigRequired, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: api.url must be http or https, got %q", domain.ErrConfigRequired, cfg.API.URL)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: api.url has no host", domain.ErrConfigRequired)
	}

	// In production the endpoint must be chosen explicitly.
	if cfg.IsProd() && cfg.API.URL == DefaultAPIURL {
		return fmt.Errorf("%w: api.url", domain.ErrConfigRequired)
	}

	if cfg.API.Timeout <= 0 {
		return fmt.Errorf("%w: api.timeout must be positive", domain.ErrConfigRequired)
	}
	if cfg.WS.DialTimeout <= 0 {
		return fmt.Errorf("%w: ws.dialtimeout must be positive", domain.ErrConfigRequired)
	}

	return nil
}

// APIEndpoint returns the parsed API URL. Load has already validated it.
func (c *Config) APIEndpoint() *url.URL {
	u, err := url.Parse(c.API.URL)
	if err != nil {
		return &url.URL{Scheme: "http", Host: "localhost:8000"}
	}
	return u
}

// IsLocal returns true if running in local development environment.
func (c *Config) IsLocal() bool {
	return c.Environment == "local"
}

// IsProd returns true if running in production environment.
func (c *Config) IsProd() bool {
	return c.Environment == "prod"
}
