// Package config loads UltraQC server settings from an optional config.yaml with
// environment variable overrides.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// DefaultPath is the config file read when no path is given.
const DefaultPath = "config.yaml"

// Config holds all configuration for the UltraQC server.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8000"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	Version  string `yaml:"-"`                                      // Set at load time, not from config

	// TLS configuration (optional - if both provided, server uses HTTPS)
	TLSCertPath string `yaml:"tls_cert_path" env:"TLS_CERT_PATH" env-default:""`
	TLSKeyPath  string `yaml:"tls_key_path" env:"TLS_KEY_PATH" env-default:""`

	Database DatabaseConfig `yaml:"database"`
	Uploads  UploadConfig   `yaml:"uploads"`
	Auth     AuthConfig     `yaml:"auth"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"ultraqc"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"ultraqc"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// UploadConfig controls report intake and the background scheduler.
type UploadConfig struct {
	// Dir is where queued report files are written until they are treated.
	Dir string `yaml:"dir" env:"UPLOAD_DIR" env-default:"uploads"`
	// ScanInterval is the scheduler tick period.
	ScanInterval time.Duration `yaml:"scan_interval" env:"UPLOAD_SCAN_INTERVAL" env-default:"30s"`
	// MaxBytes caps a single upload. Zero disables the limit.
	MaxBytes int64 `yaml:"max_bytes" env:"UPLOAD_MAX_BYTES" env-default:"536870912"`
	// SchedulerEnabled runs the scheduler inside `serve`. Disable it to run ingestion elsewhere.
	SchedulerEnabled bool `yaml:"scheduler_enabled" env:"UPLOAD_SCHEDULER_ENABLED" env-default:"true"`
}

// AuthConfig holds authentication-related configuration.
type AuthConfig struct {
	// SecretKey signs session tokens. Required by `serve`.
	SecretKey         string        `yaml:"-" env:"SECRET_KEY"` // Secret - not in YAML
	SessionTTL        time.Duration `yaml:"session_ttl" env:"SESSION_TTL" env-default:"24h"`
	SessionCookieName string        `yaml:"session_cookie_name" env:"SESSION_COOKIE_NAME" env-default:"session_token"`
	APITokenHeader    string        `yaml:"api_token_header" env:"API_TOKEN_HEADER" env-default:"access_token"`
	APITokenCacheTTL  time.Duration `yaml:"api_token_cache_ttl" env:"API_TOKEN_CACHE_TTL" env-default:"5m"`
}

// Load reads configuration from path (DefaultPath if empty) with environment variable
// overrides. A missing file at the default path is not an error; env vars and defaults apply.
// The version parameter is injected at build time and set on the returned Config.
func Load(path, version string) (*Config, error) {
	cfg := &Config{
		Version: version,
	}

	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}

	_, statErr := os.Stat(path)
	switch {
	case statErr == nil:
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	case errors.Is(statErr, os.ErrNotExist) && !explicit:
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment: %w", err)
		}
	default:
		return nil, fmt.Errorf("failed to read %s: %w", path, statErr)
	}

	if err := cfg.validateTLS(); err != nil {
		return nil, fmt.Errorf("invalid TLS configuration: %w", err)
	}
	if err := cfg.validateUploads(); err != nil {
		return nil, fmt.Errorf("invalid upload configuration: %w", err)
	}

	// Auto-derive BaseURL from Port if not explicitly set
	// Use HTTPS scheme if TLS is configured
	if cfg.BaseURL == "" {
		scheme := "http"
		if cfg.TLSCertPath != "" {
			scheme = "https"
		}
		cfg.BaseURL = (&url.URL{
			Scheme: scheme,
			Host:   "localhost:" + cfg.Port,
		}).String()
	}

	return cfg, nil
}

// validateTLS ensures TLS configuration is valid if provided.
// Both cert and key must be provided together, and files must exist and be readable.
func (c *Config) validateTLS() error {
	certSet := c.TLSCertPath != ""
	keySet := c.TLSKeyPath != ""

	if certSet != keySet {
		return fmt.Errorf("both tls_cert_path and tls_key_path must be provided together")
	}

	if certSet {
		if _, err := os.Stat(c.TLSCertPath); err != nil {
			return fmt.Errorf("TLS cert file does not exist: %w", err)
		}
		if _, err := os.Stat(c.TLSKeyPath); err != nil {
			return fmt.Errorf("TLS key file does not exist: %w", err)
		}
	}

	return nil
}

func (c *Config) validateUploads() error {
	if c.Uploads.Dir == "" {
		return fmt.Errorf("upload dir must not be empty")
	}
	if c.Uploads.ScanInterval <= 0 {
		return fmt.Errorf("scan interval must be positive, got %s", c.Uploads.ScanInterval)
	}
	if c.Uploads.MaxBytes < 0 {
		return fmt.Errorf("max bytes must not be negative")
	}
	return nil
}

// ValidateSecrets checks the settings only `serve` needs.
func (c *Config) ValidateSecrets() error {
	if len(c.Auth.SecretKey) < 16 {
		return fmt.Errorf("SECRET_KEY must be set and at least 16 bytes")
	}
	return nil
}

// IsLocal reports whether the server runs in the local development environment.
func (c *Config) IsLocal() bool {
	return c.Env == "local"
}

// ConnectionString returns a PostgreSQL connection URL.
func (c *DatabaseConfig) ConnectionString() string {
	u := &url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(c.User, c.Password),
		Host:     fmt.Sprintf("%s:%d", c.Host, c.Port),
		Path:     "/" + c.Database,
		RawQuery: url.Values{"sslmode": {c.SSLMode}}.Encode(),
	}
	return u.String()
}
