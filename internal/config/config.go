// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tripdesk Contributors

// Package config loads tripdesk configuration from a YAML file, command
// line flags and environment secrets.
package config

import (
	"net/url"
	"time"

	"github.com/samber/oops"

	"github.com/tripdesk/tripdesk/internal/auth"
)

// Config is the file-backed configuration. Secrets are never read from the
// file; see Secrets.
type Config struct {
	Log      LogConfig      `koanf:"log" json:"log,omitempty"`
	HTTP     HTTPConfig     `koanf:"http" json:"http,omitempty"`
	Metrics  MetricsConfig  `koanf:"metrics" json:"metrics,omitempty"`
	Database DatabaseConfig `koanf:"database" json:"database,omitempty"`
	Auth     AuthConfig     `koanf:"auth" json:"auth,omitempty"`
	Mail     MailConfig     `koanf:"mail" json:"mail,omitempty"`
	OAuth    OAuthConfig    `koanf:"oauth" json:"oauth,omitempty"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Format string `koanf:"format" json:"format,omitempty" jsonschema:"enum=json,enum=text"`
	Level  string `koanf:"level" json:"level,omitempty" jsonschema:"enum=debug,enum=info,enum=warn,enum=error"`
}

// HTTPConfig controls the API listener.
type HTTPConfig struct {
	Addr            string   `koanf:"addr" json:"addr,omitempty"`
	AllowedOrigins  []string `koanf:"allowed_origins" json:"allowed_origins,omitempty"`
	ShutdownTimeout string   `koanf:"shutdown_timeout" json:"shutdown_timeout,omitempty" jsonschema:"description=Go duration such as 15s"`
}

// MetricsConfig controls the observability listener. An empty Addr
// disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr" json:"addr,omitempty"`
}

// DatabaseConfig tunes the pool. The URL comes from DATABASE_URL.
type DatabaseConfig struct {
	MaxConns       int32 `koanf:"max_conns" json:"max_conns,omitempty" jsonschema:"minimum=0"`
	ConnectRetries int   `koanf:"connect_retries" json:"connect_retries,omitempty" jsonschema:"minimum=0"`
	AutoMigrate    bool  `koanf:"auto_migrate" json:"auto_migrate,omitempty"`
}

// AuthConfig holds account security policy.
type AuthConfig struct {
	SessionTTL    string   `koanf:"session_ttl" json:"session_ttl,omitempty" jsonschema:"description=Go duration such as 168h"`
	SeedEmail     string   `koanf:"seed_email" json:"seed_email,omitempty"`
	AllowedEmails []string `koanf:"allowed_emails" json:"allowed_emails,omitempty"`
}

// MailConfig locates the SMTP transport and the reset page.
type MailConfig struct {
	TransportFile string `koanf:"transport_file" json:"transport_file,omitempty"`
	ResetURL      string `koanf:"reset_url" json:"reset_url,omitempty"`
}

// OAuthConfig configures external identity providers.
type OAuthConfig struct {
	Google GoogleConfig `koanf:"google" json:"google,omitempty"`
}

// GoogleConfig configures Google sign-in.
type GoogleConfig struct {
	Enabled     bool   `koanf:"enabled" json:"enabled,omitempty"`
	UserInfoURL string `koanf:"userinfo_url" json:"userinfo_url,omitempty"`
	Timeout     string `koanf:"timeout" json:"timeout,omitempty"`
}

// Default returns the configuration used when nothing overrides it.
func Default() Config {
	return Config{
		Log:      LogConfig{Format: "json", Level: "info"},
		HTTP:     HTTPConfig{Addr: ":8080", ShutdownTimeout: "15s"},
		Metrics:  MetricsConfig{Addr: "127.0.0.1:9100"},
		Database: DatabaseConfig{ConnectRetries: 5},
		Auth:     AuthConfig{SessionTTL: auth.SessionTokenExpiry.String()},
		Mail:     MailConfig{ResetURL: "http://localhost:3000/reset-password"},
		OAuth:    OAuthConfig{Google: GoogleConfig{Timeout: "10s"}},
	}
}

// SessionTTL parses Auth.SessionTTL.
func (c *Config) SessionTTL() time.Duration {
	d, _ := time.ParseDuration(c.Auth.SessionTTL) //nolint:errcheck // checked by Validate
	return d
}

// ShutdownTimeout parses HTTP.ShutdownTimeout.
func (c *Config) ShutdownTimeout() time.Duration {
	d, _ := time.ParseDuration(c.HTTP.ShutdownTimeout) //nolint:errcheck // checked by Validate
	return d
}

// GoogleTimeout parses OAuth.Google.Timeout.
func (c *Config) GoogleTimeout() time.Duration {
	d, _ := time.ParseDuration(c.OAuth.Google.Timeout) //nolint:errcheck // checked by Validate
	return d
}

// AllowList returns the emails that may self-provision through an external
// login: auth.allowed_emails plus the seed email.
func (c *Config) AllowList() *auth.AllowList {
	emails := append([]string{c.Auth.SeedEmail}, c.Auth.AllowedEmails...)
	return auth.NewAllowList(emails...)
}

// Validate checks values the schema cannot express.
func (c *Config) Validate() error {
	for field, value := range map[string]string{
		"http.shutdown_timeout": c.HTTP.ShutdownTimeout,
		"auth.session_ttl":      c.Auth.SessionTTL,
		"oauth.google.timeout":  c.OAuth.Google.Timeout,
	} {
		d, err := time.ParseDuration(value)
		if err != nil {
			return invalid(field).Wrapf(err, "%s is not a duration", field)
		}
		if d <= 0 {
			return invalid(field).Errorf("%s must be positive", field)
		}
	}

	switch c.Log.Format {
	case "json", "text":
	default:
		return invalid("log.format").Errorf("log.format must be json or text, got %q", c.Log.Format)
	}
	if c.HTTP.Addr == "" {
		return invalid("http.addr").Errorf("http.addr is required")
	}

	if c.Auth.SeedEmail != "" {
		if err := auth.ValidateEmail(c.Auth.SeedEmail); err != nil {
			return invalid("auth.seed_email").Errorf("auth.seed_email: %v", err)
		}
	}
	for _, email := range c.Auth.AllowedEmails {
		if err := auth.ValidateEmail(email); err != nil {
			return invalid("auth.allowed_emails").With("email", email).Errorf("auth.allowed_emails: %v", err)
		}
	}

	u, err := url.Parse(c.Mail.ResetURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return invalid("mail.reset_url").Errorf("mail.reset_url must be an absolute URL")
	}
	return nil
}

func invalid(field string) oops.OopsErrorBuilder {
	return oops.Code("CONFIG_INVALID").With("field", field)
}
