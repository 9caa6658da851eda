// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tripdesk Contributors

package config

import (
	"os"

	"github.com/samber/oops"

	"github.com/tripdesk/tripdesk/internal/auth"
)

// Environment variables holding secrets.
const (
	EnvDatabaseURL  = "DATABASE_URL"
	EnvJWTSecret    = "TRIPDESK_JWT_SECRET"
	EnvSeedPassword = "TRIPDESK_SEED_PASSWORD" //nolint:gosec // G101: variable name, not a credential
	EnvSMTPPassword = "TRIPDESK_SMTP_PASSWORD" //nolint:gosec // G101: variable name, not a credential
)

// Secrets are read from the environment only.
type Secrets struct {
	DatabaseURL  string
	JWTSecret    []byte
	SeedPassword string
	SMTPPassword string
}

// LoadSecrets reads secrets with getenv, which defaults to os.Getenv.
func LoadSecrets(getenv func(string) string) Secrets {
	if getenv == nil {
		getenv = os.Getenv
	}
	return Secrets{
		DatabaseURL:  getenv(EnvDatabaseURL),
		JWTSecret:    []byte(getenv(EnvJWTSecret)),
		SeedPassword: getenv(EnvSeedPassword),
		SMTPPassword: getenv(EnvSMTPPassword),
	}
}

// RequireDatabase checks that a database URL is set.
func (s Secrets) RequireDatabase() error {
	if s.DatabaseURL == "" {
		return oops.Code("CONFIG_INVALID").
			With("env", EnvDatabaseURL).
			Errorf("%s environment variable is required", EnvDatabaseURL)
	}
	return nil
}

// RequireSessionSecret checks that the signing secret is long enough.
func (s Secrets) RequireSessionSecret() error {
	if len(s.JWTSecret) < auth.MinSessionSecretSize {
		return oops.Code("CONFIG_INVALID").
			With("env", EnvJWTSecret).
			Errorf("%s must be at least %d bytes", EnvJWTSecret, auth.MinSessionSecretSize)
	}
	return nil
}
