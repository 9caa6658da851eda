// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tripdesk Contributors

package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Session token configuration.
const (
	SessionTokenExpiry   = 7 * 24 * time.Hour
	SessionTokenIssuer   = "tripdesk"
	MinSessionSecretSize = 32
)

// SessionClaims is the payload of a session token. It is a snapshot taken at
// issue time; callers that need live state re-load the account.
type SessionClaims struct {
	Email string `json:"email"`
	Role  Role   `json:"role"`
	jwt.RegisteredClaims
}

// AccountID parses the subject claim.
func (c *SessionClaims) AccountID() (ulid.ULID, error) {
	id, err := ulid.Parse(c.Subject)
	if err != nil {
		return ulid.ULID{}, oops.Code(CodeSessionInvalid).With("subject", c.Subject).Wrap(err)
	}
	return id, nil
}

// SessionIssuer signs and verifies stateless session tokens with HS256.
// No per-token state is kept, so a token stays valid until it expires.
type SessionIssuer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// SessionOption configures a SessionIssuer.
type SessionOption func(*SessionIssuer)

// WithSessionTTL overrides SessionTokenExpiry.
func WithSessionTTL(ttl time.Duration) SessionOption {
	return func(s *SessionIssuer) { s.ttl = ttl }
}

// WithSessionClock overrides the clock used for issuing and verifying.
func WithSessionClock(now func() time.Time) SessionOption {
	return func(s *SessionIssuer) { s.now = now }
}

// NewSessionIssuer creates a SessionIssuer. The secret must be at least
// MinSessionSecretSize bytes.
func NewSessionIssuer(secret []byte, opts ...SessionOption) (*SessionIssuer, error) {
	if len(secret) < MinSessionSecretSize {
		return nil, oops.Code("SESSION_SECRET_INVALID").
			With("min_bytes", MinSessionSecretSize).
			Errorf("session secret must be at least %d bytes", MinSessionSecretSize)
	}
	s := &SessionIssuer{
		secret: append([]byte(nil), secret...),
		ttl:    SessionTokenExpiry,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.ttl <= 0 {
		return nil, oops.Code("SESSION_TTL_INVALID").With("ttl", s.ttl.String()).Errorf("session ttl must be positive")
	}
	return s, nil
}

// Issue signs a token for account. Returns the token and its expiry.
func (s *SessionIssuer) Issue(account *AdminAccount) (string, time.Time, error) {
	now := s.now()
	expiresAt := now.Add(s.ttl)
	claims := SessionClaims{
		Email: account.Email,
		Role:  account.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   account.ID.String(),
			Issuer:    SessionTokenIssuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", time.Time{}, oops.Code("SESSION_SIGN_FAILED").
			With("account_id", account.ID.String()).
			Wrap(err)
	}
	return token, expiresAt, nil
}

// Verify checks the signature and expiry of token. A well-formed token with a
// valid signature past its expiry fails with SESSION_EXPIRED; anything else
// that does not verify fails with SESSION_INVALID.
func (s *SessionIssuer) Verify(token string) (*SessionClaims, error) {
	if token == "" {
		return nil, oops.Code(CodeSessionTokenEmpty).Errorf("session token cannot be empty")
	}

	claims := &SessionClaims{}
	_, err := jwt.ParseWithClaims(token, claims,
		func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(SessionTokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, oops.Code(CodeSessionExpired).Errorf("session has expired")
	default:
		return nil, oops.Code(CodeSessionInvalid).With("reason", err.Error()).Errorf("invalid session token")
	}

	if claims.Subject == "" {
		return nil, oops.Code(CodeSessionInvalid).Errorf("session token has no subject")
	}
	return claims, nil
}
