// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tripdesk Contributors

package auth

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/samber/oops"
)

// Reset token configuration.
const (
	ResetTokenBytes  = 32 // hex encoded to 64 chars
	ResetTokenExpiry = time.Hour
)

// GenerateResetToken creates a secure random token and its hash.
// Returns (plaintext_token, sha256_hash, error).
// The plaintext token is mailed to the user; only the hash is stored.
func GenerateResetToken() (token, hash string, err error) {
	tokenBytes := make([]byte, ResetTokenBytes)
	if _, err = rand.Read(tokenBytes); err != nil {
		return "", "", oops.Code("RESET_TOKEN_GENERATE_FAILED").
			With("requested_bytes", ResetTokenBytes).
			Wrap(err)
	}

	token = hex.EncodeToString(tokenBytes)
	return token, HashResetToken(token), nil
}

// HashResetToken computes the SHA256 hash of a token. Lookups compare hashes
// in the store, so the plaintext never needs to be persisted.
func HashResetToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}

// ResetNotifier delivers a reset token to the account holder.
type ResetNotifier interface {
	// SendResetLink delivers token to email. The token is valid until expiresAt.
	SendResetLink(ctx context.Context, email, token string, expiresAt time.Time) error
}
