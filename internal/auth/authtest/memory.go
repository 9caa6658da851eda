// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tripdesk Contributors

// Package authtest provides test helpers for code built on the auth package.
package authtest

import (
	"context"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/tripdesk/tripdesk/internal/auth"
)

var _ auth.AccountRepository = (*MemoryAccountRepository)(nil)

// MemoryAccountRepository is an in-memory AccountRepository with the same
// conditional writes as the Postgres one. Every read returns a copy.
type MemoryAccountRepository struct {
	mu       sync.Mutex
	accounts map[ulid.ULID]*auth.AdminAccount
}

// NewMemoryAccountRepository returns an empty repository.
func NewMemoryAccountRepository() *MemoryAccountRepository {
	return &MemoryAccountRepository{accounts: make(map[ulid.ULID]*auth.AdminAccount)}
}

func clone(a *auth.AdminAccount) *auth.AdminAccount {
	c := *a
	c.LockUntil = cloneTime(a.LockUntil)
	c.ResetTokenExpiry = cloneTime(a.ResetTokenExpiry)
	c.LastLogin = cloneTime(a.LastLogin)
	c.LastVerified = cloneTime(a.LastVerified)
	if a.ExternalID != nil {
		v := *a.ExternalID
		c.ExternalID = &v
	}
	if a.ResetTokenHash != nil {
		v := *a.ResetTokenHash
		c.ResetTokenHash = &v
	}
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// conflictLocked reports whether another account holds email or externalID.
func (r *MemoryAccountRepository) conflictLocked(self ulid.ULID, email string, externalID *string) bool {
	for id, a := range r.accounts {
		if id == self {
			continue
		}
		if a.Email == email {
			return true
		}
		if externalID != nil && a.ExternalID != nil && *a.ExternalID == *externalID {
			return true
		}
	}
	return false
}

func (r *MemoryAccountRepository) Create(_ context.Context, account *auth.AdminAccount) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := clone(account)
	c.Email = auth.NormalizeEmail(c.Email)
	if _, ok := r.accounts[c.ID]; ok || r.conflictLocked(c.ID, c.Email, c.ExternalID) {
		return auth.ErrConflict
	}
	r.accounts[c.ID] = c
	return nil
}

func (r *MemoryAccountRepository) GetByID(_ context.Context, id ulid.ULID) (*auth.AdminAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return nil, auth.ErrNotFound
	}
	return clone(a), nil
}

func (r *MemoryAccountRepository) GetByEmail(_ context.Context, email string) (*auth.AdminAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	email = auth.NormalizeEmail(email)
	for _, a := range r.accounts {
		if a.Email == email {
			return clone(a), nil
		}
	}
	return nil, auth.ErrNotFound
}

func (r *MemoryAccountRepository) RecordLoginFailure(_ context.Context, id ulid.ULID, attempts int, lockUntil *time.Time, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return auth.ErrNotFound
	}
	a.UpdatedAt = now
	if auth.IsLockedAt(a.LockUntil, now) {
		return nil
	}
	a.LoginAttempts = attempts
	a.LockUntil = cloneTime(lockUntil)
	return nil
}

func (r *MemoryAccountRepository) RecordLoginSuccess(_ context.Context, id ulid.ULID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return auth.ErrNotFound
	}
	a.LoginAttempts = 0
	a.LockUntil = nil
	a.LastLogin = &at
	a.UpdatedAt = at
	return nil
}

func (r *MemoryAccountRepository) LinkExternalIdentity(_ context.Context, id ulid.ULID, identity *auth.ExternalIdentity, at time.Time) (*auth.AdminAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok || !a.IsActive {
		return nil, auth.ErrConflict
	}
	if a.ExternalID != nil && *a.ExternalID != identity.ExternalID {
		return nil, auth.ErrConflict
	}
	externalID := identity.ExternalID
	if r.conflictLocked(id, a.Email, &externalID) {
		return nil, auth.ErrConflict
	}
	a.ExternalID = &externalID
	a.EmailVerified = true
	if identity.GivenName != "" {
		a.GivenName = identity.GivenName
	}
	if identity.FamilyName != "" {
		a.FamilyName = identity.FamilyName
	}
	if identity.AvatarURL != "" {
		a.AvatarURL = identity.AvatarURL
	}
	a.LastLogin = &at
	a.UpdatedAt = at
	return clone(a), nil
}

func (r *MemoryAccountRepository) UpdatePassword(_ context.Context, id ulid.ULID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return auth.ErrNotFound
	}
	a.PasswordHash = passwordHash
	return nil
}

func (r *MemoryAccountRepository) SetResetToken(_ context.Context, id ulid.ULID, tokenHash string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return auth.ErrNotFound
	}
	a.ResetTokenHash = &tokenHash
	a.ResetTokenExpiry = &expiresAt
	return nil
}

func (r *MemoryAccountRepository) RedeemResetToken(_ context.Context, tokenHash, passwordHash string, now time.Time) (*auth.AdminAccount, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if a.ResetTokenHash == nil || *a.ResetTokenHash != tokenHash {
			continue
		}
		if !a.IsActive || a.ResetTokenExpiry == nil || !a.ResetTokenExpiry.After(now) {
			return nil, auth.ErrNotFound
		}
		a.PasswordHash = passwordHash
		a.ResetTokenHash = nil
		a.ResetTokenExpiry = nil
		a.LoginAttempts = 0
		a.LockUntil = nil
		a.UpdatedAt = now
		return clone(a), nil
	}
	return nil, auth.ErrNotFound
}

func (r *MemoryAccountRepository) SetActive(_ context.Context, id ulid.ULID, active bool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return auth.ErrNotFound
	}
	a.IsActive = active
	return nil
}

func (r *MemoryAccountRepository) RecordVerified(_ context.Context, id ulid.ULID, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return auth.ErrNotFound
	}
	a.LastVerified = &at
	return nil
}

// Len returns the number of stored accounts.
func (r *MemoryAccountRepository) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.accounts)
}
