// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tripdesk Contributors

package auth

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"
)

// Role is the administrative tier of an account.
type Role string

// Account roles.
const (
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
)

// ParseRole parses a stored or configured role name.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleAdmin, "":
		return RoleAdmin, nil
	case RoleSuperAdmin:
		return RoleSuperAdmin, nil
	default:
		return "", oops.Code(CodeValidation).With("role", s).Errorf("unknown role %q", s)
	}
}

// MaxEmailLength bounds the stored email address.
const MaxEmailLength = 254

// emailRegex is intentionally loose: one @, no whitespace, a dot in the domain.
var emailRegex = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)

// NormalizeEmail returns the canonical form used for lookups and uniqueness.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ValidateEmail checks that email looks like a deliverable address.
func ValidateEmail(email string) error {
	email = NormalizeEmail(email)
	if email == "" {
		return oops.Code(CodeValidation).With("field", "email").Errorf("email is required")
	}
	if len(email) > MaxEmailLength {
		return oops.Code(CodeValidation).
			With("field", "email").
			With("max", MaxEmailLength).
			Errorf("email must be at most %d characters", MaxEmailLength)
	}
	if !emailRegex.MatchString(email) {
		return oops.Code(CodeValidation).With("field", "email").Errorf("email is not a valid address")
	}
	return nil
}

// AdminAccount is one administrator of the console.
type AdminAccount struct {
	ID               ulid.ULID
	Email            string
	PasswordHash     string // empty for accounts provisioned by an external identity
	Role             Role
	IsActive         bool
	LoginAttempts    int
	LockUntil        *time.Time
	ExternalID       *string
	EmailVerified    bool
	GivenName        string
	FamilyName       string
	AvatarURL        string
	ResetTokenHash   *string
	ResetTokenExpiry *time.Time
	LastLogin        *time.Time
	LastVerified     *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// NewAdminAccount creates an active account with a validated, normalized email.
func NewAdminAccount(email string, role Role, now time.Time) (*AdminAccount, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if role == "" {
		role = RoleAdmin
	}
	if _, err := ParseRole(string(role)); err != nil {
		return nil, err
	}
	return &AdminAccount{
		ID:        ulid.Make(),
		Email:     NormalizeEmail(email),
		Role:      role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// HasPassword reports whether password login is possible for this account.
func (a *AdminAccount) HasPassword() bool {
	return a.PasswordHash != ""
}

// SetPassword hashes plaintext and stores the result. It is the only place a
// password hash is computed, so saving an account for any other reason never
// rehashes.
func (a *AdminAccount) SetPassword(hasher PasswordHasher, plaintext string, now time.Time) error {
	hash, err := hasher.Hash(plaintext)
	if err != nil {
		return oops.Code("ACCOUNT_SET_PASSWORD_FAILED").With("account_id", a.ID.String()).Wrap(err)
	}
	a.PasswordHash = hash
	a.UpdatedAt = now
	return nil
}

// HasPendingReset reports whether an unexpired reset token is stored.
func (a *AdminAccount) HasPendingReset(now time.Time) bool {
	return a.ResetTokenHash != nil && a.ResetTokenExpiry != nil && a.ResetTokenExpiry.After(now)
}

// AccountView is the projection of an account that may leave the subsystem.
// It never carries the password hash or reset token fields.
type AccountView struct {
	ID             string     `json:"id"`
	Email          string     `json:"email"`
	Role           Role       `json:"role"`
	IsActive       bool       `json:"isActive"`
	EmailVerified  bool       `json:"emailVerified"`
	GivenName      string     `json:"givenName,omitempty"`
	FamilyName     string     `json:"familyName,omitempty"`
	AvatarURL      string     `json:"avatarUrl,omitempty"`
	HasPassword    bool       `json:"hasPassword"`
	ExternalLinked bool       `json:"externalLinked"`
	LastLogin      *time.Time `json:"lastLogin,omitempty"`
	LastVerified   *time.Time `json:"lastVerified,omitempty"`
	CreatedAt      time.Time  `json:"createdAt"`
}

// View returns the sanitized projection of the account.
func (a *AdminAccount) View() AccountView {
	return AccountView{
		ID:             a.ID.String(),
		Email:          a.Email,
		Role:           a.Role,
		IsActive:       a.IsActive,
		EmailVerified:  a.EmailVerified,
		GivenName:      a.GivenName,
		FamilyName:     a.FamilyName,
		AvatarURL:      a.AvatarURL,
		HasPassword:    a.HasPassword(),
		ExternalLinked: a.ExternalID != nil,
		LastLogin:      a.LastLogin,
		LastVerified:   a.LastVerified,
		CreatedAt:      a.CreatedAt,
	}
}

// AccountRepository manages admin account persistence.
//
// Every write is a single statement over the columns its flow owns. No
// operation writes back a whole account read earlier.
type AccountRepository interface {
	// Create stores a new account. Returns ErrConflict if the normalized
	// email or external ID is already taken.
	Create(ctx context.Context, account *AdminAccount) error

	// GetByID retrieves an account by ID.
	GetByID(ctx context.Context, id ulid.ULID) (*AdminAccount, error)

	// GetByEmail retrieves an account by email (case-insensitive).
	// Returns ErrNotFound if no account has the given email.
	GetByEmail(ctx context.Context, email string) (*AdminAccount, error)

	// RecordLoginFailure stores the failure counter and lock computed by
	// AdminAccount.RecordFailure. A lock that is live at now is left as
	// stored, so a write based on a stale read never releases it.
	RecordLoginFailure(ctx context.Context, id ulid.ULID, attempts int, lockUntil *time.Time, now time.Time) error

	// RecordLoginSuccess clears the failure counter and lock and sets
	// last_login.
	RecordLoginSuccess(ctx context.Context, id ulid.ULID, at time.Time) error

	// LinkExternalIdentity binds identity to the account in one conditional
	// write: the account must be active and either unlinked or already linked
	// to identity.ExternalID. It sets email_verified, copies non-empty profile
	// fields, sets last_login and returns the updated account. Returns
	// ErrConflict when the condition fails or another account holds the
	// external ID.
	LinkExternalIdentity(ctx context.Context, id ulid.ULID, identity *ExternalIdentity, at time.Time) (*AdminAccount, error)

	// UpdatePassword replaces only the password hash.
	UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error

	// SetResetToken stores a reset token hash and its expiry, replacing any
	// previous token.
	SetResetToken(ctx context.Context, id ulid.ULID, tokenHash string, expiresAt time.Time) error

	// RedeemResetToken atomically finds the active account holding tokenHash
	// with an expiry after now, sets passwordHash, clears the token pair and the
	// lockout state, and returns the updated account. Returns ErrNotFound when
	// no such account exists.
	RedeemResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (*AdminAccount, error)

	// SetActive toggles the active flag.
	SetActive(ctx context.Context, id ulid.ULID, active bool) error

	// RecordVerified sets last_verified only.
	RecordVerified(ctx context.Context, id ulid.ULID, at time.Time) error
}
