// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tripdesk Contributors

package auth

import (
	"context"
	"errors"
	"time"

	"github.com/samber/oops"
)

// ExternalIdentity is a verified assertion from an external identity provider.
type ExternalIdentity struct {
	ExternalID    string
	Email         string
	EmailVerified bool
	GivenName     string
	FamilyName    string
	AvatarURL     string
}

// IdentityProvider resolves a provider credential (an OAuth access token) into
// an identity assertion.
type IdentityProvider interface {
	FetchIdentity(ctx context.Context, credential string) (*ExternalIdentity, error)
}

// AllowList is the set of emails that may be provisioned on first external
// login. The zero value allows nobody.
type AllowList struct {
	emails map[string]struct{}
}

// NewAllowList builds an AllowList from raw addresses. Blank entries are
// skipped; entries are normalized.
func NewAllowList(emails ...string) *AllowList {
	a := &AllowList{emails: make(map[string]struct{}, len(emails))}
	for _, e := range emails {
		if n := NormalizeEmail(e); n != "" {
			a.emails[n] = struct{}{}
		}
	}
	return a
}

// Allows reports whether email may be provisioned.
func (a *AllowList) Allows(email string) bool {
	if a == nil {
		return false
	}
	_, ok := a.emails[NormalizeEmail(email)]
	return ok
}

// Len returns the number of distinct entries.
func (a *AllowList) Len() int {
	if a == nil {
		return 0
	}
	return len(a.emails)
}

// IdentityLinker binds external identities to admin accounts.
type IdentityLinker struct {
	accounts AccountRepository
	allow    *AllowList
	now      func() time.Time
}

// LinkerOption configures an IdentityLinker.
type LinkerOption func(*IdentityLinker)

// WithLinkerClock overrides the clock used for last_login timestamps.
func WithLinkerClock(now func() time.Time) LinkerOption {
	return func(l *IdentityLinker) { l.now = now }
}

// NewIdentityLinker creates an IdentityLinker.
func NewIdentityLinker(accounts AccountRepository, allow *AllowList, opts ...LinkerOption) (*IdentityLinker, error) {
	if accounts == nil {
		return nil, oops.Code("IDENTITY_LINKER_INVALID").Errorf("accounts repository is required")
	}
	if allow == nil {
		allow = NewAllowList()
	}
	l := &IdentityLinker{accounts: accounts, allow: allow, now: time.Now}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Link resolves identity to an account, linking or provisioning as needed.
// Inactive accounts are refused before anything is written.
func (l *IdentityLinker) Link(ctx context.Context, identity *ExternalIdentity) (*AdminAccount, error) {
	if identity == nil || identity.ExternalID == "" {
		return nil, oops.Code(CodeValidation).With("field", "external_id").Errorf("external identity is required")
	}
	if err := ValidateEmail(identity.Email); err != nil {
		return nil, err
	}
	if !identity.EmailVerified {
		return nil, oops.Code(CodeEmailUnverified).
			With("email", NormalizeEmail(identity.Email)).
			Errorf("email address has not been verified by the provider")
	}

	now := l.now()
	account, err := l.accounts.GetByEmail(ctx, identity.Email)
	switch {
	case err == nil:
		return l.linkExisting(ctx, account, identity, now)
	case errors.Is(err, ErrNotFound):
		return l.provision(ctx, identity, now)
	default:
		return nil, oops.Code("IDENTITY_LINK_FAILED").With("operation", "get account by email").Wrap(err)
	}
}

func (l *IdentityLinker) linkExisting(ctx context.Context, account *AdminAccount, identity *ExternalIdentity, now time.Time) (*AdminAccount, error) {
	if account.ExternalID != nil && *account.ExternalID != identity.ExternalID {
		return nil, oops.Code(CodeIdentityConflict).
			With("account_id", account.ID.String()).
			Errorf("account is linked to a different external identity")
	}
	if !account.IsActive {
		return nil, oops.Code(CodeAccountInactive).
			With("account_id", account.ID.String()).
			Errorf("account is inactive")
	}

	linked, err := l.accounts.LinkExternalIdentity(ctx, account.ID, identity, now)
	if err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, oops.Code(CodeIdentityConflict).
				With("account_id", account.ID.String()).
				Errorf("account is linked to a different external identity")
		}
		return nil, oops.Code("IDENTITY_LINK_FAILED").
			With("operation", "link external identity").
			With("account_id", account.ID.String()).
			Wrap(err)
	}
	return linked, nil
}

func (l *IdentityLinker) provision(ctx context.Context, identity *ExternalIdentity, now time.Time) (*AdminAccount, error) {
	if !l.allow.Allows(identity.Email) {
		return nil, oops.Code(CodeUnauthorizedEmail).
			With("email", NormalizeEmail(identity.Email)).
			Errorf("email is not authorized for console access")
	}

	account, err := NewAdminAccount(identity.Email, RoleAdmin, now)
	if err != nil {
		return nil, err
	}
	externalID := identity.ExternalID
	account.ExternalID = &externalID
	account.EmailVerified = true
	applyProfile(account, identity)
	account.LastLogin = &now

	if err := l.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, ErrConflict) {
			return nil, oops.Code(CodeIdentityConflict).
				With("email", account.Email).
				Errorf("account already exists for this identity")
		}
		return nil, oops.Code("IDENTITY_LINK_FAILED").
			With("operation", "create account").
			Wrap(err)
	}
	return account, nil
}

// applyProfile copies non-empty profile fields so a sparse assertion does not
// erase stored values.
func applyProfile(account *AdminAccount, identity *ExternalIdentity) {
	if identity.GivenName != "" {
		account.GivenName = identity.GivenName
	}
	if identity.FamilyName != "" {
		account.FamilyName = identity.FamilyName
	}
	if identity.AvatarURL != "" {
		account.AvatarURL = identity.AvatarURL
	}
}
