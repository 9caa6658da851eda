// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tripdesk Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/samber/oops"

	"github.com/tripdesk/tripdesk/pkg/errutil"
)

// LoginResult is returned by successful password and external logins.
type LoginResult struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expiresAt"`
	Account   AccountView `json:"account"`
}

// Service coordinates the account security flows.
type Service struct {
	accounts AccountRepository
	hasher   PasswordHasher
	sessions *SessionIssuer
	resets   *PasswordResetService
	provider IdentityProvider
	linker   *IdentityLinker
	recorder Recorder
	logger   *slog.Logger
	now      func() time.Time
}

// NewAuthService creates a new Service.
func NewAuthService(accounts AccountRepository, hasher PasswordHasher, sessions *SessionIssuer, opts ...Option) (*Service, error) {
	if accounts == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("accounts repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("password hasher is required")
	}
	if sessions == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("session issuer is required")
	}
	o := newOptions(opts)
	if (o.provider == nil) != (o.linker == nil) {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("identity provider and linker must be configured together")
	}
	return &Service{
		accounts: accounts,
		hasher:   hasher,
		sessions: sessions,
		resets:   o.resets,
		provider: o.provider,
		linker:   o.linker,
		recorder: o.recorder,
		logger:   o.logger,
		now:      o.now,
	}, nil
}

// NewAuthServiceWithLogger creates a Service that logs best-effort failures
// to logger.
func NewAuthServiceWithLogger(accounts AccountRepository, hasher PasswordHasher, sessions *SessionIssuer, logger *slog.Logger, opts ...Option) (*Service, error) {
	return NewAuthService(accounts, hasher, sessions, append(opts, WithLogger(logger))...)
}

// dummyPasswordHash is verified when no account matches, so unknown emails
// cost the same as wrong passwords. It matches no password.
//
//nolint:gosec // G101: not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

func invalidCredentials() error {
	return oops.Code(CodeInvalidCredentials).Errorf("invalid email or password")
}

// Login authenticates with email and password.
//
// Unknown email and wrong password are indistinguishable. Inactive, locked
// and password-less accounts are reported as such. A locked account is
// rejected before its password is checked, and the failure that reaches the
// threshold returns AUTH_ACCOUNT_LOCKED itself.
func (s *Service) Login(ctx context.Context, email, password string) (result *LoginResult, err error) {
	ctx, done := s.begin(ctx, FlowPassword)
	defer func() { done(err) }()

	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, oops.Code(CodeValidation).With("field", "password").Errorf("password is required")
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			_, _ = s.hasher.Verify(password, dummyPasswordHash) //nolint:errcheck // timing only
			return nil, invalidCredentials()
		}
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "get account by email").
			Wrap(err)
	}

	now := s.now()
	if !account.IsActive {
		return nil, oops.Code(CodeAccountInactive).
			With("account_id", account.ID.String()).
			Errorf("account is inactive")
	}
	if status := account.Lockout(now); status.IsLocked {
		return nil, lockedError(status.Remaining)
	}
	if !account.HasPassword() {
		return nil, oops.Code(CodeNoPassword).
			With("account_id", account.ID.String()).
			Errorf("account has no password; sign in with the external provider")
	}

	ok, err := s.hasher.Verify(password, account.PasswordHash)
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "verify password").
			With("account_id", account.ID.String()).
			Wrap(err)
	}
	if !ok {
		return nil, s.recordFailure(ctx, account, now)
	}

	s.completePasswordLogin(ctx, account, password, now)
	return s.issue(account)
}

// recordFailure persists a failed password check. The returned error is the
// one Login reports.
func (s *Service) recordFailure(ctx context.Context, account *AdminAccount, now time.Time) error {
	locked := account.RecordFailure(now)
	if err := s.accounts.RecordLoginFailure(ctx, account.ID, account.LoginAttempts, account.LockUntil, now); err != nil {
		return oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "record failed attempt").
			With("account_id", account.ID.String()).
			Wrap(err)
	}
	if locked {
		s.recorder.RecordLockout()
		s.logger.Info("account locked after repeated failures",
			"account_id", account.ID.String(),
			"attempts", account.LoginAttempts,
			"lock_until", account.LockUntil)
		return lockedError(LockoutDuration)
	}
	return invalidCredentials()
}

// completePasswordLogin clears lockout, stamps last_login and upgrades the
// hash. Failures are logged; the login still succeeds.
func (s *Service) completePasswordLogin(ctx context.Context, account *AdminAccount, password string, now time.Time) {
	account.RecordSuccess(now)
	account.LastLogin = &now
	account.UpdatedAt = now
	if err := s.accounts.RecordLoginSuccess(ctx, account.ID, now); err != nil {
		errutil.LogWarn(s.logger, "failed to record successful login", err)
	}

	if !s.hasher.NeedsUpgrade(account.PasswordHash) {
		return
	}
	if err := account.SetPassword(s.hasher, password, now); err != nil {
		errutil.LogWarn(s.logger, "failed to rehash password", err)
		return
	}
	if err := s.accounts.UpdatePassword(ctx, account.ID, account.PasswordHash); err != nil {
		errutil.LogWarn(s.logger, "failed to store upgraded password hash", err)
	}
}

func (s *Service) issue(account *AdminAccount) (*LoginResult, error) {
	token, expiresAt, err := s.sessions.Issue(account)
	if err != nil {
		return nil, oops.Code("AUTH_LOGIN_FAILED").
			With("operation", "issue session").
			Wrap(err)
	}
	return &LoginResult{Token: token, ExpiresAt: expiresAt, Account: account.View()}, nil
}

// ForgotPassword starts a password reset for email. It returns nil for
// unknown and inactive accounts; RESET_DELIVERY_FAILED means the token was
// stored but the email did not go out.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	if s.resets == nil {
		return oops.Code("RESET_UNAVAILABLE").Errorf("password reset is not configured")
	}
	return s.resets.Issue(ctx, email)
}

// ResetPassword redeems a reset token and sets newPassword.
func (s *Service) ResetPassword(ctx context.Context, token, newPassword string) (view *AccountView, err error) {
	ctx, done := s.begin(ctx, FlowReset)
	defer func() { done(err) }()

	if s.resets == nil {
		return nil, oops.Code("RESET_UNAVAILABLE").Errorf("password reset is not configured")
	}
	account, err := s.resets.Redeem(ctx, token, newPassword)
	if err != nil {
		return nil, err
	}
	s.logger.Info("password reset completed", "account_id", account.ID.String())
	v := account.View()
	return &v, nil
}

// VerifySession validates a session token and re-loads its account, so a
// deactivated account loses access before its token expires.
func (s *Service) VerifySession(ctx context.Context, token string) (view *AccountView, claims *SessionClaims, err error) {
	ctx, done := s.begin(ctx, FlowSession)
	defer func() { done(err) }()

	claims, err = s.sessions.Verify(token)
	if err != nil {
		return nil, nil, err
	}
	id, err := claims.AccountID()
	if err != nil {
		return nil, nil, err
	}

	account, err := s.accounts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, nil, oops.Code(CodeSessionAccount).
				With("account_id", id.String()).
				Errorf("session account no longer exists")
		}
		return nil, nil, oops.Code("SESSION_VERIFY_FAILED").
			With("operation", "get account by id").
			Wrap(err)
	}
	if !account.IsActive {
		return nil, nil, oops.Code(CodeSessionAccount).
			With("account_id", id.String()).
			Errorf("session account is inactive")
	}

	now := s.now()
	if err := s.accounts.RecordVerified(ctx, account.ID, now); err != nil {
		errutil.LogWarn(s.logger, "failed to record session verification", err)
	} else {
		account.LastVerified = &now
	}

	v := account.View()
	return &v, claims, nil
}

// ExternalLogin authenticates with an external provider credential,
// linking or provisioning the account.
func (s *Service) ExternalLogin(ctx context.Context, credential string) (result *LoginResult, err error) {
	ctx, done := s.begin(ctx, FlowExternal)
	defer func() { done(err) }()

	if s.provider == nil {
		return nil, oops.Code("EXTERNAL_LOGIN_UNAVAILABLE").Errorf("external identity provider is not configured")
	}
	if credential == "" {
		return nil, oops.Code(CodeValidation).With("field", "access_token").Errorf("access token is required")
	}

	identity, err := s.provider.FetchIdentity(ctx, credential)
	if err != nil {
		return nil, oops.Code("EXTERNAL_LOGIN_FAILED").
			With("operation", "fetch identity").
			Wrap(err)
	}

	account, err := s.linker.Link(ctx, identity)
	if err != nil {
		return nil, err
	}
	return s.issue(account)
}

// EnsureSeedAccount creates the bootstrap superadmin if no account holds
// email. An existing account is left untouched. Reports whether an account
// was created.
func (s *Service) EnsureSeedAccount(ctx context.Context, email, password string) (bool, error) {
	if err := ValidateEmail(email); err != nil {
		return false, err
	}

	_, err := s.accounts.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return false, nil
	case !errors.Is(err, ErrNotFound):
		return false, oops.Code("SEED_FAILED").
			With("operation", "get account by email").
			Wrap(err)
	}

	if err := ValidatePassword(password); err != nil {
		return false, err
	}

	now := s.now()
	account, err := NewAdminAccount(email, RoleSuperAdmin, now)
	if err != nil {
		return false, err
	}
	if err := account.SetPassword(s.hasher, password, now); err != nil {
		return false, oops.Code("SEED_FAILED").With("operation", "hash password").Wrap(err)
	}

	if err := s.accounts.Create(ctx, account); err != nil {
		if errors.Is(err, ErrConflict) {
			return false, nil
		}
		return false, oops.Code("SEED_FAILED").
			With("operation", "create account").
			Wrap(err)
	}
	s.logger.Info("seed account created", "account_id", account.ID.String(), "email", account.Email)
	return true, nil
}

// SetActive activates or deactivates an account. Deactivation takes effect
// on the next session verification.
func (s *Service) SetActive(ctx context.Context, id ulid.ULID, active bool) error {
	if err := s.accounts.SetActive(ctx, id, active); err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code(CodeValidation).
				With("account_id", id.String()).
				Errorf("account does not exist")
		}
		return oops.Code("ACCOUNT_SET_ACTIVE_FAILED").
			With("account_id", id.String()).
			Wrap(err)
	}
	s.logger.Info("account active flag changed", "account_id", id.String(), "active", active)
	return nil
}
