// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tripdesk Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/samber/oops"
)

// PasswordResetService issues and redeems password reset tokens.
type PasswordResetService struct {
	accounts AccountRepository
	hasher   PasswordHasher
	notifier ResetNotifier
	logger   *slog.Logger
	recorder Recorder
	now      func() time.Time
}

// NewPasswordResetService creates a new PasswordResetService.
func NewPasswordResetService(accounts AccountRepository, hasher PasswordHasher, notifier ResetNotifier, opts ...Option) (*PasswordResetService, error) {
	if accounts == nil {
		return nil, oops.Code("RESET_SERVICE_INVALID").Errorf("accounts repository is required")
	}
	if hasher == nil {
		return nil, oops.Code("RESET_SERVICE_INVALID").Errorf("password hasher is required")
	}
	if notifier == nil {
		return nil, oops.Code("RESET_SERVICE_INVALID").Errorf("reset notifier is required")
	}
	o := newOptions(opts)
	return &PasswordResetService{
		accounts: accounts,
		hasher:   hasher,
		notifier: notifier,
		logger:   o.logger,
		recorder: o.recorder,
		now:      o.now,
	}, nil
}

// NewPasswordResetServiceWithLogger creates a PasswordResetService that logs
// to logger.
func NewPasswordResetServiceWithLogger(accounts AccountRepository, hasher PasswordHasher, notifier ResetNotifier, logger *slog.Logger, opts ...Option) (*PasswordResetService, error) {
	return NewPasswordResetService(accounts, hasher, notifier, append(opts, WithLogger(logger))...)
}

// Issue stores a fresh reset token for the account registered under email,
// replacing any earlier one, and mails it. Unknown and inactive accounts
// succeed without doing anything so callers cannot probe which emails exist.
func (s *PasswordResetService) Issue(ctx context.Context, email string) error {
	if err := ValidateEmail(email); err != nil {
		return err
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.recorder.RecordResetEmail(ResetEmailSkipped)
			return nil
		}
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "get account by email").
			Wrap(err)
	}
	if !account.IsActive {
		s.logger.Debug("reset requested for inactive account", "account_id", account.ID.String())
		s.recorder.RecordResetEmail(ResetEmailSkipped)
		return nil
	}

	token, hash, err := GenerateResetToken()
	if err != nil {
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "generate reset token").
			Wrap(err)
	}

	expiresAt := s.now().Add(ResetTokenExpiry)
	if err := s.accounts.SetResetToken(ctx, account.ID, hash, expiresAt); err != nil {
		return oops.Code("RESET_REQUEST_FAILED").
			With("operation", "store reset token").
			With("account_id", account.ID.String()).
			Wrap(err)
	}

	if err := s.notifier.SendResetLink(ctx, account.Email, token, expiresAt); err != nil {
		s.recorder.RecordResetEmail(ResetEmailFailed)
		// Not wrapped: the transport's code would shadow this one.
		return oops.Code(CodeResetDeliveryFailed).
			With("account_id", account.ID.String()).
			With("cause", err.Error()).
			Errorf("reset email could not be delivered")
	}
	s.recorder.RecordResetEmail(ResetEmailSent)
	return nil
}

// Redeem sets a new password using a reset token. The password policy is
// checked before the token, so a weak password never consumes a token.
// Wrong, expired and already used tokens all fail with RESET_TOKEN_INVALID.
func (s *PasswordResetService) Redeem(ctx context.Context, token, newPassword string) (*AdminAccount, error) {
	if err := ValidatePassword(newPassword); err != nil {
		return nil, err
	}
	if token == "" {
		return nil, invalidResetToken()
	}

	passwordHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return nil, oops.Code("RESET_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	account, err := s.accounts.RedeemResetToken(ctx, HashResetToken(token), passwordHash, s.now())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, invalidResetToken()
		}
		return nil, oops.Code("RESET_FAILED").
			With("operation", "redeem reset token").
			Wrap(err)
	}
	return account, nil
}

func invalidResetToken() error {
	return oops.Code(CodeResetTokenInvalid).
		With("reason", "token").
		Errorf("invalid or expired token")
}
