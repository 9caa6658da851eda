// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tripdesk Contributors

package auth_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/tripdesk/tripdesk/internal/auth"
	"github.com/tripdesk/tripdesk/internal/auth/mocks"
	"github.com/tripdesk/tripdesk/pkg/errutil"
)

type resetFixture struct {
	repo     *mocks.MockAccountRepository
	hasher   *mocks.MockPasswordHasher
	notifier *mocks.MockResetNotifier
	recorder *mocks.MockRecorder
	svc      *auth.PasswordResetService
}

func newResetFixture(t *testing.T) *resetFixture {
	t.Helper()
	f := &resetFixture{
		repo:     mocks.NewMockAccountRepository(t),
		hasher:   mocks.NewMockPasswordHasher(t),
		notifier: mocks.NewMockResetNotifier(t),
		recorder: mocks.NewMockRecorder(t),
	}
	svc, err := auth.NewPasswordResetService(f.repo, f.hasher, f.notifier,
		auth.WithClock(func() time.Time { return testNow }),
		auth.WithRecorder(f.recorder))
	require.NoError(t, err)
	f.svc = svc
	return f
}

func TestNewPasswordResetService_NilDependencies(t *testing.T) {
	repo := mocks.NewMockAccountRepository(t)
	hasher := mocks.NewMockPasswordHasher(t)
	notifier := mocks.NewMockResetNotifier(t)

	tests := []struct {
		name     string
		repo     auth.AccountRepository
		hasher   auth.PasswordHasher
		notifier auth.ResetNotifier
		want     string
	}{
		{"nil repository", nil, hasher, notifier, "accounts repository is required"},
		{"nil hasher", repo, nil, notifier, "password hasher is required"},
		{"nil notifier", repo, hasher, nil, "reset notifier is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := auth.NewPasswordResetService(tt.repo, tt.hasher, tt.notifier)
			require.Error(t, err)
			assert.Nil(t, svc)
			assert.Contains(t, err.Error(), tt.want)
			errutil.AssertErrorCode(t, err, "RESET_SERVICE_INVALID")
		})
	}
}

func TestPasswordResetService_Issue(t *testing.T) {
	ctx := context.Background()

	t.Run("stores hash and mails plaintext", func(t *testing.T) {
		f := newResetFixture(t)
		account := testAccount(t)
		var storedHash string
		var mailedToken string

		f.repo.On("GetByEmail", ctx, account.Email).Return(account, nil)
		f.repo.On("SetResetToken", ctx, account.ID, mock.AnythingOfType("string"), testNow.Add(auth.ResetTokenExpiry)).
			Run(func(args mock.Arguments) { storedHash = args.String(2) }).
			Return(nil)
		f.notifier.On("SendResetLink", ctx, account.Email, mock.AnythingOfType("string"), testNow.Add(auth.ResetTokenExpiry)).
			Run(func(args mock.Arguments) { mailedToken = args.String(2) }).
			Return(nil)
		f.recorder.On("RecordResetEmail", auth.ResetEmailSent).Once()

		require.NoError(t, f.svc.Issue(ctx, account.Email))
		assert.Len(t, mailedToken, 64)
		assert.NotEqual(t, mailedToken, storedHash)
		assert.Equal(t, auth.HashResetToken(mailedToken), storedHash)
	})

	t.Run("unknown email succeeds silently", func(t *testing.T) {
		f := newResetFixture(t)
		f.repo.On("GetByEmail", ctx, "ghost@tripdesk.example").Return(nil, auth.ErrNotFound)
		f.recorder.On("RecordResetEmail", auth.ResetEmailSkipped).Once()

		require.NoError(t, f.svc.Issue(ctx, "ghost@tripdesk.example"))
		f.notifier.AssertNotCalled(t, "SendResetLink", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("inactive account succeeds silently", func(t *testing.T) {
		f := newResetFixture(t)
		account := testAccount(t)
		account.IsActive = false
		f.repo.On("GetByEmail", ctx, account.Email).Return(account, nil)
		f.recorder.On("RecordResetEmail", auth.ResetEmailSkipped).Once()

		require.NoError(t, f.svc.Issue(ctx, account.Email))
		f.repo.AssertNotCalled(t, "SetResetToken", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("invalid email is a validation error", func(t *testing.T) {
		f := newResetFixture(t)
		err := f.svc.Issue(ctx, "not-an-email")
		errutil.AssertErrorCode(t, err, auth.CodeValidation)
	})

	t.Run("delivery failure keeps the token", func(t *testing.T) {
		f := newResetFixture(t)
		account := testAccount(t)
		f.repo.On("GetByEmail", ctx, account.Email).Return(account, nil)
		f.repo.On("SetResetToken", ctx, account.ID, mock.Anything, mock.Anything).Return(nil)
		f.notifier.On("SendResetLink", ctx, account.Email, mock.Anything, mock.Anything).Return(errors.New("smtp: 421 try later"))
		f.recorder.On("RecordResetEmail", auth.ResetEmailFailed).Once()

		err := f.svc.Issue(ctx, account.Email)
		errutil.AssertErrorCode(t, err, auth.CodeResetDeliveryFailed)
		assert.Equal(t, auth.CategoryDependency, auth.Classify(err))
		f.repo.AssertNumberOfCalls(t, "SetResetToken", 1)
	})

	t.Run("store failure is a dependency error", func(t *testing.T) {
		f := newResetFixture(t)
		account := testAccount(t)
		f.repo.On("GetByEmail", ctx, account.Email).Return(account, nil)
		f.repo.On("SetResetToken", ctx, account.ID, mock.Anything, mock.Anything).Return(errors.New("connection reset"))

		err := f.svc.Issue(ctx, account.Email)
		errutil.AssertErrorCode(t, err, "RESET_REQUEST_FAILED")
		f.notifier.AssertNotCalled(t, "SendResetLink", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}

func TestPasswordResetService_Redeem(t *testing.T) {
	ctx := context.Background()

	t.Run("sets the new password", func(t *testing.T) {
		f := newResetFixture(t)
		account := testAccount(t)
		f.hasher.On("Hash", "GoodPass1!").Return("$argon2id$new", nil)
		f.repo.On("RedeemResetToken", ctx, auth.HashResetToken("tok"), "$argon2id$new", testNow).Return(account, nil)

		got, err := f.svc.Redeem(ctx, "tok", "GoodPass1!")
		require.NoError(t, err)
		assert.Equal(t, account.ID, got.ID)
	})

	t.Run("policy violations never touch the store", func(t *testing.T) {
		f := newResetFixture(t)

		_, err := f.svc.Redeem(ctx, "tok", "short1!")
		errutil.AssertErrorCode(t, err, auth.CodePasswordTooShort)

		_, err = f.svc.Redeem(ctx, "tok", "alllowercase1!")
		errutil.AssertErrorCode(t, err, auth.CodePasswordTooWeak)

		f.repo.AssertNotCalled(t, "RedeemResetToken", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unknown, expired or used token", func(t *testing.T) {
		f := newResetFixture(t)
		f.hasher.On("Hash", "GoodPass1!").Return("$argon2id$new", nil)
		f.repo.On("RedeemResetToken", ctx, mock.Anything, mock.Anything, testNow).Return(nil, auth.ErrNotFound)

		_, err := f.svc.Redeem(ctx, "stale", "GoodPass1!")
		errutil.AssertErrorCode(t, err, auth.CodeResetTokenInvalid)
		errutil.AssertErrorContext(t, err, "reason", "token")
		assert.Equal(t, "invalid or expired token", err.Error())
	})

	t.Run("empty token", func(t *testing.T) {
		f := newResetFixture(t)
		_, err := f.svc.Redeem(ctx, "", "GoodPass1!")
		errutil.AssertErrorCode(t, err, auth.CodeResetTokenInvalid)
	})

	t.Run("store failure is a dependency error", func(t *testing.T) {
		f := newResetFixture(t)
		f.hasher.On("Hash", "GoodPass1!").Return("$argon2id$new", nil)
		f.repo.On("RedeemResetToken", ctx, mock.Anything, mock.Anything, mock.Anything).Return(nil, errors.New("deadlock detected"))

		_, err := f.svc.Redeem(ctx, "tok", "GoodPass1!")
		errutil.AssertErrorCode(t, err, "RESET_FAILED")
		assert.Equal(t, auth.CategoryDependency, auth.Classify(err))
	})
}

func TestPasswordResetService_LogsInactiveRequest(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	repo := mocks.NewMockAccountRepository(t)
	account := testAccount(t)
	account.IsActive = false
	repo.On("GetByEmail", mock.Anything, account.Email).Return(account, nil)

	svc, err := auth.NewPasswordResetServiceWithLogger(repo, mocks.NewMockPasswordHasher(t), mocks.NewMockResetNotifier(t), logger)
	require.NoError(t, err)

	require.NoError(t, svc.Issue(context.Background(), account.Email))
	assert.Contains(t, buf.String(), "reset requested for inactive account")
	assert.Contains(t, buf.String(), account.ID.String())
}
