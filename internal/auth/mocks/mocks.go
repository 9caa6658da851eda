// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tripdesk Contributors

// Package mocks provides testify mocks of the auth interfaces.
package mocks

import (
	"context"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/stretchr/testify/mock"

	"github.com/tripdesk/tripdesk/internal/auth"
)

// Compile-time interface checks.
var (
	_ auth.AccountRepository = (*MockAccountRepository)(nil)
	_ auth.PasswordHasher    = (*MockPasswordHasher)(nil)
	_ auth.ResetNotifier     = (*MockResetNotifier)(nil)
	_ auth.IdentityProvider  = (*MockIdentityProvider)(nil)
	_ auth.Recorder          = (*MockRecorder)(nil)
)

type testingT interface {
	mock.TestingT
	Cleanup(func())
}

// MockAccountRepository is a mock of auth.AccountRepository.
type MockAccountRepository struct {
	mock.Mock
}

// NewMockAccountRepository creates a mock whose expectations are asserted
// when the test ends.
func NewMockAccountRepository(t testingT) *MockAccountRepository {
	m := &MockAccountRepository{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func accountResult(args mock.Arguments) (*auth.AdminAccount, error) {
	var account *auth.AdminAccount
	if v := args.Get(0); v != nil {
		account = v.(*auth.AdminAccount)
	}
	return account, args.Error(1)
}

func (m *MockAccountRepository) Create(ctx context.Context, account *auth.AdminAccount) error {
	return m.Called(ctx, account).Error(0)
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id ulid.ULID) (*auth.AdminAccount, error) {
	return accountResult(m.Called(ctx, id))
}

func (m *MockAccountRepository) GetByEmail(ctx context.Context, email string) (*auth.AdminAccount, error) {
	return accountResult(m.Called(ctx, email))
}

func (m *MockAccountRepository) RecordLoginFailure(ctx context.Context, id ulid.ULID, attempts int, lockUntil *time.Time, now time.Time) error {
	return m.Called(ctx, id, attempts, lockUntil, now).Error(0)
}

func (m *MockAccountRepository) RecordLoginSuccess(ctx context.Context, id ulid.ULID, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

func (m *MockAccountRepository) LinkExternalIdentity(ctx context.Context, id ulid.ULID, identity *auth.ExternalIdentity, at time.Time) (*auth.AdminAccount, error) {
	return accountResult(m.Called(ctx, id, identity, at))
}

func (m *MockAccountRepository) UpdatePassword(ctx context.Context, id ulid.ULID, passwordHash string) error {
	return m.Called(ctx, id, passwordHash).Error(0)
}

func (m *MockAccountRepository) SetResetToken(ctx context.Context, id ulid.ULID, tokenHash string, expiresAt time.Time) error {
	return m.Called(ctx, id, tokenHash, expiresAt).Error(0)
}

func (m *MockAccountRepository) RedeemResetToken(ctx context.Context, tokenHash, passwordHash string, now time.Time) (*auth.AdminAccount, error) {
	return accountResult(m.Called(ctx, tokenHash, passwordHash, now))
}

func (m *MockAccountRepository) SetActive(ctx context.Context, id ulid.ULID, active bool) error {
	return m.Called(ctx, id, active).Error(0)
}

func (m *MockAccountRepository) RecordVerified(ctx context.Context, id ulid.ULID, at time.Time) error {
	return m.Called(ctx, id, at).Error(0)
}

// MockPasswordHasher is a mock of auth.PasswordHasher.
type MockPasswordHasher struct {
	mock.Mock
}

// NewMockPasswordHasher creates a mock whose expectations are asserted when
// the test ends.
func NewMockPasswordHasher(t testingT) *MockPasswordHasher {
	m := &MockPasswordHasher{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockPasswordHasher) Hash(password string) (string, error) {
	args := m.Called(password)
	return args.String(0), args.Error(1)
}

func (m *MockPasswordHasher) Verify(password, hash string) (bool, error) {
	args := m.Called(password, hash)
	return args.Bool(0), args.Error(1)
}

func (m *MockPasswordHasher) NeedsUpgrade(hash string) bool {
	return m.Called(hash).Bool(0)
}

// MockResetNotifier is a mock of auth.ResetNotifier.
type MockResetNotifier struct {
	mock.Mock
}

// NewMockResetNotifier creates a mock whose expectations are asserted when
// the test ends.
func NewMockResetNotifier(t testingT) *MockResetNotifier {
	m := &MockResetNotifier{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockResetNotifier) SendResetLink(ctx context.Context, email, token string, expiresAt time.Time) error {
	return m.Called(ctx, email, token, expiresAt).Error(0)
}

// MockIdentityProvider is a mock of auth.IdentityProvider.
type MockIdentityProvider struct {
	mock.Mock
}

// NewMockIdentityProvider creates a mock whose expectations are asserted
// when the test ends.
func NewMockIdentityProvider(t testingT) *MockIdentityProvider {
	m := &MockIdentityProvider{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockIdentityProvider) FetchIdentity(ctx context.Context, credential string) (*auth.ExternalIdentity, error) {
	args := m.Called(ctx, credential)
	var identity *auth.ExternalIdentity
	if v := args.Get(0); v != nil {
		identity = v.(*auth.ExternalIdentity)
	}
	return identity, args.Error(1)
}

// MockRecorder is a mock of auth.Recorder. Tests that do not care about
// metrics should use Maybe() expectations or leave the recorder unset.
type MockRecorder struct {
	mock.Mock
}

// NewMockRecorder creates a mock whose expectations are asserted when the
// test ends.
func NewMockRecorder(t testingT) *MockRecorder {
	m := &MockRecorder{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func (m *MockRecorder) RecordAttempt(flow, outcome string) {
	m.Called(flow, outcome)
}

func (m *MockRecorder) RecordLockout() {
	m.Called()
}

func (m *MockRecorder) RecordResetEmail(outcome string) {
	m.Called(outcome)
}
