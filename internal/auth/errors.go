// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tripdesk Contributors

package auth

import (
	"errors"
	"time"

	"github.com/samber/oops"
)

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when a write would violate a uniqueness invariant
// (normalized email or external identity).
var ErrConflict = errors.New("conflict")

// Category groups error codes by how callers should present them.
type Category int

// Error categories.
const (
	// CategoryDependency covers store, mail and provider failures. The cause
	// must not be shown to the caller.
	CategoryDependency Category = iota
	// CategoryValidation is malformed input rejected before touching the store.
	CategoryValidation
	// CategoryAuthentication is wrong credentials or an account that cannot log in.
	CategoryAuthentication
	// CategoryToken is an invalid or expired session or reset token.
	CategoryToken
	// CategoryIdentityConflict is a refused external identity assertion.
	CategoryIdentityConflict
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryValidation:
		return "validation"
	case CategoryAuthentication:
		return "authentication"
	case CategoryToken:
		return "token"
	case CategoryIdentityConflict:
		return "identity_conflict"
	default:
		return "dependency"
	}
}

// Error codes surfaced to callers.
const (
	CodeValidation         = "AUTH_VALIDATION"
	CodePasswordTooShort   = "PASSWORD_TOO_SHORT"
	CodePasswordTooWeak    = "PASSWORD_TOO_WEAK"
	CodeInvalidCredentials = "AUTH_INVALID_CREDENTIALS"
	CodeAccountLocked      = "AUTH_ACCOUNT_LOCKED"
	CodeAccountInactive    = "AUTH_ACCOUNT_INACTIVE"
	CodeNoPassword         = "AUTH_NO_PASSWORD"
	CodeSessionTokenEmpty  = "SESSION_TOKEN_EMPTY"
	CodeSessionInvalid     = "SESSION_INVALID"
	CodeSessionExpired     = "SESSION_EXPIRED"
	CodeSessionAccount     = "SESSION_ACCOUNT_INVALID"
	CodeResetTokenInvalid  = "RESET_TOKEN_INVALID"
	CodeIdentityConflict   = "IDENTITY_CONFLICT"
	CodeUnauthorizedEmail  = "IDENTITY_UNAUTHORIZED_EMAIL"
	CodeEmailUnverified    = "IDENTITY_EMAIL_UNVERIFIED"

	// CodeResetDeliveryFailed is a dependency failure: the reset email could
	// not be handed to the mail transport. The stored token is kept.
	CodeResetDeliveryFailed = "RESET_DELIVERY_FAILED"
)

var codeCategories = map[string]Category{
	CodeValidation:         CategoryValidation,
	CodePasswordTooShort:   CategoryValidation,
	CodePasswordTooWeak:    CategoryValidation,
	CodeInvalidCredentials: CategoryAuthentication,
	CodeAccountLocked:      CategoryAuthentication,
	CodeAccountInactive:    CategoryAuthentication,
	CodeNoPassword:         CategoryAuthentication,
	CodeSessionTokenEmpty:  CategoryToken,
	CodeSessionInvalid:     CategoryToken,
	CodeSessionExpired:     CategoryToken,
	CodeSessionAccount:     CategoryToken,
	CodeResetTokenInvalid:  CategoryToken,
	CodeIdentityConflict:   CategoryIdentityConflict,
	CodeUnauthorizedEmail:  CategoryIdentityConflict,
	CodeEmailUnverified:    CategoryIdentityConflict,
}

// Code returns the oops code attached to err, or "" when there is none.
func Code(err error) string {
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	code, _ := oopsErr.Code().(string)
	return code
}

// Classify returns the category of err. Anything without a known code is a
// dependency failure.
func Classify(err error) Category {
	if cat, ok := codeCategories[Code(err)]; ok {
		return cat
	}
	return CategoryDependency
}

// retryAfterKey is the oops context key carrying the remaining lock time in
// whole seconds on AUTH_ACCOUNT_LOCKED errors.
const retryAfterKey = "retry_after_seconds"

// RetryAfter returns how long a locked account stays locked, as carried by an
// AUTH_ACCOUNT_LOCKED error. The second result is false for any other error.
func RetryAfter(err error) (time.Duration, bool) {
	if Code(err) != CodeAccountLocked {
		return 0, false
	}
	oopsErr, _ := oops.AsOops(err)
	secs, ok := oopsErr.Context()[retryAfterKey].(int64)
	if !ok {
		return 0, false
	}
	return time.Duration(secs) * time.Second, true
}

// lockedError builds the AUTH_ACCOUNT_LOCKED error for a lock that lasts
// remaining more. Remaining is rounded up to the next second.
func lockedError(remaining time.Duration) error {
	secs := int64((remaining + time.Second - 1) / time.Second)
	return oops.Code(CodeAccountLocked).
		With(retryAfterKey, secs).
		Errorf("account is temporarily locked")
}
