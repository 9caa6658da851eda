// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tripdesk Contributors

package auth

import (
	"unicode"

	"github.com/samber/oops"
)

// MinPasswordLength is the shortest password the policy accepts.
const MinPasswordLength = 8

// Policy violation reasons, reported to the form that submitted the password.
const (
	ReasonLength     = "length"
	ReasonComplexity = "complexity"
)

// ValidatePassword checks a new password against the policy: at least
// MinPasswordLength characters and at least one upper-case letter, one
// lower-case letter, one digit and one symbol. A symbol is any rune that is
// neither a letter nor a digit, so spaces count.
func ValidatePassword(password string) error {
	if len([]rune(password)) < MinPasswordLength {
		return oops.Code(CodePasswordTooShort).
			With("reason", ReasonLength).
			With("min", MinPasswordLength).
			Errorf("password must be at least %d characters", MinPasswordLength)
	}

	var upper, lower, digit, symbol bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case !unicode.IsLetter(r):
			symbol = true
		}
	}

	if !upper || !lower || !digit || !symbol {
		return oops.Code(CodePasswordTooWeak).
			With("reason", ReasonComplexity).
			With("upper", upper).
			With("lower", lower).
			With("digit", digit).
			With("symbol", symbol).
			Errorf("password must contain upper-case, lower-case, digit and symbol characters")
	}
	return nil
}

// PolicyReason returns the violation reason carried by a ValidatePassword
// error, or "" if err is not a policy violation.
func PolicyReason(err error) string {
	switch Code(err) {
	case CodePasswordTooShort:
		return ReasonLength
	case CodePasswordTooWeak:
		return ReasonComplexity
	default:
		return ""
	}
}
