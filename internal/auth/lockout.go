// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tripdesk Contributors

package auth

import (
	"time"
)

// Lockout configuration.
const (
	// LockoutThreshold is the number of consecutive failures that locks an account.
	LockoutThreshold = 5

	// LockoutDuration is how long a locked account rejects every attempt.
	LockoutDuration = 2 * time.Hour
)

// LockoutStatus describes the lockout state of an account at a point in time.
type LockoutStatus struct {
	// IsLocked indicates the account rejects attempts without checking the password.
	IsLocked bool

	// Remaining is the time until the lock expires. Zero when unlocked.
	Remaining time.Duration

	// AttemptsLeft is the number of failures allowed before the account locks.
	AttemptsLeft int
}

// CheckLockout evaluates the lockout state from the stored counter and lock
// timestamp. An expired lock counts as unlocked with a fresh counter.
func CheckLockout(attempts int, lockUntil *time.Time, now time.Time) LockoutStatus {
	if IsLockedAt(lockUntil, now) {
		return LockoutStatus{IsLocked: true, Remaining: lockUntil.Sub(now)}
	}
	if lockUntil != nil {
		attempts = 0
	}
	left := LockoutThreshold - attempts
	if left < 0 {
		left = 0
	}
	return LockoutStatus{AttemptsLeft: left}
}

// IsLockedAt returns true if the lockout time is after now.
func IsLockedAt(lockUntil *time.Time, now time.Time) bool {
	return lockUntil != nil && lockUntil.After(now)
}

// IsLocked returns true if the account is locked at now.
func (a *AdminAccount) IsLocked(now time.Time) bool {
	return IsLockedAt(a.LockUntil, now)
}

// Lockout returns the account's lockout status at now.
func (a *AdminAccount) Lockout(now time.Time) LockoutStatus {
	return CheckLockout(a.LoginAttempts, a.LockUntil, now)
}

// RecordFailure counts a failed password check made while unlocked and
// reports whether this failure locked the account. Failures from before an
// expired lock are not carried over.
func (a *AdminAccount) RecordFailure(now time.Time) bool {
	if a.LockUntil != nil && !a.LockUntil.After(now) {
		a.LoginAttempts = 0
		a.LockUntil = nil
	}
	a.LoginAttempts++
	a.UpdatedAt = now
	if a.LoginAttempts >= LockoutThreshold {
		until := now.Add(LockoutDuration)
		a.LockUntil = &until
		return true
	}
	return false
}

// RecordSuccess clears the failure counter and lock. It reports whether
// anything changed.
func (a *AdminAccount) RecordSuccess(now time.Time) bool {
	if a.LoginAttempts == 0 && a.LockUntil == nil {
		return false
	}
	a.LoginAttempts = 0
	a.LockUntil = nil
	a.UpdatedAt = now
	return true
}
