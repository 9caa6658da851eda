// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tripdesk Contributors

package auth

import (
	"log/slog"
	"time"
)

// Attempt flows reported to a Recorder.
const (
	FlowPassword = "password"
	FlowExternal = "external"
	FlowReset    = "reset"
	FlowSession  = "session"
)

// Reset email outcomes reported to a Recorder.
const (
	ResetEmailSent    = "sent"
	ResetEmailFailed  = "failed"
	ResetEmailSkipped = "skipped"
)

// OutcomeSuccess is the attempt outcome for a successful flow. Failed
// attempts report their Category name.
const OutcomeSuccess = "success"

// Recorder receives security counters. Implementations must be safe for
// concurrent use.
type Recorder interface {
	RecordAttempt(flow, outcome string)
	RecordLockout()
	RecordResetEmail(outcome string)
}

type nopRecorder struct{}

func (nopRecorder) RecordAttempt(string, string) {}
func (nopRecorder) RecordLockout()               {}
func (nopRecorder) RecordResetEmail(string)      {}

// outcomeOf maps an operation result to a Recorder outcome label.
func outcomeOf(err error) string {
	if err == nil {
		return OutcomeSuccess
	}
	return Classify(err).String()
}

type options struct {
	logger   *slog.Logger
	now      func() time.Time
	recorder Recorder
	resets   *PasswordResetService
	provider IdentityProvider
	linker   *IdentityLinker
}

func newOptions(opts []Option) options {
	o := options{
		logger:   slog.Default(),
		now:      time.Now,
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Option configures Service and PasswordResetService.
type Option func(*options)

// WithLogger sets the logger used for best-effort failures.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithClock overrides the clock. All lockout and token expiry decisions use it.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(o *options) {
		if r != nil {
			o.recorder = r
		}
	}
}

// WithPasswordReset enables the forgot/reset password flows on Service.
func WithPasswordReset(resets *PasswordResetService) Option {
	return func(o *options) { o.resets = resets }
}

// WithExternalIdentity enables ExternalLogin on Service.
func WithExternalIdentity(provider IdentityProvider, linker *IdentityLinker) Option {
	return func(o *options) {
		o.provider = provider
		o.linker = linker
	}
}
