// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tripdesk Contributors

package authtest

import (
	"context"
	"sync"
	"time"

	"github.com/tripdesk/tripdesk/internal/auth"
)

var (
	_ auth.ResetNotifier    = (*Outbox)(nil)
	_ auth.IdentityProvider = StaticProvider(nil)
)

// Clock is a settable clock for tests.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock returns a Clock set to start.
func NewClock(start time.Time) *Clock {
	return &Clock{now: start}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward by d.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// ResetMail is one captured reset email.
type ResetMail struct {
	Email     string
	Token     string
	ExpiresAt time.Time
}

// Outbox is a ResetNotifier that records what it was asked to send. Set Err
// to make delivery fail.
type Outbox struct {
	mu   sync.Mutex
	sent []ResetMail
	Err  error
}

// SendResetLink records the mail, or returns Err.
func (o *Outbox) SendResetLink(_ context.Context, email, token string, expiresAt time.Time) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.Err != nil {
		return o.Err
	}
	o.sent = append(o.sent, ResetMail{Email: email, Token: token, ExpiresAt: expiresAt})
	return nil
}

// Sent returns a copy of the captured mail.
func (o *Outbox) Sent() []ResetMail {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]ResetMail(nil), o.sent...)
}

// Last returns the most recent mail, or false when nothing was sent.
func (o *Outbox) Last() (ResetMail, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.sent) == 0 {
		return ResetMail{}, false
	}
	return o.sent[len(o.sent)-1], true
}

// StaticProvider maps access tokens to fixed identities. Unknown tokens fail
// with a provider error.
type StaticProvider map[string]*auth.ExternalIdentity

// ErrUnknownToken is returned by StaticProvider for unmapped tokens.
var ErrUnknownToken = providerError("unknown access token")

type providerError string

func (e providerError) Error() string { return string(e) }

// FetchIdentity returns a copy of the mapped identity.
func (p StaticProvider) FetchIdentity(_ context.Context, credential string) (*auth.ExternalIdentity, error) {
	id, ok := p[credential]
	if !ok {
		return nil, ErrUnknownToken
	}
	c := *id
	return &c, nil
}
