// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tripdesk Contributors

// Package oauth resolves external identity provider credentials into
// identities the auth package can link.
package oauth

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/samber/oops"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/tripdesk/tripdesk/internal/auth"
)

// DefaultUserInfoURL is Google's OpenID Connect userinfo endpoint.
const DefaultUserInfoURL = "https://www.googleapis.com/oauth2/v3/userinfo"

const (
	defaultTimeout  = 10 * time.Second
	maxResponseSize = 1 << 20
)

// GoogleConfig configures a GoogleProvider.
type GoogleConfig struct {
	// UserInfoURL overrides the userinfo endpoint.
	UserInfoURL string
	Timeout     time.Duration
	// Client overrides the instrumented default HTTP client.
	Client *http.Client
}

// GoogleProvider exchanges a Google OAuth access token for the account's
// userinfo claims.
type GoogleProvider struct {
	userInfoURL string
	client      *http.Client
}

// NewGoogleProvider creates a GoogleProvider.
func NewGoogleProvider(cfg GoogleConfig) *GoogleProvider {
	if cfg.UserInfoURL == "" {
		cfg.UserInfoURL = DefaultUserInfoURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	client := cfg.Client
	if client == nil {
		client = &http.Client{
			Timeout:   cfg.Timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}
	}
	return &GoogleProvider{userInfoURL: cfg.UserInfoURL, client: client}
}

type googleUserInfo struct {
	Sub           string       `json:"sub"`
	Email         string       `json:"email"`
	EmailVerified verifiedFlag `json:"email_verified"`
	GivenName     string       `json:"given_name"`
	FamilyName    string       `json:"family_name"`
	Picture       string       `json:"picture"`
}

// verifiedFlag accepts both true and "true"; older userinfo versions send
// the flag as a string.
type verifiedFlag bool

func (f *verifiedFlag) UnmarshalJSON(data []byte) error {
	if s, err := strconv.Unquote(string(data)); err == nil {
		data = []byte(s)
	}
	v, err := strconv.ParseBool(string(data))
	if err != nil {
		return err
	}
	*f = verifiedFlag(v)
	return nil
}

// FetchIdentity calls the userinfo endpoint with accessToken as the bearer
// credential.
func (p *GoogleProvider) FetchIdentity(ctx context.Context, accessToken string) (*auth.ExternalIdentity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.userInfoURL, nil)
	if err != nil {
		return nil, userInfoFailed("build request").Wrap(err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, userInfoFailed("request userinfo").Wrap(err)
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, userInfoFailed("read response").Wrap(err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, userInfoFailed("request userinfo").
			With("status", resp.StatusCode).
			Errorf("userinfo returned status %d", resp.StatusCode)
	}

	var info googleUserInfo
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, userInfoFailed("decode response").Wrap(err)
	}
	if info.Sub == "" {
		return nil, userInfoFailed("decode response").Errorf("userinfo response has no subject")
	}

	return &auth.ExternalIdentity{
		ExternalID:    info.Sub,
		Email:         info.Email,
		EmailVerified: bool(info.EmailVerified),
		GivenName:     info.GivenName,
		FamilyName:    info.FamilyName,
		AvatarURL:     info.Picture,
	}, nil
}

func userInfoFailed(operation string) oops.OopsErrorBuilder {
	return oops.Code("OAUTH_USERINFO_FAILED").With("provider", "google").With("operation", operation)
}

var _ auth.IdentityProvider = (*GoogleProvider)(nil)
