// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tripdesk Contributors

package mail

import (
	"bytes"
	"context"
	"html/template"
	"net/url"
	"time"

	"github.com/samber/oops"

	"github.com/tripdesk/tripdesk/internal/auth"
)

const resetSubject = "Reset your Tripdesk console password"

var resetTemplate = template.Must(template.New("reset").Parse(`<!DOCTYPE html>
<html>
<body>
<p>Someone asked to reset the password for your Tripdesk console account.</p>
<p><a href="{{.Link}}">Choose a new password</a></p>
<p>The link expires at {{.ExpiresAt}}. If you did not ask for this, you can ignore this email.</p>
</body>
</html>
`))

// ResetEmail renders the reset message for link.
func ResetEmail(link string, expiresAt time.Time) (subject, html, text string, err error) {
	expiry := expiresAt.UTC().Format("15:04 MST on 2 Jan 2006")
	var buf bytes.Buffer
	if err := resetTemplate.Execute(&buf, struct {
		Link      string
		ExpiresAt string
	}{link, expiry}); err != nil {
		return "", "", "", oops.Code("MAIL_TEMPLATE_FAILED").Wrap(err)
	}
	text = "Reset your password: " + link + "\nThe link expires at " + expiry + "."
	return resetSubject, buf.String(), text, nil
}

// ResetNotifier mails reset links. It implements auth.ResetNotifier.
type ResetNotifier struct {
	mailer  Mailer
	baseURL *url.URL
}

// NewResetNotifier creates a ResetNotifier that links to resetURL with the
// token in the "token" query parameter.
func NewResetNotifier(mailer Mailer, resetURL string) (*ResetNotifier, error) {
	u, err := url.Parse(resetURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, oops.Code("MAIL_CONFIG_INVALID").
			With("field", "reset_url").
			Errorf("reset url %q must be absolute", resetURL)
	}
	return &ResetNotifier{mailer: mailer, baseURL: u}, nil
}

// Link builds the reset link for token.
func (n *ResetNotifier) Link(token string) string {
	u := *n.baseURL
	q := u.Query()
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String()
}

// SendResetLink mails the reset link for token to email.
func (n *ResetNotifier) SendResetLink(ctx context.Context, email, token string, expiresAt time.Time) error {
	subject, html, text, err := ResetEmail(n.Link(token), expiresAt)
	if err != nil {
		return err
	}
	return n.mailer.Send(ctx, Message{To: []string{email}, Subject: subject, HTML: html, Text: text})
}

var _ auth.ResetNotifier = (*ResetNotifier)(nil)
