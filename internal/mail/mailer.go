// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tripdesk Contributors

// Package mail delivers console email over a pooled SMTP connection.
package mail

import (
	"context"
	"crypto/tls"
	"log/slog"
	"net/smtp"

	"github.com/knadh/smtppool"
	"github.com/samber/oops"
)

// Message is one outbound email.
type Message struct {
	To      []string
	Subject string
	HTML    string
	Text    string
}

// Mailer sends email.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

// SMTPMailer sends through a smtppool connection pool.
type SMTPMailer struct {
	pool *smtppool.Pool
	from string
}

// NewSMTPMailer opens a pool against t.
func NewSMTPMailer(t *Transport) (*SMTPMailer, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}

	var auth smtp.Auth
	if t.Username != "" || t.Password != "" {
		auth = smtp.PlainAuth("", t.Username, t.Password, t.Host)
	}
	var tlsConfig *tls.Config
	if t.TLS {
		tlsConfig = &tls.Config{
			ServerName:         t.Host,
			InsecureSkipVerify: t.InsecureSkipVerify, //nolint:gosec // operator opt-in for test relays
			MinVersion:         tls.VersionTLS12,
		}
	}

	pool, err := smtppool.New(smtppool.Opt{
		Host:            t.Host,
		Port:            t.Port,
		MaxConns:        t.Connections,
		IdleTimeout:     t.Timeout,
		PoolWaitTimeout: t.Timeout,
		TLSConfig:       tlsConfig,
		Auth:            auth,
	})
	if err != nil {
		return nil, oops.Code("MAIL_POOL_FAILED").With("host", t.Host).With("port", t.Port).Wrap(err)
	}
	return &SMTPMailer{pool: pool, from: t.From}, nil
}

// Send delivers msg. The pool has no cancellation, so ctx is only checked
// before the send starts.
func (m *SMTPMailer) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return oops.Code("MAIL_SEND_FAILED").Wrap(err)
	}
	err := m.pool.Send(smtppool.Email{
		From:    m.from,
		To:      msg.To,
		Subject: msg.Subject,
		HTML:    []byte(msg.HTML),
		Text:    []byte(msg.Text),
	})
	if err != nil {
		return oops.Code("MAIL_SEND_FAILED").With("subject", msg.Subject).Wrap(err)
	}
	return nil
}

// Close drains the pool.
func (m *SMTPMailer) Close() {
	m.pool.Close()
}

// LogMailer writes messages to a logger instead of sending them. It backs
// local development when no transport file is configured.
type LogMailer struct {
	logger *slog.Logger
}

// NewLogMailer creates a LogMailer.
func NewLogMailer(logger *slog.Logger) *LogMailer {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogMailer{logger: logger}
}

// Send logs msg at info level.
func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.logger.Info("email not sent, no transport configured",
		"to", msg.To,
		"subject", msg.Subject,
		"text", msg.Text)
	return nil
}

var (
	_ Mailer = (*SMTPMailer)(nil)
	_ Mailer = (*LogMailer)(nil)
)
