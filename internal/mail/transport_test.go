// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tripdesk Contributors

package mail_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tripdesk/tripdesk/internal/mail"
	"github.com/tripdesk/tripdesk/pkg/errutil"
)

func TestLoadTransport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "smtp.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
host: smtp.tripdesk.example
port: 587
username: console
password: hunter2hunter2
from: "Tripdesk <no-reply@tripdesk.example>"
tls: true
timeout: 5s
`), 0o600))

	transport, err := mail.LoadTransport(path)
	require.NoError(t, err)
	assert.Equal(t, &mail.Transport{
		Host:        "smtp.tripdesk.example",
		Port:        587,
		Username:    "console",
		Password:    "hunter2hunter2",
		From:        "Tripdesk <no-reply@tripdesk.example>",
		TLS:         true,
		Connections: 2,
		Timeout:     5 * time.Second,
	}, transport)
}

func TestParseTransport_Invalid(t *testing.T) {
	tests := []struct {
		name  string
		yaml  string
		field string
	}{
		{name: "missing host", yaml: "port: 25\nfrom: a@b.example\n", field: "host"},
		{name: "bad port", yaml: "host: smtp\nport: 70000\nfrom: a@b.example\n", field: "port"},
		{name: "missing from", yaml: "host: smtp\nport: 25\n", field: "from"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := mail.ParseTransport([]byte(tt.yaml))
			errutil.AssertErrorCode(t, err, "MAIL_CONFIG_INVALID")
			errutil.AssertErrorContext(t, err, "field", tt.field)
		})
	}
}

func TestParseTransport_RejectsUnknownKeys(t *testing.T) {
	_, err := mail.ParseTransport([]byte("host: smtp\nport: 25\nfrom: a@b.example\nsender: x\n"))
	errutil.AssertErrorCode(t, err, "MAIL_CONFIG_INVALID")
}

func TestLoadTransport_MissingFile(t *testing.T) {
	_, err := mail.LoadTransport(filepath.Join(t.TempDir(), "absent.yaml"))
	errutil.AssertErrorCode(t, err, "MAIL_CONFIG_INVALID")
}
