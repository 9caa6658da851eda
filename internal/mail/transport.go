// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tripdesk Contributors

package mail

import (
	"bytes"
	"errors"
	"io"
	"os"
	"time"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

// Transport describes the outbound SMTP server. It is read from a YAML
// file owned by operations, not by the console.
type Transport struct {
	Host               string        `yaml:"host"`
	Port               int           `yaml:"port"`
	Username           string        `yaml:"username"`
	Password           string        `yaml:"password"`
	From               string        `yaml:"from"`
	TLS                bool          `yaml:"tls"`
	InsecureSkipVerify bool          `yaml:"insecureSkipVerify"`
	Connections        int           `yaml:"connections"`
	Timeout            time.Duration `yaml:"timeout"`
}

const (
	defaultConnections = 2
	defaultSendTimeout = 10 * time.Second
)

// LoadTransport reads and validates a transport file. Unknown keys are
// rejected.
func LoadTransport(path string) (*Transport, error) {
	data, err := os.ReadFile(path) //nolint:gosec // operator supplied path
	if err != nil {
		return nil, oops.Code("MAIL_CONFIG_INVALID").With("path", path).Wrap(err)
	}
	return ParseTransport(data)
}

// ParseTransport decodes a YAML transport record and applies defaults.
func ParseTransport(data []byte) (*Transport, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var t Transport
	if err := dec.Decode(&t); err != nil && !errors.Is(err, io.EOF) {
		return nil, oops.Code("MAIL_CONFIG_INVALID").With("operation", "decode transport").Wrap(err)
	}
	if t.Connections <= 0 {
		t.Connections = defaultConnections
	}
	if t.Timeout <= 0 {
		t.Timeout = defaultSendTimeout
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return &t, nil
}

// Validate checks the fields required to open a pool.
func (t *Transport) Validate() error {
	switch {
	case t.Host == "":
		return oops.Code("MAIL_CONFIG_INVALID").With("field", "host").Errorf("host is required")
	case t.Port <= 0 || t.Port > 65535:
		return oops.Code("MAIL_CONFIG_INVALID").With("field", "port").Errorf("port %d is out of range", t.Port)
	case t.From == "":
		return oops.Code("MAIL_CONFIG_INVALID").With("field", "from").Errorf("from address is required")
	}
	return nil
}
