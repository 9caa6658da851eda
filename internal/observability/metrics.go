// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tripdesk Contributors

package observability

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tripdesk/tripdesk/internal/auth"
)

// Metrics holds the console's security and request counters.
type Metrics struct {
	AuthAttempts *prometheus.CounterVec
	Lockouts     prometheus.Counter
	ResetEmails  *prometheus.CounterVec
	HTTPRequests *prometheus.CounterVec
}

// NewMetrics creates the counters and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AuthAttempts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tripdesk_auth_attempts_total",
				Help: "Authentication attempts by flow and outcome",
			},
			[]string{"flow", "outcome"},
		),
		Lockouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tripdesk_auth_lockouts_total",
			Help: "Accounts locked after repeated password failures",
		}),
		ResetEmails: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tripdesk_reset_emails_total",
				Help: "Password reset requests by delivery outcome",
			},
			[]string{"outcome"},
		),
		HTTPRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tripdesk_http_requests_total",
				Help: "API requests by route pattern and status code",
			},
			[]string{"route", "status"},
		),
	}
	reg.MustRegister(m.AuthAttempts, m.Lockouts, m.ResetEmails, m.HTTPRequests)
	return m
}

// RecordAttempt implements auth.Recorder.
func (m *Metrics) RecordAttempt(flow, outcome string) {
	m.AuthAttempts.WithLabelValues(flow, outcome).Inc()
}

// RecordLockout implements auth.Recorder.
func (m *Metrics) RecordLockout() {
	m.Lockouts.Inc()
}

// RecordResetEmail implements auth.Recorder.
func (m *Metrics) RecordResetEmail(outcome string) {
	m.ResetEmails.WithLabelValues(outcome).Inc()
}

// ObserveRequest counts one API response.
func (m *Metrics) ObserveRequest(route string, status int) {
	m.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
}

var _ auth.Recorder = (*Metrics)(nil)
