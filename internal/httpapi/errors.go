// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tripdesk Contributors

package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/tripdesk/tripdesk/internal/auth"
	"github.com/tripdesk/tripdesk/pkg/errutil"
)

const unavailableMessage = "service temporarily unavailable, try again later"

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Error  string `json:"error"`
	Code   string `json:"code"`
	Reason string `json:"reason,omitempty"`
}

// statusFor maps an auth error to its HTTP status.
func statusFor(err error) int {
	code := auth.Code(err)
	switch code {
	case auth.CodeAccountLocked:
		return http.StatusLocked
	case auth.CodeAccountInactive, auth.CodeNoPassword,
		auth.CodeUnauthorizedEmail, auth.CodeEmailUnverified:
		return http.StatusForbidden
	case auth.CodeIdentityConflict:
		return http.StatusConflict
	case auth.CodeResetTokenInvalid:
		return http.StatusBadRequest
	case "RESET_UNAVAILABLE", "EXTERNAL_LOGIN_UNAVAILABLE":
		return http.StatusNotImplemented
	}

	switch auth.Classify(err) {
	case auth.CategoryValidation:
		return http.StatusBadRequest
	case auth.CategoryAuthentication, auth.CategoryToken:
		return http.StatusUnauthorized
	case auth.CategoryIdentityConflict:
		return http.StatusForbidden
	default:
		return http.StatusServiceUnavailable
	}
}

// reasonFor returns the machine-readable reason for reset failures.
func reasonFor(err error) string {
	if reason := auth.PolicyReason(err); reason != "" {
		return reason
	}
	if auth.Code(err) == auth.CodeResetTokenInvalid {
		return "token"
	}
	return ""
}

// writeError renders err. Dependency failures are logged with their cause
// and rendered with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := statusFor(err)
	body := errorBody{Code: auth.Code(err), Reason: reasonFor(err)}

	if status == http.StatusServiceUnavailable {
		errutil.LogError(logger.With("path", r.URL.Path), "request failed on a dependency", err)
		body.Error = unavailableMessage
		body.Code = "SERVICE_UNAVAILABLE"
	} else {
		body.Error = err.Error()
	}

	if retry, ok := auth.RetryAfter(err); ok {
		w.Header().Set("Retry-After", strconv.FormatInt(int64(retry.Seconds()), 10))
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v) //nolint:errcheck // client may disconnect
}

// badRequest renders a request that failed to decode.
func badRequest(w http.ResponseWriter, message string) {
	writeJSON(w, http.StatusBadRequest, errorBody{Error: message, Code: auth.CodeValidation})
}
