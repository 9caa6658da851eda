// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tripdesk Contributors

package httpapi

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"

	"github.com/tripdesk/tripdesk/internal/auth"
	"github.com/tripdesk/tripdesk/pkg/errutil"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 64 << 10

// AuthService is the subset of *auth.Service the API calls.
type AuthService interface {
	Login(ctx context.Context, email, password string) (*auth.LoginResult, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) (*auth.AccountView, error)
	VerifySession(ctx context.Context, token string) (*auth.AccountView, *auth.SessionClaims, error)
	ExternalLogin(ctx context.Context, credential string) (*auth.LoginResult, error)
	SetActive(ctx context.Context, id ulid.ULID, active bool) error
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

type externalLoginRequest struct {
	AccessToken string `json:"accessToken"`
}

type okResponse struct {
	OK bool `json:"ok"`
}

type sessionResponse struct {
	Account *auth.AccountView `json:"account"`
}

func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		badRequest(w, "request body must be a JSON object with the documented fields")
		return false
	}
	return true
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !decode(w, r, &req) {
		return
	}
	result, err := s.auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// handleForgotPassword answers the same way whether or not the email
// exists. Delivery failures are logged, not returned.
func (s *Server) handleForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if !decode(w, r, &req) {
		return
	}
	err := s.auth.ForgotPassword(r.Context(), req.Email)
	switch {
	case err == nil:
	case auth.Classify(err) == auth.CategoryValidation:
		writeError(w, r, s.logger, err)
		return
	case auth.Code(err) == auth.CodeResetDeliveryFailed:
		errutil.LogWarn(s.logger, "password reset email not delivered", err)
	default:
		errutil.LogError(s.logger, "password reset request failed", err)
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func (s *Server) handleResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if !decode(w, r, &req) {
		return
	}
	if _, err := s.auth.ResetPassword(r.Context(), req.Token, req.NewPassword); err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, okResponse{OK: true})
}

func (s *Server) handleSession(w http.ResponseWriter, r *http.Request) {
	session, _ := SessionFromContext(r.Context())
	writeJSON(w, http.StatusOK, sessionResponse{Account: session.Account})
}

func (s *Server) handleExternalLogin(w http.ResponseWriter, r *http.Request) {
	var req externalLoginRequest
	if !decode(w, r, &req) {
		return
	}
	result, err := s.auth.ExternalLogin(r.Context(), req.AccessToken)
	if err != nil {
		writeError(w, r, s.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) handleSetActive(active bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := ulid.ParseStrict(chi.URLParam(r, "id"))
		if err != nil {
			badRequest(w, "account id is not a valid ULID")
			return
		}
		session, _ := SessionFromContext(r.Context())
		if !active && session.Account.ID == id.String() {
			badRequest(w, "cannot deactivate your own account")
			return
		}
		if err := s.auth.SetActive(r.Context(), id, active); err != nil {
			writeError(w, r, s.logger, err)
			return
		}
		s.logger.Info("account active flag changed by admin",
			"account_id", id.String(), "active", active, "by", session.Account.ID)
		writeJSON(w, http.StatusOK, okResponse{OK: true})
	}
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if s.ready != nil {
		if err := s.ready(r.Context()); err != nil {
			errutil.LogWarn(s.logger, "health check failed", err)
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
