// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tripdesk Contributors

package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/tripdesk/tripdesk/internal/auth"
)

type sessionKey struct{}

// Session is the verified caller of a protected route.
type Session struct {
	Account *auth.AccountView
	Claims  *auth.SessionClaims
}

// SessionFromContext returns the session RequireSession stored.
func SessionFromContext(ctx context.Context) (*Session, bool) {
	s, ok := ctx.Value(sessionKey{}).(*Session)
	return s, ok
}

// SessionVerifier verifies bearer tokens.
type SessionVerifier interface {
	VerifySession(ctx context.Context, token string) (*auth.AccountView, *auth.SessionClaims, error)
}

// bearerToken extracts the token from an Authorization header. A missing
// or non-bearer header yields "".
func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}

// RequireSession rejects requests without a valid session token and stores
// the verified Session on the request context.
func RequireSession(verifier SessionVerifier, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			account, claims, err := verifier.VerifySession(r.Context(), bearerToken(r))
			if err != nil {
				writeError(w, r, logger, err)
				return
			}
			ctx := context.WithValue(r.Context(), sessionKey{}, &Session{Account: account, Claims: claims})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

var roleRank = map[auth.Role]int{
	auth.RoleAdmin:      1,
	auth.RoleSuperAdmin: 2,
}

// RequireRole rejects sessions whose role ranks below role. It must run
// after RequireSession.
func RequireRole(role auth.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			session, ok := SessionFromContext(r.Context())
			if !ok || roleRank[session.Account.Role] < roleRank[role] {
				writeJSON(w, http.StatusForbidden, errorBody{
					Error: "insufficient role",
					Code:  "AUTH_FORBIDDEN",
				})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequestObserver counts responses by route pattern.
type RequestObserver interface {
	ObserveRequest(route string, status int)
}

// requestLogger logs each request and reports it to observer.
func requestLogger(logger *slog.Logger, observer RequestObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			route := r.URL.Path
			if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
				route = rctx.RoutePattern()
			}
			if observer != nil {
				observer.ObserveRequest(route, status)
			}

			level := slog.LevelInfo
			switch {
			case status >= http.StatusInternalServerError:
				level = slog.LevelError
			case status >= http.StatusBadRequest:
				level = slog.LevelWarn
			}
			logger.Log(r.Context(), level, "request",
				"method", r.Method,
				"route", route,
				"status", status,
				"duration_ms", float64(time.Since(start).Microseconds())/1000.0,
				"bytes", ww.BytesWritten(),
				"request_id", chimw.GetReqID(r.Context()),
				"remote_addr", r.RemoteAddr,
			)
		})
	}
}
