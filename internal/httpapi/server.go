// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tripdesk Contributors

package httpapi

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/samber/oops"

	"github.com/tripdesk/tripdesk/internal/auth"
)

// Config holds the HTTP server configuration.
type Config struct {
	Addr            string
	AllowedOrigins  []string
	ShutdownTimeout time.Duration
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the server logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithObserver reports every response to observer.
func WithObserver(observer RequestObserver) Option {
	return func(s *Server) { s.observer = observer }
}

// WithReadiness makes /healthz report ready's result.
func WithReadiness(ready func(context.Context) error) Option {
	return func(s *Server) { s.ready = ready }
}

// Server serves the admin authentication API.
type Server struct {
	cfg      Config
	auth     AuthService
	logger   *slog.Logger
	observer RequestObserver
	ready    func(context.Context) error
	router   chi.Router
}

// New creates a Server with its routes mounted.
func New(cfg Config, svc AuthService, opts ...Option) (*Server, error) {
	if svc == nil {
		return nil, oops.Code("HTTP_SERVER_INVALID").Errorf("auth service is required")
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 15 * time.Second
	}
	s := &Server{cfg: cfg, auth: svc, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	s.setupRouter()
	return s, nil
}

func (s *Server) setupRouter() {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(requestLogger(s.logger, s.observer))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After", "X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.handleHealthz)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login", s.handleLogin)
			r.Post("/forgot-password", s.handleForgotPassword)
			r.Post("/reset-password", s.handleResetPassword)
			r.Post("/external", s.handleExternalLogin)
			r.With(RequireSession(s.auth, s.logger)).Get("/session", s.handleSession)
		})

		r.Route("/admin/accounts/{id}", func(r chi.Router) {
			r.Use(RequireSession(s.auth, s.logger))
			r.Use(RequireRole(auth.RoleSuperAdmin))
			r.Post("/activate", s.handleSetActive(true))
			r.Post("/deactivate", s.handleSetActive(false))
		})
	})

	s.router = r
}

// ServeHTTP implements http.Handler, delegating to the router.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Serve accepts connections on listener until ctx is cancelled, then shuts
// down gracefully within the configured timeout.
func (s *Server) Serve(ctx context.Context, listener net.Listener) error {
	srv := &http.Server{
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return context.WithoutCancel(ctx) },
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Serve(listener)
	}()
	s.logger.Info("http api listening", "addr", listener.Addr().String())

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return oops.Code("HTTP_SERVE_FAILED").With("addr", listener.Addr().String()).Wrap(err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return oops.Code("HTTP_SHUTDOWN_FAILED").Wrap(err)
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return oops.Code("HTTP_SERVE_FAILED").Wrap(err)
	}
	s.logger.Info("http api stopped")
	return nil
}

// ListenAndServe listens on the configured address and calls Serve.
func (s *Server) ListenAndServe(ctx context.Context) error {
	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", s.cfg.Addr)
	if err != nil {
		return oops.Code("HTTP_LISTEN_FAILED").With("addr", s.cfg.Addr).Wrap(err)
	}
	return s.Serve(ctx, listener)
}
