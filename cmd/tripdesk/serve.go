// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Tripdesk Contributors

package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/tripdesk/tripdesk/internal/auth"
	"github.com/tripdesk/tripdesk/internal/auth/postgres"
	"github.com/tripdesk/tripdesk/internal/httpapi"
	"github.com/tripdesk/tripdesk/internal/mail"
	"github.com/tripdesk/tripdesk/internal/oauth"
	"github.com/tripdesk/tripdesk/internal/xdg"
	"github.com/tripdesk/tripdesk/pkg/errutil"
)

const readinessTimeout = 2 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	return newServeCmd(nil)
}

func newServeCmd(deps *Deps) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the authentication API",
		Long: `Run the admin authentication API and the metrics server. The seed
superadmin is created on startup when auth.seed_email and
TRIPDESK_SEED_PASSWORD are both set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, deps)
		},
	}
}

func runServe(cmd *cobra.Command, deps *Deps) error {
	deps = deps.withDefaults()
	rt, err := loadRuntime(cmd, deps.Getenv)
	if err != nil {
		return err
	}
	if err := rt.secrets.RequireDatabase(); err != nil {
		return err
	}
	if err := rt.secrets.RequireSessionSecret(); err != nil {
		return err
	}
	logger := rt.logger

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting tripdesk", "version", version, "http_addr", rt.cfg.HTTP.Addr)

	if rt.cfg.Database.AutoMigrate {
		if err := autoMigrate(deps, rt.secrets.DatabaseURL, logger); err != nil {
			return err
		}
	}

	pool, err := deps.PoolOpener(ctx, rt.secrets.DatabaseURL, rt.poolOptions()...)
	if err != nil {
		return err
	}
	defer pool.Close()
	logger.Info("connected to database")

	ready := func(ctx context.Context) error { return pool.Ping(ctx) }

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		recorder  auth.Recorder
		apiOpts   = []httpapi.Option{httpapi.WithLogger(logger), httpapi.WithReadiness(ready)}
		obsServer ObservabilityServer
	)
	if rt.cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(rt.cfg.Metrics.Addr, func() bool {
			pingCtx, pingCancel := context.WithTimeout(context.Background(), readinessTimeout)
			defer pingCancel()
			return ready(pingCtx) == nil
		}, logger)
		obsErrCh, err := obsServer.Start()
		if err != nil {
			return err
		}
		defer stopObservability(obsServer, logger)
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability", logger)
		logger.Info("observability server started", "addr", obsServer.Addr())

		recorder = obsServer.Metrics()
		apiOpts = append(apiOpts, httpapi.WithObserver(obsServer.Metrics()))
	}

	repo := postgres.NewAccountRepository(pool)
	svc, closeMailer, err := buildService(rt, repo, recorder)
	if err != nil {
		return err
	}
	defer closeMailer()

	if err := bootstrapSeed(ctx, rt, svc); err != nil {
		return err
	}

	api, err := httpapi.New(httpapi.Config{
		Addr:           rt.cfg.HTTP.Addr,
		AllowedOrigins: rt.cfg.HTTP.AllowedOrigins,
		ShutdownTimeout: rt.cfg.ShutdownTimeout(),
	}, svc, apiOpts...)
	if err != nil {
		return err
	}

	cmd.Println("Tripdesk started")
	if err := api.ListenAndServe(ctx); err != nil {
		return err
	}
	logger.Info("shutdown complete")
	return nil
}

// buildService wires the auth service with its optional reset and external
// login flows. The returned func releases the mailer.
func buildService(rt *runtimeEnv, repo auth.AccountRepository, recorder auth.Recorder) (*auth.Service, func(), error) {
	cfg, logger := rt.cfg, rt.logger
	hasher := auth.NewArgon2idHasher()

	issuer, err := auth.NewSessionIssuer(rt.secrets.JWTSecret, auth.WithSessionTTL(cfg.SessionTTL()))
	if err != nil {
		return nil, nil, err
	}

	mailer, closeMailer, err := buildMailer(rt)
	if err != nil {
		return nil, nil, err
	}
	notifier, err := mail.NewResetNotifier(mailer, cfg.Mail.ResetURL)
	if err != nil {
		closeMailer()
		return nil, nil, err
	}

	common := []auth.Option{auth.WithLogger(logger), auth.WithRecorder(recorder)}
	resets, err := auth.NewPasswordResetService(repo, hasher, notifier, common...)
	if err != nil {
		closeMailer()
		return nil, nil, err
	}

	opts := append(common, auth.WithPasswordReset(resets)) //nolint:gocritic // common is not reused
	if cfg.OAuth.Google.Enabled {
		provider := oauth.NewGoogleProvider(oauth.GoogleConfig{
			UserInfoURL: cfg.OAuth.Google.UserInfoURL,
			Timeout:     cfg.GoogleTimeout(),
		})
		linker, err := auth.NewIdentityLinker(repo, cfg.AllowList())
		if err != nil {
			closeMailer()
			return nil, nil, err
		}
		opts = append(opts, auth.WithExternalIdentity(provider, linker))
		logger.Info("google sign-in enabled", "allowed_emails", cfg.AllowList().Len())
	}

	svc, err := auth.NewAuthService(repo, hasher, issuer, opts...)
	if err != nil {
		closeMailer()
		return nil, nil, err
	}
	return svc, closeMailer, nil
}

// buildMailer returns the SMTP mailer when a transport file is configured
// or present in the XDG config dir, and a logging mailer otherwise.
func buildMailer(rt *runtimeEnv) (mail.Mailer, func(), error) {
	path := rt.cfg.Mail.TransportFile
	if path == "" {
		if _, err := os.Stat(xdg.MailTransportFile()); err == nil {
			path = xdg.MailTransportFile()
		}
	}
	if path == "" {
		rt.logger.Warn("no mail transport configured; reset links are logged, not sent")
		return mail.NewLogMailer(rt.logger), func() {}, nil
	}

	transport, err := mail.LoadTransport(path)
	if err != nil {
		return nil, nil, err
	}
	if rt.secrets.SMTPPassword != "" {
		transport.Password = rt.secrets.SMTPPassword
	}
	mailer, err := mail.NewSMTPMailer(transport)
	if err != nil {
		return nil, nil, err
	}
	rt.logger.Info("smtp mailer ready", "host", transport.Host, "port", transport.Port)
	return mailer, mailer.Close, nil
}

func bootstrapSeed(ctx context.Context, rt *runtimeEnv, svc *auth.Service) error {
	email := rt.cfg.Auth.SeedEmail
	if email == "" {
		return nil
	}
	if rt.secrets.SeedPassword == "" {
		rt.logger.Warn("auth.seed_email is set but the seed password is not; skipping seed", "email", email)
		return nil
	}
	created, err := svc.EnsureSeedAccount(ctx, email, rt.secrets.SeedPassword)
	if err != nil {
		return oops.With("operation", "bootstrap seed account").Wrap(err)
	}
	if created {
		rt.logger.Info("seed superadmin created", "email", email)
	}
	return nil
}

func autoMigrate(deps *Deps, databaseURL string, logger *slog.Logger) (err error) {
	m, err := deps.MigratorFactory(databaseURL)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()
	if err := m.Up(); err != nil {
		return err
	}
	v, _, err := m.Version()
	if err != nil {
		return err
	}
	logger.Info("schema migrated", "version", v)
	return nil
}

// monitorServerErrors cancels ctx when a background server fails.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, name string, logger *slog.Logger) {
	select {
	case err, ok := <-errCh:
		if ok && err != nil {
			errutil.LogError(logger.With("server", name), "server failed", err)
			cancel()
		}
	case <-ctx.Done():
	}
}

func stopObservability(server ObservabilityServer, logger *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		errutil.LogWarn(logger, "failed to stop observability server", err)
	}
}
