// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rollcall Contributors

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/rollcall/rollcall/internal/account"
	acctpg "github.com/rollcall/rollcall/internal/account/postgres"
	"github.com/rollcall/rollcall/internal/api"
	"github.com/rollcall/rollcall/internal/config"
	"github.com/rollcall/rollcall/internal/credential"
	"github.com/rollcall/rollcall/internal/logging"
	"github.com/rollcall/rollcall/internal/notify"
	"github.com/rollcall/rollcall/internal/observability"
	"github.com/rollcall/rollcall/internal/store"
)

const (
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 5 * time.Second
)

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the account service",
		Long: `Start the HTTP account service. Pending database migrations are
applied before the listener comes up.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(configFile, cmd.Flags())
			if err != nil {
				return err
			}
			return runServe(cmd.Context(), cfg)
		},
	}

	// Flag names mirror the configuration keys so they overlay cleanly.
	cmd.Flags().String("server.addr", "", "HTTP listen address")
	cmd.Flags().String("server.reset_link_base", "", "base URL for password-reset links")
	cmd.Flags().String("database.url", "", "PostgreSQL connection URL")
	cmd.Flags().String("auth.token_secret", "", "session token signing secret")
	cmd.Flags().Int("auth.bcrypt_cost", 0, "bcrypt cost factor")
	cmd.Flags().String("log.level", "", "log level (debug, info, warn, error)")
	cmd.Flags().String("log.format", "", "log format (json or text)")
	cmd.Flags().Bool("observability.enabled", false, "expose metrics and health endpoints")
	cmd.Flags().String("observability.addr", "", "metrics/health HTTP address")

	return cmd
}

func runServe(ctx context.Context, cfg *config.Config) error {
	level, err := cfg.Log.SlogLevel()
	if err != nil {
		return err
	}
	log := logging.Setup("rollcall", version, cfg.Log.Format, level, nil)
	slog.SetDefault(log)

	log.Info("applying migrations")
	migrator, err := store.NewMigrator(cfg.Database.URL)
	if err != nil {
		return err
	}
	if err := migrator.Up(); err != nil {
		_ = migrator.Close()
		return err
	}
	if err := migrator.Close(); err != nil {
		return err
	}

	pool, err := store.NewPool(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()
	log.Info("connected to database")

	repo := acctpg.NewAccountRepository(pool)

	hasher, err := credential.NewBcryptHasher(cfg.Auth.BcryptCost)
	if err != nil {
		return err
	}
	codec, err := credential.NewTokenCodec([]byte(cfg.Auth.TokenSecret))
	if err != nil {
		return err
	}
	resets, err := credential.NewResetTokenIssuer(repo)
	if err != nil {
		return err
	}
	otps, err := credential.NewOtpIssuer(repo)
	if err != nil {
		return err
	}
	slugs, err := account.NewSlugAllocator(repo)
	if err != nil {
		return err
	}

	svc, err := credential.NewService(credential.ServiceDeps{
		Accounts:      repo,
		Hasher:        hasher,
		Tokens:        codec,
		Resets:        resets,
		Otps:          otps,
		Slugs:         slugs,
		Notifier:      notify.NewSlogNotifier(log),
		Logger:        log,
		ResetLinkBase: cfg.Server.ResetLinkBase,
	})
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var metrics *observability.Metrics
	var obsServer *observability.Server
	if cfg.Observability.Enabled {
		obsServer = observability.NewServer(cfg.Observability.Addr, func() bool {
			pingCtx, pingCancel := context.WithTimeout(ctx, time.Second)
			defer pingCancel()
			return pool.Ping(pingCtx) == nil
		})
		metrics = obsServer.Metrics()

		obsErrCh, err := obsServer.Start()
		if err != nil {
			return err
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability")
		log.Info("observability server started", "addr", obsServer.Addr())
	}

	handler, err := api.NewHandler(api.HandlerDeps{
		Service:  svc,
		Accounts: repo,
		Tokens:   codec,
		Logger:   log,
		Metrics:  metrics,
	})
	if err != nil {
		return err
	}

	mux := http.NewServeMux()
	handler.Register(mux)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           mux,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	errChan := make(chan error, 1)
	go func() {
		if serveErr := srv.ListenAndServe(); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errChan <- serveErr
		}
	}()

	log.Info("account service ready", "addr", cfg.Server.Addr)

	select {
	case sig := <-sigChan:
		log.Info("received shutdown signal", "signal", sig.String())
	case err := <-errChan:
		return oops.Code("SERVER_FAILED").With("addr", cfg.Server.Addr).Wrap(err)
	case <-ctx.Done():
		log.Info("context cancelled, shutting down")
	}

	log.Info("shutting down...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("error stopping HTTP server", "error", err)
	}
	if obsServer != nil {
		if err := obsServer.Stop(shutdownCtx); err != nil {
			log.Warn("error stopping observability server", "error", err)
		}
	}

	log.Info("shutdown complete")
	return nil
}

// monitorServerErrors cancels the context when a background server fails so
// the whole process shuts down instead of limping along.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
