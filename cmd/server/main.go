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

	"github.com/jackc/pgx/v5/pgxpool"

	appauth "github.com/jw6ventures/volunteerportal/internal/auth"
	"github.com/jw6ventures/volunteerportal/internal/config"
	httpserver "github.com/jw6ventures/volunteerportal/internal/http"
	"github.com/jw6ventures/volunteerportal/internal/logging"
	"github.com/jw6ventures/volunteerportal/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := logging.New(os.Stderr, cfg.Log.Format, cfg.Log.Level)
	slog.SetDefault(logger)
	logger.Info("starting volunteer portal server", "addr", cfg.ListenAddr)

	if err := run(cfg, logger); err != nil {
		logger.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.DB.DSN)
	if err != nil {
		return err
	}
	defer pool.Close()

	if err := store.ApplyMigrations(ctx, pool, logger); err != nil {
		return err
	}

	stor := store.New(pool)
	authenticator, err := appauth.NewOIDCAuthenticator(ctx, cfg)
	if err != nil {
		return err
	}
	sessionManager := appauth.NewSessionManager(cfg)
	authService := appauth.NewService(cfg, stor.Users, stor.APITokens, sessionManager, authenticator, logger)

	srv := &http.Server{
		Addr:         cfg.ListenAddr,
		Handler:      httpserver.NewRouter(cfg, stor, authService),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", cfg.ListenAddr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
