package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/containifyci/assertion-login/internal/config"
	"github.com/containifyci/assertion-login/internal/logging"
	"github.com/containifyci/assertion-login/internal/replay"
	"github.com/containifyci/assertion-login/internal/secretstore"
	"github.com/containifyci/assertion-login/internal/server"
	"github.com/containifyci/assertion-login/internal/verify"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	logger := logging.New(cfg.LogLevel, cfg.LogFormat, os.Stdout)
	slog.SetDefault(logger)

	if err := cfg.ValidateServer(); err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("server stopped", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	var verifier verify.Verifier
	switch cfg.Verifier {
	case verify.KindSecret:
		store, err := secretstore.Dial(ctx, cfg.GCPProjectID, logger)
		if err != nil {
			return err
		}
		defer store.Close()
		verifier = verify.NewSecret(store, cfg.AssertionIssuer, logger)
	default:
		verifier = verify.NewIDToken(cfg.AssertionAudience, cfg.AssertionIssuer)
	}

	var guard replay.Guard = replay.NewMemory()
	if cfg.RedisAddr != "" {
		r, err := replay.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword)
		if err != nil {
			return err
		}
		defer r.Close()
		guard = r
	}

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%s", cfg.Port),
		Handler:           server.New(verifier, guard, cfg.ReplayTTL, logger).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting login server", "port", cfg.Port, "verifier", cfg.Verifier)
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	logger.Info("shutting down login server")
	return srv.Shutdown(shutdownCtx)
}
