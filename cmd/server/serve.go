package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/soaringjerry/dronerecon/internal/api"
	"github.com/soaringjerry/dronerecon/internal/captcha"
	"github.com/soaringjerry/dronerecon/internal/idempotency"
	"github.com/soaringjerry/dronerecon/internal/services"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var lockPath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Apply pending migrations and run the HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), ctx, lockPath)
		},
	}
	cmd.Flags().StringVar(&lockPath, "migrate-lock", defaultLockPath(), "Lock file serialising migrations across instances")
	return cmd
}

func runServer(parent context.Context, cmdCtx *commandContext, lockPath string) error {
	ctx, cancel := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := cmdCtx.ensureConfig()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log, err := cmdCtx.logger()
	if err != nil {
		return err
	}
	slog.SetDefault(log)

	store, err := cmdCtx.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()
	if _, err := migrate(ctx, cfg, store, lockPath, log); err != nil {
		return err
	}

	var guard idempotency.Guard = store
	if cfg.Redis.URL != "" {
		rg, err := idempotency.NewRedisGuardFromURL(ctx, cfg.Redis.URL)
		if err != nil {
			return fmt.Errorf("connect redis: %w", err)
		}
		defer rg.Close()
		guard = rg
		log.Info("submission guard backed by redis")
	}

	var verify services.CaptchaVerifier
	if cfg.Captcha.Enabled {
		verify = captcha.New(cfg.Captcha).Verify
	}

	router, err := api.NewRouter(api.Deps{
		Config:  cfg,
		Store:   store,
		Guard:   guard,
		Captcha: verify,
		Logger:  log,
	})
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("dronerecon server listening",
			slog.String("addr", cfg.Server.Addr),
			slog.Bool("prolific", cfg.Experiment.Prolific),
			slog.Bool("deployment", cfg.Experiment.Deployment),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	log.Info("shutting down")
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
