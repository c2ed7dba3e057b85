package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/soaringjerry/dronerecon/internal/config"
	"github.com/soaringjerry/dronerecon/internal/db"
)

func defaultLockPath() string {
	return filepath.Join(os.TempDir(), "dronerecon-migrate.lock")
}

func newMigrateCommand(ctx *commandContext) *cobra.Command {
	var lockPath string
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			log, err := ctx.logger()
			if err != nil {
				return err
			}
			store, err := ctx.openStore(cmd.Context())
			if err != nil {
				return err
			}
			defer store.Close()

			applied, err := migrate(cmd.Context(), cfg, store, lockPath, log)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(applied) == 0 {
				fmt.Fprintln(out, "Database is up to date")
				return nil
			}
			for _, name := range applied {
				fmt.Fprintf(out, "Applied %s\n", name)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&lockPath, "lock", defaultLockPath(), "Lock file serialising migrations across instances")
	return cmd
}

// migrate applies pending migrations while holding the lock file, so instances started
// together do not race on the schema.
func migrate(ctx context.Context, cfg *config.Config, store *db.Store, lockPath string, log *slog.Logger) ([]string, error) {
	lock := flock.New(lockPath)
	waitCtx, cancel := context.WithTimeout(ctx, time.Minute)
	defer cancel()
	locked, err := lock.TryLockContext(waitCtx, 250*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("acquire migration lock %s: %w", lockPath, err)
	}
	if !locked {
		return nil, fmt.Errorf("migration lock %s is held by another process", lockPath)
	}
	defer func() {
		if err := lock.Unlock(); err != nil {
			log.Warn("release migration lock", slog.String("lock", lockPath), slog.Any("err", err))
		}
	}()

	applied, err := db.RunMigrations(ctx, store.DB(), cfg.Database.MigrationsDir)
	if err != nil {
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	for _, name := range applied {
		log.Info("migration applied", slog.String("name", name))
	}
	return applied, nil
}
