package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"

	"github.com/tbernier/docroute/internal/common"
	"github.com/tbernier/docroute/internal/config"
	"github.com/tbernier/docroute/internal/watcher"
)

func runCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Watch the inbox and route documents continuously",
		Long: `Start the watcher on the configured inbox and process every document
that finishes being written. Runs until interrupted; on shutdown,
files already being processed finish placing themselves first.

Files already sitting in the inbox at startup are picked up by the
first poll cycles.`,
		RunE: runRun,
	}
}

func runRun(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	for _, dir := range []string{cfg.Inbox, cfg.ReviewDir, cfg.FailedDir} {
		if mkErr := os.MkdirAll(dir, 0o750); mkErr != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, mkErr)
		}
	}

	// Two daemons polling the same inbox would race each other to move
	// files, so the inbox is guarded by an advisory lock.
	lock := flock.New(filepath.Join(cfg.Inbox, ".docroute.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("failed to acquire inbox lock: %w", err)
	}
	if !locked {
		return common.NewUserError(
			fmt.Sprintf("another docroute instance is already watching %s", cfg.Inbox), nil)
	}
	defer func() {
		if unlockErr := lock.Unlock(); unlockErr != nil {
			slog.Warn("Failed to release inbox lock", "error", unlockErr)
		}
	}()

	journal, err := openJournal(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := journal.Close(); closeErr != nil {
			slog.Error("Failed to close journal", "error", closeErr)
		}
	}()

	w := watcher.New(watcher.Config{
		Inbox:           cfg.Inbox,
		Stability:       stabilityDuration(cfg),
		PollInterval:    cfg.PollInterval,
		MinFileSize:     cfg.MinFileSize,
		ExcludePatterns: cfg.ExcludePatterns,
		UseNotify:       true,
	})

	p := buildPipeline(cfg, journal)

	slog.Info("docroute started",
		"inbox", cfg.Inbox,
		"destination_root", cfg.DestinationRoot,
		"workers", cfg.Workers)

	err = p.Run(ctx, w.Run(ctx))
	if err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	slog.Info("docroute stopped")
	return nil
}

func stabilityDuration(cfg *config.Config) time.Duration {
	return time.Duration(cfg.StabilitySeconds * float64(time.Second))
}
