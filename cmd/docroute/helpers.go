package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/spf13/viper"

	"github.com/tbernier/docroute/internal/classify"
	"github.com/tbernier/docroute/internal/common"
	"github.com/tbernier/docroute/internal/config"
	"github.com/tbernier/docroute/internal/extract"
	"github.com/tbernier/docroute/internal/mover"
	"github.com/tbernier/docroute/internal/pathrule"
	"github.com/tbernier/docroute/internal/pipeline"
	"github.com/tbernier/docroute/internal/storage"
	"github.com/tbernier/docroute/internal/supplier"
	"github.com/tbernier/docroute/internal/textract"
)

// loadConfig builds the validated configuration from the viper tree.
func loadConfig() (*config.Config, error) {
	cfg, err := config.FromViper(viper.GetViper())
	if err != nil {
		return nil, common.NewUserError("configuration problem (check your config.yaml)", err)
	}
	return cfg, nil
}

// openJournal opens and migrates the routing journal.
func openJournal(ctx context.Context, cfg *config.Config) (*storage.Journal, error) {
	journal, err := storage.NewJournal(cfg.JournalPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	if err := journal.Migrate(ctx); err != nil {
		if closeErr := journal.Close(); closeErr != nil {
			slog.Warn("Failed to close journal", "error", closeErr)
		}
		return nil, fmt.Errorf("failed to migrate journal: %w", err)
	}
	return journal, nil
}

// buildPipeline assembles the processing stages from configuration.
func buildPipeline(cfg *config.Config, journal pipeline.Recorder) *pipeline.Pipeline {
	return pipeline.New(pipeline.Config{
		Text:       textract.NewCommandExtractor(cfg.OCRLanguages),
		Fields:     extract.New(),
		Supplier:   supplier.NewResolver(cfg.Suppliers, cfg.SupplierThreshold),
		Classifier: classify.New(cfg.ClassifierWeights, cfg.ConfidenceThreshold),
		Paths:      pathrule.NewResolver(cfg),
		Mover:      mover.New(cfg.ReviewDir, cfg.FailedDir),
		Journal:    journal,

		Workers:     cfg.Workers,
		FileTimeout: cfg.FileTimeout,
	})
}
