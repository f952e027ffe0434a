// Package pipeline runs each stabilized file through extraction,
// classification, path resolution and placement. Files are independent;
// an error on one never affects another.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tbernier/docroute/internal/classify"
	"github.com/tbernier/docroute/internal/common"
	"github.com/tbernier/docroute/internal/extract"
	"github.com/tbernier/docroute/internal/model"
	"github.com/tbernier/docroute/internal/mover"
	"github.com/tbernier/docroute/internal/pathrule"
	"github.com/tbernier/docroute/internal/storage"
	"github.com/tbernier/docroute/internal/supplier"
	"github.com/tbernier/docroute/internal/textract"
)

// Recorder receives terminal outcomes. Journal failures are logged, never
// fatal: the filesystem is the primary status surface.
type Recorder interface {
	Record(ctx context.Context, o *storage.Outcome) error
}

// Config assembles the pipeline stages.
type Config struct {
	Text       textract.TextExtractor
	Fields     *extract.Extractor
	Supplier   *supplier.Resolver
	Classifier *classify.Classifier
	Paths      *pathrule.Resolver
	Mover      *mover.Mover

	// Journal is optional.
	Journal Recorder

	Workers     int
	FileTimeout time.Duration
}

// Result describes what happened to one file.
type Result struct {
	Route          model.Route
	Classification model.Classification
	Decision       *model.PathDecision
	FinalPath      string
	Reason         string
	DryRun         bool
}

// Pipeline processes files. Safe for concurrent use; all stages share
// only read-only configuration.
type Pipeline struct {
	cfg Config
}

// New creates a pipeline.
func New(cfg Config) *Pipeline {
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.FileTimeout <= 0 {
		cfg.FileTimeout = 2 * time.Minute
	}
	return &Pipeline{cfg: cfg}
}

// Run consumes stabilized file paths until the channel closes, processing
// them on a bounded worker pool. Cancelling ctx stops intake of new
// files, but files already being processed finish placing themselves
// (each is still bounded by the per-file timeout).
func (p *Pipeline) Run(ctx context.Context, files <-chan string) error {
	g := new(errgroup.Group)
	g.SetLimit(p.cfg.Workers)

	for {
		select {
		case <-ctx.Done():
			// Drain in-flight work before reporting shutdown.
			if err := g.Wait(); err != nil {
				slog.Error("Worker pool finished with error", "error", err)
			}
			return ctx.Err()
		case path, ok := <-files:
			if !ok {
				return g.Wait()
			}
			g.Go(func() error {
				p.ProcessFile(ctx, path)
				return nil
			})
		}
	}
}

// ProcessFile runs one file through the whole pipeline, ending in exactly
// one of the three terminal routes. It never returns an error: every
// failure is converted into the FAILED route.
func (p *Pipeline) ProcessFile(ctx context.Context, path string) Result {
	start := time.Now()

	// Shutdown must not abandon a file mid-pipeline, so the per-file
	// context survives cancellation of the run context and only the
	// timeout applies.
	fileCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.FileTimeout)
	defer cancel()

	result := p.process(fileCtx, path, false)

	slog.Info("Processing finished",
		"path", path,
		"route", result.Route,
		"destination", result.FinalPath,
		"duration_ms", time.Since(start).Milliseconds())

	p.record(fileCtx, path, result)
	return result
}

// Preview runs the pipeline stages without moving anything. The returned
// result describes what ProcessFile would do.
func (p *Pipeline) Preview(ctx context.Context, path string) Result {
	fileCtx, cancel := context.WithTimeout(ctx, p.cfg.FileTimeout)
	defer cancel()
	return p.process(fileCtx, path, true)
}

func (p *Pipeline) process(ctx context.Context, path string, dryRun bool) (result Result) {
	result.DryRun = dryRun

	// A panic in any stage must not take down the worker pool; the file
	// routes to FAILED like any other unrecoverable error.
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Panic while processing file", "path", path, "panic", r)
			result = p.fail(path, fmt.Sprintf("panic: %v", r), dryRun)
		}
	}()

	text, err := p.cfg.Text.ExtractText(ctx, path)
	if err != nil {
		return p.fail(path, fmt.Sprintf("text extraction failed: %v", err), dryRun)
	}
	if ctx.Err() != nil {
		return p.fail(path, fmt.Sprintf("%v: %v", common.ErrProcessingTimeout, ctx.Err()), dryRun)
	}

	extraction := p.cfg.Fields.Extract(text)

	var match model.SupplierMatch
	if extraction.HasSupplierText() {
		match = p.cfg.Supplier.Resolve(*extraction.SupplierRaw)
	}

	classification := p.cfg.Classifier.Classify(extraction, match)
	result.Classification = classification

	if classification.NeedsReview {
		return p.review(path, classification, reviewReason(classification), dryRun, result)
	}

	decision, ok := p.cfg.Paths.Resolve(classification, filepath.Base(path))
	if !ok {
		return p.review(path, classification,
			fmt.Sprintf("no routing rule provides a tree for type %q", classification.Type), dryRun, result)
	}
	result.Decision = &decision

	if dryRun {
		result.Route = model.RouteClassified
		result.FinalPath = decision.Path()
		return result
	}

	final, err := p.cfg.Mover.PlaceClassified(path, decision)
	if err != nil {
		return p.fail(path, fmt.Sprintf("placement failed: %v", err), false)
	}

	result.Route = model.RouteClassified
	result.FinalPath = final
	return result
}

func (p *Pipeline) review(path string, c model.Classification, reason string, dryRun bool, result Result) Result {
	result.Route = model.RouteNeedsReview
	result.Reason = reason
	if dryRun {
		return result
	}

	final, err := p.cfg.Mover.PlaceReview(path, c, reason)
	if err != nil {
		return p.fail(path, fmt.Sprintf("review placement failed: %v", err), false)
	}
	result.FinalPath = final
	return result
}

func (p *Pipeline) fail(path, reason string, dryRun bool) Result {
	result := Result{Route: model.RouteFailed, Reason: reason, DryRun: dryRun}
	if dryRun {
		return result
	}

	final, err := p.cfg.Mover.PlaceFailed(path, reason)
	if err != nil {
		// The file stays where it is; it will be retried after a restart.
		slog.Error("Failed to move file to FAILED bucket", "path", path, "error", err)
		return result
	}
	result.FinalPath = final
	return result
}

func (p *Pipeline) record(ctx context.Context, path string, r Result) {
	if p.cfg.Journal == nil || r.DryRun {
		return
	}

	outcome := &storage.Outcome{
		SourcePath:  path,
		Route:       r.Route,
		Destination: r.FinalPath,
		DocType:     string(r.Classification.Type),
		Supplier:    r.Classification.Supplier.Canonical,
		Confidence:  r.Classification.Confidence,
		Reason:      r.Reason,
	}
	if err := p.cfg.Journal.Record(ctx, outcome); err != nil {
		slog.Warn("Failed to record outcome in journal", "path", path, "error", err)
	}
}

// reviewReason explains which half of the review rule fired.
func reviewReason(c model.Classification) string {
	if c.Supplier.Unresolved() {
		return fmt.Sprintf("unresolved supplier (score %.2f), confidence %.2f", c.Supplier.Score, c.Confidence)
	}
	return fmt.Sprintf("low confidence %.2f", c.Confidence)
}
