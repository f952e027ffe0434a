// Package mover performs the terminal placement of a document: the
// classified destination, the A_CLASSER review bucket, or the FAILED
// bucket. Files are routed, never transformed; the original bytes are
// preserved in every outcome and nothing is ever deleted.
package mover

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/tbernier/docroute/internal/model"
)

// Review bucket filenames are capped so the timestamp prefix cannot push
// them past filesystem limits.
const maxOriginalNameInReview = 80

// Mover places files into their terminal locations. Choosing a free
// destination name and occupying it must be a single step: mu serializes
// placements so two workers can never claim the same name. The run lock
// guarantees a single process owns the destination trees.
type Mover struct {
	reviewDir string
	failedDir string
	now       func() time.Time

	mu sync.Mutex
}

// New creates a mover for the given review and failed directories.
func New(reviewDir, failedDir string) *Mover {
	return &Mover{
		reviewDir: reviewDir,
		failedDir: failedDir,
		now:       time.Now,
	}
}

// NewWithClock allows a fixed clock in tests.
func NewWithClock(reviewDir, failedDir string, now func() time.Time) *Mover {
	return &Mover{reviewDir: reviewDir, failedDir: failedDir, now: now}
}

// PlaceClassified moves the source file to its computed destination,
// creating directories as needed and suffixing the filename on collision.
// It returns the final path.
func (m *Mover) PlaceClassified(src string, decision model.PathDecision) (string, error) {
	if err := os.MkdirAll(decision.Dir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create destination directory: %w", err)
	}

	final, err := m.place(decision.Dir, decision.Filename, src)
	if err != nil {
		return "", err
	}

	slog.Info("File routed", "route", model.RouteClassified, "source", src, "destination", final, "rule", decision.Rule)
	return final, nil
}

// PlaceReview moves the source file into the A_CLASSER bucket under
// {timestamp}_A_CLASSER_{originalName} and writes a sidecar JSON with the
// full classification for manual triage. It returns the final path.
func (m *Mover) PlaceReview(src string, c model.Classification, reason string) (string, error) {
	if err := os.MkdirAll(m.reviewDir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create review directory: %w", err)
	}

	original := filepath.Base(src)
	if len(original) > maxOriginalNameInReview {
		ext := filepath.Ext(original)
		original = original[:maxOriginalNameInReview-len(ext)] + ext
	}
	name := fmt.Sprintf("%s_A_CLASSER_%s", m.now().Format("20060102_150405"), original)

	final, err := m.place(m.reviewDir, name, src)
	if err != nil {
		return "", err
	}

	if err := m.writeSidecar(final, src, c, reason); err != nil {
		// The document itself is safe; a missing sidecar only hurts triage.
		slog.Warn("Failed to write review sidecar", "destination", final, "error", err)
	}

	slog.Info("File routed", "route", model.RouteNeedsReview, "source", src, "destination", final, "reason", reason)
	return final, nil
}

// PlaceFailed moves the source file, untouched, into the FAILED bucket
// under its original name (suffixed on collision). It returns the final
// path.
func (m *Mover) PlaceFailed(src, reason string) (string, error) {
	if err := os.MkdirAll(m.failedDir, 0o750); err != nil {
		return "", fmt.Errorf("failed to create failed directory: %w", err)
	}

	final, err := m.place(m.failedDir, filepath.Base(src), src)
	if err != nil {
		return "", err
	}

	slog.Error("File routed", "route", model.RouteFailed, "source", src, "destination", final, "reason", reason)
	return final, nil
}

// place picks a free name under dir and moves src there, holding mu for
// the whole probe-and-occupy sequence.
func (m *Mover) place(dir, name, src string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	final, err := uniquePath(dir, name)
	if err != nil {
		return "", err
	}
	if err := moveFile(src, final); err != nil {
		return "", err
	}
	return final, nil
}

func (m *Mover) writeSidecar(finalPath, src string, c model.Classification, reason string) error {
	sidecar := model.NewSidecar(filepath.Base(src), c, reason, m.now())
	data, err := json.MarshalIndent(sidecar, "", "  ")
	if err != nil {
		return err
	}

	ext := filepath.Ext(finalPath)
	sidecarPath := strings.TrimSuffix(finalPath, ext) + ".json"
	return os.WriteFile(sidecarPath, data, 0o640)
}

// uniquePath returns dir/name, or the first free _1, _2, ... suffixed
// variant when the name is already taken.
func uniquePath(dir, name string) (string, error) {
	candidate := filepath.Join(dir, name)
	if _, err := os.Lstat(candidate); errors.Is(err, os.ErrNotExist) {
		return candidate, nil
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)
	for i := 1; ; i++ {
		candidate = filepath.Join(dir, fmt.Sprintf("%s_%d%s", stem, i, ext))
		if _, err := os.Lstat(candidate); errors.Is(err, os.ErrNotExist) {
			return candidate, nil
		}
	}
}

// moveFile renames src to dst, falling back to copy-verify-delete when
// the destination is on another volume.
func moveFile(src, dst string) error {
	err := os.Rename(src, dst)
	if err == nil {
		return nil
	}

	var linkErr *os.LinkError
	if errors.As(err, &linkErr) && errors.Is(linkErr.Err, syscall.EXDEV) {
		return copyThenDelete(src, dst)
	}
	return fmt.Errorf("failed to move %s: %w", src, err)
}

// copyThenDelete copies src to dst, verifies the byte count, then removes
// the source. A partial copy is cleaned up so the destination never holds
// a truncated file.
func copyThenDelete(src, dst string) error {
	info, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("failed to stat source: %w", err)
	}

	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source: %w", err)
	}
	defer func() {
		if closeErr := in.Close(); closeErr != nil {
			slog.Warn("Failed to close source file", "path", src, "error", closeErr)
		}
	}()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return fmt.Errorf("failed to create destination: %w", err)
	}

	written, err := io.Copy(out, in)
	if err == nil {
		err = out.Sync()
	}
	if closeErr := out.Close(); err == nil {
		err = closeErr
	}
	if err == nil && written != info.Size() {
		err = fmt.Errorf("short copy: wrote %d of %d bytes", written, info.Size())
	}
	if err != nil {
		_ = os.Remove(dst)
		return fmt.Errorf("cross-volume copy failed: %w", err)
	}

	if err := os.Remove(src); err != nil {
		return fmt.Errorf("copied but failed to remove source: %w", err)
	}
	return nil
}
