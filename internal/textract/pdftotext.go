package textract

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"
)

// Scanned PDFs usually have no text layer at all; below this many
// characters we assume the embedded layer is missing and fall back to OCR.
const minEmbeddedTextLength = 30

// CommandExtractor extracts text via external tools: pdftotext for the
// embedded text layer, tesseract as the OCR fallback for scans and images.
type CommandExtractor struct {
	runner    Runner
	languages string
}

// NewCommandExtractor creates an extractor using the given tesseract
// language spec (e.g. "fra+eng").
func NewCommandExtractor(languages string) *CommandExtractor {
	return &CommandExtractor{
		runner:    execRunner{},
		languages: languages,
	}
}

// NewCommandExtractorWithRunner allows injecting a fake runner in tests.
func NewCommandExtractorWithRunner(languages string, r Runner) *CommandExtractor {
	return &CommandExtractor{
		runner:    r,
		languages: languages,
	}
}

// ExtractText returns the full text of the document. PDFs are read with
// pdftotext first; when the result is too short to be a real text layer,
// or for image files, tesseract runs against the file directly.
func (e *CommandExtractor) ExtractText(ctx context.Context, path string) (string, error) {
	ext := strings.ToLower(filepath.Ext(path))

	if ext == ".pdf" {
		text, err := e.pdfText(ctx, path)
		if err == nil && len(strings.TrimSpace(text)) >= minEmbeddedTextLength {
			return text, nil
		}
		if err != nil {
			slog.Debug("pdftotext failed, falling back to OCR", "path", path, "error", err)
		} else {
			slog.Debug("embedded text layer too short, falling back to OCR",
				"path", path, "chars", len(strings.TrimSpace(text)))
		}
	}

	text, err := e.ocrText(ctx, path)
	if err != nil {
		return "", Unavailable(path, err)
	}
	return text, nil
}

func (e *CommandExtractor) pdfText(ctx context.Context, path string) (string, error) {
	out, _, err := e.runner.Run(ctx, "pdftotext", "-layout", path, "-")
	if err != nil {
		return "", err
	}
	return string(out), nil
}

func (e *CommandExtractor) ocrText(ctx context.Context, path string) (string, error) {
	args := []string{path, "stdout"}
	if e.languages != "" {
		args = append(args, "-l", e.languages)
	}
	out, _, err := e.runner.Run(ctx, "tesseract", args...)
	if err != nil {
		return "", err
	}
	return string(out), nil
}
