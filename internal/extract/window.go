package extract

import (
	"regexp"
	"strings"
)

// WindowStrategy selects the slice of text that plausibly names the
// supplier. The boundary rule is heuristic, so it lives behind an
// interface and can be swapped without touching the extractor.
type WindowStrategy interface {
	Window(text string) string
}

// HeaderWindow keeps the header lines before the first monetary figure,
// bounded by line and byte caps. Suppliers almost always appear in the
// letterhead above the totals block.
type HeaderWindow struct {
	MaxLines int
	MaxBytes int
}

// NewHeaderWindow returns the default header window.
func NewHeaderWindow() HeaderWindow {
	return HeaderWindow{MaxLines: 15, MaxBytes: 1200}
}

var numericOnlyLine = regexp.MustCompile(`^[\d\s.,€/-]+$`)

// Window implements WindowStrategy.
func (w HeaderWindow) Window(text string) string {
	lines := strings.Split(text, "\n")
	var kept []string
	size := 0

	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if amountFallback.MatchString(line) || amountLabelled.MatchString(line) {
			break
		}
		if numericOnlyLine.MatchString(line) {
			continue
		}
		kept = append(kept, line)
		size += len(line)
		if len(kept) >= w.MaxLines || size >= w.MaxBytes {
			break
		}
	}
	return strings.Join(kept, "\n")
}

// supplierLine picks the supplier candidate out of a header window: the
// line following an invoice heading when present, else the first line of
// plausible length.
func supplierLine(window string) *string {
	lines := strings.Split(window, "\n")

	for i, line := range lines {
		lower := strings.ToLower(line)
		if strings.Contains(lower, "facture") || strings.Contains(lower, "invoice") {
			if i+1 < len(lines) {
				if s := cleanSupplierLine(lines[i+1]); s != nil {
					return s
				}
			}
		}
	}

	for _, line := range lines {
		if s := cleanSupplierLine(line); s != nil {
			return s
		}
	}
	return nil
}

func cleanSupplierLine(line string) *string {
	line = strings.TrimSpace(line)
	if len(line) < 5 || numericOnlyLine.MatchString(line) {
		return nil
	}
	if len(line) > 80 {
		line = line[:80]
	}
	return &line
}
