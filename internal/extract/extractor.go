// Package extract parses raw document text into structured candidate
// metadata. Each field has its own ordered matcher list; the first hit
// wins and there is no cross-field backtracking.
package extract

import (
	"unicode/utf8"

	"github.com/tbernier/docroute/internal/model"
)

// Cap on the diagnostic excerpt carried through the pipeline.
const excerptLimit = 500

// Extractor turns raw text into a model.Extraction. It never fails: when
// nothing matches it returns an Extraction with every field empty.
type Extractor struct {
	window WindowStrategy
}

// New creates an extractor with the default supplier header window.
func New() *Extractor {
	return &Extractor{window: NewHeaderWindow()}
}

// NewWithWindow creates an extractor with a custom supplier window
// strategy.
func NewWithWindow(w WindowStrategy) *Extractor {
	return &Extractor{window: w}
}

// Extract runs every field matcher against the text.
func (e *Extractor) Extract(text string) model.Extraction {
	excerpt := text
	if len(excerpt) > excerptLimit {
		// Back off to a rune boundary so the cut never splits a
		// multi-byte character.
		cut := excerptLimit
		for cut > 0 && !utf8.RuneStart(excerpt[cut]) {
			cut--
		}
		excerpt = excerpt[:cut]
	}

	return model.Extraction{
		DocumentDate:  matchDate(text),
		Amount:        matchAmount(text),
		InvoiceNumber: matchInvoiceNumber(text),
		SupplierRaw:   supplierLine(e.window.Window(text)),
		TypeHint:      matchTypeHint(text),
		TextExcerpt:   excerpt,
	}
}
