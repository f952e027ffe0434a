// Package classify combines extracted fields and the supplier match into
// a document type with an overall confidence score.
package classify

import (
	"github.com/tbernier/docroute/internal/config"
	"github.com/tbernier/docroute/internal/model"
)

// Below this many characters of source text the quality term scores zero
// instead of neutral; the extractor had almost nothing to work with.
const minUsableTextLength = 20

// Classifier scores documents using the configured weights verbatim.
type Classifier struct {
	weights             config.Weights
	confidenceThreshold float64
}

// New creates a classifier. The weight configuration is applied as given
// and normalized by its sum at scoring time.
func New(weights config.Weights, confidenceThreshold float64) *Classifier {
	return &Classifier{
		weights:             weights,
		confidenceThreshold: confidenceThreshold,
	}
}

// Classify determines the document type and confidence.
//
// NeedsReview is the union of two conditions: confidence below the
// threshold, or an unresolved supplier. Both trigger review on their own;
// a high-confidence type match with an unknown supplier still goes to
// review.
func (c *Classifier) Classify(ext model.Extraction, match model.SupplierMatch) model.Classification {
	docType := c.inferType(ext)

	fieldScore := fieldPresence(docType, ext)
	textScore := 0.5 // OCR confidence is not surfaced, so quality stays neutral
	if len(ext.TextExcerpt) < minUsableTextLength {
		textScore = 0
	}

	w := c.weights
	total := w.Fields + w.Supplier + w.TextQuality
	confidence := (w.Fields*fieldScore + w.Supplier*match.Score + w.TextQuality*textScore) / total

	return model.Classification{
		Type:        docType,
		Confidence:  confidence,
		Extraction:  ext,
		Supplier:    match,
		NeedsReview: confidence < c.confidenceThreshold || match.Unresolved(),
	}
}

// inferType uses the keyword hint when present, otherwise falls back to
// field-presence heuristics.
func (c *Classifier) inferType(ext model.Extraction) model.DocumentType {
	if ext.TypeHint != nil {
		return *ext.TypeHint
	}
	if ext.Amount == nil {
		return model.TypeOther
	}
	if ext.InvoiceNumber != nil {
		return model.TypeInvoice
	}
	return model.TypeReceipt
}

// expectedFields lists which extraction fields a given type is expected
// to carry; the field score is the fraction actually present.
func fieldPresence(t model.DocumentType, ext model.Extraction) float64 {
	type probe func(model.Extraction) bool
	hasDate := func(e model.Extraction) bool { return e.DocumentDate != nil }
	hasAmount := func(e model.Extraction) bool { return e.Amount != nil }
	hasNumber := func(e model.Extraction) bool { return e.InvoiceNumber != nil }
	hasSupplier := func(e model.Extraction) bool { return e.HasSupplierText() }

	var expected []probe
	switch t {
	case model.TypeInvoice, model.TypeCreditNote:
		expected = []probe{hasDate, hasAmount, hasNumber, hasSupplier}
	case model.TypeQuote, model.TypeReceipt, model.TypeStatement:
		expected = []probe{hasDate, hasAmount, hasSupplier}
	default:
		expected = []probe{hasDate, hasSupplier}
	}

	present := 0
	for _, p := range expected {
		if p(ext) {
			present++
		}
	}
	return float64(present) / float64(len(expected))
}
