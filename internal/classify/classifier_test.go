package classify

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tbernier/docroute/internal/config"
	"github.com/tbernier/docroute/internal/model"
)

var testWeights = config.Weights{Fields: 0.5, Supplier: 0.35, TextQuality: 0.15}

func fullInvoiceExtraction() model.Extraction {
	date := time.Date(2024, time.March, 15, 0, 0, 0, 0, time.UTC)
	amount := 123.45
	number := "FAC-2024-042"
	raw := "ACME Corp SAS"
	hint := model.TypeInvoice
	return model.Extraction{
		DocumentDate:  &date,
		Amount:        &amount,
		InvoiceNumber: &number,
		SupplierRaw:   &raw,
		TypeHint:      &hint,
		TextExcerpt:   strings.Repeat("facture ", 10),
	}
}

func TestClassifyConfidentInvoice(t *testing.T) {
	c := New(testWeights, 0.6)
	match := model.SupplierMatch{Canonical: "ACME", MatchedAlias: "ACME Corp", Score: 1.0, IsConfident: true}

	got := c.Classify(fullInvoiceExtraction(), match)

	assert.Equal(t, model.TypeInvoice, got.Type)
	// fields 4/4, supplier 1.0, text neutral 0.5 under 0.5/0.35/0.15.
	assert.InDelta(t, 0.925, got.Confidence, 1e-9)
	assert.False(t, got.NeedsReview)
}

func TestClassifyUnresolvedSupplierForcesReview(t *testing.T) {
	// Even a perfect field score cannot bypass review when the supplier
	// is unknown.
	c := New(testWeights, 0.6)
	match := model.SupplierMatch{Score: 0.65, IsConfident: false}

	got := c.Classify(fullInvoiceExtraction(), match)

	assert.GreaterOrEqual(t, got.Confidence, 0.6)
	assert.True(t, got.NeedsReview)
}

func TestClassifyLowConfidenceForcesReview(t *testing.T) {
	c := New(testWeights, 0.6)
	hint := model.TypeInvoice
	ext := model.Extraction{
		TypeHint:    &hint,
		TextExcerpt: "facture illisible sans autres champs",
	}
	match := model.SupplierMatch{Canonical: "ACME", Score: 0.8, IsConfident: true}

	got := c.Classify(ext, match)

	assert.Less(t, got.Confidence, 0.6)
	assert.True(t, got.NeedsReview)
}

func TestClassifyShortTextZeroesQualityTerm(t *testing.T) {
	c := New(testWeights, 0.6)
	ext := fullInvoiceExtraction()
	ext.TextExcerpt = "court"
	match := model.SupplierMatch{Canonical: "ACME", Score: 1.0, IsConfident: true}

	got := c.Classify(ext, match)

	// fields 4/4, supplier 1.0, text 0.
	assert.InDelta(t, 0.85, got.Confidence, 1e-9)
}

func TestClassifyWeightsNormalizedBySum(t *testing.T) {
	// Doubling every weight must not change the score.
	c1 := New(testWeights, 0.6)
	c2 := New(config.Weights{Fields: 1.0, Supplier: 0.7, TextQuality: 0.3}, 0.6)
	match := model.SupplierMatch{Canonical: "ACME", Score: 0.9, IsConfident: true}

	ext := fullInvoiceExtraction()
	assert.InDelta(t, c1.Classify(ext, match).Confidence, c2.Classify(ext, match).Confidence, 1e-9)
}

func TestInferType(t *testing.T) {
	amount := 10.0
	number := "A-1"
	hint := model.TypeQuote

	tests := []struct {
		name string
		ext  model.Extraction
		want model.DocumentType
	}{
		{
			name: "keyword hint wins",
			ext:  model.Extraction{TypeHint: &hint, Amount: &amount, InvoiceNumber: &number},
			want: model.TypeQuote,
		},
		{
			name: "no amount means other",
			ext:  model.Extraction{InvoiceNumber: &number},
			want: model.TypeOther,
		},
		{
			name: "amount and number means invoice",
			ext:  model.Extraction{Amount: &amount, InvoiceNumber: &number},
			want: model.TypeInvoice,
		},
		{
			name: "amount alone means receipt",
			ext:  model.Extraction{Amount: &amount},
			want: model.TypeReceipt,
		},
	}

	c := New(testWeights, 0.6)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.ext, model.SupplierMatch{})
			assert.Equal(t, tt.want, got.Type)
		})
	}
}
