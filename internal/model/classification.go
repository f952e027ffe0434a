package model

import "time"

// Route identifies the terminal state of a dispatched file.
type Route string

// Route constants.
const (
	RouteClassified  Route = "CLASSIFIED"
	RouteNeedsReview Route = "NEEDS_REVIEW"
	RouteFailed      Route = "FAILED"
)

// Classification combines the extracted fields and the supplier match into
// a final document type with an overall confidence score.
type Classification struct {
	Type       DocumentType
	Confidence float64
	Extraction Extraction
	Supplier   SupplierMatch

	// NeedsReview is true when confidence is below the configured
	// threshold or the supplier could not be resolved. A confident type
	// match with an unknown supplier still needs review.
	NeedsReview bool
}

// Sidecar is the JSON document written next to a file routed to review.
type Sidecar struct {
	SourceFile    string   `json:"source_file"`
	Type          string   `json:"type"`
	Confidence    float64  `json:"confidence"`
	DocumentDate  *string  `json:"document_date"`
	Amount        *float64 `json:"amount"`
	InvoiceNumber *string  `json:"invoice_number"`
	SupplierRaw   *string  `json:"supplier_raw"`
	Supplier      string   `json:"supplier"`
	SupplierScore float64  `json:"supplier_score"`
	Reason        string   `json:"reason"`
	RoutedAt      string   `json:"routed_at"`
}

// NewSidecar flattens a classification for the review sidecar file.
func NewSidecar(source string, c Classification, reason string, now time.Time) Sidecar {
	s := Sidecar{
		SourceFile:    source,
		Type:          string(c.Type),
		Confidence:    c.Confidence,
		Amount:        c.Extraction.Amount,
		InvoiceNumber: c.Extraction.InvoiceNumber,
		SupplierRaw:   c.Extraction.SupplierRaw,
		Supplier:      c.Supplier.Canonical,
		SupplierScore: c.Supplier.Score,
		Reason:        reason,
		RoutedAt:      now.Format(time.RFC3339),
	}
	if c.Extraction.DocumentDate != nil {
		d := c.Extraction.DocumentDate.Format("2006-01-02")
		s.DocumentDate = &d
	}
	return s
}
