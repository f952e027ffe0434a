// Package model defines the core domain models used throughout the application.
package model

import "time"

// DocumentType identifies the kind of document a file was classified as.
type DocumentType string

// Document type constants.
const (
	TypeInvoice    DocumentType = "invoice"
	TypeCreditNote DocumentType = "credit_note"
	TypeQuote      DocumentType = "quote"
	TypeLetter     DocumentType = "letter"
	TypeDrawing    DocumentType = "drawing"
	TypeTax        DocumentType = "tax"
	TypeReceipt    DocumentType = "receipt"
	TypeStatement  DocumentType = "statement"
	TypeOther      DocumentType = "other"
)

// ShortCode returns the compact label used in destination filenames.
func (t DocumentType) ShortCode() string {
	switch t {
	case TypeInvoice:
		return "FACT"
	case TypeCreditNote:
		return "AVR"
	case TypeQuote:
		return "DEVIS"
	case TypeLetter:
		return "COURRIER"
	case TypeDrawing:
		return "PLAN"
	case TypeTax:
		return "IMPOTS"
	case TypeReceipt:
		return "RECU"
	case TypeStatement:
		return "RELEVE"
	default:
		return "INCONNU"
	}
}

// Extraction holds the candidate metadata pulled out of a document's text.
// Every field is optional: a nil pointer means the corresponding pattern
// never matched, which is an expected state rather than an error.
type Extraction struct {
	DocumentDate  *time.Time
	Amount        *float64
	InvoiceNumber *string
	SupplierRaw   *string
	TypeHint      *DocumentType
	TextExcerpt   string
}

// HasSupplierText reports whether a non-empty supplier candidate was found.
func (e Extraction) HasSupplierText() bool {
	return e.SupplierRaw != nil && *e.SupplierRaw != ""
}
