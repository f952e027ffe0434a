// Package textract defines the text extraction boundary. The pipeline
// only depends on the TextExtractor interface; the OCR engine behind it
// is an external collaborator.
package textract

import (
	"context"
	"fmt"

	"github.com/tbernier/docroute/internal/common"
)

// TextExtractor returns the raw text of a document, running OCR when the
// file has no embedded text layer.
type TextExtractor interface {
	ExtractText(ctx context.Context, path string) (string, error)
}

// Unavailable wraps an extraction failure so the pipeline can route the
// file to FAILED. errors.Is(err, common.ErrExtractionUnavailable) holds
// for every error returned by implementations in this package.
func Unavailable(path string, cause error) error {
	return fmt.Errorf("%w: %s: %v", common.ErrExtractionUnavailable, path, cause)
}
