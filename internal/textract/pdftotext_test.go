package textract

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbernier/docroute/internal/common"
)

// fakeRunner returns a scripted result per command name and records the
// invocations.
type fakeRunner struct {
	stdout map[string]string
	errs   map[string]error
	calls  []string
}

func (f *fakeRunner) Run(_ context.Context, name string, args ...string) ([]byte, []byte, error) {
	f.calls = append(f.calls, name+" "+strings.Join(args, " "))
	return []byte(f.stdout[name]), nil, f.errs[name]
}

func TestExtractTextUsesEmbeddedLayer(t *testing.T) {
	r := &fakeRunner{stdout: map[string]string{
		"pdftotext": "FACTURE ACME Corp, Total TTC : 100,00 EUR",
	}}
	e := NewCommandExtractorWithRunner("fra+eng", r)

	text, err := e.ExtractText(context.Background(), "/inbox/doc.pdf")
	require.NoError(t, err)
	assert.Contains(t, text, "ACME Corp")
	require.Len(t, r.calls, 1)
	assert.Equal(t, "pdftotext -layout /inbox/doc.pdf -", r.calls[0])
}

func TestExtractTextFallsBackToOCRForShortLayer(t *testing.T) {
	r := &fakeRunner{stdout: map[string]string{
		"pdftotext": "  \n ",
		"tesseract": "Texte reconnu par OCR sur un scan",
	}}
	e := NewCommandExtractorWithRunner("fra+eng", r)

	text, err := e.ExtractText(context.Background(), "/inbox/scan.pdf")
	require.NoError(t, err)
	assert.Contains(t, text, "OCR")
	require.Len(t, r.calls, 2)
	assert.Equal(t, "tesseract /inbox/scan.pdf stdout -l fra+eng", r.calls[1])
}

func TestExtractTextFallsBackToOCRWhenPdftotextFails(t *testing.T) {
	r := &fakeRunner{
		stdout: map[string]string{"tesseract": "recovered text from a damaged pdf"},
		errs:   map[string]error{"pdftotext": errors.New("exit status 1")},
	}
	e := NewCommandExtractorWithRunner("fra", r)

	text, err := e.ExtractText(context.Background(), "/inbox/damaged.pdf")
	require.NoError(t, err)
	assert.Contains(t, text, "recovered")
}

func TestExtractTextImagesGoStraightToOCR(t *testing.T) {
	r := &fakeRunner{stdout: map[string]string{"tesseract": "photo text"}}
	e := NewCommandExtractorWithRunner("fra+eng", r)

	_, err := e.ExtractText(context.Background(), "/inbox/photo.jpg")
	require.NoError(t, err)
	require.Len(t, r.calls, 1)
	assert.True(t, strings.HasPrefix(r.calls[0], "tesseract "))
}

func TestExtractTextUnavailable(t *testing.T) {
	r := &fakeRunner{errs: map[string]error{
		"pdftotext": errors.New("not installed"),
		"tesseract": errors.New("not installed"),
	}}
	e := NewCommandExtractorWithRunner("fra+eng", r)

	_, err := e.ExtractText(context.Background(), "/inbox/doc.pdf")
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrExtractionUnavailable))
}

func TestExtractTextOmitsLanguageFlagWhenUnset(t *testing.T) {
	r := &fakeRunner{stdout: map[string]string{"tesseract": "text"}}
	e := NewCommandExtractorWithRunner("", r)

	_, err := e.ExtractText(context.Background(), "/inbox/photo.png")
	require.NoError(t, err)
	assert.Equal(t, "tesseract /inbox/photo.png stdout", r.calls[0])
}
