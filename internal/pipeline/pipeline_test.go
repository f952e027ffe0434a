package pipeline

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tbernier/docroute/internal/classify"
	"github.com/tbernier/docroute/internal/config"
	"github.com/tbernier/docroute/internal/extract"
	"github.com/tbernier/docroute/internal/model"
	"github.com/tbernier/docroute/internal/mover"
	"github.com/tbernier/docroute/internal/pathrule"
	"github.com/tbernier/docroute/internal/storage"
	"github.com/tbernier/docroute/internal/supplier"
)

const confidentInvoiceText = `FACTURE N° FAC-2024-042
ACME Corp SAS
12 rue de la Paix, 75002 Paris

Date: 15/03/2024
Total TTC : 123,45 €`

const unknownSupplierText = `FACTURE N° ZZ-99
Zebra Industries SARL
Date: 01/02/2024
Total TTC : 50,00 €`

// stubText serves scripted text per basename.
type stubText struct {
	texts map[string]string
	errs  map[string]error
}

func (s stubText) ExtractText(_ context.Context, path string) (string, error) {
	base := filepath.Base(path)
	if err := s.errs[base]; err != nil {
		return "", err
	}
	return s.texts[base], nil
}

type panickyText struct{}

func (panickyText) ExtractText(context.Context, string) (string, error) {
	panic("parser bug")
}

// memRecorder collects journal outcomes in memory.
type memRecorder struct {
	mu       sync.Mutex
	outcomes []storage.Outcome
}

func (m *memRecorder) Record(_ context.Context, o *storage.Outcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, *o)
	return nil
}

func (m *memRecorder) all() []storage.Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]storage.Outcome(nil), m.outcomes...)
}

type env struct {
	inbox   string
	archive string
	p       *Pipeline
	journal *memRecorder
}

func newEnv(t *testing.T, text stubText) *env {
	t.Helper()
	e := &env{
		inbox:   t.TempDir(),
		archive: t.TempDir(),
		journal: &memRecorder{},
	}

	cfg := &config.Config{
		DestinationRoot: e.archive,
		TreeTemplate:    "Factures_fournisseurs/{fournisseur}/{YYYY}/{MM}",
		FilenameFormat:  "{YYYY}-{MM}-{DD}_{type_doc}_{fournisseur}_{numero}_{montant}.pdf",
	}

	clock := func() time.Time {
		return time.Date(2024, time.March, 15, 10, 30, 0, 0, time.UTC)
	}

	e.p = New(Config{
		Text:       text,
		Fields:     extract.New(),
		Supplier:   supplier.NewResolver(map[string]string{"ACME Corp": "ACME"}, 0.7),
		Classifier: classify.New(config.Weights{Fields: 0.5, Supplier: 0.35, TextQuality: 0.15}, 0.6),
		Paths:      pathrule.NewResolver(cfg),
		Mover: mover.NewWithClock(
			filepath.Join(e.archive, "A_CLASSER"),
			filepath.Join(e.archive, "FAILED"),
			clock),
		Journal:     e.journal,
		Workers:     2,
		FileTimeout: 30 * time.Second,
	})
	return e
}

func (e *env) drop(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(e.inbox, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o640))
	return path
}

func TestProcessFileClassified(t *testing.T) {
	e := newEnv(t, stubText{texts: map[string]string{"scan.pdf": confidentInvoiceText}})
	src := e.drop(t, "scan.pdf", "pdf bytes")

	got := e.p.ProcessFile(context.Background(), src)

	assert.Equal(t, model.RouteClassified, got.Route)
	want := filepath.Join(e.archive,
		"Factures_fournisseurs", "acme", "2024", "03",
		"2024-03-15_FACT_acme_fac_2024_042_123_45.pdf")
	assert.Equal(t, want, got.FinalPath)
	assert.False(t, got.Classification.NeedsReview)

	data, err := os.ReadFile(want)
	require.NoError(t, err)
	assert.Equal(t, "pdf bytes", string(data))
	_, err = os.Stat(src)
	assert.True(t, os.IsNotExist(err))

	recorded := e.journal.all()
	require.Len(t, recorded, 1)
	o := recorded[0]
	assert.Equal(t, model.RouteClassified, o.Route)
	assert.Equal(t, "ACME", o.Supplier)
	assert.Equal(t, "invoice", o.DocType)
	assert.Equal(t, want, o.Destination)
}

func TestProcessFileUnknownSupplierGoesToReview(t *testing.T) {
	e := newEnv(t, stubText{texts: map[string]string{"scan.pdf": unknownSupplierText}})
	src := e.drop(t, "scan.pdf", "pdf bytes")

	got := e.p.ProcessFile(context.Background(), src)

	assert.Equal(t, model.RouteNeedsReview, got.Route)
	assert.Contains(t, got.Reason, "unresolved supplier")
	assert.Equal(t,
		filepath.Join(e.archive, "A_CLASSER", "20240315_103000_A_CLASSER_scan.pdf"),
		got.FinalPath)

	// The sidecar rides along for triage.
	_, err := os.Stat(filepath.Join(e.archive, "A_CLASSER", "20240315_103000_A_CLASSER_scan.json"))
	assert.NoError(t, err)

	recorded := e.journal.all()
	require.Len(t, recorded, 1)
	assert.Equal(t, model.RouteNeedsReview, recorded[0].Route)
}

func TestProcessFileExtractionFailureGoesToFailed(t *testing.T) {
	e := newEnv(t, stubText{errs: map[string]error{"broken.pdf": errors.New("ocr crashed")}})
	src := e.drop(t, "broken.pdf", "corrupt bytes")

	got := e.p.ProcessFile(context.Background(), src)

	assert.Equal(t, model.RouteFailed, got.Route)
	assert.Contains(t, got.Reason, "text extraction failed")

	// Original bytes survive in the FAILED bucket.
	data, err := os.ReadFile(filepath.Join(e.archive, "FAILED", "broken.pdf"))
	require.NoError(t, err)
	assert.Equal(t, "corrupt bytes", string(data))
}

func TestProcessFileCollidingDestinations(t *testing.T) {
	e := newEnv(t, stubText{texts: map[string]string{
		"a.pdf": confidentInvoiceText,
		"b.pdf": confidentInvoiceText,
	}})
	srcA := e.drop(t, "a.pdf", "first")
	srcB := e.drop(t, "b.pdf", "second")

	first := e.p.ProcessFile(context.Background(), srcA)
	second := e.p.ProcessFile(context.Background(), srcB)

	require.Equal(t, model.RouteClassified, first.Route)
	require.Equal(t, model.RouteClassified, second.Route)
	assert.NotEqual(t, first.FinalPath, second.FinalPath)
	assert.True(t, strings.HasSuffix(second.FinalPath, "_1.pdf"), "got %s", second.FinalPath)

	data, err := os.ReadFile(first.FinalPath)
	require.NoError(t, err)
	assert.Equal(t, "first", string(data))
	data, err = os.ReadFile(second.FinalPath)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestProcessFilePanicRoutesToFailed(t *testing.T) {
	e := newEnv(t, stubText{})
	e.p.cfg.Text = panickyText{}
	src := e.drop(t, "scan.pdf", "bytes")

	got := e.p.ProcessFile(context.Background(), src)

	assert.Equal(t, model.RouteFailed, got.Route)
	assert.Contains(t, got.Reason, "panic")
	_, err := os.Stat(filepath.Join(e.archive, "FAILED", "scan.pdf"))
	assert.NoError(t, err)
}

func TestProcessFileNoRuleForType(t *testing.T) {
	e := newEnv(t, stubText{texts: map[string]string{"scan.pdf": confidentInvoiceText}})

	cfg := &config.Config{
		DestinationRoot: e.archive,
		TreeTemplate:    "Factures_fournisseurs/{fournisseur}/{YYYY}/{MM}",
		FilenameFormat:  "{numero}.pdf",
		Rules:           []config.RoutingRule{{Type: "quote", Tree: "Devis/{YYYY}"}},
	}
	e.p.cfg.Paths = pathrule.NewResolver(cfg)
	src := e.drop(t, "scan.pdf", "bytes")

	got := e.p.ProcessFile(context.Background(), src)

	assert.Equal(t, model.RouteNeedsReview, got.Route)
	assert.Contains(t, got.Reason, "no routing rule")
}

func TestPreviewMovesNothing(t *testing.T) {
	e := newEnv(t, stubText{texts: map[string]string{"scan.pdf": confidentInvoiceText}})
	src := e.drop(t, "scan.pdf", "pdf bytes")

	got := e.p.Preview(context.Background(), src)

	assert.True(t, got.DryRun)
	assert.Equal(t, model.RouteClassified, got.Route)
	require.NotNil(t, got.Decision)
	assert.Equal(t, got.Decision.Path(), got.FinalPath)

	// Source untouched, nothing journaled.
	_, err := os.Stat(src)
	assert.NoError(t, err)
	assert.Empty(t, e.journal.all())
}

func TestRunDrainsChannel(t *testing.T) {
	e := newEnv(t, stubText{texts: map[string]string{
		"a.pdf": confidentInvoiceText,
		"b.pdf": unknownSupplierText,
	}})
	srcA := e.drop(t, "a.pdf", "first")
	srcB := e.drop(t, "b.pdf", "second")

	files := make(chan string, 2)
	files <- srcA
	files <- srcB
	close(files)

	require.NoError(t, e.p.Run(context.Background(), files))

	_, errA := os.Stat(srcA)
	_, errB := os.Stat(srcB)
	assert.True(t, os.IsNotExist(errA))
	assert.True(t, os.IsNotExist(errB))
	assert.Len(t, e.journal.all(), 2)
}

func TestRunStopsOnCancel(t *testing.T) {
	e := newEnv(t, stubText{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := e.p.Run(ctx, make(chan string))
	assert.True(t, errors.Is(err, context.Canceled))
}
