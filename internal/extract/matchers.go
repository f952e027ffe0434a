package extract

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tbernier/docroute/internal/model"
)

// Monetary sanity bounds. Values outside this range are almost certainly
// not document totals (phone numbers, SIRET digits, page counters).
const (
	minPlausibleAmount = 0.01
	maxPlausibleAmount = 10_000_000
)

// Document dates outside this window are treated as pattern noise.
var (
	minPlausibleDate = time.Date(2000, 1, 1, 0, 0, 0, 0, time.UTC)
	maxPlausibleDate = time.Date(2030, 12, 31, 0, 0, 0, 0, time.UTC)
)

// dateMatcher recognizes one date notation. Matchers run in order and the
// first plausible hit wins.
type dateMatcher struct {
	re    *regexp.Regexp
	parse func(groups []string) (time.Time, bool)
}

var frenchMonths = []string{
	"janvier", "février", "mars", "avril", "mai", "juin",
	"juillet", "août", "septembre", "octobre", "novembre", "décembre",
}

var dateMatchers = []dateMatcher{
	// ISO: 2024-12-31
	{
		re: regexp.MustCompile(`\b(20\d{2})[/\-](\d{2})[/\-](\d{2})\b`),
		parse: func(g []string) (time.Time, bool) {
			return makeDate(g[1], g[2], g[3])
		},
	},
	// Numeric day-first: 31/12/2024, 31-12-24, 31.12.2024
	{
		re: regexp.MustCompile(`\b(\d{1,2})[/\-.](\d{1,2})[/\-.](\d{2,4})\b`),
		parse: func(g []string) (time.Time, bool) {
			year := g[3]
			if len(year) == 2 {
				year = "20" + year
			}
			return makeDate(year, g[2], g[1])
		},
	},
	// Long French: 3 décembre 2024
	{
		re: regexp.MustCompile(`(?i)\b(\d{1,2})\s+(` + strings.Join(frenchMonths, "|") + `)\s+(\d{4})\b`),
		parse: func(g []string) (time.Time, bool) {
			month := 0
			for i, m := range frenchMonths {
				if strings.EqualFold(m, g[2]) {
					month = i + 1
					break
				}
			}
			if month == 0 {
				return time.Time{}, false
			}
			return makeDate(g[3], strconv.Itoa(month), g[1])
		},
	},
}

func makeDate(year, month, day string) (time.Time, bool) {
	y, err1 := strconv.Atoi(year)
	m, err2 := strconv.Atoi(month)
	d, err3 := strconv.Atoi(day)
	if err1 != nil || err2 != nil || err3 != nil {
		return time.Time{}, false
	}
	if m < 1 || m > 12 || d < 1 || d > 31 {
		return time.Time{}, false
	}
	t := time.Date(y, time.Month(m), d, 0, 0, 0, 0, time.UTC)
	// time.Date normalizes overflow (e.g. Feb 31), so round-trip the day.
	if t.Day() != d || t.Month() != time.Month(m) {
		return time.Time{}, false
	}
	return t, true
}

// matchDate returns the first plausible date in the text.
func matchDate(text string) *time.Time {
	for _, m := range dateMatchers {
		for _, groups := range m.re.FindAllStringSubmatch(text, -1) {
			d, ok := m.parse(groups)
			if !ok {
				continue
			}
			if d.Before(minPlausibleDate) || d.After(maxPlausibleDate) {
				continue
			}
			return &d
		}
	}
	return nil
}

var (
	// Labelled totals: "Total TTC : 1 234,56 €", "Montant TTC 999.99".
	amountLabelled = regexp.MustCompile(
		`(?i)(?:total\s+ttc|ttc\s*:?|montant\s+ttc|total\s+à\s+payer|total\s+due|amount\s+due)\s*:?\s*` +
			`([\d\s]+[,.]\d{2})\s*(?:€|eur|euros?)?`)
	// Fallback: any decimal suffixed with a currency marker. The word
	// boundary only applies to the letter forms; \b never matches after €.
	amountFallback = regexp.MustCompile(`(?i)([\d\s]+[,.]\d{2})\s*(?:€|eur(?:os?)?\b)`)
)

// matchAmount returns the first plausible monetary amount: a labelled
// total if present, otherwise the last currency-suffixed figure.
func matchAmount(text string) *float64 {
	if g := amountLabelled.FindStringSubmatch(text); g != nil {
		if v, ok := parseAmount(g[1]); ok {
			return &v
		}
	}
	all := amountFallback.FindAllStringSubmatch(text, -1)
	for i := len(all) - 1; i >= 0; i-- {
		if v, ok := parseAmount(all[i][1]); ok {
			return &v
		}
	}
	return nil
}

// parseAmount normalizes locale separators (space thousands, comma or dot
// decimals) and applies the sanity range.
func parseAmount(raw string) (float64, bool) {
	s := strings.ReplaceAll(raw, " ", "")
	s = strings.ReplaceAll(s, " ", "")
	s = strings.ReplaceAll(s, ",", ".")
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	if v < minPlausibleAmount || v > maxPlausibleAmount {
		return 0, false
	}
	return v, true
}

// FormatAmount renders an amount back to the French notation the
// extractor parses, so parse→render→parse is stable.
func FormatAmount(v float64) string {
	return strings.ReplaceAll(strconv.FormatFloat(v, 'f', 2, 64), ".", ",")
}

var (
	invoiceNumberLabelled = regexp.MustCompile(
		`(?i)(?:facture\s*n[°ºo]?\s*:?|invoice\s*(?:no|n°|#)?\s*:?|n°\s*facture\s*:?)\s*([A-Z0-9][A-Z0-9\-/]*)`)
	invoiceNumberGeneric = regexp.MustCompile(`(?i)(?:n°|no\.?|#)\s*([A-Z0-9][A-Z0-9\-/]{3,})`)
)

// matchInvoiceNumber returns the labelled invoice number when present,
// else a generic reference of at least four characters.
func matchInvoiceNumber(text string) *string {
	if g := invoiceNumberLabelled.FindStringSubmatch(text); g != nil {
		n := strings.TrimSpace(g[1])
		if n != "" {
			return &n
		}
	}
	if g := invoiceNumberGeneric.FindStringSubmatch(text); g != nil {
		n := strings.TrimSpace(g[1])
		if n != "" {
			return &n
		}
	}
	return nil
}

// typeKeywords maps a document type to the phrases that signal it. Order
// matters: credit notes mention "facture" too, so they are tested first.
type typeKeywords struct {
	docType  model.DocumentType
	keywords []string
}

var typeMatchers = []typeKeywords{
	{model.TypeCreditNote, []string{"avoir", "credit note", "crédit", "remboursement", "refund"}},
	{model.TypeInvoice, []string{"facture", "invoice", "rechnung"}},
	{model.TypeQuote, []string{"devis", "quote", "estimation", "proposition commerciale", "proposal"}},
	{model.TypeReceipt, []string{"reçu", "recu ", "receipt", "ticket de caisse"}},
	{model.TypeStatement, []string{"relevé de compte", "releve de compte", "statement"}},
	{model.TypeLetter, []string{"courrier", "lettre", "letter", "correspondance"}},
	{model.TypeDrawing, []string{"schéma", "schema", "drawing", "plan de", "plan d'"}},
	{model.TypeTax, []string{"impôts", "impots", "avis d'imposition", "avis d'impôt", "dgfip", "urssaf", "taxe", "fiscal"}},
}

// matchTypeHint returns the first document type whose keyword list hits.
func matchTypeHint(text string) *model.DocumentType {
	lower := strings.ToLower(text)
	for _, tm := range typeMatchers {
		for _, kw := range tm.keywords {
			if strings.Contains(lower, kw) {
				t := tm.docType
				return &t
			}
		}
	}
	return nil
}
