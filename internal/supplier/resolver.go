// Package supplier fuzzy-matches extracted supplier text against the
// configured alias table, mapping it to a canonical supplier name.
package supplier

import (
	"strings"

	"github.com/agext/levenshtein"

	"github.com/tbernier/docroute/internal/model"
)

// alias is one prepared entry of the table.
type alias struct {
	raw        string
	normalized string
	sorted     string
	canonical  string
}

// Resolver matches raw supplier strings against a read-only alias table.
type Resolver struct {
	aliases   []alias
	threshold float64
}

// NewResolver prepares a resolver from the alias → canonical-name table
// and the confidence threshold for is_confident.
func NewResolver(table map[string]string, threshold float64) *Resolver {
	r := &Resolver{threshold: threshold}
	for a, canonical := range table {
		normalized := Normalize(a)
		r.aliases = append(r.aliases, alias{
			raw:        a,
			normalized: normalized,
			sorted:     sortedTokens(normalized),
			canonical:  canonical,
		})
	}
	return r
}

// Resolve returns the best-scoring alias for the raw text. Token-set
// scoring rates any subset relation 1.0, so ties are broken by the
// similarity of the token-sorted strings (an exact alias beats a
// superset alias, regardless of word order) and then by alias length.
// Empty input returns an unresolved match without running any
// comparison.
func (r *Resolver) Resolve(raw string) model.SupplierMatch {
	normalized := Normalize(raw)
	if normalized == "" || len(r.aliases) == 0 {
		return model.SupplierMatch{}
	}

	sorted := sortedTokens(normalized)
	var best model.SupplierMatch
	var bestPlain float64
	var bestAliasLen int
	for _, a := range r.aliases {
		score := tokenSetSimilarity(normalized, a.normalized)
		if score < best.Score {
			continue
		}
		plain := levenshtein.Similarity(sorted, a.sorted, nil)
		if score > best.Score ||
			plain > bestPlain ||
			(plain == bestPlain && len(a.normalized) > bestAliasLen) {
			best = model.SupplierMatch{
				Canonical:    a.canonical,
				MatchedAlias: a.raw,
				Score:        score,
			}
			bestPlain = plain
			bestAliasLen = len(a.normalized)
		}
	}

	best.IsConfident = best.Score >= r.threshold
	if !best.IsConfident {
		// Keep the score for diagnostics but report no canonical identity.
		best.Canonical = ""
		best.MatchedAlias = ""
	}
	return best
}

// tokenSetSimilarity compares two normalized strings by word sets,
// tolerating word order and partial overlap: the shared tokens are
// compared against each full token set and the best ratio wins.
func tokenSetSimilarity(a, b string) float64 {
	ta, tb := tokens(a), tokens(b)
	if len(ta) == 0 || len(tb) == 0 {
		return 0
	}

	inB := make(map[string]struct{}, len(tb))
	for _, t := range tb {
		inB[t] = struct{}{}
	}

	var shared, onlyA []string
	for _, t := range ta {
		if _, ok := inB[t]; ok {
			shared = append(shared, t)
		} else {
			onlyA = append(onlyA, t)
		}
	}
	inShared := make(map[string]struct{}, len(shared))
	for _, t := range shared {
		inShared[t] = struct{}{}
	}
	var onlyB []string
	for _, t := range tb {
		if _, ok := inShared[t]; !ok {
			onlyB = append(onlyB, t)
		}
	}

	base := strings.Join(shared, " ")
	fullA := strings.TrimSpace(base + " " + strings.Join(onlyA, " "))
	fullB := strings.TrimSpace(base + " " + strings.Join(onlyB, " "))

	score := levenshtein.Similarity(fullA, fullB, nil)
	if base != "" {
		if s := levenshtein.Similarity(base, fullA, nil); s > score {
			score = s
		}
		if s := levenshtein.Similarity(base, fullB, nil); s > score {
			score = s
		}
	}
	return score
}
