package pathrule

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var deaccent = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Slugify normalizes a string into a filesystem-safe token: lower-cased,
// diacritics stripped, anything outside [a-z0-9] collapsed to a single
// underscore, length-capped. The result never contains path separators.
func Slugify(value string, maxLength int) string {
	if value == "" {
		return ""
	}

	folded, _, err := transform.String(deaccent, strings.ToLower(value))
	if err != nil {
		folded = strings.ToLower(value)
	}

	var b strings.Builder
	b.Grow(len(folded))
	lastUnderscore := true // suppress leading separators
	for _, r := range folded {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			lastUnderscore = false
		} else if !lastUnderscore {
			b.WriteRune('_')
			lastUnderscore = true
		}
	}

	out := strings.Trim(b.String(), "_")
	if maxLength > 0 && len(out) > maxLength {
		out = strings.Trim(out[:maxLength], "_")
	}
	return out
}
