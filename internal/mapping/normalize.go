package mapping

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Clean normalizes a catalog code: surrounding blanks go, and so does a
// trailing ".0" left by numeric columns rendered as text ("24.0" -> "24").
func Clean(code string) string {
	code = strings.TrimSpace(code)
	if strings.HasSuffix(code, ".0") {
		trimmed := strings.TrimSuffix(code, ".0")
		if trimmed != "" && strings.Trim(trimmed, "0123456789") == "" {
			return trimmed
		}
	}
	return code
}

var truthy = map[string]bool{
	"1":    true,
	"s":    true,
	"si":   true,
	"y":    true,
	"yes":  true,
	"true": true,
	"t":    true,
}

// ParseFlag reads the yes/no flags of the catalog. Case and accents are
// ignored, so "Sí", "SI" and "si" are all true. Anything else is false.
func ParseFlag(s string) bool {
	return truthy[Fold(s)]
}

// Fold lowercases s and strips diacritics.
func Fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, strings.TrimSpace(s))
	if err != nil {
		out = strings.TrimSpace(s)
	}
	return strings.ToLower(out)
}
