package contact

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Normalize folds text into the key used for every fuzzy comparison: lowercased, decomposed
// (NFD), stripped of combining marks and trimmed. Normalize(Normalize(s)) == Normalize(s).
func Normalize(text string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)))
	out, _, err := transform.String(t, strings.ToLower(text))
	if err != nil {
		// the chain never fails on valid input; fall back to plain folding
		out = strings.ToLower(text)
	}
	return strings.TrimSpace(out)
}

// Matches reports whether needle fuzzily matches haystack, i.e. the normalized needle is a
// substring of the normalized haystack.
func Matches(needle, haystack string) bool {
	return strings.Contains(Normalize(haystack), Normalize(needle))
}

// Equal reports whether a and b are the same after normalization.
func Equal(a, b string) bool {
	return Normalize(a) == Normalize(b)
}
