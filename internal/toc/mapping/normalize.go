// Package mapping implements the Page Mapper (§4.5): assigning
// physical_index to each TOCItem via a fast path for already-trusted
// sources, and a general path that searches page text for a
// normalised title match (exact, then fuzzy via go-edlib's Levenshtein
// ratio), followed by offset correction and a non-decreasing-sequence
// repair pass.
package mapping

import (
	"strings"
	"unicode"
)

// Normalize collapses whitespace, folds case, and strips punctuation,
// the three transformations §4.5's "normalised title" comparison
// requires.
func Normalize(s string) string {
	var sb strings.Builder
	lastWasSpace := true // trims leading space
	for _, r := range strings.ToLower(s) {
		switch {
		case unicode.IsSpace(r):
			if !lastWasSpace {
				sb.WriteRune(' ')
			}
			lastWasSpace = true
		case unicode.IsPunct(r) || unicode.IsSymbol(r):
			// dropped entirely, not replaced with a space
		default:
			sb.WriteRune(r)
			lastWasSpace = false
		}
	}
	return strings.TrimSpace(sb.String())
}
