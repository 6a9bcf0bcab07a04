// Package source implements TOC Source Selection (§4.3): choosing
// between an embedded outline, a printed contents page, or
// content-based reconstruction, with the embedded outline preferred
// whenever it passes a quality bar.
package source

import (
	"regexp"
	"strings"
	"unicode"
)

// formKeywords precedes a trailing colon that signals a form field
// rather than a heading ("Name:", "Date of birth:", "Signature:").
var formKeywords = []string{
	"name", "date", "signature", "address", "phone", "email",
	"ssn", "social security", "account", "reference", "id number",
	"title", "position", "company", "employer", "department",
}

// headingTokens prefix a title that's allowed to carry sentence-final
// punctuation without being rejected as prose ("Chapter 1: Origins.").
var headingTokens = []string{
	"chapter", "section", "part", "appendix", "book", "volume", "annex",
}

var singleLetterMarker = regexp.MustCompile(`^[a-zA-Z]\.\s*$`)

// ValidEntry reports whether title passes the TOC-entry validator
// described in §4.3, used to score embedded-outline acceptance
// (AcceptanceScore). LLM-proposed entries from Structure Extraction are
// not run through it.
func ValidEntry(title string) bool {
	trimmed := strings.TrimSpace(title)
	n := len([]rune(trimmed))

	if n < 2 || n > 80 {
		return false
	}
	if isPurePunctuation(trimmed) {
		return false
	}
	if singleLetterMarker.MatchString(trimmed) {
		return false
	}
	if isFormField(trimmed) {
		return false
	}
	if hasSentenceTerminalPunctuation(trimmed) && !hasHeadingToken(trimmed) {
		return false
	}
	return true
}

func isPurePunctuation(s string) bool {
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func isFormField(s string) bool {
	if !strings.HasSuffix(strings.TrimSpace(s), ":") {
		return false
	}
	lower := strings.ToLower(s)
	for _, kw := range formKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func hasSentenceTerminalPunctuation(s string) bool {
	body := strings.TrimRight(s, " ")
	if body == "" {
		return false
	}
	last := body[len(body)-1]
	return last == '.' || last == '!' || last == '?'
}

func hasHeadingToken(s string) bool {
	lower := strings.ToLower(s)
	for _, tok := range headingTokens {
		if strings.HasPrefix(lower, tok) {
			return true
		}
	}
	return false
}

// AcceptanceScore returns the fraction of titles that pass ValidEntry,
// used by the embedded-outline gate (≥5 entries and ≥50% pass).
func AcceptanceScore(titles []string) float64 {
	if len(titles) == 0 {
		return 0
	}
	passed := 0
	for _, t := range titles {
		if ValidEntry(t) {
			passed++
		}
	}
	return float64(passed) / float64(len(titles))
}
