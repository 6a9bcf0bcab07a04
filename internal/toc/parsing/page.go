// Package parsing implements the PDF Parser phase: per-page text on
// demand, document metadata, and the embedded outline, behind a
// prioritised chain of extraction backends. It generalises the
// teacher's internal/pdf/wrapper backend-selection idea and the
// per-page failure-tolerant loop in internal/pdf/reader.go, retargeted
// at physical-index-tagged page text instead of a generic
// TextElement/ImageElement surface.
package parsing

import "fmt"

// Page is a single 1-based page of a parsed document. Created on
// demand by Phase 1, never mutated afterward, dropped once Phase 7
// completes.
type Page struct {
	PhysicalIndex int
	Text          string
	TokenEstimate int
	HasTable      bool
}

// Sentinel wraps text in the boundary markers every downstream phase
// relies on to re-derive the absolute page number from any substring,
// per the pipeline's page-boundary marker convention.
func Sentinel(physicalIndex int, text string) string {
	return fmt.Sprintf("<physical_index_%d>%s</physical_index_%d>", physicalIndex, text, physicalIndex)
}

// estimateTokens applies the pipeline's rough token-budgeting
// heuristic: roughly 4 characters per token, matching the ballpark
// used across the prompt-budgeting call sites in Phases 2 and 3.
func estimateTokens(text string) int {
	n := len(text) / 4
	if n == 0 && text != "" {
		n = 1
	}
	return n
}

// hasTableMarkers is a cheap heuristic for the optional table-marker
// attribute: PDF table extraction leaves recognisable runs of tab or
// multi-space aligned columns that plain prose doesn't produce.
func hasTableMarkers(text string) bool {
	runSpaces := 0
	for _, r := range text {
		switch r {
		case '\t':
			return true
		case ' ':
			runSpaces++
			if runSpaces >= 4 {
				return true
			}
		default:
			runSpaces = 0
		}
	}
	return false
}
