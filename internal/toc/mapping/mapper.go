package mapping

import (
	"github.com/a3tai/toctree/internal/toc/parsing"
	"github.com/a3tai/toctree/internal/toc/structure"
)

// TrustGiven is §4.5's fast path: the embedded outline's page numbers
// are pdfcpu destination targets, already physical indices, so they're
// passed through unchanged rather than re-searched.
func TrustGiven(items []structure.TOCItem) []structure.TOCItem {
	return items
}

// Map is §4.5's general path, run over items whose PhysicalIndex came
// from a printed page number or an LLM guess rather than a pdf
// destination: it re-locates each title in the parsed pages (exact
// normalised match, then fuzzy via go-edlib's Levenshtein ratio),
// corrects for a systematic printed-page offset, and repairs the
// output into a non-decreasing physical_index sequence.
func Map(items []structure.TOCItem, pages []parsing.Page) []structure.TOCItem {
	normPages := normalizeAll(pages)

	out := make([]structure.TOCItem, len(items))
	copy(out, items)

	matched := make([]bool, len(out))
	var deltas []int

	for i := range out {
		idx, ok := locate(out[i].Title, out[i].PhysicalIndex, normPages)
		if !ok {
			continue
		}
		if out[i].PhysicalIndex != 0 {
			deltas = append(deltas, idx-out[i].PhysicalIndex)
		}
		out[i].PhysicalIndex = idx
		out[i].ValidationPassed = true
		matched[i] = true
	}

	offset := dominantOffset(deltas)
	if offset != 0 {
		for i := range out {
			if matched[i] || out[i].PhysicalIndex == 0 {
				continue
			}
			corrected := out[i].PhysicalIndex + offset
			if idx, ok := locate(out[i].Title, corrected, normPages); ok {
				out[i].PhysicalIndex = idx
				out[i].ValidationPassed = true
				matched[i] = true
			} else {
				out[i].PhysicalIndex = clamp(corrected, pages)
			}
		}
	}

	// Anything still unmatched after both the direct search and the
	// offset correction keeps its raw claimed page, which §4.5 notes
	// may be a logical printed-contents number rather than a physical
	// one; clamp it into the document's actual page range so it can't
	// reach Tree Building out of bounds.
	for i := range out {
		if matched[i] || out[i].PhysicalIndex == 0 {
			continue
		}
		out[i].PhysicalIndex = clamp(out[i].PhysicalIndex, pages)
	}

	enforceNonDecreasing(out, normPages)

	return out
}

func normalizeAll(pages []parsing.Page) map[int][]string {
	out := make(map[int][]string, len(pages))
	for _, pg := range pages {
		lines := make([]string, 0, 8)
		for _, l := range splitLines(pg.Text) {
			if n := Normalize(l); n != "" {
				lines = append(lines, n)
			}
		}
		out[pg.PhysicalIndex] = lines
	}
	return out
}

func splitLines(s string) []string {
	var lines []string
	start := 0
	for i, r := range s {
		if r == '\n' {
			lines = append(lines, s[start:i])
			start = i + 1
		}
	}
	lines = append(lines, s[start:])
	return lines
}

func clamp(page int, pages []parsing.Page) int {
	if len(pages) == 0 {
		return page
	}
	min, max := pages[0].PhysicalIndex, pages[0].PhysicalIndex
	for _, pg := range pages {
		if pg.PhysicalIndex < min {
			min = pg.PhysicalIndex
		}
		if pg.PhysicalIndex > max {
			max = pg.PhysicalIndex
		}
	}
	if page < min {
		return min
	}
	if page > max {
		return max
	}
	return page
}

// dominantOffset returns the most common delta, the correction applied
// to items the title search couldn't place directly, but only when it
// explains a clear majority of the matched deltas — a single outlier
// match shouldn't shift the whole unmatched tail.
func dominantOffset(deltas []int) int {
	if len(deltas) == 0 {
		return 0
	}
	counts := make(map[int]int, len(deltas))
	for _, d := range deltas {
		counts[d]++
	}
	bestDelta, bestCount := 0, 0
	for d, c := range counts {
		if c > bestCount {
			bestDelta, bestCount = d, c
		}
	}
	if float64(bestCount)/float64(len(deltas)) <= 0.5 {
		return 0
	}
	return bestDelta
}

// enforceNonDecreasing walks the mapped sequence and repairs any
// physical_index that regressed relative to the previous item, per
// §4.5's output invariant: it first tries to relocate the title
// forward of the previous item's page, falling back to clamping it
// level with the previous item when no forward occurrence exists.
func enforceNonDecreasing(items []structure.TOCItem, normPages map[int][]string) {
	if len(items) == 0 {
		return
	}
	maxPage := 0
	for p := range normPages {
		if p > maxPage {
			maxPage = p
		}
	}

	for i := 1; i < len(items); i++ {
		if items[i].PhysicalIndex >= items[i-1].PhysicalIndex {
			continue
		}
		if idx, ok := locateForward(items[i].Title, items[i-1].PhysicalIndex, maxPage, normPages); ok {
			items[i].PhysicalIndex = idx
			items[i].ValidationPassed = true
			continue
		}
		items[i].PhysicalIndex = items[i-1].PhysicalIndex
		items[i].ValidationPassed = false
	}
}
