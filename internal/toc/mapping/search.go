package mapping

import (
	"sort"
	"strings"

	"github.com/hbollon/go-edlib"
)

// fuzzyThreshold is §4.5's minimum Levenshtein similarity ratio for a
// fuzzy title match.
const fuzzyThreshold = 0.85

// searchWindow is how far from a claimed page locate widens its search
// before giving up, wide enough to absorb a front-matter pagination
// offset (roman-numeral preface pages, unnumbered plates, and the
// like).
const searchWindow = 25

// candidate is one page considered for a title match, carrying enough
// to break ties the way §4.5 asks: earliest page first, then the
// occurrence nearest the top of the page.
type candidate struct {
	physicalIndex int
	lineIndex     int
	score         float64 // 1.0 for an exact match, else the fuzzy ratio
}

// locate finds the physical_index whose text best matches title,
// searching pages nearest to claimedPage first and widening outward up
// to searchWindow. claimedPage of 0 means no hint is available and
// every page is searched in document order.
func locate(title string, claimedPage int, normPages map[int][]string) (int, bool) {
	order := searchOrder(claimedPage, normPages)
	return searchOrdered(title, order, normPages)
}

// locateForward is locate restricted to pages at or after minPage, used
// by the non-decreasing repair pass, which must never move a title
// backward in the document.
func locateForward(title string, minPage, maxPage int, normPages map[int][]string) (int, bool) {
	var order []int
	for p := minPage; p <= maxPage; p++ {
		if _, ok := normPages[p]; ok {
			order = append(order, p)
		}
	}
	return searchOrdered(title, order, normPages)
}

func searchOrdered(title string, order []int, normPages map[int][]string) (int, bool) {
	normTitle := Normalize(title)
	if normTitle == "" {
		return 0, false
	}

	var best *candidate
	for _, p := range order {
		lines := normPages[p]
		for li, line := range lines {
			if line == "" {
				continue
			}
			var score float64
			if strings.Contains(line, normTitle) {
				score = 1.0
			} else {
				similarity, err := edlib.StringsSimilarity(normTitle, line, edlib.Levenshtein)
				if err != nil {
					continue
				}
				ratio := float64(similarity)
				if ratio < fuzzyThreshold {
					continue
				}
				score = ratio
			}
			c := candidate{physicalIndex: p, lineIndex: li, score: score}
			if best == nil || better(c, *best) {
				best = &c
			}
		}
		// An exact match on the page nearest the claim wins outright;
		// no need to keep widening past it.
		if best != nil && best.score == 1.0 && best.physicalIndex == p {
			break
		}
	}

	if best == nil {
		return 0, false
	}
	return best.physicalIndex, true
}

// better reports whether a is preferred over b: a higher score wins,
// then the earlier page, then the occurrence closer to the top of its
// page.
func better(a, b candidate) bool {
	if a.score != b.score {
		return a.score > b.score
	}
	if a.physicalIndex != b.physicalIndex {
		return a.physicalIndex < b.physicalIndex
	}
	return a.lineIndex < b.lineIndex
}

// searchOrder builds the page-visit order: claimedPage itself, then
// alternating outward by increasing distance, bounded to
// +/-searchWindow. With no claim it's simply every known page in
// ascending order.
func searchOrder(claimedPage int, normPages map[int][]string) []int {
	if claimedPage <= 0 {
		var all []int
		for p := range normPages {
			all = append(all, p)
		}
		sort.Ints(all)
		return all
	}

	seen := make(map[int]bool, len(normPages))
	var order []int
	push := func(p int) {
		if p <= 0 || seen[p] {
			return
		}
		if _, ok := normPages[p]; !ok {
			return
		}
		seen[p] = true
		order = append(order, p)
	}

	push(claimedPage)
	for d := 1; d <= searchWindow; d++ {
		push(claimedPage - d)
		push(claimedPage + d)
	}
	return order
}
