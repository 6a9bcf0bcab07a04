// Package gapfill implements Gap Filling (§4.8): detecting page
// ranges the built tree's leaves don't cover, and generating a
// supplementary sub-tree for each one so the final tree's leaves
// cover the whole document.
package gapfill

import "github.com/a3tai/toctree/internal/toc/tree"

const phase = "gapfill"

// Gap is a maximal contiguous run of physical pages not covered by
// any leaf, per the GLOSSARY's definition.
type Gap struct {
	Start int
	End   int
}

// Detect walks root's leaves, marks the pages they cover, and returns
// the complement coalesced into maximal runs.
func Detect(root *tree.Node, totalPages int) []Gap {
	covered := coveredPages(root, totalPages)

	var gaps []Gap
	start := 0
	for p := 1; p <= totalPages; p++ {
		if !covered[p] {
			if start == 0 {
				start = p
			}
			continue
		}
		if start != 0 {
			gaps = append(gaps, Gap{Start: start, End: p - 1})
			start = 0
		}
	}
	if start != 0 {
		gaps = append(gaps, Gap{Start: start, End: totalPages})
	}
	return gaps
}

// coveredPages returns a totalPages+1-length slice (1-indexed) marking
// every page covered by at least one leaf. A leaf is a node with no
// children; internal nodes don't contribute their own range, so pages
// of an internal node that lie before its first child (or otherwise
// outside every child) count as uncovered.
func coveredPages(root *tree.Node, totalPages int) []bool {
	covered := make([]bool, totalPages+1)
	tree.Walk(root, func(n *tree.Node) {
		if len(n.Nodes) > 0 {
			return
		}
		for p := n.StartIndex; p <= n.EndIndex; p++ {
			if p >= 1 && p <= totalPages {
				covered[p] = true
			}
		}
	})
	return covered
}

func countCovered(covered []bool) int {
	n := 0
	for _, c := range covered {
		if c {
			n++
		}
	}
	return n
}
