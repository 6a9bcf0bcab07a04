// Package codegen synthesises and repairs the dotted hierarchical
// structure codes (e.g. "2.3.1") shared by Structure Extraction
// (§4.4) and Gap Filling (§4.8): both need the same "per-level
// counter, deeper levels restart" algorithm, and recursive Structure
// Extraction into an oversized node continues the node's code prefix
// rather than restarting numbering (the "Bug #2" fix, §9).
package codegen

import (
	"strconv"
	"strings"
)

// Synthesizer generates monotonically increasing structure codes by
// maintaining one counter per hierarchy level. Calling Next at a
// shallower level than the last call drops every deeper counter, so
// the next occurrence at that deeper level restarts from 1 — exactly
// the rule described for embedded-outline conversion in §4.4.
type Synthesizer struct {
	prefix   []int // fixed ancestor codes this synthesizer continues from (Bug #2)
	counters []int // counters[i] is the counter for level len(prefix)+i+1
}

// New builds a synthesizer starting fresh at level 1.
func New() *Synthesizer {
	return &Synthesizer{}
}

// Continuing builds a synthesizer that continues numbering under a
// fixed ancestor prefix (e.g. "2.3"), so children synthesized from it
// get codes like "2.3.1", "2.3.2", rather than restarting at "1". Used
// by recursive Structure Extraction into an oversized node, per §9's
// resolution of Bug #2.
func Continuing(prefixCode string) *Synthesizer {
	if prefixCode == "" {
		return New()
	}
	return &Synthesizer{prefix: ParseCode(prefixCode)}
}

// Next returns the code for the next entry at the given relative level
// (1-based, relative to the synthesizer's own root — level 1 is the
// first level below any fixed prefix).
func (s *Synthesizer) Next(level int) string {
	if level < 1 {
		level = 1
	}

	if level > len(s.counters) {
		for len(s.counters) < level {
			s.counters = append(s.counters, 0)
		}
	} else {
		s.counters = s.counters[:level]
	}

	s.counters[level-1]++
	for i := level; i < len(s.counters); i++ {
		s.counters[i] = 0
	}

	parts := make([]string, 0, len(s.prefix)+level)
	for _, p := range s.prefix {
		parts = append(parts, strconv.Itoa(p))
	}
	for _, c := range s.counters[:level] {
		parts = append(parts, strconv.Itoa(c))
	}
	return strings.Join(parts, ".")
}

// ParseCode splits a dotted structure code into its integer
// components. Non-numeric segments parse as 0 rather than erroring,
// since malformed LLM-supplied codes are repaired, not rejected
// outright (§4.4's renumbering policy).
func ParseCode(code string) []int {
	segments := strings.Split(code, ".")
	out := make([]int, len(segments))
	for i, seg := range segments {
		n, err := strconv.Atoi(strings.TrimSpace(seg))
		if err != nil {
			n = 0
		}
		out[i] = n
	}
	return out
}

// Level returns a code's 1-based depth, the "level" field §3 says is
// "derivable from structure".
func Level(code string) int {
	if code == "" {
		return 0
	}
	return len(strings.Split(code, "."))
}

// Compare orders two codes in pre-order: shorter-prefix ancestors sort
// before their descendants, and sibling codes compare component by
// component.
func Compare(a, b string) int {
	pa, pb := ParseCode(a), ParseCode(b)
	for i := 0; i < len(pa) && i < len(pb); i++ {
		if pa[i] != pb[i] {
			if pa[i] < pb[i] {
				return -1
			}
			return 1
		}
	}
	switch {
	case len(pa) < len(pb):
		return -1
	case len(pa) > len(pb):
		return 1
	default:
		return 0
	}
}

// Monotonic reports whether codes is already strictly increasing in
// pre-order, the invariant §4.4 requires of LLM-supplied structure
// fields.
func Monotonic(codes []string) bool {
	for i := 1; i < len(codes); i++ {
		if Compare(codes[i-1], codes[i]) >= 0 {
			return false
		}
	}
	return true
}

// RenumberSuffix repairs a non-monotone code sequence starting at the
// first violation: everything from that index onward is resynthesized
// at its original level, preserving level but discarding the
// originally-proposed numeric codes, per §4.4's "repair non-monotone
// codes by renumbering within the affected suffix".
func RenumberSuffix(codes []string) []string {
	out := make([]string, len(codes))
	copy(out, codes)

	start := -1
	for i := 1; i < len(out); i++ {
		if Compare(out[i-1], out[i]) >= 0 {
			start = i
			break
		}
	}
	if start == -1 {
		return out
	}

	syn := New()
	if start > 0 {
		syn.counters = ParseCode(out[start-1])
	}

	for i := start; i < len(out); i++ {
		level := Level(out[i])
		if level < 1 {
			level = 1
		}
		out[i] = syn.Next(level)
	}
	return out
}
