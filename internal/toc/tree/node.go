// Package tree implements the Tree Builder (§4.7): turning the flat,
// mapped, and verified TOCItem list into the nested Node hierarchy the
// rest of the pipeline (Gap Filling, Payload Decoration) and the final
// JSON result operate on.
//
// The nesting technique generalises the teacher's
// internal/intelligence/structure.go buildHierarchy: a stack of
// currently open ancestors, popped back to the incoming item's level
// before attaching it as a child of whatever remains on top. The
// teacher's version replaces the stack's top entry in place when
// depths tie, which drops the common ancestor for a second same-level
// sibling; this package instead truncates the stack to the item's
// level before attaching, which is what repeated same-level headings
// (the normal case for a table of contents) require.
package tree

import "fmt"

// maxDepth is §4.7's nesting cap: items whose natural level exceeds
// this attach as siblings of the deepest node reached so far rather
// than nesting further.
const maxDepth = 4

// MaxDepth exports maxDepth for callers outside the package that also
// need to respect the cap -- Tree Builder's own optional recursion
// (§4.7) among them, since splicing a subtree under a node already at
// maxDepth would otherwise nest one level past it.
const MaxDepth = maxDepth

// Node is one entry of the built tree, per §3's data model.
type Node struct {
	Title      string
	StartIndex int
	EndIndex   int
	NodeID     string
	Nodes      []*Node
	Text       string
	Summary    string
	IsGapFill  bool

	// AppearStart carries Verification's "begins mid-page" flag through
	// to the sibling range pass (§4.7's end_index rule: a sibling that
	// starts mid-page shares its predecessor's last page rather than
	// starting the predecessor's range one page earlier). It is not
	// part of the external tree contract, so it is never marshaled.
	AppearStart bool `json:"-"`
}

// assignNodeIDs assigns pre-order, zero-padded node_ids to every real
// node (the synthetic root is never serialised, so it's excluded).
func assignNodeIDs(root *Node) {
	AssignNodeIDs(root)
}

// AssignNodeIDs (re-)assigns pre-order, zero-padded node_ids to every
// real node. Exported so Gap Filling can splice new top-level nodes
// into an already-built tree and renumber the whole thing in one
// final pass, rather than needing two disjoint id sequences.
func AssignNodeIDs(root *Node) {
	counter := 0
	var walk func(*Node)
	walk = func(n *Node) {
		counter++
		n.NodeID = fmt.Sprintf("%04d", counter)
		for _, c := range n.Nodes {
			walk(c)
		}
	}
	for _, c := range root.Nodes {
		walk(c)
	}
}

// Walk visits every real node (excluding the synthetic root) in
// pre-order, the traversal Payload Decoration and the final JSON
// encoding both need.
func Walk(root *Node, fn func(*Node)) {
	var walk func(*Node)
	walk = func(n *Node) {
		fn(n)
		for _, c := range n.Nodes {
			walk(c)
		}
	}
	for _, c := range root.Nodes {
		walk(c)
	}
}
