// Package toc orchestrates the full pipeline: PDF Parser, TOC Source
// Selection, Structure Extraction, Page Mapping, Verification, Tree
// Building, Gap Filling, and Payload Decoration, behind the single
// Builder.BuildTree entry point spec.md §6 describes.
package toc

import (
	"github.com/a3tai/toctree/internal/toc/gapfill"
	"github.com/a3tai/toctree/internal/toc/tree"
)

// TreeNode is the external, JSON-serialisable tree contract (spec.md
// §3/§6): the internal tree package's Node plus an exported shape
// whose fields match the documented output exactly, including
// omitting fields the caller's options didn't ask for.
type TreeNode struct {
	Title     string      `json:"title"`
	StartIdx  int         `json:"start_index"`
	EndIdx    int         `json:"end_index"`
	NodeID    string      `json:"node_id,omitempty"`
	Nodes     []*TreeNode `json:"nodes,omitempty"`
	Text      string      `json:"text,omitempty"`
	Summary   string      `json:"summary,omitempty"`
	IsGapFill bool        `json:"is_gap_fill,omitempty"`
}

// Statistics summarises the tree's shape, per spec.md §6.
type Statistics struct {
	RootNodes int `json:"root_nodes"`
	TotalNodes int `json:"total_nodes"`
	MaxDepth  int `json:"max_depth"`
}

// GapFillInfo mirrors gapfill.Info in the result's JSON shape.
type GapFillInfo struct {
	GapsFound          int      `json:"gaps_found"`
	GapsFilled         [][2]int `json:"gaps_filled"`
	OriginalCoverage   string   `json:"original_coverage"`
	CoveragePercentage float64  `json:"coverage_percentage"`
}

// Result is BuildTree's return value, matching spec.md §6's tree
// output format exactly.
type Result struct {
	SourceFile            string      `json:"source_file"`
	TotalPages            int         `json:"total_pages"`
	Structure             []*TreeNode `json:"structure"`
	Statistics            Statistics  `json:"statistics"`
	VerificationAccuracy  float64     `json:"verification_accuracy"`
	GapFillInfo           GapFillInfo `json:"gap_fill_info"`
}

// ProgressEvent is one update on BuildTree's progress channel (§6's
// EXPANSION: a channel rather than a bare callback).
type ProgressEvent struct {
	Phase    string
	Message  string
	Fraction float64
}

// toTreeNode converts the internal tree into the external contract,
// in pre-order, preserving nil/empty distinctions via omitempty.
func toTreeNode(n *tree.Node) *TreeNode {
	out := &TreeNode{
		Title:     n.Title,
		StartIdx:  n.StartIndex,
		EndIdx:    n.EndIndex,
		NodeID:    n.NodeID,
		Text:      n.Text,
		Summary:   n.Summary,
		IsGapFill: n.IsGapFill,
	}
	for _, c := range n.Nodes {
		out.Nodes = append(out.Nodes, toTreeNode(c))
	}
	return out
}

func toTreeNodes(root *tree.Node) []*TreeNode {
	var out []*TreeNode
	for _, c := range root.Nodes {
		out = append(out, toTreeNode(c))
	}
	return out
}

func toGapFillInfo(info gapfill.Info) GapFillInfo {
	return GapFillInfo{
		GapsFound:          info.GapsFound,
		GapsFilled:         info.GapsFilled,
		OriginalCoverage:   info.OriginalCoverage,
		CoveragePercentage: info.CoveragePercentage,
	}
}

// statistics walks root computing root_nodes, total_nodes, and
// max_depth (the root level itself counts as depth 1 for its direct
// children, per §3 invariant 4's "depth <= 4 counting the root
// level").
func statistics(root *tree.Node) Statistics {
	stats := Statistics{RootNodes: len(root.Nodes)}
	var walk func(n *tree.Node, depth int)
	walk = func(n *tree.Node, depth int) {
		stats.TotalNodes++
		if depth > stats.MaxDepth {
			stats.MaxDepth = depth
		}
		for _, c := range n.Nodes {
			walk(c, depth+1)
		}
	}
	for _, c := range root.Nodes {
		walk(c, 1)
	}
	return stats
}
