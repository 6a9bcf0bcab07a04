package tree

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/toctree/internal/toc/structure"
)

func item(title string, level, page int) structure.TOCItem {
	return structure.TOCItem{Title: title, Level: level, PhysicalIndex: page}
}

func TestBuildReturnsEmptyRootForNoItems(t *testing.T) {
	root := Build(nil, 10)
	assert.Empty(t, root.Nodes)
	assert.Equal(t, 1, root.StartIndex)
	assert.Equal(t, 10, root.EndIndex)
}

// Repeated same-level siblings (two top-level chapters) must both
// attach under the root, not under each other -- the defect identified
// in the teacher's buildHierarchy same-level branch.
func TestBuildNestsRepeatedSameLevelSiblingsUnderSharedParent(t *testing.T) {
	items := []structure.TOCItem{
		item("Chapter One", 1, 1),
		item("Chapter Two", 1, 10),
	}
	root := Build(items, 20)

	require.Len(t, root.Nodes, 2)
	assert.Equal(t, "Chapter One", root.Nodes[0].Title)
	assert.Equal(t, "Chapter Two", root.Nodes[1].Title)
	assert.Empty(t, root.Nodes[0].Nodes)
	assert.Empty(t, root.Nodes[1].Nodes)
}

func TestBuildNestsChildUnderPrecedingDeeperAncestor(t *testing.T) {
	items := []structure.TOCItem{
		item("Chapter One", 1, 1),
		item("Section 1.1", 2, 2),
		item("Chapter Two", 1, 10),
	}
	root := Build(items, 20)

	require.Len(t, root.Nodes, 2)
	ch1 := root.Nodes[0]
	require.Len(t, ch1.Nodes, 1)
	assert.Equal(t, "Section 1.1", ch1.Nodes[0].Title)

	ch2 := root.Nodes[1]
	assert.Empty(t, ch2.Nodes)
}

func TestBuildClampsLevelJumpsToDeepestOpenAncestor(t *testing.T) {
	items := []structure.TOCItem{
		item("Chapter One", 1, 1),
		// Jumps straight to level 4 with no level-2/3 ancestor open;
		// should attach directly under Chapter One, not panic.
		item("Deep Item", 4, 2),
	}
	root := Build(items, 20)

	require.Len(t, root.Nodes, 1)
	require.Len(t, root.Nodes[0].Nodes, 1)
	assert.Equal(t, "Deep Item", root.Nodes[0].Nodes[0].Title)
}

func TestBuildClampsLevelsBeyondMaxDepth(t *testing.T) {
	items := []structure.TOCItem{
		item("L1", 1, 1),
		item("L2", 2, 2),
		item("L3", 3, 3),
		item("L4", 4, 4),
		item("L5", 5, 5),
	}
	root := Build(items, 20)

	l1 := root.Nodes[0]
	l2 := l1.Nodes[0]
	l3 := l2.Nodes[0]
	l4 := l3.Nodes[0]
	// L5 clamps to maxDepth (4), so it becomes a sibling of L4 under L3,
	// not a child of L4.
	require.Len(t, l3.Nodes, 2)
	assert.Equal(t, "L4", l3.Nodes[0].Title)
	assert.Equal(t, "L5", l3.Nodes[1].Title)
	assert.Empty(t, l4.Nodes)
}

func TestAssignRangesEndsAtNextSiblingStart(t *testing.T) {
	items := []structure.TOCItem{
		item("Chapter One", 1, 1),
		item("Chapter Two", 1, 10),
		item("Chapter Three", 1, 15),
	}
	root := Build(items, 20)

	assert.Equal(t, 1, root.Nodes[0].StartIndex)
	assert.Equal(t, 9, root.Nodes[0].EndIndex)
	assert.Equal(t, 10, root.Nodes[1].StartIndex)
	assert.Equal(t, 14, root.Nodes[1].EndIndex)
	assert.Equal(t, 15, root.Nodes[2].StartIndex)
	assert.Equal(t, 20, root.Nodes[2].EndIndex)
}

func TestAssignRangesLastChildInheritsParentEnd(t *testing.T) {
	items := []structure.TOCItem{
		item("Chapter One", 1, 1),
		item("Section 1.1", 2, 2),
		item("Section 1.2", 2, 5),
	}
	root := Build(items, 20)

	ch1 := root.Nodes[0]
	require.Len(t, ch1.Nodes, 2)
	assert.Equal(t, 4, ch1.Nodes[0].EndIndex)
	assert.Equal(t, ch1.EndIndex, ch1.Nodes[1].EndIndex)
}

func TestAssignRangesSharesPageWhenNextSiblingAppearsMidPage(t *testing.T) {
	items := []structure.TOCItem{
		item("Section One", 1, 5),
		{Title: "Section Two", Level: 1, PhysicalIndex: 9, AppearStart: true},
	}
	root := Build(items, 20)

	// root.Nodes[0] is the Preface synthesized for pages 1-4.
	require.Len(t, root.Nodes, 3)
	assert.Equal(t, 9, root.Nodes[1].EndIndex)
	assert.Equal(t, 9, root.Nodes[2].StartIndex)
}

func TestExpandParentsWidensButNeverShrinks(t *testing.T) {
	items := []structure.TOCItem{
		item("Chapter One", 1, 3),
		item("Section 1.1", 2, 3),
	}
	root := Build(items, 20)

	// Chapter One claims page 3, same as its first page 1-2 becomes a
	// synthesized Preface; Chapter One itself should not shrink below
	// its child's resolved start (3), and its end still reaches the
	// document end since it's the only top-level node.
	require.Len(t, root.Nodes, 2)
	ch1 := root.Nodes[1]
	assert.Equal(t, "Chapter One", ch1.Title)
	assert.Equal(t, 3, ch1.StartIndex)
	assert.Equal(t, 20, ch1.EndIndex)
}

func TestAddPrefaceSynthesizesLeadingNode(t *testing.T) {
	items := []structure.TOCItem{
		item("Chapter One", 1, 5),
	}
	root := Build(items, 20)

	require.Len(t, root.Nodes, 2)
	assert.Equal(t, "Preface", root.Nodes[0].Title)
	assert.Equal(t, 1, root.Nodes[0].StartIndex)
	assert.Equal(t, 4, root.Nodes[0].EndIndex)
	assert.Equal(t, "Chapter One", root.Nodes[1].Title)
}

func TestAddPrefaceSkippedWhenFirstItemStartsAtPageOne(t *testing.T) {
	items := []structure.TOCItem{
		item("Chapter One", 1, 1),
	}
	root := Build(items, 20)

	require.Len(t, root.Nodes, 1)
	assert.Equal(t, "Chapter One", root.Nodes[0].Title)
}

func TestBuildAssignsPreOrderZeroPaddedNodeIDs(t *testing.T) {
	items := []structure.TOCItem{
		item("Chapter One", 1, 5),
		item("Section 1.1", 2, 6),
		item("Chapter Two", 1, 12),
	}
	root := Build(items, 20)

	var ids []string
	Walk(root, func(n *Node) { ids = append(ids, n.NodeID) })
	// Preface(0001), Chapter One(0002), Section 1.1(0003), Chapter Two(0004)
	require.Len(t, ids, 4)
	assert.Equal(t, []string{"0001", "0002", "0003", "0004"}, ids)
}

func TestNestFallsBackToPreviousItemStartPlusOneWhenPhysicalIndexMissing(t *testing.T) {
	items := []structure.TOCItem{
		item("Chapter One", 1, 5),
		{Title: "Chapter Two", Level: 1}, // PhysicalIndex missing (0)
	}
	root := Build(items, 20)

	// root.Nodes[0] is the Preface synthesized for pages 1-4.
	require.Len(t, root.Nodes, 3)
	assert.Equal(t, 6, root.Nodes[2].StartIndex)
}

func TestNestFallsBackToRootStartWhenFirstItemHasNoPhysicalIndex(t *testing.T) {
	items := []structure.TOCItem{
		{Title: "Untitled Chapter", Level: 1},
	}
	root := Build(items, 20)

	require.Len(t, root.Nodes, 1)
	assert.Equal(t, 1, root.Nodes[0].StartIndex)
}

func TestNestClampsAnOutOfRangePhysicalIndexToRootEnd(t *testing.T) {
	items := []structure.TOCItem{
		item("Chapter One", 1, 1),
		item("Chapter Two", 1, 999),
	}
	root := Build(items, 20)

	require.Len(t, root.Nodes, 2)
	assert.Equal(t, 20, root.Nodes[1].StartIndex)
}

func TestBuildSubtreeClampsPhysicalIndexBelowItsOwnStartBound(t *testing.T) {
	items := []structure.TOCItem{
		item("Spliced Section", 1, 1), // out of [10,30]'s range
	}
	sub := BuildSubtree(items, 10, 30)

	require.Len(t, sub.Nodes, 1)
	assert.Equal(t, 10, sub.Nodes[0].StartIndex)
}

func TestWalkSkipsSyntheticRoot(t *testing.T) {
	items := []structure.TOCItem{item("Chapter One", 1, 1)}
	root := Build(items, 20)

	var titles []string
	Walk(root, func(n *Node) { titles = append(titles, n.Title) })
	assert.Equal(t, []string{"Chapter One"}, titles)
}
