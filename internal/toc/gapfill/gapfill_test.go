package gapfill

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/toctree/internal/toc/llm"
	"github.com/a3tai/toctree/internal/toc/parsing"
	"github.com/a3tai/toctree/internal/toc/tree"
)

// fakeBackend returns one scripted JSON response per call, cycling if
// there are more calls than responses.
type fakeBackend struct {
	responses []string
	calls     int
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Generate(_ context.Context, _ llm.Request) (string, error) {
	r := f.responses[f.calls%len(f.responses)]
	f.calls++
	return r, nil
}

func newTestClient(responses ...string) *llm.Client {
	return llm.New(&fakeBackend{responses: responses}, llm.Config{Concurrency: 4, CallTimeout: time.Second})
}

func leaf(start, end int) *tree.Node {
	return &tree.Node{StartIndex: start, EndIndex: end}
}

func page(idx int, text string) parsing.Page {
	return parsing.Page{PhysicalIndex: idx, Text: text}
}

func TestDetectFindsNoGapsWhenFullyCovered(t *testing.T) {
	root := &tree.Node{StartIndex: 1, EndIndex: 10}
	root.Nodes = []*tree.Node{leaf(1, 10)}

	gaps := Detect(root, 10)
	assert.Empty(t, gaps)
}

func TestDetectFindsTailGap(t *testing.T) {
	root := &tree.Node{StartIndex: 1, EndIndex: 78}
	root.Nodes = []*tree.Node{leaf(1, 66)}

	gaps := Detect(root, 78)
	require.Len(t, gaps, 1)
	assert.Equal(t, Gap{Start: 67, End: 78}, gaps[0])
}

func TestDetectFindsMidTreeGapBetweenSiblings(t *testing.T) {
	root := &tree.Node{StartIndex: 1, EndIndex: 20}
	root.Nodes = []*tree.Node{leaf(1, 5), leaf(11, 20)}

	gaps := Detect(root, 20)
	require.Len(t, gaps, 1)
	assert.Equal(t, Gap{Start: 6, End: 10}, gaps[0])
}

func TestDetectIgnoresInternalNodesAndUsesLeavesOnly(t *testing.T) {
	root := &tree.Node{StartIndex: 1, EndIndex: 10}
	parent := &tree.Node{StartIndex: 1, EndIndex: 10}
	parent.Nodes = []*tree.Node{leaf(1, 4), leaf(5, 10)}
	root.Nodes = []*tree.Node{parent}

	gaps := Detect(root, 10)
	assert.Empty(t, gaps)
}

func TestIsBlankTrueWhenNoPageHasText(t *testing.T) {
	pageByIndex := map[int]parsing.Page{
		5: page(5, "   "),
		6: page(6, ""),
	}
	assert.True(t, isBlank(pageByIndex, Gap{Start: 5, End: 6}))
}

func TestIsBlankFalseWhenAnyPageHasText(t *testing.T) {
	pageByIndex := map[int]parsing.Page{
		5: page(5, "   "),
		6: page(6, "Some content"),
	}
	assert.False(t, isBlank(pageByIndex, Gap{Start: 5, End: 6}))
}

func TestGenericTitleUsesFirstNonEmptyLine(t *testing.T) {
	pageByIndex := map[int]parsing.Page{
		5: page(5, "\n  \nAppendix A: Supplementary Tables\nmore text"),
	}
	assert.Equal(t, "Appendix A: Supplementary Tables", genericTitle(pageByIndex, Gap{Start: 5, End: 6}))
}

func TestGenericTitleFallsBackWhenPageMissingOrBlank(t *testing.T) {
	pageByIndex := map[int]parsing.Page{
		5: page(5, "   \n  "),
	}
	assert.Equal(t, "Unindexed content", genericTitle(pageByIndex, Gap{Start: 5, End: 6}))
}

func TestConvertEntriesAssignsLevelsAndListIndices(t *testing.T) {
	entries := []rawEntry{
		{Structure: "1", Title: "Appendix A", Page: 67},
		{Structure: "1.1", Title: "Table A1", Page: 68},
	}
	items := convertEntries(entries)

	require.Len(t, items, 2)
	assert.Equal(t, 1, items[0].Level)
	assert.Equal(t, 2, items[1].Level)
	assert.Equal(t, 0, items[0].ListIndex)
	assert.Equal(t, 1, items[1].ListIndex)
}

func TestFillGapSkipsLLMForSinglePageGap(t *testing.T) {
	pageByIndex := map[int]parsing.Page{67: page(67, "Loose page")}
	node, err := fillGap(nil, nil, pageByIndex, Gap{Start: 67, End: 67})
	require.NoError(t, err)
	require.Len(t, node.Nodes, 1)
	assert.Equal(t, "Miscellaneous", node.Nodes[0].Title)
}

func TestFillGapSkipsLLMForBlankGap(t *testing.T) {
	pageByIndex := map[int]parsing.Page{
		67: page(67, ""),
		68: page(68, "   "),
	}
	node, err := fillGap(nil, nil, pageByIndex, Gap{Start: 67, End: 68})
	require.NoError(t, err)
	require.Len(t, node.Nodes, 1)
	assert.Equal(t, "Miscellaneous", node.Nodes[0].Title)
}

func TestWrapLeafSpansTheWholeGap(t *testing.T) {
	node := wrapLeaf("Title", Gap{Start: 3, End: 9})
	require.Len(t, node.Nodes, 1)
	assert.Equal(t, 3, node.Nodes[0].StartIndex)
	assert.Equal(t, 9, node.Nodes[0].EndIndex)
}

func TestCoveragePercentageHandlesZeroTotal(t *testing.T) {
	assert.Equal(t, 1.0, coveragePercentage(0, 0))
}

func TestFillDetectsAndClosesATailGapViaLLM(t *testing.T) {
	root := &tree.Node{StartIndex: 1, EndIndex: 78}
	root.Nodes = []*tree.Node{{Title: "Chapter One", StartIndex: 1, EndIndex: 66}}

	pages := []parsing.Page{
		{PhysicalIndex: 67, Text: "Appendix A"},
		{PhysicalIndex: 78, Text: "Index"},
	}
	client := newTestClient(`{"entries":[{"structure":"1","title":"Appendix A","page":67}]}`)

	info, err := Fill(context.Background(), client, "doc", pages, root, 78, Config{Concurrency: 2})
	require.NoError(t, err)

	assert.Equal(t, 1, info.GapsFound)
	assert.Equal(t, [][2]int{{67, 78}}, info.GapsFilled)
	assert.Equal(t, "66/78", info.OriginalCoverage)
	assert.Equal(t, 1.0, info.CoveragePercentage)

	require.Len(t, root.Nodes, 2)
	assert.Equal(t, "Chapter One", root.Nodes[0].Title)
	assert.Equal(t, "Appendix A", root.Nodes[1].Title)
	assert.True(t, root.Nodes[1].IsGapFill)
	assert.False(t, root.Nodes[0].IsGapFill)
	assert.NotEmpty(t, root.Nodes[1].NodeID)
}

func TestFillFallsBackToGenericTitleOnEmptyLLMOutput(t *testing.T) {
	root := &tree.Node{StartIndex: 1, EndIndex: 10}
	root.Nodes = []*tree.Node{{Title: "Chapter One", StartIndex: 1, EndIndex: 6}}

	pages := []parsing.Page{
		{PhysicalIndex: 7, Text: "Loose material\nwith no headings"},
		{PhysicalIndex: 8, Text: "more"},
		{PhysicalIndex: 9, Text: "more"},
		{PhysicalIndex: 10, Text: "more"},
	}
	client := newTestClient(`{"entries":[]}`)

	info, err := Fill(context.Background(), client, "doc", pages, root, 10, Config{})
	require.NoError(t, err)

	require.Len(t, root.Nodes, 2)
	assert.Equal(t, "Loose material", root.Nodes[1].Title)
	assert.Equal(t, 1, info.GapsFound)
}

func TestFillReturnsFullCoverageImmediatelyWhenNoGaps(t *testing.T) {
	root := &tree.Node{StartIndex: 1, EndIndex: 10}
	root.Nodes = []*tree.Node{{Title: "Chapter One", StartIndex: 1, EndIndex: 10}}

	info, err := Fill(context.Background(), nil, "doc", nil, root, 10, Config{})
	require.NoError(t, err)
	assert.Equal(t, 0, info.GapsFound)
	assert.Equal(t, 1.0, info.CoveragePercentage)
	assert.Equal(t, "10/10", info.OriginalCoverage)
}
