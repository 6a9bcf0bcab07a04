package structure

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/toctree/internal/toc/llm"
	"github.com/a3tai/toctree/internal/toc/parsing"
)

func TestFromOutlineAssignsStructureCodesAndTrustsPages(t *testing.T) {
	outline := []parsing.OutlineEntry{
		{Level: 1, Title: "Part One", Page: 1},
		{Level: 2, Title: "Chapter 1", Page: 2},
		{Level: 2, Title: "Chapter 2", Page: 10},
		{Level: 1, Title: "Part Two", Page: 20},
		{Level: 2, Title: "Chapter 3", Page: 21},
	}

	items := FromOutline(outline)

	require.Len(t, items, 5)
	assert.Equal(t, "1", items[0].Structure)
	assert.Equal(t, "1.1", items[1].Structure)
	assert.Equal(t, "1.2", items[2].Structure)
	assert.Equal(t, "2", items[3].Structure)
	assert.Equal(t, "2.1", items[4].Structure)

	for i, item := range items {
		assert.True(t, item.ValidationPassed)
		assert.Equal(t, i, item.ListIndex)
	}
}

func TestReconcileDropsBoundaryDuplicateAndRepairsOrder(t *testing.T) {
	chunkA := []rawEntry{
		{Structure: "1", Title: "Intro", Page: 1},
		{Structure: "1.1", Title: "Background", Page: 2},
	}
	chunkB := []rawEntry{
		{Structure: "1.1", Title: "Background", Page: 2}, // duplicate at boundary
		{Structure: "1.1", Title: "Methods", Page: 3},     // non-monotone (equal to previous)
		{Structure: "2", Title: "Results", Page: 5},
	}

	items := reconcile([][]rawEntry{chunkA, chunkB})

	titles := make([]string, len(items))
	for i, it := range items {
		titles[i] = it.Title
	}
	assert.Equal(t, []string{"Intro", "Background", "Methods", "Results"}, titles)

	for i := 1; i < len(items); i++ {
		assert.NotEqual(t, items[i-1].Structure, items[i].Structure)
	}
}

func TestGroupByBudgetNeverSplitsAPage(t *testing.T) {
	pages := []pageText{
		{Index: 1, Sentineled: "aaaaaaaaaa"},
		{Index: 2, Sentineled: "bbbbbbbbbb"},
		{Index: 3, Sentineled: "cccccccccc"},
	}

	chunks := groupByBudget(pages, 15)
	require.Len(t, chunks, 3)
	assert.Len(t, chunks[0], 1)
	assert.Len(t, chunks[1], 1)
}

type scriptedJSONBackend struct {
	replies []string
	calls   int
}

func (s *scriptedJSONBackend) Name() string { return "scripted" }

func (s *scriptedJSONBackend) Generate(ctx context.Context, req llm.Request) (string, error) {
	i := s.calls
	s.calls++
	if i >= len(s.replies) {
		return `{"entries":[]}`, nil
	}
	return s.replies[i], nil
}

func TestFromPrintedContentsParsesLLMEntries(t *testing.T) {
	backend := &scriptedJSONBackend{replies: []string{
		`{"entries":[{"structure":"1","title":"Introduction","page":3},{"structure":"2","title":"Methods","page":5}]}`,
	}}
	client := llm.New(backend, llm.Config{})

	items, err := FromPrintedContents(context.Background(), client, []int{3}, []string{
		"<physical_index_3>Introduction ... 3\nMethods ... 5</physical_index_3>",
	})
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, "Introduction", items[0].Title)
	assert.Equal(t, 5, items[1].PhysicalIndex)
}
