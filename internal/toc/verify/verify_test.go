package verify

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a3tai/toctree/internal/toc/parsing"
	"github.com/a3tai/toctree/internal/toc/structure"
)

func page(idx int, text string) parsing.Page {
	return parsing.Page{PhysicalIndex: idx, Text: text}
}

func TestVerifyConfirmsExactMatchAtClaimedPage(t *testing.T) {
	pages := []parsing.Page{
		page(1, "Chapter One\nBody text"),
	}
	items := []structure.TOCItem{{Title: "Chapter One", Level: 1, PhysicalIndex: 1}}

	v := New(Config{})
	out, err := v.Verify(context.Background(), "doc", items, pages)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.True(t, out[0].ValidationPassed)
	// The title is the page's first line, so the section does not begin
	// mid-page.
	assert.False(t, out[0].AppearStart)
	assert.Equal(t, 1, out[0].PhysicalIndex)
}

func TestVerifySelfHealsWithinNeighborhood(t *testing.T) {
	pages := []parsing.Page{
		page(1, "Front matter"),
		page(2, "nothing relevant"),
		page(3, "Chapter One\nActually starts here"),
	}
	// Claimed at page 1, the real occurrence is 2 pages later, within
	// the default +/-3 neighborhood.
	items := []structure.TOCItem{{Title: "Chapter One", Level: 1, PhysicalIndex: 1}}

	v := New(Config{})
	out, err := v.Verify(context.Background(), "doc", items, pages)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.True(t, out[0].ValidationPassed)
	assert.False(t, out[0].AppearStart)
	assert.Equal(t, 3, out[0].PhysicalIndex)
}

func TestVerifyFailsWhenTitleNowhereNearby(t *testing.T) {
	pages := []parsing.Page{
		page(1, "Irrelevant content"),
		page(2, "More irrelevant content"),
	}
	items := []structure.TOCItem{{Title: "Missing Chapter", Level: 1, PhysicalIndex: 1}}

	v := New(Config{})
	out, err := v.Verify(context.Background(), "doc", items, pages)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.False(t, out[0].ValidationPassed)
	assert.Equal(t, 1, out[0].PhysicalIndex)
}

func TestVerifyOrdersDeepestFirstAndCapsAtMaxVerify(t *testing.T) {
	pages := []parsing.Page{page(1, "Section content")}
	items := []structure.TOCItem{
		{Title: "Top Level", Level: 1, PhysicalIndex: 1},
		{Title: "Section content", Level: 3, PhysicalIndex: 1},
	}

	order := deepestFirst(items)
	require.Equal(t, []int{1, 0}, order)

	v := New(Config{MaxVerify: 1})
	out, err := v.Verify(context.Background(), "doc", items, pages)
	require.NoError(t, err)
	require.Len(t, out, 2)
	// Only the deepest item (index 1) was within the verification
	// budget; it matches exactly.
	assert.True(t, out[1].ValidationPassed)
	// The shallower item was left untouched (its starting zero value).
	assert.False(t, out[0].ValidationPassed)
}

func TestVerifyPassesThroughWhenNoItems(t *testing.T) {
	v := New(Config{})
	out, err := v.Verify(context.Background(), "doc", nil, nil)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestConfigAppliesDefaults(t *testing.T) {
	cfg := Config{}.withDefaults()
	assert.Equal(t, 20, cfg.Concurrency)
	assert.Equal(t, 100, cfg.MaxVerify)
	assert.Equal(t, 3, cfg.Neighborhood)
}

func TestMatchesFindsFuzzyLine(t *testing.T) {
	lines := normalizeLines("Chaptor Two\nfiller")
	assert.True(t, matches("chapter two", lines))
}

func TestVerifyCapsManyItemsWithoutPanicking(t *testing.T) {
	var pages []parsing.Page
	var items []structure.TOCItem
	for i := 1; i <= 10; i++ {
		pages = append(pages, page(i, fmt.Sprintf("Chapter %d", i)))
		items = append(items, structure.TOCItem{Title: fmt.Sprintf("Chapter %d", i), Level: 1, PhysicalIndex: i})
	}

	v := New(Config{MaxVerify: 3, Concurrency: 2})
	out, err := v.Verify(context.Background(), "doc", items, pages)
	require.NoError(t, err)
	assert.Len(t, out, 10)
}
