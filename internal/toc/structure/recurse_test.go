package structure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReconcileContinuingNestsUnderParentPrefix(t *testing.T) {
	chunk := []rawEntry{
		{Structure: "1", Title: "Intro", Page: 1},
		{Structure: "1.1", Title: "Background", Page: 2},
		{Structure: "2", Title: "Results", Page: 5},
	}

	items := reconcileContinuing([][]rawEntry{chunk}, "2.3")

	require.Len(t, items, 3)
	assert.Equal(t, "2.3.1", items[0].Structure)
	assert.Equal(t, "2.3.1.1", items[1].Structure)
	assert.Equal(t, "2.3.2", items[2].Structure)
}

func TestReconcileContinuingWithNoParentPrefixStartsAtOne(t *testing.T) {
	chunk := []rawEntry{
		{Structure: "1", Title: "Intro", Page: 1},
		{Structure: "2", Title: "Results", Page: 5},
	}

	items := reconcileContinuing([][]rawEntry{chunk}, "")

	require.Len(t, items, 2)
	assert.Equal(t, "1", items[0].Structure)
	assert.Equal(t, "2", items[1].Structure)
}

func TestReconcileContinuingDropsBoundaryDuplicate(t *testing.T) {
	chunkA := []rawEntry{
		{Structure: "1", Title: "Intro", Page: 1},
	}
	chunkB := []rawEntry{
		{Structure: "1", Title: "Intro", Page: 1}, // duplicate at boundary
		{Structure: "2", Title: "Methods", Page: 3},
	}

	items := reconcileContinuing([][]rawEntry{chunkA, chunkB}, "4")

	require.Len(t, items, 2)
	assert.Equal(t, "Intro", items[0].Title)
	assert.Equal(t, "Methods", items[1].Title)
	assert.Equal(t, "4.1", items[0].Structure)
	assert.Equal(t, "4.2", items[1].Structure)
}

func TestReconcileContinuingAssignsSequentialListIndices(t *testing.T) {
	chunk := []rawEntry{
		{Structure: "1", Title: "A", Page: 1},
		{Structure: "2", Title: "B", Page: 2},
		{Structure: "3", Title: "C", Page: 3},
	}

	items := reconcileContinuing([][]rawEntry{chunk}, "")
	for i, it := range items {
		assert.Equal(t, i, it.ListIndex)
	}
}
