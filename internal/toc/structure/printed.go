package structure

import (
	"context"

	"github.com/a3tai/toctree/internal/toc/llm"
)

// printedChunkBudget bounds how much sentinel-wrapped contents text
// goes into a single LLM call; large contents regions are split into
// consecutive, non-overlapping chunks, each prompt carrying the last
// entries of the previous chunk as a handoff per §4.4.
const printedChunkBudget = 6000

const handoffSize = 3

// FromPrintedContents extracts the flat TOCItem list from a printed
// contents region, prompting the LLM for a JSON array of
// {structure, title, page} objects per §4.4's "From printed contents
// page" path. pageIndices and pageTexts are parallel: pageTexts[i] is
// the sentinel-wrapped text of physical page pageIndices[i], as
// produced by source.Select.
func FromPrintedContents(ctx context.Context, client *llm.Client, pageIndices []int, pageTexts []string) ([]TOCItem, error) {
	pages := make([]pageText, len(pageIndices))
	for i := range pageIndices {
		pages[i] = pageText{Index: pageIndices[i], Sentineled: pageTexts[i]}
	}

	chunks := groupByBudget(pages, printedChunkBudget)

	var results [][]rawEntry
	var handoff []rawEntry
	for _, chunk := range chunks {
		entries, err := extractChunk(ctx, client, joinChunk(chunk), handoff)
		if err != nil {
			return nil, err
		}
		results = append(results, entries)
		handoff = handoffTail(entries, handoffSize)
	}

	return reconcile(results), nil
}
