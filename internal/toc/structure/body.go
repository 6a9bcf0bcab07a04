package structure

import (
	"context"

	"github.com/a3tai/toctree/internal/toc/llm"
	"github.com/a3tai/toctree/internal/toc/parsing"
)

// FromBodyContent implements §4.4's content-based reconstruction path:
// the whole document is parsed, segmented at the token budget (default
// 20,000 tokens per segment, approximated here as 4 chars/token), and
// each segment is prompted for the headings it contains. Adjacent
// segments are then reconciled the same way printed-contents chunks
// are.
func FromBodyContent(ctx context.Context, client *llm.Client, parser *parsing.Parser, maxTokensPerNode int) ([]TOCItem, error) {
	total, err := parser.TotalPages()
	if err != nil {
		return nil, err
	}

	allPages, err := parser.ParseAll(ctx)
	if err != nil {
		return nil, err
	}
	if total != len(allPages) {
		// ParseAll already guarantees every page parsed; defensive only.
		total = len(allPages)
	}

	pages := make([]pageText, len(allPages))
	for i, pg := range allPages {
		pages[i] = pageText{Index: pg.PhysicalIndex, Sentineled: parsing.Sentinel(pg.PhysicalIndex, pg.Text)}
	}

	budgetChars := maxTokensPerNode * 4
	chunks := groupByBudget(pages, budgetChars)

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
