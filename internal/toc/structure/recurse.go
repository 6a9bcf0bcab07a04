package structure

import (
	"context"
	"strings"

	"github.com/a3tai/toctree/internal/toc/codegen"
	"github.com/a3tai/toctree/internal/toc/llm"
	"github.com/a3tai/toctree/internal/toc/parsing"
)

// FromBodyContentRange re-runs the body-content extraction path over a
// single node's page span, for Tree Builder's optional oversized-node
// recursion (§4.7). Unlike FromBodyContent's top-level reconciliation,
// every produced code is resynthesized from a codegen.Continuing
// synthesizer seeded with parentPrefix, so the recursive call's codes
// always continue the parent's structure-code prefix rather than
// restarting numbering — the resolution of spec.md §9's "Bug #2":
// continuation is the default, with no option to disable it.
func FromBodyContentRange(ctx context.Context, client *llm.Client, parser *parsing.Parser, startPage, endPage, maxTokensPerNode int, parentPrefix string) ([]TOCItem, error) {
	var pages []pageText
	for p := startPage; p <= endPage; p++ {
		text, err := parser.Text(p)
		if err != nil {
			continue
		}
		pages = append(pages, pageText{Index: p, Sentineled: text})
	}
	if len(pages) == 0 {
		return nil, nil
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

	return reconcileContinuing(results, parentPrefix), nil
}

// reconcileContinuing is reconcile's sibling for the recursion path:
// every entry's code is resynthesized from a synthesizer continuing
// parentPrefix, using the entry's own proposed nesting level (derived
// from its raw structure code) as the synthesizer's relative level, so
// the recursive call's output always nests under parentPrefix instead
// of restarting at "1".
func reconcileContinuing(chunks [][]rawEntry, parentPrefix string) []TOCItem {
	var flat []rawEntry
	for _, chunk := range chunks {
		for _, e := range chunk {
			if len(flat) > 0 {
				last := flat[len(flat)-1]
				if last.Title == e.Title && last.Page == e.Page {
					continue
				}
			}
			flat = append(flat, e)
		}
	}

	syn := codegen.Continuing(parentPrefix)
	items := make([]TOCItem, len(flat))
	for i, e := range flat {
		level := codegen.Level(e.Structure)
		if level < 1 {
			level = 1
		}
		code := syn.Next(level)
		items[i] = TOCItem{
			Structure:     code,
			Title:         strings.TrimSpace(e.Title),
			Level:         codegen.Level(code),
			PhysicalIndex: e.Page,
		}
	}

	AssignListIndices(items)
	return items
}
