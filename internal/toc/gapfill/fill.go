package gapfill

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/a3tai/toctree/internal/toc/codegen"
	"github.com/a3tai/toctree/internal/toc/llm"
	"github.com/a3tai/toctree/internal/toc/parsing"
	"github.com/a3tai/toctree/internal/toc/structure"
	"github.com/a3tai/toctree/internal/toc/tree"
	"github.com/a3tai/toctree/internal/tlog"
)

// Config tunes Gap Filling's concurrency.
type Config struct {
	Concurrency int // default 5
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = 5
	}
	return c
}

// Info is the gap_fill_info block of spec.md §6's result contract.
type Info struct {
	GapsFound          int
	GapsFilled         [][2]int
	OriginalCoverage   string
	CoveragePercentage float64
}

// rawEntry mirrors structure extraction's per-entry wire shape; gap
// filling prompts the same "entries" JSON contract over a narrower
// page slice.
type rawEntry struct {
	Structure string `json:"structure"`
	Title     string `json:"title"`
	Page      int    `json:"page"`
}

type rawEntries struct {
	Entries []rawEntry `json:"entries"`
}

// Fill detects root's gaps, generates a sub-tree for each under
// bounded concurrency, splices the results into root.Nodes in
// start_index order, and renumbers node_ids over the whole tree.
func Fill(ctx context.Context, client *llm.Client, doc string, pages []parsing.Page, root *tree.Node, totalPages int, cfg Config) (Info, error) {
	cfg = cfg.withDefaults()
	log := tlog.ForPhase(phase, doc)

	originalCovered := countCovered(coveredPages(root, totalPages))
	gaps := Detect(root, totalPages)

	info := Info{
		GapsFound:        len(gaps),
		OriginalCoverage: fmt.Sprintf("%d/%d", originalCovered, totalPages),
	}
	if len(gaps) == 0 {
		info.CoveragePercentage = coveragePercentage(originalCovered, totalPages)
		return info, nil
	}

	pageByIndex := make(map[int]parsing.Page, len(pages))
	for _, pg := range pages {
		pageByIndex[pg.PhysicalIndex] = pg
	}

	results := make([]*tree.Node, len(gaps))
	sem := semaphore.NewWeighted(int64(cfg.Concurrency))
	g, gctx := errgroup.WithContext(ctx)

	for i, gap := range gaps {
		i, gap := i, gap
		g.Go(func() error {
			if err := sem.Acquire(gctx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			node, err := fillGap(gctx, client, pageByIndex, gap)
			if err != nil {
				log.Warn("gap fill failed, using fallback leaf",
					zap.Int("start", gap.Start), zap.Int("end", gap.End), zap.Error(err))
				node = fallbackLeaf(pageByIndex, gap)
			}
			results[i] = node
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return info, err
	}

	for i, gap := range gaps {
		sub := results[i]
		if sub == nil {
			sub = fallbackLeaf(pageByIndex, gap)
		}
		tree.Walk(sub, func(n *tree.Node) { n.IsGapFill = true })
		root.Nodes = append(root.Nodes, sub.Nodes...)
		info.GapsFilled = append(info.GapsFilled, [2]int{gap.Start, gap.End})
	}

	sort.SliceStable(root.Nodes, func(a, b int) bool {
		return root.Nodes[a].StartIndex < root.Nodes[b].StartIndex
	})
	tree.AssignNodeIDs(root)

	info.CoveragePercentage = coveragePercentage(countCovered(coveredPages(root, totalPages)), totalPages)
	return info, nil
}

func coveragePercentage(covered, total int) float64 {
	if total <= 0 {
		return 1.0
	}
	return float64(covered) / float64(total)
}

// fillGap generates one gap's sub-tree. Single-page or purely-blank
// gaps skip the LLM entirely per §5's skip conditions; a non-trivial
// gap that the LLM returns no entries for falls back to a generically
// titled leaf rather than an empty sub-tree.
func fillGap(ctx context.Context, client *llm.Client, pageByIndex map[int]parsing.Page, gap Gap) (*tree.Node, error) {
	if gap.Start == gap.End || isBlank(pageByIndex, gap) {
		return wrapLeaf("Miscellaneous", gap), nil
	}

	entries, err := requestGapEntries(ctx, client, pageByIndex, gap)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return wrapLeaf(genericTitle(pageByIndex, gap), gap), nil
	}

	items := convertEntries(entries)
	return tree.BuildSubtree(items, gap.Start, gap.End), nil
}

// fallbackLeaf is used when fillGap itself errors (e.g. the LLM call
// exhausted its retries), so one failing gap degrades to a single
// node rather than aborting the whole pipeline.
func fallbackLeaf(pageByIndex map[int]parsing.Page, gap Gap) *tree.Node {
	return wrapLeaf(genericTitle(pageByIndex, gap), gap)
}

func wrapLeaf(title string, gap Gap) *tree.Node {
	root := &tree.Node{StartIndex: gap.Start, EndIndex: gap.End}
	root.Nodes = []*tree.Node{{Title: title, StartIndex: gap.Start, EndIndex: gap.End}}
	return root
}

func isBlank(pageByIndex map[int]parsing.Page, gap Gap) bool {
	for p := gap.Start; p <= gap.End; p++ {
		if pg, ok := pageByIndex[p]; ok && strings.TrimSpace(pg.Text) != "" {
			return false
		}
	}
	return true
}

func genericTitle(pageByIndex map[int]parsing.Page, gap Gap) string {
	if pg, ok := pageByIndex[gap.Start]; ok {
		if line := firstNonEmptyLine(pg.Text); line != "" {
			return line
		}
	}
	return "Unindexed content"
}

func firstNonEmptyLine(text string) string {
	for _, line := range strings.Split(text, "\n") {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			if len(trimmed) > 120 {
				trimmed = trimmed[:120]
			}
			return trimmed
		}
	}
	return ""
}

func requestGapEntries(ctx context.Context, client *llm.Client, pageByIndex map[int]parsing.Page, gap Gap) ([]rawEntry, error) {
	prompt := buildGapPrompt(pageByIndex, gap)

	var parsed rawEntries
	if err := client.GenerateJSON(ctx, phase, llm.Request{Prompt: prompt}, &parsed); err != nil {
		return nil, err
	}
	return parsed.Entries, nil
}

func buildGapPrompt(pageByIndex map[int]parsing.Page, gap Gap) string {
	var sb strings.Builder
	sb.WriteString("The following page range was not covered by the document's table of contents.\n")
	sb.WriteString("Each page is wrapped in <physical_index_N>...</physical_index_N> markers.\n")
	sb.WriteString("Identify any headings or section titles within this range, in order, each with a dotted ")
	sb.WriteString("hierarchical structure code (e.g. \"1\", \"1.1\", \"2\"), a title, and the physical_index it appears on.\n")
	sb.WriteString("If there is no clear structure, return an empty entries list.\n")
	sb.WriteString("Respond with json: {\"entries\": [{\"structure\": \"...\", \"title\": \"...\", \"page\": N}, ...]}\n\n")

	for p := gap.Start; p <= gap.End; p++ {
		if pg, ok := pageByIndex[p]; ok {
			sb.WriteString(parsing.Sentinel(p, pg.Text))
		}
	}
	return sb.String()
}

func convertEntries(entries []rawEntry) []structure.TOCItem {
	codes := make([]string, len(entries))
	for i, e := range entries {
		codes[i] = e.Structure
	}
	if !codegen.Monotonic(codes) {
		codes = codegen.RenumberSuffix(codes)
	}

	items := make([]structure.TOCItem, len(entries))
	for i, e := range entries {
		items[i] = structure.TOCItem{
			Structure:     codes[i],
			Title:         strings.TrimSpace(e.Title),
			Level:         codegen.Level(codes[i]),
			PhysicalIndex: e.Page,
		}
	}
	structure.AssignListIndices(items)
	return items
}
