package structure

import (
	"context"
	"fmt"
	"strings"

	"github.com/a3tai/toctree/internal/toc/codegen"
	"github.com/a3tai/toctree/internal/toc/llm"
)

const phase = "structure"

// rawEntry is the wire shape the LLM is asked to emit for both the
// printed-contents and body-content paths: a structure code, a title,
// and the physical page it was found on.
type rawEntry struct {
	Structure string `json:"structure"`
	Title     string `json:"title"`
	Page      int    `json:"page"`
}

type rawEntries struct {
	Entries []rawEntry `json:"entries"`
}

// extractChunk asks the LLM to enumerate structural entries in one
// chunk of text, optionally seeded with the tail of the previous
// chunk's output so the code sequence continues monotonically across
// chunk boundaries (§4.4's chunk handoff).
func extractChunk(ctx context.Context, client *llm.Client, chunkText string, handoff []rawEntry) ([]rawEntry, error) {
	prompt := buildExtractPrompt(chunkText, handoff)

	var parsed rawEntries
	if err := client.GenerateJSON(ctx, phase, llm.Request{Prompt: prompt}, &parsed); err != nil {
		return nil, err
	}
	return parsed.Entries, nil
}

func buildExtractPrompt(chunkText string, handoff []rawEntry) string {
	var sb strings.Builder
	sb.WriteString("You are extracting a table of contents structure from document text.\n")
	sb.WriteString("Each page of the text below is wrapped in <physical_index_N>...</physical_index_N> markers.\n")
	sb.WriteString("Identify every heading, section title, or contents entry you can find, in the order they appear.\n")
	sb.WriteString("For each one, assign a dotted hierarchical structure code (e.g. \"1\", \"1.1\", \"1.2\", \"2\"), its title, ")
	sb.WriteString("and the physical_index of the page it appears on.\n")
	sb.WriteString("Structure codes must be strictly increasing in pre-order across the whole list.\n")

	if len(handoff) > 0 {
		sb.WriteString("\nContinue numbering from this point; the previous chunk ended with:\n")
		for _, h := range handoff {
			fmt.Fprintf(&sb, "  %s %s (page %d)\n", h.Structure, h.Title, h.Page)
		}
		sb.WriteString("Do not repeat these entries. The next structure code must be strictly greater than the last one shown.\n")
	}

	sb.WriteString("\nRespond with json: {\"entries\": [{\"structure\": \"...\", \"title\": \"...\", \"page\": N}, ...]}\n\n")
	sb.WriteString(chunkText)

	return sb.String()
}

// reconcile merges chunk results into one flat TOCItem list: it drops
// an exact duplicate at a chunk boundary (same title and page as the
// last kept entry) and repairs any remaining non-monotone run via
// codegen.RenumberSuffix, per §4.4's reconciliation step.
func reconcile(chunks [][]rawEntry) []TOCItem {
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

	codes := make([]string, len(flat))
	for i, e := range flat {
		codes[i] = e.Structure
	}
	if !codegen.Monotonic(codes) {
		codes = codegen.RenumberSuffix(codes)
	}

	items := make([]TOCItem, len(flat))
	for i, e := range flat {
		items[i] = TOCItem{
			Structure:     codes[i],
			Title:         strings.TrimSpace(e.Title),
			Level:         codegen.Level(codes[i]),
			PhysicalIndex: e.Page,
		}
	}

	AssignListIndices(items)
	return items
}

// handoffTail returns the last n entries of a chunk, used to seed the
// next chunk's prompt.
func handoffTail(entries []rawEntry, n int) []rawEntry {
	if len(entries) <= n {
		return entries
	}
	return entries[len(entries)-n:]
}

// pageText is one sentinel-wrapped page, the unit chunking groups.
type pageText struct {
	Index      int
	Sentineled string
}

// groupByBudget greedily packs whole pages into chunks no larger than
// budgetChars, never splitting a page across chunks so the
// <physical_index_N> markers each chunk sees stay intact.
func groupByBudget(pages []pageText, budgetChars int) [][]pageText {
	if budgetChars <= 0 {
		budgetChars = 8000
	}

	var chunks [][]pageText
	var current []pageText
	size := 0

	for _, p := range pages {
		if size > 0 && size+len(p.Sentineled) > budgetChars {
			chunks = append(chunks, current)
			current = nil
			size = 0
		}
		current = append(current, p)
		size += len(p.Sentineled)
	}
	if len(current) > 0 {
		chunks = append(chunks, current)
	}
	return chunks
}

func joinChunk(chunk []pageText) string {
	var sb strings.Builder
	for _, p := range chunk {
		sb.WriteString(p.Sentineled)
	}
	return sb.String()
}
