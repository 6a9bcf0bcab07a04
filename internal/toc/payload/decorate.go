// Package payload implements Payload Decoration (§4.9): attaching
// node_id, a per-node text slice, and LLM-generated summaries to an
// already-built tree, each gated by its own boolean option.
package payload

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/a3tai/toctree/internal/config"
	"github.com/a3tai/toctree/internal/toc/llm"
	"github.com/a3tai/toctree/internal/toc/parsing"
	"github.com/a3tai/toctree/internal/toc/tree"
	"github.com/a3tai/toctree/internal/tlog"
)

const phase = "payload"

// Config tunes the summary fan-out. Text slicing and node_id pruning
// are cheap, synchronous, and unaffected by it.
type Config struct {
	Concurrency int // default 10
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = 10
	}
	return c
}

// Decorate applies if_add_node_id, if_add_node_text, and
// if_add_node_summary to every node of root, per opts. Summaries are
// generated under bounded concurrency and deduplicated by
// title+page-range within this single call, matching §4.9's "cache by
// title+page range to deduplicate identical inputs within one
// document."
func Decorate(ctx context.Context, client *llm.Client, doc string, pages []parsing.Page, root *tree.Node, opts config.Options, cfg Config) error {
	pageByIndex := make(map[int]parsing.Page, len(pages))
	for _, pg := range pages {
		pageByIndex[pg.PhysicalIndex] = pg
	}

	if !opts.IfAddNodeID {
		tree.Walk(root, func(n *tree.Node) { n.NodeID = "" })
	}

	if opts.IfAddNodeText {
		tree.Walk(root, func(n *tree.Node) {
			n.Text = sliceText(pageByIndex, n.StartIndex, n.EndIndex)
		})
	}

	if opts.IfAddNodeSummary {
		return summarizeAll(ctx, client, doc, pageByIndex, root, cfg.withDefaults())
	}
	return nil
}

// sliceText concatenates the text of every page in [start,end],
// stripping any boundary sentinel markers that might otherwise leak
// into node text.
func sliceText(pageByIndex map[int]parsing.Page, start, end int) string {
	var sb strings.Builder
	for p := start; p <= end; p++ {
		if pg, ok := pageByIndex[p]; ok {
			sb.WriteString(stripSentinels(pg.Text))
		}
	}
	return sb.String()
}

// stripSentinels removes any <physical_index_N>...</physical_index_N>
// wrapper a page's text might carry, in case it was sourced from a
// prompt-built string rather than raw parsed text.
func stripSentinels(text string) string {
	for {
		start := strings.Index(text, "<physical_index_")
		if start == -1 {
			break
		}
		closeTag := strings.Index(text[start:], ">")
		if closeTag == -1 {
			break
		}
		text = text[:start] + text[start+closeTag+1:]
	}
	for {
		start := strings.Index(text, "</physical_index_")
		if start == -1 {
			break
		}
		closeTag := strings.Index(text[start:], ">")
		if closeTag == -1 {
			break
		}
		text = text[:start] + text[start+closeTag+1:]
	}
	return text
}

// summarizeAll generates one summary per node in root under bounded
// concurrency, deduplicating identical (title, page range) inputs via
// a sync.Map cache scoped to this call.
func summarizeAll(ctx context.Context, client *llm.Client, doc string, pageByIndex map[int]parsing.Page, root *tree.Node, cfg Config) error {
	log := tlog.ForPhase(phase, doc)

	var nodes []*tree.Node
	tree.Walk(root, func(n *tree.Node) { nodes = append(nodes, n) })
	if len(nodes) == 0 {
		return nil
	}

	var cache sync.Map // map[string]string
	sem := semaphore.NewWeighted(int64(cfg.Concurrency))
	var wg sync.WaitGroup

	dispatched := make(map[string]bool)
	var followers []*tree.Node
	for _, n := range nodes {
		n := n
		text := n.Text
		if text == "" {
			text = sliceText(pageByIndex, n.StartIndex, n.EndIndex)
		}
		key := cacheKey(n.Title, n.StartIndex, n.EndIndex)

		if dispatched[key] {
			followers = append(followers, n)
			continue
		}
		dispatched[key] = true

		if err := sem.Acquire(ctx, 1); err != nil {
			return ctx.Err()
		}
		wg.Add(1)
		go func() {
			defer sem.Release(1)
			defer wg.Done()

			summary, err := summarizeOne(ctx, client, n.Title, text)
			if err != nil {
				log.Warn("summary generation failed, leaving node unsummarized",
					zap.String("title", n.Title), zap.Error(err))
				return
			}
			cache.Store(key, summary)
			n.Summary = summary
		}()
	}
	wg.Wait()

	for _, n := range followers {
		if cached, ok := cache.Load(cacheKey(n.Title, n.StartIndex, n.EndIndex)); ok {
			n.Summary = cached.(string)
		}
	}

	return nil
}

func cacheKey(title string, start, end int) string {
	return fmt.Sprintf("%s|%d|%d", title, start, end)
}

func summarizeOne(ctx context.Context, client *llm.Client, title, text string) (string, error) {
	var sb strings.Builder
	sb.WriteString("Summarize the following document section in 1-3 sentences.\n")
	fmt.Fprintf(&sb, "Section title: %s\n\n", title)
	sb.WriteString(text)

	return client.Generate(ctx, phase, llm.Request{Prompt: sb.String()})
}
