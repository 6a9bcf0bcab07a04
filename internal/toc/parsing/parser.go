package parsing

import (
	"context"
	"fmt"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"go.uber.org/zap"

	"github.com/a3tai/toctree/internal/tlog"
	"github.com/a3tai/toctree/internal/tocerr"
)

const phase = "parsing"

// Parser implements §4.1's PDF Parser: per-page text on demand plus
// document metadata, behind the tables/quality backend chain. A
// Parser is safe for concurrent use; pages are parsed at most once and
// cached for the document's lifetime (spec §5's full-document cache,
// not an eviction cache).
type Parser struct {
	path string

	mu         sync.Mutex
	chain      []backend
	totalPages int
	resolved   bool
	outline    []OutlineEntry
	pages      map[int]*Page
}

// New builds a Parser for the PDF at path. Opening backends is
// deferred to first use so constructing a Parser never fails outright.
func New(path string) *Parser {
	return &Parser{path: path, pages: make(map[int]*Page)}
}

// newWithChain builds a Parser around an already-resolved backend
// chain, bypassing file I/O. Used by tests to exercise the
// quality-selection and caching logic against fake backends.
func newWithChain(totalPages int, outline []OutlineEntry, chain []backend) *Parser {
	return &Parser{
		chain:      chain,
		totalPages: totalPages,
		outline:    outline,
		resolved:   true,
		pages:      make(map[int]*Page),
	}
}

// NewFromPages builds a Parser entirely from already-parsed pages,
// with no backend chain and no file I/O: every page is pre-cached, so
// page() always hits the cache and Close() has nothing to release.
// Exported for integration tests exercising the pipeline end to end
// against literal page text instead of a real PDF file.
func NewFromPages(totalPages int, outline []OutlineEntry, pages []Page) *Parser {
	p := &Parser{
		totalPages: totalPages,
		outline:    outline,
		resolved:   true,
		pages:      make(map[int]*Page, len(pages)),
	}
	for i := range pages {
		pg := pages[i]
		p.pages[pg.PhysicalIndex] = &pg
	}
	return p
}

func (p *Parser) ensure() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.resolved {
		return nil
	}

	p.chain = openBackends(p.path)

	total := 0
	for _, b := range p.chain {
		if n := b.pageCount(); n > total {
			total = n
		}
	}
	if total == 0 {
		if n, err := api.PageCountFile(p.path); err == nil {
			total = n
		}
	}
	if total == 0 {
		p.resolved = true
		return tocerr.New(phase, tocerr.KindUnreadablePage, "no backend could determine a page count", fmt.Errorf("path=%s", p.path))
	}

	p.totalPages = total
	p.outline = embeddedOutline(p.path)
	p.resolved = true
	return nil
}

// TotalPages returns the document's page count, resolving backends on
// first call.
func (p *Parser) TotalPages() (int, error) {
	if err := p.ensure(); err != nil {
		return 0, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.totalPages, nil
}

// EmbeddedOutline returns the flattened bookmark tree, or nil if the
// document carries none.
func (p *Parser) EmbeddedOutline() ([]OutlineEntry, error) {
	if err := p.ensure(); err != nil {
		return nil, err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.outline, nil
}

// ParseInitial returns texts for pages 1..firstN (clamped to
// total_pages), used by TOC Source Selection and Structure Extraction
// before the full document cost is paid.
func (p *Parser) ParseInitial(ctx context.Context, firstN int) ([]Page, error) {
	total, err := p.TotalPages()
	if err != nil {
		return nil, err
	}
	if firstN > total {
		firstN = total
	}
	return p.parseRange(ctx, 1, firstN)
}

// ParseAll guarantees every page is parsed and cached. The Builder
// calls it for every document before Page Mapping, whichever TOC
// source was selected, so the whole document is always parsed.
func (p *Parser) ParseAll(ctx context.Context) ([]Page, error) {
	total, err := p.TotalPages()
	if err != nil {
		return nil, err
	}
	return p.parseRange(ctx, 1, total)
}

func (p *Parser) parseRange(ctx context.Context, from, to int) ([]Page, error) {
	log := tlog.ForPhase(phase, p.path)
	out := make([]Page, 0, to-from+1)

	for i := from; i <= to; i++ {
		select {
		case <-ctx.Done():
			return out, tocerr.New(phase, tocerr.KindCancelled, "parse range cancelled", ctx.Err())
		default:
		}

		pg, err := p.page(i)
		if err != nil {
			log.Warn("page parse failed, continuing", zap.Int("page", i), zap.Error(err))
			pg = Page{PhysicalIndex: i}
		}
		out = append(out, pg)
	}
	return out, nil
}

// page returns page i's parsed content, caching the result. Backends
// are tried in chain order; the first acceptable-quality output wins,
// falling back to the best available (possibly empty) text rather
// than erroring, per §4.1's failure semantics.
func (p *Parser) page(physicalIndex int) (Page, error) {
	p.mu.Lock()
	if cached, ok := p.pages[physicalIndex]; ok {
		p.mu.Unlock()
		return *cached, nil
	}
	chain := p.chain
	p.mu.Unlock()

	var best string
	bestScore := -1.0

	for _, b := range chain {
		if physicalIndex > b.pageCount() {
			continue
		}
		text, err := b.pageText(physicalIndex)
		if err != nil || text == "" {
			continue
		}
		if acceptable(text) {
			best = text
			bestScore = quality(text)
			break
		}
		if s := quality(text); s > bestScore {
			best, bestScore = text, s
		}
	}

	pg := Page{
		PhysicalIndex: physicalIndex,
		Text:          best,
		TokenEstimate: estimateTokens(best),
		HasTable:      hasTableMarkers(best),
	}

	p.mu.Lock()
	p.pages[physicalIndex] = &pg
	p.mu.Unlock()

	return pg, nil
}

// TokenEstimate sums the rough per-page token estimate over an
// inclusive 1-based page range, parsing any pages not yet cached.
func (p *Parser) TokenEstimate(startIndex, endIndex int) (int, error) {
	total := 0
	for i := startIndex; i <= endIndex; i++ {
		pg, err := p.page(i)
		if err != nil {
			return total, err
		}
		total += pg.TokenEstimate
	}
	return total, nil
}

// Text returns physicalIndex's text wrapped in the boundary sentinel,
// the representation handed to LLM prompts throughout Phases 2-3.
func (p *Parser) Text(physicalIndex int) (string, error) {
	pg, err := p.page(physicalIndex)
	if err != nil {
		return "", err
	}
	return Sentinel(pg.PhysicalIndex, pg.Text), nil
}

// Close releases every backend's underlying file handle.
func (p *Parser) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	var firstErr error
	for _, b := range p.chain {
		if err := b.close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
