package source

import (
	"context"
	"regexp"
	"strings"

	"github.com/a3tai/toctree/internal/toc/parsing"
)

// Kind identifies which structural source Selection chose.
type Kind int

const (
	KindEmbeddedOutline Kind = iota
	KindPrintedContents
	KindBodyContent
)

func (k Kind) String() string {
	switch k {
	case KindEmbeddedOutline:
		return "embedded_outline"
	case KindPrintedContents:
		return "printed_contents"
	default:
		return "body_content"
	}
}

// Selection is TOC Source Selection's output: which source to feed
// into Structure Extraction, and the payload that source needs.
type Selection struct {
	Kind Kind

	Outline []parsing.OutlineEntry // KindEmbeddedOutline

	ContentsPages     []int    // KindPrintedContents: physical indices of the contiguous region
	ContentsPageTexts []string // KindPrintedContents: each page's sentinel-wrapped text, same order
}

// contentsKeywords is the multilingual signature set §4.3 calls for.
var contentsKeywords = []string{
	"table of contents", "contents", "目录", "目錄", "índice",
	"sommaire", "inhaltsverzeichnis", "indice", "sumário", "содержание",
}

// shapeLine matches a short line ending in a page number, the
// "characteristic shape of a contents page" (dot leaders or wide gaps
// before the trailing number).
var shapeLine = regexp.MustCompile(`^.{2,90}?(\.{2,}|\s{2,})\s*\d{1,4}\s*$`)

// Select runs TOC Source Selection: embedded outline first, then a
// scan of the leading checkPages for a printed contents page, falling
// through to body-content reconstruction (signalled by KindBodyContent
// with no payload — the caller parses the whole document itself).
func Select(ctx context.Context, p *parsing.Parser, checkPages int) (Selection, error) {
	outline, err := p.EmbeddedOutline()
	if err != nil {
		return Selection{}, err
	}
	if acceptOutline(outline) {
		return Selection{Kind: KindEmbeddedOutline, Outline: outline}, nil
	}

	pages, err := p.ParseInitial(ctx, checkPages)
	if err != nil {
		return Selection{}, err
	}

	if region, ok := findContentsRegion(pages); ok {
		indices := make([]int, len(region))
		texts := make([]string, len(region))
		for i, pg := range region {
			indices[i] = pg.PhysicalIndex
			texts[i] = parsing.Sentinel(pg.PhysicalIndex, pg.Text)
		}
		return Selection{Kind: KindPrintedContents, ContentsPages: indices, ContentsPageTexts: texts}, nil
	}

	return Selection{Kind: KindBodyContent}, nil
}

// acceptOutline implements §4.3's embedded-outline gate: at least 5
// entries, and at least half of their titles pass the TOC-entry
// validator.
func acceptOutline(outline []parsing.OutlineEntry) bool {
	if len(outline) < 5 {
		return false
	}
	titles := make([]string, len(outline))
	for i, o := range outline {
		titles[i] = o.Title
	}
	return AcceptanceScore(titles) >= 0.5
}

// findContentsRegion scans pages for a keyword signature or shape
// score, then greedily extends the region forward and backward while
// the shape score stays strong, capturing a contents section that
// spans more than one physical page.
func findContentsRegion(pages []parsing.Page) ([]parsing.Page, bool) {
	bestIdx := -1
	bestScore := 0.0

	for i, pg := range pages {
		score := pageContentsScore(pg.Text)
		if hasContentsKeyword(pg.Text) {
			score += 0.5
		}
		if score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}

	if bestIdx == -1 || bestScore < 0.3 {
		return nil, false
	}

	start, end := bestIdx, bestIdx
	for start > 0 && pageContentsScore(pages[start-1].Text) >= 0.2 {
		start--
	}
	for end+1 < len(pages) && pageContentsScore(pages[end+1].Text) >= 0.2 {
		end++
	}

	return pages[start : end+1], true
}

func hasContentsKeyword(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range contentsKeywords {
		if strings.Contains(lower, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}

// pageContentsScore is the fraction of non-blank lines on a page that
// look like a TOC entry (short, ending in a page number).
func pageContentsScore(text string) float64 {
	lines := strings.Split(text, "\n")
	nonBlank := 0
	shaped := 0
	for _, l := range lines {
		l = strings.TrimSpace(l)
		if l == "" {
			continue
		}
		nonBlank++
		if shapeLine.MatchString(l) {
			shaped++
		}
	}
	if nonBlank == 0 {
		return 0
	}
	return float64(shaped) / float64(nonBlank)
}
