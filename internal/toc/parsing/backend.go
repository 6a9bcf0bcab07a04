package parsing

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// backend is one entry in the prioritised extraction chain. Each
// backend owns its own open file handle so Parser can try the next
// backend without the previous one's state leaking through.
type backend interface {
	name() string
	pageCount() int
	pageText(physicalIndex int) (string, error)
	close() error
}

// openBackends opens every backend this parser knows how to try,
// skipping (not failing on) any that can't open the file at all. The
// returned chain may be empty; Parser then takes the page count from
// pdfcpu and gives every page empty text, and fails with an
// unreadable-page error only when no page count can be read either.
func openBackends(path string) []backend {
	var chain []backend

	if b, err := newTablesBackend(path); err == nil {
		chain = append(chain, b)
	}
	if b, err := newQualityBackend(path); err == nil {
		chain = append(chain, b)
	}

	return chain
}

// tablesBackend reconstructs page text from ledongthuc/pdf's
// positioned text fragments (Content().Text, each with X/Y/S),
// inserting column breaks on large horizontal jumps so tabular text
// survives as whitespace-separated cells rather than a run-on string.
// This is the "tables-aware" tier of the chain: it costs more per page
// than plain extraction but preserves layout that GetPlainText loses.
type tablesBackend struct {
	file   *os.File
	reader *pdf.Reader
}

func newTablesBackend(path string) (*tablesBackend, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("parsing: open for tables backend: %w", err)
	}
	return &tablesBackend{file: f, reader: r}, nil
}

func (b *tablesBackend) name() string { return "tables" }

func (b *tablesBackend) pageCount() int { return b.reader.NumPage() }

func (b *tablesBackend) pageText(physicalIndex int) (string, error) {
	page := b.reader.Page(physicalIndex)
	if page.V.IsNull() {
		return "", nil
	}

	content, err := safeContent(page)
	if err != nil {
		return "", err
	}

	texts := content.Text
	sort.SliceStable(texts, func(i, j int) bool {
		if texts[i].Y != texts[j].Y {
			return texts[i].Y > texts[j].Y // top of page first
		}
		return texts[i].X < texts[j].X
	})

	var sb strings.Builder
	prevY := 0.0
	prevEndX := 0.0
	first := true

	for _, t := range texts {
		if first {
			sb.WriteString(t.S)
			prevY, prevEndX, first = t.Y, t.X+float64(len(t.S))*t.FontSize*0.5, false
			continue
		}
		if t.Y != prevY {
			sb.WriteString("\n")
		} else if t.X-prevEndX > t.FontSize*1.5 {
			sb.WriteString("\t")
		}
		sb.WriteString(t.S)
		prevY = t.Y
		prevEndX = t.X + float64(len(t.S))*t.FontSize*0.5
	}

	return sb.String(), nil
}

func (b *tablesBackend) close() error { return b.file.Close() }

// safeContent recovers from the occasional panic buried in
// ledongthuc/pdf's content-stream interpreter on malformed pages,
// matching the teacher's detectImages recover() pattern.
func safeContent(page pdf.Page) (content pdf.Content, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("parsing: panic decoding page content: %v", r)
		}
	}()
	content = page.Content()
	return content, nil
}

// qualityBackend is the plain-text tier, grounded directly on the
// teacher's extractTextContent loop: one GetPlainText call per page,
// tolerating per-page failures without erroring the document.
type qualityBackend struct {
	file   *os.File
	reader *pdf.Reader
}

func newQualityBackend(path string) (*qualityBackend, error) {
	f, r, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("parsing: open for quality backend: %w", err)
	}
	return &qualityBackend{file: f, reader: r}, nil
}

func (b *qualityBackend) name() string { return "quality" }

func (b *qualityBackend) pageCount() int { return b.reader.NumPage() }

func (b *qualityBackend) pageText(physicalIndex int) (string, error) {
	page := b.reader.Page(physicalIndex)
	if page.V.IsNull() {
		return "", nil
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		return "", nil // unreadable page: empty text, not an error (spec §4.1)
	}
	return text, nil
}

func (b *qualityBackend) close() error { return b.file.Close() }
