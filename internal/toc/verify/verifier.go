// Package verify implements the Verifier (§4.6): a bounded-concurrency
// pass over the flat TOCItem list that confirms each title actually
// appears on its claimed physical_index, self-heals small
// mis-mappings by searching a neighbourhood of nearby pages, and
// writes results back by list_index so goroutine completion order
// never matters.
package verify

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/hbollon/go-edlib"
	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"

	"github.com/a3tai/toctree/internal/toc/mapping"
	"github.com/a3tai/toctree/internal/toc/parsing"
	"github.com/a3tai/toctree/internal/toc/structure"
	"github.com/a3tai/toctree/internal/tlog"
)

const phase = "verify"

// Config tunes the Verifier's cost: how many items get checked, how
// many checks run at once, and how far the self-healing search looks.
type Config struct {
	Concurrency  int // default 20
	MaxVerify    int // default 100
	Neighborhood int // default 3
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = 20
	}
	if c.MaxVerify <= 0 {
		c.MaxVerify = 100
	}
	if c.Neighborhood <= 0 {
		c.Neighborhood = 3
	}
	return c
}

// Verifier runs the verification pass against a parsed document's
// pages.
type Verifier struct {
	cfg Config
}

// New builds a Verifier with the given tuning.
func New(cfg Config) *Verifier {
	return &Verifier{cfg: cfg.withDefaults()}
}

// Verify checks items in deepest-first priority order (the most
// specific, least ambiguous titles first) up to MaxVerify of them,
// bounded to Concurrency concurrent checks. Items outside the checked
// budget pass through with whatever validation state they already
// carried from Structure Extraction or Page Mapping. pages must cover
// the full document (parser.ParseAll's result).
func (v *Verifier) Verify(ctx context.Context, doc string, items []structure.TOCItem, pages []parsing.Page) ([]structure.TOCItem, error) {
	log := tlog.ForPhase(phase, doc)

	out := make([]structure.TOCItem, len(items))
	copy(out, items)
	if len(out) == 0 {
		return out, nil
	}

	normPages := make(map[int][]string, len(pages))
	maxPage := 0
	for _, pg := range pages {
		normPages[pg.PhysicalIndex] = normalizeLines(pg.Text)
		if pg.PhysicalIndex > maxPage {
			maxPage = pg.PhysicalIndex
		}
	}

	priority := deepestFirst(out)
	if len(priority) > v.cfg.MaxVerify {
		log.Info("capping verification to max_verify_count",
			zap.Int("candidates", len(priority)), zap.Int("cap", v.cfg.MaxVerify))
		priority = priority[:v.cfg.MaxVerify]
	}

	states := make([]itemState, len(out))
	sem := semaphore.NewWeighted(int64(v.cfg.Concurrency))
	var wg sync.WaitGroup

	for _, i := range priority {
		i := i
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func() {
			defer sem.Release(1)
			defer wg.Done()
			passed, appearStart, resolved := verifyOne(out[i].Title, out[i].PhysicalIndex, v.cfg.Neighborhood, maxPage, normPages)
			states[i].set(passed, appearStart, resolved)
		}()
	}
	wg.Wait()

	for i := range out {
		checked, passed, appearStart, resolved := states[i].get()
		if !checked {
			continue
		}
		out[i].ValidationPassed = passed
		out[i].AppearStart = appearStart
		if passed {
			out[i].PhysicalIndex = resolved
		}
	}

	return out, nil
}

// deepestFirst returns item indices ordered by descending Level,
// stable on ties so items at equal depth keep document order.
func deepestFirst(items []structure.TOCItem) []int {
	idx := make([]int, len(items))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return items[idx[a]].Level > items[idx[b]].Level
	})
	return idx
}

// topLines is how many leading non-blank lines of a page count as its
// top when deciding whether a section begins mid-page.
const topLines = 3

// verifyOne checks whether title appears where claimed, widening to a
// +/-neighborhood page search before giving up. It returns whether the
// item passed, whether the title was found below the top of the page it
// resolved to (appear start: the section begins mid-page), and the
// physical_index it should resolve to.
func verifyOne(title string, claimed, neighborhood, maxPage int, normPages map[int][]string) (passed, appearStart bool, resolved int) {
	normTitle := mapping.Normalize(title)
	if normTitle == "" {
		return false, false, claimed
	}

	if lines, ok := normPages[claimed]; ok && matches(normTitle, lines) {
		return true, !nearTop(normTitle, lines), claimed
	}

	for d := 1; d <= neighborhood; d++ {
		for _, p := range []int{claimed - d, claimed + d} {
			if p < 1 || p > maxPage {
				continue
			}
			if lines, ok := normPages[p]; ok && matches(normTitle, lines) {
				return true, !nearTop(normTitle, lines), p
			}
		}
	}

	return false, false, claimed
}

// nearTop reports whether normTitle matches one of the page's first
// topLines non-blank lines.
func nearTop(normTitle string, lines []string) bool {
	if len(lines) > topLines {
		lines = lines[:topLines]
	}
	return matches(normTitle, lines)
}

// matches is an exact substring test followed by a per-line fuzzy
// fallback, the same two-tier comparison Page Mapping uses.
func matches(normTitle string, lines []string) bool {
	for _, line := range lines {
		if strings.Contains(line, normTitle) {
			return true
		}
	}
	for _, line := range lines {
		similarity, err := edlib.StringsSimilarity(normTitle, line, edlib.Levenshtein)
		if err != nil {
			continue
		}
		if float64(similarity) >= 0.85 {
			return true
		}
	}
	return false
}

// normalizeLines splits page text into its lines and normalises each
// independently, so line breaks survive for the per-line comparisons
// above (a whole-page normalise would collapse them into one line).
func normalizeLines(text string) []string {
	var lines []string
	start := 0
	for i, r := range text {
		if r == '\n' {
			if n := mapping.Normalize(text[start:i]); n != "" {
				lines = append(lines, n)
			}
			start = i + 1
		}
	}
	if n := mapping.Normalize(text[start:]); n != "" {
		lines = append(lines, n)
	}
	return lines
}
