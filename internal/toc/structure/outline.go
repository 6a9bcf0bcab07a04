package structure

import (
	"github.com/a3tai/toctree/internal/toc/codegen"
	"github.com/a3tai/toctree/internal/toc/parsing"
)

// FromOutline converts an embedded outline into the flat TOCItem list,
// per §4.4: each (level, title, page) becomes a TOCItem with
// physical_index = page, and the structure code is synthesized by a
// per-level counter that restarts deeper levels on each shallower
// entry (codegen.Synthesizer implements exactly this rule).
//
// Outline-sourced items are pre-validated: the embedded outline is
// trusted to point at real pages, so validation_passed starts true
// (§4.5's fast path) and the Verifier may still flip it to false if a
// title can't be found where the outline claims it is.
func FromOutline(outline []parsing.OutlineEntry) []TOCItem {
	syn := codegen.New()
	items := make([]TOCItem, len(outline))

	for i, o := range outline {
		level := o.Level
		if level < 1 {
			level = 1
		}
		items[i] = TOCItem{
			Structure:        syn.Next(level),
			Title:            o.Title,
			Level:            level,
			PhysicalIndex:    o.Page,
			ValidationPassed: true,
		}
	}

	AssignListIndices(items)
	return items
}
