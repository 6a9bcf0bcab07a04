package parsing

import (
	"github.com/pdfcpu/pdfcpu/pkg/api"
)

// OutlineEntry is one flattened entry of the document's embedded
// outline (bookmark) tree, per §4.1's embedded_outline() contract.
type OutlineEntry struct {
	Level int
	Title string
	Page  int
}

// embeddedOutline reads the PDF's bookmark tree via pdfcpu and
// flattens it into (level, title, page) tuples. Any failure — no
// outline present, an encrypted catalog, a malformed tree — degrades
// to an empty slice rather than an error, matching the operation's "or
// empty" contract; embedded-outline detection is optional input to TOC
// Source Selection, never a hard requirement.
func embeddedOutline(path string) []OutlineEntry {
	bms, err := api.BookmarksForFile(path, nil)
	if err != nil || len(bms) == 0 {
		return nil
	}

	var entries []OutlineEntry
	flattenBookmarks(bms, 1, &entries)
	return entries
}

func flattenBookmarks(bms []api.Bookmark, level int, out *[]OutlineEntry) {
	for _, bm := range bms {
		page := bm.PageFrom
		if page <= 0 {
			page = 1
		}
		*out = append(*out, OutlineEntry{Level: level, Title: bm.Title, Page: page})
		if len(bm.Kids) > 0 {
			flattenBookmarks(bm.Kids, level+1, out)
		}
	}
}
