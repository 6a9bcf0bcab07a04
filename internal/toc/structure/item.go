// Package structure implements Structure Extraction (§4.4): turning a
// TOC Source Selection result into the flat, ordered list of
// TOCItems that Page Mapping, Verification, and Tree Building consume.
package structure

// TOCItem is one flat entry of the extracted table of contents, per
// §3's data model. PhysicalIndex is 0 when the page is not yet known
// (assigned later by Page Mapping); ListIndex is this item's position
// in the flat sequence, assigned once the full list is known.
type TOCItem struct {
	Structure        string
	Title            string
	Level            int
	PhysicalIndex    int
	AppearStart      bool
	ListIndex        int
	ValidationPassed bool
}

// AssignListIndices sets ListIndex to each item's position in items,
// the "optional list_index (position in the flat sequence)" field §3
// describes.
func AssignListIndices(items []TOCItem) {
	for i := range items {
		items[i].ListIndex = i
	}
}
