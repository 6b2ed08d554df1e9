package results

import (
	"slices"
	"sort"
)

// Index is the ordered match sequence of one view. Matches are sorted by page
// and, within a page, kept in insertion order, so every page occupies one
// contiguous run that can be located by binary search.
type Index struct {
	matches []Match
}

// NewIndex creates an empty Index.
func NewIndex() *Index {
	return &Index{}
}

// Len returns the number of stored matches.
func (x *Index) Len() int {
	if x == nil {
		return 0
	}
	return len(x.matches)
}

// IsEmpty reports whether the index holds no matches.
func (x *Index) IsEmpty() bool {
	return x.Len() == 0
}

// At returns the match stored at row. The second result is false when row is
// out of range.
func (x *Index) At(row int) (Match, bool) {
	if row < 0 || row >= x.Len() {
		return Match{}, false
	}
	return x.matches[row], true
}

// Matches returns a copy of the stored sequence.
func (x *Index) Matches() []Match {
	if x == nil {
		return nil
	}
	return slices.Clone(x.matches)
}

// LowerBound returns the first row whose page is >= page.
func (x *Index) LowerBound(page int) int {
	if x == nil {
		return 0
	}
	return sort.Search(len(x.matches), func(i int) bool {
		return x.matches[i].Page >= page
	})
}

// UpperBound returns the first row whose page is > page.
func (x *Index) UpperBound(page int) int {
	if x == nil {
		return 0
	}
	return sort.Search(len(x.matches), func(i int) bool {
		return x.matches[i].Page > page
	})
}

// Insert stores the rects found on page and returns the row of the first
// inserted match together with the number of matches inserted. An empty batch
// is a no-op and returns (LowerBound(page), 0).
//
// The batch keeps its relative order. It is placed after any matches already
// stored for the same page, so the index stays sorted by page whatever order
// pages arrive in.
func (x *Index) Insert(page int, rects []Rect) (row, n int) {
	if len(rects) == 0 {
		return x.LowerBound(page), 0
	}

	row = x.UpperBound(page)

	batch := make([]Match, len(rects))
	for i, r := range rects {
		batch[i] = Match{Page: page, Rect: r}
	}
	x.matches = slices.Insert(x.matches, row, batch...)

	return row, len(batch)
}

// CountOnPage returns the number of matches stored for page.
func (x *Index) CountOnPage(page int) int {
	lower := x.LowerBound(page)
	return x.UpperBound(page) - lower
}

// HasPage reports whether at least one match is stored for page.
func (x *Index) HasPage(page int) bool {
	return x.CountOnPage(page) > 0
}

// OnPage returns the rects stored for page, in stored order.
func (x *Index) OnPage(page int) []Rect {
	lower, upper := x.LowerBound(page), x.UpperBound(page)
	if lower == upper {
		return nil
	}

	rects := make([]Rect, 0, upper-lower)
	for _, m := range x.matches[lower:upper] {
		rects = append(rects, m.Rect)
	}
	return rects
}

// RowOf returns the row of the first stored match equal to m.
func (x *Index) RowOf(m Match) (int, bool) {
	lower, upper := x.LowerBound(m.Page), x.UpperBound(m.Page)
	for row := lower; row < upper; row++ {
		if x.matches[row] == m {
			return row, true
		}
	}
	return -1, false
}

// Pages returns the distinct pages holding matches, ascending.
func (x *Index) Pages() []int {
	var pages []int
	for row := 0; row < x.Len(); row = x.UpperBound(x.matches[row].Page) {
		pages = append(pages, x.matches[row].Page)
	}
	return pages
}
