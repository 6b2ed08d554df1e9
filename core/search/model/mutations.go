package model

import (
	"github.com/adalundhe/docsearch/core/search/results"
)

// ViewCanceler drops everything snippet-related for a view. It must not
// return before in-flight work for the view has finished.
type ViewCanceler interface {
	CancelView(view results.ViewID)
}

// InsertResults adds the matches found on page of view. An empty batch is a
// no-op. A view receiving its first matches gets a new top-level row.
func (m *Model) InsertResults(view results.ViewID, page int, rects []results.Rect) {
	if len(rects) == 0 {
		return
	}

	idx, viewRow, created := m.registry.GetOrCreate(view)
	if created {
		m.emitRowsInserted(ModelIndex{}, viewRow, viewRow)
	} else if idx.HasPage(page) {
		m.logger.Debug("page inserted twice", "view", view, "page", page)
	}

	row, n := idx.Insert(page, rects)
	m.emitRowsInserted(ModelIndex{Row: viewRow, valid: true}, row, row+n-1)
}

// ClearResults removes all matches of view. When snippets is not nil its
// pending fetches for view are canceled and awaited, and its cached snippets
// dropped, before the view row is removed.
func (m *Model) ClearResults(view results.ViewID, snippets ViewCanceler) {
	if snippets != nil {
		snippets.CancelView(view)
	}

	row, ok := m.registry.Row(view)
	if !ok {
		return
	}

	m.registry.Remove(view)
	m.emitRowsRemoved(ModelIndex{}, row, row)
}

// UpdateProgress announces that the search progress of view changed.
func (m *Model) UpdateProgress(view results.ViewID) {
	index := m.FindView(view)
	if index.IsValid() {
		m.emitDataChanged(index, index)
	}
}

// SnippetsReady announces that snippets of view became available. Row
// positions may have shifted since the fetch started, so the whole range of
// match rows of view is reported as changed.
func (m *Model) SnippetsReady(view results.ViewID) {
	count := m.registry.Get(view).Len()
	if count == 0 {
		return
	}

	m.emitDataChanged(
		ModelIndex{Row: 0, Column: 0, parent: view, valid: true},
		ModelIndex{Row: count - 1, Column: 0, parent: view, valid: true},
	)
}

// HasResults reports whether view holds at least one match.
func (m *Model) HasResults(view results.ViewID) bool {
	return !m.registry.Get(view).IsEmpty()
}

// HasResultsOnPage reports whether view holds a match on page.
func (m *Model) HasResultsOnPage(view results.ViewID, page int) bool {
	return m.registry.Get(view).HasPage(page)
}

// NumberOfResultsOnPage returns the number of matches of view on page.
func (m *Model) NumberOfResultsOnPage(view results.ViewID, page int) int {
	return m.registry.Get(view).CountOnPage(page)
}

// ResultsOnPage returns the match rectangles of view on page.
func (m *Model) ResultsOnPage(view results.ViewID, page int) []results.Rect {
	return m.registry.Get(view).OnPage(page)
}

// FindResult returns the match row to move to from current, or from
// currentPage when current is not a match row of view. The result is the
// invalid index when view has no matches.
func (m *Model) FindResult(view results.ViewID, current ModelIndex, currentPage int, dir results.Direction) ModelIndex {
	row := -1
	if current.IsMatch() && current.parent == view {
		row = current.Row
	}

	found, ok := results.Find(m.registry.Get(view), row, currentPage, dir)
	if !ok {
		return ModelIndex{}
	}
	return ModelIndex{Row: found, parent: view, valid: true}
}
