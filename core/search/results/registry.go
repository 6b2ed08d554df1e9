package results

import (
	"slices"
	"sort"
)

// Registry maps views to their result indexes. An index exists only for views
// that received at least one match; it is created lazily by GetOrCreate and
// destroyed by Remove.
//
// Views are kept ordered by ViewID, which gives every view a stable row
// position for as long as it holds results.
type Registry struct {
	views   []ViewID
	indexes map[ViewID]*Index
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		indexes: make(map[ViewID]*Index),
	}
}

// Len returns the number of views that currently hold results.
func (r *Registry) Len() int {
	return len(r.views)
}

// Get returns the index of view, or nil.
func (r *Registry) Get(view ViewID) *Index {
	return r.indexes[view]
}

// Row returns the row position of view. The second result is false when the
// view holds no results.
func (r *Registry) Row(view ViewID) (int, bool) {
	row := r.search(view)
	if row < len(r.views) && r.views[row] == view {
		return row, true
	}
	return -1, false
}

// ViewAt returns the view stored at row.
func (r *Registry) ViewAt(row int) (ViewID, bool) {
	if row < 0 || row >= len(r.views) {
		return InvalidView, false
	}
	return r.views[row], true
}

// Views returns the registered views in row order.
func (r *Registry) Views() []ViewID {
	return slices.Clone(r.views)
}

// GetOrCreate returns the index of view together with its row, creating both
// when the view is not registered yet. created reports whether a new row was
// added.
func (r *Registry) GetOrCreate(view ViewID) (idx *Index, row int, created bool) {
	row = r.search(view)
	if row < len(r.views) && r.views[row] == view {
		return r.indexes[view], row, false
	}

	idx = NewIndex()
	r.views = slices.Insert(r.views, row, view)
	r.indexes[view] = idx

	return idx, row, true
}

// Remove drops the index of view and returns the row it occupied.
func (r *Registry) Remove(view ViewID) (int, bool) {
	row, ok := r.Row(view)
	if !ok {
		return -1, false
	}

	r.views = slices.Delete(r.views, row, row+1)
	delete(r.indexes, view)

	return row, true
}

// Clear drops every index.
func (r *Registry) Clear() {
	r.views = nil
	clear(r.indexes)
}

func (r *Registry) search(view ViewID) int {
	return sort.Search(len(r.views), func(i int) bool {
		return r.views[i] >= view
	})
}
