// Package model exposes search results as a two-level tree for a UI observer.
//
// Level 0 holds one row per view with results; level 1 holds one row per match
// of that view. Rows are read through Index, Parent, RowCount and Data, and
// every mutation is announced to subscribed Observers.
//
// A Model is not safe for concurrent use. It must only be used from the
// controller goroutine; snippet completions reach it through SnippetsReady,
// which the controller calls on that goroutine.
package model

import (
	"fmt"
	"log/slog"

	"github.com/adalundhe/docsearch/core/search/results"
	"github.com/adalundhe/docsearch/core/search/snippet"
)

// ColumnCount is the number of columns on both levels.
const ColumnCount = 2

// View is the search session of one open document, as seen by the model.
type View interface {
	snippet.ContextSource

	Title() string
	SearchProgress() int
	SearchText() string
	SearchMatchCase() bool
	SearchWholeWords() bool
}

// ViewLookup resolves a view handle to its View.
type ViewLookup interface {
	LookupView(id results.ViewID) (View, bool)
}

// ViewLookupFunc adapts a function to ViewLookup.
type ViewLookupFunc func(id results.ViewID) (View, bool)

// LookupView calls f.
func (f ViewLookupFunc) LookupView(id results.ViewID) (View, bool) {
	return f(id)
}

// SnippetSource provides snippet text for matches without blocking.
type SnippetSource interface {
	MatchedText(view results.ViewID, src snippet.ContextSource, match results.Match) (string, bool)
	SurroundingText(view results.ViewID, src snippet.ContextSource, match results.Match) (string, bool)
}

// ModelIndex addresses one cell of the tree. The zero value is the invalid
// index, which also stands for the invisible root.
type ModelIndex struct {
	Row    int
	Column int

	// parent is the owning view for match rows and InvalidView for view rows.
	parent results.ViewID
	valid  bool
}

// IsValid reports whether the index addresses a cell.
func (i ModelIndex) IsValid() bool {
	return i.valid
}

// IsMatch reports whether the index addresses a match row.
func (i ModelIndex) IsMatch() bool {
	return i.valid && i.parent != results.InvalidView
}

func (i ModelIndex) String() string {
	switch {
	case !i.valid:
		return "root"
	case i.parent == results.InvalidView:
		return fmt.Sprintf("view(%d,%d)", i.Row, i.Column)
	default:
		return fmt.Sprintf("%s/match(%d,%d)", i.parent, i.Row, i.Column)
	}
}

// Config wires a Model to its collaborators.
type Config struct {
	Registry *results.Registry
	Views    ViewLookup
	Snippets SnippetSource
	Logger   *slog.Logger
}

// Model is the read-only tree adapter over a results.Registry.
type Model struct {
	registry *results.Registry
	views    ViewLookup
	snippets SnippetSource
	logger   *slog.Logger

	observers *observerList
}

// New creates a Model. A nil Registry is replaced by an empty one.
func New(cfg Config) *Model {
	if cfg.Registry == nil {
		cfg.Registry = results.NewRegistry()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Model{
		registry:  cfg.Registry,
		views:     cfg.Views,
		snippets:  cfg.Snippets,
		logger:    cfg.Logger,
		observers: newObserverList(),
	}
}

// Registry returns the underlying registry.
func (m *Model) Registry() *results.Registry {
	return m.registry
}

func (m *Model) view(id results.ViewID) (View, bool) {
	if m.views == nil {
		return nil, false
	}
	return m.views.LookupView(id)
}

// =============================================================================
// Tree navigation
// =============================================================================

// Index returns the index of the cell at row and column below parent, or the
// invalid index when no such cell exists.
func (m *Model) Index(row, column int, parent ModelIndex) ModelIndex {
	if row < 0 || column < 0 || column >= ColumnCount || row >= m.RowCount(parent) {
		return ModelIndex{}
	}

	if !parent.valid {
		return ModelIndex{Row: row, Column: column, valid: true}
	}

	view, _ := m.registry.ViewAt(parent.Row)
	return ModelIndex{Row: row, Column: column, parent: view, valid: true}
}

// Parent returns the view row owning a match row, and the invalid index for
// view rows.
func (m *Model) Parent(child ModelIndex) ModelIndex {
	if !child.IsMatch() {
		return ModelIndex{}
	}
	return m.FindView(child.parent)
}

// RowCount returns the number of rows below parent.
func (m *Model) RowCount(parent ModelIndex) int {
	if !parent.valid {
		return m.registry.Len()
	}
	if parent.IsMatch() {
		return 0
	}

	view, ok := m.registry.ViewAt(parent.Row)
	if !ok {
		return 0
	}
	return m.registry.Get(view).Len()
}

// ColumnCount returns the number of columns below parent.
func (m *Model) ColumnCount(ModelIndex) int {
	return ColumnCount
}

// ViewForIndex returns the view a row belongs to.
func (m *Model) ViewForIndex(index ModelIndex) (results.ViewID, bool) {
	if !index.valid {
		return results.InvalidView, false
	}
	if index.IsMatch() {
		return index.parent, m.registry.Get(index.parent) != nil
	}
	return m.registry.ViewAt(index.Row)
}

// FindView returns the index of the row of view.
func (m *Model) FindView(view results.ViewID) ModelIndex {
	row, ok := m.registry.Row(view)
	if !ok {
		return ModelIndex{}
	}
	return ModelIndex{Row: row, valid: true}
}

// MatchIndex returns the index of a match row of view.
func (m *Model) MatchIndex(view results.ViewID, row int) ModelIndex {
	if row < 0 || row >= m.registry.Get(view).Len() {
		return ModelIndex{}
	}
	return ModelIndex{Row: row, parent: view, valid: true}
}

// MatchAt returns the match addressed by index.
func (m *Model) MatchAt(index ModelIndex) (results.Match, bool) {
	if !index.IsMatch() {
		return results.Match{}, false
	}
	return m.registry.Get(index.parent).At(index.Row)
}
