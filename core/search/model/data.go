package model

import (
	"fmt"

	"github.com/adalundhe/docsearch/core/search/results"
)

// Role selects which attribute of a row Data returns.
type Role int

const (
	DisplayRole Role = iota
	ToolTipRole
	CountRole
	ProgressRole
	PageRole
	RectRole
	TextRole
	MatchCaseRole
	WholeWordsRole
	MatchedTextRole
	SurroundingTextRole
)

var roleNames = map[Role]string{
	DisplayRole:         "display",
	ToolTipRole:         "tooltip",
	CountRole:           "count",
	ProgressRole:        "progress",
	PageRole:            "page",
	RectRole:            "rect",
	TextRole:            "text",
	MatchCaseRole:       "match_case",
	WholeWordsRole:      "whole_words",
	MatchedTextRole:     "matched_text",
	SurroundingTextRole: "surrounding_text",
}

func (r Role) String() string {
	if name, ok := roleNames[r]; ok {
		return name
	}
	return "unknown"
}

// Data returns the value of role for the cell at index, or nil when the cell
// or the role does not apply. Snippet roles never block: they return "" until
// the background fetch has completed.
func (m *Model) Data(index ModelIndex, role Role) any {
	if !index.valid {
		return nil
	}
	if index.IsMatch() {
		return m.matchData(index, role)
	}
	return m.viewData(index, role)
}

func (m *Model) viewData(index ModelIndex, role Role) any {
	id, ok := m.registry.ViewAt(index.Row)
	if !ok {
		return nil
	}
	count := m.registry.Get(id).Len()

	switch role {
	case CountRole:
		return count
	case ProgressRole:
		if view, ok := m.view(id); ok {
			return view.SearchProgress()
		}
		return nil
	case DisplayRole:
		switch index.Column {
		case 0:
			if view, ok := m.view(id); ok {
				return view.Title()
			}
			return id.String()
		case 1:
			return count
		}
		return occurrencesTip(count)
	case ToolTipRole:
		return occurrencesTip(count)
	default:
		return nil
	}
}

func (m *Model) matchData(index ModelIndex, role Role) any {
	idx := m.registry.Get(index.parent)
	match, ok := idx.At(index.Row)
	if !ok {
		return nil
	}

	switch role {
	case PageRole:
		return match.Page
	case RectRole:
		return match.Rect
	case DisplayRole:
		switch index.Column {
		case 0:
			return nil
		case 1:
			return match.Page
		}
		return pageOccurrencesTip(idx.CountOnPage(match.Page), match.Page)
	case ToolTipRole:
		return pageOccurrencesTip(idx.CountOnPage(match.Page), match.Page)
	}

	view, ok := m.view(index.parent)
	if !ok {
		return nil
	}

	switch role {
	case TextRole:
		return view.SearchText()
	case MatchCaseRole:
		return view.SearchMatchCase()
	case WholeWordsRole:
		return view.SearchWholeWords()
	case MatchedTextRole:
		return m.matchedText(index.parent, view, match)
	case SurroundingTextRole:
		return m.surroundingText(index.parent, view, match)
	default:
		return nil
	}
}

func (m *Model) matchedText(id results.ViewID, view View, match results.Match) string {
	if m.snippets == nil {
		return ""
	}
	text, _ := m.snippets.MatchedText(id, view, match)
	return text
}

func (m *Model) surroundingText(id results.ViewID, view View, match results.Match) string {
	if m.snippets == nil {
		return ""
	}
	text, _ := m.snippets.SurroundingText(id, view, match)
	return text
}

func occurrencesTip(count int) string {
	return fmt.Sprintf("<b>%d</b> occurrences", count)
}

func pageOccurrencesTip(count, page int) string {
	return fmt.Sprintf("<b>%d</b> occurrences on page <b>%d</b>", count, page)
}
