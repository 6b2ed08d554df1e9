package document

import (
	"context"
	"errors"
	"slices"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"

	"github.com/adalundhe/docsearch/core/search/results"
)

var ErrEmptyQuery = errors.New("search query is empty")

// SearchOptions selects how a query matches.
type SearchOptions struct {
	MatchCase  bool
	WholeWords bool
}

// ResultSink receives the matches of a running search, one page at a time
// in increasing page order.
type ResultSink interface {
	InsertResults(page int, rects []results.Rect) error
	UpdateProgress() error
}

// Search scans every page for query and reports the matches to sink. It
// returns the number of matches found before it finished or ctx ended.
func (d *Document) Search(ctx context.Context, query string, opts SearchOptions, sink ResultSink) (int, error) {
	query = norm.NFC.String(query)
	if query == "" {
		return 0, ErrEmptyQuery
	}

	d.mu.Lock()
	d.query = query
	d.options = opts
	count := d.pageCount
	d.mu.Unlock()
	d.progress.Store(0)

	m := newMatcher(query, opts)
	total := 0

	for page := 1; page <= count; page++ {
		if err := ctx.Err(); err != nil {
			return total, err
		}

		text, err := d.Page(page)
		if err != nil {
			return total, err
		}

		rects := m.findOnPage(layout(text))
		if len(rects) > 0 {
			if err := sink.InsertResults(page, rects); err != nil {
				return total, err
			}
			total += len(rects)
		}

		d.progress.Store(int32(page * 100 / count))
		if err := sink.UpdateProgress(); err != nil {
			return total, err
		}
	}

	d.logger.Debug("search finished", "path", d.path, "query", query, "matches", total)
	return total, nil
}

// =============================================================================
// Matching
// =============================================================================

type matcher struct {
	pattern []rune
	opts    SearchOptions
	caser   cases.Caser
}

func newMatcher(query string, opts SearchOptions) *matcher {
	m := &matcher{opts: opts, caser: cases.Fold()}
	m.pattern, _ = m.prepare([]rune(query))
	return m
}

// prepare returns the runes compared against the pattern and, for each of
// them, the index of the source rune it came from. Folding may expand one
// rune into several.
func (m *matcher) prepare(line []rune) ([]rune, []int) {
	if m.opts.MatchCase {
		origin := make([]int, len(line))
		for i := range origin {
			origin[i] = i
		}
		return line, origin
	}

	folded := make([]rune, 0, len(line))
	origin := make([]int, 0, len(line))
	for i, r := range line {
		if r < utf8.RuneSelf {
			folded = append(folded, unicode.ToLower(r))
			origin = append(origin, i)
			continue
		}
		for _, f := range m.caser.String(string(r)) {
			folded = append(folded, f)
			origin = append(origin, i)
		}
	}
	return folded, origin
}

func (m *matcher) findOnPage(l pageLayout) []results.Rect {
	var rects []results.Rect
	for i, line := range l.lines {
		for _, hit := range m.findInLine(line) {
			rects = append(rects, l.rect(i, hit[0], hit[1]))
		}
	}
	return rects
}

// findInLine returns the column and length, in runes of line, of every
// non-overlapping match.
func (m *matcher) findInLine(line []rune) [][2]int {
	n := len(m.pattern)
	if n == 0 || len(line) == 0 {
		return nil
	}

	text, origin := m.prepare(line)

	var hits [][2]int
	for i := 0; i+n <= len(text); i++ {
		if !slices.Equal(text[i:i+n], m.pattern) {
			continue
		}
		if i > 0 && origin[i] == origin[i-1] {
			continue
		}
		if i+n < len(text) && origin[i+n] == origin[i+n-1] {
			continue
		}

		start, end := origin[i], origin[i+n-1]+1
		if m.opts.WholeWords && !isWholeWord(line, start, end) {
			continue
		}

		hits = append(hits, [2]int{start, end - start})
		i += n - 1
	}
	return hits
}

func isWholeWord(line []rune, start, end int) bool {
	if start > 0 && isWordRune(line[start-1]) {
		return false
	}
	if end < len(line) && isWordRune(line[end]) {
		return false
	}
	return true
}

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
