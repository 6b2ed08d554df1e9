// Package document implements searchable plain-text documents.
//
// A document is a text file whose pages are separated by form feeds. Match
// rectangles are normalized line and column boxes within a page: a match of
// length k at column c of line l on a page with n lines and a longest line of
// w runes has X=c/w, Y=l/n, Width=k/w and Height=1/n.
package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/text/unicode/norm"

	"github.com/adalundhe/docsearch/core/search/results"
)

// DefaultSurroundingRunes is the context width on each side of a match.
const DefaultSurroundingRunes = 40

var (
	ErrPageOutOfRange = errors.New("page out of range")
	ErrRectOutOfRange = errors.New("rectangle does not address text on the page")
)

// Options configures a Document.
type Options struct {
	// Cache holds page text. When nil the document keeps its pages in memory.
	Cache *PageCache

	// SurroundingRunes is the context width on each side of a match.
	// Default: 40. Negative means no context.
	SurroundingRunes int

	Logger *slog.Logger
}

// Document is an open text file and its current search.
type Document struct {
	path        string
	title       string
	cache       *PageCache
	surrounding int
	logger      *slog.Logger

	mu        sync.RWMutex
	version   uint64
	pageCount int
	pinned    []string
	query     string
	options   SearchOptions

	progress atomic.Int32
}

// Open reads the file at path.
func Open(path string, opts Options) (*Document, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve %s: %w", path, err)
	}
	switch {
	case opts.SurroundingRunes == 0:
		opts.SurroundingRunes = DefaultSurroundingRunes
	case opts.SurroundingRunes < 0:
		opts.SurroundingRunes = 0
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	d := &Document{
		path:        abs,
		title:       filepath.Base(abs),
		cache:       opts.Cache,
		surrounding: opts.SurroundingRunes,
		logger:      opts.Logger,
	}
	if err := d.Reload(); err != nil {
		return nil, err
	}
	return d, nil
}

// Reload rereads the file. Pages cached for the previous contents are
// dropped.
func (d *Document) Reload() error {
	pages, err := readPages(d.path)
	if err != nil {
		return err
	}

	d.mu.Lock()
	oldVersion, oldCount := d.version, d.pageCount
	d.version++
	d.pageCount = len(pages)
	if d.cache == nil {
		d.pinned = pages
	} else {
		d.storeLocked(pages)
	}
	version := d.version
	d.mu.Unlock()

	if d.cache != nil && oldVersion > 0 {
		d.cache.Delete(d.path, oldVersion, oldCount)
	}

	d.logger.Debug("document loaded", "path", d.path, "pages", len(pages), "version", version)
	return nil
}

func (d *Document) storeLocked(pages []string) {
	for i, text := range pages {
		d.cache.Set(d.path, d.version, i+1, text)
	}
}

func readPages(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read document: %w", err)
	}
	return splitPages(norm.NFC.String(string(data))), nil
}

func splitPages(text string) []string {
	pages := strings.Split(text, "\f")
	if len(pages) > 1 && pages[len(pages)-1] == "" {
		pages = pages[:len(pages)-1]
	}
	return pages
}

// Path returns the absolute path of the document.
func (d *Document) Path() string {
	return d.path
}

// Title returns the file name of the document.
func (d *Document) Title() string {
	return d.title
}

// PageCount returns the number of pages.
func (d *Document) PageCount() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.pageCount
}

// Version increases with every Reload.
func (d *Document) Version() uint64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.version
}

// Page returns the normalized text of page, counting from 1.
func (d *Document) Page(page int) (string, error) {
	d.mu.RLock()
	version, count := d.version, d.pageCount
	if page < 1 || page > count {
		d.mu.RUnlock()
		return "", fmt.Errorf("%w: %d of %d", ErrPageOutOfRange, page, count)
	}
	if d.cache == nil {
		text := d.pinned[page-1]
		d.mu.RUnlock()
		return text, nil
	}
	d.mu.RUnlock()

	if text, ok := d.cache.Get(d.path, version, page); ok {
		return text, nil
	}

	pages, err := readPages(d.path)
	if err != nil {
		return "", err
	}
	if page > len(pages) {
		return "", fmt.Errorf("%w: %d of %d", ErrPageOutOfRange, page, len(pages))
	}

	d.mu.Lock()
	if d.version == version {
		d.storeLocked(pages)
	}
	d.mu.Unlock()

	return pages[page-1], nil
}

// =============================================================================
// Layout
// =============================================================================

type pageLayout struct {
	lines [][]rune
	width int
}

func layout(text string) pageLayout {
	raw := strings.Split(text, "\n")
	l := pageLayout{lines: make([][]rune, len(raw)), width: 1}
	for i, line := range raw {
		l.lines[i] = []rune(strings.TrimSuffix(line, "\r"))
		l.width = max(l.width, len(l.lines[i]))
	}
	return l
}

func (l pageLayout) rect(line, col, length int) results.Rect {
	w, n := float64(l.width), float64(len(l.lines))
	return results.Rect{
		X:      float64(col) / w,
		Y:      float64(line) / n,
		Width:  float64(length) / w,
		Height: 1 / n,
	}
}

func (l pageLayout) span(r results.Rect) (line, col, length int, ok bool) {
	w, n := float64(l.width), float64(len(l.lines))
	line = int(math.Round(r.Y * n))
	col = int(math.Round(r.X * w))
	length = int(math.Round(r.Width * w))

	if line < 0 || line >= len(l.lines) || col < 0 || length <= 0 {
		return 0, 0, 0, false
	}
	if col+length > len(l.lines[line]) {
		return 0, 0, 0, false
	}
	return line, col, length, true
}

// =============================================================================
// View
// =============================================================================

// SearchProgress returns the progress of the current search in percent.
func (d *Document) SearchProgress() int {
	return int(d.progress.Load())
}

// SearchText returns the query of the current search.
func (d *Document) SearchText() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.query
}

// SearchMatchCase reports whether the current search is case sensitive.
func (d *Document) SearchMatchCase() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.options.MatchCase
}

// SearchWholeWords reports whether the current search matches whole words.
func (d *Document) SearchWholeWords() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.options.WholeWords
}

// SearchContext returns the text under rect on page and the text around it.
func (d *Document) SearchContext(ctx context.Context, page int, rect results.Rect) (matched, surrounding string, err error) {
	if err := ctx.Err(); err != nil {
		return "", "", err
	}

	text, err := d.Page(page)
	if err != nil {
		return "", "", err
	}

	l := layout(text)
	line, col, length, ok := l.span(rect)
	if !ok {
		return "", "", fmt.Errorf("%w: page %d", ErrRectOutOfRange, page)
	}

	runes := l.lines[line]
	from := max(0, col-d.surrounding)
	to := min(len(runes), col+length+d.surrounding)

	return string(runes[col : col+length]), string(runes[from:to]), nil
}
