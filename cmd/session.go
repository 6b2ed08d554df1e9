package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/adalundhe/docsearch/core/config"
	"github.com/adalundhe/docsearch/core/controller"
	"github.com/adalundhe/docsearch/core/document"
	"github.com/adalundhe/docsearch/core/search/model"
	"github.com/adalundhe/docsearch/core/search/results"
)

// DefaultSnippetWait bounds how long the tree snapshot waits for snippets
// when the config has no fetch timeout.
const DefaultSnippetWait = 10 * time.Second

const snippetPollInterval = 50 * time.Millisecond

// openDocument is a document together with its controller handle.
type openDocument struct {
	doc *document.Document
	id  results.ViewID
}

// session is one CLI run: the controller, the page cache and the documents
// registered with it.
type session struct {
	cfg    *config.Config
	ctrl   *controller.Controller
	cache  *document.PageCache
	logger *slog.Logger

	docs   []openDocument
	byID   map[results.ViewID]*document.Document
	byPath map[string]openDocument
}

// newSession collects the documents under paths, opens them and registers
// each one as a view.
func newSession(ctx context.Context, cfg *config.Config, paths []string) (*session, error) {
	logger := slog.Default()

	files, err := document.Collect(ctx, paths, document.CollectOptions{
		Include: cfg.Document.Include,
		Exclude: cfg.Document.Exclude,
	})
	if err != nil {
		return nil, err
	}

	cache, err := document.NewPageCache(cfg.Document.PageCacheCost)
	if err != nil {
		return nil, err
	}

	s := &session{
		cfg:   cfg,
		cache: cache,
		ctrl: controller.New(controller.Config{
			MaxPendingFetches: cfg.Search.MaxPendingFetches,
			SnippetCacheCost:  cfg.Search.SnippetCacheCost,
			FetchTimeout:      cfg.Search.FetchTimeout,
			Logger:            logger,
		}),
		logger: logger,
		byID:   make(map[results.ViewID]*document.Document, len(files)),
		byPath: make(map[string]openDocument, len(files)),
	}

	// Zero in the config means no context, which Options spells as negative.
	surrounding := cfg.Search.SurroundingRunes
	if surrounding == 0 {
		surrounding = -1
	}

	for _, path := range files {
		doc, err := document.Open(path, document.Options{
			Cache:            cache,
			SurroundingRunes: surrounding,
			Logger:           logger,
		})
		if err != nil {
			s.Close()
			return nil, err
		}

		id, err := s.ctrl.OpenView(ctx, doc)
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("open view for %s: %w", path, err)
		}

		od := openDocument{doc: doc, id: id}
		s.docs = append(s.docs, od)
		s.byID[id] = doc
		s.byPath[doc.Path()] = od
	}

	logger.Debug("session opened", "session", s.ctrl.ID().String(), "documents", len(s.docs))
	return s, nil
}

// search runs query over every document concurrently. Results reach the
// controller through each view's sink.
func (s *session) search(ctx context.Context, query string, opts document.SearchOptions) (int, error) {
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))

	var total atomic.Int64
	for _, od := range s.docs {
		od := od
		g.Go(func() error {
			n, err := od.doc.Search(ctx, query, opts, s.ctrl.Sink(od.id))
			total.Add(int64(n))
			if err != nil {
				return fmt.Errorf("search %s: %w", od.doc.Path(), err)
			}
			return nil
		})
	}

	err := g.Wait()
	return int(total.Load()), err
}

// refresh clears the results of od, rereads its file and searches it again.
func (s *session) refresh(ctx context.Context, od openDocument, query string, opts document.SearchOptions) (int, error) {
	if err := s.ctrl.ClearResults(ctx, od.id); err != nil {
		return 0, err
	}
	if err := od.doc.Reload(); err != nil {
		return 0, err
	}
	return od.doc.Search(ctx, query, opts, s.ctrl.Sink(od.id))
}

// =============================================================================
// Tree snapshot
// =============================================================================

type matchKey struct {
	view results.ViewID
	row  int
}

type snippetText struct {
	matched     string
	surrounding string
}

// snapshot reads the result tree. With snippets it keeps reading until every
// match row has its text or wait has passed, and then returns what it has.
func (s *session) snapshot(ctx context.Context, withSnippets bool, wait time.Duration) ([]viewOutput, error) {
	ready := make(chan struct{}, 1)
	if withSnippets {
		unsubscribe, err := s.ctrl.Subscribe(ctx, model.ObserverFuncs{
			OnDataChanged: func(model.ModelIndex, model.ModelIndex) {
				select {
				case ready <- struct{}{}:
				default:
				}
			},
		})
		if err != nil {
			return nil, err
		}
		defer unsubscribe()
	}

	deadline := time.NewTimer(wait)
	defer deadline.Stop()
	ticker := time.NewTicker(snippetPollInterval)
	defer ticker.Stop()

	texts := make(map[matchKey]snippetText)
	for {
		var (
			tree    []viewOutput
			missing int
		)
		err := s.ctrl.Do(ctx, func(m *model.Model) {
			tree, missing = s.readTree(m, withSnippets, texts)
		})
		if err != nil {
			return nil, err
		}
		if missing == 0 {
			return tree, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			s.logger.Debug("snippets incomplete", "missing", missing)
			return tree, nil
		case <-ready:
		case <-ticker.C:
		}
	}
}

// readTree runs on the controller loop. Snippets already seen are kept in
// texts so that cache evictions between rounds do not lose them.
func (s *session) readTree(m *model.Model, withSnippets bool, texts map[matchKey]snippetText) ([]viewOutput, int) {
	var root model.ModelIndex
	tree := make([]viewOutput, 0, m.RowCount(root))
	missing := 0

	for row := 0; row < m.RowCount(root); row++ {
		parent := m.Index(row, 0, root)
		id, _ := m.ViewForIndex(parent)

		out := viewOutput{View: uint64(id)}
		out.Title, _ = m.Data(parent, model.DisplayRole).(string)
		out.Count, _ = m.Data(parent, model.CountRole).(int)
		if doc, ok := s.byID[id]; ok {
			out.Path = doc.Path()
		}

		for i := 0; i < m.RowCount(parent); i++ {
			index := m.Index(i, 0, parent)
			match, ok := m.MatchAt(index)
			if !ok {
				continue
			}
			mo := matchOutput{Page: match.Page, Rect: match.Rect}

			if withSnippets {
				key := matchKey{view: id, row: i}
				text, ok := texts[key]
				if !ok {
					text.matched, _ = m.Data(index, model.MatchedTextRole).(string)
					text.surrounding, _ = m.Data(index, model.SurroundingTextRole).(string)
					if text.matched != "" {
						texts[key] = text
					} else {
						missing++
					}
				}
				mo.Text = text.matched
				mo.Context = text.surrounding
			}

			out.Matches = append(out.Matches, mo)
		}

		tree = append(tree, out)
	}

	return tree, missing
}

// snippetWait is the snapshot deadline derived from the fetch timeout.
func (s *session) snippetWait() time.Duration {
	if s.cfg.Search.FetchTimeout > 0 {
		return s.cfg.Search.FetchTimeout
	}
	return DefaultSnippetWait
}

// stats gathers the cache counters of the session.
func (s *session) stats() *statsOutput {
	cost, capacity := s.ctrl.SnippetCacheCost()
	return &statsOutput{
		Snippets:     s.ctrl.SnippetStats(),
		SnippetCost:  cost,
		SnippetLimit: capacity,
		Pages:        s.cache.Stats(),
	}
}

func (s *session) Close() {
	if err := s.ctrl.Close(); err != nil {
		s.logger.Warn("close controller", "error", err)
	}
	s.cache.Close()
}
