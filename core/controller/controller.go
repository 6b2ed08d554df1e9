// Package controller runs the search result model on a single goroutine.
//
// The results registry, the tree model and the table of open views are only
// touched by the controller loop. Callers reach them through Do, which runs a
// function on the loop and waits for it, or through the fire-and-forget
// mutations. Snippet fetches run on worker goroutines and report back by
// posting to the loop.
package controller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/adalundhe/docsearch/core/search/model"
	"github.com/adalundhe/docsearch/core/search/results"
	"github.com/adalundhe/docsearch/core/search/snippet"
)

var (
	ErrControllerClosed = errors.New("controller is closed")
	ErrUnknownView      = errors.New("unknown view")
	ErrNilView          = errors.New("view is nil")
)

// Config configures a Controller.
type Config struct {
	// MaxPendingFetches bounds outstanding snippet fetches. Default: 20.
	MaxPendingFetches int

	// SnippetCacheCost is the snippet cache budget. Default: 1<<16.
	SnippetCacheCost int64

	// FetchTimeout bounds a single snippet fetch. Zero disables the deadline.
	FetchTimeout time.Duration

	Logger *slog.Logger
}

// Controller owns the result model of one session.
type Controller struct {
	id     uuid.UUID
	logger *slog.Logger

	registry *results.Registry
	model    *model.Model
	fetcher  *snippet.Fetcher

	// views is owned by the loop.
	views    map[results.ViewID]model.View
	nextView atomic.Uint64

	queue     *taskQueue
	loopDone  chan struct{}
	closed    atomic.Bool
	closeOnce sync.Once
}

// New creates a Controller and starts its loop.
func New(cfg Config) *Controller {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	id := uuid.New()
	logger := cfg.Logger.With("session", id.String())

	c := &Controller{
		id:       id,
		logger:   logger,
		registry: results.NewRegistry(),
		views:    make(map[results.ViewID]model.View),
		queue:    newTaskQueue(),
		loopDone: make(chan struct{}),
	}

	c.fetcher = snippet.NewFetcher(snippet.FetcherConfig{
		MaxPending: cfg.MaxPendingFetches,
		CacheCost:  cfg.SnippetCacheCost,
		Timeout:    cfg.FetchTimeout,
		OnReady:    c.snippetReady,
		Logger:     logger,
	})

	c.model = model.New(model.Config{
		Registry: c.registry,
		Views:    model.ViewLookupFunc(c.lookupView),
		Snippets: c.fetcher,
		Logger:   logger,
	})

	go c.loop()
	return c
}

// ID returns the session identifier.
func (c *Controller) ID() uuid.UUID {
	return c.id
}

func (c *Controller) loop() {
	defer close(c.loopDone)
	for {
		task, ok := c.queue.pop()
		if !ok {
			return
		}
		c.run(task)
	}
}

func (c *Controller) run(task func()) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error("controller task panicked", "panic", r)
		}
	}()
	task()
}

// =============================================================================
// Loop access
// =============================================================================

// Do runs fn on the loop and waits for it to return. If ctx ends first Do
// returns ctx.Err(), and fn may still run later.
func (c *Controller) Do(ctx context.Context, fn func(m *model.Model)) error {
	if c.closed.Load() {
		return ErrControllerClosed
	}

	done := make(chan struct{})
	err := c.queue.push(func() {
		defer close(done)
		fn(c.model)
	})
	if err != nil {
		return err
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Post queues fn to run on the loop and returns immediately.
func (c *Controller) Post(fn func(m *model.Model)) error {
	if c.closed.Load() {
		return ErrControllerClosed
	}
	return c.queue.push(func() { fn(c.model) })
}

// snippetReady runs on a fetch worker.
func (c *Controller) snippetReady(view results.ViewID) {
	err := c.queue.push(func() { c.model.SnippetsReady(view) })
	if err != nil {
		c.logger.Debug("snippet notification dropped", "view", view, "error", err)
	}
}

// =============================================================================
// Views
// =============================================================================

// OpenView registers view and returns its handle. Handles are never reused.
func (c *Controller) OpenView(ctx context.Context, view model.View) (results.ViewID, error) {
	if view == nil {
		return results.InvalidView, ErrNilView
	}

	id := results.ViewID(c.nextView.Add(1))
	err := c.Do(ctx, func(*model.Model) {
		c.views[id] = view
	})
	if err != nil {
		return results.InvalidView, err
	}

	c.logger.Debug("view opened", "view", id, "title", view.Title())
	return id, nil
}

// CloseView clears the results of view and forgets it.
func (c *Controller) CloseView(ctx context.Context, id results.ViewID) error {
	var known bool
	err := c.Do(ctx, func(m *model.Model) {
		_, known = c.views[id]
		m.ClearResults(id, c.fetcher)
		delete(c.views, id)
	})
	if err != nil {
		return err
	}
	if !known {
		return ErrUnknownView
	}

	c.logger.Debug("view closed", "view", id)
	return nil
}

// lookupView runs on the loop.
func (c *Controller) lookupView(id results.ViewID) (model.View, bool) {
	view, ok := c.views[id]
	return view, ok
}

// =============================================================================
// Mutations and queries
// =============================================================================

// InsertResults queues the matches found on page of view. Batches of one
// view are applied in the order they were queued.
func (c *Controller) InsertResults(view results.ViewID, page int, rects []results.Rect) error {
	if len(rects) == 0 {
		return nil
	}
	batch := append([]results.Rect(nil), rects...)
	return c.Post(func(m *model.Model) {
		m.InsertResults(view, page, batch)
	})
}

// UpdateProgress queues a progress notification for view.
func (c *Controller) UpdateProgress(view results.ViewID) error {
	return c.Post(func(m *model.Model) {
		m.UpdateProgress(view)
	})
}

// ViewSink forwards the results of one running search to the controller.
type ViewSink struct {
	c    *Controller
	view results.ViewID
}

// Sink returns the ViewSink of view.
func (c *Controller) Sink(view results.ViewID) ViewSink {
	return ViewSink{c: c, view: view}
}

// InsertResults queues a batch of matches of the sink's view.
func (s ViewSink) InsertResults(page int, rects []results.Rect) error {
	return s.c.InsertResults(s.view, page, rects)
}

// UpdateProgress queues a progress notification for the sink's view.
func (s ViewSink) UpdateProgress() error {
	return s.c.UpdateProgress(s.view)
}

// ClearResults removes every match of view. When it returns no fetch for view
// is running and no snippet of view is cached.
func (c *Controller) ClearResults(ctx context.Context, view results.ViewID) error {
	return c.Do(ctx, func(m *model.Model) {
		m.ClearResults(view, c.fetcher)
	})
}

// FindResult returns the match to move to in dir, starting from current or,
// when current is not a match row of view, from page.
func (c *Controller) FindResult(ctx context.Context, view results.ViewID, current model.ModelIndex, page int, dir results.Direction) (model.ModelIndex, results.Match, error) {
	var (
		index model.ModelIndex
		match results.Match
	)
	err := c.Do(ctx, func(m *model.Model) {
		index = m.FindResult(view, current, page, dir)
		match, _ = m.MatchAt(index)
	})
	return index, match, err
}

// Subscribe registers o on the loop. Observer callbacks run on the loop.
func (c *Controller) Subscribe(ctx context.Context, o model.Observer) (unsubscribe func(), err error) {
	var cancel func()
	err = c.Do(ctx, func(m *model.Model) {
		cancel = m.Subscribe(o)
	})
	if err != nil {
		return nil, err
	}

	return func() {
		_ = c.Post(func(*model.Model) { cancel() })
	}, nil
}

// =============================================================================
// Introspection
// =============================================================================

// SnippetStats returns the snippet cache statistics.
func (c *Controller) SnippetStats() snippet.StatsSnapshot {
	return c.fetcher.Stats().ToSnapshot()
}

// SnippetCacheCost returns the current snippet cache cost and its budget.
func (c *Controller) SnippetCacheCost() (cost, capacity int64) {
	return c.fetcher.CacheCost()
}

// PendingFetches returns the number of outstanding snippet fetches.
func (c *Controller) PendingFetches() int {
	return c.fetcher.Pending()
}

// QueueLen returns the number of tasks waiting for the loop.
func (c *Controller) QueueLen() int {
	return c.queue.len()
}

// =============================================================================
// Shutdown
// =============================================================================

// Close stops accepting work, cancels and waits for every snippet fetch and
// drains the loop. It is safe to call more than once.
func (c *Controller) Close() error {
	c.closeOnce.Do(func() {
		c.closed.Store(true)
		c.fetcher.Close()
		c.queue.close()
		<-c.loopDone

		c.logger.Debug("controller closed",
			"tasks", c.queue.popped.Load(),
		)
	})
	return nil
}
