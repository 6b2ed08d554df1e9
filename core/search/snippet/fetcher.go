package snippet

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/adalundhe/docsearch/core/search/results"
)

// ContextSource extracts the text of a match and of its surroundings. It is
// only ever called from background jobs.
type ContextSource interface {
	SearchContext(ctx context.Context, page int, rect results.Rect) (matched, surrounding string, err error)
}

// ContextSourceFunc adapts a function to ContextSource.
type ContextSourceFunc func(ctx context.Context, page int, rect results.Rect) (string, string, error)

// SearchContext calls f.
func (f ContextSourceFunc) SearchContext(ctx context.Context, page int, rect results.Rect) (string, string, error) {
	return f(ctx, page, rect)
}

// FetcherConfig configures a Fetcher.
type FetcherConfig struct {
	// MaxPending bounds the number of outstanding fetches across all views.
	// Default: 20.
	MaxPending int

	// CacheCost is the cost budget of the snippet cache. Default: 1<<16.
	CacheCost int64

	// Timeout bounds a single fetch. Zero means no deadline.
	Timeout time.Duration

	// OnReady is called, from a worker goroutine and outside the Fetcher's
	// lock, after a snippet of view was stored in the cache.
	OnReady func(view results.ViewID)

	Logger *slog.Logger
}

// Fetcher looks snippets up in its cache and resolves misses in the
// background. Its mutex is the only synchronization point for the cache and
// the set of pending fetches, so cache contents and pending membership change
// atomically with respect to completions and cancellations.
type Fetcher struct {
	mu         sync.Mutex
	cache      *Cache
	pending    map[Key]*Job
	maxPending int

	pool    *Pool
	onReady func(view results.ViewID)
	logger  *slog.Logger
}

// NewFetcher creates a Fetcher.
func NewFetcher(cfg FetcherConfig) *Fetcher {
	if cfg.MaxPending <= 0 {
		cfg.MaxPending = DefaultMaxJobs
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Fetcher{
		cache:      NewCache(cfg.CacheCost),
		pending:    make(map[Key]*Job),
		maxPending: cfg.MaxPending,
		pool: NewPool(PoolConfig{
			MaxJobs: cfg.MaxPending,
			Timeout: cfg.Timeout,
			Logger:  cfg.Logger,
		}),
		onReady: cfg.OnReady,
		logger:  cfg.Logger,
	}
}

// SetOnReady replaces the completion callback.
func (f *Fetcher) SetOnReady(fn func(view results.ViewID)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.onReady = fn
}

// MatchedText returns the cached matched text of match, or "" and false while
// it is not available yet.
func (f *Fetcher) MatchedText(view results.ViewID, src ContextSource, match results.Match) (string, bool) {
	entry, ok := f.Lookup(view, src, match)
	return entry.MatchedText, ok
}

// SurroundingText returns the cached surrounding text of match, or "" and
// false while it is not available yet.
func (f *Fetcher) SurroundingText(view results.ViewID, src ContextSource, match results.Match) (string, bool) {
	entry, ok := f.Lookup(view, src, match)
	return entry.SurroundingText, ok
}

// Lookup returns the cached snippet of match. On a miss it starts a
// background fetch through src, unless that fetch is already pending or the
// pending limit is reached, and returns immediately with false.
func (f *Fetcher) Lookup(view results.ViewID, src ContextSource, match results.Match) (Entry, bool) {
	key := Key{View: view, Match: match}

	f.mu.Lock()
	defer f.mu.Unlock()

	if entry, ok := f.cache.Get(key); ok {
		return entry, true
	}

	if src == nil || len(f.pending) >= f.maxPending {
		return Entry{}, false
	}
	if _, ok := f.pending[key]; ok {
		return Entry{}, false
	}

	f.startLocked(key, src)
	return Entry{}, false
}

func (f *Fetcher) startLocked(key Key, src ContextSource) {
	var entry Entry

	fetch := func(ctx context.Context) error {
		matched, surrounding, err := src.SearchContext(ctx, key.Match.Page, key.Match.Rect)
		if err != nil {
			return err
		}
		entry = Entry{MatchedText: matched, SurroundingText: surrounding}
		return nil
	}

	job, err := f.pool.Submit(fetch, func(job *Job) {
		f.complete(key, job, entry)
	})
	if err != nil {
		if !errors.Is(err, ErrPoolFull) {
			f.logger.Debug("snippet fetch not started", "view", key.View, "page", key.Match.Page, "error", err)
		}
		return
	}

	f.pending[key] = job
}

// complete runs on the job goroutine once the fetch has returned.
func (f *Fetcher) complete(key Key, job *Job, entry Entry) {
	f.mu.Lock()

	if f.pending[key] == job {
		delete(f.pending, key)
	}

	if job.Canceled() || job.err != nil || entry.IsEmpty() {
		f.mu.Unlock()
		if job.err != nil && !job.Canceled() {
			f.logger.Debug("snippet fetch failed", "view", key.View, "page", key.Match.Page, "job_id", job.ID(), "error", job.err)
		}
		return
	}

	stored := f.cache.Add(key, entry)
	onReady := f.onReady
	f.mu.Unlock()

	if stored && onReady != nil {
		onReady(key.View)
	}
}

// CancelView cancels every pending fetch of view, waits until each of them
// has finished and drops all cached snippets of view. Once it returns no
// snippet of view can reach the cache anymore.
func (f *Fetcher) CancelView(view results.ViewID) {
	f.mu.Lock()
	var jobs []*Job
	for key, job := range f.pending {
		if key.View != view {
			continue
		}
		job.Cancel()
		jobs = append(jobs, job)
		delete(f.pending, key)
	}
	purged := f.cache.RemoveView(view)
	f.mu.Unlock()

	for _, job := range jobs {
		_ = job.Wait()
	}

	if len(jobs) > 0 || purged > 0 {
		f.logger.Debug("snippets cleared", "view", view, "canceled", len(jobs), "purged", purged)
	}
}

// Pending returns the number of outstanding fetches.
func (f *Fetcher) Pending() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pending)
}

// IsPending reports whether a fetch for match of view is outstanding.
func (f *Fetcher) IsPending(view results.ViewID, match results.Match) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.pending[Key{View: view, Match: match}]
	return ok
}

// Cached returns the cached snippet of match without starting a fetch and
// without touching recency.
func (f *Fetcher) Cached(view results.ViewID, match results.Match) (Entry, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := Key{View: view, Match: match}
	if !f.cache.Contains(key) {
		return Entry{}, false
	}
	item, _ := f.cache.lru.Peek(key)
	return item.entry, true
}

// CacheCost returns the current total cost of cached snippets and the budget.
func (f *Fetcher) CacheCost() (cost, capacity int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cache.Cost(), f.cache.Capacity()
}

// Stats returns a snapshot of the cache statistics.
func (f *Fetcher) Stats() *CacheStats {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cache.Stats()
}

// Close cancels and waits for every outstanding fetch, then empties the cache.
func (f *Fetcher) Close() {
	f.mu.Lock()
	for key, job := range f.pending {
		job.Cancel()
		delete(f.pending, key)
	}
	f.mu.Unlock()

	f.pool.Close()

	f.mu.Lock()
	f.cache.Purge()
	f.mu.Unlock()
}
