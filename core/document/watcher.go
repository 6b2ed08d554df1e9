package document

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/gobwas/glob"
)

// DefaultDebounce is the default quiet period before a change is reported.
const DefaultDebounce = 100 * time.Millisecond

var (
	ErrPathNotExist   = errors.New("path does not exist")
	ErrInvalidPattern = errors.New("invalid glob pattern")
	ErrWatcherStopped = errors.New("watcher is stopped")
)

// =============================================================================
// Events
// =============================================================================

// Operation is the kind of change seen on a watched document.
type Operation int

const (
	OpModify Operation = iota
	OpCreate
	OpDelete
	OpRename
)

func (op Operation) String() string {
	switch op {
	case OpCreate:
		return "create"
	case OpModify:
		return "modify"
	case OpDelete:
		return "delete"
	case OpRename:
		return "rename"
	default:
		return "unknown"
	}
}

// ChangeEvent reports that a watched document changed on disk.
type ChangeEvent struct {
	Path      string
	Operation Operation
	Time      time.Time
}

var opMappings = []struct {
	fsOp fsnotify.Op
	op   Operation
}{
	{fsnotify.Create, OpCreate},
	{fsnotify.Write, OpModify},
	{fsnotify.Remove, OpDelete},
	{fsnotify.Rename, OpRename},
}

func mapOperation(op fsnotify.Op) (Operation, bool) {
	for _, m := range opMappings {
		if op.Has(m.fsOp) {
			return m.op, true
		}
	}
	return OpModify, false
}

// =============================================================================
// Watcher
// =============================================================================

// WatchConfig configures a Watcher.
type WatchConfig struct {
	// Debounce is the quiet period per path before a change is reported.
	// Default: 100ms.
	Debounce time.Duration

	// ExcludePatterns are glob patterns for paths that are never reported.
	ExcludePatterns []string

	Logger *slog.Logger
}

type pendingChange struct {
	event ChangeEvent
	timer *time.Timer
}

// Watcher reports changes to a set of open documents. Only the directories
// holding those documents are watched, without recursion.
type Watcher struct {
	config   WatchConfig
	watcher  *fsnotify.Watcher
	excludes []glob.Glob
	logger   *slog.Logger

	mu       sync.Mutex
	files    map[string]bool
	dirs     map[string]int
	pending  map[string]*pendingChange
	events   chan ChangeEvent
	started  bool
	stopped  bool
	stopOnce sync.Once
}

// NewWatcher creates a Watcher. Patterns that do not compile are reported
// together.
func NewWatcher(config WatchConfig) (*Watcher, error) {
	if config.Debounce <= 0 {
		config.Debounce = DefaultDebounce
	}
	if config.Logger == nil {
		config.Logger = slog.Default()
	}

	excludes, err := compilePatterns(config.ExcludePatterns)
	if err != nil {
		return nil, err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	return &Watcher{
		config:   config,
		watcher:  fw,
		excludes: excludes,
		logger:   config.Logger,
		files:    make(map[string]bool),
		dirs:     make(map[string]int),
		pending:  make(map[string]*pendingChange),
		events:   make(chan ChangeEvent, 64),
	}, nil
}

func compilePatterns(patterns []string) ([]glob.Glob, error) {
	var (
		out  []glob.Glob
		errs []error
	)
	for _, pattern := range patterns {
		g, err := glob.Compile(pattern, '/')
		if err != nil {
			errs = append(errs, fmt.Errorf("%q: %w", pattern, err))
			continue
		}
		out = append(out, g)
	}
	if len(errs) > 0 {
		return nil, errors.Join(append([]error{ErrInvalidPattern}, errs...)...)
	}
	return out, nil
}

// Add starts reporting changes to the file at path.
func (w *Watcher) Add(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(abs); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrPathNotExist, path)
		}
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return ErrWatcherStopped
	}
	if w.files[abs] {
		return nil
	}

	dir := filepath.Dir(abs)
	if w.dirs[dir] == 0 {
		if err := w.watcher.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	w.dirs[dir]++
	w.files[abs] = true
	return nil
}

// Remove stops reporting changes to the file at path.
func (w *Watcher) Remove(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.files[abs] {
		return nil
	}
	delete(w.files, abs)

	dir := filepath.Dir(abs)
	w.dirs[dir]--
	if w.dirs[dir] > 0 {
		return nil
	}
	delete(w.dirs, dir)
	if w.stopped {
		return nil
	}
	return w.watcher.Remove(dir)
}

// Start begins reporting changes. The returned channel is closed when ctx
// ends or Stop is called.
func (w *Watcher) Start(ctx context.Context) (<-chan ChangeEvent, error) {
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		return nil, ErrWatcherStopped
	}
	if w.started {
		w.mu.Unlock()
		return w.events, nil
	}
	w.started = true
	w.mu.Unlock()

	go w.processEvents(ctx)
	return w.events, nil
}

func (w *Watcher) processEvents(ctx context.Context) {
	defer w.cleanup()

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			w.handle(event)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("document watcher error", "error", err)
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	path := filepath.Clean(event.Name)
	op, ok := mapOperation(event.Op)
	if !ok || w.isExcluded(path) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped || !w.files[path] {
		return
	}

	change := ChangeEvent{Path: path, Operation: op, Time: time.Now()}
	if existing, ok := w.pending[path]; ok {
		existing.timer.Stop()
		existing.event = change
		existing.timer = w.debounce(path)
		return
	}
	w.pending[path] = &pendingChange{event: change, timer: w.debounce(path)}
}

func (w *Watcher) debounce(path string) *time.Timer {
	return time.AfterFunc(w.config.Debounce, func() {
		w.emit(path)
	})
}

func (w *Watcher) emit(path string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.stopped {
		return
	}

	p, ok := w.pending[path]
	if !ok {
		return
	}
	delete(w.pending, path)

	select {
	case w.events <- p.event:
	default:
		w.logger.Warn("document change dropped", "path", path)
	}
}

func (w *Watcher) isExcluded(path string) bool {
	for _, pattern := range w.excludes {
		if matchesPattern(path, pattern) {
			return true
		}
	}
	return false
}

// Stop stops the watcher. It is safe to call more than once.
func (w *Watcher) Stop() error {
	var err error
	w.stopOnce.Do(func() {
		w.mu.Lock()
		started := w.started
		w.stopPendingLocked()
		w.mu.Unlock()

		err = w.watcher.Close()
		if !started {
			close(w.events)
		}
	})
	return err
}

func (w *Watcher) stopPendingLocked() {
	w.stopped = true
	for _, p := range w.pending {
		p.timer.Stop()
	}
	w.pending = make(map[string]*pendingChange)
}

func (w *Watcher) cleanup() {
	w.mu.Lock()
	if !w.stopped {
		w.stopPendingLocked()
	}
	w.mu.Unlock()

	close(w.events)
}
