package config

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

const (
	AppName         = "docsearch"
	EnvPrefix       = "DOCSEARCH_"
	ConfigFileName  = "config.yaml"
	ProjectFileName = ".docsearch.yaml"
)

var ErrConfigNotFound = errors.New("config file not found")

// Paths lists the config files a Manager reads, lowest precedence first.
// Missing User and Project files are skipped; a missing Explicit file is an
// error.
type Paths struct {
	User     string
	Project  string
	Explicit string
}

// DefaultPaths resolves the user config under the OS config directory
// ($XDG_CONFIG_HOME on Linux) and the project config in the working
// directory.
func DefaultPaths(explicit string) Paths {
	var user string
	if dir, err := os.UserConfigDir(); err == nil {
		user = filepath.Join(dir, AppName, ConfigFileName)
	}
	return Paths{
		User:     user,
		Project:  ProjectFileName,
		Explicit: explicit,
	}
}

func (p Paths) files() []string {
	var out []string
	for _, path := range []string{p.User, p.Project, p.Explicit} {
		if path != "" {
			out = append(out, path)
		}
	}
	return out
}

type Manager struct {
	current   atomic.Pointer[Config]
	paths     Paths
	overrides *Config
	logger    *slog.Logger

	watchers  []func(*Config)
	watcherMu sync.RWMutex
	stopWatch chan struct{}
	watchOnce sync.Once
}

func NewManager(paths Paths) *Manager {
	m := &Manager{
		paths:     paths,
		logger:    slog.Default(),
		stopWatch: make(chan struct{}),
	}
	m.current.Store(DefaultConfig())
	return m
}

// SetLogger sets the logger used for reload reports.
func (m *Manager) SetLogger(logger *slog.Logger) {
	if logger != nil {
		m.logger = logger
	}
}

// SetOverrides registers values applied after every other source, such as
// command line flags. Only non-zero fields of overrides take effect.
func (m *Manager) SetOverrides(overrides *Config) {
	m.overrides = overrides
}

func (m *Manager) Get() *Config {
	return m.current.Load()
}

// Load rebuilds the config from defaults, the user file, the project file,
// the explicit file, the environment and the overrides, in that order. The
// new config replaces the current one only when it validates.
func (m *Manager) Load() error {
	cfg := DefaultConfig()

	if err := m.loadYAMLFile(m.paths.User, cfg, false); err != nil {
		return fmt.Errorf("user config: %w", err)
	}
	if err := m.loadYAMLFile(m.paths.Project, cfg, false); err != nil {
		return fmt.Errorf("project config: %w", err)
	}
	if err := m.loadYAMLFile(m.paths.Explicit, cfg, true); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if err := applyEnvironment(cfg); err != nil {
		return fmt.Errorf("environment: %w", err)
	}
	if m.overrides != nil {
		DeepMerge(cfg, m.overrides)
	}

	if err := cfg.Validate(); err != nil {
		return err
	}

	m.current.Store(cfg)
	m.notifyWatchers(cfg)
	return nil
}

func (m *Manager) loadYAMLFile(path string, cfg *Config, required bool) error {
	if path == "" {
		return nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		if required {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return nil
	}
	if err != nil {
		return err
	}

	layer := &Config{}
	if err := yaml.Unmarshal(data, layer); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	DeepMerge(cfg, layer)
	return nil
}

func applyEnvironment(cfg *Config) error {
	var errs []error

	envInt(&errs, "SEARCH_MAX_PENDING_FETCHES", &cfg.Search.MaxPendingFetches)
	envInt64(&errs, "SEARCH_SNIPPET_CACHE_COST", &cfg.Search.SnippetCacheCost)
	envDuration(&errs, "SEARCH_FETCH_TIMEOUT", &cfg.Search.FetchTimeout)
	envInt(&errs, "SEARCH_SURROUNDING_RUNES", &cfg.Search.SurroundingRunes)
	envInt64(&errs, "DOCUMENT_PAGE_CACHE_COST", &cfg.Document.PageCacheCost)
	envDuration(&errs, "DOCUMENT_WATCH_DEBOUNCE", &cfg.Document.WatchDebounce)
	envList("DOCUMENT_INCLUDE", &cfg.Document.Include)
	envList("DOCUMENT_EXCLUDE", &cfg.Document.Exclude)

	if v := os.Getenv(EnvPrefix + "LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv(EnvPrefix + "LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}

	return errors.Join(errs...)
}

func envInt(errs *[]error, name string, dst *int) {
	v := os.Getenv(EnvPrefix + name)
	if v == "" {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
		return
	}
	*dst = n
}

func envInt64(errs *[]error, name string, dst *int64) {
	v := os.Getenv(EnvPrefix + name)
	if v == "" {
		return
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
		return
	}
	*dst = n
}

func envDuration(errs *[]error, name string, dst *time.Duration) {
	v := os.Getenv(EnvPrefix + name)
	if v == "" {
		return
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		*errs = append(*errs, fmt.Errorf("%s%s: %w", EnvPrefix, name, err))
		return
	}
	*dst = d
}

func envList(name string, dst *[]string) {
	v := os.Getenv(EnvPrefix + name)
	if v == "" {
		return
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*dst = out
}

func (m *Manager) OnChange(fn func(*Config)) {
	m.watcherMu.Lock()
	m.watchers = append(m.watchers, fn)
	m.watcherMu.Unlock()
}

func (m *Manager) notifyWatchers(cfg *Config) {
	m.watcherMu.RLock()
	watchers := m.watchers
	m.watcherMu.RUnlock()

	for _, fn := range watchers {
		fn(cfg)
	}
}

func (m *Manager) Reload() error {
	return m.Load()
}

// Watch reloads the config whenever one of its files is written, until ctx
// ends or the Manager is closed. A reload that fails keeps the previous
// config.
func (m *Manager) Watch(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create config watcher: %w", err)
	}
	defer watcher.Close()

	files := make(map[string]bool)
	dirs := make(map[string]bool)
	for _, path := range m.paths.files() {
		abs, err := filepath.Abs(path)
		if err != nil {
			continue
		}
		files[abs] = true
		dir := filepath.Dir(abs)
		if dirs[dir] {
			continue
		}
		if err := watcher.Add(dir); err == nil {
			dirs[dir] = true
		}
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-m.stopWatch:
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !files[filepath.Clean(event.Name)] {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Remove) {
				continue
			}
			if err := m.Reload(); err != nil {
				m.logger.Warn("config reload failed", "path", event.Name, "error", err)
				continue
			}
			m.logger.Info("config reloaded", "path", event.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			m.logger.Warn("config watcher error", "error", err)
		}
	}
}

func (m *Manager) Close() error {
	m.watchOnce.Do(func() {
		close(m.stopWatch)
	})
	return nil
}
