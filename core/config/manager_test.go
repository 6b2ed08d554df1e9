package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func testPaths(t *testing.T) Paths {
	t.Helper()
	dir := t.TempDir()
	return Paths{
		User:    filepath.Join(dir, "user", ConfigFileName),
		Project: filepath.Join(dir, ProjectFileName),
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Search.MaxPendingFetches != 20 {
		t.Errorf("MaxPendingFetches: got %d, want 20", cfg.Search.MaxPendingFetches)
	}
	if cfg.Search.SnippetCacheCost != 65536 {
		t.Errorf("SnippetCacheCost: got %d, want 65536", cfg.Search.SnippetCacheCost)
	}
	if cfg.Search.FetchTimeout != 30*time.Second {
		t.Errorf("FetchTimeout: got %v, want 30s", cfg.Search.FetchTimeout)
	}
	if cfg.Log.Level != "info" || cfg.Log.Format != "text" {
		t.Errorf("Log: got %+v, want info/text", cfg.Log)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaults should validate: %v", err)
	}
}

func TestManagerGet(t *testing.T) {
	m := NewManager(testPaths(t))

	cfg := m.Get()
	if cfg == nil {
		t.Fatal("Get() returned nil")
	}
	if cfg.Search.SurroundingRunes != 40 {
		t.Errorf("SurroundingRunes: got %d, want 40", cfg.Search.SurroundingRunes)
	}
}

func TestManagerLoadLayers(t *testing.T) {
	paths := testPaths(t)
	paths.Explicit = filepath.Join(filepath.Dir(paths.Project), "explicit.yaml")

	writeFile(t, paths.User, `
search:
  max_pending_fetches: 8
  fetch_timeout: 5s
log:
  level: debug
`)
	writeFile(t, paths.Project, `
search:
  max_pending_fetches: 12
document:
  include: ["*.log"]
`)
	writeFile(t, paths.Explicit, `
log:
  format: json
`)

	m := NewManager(paths)
	if err := m.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	cfg := m.Get()
	if cfg.Search.MaxPendingFetches != 12 {
		t.Errorf("MaxPendingFetches: got %d, want 12 (project beats user)", cfg.Search.MaxPendingFetches)
	}
	if cfg.Search.FetchTimeout != 5*time.Second {
		t.Errorf("FetchTimeout: got %v, want 5s", cfg.Search.FetchTimeout)
	}
	if len(cfg.Document.Include) != 1 || cfg.Document.Include[0] != "*.log" {
		t.Errorf("Include: got %v, want [*.log]", cfg.Document.Include)
	}
	if len(cfg.Document.Exclude) != 1 {
		t.Errorf("Exclude should retain default: got %v", cfg.Document.Exclude)
	}
	if cfg.Log.Level != "debug" || cfg.Log.Format != "json" {
		t.Errorf("Log: got %+v, want debug/json", cfg.Log)
	}
}

func TestManagerMissingExplicitFile(t *testing.T) {
	paths := testPaths(t)
	paths.Explicit = filepath.Join(t.TempDir(), "missing.yaml")

	m := NewManager(paths)
	err := m.Load()
	if !errors.Is(err, ErrConfigNotFound) {
		t.Errorf("Load: got %v, want ErrConfigNotFound", err)
	}
}

func TestManagerEnvironmentOverride(t *testing.T) {
	t.Setenv("DOCSEARCH_SEARCH_MAX_PENDING_FETCHES", "3")
	t.Setenv("DOCSEARCH_SEARCH_FETCH_TIMEOUT", "0s")
	t.Setenv("DOCSEARCH_DOCUMENT_EXCLUDE", "vendor/**, .git/**")
	t.Setenv("DOCSEARCH_LOG_LEVEL", "warn")

	m := NewManager(testPaths(t))
	if err := m.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	cfg := m.Get()
	if cfg.Search.MaxPendingFetches != 3 {
		t.Errorf("MaxPendingFetches: got %d, want 3", cfg.Search.MaxPendingFetches)
	}
	if cfg.Search.FetchTimeout != 0 {
		t.Errorf("FetchTimeout: got %v, want 0", cfg.Search.FetchTimeout)
	}
	if len(cfg.Document.Exclude) != 2 || cfg.Document.Exclude[0] != "vendor/**" {
		t.Errorf("Exclude: got %v", cfg.Document.Exclude)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Level: got %s, want warn", cfg.Log.Level)
	}
}

func TestManagerEnvironmentParseError(t *testing.T) {
	t.Setenv("DOCSEARCH_SEARCH_SNIPPET_CACHE_COST", "lots")

	m := NewManager(testPaths(t))
	if err := m.Load(); err == nil {
		t.Error("Load should fail on a malformed number")
	}
}

func TestManagerOverrides(t *testing.T) {
	t.Setenv("DOCSEARCH_LOG_LEVEL", "warn")

	m := NewManager(testPaths(t))
	m.SetOverrides(&Config{Log: LogConfig{Level: "error"}})
	if err := m.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if m.Get().Log.Level != "error" {
		t.Errorf("Level: got %s, want error (flags beat environment)", m.Get().Log.Level)
	}
}

func TestManagerInvalidConfigKeepsPrevious(t *testing.T) {
	paths := testPaths(t)
	writeFile(t, paths.Project, "search:\n  max_pending_fetches: 6\n")

	m := NewManager(paths)
	if err := m.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	writeFile(t, paths.Project, "log:\n  format: xml\n")
	err := m.Reload()
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("Reload: got %v, want ErrInvalidConfig", err)
	}
	if m.Get().Search.MaxPendingFetches != 6 {
		t.Errorf("previous config should stay current, got %d", m.Get().Search.MaxPendingFetches)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero pending", func(c *Config) { c.Search.MaxPendingFetches = 0 }},
		{"negative cost", func(c *Config) { c.Search.SnippetCacheCost = -1 }},
		{"negative timeout", func(c *Config) { c.Search.FetchTimeout = -time.Second }},
		{"zero page cache", func(c *Config) { c.Document.PageCacheCost = 0 }},
		{"bad pattern", func(c *Config) { c.Document.Include = []string{"[a-"} }},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate: got %v, want ErrInvalidConfig", err)
			}
		})
	}
}

func TestConfigClone(t *testing.T) {
	cfg := DefaultConfig()
	clone := cfg.Clone()
	clone.Document.Include[0] = "*.go"

	if cfg.Document.Include[0] != "*.txt" {
		t.Errorf("Clone shares Include with original")
	}
}

func TestManagerOnChange(t *testing.T) {
	m := NewManager(testPaths(t))

	var got *Config
	m.OnChange(func(cfg *Config) {
		got = cfg
	})

	if err := m.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if got != m.Get() {
		t.Error("OnChange callback should receive the new config")
	}
}

func TestManagerWatchReloads(t *testing.T) {
	paths := testPaths(t)
	writeFile(t, paths.Project, "search:\n  surrounding_runes: 10\n")

	m := NewManager(paths)
	if err := m.Load(); err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	changed := make(chan int, 4)
	m.OnChange(func(cfg *Config) { changed <- cfg.Search.SurroundingRunes })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- m.Watch(ctx) }()

	// Give the watcher time to register the directory.
	time.Sleep(50 * time.Millisecond)
	writeFile(t, paths.Project, "search:\n  surrounding_runes: 25\n")

	deadline := time.After(2 * time.Second)
	for {
		select {
		case n := <-changed:
			if n == 25 {
				if err := m.Close(); err != nil {
					t.Fatalf("Close failed: %v", err)
				}
				if err := <-done; err != nil {
					t.Errorf("Watch returned %v after Close", err)
				}
				return
			}
		case <-deadline:
			t.Fatal("config was not reloaded")
		}
	}
}

func TestManagerClose(t *testing.T) {
	m := NewManager(testPaths(t))

	if err := m.Close(); err != nil {
		t.Errorf("Close failed: %v", err)
	}
	if err := m.Close(); err != nil {
		t.Errorf("Double close should not fail: %v", err)
	}
}
