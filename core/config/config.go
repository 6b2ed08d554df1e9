package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gobwas/glob"
)

var ErrInvalidConfig = errors.New("invalid config")

type Config struct {
	Search   SearchConfig   `yaml:"search"`
	Document DocumentConfig `yaml:"document"`
	Log      LogConfig      `yaml:"log"`
}

type SearchConfig struct {
	MaxPendingFetches int           `yaml:"max_pending_fetches"`
	SnippetCacheCost  int64         `yaml:"snippet_cache_cost"`
	FetchTimeout      time.Duration `yaml:"fetch_timeout"`
	SurroundingRunes  int           `yaml:"surrounding_runes"`
}

type DocumentConfig struct {
	PageCacheCost int64         `yaml:"page_cache_cost"`
	WatchDebounce time.Duration `yaml:"watch_debounce"`
	Include       []string      `yaml:"include"`
	Exclude       []string      `yaml:"exclude"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func DefaultConfig() *Config {
	return &Config{
		Search: SearchConfig{
			MaxPendingFetches: 20,
			SnippetCacheCost:  1 << 16,
			FetchTimeout:      30 * time.Second,
			SurroundingRunes:  40,
		},
		Document: DocumentConfig{
			PageCacheCost: 16 << 20,
			WatchDebounce: 100 * time.Millisecond,
			Include:       []string{"*.txt", "*.md"},
			Exclude:       []string{".git/**"},
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Clone returns a deep copy of c.
func (c *Config) Clone() *Config {
	out := *c
	out.Document.Include = append([]string(nil), c.Document.Include...)
	out.Document.Exclude = append([]string(nil), c.Document.Exclude...)
	return &out
}

// Validate reports every problem of c, wrapped in ErrInvalidConfig.
func (c *Config) Validate() error {
	var errs []error

	if c.Search.MaxPendingFetches <= 0 {
		errs = append(errs, fmt.Errorf("search.max_pending_fetches must be positive, got %d", c.Search.MaxPendingFetches))
	}
	if c.Search.SnippetCacheCost <= 0 {
		errs = append(errs, fmt.Errorf("search.snippet_cache_cost must be positive, got %d", c.Search.SnippetCacheCost))
	}
	if c.Search.FetchTimeout < 0 {
		errs = append(errs, fmt.Errorf("search.fetch_timeout must not be negative, got %s", c.Search.FetchTimeout))
	}
	if c.Search.SurroundingRunes < 0 {
		errs = append(errs, fmt.Errorf("search.surrounding_runes must not be negative, got %d", c.Search.SurroundingRunes))
	}
	if c.Document.PageCacheCost <= 0 {
		errs = append(errs, fmt.Errorf("document.page_cache_cost must be positive, got %d", c.Document.PageCacheCost))
	}
	if c.Document.WatchDebounce < 0 {
		errs = append(errs, fmt.Errorf("document.watch_debounce must not be negative, got %s", c.Document.WatchDebounce))
	}
	errs = append(errs, validatePatterns("document.include", c.Document.Include)...)
	errs = append(errs, validatePatterns("document.exclude", c.Document.Exclude)...)

	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "warning", "error":
	default:
		errs = append(errs, fmt.Errorf("log.level %q is not one of debug, info, warn, error", c.Log.Level))
	}
	switch strings.ToLower(c.Log.Format) {
	case "text", "json":
	default:
		errs = append(errs, fmt.Errorf("log.format %q is not one of text, json", c.Log.Format))
	}

	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

func validatePatterns(field string, patterns []string) []error {
	var errs []error
	for _, p := range patterns {
		if _, err := glob.Compile(p, '/'); err != nil {
			errs = append(errs, fmt.Errorf("%s pattern %q: %w", field, p, err))
		}
	}
	return errs
}
