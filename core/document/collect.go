package document

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"

	"github.com/gobwas/glob"
)

// DefaultMaxFileSize is the largest file Collect picks up from a directory.
const DefaultMaxFileSize int64 = 10 * 1024 * 1024

var ErrNoDocuments = errors.New("no documents found")

// skippedDirs are never descended into.
var skippedDirs = map[string]struct{}{
	".git":         {},
	"node_modules": {},
	"vendor":       {},
	".cache":       {},
	".idea":        {},
	".vscode":      {},
}

// CollectOptions selects the files Collect returns.
type CollectOptions struct {
	// Include patterns select files found in directories. Empty includes
	// every file.
	Include []string

	// Exclude patterns drop files and directories.
	Exclude []string

	// MaxFileSize skips larger files found in directories. Default: 10MB.
	MaxFileSize int64
}

// Collect expands paths into document files. Files named directly are
// always returned; directories are walked and filtered by the patterns.
// The result is sorted and free of duplicates.
func Collect(ctx context.Context, paths []string, opts CollectOptions) ([]string, error) {
	includes, err := compilePatterns(opts.Include)
	if err != nil {
		return nil, err
	}
	excludes, err := compilePatterns(opts.Exclude)
	if err != nil {
		return nil, err
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}

	c := &collector{
		includes: includes,
		excludes: excludes,
		maxSize:  opts.MaxFileSize,
		seen:     make(map[string]bool),
	}

	for _, path := range paths {
		if err := c.add(ctx, path); err != nil {
			return nil, err
		}
	}

	if len(c.files) == 0 {
		return nil, ErrNoDocuments
	}
	slices.Sort(c.files)
	return c.files, nil
}

type collector struct {
	includes []glob.Glob
	excludes []glob.Glob
	maxSize  int64
	seen     map[string]bool
	files    []string
}

func (c *collector) add(ctx context.Context, path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}

	info, err := os.Stat(abs)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrPathNotExist, path)
	}
	if err != nil {
		return err
	}

	if !info.IsDir() {
		c.keep(abs)
		return nil
	}

	return filepath.WalkDir(abs, func(p string, d fs.DirEntry, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if err != nil {
			if os.IsPermission(err) {
				return nil
			}
			return err
		}

		rel, relErr := filepath.Rel(abs, p)
		if relErr != nil {
			return nil
		}

		if d.IsDir() {
			if p == abs {
				return nil
			}
			if _, skip := skippedDirs[d.Name()]; skip || c.excluded(rel) {
				return fs.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() || c.excluded(rel) || !c.included(rel, d.Name()) {
			return nil
		}
		if fi, err := d.Info(); err != nil || fi.Size() > c.maxSize {
			return nil
		}

		c.keep(p)
		return nil
	})
}

func (c *collector) keep(path string) {
	if c.seen[path] {
		return
	}
	c.seen[path] = true
	c.files = append(c.files, path)
}

func (c *collector) excluded(rel string) bool {
	for _, pattern := range c.excludes {
		if matchesPattern(rel, pattern) {
			return true
		}
	}
	return false
}

func (c *collector) included(rel, name string) bool {
	if len(c.includes) == 0 {
		return true
	}
	for _, pattern := range c.includes {
		if pattern.Match(rel) || pattern.Match(name) {
			return true
		}
	}
	return false
}

// matchesPattern matches path, its base name, or any trailing run of its
// components against pattern.
func matchesPattern(path string, pattern glob.Glob) bool {
	path = filepath.ToSlash(path)
	if pattern.Match(path) || pattern.Match(filepath.Base(path)) {
		return true
	}

	for i := 0; i < len(path); i++ {
		if path[i] == '/' && pattern.Match(path[i+1:]) {
			return true
		}
	}
	return false
}
