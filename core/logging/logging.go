// Package logging builds the process logger from config.LogConfig.
package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/adalundhe/docsearch/core/config"
)

var (
	ErrUnknownLevel  = errors.New("unknown log level")
	ErrUnknownFormat = errors.New("unknown log format")
)

// ParseLevel maps a config level name to a slog level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return slog.LevelInfo, fmt.Errorf("%w: %q", ErrUnknownLevel, name)
}

// Logger writes to w in the configured format. Its level can be changed
// after construction through SetLevel, so a config reload takes effect
// without replacing loggers already handed out.
type Logger struct {
	*slog.Logger
	level *slog.LevelVar
}

// New builds a Logger from cfg.
func New(w io.Writer, cfg config.LogConfig) (*Logger, error) {
	level, err := ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}

	lv := &slog.LevelVar{}
	lv.Set(level)
	opts := &slog.HandlerOptions{Level: lv}

	var handler slog.Handler
	switch strings.ToLower(strings.TrimSpace(cfg.Format)) {
	case "", "text":
		handler = slog.NewTextHandler(w, opts)
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, cfg.Format)
	}

	return &Logger{Logger: slog.New(handler), level: lv}, nil
}

// SetLevel changes the minimum level. Unknown names leave it unchanged.
func (l *Logger) SetLevel(name string) error {
	level, err := ParseLevel(name)
	if err != nil {
		return err
	}
	l.level.Set(level)
	return nil
}

// Level returns the current minimum level.
func (l *Logger) Level() slog.Level {
	return l.level.Level()
}

// Install builds a Logger from cfg, makes it the slog default and keeps its
// level in sync with later config changes published by m.
func Install(w io.Writer, m *config.Manager) (*Logger, error) {
	logger, err := New(w, m.Get().Log)
	if err != nil {
		return nil, err
	}

	slog.SetDefault(logger.Logger)
	m.SetLogger(logger.Logger)
	m.OnChange(func(cfg *config.Config) {
		if err := logger.SetLevel(cfg.Log.Level); err != nil {
			logger.Warn("log level not changed", "error", err)
		}
	})
	return logger, nil
}
