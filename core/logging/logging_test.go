package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/adalundhe/docsearch/core/config"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		name string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseLevel(tt.name)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := ParseLevel("loud")
	assert.ErrorIs(t, err, ErrUnknownLevel)
}

func TestNew_TextFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, config.LogConfig{Level: "warn", Format: "text"})
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", "view", 3)

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "msg=shown")
	assert.Contains(t, out, "view=3")
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, config.LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)

	logger.Info("opened", "page", 7)

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "opened", record["msg"])
	assert.Equal(t, float64(7), record["page"])
}

func TestNew_UnknownFormat(t *testing.T) {
	_, err := New(&bytes.Buffer{}, config.LogConfig{Format: "xml"})
	assert.ErrorIs(t, err, ErrUnknownFormat)
}

func TestLogger_SetLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, config.LogConfig{Level: "error"})
	require.NoError(t, err)

	logger.Debug("before")
	require.NoError(t, logger.SetLevel("debug"))
	logger.Debug("after")

	assert.Equal(t, slog.LevelDebug, logger.Level())
	assert.NotContains(t, buf.String(), "before")
	assert.Contains(t, buf.String(), "after")

	assert.Error(t, logger.SetLevel("nope"))
	assert.Equal(t, slog.LevelDebug, logger.Level())
}

func TestInstall_FollowsConfigChanges(t *testing.T) {
	previous := slog.Default()
	t.Cleanup(func() { slog.SetDefault(previous) })

	dir := t.TempDir()
	m := config.NewManager(config.Paths{Project: filepath.Join(dir, "missing.yaml")})

	var buf bytes.Buffer
	logger, err := Install(&buf, m)
	require.NoError(t, err)
	assert.Equal(t, slog.LevelInfo, logger.Level())

	m.SetOverrides(&config.Config{Log: config.LogConfig{Level: "debug"}})
	require.NoError(t, m.Load())
	assert.Equal(t, slog.LevelDebug, logger.Level())

	slog.Debug("through default")
	assert.True(t, strings.Contains(buf.String(), "through default"))
}
