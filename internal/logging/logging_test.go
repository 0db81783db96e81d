// ABOUTME: Tests for logger construction
// ABOUTME: Covers level parsing, JSON output and the colorized text handler

package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/inventory/internal/config"
)

func noColor(t *testing.T) {
	t.Helper()
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"DEBUG":   slog.LevelDebug,
		"info":    slog.LevelInfo,
		"warn":    slog.LevelWarn,
		"warning": slog.LevelWarn,
		"error":   slog.LevelError,
		"":        slog.LevelInfo,
		"bogus":   slog.LevelInfo,
	}
	for name, want := range tests {
		assert.Equal(t, want, ParseLevel(name), "level %q", name)
	}
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(config.LoggingConfig{Level: "info", Format: "json"}, &buf)

	logger.Debug("hidden")
	logger.With("component", "store").Info("opened", "path", "/tmp/x.db")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "opened", entry["msg"])
	assert.Equal(t, "store", entry["component"])
	assert.Equal(t, "/tmp/x.db", entry["path"])
}

func TestNew_Text(t *testing.T) {
	noColor(t)

	var buf bytes.Buffer
	logger := New(config.LoggingConfig{Level: "debug"}, &buf)

	logger.With("component", "hub").Debug("change notified", "seq", 3)
	logger.Warn("slow")
	logger.Error("failed", "error", "boom")

	out := buf.String()
	assert.Contains(t, out, "DBG change notified component=hub seq=3")
	assert.Contains(t, out, "WRN slow")
	assert.Contains(t, out, "ERR failed error=boom")
}

func TestNew_TextRespectsLevel(t *testing.T) {
	noColor(t)

	var buf bytes.Buffer
	logger := New(config.LoggingConfig{Level: "warn"}, &buf)

	logger.Info("quiet")
	logger.Warn("loud")

	assert.NotContains(t, buf.String(), "quiet")
	assert.Contains(t, buf.String(), "loud")
}

func TestNew_TextGroups(t *testing.T) {
	noColor(t)

	var buf bytes.Buffer
	logger := New(config.LoggingConfig{}, &buf)

	logger.WithGroup("db").Info("opened", "path", "x.db")
	logger.Info("call", slog.Group("req", "method", "InsertItem"))

	out := buf.String()
	assert.Contains(t, out, "INF opened db.path=x.db")
	assert.Contains(t, out, "INF call req.method=InsertItem")
}

func TestNew_TextConcurrentWrites(t *testing.T) {
	noColor(t)

	var buf bytes.Buffer
	logger := New(config.LoggingConfig{}, &buf)
	child := logger.With("component", "child")

	var wg sync.WaitGroup
	for i := range 50 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if i%2 == 0 {
				logger.Info("parent")
			} else {
				child.Info("child")
			}
		}()
	}
	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Len(t, lines, 50)
}
