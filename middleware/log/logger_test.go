package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/Gopher0727/TeamMatch/config"
)

func fileLogger(t *testing.T, level string) (*Logger, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "app.log")
	l, err := NewLogger(&config.LoggingConfig{Level: level, Format: "json", Output: "file", FilePath: path})
	require.NoError(t, err)
	return l, path
}

func readEntries(t *testing.T, path string) []map[string]any {
	t.Helper()
	content, err := os.ReadFile(path)
	require.NoError(t, err)

	var entries []map[string]any
	for _, line := range bytes.Split(bytes.TrimSpace(content), []byte("\n")) {
		if len(line) == 0 {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal(line, &entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestNewLogger(t *testing.T) {
	t.Run("json to stdout", func(t *testing.T) {
		l, err := NewLogger(&config.LoggingConfig{Level: "info", Format: "json", Output: "stdout"})
		require.NoError(t, err)
		l.Info("hello")
		assert.NoError(t, l.Close())
	})

	t.Run("text to stdout", func(t *testing.T) {
		l, err := NewLogger(&config.LoggingConfig{Level: "debug", Format: "text", Output: "stdout"})
		require.NoError(t, err)
		l.Debug("hello")
		assert.NoError(t, l.Close())
	})

	t.Run("rejects unknown level", func(t *testing.T) {
		_, err := NewLogger(&config.LoggingConfig{Level: "verbose", Format: "json", Output: "stdout"})
		assert.Error(t, err)
	})

	t.Run("rejects unknown format", func(t *testing.T) {
		_, err := NewLogger(&config.LoggingConfig{Level: "info", Format: "xml", Output: "stdout"})
		assert.Error(t, err)
	})

	t.Run("file output needs a path", func(t *testing.T) {
		_, err := NewLogger(&config.LoggingConfig{Level: "info", Format: "json", Output: "file"})
		assert.Error(t, err)
	})
}

func TestLogger_LevelFiltering(t *testing.T) {
	l, path := fileLogger(t, "warn")

	l.Debug("debug line")
	l.Info("info line")
	l.Warn("warn line")
	l.Error("error line")
	require.NoError(t, l.Close())

	entries := readEntries(t, path)
	require.Len(t, entries, 2)
	assert.Equal(t, "warn line", entries[0]["message"])
	assert.Equal(t, "error line", entries[1]["message"])
}

func TestLogger_WithContext(t *testing.T) {
	l, path := fileLogger(t, "info")

	ctx := WithUserID(WithTraceID(context.Background(), "trace-abc"), 42)
	l.InfoContext(ctx, "joined team", zap.Int64("team_id", 7))
	l.InfoContext(context.Background(), "no context fields")
	require.NoError(t, l.Close())

	entries := readEntries(t, path)
	require.Len(t, entries, 2)

	assert.Equal(t, "trace-abc", entries[0]["trace_id"])
	assert.Equal(t, float64(42), entries[0]["user_id"])
	assert.Equal(t, float64(7), entries[0]["team_id"])
	assert.NotEmpty(t, entries[0]["timestamp"])

	assert.NotContains(t, entries[1], "trace_id")
	assert.NotContains(t, entries[1], "user_id")
}

func TestLogger_WithFields(t *testing.T) {
	l, path := fileLogger(t, "info")

	l.WithFields(zap.String("component", "team")).Info("created")
	require.NoError(t, l.Close())

	entries := readEntries(t, path)
	require.Len(t, entries, 1)
	assert.Equal(t, "team", entries[0]["component"])
}

func TestParseLogLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    zapcore.Level
		wantErr bool
	}{
		{"debug", zapcore.DebugLevel, false},
		{"INFO", zapcore.InfoLevel, false},
		{"", zapcore.InfoLevel, false},
		{"warning", zapcore.WarnLevel, false},
		{"error", zapcore.ErrorLevel, false},
		{"fatal", zapcore.FatalLevel, false},
		{"loud", zapcore.InfoLevel, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			level, err := parseLogLevel(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, level)
		})
	}
}
