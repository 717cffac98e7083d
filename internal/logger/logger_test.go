package logger

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer

	log := New(Config{
		Writer: &buf,
		Format: "json",
		Level:  slog.LevelInfo,
	})

	log.Info("hello", "key", "value")

	out := buf.String()
	assert.Contains(t, out, `"msg":"hello"`)
	assert.Contains(t, out, `"key":"value"`)
}

func TestNew_PrettyFormat(t *testing.T) {
	var buf bytes.Buffer

	log := New(Config{
		Writer: &buf,
		Format: "pretty",
		Level:  slog.LevelDebug,
	})

	log.Debug("note created", "note_id", "note-123")

	out := buf.String()
	assert.Contains(t, out, "DBG")
	assert.Contains(t, out, "note created")
	assert.Contains(t, out, "note_id=note-123")
}

func TestNew_ProductionDefaultsToJSON(t *testing.T) {
	var buf bytes.Buffer

	log := New(Config{
		Writer:      &buf,
		Environment: "production",
	})

	log.Info("boot")
	assert.True(t, strings.HasPrefix(buf.String(), "{"), "production logs should be JSON")
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"ERROR", slog.LevelError},
		{"bogus", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.input))
		})
	}
}

func TestPrettyHandler_LevelFiltering(t *testing.T) {
	var buf bytes.Buffer

	log := New(Config{
		Writer: &buf,
		Format: "pretty",
		Level:  slog.LevelWarn,
	})

	log.Info("should be dropped")
	log.Warn("should appear")

	out := buf.String()
	require.NotContains(t, out, "should be dropped")
	assert.Contains(t, out, "should appear")
}

func TestWithError(t *testing.T) {
	var buf bytes.Buffer

	log := New(Config{Writer: &buf, Format: "json"})
	log.WithError(assert.AnError).Error("operation failed")

	assert.Contains(t, buf.String(), assert.AnError.Error())
}
