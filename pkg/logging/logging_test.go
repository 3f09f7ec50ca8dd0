package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_Text(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, Options{Level: slog.LevelInfo})

	logger.Debug("hidden")
	logger.Info("scan complete", "files", 3)

	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "msg=\"scan complete\"")
	assert.Contains(t, buf.String(), "files=3")
}

func TestNew_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, Options{Level: slog.LevelDebug, JSON: true})

	logger.Debug("compiled", "patterns", 2)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "compiled", entry["msg"])
	assert.Equal(t, "DEBUG", entry["level"])
	assert.Equal(t, float64(2), entry["patterns"])
}

func TestOptionsFromEnv(t *testing.T) {
	t.Setenv("HYPERGREP_LOG_LEVEL", "DEBUG")
	t.Setenv("HYPERGREP_JSON_LOG", "true")

	opts := OptionsFromEnv()
	assert.Equal(t, Options{Level: slog.LevelDebug, JSON: true}, opts)

	t.Setenv("HYPERGREP_LOG_LEVEL", "")
	t.Setenv("HYPERGREP_JSON_LOG", "")
	assert.Equal(t, Options{Level: slog.LevelWarn}, OptionsFromEnv())
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"bogus", slog.LevelWarn},
		{"", slog.LevelWarn},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}
