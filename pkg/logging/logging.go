// Package logging builds the slog loggers used by the CLI.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Options configure New.
type Options struct {
	Level slog.Level
	JSON  bool
}

// New returns a text or JSON logger writing to w.
func New(w io.Writer, opts Options) *slog.Logger {
	hopts := &slog.HandlerOptions{Level: opts.Level}
	var handler slog.Handler
	if opts.JSON {
		handler = slog.NewJSONHandler(w, hopts)
	} else {
		handler = slog.NewTextHandler(w, hopts)
	}
	return slog.New(handler)
}

// OptionsFromEnv reads HYPERGREP_LOG_LEVEL (debug, info, warn, error; warn
// by default) and HYPERGREP_JSON_LOG (1, true or json).
func OptionsFromEnv() Options {
	mode := strings.ToLower(os.Getenv("HYPERGREP_JSON_LOG"))
	return Options{
		Level: ParseLevel(os.Getenv("HYPERGREP_LOG_LEVEL")),
		JSON:  mode == "1" || mode == "true" || mode == "json",
	}
}

// FromEnv returns a logger writing to w configured from the environment.
func FromEnv(w io.Writer) *slog.Logger {
	return New(w, OptionsFromEnv())
}

// ParseLevel maps a level name to a slog level. Unknown names select warn,
// which keeps grep output free of routine messages.
func ParseLevel(name string) slog.Level {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}
