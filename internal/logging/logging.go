package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Init creates and sets the package-level default slog logger on stderr.
// Format "json" or "text" is used as given; "auto" picks JSON when stdout
// carries report data and text otherwise.
func Init(format string, outputIsStdout bool, level slog.Level) {
	slog.SetDefault(slog.New(NewHandler(os.Stderr, format, outputIsStdout, level)))
}

// NewHandler builds the handler Init installs, writing to w.
func NewHandler(w io.Writer, format string, outputIsStdout bool, level slog.Level) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(format) {
	case "json":
		return slog.NewJSONHandler(w, opts)
	case "text":
		return slog.NewTextHandler(w, opts)
	}
	if outputIsStdout {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

// ParseLevel converts a string ("debug", "info", "warn", "error") to slog.Level.
// Unknown strings default to LevelInfo.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
