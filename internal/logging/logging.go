// Package logging builds the process logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

type Format int

const (
	FormatJSON Format = iota
	FormatText
)

// ParseFormat returns FormatJSON for anything it does not recognise.
func ParseFormat(s string) Format {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "text", "console":
		return FormatText
	default:
		return FormatJSON
	}
}

// ParseLevel returns slog.LevelInfo for anything it does not recognise.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
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

// New returns a logger writing to stdout.
func New(level, format string) *slog.Logger {
	return NewWithWriter(os.Stdout, level, format)
}

func NewWithWriter(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: ParseLevel(level)}
	var h slog.Handler
	if ParseFormat(format) == FormatText {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}
	return slog.New(h).With("service", "starterp")
}
