// Package logging builds the slog.Logger shared by the CLI, engine, watcher
// and script runtime.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
)

// Options selects the handler. The zero value logs info and above as text
// to stderr.
type Options struct {
	Level  slog.Level
	JSON   bool
	Writer io.Writer
}

// New returns a logger with the requested handler.
func New(opts Options) *slog.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}
	hopts := &slog.HandlerOptions{Level: opts.Level}
	if opts.JSON {
		return slog.New(slog.NewJSONHandler(w, hopts))
	}
	return slog.New(slog.NewTextHandler(w, hopts))
}

// FromConfig parses the level and format strings found in config files and
// flags.
func FromConfig(level, format string, w io.Writer) (*slog.Logger, error) {
	lvl, err := ParseLevel(level)
	if err != nil {
		return nil, err
	}
	var json bool
	switch strings.ToLower(format) {
	case "", "text":
	case "json":
		json = true
	default:
		return nil, fmt.Errorf("logging: unknown format %q", format)
	}
	return New(Options{Level: lvl, JSON: json, Writer: w}), nil
}

// ParseLevel accepts debug, info, warn/warning and error in any case. The
// empty string is info.
func ParseLevel(s string) (slog.Level, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("logging: unknown level %q", s)
	}
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
