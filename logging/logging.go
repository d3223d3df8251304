// Package logging configures the process-wide slog logger.
package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"
)

// Options selects the log level and an optional log file.
type Options struct {
	Level  string
	File   string
	Stderr io.Writer // Defaults to os.Stderr
}

// ParseLevel converts a string log level to slog.Level. Unknown levels map to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO":
		return slog.LevelInfo
	case "WARN", "WARNING":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Setup builds a logger writing text records to stderr and, when a file is
// configured, appending them to that file too. The returned close function
// releases the file.
func Setup(opts Options) (*slog.Logger, func() error, error) {
	handlerOpts := &slog.HandlerOptions{
		Level: ParseLevel(opts.Level),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				if t, ok := a.Value.Any().(time.Time); ok {
					a.Value = slog.StringValue(t.UTC().Format(time.RFC3339))
				}
			}
			return a
		},
	}

	stderr := opts.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}
	handlers := []slog.Handler{slog.NewTextHandler(stderr, handlerOpts)}

	closeFn := func() error { return nil }
	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		handlers = append(handlers, slog.NewTextHandler(f, handlerOpts))
		closeFn = f.Close
	}

	return slog.New(NewMultiHandler(handlers...)), closeFn, nil
}
