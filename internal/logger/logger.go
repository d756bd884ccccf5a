// Package logger configures the process-wide slog logger.
package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Config holds the configuration of the logger.
type Config struct {
	Level  slog.Level
	Format string
}

// FromConfig creates a logger configuration from the server log settings.
func FromConfig(logLevel, logFormat string) Config {
	config := Config{
		Level:  slog.LevelInfo,
		Format: "text",
	}

	switch strings.ToLower(logLevel) {
	case "debug":
		config.Level = slog.LevelDebug
	case "warn":
		config.Level = slog.LevelWarn
	case "error":
		config.Level = slog.LevelError
	}

	if logFormat != "" {
		config.Format = logFormat
	}

	return config
}

// New creates a logger writing to stdout.
func New(config Config) *slog.Logger {
	return NewWithWriter(os.Stdout, config)
}

// NewWithWriter creates a logger writing to w: JSON for "json", tinted text otherwise.
func NewWithWriter(w io.Writer, config Config) *slog.Logger {
	if config.Format == "json" {
		opts := &slog.HandlerOptions{
			Level: config.Level,
			ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
				if a.Key == slog.TimeKey {
					return slog.String(a.Key, a.Value.Time().Format(time.RFC3339))
				}
				return a
			},
		}
		return slog.New(slog.NewJSONHandler(w, opts))
	}

	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      config.Level,
		TimeFormat: time.Kitchen,
	}))
}

// Setup builds the logger and installs it as the slog default.
func Setup(logLevel, logFormat string) *slog.Logger {
	l := New(FromConfig(logLevel, logFormat))
	slog.SetDefault(l)
	return l
}
