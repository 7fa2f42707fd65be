// Package logging builds the process logger.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// Config holds the logger configuration.
type Config struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// New builds a slog logger writing to output (stderr when nil). Unknown
// levels fall back to info, unknown formats to text.
func New(cfg Config, output io.Writer) *slog.Logger {
	if output == nil {
		output = os.Stderr
	}

	level := new(slog.Level)
	if err := level.UnmarshalText([]byte(strings.ToLower(cfg.Level))); err != nil {
		*level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler
	switch cfg.Format {
	case "json":
		handler = slog.NewJSONHandler(output, opts)
	default:
		handler = slog.NewTextHandler(output, opts)
	}
	return slog.New(handler)
}

// Discard returns a logger that drops everything.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
