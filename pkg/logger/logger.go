// Package logger builds the slog loggers used across vecstore.
package logger

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	charmlog "github.com/charmbracelet/log"
)

// Format selects the handler installed by New.
type Format int

const (
	// FormatText is slog's key=value handler.
	FormatText Format = iota

	// FormatJSON is slog's JSON handler, one object per line.
	FormatJSON

	// FormatPretty is the colorized charmbracelet/log handler for terminals.
	FormatPretty
)

func (f Format) String() string {
	switch f {
	case FormatJSON:
		return "json"
	case FormatPretty:
		return "pretty"
	default:
		return "text"
	}
}

// ParseFormat accepts "text", "json" and "pretty", case-insensitively.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(s) {
	case "", "text":
		return FormatText, nil
	case "json":
		return FormatJSON, nil
	case "pretty":
		return FormatPretty, nil
	}
	return FormatText, fmt.Errorf("unknown log format %q", s)
}

type config struct {
	level  slog.Leveler
	format Format
	out    io.Writer
	source bool
	attrs  []any
}

// New creates a *slog.Logger. Without options it logs text at Info level to
// os.Stdout.
func New(opts ...Option) *slog.Logger {
	c := &config{
		level:  slog.LevelInfo,
		format: FormatText,
		out:    os.Stdout,
	}
	for _, opt := range opts {
		opt(c)
	}

	l := slog.New(c.handler())
	if len(c.attrs) > 0 {
		l = l.With(c.attrs...)
	}
	return l
}

func (c *config) handler() slog.Handler {
	switch c.format {
	case FormatJSON:
		return slog.NewJSONHandler(c.out, &slog.HandlerOptions{Level: c.level, AddSource: c.source})
	case FormatPretty:
		// charmbracelet/log levels share slog's numeric values.
		return charmlog.NewWithOptions(c.out, charmlog.Options{
			Level:           charmlog.Level(c.level.Level()),
			ReportTimestamp: true,
			ReportCaller:    c.source,
		})
	default:
		return slog.NewTextHandler(c.out, &slog.HandlerOptions{Level: c.level, AddSource: c.source})
	}
}

// Nop returns a logger that discards every record.
func Nop() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
