package logger

import (
	"io"
	"log/slog"
)

// Option configures a logger created with New.
type Option func(*config)

// WithDebug lowers the level to Debug when true and restores Info otherwise.
func WithDebug(debug bool) Option {
	return func(c *config) {
		c.level = slog.LevelInfo
		if debug {
			c.level = slog.LevelDebug
		}
	}
}

// WithLevel sets the minimum level. A *slog.LevelVar allows changing it later.
func WithLevel(level slog.Leveler) Option {
	return func(c *config) {
		if level != nil {
			c.level = level
		}
	}
}

// WithFormat selects the output handler.
func WithFormat(f Format) Option {
	return func(c *config) {
		c.format = f
	}
}

// WithPretty switches to FormatPretty. False only undoes an earlier pretty
// selection.
func WithPretty(pretty bool) Option {
	return func(c *config) {
		switch {
		case pretty:
			c.format = FormatPretty
		case c.format == FormatPretty:
			c.format = FormatText
		}
	}
}

// WithJSON switches to FormatJSON. False only undoes an earlier JSON
// selection.
func WithJSON(json bool) Option {
	return func(c *config) {
		switch {
		case json:
			c.format = FormatJSON
		case c.format == FormatJSON:
			c.format = FormatText
		}
	}
}

// WithWriter replaces the output writer.
func WithWriter(w io.Writer) Option {
	return func(c *config) {
		if w != nil {
			c.out = w
		}
	}
}

// WithWriters writes every record to each of ws.
func WithWriters(ws ...io.Writer) Option {
	return func(c *config) {
		if len(ws) > 0 {
			c.out = io.MultiWriter(ws...)
		}
	}
}

// WithSource adds the caller's file:line to each record.
func WithSource(source bool) Option {
	return func(c *config) {
		c.source = source
	}
}

// WithAttrs binds key/value pairs to every record, as slog.Logger.With does.
func WithAttrs(args ...any) Option {
	return func(c *config) {
		c.attrs = append(c.attrs, args...)
	}
}
