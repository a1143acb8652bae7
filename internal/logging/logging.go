// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

// Package logging builds the process logger: human readable text on stderr
// and, when a file is configured, JSON lines to a size-rotated log file.
package logging

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"

	"gopkg.in/natefinch/lumberjack.v2"
)

// ParseLevel maps debug, info, warn and error to slog levels. Empty is info.
func ParseLevel(level string) (slog.Level, error) {
	switch level {
	case "debug":
		return slog.LevelDebug, nil
	case "", "info":
		return slog.LevelInfo, nil
	case "warn":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("invalid log level %q", level)
	}
}

// Options configures New.
type Options struct {
	Level string
	File  string // empty disables the file sink
	// Stderr receives the text output; nil means os.Stderr.
	Stderr io.Writer
}

// Logger is the process logger plus the file it owns.
type Logger struct {
	*slog.Logger
	file *lumberjack.Logger
}

// New builds the logger and logs a short startup record.
func New(opts Options) (*Logger, error) {
	lvl, err := ParseLevel(opts.Level)
	if err != nil {
		return nil, err
	}
	if opts.Stderr == nil {
		opts.Stderr = os.Stderr
	}

	hopts := &slog.HandlerOptions{Level: lvl}
	l := &Logger{}
	var h slog.Handler = slog.NewTextHandler(opts.Stderr, hopts)

	if opts.File != "" {
		l.file = &lumberjack.Logger{
			Filename:   opts.File,
			MaxSize:    32, // MB
			MaxBackups: 3,
			MaxAge:     14,
		}
		h = fanout{h, slog.NewJSONHandler(l.file, hopts)}
	}

	l.Logger = slog.New(h)
	l.Info("logging started",
		slog.String("level", lvl.String()),
		slog.String("file", opts.File),
		slog.String("GOOS", runtime.GOOS),
		slog.String("GOARCH", runtime.GOARCH))
	return l, nil
}

// Close flushes and closes the log file, if any.
func (l *Logger) Close() error {
	if l == nil || l.file == nil {
		return nil
	}
	return l.file.Close()
}

// fanout sends every record to all of its handlers.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, lvl slog.Level) bool {
	for _, h := range f {
		if h.Enabled(ctx, lvl) {
			return true
		}
	}
	return false
}

func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			errs = append(errs, h.Handle(ctx, r.Clone()))
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}
