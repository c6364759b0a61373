// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

// Package logging provides structured logging for langgate components.
//
// The gateway speaks a framed protocol over the peer's stdio and, when run
// as a tool server, over its own stdio as well. Nothing in this package may
// ever write to stdout: all human-readable output goes to stderr, and the
// optional file sink writes JSON lines.
//
// Basic usage:
//
//	logger := logging.Default()
//	logger.Info("peer ready", "command", cmd)
//
// With a file sink:
//
//	logger := logging.New(logging.Config{
//	    Level:   logging.LevelDebug,
//	    LogDir:  "~/.langgate/logs",
//	    Service: "gateway",
//	})
//	defer logger.Close()
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// Level represents a log severity level.
type Level string

// Supported log levels.
const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// toSlogLevel converts a Level to the slog equivalent.
// Unknown values default to Info.
func (l Level) toSlogLevel() slog.Level {
	switch strings.ToLower(string(l)) {
	case string(LevelDebug):
		return slog.LevelDebug
	case string(LevelWarn):
		return slog.LevelWarn
	case string(LevelError):
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Config controls logger behavior.
type Config struct {
	// Level is the minimum severity to emit. Defaults to info.
	Level Level

	// LogDir enables file logging when non-empty. Supports ~ expansion.
	// Files are named {service}_{date}.log and contain JSON lines.
	LogDir string

	// Service names the component for file naming and log attribution.
	Service string

	// JSON switches the stderr handler from text to JSON lines.
	JSON bool

	// Quiet suppresses stderr output entirely (file sink still active).
	Quiet bool

	// Writer overrides the stderr destination. Tests use this.
	Writer io.Writer
}

// Logger wraps slog with multi-destination fan-out.
//
// Thread Safety: safe for concurrent use.
type Logger struct {
	*slog.Logger

	mu   sync.Mutex
	file *os.File
}

// New creates a logger from the given configuration.
//
// Description:
//
//	Builds a slog.Logger that fans out to stderr (text or JSON) and,
//	when LogDir is set, to a JSON log file. File-sink setup failures
//	degrade to stderr-only logging rather than failing the caller.
//
// Outputs:
//
//	*Logger - Never nil.
func New(cfg Config) *Logger {
	level := cfg.Level.toSlogLevel()
	opts := &slog.HandlerOptions{Level: level}

	var handlers []slog.Handler

	if !cfg.Quiet {
		w := cfg.Writer
		if w == nil {
			w = os.Stderr
		}
		if cfg.JSON {
			handlers = append(handlers, slog.NewJSONHandler(w, opts))
		} else {
			handlers = append(handlers, slog.NewTextHandler(w, opts))
		}
	}

	l := &Logger{}

	if cfg.LogDir != "" {
		if f, err := openLogFile(cfg.LogDir, cfg.Service); err == nil {
			l.file = f
			handlers = append(handlers, slog.NewJSONHandler(f, opts))
		} else {
			fmt.Fprintf(os.Stderr, "logging: file sink disabled: %v\n", err)
		}
	}

	switch len(handlers) {
	case 0:
		l.Logger = slog.New(slog.NewTextHandler(io.Discard, opts))
	case 1:
		l.Logger = slog.New(handlers[0])
	default:
		l.Logger = slog.New(&multiHandler{handlers: handlers})
	}

	if cfg.Service != "" {
		l.Logger = l.Logger.With(slog.String("service", cfg.Service))
	}

	return l
}

// Default returns a stderr-only logger at info level.
func Default() *Logger {
	return New(Config{Level: LevelInfo})
}

// Close flushes and closes the file sink, if any.
//
// Thread Safety: safe for concurrent use; idempotent.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}

// openLogFile creates the log directory and opens the dated log file.
func openLogFile(dir, service string) (*os.File, error) {
	if strings.HasPrefix(dir, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("expand home dir: %w", err)
		}
		dir = filepath.Join(home, strings.TrimPrefix(dir, "~"))
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	if service == "" {
		service = "langgate"
	}
	name := fmt.Sprintf("%s_%s.log", service, time.Now().Format("2006-01-02"))
	f, err := os.OpenFile(filepath.Join(dir, name), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	return f, nil
}

// multiHandler fans a record out to every wrapped handler.
type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	var firstErr error
	for _, h := range m.handlers {
		if !h.Enabled(ctx, r.Level) {
			continue
		}
		if err := h.Handle(ctx, r.Clone()); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		next[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: next}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	next := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		next[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: next}
}
