// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package logging

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLevelToSlogLevel(t *testing.T) {
	tests := []struct {
		name  string
		level Level
		want  slog.Level
	}{
		{"debug", LevelDebug, slog.LevelDebug},
		{"info", LevelInfo, slog.LevelInfo},
		{"warn", LevelWarn, slog.LevelWarn},
		{"error", LevelError, slog.LevelError},
		{"mixed case", Level("DEBUG"), slog.LevelDebug},
		{"unknown defaults to info", Level("verbose"), slog.LevelInfo},
		{"empty defaults to info", Level(""), slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.level.toSlogLevel(); got != tt.want {
				t.Errorf("toSlogLevel() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewTextOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelInfo, Writer: &buf})

	logger.Info("peer ready", "command", "gopls")

	out := buf.String()
	if !strings.Contains(out, "peer ready") {
		t.Errorf("output missing message: %q", out)
	}
	if !strings.Contains(out, "command=gopls") {
		t.Errorf("output missing attr: %q", out)
	}
}

func TestNewJSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelInfo, JSON: true, Writer: &buf, Service: "gateway"})

	logger.Info("peer ready")

	var record map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &record); err != nil {
		t.Fatalf("output is not JSON: %v", err)
	}
	if record["msg"] != "peer ready" {
		t.Errorf("msg = %v, want peer ready", record["msg"])
	}
	if record["service"] != "gateway" {
		t.Errorf("service = %v, want gateway", record["service"])
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelWarn, Writer: &buf})

	logger.Debug("dropped")
	logger.Info("dropped too")
	logger.Warn("kept")

	out := buf.String()
	if strings.Contains(out, "dropped") {
		t.Errorf("low-severity records not filtered: %q", out)
	}
	if !strings.Contains(out, "kept") {
		t.Errorf("warn record missing: %q", out)
	}
}

func TestQuietSuppressesStderr(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelInfo, Quiet: true, Writer: &buf})

	logger.Info("silent")

	if buf.Len() != 0 {
		t.Errorf("quiet logger wrote output: %q", buf.String())
	}
}

func TestFileSink(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{
		Level:   LevelInfo,
		LogDir:  dir,
		Service: "gateway",
		Quiet:   true,
	})

	logger.Info("written to file", "key", "value")
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() = %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 log file, got %d", len(entries))
	}
	if !strings.HasPrefix(entries[0].Name(), "gateway_") {
		t.Errorf("unexpected file name %q", entries[0].Name())
	}

	data, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	var record map[string]interface{}
	if err := json.Unmarshal(bytes.TrimSpace(data), &record); err != nil {
		t.Fatalf("file sink is not JSON lines: %v", err)
	}
	if record["msg"] != "written to file" {
		t.Errorf("msg = %v", record["msg"])
	}
}

func TestCloseIdempotent(t *testing.T) {
	logger := New(Config{Level: LevelInfo, LogDir: t.TempDir(), Quiet: true})
	if err := logger.Close(); err != nil {
		t.Fatalf("first Close() = %v", err)
	}
	if err := logger.Close(); err != nil {
		t.Fatalf("second Close() = %v", err)
	}
}

func TestCloseWithoutFile(t *testing.T) {
	logger := Default()
	if err := logger.Close(); err != nil {
		t.Fatalf("Close() without file sink = %v", err)
	}
}
