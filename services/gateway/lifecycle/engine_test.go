// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lifecycle

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/AleutianAI/langgate/services/gateway/lsp"
)

// fakeSender records notifications in order.
type fakeSender struct {
	methods []string
	params  []interface{}
}

func (f *fakeSender) Notify(method string, params interface{}) error {
	f.methods = append(f.methods, method)
	f.params = append(f.params, params)
	return nil
}

func (f *fakeSender) lastOpen(t *testing.T) lsp.DidOpenTextDocumentParams {
	t.Helper()
	for i := len(f.methods) - 1; i >= 0; i-- {
		if f.methods[i] == "textDocument/didOpen" {
			return f.params[i].(lsp.DidOpenTextDocumentParams)
		}
	}
	t.Fatal("no didOpen recorded")
	return lsp.DidOpenTextDocumentParams{}
}

func newTestEngine(t *testing.T) (*Engine, *fakeSender, string) {
	t.Helper()
	root := t.TempDir()
	sender := &fakeSender{}
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))
	engine := NewEngine(root, map[string]string{"go": "go"}, sender, logger)
	return engine, sender, root
}

func writeFile(t *testing.T, root, name, content string) string {
	t.Helper()
	path := filepath.Join(root, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestStrategy(t *testing.T) {
	t.Run("parse known strategies", func(t *testing.T) {
		for _, s := range []string{"transient", "persistent", "respect_existing"} {
			if _, err := ParseStrategy(s); err != nil {
				t.Errorf("ParseStrategy(%q): %v", s, err)
			}
		}
	})

	t.Run("parse rejects unknown", func(t *testing.T) {
		if _, err := ParseStrategy("aggressive"); err == nil {
			t.Error("expected error")
		}
	})

	t.Run("close decision table", func(t *testing.T) {
		tests := []struct {
			name           string
			strategy       Strategy
			wasAlreadyOpen bool
			preloaded      bool
			want           bool
		}{
			{"transient closes", StrategyTransient, false, false, true},
			{"transient keeps preloaded", StrategyTransient, false, true, false},
			{"transient keeps preloaded even if reopened", StrategyTransient, true, true, false},
			{"persistent never closes", StrategyPersistent, false, false, false},
			{"respect closes what it opened", StrategyRespectExisting, false, false, true},
			{"respect keeps what was open", StrategyRespectExisting, true, false, false},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				got := shouldClose(tt.strategy, tt.wasAlreadyOpen, tt.preloaded)
				if got != tt.want {
					t.Errorf("shouldClose = %v, want %v", got, tt.want)
				}
			})
		}
	})
}

func TestEngine_Resolve(t *testing.T) {
	engine, _, root := newTestEngine(t)
	writeFile(t, root, "main.go", "package main\n")

	t.Run("relative path resolves under root", func(t *testing.T) {
		abs, err := engine.Resolve("main.go")
		if err != nil {
			t.Fatalf("Resolve: %v", err)
		}
		if abs != filepath.Join(root, "main.go") {
			t.Errorf("abs = %q", abs)
		}
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := engine.Resolve("nope.go")
		if !errors.Is(err, lsp.ErrFileNotFound) {
			t.Errorf("expected ErrFileNotFound, got %v", err)
		}
	})

	t.Run("escaping path", func(t *testing.T) {
		_, err := engine.Resolve("../../etc/passwd")
		if !errors.Is(err, lsp.ErrInvalidPath) {
			t.Errorf("expected ErrInvalidPath, got %v", err)
		}
	})

	t.Run("directory", func(t *testing.T) {
		if err := os.Mkdir(filepath.Join(root, "sub"), 0o755); err != nil {
			t.Fatal(err)
		}
		_, err := engine.Resolve("sub")
		if !errors.Is(err, lsp.ErrInvalidPath) {
			t.Errorf("expected ErrInvalidPath, got %v", err)
		}
	})

	t.Run("empty path", func(t *testing.T) {
		_, err := engine.Resolve("")
		if !errors.Is(err, lsp.ErrInvalidPath) {
			t.Errorf("expected ErrInvalidPath, got %v", err)
		}
	})
}

func TestEngine_Open(t *testing.T) {
	t.Run("first open sends didOpen with version 1", func(t *testing.T) {
		engine, sender, root := newTestEngine(t)
		writeFile(t, root, "main.go", "package main\n")

		state, err := engine.Open("main.go", StrategyTransient)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		if state.WasAlreadyOpen {
			t.Error("WasAlreadyOpen should be false")
		}
		if state.Content != "package main\n" {
			t.Errorf("Content = %q", state.Content)
		}

		open := sender.lastOpen(t)
		if open.TextDocument.Version != 1 {
			t.Errorf("Version = %d, want 1", open.TextDocument.Version)
		}
		if open.TextDocument.LanguageID != "go" {
			t.Errorf("LanguageID = %q", open.TextDocument.LanguageID)
		}
	})

	t.Run("transient reopen issues close then open", func(t *testing.T) {
		engine, sender, root := newTestEngine(t)
		writeFile(t, root, "main.go", "package main\n")

		if _, err := engine.Open("main.go", StrategyPersistent); err != nil {
			t.Fatal(err)
		}
		writeFile(t, root, "main.go", "package main // edited\n")

		state, err := engine.Open("main.go", StrategyTransient)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		if !state.WasAlreadyOpen {
			t.Error("WasAlreadyOpen should be true")
		}
		if state.Content != "package main // edited\n" {
			t.Errorf("Content = %q, want fresh disk content", state.Content)
		}

		want := []string{"textDocument/didOpen", "textDocument/didClose", "textDocument/didOpen"}
		if len(sender.methods) != len(want) {
			t.Fatalf("methods = %v", sender.methods)
		}
		for i, m := range want {
			if sender.methods[i] != m {
				t.Errorf("methods[%d] = %q, want %q", i, sender.methods[i], m)
			}
		}

		open := sender.lastOpen(t)
		if open.TextDocument.Version != 2 {
			t.Errorf("Version = %d, want 2", open.TextDocument.Version)
		}
	})

	t.Run("respect_existing reuses open document silently", func(t *testing.T) {
		engine, sender, root := newTestEngine(t)
		writeFile(t, root, "main.go", "package main\n")

		if _, err := engine.Open("main.go", StrategyPersistent); err != nil {
			t.Fatal(err)
		}
		before := len(sender.methods)

		state, err := engine.Open("main.go", StrategyRespectExisting)
		if err != nil {
			t.Fatalf("Open: %v", err)
		}
		if !state.WasAlreadyOpen {
			t.Error("WasAlreadyOpen should be true")
		}
		if len(sender.methods) != before {
			t.Errorf("reuse sent notifications: %v", sender.methods[before:])
		}
	})

	t.Run("versions increase monotonically across reopen cycles", func(t *testing.T) {
		engine, sender, root := newTestEngine(t)
		writeFile(t, root, "main.go", "package main\n")

		for i := 0; i < 3; i++ {
			state, err := engine.Open("main.go", StrategyTransient)
			if err != nil {
				t.Fatal(err)
			}
			if err := engine.Close(state, StrategyTransient); err != nil {
				t.Fatal(err)
			}
		}

		open := sender.lastOpen(t)
		if open.TextDocument.Version != 3 {
			t.Errorf("Version = %d, want 3", open.TextDocument.Version)
		}
	})
}

func TestEngine_Close(t *testing.T) {
	t.Run("transient closes after operation", func(t *testing.T) {
		engine, _, root := newTestEngine(t)
		writeFile(t, root, "main.go", "package main\n")

		state, err := engine.Open("main.go", StrategyTransient)
		if err != nil {
			t.Fatal(err)
		}
		if err := engine.Close(state, StrategyTransient); err != nil {
			t.Fatal(err)
		}
		if engine.OpenCount() != 0 {
			t.Errorf("OpenCount = %d, want 0", engine.OpenCount())
		}
	})

	t.Run("persistent stays open", func(t *testing.T) {
		engine, _, root := newTestEngine(t)
		writeFile(t, root, "main.go", "package main\n")

		state, err := engine.Open("main.go", StrategyPersistent)
		if err != nil {
			t.Fatal(err)
		}
		if err := engine.Close(state, StrategyPersistent); err != nil {
			t.Fatal(err)
		}
		if engine.OpenCount() != 1 {
			t.Errorf("OpenCount = %d, want 1", engine.OpenCount())
		}
	})

	t.Run("respect_existing keeps a document it did not open", func(t *testing.T) {
		engine, _, root := newTestEngine(t)
		writeFile(t, root, "main.go", "package main\n")

		if _, err := engine.Open("main.go", StrategyPersistent); err != nil {
			t.Fatal(err)
		}
		state, err := engine.Open("main.go", StrategyRespectExisting)
		if err != nil {
			t.Fatal(err)
		}
		if err := engine.Close(state, StrategyRespectExisting); err != nil {
			t.Fatal(err)
		}
		if engine.OpenCount() != 1 {
			t.Errorf("OpenCount = %d, want 1", engine.OpenCount())
		}
	})

	t.Run("double close is harmless", func(t *testing.T) {
		engine, _, root := newTestEngine(t)
		writeFile(t, root, "main.go", "package main\n")

		state, err := engine.Open("main.go", StrategyTransient)
		if err != nil {
			t.Fatal(err)
		}
		if err := engine.Close(state, StrategyTransient); err != nil {
			t.Fatal(err)
		}
		if err := engine.Close(state, StrategyTransient); err != nil {
			t.Fatal(err)
		}
	})
}

func TestEngine_Preload(t *testing.T) {
	t.Run("preloaded file survives transient operation", func(t *testing.T) {
		engine, _, root := newTestEngine(t)
		writeFile(t, root, "main.go", "package main\n")

		engine.Preload([]string{"main.go"})
		if engine.OpenCount() != 1 {
			t.Fatalf("OpenCount = %d after preload, want 1", engine.OpenCount())
		}

		state, err := engine.Open("main.go", StrategyTransient)
		if err != nil {
			t.Fatal(err)
		}
		if err := engine.Close(state, StrategyTransient); err != nil {
			t.Fatal(err)
		}
		if engine.OpenCount() != 1 {
			t.Errorf("OpenCount = %d, want 1: preloaded files stay open", engine.OpenCount())
		}
	})

	t.Run("unresolvable preload paths are skipped", func(t *testing.T) {
		engine, _, _ := newTestEngine(t)
		engine.Preload([]string{"missing.go"})
		if engine.OpenCount() != 0 {
			t.Errorf("OpenCount = %d, want 0", engine.OpenCount())
		}
	})
}

func TestEngine_CloseAll(t *testing.T) {
	engine, _, root := newTestEngine(t)
	writeFile(t, root, "a.go", "package a\n")
	writeFile(t, root, "b.go", "package b\n")

	if _, err := engine.Open("a.go", StrategyPersistent); err != nil {
		t.Fatal(err)
	}
	if _, err := engine.Open("b.go", StrategyPersistent); err != nil {
		t.Fatal(err)
	}

	engine.CloseAll()
	if engine.OpenCount() != 0 {
		t.Errorf("OpenCount = %d, want 0", engine.OpenCount())
	}
}
