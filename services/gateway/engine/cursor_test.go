// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"strings"
	"testing"

	"github.com/AleutianAI/langgate/services/gateway/coordinate"
	"github.com/AleutianAI/langgate/services/gateway/lsp"
)

func mkRange(startLine, startChar, endLine, endChar int) lsp.Range {
	return lsp.Range{
		Start: lsp.Position{Line: startLine, Character: startChar},
		End:   lsp.Position{Line: endLine, Character: endChar},
	}
}

func zb(t *testing.T, line, char int) coordinate.ZeroBased {
	t.Helper()
	p, err := coordinate.NewZeroBased(line, char)
	if err != nil {
		t.Fatal(err)
	}
	return p
}

func TestResolveCursor(t *testing.T) {
	t.Run("innermost symbol wins", func(t *testing.T) {
		symbols := []lsp.DocumentSymbol{
			{
				Name:  "Outer",
				Kind:  lsp.SymbolKindClass,
				Range: mkRange(9, 0, 19, 1),
				Children: []lsp.DocumentSymbol{
					{
						Name:  "Inner",
						Kind:  lsp.SymbolKindMethod,
						Range: mkRange(11, 4, 13, 5),
					},
				},
			},
		}

		got := resolveCursor(symbols, "", zb(t, 12, 8))
		if got == nil {
			t.Fatal("expected a symbol")
		}
		if got.Name != "Inner" {
			t.Errorf("Name = %q, want Inner", got.Name)
		}
	})

	t.Run("position outside inner resolves to outer", func(t *testing.T) {
		symbols := []lsp.DocumentSymbol{
			{
				Name:  "Outer",
				Kind:  lsp.SymbolKindClass,
				Range: mkRange(9, 0, 19, 1),
				Children: []lsp.DocumentSymbol{
					{Name: "Inner", Kind: lsp.SymbolKindMethod, Range: mkRange(11, 4, 13, 5)},
				},
			},
		}

		got := resolveCursor(symbols, "", zb(t, 17, 0))
		if got == nil || got.Name != "Outer" {
			t.Errorf("got %+v, want Outer", got)
		}
	})

	t.Run("character bounds on boundary lines", func(t *testing.T) {
		symbols := []lsp.DocumentSymbol{
			{Name: "f", Kind: lsp.SymbolKindFunction, Range: mkRange(5, 10, 5, 20)},
		}

		if got := resolveCursor(symbols, "", zb(t, 5, 9)); got != nil {
			t.Errorf("position before start char matched: %+v", got)
		}
		if got := resolveCursor(symbols, "", zb(t, 5, 10)); got == nil {
			t.Error("position at start char should match")
		}
		if got := resolveCursor(symbols, "", zb(t, 5, 20)); got == nil {
			t.Error("position at end char should match")
		}
		if got := resolveCursor(symbols, "", zb(t, 5, 21)); got != nil {
			t.Errorf("position past end char matched: %+v", got)
		}
	})

	t.Run("same-line span beats full-line span", func(t *testing.T) {
		symbols := []lsp.DocumentSymbol{
			{Name: "wide", Kind: lsp.SymbolKindFunction, Range: mkRange(4, 0, 6, 0)},
			{Name: "narrow", Kind: lsp.SymbolKindVariable, Range: mkRange(5, 2, 5, 80)},
		}

		got := resolveCursor(symbols, "", zb(t, 5, 10))
		if got == nil || got.Name != "narrow" {
			t.Errorf("got %+v, want narrow", got)
		}
	})

	t.Run("ties break by encounter order", func(t *testing.T) {
		symbols := []lsp.DocumentSymbol{
			{Name: "first", Kind: lsp.SymbolKindVariable, Range: mkRange(2, 0, 2, 10)},
			{Name: "second", Kind: lsp.SymbolKindVariable, Range: mkRange(2, 0, 2, 10)},
		}

		got := resolveCursor(symbols, "", zb(t, 2, 5))
		if got == nil || got.Name != "first" {
			t.Errorf("got %+v, want first", got)
		}
	})

	t.Run("no containing symbol is not an error", func(t *testing.T) {
		symbols := []lsp.DocumentSymbol{
			{Name: "f", Kind: lsp.SymbolKindFunction, Range: mkRange(0, 0, 3, 1)},
		}

		if got := resolveCursor(symbols, "", zb(t, 50, 0)); got != nil {
			t.Errorf("got %+v, want nil", got)
		}
	})

	t.Run("result uses caller coordinates", func(t *testing.T) {
		symbols := []lsp.DocumentSymbol{
			{Name: "f", Kind: lsp.SymbolKindFunction, Range: mkRange(4, 0, 8, 1)},
		}

		got := resolveCursor(symbols, "", zb(t, 5, 0))
		if got == nil {
			t.Fatal("expected a symbol")
		}
		if got.Start.Line != 5 || got.Start.Character != 1 {
			t.Errorf("Start = %v, want 5:1", got.Start)
		}
		if got.End.Line != 9 {
			t.Errorf("End.Line = %d, want 9", got.End.Line)
		}
	})
}

func TestLineSnippet(t *testing.T) {
	content := "package main\n\nfunc main() {\n\tprintln(\"hi\")\n}\n"

	t.Run("trims the line", func(t *testing.T) {
		if got := lineSnippet(content, 3); got != `println("hi")` {
			t.Errorf("got %q", got)
		}
	})

	t.Run("out of range is empty", func(t *testing.T) {
		if got := lineSnippet(content, 99); got != "" {
			t.Errorf("got %q", got)
		}
		if got := lineSnippet(content, -1); got != "" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("long lines are truncated", func(t *testing.T) {
		long := strings.Repeat("x", 500)
		got := lineSnippet(long, 0)
		if len(got) != snippetMaxLen+3 {
			t.Errorf("len = %d", len(got))
		}
		if !strings.HasSuffix(got, "...") {
			t.Errorf("got %q", got)
		}
	})
}
