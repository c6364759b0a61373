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

	"github.com/AleutianAI/langgate/services/gateway/coordinate"
	"github.com/AleutianAI/langgate/services/gateway/lsp"
)

// rangeSizeFactor weights lines over characters when comparing symbol
// ranges, so any full-line span outranks any same-line span.
const rangeSizeFactor = 10000

// snippetMaxLen caps the source line echoed with a cursor symbol.
const snippetMaxLen = 120

// CursorSymbol describes the innermost symbol at a position.
type CursorSymbol struct {
	// Name is the symbol's name.
	Name string `json:"name"`

	// Kind is a human-readable symbol kind.
	Kind string `json:"kind"`

	// Start and End delimit the symbol's full span.
	Start coordinate.OneBased `json:"start"`
	End   coordinate.OneBased `json:"end"`

	// Snippet is the source line under the cursor, trimmed.
	Snippet string `json:"snippet,omitempty"`
}

// resolveCursor finds the innermost symbol containing a position.
//
// Description:
//
//	Flattens the outline in encounter order, keeps symbols whose range
//	contains the position under closed-interval comparison, and picks
//	the smallest by (lineSpan*rangeSizeFactor + charSpan). The first
//	encountered symbol wins ties. A nil return means no symbol
//	contains the position, which is a normal outcome for whitespace.
func resolveCursor(symbols []lsp.DocumentSymbol, content string, pos coordinate.ZeroBased) *CursorSymbol {
	flat := flattenSymbols(symbols)

	var best *lsp.DocumentSymbol
	bestSize := -1
	for i := range flat {
		if !rangeContains(flat[i].Range, pos) {
			continue
		}
		size := rangeSize(flat[i].Range)
		if best == nil || size < bestSize {
			best = &flat[i]
			bestSize = size
		}
	}
	if best == nil {
		return nil
	}

	start, _ := coordinate.NewZeroBased(best.Range.Start.Line, best.Range.Start.Character)
	end, _ := coordinate.NewZeroBased(best.Range.End.Line, best.Range.End.Character)
	return &CursorSymbol{
		Name:    best.Name,
		Kind:    best.Kind.String(),
		Start:   start.ToOneBased(),
		End:     end.ToOneBased(),
		Snippet: lineSnippet(content, pos.Line),
	}
}

// flattenSymbols walks the outline depth-first, parents before
// children, preserving encounter order.
func flattenSymbols(symbols []lsp.DocumentSymbol) []lsp.DocumentSymbol {
	var flat []lsp.DocumentSymbol
	var walk func([]lsp.DocumentSymbol)
	walk = func(nodes []lsp.DocumentSymbol) {
		for _, node := range nodes {
			children := node.Children
			node.Children = nil
			flat = append(flat, node)
			walk(children)
		}
	}
	walk(symbols)
	return flat
}

// rangeContains is closed-interval containment. Positions on the start
// or end line need character-level bound checks, not just line
// containment.
func rangeContains(r lsp.Range, pos coordinate.ZeroBased) bool {
	if pos.Line < r.Start.Line || pos.Line > r.End.Line {
		return false
	}
	if pos.Line == r.Start.Line && pos.Character < r.Start.Character {
		return false
	}
	if pos.Line == r.End.Line && pos.Character > r.End.Character {
		return false
	}
	return true
}

// rangeSize is the deterministic size metric used to pick the
// innermost of several containing ranges.
func rangeSize(r lsp.Range) int {
	return (r.End.Line-r.Start.Line)*rangeSizeFactor + (r.End.Character - r.Start.Character)
}

// lineSnippet returns the trimmed source line at a 0-based line index.
func lineSnippet(content string, line int) string {
	if line < 0 {
		return ""
	}
	lines := strings.Split(content, "\n")
	if line >= len(lines) {
		return ""
	}
	snippet := strings.TrimSpace(lines[line])
	if len(snippet) > snippetMaxLen {
		snippet = snippet[:snippetMaxLen] + "..."
	}
	return snippet
}
