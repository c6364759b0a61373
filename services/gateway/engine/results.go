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
	"github.com/AleutianAI/langgate/services/gateway/coordinate"
)

// SymbolMatch is one workspace search hit.
type SymbolMatch struct {
	// Name is the symbol's name.
	Name string `json:"name"`

	// Kind is a human-readable symbol kind.
	Kind string `json:"kind"`

	// Container is the enclosing symbol's name, when reported.
	Container string `json:"container,omitempty"`

	// Path is the absolute path of the defining file.
	Path string `json:"path"`

	// Position is the symbol's definition start.
	Position coordinate.OneBased `json:"position"`
}

// OutlineSymbol is one node of a document outline.
type OutlineSymbol struct {
	// Name is the symbol's name.
	Name string `json:"name"`

	// Detail is extra information such as a signature.
	Detail string `json:"detail,omitempty"`

	// Kind is a human-readable symbol kind.
	Kind string `json:"kind"`

	// Start and End delimit the symbol's full span.
	Start coordinate.OneBased `json:"start"`
	End   coordinate.OneBased `json:"end"`

	// Children are nested symbols.
	Children []OutlineSymbol `json:"children,omitempty"`
}

// SymbolLocation is a file position in caller coordinates.
type SymbolLocation struct {
	// Path is the absolute path of the file.
	Path string `json:"path"`

	// Start and End delimit the location's span.
	Start coordinate.OneBased `json:"start"`
	End   coordinate.OneBased `json:"end"`
}

// InspectResult aggregates the four navigation views of one position.
//
// Any sub-request may fail independently; its field is then nil and
// the sub-request's name appears in Degraded.
type InspectResult struct {
	// Symbol is the innermost symbol at the position, when one exists.
	Symbol *CursorSymbol `json:"symbol,omitempty"`

	// Hover is the peer's hover text, usually markdown.
	Hover *string `json:"hover,omitempty"`

	// Definition, TypeDefinition, and Implementation are navigation
	// targets.
	Definition     []SymbolLocation `json:"definition,omitempty"`
	TypeDefinition []SymbolLocation `json:"type_definition,omitempty"`
	Implementation []SymbolLocation `json:"implementation,omitempty"`

	// Degraded lists sub-requests that failed.
	Degraded []string `json:"degraded,omitempty"`
}

// CompletionItem is one completion suggestion.
type CompletionItem struct {
	// Label is the suggestion text.
	Label string `json:"label"`

	// Kind is a numeric LSP completion item kind.
	Kind int `json:"kind,omitempty"`

	// Detail is extra information such as a type signature.
	Detail string `json:"detail,omitempty"`

	// InsertText is the text to insert; empty means use Label.
	InsertText string `json:"insert_text,omitempty"`
}

// CompletionResult is the completion operation's payload.
type CompletionResult struct {
	// IsIncomplete indicates further typing should recompute the list.
	IsIncomplete bool `json:"is_incomplete"`

	// Items are the suggestions.
	Items []CompletionItem `json:"items"`
}

// TextEdit is one text replacement in caller coordinates.
type TextEdit struct {
	// Start and End delimit the span to replace.
	Start coordinate.OneBased `json:"start"`
	End   coordinate.OneBased `json:"end"`

	// NewText is the replacement.
	NewText string `json:"new_text"`
}

// RenameResult maps absolute file paths to their edits.
type RenameResult struct {
	// Changes groups edits by file.
	Changes map[string][]TextEdit `json:"changes"`
}

// FileDiagnostic is one stored diagnostic in caller coordinates.
type FileDiagnostic struct {
	// Severity is 1=error, 2=warning, 3=information, 4=hint.
	Severity int `json:"severity"`

	// Message is the diagnostic text.
	Message string `json:"message"`

	// Source names the producing tool, when reported.
	Source string `json:"source,omitempty"`

	// Start and End delimit the diagnostic's span.
	Start coordinate.OneBased `json:"start"`
	End   coordinate.OneBased `json:"end"`
}
