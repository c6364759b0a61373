// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lsp

import "encoding/json"

// ParseDocumentSymbols parses a textDocument/documentSymbol response.
//
// Description:
//
//	Peers answer with null, a hierarchical DocumentSymbol array, or a
//	flat SymbolInformation array depending on the negotiated
//	capability. Normalizes both shapes to DocumentSymbol; flat symbols
//	become top-level entries whose selection range equals their range.
func ParseDocumentSymbols(data json.RawMessage) ([]DocumentSymbol, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}

	// Hierarchical symbols carry a selectionRange field.
	type probe struct {
		SelectionRange *Range `json:"selectionRange"`
	}
	var probes []probe
	if err := json.Unmarshal(data, &probes); err != nil {
		return nil, ErrInvalidResponse
	}
	if len(probes) == 0 {
		return nil, nil
	}

	if probes[0].SelectionRange != nil {
		var symbols []DocumentSymbol
		if err := json.Unmarshal(data, &symbols); err != nil {
			return nil, ErrInvalidResponse
		}
		return symbols, nil
	}

	var flat []SymbolInformation
	if err := json.Unmarshal(data, &flat); err != nil {
		return nil, ErrInvalidResponse
	}
	symbols := make([]DocumentSymbol, len(flat))
	for i, s := range flat {
		symbols[i] = DocumentSymbol{
			Name:           s.Name,
			Kind:           s.Kind,
			Range:          s.Location.Range,
			SelectionRange: s.Location.Range,
		}
	}
	return symbols, nil
}

// ParseSymbolInformation parses a workspace/symbol response.
func ParseSymbolInformation(data json.RawMessage) ([]SymbolInformation, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}
	var symbols []SymbolInformation
	if err := json.Unmarshal(data, &symbols); err != nil {
		return nil, ErrInvalidResponse
	}
	return symbols, nil
}

// ParseCompletions parses a textDocument/completion response.
//
// Description:
//
//	Peers answer with null, a bare CompletionItem array, or a
//	CompletionList. Normalizes all shapes to a CompletionList.
func ParseCompletions(data json.RawMessage) (*CompletionList, error) {
	if len(data) == 0 || string(data) == "null" {
		return &CompletionList{}, nil
	}

	if data[0] == '[' {
		var items []CompletionItem
		if err := json.Unmarshal(data, &items); err != nil {
			return nil, ErrInvalidResponse
		}
		return &CompletionList{Items: items}, nil
	}

	var list CompletionList
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, ErrInvalidResponse
	}
	return &list, nil
}

// ParseHover parses a textDocument/hover response into plain text.
//
// Description:
//
//	Modern peers answer with MarkupContent; older ones with a bare
//	string or an array of marked strings. All shapes collapse to the
//	first non-empty text. Returns nil for a null response.
func ParseHover(data json.RawMessage) (*string, error) {
	if len(data) == 0 || string(data) == "null" {
		return nil, nil
	}

	var hover HoverResult
	if err := json.Unmarshal(data, &hover); err == nil && hover.Contents.Value != "" {
		return &hover.Contents.Value, nil
	}

	// Legacy shapes: contents as a string or an array.
	var legacy struct {
		Contents json.RawMessage `json:"contents"`
	}
	if err := json.Unmarshal(data, &legacy); err != nil {
		return nil, ErrInvalidResponse
	}

	var text string
	if err := json.Unmarshal(legacy.Contents, &text); err == nil {
		return &text, nil
	}

	var parts []json.RawMessage
	if err := json.Unmarshal(legacy.Contents, &parts); err != nil {
		return nil, ErrInvalidResponse
	}
	for _, part := range parts {
		var s string
		if err := json.Unmarshal(part, &s); err == nil && s != "" {
			return &s, nil
		}
		var marked struct {
			Value string `json:"value"`
		}
		if err := json.Unmarshal(part, &marked); err == nil && marked.Value != "" {
			return &marked.Value, nil
		}
	}
	return nil, nil
}
