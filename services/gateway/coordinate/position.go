// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package coordinate separates the two position spaces the gateway deals
// with: callers address documents with 1-based line/character pairs, the
// wire protocol uses 0-based pairs. The two are distinct struct types so a
// value can never cross the boundary without an explicit conversion.
package coordinate

import "fmt"

// OneBased is a caller-facing position. Line 1, character 1 is the first
// character of a document.
type OneBased struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// ZeroBased is a protocol position. Line 0, character 0 is the first
// character of a document.
type ZeroBased struct {
	Line      int `json:"line"`
	Character int `json:"character"`
}

// NewOneBased validates and constructs a caller-facing position.
//
// Errors:
//
//	ErrInvalidPosition - line or character below 1.
func NewOneBased(line, character int) (OneBased, error) {
	if line < 1 {
		return OneBased{}, fmt.Errorf("%w: line %d (must be >= 1)", ErrInvalidPosition, line)
	}
	if character < 1 {
		return OneBased{}, fmt.Errorf("%w: character %d (must be >= 1)", ErrInvalidPosition, character)
	}
	return OneBased{Line: line, Character: character}, nil
}

// NewZeroBased validates and constructs a protocol position.
//
// Errors:
//
//	ErrInvalidPosition - line or character below 0.
func NewZeroBased(line, character int) (ZeroBased, error) {
	if line < 0 {
		return ZeroBased{}, fmt.Errorf("%w: line %d (must be >= 0)", ErrInvalidPosition, line)
	}
	if character < 0 {
		return ZeroBased{}, fmt.Errorf("%w: character %d (must be >= 0)", ErrInvalidPosition, character)
	}
	return ZeroBased{Line: line, Character: character}, nil
}

// ToZeroBased converts to the protocol space. Lossless for any position
// constructed through NewOneBased.
func (p OneBased) ToZeroBased() ZeroBased {
	return ZeroBased{Line: p.Line - 1, Character: p.Character - 1}
}

// ToOneBased converts to the caller space. Lossless for any position
// constructed through NewZeroBased.
func (p ZeroBased) ToOneBased() OneBased {
	return OneBased{Line: p.Line + 1, Character: p.Character + 1}
}

// String returns "line:character" in the caller space.
func (p OneBased) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Character)
}

// String returns "line:character" in the protocol space.
func (p ZeroBased) String() string {
	return fmt.Sprintf("%d:%d", p.Line, p.Character)
}
