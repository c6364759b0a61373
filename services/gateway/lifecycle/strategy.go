// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package lifecycle drives the file open/close choreography peers
// require around every document-scoped request.
package lifecycle

import "fmt"

// Strategy selects the open/close behavior for one operation.
type Strategy string

const (
	// StrategyTransient always re-reads the file from disk and closes
	// it afterward, unless the file is preloaded.
	StrategyTransient Strategy = "transient"

	// StrategyPersistent keeps the file open after the operation.
	StrategyPersistent Strategy = "persistent"

	// StrategyRespectExisting closes the file only if this operation
	// opened it.
	StrategyRespectExisting Strategy = "respect_existing"
)

// Valid reports whether the strategy is a known value.
func (s Strategy) Valid() bool {
	switch s {
	case StrategyTransient, StrategyPersistent, StrategyRespectExisting:
		return true
	}
	return false
}

// ParseStrategy converts a configuration string to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	st := Strategy(s)
	if !st.Valid() {
		return "", fmt.Errorf("unknown file lifecycle strategy %q", s)
	}
	return st, nil
}

// shouldClose is the post-operation close decision.
//
// transient closes unless the file is preloaded, persistent never
// closes, respect_existing closes only what this operation opened.
func shouldClose(strategy Strategy, wasAlreadyOpen, preloaded bool) bool {
	switch strategy {
	case StrategyTransient:
		return !preloaded
	case StrategyPersistent:
		return false
	case StrategyRespectExisting:
		return !wasAlreadyOpen
	}
	return false
}
