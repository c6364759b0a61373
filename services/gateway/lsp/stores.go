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

import (
	"sync"
	"time"
)

// =============================================================================
// DIAGNOSTICS STORE
// =============================================================================

// DiagnosticsStore holds the latest published diagnostics per document.
//
// Description:
//
//	Populated solely by textDocument/publishDiagnostics notifications;
//	each publication replaces the document's previous set, matching the
//	protocol's replace semantics. Read-only from the operation side.
//
// Thread Safety:
//
//	Safe for concurrent use.
type DiagnosticsStore struct {
	mu   sync.RWMutex
	byURI map[string][]Diagnostic
}

// NewDiagnosticsStore creates an empty diagnostics store.
func NewDiagnosticsStore() *DiagnosticsStore {
	return &DiagnosticsStore{byURI: make(map[string][]Diagnostic)}
}

// Publish replaces all diagnostics for a document.
func (s *DiagnosticsStore) Publish(uri string, diags []Diagnostic) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(diags) == 0 {
		delete(s.byURI, uri)
		return
	}
	stored := make([]Diagnostic, len(diags))
	copy(stored, diags)
	s.byURI[uri] = stored
}

// Get returns the current diagnostics for a document.
func (s *DiagnosticsStore) Get(uri string) []Diagnostic {
	s.mu.RLock()
	defer s.mu.RUnlock()
	diags := s.byURI[uri]
	out := make([]Diagnostic, len(diags))
	copy(out, diags)
	return out
}

// DocumentCount returns the number of documents with active diagnostics.
func (s *DiagnosticsStore) DocumentCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byURI)
}

// =============================================================================
// LOG STORE
// =============================================================================

// LogEntry is one window/logMessage record with arrival time.
type LogEntry struct {
	// Type is 1=error, 2=warning, 3=info, 4=log.
	Type int `json:"type"`

	// Message is the log text.
	Message string `json:"message"`

	// ReceivedAt is when the gateway received the message.
	ReceivedAt time.Time `json:"received_at"`
}

// LogStore accumulates peer log messages in arrival order.
//
// Thread Safety:
//
//	Safe for concurrent use.
type LogStore struct {
	mu      sync.RWMutex
	entries []LogEntry
}

// NewLogStore creates an empty log store.
func NewLogStore() *LogStore {
	return &LogStore{}
}

// Append records a peer log message.
func (s *LogStore) Append(msgType int, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, LogEntry{
		Type:       msgType,
		Message:    message,
		ReceivedAt: time.Now(),
	})
}

// Snapshot returns a copy of all accumulated entries.
func (s *LogStore) Snapshot() []LogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]LogEntry, len(s.entries))
	copy(out, s.entries)
	return out
}

// SnapshotSince returns entries at or below the given type threshold.
// LSP message types order severity ascending (1=error .. 4=log), so a
// threshold of 2 yields errors and warnings.
func (s *LogStore) SnapshotSince(maxType int) []LogEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []LogEntry
	for _, e := range s.entries {
		if e.Type <= maxType {
			out = append(out, e)
		}
	}
	return out
}

// Clear discards all accumulated entries.
func (s *LogStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
}

// Len returns the number of accumulated entries.
func (s *LogStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
