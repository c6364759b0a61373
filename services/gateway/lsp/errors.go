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
	"errors"
	"fmt"
)

// Sentinel errors for peer operations.
var (
	// ErrSpawn indicates the peer binary was not found or not executable.
	ErrSpawn = errors.New("peer binary not found or not executable")

	// ErrPeerNotRunning indicates the peer connection is not in a ready state.
	ErrPeerNotRunning = errors.New("peer not running")

	// ErrNotInitialized indicates a request before the initialize handshake.
	ErrNotInitialized = errors.New("peer not initialized")

	// ErrInitializeFailed indicates the initialize handshake failed.
	ErrInitializeFailed = errors.New("initialize failed")

	// ErrRequestTimeout indicates the request exceeded its timeout.
	ErrRequestTimeout = errors.New("request timeout")

	// ErrPeerCrashed indicates the peer process terminated unexpectedly.
	ErrPeerCrashed = errors.New("peer crashed")

	// ErrInvalidResponse indicates the peer response could not be parsed.
	ErrInvalidResponse = errors.New("invalid peer response")

	// ErrAlreadyConnected indicates Connect was called on a live connection.
	ErrAlreadyConnected = errors.New("already connected")

	// ErrWorkspaceLoading indicates an operation before workspace readiness.
	// Retryable by the caller once loading completes.
	ErrWorkspaceLoading = errors.New("workspace load in progress")

	// ErrFileNotFound indicates the target file does not exist on disk.
	ErrFileNotFound = errors.New("file not found")

	// ErrInvalidPath indicates a path outside the workspace root or
	// otherwise unresolvable.
	ErrInvalidPath = errors.New("invalid path")

	// ErrPositionOutOfBounds indicates a position past the end of the file.
	ErrPositionOutOfBounds = errors.New("position out of bounds")

	// ErrShutdownTimeout indicates the peer ignored shutdown and exit and
	// had to be force-killed.
	ErrShutdownTimeout = errors.New("shutdown timeout")
)

// ProtocolError represents an error returned by the peer via JSON-RPC, or
// a transport failure scoped to a single request.
//
// LSP error codes follow the JSON-RPC spec plus LSP-specific codes:
//   - -32700: Parse error
//   - -32600: Invalid request
//   - -32601: Method not found
//   - -32602: Invalid params
//   - -32603: Internal error
//   - -32099 to -32000: Server error (reserved)
//   - -32802: Server not initialized
//   - -32801: Unknown error code
//   - -32800: Request cancelled
type ProtocolError struct {
	// Code is the JSON-RPC error code.
	Code int

	// Message is the error message from the peer.
	Message string

	// Data contains optional additional data about the error.
	Data interface{}
}

// Error implements the error interface.
func (e *ProtocolError) Error() string {
	if e.Data != nil {
		return fmt.Sprintf("protocol error %d: %s (data: %v)", e.Code, e.Message, e.Data)
	}
	return fmt.Sprintf("protocol error %d: %s", e.Code, e.Message)
}

// IsMethodNotFound returns true if the method is not supported by the peer.
func (e *ProtocolError) IsMethodNotFound() bool {
	return e.Code == -32601
}

// IsRequestCancelled returns true if the request was cancelled.
func (e *ProtocolError) IsRequestCancelled() bool {
	return e.Code == -32800
}

// IsServerNotInitialized returns true if the peer reported it is not
// initialized.
func (e *ProtocolError) IsServerNotInitialized() bool {
	return e.Code == -32802
}
