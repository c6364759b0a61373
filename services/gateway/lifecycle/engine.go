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
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/AleutianAI/langgate/services/gateway/lsp"
)

// Sender delivers document notifications to the peer. Satisfied by
// *lsp.Client.
type Sender interface {
	Notify(method string, params interface{}) error
}

// TrackedFile is the engine's record of one document.
type TrackedFile struct {
	// URI is the file:// identifier sent to the peer.
	URI string

	// Path is the absolute filesystem path.
	Path string

	// Content is the text most recently sent in a didOpen.
	Content string

	// Version increases with every didOpen for this document.
	Version int

	// Open reports whether the peer currently has the document open.
	Open bool

	// Preloaded marks files opened at startup to seed project context.
	// Preloaded files survive transient operations.
	Preloaded bool
}

// OpenState is what Open hands back to the operation for its matching
// Close call and position validation.
type OpenState struct {
	// URI identifies the opened document.
	URI string

	// Path is the absolute filesystem path.
	Path string

	// Content is the document text as sent to the peer.
	Content string

	// WasAlreadyOpen records the tracked state before this call.
	WasAlreadyOpen bool
}

// Engine owns the TrackedFile registry and the didOpen/didClose
// choreography.
//
// Description:
//
//	Resolves operation paths against a fixed workspace root, reads
//	file content per strategy, guarantees the peer never sees two
//	concurrent opens for the same URI by issuing a close-then-reopen
//	pair, and versions every open monotonically. The close decision
//	after an operation follows the strategy table in shouldClose.
//
// Thread Safety:
//
//	Safe for concurrent use.
type Engine struct {
	rootPath  string
	languages map[string]string
	sender    Sender
	logger    *slog.Logger

	mu    sync.Mutex
	files map[string]*TrackedFile
}

// NewEngine creates a lifecycle engine rooted at rootPath.
//
// Inputs:
//
//	rootPath - Absolute workspace root; operation paths resolve under it
//	languages - Extension (without dot) to LSP language identifier
//	sender - Document notification channel to the peer
//	logger - Structured logger; nil falls back to slog.Default()
func NewEngine(rootPath string, languages map[string]string, sender Sender, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		rootPath:  rootPath,
		languages: languages,
		sender:    sender,
		logger:    logger,
		files:     make(map[string]*TrackedFile),
	}
}

// Resolve validates an operation path and returns its absolute form.
//
// Errors:
//
//	lsp.ErrInvalidPath - Path escapes the workspace root or is a directory
//	lsp.ErrFileNotFound - Path does not exist
func (e *Engine) Resolve(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("%w: empty path", lsp.ErrInvalidPath)
	}

	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(e.rootPath, abs)
	}
	abs = filepath.Clean(abs)

	rel, err := filepath.Rel(e.rootPath, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s is outside the workspace root", lsp.ErrInvalidPath, path)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("%w: %s", lsp.ErrFileNotFound, path)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%w: %s is a directory", lsp.ErrInvalidPath, path)
	}
	return abs, nil
}

// Open prepares a document for a request under the given strategy.
//
// Description:
//
//	Resolves the path, reads fresh content when the strategy demands
//	it, sends didClose+didOpen when the document was already open and
//	must be re-read, and otherwise reuses the open document. Returns
//	the state the operation must pass back to Close.
//
// Errors:
//
//	lsp.ErrInvalidPath, lsp.ErrFileNotFound - Validation failures
func (e *Engine) Open(path string, strategy Strategy) (*OpenState, error) {
	abs, err := e.Resolve(path)
	if err != nil {
		return nil, err
	}
	uri := lsp.PathToURI(abs)

	e.mu.Lock()
	defer e.mu.Unlock()

	tracked, exists := e.files[uri]
	wasAlreadyOpen := exists && tracked.Open

	// An already-open document is reused as-is unless the strategy
	// demands fresh content.
	if wasAlreadyOpen && strategy != StrategyTransient {
		return &OpenState{
			URI:            uri,
			Path:           abs,
			Content:        tracked.Content,
			WasAlreadyOpen: true,
		}, nil
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", lsp.ErrFileNotFound, path)
	}
	content := string(data)

	if !exists {
		tracked = &TrackedFile{URI: uri, Path: abs}
		e.files[uri] = tracked
	}

	// Clean slate: the peer must never see two concurrent opens for
	// one URI.
	if wasAlreadyOpen {
		if err := e.sendClose(uri); err != nil {
			return nil, err
		}
		tracked.Open = false
	}

	if err := e.sendOpen(tracked, content); err != nil {
		return nil, err
	}

	return &OpenState{
		URI:            uri,
		Path:           abs,
		Content:        content,
		WasAlreadyOpen: wasAlreadyOpen,
	}, nil
}

// Close applies the post-operation close decision.
//
// Description:
//
//	Computes shouldClose from the strategy, the pre-operation open
//	state, and the preloaded flag, and sends didClose when indicated.
//	Operations must call this on every exit path so a failed request
//	never leaks an open document.
func (e *Engine) Close(state *OpenState, strategy Strategy) error {
	if state == nil {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	tracked, exists := e.files[state.URI]
	if !exists || !tracked.Open {
		return nil
	}
	if !shouldClose(strategy, state.WasAlreadyOpen, tracked.Preloaded) {
		return nil
	}

	if err := e.sendClose(state.URI); err != nil {
		return err
	}
	tracked.Open = false
	return nil
}

// Preload opens documents at startup and pins them open. Preloaded
// documents survive transient operations. Unresolvable paths are
// logged and skipped.
func (e *Engine) Preload(paths []string) {
	for _, path := range paths {
		abs, err := e.Resolve(path)
		if err != nil {
			e.logger.Warn("preload skipped",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			continue
		}
		uri := lsp.PathToURI(abs)

		e.mu.Lock()
		tracked, exists := e.files[uri]
		if !exists {
			tracked = &TrackedFile{URI: uri, Path: abs}
			e.files[uri] = tracked
		}
		tracked.Preloaded = true
		if tracked.Open {
			e.mu.Unlock()
			continue
		}

		data, err := os.ReadFile(abs)
		if err != nil {
			e.mu.Unlock()
			e.logger.Warn("preload read failed",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			continue
		}
		if err := e.sendOpen(tracked, string(data)); err != nil {
			e.mu.Unlock()
			e.logger.Warn("preload open failed",
				slog.String("path", path),
				slog.String("error", err.Error()),
			)
			continue
		}
		e.mu.Unlock()

		e.logger.Debug("preloaded", slog.String("path", abs))
	}
}

// CloseAll closes every open document. Used during shutdown.
func (e *Engine) CloseAll() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, tracked := range e.files {
		if !tracked.Open {
			continue
		}
		if err := e.sendClose(tracked.URI); err != nil {
			e.logger.Debug("close failed during shutdown",
				slog.String("uri", tracked.URI),
				slog.String("error", err.Error()),
			)
			continue
		}
		tracked.Open = false
	}
}

// OpenCount returns the number of currently open documents.
func (e *Engine) OpenCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, tracked := range e.files {
		if tracked.Open {
			n++
		}
	}
	return n
}

// Tracked returns a copy of the tracked record for a URI.
func (e *Engine) Tracked(uri string) (TrackedFile, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	tracked, ok := e.files[uri]
	if !ok {
		return TrackedFile{}, false
	}
	return *tracked, true
}

// sendOpen bumps the version and sends didOpen. Caller holds e.mu.
func (e *Engine) sendOpen(tracked *TrackedFile, content string) error {
	tracked.Version++
	err := e.sender.Notify("textDocument/didOpen", lsp.DidOpenTextDocumentParams{
		TextDocument: lsp.TextDocumentItem{
			URI:        tracked.URI,
			LanguageID: e.languageID(tracked.Path),
			Version:    tracked.Version,
			Text:       content,
		},
	})
	if err != nil {
		tracked.Version--
		return err
	}
	tracked.Content = content
	tracked.Open = true
	return nil
}

// sendClose sends didClose. Caller holds e.mu.
func (e *Engine) sendClose(uri string) error {
	return e.sender.Notify("textDocument/didClose", lsp.DidCloseTextDocumentParams{
		TextDocument: lsp.TextDocumentIdentifier{URI: uri},
	})
}

// languageID maps a file extension to its LSP language identifier.
func (e *Engine) languageID(path string) string {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if id, ok := e.languages[ext]; ok {
		return id
	}
	return "plaintext"
}
