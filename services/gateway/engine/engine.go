// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package engine composes the peer connection, workspace readiness,
// file lifecycle, and cursor resolution into the outward operations.
package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/langgate/services/gateway/coordinate"
	"github.com/AleutianAI/langgate/services/gateway/lifecycle"
	"github.com/AleutianAI/langgate/services/gateway/lsp"
)

// Peer is the protocol surface the engine drives. Satisfied by
// *lsp.Client.
type Peer interface {
	Request(ctx context.Context, method string, params interface{}) (*lsp.Response, error)
	Notify(method string, params interface{}) error
}

// Readiness gates workspace-scoped queries. Satisfied by
// *workspace.Manager.
type Readiness interface {
	Ready() bool
}

// Engine executes the outward operations against one peer.
//
// Description:
//
//	Every operation follows the same shape: validate (readiness, file,
//	position bounds) with no peer side effects, open the file per
//	strategy, issue protocol requests in 0-based coordinates, convert
//	results back to 1-based, and close per strategy on every exit
//	path. The peer connection is the only shared mutable resource;
//	operations on different files interleave freely.
//
// Thread Safety:
//
//	Safe for concurrent use.
type Engine struct {
	peer        Peer
	files       *lifecycle.Engine
	readiness   Readiness
	diagnostics *lsp.DiagnosticsStore
	logs        *lsp.LogStore
	logger      *slog.Logger
	tracer      trace.Tracer
}

// NewEngine wires an engine over already-constructed collaborators.
func NewEngine(peer Peer, files *lifecycle.Engine, readiness Readiness, diagnostics *lsp.DiagnosticsStore, logs *lsp.LogStore, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		peer:        peer,
		files:       files,
		readiness:   readiness,
		diagnostics: diagnostics,
		logs:        logs,
		logger:      logger,
		tracer:      otel.Tracer("langgate.engine"),
	}
}

// =============================================================================
// OPERATIONS
// =============================================================================

// Search finds workspace symbols matching a query.
//
// Description:
//
//	Workspace-scoped; no file argument and no lifecycle involvement.
//
// Errors:
//
//	lsp.ErrWorkspaceLoading - Peer still loading the project
//	*lsp.ProtocolError - Peer rejected the request
func (e *Engine) Search(ctx context.Context, query string) ([]SymbolMatch, error) {
	ctx, span, opID := e.startOperation(ctx, "search")
	defer span.End()

	if !e.readiness.Ready() {
		recordOperation(ctx, "search", false)
		return nil, lsp.ErrWorkspaceLoading
	}

	resp, err := e.peer.Request(ctx, "workspace/symbol", lsp.WorkspaceSymbolParams{Query: query})
	if err != nil {
		recordOperation(ctx, "search", false)
		return nil, err
	}
	symbols, err := lsp.ParseSymbolInformation(resp.Result)
	if err != nil {
		recordOperation(ctx, "search", false)
		return nil, err
	}

	matches := make([]SymbolMatch, 0, len(symbols))
	for _, s := range symbols {
		zero, err := coordinate.NewZeroBased(s.Location.Range.Start.Line, s.Location.Range.Start.Character)
		if err != nil {
			continue
		}
		matches = append(matches, SymbolMatch{
			Name:      s.Name,
			Kind:      s.Kind.String(),
			Container: s.ContainerName,
			Path:      lsp.URIToPath(s.Location.URI),
			Position:  zero.ToOneBased(),
		})
	}

	e.logger.Debug("search complete",
		slog.String("op_id", opID),
		slog.String("query", query),
		slog.Int("matches", len(matches)),
	)
	recordOperation(ctx, "search", true)
	return matches, nil
}

// Outline returns a document's symbol tree in caller coordinates.
func (e *Engine) Outline(ctx context.Context, file string) ([]OutlineSymbol, error) {
	ctx, span, opID := e.startOperation(ctx, "outline")
	defer span.End()

	var outline []OutlineSymbol
	err := e.withDocument(ctx, opID, file, nil, lifecycle.StrategyTransient,
		func(ctx context.Context, state *lifecycle.OpenState, _ coordinate.ZeroBased) error {
			symbols, err := e.requestOutline(ctx, state.URI)
			if err != nil {
				return err
			}
			outline = convertOutline(symbols)
			return nil
		})
	recordOperation(ctx, "outline", err == nil)
	if err != nil {
		return nil, err
	}
	return outline, nil
}

// inspect sub-request names, reported in InspectResult.Degraded.
const (
	subHover          = "hover"
	subDefinition     = "definition"
	subTypeDefinition = "typeDefinition"
	subImplementation = "implementation"
)

// Inspect aggregates hover, definition, type definition, and
// implementation for one position.
//
// Description:
//
//	The four navigation requests run concurrently and fail
//	independently; a failed sub-request degrades its field to nil and
//	is named in Degraded. The cursor symbol is resolved from the
//	document outline first; its absence is not an error.
func (e *Engine) Inspect(ctx context.Context, file string, pos coordinate.OneBased) (*InspectResult, error) {
	ctx, span, opID := e.startOperation(ctx, "inspect")
	defer span.End()

	result := &InspectResult{}
	err := e.withDocument(ctx, opID, file, &pos, lifecycle.StrategyTransient,
		func(ctx context.Context, state *lifecycle.OpenState, zero coordinate.ZeroBased) error {
			if symbols, err := e.requestOutline(ctx, state.URI); err == nil {
				result.Symbol = resolveCursor(symbols, state.Content, zero)
			}

			posParams := lsp.TextDocumentPositionParams{
				TextDocument: lsp.TextDocumentIdentifier{URI: state.URI},
				Position:     lsp.Position{Line: zero.Line, Character: zero.Character},
			}

			var group errgroup.Group
			var degraded [4]string

			group.Go(func() error {
				resp, err := e.peer.Request(ctx, "textDocument/hover", posParams)
				if err == nil {
					result.Hover, err = lsp.ParseHover(resp.Result)
				}
				if err != nil {
					degraded[0] = subHover
					e.logSubRequest(opID, subHover, err)
				}
				return nil
			})
			group.Go(func() error {
				locs, err := e.requestLocations(ctx, "textDocument/definition", posParams)
				if err != nil {
					degraded[1] = subDefinition
					e.logSubRequest(opID, subDefinition, err)
					return nil
				}
				result.Definition = locs
				return nil
			})
			group.Go(func() error {
				locs, err := e.requestLocations(ctx, "textDocument/typeDefinition", posParams)
				if err != nil {
					degraded[2] = subTypeDefinition
					e.logSubRequest(opID, subTypeDefinition, err)
					return nil
				}
				result.TypeDefinition = locs
				return nil
			})
			group.Go(func() error {
				locs, err := e.requestLocations(ctx, "textDocument/implementation", posParams)
				if err != nil {
					degraded[3] = subImplementation
					e.logSubRequest(opID, subImplementation, err)
					return nil
				}
				result.Implementation = locs
				return nil
			})
			_ = group.Wait()

			for _, name := range degraded {
				if name != "" {
					result.Degraded = append(result.Degraded, name)
				}
			}
			return nil
		})
	recordOperation(ctx, "inspect", err == nil)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// References finds all references to the symbol at a position,
// including its declaration.
func (e *Engine) References(ctx context.Context, file string, pos coordinate.OneBased) ([]SymbolLocation, error) {
	ctx, span, opID := e.startOperation(ctx, "references")
	defer span.End()

	var refs []SymbolLocation
	err := e.withDocument(ctx, opID, file, &pos, lifecycle.StrategyTransient,
		func(ctx context.Context, state *lifecycle.OpenState, zero coordinate.ZeroBased) error {
			params := lsp.ReferenceParams{
				TextDocumentPositionParams: lsp.TextDocumentPositionParams{
					TextDocument: lsp.TextDocumentIdentifier{URI: state.URI},
					Position:     lsp.Position{Line: zero.Line, Character: zero.Character},
				},
				Context: lsp.ReferenceContext{IncludeDeclaration: true},
			}
			locs, err := e.requestLocations(ctx, "textDocument/references", params)
			if err != nil {
				return err
			}
			refs = locs
			return nil
		})
	recordOperation(ctx, "references", err == nil)
	if err != nil {
		return nil, err
	}
	return refs, nil
}

// Completion returns completion suggestions for a position.
func (e *Engine) Completion(ctx context.Context, file string, pos coordinate.OneBased) (*CompletionResult, error) {
	ctx, span, opID := e.startOperation(ctx, "completion")
	defer span.End()

	var result *CompletionResult
	err := e.withDocument(ctx, opID, file, &pos, lifecycle.StrategyTransient,
		func(ctx context.Context, state *lifecycle.OpenState, zero coordinate.ZeroBased) error {
			params := lsp.CompletionParams{
				TextDocumentPositionParams: lsp.TextDocumentPositionParams{
					TextDocument: lsp.TextDocumentIdentifier{URI: state.URI},
					Position:     lsp.Position{Line: zero.Line, Character: zero.Character},
				},
			}
			resp, err := e.peer.Request(ctx, "textDocument/completion", params)
			if err != nil {
				return err
			}
			list, err := lsp.ParseCompletions(resp.Result)
			if err != nil {
				return err
			}

			items := make([]CompletionItem, 0, len(list.Items))
			for _, item := range list.Items {
				items = append(items, CompletionItem{
					Label:      item.Label,
					Kind:       item.Kind,
					Detail:     item.Detail,
					InsertText: item.InsertText,
				})
			}
			result = &CompletionResult{IsIncomplete: list.IsIncomplete, Items: items}
			return nil
		})
	recordOperation(ctx, "completion", err == nil)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Rename computes the workspace edits for renaming the symbol at a
// position. The edits are returned, never applied.
func (e *Engine) Rename(ctx context.Context, file string, pos coordinate.OneBased, newName string) (*RenameResult, error) {
	ctx, span, opID := e.startOperation(ctx, "rename")
	defer span.End()

	if strings.TrimSpace(newName) == "" {
		recordOperation(ctx, "rename", false)
		return nil, fmt.Errorf("%w: new name must not be empty", lsp.ErrInvalidPath)
	}

	var result *RenameResult
	err := e.withDocument(ctx, opID, file, &pos, lifecycle.StrategyTransient,
		func(ctx context.Context, state *lifecycle.OpenState, zero coordinate.ZeroBased) error {
			params := lsp.RenameParams{
				TextDocumentPositionParams: lsp.TextDocumentPositionParams{
					TextDocument: lsp.TextDocumentIdentifier{URI: state.URI},
					Position:     lsp.Position{Line: zero.Line, Character: zero.Character},
				},
				NewName: newName,
			}
			resp, err := e.peer.Request(ctx, "textDocument/rename", params)
			if err != nil {
				return err
			}

			var edit lsp.WorkspaceEdit
			if len(resp.Result) > 0 && string(resp.Result) != "null" {
				if err := json.Unmarshal(resp.Result, &edit); err != nil {
					return lsp.ErrInvalidResponse
				}
			}
			result = convertWorkspaceEdit(&edit)
			return nil
		})
	recordOperation(ctx, "rename", err == nil)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// Logs returns accumulated peer log messages.
//
// Inputs:
//
//	maxType - Highest message type to include (1=error .. 4=log);
//	          0 means everything
//	clear - Discard the store after snapshotting
func (e *Engine) Logs(maxType int, clear bool) []lsp.LogEntry {
	var entries []lsp.LogEntry
	if maxType > 0 {
		entries = e.logs.SnapshotSince(maxType)
	} else {
		entries = e.logs.Snapshot()
	}
	if clear {
		e.logs.Clear()
	}
	return entries
}

// Diagnostics returns the stored diagnostics for a file in caller
// coordinates. A file the peer never reported on yields an empty list.
func (e *Engine) Diagnostics(file string) ([]FileDiagnostic, error) {
	abs, err := e.files.Resolve(file)
	if err != nil {
		return nil, err
	}

	stored := e.diagnostics.Get(lsp.PathToURI(abs))
	out := make([]FileDiagnostic, 0, len(stored))
	for _, d := range stored {
		start, err := coordinate.NewZeroBased(d.Range.Start.Line, d.Range.Start.Character)
		if err != nil {
			continue
		}
		end, err := coordinate.NewZeroBased(d.Range.End.Line, d.Range.End.Character)
		if err != nil {
			continue
		}
		out = append(out, FileDiagnostic{
			Severity: d.Severity,
			Message:  d.Message,
			Source:   d.Source,
			Start:    start.ToOneBased(),
			End:      end.ToOneBased(),
		})
	}
	return out, nil
}

// =============================================================================
// OPERATION SHAPE
// =============================================================================

// withDocument is the shared operation body: validate, open, run,
// close on every exit path.
//
// Description:
//
//	Validation happens before any peer side effect: a readiness, path,
//	or bounds failure sends zero open/close notifications. The close
//	decision is the lifecycle engine's; a close failure after a
//	successful body is logged, not surfaced, because the operation's
//	result already stands.
func (e *Engine) withDocument(ctx context.Context, opID, file string, pos *coordinate.OneBased, strategy lifecycle.Strategy, fn func(context.Context, *lifecycle.OpenState, coordinate.ZeroBased) error) error {
	if !e.readiness.Ready() {
		return lsp.ErrWorkspaceLoading
	}

	abs, err := e.files.Resolve(file)
	if err != nil {
		return err
	}

	var zero coordinate.ZeroBased
	if pos != nil {
		if err := validateBounds(abs, *pos); err != nil {
			return err
		}
		zero = pos.ToZeroBased()
	}

	state, err := e.files.Open(file, strategy)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := e.files.Close(state, strategy); closeErr != nil {
			e.logger.Warn("document close failed",
				slog.String("op_id", opID),
				slog.String("uri", state.URI),
				slog.String("error", closeErr.Error()),
			)
		}
	}()

	return fn(ctx, state, zero)
}

// validateBounds rejects positions past the end of the file before
// anything is sent to the peer.
func validateBounds(absPath string, pos coordinate.OneBased) error {
	data, err := os.ReadFile(absPath)
	if err != nil {
		return fmt.Errorf("%w: %s", lsp.ErrFileNotFound, absPath)
	}
	lines := strings.Split(string(data), "\n")
	if pos.Line > len(lines) {
		return fmt.Errorf("%w: line %d exceeds %d lines", lsp.ErrPositionOutOfBounds, pos.Line, len(lines))
	}
	// One past the last character is a valid cursor position.
	line := lines[pos.Line-1]
	if pos.Character > len(line)+1 {
		return fmt.Errorf("%w: character %d exceeds line length %d", lsp.ErrPositionOutOfBounds, pos.Character, len(line))
	}
	return nil
}

// =============================================================================
// REQUEST HELPERS
// =============================================================================

// requestOutline fetches and normalizes a document's symbols.
func (e *Engine) requestOutline(ctx context.Context, uri string) ([]lsp.DocumentSymbol, error) {
	resp, err := e.peer.Request(ctx, "textDocument/documentSymbol", lsp.DocumentSymbolParams{
		TextDocument: lsp.TextDocumentIdentifier{URI: uri},
	})
	if err != nil {
		return nil, err
	}
	return lsp.ParseDocumentSymbols(resp.Result)
}

// requestLocations issues a definition-family request and converts the
// result to caller coordinates.
func (e *Engine) requestLocations(ctx context.Context, method string, params interface{}) ([]SymbolLocation, error) {
	resp, err := e.peer.Request(ctx, method, params)
	if err != nil {
		return nil, err
	}
	locs, err := lsp.ParseLocations(resp.Result)
	if err != nil {
		return nil, err
	}
	return convertLocations(locs), nil
}

func (e *Engine) logSubRequest(opID, name string, err error) {
	e.logger.Debug("inspect sub-request degraded",
		slog.String("op_id", opID),
		slog.String("sub_request", name),
		slog.String("error", err.Error()),
	)
}

// startOperation opens a span and assigns an operation id.
func (e *Engine) startOperation(ctx context.Context, name string) (context.Context, trace.Span, string) {
	opID := uuid.NewString()[:8]
	ctx, span := e.tracer.Start(ctx, "engine."+name,
		trace.WithAttributes(attribute.String("op_id", opID)),
	)
	return ctx, span, opID
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func convertLocations(locs []lsp.Location) []SymbolLocation {
	out := make([]SymbolLocation, 0, len(locs))
	for _, loc := range locs {
		start, err := coordinate.NewZeroBased(loc.Range.Start.Line, loc.Range.Start.Character)
		if err != nil {
			continue
		}
		end, err := coordinate.NewZeroBased(loc.Range.End.Line, loc.Range.End.Character)
		if err != nil {
			continue
		}
		out = append(out, SymbolLocation{
			Path:  lsp.URIToPath(loc.URI),
			Start: start.ToOneBased(),
			End:   end.ToOneBased(),
		})
	}
	return out
}

func convertOutline(symbols []lsp.DocumentSymbol) []OutlineSymbol {
	out := make([]OutlineSymbol, 0, len(symbols))
	for _, s := range symbols {
		start, err := coordinate.NewZeroBased(s.Range.Start.Line, s.Range.Start.Character)
		if err != nil {
			continue
		}
		end, err := coordinate.NewZeroBased(s.Range.End.Line, s.Range.End.Character)
		if err != nil {
			continue
		}
		out = append(out, OutlineSymbol{
			Name:     s.Name,
			Detail:   s.Detail,
			Kind:     s.Kind.String(),
			Start:    start.ToOneBased(),
			End:      end.ToOneBased(),
			Children: convertOutline(s.Children),
		})
	}
	return out
}

func convertWorkspaceEdit(edit *lsp.WorkspaceEdit) *RenameResult {
	result := &RenameResult{Changes: make(map[string][]TextEdit)}

	addEdits := func(uri string, edits []lsp.TextEdit) {
		path := lsp.URIToPath(uri)
		for _, te := range edits {
			start, err := coordinate.NewZeroBased(te.Range.Start.Line, te.Range.Start.Character)
			if err != nil {
				continue
			}
			end, err := coordinate.NewZeroBased(te.Range.End.Line, te.Range.End.Character)
			if err != nil {
				continue
			}
			result.Changes[path] = append(result.Changes[path], TextEdit{
				Start:   start.ToOneBased(),
				End:     end.ToOneBased(),
				NewText: te.NewText,
			})
		}
	}

	for uri, edits := range edit.Changes {
		addEdits(uri, edits)
	}
	for _, docEdit := range edit.DocumentChanges {
		addEdits(docEdit.TextDocument.URI, docEdit.Edits)
	}
	return result
}
