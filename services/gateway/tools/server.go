// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package tools exposes the gateway operations as MCP tools over
// stdio. Each tool delegates to the session engine and returns its
// result as JSON text.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/AleutianAI/langgate/services/gateway/coordinate"
	"github.com/AleutianAI/langgate/services/gateway/engine"
	"github.com/AleutianAI/langgate/services/gateway/lsp"
)

const serverName = "langgate"

// Operations is the engine surface the tools call. Satisfied by
// *engine.Engine.
type Operations interface {
	Search(ctx context.Context, query string) ([]engine.SymbolMatch, error)
	Outline(ctx context.Context, file string) ([]engine.OutlineSymbol, error)
	Inspect(ctx context.Context, file string, pos coordinate.OneBased) (*engine.InspectResult, error)
	References(ctx context.Context, file string, pos coordinate.OneBased) ([]engine.SymbolLocation, error)
	Completion(ctx context.Context, file string, pos coordinate.OneBased) (*engine.CompletionResult, error)
	Rename(ctx context.Context, file string, pos coordinate.OneBased, newName string) (*engine.RenameResult, error)
	Logs(maxType int, clear bool) []lsp.LogEntry
	Diagnostics(file string) ([]engine.FileDiagnostic, error)
}

// New assembles the MCP server with every gateway tool registered.
func New(version string, ops Operations, logger *slog.Logger) *server.MCPServer {
	if logger == nil {
		logger = slog.Default()
	}
	h := &handlers{ops: ops, logger: logger}

	s := server.NewMCPServer(
		serverName,
		version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
		server.WithInstructions(instructions()),
	)

	s.AddTool(searchTool(), h.search)
	s.AddTool(outlineTool(), h.outline)
	s.AddTool(inspectTool(), h.inspect)
	s.AddTool(referencesTool(), h.references)
	s.AddTool(completionTool(), h.completion)
	s.AddTool(renameTool(), h.rename)
	s.AddTool(diagnosticsTool(), h.diagnostics)
	s.AddTool(logsTool(), h.logs)

	return s
}

// Serve blocks serving the MCP protocol on stdin/stdout.
func Serve(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

func instructions() string {
	return `Language intelligence for the configured workspace, backed by a
language server. Positions are 1-based lines and characters. File paths
are relative to the workspace root or absolute within it. Use search to
find symbols by name, outline for file structure, inspect for
everything known about the symbol under a position, references,
complete, and rename for the remaining navigation and edit operations.
diagnostics and logs surface what the language server reported.`
}

// =============================================================================
// TOOL DEFINITIONS
// =============================================================================

func searchTool() mcp.Tool {
	return mcp.NewTool("search",
		mcp.WithDescription("Search workspace symbols by name. Returns matches with kind, container, file path and 1-based position."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Symbol name or fragment to search for."),
		),
	)
}

func outlineTool() mcp.Tool {
	return mcp.NewTool("outline",
		mcp.WithDescription("List the symbol tree of one file with 1-based start and end positions."),
		mcp.WithString("file",
			mcp.Required(),
			mcp.Description("File path, relative to the workspace root or absolute within it."),
		),
	)
}

func inspectTool() mcp.Tool {
	return mcp.NewTool("inspect",
		mcp.WithDescription("Report everything known about the symbol at a position: enclosing symbol, hover text, definition, type definition, and implementations. Partial results carry a degraded list naming the views that failed."),
		mcp.WithString("file",
			mcp.Required(),
			mcp.Description("File path, relative to the workspace root or absolute within it."),
		),
		mcp.WithNumber("line",
			mcp.Required(),
			mcp.Description("1-based line number."),
		),
		mcp.WithNumber("character",
			mcp.Required(),
			mcp.Description("1-based character column."),
		),
	)
}

func referencesTool() mcp.Tool {
	return mcp.NewTool("references",
		mcp.WithDescription("Find all references to the symbol at a position, declaration included."),
		mcp.WithString("file",
			mcp.Required(),
			mcp.Description("File path, relative to the workspace root or absolute within it."),
		),
		mcp.WithNumber("line",
			mcp.Required(),
			mcp.Description("1-based line number."),
		),
		mcp.WithNumber("character",
			mcp.Required(),
			mcp.Description("1-based character column."),
		),
	)
}

func completionTool() mcp.Tool {
	return mcp.NewTool("complete",
		mcp.WithDescription("Request completion candidates at a position."),
		mcp.WithString("file",
			mcp.Required(),
			mcp.Description("File path, relative to the workspace root or absolute within it."),
		),
		mcp.WithNumber("line",
			mcp.Required(),
			mcp.Description("1-based line number."),
		),
		mcp.WithNumber("character",
			mcp.Required(),
			mcp.Description("1-based character column."),
		),
	)
}

func renameTool() mcp.Tool {
	return mcp.NewTool("rename",
		mcp.WithDescription("Compute the workspace edits that rename the symbol at a position. Returns edits grouped by file; nothing is written to disk."),
		mcp.WithString("file",
			mcp.Required(),
			mcp.Description("File path, relative to the workspace root or absolute within it."),
		),
		mcp.WithNumber("line",
			mcp.Required(),
			mcp.Description("1-based line number."),
		),
		mcp.WithNumber("character",
			mcp.Required(),
			mcp.Description("1-based character column."),
		),
		mcp.WithString("new_name",
			mcp.Required(),
			mcp.Description("Replacement symbol name. Must be non-blank."),
		),
	)
}

func diagnosticsTool() mcp.Tool {
	return mcp.NewTool("diagnostics",
		mcp.WithDescription("Return the language server's current diagnostics for one file."),
		mcp.WithString("file",
			mcp.Required(),
			mcp.Description("File path, relative to the workspace root or absolute within it."),
		),
	)
}

func logsTool() mcp.Tool {
	return mcp.NewTool("logs",
		mcp.WithDescription("Return log messages the language server has sent. Severity: 1=error, 2=warning, 3=info, 4=log."),
		mcp.WithNumber("max_type",
			mcp.Description("Only return entries at or below this severity value (1..4). Omit for all."),
		),
		mcp.WithBoolean("clear",
			mcp.Description("Discard accumulated entries after returning them."),
		),
	)
}

// =============================================================================
// HANDLERS
// =============================================================================

type handlers struct {
	ops    Operations
	logger *slog.Logger
}

func (h *handlers) search(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	matches, err := h.ops.Search(ctx, query)
	if err != nil {
		h.logger.Debug("search tool failed", slog.String("query", query), slog.String("error", err.Error()))
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]interface{}{
		"count":   len(matches),
		"matches": matches,
	})
}

func (h *handlers) outline(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	file, err := req.RequireString("file")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	symbols, err := h.ops.Outline(ctx, file)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]interface{}{
		"file":    file,
		"symbols": symbols,
	})
}

func (h *handlers) inspect(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	file, pos, errResult := filePosition(req)
	if errResult != nil {
		return errResult, nil
	}

	result, err := h.ops.Inspect(ctx, file, pos)
	if err != nil {
		h.logger.Debug("inspect tool failed", slog.String("file", file), slog.String("error", err.Error()))
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(result)
}

func (h *handlers) references(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	file, pos, errResult := filePosition(req)
	if errResult != nil {
		return errResult, nil
	}

	locations, err := h.ops.References(ctx, file, pos)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]interface{}{
		"count":      len(locations),
		"references": locations,
	})
}

func (h *handlers) completion(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	file, pos, errResult := filePosition(req)
	if errResult != nil {
		return errResult, nil
	}

	result, err := h.ops.Completion(ctx, file, pos)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(result)
}

func (h *handlers) rename(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	file, pos, errResult := filePosition(req)
	if errResult != nil {
		return errResult, nil
	}
	newName, err := req.RequireString("new_name")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	result, err := h.ops.Rename(ctx, file, pos, newName)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(result)
}

func (h *handlers) diagnostics(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	file, err := req.RequireString("file")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	diags, err := h.ops.Diagnostics(file)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(map[string]interface{}{
		"file":        file,
		"count":       len(diags),
		"diagnostics": diags,
	})
}

func (h *handlers) logs(_ context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	maxType := req.GetInt("max_type", 0)
	if maxType < 0 || maxType > 4 {
		return mcp.NewToolResultError("max_type must be between 1 and 4"), nil
	}
	clear := req.GetBool("clear", false)

	entries := h.ops.Logs(maxType, clear)
	return jsonResult(map[string]interface{}{
		"count":   len(entries),
		"entries": entries,
	})
}

// =============================================================================
// HELPERS
// =============================================================================

// filePosition extracts the file path and 1-based position shared by
// the positional tools. The third return is non-nil on argument error.
func filePosition(req mcp.CallToolRequest) (string, coordinate.OneBased, *mcp.CallToolResult) {
	var zero coordinate.OneBased

	file, err := req.RequireString("file")
	if err != nil {
		return "", zero, mcp.NewToolResultError(err.Error())
	}
	line, err := req.RequireInt("line")
	if err != nil {
		return "", zero, mcp.NewToolResultError(err.Error())
	}
	character, err := req.RequireInt("character")
	if err != nil {
		return "", zero, mcp.NewToolResultError(err.Error())
	}

	pos, err := coordinate.NewOneBased(line, character)
	if err != nil {
		return "", zero, mcp.NewToolResultError(err.Error())
	}
	return file, pos, nil
}

func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
