// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package tools

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/langgate/services/gateway/coordinate"
	"github.com/AleutianAI/langgate/services/gateway/engine"
	"github.com/AleutianAI/langgate/services/gateway/lsp"
)

type fakeOps struct {
	searchErr  error
	inspectErr error

	lastQuery   string
	lastFile    string
	lastPos     coordinate.OneBased
	lastNewName string
	lastMaxType int
	lastClear   bool
}

func (f *fakeOps) Search(_ context.Context, query string) ([]engine.SymbolMatch, error) {
	f.lastQuery = query
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	return []engine.SymbolMatch{{Name: "ParseConfig", Kind: "function", Path: "/ws/config.go"}}, nil
}

func (f *fakeOps) Outline(_ context.Context, file string) ([]engine.OutlineSymbol, error) {
	f.lastFile = file
	return []engine.OutlineSymbol{{Name: "Server", Kind: "struct"}}, nil
}

func (f *fakeOps) Inspect(_ context.Context, file string, pos coordinate.OneBased) (*engine.InspectResult, error) {
	f.lastFile, f.lastPos = file, pos
	if f.inspectErr != nil {
		return nil, f.inspectErr
	}
	hover := "func ParseConfig() error"
	return &engine.InspectResult{Hover: &hover}, nil
}

func (f *fakeOps) References(_ context.Context, file string, pos coordinate.OneBased) ([]engine.SymbolLocation, error) {
	f.lastFile, f.lastPos = file, pos
	return []engine.SymbolLocation{{Path: "/ws/main.go"}}, nil
}

func (f *fakeOps) Completion(_ context.Context, file string, pos coordinate.OneBased) (*engine.CompletionResult, error) {
	f.lastFile, f.lastPos = file, pos
	return &engine.CompletionResult{Items: []engine.CompletionItem{{Label: "Println"}}}, nil
}

func (f *fakeOps) Rename(_ context.Context, file string, pos coordinate.OneBased, newName string) (*engine.RenameResult, error) {
	f.lastFile, f.lastPos, f.lastNewName = file, pos, newName
	return &engine.RenameResult{Changes: map[string][]engine.TextEdit{}}, nil
}

func (f *fakeOps) Logs(maxType int, clear bool) []lsp.LogEntry {
	f.lastMaxType, f.lastClear = maxType, clear
	return []lsp.LogEntry{{Type: 1, Message: "boom"}}
}

func (f *fakeOps) Diagnostics(file string) ([]engine.FileDiagnostic, error) {
	f.lastFile = file
	return []engine.FileDiagnostic{{Severity: 1, Message: "undefined: x"}}, nil
}

func callRequest(args map[string]interface{}) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content, got %T", res.Content[0])
	return text.Text
}

func newHandlers() (*handlers, *fakeOps) {
	ops := &fakeOps{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &handlers{ops: ops, logger: logger}, ops
}

func TestNewRegistersTools(t *testing.T) {
	ops := &fakeOps{}
	s := New("1.0.0", ops, nil)
	require.NotNil(t, s)
}

func TestSearchHandler(t *testing.T) {
	h, ops := newHandlers()

	res, err := h.search(context.Background(), callRequest(map[string]interface{}{"query": "Parse"}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	assert.Equal(t, "Parse", ops.lastQuery)

	var body struct {
		Count   int                  `json:"count"`
		Matches []engine.SymbolMatch `json:"matches"`
	}
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &body))
	require.Equal(t, 1, body.Count)
	assert.Equal(t, "ParseConfig", body.Matches[0].Name)
}

func TestSearchMissingQuery(t *testing.T) {
	h, _ := newHandlers()

	res, err := h.search(context.Background(), callRequest(map[string]interface{}{}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestSearchEngineError(t *testing.T) {
	h, ops := newHandlers()
	ops.searchErr = lsp.ErrWorkspaceLoading

	res, err := h.search(context.Background(), callRequest(map[string]interface{}{"query": "x"}))
	require.NoError(t, err)
	require.True(t, res.IsError)
	assert.Contains(t, resultText(t, res), "workspace")
}

func TestInspectHandler(t *testing.T) {
	h, ops := newHandlers()

	res, err := h.inspect(context.Background(), callRequest(map[string]interface{}{
		"file":      "main.go",
		"line":      float64(12),
		"character": float64(5),
	}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	assert.Equal(t, "main.go", ops.lastFile)
	assert.Equal(t, 12, ops.lastPos.Line)
	assert.Equal(t, 5, ops.lastPos.Character)
}

func TestPositionValidation(t *testing.T) {
	h, _ := newHandlers()

	cases := []struct {
		name string
		args map[string]interface{}
	}{
		{"missing file", map[string]interface{}{"line": float64(1), "character": float64(1)}},
		{"missing line", map[string]interface{}{"file": "a.go", "character": float64(1)}},
		{"missing character", map[string]interface{}{"file": "a.go", "line": float64(1)}},
		{"zero line", map[string]interface{}{"file": "a.go", "line": float64(0), "character": float64(1)}},
		{"negative character", map[string]interface{}{"file": "a.go", "line": float64(1), "character": float64(-3)}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			res, err := h.inspect(context.Background(), callRequest(tc.args))
			require.NoError(t, err)
			assert.True(t, res.IsError)
		})
	}
}

func TestRenameHandler(t *testing.T) {
	h, ops := newHandlers()

	res, err := h.rename(context.Background(), callRequest(map[string]interface{}{
		"file":      "main.go",
		"line":      float64(3),
		"character": float64(8),
		"new_name":  "Renamed",
	}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	assert.Equal(t, "Renamed", ops.lastNewName)
}

func TestRenameMissingNewName(t *testing.T) {
	h, _ := newHandlers()

	res, err := h.rename(context.Background(), callRequest(map[string]interface{}{
		"file":      "main.go",
		"line":      float64(3),
		"character": float64(8),
	}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestLogsHandler(t *testing.T) {
	h, ops := newHandlers()

	res, err := h.logs(context.Background(), callRequest(map[string]interface{}{
		"max_type": float64(2),
		"clear":    true,
	}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	assert.Equal(t, 2, ops.lastMaxType)
	assert.True(t, ops.lastClear)
}

func TestLogsInvalidThreshold(t *testing.T) {
	h, _ := newHandlers()

	res, err := h.logs(context.Background(), callRequest(map[string]interface{}{"max_type": float64(9)}))
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestDiagnosticsHandler(t *testing.T) {
	h, ops := newHandlers()

	res, err := h.diagnostics(context.Background(), callRequest(map[string]interface{}{"file": "broken.go"}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	assert.Equal(t, "broken.go", ops.lastFile)
	assert.Contains(t, resultText(t, res), "undefined: x")
}

func TestCompletionHandler(t *testing.T) {
	h, _ := newHandlers()

	res, err := h.completion(context.Background(), callRequest(map[string]interface{}{
		"file":      "main.go",
		"line":      float64(1),
		"character": float64(1),
	}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	assert.Contains(t, resultText(t, res), "Println")
}
