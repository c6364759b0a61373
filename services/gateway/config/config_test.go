// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/langgate/services/gateway/workspace"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "langgate.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	t.Run("minimal config with defaults", func(t *testing.T) {
		root := t.TempDir()
		path := writeConfig(t, `
workspace:
  root: `+root+`
peer:
  command: gopls
`)
		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, "gopls", cfg.Peer.Command)
		assert.Equal(t, workspace.KindDefault, cfg.Workspace.Loader.Kind)
		assert.Equal(t, 10, cfg.Workspace.ShutdownTimeoutSeconds)
		assert.Equal(t, "go", cfg.Files.Languages["go"])
		assert.Equal(t, "info", cfg.Logging.Level)
		assert.Equal(t, "none", cfg.Telemetry.TraceExporter)
	})

	t.Run("full config", func(t *testing.T) {
		root := t.TempDir()
		path := writeConfig(t, `
workspace:
  root: `+root+`
  loader:
    kind: project
    ready_method: workspace/projectInitializationComplete
    project_globs: ["go.mod"]
    watch: true
  preload_globs: ["*.go"]
  shutdown_timeout_seconds: 30
peer:
  command: gopls
  args: ["serve"]
  env:
    GOFLAGS: -mod=readonly
  requests_per_second: 20
files:
  languages:
    go: go
status:
  enabled: true
telemetry:
  trace_exporter: otlp
  metric_exporter: prometheus
  otlp_endpoint: localhost:4317
logging:
  level: debug
  json: true
`)
		cfg, err := Load(path)
		require.NoError(t, err)

		assert.Equal(t, workspace.KindProject, cfg.Workspace.Loader.Kind)
		assert.True(t, cfg.Workspace.Loader.Watch)
		assert.Equal(t, []string{"serve"}, cfg.Peer.Args)
		assert.Equal(t, "-mod=readonly", cfg.Peer.Env["GOFLAGS"])
		assert.Equal(t, "127.0.0.1:8732", cfg.Status.Address, "enabled listener gets a default address")
		assert.Equal(t, "otlp", cfg.Telemetry.TraceExporter)
	})

	t.Run("missing peer command", func(t *testing.T) {
		path := writeConfig(t, `
workspace:
  root: /tmp/ws
peer:
  args: ["serve"]
`)
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("missing workspace root", func(t *testing.T) {
		path := writeConfig(t, `
peer:
  command: gopls
`)
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("bad loader kind", func(t *testing.T) {
		path := writeConfig(t, `
workspace:
  root: /tmp/ws
  loader:
    kind: exotic
peer:
  command: gopls
`)
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("negative rate", func(t *testing.T) {
		path := writeConfig(t, `
workspace:
  root: /tmp/ws
peer:
  command: gopls
  requests_per_second: -1
`)
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("malformed yaml", func(t *testing.T) {
		path := writeConfig(t, "workspace: [unclosed")
		_, err := Load(path)
		assert.Error(t, err)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Load("/nonexistent/langgate.yaml")
		assert.Error(t, err)
	})
}

func TestSessionConfig(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "main.go"), []byte("package main\n"), 0o644))

	path := writeConfig(t, `
workspace:
  root: `+root+`
  preload_globs: ["*.go"]
  shutdown_timeout_seconds: 5
peer:
  command: gopls
  requests_per_second: 10
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	sc := cfg.SessionConfig()
	assert.Equal(t, root, sc.RootPath)
	assert.Equal(t, "gopls", sc.Peer.Command)
	assert.Equal(t, 10.0, sc.Peer.RequestsPerSecond)
	assert.Equal(t, 5*time.Second, sc.ShutdownTimeout)
	require.Len(t, sc.PreloadFiles, 1)
	assert.Equal(t, filepath.Join(root, "main.go"), sc.PreloadFiles[0])
}
