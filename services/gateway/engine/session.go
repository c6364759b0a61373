// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/AleutianAI/langgate/services/gateway/lifecycle"
	"github.com/AleutianAI/langgate/services/gateway/lsp"
	"github.com/AleutianAI/langgate/services/gateway/workspace"
)

// SessionConfig describes one peer session.
type SessionConfig struct {
	// RootPath is the workspace root all operation paths resolve under.
	RootPath string

	// Peer describes how to launch the language server.
	Peer lsp.PeerConfig

	// Workspace selects the readiness strategy.
	Workspace workspace.Config

	// Languages maps file extensions (without dot) to LSP language
	// identifiers.
	Languages map[string]string

	// PreloadFiles are opened at startup and pinned open.
	PreloadFiles []string

	// ShutdownTimeout bounds the escalating termination sequence.
	ShutdownTimeout time.Duration
}

// Session wires one peer connection to its stores, readiness manager,
// lifecycle engine, operations, and shutdown coordinator.
//
// Description:
//
//	Construction builds all collaborators without side effects. Start
//	registers the notification handlers, spawns the peer, runs the
//	handshake, initializes the workspace loader, and preloads
//	configured files. The crash watcher converts an unexpected peer
//	exit into a shutdown trigger.
type Session struct {
	Client      *lsp.Client
	Engine      *Engine
	Files       *lifecycle.Engine
	Readiness   *workspace.Manager
	Diagnostics *lsp.DiagnosticsStore
	Logs        *lsp.LogStore
	Shutdown    *Coordinator

	cfg    SessionConfig
	logger *slog.Logger
}

// NewSession builds a session from configuration. No process is
// spawned until Start.
//
// Errors:
//
//	Returns an error for a non-absolute root path or unknown workspace
//	loader kind.
func NewSession(cfg SessionConfig, logger *slog.Logger) (*Session, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if !filepath.IsAbs(cfg.RootPath) {
		return nil, fmt.Errorf("root path must be absolute, got %q", cfg.RootPath)
	}

	loader, err := workspace.New(cfg.Workspace, cfg.RootPath, logger)
	if err != nil {
		return nil, err
	}

	client := lsp.NewClient(cfg.Peer, cfg.RootPath, logger)
	files := lifecycle.NewEngine(cfg.RootPath, cfg.Languages, client, logger)
	readiness := workspace.NewManager(loader, logger)
	diagnostics := lsp.NewDiagnosticsStore()
	logs := lsp.NewLogStore()

	return &Session{
		Client:      client,
		Engine:      NewEngine(client, files, readiness, diagnostics, logs, logger),
		Files:       files,
		Readiness:   readiness,
		Diagnostics: diagnostics,
		Logs:        logs,
		Shutdown:    NewCoordinator(client, cfg.ShutdownTimeout, logger),
		cfg:         cfg,
		logger:      logger,
	}, nil
}

// Start spawns the peer and brings the session to operational state.
//
// Errors:
//
//	lsp.ErrSpawn - Peer binary missing or failed to start
//	lsp.ErrInitializeFailed - Handshake failed
func (s *Session) Start(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("ctx must not be nil")
	}

	s.installHandlers(ctx)

	if err := s.Client.Connect(ctx); err != nil {
		return err
	}
	if err := s.Client.Initialize(ctx); err != nil {
		s.Client.Close()
		return err
	}

	// Loader failures force readiness instead of blocking operations.
	s.Readiness.Initialize(ctx, s.Client)

	if len(s.cfg.PreloadFiles) > 0 {
		s.Files.Preload(s.cfg.PreloadFiles)
	}

	go s.Shutdown.WatchCrash(ctx)

	s.logger.Info("session started",
		slog.String("root", s.cfg.RootPath),
		slog.String("command", s.cfg.Peer.Command),
		slog.Int("pid", s.Client.PID()),
	)
	return nil
}

// installHandlers registers notification routing before the peer can
// emit anything.
func (s *Session) installHandlers(ctx context.Context) {
	s.Client.OnNotification("textDocument/publishDiagnostics", func(params json.RawMessage) {
		var p lsp.PublishDiagnosticsParams
		if err := json.Unmarshal(params, &p); err != nil {
			s.logger.Warn("unparsable diagnostics notification", slog.String("error", err.Error()))
			return
		}
		s.Diagnostics.Publish(p.URI, p.Diagnostics)
		lsp.RecordNotification(ctx, "textDocument/publishDiagnostics")
	})

	s.Client.OnNotification("window/logMessage", func(params json.RawMessage) {
		var p lsp.LogMessageParams
		if err := json.Unmarshal(params, &p); err != nil {
			return
		}
		s.Logs.Append(p.Type, p.Message)
		lsp.RecordNotification(ctx, "window/logMessage")
	})

	if method := s.cfg.Workspace.ReadyMethod; method != "" {
		s.Client.OnNotification(method, func(json.RawMessage) {
			s.Readiness.HandleNotification(method)
			lsp.RecordNotification(ctx, method)
		})
	}
}

// Stop runs the shutdown sequence and returns the process exit code.
func (s *Session) Stop(ctx context.Context, reason string) int {
	s.Files.CloseAll()
	return s.Shutdown.Trigger(ctx, reason)
}
