// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package status exposes an optional HTTP listener with health,
// metrics, and peer log endpoints. The listener is a side surface;
// operations flow over stdio.
package status

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/langgate/services/gateway/lsp"
	"github.com/AleutianAI/langgate/services/gateway/telemetry"
	"github.com/AleutianAI/langgate/services/gateway/workspace"
)

// PeerInfo reports connection facts on the health endpoint.
type PeerInfo interface {
	State() lsp.ConnState
	PID() int
}

// Server is the HTTP status listener.
type Server struct {
	readiness *workspace.Manager
	logs      *lsp.LogStore
	peer      PeerInfo
	logger    *slog.Logger
	http      *http.Server
}

// NewServer builds the listener without binding it.
func NewServer(addr string, readiness *workspace.Manager, logs *lsp.LogStore, peer PeerInfo, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	s := &Server{
		readiness: readiness,
		logs:      logs,
		peer:      peer,
		logger:    logger,
	}

	// gin.Default would log to stdout, which carries the tool protocol.
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("langgate-status"))

	router.GET("/healthz", s.handleHealth)
	router.GET("/logs", s.handleLogs)
	if handler := telemetry.MetricsHandler(); handler != nil {
		router.GET("/metrics", gin.WrapH(handler))
	}

	s.http = &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Start binds and serves in a background goroutine.
func (s *Server) Start() {
	go func() {
		s.logger.Info("status listener started", slog.String("addr", s.http.Addr))
		if err := s.http.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("status listener failed", slog.String("error", err.Error()))
		}
	}()
}

// Stop shuts the listener down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

// handleHealth reports 200 once the workspace is ready and the peer is
// up, 503 while loading.
func (s *Server) handleHealth(c *gin.Context) {
	state := s.peer.State()
	ready := s.readiness.Ready() && state == lsp.StateReady

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{
		"ready":      ready,
		"peer_state": state.String(),
		"peer_pid":   s.peer.PID(),
		"loader":     string(s.readiness.Kind()),
	})
}

// handleLogs returns accumulated peer log messages. Query parameters:
// max_type filters by severity threshold, clear discards after read.
func (s *Server) handleLogs(c *gin.Context) {
	maxType := 0
	if raw := c.Query("max_type"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 || n > 4 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "max_type must be 1..4"})
			return
		}
		maxType = n
	}

	var entries []lsp.LogEntry
	if maxType > 0 {
		entries = s.logs.SnapshotSince(maxType)
	} else {
		entries = s.logs.Snapshot()
	}
	if c.Query("clear") == "true" {
		s.logs.Clear()
	}

	c.JSON(http.StatusOK, gin.H{
		"count":   len(entries),
		"entries": entries,
	})
}
