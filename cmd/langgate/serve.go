// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"golang.org/x/sys/unix"

	"github.com/AleutianAI/langgate/pkg/logging"
	"github.com/AleutianAI/langgate/services/gateway/config"
	"github.com/AleutianAI/langgate/services/gateway/engine"
	"github.com/AleutianAI/langgate/services/gateway/status"
	"github.com/AleutianAI/langgate/services/gateway/telemetry"
	"github.com/AleutianAI/langgate/services/gateway/tools"
)

const stopTimeout = 15 * time.Second

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := buildLogger(cfg)
	defer logger.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, unix.SIGTERM)
	defer stop()

	telemetryShutdown, err := initTelemetry(ctx, cfg)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetryShutdown(shutdownCtx); err != nil {
			logger.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	session, err := engine.NewSession(cfg.SessionConfig(), logger.Logger)
	if err != nil {
		return fmt.Errorf("build session: %w", err)
	}

	logger.Info("starting gateway",
		slog.String("version", version),
		slog.String("root", cfg.Workspace.Root),
		slog.String("peer", cfg.Peer.Command),
	)

	if err := session.Start(ctx); err != nil {
		return fmt.Errorf("start session: %w", err)
	}

	var statusSrv *status.Server
	if cfg.Status.Enabled {
		statusSrv = status.NewServer(cfg.Status.Address, session.Readiness, session.Logs, session.Client, logger.Logger)
		statusSrv.Start()
	}

	mcpServer := tools.New(version, session.Engine, logger.Logger)

	// ServeStdio returns when stdin closes or the context is canceled.
	serveDone := make(chan error, 1)
	go func() {
		serveDone <- tools.Serve(mcpServer)
	}()

	reason := "caller disconnected"
	select {
	case <-ctx.Done():
		reason = "signal received"
		logger.Info("shutdown signal received")
	case err := <-serveDone:
		if err != nil {
			logger.Warn("tool server stopped", slog.String("error", err.Error()))
		}
	case <-session.Shutdown.Done():
		reason = "peer exited"
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()

	if statusSrv != nil {
		if err := statusSrv.Stop(stopCtx); err != nil {
			logger.Warn("status listener stop failed", slog.String("error", err.Error()))
		}
	}

	code := session.Stop(stopCtx, reason)
	logger.Info("gateway stopped", slog.Int("exit_code", code))
	if code != 0 {
		os.Exit(code)
	}
	return nil
}

// buildLogger assembles the stderr logger from configuration and
// flags. Output defaults to JSON when stderr is not a terminal.
func buildLogger(cfg *config.Config) *logging.Logger {
	level := cfg.Logging.Level
	if logLevel != "" {
		level = logLevel
	}
	useJSON := cfg.Logging.JSON || logJSON
	if !isatty.IsTerminal(os.Stderr.Fd()) && !isatty.IsCygwinTerminal(os.Stderr.Fd()) {
		useJSON = true
	}

	return logging.New(logging.Config{
		Level:   logging.Level(level),
		LogDir:  cfg.Logging.Dir,
		Service: "langgate",
		JSON:    useJSON,
	})
}

func initTelemetry(ctx context.Context, cfg *config.Config) (func(context.Context) error, error) {
	tcfg := telemetry.DefaultConfig()
	tcfg.ServiceVersion = version
	if cfg.Telemetry.TraceExporter != "" {
		tcfg.TraceExporter = cfg.Telemetry.TraceExporter
	}
	if cfg.Telemetry.MetricExporter != "" {
		tcfg.MetricExporter = cfg.Telemetry.MetricExporter
	}
	if cfg.Telemetry.OTLPEndpoint != "" {
		tcfg.OTLPEndpoint = cfg.Telemetry.OTLPEndpoint
	}
	tcfg.OTLPInsecure = cfg.Telemetry.OTLPInsecure
	return telemetry.Init(ctx, tcfg)
}
