// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package config loads and validates the gateway's YAML configuration.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"gopkg.in/yaml.v3"

	"github.com/AleutianAI/langgate/services/gateway/engine"
	"github.com/AleutianAI/langgate/services/gateway/lsp"
	"github.com/AleutianAI/langgate/services/gateway/workspace"
)

// maxConfigSize caps config reads; anything larger is misuse.
const maxConfigSize = 1 << 20

var (
	configLoadErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "langgate_config_load_errors_total",
		Help: "Total configuration load failures",
	})

	configLoads = promauto.NewCounter(prometheus.CounterOpts{
		Name: "langgate_config_loads_total",
		Help: "Total successful configuration loads",
	})
)

var validate = validator.New()

// Config is the root configuration document.
type Config struct {
	Workspace WorkspaceSection `yaml:"workspace" validate:"required"`
	Peer      PeerSection      `yaml:"peer" validate:"required"`
	Files     FilesSection     `yaml:"files"`
	Status    StatusSection    `yaml:"status"`
	Telemetry TelemetrySection `yaml:"telemetry"`
	Logging   LoggingSection   `yaml:"logging"`
}

// WorkspaceSection locates the workspace and its readiness strategy.
type WorkspaceSection struct {
	// Root is the workspace root. Relative roots resolve against the
	// working directory at load time.
	Root string `yaml:"root" validate:"required"`

	// Loader selects the readiness strategy.
	Loader workspace.Config `yaml:"loader"`

	// PreloadGlobs name files opened at startup and pinned open.
	PreloadGlobs []string `yaml:"preload_globs"`

	// ShutdownTimeoutSeconds bounds the peer termination sequence.
	ShutdownTimeoutSeconds int `yaml:"shutdown_timeout_seconds" validate:"gte=0,lte=300"`
}

// PeerSection describes the language server to launch.
type PeerSection struct {
	// Command is the peer binary, resolved through PATH.
	Command string `yaml:"command" validate:"required"`

	// Args are passed to the peer verbatim.
	Args []string `yaml:"args"`

	// Env is an overlay on the gateway's environment.
	Env map[string]string `yaml:"env"`

	// InitializationOptions are forwarded opaquely in the handshake.
	InitializationOptions map[string]interface{} `yaml:"initialization_options"`

	// RequestsPerSecond throttles outbound requests. Zero disables
	// throttling.
	RequestsPerSecond float64 `yaml:"requests_per_second" validate:"gte=0"`
}

// FilesSection configures document handling.
type FilesSection struct {
	// Languages maps extensions (without dot) to LSP language
	// identifiers.
	Languages map[string]string `yaml:"languages"`
}

// StatusSection configures the optional HTTP status listener.
type StatusSection struct {
	// Enabled starts the listener. Off by default; the gateway's own
	// stdio is the primary surface.
	Enabled bool `yaml:"enabled"`

	// Address is the listen address.
	Address string `yaml:"address" validate:"omitempty,hostname_port"`
}

// TelemetrySection configures exporters.
type TelemetrySection struct {
	// TraceExporter is one of none, stdout, otlp.
	TraceExporter string `yaml:"trace_exporter" validate:"omitempty,oneof=none stdout otlp"`

	// MetricExporter is one of none, stdout, prometheus.
	MetricExporter string `yaml:"metric_exporter" validate:"omitempty,oneof=none stdout prometheus"`

	// OTLPEndpoint is the collector address for the otlp exporter.
	OTLPEndpoint string `yaml:"otlp_endpoint"`

	// OTLPInsecure disables TLS to the collector.
	OTLPInsecure bool `yaml:"otlp_insecure"`
}

// LoggingSection configures the gateway's own logging. Nothing may
// write to stdout; the operation protocol owns it.
type LoggingSection struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`

	// Dir is where log files are written. Empty disables the file
	// sink.
	Dir string `yaml:"dir"`

	// JSON switches the stderr sink to JSON lines.
	JSON bool `yaml:"json"`
}

// Load reads, defaults, and validates a configuration file.
//
// Errors:
//
//	Returns an error for unreadable files, files over maxConfigSize,
//	malformed YAML, or validation failures.
func Load(path string) (*Config, error) {
	info, err := os.Stat(path)
	if err != nil {
		configLoadErrors.Inc()
		return nil, fmt.Errorf("config not readable: %w", err)
	}
	if info.Size() > maxConfigSize {
		configLoadErrors.Inc()
		return nil, fmt.Errorf("config file %s exceeds %d bytes", path, maxConfigSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		configLoadErrors.Inc()
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		configLoadErrors.Inc()
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.applyDefaults()

	if err := validate.Struct(&cfg); err != nil {
		configLoadErrors.Inc()
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	if !filepath.IsAbs(cfg.Workspace.Root) {
		abs, err := filepath.Abs(cfg.Workspace.Root)
		if err != nil {
			configLoadErrors.Inc()
			return nil, fmt.Errorf("resolve workspace root: %w", err)
		}
		cfg.Workspace.Root = abs
	}

	configLoads.Inc()
	return &cfg, nil
}

// applyDefaults fills unset fields with working values.
func (c *Config) applyDefaults() {
	if c.Workspace.Loader.Kind == "" {
		c.Workspace.Loader.Kind = workspace.KindDefault
	}
	if c.Workspace.ShutdownTimeoutSeconds == 0 {
		c.Workspace.ShutdownTimeoutSeconds = 10
	}
	if c.Files.Languages == nil {
		c.Files.Languages = defaultLanguages()
	}
	if c.Status.Enabled && c.Status.Address == "" {
		c.Status.Address = "127.0.0.1:8732"
	}
	if c.Telemetry.TraceExporter == "" {
		c.Telemetry.TraceExporter = "none"
	}
	if c.Telemetry.MetricExporter == "" {
		c.Telemetry.MetricExporter = "none"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

// defaultLanguages covers the common servers out of the box.
func defaultLanguages() map[string]string {
	return map[string]string{
		"go":   "go",
		"py":   "python",
		"rs":   "rust",
		"ts":   "typescript",
		"tsx":  "typescriptreact",
		"js":   "javascript",
		"jsx":  "javascriptreact",
		"c":    "c",
		"h":    "c",
		"cc":   "cpp",
		"cpp":  "cpp",
		"hpp":  "cpp",
		"java": "java",
		"rb":   "ruby",
		"cs":   "csharp",
	}
}

// SessionConfig maps the document onto the engine's session input.
func (c *Config) SessionConfig() engine.SessionConfig {
	return engine.SessionConfig{
		RootPath: c.Workspace.Root,
		Peer: lsp.PeerConfig{
			Command:               c.Peer.Command,
			Args:                  c.Peer.Args,
			Env:                   c.Peer.Env,
			InitializationOptions: c.Peer.InitializationOptions,
			RequestsPerSecond:     c.Peer.RequestsPerSecond,
		},
		Workspace:       c.Workspace.Loader,
		Languages:       c.Files.Languages,
		PreloadFiles:    c.expandPreloads(),
		ShutdownTimeout: time.Duration(c.Workspace.ShutdownTimeoutSeconds) * time.Second,
	}
}

// expandPreloads resolves preload globs against the workspace root.
func (c *Config) expandPreloads() []string {
	var files []string
	for _, glob := range c.Workspace.PreloadGlobs {
		matches, err := filepath.Glob(filepath.Join(c.Workspace.Root, glob))
		if err != nil {
			continue
		}
		files = append(files, matches...)
	}
	return files
}
