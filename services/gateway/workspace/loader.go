// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package workspace tracks whether the peer has loaded enough project
// context to answer workspace-wide queries.
//
// A loader strategy is selected by configured kind. The default loader
// is ready immediately unless a readiness notification method is
// configured. The project loader detects project description files
// under the workspace root, announces them to the peer, and waits for
// the readiness notification. Loader failures never block operations:
// a loader that cannot initialize reports ready.
package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// LoaderKind selects a readiness strategy.
type LoaderKind string

const (
	// KindDefault trusts the handshake, optionally gated on a
	// readiness notification.
	KindDefault LoaderKind = "default"

	// KindProject detects project description files and waits for the
	// peer to announce load completion.
	KindProject LoaderKind = "project"
)

// Notifier sends notifications to the peer. Satisfied by *lsp.Client.
type Notifier interface {
	Notify(method string, params interface{}) error
}

// Config describes the readiness strategy for a peer family.
type Config struct {
	// Kind selects the loader strategy.
	Kind LoaderKind `yaml:"kind" validate:"omitempty,oneof=default project"`

	// ReadyMethod is the notification that marks load completion.
	// Empty means readiness is assumed after loader initialization.
	ReadyMethod string `yaml:"ready_method"`

	// OpenMethod is the peer-specific notification used to announce
	// detected project files. Only the project loader sends it.
	OpenMethod string `yaml:"open_method"`

	// ProjectGlobs are filename patterns that identify project
	// description files (e.g. "go.mod", "*.sln").
	ProjectGlobs []string `yaml:"project_globs"`

	// Watch re-runs project detection when files under the root
	// change. Only the project loader honors it.
	Watch bool `yaml:"watch"`
}

// Loader is a readiness strategy.
//
// Initialize runs once after the peer handshake. HandleNotification is
// invoked for every inbound notification method and is the only other
// state mutator. Ready is read by every operation as a gate.
type Loader interface {
	Initialize(ctx context.Context, notifier Notifier) error
	HandleNotification(method string)
	Ready() bool

	// Kind reports which strategy this loader implements.
	Kind() LoaderKind
}

// New constructs a loader for the configured kind.
//
// Errors:
//
//	Returns an error for an unrecognized kind.
func New(cfg Config, rootPath string, logger *slog.Logger) (Loader, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Kind {
	case KindDefault, "":
		return newDefaultLoader(cfg, logger), nil
	case KindProject:
		return newProjectLoader(cfg, rootPath, logger), nil
	default:
		return nil, fmt.Errorf("unknown workspace loader kind %q", cfg.Kind)
	}
}

// =============================================================================
// MANAGER
// =============================================================================

// Manager wraps a loader with fail-open initialization.
//
// Description:
//
//	Runs loader initialization once and forces readiness if it fails,
//	so a broken project detector never blocks unrelated operations.
//	Forwards every inbound notification to the loader.
//
// Thread Safety:
//
//	Safe for concurrent use.
type Manager struct {
	loader Loader
	logger *slog.Logger

	mu     sync.RWMutex
	forced bool
}

// NewManager wraps a loader.
func NewManager(loader Loader, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{loader: loader, logger: logger}
}

// Initialize runs the loader once. A failure is logged and readiness is
// forced; the error is not returned to the caller.
func (m *Manager) Initialize(ctx context.Context, notifier Notifier) {
	if err := m.loader.Initialize(ctx, notifier); err != nil {
		m.logger.Warn("workspace loader initialization failed, forcing ready",
			slog.String("kind", string(m.loader.Kind())),
			slog.String("error", err.Error()),
		)
		m.mu.Lock()
		m.forced = true
		m.mu.Unlock()
		recordLoaderInit(ctx, string(m.loader.Kind()), false)
		return
	}
	recordLoaderInit(ctx, string(m.loader.Kind()), true)
}

// HandleNotification forwards an inbound notification method.
func (m *Manager) HandleNotification(method string) {
	m.loader.HandleNotification(method)
}

// Ready reports whether workspace-wide queries are safe to issue.
func (m *Manager) Ready() bool {
	m.mu.RLock()
	forced := m.forced
	m.mu.RUnlock()
	return forced || m.loader.Ready()
}

// Kind reports the wrapped loader's strategy.
func (m *Manager) Kind() LoaderKind {
	return m.loader.Kind()
}
