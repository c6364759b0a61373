// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package workspace

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"golang.org/x/mod/modfile"
)

// Project describes one detected project description file.
type Project struct {
	// Path is the absolute path of the project file.
	Path string `json:"path"`

	// Name is a module or project name extracted from the file, when
	// the format is understood. Empty otherwise.
	Name string `json:"name,omitempty"`
}

// projectLoader detects project description files under the workspace
// root, announces them to the peer, and waits for the configured
// readiness notification. With watching enabled, changes to project
// files re-run detection and re-announce.
type projectLoader struct {
	cfg      Config
	rootPath string
	logger   *slog.Logger

	mu       sync.RWMutex
	ready    bool
	projects []Project
	notifier Notifier

	watcher *fsnotify.Watcher
	done    chan struct{}
}

func newProjectLoader(cfg Config, rootPath string, logger *slog.Logger) *projectLoader {
	return &projectLoader{
		cfg:      cfg,
		rootPath: rootPath,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

func (l *projectLoader) Kind() LoaderKind { return KindProject }

// Initialize detects project files, announces them, and optionally
// starts the file watcher.
//
// Errors:
//
//	Returns an error when no project file matches any glob, or when
//	the announcement notification cannot be sent. The Manager converts
//	both into forced readiness.
func (l *projectLoader) Initialize(ctx context.Context, notifier Notifier) error {
	if ctx == nil {
		ctx = context.Background()
	}

	projects, err := l.detect()
	if err != nil {
		return err
	}
	if len(projects) == 0 {
		return fmt.Errorf("no project files matched %v under %s", l.cfg.ProjectGlobs, l.rootPath)
	}

	l.mu.Lock()
	l.projects = projects
	l.notifier = notifier
	l.ready = l.cfg.ReadyMethod == ""
	l.mu.Unlock()

	if err := l.announce(projects); err != nil {
		return err
	}

	l.logger.Info("project files detected",
		slog.Int("count", len(projects)),
		slog.String("root", l.rootPath),
	)

	if l.cfg.Watch {
		if err := l.startWatcher(ctx); err != nil {
			// Watching is best effort; detection already succeeded.
			l.logger.Warn("project watcher unavailable",
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

// detect matches the configured globs against the workspace root.
func (l *projectLoader) detect() ([]Project, error) {
	var projects []Project
	for _, glob := range l.cfg.ProjectGlobs {
		matches, err := filepath.Glob(filepath.Join(l.rootPath, glob))
		if err != nil {
			return nil, fmt.Errorf("bad project glob %q: %w", glob, err)
		}
		for _, path := range matches {
			info, err := os.Stat(path)
			if err != nil || info.IsDir() {
				continue
			}
			projects = append(projects, Project{
				Path: path,
				Name: projectName(path),
			})
		}
	}
	return projects, nil
}

// projectName extracts a name from formats the loader understands.
func projectName(path string) string {
	if filepath.Base(path) != "go.mod" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	f, err := modfile.ParseLax(path, data, nil)
	if err != nil || f.Module == nil {
		return ""
	}
	return f.Module.Mod.Path
}

// announce sends the peer-specific open-workspace notification.
func (l *projectLoader) announce(projects []Project) error {
	if l.cfg.OpenMethod == "" {
		return nil
	}
	l.mu.RLock()
	notifier := l.notifier
	l.mu.RUnlock()
	if notifier == nil {
		return fmt.Errorf("no notifier available")
	}
	return notifier.Notify(l.cfg.OpenMethod, map[string]interface{}{
		"projects": projects,
	})
}

func (l *projectLoader) HandleNotification(method string) {
	if l.cfg.ReadyMethod == "" || method != l.cfg.ReadyMethod {
		return
	}
	l.mu.Lock()
	already := l.ready
	l.ready = true
	l.mu.Unlock()

	if !already {
		l.logger.Info("workspace ready", slog.String("method", method))
	}
}

func (l *projectLoader) Ready() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.ready
}

// Projects returns the most recent detection result.
func (l *projectLoader) Projects() []Project {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]Project, len(l.projects))
	copy(out, l.projects)
	return out
}

// =============================================================================
// WATCHER
// =============================================================================

// startWatcher re-runs detection when project files under the root
// change.
func (l *projectLoader) startWatcher(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(l.rootPath); err != nil {
		watcher.Close()
		return err
	}
	l.watcher = watcher

	go l.watchLoop(ctx)
	return nil
}

func (l *projectLoader) watchLoop(ctx context.Context) {
	defer l.watcher.Close()
	for {
		select {
		case <-ctx.Done():
			return
		case <-l.done:
			return
		case event, ok := <-l.watcher.Events:
			if !ok {
				return
			}
			if !l.matchesGlob(event.Name) {
				continue
			}
			if event.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			l.redetect(event)
		case err, ok := <-l.watcher.Errors:
			if !ok {
				return
			}
			l.logger.Warn("project watcher error", slog.String("error", err.Error()))
		}
	}
}

// matchesGlob reports whether a changed path names a project file.
func (l *projectLoader) matchesGlob(path string) bool {
	base := filepath.Base(path)
	for _, glob := range l.cfg.ProjectGlobs {
		if ok, err := filepath.Match(glob, base); err == nil && ok {
			return true
		}
	}
	return false
}

// redetect refreshes the project list and re-announces.
func (l *projectLoader) redetect(event fsnotify.Event) {
	projects, err := l.detect()
	if err != nil {
		l.logger.Warn("project re-detection failed", slog.String("error", err.Error()))
		return
	}

	l.mu.Lock()
	l.projects = projects
	l.mu.Unlock()

	l.logger.Info("project files changed",
		slog.String("path", event.Name),
		slog.String("op", event.Op.String()),
		slog.Int("count", len(projects)),
	)

	if err := l.announce(projects); err != nil {
		l.logger.Warn("project re-announcement failed", slog.String("error", err.Error()))
	}
}

// Stop terminates the watcher, if running.
func (l *projectLoader) Stop() {
	select {
	case <-l.done:
	default:
		close(l.done)
	}
}
