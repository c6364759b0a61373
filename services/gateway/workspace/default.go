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
	"log/slog"
	"sync"
)

// defaultLoader trusts the handshake. If a ready method is configured
// it starts not-ready and flips on that notification; otherwise it is
// ready as soon as Initialize runs.
type defaultLoader struct {
	cfg    Config
	logger *slog.Logger

	mu    sync.RWMutex
	ready bool
}

func newDefaultLoader(cfg Config, logger *slog.Logger) *defaultLoader {
	return &defaultLoader{cfg: cfg, logger: logger}
}

func (l *defaultLoader) Kind() LoaderKind { return KindDefault }

func (l *defaultLoader) Initialize(ctx context.Context, notifier Notifier) error {
	if ctx == nil {
		ctx = context.Background()
	}
	_ = ctx

	l.mu.Lock()
	l.ready = l.cfg.ReadyMethod == ""
	l.mu.Unlock()

	if l.cfg.ReadyMethod != "" {
		l.logger.Debug("waiting for readiness notification",
			slog.String("method", l.cfg.ReadyMethod),
		)
	}
	return nil
}

func (l *defaultLoader) HandleNotification(method string) {
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

func (l *defaultLoader) Ready() bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.ready
}
