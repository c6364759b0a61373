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
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/sys/unix"
)

// defaultShutdownTimeout bounds how long the coordinator waits for the
// peer to exit before force-killing it.
const defaultShutdownTimeout = 10 * time.Second

// killGrace bounds how long a force-killed peer gets to actually die.
const killGrace = 2 * time.Second

// ShutdownPeer is the termination surface of the peer connection.
// Satisfied by *lsp.Client.
type ShutdownPeer interface {
	Initialized() bool
	SendShutdown(ctx context.Context)
	Signal(sig os.Signal) error
	Kill() error
	Exited() <-chan struct{}
	ExitError() error
	Close()
}

// Coordinator terminates the peer deterministically exactly once.
//
// Description:
//
//	On the first trigger it sends the protocol shutdown request and
//	exit notification (skipped entirely if the handshake never
//	completed), follows with SIGTERM because some peers ignore the
//	protocol exit, races the peer's natural exit against a timeout,
//	and force-kills on expiry. Later triggers wait for the first run
//	and return its exit code. Peer self-crash feeds the same path via
//	WatchCrash.
//
// Thread Safety:
//
//	Safe for concurrent use.
type Coordinator struct {
	peer    ShutdownPeer
	timeout time.Duration
	logger  *slog.Logger

	once sync.Once
	done chan struct{}
	code int
}

// NewCoordinator creates a coordinator for one peer connection.
func NewCoordinator(peer ShutdownPeer, timeout time.Duration, logger *slog.Logger) *Coordinator {
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		peer:    peer,
		timeout: timeout,
		logger:  logger,
		done:    make(chan struct{}),
	}
}

// Trigger runs the shutdown sequence and returns the process exit
// code. Only the first caller runs the sequence; the rest wait for it.
func (c *Coordinator) Trigger(ctx context.Context, reason string) int {
	c.once.Do(func() {
		defer close(c.done)
		c.code = c.run(ctx, reason)
	})
	<-c.done
	return c.code
}

// Done is closed once a shutdown sequence has completed.
func (c *Coordinator) Done() <-chan struct{} {
	return c.done
}

// WatchCrash turns an unexpected peer exit into a shutdown trigger.
// Call in a goroutine after the peer is connected.
func (c *Coordinator) WatchCrash(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-c.done:
		return
	case <-c.peer.Exited():
	}

	select {
	case <-c.done:
		// Already shutting down; the exit is expected.
		return
	default:
	}

	exitErr := c.peer.ExitError()
	reason := "peer exited unexpectedly"
	if exitErr != nil {
		reason = "peer crashed: " + exitErr.Error()
	}
	c.logger.Error("peer terminated outside shutdown", slog.String("reason", reason))
	c.Trigger(ctx, reason)
}

// run executes the escalation sequence once.
func (c *Coordinator) run(ctx context.Context, reason string) int {
	c.logger.Info("shutdown started", slog.String("reason", reason))
	defer c.peer.Close()

	// An uninitialized peer cannot answer protocol messages; signal
	// only.
	if c.peer.Initialized() {
		sendCtx, cancel := context.WithTimeout(ctx, c.timeout/2)
		c.peer.SendShutdown(sendCtx)
		cancel()
	} else {
		c.logger.Debug("peer never initialized, skipping protocol shutdown")
	}

	// Backup OS-level terminate; some peers ignore the protocol exit.
	if err := c.peer.Signal(unix.SIGTERM); err != nil {
		c.logger.Debug("terminate signal failed", slog.String("error", err.Error()))
	}

	select {
	case <-c.peer.Exited():
		c.logger.Info("peer exited")
		return 0
	case <-time.After(c.timeout):
	}

	c.logger.Warn("peer ignored shutdown, force-killing",
		slog.Duration("timeout", c.timeout),
	)
	if err := c.peer.Kill(); err != nil {
		c.logger.Error("force-kill failed", slog.String("error", err.Error()))
		return 1
	}

	select {
	case <-c.peer.Exited():
		return 0
	case <-time.After(killGrace):
		c.logger.Error("peer survived force-kill")
		return 1
	}
}
