// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package lsp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// =============================================================================
// CONNECTION STATE
// =============================================================================

// ConnState represents the lifecycle state of the peer connection.
type ConnState int

const (
	// StateUninitialized is the initial state before Connect is called.
	StateUninitialized ConnState = iota

	// StateConnecting means the peer process is being spawned.
	StateConnecting

	// StateConnected means the process is up but the handshake has not run.
	StateConnected

	// StateReady means the peer is initialized and accepting requests.
	StateReady

	// StateStopping means the connection is shutting down.
	StateStopping

	// StateStopped means the peer process has terminated.
	StateStopped
)

// String returns a human-readable state name.
func (s ConnState) String() string {
	names := []string{"uninitialized", "connecting", "connected", "ready", "stopping", "stopped"}
	if int(s) < len(names) {
		return names[s]
	}
	return "unknown"
}

// =============================================================================
// PEER CONFIG
// =============================================================================

// PeerConfig describes how to launch and drive the peer process.
type PeerConfig struct {
	// Command is the peer binary. Resolved through PATH before spawning.
	Command string

	// Args are passed to the peer verbatim.
	Args []string

	// Env is an overlay applied on top of the gateway's environment.
	Env map[string]string

	// InitializationOptions are forwarded opaquely in the handshake.
	InitializationOptions interface{}

	// RequestsPerSecond throttles outbound requests. Zero means unlimited.
	RequestsPerSecond float64
}

// =============================================================================
// CLIENT
// =============================================================================

// Client owns the spawned peer process and its message channel.
//
// Description:
//
//	Spawns the peer, wires its stdio to a framed JSON-RPC channel,
//	tracks initialization state and negotiated capabilities, and
//	watches the process for unexpected exit. Notification and request
//	handlers registered before Connect are installed before the read
//	loop starts, so no early message is dropped.
//
// Thread Safety:
//
//	Safe for concurrent use after Connect returns successfully.
type Client struct {
	config   PeerConfig
	rootPath string
	logger   *slog.Logger

	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser

	protocol     *Protocol
	capabilities ServerCapabilities
	limiter      *rate.Limiter

	state       ConnState
	initialized bool
	stateMu     sync.RWMutex

	// Handler registrations buffered until Connect builds the protocol.
	pendingNotif []pendingNotifHandler
	pendingReq   []pendingReqHandler
	pendingCatch NotificationHandler

	ctx      context.Context
	cancel   context.CancelFunc
	readDone chan struct{}

	exited  chan struct{}
	exitErr error
	exitMu  sync.Mutex
}

type pendingNotifHandler struct {
	method  string
	handler NotificationHandler
}

type pendingReqHandler struct {
	method  string
	handler RequestHandler
}

// NewClient creates a client instance (not connected).
//
// Inputs:
//
//	config - Peer launch configuration
//	rootPath - Absolute path to the workspace root
//	logger - Structured logger; nil falls back to slog.Default()
func NewClient(config PeerConfig, rootPath string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	var limiter *rate.Limiter
	if config.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(config.RequestsPerSecond), 1)
	}
	return &Client{
		config:   config,
		rootPath: rootPath,
		logger:   logger,
		limiter:  limiter,
		state:    StateUninitialized,
		readDone: make(chan struct{}),
		exited:   make(chan struct{}),
	}
}

// OnNotification registers a handler for a peer-initiated notification.
//
// Thread Safety: must be called before Connect.
func (c *Client) OnNotification(method string, h NotificationHandler) {
	c.pendingNotif = append(c.pendingNotif, pendingNotifHandler{method, h})
}

// OnRequest registers a handler for a peer-initiated request.
//
// Thread Safety: must be called before Connect.
func (c *Client) OnRequest(method string, h RequestHandler) {
	c.pendingReq = append(c.pendingReq, pendingReqHandler{method, h})
}

// OnUnhandled registers the catch-all notification handler.
//
// Thread Safety: must be called before Connect.
func (c *Client) OnUnhandled(h NotificationHandler) {
	c.pendingCatch = h
}

// Connect spawns the peer process and starts the message channel.
//
// Description:
//
//	Validates the peer binary is resolvable, spawns it with the
//	configured arguments and environment overlay, installs all
//	registered handlers plus the built-in capability-registration
//	acknowledger, and starts the read loop. Does not perform the
//	initialize handshake; call Initialize next.
//
// Errors:
//
//	ErrSpawn - Peer binary not found or process failed to start
//	ErrAlreadyConnected - Connect called on a live connection
//
// Thread Safety:
//
//	Safe for concurrent use, but only the first caller connects.
func (c *Client) Connect(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("ctx must not be nil")
	}

	c.stateMu.Lock()
	if c.state != StateUninitialized {
		c.stateMu.Unlock()
		return ErrAlreadyConnected
	}
	c.state = StateConnecting
	c.stateMu.Unlock()

	path, err := exec.LookPath(c.config.Command)
	if err != nil {
		c.setState(StateStopped)
		c.logger.Warn("peer binary not found",
			slog.String("command", c.config.Command),
		)
		return fmt.Errorf("%w: %s", ErrSpawn, c.config.Command)
	}

	c.logger.Info("spawning peer",
		slog.String("command", path),
		slog.String("root_path", c.rootPath),
	)

	// Connection context outlives the caller's context
	c.ctx, c.cancel = context.WithCancel(context.Background())

	c.cmd = exec.CommandContext(c.ctx, path, c.config.Args...)
	c.cmd.Dir = c.rootPath
	c.cmd.Env = overlayEnv(os.Environ(), c.config.Env)

	c.stdin, err = c.cmd.StdinPipe()
	if err != nil {
		c.cleanup()
		return fmt.Errorf("%w: stdin pipe: %v", ErrSpawn, err)
	}

	c.stdout, err = c.cmd.StdoutPipe()
	if err != nil {
		c.cleanup()
		return fmt.Errorf("%w: stdout pipe: %v", ErrSpawn, err)
	}

	if err := c.cmd.Start(); err != nil {
		c.cleanup()
		recordPeerSpawn(ctx, c.config.Command, false)
		return fmt.Errorf("%w: start process: %v", ErrSpawn, err)
	}
	recordPeerSpawn(ctx, c.config.Command, true)

	c.protocol = NewProtocol(c.stdout, c.stdin)
	c.installHandlers()

	// Single waiter owns cmd.Wait; everyone else watches the channel.
	go func() {
		err := c.cmd.Wait()
		c.exitMu.Lock()
		c.exitErr = err
		c.exitMu.Unlock()
		close(c.exited)
	}()

	go func() {
		defer close(c.readDone)
		_ = c.protocol.ReadLoop(c.ctx)
	}()

	c.setState(StateConnected)
	return nil
}

// installHandlers applies buffered registrations and built-in defaults.
func (c *Client) installHandlers() {
	for _, p := range c.pendingNotif {
		c.protocol.OnNotification(p.method, p.handler)
	}
	for _, p := range c.pendingReq {
		c.protocol.OnRequest(p.method, p.handler)
	}
	if c.pendingCatch != nil {
		c.protocol.OnUnhandled(c.pendingCatch)
	} else {
		c.protocol.OnUnhandled(func(params json.RawMessage) {
			c.logger.Debug("unhandled peer notification")
		})
	}

	// Acknowledge dynamic capability registration with a null result.
	c.protocol.OnRequest("client/registerCapability", func(params json.RawMessage) (interface{}, error) {
		c.logger.Debug("acknowledged client/registerCapability")
		return nil, nil
	})
}

// Initialize performs the LSP initialize handshake.
//
// Description:
//
//	Sends initialize with the gateway's client capabilities, stores the
//	negotiated peer capabilities, sends the initialized notification,
//	and marks the connection ready.
//
// Errors:
//
//	ErrInitializeFailed - Handshake request failed or response unparsable
//	ErrPeerNotRunning - Connect has not succeeded
//
// Thread Safety:
//
//	Call once, after Connect.
func (c *Client) Initialize(ctx context.Context) error {
	if ctx == nil {
		return fmt.Errorf("ctx must not be nil")
	}
	if c.State() != StateConnected {
		return ErrPeerNotRunning
	}

	params := InitializeParams{
		ProcessID: os.Getpid(),
		RootURI:   "file://" + c.rootPath,
		RootPath:  c.rootPath,
		Capabilities: ClientCapabilities{
			TextDocument: TextDocumentClientCapabilities{
				Synchronization: &TextDocumentSyncClientCapabilities{
					DidSave: true,
				},
				Definition:     &DynamicRegistrationCapability{},
				TypeDefinition: &DynamicRegistrationCapability{},
				Implementation: &DynamicRegistrationCapability{},
				References:     &DynamicRegistrationCapability{},
				Hover: &HoverCapabilities{
					ContentFormat: []string{"markdown", "plaintext"},
				},
				Completion: &CompletionCapabilities{},
				DocumentSymbol: &DocumentSymbolCapabilities{
					HierarchicalDocumentSymbolSupport: true,
				},
				Rename: &RenameCapabilities{
					PrepareSupport: true,
				},
				PublishDiagnostics: &PublishDiagnosticsCapabilities{
					RelatedInformation: true,
				},
			},
			Workspace: WorkspaceClientCapabilities{
				ApplyEdit: true,
				WorkspaceEdit: &WorkspaceEditClientCapabilities{
					DocumentChanges: true,
				},
				Symbol: &DynamicRegistrationCapability{},
			},
		},
		WorkspaceFolders: []WorkspaceFolder{
			{URI: "file://" + c.rootPath, Name: "workspace"},
		},
	}

	if c.config.InitializationOptions != nil {
		params.InitializationOptions = c.config.InitializationOptions
	}

	resp, err := c.protocol.SendRequest(ctx, "initialize", params)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInitializeFailed, err)
	}

	var result InitializeResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return fmt.Errorf("%w: parse initialize result: %v", ErrInitializeFailed, err)
	}
	c.capabilities = result.Capabilities

	if err := c.protocol.SendNotification("initialized", struct{}{}); err != nil {
		return fmt.Errorf("%w: initialized notification: %v", ErrInitializeFailed, err)
	}

	c.stateMu.Lock()
	c.state = StateReady
	c.initialized = true
	c.stateMu.Unlock()

	c.logger.Info("peer ready",
		slog.Bool("definition", c.capabilities.HasDefinitionProvider()),
		slog.Bool("references", c.capabilities.HasReferencesProvider()),
		slog.Bool("hover", c.capabilities.HasHoverProvider()),
		slog.Bool("completion", c.capabilities.HasCompletionProvider()),
		slog.Bool("rename", c.capabilities.HasRenameProvider()),
	)

	return nil
}

// Request sends an LSP request and waits for the response.
//
// Errors:
//
//	ErrNotInitialized - Handshake has not completed
//	ErrRequestTimeout - Context expired while waiting
//	*ProtocolError - Peer returned an error response
//
// Thread Safety:
//
//	Safe for concurrent use.
func (c *Client) Request(ctx context.Context, method string, params interface{}) (*Response, error) {
	if ctx == nil {
		return nil, fmt.Errorf("ctx must not be nil")
	}
	if c.State() != StateReady {
		return nil, ErrNotInitialized
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrRequestTimeout, err)
		}
	}
	return c.protocol.SendRequest(ctx, method, params)
}

// Notify sends an LSP notification.
//
// Thread Safety:
//
//	Safe for concurrent use.
func (c *Client) Notify(method string, params interface{}) error {
	if c.State() != StateReady {
		return ErrNotInitialized
	}
	return c.protocol.SendNotification(method, params)
}

// =============================================================================
// SHUTDOWN SUPPORT
// =============================================================================

// SendShutdown sends the protocol shutdown request and exit notification.
// Errors are logged, not returned; a dying peer often cannot answer.
func (c *Client) SendShutdown(ctx context.Context) {
	if c.protocol == nil {
		return
	}
	if _, err := c.protocol.SendRequest(ctx, "shutdown", nil); err != nil {
		c.logger.Debug("shutdown request failed", slog.String("error", err.Error()))
	}
	if err := c.protocol.SendNotification("exit", nil); err != nil {
		c.logger.Debug("exit notification failed", slog.String("error", err.Error()))
	}
}

// Signal sends an OS signal to the peer process.
func (c *Client) Signal(sig os.Signal) error {
	if c.cmd == nil || c.cmd.Process == nil {
		return ErrPeerNotRunning
	}
	return c.cmd.Process.Signal(sig)
}

// Kill force-terminates the peer process.
func (c *Client) Kill() error {
	if c.cmd == nil || c.cmd.Process == nil {
		return ErrPeerNotRunning
	}
	return c.cmd.Process.Kill()
}

// Exited returns a channel closed when the peer process exits.
func (c *Client) Exited() <-chan struct{} {
	return c.exited
}

// ExitError returns the process exit error once Exited is closed.
func (c *Client) ExitError() error {
	c.exitMu.Lock()
	defer c.exitMu.Unlock()
	return c.exitErr
}

// Close tears down the message channel and releases resources.
//
// Description:
//
//	Marks the protocol closed, cancels pending requests, closes stdin
//	(EOF to the peer), and waits briefly for the read loop. Does not
//	drive the graceful shutdown sequence; that is the shutdown
//	coordinator's job.
//
// Thread Safety:
//
//	Safe for concurrent use. Multiple calls are idempotent.
func (c *Client) Close() {
	c.stateMu.Lock()
	if c.state == StateStopped || c.state == StateStopping {
		c.stateMu.Unlock()
		return
	}
	c.state = StateStopping
	c.stateMu.Unlock()

	if c.protocol != nil {
		c.protocol.Close()
	}
	c.cleanup()

	select {
	case <-c.readDone:
	case <-time.After(time.Second):
	}
}

// cleanup releases resources and sets state to stopped.
func (c *Client) cleanup() {
	if c.cancel != nil {
		c.cancel()
	}
	if c.stdin != nil {
		_ = c.stdin.Close()
	}
	if c.stdout != nil {
		_ = c.stdout.Close()
	}
	c.setState(StateStopped)
}

// =============================================================================
// ACCESSORS
// =============================================================================

// State returns the current connection state.
//
// Thread Safety:
//
//	Safe for concurrent use.
func (c *Client) State() ConnState {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.state
}

// Initialized reports whether the handshake ever completed. Stays true
// through shutdown so the coordinator knows protocol messages are due.
func (c *Client) Initialized() bool {
	c.stateMu.RLock()
	defer c.stateMu.RUnlock()
	return c.initialized
}

// RootPath returns the workspace root path.
func (c *Client) RootPath() string {
	return c.rootPath
}

// Capabilities returns the capabilities negotiated during initialize.
func (c *Client) Capabilities() ServerCapabilities {
	return c.capabilities
}

// PID returns the peer's process id, or 0 before spawn.
func (c *Client) PID() int {
	if c.cmd == nil || c.cmd.Process == nil {
		return 0
	}
	return c.cmd.Process.Pid
}

// =============================================================================
// INTERNAL HELPERS
// =============================================================================

func (c *Client) setState(state ConnState) {
	c.stateMu.Lock()
	c.state = state
	c.stateMu.Unlock()
}

// overlayEnv applies overrides on top of a base environment.
func overlayEnv(base []string, overlay map[string]string) []string {
	if len(overlay) == 0 {
		return base
	}
	env := make([]string, len(base), len(base)+len(overlay))
	copy(env, base)
	for k, v := range overlay {
		env = append(env, k+"="+v)
	}
	return env
}
