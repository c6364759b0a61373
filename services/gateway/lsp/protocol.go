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
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
)

// JSONRPCVersion is the JSON-RPC version used by LSP.
const JSONRPCVersion = "2.0"

// =============================================================================
// JSON-RPC MESSAGE TYPES
// =============================================================================

// Request represents a JSON-RPC request.
type Request struct {
	// JSONRPC is the protocol version, always "2.0".
	JSONRPC string `json:"jsonrpc"`

	// ID is the request identifier. Omit for notifications.
	ID int64 `json:"id,omitempty"`

	// Method is the method to invoke.
	Method string `json:"method"`

	// Params contains the method parameters.
	Params interface{} `json:"params,omitempty"`
}

// Response represents a JSON-RPC response.
type Response struct {
	// JSONRPC is the protocol version, always "2.0".
	JSONRPC string `json:"jsonrpc"`

	// ID is the request identifier this response corresponds to.
	ID int64 `json:"id"`

	// Result contains the method result (mutually exclusive with Error).
	Result json.RawMessage `json:"result,omitempty"`

	// Error contains error information (mutually exclusive with Result).
	Error *ResponseError `json:"error,omitempty"`
}

// ResponseError represents a JSON-RPC error.
type ResponseError struct {
	// Code is the error code.
	Code int `json:"code"`

	// Message is a short description of the error.
	Message string `json:"message"`

	// Data contains additional error information.
	Data interface{} `json:"data,omitempty"`
}

// Notification represents a JSON-RPC notification (no ID, no response).
type Notification struct {
	// JSONRPC is the protocol version, always "2.0".
	JSONRPC string `json:"jsonrpc"`

	// Method is the method to invoke.
	Method string `json:"method"`

	// Params contains the method parameters.
	Params interface{} `json:"params,omitempty"`
}

// reply is the outbound answer to a peer-initiated request. Result is
// always serialized, so a nil result produces an explicit JSON null.
type reply struct {
	JSONRPC string         `json:"jsonrpc"`
	ID      int64          `json:"id"`
	Result  interface{}    `json:"result"`
	Error   *ResponseError `json:"error,omitempty"`
}

// NotificationHandler consumes a peer-initiated notification.
type NotificationHandler func(params json.RawMessage)

// RequestHandler answers a peer-initiated request. The returned value is
// serialized as the result; returning (nil, nil) produces a null result.
type RequestHandler func(params json.RawMessage) (interface{}, error)

// =============================================================================
// PROTOCOL HANDLER
// =============================================================================

// Protocol handles JSON-RPC communication over a peer's stdio streams.
//
// Description:
//
//	Implements the LSP base protocol using Content-Length headers.
//	Correlates requests with responses, dispatches peer-initiated
//	notifications and requests to registered handlers, and answers any
//	unhandled peer request with a null result. Some peers treat an error
//	response to their own nested requests as fatal, so method-not-found
//	is never sent.
//
// Thread Safety:
//
//	Safe for concurrent use. Multiple goroutines can send requests and
//	notifications simultaneously. Handler registration must complete
//	before ReadLoop starts.
type Protocol struct {
	reader    *bufio.Reader
	writer    io.Writer
	writeMu   sync.Mutex
	nextID    int64
	pending   map[int64]chan Response
	pendingMu sync.Mutex
	closed    int32 // atomic: 1 if closed

	notifHandlers map[string][]NotificationHandler
	reqHandlers   map[string]RequestHandler
	catchAll      NotificationHandler
}

// NewProtocol creates a new protocol handler.
//
// Inputs:
//
//	r - Reader for peer output (e.g., stdout pipe)
//	w - Writer for gateway output (e.g., stdin pipe)
func NewProtocol(r io.Reader, w io.Writer) *Protocol {
	var reader *bufio.Reader
	if r != nil {
		reader = bufio.NewReader(r)
	}
	return &Protocol{
		reader:        reader,
		writer:        w,
		pending:       make(map[int64]chan Response),
		notifHandlers: make(map[string][]NotificationHandler),
		reqHandlers:   make(map[string]RequestHandler),
	}
}

// OnNotification registers a handler for a peer-initiated notification
// method. Multiple handlers per method are invoked in registration order.
//
// Thread Safety: must be called before ReadLoop starts.
func (p *Protocol) OnNotification(method string, h NotificationHandler) {
	p.notifHandlers[method] = append(p.notifHandlers[method], h)
}

// OnRequest registers a handler for a peer-initiated request method.
// The last registration per method wins.
//
// Thread Safety: must be called before ReadLoop starts.
func (p *Protocol) OnRequest(method string, h RequestHandler) {
	p.reqHandlers[method] = h
}

// OnUnhandled registers a catch-all invoked for every peer-initiated
// notification that has no specific handler.
//
// Thread Safety: must be called before ReadLoop starts.
func (p *Protocol) OnUnhandled(h NotificationHandler) {
	p.catchAll = h
}

// SendRequest sends a request and waits for the response.
//
// Description:
//
//	Sends a JSON-RPC request to the peer and blocks until a response is
//	received or the context is cancelled. Peer error responses surface
//	as *ProtocolError.
//
// Inputs:
//
//	ctx - Context for cancellation and timeout
//	method - The LSP method to invoke (e.g., "textDocument/definition")
//	params - Method parameters (will be JSON-marshaled)
//
// Outputs:
//
//	*Response - The peer's response
//	error - Non-nil if sending failed, timeout, or peer returned an error
//
// Thread Safety:
//
//	Safe for concurrent use.
func (p *Protocol) SendRequest(ctx context.Context, method string, params interface{}) (*Response, error) {
	if ctx == nil {
		return nil, fmt.Errorf("ctx must not be nil")
	}
	if atomic.LoadInt32(&p.closed) == 1 {
		return nil, ErrPeerNotRunning
	}

	id := atomic.AddInt64(&p.nextID, 1)

	req := Request{
		JSONRPC: JSONRPCVersion,
		ID:      id,
		Method:  method,
		Params:  params,
	}

	respCh := make(chan Response, 1)
	p.pendingMu.Lock()
	p.pending[id] = respCh
	p.pendingMu.Unlock()

	defer func() {
		p.pendingMu.Lock()
		delete(p.pending, id)
		p.pendingMu.Unlock()
	}()

	if err := p.writeMessage(req); err != nil {
		return nil, fmt.Errorf("write request: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrRequestTimeout, ctx.Err())
	case resp := <-respCh:
		if resp.Error != nil {
			return nil, &ProtocolError{
				Code:    resp.Error.Code,
				Message: resp.Error.Message,
				Data:    resp.Error.Data,
			}
		}
		return &resp, nil
	}
}

// SendNotification sends a notification (no response expected).
//
// Thread Safety:
//
//	Safe for concurrent use.
func (p *Protocol) SendNotification(method string, params interface{}) error {
	if atomic.LoadInt32(&p.closed) == 1 {
		return ErrPeerNotRunning
	}

	notif := Notification{
		JSONRPC: JSONRPCVersion,
		Method:  method,
		Params:  params,
	}
	return p.writeMessage(notif)
}

// writeMessage marshals and writes a message with Content-Length header.
func (p *Protocol) writeMessage(v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}

	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(data))
	if _, err := p.writer.Write([]byte(header)); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	if _, err := p.writer.Write(data); err != nil {
		return fmt.Errorf("write body: %w", err)
	}
	return nil
}

// ReadLoop reads messages from the peer and dispatches them.
//
// Description:
//
//	Continuously reads messages. Responses are matched to pending
//	requests; notifications and peer-initiated requests are dispatched
//	to registered handlers. Call this in a goroutine after spawning the
//	peer.
//
// Outputs:
//
//	error - ErrPeerCrashed on EOF, nil after Close, read errors otherwise
//
// Thread Safety:
//
//	Must be called from a single goroutine. Safe to run while other
//	goroutines call SendRequest/SendNotification.
func (p *Protocol) ReadLoop(ctx context.Context) error {
	if p.reader == nil {
		return fmt.Errorf("no reader configured")
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		msg, err := p.readMessage()
		if err != nil {
			if err == io.EOF {
				if atomic.LoadInt32(&p.closed) == 1 {
					return nil
				}
				return ErrPeerCrashed
			}
			if atomic.LoadInt32(&p.closed) == 1 {
				return nil
			}
			return fmt.Errorf("read: %w", err)
		}

		p.handleMessage(msg)
	}
}

// readMessage reads a single framed message from the peer.
func (p *Protocol) readMessage() (json.RawMessage, error) {
	var contentLength int

	for {
		line, err := p.reader.ReadString('\n')
		if err != nil {
			return nil, err
		}
		line = strings.TrimSpace(line)

		// Empty line marks end of headers
		if line == "" {
			break
		}

		if strings.HasPrefix(line, "Content-Length:") {
			lenStr := strings.TrimSpace(strings.TrimPrefix(line, "Content-Length:"))
			var err error
			contentLength, err = strconv.Atoi(lenStr)
			if err != nil {
				return nil, fmt.Errorf("invalid Content-Length value %q: %w", lenStr, err)
			}
			if contentLength < 0 {
				return nil, fmt.Errorf("negative Content-Length: %d", contentLength)
			}
		}
		// Ignore other headers (Content-Type, etc.)
	}

	if contentLength == 0 {
		return nil, fmt.Errorf("missing or zero Content-Length header")
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(p.reader, body); err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	return body, nil
}

// inbound probes the minimal shape of a received message so responses,
// notifications, and peer requests can be told apart.
type inbound struct {
	ID     *int64          `json:"id"`
	Method string          `json:"method"`
	Params json.RawMessage `json:"params"`
}

// handleMessage dispatches a received message.
func (p *Protocol) handleMessage(msg json.RawMessage) {
	var probe inbound
	if err := json.Unmarshal(msg, &probe); err != nil {
		return
	}

	switch {
	case probe.Method == "" && probe.ID != nil:
		// Response to one of our requests.
		var resp Response
		if err := json.Unmarshal(msg, &resp); err != nil {
			return
		}
		p.pendingMu.Lock()
		ch, ok := p.pending[resp.ID]
		p.pendingMu.Unlock()
		if ok {
			select {
			case ch <- resp:
			default:
			}
		}

	case probe.Method != "" && probe.ID != nil:
		p.handlePeerRequest(probe)

	case probe.Method != "":
		p.handlePeerNotification(probe)
	}
}

// handlePeerRequest answers a peer-initiated request. Unhandled methods
// get a null result; an error response here can kill some peers.
func (p *Protocol) handlePeerRequest(msg inbound) {
	var result interface{}
	if h, ok := p.reqHandlers[msg.Method]; ok {
		r, err := h(msg.Params)
		if err == nil {
			result = r
		}
	}
	_ = p.writeMessage(reply{
		JSONRPC: JSONRPCVersion,
		ID:      *msg.ID,
		Result:  result,
	})
}

// handlePeerNotification dispatches a peer-initiated notification.
func (p *Protocol) handlePeerNotification(msg inbound) {
	handlers, ok := p.notifHandlers[msg.Method]
	if !ok {
		if p.catchAll != nil {
			p.catchAll(msg.Params)
		}
		return
	}
	for _, h := range handlers {
		h(msg.Params)
	}
}

// Close marks the protocol as closed.
//
// Description:
//
//	Prevents further sends and cancels all pending requests with an
//	error response. Does not close the underlying streams.
//
// Thread Safety:
//
//	Safe for concurrent use.
func (p *Protocol) Close() {
	atomic.StoreInt32(&p.closed, 1)

	p.pendingMu.Lock()
	for id, ch := range p.pending {
		// Error response so waiting goroutines don't receive a zero value
		select {
		case ch <- Response{
			JSONRPC: JSONRPCVersion,
			ID:      id,
			Error: &ResponseError{
				Code:    -32099, // Server error
				Message: "peer connection closed",
			},
		}:
		default:
		}
		close(ch)
		delete(p.pending, id)
	}
	p.pendingMu.Unlock()
}
