// Package rpc is the client side of the battle server's line-delimited JSON-RPC transport.
//
// A Conn performs the capability handshake and then issues strictly alternating calls:
// each call writes one frame and blocks for the single response that carries its id.
package rpc

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/looplab/fsm"
	"go.uber.org/zap"

	"github.com/cory-johannsen/pokeduel/internal/protocol"
)

// Connection states.
const (
	StateDisconnected = "disconnected"
	StateHandshaking  = "handshaking"
	StateReady        = "ready"
	StateSent         = "sent"
	StateAwaiting     = "awaiting_response"
	StateClosed       = "closed"
)

const (
	eventHandshake = "handshake"
	eventReady     = "ready"
	eventSend      = "send"
	eventAwait     = "await"
	eventReceive   = "receive"
	eventClose     = "close"
)

// Implementation names one end of the connection.
type Implementation struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// InitializeResult is the server's handshake reply.
type InitializeResult struct {
	ProtocolVersion string          `json:"protocolVersion"`
	ServerInfo      Implementation  `json:"serverInfo"`
	Capabilities    json.RawMessage `json:"capabilities,omitempty"`
}

type initializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ClientInfo      Implementation `json:"clientInfo"`
}

// Conn is one client connection. Calls are serialized; at most one request is in flight.
type Conn struct {
	mu       sync.Mutex
	machine  *fsm.FSM
	reader   *bufio.Reader
	writer   io.Writer
	closer   io.Closer
	once     sync.Once
	nextID   int64
	maxFrame int
	logger   *zap.Logger
}

// NewConn wraps a duplex byte stream. A maxFrame of zero selects DefaultMaxFrameBytes.
//
// Precondition: rwc and logger must be non-nil.
// Postcondition: the connection is in StateDisconnected until Handshake succeeds.
func NewConn(rwc io.ReadWriteCloser, maxFrame int, logger *zap.Logger) *Conn {
	if maxFrame <= 0 {
		maxFrame = DefaultMaxFrameBytes
	}
	c := &Conn{
		reader:   bufio.NewReader(rwc),
		writer:   rwc,
		closer:   rwc,
		maxFrame: maxFrame,
		logger:   logger,
	}
	c.machine = fsm.NewFSM(
		StateDisconnected,
		fsm.Events{
			{Name: eventHandshake, Src: []string{StateDisconnected}, Dst: StateHandshaking},
			{Name: eventReady, Src: []string{StateHandshaking}, Dst: StateReady},
			{Name: eventSend, Src: []string{StateReady}, Dst: StateSent},
			{Name: eventAwait, Src: []string{StateSent}, Dst: StateAwaiting},
			{Name: eventReceive, Src: []string{StateAwaiting}, Dst: StateReady},
			{Name: eventClose, Src: []string{StateDisconnected, StateHandshaking, StateReady, StateSent, StateAwaiting}, Dst: StateClosed},
		},
		fsm.Callbacks{
			"enter_" + StateClosed: func(_ context.Context, e *fsm.Event) {
				c.logger.Debug("rpc connection closed", zap.String("from", e.Src))
			},
		},
	)
	return c
}

// State returns the current connection state.
func (c *Conn) State() string {
	return c.machine.Current()
}

// Handshake declares the protocol version and client capabilities, waits for the server's
// reply, and sends the initialized notification.
//
// Precondition: the connection must be in StateDisconnected.
// Postcondition: on success the connection is Ready; on failure it is closed.
func (c *Conn) Handshake(ctx context.Context, version string) (*InitializeResult, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.machine.Event(ctx, eventHandshake); err != nil {
		return nil, c.stateError(err)
	}
	if version == "" {
		version = protocol.Version
	}
	params := initializeParams{
		ProtocolVersion: version,
		Capabilities: map[string]any{
			"resources": map[string]any{"subscribe": true},
			"tools":     map[string]any{},
		},
		ClientInfo: Implementation{Name: protocol.ClientName, Version: protocol.ClientVersion},
	}

	id := c.allocID()
	if err := c.write(id, protocol.MethodInitialize, params); err != nil {
		return nil, err
	}
	resp, err := c.await(ctx, protocol.MethodInitialize, id)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		c.Close()
		return nil, fmt.Errorf("initialize rejected: %w", resp.Error)
	}
	var result InitializeResult
	if len(resp.Result) > 0 {
		if err := json.Unmarshal(resp.Result, &result); err != nil {
			c.Close()
			return nil, &ProtocolError{Op: protocol.MethodInitialize, ID: id, Cause: err}
		}
	}

	if err := c.write(0, protocol.MethodInitialized, map[string]any{}); err != nil {
		return nil, err
	}
	if err := c.machine.Event(ctx, eventReady); err != nil {
		return nil, c.stateError(err)
	}
	c.logger.Info("rpc handshake complete",
		zap.String("server", result.ServerInfo.Name),
		zap.String("protocol_version", result.ProtocolVersion),
	)
	return &result, nil
}

// Call sends method with params and decodes the matching response's result into result,
// which may be nil.
//
// Precondition: the connection must be Ready.
// Postcondition: an error frame is returned as *RemoteError and leaves the connection Ready.
// A protocol violation, I/O failure, or ctx ending while awaiting the response closes the
// connection; every later call returns ErrClosed.
func (c *Conn) Call(ctx context.Context, method string, params, result any) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}
	if err := c.machine.Event(ctx, eventSend); err != nil {
		return c.stateError(err)
	}
	id := c.allocID()
	if err := c.write(id, method, params); err != nil {
		return err
	}
	if err := c.machine.Event(ctx, eventAwait); err != nil {
		return c.stateError(err)
	}
	resp, err := c.await(ctx, method, id)
	if err != nil {
		return err
	}
	if err := c.machine.Event(ctx, eventReceive); err != nil {
		return c.stateError(err)
	}

	if resp.Error != nil {
		return fmt.Errorf("%s: %w", method, resp.Error)
	}
	if result == nil || len(resp.Result) == 0 {
		return nil
	}
	if err := json.Unmarshal(resp.Result, result); err != nil {
		return fmt.Errorf("decoding %s result: %w", method, err)
	}
	return nil
}

// Close closes the underlying stream. It is safe to call more than once.
func (c *Conn) Close() error {
	var err error
	c.once.Do(func() {
		_ = c.machine.Event(context.Background(), eventClose)
		err = c.closer.Close()
	})
	return err
}

func (c *Conn) allocID() int64 {
	c.nextID++
	return c.nextID
}

// write sends one frame. An id of zero sends a notification.
func (c *Conn) write(id int64, method string, params any) error {
	req := request{JSONRPC: jsonrpcVersion, Method: method, Params: params}
	if id > 0 {
		req.ID = &id
	}
	data, err := encodeFrame(req)
	if err != nil {
		return err
	}
	c.logger.Debug("rpc frame sent", zap.Int64("id", id), zap.String("method", method))
	if _, err := c.writer.Write(data); err != nil {
		c.Close()
		return fmt.Errorf("writing %s: %w", method, err)
	}
	return nil
}

// await reads frames until the response for id arrives. Notifications are skipped.
func (c *Conn) await(ctx context.Context, op string, id int64) (*response, error) {
	stop := context.AfterFunc(ctx, func() { c.Close() })
	defer stop()

	for {
		line, err := readFrame(c.reader, c.maxFrame)
		if err != nil {
			c.Close()
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, fmt.Errorf("awaiting %s response: %w", op, ctxErr)
			}
			return nil, &ProtocolError{Op: op, ID: id, Cause: err}
		}
		resp, err := decodeFrame(line)
		if err != nil {
			c.Close()
			return nil, &ProtocolError{Op: op, ID: id, Cause: err}
		}
		if resp.notification() {
			c.logger.Debug("rpc notification skipped", zap.String("method", resp.Method))
			continue
		}
		if resp.ID == nil || *resp.ID != id {
			c.Close()
			got := "null"
			if resp.ID != nil {
				got = fmt.Sprint(*resp.ID)
			}
			return nil, &ProtocolError{Op: op, ID: id, Cause: fmt.Errorf("response id %s does not match request id %d", got, id)}
		}
		if !resp.validReply() {
			c.Close()
			return nil, &ProtocolError{Op: op, ID: id, Cause: errors.New("response must carry exactly one of result or error")}
		}
		c.logger.Debug("rpc frame received", zap.Int64("id", id), zap.String("method", op))
		if !stop() {
			return nil, fmt.Errorf("awaiting %s response: %w", op, context.Cause(ctx))
		}
		return resp, nil
	}
}

// stateError translates a rejected transition into ErrClosed or ErrNotReady.
func (c *Conn) stateError(err error) error {
	if c.machine.Is(StateClosed) {
		return ErrClosed
	}
	return fmt.Errorf("%w: state %s: %v", ErrNotReady, c.machine.Current(), err)
}
