package rpc

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cory-johannsen/pokeduel/internal/game/species"
	"github.com/cory-johannsen/pokeduel/internal/protocol"
)

var (
	// ErrProtocolViolation marks a malformed frame, a truncated stream, or a mismatched
	// response id. It is fatal to the connection.
	ErrProtocolViolation = errors.New("rpc protocol violation")
	// ErrClosed is returned by every call on a closed connection.
	ErrClosed = errors.New("rpc connection closed")
	// ErrNotReady is returned when a call is made before the handshake completes.
	ErrNotReady = errors.New("rpc connection not ready")
)

// ProtocolError describes a ProtocolViolation.
type ProtocolError struct {
	Op    string
	ID    int64
	Cause error
}

func (e *ProtocolError) Error() string {
	msg := fmt.Sprintf("rpc protocol violation during %s", e.Op)
	if e.ID > 0 {
		msg += fmt.Sprintf(" (request %d)", e.ID)
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap exposes both ErrProtocolViolation and the underlying cause.
func (e *ProtocolError) Unwrap() []error {
	if e.Cause == nil {
		return []error{ErrProtocolViolation}
	}
	return []error{ErrProtocolViolation, e.Cause}
}

// RemoteError is an error frame returned by the far end.
type RemoteError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("rpc remote error %d: %s", e.Code, e.Message)
}

// Unwrap maps a resource-not-found code to species.ErrNotFound.
func (e *RemoteError) Unwrap() error {
	if e.Code == protocol.CodeResourceNotFound {
		return species.ErrNotFound
	}
	return nil
}

// ToolError is a tool result flagged isError by the server.
type ToolError struct {
	Tool    string
	Message string
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %s failed: %s", e.Tool, e.Message)
}
