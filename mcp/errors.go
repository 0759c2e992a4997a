// ABOUTME: Error taxonomy for the MCP layer - transport failures, protocol
// ABOUTME: violations, and circuit breaker fail-fast errors.
package mcp

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrClosed indicates the transport or session has been closed.
	ErrClosed = errors.New("closed")

	// ErrNotConnected indicates an operation on a transport that has
	// not completed Connect.
	ErrNotConnected = errors.New("not connected")

	// ErrServerNotFound indicates a manager lookup for an unknown server.
	ErrServerNotFound = errors.New("server not found")
)

// TransportError reports a connection-level failure: refused, broken,
// or closed. The session recovers from these with reconnect/backoff;
// callers only see one when a call was in flight at the moment of
// failure.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport %s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Closed reports whether the failure was an orderly or unexpected
// close of the underlying channel.
func (e *TransportError) Closed() bool { return errors.Is(e.Err, ErrClosed) }

// ProtocolError reports a malformed or mismatched MCP message. These
// indicate a server bug and are always surfaced, never dropped.
type ProtocolError struct {
	Detail string
	ID     int64
}

func (e *ProtocolError) Error() string {
	if e.ID != 0 {
		return fmt.Sprintf("protocol error: %s (id %d)", e.Detail, e.ID)
	}
	return fmt.Sprintf("protocol error: %s", e.Detail)
}

// CircuitOpenError is returned by Invoke while the breaker is open:
// the call fails fast without touching the transport.
type CircuitOpenError struct {
	Server  string
	RetryAt time.Time
}

func (e *CircuitOpenError) Error() string {
	if e.RetryAt.IsZero() {
		return fmt.Sprintf("circuit open for server %s", e.Server)
	}
	return fmt.Sprintf("circuit open for server %s until %s", e.Server, e.RetryAt.Format(time.RFC3339))
}
