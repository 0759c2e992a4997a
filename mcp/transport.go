// ABOUTME: Defines the Transport interface - an abstract duplex message
// ABOUTME: channel - and the factory that builds one from server config.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
)

// Transport is an abstract duplex channel carrying JSON-RPC messages
// to and from one MCP server. A Transport is exclusively owned by its
// Session and never shared.
//
// Receive blocks until one full message is available, the context is
// cancelled, or the channel fails. After the underlying channel breaks
// or Close is called, Receive fails with a TransportError whose cause
// is ErrClosed.
type Transport interface {
	// Connect establishes the channel: spawns the subprocess, opens
	// the event stream, or verifies the endpoint, and starts any
	// background reader the framing requires.
	Connect(ctx context.Context) error

	// Send writes one request to the server.
	Send(ctx context.Context, req *Request) error

	// SendNotification writes a notification; no reply is expected.
	SendNotification(ctx context.Context, notif *Notification) error

	// Receive returns the next message from the server.
	Receive(ctx context.Context) (*Response, error)

	// Close tears down the channel and unblocks any pending Receive.
	Close() error
}

// NewTransport builds a Transport for the given server config.
func NewTransport(cfg ServerConfig, logger *slog.Logger) (Transport, error) {
	if logger == nil {
		logger = slog.Default()
	}
	switch cfg.Transport {
	case "stdio", "":
		if cfg.Command == "" {
			return nil, fmt.Errorf("stdio transport for %s: command is required", cfg.Name)
		}
		return NewStdioTransport(cfg, logger), nil
	case "sse":
		if cfg.URL == "" {
			return nil, fmt.Errorf("sse transport for %s: url is required", cfg.Name)
		}
		return NewSSETransport(cfg, logger), nil
	case "http", "streamable-http":
		if cfg.URL == "" {
			return nil, fmt.Errorf("http transport for %s: url is required", cfg.Name)
		}
		return NewHTTPTransport(cfg, logger), nil
	default:
		return nil, fmt.Errorf("unsupported transport: %s", cfg.Transport)
	}
}
