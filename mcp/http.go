// ABOUTME: Implements the HTTP transport - one JSON body per POST/response
// ABOUTME: pair, with session affinity via the Mcp-Session-Id header.
package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
)

// HTTPTransport speaks JSON-RPC over plain HTTP POST. Each Send posts
// one request; the response body is decoded and queued so Receive can
// return it. No background reader is needed, and pipelined sends are
// safe because the session correlates replies by id.
type HTTPTransport struct {
	cfg    ServerConfig
	logger *slog.Logger
	http   *http.Client

	mu        sync.Mutex
	sessionID string
	closed    bool

	messages chan *Response
	closeCh  chan struct{}
}

// NewHTTPTransport creates an HTTP transport for the given config.
func NewHTTPTransport(cfg ServerConfig, logger *slog.Logger) *HTTPTransport {
	if logger == nil {
		logger = slog.Default()
	}
	return &HTTPTransport{
		cfg:      cfg,
		logger:   logger.With("mcp_server", cfg.Name, "transport", "http"),
		http:     &http.Client{},
		messages: make(chan *Response, 32),
		closeCh:  make(chan struct{}),
	}
}

// Connect is a no-op beyond validation; HTTP is connectionless and the
// handshake requests themselves establish the session.
func (t *HTTPTransport) Connect(ctx context.Context) error {
	return nil
}

// Send POSTs one request and queues the decoded response body.
func (t *HTTPTransport) Send(ctx context.Context, req *Request) error {
	respBody, err := t.post(ctx, req)
	if err != nil {
		return err
	}

	var msg Response
	if err := json.Unmarshal(respBody, &msg); err != nil {
		return &TransportError{Op: "send", Err: fmt.Errorf("unmarshal response: %w", err)}
	}

	select {
	case t.messages <- &msg:
		return nil
	case <-t.closeCh:
		return &TransportError{Op: "send", Err: ErrClosed}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// SendNotification POSTs one notification; 200 and 202 are both
// acceptable, and any body is discarded.
func (t *HTTPTransport) SendNotification(ctx context.Context, notif *Notification) error {
	_, err := t.postBody(ctx, notif)
	return err
}

func (t *HTTPTransport) post(ctx context.Context, req *Request) ([]byte, error) {
	return t.postBody(ctx, req)
}

func (t *HTTPTransport) postBody(ctx context.Context, payload any) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal message: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return nil, &TransportError{Op: "send", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	for k, v := range t.cfg.Headers {
		httpReq.Header.Set(k, v)
	}

	t.mu.Lock()
	if t.sessionID != "" {
		httpReq.Header.Set("Mcp-Session-Id", t.sessionID)
	}
	t.mu.Unlock()

	httpResp, err := t.http.Do(httpReq)
	if err != nil {
		return nil, &TransportError{Op: "send", Err: err}
	}
	defer httpResp.Body.Close()

	if sid := httpResp.Header.Get("Mcp-Session-Id"); sid != "" {
		t.mu.Lock()
		t.sessionID = sid
		t.mu.Unlock()
	}

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, 10<<20))
	if err != nil {
		return nil, &TransportError{Op: "send", Err: fmt.Errorf("read response body: %w", err)}
	}

	if httpResp.StatusCode != http.StatusOK && httpResp.StatusCode != http.StatusAccepted {
		return nil, &TransportError{Op: "send", Err: fmt.Errorf("server returned %d: %s", httpResp.StatusCode, respBody)}
	}
	return respBody, nil
}

// Receive returns the next queued response.
func (t *HTTPTransport) Receive(ctx context.Context) (*Response, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-t.closeCh:
		return nil, &TransportError{Op: "receive", Err: ErrClosed}
	case msg := <-t.messages:
		return msg, nil
	}
}

// Close marks the transport closed and unblocks any pending Receive.
func (t *HTTPTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return nil
	}
	t.closed = true
	close(t.closeCh)
	return nil
}
