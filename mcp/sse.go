// ABOUTME: Implements the SSE transport - a long-lived GET event stream for
// ABOUTME: server messages with out-of-band POSTs for client messages.
package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
)

// SSETransport reads server messages from a Server-Sent Events stream
// and sends client messages by POSTing to a companion endpoint the
// server announces in its first "endpoint" event. Requests and
// responses are decoupled streams correlated by message id.
type SSETransport struct {
	cfg    ServerConfig
	logger *slog.Logger
	http   *http.Client

	mu       sync.Mutex
	endpoint string
	cancel   context.CancelFunc

	endpointCh chan struct{}
	messages   chan *Response
	closeCh    chan struct{}

	errOnce sync.Once
	readErr error
}

// NewSSETransport creates an SSE transport. The stream is not opened
// until Connect.
func NewSSETransport(cfg ServerConfig, logger *slog.Logger) *SSETransport {
	if logger == nil {
		logger = slog.Default()
	}
	return &SSETransport{
		cfg:        cfg,
		logger:     logger.With("mcp_server", cfg.Name, "transport", "sse"),
		http:       &http.Client{},
		endpointCh: make(chan struct{}),
		messages:   make(chan *Response, 32),
		closeCh:    make(chan struct{}),
	}
}

// Connect opens the event stream and waits for the server to announce
// its message endpoint.
func (t *SSETransport) Connect(ctx context.Context) error {
	// The stream outlives Connect's context; it is torn down by Close.
	streamCtx, cancel := context.WithCancel(context.Background())

	req, err := http.NewRequestWithContext(streamCtx, http.MethodGet, t.cfg.URL, nil)
	if err != nil {
		cancel()
		return &TransportError{Op: "connect", Err: err}
	}
	req.Header.Set("Accept", "text/event-stream")
	for k, v := range t.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := t.http.Do(req)
	if err != nil {
		cancel()
		return &TransportError{Op: "connect", Err: err}
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		cancel()
		return &TransportError{Op: "connect", Err: fmt.Errorf("event stream returned %d", resp.StatusCode)}
	}

	t.mu.Lock()
	t.cancel = cancel
	t.mu.Unlock()

	go t.readLoop(resp.Body)

	// The endpoint event must arrive before any Send can work.
	select {
	case <-t.endpointCh:
		return nil
	case <-t.closeCh:
		return &TransportError{Op: "connect", Err: ErrClosed}
	case <-ctx.Done():
		t.Close()
		return &TransportError{Op: "connect", Err: fmt.Errorf("waiting for endpoint event: %w", ctx.Err())}
	}
}

// readLoop parses event:/data: frames from the stream. An "endpoint"
// event carries the POST URL; "message" events carry JSON-RPC.
func (t *SSETransport) readLoop(body io.ReadCloser) {
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 10<<20)

	var event string
	var dataLines []string

	for scanner.Scan() {
		line := scanner.Text()

		if line == "" {
			if event != "" || len(dataLines) > 0 {
				t.dispatch(event, strings.Join(dataLines, "\n"))
				event = ""
				dataLines = nil
			}
			continue
		}

		if strings.HasPrefix(line, "event:") {
			event = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		} else if strings.HasPrefix(line, "data:") {
			dataLines = append(dataLines, strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		}
		// Ignore other fields (id:, retry:, comments)
	}

	if err := scanner.Err(); err != nil {
		t.fail(fmt.Errorf("read event stream: %w", err))
	} else {
		t.fail(fmt.Errorf("event stream ended: %w", ErrClosed))
	}
}

func (t *SSETransport) dispatch(event, data string) {
	switch event {
	case "endpoint":
		resolved := data
		if base, err := url.Parse(t.cfg.URL); err == nil {
			if ref, err := url.Parse(data); err == nil {
				resolved = base.ResolveReference(ref).String()
			}
		}
		t.mu.Lock()
		first := t.endpoint == ""
		t.endpoint = resolved
		t.mu.Unlock()
		if first {
			close(t.endpointCh)
		}
		t.logger.Debug("received message endpoint", "endpoint", resolved)

	case "message", "":
		var msg Response
		if err := json.Unmarshal([]byte(data), &msg); err != nil {
			t.logger.Debug("skipping unparseable SSE data", "data", data)
			return
		}
		select {
		case t.messages <- &msg:
		case <-t.closeCh:
		}

	default:
		t.logger.Debug("ignoring SSE event", "event", event)
	}
}

func (t *SSETransport) fail(err error) {
	t.errOnce.Do(func() {
		t.readErr = err
		close(t.messages)
	})
}

// Send POSTs one request to the announced message endpoint. The reply
// arrives on the event stream, not in the POST response.
func (t *SSETransport) Send(ctx context.Context, req *Request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	return t.post(ctx, data)
}

// SendNotification POSTs one notification to the message endpoint.
func (t *SSETransport) SendNotification(ctx context.Context, notif *Notification) error {
	data, err := json.Marshal(notif)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	return t.post(ctx, data)
}

func (t *SSETransport) post(ctx context.Context, body []byte) error {
	t.mu.Lock()
	endpoint := t.endpoint
	t.mu.Unlock()
	if endpoint == "" {
		return &TransportError{Op: "send", Err: ErrNotConnected}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return &TransportError{Op: "send", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range t.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := t.http.Do(req)
	if err != nil {
		return &TransportError{Op: "send", Err: err}
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<20))

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return &TransportError{Op: "send", Err: fmt.Errorf("message endpoint returned %d", resp.StatusCode)}
	}
	return nil
}

// Receive returns the next message from the event stream.
func (t *SSETransport) Receive(ctx context.Context) (*Response, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case msg, ok := <-t.messages:
		if !ok {
			return nil, &TransportError{Op: "receive", Err: t.readErr}
		}
		return msg, nil
	}
}

// Close tears down the event stream and unblocks any pending Receive.
func (t *SSETransport) Close() error {
	t.mu.Lock()
	cancel := t.cancel
	t.cancel = nil
	select {
	case <-t.closeCh:
	default:
		close(t.closeCh)
	}
	t.mu.Unlock()
	t.fail(ErrClosed)

	if cancel != nil {
		cancel()
	}
	return nil
}
