// ABOUTME: Tests for the SSE transport - endpoint discovery, event framing,
// ABOUTME: and the out-of-band POST channel.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

// sseTestServer streams an endpoint event, then echoes every POSTed
// request back over the event stream as a response.
func sseTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	posted := make(chan Request, 16)

	mux := http.NewServeMux()
	mux.HandleFunc("/events", func(w http.ResponseWriter, r *http.Request) {
		flusher, ok := w.(http.Flusher)
		if !ok {
			t.Fatal("test server does not support flushing")
		}
		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)

		fmt.Fprintf(w, "event: endpoint\ndata: /messages\n\n")
		flusher.Flush()

		for {
			select {
			case <-r.Context().Done():
				return
			case req := <-posted:
				resp := Response{
					JSONRPC: jsonrpcVersion,
					ID:      req.ID,
					Result:  json.RawMessage(`{"echoed":true}`),
				}
				data, _ := json.Marshal(resp)
				fmt.Fprintf(w, "event: message\ndata: %s\n\n", data)
				flusher.Flush()
			}
		}
	})
	mux.HandleFunc("/messages", func(w http.ResponseWriter, r *http.Request) {
		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			// Notifications have no id; accept and drop them.
			w.WriteHeader(http.StatusAccepted)
			return
		}
		if req.ID != 0 {
			posted <- req
		}
		w.WriteHeader(http.StatusAccepted)
	})

	return httptest.NewServer(mux)
}

func TestSSETransportRoundTrip(t *testing.T) {
	server := sseTestServer(t)
	defer server.Close()

	tr := NewSSETransport(ServerConfig{Name: "test", Transport: "sse", URL: server.URL + "/events"}, nil)
	defer tr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := tr.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	// The endpoint event resolved against the base URL.
	if !strings.HasSuffix(tr.endpoint, "/messages") {
		t.Errorf("unexpected endpoint: %q", tr.endpoint)
	}

	if err := tr.Send(ctx, NewRequest(1, "tools/list", nil)); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	resp, err := tr.Receive(ctx)
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if resp.ID != 1 {
		t.Errorf("expected response id 1, got %d", resp.ID)
	}
}

func TestSSETransportSendBeforeConnect(t *testing.T) {
	tr := NewSSETransport(ServerConfig{Name: "test", URL: "http://example.invalid/events"}, nil)
	err := tr.Send(context.Background(), NewRequest(1, "tools/list", nil))
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if !errors.Is(err, ErrNotConnected) {
		t.Errorf("expected ErrNotConnected cause, got %v", err)
	}
}

func TestSSETransportReceiveFailsAfterStreamEnds(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flusher := w.(http.Flusher)
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintf(w, "event: endpoint\ndata: /messages\n\n")
		flusher.Flush()
		// Then the server hangs up.
	}))
	defer server.Close()

	tr := NewSSETransport(ServerConfig{Name: "test", URL: server.URL}, nil)
	defer tr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := tr.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	_, err := tr.Receive(ctx)
	var te *TransportError
	if !errors.As(err, &te) || !te.Closed() {
		t.Errorf("expected closed TransportError, got %v", err)
	}
}

func TestSSEFrameParsing(t *testing.T) {
	tr := NewSSETransport(ServerConfig{Name: "test", URL: "http://example.invalid/events"}, nil)

	// Multi-line data accumulates; unknown events are ignored.
	tr.dispatch("message", `{"jsonrpc":"2.0","id":3,"result":{}}`)

	select {
	case msg := <-tr.messages:
		if msg.ID != 3 {
			t.Errorf("expected id 3, got %d", msg.ID)
		}
	default:
		t.Fatal("expected a queued message")
	}

	tr.dispatch("heartbeat", "ignored")
	select {
	case <-tr.messages:
		t.Error("unknown event types must not queue messages")
	default:
	}
}
