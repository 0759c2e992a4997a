// ABOUTME: Tests for the HTTP transport - POST framing, session affinity
// ABOUTME: headers, and error status handling.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestHTTPTransportSendReceive(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != "POST" {
			t.Errorf("expected POST, got %s", r.Method)
		}

		var req Request
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("failed to decode request: %v", err)
		}

		w.Header().Set("Mcp-Session-Id", "sess-123")
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(Response{
			JSONRPC: jsonrpcVersion,
			ID:      req.ID,
			Result:  json.RawMessage(`{"tools":[]}`),
		})
	}))
	defer server.Close()

	tr := NewHTTPTransport(ServerConfig{Name: "test", Transport: "http", URL: server.URL}, nil)
	defer tr.Close()

	ctx := context.Background()
	if err := tr.Connect(ctx); err != nil {
		t.Fatalf("Connect failed: %v", err)
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

	if tr.sessionID != "sess-123" {
		t.Errorf("expected captured session id, got %q", tr.sessionID)
	}
}

func TestHTTPTransportSessionHeaderEchoed(t *testing.T) {
	var sawSession string
	calls := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.Header().Set("Mcp-Session-Id", "sess-456")
		} else {
			sawSession = r.Header.Get("Mcp-Session-Id")
		}

		var req Request
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(Response{JSONRPC: jsonrpcVersion, ID: req.ID, Result: json.RawMessage(`{}`)})
	}))
	defer server.Close()

	tr := NewHTTPTransport(ServerConfig{Name: "test", URL: server.URL}, nil)
	defer tr.Close()

	ctx := context.Background()
	tr.Send(ctx, NewRequest(1, "initialize", nil))
	tr.Send(ctx, NewRequest(2, "tools/list", nil))

	if sawSession != "sess-456" {
		t.Errorf("expected second request to carry session id, got %q", sawSession)
	}
}

func TestHTTPTransportServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	tr := NewHTTPTransport(ServerConfig{Name: "test", URL: server.URL}, nil)
	defer tr.Close()

	err := tr.Send(context.Background(), NewRequest(1, "tools/list", nil))
	var te *TransportError
	if !errors.As(err, &te) {
		t.Fatalf("expected TransportError, got %v", err)
	}
}

func TestHTTPTransportNotificationAccepted(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	tr := NewHTTPTransport(ServerConfig{Name: "test", URL: server.URL}, nil)
	defer tr.Close()

	if err := tr.SendNotification(context.Background(), NewNotification("notifications/initialized", nil)); err != nil {
		t.Fatalf("notification failed: %v", err)
	}
}

func TestHTTPTransportReceiveUnblocksOnClose(t *testing.T) {
	tr := NewHTTPTransport(ServerConfig{Name: "test", URL: "http://example.invalid"}, nil)

	done := make(chan error, 1)
	go func() {
		_, err := tr.Receive(context.Background())
		done <- err
	}()

	tr.Close()

	err := <-done
	var te *TransportError
	if !errors.As(err, &te) || !te.Closed() {
		t.Errorf("expected closed TransportError, got %v", err)
	}
}
