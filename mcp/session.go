// ABOUTME: Per-server MCP session - owns one transport, performs the
// ABOUTME: handshake, correlates responses, and recovers from failures.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"
)

// SessionState is the connection lifecycle state of one MCP server.
type SessionState string

const (
	StateDisconnected SessionState = "disconnected"
	StateConnecting   SessionState = "connecting"
	StateReady        SessionState = "ready"
	StateDegraded     SessionState = "degraded"
	StateFailed       SessionState = "failed"
	StateClosed       SessionState = "closed"
)

// healthMissLimit is how many consecutive missed health checks force a
// ready session into degraded.
const healthMissLimit = 3

// clientName identifies this client in the initialize handshake.
const clientName = "crossbar"

// clientVersion is reported in the initialize handshake.
const clientVersion = "0.1.0"

// Session owns the connection to one MCP server: the transport, the
// request id space, the circuit breaker, and the connection state
// machine. All state mutations happen under the session's own mutex;
// other components only read state to decide whether to call Invoke.
type Session struct {
	cfg     ServerConfig
	logger  *slog.Logger
	breaker *Breaker
	factory func() (Transport, error)

	nextID atomic.Int64

	baseCtx    context.Context
	baseCancel context.CancelFunc

	// Test hooks. Default to the wall clock and a context-aware timer.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error

	mu           sync.Mutex
	state        SessionState
	transport    Transport
	loopCancel   context.CancelFunc
	pending      map[int64]chan *Response
	serverInfo   ServerInfo
	capabilities Capabilities
	tools        []ToolInfo
	healthMisses int
	reconnecting bool
}

// NewSession creates a session for the given server. The transport is
// built from the config on each connect attempt, so a reconnect gets a
// fresh subprocess or stream.
func NewSession(cfg ServerConfig, logger *slog.Logger) *Session {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	s := newSession(cfg, logger)
	s.factory = func() (Transport, error) {
		return NewTransport(s.cfg, logger)
	}
	return s
}

// NewSessionWithTransport creates a session whose connect attempts use
// the given transport factory instead of building one from config.
func NewSessionWithTransport(cfg ServerConfig, factory func() (Transport, error), logger *slog.Logger) *Session {
	cfg = cfg.withDefaults()
	if logger == nil {
		logger = slog.Default()
	}
	s := newSession(cfg, logger)
	s.factory = factory
	return s
}

func newSession(cfg ServerConfig, logger *slog.Logger) *Session {
	baseCtx, baseCancel := context.WithCancel(context.Background())
	return &Session{
		cfg:        cfg,
		logger:     logger.With("mcp_server", cfg.Name),
		breaker:    NewBreaker(cfg.BreakerThreshold, cfg.BreakerCooldown),
		baseCtx:    baseCtx,
		baseCancel: baseCancel,
		now:        time.Now,
		sleep:      sleepCtx,
		state:      StateDisconnected,
		pending:    make(map[int64]chan *Response),
	}
}

func (s *Session) setState(st SessionState) {
	s.mu.Lock()
	if s.state != StateClosed {
		s.state = st
	}
	s.mu.Unlock()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Name returns the configured server name.
func (s *Session) Name() string { return s.cfg.Name }

// State returns the current connection state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Tools returns the tool list captured at the last handshake.
func (s *Session) Tools() []ToolInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ToolInfo, len(s.tools))
	copy(out, s.tools)
	return out
}

// Capabilities returns the capability snapshot from the last handshake.
func (s *Session) Capabilities() Capabilities {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capabilities
}

// ServerInfo returns the server identity from the last handshake.
func (s *Session) ServerInfo() ServerInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.serverInfo
}

// BreakerMetrics returns a snapshot of the circuit breaker counters.
func (s *Session) BreakerMetrics() BreakerMetrics {
	return s.breaker.Snapshot()
}

// Connect opens the transport and performs the MCP handshake within
// the connect timeout. On failure the session goes degraded and keeps
// retrying in the background with exponential backoff; the first
// attempt's error is returned so callers can report it.
func (s *Session) Connect(ctx context.Context) error {
	if err := s.connectOnce(ctx); err != nil {
		s.scheduleReconnect()
		return err
	}
	return nil
}

// connectOnce performs a single connect + handshake attempt.
func (s *Session) connectOnce(ctx context.Context) error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return ErrClosed
	}
	s.state = StateConnecting
	s.mu.Unlock()

	tr, err := s.factory()
	if err != nil {
		s.setState(StateDegraded)
		return fmt.Errorf("build transport: %w", err)
	}

	connectCtx, cancel := context.WithTimeout(ctx, s.cfg.ConnectTimeout)
	defer cancel()

	if err := tr.Connect(connectCtx); err != nil {
		tr.Close()
		s.setState(StateDegraded)
		return fmt.Errorf("connect %s: %w", s.cfg.Name, err)
	}

	loopCtx, loopCancel := context.WithCancel(s.baseCtx)

	s.mu.Lock()
	s.transport = tr
	s.loopCancel = loopCancel
	s.pending = make(map[int64]chan *Response)
	s.healthMisses = 0
	s.mu.Unlock()

	// Outstanding calls were failed on disconnect, so the id space can
	// restart for the new transport.
	s.nextID.Store(0)

	go s.readLoop(loopCtx, tr)

	if err := s.handshake(connectCtx); err != nil {
		s.teardownTransport(tr)
		s.setState(StateDegraded)
		return fmt.Errorf("handshake %s: %w", s.cfg.Name, err)
	}

	s.setState(StateReady)
	go s.healthLoop(loopCtx, tr)

	s.logger.Info("MCP session ready",
		"server_name", s.ServerInfo().Name,
		"tools", len(s.Tools()),
	)
	return nil
}

// handshake runs initialize, the initialized notification, and
// tools/list, storing the capability and tool snapshots.
func (s *Session) handshake(ctx context.Context) error {
	resp, err := s.call(ctx, "initialize", InitializeParams{
		ProtocolVersion: ProtocolVersion,
		Capabilities:    map[string]any{},
		ClientInfo:      ClientInfo{Name: clientName, Version: clientVersion},
	}, s.cfg.ConnectTimeout)
	if err != nil {
		return fmt.Errorf("initialize: %w", err)
	}
	if resp.Error != nil {
		return fmt.Errorf("initialize: %w", resp.Error)
	}

	var result InitializeResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return fmt.Errorf("unmarshal initialize result: %w", err)
	}

	s.mu.Lock()
	tr := s.transport
	s.serverInfo = result.ServerInfo
	s.capabilities = result.Capabilities
	s.mu.Unlock()

	if tr == nil {
		return &TransportError{Op: "handshake", Err: ErrClosed}
	}
	if err := tr.SendNotification(ctx, NewNotification("notifications/initialized", nil)); err != nil {
		return fmt.Errorf("send initialized notification: %w", err)
	}

	resp, err = s.call(ctx, "tools/list", nil, s.cfg.ConnectTimeout)
	if err != nil {
		return fmt.Errorf("tools/list: %w", err)
	}
	if resp.Error != nil {
		return fmt.Errorf("tools/list: %w", resp.Error)
	}

	var tools ToolsListResult
	if err := json.Unmarshal(resp.Result, &tools); err != nil {
		return fmt.Errorf("unmarshal tools/list result: %w", err)
	}

	s.mu.Lock()
	s.tools = tools.Tools
	s.mu.Unlock()
	return nil
}

// readLoop consumes transport messages and routes them to pending
// calls by id. It exits when the transport fails or is replaced.
func (s *Session) readLoop(ctx context.Context, tr Transport) {
	for {
		msg, err := tr.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			s.handleTransportFailure(tr, err)
			return
		}

		if msg.IsNotification() {
			s.logger.Debug("server notification", "method", msg.Method)
			continue
		}

		s.mu.Lock()
		ch, ok := s.pending[msg.ID]
		if ok {
			delete(s.pending, msg.ID)
		}
		s.mu.Unlock()

		if !ok {
			// A reply nobody asked for indicates a server bug.
			s.logger.Error("protocol error",
				"error", &ProtocolError{Detail: "response for unknown request id", ID: msg.ID},
			)
			continue
		}
		ch <- msg
	}
}

// call allocates the next request id, sends, and awaits the matching
// response within the timeout. Transport and timeout failures are
// returned as errors; an RPC-level error comes back inside the
// response for the caller to interpret.
func (s *Session) call(ctx context.Context, method string, params any, timeout time.Duration) (*Response, error) {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil, ErrClosed
	}
	tr := s.transport
	if tr == nil {
		s.mu.Unlock()
		return nil, &TransportError{Op: "call", Err: ErrNotConnected}
	}
	id := s.nextID.Add(1)
	ch := make(chan *Response, 1)
	s.pending[id] = ch
	s.mu.Unlock()

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := tr.Send(callCtx, NewRequest(id, method, params)); err != nil {
		s.dropPending(id)
		return nil, err
	}

	select {
	case <-callCtx.Done():
		s.dropPending(id)
		return nil, fmt.Errorf("%s: %w", method, callCtx.Err())
	case resp, ok := <-ch:
		if !ok {
			return nil, &TransportError{Op: method, Err: ErrClosed}
		}
		return resp, nil
	}
}

func (s *Session) dropPending(id int64) {
	s.mu.Lock()
	delete(s.pending, id)
	s.mu.Unlock()
}

// Invoke executes a tool on the server. It fails fast with a
// CircuitOpenError while the breaker is open or the session is failed;
// otherwise transport failures count against the breaker and an
// RPC-level error is surfaced without penalizing the server.
func (s *Session) Invoke(ctx context.Context, toolName string, args map[string]any) (*ToolCallResult, error) {
	s.mu.Lock()
	state := s.state
	s.mu.Unlock()

	switch state {
	case StateClosed:
		return nil, ErrClosed
	case StateFailed:
		return nil, &CircuitOpenError{Server: s.cfg.Name}
	}

	if ok, retryAt := s.breaker.Allow(); !ok {
		return nil, &CircuitOpenError{Server: s.cfg.Name, RetryAt: retryAt}
	}

	resp, err := s.call(ctx, "tools/call", ToolCallParams{Name: toolName, Arguments: args}, s.cfg.CallTimeout)
	if err != nil {
		s.recordInvokeFailure()
		return nil, err
	}
	if resp.Error != nil {
		// The server answered; the transport is healthy even though
		// the call itself failed.
		s.breaker.RecordSuccess()
		return nil, fmt.Errorf("tools/call %s: %w", toolName, resp.Error)
	}

	var result ToolCallResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		s.breaker.RecordSuccess()
		return nil, &ProtocolError{Detail: fmt.Sprintf("malformed tools/call result: %v", err)}
	}

	s.breaker.RecordSuccess()
	s.recoverIfDegraded()
	return &result, nil
}

func (s *Session) recordInvokeFailure() {
	s.breaker.RecordFailure()

	s.mu.Lock()
	defer s.mu.Unlock()
	switch s.state {
	case StateClosed, StateFailed, StateConnecting:
		return
	}
	if s.breaker.State() == BreakerOpen {
		s.state = StateFailed
		s.logger.Warn("breaker opened, session failed")
		s.scheduleFailedRetryLocked()
	} else if s.state == StateReady {
		s.state = StateDegraded
	}
}

func (s *Session) recoverIfDegraded() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateDegraded {
		s.state = StateReady
	}
}

// Ping issues the lightweight health-check request. A server that
// rejects ping as an unknown method still counts as responsive.
func (s *Session) Ping(ctx context.Context) error {
	resp, err := s.call(ctx, "ping", nil, s.cfg.ConnectTimeout)
	if err != nil {
		return err
	}
	if resp.Error != nil && resp.Error.Code != CodeMethodNotFound {
		return resp.Error
	}
	return nil
}

// ListResources calls resources/list on the server.
func (s *Session) ListResources(ctx context.Context) ([]ResourceInfo, error) {
	resp, err := s.call(ctx, "resources/list", nil, s.cfg.CallTimeout)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("resources/list: %w", resp.Error)
	}
	var result ResourcesListResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("unmarshal resources/list result: %w", err)
	}
	return result.Resources, nil
}

// ReadResource calls resources/read for the given URI.
func (s *Session) ReadResource(ctx context.Context, uri string) ([]ResourceContents, error) {
	resp, err := s.call(ctx, "resources/read", map[string]any{"uri": uri}, s.cfg.CallTimeout)
	if err != nil {
		return nil, err
	}
	if resp.Error != nil {
		return nil, fmt.Errorf("resources/read %s: %w", uri, resp.Error)
	}
	var result ResourcesReadResult
	if err := json.Unmarshal(resp.Result, &result); err != nil {
		return nil, fmt.Errorf("unmarshal resources/read result: %w", err)
	}
	return result.Contents, nil
}

// healthLoop pings the server on its own timer, independent of Invoke
// traffic. Three consecutive misses force ready into degraded and tear
// the transport down for a reconnect.
func (s *Session) healthLoop(ctx context.Context, tr Transport) {
	ticker := time.NewTicker(s.cfg.HealthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		if err := s.Ping(ctx); err != nil {
			if ctx.Err() != nil {
				return
			}
			s.mu.Lock()
			s.healthMisses++
			misses := s.healthMisses
			s.mu.Unlock()

			s.logger.Warn("health check missed", "misses", misses, "error", err)
			if misses >= healthMissLimit {
				s.handleTransportFailure(tr, fmt.Errorf("%d consecutive health checks missed", misses))
				return
			}
			continue
		}

		s.mu.Lock()
		s.healthMisses = 0
		s.mu.Unlock()
	}
}

// handleTransportFailure fails all pending calls, tears the transport
// down, marks the session degraded, and kicks off background
// reconnection. Stale calls from a replaced transport are ignored.
func (s *Session) handleTransportFailure(tr Transport, cause error) {
	s.mu.Lock()
	if s.state == StateClosed || s.transport != tr {
		s.mu.Unlock()
		return
	}
	s.logger.Warn("transport failed", "error", cause)

	s.failPendingLocked()
	s.transport = nil
	if s.loopCancel != nil {
		s.loopCancel()
		s.loopCancel = nil
	}
	s.state = StateDegraded
	starting := !s.reconnecting
	if starting {
		s.reconnecting = true
	}
	s.mu.Unlock()

	tr.Close()
	if starting {
		go s.reconnectLoop()
	}
}

// failPendingLocked completes every in-flight call with a closed
// channel so no caller is left hanging. Caller must hold s.mu.
func (s *Session) failPendingLocked() {
	for id, ch := range s.pending {
		close(ch)
		delete(s.pending, id)
	}
}

// teardownTransport closes a transport after a failed handshake.
func (s *Session) teardownTransport(tr Transport) {
	s.mu.Lock()
	if s.transport == tr {
		s.failPendingLocked()
		s.transport = nil
		if s.loopCancel != nil {
			s.loopCancel()
			s.loopCancel = nil
		}
	}
	s.mu.Unlock()
	tr.Close()
}

func (s *Session) scheduleReconnect() {
	s.mu.Lock()
	if s.state == StateClosed || s.reconnecting {
		s.mu.Unlock()
		return
	}
	s.reconnecting = true
	s.mu.Unlock()
	go s.reconnectLoop()
}

// reconnectLoop retries the connection with exponential backoff plus
// jitter until it succeeds or the attempt budget is exhausted, at
// which point the session is marked failed and a delayed retry window
// is scheduled.
func (s *Session) reconnectLoop() {
	delay := s.cfg.ReconnectBaseDelay
	for attempt := 1; attempt <= s.cfg.MaxReconnectAttempts; attempt++ {
		jittered := delay + time.Duration(rand.Int63n(int64(delay)/2+1))
		if err := s.sleep(s.baseCtx, jittered); err != nil {
			s.clearReconnecting()
			return
		}

		if s.State() == StateClosed {
			s.clearReconnecting()
			return
		}

		s.logger.Info("reconnecting", "attempt", attempt, "max", s.cfg.MaxReconnectAttempts)
		err := s.connectOnce(s.baseCtx)
		if err == nil {
			s.clearReconnecting()
			return
		}
		s.logger.Warn("reconnect attempt failed", "attempt", attempt, "error", err)

		delay *= 2
		if delay > s.cfg.ReconnectMaxDelay {
			delay = s.cfg.ReconnectMaxDelay
		}
	}

	s.mu.Lock()
	s.reconnecting = false
	if s.state != StateClosed {
		s.state = StateFailed
		s.logger.Error("reconnect attempts exhausted, session failed")
		s.scheduleFailedRetryLocked()
	}
	s.mu.Unlock()
}

func (s *Session) clearReconnecting() {
	s.mu.Lock()
	s.reconnecting = false
	s.mu.Unlock()
}

// scheduleFailedRetryLocked arms the next retry window for a failed
// session. Caller must hold s.mu.
func (s *Session) scheduleFailedRetryLocked() {
	if s.reconnecting {
		return
	}
	s.reconnecting = true
	go func() {
		if err := s.sleep(s.baseCtx, s.cfg.ReconnectMaxDelay); err != nil {
			s.mu.Lock()
			s.reconnecting = false
			s.mu.Unlock()
			return
		}
		s.reconnectLoop()
	}()
}

// Close terminates the session: background loops stop, pending calls
// fail, and the transport is torn down. Closed is terminal.
func (s *Session) Close() error {
	s.mu.Lock()
	if s.state == StateClosed {
		s.mu.Unlock()
		return nil
	}
	s.state = StateClosed
	s.failPendingLocked()
	tr := s.transport
	s.transport = nil
	if s.loopCancel != nil {
		s.loopCancel()
		s.loopCancel = nil
	}
	s.mu.Unlock()

	s.baseCancel()
	s.logger.Info("closing MCP session")
	if tr != nil {
		return tr.Close()
	}
	return nil
}
