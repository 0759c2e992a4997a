// ABOUTME: Implements the stdio transport - spawns a subprocess and speaks
// ABOUTME: newline-delimited JSON-RPC over its stdin/stdout.
package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"time"
)

// stdioShutdownGrace is how long Close waits for the subprocess to
// exit after stdin is closed before killing it.
const stdioShutdownGrace = 5 * time.Second

// StdioTransport runs an MCP server as a subprocess. Requests are
// written as newline-delimited JSON to stdin; a dedicated background
// reader parses stdout lines and queues them for Receive.
type StdioTransport struct {
	cfg    ServerConfig
	logger *slog.Logger

	mu    sync.Mutex
	cmd   *exec.Cmd
	stdin io.WriteCloser

	messages chan *Response
	closeCh  chan struct{}

	errOnce sync.Once
	readErr error
}

// NewStdioTransport creates a stdio transport. The subprocess is not
// started until Connect.
func NewStdioTransport(cfg ServerConfig, logger *slog.Logger) *StdioTransport {
	if logger == nil {
		logger = slog.Default()
	}
	return &StdioTransport{
		cfg:      cfg,
		logger:   logger.With("mcp_server", cfg.Name, "transport", "stdio"),
		messages: make(chan *Response, 32),
		closeCh:  make(chan struct{}),
	}
}

// Connect spawns the subprocess and starts the background reader.
func (t *StdioTransport) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.cmd != nil {
		return nil
	}

	t.logger.Info("starting MCP subprocess", "command", t.cfg.Command, "args", t.cfg.Args)

	cmd := exec.Command(t.cfg.Command, t.cfg.Args...)
	cmd.Env = os.Environ()
	for k, v := range t.cfg.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return &TransportError{Op: "connect", Err: fmt.Errorf("create stdin pipe: %w", err)}
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		stdin.Close()
		return &TransportError{Op: "connect", Err: fmt.Errorf("create stdout pipe: %w", err)}
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		stdin.Close()
		stdout.Close()
		return &TransportError{Op: "connect", Err: fmt.Errorf("create stderr pipe: %w", err)}
	}

	if err := cmd.Start(); err != nil {
		stdin.Close()
		stdout.Close()
		stderr.Close()
		return &TransportError{Op: "connect", Err: fmt.Errorf("start subprocess %s: %w", t.cfg.Command, err)}
	}

	t.cmd = cmd
	t.stdin = stdin

	go t.readLoop(stdout)
	go t.drainStderr(stderr)

	t.logger.Info("MCP subprocess started", "pid", cmd.Process.Pid)
	return nil
}

// readLoop reads stdout lines, parses them, and queues messages until
// the stream ends. Stream end closes the message channel, which makes
// any pending Receive fail with a closed TransportError.
func (t *StdioTransport) readLoop(stdout io.Reader) {
	scanner := bufio.NewScanner(stdout)
	scanner.Buffer(make([]byte, 0, 64*1024), 10<<20)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var msg Response
		if err := json.Unmarshal(line, &msg); err != nil {
			t.logger.Debug("skipping non-JSON line from subprocess", "line", string(line))
			continue
		}

		select {
		case t.messages <- &msg:
		case <-t.closeCh:
			return
		}
	}

	if err := scanner.Err(); err != nil {
		t.fail(fmt.Errorf("read subprocess stdout: %w", err))
	} else {
		t.fail(fmt.Errorf("subprocess exited: %w", ErrClosed))
	}
}

// fail records the terminal read error and closes the message channel.
func (t *StdioTransport) fail(err error) {
	t.errOnce.Do(func() {
		t.readErr = err
		close(t.messages)
	})
}

// drainStderr logs subprocess stderr lines; they are diagnostics, not
// protocol traffic.
func (t *StdioTransport) drainStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 256*1024)
	for scanner.Scan() {
		t.logger.Debug("MCP subprocess stderr", "line", scanner.Text())
	}
}

// Send writes one request followed by a newline delimiter.
func (t *StdioTransport) Send(ctx context.Context, req *Request) error {
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	return t.writeLine(data)
}

// SendNotification writes one notification followed by a newline delimiter.
func (t *StdioTransport) SendNotification(ctx context.Context, notif *Notification) error {
	data, err := json.Marshal(notif)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}
	return t.writeLine(data)
}

func (t *StdioTransport) writeLine(data []byte) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stdin == nil {
		return &TransportError{Op: "send", Err: ErrNotConnected}
	}
	if _, err := t.stdin.Write(append(data, '\n')); err != nil {
		return &TransportError{Op: "send", Err: fmt.Errorf("write to subprocess stdin: %w", err)}
	}
	return nil
}

// Receive returns the next message from the subprocess, blocking until
// one arrives, the context is cancelled, or the stream ends.
func (t *StdioTransport) Receive(ctx context.Context) (*Response, error) {
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

// Close terminates the subprocess: stdin is closed to request a
// graceful exit, then the process is killed after a grace period.
func (t *StdioTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	select {
	case <-t.closeCh:
		return nil
	default:
		close(t.closeCh)
	}
	t.fail(ErrClosed)

	if t.cmd == nil || t.cmd.Process == nil {
		return nil
	}

	t.logger.Info("stopping MCP subprocess", "pid", t.cmd.Process.Pid)

	if t.stdin != nil {
		t.stdin.Close()
	}

	done := make(chan error, 1)
	go func() { done <- t.cmd.Wait() }()

	select {
	case err := <-done:
		t.cmd = nil
		return err
	case <-time.After(stdioShutdownGrace):
		t.logger.Warn("MCP subprocess did not exit gracefully, killing", "pid", t.cmd.Process.Pid)
		_ = t.cmd.Process.Kill()
		<-done
		t.cmd = nil
		return nil
	}
}
