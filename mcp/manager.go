// ABOUTME: Multi-server session manager - namespaces discovered tools per
// ABOUTME: server and routes invocations to the owning session.
package mcp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/latchkey-labs/crossbar/tool"
)

// toolPrefix and toolSeparator build namespaced tool names of the form
// mcp__{server}__{tool}, so same-named tools on different servers
// cannot collide in one provider tool list.
const (
	toolPrefix    = "mcp__"
	toolSeparator = "__"
)

// NamespacedToolName builds the provider-facing name for an MCP tool.
func NamespacedToolName(server, toolName string) string {
	return toolPrefix + server + toolSeparator + toolName
}

// SplitToolName splits a namespaced name back into server and tool.
// ok is false for names that are not MCP-namespaced.
func SplitToolName(name string) (server, toolName string, ok bool) {
	rest, found := strings.CutPrefix(name, toolPrefix)
	if !found {
		return "", "", false
	}
	server, toolName, found = strings.Cut(rest, toolSeparator)
	if !found || server == "" || toolName == "" {
		return "", "", false
	}
	return server, toolName, true
}

// Manager owns the sessions for a set of configured MCP servers. It is
// an explicit instance passed by the caller into the orchestrator or
// bridge; there is no global registry.
type Manager struct {
	logger *slog.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewManager creates an empty session manager.
func NewManager(logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		logger:   logger,
		sessions: make(map[string]*Session),
	}
}

// AddServer creates a session for the given config. The session is not
// connected until Connect or ConnectAll.
func (m *Manager) AddServer(cfg ServerConfig) (*Session, error) {
	if cfg.Name == "" {
		return nil, errors.New("server config needs a name")
	}
	sess := NewSession(cfg, m.logger)
	if err := m.AddSession(sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// AddSession registers an existing session under its server name.
func (m *Manager) AddSession(sess *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sessions[sess.Name()]; exists {
		return fmt.Errorf("server %s already registered", sess.Name())
	}
	m.sessions[sess.Name()] = sess
	return nil
}

// Session returns the session for a server name.
func (m *Manager) Session(name string) (*Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sess, ok := m.sessions[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrServerNotFound, name)
	}
	return sess, nil
}

// Sessions returns all registered sessions, sorted by name.
func (m *Manager) Sessions() []*Session {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Session, 0, len(m.sessions))
	for _, sess := range m.sessions {
		out = append(out, sess)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// ConnectAll connects every registered session. A server that fails to
// connect keeps retrying in the background and is reported here, but
// does not prevent the others from coming up.
func (m *Manager) ConnectAll(ctx context.Context) error {
	var errs []error
	for _, sess := range m.Sessions() {
		if err := sess.Connect(ctx); err != nil {
			m.logger.Warn("server failed to connect", "mcp_server", sess.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s: %w", sess.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// Tools converts the cached tool lists of all ready sessions into
// universal tools under namespaced names. Degraded and failed servers
// are omitted so one bad server cannot poison the whole tool list.
func (m *Manager) Tools() []tool.Tool {
	var out []tool.Tool
	for _, sess := range m.Sessions() {
		if sess.State() != StateReady {
			continue
		}
		for _, info := range sess.Tools() {
			t, err := tool.FromSchema(NamespacedToolName(sess.Name(), info.Name), info.Description, info.InputSchema)
			if err != nil {
				m.logger.Warn("skipping tool with unusable schema",
					"mcp_server", sess.Name(), "tool", info.Name, "error", err)
				continue
			}
			out = append(out, t)
		}
	}
	return out
}

// Invoke routes a namespaced tool call to the owning session and
// flattens the result content into a single string. A result the
// server marked as an error comes back as a non-nil error.
func (m *Manager) Invoke(ctx context.Context, name string, args map[string]any) (string, error) {
	server, toolName, ok := SplitToolName(name)
	if !ok {
		return "", fmt.Errorf("not an MCP tool name: %s", name)
	}

	sess, err := m.Session(server)
	if err != nil {
		return "", err
	}

	result, err := sess.Invoke(ctx, toolName, args)
	if err != nil {
		return "", err
	}

	text := ExtractText(result.Content)
	if result.IsError {
		return "", fmt.Errorf("tool %s failed: %s", toolName, text)
	}
	return text, nil
}

// Close shuts down every session.
func (m *Manager) Close() error {
	var errs []error
	for _, sess := range m.Sessions() {
		if err := sess.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// ExtractText joins text content blocks into a single string.
// Non-text blocks are represented as inline markers.
func ExtractText(blocks []ContentBlock) string {
	var parts []string
	for _, b := range blocks {
		switch b.Type {
		case "text":
			parts = append(parts, b.Text)
		case "image", "resource":
			parts = append(parts, "["+b.Type+": "+b.MimeType+"]")
		default:
			parts = append(parts, fmt.Sprintf("[%s]", b.Type))
		}
	}
	return strings.Join(parts, "\n")
}
