// ABOUTME: Implements the Bridge - the top-level composition that turns a
// ABOUTME: free-text query into MCP tool invocations via the orchestrator.
package bridge

import (
	"context"

	"github.com/latchkey-labs/crossbar/llm"
	"github.com/latchkey-labs/crossbar/mcp"
	"github.com/latchkey-labs/crossbar/orchestrator"
	"github.com/latchkey-labs/crossbar/tool"
)

// Options configure a Bridge.
type Options struct {
	// SystemPrompt is prepended to every query.
	SystemPrompt string

	// MaxTurns bounds the tool-calling loop. Zero means the
	// orchestrator default.
	MaxTurns int

	// WorkerLimit bounds concurrent tool execution within one turn.
	// Zero means the orchestrator default.
	WorkerLimit int

	// Registry optionally supplies local tools alongside the
	// MCP-discovered ones.
	Registry tool.Source

	// AllowedTools restricts the visible local tools to this list when
	// non-empty. DeniedTools are never visible and take precedence.
	// Filtering applies to local tools only; MCP tool visibility is
	// governed by server health.
	AllowedTools []string
	DeniedTools  []string
}

// Bridge composes an MCP session manager with the multi-turn loop. It
// holds no state of its own: tool discovery reads the manager's cached
// lists at query time, so tools from degraded or failed servers are
// simply absent rather than failing the whole query.
type Bridge struct {
	manager *mcp.Manager
	orch    *orchestrator.Orchestrator
}

// New creates a Bridge over the given provider and session manager.
// The manager is owned by the caller; the Bridge never connects or
// closes it.
func New(adapter llm.Adapter, sender llm.Sender, manager *mcp.Manager, opts Options) *Bridge {
	local := opts.Registry
	if local == nil {
		local = tool.NewRegistry()
	}
	if len(opts.AllowedTools) > 0 || len(opts.DeniedTools) > 0 {
		local = tool.NewFilteredRegistry(local, opts.AllowedTools, opts.DeniedTools)
	}

	cfg := orchestrator.DefaultConfig()
	cfg.SystemPrompt = opts.SystemPrompt
	if opts.MaxTurns > 0 {
		cfg.MaxTurns = opts.MaxTurns
	}
	if opts.WorkerLimit > 0 {
		cfg.WorkerLimit = opts.WorkerLimit
	}

	orch := orchestrator.NewWithConfig(adapter, sender, local, cfg)
	if manager != nil {
		orch.WithMCP(manager)
	}
	return &Bridge{manager: manager, orch: orch}
}

// Ask resolves a free-text query, letting the model call any tool the
// connected servers expose. The response is well-formed even on
// failure (finish_reason=error with a message).
func (b *Bridge) Ask(ctx context.Context, query string) (*llm.EnhancedResponse, error) {
	return b.orch.Run(ctx, query)
}

// Subscribe returns a channel for observing the loop's events.
func (b *Bridge) Subscribe() <-chan orchestrator.Event {
	return b.orch.Subscribe()
}

// Manager returns the session manager the bridge routes through, or
// nil when the bridge runs on local tools only.
func (b *Bridge) Manager() *mcp.Manager {
	return b.manager
}
