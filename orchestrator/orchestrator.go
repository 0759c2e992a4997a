// ABOUTME: Implements the multi-turn tool execution loop - sends tools and
// ABOUTME: history to the provider, runs requested tools, repeats until done.
package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/latchkey-labs/crossbar/llm"
	"github.com/latchkey-labs/crossbar/tool"
)

// DefaultMaxTurns bounds the loop when the config does not.
const DefaultMaxTurns = 8

// DefaultWorkerLimit bounds concurrent tool execution within one turn.
const DefaultWorkerLimit = 4

// MCPInvoker dispatches calls against MCP-discovered tools and exposes
// their schemas. The mcp.Manager satisfies it.
type MCPInvoker interface {
	Tools() []tool.Tool
	Invoke(ctx context.Context, name string, args map[string]any) (string, error)
}

// TurnLimitError reports a loop that was still receiving tool calls
// when the turn budget ran out. It is always reported to the caller,
// never silently truncated.
type TurnLimitError struct {
	MaxTurns int
}

func (e *TurnLimitError) Error() string {
	return fmt.Sprintf("exceeded max turns (%d) while the model was still requesting tools", e.MaxTurns)
}

// Config holds orchestrator configuration.
type Config struct {
	MaxTurns     int
	WorkerLimit  int
	SystemPrompt string
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{MaxTurns: DefaultMaxTurns, WorkerLimit: DefaultWorkerLimit}
}

// Orchestrator drives the multi-turn loop for one provider. The
// adapter reshapes between universal and vendor formats; the sender
// delivers requests; local tools come from the registry and MCP tools
// from the optional invoker.
type Orchestrator struct {
	adapter  llm.Adapter
	sender   llm.Sender
	local    tool.Source
	mcp      MCPInvoker
	config   Config
	state    *StateMachine
	eventBus *EventBus

	mu       sync.Mutex
	messages []llm.Message
}

// New creates an Orchestrator with default config.
func New(adapter llm.Adapter, sender llm.Sender, local tool.Source) *Orchestrator {
	return NewWithConfig(adapter, sender, local, DefaultConfig())
}

// NewWithConfig creates an Orchestrator with custom config.
func NewWithConfig(adapter llm.Adapter, sender llm.Sender, local tool.Source, config Config) *Orchestrator {
	if adapter == nil {
		panic("crossbar: adapter must not be nil")
	}
	if sender == nil {
		panic("crossbar: sender must not be nil")
	}
	if local == nil {
		local = tool.NewRegistry()
	}
	if config.MaxTurns <= 0 {
		config.MaxTurns = DefaultMaxTurns
	}
	if config.WorkerLimit <= 0 {
		config.WorkerLimit = DefaultWorkerLimit
	}
	return &Orchestrator{
		adapter:  adapter,
		sender:   sender,
		local:    local,
		config:   config,
		state:    NewStateMachine(),
		eventBus: NewEventBus(),
	}
}

// WithMCP attaches an MCP invoker whose tools join the provider tool
// list. Returns the orchestrator for chaining.
func (o *Orchestrator) WithMCP(invoker MCPInvoker) *Orchestrator {
	o.mcp = invoker
	return o
}

// Subscribe returns a channel for receiving loop events.
func (o *Orchestrator) Subscribe() <-chan Event {
	return o.eventBus.Subscribe()
}

// State returns the current loop state.
func (o *Orchestrator) State() State {
	return o.state.Current()
}

// Run executes the multi-turn loop for one prompt. The returned
// EnhancedResponse is always well-formed: provider failures and the
// turn limit come back with finish_reason=error alongside the error.
// Run is not safe for concurrent calls on the same instance.
func (o *Orchestrator) Run(ctx context.Context, prompt string) (*llm.EnhancedResponse, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.state.Reset()
	o.messages = nil
	if o.config.SystemPrompt != "" {
		o.messages = append(o.messages, llm.NewSystemMessage(o.config.SystemPrompt))
	}
	o.messages = append(o.messages, llm.NewUserMessage(prompt))

	tools, toolIndex := o.collectTools()
	var encodedTools any
	if len(tools) > 0 {
		var err error
		encodedTools, err = o.adapter.EncodeTools(tools)
		if err != nil {
			return o.fail(fmt.Errorf("encode tools: %w", err))
		}
	}

	for turn := 0; turn < o.config.MaxTurns; turn++ {
		select {
		case <-ctx.Done():
			return o.fail(ctx.Err())
		default:
		}

		if err := o.transition(StateAwaitingProvider); err != nil {
			return o.fail(err)
		}

		raw, err := o.sender.SendRequest(ctx, o.messages, encodedTools)
		if err != nil {
			return o.fail(fmt.Errorf("provider request: %w", err))
		}

		resp, err := o.adapter.DecodeResponse(raw)
		if err != nil {
			// A malformed provider response is a non-retryable turn
			// failure (ProviderFormatError or similar).
			return o.fail(err)
		}

		o.messages = append(o.messages, llm.AssistantTurn(resp))

		if !resp.HasToolCalls() {
			if err := o.transition(StateDone); err != nil {
				return o.fail(err)
			}
			o.eventBus.Publish(NewCompleteEvent(resp.Content))
			return resp, nil
		}

		if err := o.transition(StateExecutingTools); err != nil {
			return o.fail(err)
		}

		results := o.executeToolCalls(ctx, toolIndex, resp.ToolCalls)
		o.messages = append(o.messages, o.adapter.EncodeToolResults(results)...)
	}

	err := &TurnLimitError{MaxTurns: o.config.MaxTurns}
	resp := &llm.EnhancedResponse{
		Content:      err.Error(),
		FinishReason: llm.FinishError,
	}
	o.state.Transition(StateError) //nolint:errcheck
	o.eventBus.Publish(NewErrorEvent(err))
	return resp, err
}

// collectTools merges the local registry with MCP-discovered tools and
// builds a lookup index for validation and dispatch.
func (o *Orchestrator) collectTools() ([]tool.Tool, map[string]tool.Tool) {
	var tools []tool.Tool
	for _, entry := range o.local.All() {
		tools = append(tools, entry.Tool)
	}
	if o.mcp != nil {
		tools = append(tools, o.mcp.Tools()...)
	}

	index := make(map[string]tool.Tool, len(tools))
	for _, t := range tools {
		index[t.Name] = t
	}
	return tools, index
}

// executeToolCalls runs one turn's calls under a bounded worker pool.
// Results always come back in issue order regardless of completion
// order, so the provider sees a deterministic conversation.
func (o *Orchestrator) executeToolCalls(ctx context.Context, toolIndex map[string]tool.Tool, calls []tool.Call) []tool.Result {
	results := make([]tool.Result, len(calls))
	sem := make(chan struct{}, o.config.WorkerLimit)
	var wg sync.WaitGroup

	for i, call := range calls {
		wg.Add(1)
		go func(i int, call tool.Call) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = o.executeOne(ctx, toolIndex, call)
		}(i, call)
	}
	wg.Wait()

	return results
}

// executeOne validates and dispatches a single call. Failures of any
// kind become error results, not exceptions: the model sees them and
// can recover.
func (o *Orchestrator) executeOne(ctx context.Context, toolIndex map[string]tool.Tool, call tool.Call) tool.Result {
	o.eventBus.Publish(NewToolCallEvent(call))

	t, known := toolIndex[call.Name]
	if !known {
		result := tool.NewErrorResult(call, fmt.Sprintf("unknown tool: %s", call.Name))
		o.eventBus.Publish(NewToolResultEvent(result))
		return result
	}

	args, err := tool.ValidateArguments(t, call.Arguments)
	if err != nil {
		result := tool.NewErrorResult(call, fmt.Sprintf("invalid arguments: %v", err))
		o.eventBus.Publish(NewToolResultEvent(result))
		return result
	}

	var output string
	if entry, ok := o.local.Get(call.Name); ok {
		output, err = entry.Handler(ctx, args)
	} else if o.mcp != nil {
		output, err = o.mcp.Invoke(ctx, call.Name, args)
	} else {
		err = fmt.Errorf("no dispatcher for tool %s", call.Name)
	}

	var result tool.Result
	if err != nil {
		result = tool.NewErrorResult(call, err.Error())
	} else {
		result = tool.NewResult(call, output)
	}
	o.eventBus.Publish(NewToolResultEvent(result))
	return result
}

// Messages returns a copy of the conversation history accumulated by
// the last Run.
func (o *Orchestrator) Messages() []llm.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]llm.Message, len(o.messages))
	copy(out, o.messages)
	return out
}

func (o *Orchestrator) transition(to State) error {
	from := o.state.Current()
	if from == to {
		return nil
	}
	if err := o.state.Transition(to); err != nil {
		return err
	}
	o.eventBus.Publish(NewStateChangeEvent(from, to))
	return nil
}

func (o *Orchestrator) fail(err error) (*llm.EnhancedResponse, error) {
	o.state.Transition(StateError) //nolint:errcheck
	o.eventBus.Publish(NewErrorEvent(err))
	return &llm.EnhancedResponse{
		Content:      err.Error(),
		FinishReason: llm.FinishError,
	}, err
}
