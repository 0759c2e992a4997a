// ABOUTME: Defines the universal conversation types - messages, content
// ABOUTME: blocks, finish reasons, and the normalized provider response.
package llm

import (
	"encoding/json"

	"github.com/latchkey-labs/crossbar/tool"
)

// Role represents the role of a message sender.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"

	// RoleTool carries tool results for vendors that expect a dedicated
	// tool message (OpenAI-style). Adapters that inline results into a
	// user turn never emit it.
	RoleTool Role = "tool"
)

// ContentType identifies the type of content in a block.
type ContentType string

const (
	ContentTypeText       ContentType = "text"
	ContentTypeToolUse    ContentType = "tool_use"
	ContentTypeToolResult ContentType = "tool_result"
)

// ContentBlock represents a piece of content in a message.
type ContentBlock struct {
	Type ContentType `json:"type"`

	// For text content
	Text string `json:"text,omitempty"`

	// For tool use
	ID    string         `json:"id,omitempty"`
	Name  string         `json:"name,omitempty"`
	Input map[string]any `json:"input,omitempty"`

	// For tool result
	ToolCallID string `json:"tool_call_id,omitempty"`
	IsError    bool   `json:"is_error,omitempty"`
}

// Message represents a conversation message in the universal format.
// Adapters and senders reshape it into each vendor's message layout.
type Message struct {
	Role    Role           `json:"role"`
	Content string         `json:"content,omitempty"`
	Blocks  []ContentBlock `json:"blocks,omitempty"`
}

// NewSystemMessage creates a system message with text content.
func NewSystemMessage(text string) Message {
	return Message{Role: RoleSystem, Content: text}
}

// NewUserMessage creates a user message with text content.
func NewUserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

// NewAssistantMessage creates an assistant message with text content.
func NewAssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Content: text}
}

// FinishReason indicates why the provider stopped generating.
type FinishReason string

const (
	FinishStop      FinishReason = "stop"
	FinishToolCalls FinishReason = "tool_calls"
	FinishLength    FinishReason = "length"
	FinishError     FinishReason = "error"
)

// EnhancedResponse is the normalized form of one provider turn: final
// text (possibly empty while tools are pending), the tool calls the
// model requested, and the untouched vendor payload for diagnostics.
type EnhancedResponse struct {
	Content      string
	ToolCalls    []tool.Call
	FinishReason FinishReason
	Raw          json.RawMessage
}

// HasToolCalls reports whether the model asked for tools this turn.
func (r *EnhancedResponse) HasToolCalls() bool {
	return len(r.ToolCalls) > 0
}

// AssistantTurn rebuilds the assistant message for conversation history
// from a decoded response: text first, then one tool_use block per call,
// in issue order.
func AssistantTurn(resp *EnhancedResponse) Message {
	msg := Message{Role: RoleAssistant}
	if resp.Content != "" {
		msg.Blocks = append(msg.Blocks, ContentBlock{Type: ContentTypeText, Text: resp.Content})
	}
	for _, call := range resp.ToolCalls {
		msg.Blocks = append(msg.Blocks, ContentBlock{
			Type:  ContentTypeToolUse,
			ID:    call.ID,
			Name:  call.Name,
			Input: call.Arguments,
		})
	}
	return msg
}
