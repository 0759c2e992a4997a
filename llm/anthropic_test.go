// ABOUTME: Tests for the Anthropic adapter and client - encoding, response
// ABOUTME: decoding, tool result formatting, and error handling.
package llm

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/latchkey-labs/crossbar/tool"
)

func TestNewAnthropicClient(t *testing.T) {
	client := NewAnthropicClient("test-api-key", "claude-sonnet-4-20250514")
	if client == nil {
		t.Fatal("expected non-nil client")
	}
	if client.model != "claude-sonnet-4-20250514" {
		t.Errorf("expected model claude-sonnet-4-20250514, got %s", client.model)
	}
}

func TestNewAnthropicClientDefaultModel(t *testing.T) {
	client := NewAnthropicClient("test-api-key", "")
	if client.model != DefaultAnthropicModel {
		t.Errorf("expected default model %s, got %s", DefaultAnthropicModel, client.model)
	}
}

func TestAnthropicEncodeTools(t *testing.T) {
	weather := tool.MustNew("get_weather", "Get current weather", map[string]tool.Param{
		"city": {Type: "string", Description: "City name"},
	}, []string{"city"})

	adapter := AnthropicAdapter{}
	encoded, err := adapter.EncodeTools([]tool.Tool{weather})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	params, ok := encoded.([]anthropic.ToolUnionParam)
	if !ok {
		t.Fatalf("expected []anthropic.ToolUnionParam, got %T", encoded)
	}
	if len(params) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(params))
	}
	if params[0].OfTool.Name != "get_weather" {
		t.Errorf("expected name get_weather, got %s", params[0].OfTool.Name)
	}
	required := params[0].OfTool.InputSchema.Required
	if len(required) != 1 || required[0] != "city" {
		t.Errorf("expected required [city], got %v", params[0].OfTool.InputSchema.Required)
	}
}

func TestAnthropicDecodeToolUse(t *testing.T) {
	raw := json.RawMessage(`{
		"id": "msg_01",
		"type": "message",
		"role": "assistant",
		"content": [
			{"type": "text", "text": "Let me check."},
			{"type": "tool_use", "id": "toolu_01", "name": "get_weather", "input": {"city": "Paris"}}
		],
		"stop_reason": "tool_use"
	}`)

	resp, err := AnthropicAdapter{}.DecodeResponse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "Let me check." {
		t.Errorf("expected text content, got %q", resp.Content)
	}
	if !resp.HasToolCalls() {
		t.Fatal("expected tool calls")
	}
	call := resp.ToolCalls[0]
	if call.ID != "toolu_01" || call.Name != "get_weather" {
		t.Errorf("unexpected call: %+v", call)
	}
	if call.Arguments["city"] != "Paris" {
		t.Errorf("expected city Paris, got %v", call.Arguments["city"])
	}
	if call.Origin != tool.OriginProvider {
		t.Errorf("expected provider origin, got %s", call.Origin)
	}
	if resp.FinishReason != FinishToolCalls {
		t.Errorf("expected finish reason tool_calls, got %s", resp.FinishReason)
	}
}

func TestAnthropicDecodeTextOnly(t *testing.T) {
	raw := json.RawMessage(`{
		"id": "msg_02",
		"type": "message",
		"role": "assistant",
		"content": [{"type": "text", "text": "The weather is sunny."}],
		"stop_reason": "end_turn"
	}`)

	resp, err := AnthropicAdapter{}.DecodeResponse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.HasToolCalls() {
		t.Error("expected no tool calls")
	}
	if resp.FinishReason != FinishStop {
		t.Errorf("expected finish reason stop, got %s", resp.FinishReason)
	}
}

func TestAnthropicDecodeMaxTokens(t *testing.T) {
	raw := json.RawMessage(`{
		"id": "msg_03",
		"type": "message",
		"role": "assistant",
		"content": [{"type": "text", "text": "truncated"}],
		"stop_reason": "max_tokens"
	}`)

	resp, err := AnthropicAdapter{}.DecodeResponse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.FinishReason != FinishLength {
		t.Errorf("expected finish reason length, got %s", resp.FinishReason)
	}
}

func TestAnthropicDecodeInvalidBody(t *testing.T) {
	_, err := AnthropicAdapter{}.DecodeResponse(json.RawMessage(`not json`))
	var formatErr *ProviderFormatError
	if !errors.As(err, &formatErr) {
		t.Fatalf("expected ProviderFormatError, got %v", err)
	}
	if formatErr.Provider != "anthropic" {
		t.Errorf("expected provider anthropic, got %s", formatErr.Provider)
	}
}

func TestAnthropicEncodeToolResults(t *testing.T) {
	results := []tool.Result{
		tool.NewResult(tool.Call{ID: "toolu_01", Name: "get_weather"}, "18C, cloudy"),
		tool.NewErrorResult(tool.Call{ID: "toolu_02", Name: "get_forecast"}, "upstream timeout"),
	}

	messages := AnthropicAdapter{}.EncodeToolResults(results)
	if len(messages) != 1 {
		t.Fatalf("expected a single user message, got %d", len(messages))
	}
	msg := messages[0]
	if msg.Role != RoleUser {
		t.Errorf("expected user role, got %s", msg.Role)
	}
	if len(msg.Blocks) != 2 {
		t.Fatalf("expected 2 result blocks, got %d", len(msg.Blocks))
	}
	if msg.Blocks[0].ToolCallID != "toolu_01" || msg.Blocks[0].IsError {
		t.Errorf("unexpected first block: %+v", msg.Blocks[0])
	}
	if msg.Blocks[1].ToolCallID != "toolu_02" || !msg.Blocks[1].IsError {
		t.Errorf("unexpected second block: %+v", msg.Blocks[1])
	}
}
