// ABOUTME: Cross-provider adapter tests - the same tool call must decode
// ABOUTME: identically regardless of which vendor produced it.
package llm_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/latchkey-labs/crossbar/llm"
	"github.com/latchkey-labs/crossbar/tool"
)

// Equivalent tool-call responses in each vendor's wire format. Every
// adapter must decode its own into the same name and arguments.
var vendorToolCallResponses = map[string]json.RawMessage{
	"anthropic": json.RawMessage(`{
		"id": "msg_01", "type": "message", "role": "assistant",
		"content": [{"type": "tool_use", "id": "toolu_01", "name": "get_weather", "input": {"city": "Paris"}}],
		"stop_reason": "tool_use"
	}`),
	"openai": json.RawMessage(`{
		"id": "chatcmpl-01",
		"choices": [{
			"index": 0,
			"message": {"role": "assistant", "tool_calls": [{"id": "call_01", "type": "function", "function": {"name": "get_weather", "arguments": "{\"city\": \"Paris\"}"}}]},
			"finish_reason": "tool_calls"
		}]
	}`),
	"gemini": json.RawMessage(`{
		"candidates": [{
			"content": {"role": "model", "parts": [{"functionCall": {"name": "get_weather", "args": {"city": "Paris"}}}]},
			"finishReason": "STOP"
		}]
	}`),
}

func TestCrossProviderDecodeEquivalence(t *testing.T) {
	adapters := []llm.Adapter{llm.AnthropicAdapter{}, llm.OpenAIAdapter{}, llm.GeminiAdapter{}}

	for _, adapter := range adapters {
		raw, ok := vendorToolCallResponses[adapter.Provider()]
		if !ok {
			t.Fatalf("no stub response for %s", adapter.Provider())
		}
		resp, err := adapter.DecodeResponse(raw)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", adapter.Provider(), err)
		}
		if len(resp.ToolCalls) != 1 {
			t.Fatalf("%s: expected 1 tool call, got %d", adapter.Provider(), len(resp.ToolCalls))
		}
		call := resp.ToolCalls[0]
		if call.Name != "get_weather" {
			t.Errorf("%s: expected name get_weather, got %s", adapter.Provider(), call.Name)
		}
		if call.Arguments["city"] != "Paris" {
			t.Errorf("%s: expected city Paris, got %v", adapter.Provider(), call.Arguments["city"])
		}
		if call.ID == "" {
			t.Errorf("%s: tool call must have a non-empty id", adapter.Provider())
		}
		if call.Origin != tool.OriginProvider {
			t.Errorf("%s: expected provider origin, got %s", adapter.Provider(), call.Origin)
		}
		if resp.FinishReason != llm.FinishToolCalls {
			t.Errorf("%s: expected finish reason tool_calls, got %s", adapter.Provider(), resp.FinishReason)
		}
	}
}

func TestEncodeToolsAcceptsSameToolEverywhere(t *testing.T) {
	weather := tool.MustNew("get_weather", "Get current weather", map[string]tool.Param{
		"city":  {Type: "string", Description: "City name"},
		"units": {Type: "string", Description: "Unit system", Enum: []string{"metric", "imperial"}},
	}, []string{"city"})

	adapters := []llm.Adapter{llm.AnthropicAdapter{}, llm.OpenAIAdapter{}, llm.GeminiAdapter{}, llm.OllamaAdapter{}}
	for _, adapter := range adapters {
		encoded, err := adapter.EncodeTools([]tool.Tool{weather})
		if err != nil {
			t.Errorf("%s: unexpected error: %v", adapter.Provider(), err)
		}
		if encoded == nil {
			t.Errorf("%s: expected non-nil encoding", adapter.Provider())
		}
	}
}

func TestAssistantTurnPreservesIssueOrder(t *testing.T) {
	resp := &llm.EnhancedResponse{
		Content: "Checking both cities.",
		ToolCalls: []tool.Call{
			{ID: "call_1", Name: "get_weather", Arguments: map[string]any{"city": "Paris"}},
			{ID: "call_2", Name: "get_weather", Arguments: map[string]any{"city": "Tokyo"}},
		},
		FinishReason: llm.FinishToolCalls,
	}

	msg := llm.AssistantTurn(resp)
	if msg.Role != llm.RoleAssistant {
		t.Errorf("expected assistant role, got %s", msg.Role)
	}
	if len(msg.Blocks) != 3 {
		t.Fatalf("expected text block plus 2 tool_use blocks, got %d", len(msg.Blocks))
	}
	if msg.Blocks[0].Type != llm.ContentTypeText {
		t.Errorf("expected leading text block, got %s", msg.Blocks[0].Type)
	}
	if msg.Blocks[1].ID != "call_1" || msg.Blocks[2].ID != "call_2" {
		t.Errorf("tool_use blocks out of issue order: %s, %s", msg.Blocks[1].ID, msg.Blocks[2].ID)
	}
}

func TestSenderFunc(t *testing.T) {
	var sender llm.Sender = llm.SenderFunc(func(ctx context.Context, messages []llm.Message, encodedTools any) (json.RawMessage, error) {
		return json.RawMessage(`{}`), nil
	})

	raw, err := sender.SendRequest(context.Background(), []llm.Message{llm.NewUserMessage("hi")}, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(raw) != "{}" {
		t.Errorf("unexpected raw response: %s", raw)
	}
}
