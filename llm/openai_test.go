// ABOUTME: Tests for the OpenAI adapter and client - function encoding,
// ABOUTME: JSON-string argument parsing, and tool-role result messages.
package llm

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/openai/openai-go"

	"github.com/latchkey-labs/crossbar/tool"
)

func TestNewOpenAIClient(t *testing.T) {
	client := NewOpenAIClient("test-api-key", "gpt-4o")
	if client == nil {
		t.Fatal("expected non-nil client")
	}
	if client.model != "gpt-4o" {
		t.Errorf("expected model gpt-4o, got %s", client.model)
	}
}

func TestNewOpenAIClientDefaultModel(t *testing.T) {
	client := NewOpenAIClient("test-api-key", "")
	if client.model != DefaultOpenAIModel {
		t.Errorf("expected default model %s, got %s", DefaultOpenAIModel, client.model)
	}
}

func TestOpenAIEncodeTools(t *testing.T) {
	weather := tool.MustNew("get_weather", "Get current weather", map[string]tool.Param{
		"city": {Type: "string", Description: "City name"},
	}, []string{"city"})

	adapter := OpenAIAdapter{}
	encoded, err := adapter.EncodeTools([]tool.Tool{weather})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	params, ok := encoded.([]openai.ChatCompletionToolParam)
	if !ok {
		t.Fatalf("expected []openai.ChatCompletionToolParam, got %T", encoded)
	}
	if len(params) != 1 {
		t.Fatalf("expected 1 tool, got %d", len(params))
	}
	if params[0].Type != "function" {
		t.Errorf("expected type function, got %s", params[0].Type)
	}
	if params[0].Function.Name != "get_weather" {
		t.Errorf("expected name get_weather, got %s", params[0].Function.Name)
	}
	schema := map[string]any(params[0].Function.Parameters)
	if schema["type"] != "object" {
		t.Errorf("expected object schema, got %v", schema["type"])
	}
}

func TestOpenAIDecodeToolCalls(t *testing.T) {
	raw := json.RawMessage(`{
		"id": "chatcmpl-01",
		"choices": [{
			"index": 0,
			"message": {
				"role": "assistant",
				"content": "",
				"tool_calls": [{
					"id": "call_01",
					"type": "function",
					"function": {"name": "get_weather", "arguments": "{\"city\": \"Paris\"}"}
				}]
			},
			"finish_reason": "tool_calls"
		}]
	}`)

	resp, err := OpenAIAdapter{}.DecodeResponse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !resp.HasToolCalls() {
		t.Fatal("expected tool calls")
	}
	call := resp.ToolCalls[0]
	if call.ID != "call_01" || call.Name != "get_weather" {
		t.Errorf("unexpected call: %+v", call)
	}
	if call.Arguments["city"] != "Paris" {
		t.Errorf("expected city Paris, got %v", call.Arguments["city"])
	}
	if resp.FinishReason != FinishToolCalls {
		t.Errorf("expected finish reason tool_calls, got %s", resp.FinishReason)
	}
}

func TestOpenAIDecodeMalformedArguments(t *testing.T) {
	raw := json.RawMessage(`{
		"id": "chatcmpl-02",
		"choices": [{
			"index": 0,
			"message": {
				"role": "assistant",
				"tool_calls": [{
					"id": "call_02",
					"type": "function",
					"function": {"name": "get_weather", "arguments": "{not valid json"}
				}]
			},
			"finish_reason": "tool_calls"
		}]
	}`)

	_, err := OpenAIAdapter{}.DecodeResponse(raw)
	var formatErr *ProviderFormatError
	if !errors.As(err, &formatErr) {
		t.Fatalf("expected ProviderFormatError, got %v", err)
	}
	if formatErr.Provider != "openai" {
		t.Errorf("expected provider openai, got %s", formatErr.Provider)
	}
}

func TestOpenAIDecodeNoChoices(t *testing.T) {
	_, err := OpenAIAdapter{}.DecodeResponse(json.RawMessage(`{"id": "chatcmpl-03", "choices": []}`))
	var formatErr *ProviderFormatError
	if !errors.As(err, &formatErr) {
		t.Fatalf("expected ProviderFormatError, got %v", err)
	}
}

func TestOpenAIDecodeFinishReasons(t *testing.T) {
	cases := []struct {
		vendor string
		want   FinishReason
	}{
		{"stop", FinishStop},
		{"length", FinishLength},
		{"content_filter", FinishStop},
	}
	for _, tc := range cases {
		raw := json.RawMessage(`{
			"id": "chatcmpl-04",
			"choices": [{
				"index": 0,
				"message": {"role": "assistant", "content": "done"},
				"finish_reason": "` + tc.vendor + `"
			}]
		}`)
		resp, err := OpenAIAdapter{}.DecodeResponse(raw)
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", tc.vendor, err)
		}
		if resp.FinishReason != tc.want {
			t.Errorf("%s: expected %s, got %s", tc.vendor, tc.want, resp.FinishReason)
		}
	}
}

func TestOpenAIEncodeToolResults(t *testing.T) {
	results := []tool.Result{
		tool.NewResult(tool.Call{ID: "call_01", Name: "get_weather"}, "18C, cloudy"),
		tool.NewErrorResult(tool.Call{ID: "call_02", Name: "get_forecast"}, "upstream timeout"),
	}

	messages := OpenAIAdapter{}.EncodeToolResults(results)
	if len(messages) != 2 {
		t.Fatalf("expected one tool message per result, got %d", len(messages))
	}
	for i, msg := range messages {
		if msg.Role != RoleTool {
			t.Errorf("message %d: expected tool role, got %s", i, msg.Role)
		}
		if len(msg.Blocks) != 1 {
			t.Errorf("message %d: expected 1 block, got %d", i, len(msg.Blocks))
		}
	}
	if messages[0].Blocks[0].ToolCallID != "call_01" {
		t.Errorf("unexpected first call id: %s", messages[0].Blocks[0].ToolCallID)
	}
	if !messages[1].Blocks[0].IsError {
		t.Error("expected second result marked as error")
	}
}
