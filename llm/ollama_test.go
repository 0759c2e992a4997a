// ABOUTME: Tests for the Ollama adapter and client defaults.
package llm

import (
	"encoding/json"
	"testing"

	"github.com/openai/openai-go"
)

func TestNewOllamaClientDefaults(t *testing.T) {
	client := NewOllamaClient("", "")
	if client == nil {
		t.Fatal("expected non-nil client")
	}
	if client.model != DefaultOllamaModel {
		t.Errorf("expected default model %s, got %s", DefaultOllamaModel, client.model)
	}
}

func TestOllamaAdapterProvider(t *testing.T) {
	if got := (OllamaAdapter{}).Provider(); got != "ollama" {
		t.Errorf("expected provider ollama, got %s", got)
	}
}

func TestOllamaAdapterUsesOpenAIFormat(t *testing.T) {
	encoded, err := OllamaAdapter{}.EncodeTools(nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := encoded.([]openai.ChatCompletionToolParam); !ok {
		t.Errorf("expected OpenAI tool params, got %T", encoded)
	}

	raw := json.RawMessage(`{
		"id": "chatcmpl-local",
		"choices": [{
			"index": 0,
			"message": {"role": "assistant", "content": "hello"},
			"finish_reason": "stop"
		}]
	}`)
	resp, err := OllamaAdapter{}.DecodeResponse(raw)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.Content != "hello" {
		t.Errorf("unexpected content: %q", resp.Content)
	}
}
