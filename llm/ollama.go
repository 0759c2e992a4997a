// ABOUTME: Ollama adapter and sender - local inference through Ollama's
// ABOUTME: OpenAI-compatible API, reusing the OpenAI format conversion.
package llm

// DefaultOllamaBaseURL is the default Ollama API endpoint.
const DefaultOllamaBaseURL = "http://localhost:11434/v1"

// DefaultOllamaModel is the default model for Ollama.
const DefaultOllamaModel = "llama3.2"

// OllamaAdapter speaks the OpenAI function-calling format, which is what
// Ollama's compatibility endpoint serves.
type OllamaAdapter struct {
	OpenAIAdapter
}

// Provider returns "ollama".
func (OllamaAdapter) Provider() string { return "ollama" }

// NewOllamaClient creates a sender for a local Ollama instance.
// If baseURL is empty, defaults to http://localhost:11434/v1.
// If model is empty, defaults to llama3.2.
func NewOllamaClient(baseURL, model string) *OpenAIClient {
	if baseURL == "" {
		baseURL = DefaultOllamaBaseURL
	}
	if model == "" {
		model = DefaultOllamaModel
	}
	// Ollama ignores the API key but the SDK requires one.
	return NewOpenAIClientWithBaseURL("ollama", model, baseURL)
}
