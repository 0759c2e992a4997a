// ABOUTME: Defines the Adapter interface - the abstraction that lets one
// ABOUTME: tool definition work unmodified across every LLM vendor.
package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/latchkey-labs/crossbar/tool"
)

// Adapter converts between the universal tool schema and one vendor's
// wire format. Adapters are pure reshaping: no I/O, no semantic loss.
// One adapter is selected at orchestrator construction; the turn loop
// itself never branches on the provider.
type Adapter interface {
	// Provider returns the vendor name ("anthropic", "openai", ...).
	Provider() string

	// EncodeTools maps universal tools into the vendor's declared tool
	// format. The returned value is vendor-specific and opaque to the
	// orchestrator; it is handed to the Sender unchanged.
	EncodeTools(tools []tool.Tool) (any, error)

	// DecodeResponse parses a raw vendor response into the normalized
	// form. A response fragment that looks like a tool call but fails
	// to parse yields a ProviderFormatError, never a panic.
	DecodeResponse(raw json.RawMessage) (*EnhancedResponse, error)

	// EncodeToolResults formats prior tool outputs into the message
	// shape the vendor expects for the next turn. This varies most
	// across vendors: some want a dedicated tool-role message per
	// result, others want the results inlined into a user turn.
	EncodeToolResults(results []tool.Result) []Message
}

// Sender delivers an encoded request to a provider completion endpoint
// and returns the raw response body. The surrounding system supplies
// it; auth, retries, and rate limiting live behind this seam, outside
// the core.
type Sender interface {
	SendRequest(ctx context.Context, messages []Message, encodedTools any) (json.RawMessage, error)
}

// SenderFunc adapts a function to the Sender interface.
type SenderFunc func(ctx context.Context, messages []Message, encodedTools any) (json.RawMessage, error)

// SendRequest implements Sender.
func (f SenderFunc) SendRequest(ctx context.Context, messages []Message, encodedTools any) (json.RawMessage, error) {
	return f(ctx, messages, encodedTools)
}

// ProviderFormatError reports a vendor response that did not match any
// known shape - most commonly a tool-call fragment whose arguments are
// not valid JSON. The orchestrator treats it as a non-retryable turn
// failure.
type ProviderFormatError struct {
	Provider string
	Detail   string
	Err      error
}

func (e *ProviderFormatError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s response format: %s: %v", e.Provider, e.Detail, e.Err)
	}
	return fmt.Sprintf("%s response format: %s", e.Provider, e.Detail)
}

func (e *ProviderFormatError) Unwrap() error { return e.Err }
