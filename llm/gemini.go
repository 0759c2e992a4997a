// ABOUTME: Gemini format adapter and SDK-backed sender - converts universal
// ABOUTME: tools and messages to/from the function-declaration format.
package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"google.golang.org/genai"

	"github.com/latchkey-labs/crossbar/tool"
)

// DefaultGeminiModel is used when no model is configured.
const DefaultGeminiModel = "gemini-2.0-flash"

// GeminiAdapter converts universal tools to Gemini function declarations
// and back.
type GeminiAdapter struct{}

// Provider returns "gemini".
func (GeminiAdapter) Provider() string { return "gemini" }

// EncodeTools maps universal tools into a single genai.Tool holding one
// FunctionDeclaration per tool. The raw JSON schema is passed through
// ParametersJsonSchema, so nothing is lost in translation.
func (GeminiAdapter) EncodeTools(tools []tool.Tool) (any, error) {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:                 t.Name,
			Description:          t.Description,
			ParametersJsonSchema: t.InputSchema(),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}, nil
}

// DecodeResponse parses a raw GenerateContent response. Gemini function
// calls carry no call id, so one is synthesized to keep ids unique
// within the turn.
func (a GeminiAdapter) DecodeResponse(raw json.RawMessage) (*EnhancedResponse, error) {
	var gresp genai.GenerateContentResponse
	if err := json.Unmarshal(raw, &gresp); err != nil {
		return nil, &ProviderFormatError{Provider: a.Provider(), Detail: "unparseable response body", Err: err}
	}
	if len(gresp.Candidates) == 0 {
		return nil, &ProviderFormatError{Provider: a.Provider(), Detail: "response has no candidates"}
	}

	candidate := gresp.Candidates[0]
	resp := &EnhancedResponse{Raw: raw}

	if candidate.Content != nil {
		for _, part := range candidate.Content.Parts {
			if part.Text != "" {
				resp.Content += part.Text
			}
			if part.FunctionCall != nil {
				id := part.FunctionCall.ID
				if id == "" {
					id = "call_" + uuid.NewString()
				}
				args := part.FunctionCall.Args
				if args == nil {
					args = map[string]any{}
				}
				resp.ToolCalls = append(resp.ToolCalls, tool.Call{
					ID:        id,
					Name:      part.FunctionCall.Name,
					Arguments: args,
					Origin:    tool.OriginProvider,
				})
			}
		}
	}

	switch {
	case len(resp.ToolCalls) > 0:
		resp.FinishReason = FinishToolCalls
	case candidate.FinishReason == genai.FinishReasonMaxTokens:
		resp.FinishReason = FinishLength
	default:
		resp.FinishReason = FinishStop
	}
	return resp, nil
}

// EncodeToolResults inlines results into a user message; the sender
// turns each block into a FunctionResponse part keyed by tool name.
func (GeminiAdapter) EncodeToolResults(results []tool.Result) []Message {
	blocks := make([]ContentBlock, 0, len(results))
	for _, r := range results {
		blocks = append(blocks, ContentBlock{
			Type:       ContentTypeToolResult,
			Name:       r.Name,
			ToolCallID: r.CallID,
			Text:       r.Content,
			IsError:    r.IsError,
		})
	}
	return []Message{{Role: RoleUser, Blocks: blocks}}
}

// GeminiClient is an SDK-backed Sender for the Gemini API.
type GeminiClient struct {
	client *genai.Client
	model  string
}

// NewGeminiClient creates a sender for the Gemini API.
func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	if model == "" {
		model = DefaultGeminiModel
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiClient{client: client, model: model}, nil
}

// SendRequest converts universal messages into genai contents, calls
// GenerateContent, and returns the raw response body.
func (c *GeminiClient) SendRequest(ctx context.Context, messages []Message, encodedTools any) (json.RawMessage, error) {
	config := &genai.GenerateContentConfig{}

	if encodedTools != nil {
		tools, ok := encodedTools.([]*genai.Tool)
		if !ok {
			return nil, fmt.Errorf("gemini sender: encoded tools have type %T, want []*genai.Tool", encodedTools)
		}
		config.Tools = tools
	}

	contents := make([]*genai.Content, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == RoleSystem {
			config.SystemInstruction = genai.NewContentFromText(msg.Content, genai.RoleUser)
			continue
		}
		if content := convertGeminiMessage(msg); content != nil {
			contents = append(contents, content)
		}
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, config)
	if err != nil {
		return nil, err
	}
	return json.Marshal(resp)
}

func convertGeminiMessage(msg Message) *genai.Content {
	role := genai.RoleUser
	if msg.Role == RoleAssistant {
		role = genai.RoleModel
	}

	var parts []*genai.Part
	if msg.Content != "" {
		parts = append(parts, &genai.Part{Text: msg.Content})
	}
	for _, block := range msg.Blocks {
		switch block.Type {
		case ContentTypeText:
			parts = append(parts, &genai.Part{Text: block.Text})
		case ContentTypeToolUse:
			parts = append(parts, genai.NewPartFromFunctionCall(block.Name, block.Input))
		case ContentTypeToolResult:
			response := map[string]any{"output": block.Text}
			if block.IsError {
				response = map[string]any{"error": block.Text}
			}
			parts = append(parts, genai.NewPartFromFunctionResponse(block.Name, response))
		}
	}
	if len(parts) == 0 {
		return nil
	}
	return &genai.Content{Role: role, Parts: parts}
}
