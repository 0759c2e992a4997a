// ABOUTME: OpenAI format adapter and SDK-backed sender - converts universal
// ABOUTME: tools and messages to/from the chat-completions function format.
package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"

	"github.com/latchkey-labs/crossbar/tool"
)

// DefaultOpenAIModel is used when no model is configured.
const DefaultOpenAIModel = "gpt-4o"

// OpenAIAdapter converts universal tools to the chat-completions
// function-calling wire format and back.
type OpenAIAdapter struct{}

// Provider returns "openai".
func (OpenAIAdapter) Provider() string { return "openai" }

// EncodeTools maps universal tools into flat function declarations
// wrapped in the {"type":"function","function":{...}} envelope.
func (OpenAIAdapter) EncodeTools(tools []tool.Tool) (any, error) {
	encoded := make([]openai.ChatCompletionToolParam, 0, len(tools))
	for _, t := range tools {
		encoded = append(encoded, openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        t.Name,
				Description: openai.String(t.Description),
				Parameters:  openai.FunctionParameters(t.InputSchema()),
			},
		})
	}
	return encoded, nil
}

// DecodeResponse parses a raw chat-completions response. Function
// arguments arrive as a JSON string; one that fails to parse is a
// ProviderFormatError, not a crash and not an empty map.
func (a OpenAIAdapter) DecodeResponse(raw json.RawMessage) (*EnhancedResponse, error) {
	var completion openai.ChatCompletion
	if err := json.Unmarshal(raw, &completion); err != nil {
		return nil, &ProviderFormatError{Provider: a.Provider(), Detail: "unparseable response body", Err: err}
	}
	if len(completion.Choices) == 0 {
		return nil, &ProviderFormatError{Provider: a.Provider(), Detail: "response has no choices"}
	}

	choice := completion.Choices[0]
	resp := &EnhancedResponse{
		Content: choice.Message.Content,
		Raw:     raw,
	}

	for _, tc := range choice.Message.ToolCalls {
		var args map[string]any
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
				return nil, &ProviderFormatError{
					Provider: a.Provider(),
					Detail:   fmt.Sprintf("tool call %q has invalid JSON arguments", tc.Function.Name),
					Err:      err,
				}
			}
		}
		if args == nil {
			args = map[string]any{}
		}
		resp.ToolCalls = append(resp.ToolCalls, tool.Call{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: args,
			Origin:    tool.OriginProvider,
		})
	}

	switch choice.FinishReason {
	case "tool_calls":
		resp.FinishReason = FinishToolCalls
	case "length":
		resp.FinishReason = FinishLength
	default:
		resp.FinishReason = FinishStop
	}
	return resp, nil
}

// EncodeToolResults emits one tool-role message per result, the shape
// the chat-completions API expects.
func (OpenAIAdapter) EncodeToolResults(results []tool.Result) []Message {
	messages := make([]Message, 0, len(results))
	for _, r := range results {
		messages = append(messages, Message{
			Role: RoleTool,
			Blocks: []ContentBlock{{
				Type:       ContentTypeToolResult,
				ToolCallID: r.CallID,
				Text:       r.Content,
				IsError:    r.IsError,
			}},
		})
	}
	return messages
}

// OpenAIClient is an SDK-backed Sender for the OpenAI API.
type OpenAIClient struct {
	client openai.Client
	model  string
}

// NewOpenAIClient creates a sender for the OpenAI API.
func NewOpenAIClient(apiKey, model string) *OpenAIClient {
	if model == "" {
		model = DefaultOpenAIModel
	}
	return &OpenAIClient{
		client: openai.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

// NewOpenAIClientWithBaseURL creates a sender against an OpenAI-compatible
// endpoint. Used for proxies and for Ollama's compatibility API.
func NewOpenAIClientWithBaseURL(apiKey, model, baseURL string) *OpenAIClient {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &OpenAIClient{
		client: openai.NewClient(opts...),
		model:  model,
	}
}

// SendRequest converts universal messages into ChatCompletionNewParams,
// calls the API, and returns the raw response body.
func (c *OpenAIClient) SendRequest(ctx context.Context, messages []Message, encodedTools any) (json.RawMessage, error) {
	params := openai.ChatCompletionNewParams{
		Model: c.model,
	}

	if encodedTools != nil {
		tools, ok := encodedTools.([]openai.ChatCompletionToolParam)
		if !ok {
			return nil, fmt.Errorf("openai sender: encoded tools have type %T, want []openai.ChatCompletionToolParam", encodedTools)
		}
		params.Tools = tools
	}

	converted := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			converted = append(converted, openai.SystemMessage(msg.Content))
		case RoleUser:
			converted = append(converted, convertOpenAIUserMessage(msg))
		case RoleAssistant:
			converted = append(converted, convertOpenAIAssistantMessage(msg))
		case RoleTool:
			for _, block := range msg.Blocks {
				if block.Type == ContentTypeToolResult {
					converted = append(converted, openai.ToolMessage(block.Text, block.ToolCallID))
				}
			}
		}
	}
	params.Messages = converted

	completion, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(completion.RawJSON()), nil
}

func convertOpenAIUserMessage(msg Message) openai.ChatCompletionMessageParamUnion {
	// Tool results inlined into a user turn still map to tool messages.
	for _, block := range msg.Blocks {
		if block.Type == ContentTypeToolResult {
			return openai.ToolMessage(block.Text, block.ToolCallID)
		}
	}
	if msg.Content != "" {
		return openai.UserMessage(msg.Content)
	}
	for _, block := range msg.Blocks {
		if block.Type == ContentTypeText {
			return openai.UserMessage(block.Text)
		}
	}
	return openai.UserMessage("")
}

func convertOpenAIAssistantMessage(msg Message) openai.ChatCompletionMessageParamUnion {
	var toolCalls []openai.ChatCompletionMessageToolCallParam
	textContent := msg.Content

	for _, block := range msg.Blocks {
		switch block.Type {
		case ContentTypeText:
			textContent = block.Text
		case ContentTypeToolUse:
			argsJSON, _ := json.Marshal(block.Input)
			toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallParam{
				ID:   block.ID,
				Type: "function",
				Function: openai.ChatCompletionMessageToolCallFunctionParam{
					Name:      block.Name,
					Arguments: string(argsJSON),
				},
			})
		}
	}

	if len(toolCalls) > 0 {
		assistant := openai.ChatCompletionAssistantMessageParam{
			Role:      "assistant",
			ToolCalls: toolCalls,
		}
		if textContent != "" {
			assistant.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
				OfString: openai.String(textContent),
			}
		}
		return openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant}
	}
	return openai.AssistantMessage(textContent)
}
