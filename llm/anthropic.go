// ABOUTME: Anthropic format adapter and SDK-backed sender - converts universal
// ABOUTME: tools and messages to/from the Messages API tool-use format.
package llm

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"

	"github.com/latchkey-labs/crossbar/tool"
)

// DefaultAnthropicModel is used when no model is configured.
const DefaultAnthropicModel = "claude-sonnet-4-20250514"

// DefaultMaxTokens bounds a single completion when the caller does not set one.
const DefaultMaxTokens = 4096

// AnthropicAdapter converts universal tools to the Anthropic tool-use
// wire format and back.
type AnthropicAdapter struct{}

// Provider returns "anthropic".
func (AnthropicAdapter) Provider() string { return "anthropic" }

// EncodeTools maps universal tools into Anthropic tool declarations.
// The mapping is 1:1 - name, description, and the full input schema
// survive the trip.
func (AnthropicAdapter) EncodeTools(tools []tool.Tool) (any, error) {
	encoded := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		schema := t.InputSchema()
		toolParam := anthropic.ToolParam{
			Name:        t.Name,
			Description: param.NewOpt(t.Description),
			InputSchema: anthropic.ToolInputSchemaParam{
				Properties: schema["properties"],
			},
		}
		if len(t.Required) > 0 {
			toolParam.InputSchema.Required = t.Required
		}
		encoded = append(encoded, anthropic.ToolUnionParam{OfTool: &toolParam})
	}
	return encoded, nil
}

// DecodeResponse parses a raw Messages API response. tool_use content
// blocks become universal tool calls; stop_reason "tool_use" maps to
// FinishToolCalls.
func (a AnthropicAdapter) DecodeResponse(raw json.RawMessage) (*EnhancedResponse, error) {
	var msg anthropic.Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, &ProviderFormatError{Provider: a.Provider(), Detail: "unparseable response body", Err: err}
	}

	resp := &EnhancedResponse{Raw: raw}
	for _, block := range msg.Content {
		switch block.Type {
		case "text":
			resp.Content += block.Text
		case "tool_use":
			var args map[string]any
			if len(block.Input) > 0 {
				if err := json.Unmarshal(block.Input, &args); err != nil {
					return nil, &ProviderFormatError{
						Provider: a.Provider(),
						Detail:   fmt.Sprintf("tool_use block %q has invalid JSON arguments", block.Name),
						Err:      err,
					}
				}
			}
			if args == nil {
				args = map[string]any{}
			}
			resp.ToolCalls = append(resp.ToolCalls, tool.Call{
				ID:        block.ID,
				Name:      block.Name,
				Arguments: args,
				Origin:    tool.OriginProvider,
			})
		}
	}

	switch msg.StopReason {
	case anthropic.StopReasonToolUse:
		resp.FinishReason = FinishToolCalls
	case anthropic.StopReasonMaxTokens:
		resp.FinishReason = FinishLength
	default:
		resp.FinishReason = FinishStop
	}
	return resp, nil
}

// EncodeToolResults inlines all results into a single user message with
// tool_result blocks, the shape the Messages API expects.
func (AnthropicAdapter) EncodeToolResults(results []tool.Result) []Message {
	blocks := make([]ContentBlock, 0, len(results))
	for _, r := range results {
		blocks = append(blocks, ContentBlock{
			Type:       ContentTypeToolResult,
			ToolCallID: r.CallID,
			Text:       r.Content,
			IsError:    r.IsError,
		})
	}
	return []Message{{Role: RoleUser, Blocks: blocks}}
}

// AnthropicClient is an SDK-backed Sender for the Anthropic API.
type AnthropicClient struct {
	client anthropic.Client
	model  string
}

// NewAnthropicClient creates a sender for the Anthropic API.
func NewAnthropicClient(apiKey, model string) *AnthropicClient {
	if model == "" {
		model = DefaultAnthropicModel
	}
	return &AnthropicClient{
		client: anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:  model,
	}
}

// NewAnthropicClientWithBaseURL creates a sender with a custom base URL.
// Useful for proxies, API gateways, or compatible endpoints.
func NewAnthropicClientWithBaseURL(apiKey, model, baseURL string) *AnthropicClient {
	if model == "" {
		model = DefaultAnthropicModel
	}
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &AnthropicClient{
		client: anthropic.NewClient(opts...),
		model:  model,
	}
}

// SendRequest converts universal messages into MessageNewParams, calls
// the Messages API, and returns the raw response body.
func (c *AnthropicClient) SendRequest(ctx context.Context, messages []Message, encodedTools any) (json.RawMessage, error) {
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: DefaultMaxTokens,
	}

	if encodedTools != nil {
		tools, ok := encodedTools.([]anthropic.ToolUnionParam)
		if !ok {
			return nil, fmt.Errorf("anthropic sender: encoded tools have type %T, want []anthropic.ToolUnionParam", encodedTools)
		}
		params.Tools = tools
	}

	converted := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == RoleSystem {
			params.System = []anthropic.TextBlockParam{{Text: msg.Content}}
			continue
		}

		var content []anthropic.ContentBlockParamUnion
		if msg.Content != "" {
			content = append(content, anthropic.NewTextBlock(msg.Content))
		}
		for _, block := range msg.Blocks {
			switch block.Type {
			case ContentTypeText:
				content = append(content, anthropic.NewTextBlock(block.Text))
			case ContentTypeToolUse:
				content = append(content, anthropic.NewToolUseBlock(block.ID, block.Input, block.Name))
			case ContentTypeToolResult:
				content = append(content, anthropic.NewToolResultBlock(block.ToolCallID, block.Text, block.IsError))
			}
		}
		converted = append(converted, anthropic.MessageParam{
			Role:    anthropic.MessageParamRole(msg.Role),
			Content: content,
		})
	}
	params.Messages = converted

	msg, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, err
	}
	return json.RawMessage(msg.RawJSON()), nil
}
