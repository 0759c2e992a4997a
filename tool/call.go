// ABOUTME: Defines Call and Result - the per-turn value objects exchanged
// ABOUTME: between a provider response and the tools that satisfy it.
package tool

// Origin tags where a tool call will be dispatched.
type Origin string

const (
	// OriginProvider marks a call against a locally registered tool.
	OriginProvider Origin = "provider-native"

	// OriginMCP marks a call against a tool discovered from an MCP server.
	OriginMCP Origin = "mcp"
)

// Call is a provider's request to invoke one tool. Calls are created
// while parsing a provider response and live only for the turn that
// produced them.
type Call struct {
	// ID is assigned by the provider (or synthesized when the vendor
	// format carries none) and is unique within one turn.
	ID string

	// Name is the tool to invoke.
	Name string

	// Arguments are the call arguments, type-coerced against the
	// tool's parameter declarations before dispatch.
	Arguments map[string]any

	// Origin records whether the call targets a local or MCP tool.
	Origin Origin
}

// Result is the outcome of executing one Call. Results are encoded into
// the next provider request and then discarded.
type Result struct {
	// CallID matches the Call that produced this result.
	CallID string

	// Name is the tool that ran.
	Name string

	// Content is the tool output fed back to the model.
	Content string

	// IsError marks a tool that ran but failed. Failed results are
	// data, not exceptions: the model sees them and can recover.
	IsError bool
}

// NewResult creates a successful result for a call.
func NewResult(call Call, content string) Result {
	return Result{CallID: call.ID, Name: call.Name, Content: content}
}

// NewErrorResult creates a failed result for a call.
func NewErrorResult(call Call, message string) Result {
	return Result{CallID: call.ID, Name: call.Name, Content: message, IsError: true}
}
