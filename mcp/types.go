// ABOUTME: Defines MCP protocol types - JSON-RPC 2.0 envelopes, handshake
// ABOUTME: payloads, tool info, and server configuration structures.
package mcp

import (
	"encoding/json"
	"fmt"
	"time"
)

// jsonrpcVersion is the JSON-RPC protocol version used by MCP.
const jsonrpcVersion = "2.0"

// ProtocolVersion is the MCP protocol version advertised during initialization.
const ProtocolVersion = "2024-11-05"

// Request is a JSON-RPC 2.0 request. IDs are per-session monotonically
// increasing integers allocated by the Session.
type Request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// NewRequest creates a JSON-RPC 2.0 request with the given id and method.
func NewRequest(id int64, method string, params any) *Request {
	return &Request{
		JSONRPC: jsonrpcVersion,
		ID:      id,
		Method:  method,
		Params:  params,
	}
}

// Response is a JSON-RPC 2.0 response. Exactly one of Result or Error
// is non-nil in a well-formed response.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Method  string          `json:"method,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *RPCError       `json:"error,omitempty"`
}

// IsNotification reports whether this message is a server-initiated
// notification rather than a reply to one of our requests.
func (r *Response) IsNotification() bool {
	return r.Method != "" && r.ID == 0 && r.Result == nil && r.Error == nil
}

// RPCError is a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// CodeMethodNotFound is the JSON-RPC error code for an unknown method.
const CodeMethodNotFound = -32601

func (e *RPCError) Error() string {
	return fmt.Sprintf("jsonrpc error %d: %s", e.Code, e.Message)
}

// Notification is a JSON-RPC 2.0 notification (no ID, no response expected).
type Notification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// NewNotification creates a JSON-RPC 2.0 notification.
func NewNotification(method string, params any) *Notification {
	return &Notification{
		JSONRPC: jsonrpcVersion,
		Method:  method,
		Params:  params,
	}
}

// ToolInfo describes a tool exposed by an MCP server, as returned by
// tools/list. Structurally identical in shape to the universal Tool.
type ToolInfo struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	InputSchema map[string]any `json:"inputSchema"`
}

// ToolsListResult is the response from tools/list.
type ToolsListResult struct {
	Tools []ToolInfo `json:"tools"`
}

// ToolCallParams is the input for tools/call.
type ToolCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// ToolCallResult is the response from tools/call.
type ToolCallResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

// ContentBlock is an MCP content block.
type ContentBlock struct {
	Type     string `json:"type"`
	Text     string `json:"text,omitempty"`
	MimeType string `json:"mimeType,omitempty"`
	Data     string `json:"data,omitempty"`
}

// ResourceInfo describes a resource exposed by an MCP server.
type ResourceInfo struct {
	URI         string `json:"uri"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	MimeType    string `json:"mimeType,omitempty"`
}

// ResourcesListResult is the response from resources/list.
type ResourcesListResult struct {
	Resources []ResourceInfo `json:"resources"`
}

// ResourceContents is one entry in a resources/read response.
type ResourceContents struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
	Text     string `json:"text,omitempty"`
	Blob     string `json:"blob,omitempty"`
}

// ResourcesReadResult is the response from resources/read.
type ResourcesReadResult struct {
	Contents []ResourceContents `json:"contents"`
}

// InitializeParams is the payload of the initialize request.
type InitializeParams struct {
	ProtocolVersion string     `json:"protocolVersion"`
	Capabilities    any        `json:"capabilities"`
	ClientInfo      ClientInfo `json:"clientInfo"`
}

// ClientInfo identifies the MCP client.
type ClientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// ServerInfo is returned by the server in the initialize response.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Capabilities describes what an MCP server supports. Captured once at
// handshake completion and never mutated afterwards.
type Capabilities struct {
	Tools     *struct{} `json:"tools,omitempty"`
	Resources *struct{} `json:"resources,omitempty"`
	Prompts   *struct{} `json:"prompts,omitempty"`
}

// InitializeResult is the full initialize response payload.
type InitializeResult struct {
	ProtocolVersion string       `json:"protocolVersion"`
	ServerInfo      ServerInfo   `json:"serverInfo"`
	Capabilities    Capabilities `json:"capabilities"`
}

// ServerConfig describes one MCP server: how to reach it and how
// patient to be with it. Zero-valued timeouts and thresholds fall back
// to the defaults below.
type ServerConfig struct {
	Name      string            `json:"name" yaml:"name"`
	Transport string            `json:"transport" yaml:"transport"`
	Command   string            `json:"command,omitempty" yaml:"command,omitempty"`
	Args      []string          `json:"args,omitempty" yaml:"args,omitempty"`
	Env       map[string]string `json:"env,omitempty" yaml:"env,omitempty"`
	URL       string            `json:"url,omitempty" yaml:"url,omitempty"`
	Headers   map[string]string `json:"headers,omitempty" yaml:"headers,omitempty"`

	ConnectTimeout time.Duration `json:"connect_timeout,omitempty" yaml:"connect_timeout,omitempty"`
	CallTimeout    time.Duration `json:"call_timeout,omitempty" yaml:"call_timeout,omitempty"`
	HealthInterval time.Duration `json:"health_interval,omitempty" yaml:"health_interval,omitempty"`

	BreakerThreshold int           `json:"breaker_threshold,omitempty" yaml:"breaker_threshold,omitempty"`
	BreakerCooldown  time.Duration `json:"breaker_cooldown,omitempty" yaml:"breaker_cooldown,omitempty"`

	MaxReconnectAttempts int           `json:"max_reconnect_attempts,omitempty" yaml:"max_reconnect_attempts,omitempty"`
	ReconnectBaseDelay   time.Duration `json:"reconnect_base_delay,omitempty" yaml:"reconnect_base_delay,omitempty"`
	ReconnectMaxDelay    time.Duration `json:"reconnect_max_delay,omitempty" yaml:"reconnect_max_delay,omitempty"`
}

// Defaults applied to zero-valued ServerConfig fields.
const (
	DefaultConnectTimeout = 10 * time.Second
	DefaultCallTimeout    = 30 * time.Second
	DefaultHealthInterval = 30 * time.Second

	DefaultBreakerThreshold = 5
	DefaultBreakerCooldown  = 30 * time.Second

	DefaultMaxReconnectAttempts = 5
	DefaultReconnectBaseDelay   = 500 * time.Millisecond
	DefaultReconnectMaxDelay    = 30 * time.Second
)

func (c ServerConfig) withDefaults() ServerConfig {
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = DefaultConnectTimeout
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = DefaultCallTimeout
	}
	if c.HealthInterval <= 0 {
		c.HealthInterval = DefaultHealthInterval
	}
	if c.BreakerThreshold <= 0 {
		c.BreakerThreshold = DefaultBreakerThreshold
	}
	if c.BreakerCooldown <= 0 {
		c.BreakerCooldown = DefaultBreakerCooldown
	}
	if c.MaxReconnectAttempts <= 0 {
		c.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	if c.ReconnectBaseDelay <= 0 {
		c.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.ReconnectMaxDelay <= 0 {
		c.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	return c
}
