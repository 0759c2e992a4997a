// ABOUTME: Defines the universal tool schema - the provider-neutral description
// ABOUTME: of a callable tool shared by every adapter and the MCP layer.
package tool

import (
	"fmt"
	"sort"
	"strings"
)

// Param describes a single tool parameter.
type Param struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

// Tool is the universal, provider-neutral definition of a callable tool.
// A Tool is immutable once constructed; adapters reshape it into each
// vendor's wire format without semantic loss.
type Tool struct {
	Name        string
	Description string
	Parameters  map[string]Param
	Required    []string
}

// New constructs a Tool, validating the definition the same way for every
// provider: names are alphanumeric with underscores, descriptions are
// non-empty, and every required parameter must be declared.
func New(name, description string, parameters map[string]Param, required []string) (Tool, error) {
	if name == "" {
		return Tool{}, fmt.Errorf("tool name cannot be empty")
	}
	if !validName(name) {
		return Tool{}, fmt.Errorf("tool name %q must be alphanumeric with underscores", name)
	}
	if strings.TrimSpace(description) == "" {
		return Tool{}, fmt.Errorf("tool %q description cannot be empty", name)
	}
	for _, req := range required {
		if _, ok := parameters[req]; !ok {
			return Tool{}, fmt.Errorf("tool %q requires undeclared parameter %q", name, req)
		}
	}
	if parameters == nil {
		parameters = map[string]Param{}
	}
	return Tool{
		Name:        name,
		Description: strings.TrimSpace(description),
		Parameters:  parameters,
		Required:    required,
	}, nil
}

// MustNew is New but panics on an invalid definition. For tool tables
// declared at init time.
func MustNew(name, description string, parameters map[string]Param, required []string) Tool {
	t, err := New(name, description, parameters, required)
	if err != nil {
		panic("crossbar: " + err.Error())
	}
	return t
}

func validName(name string) bool {
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_':
		default:
			return false
		}
	}
	return true
}

// InputSchema renders the tool's parameters as a JSON Schema object, the
// shape shared by MCP's inputSchema and most vendor formats.
func (t Tool) InputSchema() map[string]any {
	props := make(map[string]any, len(t.Parameters))
	for name, p := range t.Parameters {
		prop := map[string]any{"type": p.Type}
		if p.Description != "" {
			prop["description"] = p.Description
		}
		if len(p.Enum) > 0 {
			enum := make([]any, len(p.Enum))
			for i, e := range p.Enum {
				enum[i] = e
			}
			prop["enum"] = enum
		}
		props[name] = prop
	}
	schema := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(t.Required) > 0 {
		req := make([]any, len(t.Required))
		for i, r := range t.Required {
			req[i] = r
		}
		schema["required"] = req
	}
	return schema
}

// FromSchema builds a Tool from a JSON Schema object of the shape
// {"type":"object","properties":{...},"required":[...]}. The conversion
// is lossless for the fields the universal schema carries; MCP tool
// definitions pass through here on their way to a provider.
func FromSchema(name, description string, schema map[string]any) (Tool, error) {
	params := map[string]Param{}
	if props, ok := schema["properties"].(map[string]any); ok {
		for pname, raw := range props {
			prop, ok := raw.(map[string]any)
			if !ok {
				return Tool{}, fmt.Errorf("tool %q parameter %q: schema is not an object", name, pname)
			}
			p := Param{Type: "string"}
			if typ, ok := prop["type"].(string); ok {
				p.Type = typ
			}
			if desc, ok := prop["description"].(string); ok {
				p.Description = desc
			}
			if enum, ok := prop["enum"].([]any); ok {
				for _, e := range enum {
					if s, ok := e.(string); ok {
						p.Enum = append(p.Enum, s)
					}
				}
			}
			params[pname] = p
		}
	}

	var required []string
	switch req := schema["required"].(type) {
	case []string:
		required = append(required, req...)
	case []any:
		for _, r := range req {
			if s, ok := r.(string); ok {
				required = append(required, s)
			}
		}
	}
	sort.Strings(required)

	if description == "" {
		description = name
	}
	return New(name, description, params, required)
}
