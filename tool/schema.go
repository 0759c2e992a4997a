// ABOUTME: Derives universal tool parameters from Go struct types using
// ABOUTME: jsonschema reflection, so local tools declare inputs as structs.
package tool

import (
	"github.com/invopop/jsonschema"
)

// FromStruct builds a Tool whose parameters are reflected from the struct
// type T. Field names come from json tags; descriptions and required
// markers come from jsonschema tags:
//
//	type AddInput struct {
//		A int `json:"a" jsonschema:"required,description=First addend"`
//		B int `json:"b" jsonschema:"required,description=Second addend"`
//	}
//	adder, err := tool.FromStruct[AddInput]("add", "Add two integers")
func FromStruct[T any](name, description string) (Tool, error) {
	var zero T
	s := jsonschema.Reflect(&zero)
	root := extractRoot(s)

	params := map[string]Param{}
	if root.Properties != nil {
		for pair := root.Properties.Oldest(); pair != nil; pair = pair.Next() {
			params[pair.Key] = reflectedParam(pair.Value)
		}
	}
	return New(name, description, params, root.Required)
}

// extractRoot resolves the root schema. invopop/jsonschema places the
// reflected type under $defs behind a $ref, so follow it to the object.
func extractRoot(s *jsonschema.Schema) *jsonschema.Schema {
	if s.Ref != "" && s.Definitions != nil {
		for _, def := range s.Definitions {
			if def.Type == "object" {
				return def
			}
		}
	}
	return s
}

func reflectedParam(s *jsonschema.Schema) Param {
	p := Param{Type: s.Type, Description: s.Description}

	// Pointer fields reflect as anyOf with a null branch; take the
	// non-null type.
	if p.Type == "" && len(s.AnyOf) > 0 {
		for _, sub := range s.AnyOf {
			if sub.Type != "null" && sub.Type != "" {
				p.Type = sub.Type
				break
			}
		}
	}
	if p.Type == "" {
		p.Type = "string"
	}
	for _, e := range s.Enum {
		if str, ok := e.(string); ok {
			p.Enum = append(p.Enum, str)
		}
	}
	return p
}
