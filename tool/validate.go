// ABOUTME: Implements argument validation against a tool's declared
// ABOUTME: parameters - pure functions, no I/O.
package tool

import (
	"fmt"
	"math"
)

// SchemaError reports arguments that do not satisfy a tool's parameter
// declarations. It is fixable by the caller and surfaced immediately.
type SchemaError struct {
	Tool   string
	Param  string
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("tool %q parameter %q: %s", e.Tool, e.Param, e.Reason)
	}
	return fmt.Sprintf("tool %q: %s", e.Tool, e.Reason)
}

// ValidateArguments checks args against the tool's parameters and returns
// a coerced copy: required parameters must be present, every supplied
// value must match its declared type, and JSON numbers are narrowed to
// integers where the schema asks for one. Unknown arguments are rejected
// so a provider hallucinating parameters fails loudly rather than
// silently feeding garbage to a tool.
func ValidateArguments(t Tool, args map[string]any) (map[string]any, error) {
	for _, req := range t.Required {
		if _, ok := args[req]; !ok {
			return nil, &SchemaError{Tool: t.Name, Param: req, Reason: "required parameter missing"}
		}
	}

	coerced := make(map[string]any, len(args))
	for name, value := range args {
		p, ok := t.Parameters[name]
		if !ok {
			return nil, &SchemaError{Tool: t.Name, Param: name, Reason: "parameter not declared"}
		}
		v, err := coerceValue(p.Type, value)
		if err != nil {
			return nil, &SchemaError{Tool: t.Name, Param: name, Reason: err.Error()}
		}
		if len(p.Enum) > 0 {
			if s, ok := v.(string); ok && !contains(p.Enum, s) {
				return nil, &SchemaError{Tool: t.Name, Param: name, Reason: fmt.Sprintf("value %q not in enum", s)}
			}
		}
		coerced[name] = v
	}
	return coerced, nil
}

func coerceValue(typ string, value any) (any, error) {
	switch typ {
	case "string":
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("expected string, got %T", value)
		}
		return s, nil
	case "integer":
		switch n := value.(type) {
		case int:
			return int64(n), nil
		case int64:
			return n, nil
		case float64:
			// JSON numbers arrive as float64; accept integral values only.
			if n != math.Trunc(n) {
				return nil, fmt.Errorf("expected integer, got %v", n)
			}
			return int64(n), nil
		default:
			return nil, fmt.Errorf("expected integer, got %T", value)
		}
	case "number":
		switch n := value.(type) {
		case int:
			return float64(n), nil
		case int64:
			return float64(n), nil
		case float64:
			return n, nil
		default:
			return nil, fmt.Errorf("expected number, got %T", value)
		}
	case "boolean":
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("expected boolean, got %T", value)
		}
		return b, nil
	case "array":
		a, ok := value.([]any)
		if !ok {
			return nil, fmt.Errorf("expected array, got %T", value)
		}
		return a, nil
	case "object":
		m, ok := value.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("expected object, got %T", value)
		}
		return m, nil
	case "":
		return value, nil
	default:
		return nil, fmt.Errorf("unsupported parameter type %q", typ)
	}
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
