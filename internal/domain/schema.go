package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/google/jsonschema-go/jsonschema"
)

// ToolParameter is one flattened input of a tool.
type ToolParameter struct {
	Name        string   `json:"name"`
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Required    bool     `json:"required"`
	Default     any      `json:"default,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

// ParseToolParameters flattens a tool parameter payload. The payload is either an array of
// already-flattened parameters or a JSON Schema object describing the tool input.
func ParseToolParameters(raw json.RawMessage) ([]ToolParameter, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return []ToolParameter{}, nil
	}

	var params []ToolParameter
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &params); err != nil {
			return nil, fmt.Errorf("decode parameter list: %w", err)
		}
	case '{':
		var schema jsonschema.Schema
		if err := json.Unmarshal(trimmed, &schema); err != nil {
			return nil, fmt.Errorf("decode parameter schema: %w", err)
		}
		params = flattenSchema(&schema)
	default:
		return nil, fmt.Errorf("parameters must be a JSON array or object")
	}

	if params == nil {
		params = []ToolParameter{}
	}
	sort.SliceStable(params, func(i, j int) bool { return params[i].Name < params[j].Name })
	return params, nil
}

func flattenSchema(schema *jsonschema.Schema) []ToolParameter {
	required := make(map[string]bool, len(schema.Required))
	for _, name := range schema.Required {
		required[name] = true
	}

	params := make([]ToolParameter, 0, len(schema.Properties))
	for name, prop := range schema.Properties {
		if prop == nil {
			continue
		}
		param := ToolParameter{
			Name:        name,
			Type:        schemaType(prop),
			Description: prop.Description,
			Required:    required[name],
		}
		if len(prop.Default) > 0 {
			var def any
			if err := json.Unmarshal(prop.Default, &def); err == nil {
				param.Default = def
			}
		}
		for _, value := range prop.Enum {
			if s, ok := value.(string); ok {
				param.Enum = append(param.Enum, s)
			}
		}
		params = append(params, param)
	}
	return params
}

func schemaType(schema *jsonschema.Schema) string {
	if schema.Type != "" {
		return schema.Type
	}
	for _, t := range schema.Types {
		if t != "null" {
			return t
		}
	}
	return ""
}

// ValidateToolArguments checks args against a JSON Schema parameter payload.
// Flattened array payloads only get their required names checked.
func ValidateToolArguments(raw json.RawMessage, args map[string]any) error {
	const op = "tool.validate_args"
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		params, err := ParseToolParameters(raw)
		if err != nil {
			return Validation(op, err.Error())
		}
		for _, param := range params {
			if _, ok := args[param.Name]; param.Required && !ok {
				return Validation(op, fmt.Sprintf("missing required argument %q", param.Name))
			}
		}
		return nil
	}

	var schema jsonschema.Schema
	if err := json.Unmarshal(trimmed, &schema); err != nil {
		return Validation(op, fmt.Sprintf("decode parameter schema: %v", err))
	}
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return Validation(op, fmt.Sprintf("resolve parameter schema: %v", err))
	}
	// Round-trip so numbers and nested values have the shapes the validator expects.
	data, err := json.Marshal(args)
	if err != nil {
		return Validation(op, err.Error())
	}
	var instance any
	if err := json.Unmarshal(data, &instance); err != nil {
		return Validation(op, err.Error())
	}
	if err := resolved.Validate(instance); err != nil {
		return Validation(op, err.Error())
	}
	return nil
}
