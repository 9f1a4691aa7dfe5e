package tools

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"
)

// PropSpec is the declared shape of one tool parameter.
type PropSpec struct {
	Type        string `json:"type"`
	Description string `json:"description"`
}

// ParamSchema is the subset of JSON Schema used for tool parameters: an
// object with typed properties and a required list. Every tool declares one
// (as raw JSON, see schema.Tool.Parameters); the registry parses it once at
// registration so dispatch never re-parses.
type ParamSchema struct {
	Type       string              `json:"type"`
	Properties map[string]PropSpec `json:"properties"`
	Required   []string            `json:"required"`
}

// ParseParamSchema decodes a tool's raw parameter schema. A nil/empty raw
// value yields a permissive empty object schema.
func ParseParamSchema(raw json.RawMessage) (*ParamSchema, error) {
	if len(raw) == 0 {
		return &ParamSchema{Type: "object"}, nil
	}
	var s ParamSchema
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("parse parameter schema: %w", err)
	}
	for _, name := range s.Required {
		if _, ok := s.Properties[name]; !ok {
			return nil, fmt.Errorf("required parameter %q has no property definition", name)
		}
	}
	return &s, nil
}

// Validate checks args against the schema: every required parameter must be
// present, and every declared parameter that is present must match its
// primitive type. Undeclared extra arguments pass through untouched; the
// handler decides what to do with them.
func (s *ParamSchema) Validate(args map[string]any) error {
	if s == nil {
		return nil
	}
	if args == nil {
		args = map[string]any{}
	}

	for _, name := range s.Required {
		if _, ok := args[name]; !ok {
			return fmt.Errorf("missing required parameter %q", name)
		}
	}

	for name, value := range args {
		prop, ok := s.Properties[name]
		if !ok || prop.Type == "" {
			continue
		}
		if err := checkType(value, prop.Type); err != nil {
			return fmt.Errorf("parameter %q: %w", name, err)
		}
	}
	return nil
}

// checkType verifies a decoded JSON value against a JSON Schema primitive
// type name. Integers tolerate whole-valued floats because encoding/json
// decodes all numbers to float64.
func checkType(value any, expected string) error {
	switch expected {
	case "string":
		if _, ok := value.(string); ok {
			return nil
		}
	case "number":
		if isNumber(value) {
			return nil
		}
	case "integer":
		if isInteger(value) {
			return nil
		}
	case "boolean":
		if _, ok := value.(bool); ok {
			return nil
		}
	case "object":
		if _, ok := value.(map[string]any); ok {
			return nil
		}
	case "array":
		if _, ok := value.([]any); ok {
			return nil
		}
	case "null":
		if value == nil {
			return nil
		}
	default:
		return fmt.Errorf("unsupported schema type %q", expected)
	}
	return fmt.Errorf("expected %s, got %s", expected, describeValue(value))
}

func isNumber(value any) bool {
	switch value.(type) {
	case float32, float64, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case json.Number:
		_, err := value.(json.Number).Float64()
		return err == nil
	}
	return false
}

func isInteger(value any) bool {
	switch v := value.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return true
	case float32:
		return math.Trunc(float64(v)) == float64(v)
	case float64:
		return math.Trunc(v) == v
	case json.Number:
		_, err := v.Int64()
		return err == nil
	}
	return false
}

// describeValue names a value's JSON type for error messages.
func describeValue(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case string:
		return "string"
	case bool:
		return "boolean"
	case float32, float64, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, json.Number:
		return "number"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	default:
		return strings.TrimPrefix(fmt.Sprintf("%T", value), "*")
	}
}
