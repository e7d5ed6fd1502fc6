package util

import (
	"errors"
	"fmt"
	"sort"
)

// ValidationError describes a plugin config value that does not satisfy its
// schema.
type ValidationError struct {
	Field   string `json:"field"`
	Value   any    `json:"value"`
	Message string `json:"message"`
}

// Error implements the error interface for ValidationError.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// ValidateConfig checks config against a JSON-schema subset: "required"
// (as []string or []any), per-property "type" and "enum". Unknown properties
// are allowed. Every violation is reported, sorted by field.
func ValidateConfig(config map[string]any, schema map[string]any) error {
	if len(schema) == 0 {
		return nil
	}

	var errs []*ValidationError

	for _, field := range requiredFields(schema["required"]) {
		if _, ok := config[field]; !ok {
			errs = append(errs, &ValidationError{Field: field, Message: "required field is missing"})
		}
	}

	properties, _ := schema["properties"].(map[string]any)

	for field, value := range config {
		prop, ok := properties[field].(map[string]any)
		if !ok {
			continue
		}

		if expected, _ := prop["type"].(string); expected != "" && !isValidType(value, expected) {
			errs = append(errs, &ValidationError{
				Field:   field,
				Value:   value,
				Message: fmt.Sprintf("expected type %s, got %T", expected, value),
			})

			continue
		}

		if enum, ok := prop["enum"].([]any); ok && !contains(enum, value) {
			errs = append(errs, &ValidationError{
				Field:   field,
				Value:   value,
				Message: fmt.Sprintf("value must be one of %v", enum),
			})
		}
	}

	if len(errs) == 0 {
		return nil
	}

	sort.Slice(errs, func(i, j int) bool { return errs[i].Field < errs[j].Field })

	joined := make([]error, len(errs))
	for i, e := range errs {
		joined[i] = e
	}

	return errors.Join(joined...)
}

func requiredFields(v any) []string {
	switch req := v.(type) {
	case []string:
		return req
	case []any:
		out := make([]string, 0, len(req))
		for _, r := range req {
			if s, ok := r.(string); ok {
				out = append(out, s)
			}
		}

		return out
	default:
		return nil
	}
}

func contains(values []any, v any) bool {
	for _, candidate := range values {
		if candidate == v {
			return true
		}
	}

	return false
}

// isValidType reports whether value matches the JSON schema type. nil is
// valid for any type.
func isValidType(value any, expectedType string) bool {
	if value == nil {
		return true
	}

	switch expectedType {
	case "string":
		_, ok := value.(string)
		return ok
	case "integer":
		switch v := value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			return true
		case float64: // decoded JSON numbers
			return v == float64(int64(v))
		}

		return false
	case "number":
		switch value.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64,
			float32, float64:
			return true
		}

		return false
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "array":
		switch value.(type) {
		case []any, []string:
			return true
		}

		return false
	case "object":
		switch value.(type) {
		case map[string]any, map[string]string:
			return true
		}

		return false
	default:
		return true
	}
}
