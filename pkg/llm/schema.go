package llm

import (
	"fmt"
)

// ValidateSchema checks a decoded JSON value against a structural subset
// of JSON Schema: type, properties, required, and items. The pack of
// providers this module targets emits schemas drawn from that subset, so
// a full draft validator is not carried.
func ValidateSchema(value interface{}, schema map[string]interface{}) error {
	if len(schema) == 0 {
		return nil
	}

	if typeName, ok := schema["type"].(string); ok {
		if err := checkType(value, typeName); err != nil {
			return err
		}
	}

	if object, ok := value.(map[string]interface{}); ok {
		if required, ok := schema["required"].([]interface{}); ok {
			for _, name := range required {
				field, _ := name.(string)
				if _, present := object[field]; !present {
					return fmt.Errorf("missing required field %q", field)
				}
			}
		}
		if properties, ok := schema["properties"].(map[string]interface{}); ok {
			for field, fieldSchema := range properties {
				fieldValue, present := object[field]
				if !present {
					continue
				}
				sub, ok := fieldSchema.(map[string]interface{})
				if !ok {
					continue
				}
				if err := ValidateSchema(fieldValue, sub); err != nil {
					return fmt.Errorf("field %q: %w", field, err)
				}
			}
		}
	}

	if list, ok := value.([]interface{}); ok {
		if items, ok := schema["items"].(map[string]interface{}); ok {
			for i, elem := range list {
				if err := ValidateSchema(elem, items); err != nil {
					return fmt.Errorf("item %d: %w", i, err)
				}
			}
		}
	}

	return nil
}

// checkType matches a decoded JSON value against a JSON Schema type name.
func checkType(value interface{}, typeName string) error {
	ok := false
	switch typeName {
	case "object":
		_, ok = value.(map[string]interface{})
	case "array":
		_, ok = value.([]interface{})
	case "string":
		_, ok = value.(string)
	case "number":
		switch value.(type) {
		case float64, int, int64:
			ok = true
		}
	case "integer":
		switch v := value.(type) {
		case int, int64:
			ok = true
		case float64:
			ok = v == float64(int64(v))
		}
	case "boolean":
		_, ok = value.(bool)
	case "null":
		ok = value == nil
	default:
		// Unknown type names pass; the provider already shaped the value.
		ok = true
	}
	if !ok {
		return fmt.Errorf("expected %s, got %T", typeName, value)
	}
	return nil
}
