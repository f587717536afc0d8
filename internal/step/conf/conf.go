// Package conf reads typed values out of raw step configs. Every reader
// fails with a config error naming the step type and field, so factories
// stay declarative.
package conf

import (
	"fmt"
	"time"

	"github.com/recipekit/recipekit/pkg/errors"
	"github.com/recipekit/recipekit/pkg/recipe"
)

// String reads a required string field.
func String(config map[string]interface{}, stepType, field string) (string, error) {
	raw, ok := config[field]
	if !ok {
		return "", &errors.ConfigError{StepType: stepType, Field: field, Message: "required"}
	}
	s, ok := raw.(string)
	if !ok {
		return "", &errors.ConfigError{StepType: stepType, Field: field, Message: fmt.Sprintf("expected string, got %T", raw)}
	}
	return s, nil
}

// StringOr reads an optional string field, returning def when absent.
func StringOr(config map[string]interface{}, stepType, field, def string) (string, error) {
	raw, ok := config[field]
	if !ok {
		return def, nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", &errors.ConfigError{StepType: stepType, Field: field, Message: fmt.Sprintf("expected string, got %T", raw)}
	}
	return s, nil
}

// BoolOr reads an optional bool field, returning def when absent.
// String spellings of booleans are accepted; recipe authors write them.
func BoolOr(config map[string]interface{}, stepType, field string, def bool) (bool, error) {
	raw, ok := config[field]
	if !ok {
		return def, nil
	}
	switch v := raw.(type) {
	case bool:
		return v, nil
	case string:
		switch v {
		case "true", "True":
			return true, nil
		case "false", "False":
			return false, nil
		}
	}
	return false, &errors.ConfigError{StepType: stepType, Field: field, Message: fmt.Sprintf("expected bool, got %v", raw)}
}

// IntOr reads an optional integer field, returning def when absent.
// JSON decodes numbers as float64; integral floats are accepted.
func IntOr(config map[string]interface{}, stepType, field string, def int) (int, error) {
	raw, ok := config[field]
	if !ok {
		return def, nil
	}
	switch v := raw.(type) {
	case int:
		return v, nil
	case int64:
		return int(v), nil
	case float64:
		if v == float64(int64(v)) {
			return int(v), nil
		}
	}
	return 0, &errors.ConfigError{StepType: stepType, Field: field, Message: fmt.Sprintf("expected integer, got %v", raw)}
}

// SecondsOr reads an optional duration field given in seconds. Fractional
// seconds are supported.
func SecondsOr(config map[string]interface{}, stepType, field string, def time.Duration) (time.Duration, error) {
	raw, ok := config[field]
	if !ok {
		return def, nil
	}
	switch v := raw.(type) {
	case int:
		return time.Duration(v) * time.Second, nil
	case int64:
		return time.Duration(v) * time.Second, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	}
	return 0, &errors.ConfigError{StepType: stepType, Field: field, Message: fmt.Sprintf("expected seconds, got %T", raw)}
}

// Map reads an optional mapping field.
func Map(config map[string]interface{}, stepType, field string) (map[string]interface{}, error) {
	raw, ok := config[field]
	if !ok {
		return nil, nil
	}
	m, ok := raw.(map[string]interface{})
	if !ok {
		return nil, &errors.ConfigError{StepType: stepType, Field: field, Message: fmt.Sprintf("expected mapping, got %T", raw)}
	}
	return m, nil
}

// Steps reads a field holding a list of step definitions.
func Steps(config map[string]interface{}, stepType, field string) ([]recipe.StepDef, error) {
	raw, ok := config[field]
	if !ok {
		return nil, &errors.ConfigError{StepType: stepType, Field: field, Message: "required"}
	}
	return StepList(raw, stepType, field)
}

// StepList converts a decoded value into step definitions. The value must
// be a list of mappings each carrying a "type" and optional "config".
func StepList(raw interface{}, stepType, field string) ([]recipe.StepDef, error) {
	list, ok := raw.([]interface{})
	if !ok {
		return nil, &errors.ConfigError{StepType: stepType, Field: field, Message: fmt.Sprintf("expected step list, got %T", raw)}
	}

	defs := make([]recipe.StepDef, 0, len(list))
	for i, elem := range list {
		m, ok := elem.(map[string]interface{})
		if !ok {
			return nil, &errors.ConfigError{StepType: stepType, Field: fmt.Sprintf("%s[%d]", field, i), Message: "expected a step mapping"}
		}
		typ, ok := m["type"].(string)
		if !ok || typ == "" {
			return nil, &errors.ConfigError{StepType: stepType, Field: fmt.Sprintf("%s[%d].type", field, i), Message: "required"}
		}
		def := recipe.StepDef{Type: typ}
		if cfg, ok := m["config"].(map[string]interface{}); ok {
			def.Config = cfg
		}
		defs = append(defs, def)
	}
	return defs, nil
}
