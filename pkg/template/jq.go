package template

import (
	"fmt"

	"github.com/itchyny/gojq"
)

// applyJQ is the `jq` Liquid filter: it runs a jq expression against the
// input value. A single result is returned directly; multiple results
// come back as a list.
func applyJQ(value interface{}, expression string) (interface{}, error) {
	if expression == "" {
		return value, nil
	}

	query, err := gojq.Parse(expression)
	if err != nil {
		return nil, fmt.Errorf("jq parse error: %w", err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("jq compile error: %w", err)
	}

	var results []interface{}
	iter := code.Run(normalizeForJQ(value))
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := v.(error); isErr {
			return nil, err
		}
		results = append(results, v)
	}

	switch len(results) {
	case 0:
		return nil, nil
	case 1:
		return results[0], nil
	default:
		return results, nil
	}
}

// normalizeForJQ converts values gojq cannot consume directly (typed
// slices, integers) into plain JSON shapes.
func normalizeForJQ(value interface{}) interface{} {
	switch v := value.(type) {
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case []string:
		out := make([]interface{}, len(v))
		for i, s := range v {
			out[i] = s
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, elem := range v {
			out[i] = normalizeForJQ(elem)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, elem := range v {
			out[k] = normalizeForJQ(elem)
		}
		return out
	default:
		return value
	}
}
