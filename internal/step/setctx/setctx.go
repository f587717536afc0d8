// Package setctx implements the set_context step: rendered assignment
// into the recipe context with configurable collision behavior.
package setctx

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/recipekit/recipekit/internal/step/conf"
	"github.com/recipekit/recipekit/pkg/errors"
	"github.com/recipekit/recipekit/pkg/executor"
	"github.com/recipekit/recipekit/pkg/recipe"
	"github.com/recipekit/recipekit/pkg/template"
)

var renderer = template.New()

// Step stores a rendered value into the context. When the key already
// exists, if_exists selects overwrite (default) or merge.
type Step struct {
	logger       *slog.Logger
	key          string
	value        interface{}
	nestedRender bool
	ifExists     string
}

// New validates the set_context config.
func New(logger *slog.Logger, config map[string]interface{}) (*Step, error) {
	key, err := conf.String(config, "set_context", "key")
	if err != nil {
		return nil, err
	}
	value, ok := config["value"]
	if !ok {
		return nil, &errors.ConfigError{StepType: "set_context", Field: "value", Message: "required"}
	}
	nestedRender, err := conf.BoolOr(config, "set_context", "nested_render", false)
	if err != nil {
		return nil, err
	}
	ifExists, err := conf.StringOr(config, "set_context", "if_exists", "overwrite")
	if err != nil {
		return nil, err
	}
	if ifExists != "overwrite" && ifExists != "merge" {
		return nil, &errors.ConfigError{StepType: "set_context", Field: "if_exists", Message: fmt.Sprintf("expected overwrite or merge, got %q", ifExists)}
	}

	return &Step{
		logger:       logger,
		key:          key,
		value:        value,
		nestedRender: nestedRender,
		ifExists:     ifExists,
	}, nil
}

// Execute renders the value and stores it under key.
func (s *Step) Execute(ctx context.Context, rc *recipe.Context) error {
	rendered, err := s.render(s.value, rc)
	if err != nil {
		return err
	}

	if s.ifExists == "merge" {
		if existing, ok := rc.Get(s.key); ok == nil {
			rendered = merge(existing, rendered)
		}
	}

	rc.Set(s.key, rendered)
	return nil
}

// render walks the value, rendering every string. With nested_render each
// string is re-rendered to a fixed point, so values written by earlier
// steps may themselves be templates.
func (s *Step) render(value interface{}, rc *recipe.Context) (interface{}, error) {
	switch v := value.(type) {
	case string:
		if s.nestedRender {
			return renderer.RenderUntilStable(v, rc)
		}
		return renderer.Render(v, rc)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, elem := range v {
			rendered, err := s.render(elem, rc)
			if err != nil {
				return nil, err
			}
			out[key] = rendered
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, elem := range v {
			rendered, err := s.render(elem, rc)
			if err != nil {
				return nil, err
			}
			out[i] = rendered
		}
		return out, nil
	default:
		return value, nil
	}
}

// merge combines an existing value with a new one:
// string+string concatenates, list+list concatenates, list+scalar
// appends, map+map overlays shallowly with the new value winning.
// Any other pairing becomes the two-element list [old, new].
func merge(old, new interface{}) interface{} {
	switch o := old.(type) {
	case string:
		if n, ok := new.(string); ok {
			return o + n
		}

	case []interface{}:
		if n, ok := toList(new); ok {
			out := make([]interface{}, 0, len(o)+len(n))
			out = append(out, o...)
			return append(out, n...)
		}
		out := make([]interface{}, 0, len(o)+1)
		out = append(out, o...)
		return append(out, new)

	case []string:
		return merge(toInterfaceList(o), new)

	case map[string]interface{}:
		if n, ok := new.(map[string]interface{}); ok {
			out := make(map[string]interface{}, len(o)+len(n))
			for k, v := range o {
				out[k] = v
			}
			for k, v := range n {
				out[k] = v
			}
			return out
		}
	}

	return []interface{}{old, new}
}

// toList normalizes list shapes that reach the context.
func toList(value interface{}) ([]interface{}, bool) {
	switch v := value.(type) {
	case []interface{}:
		return v, true
	case []string:
		return toInterfaceList(v), true
	}
	return nil, false
}

func toInterfaceList(strs []string) []interface{} {
	out := make([]interface{}, len(strs))
	for i, s := range strs {
		out[i] = s
	}
	return out
}

// Register adds the set_context step to the executor registry.
func Register() {
	executor.Register("set_context", func(logger *slog.Logger, config map[string]interface{}) (executor.Step, error) {
		return New(logger, config)
	})
}
