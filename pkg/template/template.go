// Package template renders Liquid templates against a recipe context.
// Rendering is pervasive: nearly every step renders its string config
// values before acting on them.
package template

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/osteele/liquid"

	"github.com/recipekit/recipekit/pkg/errors"
	"github.com/recipekit/recipekit/pkg/recipe"
)

// MaxNestedPasses caps fixed-point re-rendering to guard against
// pathological template cycles.
const MaxNestedPasses = 10

// Renderer renders Liquid templates. It is safe for concurrent use and
// should be shared; the engine caches nothing mutable per render.
type Renderer struct {
	engine *liquid.Engine
}

// New creates a renderer with the standard Liquid filter set plus the
// snakecase, json, and jq extras.
func New() *Renderer {
	engine := liquid.NewEngine()
	engine.RegisterFilter("snakecase", snakeCase)
	engine.RegisterFilter("json", toJSON)
	engine.RegisterFilter("jq", applyJQ)
	return &Renderer{engine: engine}
}

// Render renders text against the context artifacts. Empty input renders
// to empty output without touching the engine.
func (r *Renderer) Render(text string, ctx *recipe.Context) (string, error) {
	if text == "" {
		return "", nil
	}
	if !HasTags(text) {
		return text, nil
	}

	out, err := r.engine.ParseAndRenderString(text, ctx.AsMap())
	if err != nil {
		return "", &errors.RenderError{
			Template:    text,
			ContextKeys: ctx.Keys(),
			Cause:       err,
		}
	}
	return out, nil
}

// RenderUntilStable re-renders text until the output contains no Liquid
// tags or reaches a fixed point, up to MaxNestedPasses passes. Used by
// set_context's nested rendering, where a rendered value may itself be a
// template.
func (r *Renderer) RenderUntilStable(text string, ctx *recipe.Context) (string, error) {
	current := text
	for pass := 0; pass < MaxNestedPasses; pass++ {
		if !HasTags(current) {
			return current, nil
		}
		next, err := r.Render(current, ctx)
		if err != nil {
			return "", err
		}
		if next == current {
			return current, nil
		}
		current = next
	}
	if HasTags(current) {
		return "", &errors.RenderError{
			Template:    text,
			ContextKeys: ctx.Keys(),
			Cause:       errMaxPasses,
		}
	}
	return current, nil
}

// RenderValue walks a config value, rendering every string it contains.
// Maps and lists are copied; other values pass through unchanged.
func (r *Renderer) RenderValue(value interface{}, ctx *recipe.Context) (interface{}, error) {
	switch v := value.(type) {
	case string:
		return r.Render(v, ctx)
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for k, elem := range v {
			rendered, err := r.RenderValue(elem, ctx)
			if err != nil {
				return nil, err
			}
			out[k] = rendered
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, elem := range v {
			rendered, err := r.RenderValue(elem, ctx)
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

// HasTags reports whether s contains Liquid tag or output markers.
func HasTags(s string) bool {
	return strings.Contains(s, "{{") || strings.Contains(s, "{%")
}

type maxPassesError struct{}

func (maxPassesError) Error() string { return "nested rendering exceeded maximum passes" }

var errMaxPasses = maxPassesError{}

var (
	snakeSeparators = regexp.MustCompile(`[\s\-]+`)
	snakeBoundary   = regexp.MustCompile(`([a-z0-9])([A-Z])`)
	snakeInvalid    = regexp.MustCompile(`[^a-zA-Z0-9_]`)
	snakeCollapse   = regexp.MustCompile(`_+`)
)

// snakeCase converts a string to snake_case: separators become
// underscores, camelCase boundaries gain an underscore, everything is
// lowercased, and invalid characters are dropped.
func snakeCase(s string) string {
	s = snakeSeparators.ReplaceAllString(s, "_")
	s = snakeBoundary.ReplaceAllString(s, "${1}_${2}")
	s = strings.ToLower(s)
	s = snakeInvalid.ReplaceAllString(s, "")
	s = snakeCollapse.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}

// toJSON serializes a value to its JSON representation.
func toJSON(value interface{}) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
