package flow

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"strings"

	"github.com/recipekit/recipekit/internal/step/conf"
	"github.com/recipekit/recipekit/pkg/errors"
	"github.com/recipekit/recipekit/pkg/executor"
	"github.com/recipekit/recipekit/pkg/recipe"
)

// RecipeStep invokes a sub-recipe on the caller's context. Overrides are
// rendered and applied before the sub-recipe runs; there is no clone, so
// the sub-recipe's writes are visible to subsequent steps.
type RecipeStep struct {
	logger     *slog.Logger
	recipePath string
	overrides  map[string]interface{}
}

// NewRecipeStep validates the execute_recipe config.
func NewRecipeStep(logger *slog.Logger, config map[string]interface{}) (*RecipeStep, error) {
	recipePath, err := conf.String(config, "execute_recipe", "recipe_path")
	if err != nil {
		return nil, err
	}
	overrides, err := conf.Map(config, "execute_recipe", "context_overrides")
	if err != nil {
		return nil, err
	}
	return &RecipeStep{logger: logger, recipePath: recipePath, overrides: overrides}, nil
}

// Execute renders the path and overrides, applies the overrides, and
// re-enters the executor on the sub-recipe.
func (s *RecipeStep) Execute(ctx context.Context, rc *recipe.Context) error {
	path, err := renderer.Render(s.recipePath, rc)
	if err != nil {
		return err
	}
	if _, statErr := os.Stat(path); statErr != nil {
		return &errors.MissingRecipeError{Path: path}
	}

	for key, value := range s.overrides {
		rendered, err := renderOverride(value, rc)
		if err != nil {
			return err
		}
		rc.Set(key, rendered)
	}

	s.logger.Debug("invoking sub-recipe", "path", path)
	return executor.New(s.logger).Execute(ctx, path, rc)
}

// renderOverride renders an override value. Strings that render to JSON
// objects or arrays are substituted as the parsed structure; lists and
// maps are walked recursively.
func renderOverride(value interface{}, rc *recipe.Context) (interface{}, error) {
	switch v := value.(type) {
	case string:
		rendered, err := renderer.Render(v, rc)
		if err != nil {
			return nil, err
		}
		trimmed := strings.TrimSpace(rendered)
		if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
			var parsed interface{}
			if err := json.Unmarshal([]byte(trimmed), &parsed); err == nil {
				return parsed, nil
			}
		}
		return rendered, nil
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, elem := range v {
			rendered, err := renderOverride(elem, rc)
			if err != nil {
				return nil, err
			}
			out[key] = rendered
		}
		return out, nil
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, elem := range v {
			rendered, err := renderOverride(elem, rc)
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
