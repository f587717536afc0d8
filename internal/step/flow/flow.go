// Package flow implements the control-flow steps: execute_recipe,
// conditional, loop, and parallel. Each re-enters the executor, either
// on the caller's context or on clones when concurrency is introduced.
package flow

import (
	"context"
	"log/slog"
	"time"

	"github.com/recipekit/recipekit/pkg/condition"
	"github.com/recipekit/recipekit/pkg/executor"
	"github.com/recipekit/recipekit/pkg/recipe"
	"github.com/recipekit/recipekit/pkg/template"
)

var (
	renderer   = template.New()
	conditions = condition.New()
)

// runBody executes an inline list of step definitions as a nested recipe
// body against rc.
func runBody(ctx context.Context, logger *slog.Logger, steps []recipe.StepDef, rc *recipe.Context) error {
	return executor.New(logger).Execute(ctx, &recipe.Recipe{Steps: steps}, rc)
}

// sleep waits for d or until the context is cancelled.
func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Register adds the control-flow steps to the executor registry.
func Register() {
	executor.Register("execute_recipe", func(logger *slog.Logger, config map[string]interface{}) (executor.Step, error) {
		return NewRecipeStep(logger, config)
	})
	executor.Register("conditional", func(logger *slog.Logger, config map[string]interface{}) (executor.Step, error) {
		return NewConditionalStep(logger, config)
	})
	executor.Register("loop", func(logger *slog.Logger, config map[string]interface{}) (executor.Step, error) {
		return NewLoopStep(logger, config)
	})
	executor.Register("parallel", func(logger *slog.Logger, config map[string]interface{}) (executor.Step, error) {
		return NewParallelStep(logger, config)
	})
}
