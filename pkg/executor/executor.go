package executor

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/recipekit/recipekit/internal/log"
	"github.com/recipekit/recipekit/pkg/errors"
	"github.com/recipekit/recipekit/pkg/recipe"
)

// Executor loads a recipe from any supported source shape and dispatches
// its steps in order against a shared context.
type Executor struct {
	logger *slog.Logger
}

// New creates an executor. A nil logger falls back to slog.Default().
func New(logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Executor{logger: logger}
}

// Execute resolves source to a recipe and runs its steps sequentially
// against rc. Step N+1 observes every write performed by step N. The
// first failure stops execution and is wrapped with the step's position.
func (e *Executor) Execute(ctx context.Context, source interface{}, rc *recipe.Context) error {
	r, sourceID, err := recipe.Load(source)
	if err != nil {
		return err
	}

	// Surface masked environment variables into config before any step
	// runs. Unset names are ignored.
	for _, name := range r.EnvMask {
		if value, ok := os.LookupEnv(name); ok {
			rc.SetConfig(name, value)
		}
	}

	// Refuse the whole recipe if any declared step type is unregistered;
	// failing at step 3 of 5 after steps 1-2 mutated the context is
	// strictly worse than failing up front.
	for _, step := range r.Steps {
		if _, ok := Lookup(step.Type); !ok {
			return &errors.UnknownStepError{StepType: step.Type}
		}
	}

	logger := log.WithRecipe(e.logger, sourceID)
	logger.Debug("executing recipe", "steps", len(r.Steps))

	for i, def := range r.Steps {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err := e.executeStep(ctx, logger, def, i, rc); err != nil {
			return &errors.StepError{
				RecipeSource: sourceID,
				StepIndex:    i,
				StepType:     def.Type,
				Cause:        err,
			}
		}
	}

	logger.Debug("recipe complete")
	return nil
}

// executeStep constructs and runs one step, recording metrics and timing.
func (e *Executor) executeStep(ctx context.Context, logger *slog.Logger, def recipe.StepDef, index int, rc *recipe.Context) error {
	factory, _ := Lookup(def.Type)

	stepLogger := log.WithStep(logger, def.Type, index)
	step, err := factory(stepLogger, def.Config)
	if err != nil {
		return err
	}

	start := time.Now()
	stepLogger.Debug("step starting")

	err = step.Execute(ctx, rc)
	observeStep(def.Type, time.Since(start), err)

	if err != nil {
		stepLogger.Error("step failed", "error", err, log.DurationKey, time.Since(start).Milliseconds())
		return err
	}
	stepLogger.Debug("step complete", log.DurationKey, time.Since(start).Milliseconds())
	return nil
}
