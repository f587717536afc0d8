package flow

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/recipekit/recipekit/internal/step/conf"
	"github.com/recipekit/recipekit/pkg/errors"
	"github.com/recipekit/recipekit/pkg/recipe"
)

// ParallelStep fans out independent substeps, each with its own config
// and its own context clone. The parent context is never mutated;
// substeps that need to publish results end with an execute_recipe body
// or explicit follow-up steps arranged by the recipe author.
type ParallelStep struct {
	logger         *slog.Logger
	substeps       []recipe.StepDef
	maxConcurrency int
	delay          time.Duration
	failFast       bool
}

// NewParallelStep validates the parallel config.
func NewParallelStep(logger *slog.Logger, config map[string]interface{}) (*ParallelStep, error) {
	substeps, err := conf.Steps(config, "parallel", "substeps")
	if err != nil {
		return nil, err
	}
	maxConcurrency, err := conf.IntOr(config, "parallel", "max_concurrency", 0)
	if err != nil {
		return nil, err
	}
	if maxConcurrency < 0 {
		return nil, &errors.ConfigError{StepType: "parallel", Field: "max_concurrency", Message: "must be >= 0"}
	}
	delay, err := conf.SecondsOr(config, "parallel", "delay", 0)
	if err != nil {
		return nil, err
	}
	failFast, err := conf.BoolOr(config, "parallel", "fail_fast", true)
	if err != nil {
		return nil, err
	}

	return &ParallelStep{
		logger:         logger,
		substeps:       substeps,
		maxConcurrency: maxConcurrency,
		delay:          delay,
		failFast:       failFast,
	}, nil
}

// Execute runs every substep against a clone of rc under the configured
// concurrency bound. With fail_fast, the first failure cancels pending
// substeps and propagates; without it, failures are logged and the step
// succeeds once every substep has finished.
func (s *ParallelStep) Execute(ctx context.Context, rc *recipe.Context) error {
	if len(s.substeps) == 0 {
		return nil
	}

	s.logger.Debug("parallel starting",
		"substeps", len(s.substeps), "max_concurrency", s.maxConcurrency, "fail_fast", s.failFast)

	runSubstep := func(ctx context.Context, def recipe.StepDef) error {
		child := rc.Clone()
		return runBody(ctx, s.logger, []recipe.StepDef{def}, child)
	}

	if s.failFast {
		g, gctx := errgroup.WithContext(ctx)
		if s.maxConcurrency > 0 {
			g.SetLimit(s.maxConcurrency)
		}
		for i, def := range s.substeps {
			if i > 0 && s.delay > 0 {
				if err := sleep(gctx, s.delay); err != nil {
					break
				}
			}
			if gctx.Err() != nil {
				break
			}
			def := def
			g.Go(func() error { return runSubstep(gctx, def) })
		}
		return g.Wait()
	}

	var g errgroup.Group
	if s.maxConcurrency > 0 {
		g.SetLimit(s.maxConcurrency)
	}
	for i, def := range s.substeps {
		if i > 0 && s.delay > 0 {
			if err := sleep(ctx, s.delay); err != nil {
				break
			}
		}
		def := def
		g.Go(func() error {
			if err := runSubstep(ctx, def); err != nil {
				s.logger.Error("parallel substep failed", "step_type", def.Type, "error", err)
			}
			return nil
		})
	}
	g.Wait()
	return nil
}
