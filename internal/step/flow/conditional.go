package flow

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/recipekit/recipekit/internal/step/conf"
	"github.com/recipekit/recipekit/pkg/errors"
	"github.com/recipekit/recipekit/pkg/recipe"
)

// ConditionalStep renders its condition, evaluates it in the sandbox,
// and executes exactly one branch on the caller's context. The branch
// not taken is never instantiated.
type ConditionalStep struct {
	logger    *slog.Logger
	condition string
	ifTrue    []recipe.StepDef
	ifFalse   []recipe.StepDef
}

// NewConditionalStep validates the conditional config. Both branch
// bodies are shape-checked up front; step construction happens only for
// the selected branch at execution time.
func NewConditionalStep(logger *slog.Logger, config map[string]interface{}) (*ConditionalStep, error) {
	cond, err := conf.String(config, "conditional", "condition")
	if err != nil {
		return nil, err
	}

	ifTrue, err := branchSteps(config, "if_true")
	if err != nil {
		return nil, err
	}
	ifFalse, err := branchSteps(config, "if_false")
	if err != nil {
		return nil, err
	}

	return &ConditionalStep{logger: logger, condition: cond, ifTrue: ifTrue, ifFalse: ifFalse}, nil
}

// branchSteps extracts the steps list from an optional branch body.
func branchSteps(config map[string]interface{}, field string) ([]recipe.StepDef, error) {
	raw, ok := config[field]
	if !ok {
		return nil, nil
	}
	body, ok := raw.(map[string]interface{})
	if !ok {
		return nil, &errors.ConfigError{StepType: "conditional", Field: field, Message: fmt.Sprintf("expected a body mapping, got %T", raw)}
	}
	steps, ok := body["steps"]
	if !ok {
		return nil, &errors.ConfigError{StepType: "conditional", Field: field + ".steps", Message: "required"}
	}
	return conf.StepList(steps, "conditional", field+".steps")
}

// Execute evaluates the condition and runs the selected branch.
func (s *ConditionalStep) Execute(ctx context.Context, rc *recipe.Context) error {
	rendered, err := renderer.Render(s.condition, rc)
	if err != nil {
		return err
	}

	result, err := conditions.Evaluate(rendered)
	if err != nil {
		return err
	}

	branch := s.ifFalse
	if result {
		branch = s.ifTrue
	}
	s.logger.Debug("condition evaluated", "condition", rendered, "result", result, "branch_steps", len(branch))

	if len(branch) == 0 {
		return nil
	}
	return runBody(ctx, s.logger, branch, rc)
}
