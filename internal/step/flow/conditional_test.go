package flow

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recipekit/recipekit/pkg/errors"
	"github.com/recipekit/recipekit/pkg/recipe"
)

func runConditional(t *testing.T, rc *recipe.Context, config map[string]interface{}) error {
	t.Helper()
	step, err := NewConditionalStep(slog.Default(), config)
	require.NoError(t, err)
	return step.Execute(context.Background(), rc)
}

func branch(steps ...map[string]interface{}) map[string]interface{} {
	list := make([]interface{}, len(steps))
	for i, step := range steps {
		list[i] = step
	}
	return map[string]interface{}{"steps": list}
}

func TestConditionalRenderedComparison(t *testing.T) {
	rc := recipe.NewContext(nil)
	rc.Set("x", "7")

	require.NoError(t, runConditional(t, rc, map[string]interface{}{
		"condition": "{{ x }} == 7",
		"if_true":   branch(setContextSubstep("y", "yes")),
		"if_false":  branch(setContextSubstep("y", "no")),
	}))

	assert.Equal(t, "yes", rc.GetDefault("y", nil))
}

func TestConditionalFalseBranch(t *testing.T) {
	rc := recipe.NewContext(nil)
	rc.Set("x", "3")

	require.NoError(t, runConditional(t, rc, map[string]interface{}{
		"condition": "{{ x }} == 7",
		"if_true":   branch(setContextSubstep("y", "yes")),
		"if_false":  branch(setContextSubstep("y", "no")),
	}))

	assert.Equal(t, "no", rc.GetDefault("y", nil))
}

func TestConditionalUntakenBranchNeverConstructed(t *testing.T) {
	rc := recipe.NewContext(nil)
	before := poisonConstructions.Load()

	require.NoError(t, runConditional(t, rc, map[string]interface{}{
		"condition": "true",
		"if_true":   branch(setContextSubstep("y", "yes")),
		"if_false": branch(map[string]interface{}{
			"type":   "test_poison",
			"config": map[string]interface{}{},
		}),
	}))

	assert.Equal(t, "yes", rc.GetDefault("y", nil))
	assert.Equal(t, before, poisonConstructions.Load(), "untaken branch must not instantiate steps")
}

func TestConditionalMissingBranchIsNoop(t *testing.T) {
	rc := recipe.NewContext(nil)

	require.NoError(t, runConditional(t, rc, map[string]interface{}{
		"condition": "false",
		"if_true":   branch(setContextSubstep("y", "yes")),
	}))

	assert.False(t, rc.Contains("y"))
}

func TestConditionalEmptyConditionIsTrue(t *testing.T) {
	rc := recipe.NewContext(nil)

	require.NoError(t, runConditional(t, rc, map[string]interface{}{
		"condition": "",
		"if_true":   branch(setContextSubstep("y", "yes")),
	}))

	assert.Equal(t, "yes", rc.GetDefault("y", nil))
}

func TestConditionalEvaluationError(t *testing.T) {
	rc := recipe.NewContext(nil)

	err := runConditional(t, rc, map[string]interface{}{
		"condition": "unrendered_reference == 7",
		"if_true":   branch(setContextSubstep("y", "yes")),
	})

	var condErr *errors.ConditionError
	require.ErrorAs(t, err, &condErr)
}

func TestConditionalSharesCallerContext(t *testing.T) {
	rc := recipe.NewContext(nil)
	rc.Set("x", "7")

	require.NoError(t, runConditional(t, rc, map[string]interface{}{
		"condition": "{{ x }} == 7",
		"if_true":   branch(setContextSubstep("written", "visible")),
	}))

	// No clone: branch writes land in the caller's context.
	assert.Equal(t, "visible", rc.GetDefault("written", nil))
}
