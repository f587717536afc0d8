package executor

import (
	"context"
	"fmt"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recipekit/recipekit/pkg/errors"
	"github.com/recipekit/recipekit/pkg/recipe"
)

// recordStep appends its configured value to the "trace" artifact.
type recordStep struct {
	value string
}

func (s *recordStep) Execute(ctx context.Context, rc *recipe.Context) error {
	trace, _ := rc.GetDefault("trace", []interface{}{}).([]interface{})
	rc.Set("trace", append(trace, s.value))
	return nil
}

// failStep fails with a fixed error.
type failStep struct{}

func (s *failStep) Execute(ctx context.Context, rc *recipe.Context) error {
	return fmt.Errorf("boom")
}

func init() {
	Register("test_record", func(logger *slog.Logger, config map[string]interface{}) (Step, error) {
		value, _ := config["value"].(string)
		return &recordStep{value: value}, nil
	})
	Register("test_fail", func(logger *slog.Logger, config map[string]interface{}) (Step, error) {
		return &failStep{}, nil
	})
	Register("test_bad_config", func(logger *slog.Logger, config map[string]interface{}) (Step, error) {
		return nil, &errors.ConfigError{StepType: "test_bad_config", Message: "always invalid"}
	})
}

func testRecipe(types ...recipe.StepDef) *recipe.Recipe {
	return &recipe.Recipe{Steps: types}
}

func TestExecuteRunsStepsInOrder(t *testing.T) {
	rc := recipe.NewContext(nil)
	r := testRecipe(
		recipe.StepDef{Type: "test_record", Config: map[string]interface{}{"value": "a"}},
		recipe.StepDef{Type: "test_record", Config: map[string]interface{}{"value": "b"}},
		recipe.StepDef{Type: "test_record", Config: map[string]interface{}{"value": "c"}},
	)

	require.NoError(t, New(nil).Execute(context.Background(), r, rc))

	trace, err := rc.Get("trace")
	require.NoError(t, err)
	assert.Equal(t, []interface{}{"a", "b", "c"}, trace)
}

func TestExecuteUnknownStepFailsUpfront(t *testing.T) {
	rc := recipe.NewContext(nil)
	r := testRecipe(
		recipe.StepDef{Type: "test_record", Config: map[string]interface{}{"value": "a"}},
		recipe.StepDef{Type: "no_such_step"},
	)

	err := New(nil).Execute(context.Background(), r, rc)
	var unknown *errors.UnknownStepError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "no_such_step", unknown.StepType)

	// The check runs before any step: nothing mutated the context.
	assert.False(t, rc.Contains("trace"))
}

func TestExecuteWrapsFailureWithPosition(t *testing.T) {
	rc := recipe.NewContext(nil)
	r := testRecipe(
		recipe.StepDef{Type: "test_record", Config: map[string]interface{}{"value": "a"}},
		recipe.StepDef{Type: "test_fail"},
		recipe.StepDef{Type: "test_record", Config: map[string]interface{}{"value": "never"}},
	)

	err := New(nil).Execute(context.Background(), r, rc)
	var stepErr *errors.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, 1, stepErr.StepIndex)
	assert.Equal(t, "test_fail", stepErr.StepType)

	trace, getErr := rc.Get("trace")
	require.NoError(t, getErr)
	assert.Equal(t, []interface{}{"a"}, trace, "execution stops at the failing step")
}

func TestExecuteConfigErrorPropagates(t *testing.T) {
	rc := recipe.NewContext(nil)
	r := testRecipe(recipe.StepDef{Type: "test_bad_config"})

	err := New(nil).Execute(context.Background(), r, rc)
	var cfgErr *errors.ConfigError
	require.ErrorAs(t, err, &cfgErr)
}

func TestExecuteEnvMask(t *testing.T) {
	t.Setenv("RECIPEKIT_TEST_TOKEN", "tok-123")

	rc := recipe.NewContext(nil)
	r := &recipe.Recipe{
		Steps:   []recipe.StepDef{{Type: "test_record", Config: map[string]interface{}{"value": "a"}}},
		EnvMask: []string{"RECIPEKIT_TEST_TOKEN", "RECIPEKIT_TEST_UNSET"},
	}

	require.NoError(t, New(nil).Execute(context.Background(), r, rc))
	assert.Equal(t, "tok-123", rc.Config()["RECIPEKIT_TEST_TOKEN"])
	_, ok := rc.Config()["RECIPEKIT_TEST_UNSET"]
	assert.False(t, ok, "unset names are ignored")
}

func TestExecuteHonorsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rc := recipe.NewContext(nil)
	r := testRecipe(recipe.StepDef{Type: "test_record", Config: map[string]interface{}{"value": "a"}})

	err := New(nil).Execute(ctx, r, rc)
	require.ErrorIs(t, err, context.Canceled)
}

func TestRegisteredTypes(t *testing.T) {
	types := RegisteredTypes()
	assert.Contains(t, types, "test_record")
	assert.Contains(t, types, "test_fail")
}
