package flow

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recipekit/recipekit/pkg/errors"
	"github.com/recipekit/recipekit/pkg/recipe"
)

func runParallel(t *testing.T, rc *recipe.Context, config map[string]interface{}) error {
	t.Helper()
	step, err := NewParallelStep(slog.Default(), config)
	require.NoError(t, err)
	return step.Execute(context.Background(), rc)
}

func TestParallelIsolatesSubsteps(t *testing.T) {
	rc := recipe.NewContext(nil)
	rc.Set("shared", "before")

	require.NoError(t, runParallel(t, rc, map[string]interface{}{
		"substeps": []interface{}{
			setContextSubstep("shared", "from-a"),
			setContextSubstep("shared", "from-b"),
			setContextSubstep("other", "new"),
		},
	}))

	// Every substep ran on its own clone; the parent saw none of it.
	assert.Equal(t, "before", rc.GetDefault("shared", nil))
	assert.False(t, rc.Contains("other"))
}

func TestParallelFailFastPropagates(t *testing.T) {
	rc := recipe.NewContext(nil)
	rc.Set("item", "x")

	err := runParallel(t, rc, map[string]interface{}{
		"substeps": []interface{}{
			setContextSubstep("a", "1"),
			map[string]interface{}{"type": "test_failif", "config": map[string]interface{}{"key": "item", "equals": "x"}},
		},
	})

	var stepErr *errors.StepError
	require.ErrorAs(t, err, &stepErr)
	assert.Equal(t, "test_failif", stepErr.StepType)
}

func TestParallelCollectingModeSucceeds(t *testing.T) {
	rc := recipe.NewContext(nil)
	rc.Set("item", "x")

	require.NoError(t, runParallel(t, rc, map[string]interface{}{
		"substeps": []interface{}{
			map[string]interface{}{"type": "test_failif", "config": map[string]interface{}{"key": "item", "equals": "x"}},
			setContextSubstep("a", "1"),
		},
		"fail_fast": false,
	}))
}

func TestParallelBoundedConcurrency(t *testing.T) {
	rc := recipe.NewContext(nil)

	require.NoError(t, runParallel(t, rc, map[string]interface{}{
		"substeps": []interface{}{
			map[string]interface{}{"type": "test_sleep", "config": map[string]interface{}{"ms": 5}},
			map[string]interface{}{"type": "test_sleep", "config": map[string]interface{}{"ms": 5}},
			map[string]interface{}{"type": "test_sleep", "config": map[string]interface{}{"ms": 5}},
		},
		"max_concurrency": 1,
	}))
}

func TestParallelDelayStaggersLaunches(t *testing.T) {
	rc := recipe.NewContext(nil)

	start := time.Now()
	require.NoError(t, runParallel(t, rc, map[string]interface{}{
		"substeps": []interface{}{
			setContextSubstep("a", "1"),
			setContextSubstep("b", "2"),
			setContextSubstep("c", "3"),
		},
		"delay": 0.04,
	}))

	// Two inter-launch delays of 40ms put a floor under the wall clock.
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
}

func TestParallelEmptySubstepsIsNoop(t *testing.T) {
	rc := recipe.NewContext(nil)
	require.NoError(t, runParallel(t, rc, map[string]interface{}{"substeps": []interface{}{}}))
}
