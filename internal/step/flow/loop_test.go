package flow

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/recipekit/recipekit/internal/step/setctx"
	"github.com/recipekit/recipekit/pkg/errors"
	"github.com/recipekit/recipekit/pkg/executor"
	"github.com/recipekit/recipekit/pkg/recipe"
)

// poisonConstructions counts factory invocations for test_poison; branch
// and substep bodies that must never run must leave it untouched.
var poisonConstructions atomic.Int64

// failIfStep fails when the artifact under "key" equals "equals".
type failIfStep struct {
	key    string
	equals string
}

func (s *failIfStep) Execute(ctx context.Context, rc *recipe.Context) error {
	value := rc.GetDefault(s.key, nil)
	if fmt.Sprintf("%v", value) == s.equals {
		return fmt.Errorf("poisoned value %q", s.equals)
	}
	return nil
}

// sleepStep sleeps for a number of milliseconds, honoring cancellation.
// With key set, the duration is read from that context artifact.
type sleepStep struct {
	ms  int
	key string
}

func (s *sleepStep) Execute(ctx context.Context, rc *recipe.Context) error {
	ms := s.ms
	if s.key != "" {
		if v, ok := rc.GetDefault(s.key, 0).(int); ok {
			ms = v
		}
	}
	timer := time.NewTimer(time.Duration(ms) * time.Millisecond)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func init() {
	setctx.Register()
	Register()

	executor.Register("test_failif", func(logger *slog.Logger, config map[string]interface{}) (executor.Step, error) {
		key, _ := config["key"].(string)
		equals, _ := config["equals"].(string)
		return &failIfStep{key: key, equals: equals}, nil
	})
	executor.Register("test_sleep", func(logger *slog.Logger, config map[string]interface{}) (executor.Step, error) {
		ms, _ := config["ms"].(int)
		key, _ := config["key"].(string)
		return &sleepStep{ms: ms, key: key}, nil
	})
	executor.Register("test_poison", func(logger *slog.Logger, config map[string]interface{}) (executor.Step, error) {
		poisonConstructions.Add(1)
		return &sleepStep{}, nil
	})
}

func runLoop(t *testing.T, rc *recipe.Context, config map[string]interface{}) error {
	t.Helper()
	step, err := NewLoopStep(slog.Default(), config)
	require.NoError(t, err)
	return step.Execute(context.Background(), rc)
}

func setContextSubstep(key, value string) map[string]interface{} {
	return map[string]interface{}{
		"type":   "set_context",
		"config": map[string]interface{}{"key": key, "value": value},
	}
}

func TestLoopSequentialGreetings(t *testing.T) {
	rc := recipe.NewContext(nil)

	require.NoError(t, runLoop(t, rc, map[string]interface{}{
		"items":      []interface{}{"Alice", "Bob"},
		"item_key":   "n",
		"substeps":   []interface{}{setContextSubstep("n", "Hello, {{ n }}!")},
		"result_key": "greetings",
	}))

	assert.Equal(t, []interface{}{"Hello, Alice!", "Hello, Bob!"}, rc.GetDefault("greetings", nil))
	// Iteration writes stay in the clones; only the aggregate lands.
	assert.False(t, rc.Contains("n"))
	assert.False(t, rc.Contains("__index"))
}

func TestLoopResultOrderIndependentOfCompletion(t *testing.T) {
	rc := recipe.NewContext(nil)
	rc.Set("delays", []interface{}{30, 1, 15, 1})

	// Earlier elements sleep longer, so completion order inverts input
	// order unless results are slotted by position.
	require.NoError(t, runLoop(t, rc, map[string]interface{}{
		"items":    "delays",
		"item_key": "d",
		"substeps": []interface{}{
			map[string]interface{}{"type": "test_sleep", "config": map[string]interface{}{"key": "d"}},
			setContextSubstep("d", "slot-{{ __index }}"),
		},
		"result_key":      "out",
		"max_concurrency": 0,
	}))

	assert.Equal(t, []interface{}{"slot-0", "slot-1", "slot-2", "slot-3"}, rc.GetDefault("out", nil))
}

func TestLoopBoundedConcurrencyFailFast(t *testing.T) {
	rc := recipe.NewContext(nil)

	err := runLoop(t, rc, map[string]interface{}{
		"items":    []interface{}{"a", "b", "c", "d", "e"},
		"item_key": "item",
		"substeps": []interface{}{
			map[string]interface{}{"type": "test_failif", "config": map[string]interface{}{"key": "item", "equals": "c"}},
		},
		"result_key":      "out",
		"max_concurrency": 2,
	})

	var loopErr *errors.LoopError
	require.ErrorAs(t, err, &loopErr)
	assert.Equal(t, 2, loopErr.Index)
	assert.False(t, rc.Contains("out"), "result_key is not written on failure")
}

func TestLoopDelaySpacesSequentialLaunches(t *testing.T) {
	rc := recipe.NewContext(nil)

	start := time.Now()
	require.NoError(t, runLoop(t, rc, map[string]interface{}{
		"items":           []interface{}{"a", "b", "c", "d"},
		"item_key":        "item",
		"substeps":        []interface{}{setContextSubstep("item", "<{{ item }}>")},
		"result_key":      "out",
		"max_concurrency": 1,
		"delay":           0.05,
	}))

	// Three inter-launch delays of 50ms put a floor under the wall clock.
	assert.GreaterOrEqual(t, time.Since(start), 150*time.Millisecond)
	assert.Equal(t, []interface{}{"<a>", "<b>", "<c>", "<d>"}, rc.GetDefault("out", nil))
}

func TestLoopDelayStaggersConcurrentLaunches(t *testing.T) {
	rc := recipe.NewContext(nil)

	start := time.Now()
	require.NoError(t, runLoop(t, rc, map[string]interface{}{
		"items":           []interface{}{"a", "b", "c"},
		"item_key":        "item",
		"substeps":        []interface{}{setContextSubstep("item", "<{{ item }}>")},
		"result_key":      "out",
		"max_concurrency": 0,
		"delay":           0.04,
	}))

	// Launches stay staggered even when iterations may overlap.
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
	assert.Equal(t, []interface{}{"<a>", "<b>", "<c>"}, rc.GetDefault("out", nil))
}

func TestLoopCollectingCancelledMidLaunch(t *testing.T) {
	rc := recipe.NewContext(nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	step, err := NewLoopStep(slog.Default(), map[string]interface{}{
		"items":           []interface{}{"a", "b", "c"},
		"item_key":        "item",
		"substeps":        []interface{}{setContextSubstep("item", "<{{ item }}>")},
		"result_key":      "out",
		"max_concurrency": 1,
		"delay":           0.3,
		"fail_fast":       false,
	})
	require.NoError(t, err)
	require.NoError(t, step.Execute(ctx, rc))

	// Only the first iteration launched before the deadline; the rest are
	// omitted from the aggregate rather than reported as nil successes.
	assert.Equal(t, []interface{}{"<a>"}, rc.GetDefault("out", nil))
	assert.Empty(t, rc.GetDefault("out__errors", nil))
}

func TestLoopFailFastCancelledMidLaunch(t *testing.T) {
	rc := recipe.NewContext(nil)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	step, err := NewLoopStep(slog.Default(), map[string]interface{}{
		"items":      []interface{}{"a", "b", "c"},
		"item_key":   "item",
		"substeps":   []interface{}{setContextSubstep("item", "<{{ item }}>")},
		"result_key": "out",
		"delay":      0.3,
	})
	require.NoError(t, err)

	err = step.Execute(ctx, rc)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, rc.Contains("out"), "no partial result on cancellation")
}

func TestLoopMapCollectingErrors(t *testing.T) {
	rc := recipe.NewContext(nil)

	require.NoError(t, runLoop(t, rc, map[string]interface{}{
		"items": map[string]interface{}{
			"one":   "ok",
			"two":   "bad",
			"three": "ok",
		},
		"item_key": "item",
		"substeps": []interface{}{
			map[string]interface{}{"type": "test_failif", "config": map[string]interface{}{"key": "item", "equals": "bad"}},
		},
		"result_key": "out",
		"fail_fast":  false,
	}))

	out := rc.GetDefault("out", nil).(map[string]interface{})
	errs := rc.GetDefault("out__errors", nil).(map[string]interface{})

	assert.Len(t, out, 2)
	assert.Len(t, errs, 1)
	assert.Contains(t, out, "one")
	assert.Contains(t, out, "three")
	assert.Contains(t, errs, "two")
}

func TestLoopMapInjectsKey(t *testing.T) {
	rc := recipe.NewContext(nil)

	require.NoError(t, runLoop(t, rc, map[string]interface{}{
		"items":      map[string]interface{}{"a": 1, "b": 2},
		"item_key":   "v",
		"substeps":   []interface{}{setContextSubstep("v", "{{ __key }}={{ v }}")},
		"result_key": "out",
	}))

	out := rc.GetDefault("out", nil).(map[string]interface{})
	assert.Equal(t, "a=1", out["a"])
	assert.Equal(t, "b=2", out["b"])
}

func TestLoopEmptyInput(t *testing.T) {
	rc := recipe.NewContext(nil)

	require.NoError(t, runLoop(t, rc, map[string]interface{}{
		"items":      []interface{}{},
		"item_key":   "item",
		"substeps":   []interface{}{setContextSubstep("item", "x")},
		"result_key": "out",
	}))
	assert.Equal(t, []interface{}{}, rc.GetDefault("out", nil))

	require.NoError(t, runLoop(t, rc, map[string]interface{}{
		"items":      map[string]interface{}{},
		"item_key":   "item",
		"substeps":   []interface{}{setContextSubstep("item", "x")},
		"result_key": "out_map",
	}))
	assert.Equal(t, map[string]interface{}{}, rc.GetDefault("out_map", nil))
}

func TestLoopDottedPathResolution(t *testing.T) {
	rc := recipe.NewContext(nil)
	rc.Set("data", map[string]interface{}{
		"nested": map[string]interface{}{"items": []interface{}{"x", "y"}},
	})

	require.NoError(t, runLoop(t, rc, map[string]interface{}{
		"items":      "data.nested.items",
		"item_key":   "item",
		"substeps":   []interface{}{setContextSubstep("item", "<{{ item }}>")},
		"result_key": "out",
	}))

	assert.Equal(t, []interface{}{"<x>", "<y>"}, rc.GetDefault("out", nil))
}

func TestLoopInputErrors(t *testing.T) {
	rc := recipe.NewContext(nil)
	rc.Set("scalar", 42)

	cases := []map[string]interface{}{
		{
			"items":      "absent_key",
			"item_key":   "item",
			"substeps":   []interface{}{setContextSubstep("item", "x")},
			"result_key": "out",
		},
		{
			"items":      "scalar",
			"item_key":   "item",
			"substeps":   []interface{}{setContextSubstep("item", "x")},
			"result_key": "out",
		},
		{
			"items":      42,
			"item_key":   "item",
			"substeps":   []interface{}{setContextSubstep("item", "x")},
			"result_key": "out",
		},
	}

	for i, config := range cases {
		err := runLoop(t, rc, config)
		var inputErr *errors.LoopInputError
		require.ErrorAs(t, err, &inputErr, "case %d", i)
	}
}

func TestLoopIterationIsolation(t *testing.T) {
	rc := recipe.NewContext(nil)
	rc.Set("shared", "before")

	require.NoError(t, runLoop(t, rc, map[string]interface{}{
		"items":           []interface{}{"a", "b", "c"},
		"item_key":        "item",
		"substeps":        []interface{}{setContextSubstep("shared", "from-{{ item }}")},
		"result_key":      "out",
		"max_concurrency": 0,
	}))

	assert.Equal(t, "before", rc.GetDefault("shared", nil), "iteration writes must not reach the parent")
}
