package flow

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/recipekit/recipekit/internal/step/conf"
	"github.com/recipekit/recipekit/pkg/errors"
	"github.com/recipekit/recipekit/pkg/recipe"
)

// LoopStep iterates substeps over a list or map. Each iteration runs the
// body against its own context clone; only the aggregate result is
// written back to the parent.
type LoopStep struct {
	logger         *slog.Logger
	items          interface{}
	itemKey        string
	substeps       []recipe.StepDef
	resultKey      string
	maxConcurrency int
	delay          time.Duration
	failFast       bool
}

// NewLoopStep validates the loop config.
func NewLoopStep(logger *slog.Logger, config map[string]interface{}) (*LoopStep, error) {
	items, ok := config["items"]
	if !ok {
		return nil, &errors.ConfigError{StepType: "loop", Field: "items", Message: "required"}
	}
	itemKey, err := conf.String(config, "loop", "item_key")
	if err != nil {
		return nil, err
	}
	substeps, err := conf.Steps(config, "loop", "substeps")
	if err != nil {
		return nil, err
	}
	resultKey, err := conf.String(config, "loop", "result_key")
	if err != nil {
		return nil, err
	}
	maxConcurrency, err := conf.IntOr(config, "loop", "max_concurrency", 1)
	if err != nil {
		return nil, err
	}
	if maxConcurrency < 0 {
		return nil, &errors.ConfigError{StepType: "loop", Field: "max_concurrency", Message: "must be >= 0"}
	}
	delay, err := conf.SecondsOr(config, "loop", "delay", 0)
	if err != nil {
		return nil, err
	}
	failFast, err := conf.BoolOr(config, "loop", "fail_fast", true)
	if err != nil {
		return nil, err
	}

	return &LoopStep{
		logger:         logger,
		items:          items,
		itemKey:        itemKey,
		substeps:       substeps,
		resultKey:      resultKey,
		maxConcurrency: maxConcurrency,
		delay:          delay,
		failFast:       failFast,
	}, nil
}

// iteration is one scheduling unit: an element plus its input position.
type iteration struct {
	pos   int
	key   string
	value interface{}
}

// Execute resolves the input, runs every iteration under the configured
// concurrency bound, and writes the aggregate result in input order.
func (s *LoopStep) Execute(ctx context.Context, rc *recipe.Context) error {
	iters, isMap, err := s.resolveItems(rc)
	if err != nil {
		return err
	}

	if len(iters) == 0 {
		if isMap {
			rc.Set(s.resultKey, map[string]interface{}{})
		} else {
			rc.Set(s.resultKey, []interface{}{})
		}
		return nil
	}

	s.logger.Debug("loop starting",
		"iterations", len(iters), "max_concurrency", s.maxConcurrency, "fail_fast", s.failFast)

	results := make([]interface{}, len(iters))
	failures := make([]error, len(iters))
	launched := make([]bool, len(iters))

	runIteration := func(ctx context.Context, it iteration) error {
		child := rc.Clone()
		child.Set(s.itemKey, it.value)
		if isMap {
			child.Set("__key", it.key)
		} else {
			child.Set("__index", it.pos)
		}

		if err := runBody(ctx, s.logger, s.substeps, child); err != nil {
			if isMap {
				return &errors.LoopError{Index: -1, Key: it.key, Cause: err}
			}
			return &errors.LoopError{Index: it.pos, Cause: err}
		}

		// The iteration result is whatever the body left at item_key, so
		// substeps can rebind it to a transformed value.
		results[it.pos] = child.GetDefault(s.itemKey, nil)
		return nil
	}

	if s.failFast {
		if err := s.runFailFast(ctx, iters, runIteration, launched); err != nil {
			return err
		}
	} else {
		s.runCollecting(ctx, iters, runIteration, failures, launched)
	}

	s.store(rc, iters, isMap, results, failures, launched)
	return nil
}

// runFailFast launches iterations under an errgroup whose context is
// cancelled by the first failure; pending launches stop, in-flight
// iterations observe cancellation at their next suspension.
func (s *LoopStep) runFailFast(ctx context.Context, iters []iteration, run func(context.Context, iteration) error, launched []bool) error {
	g, gctx := errgroup.WithContext(ctx)
	if s.maxConcurrency > 0 {
		g.SetLimit(s.maxConcurrency)
	}

	for i, it := range iters {
		if i > 0 && s.delay > 0 {
			if err := sleep(gctx, s.delay); err != nil {
				break
			}
		}
		if gctx.Err() != nil {
			break
		}
		it := it
		launched[it.pos] = true
		g.Go(func() error { return run(gctx, it) })
	}
	if err := g.Wait(); err != nil {
		return err
	}
	// Parent cancellation can stop the launch loop without any launched
	// iteration failing; the step must not report a partial success.
	return ctx.Err()
}

// runCollecting runs every iteration to completion and records failures
// per slot instead of cancelling peers.
func (s *LoopStep) runCollecting(ctx context.Context, iters []iteration, run func(context.Context, iteration) error, failures []error, launched []bool) {
	var g errgroup.Group
	if s.maxConcurrency > 0 {
		g.SetLimit(s.maxConcurrency)
	}

	for i, it := range iters {
		if i > 0 && s.delay > 0 {
			if err := sleep(ctx, s.delay); err != nil {
				break
			}
		}
		it := it
		launched[it.pos] = true
		g.Go(func() error {
			if err := run(ctx, it); err != nil {
				failures[it.pos] = err
			}
			return nil
		})
	}
	g.Wait()
}

// store writes the aggregate result (and, without fail-fast, the error
// collection) back to the parent context. Successes keep input order.
// Iterations that never launched (cancellation stopped the launch loop)
// are omitted from both collections.
func (s *LoopStep) store(rc *recipe.Context, iters []iteration, isMap bool, results []interface{}, failures []error, launched []bool) {
	if isMap {
		out := make(map[string]interface{}, len(iters))
		errs := make(map[string]interface{})
		for i, it := range iters {
			if !launched[i] {
				continue
			}
			if failures[i] != nil {
				errs[it.key] = failures[i].Error()
				continue
			}
			out[it.key] = results[i]
		}
		rc.Set(s.resultKey, out)
		if !s.failFast {
			rc.Set(s.resultKey+"__errors", errs)
		}
		return
	}

	out := make([]interface{}, 0, len(iters))
	errs := make([]interface{}, 0)
	for i := range iters {
		if !launched[i] {
			continue
		}
		if failures[i] != nil {
			errs = append(errs, map[string]interface{}{"index": i, "error": failures[i].Error()})
			continue
		}
		out = append(out, results[i])
	}
	rc.Set(s.resultKey, out)
	if !s.failFast {
		rc.Set(s.resultKey+"__errors", errs)
	}
}

// resolveItems turns the items config into scheduling units. String
// input renders, then resolves as a dotted path against the context.
// Map iterations run in sorted key order for deterministic launches.
func (s *LoopStep) resolveItems(rc *recipe.Context) ([]iteration, bool, error) {
	value := s.items
	ref := fmt.Sprintf("%v", s.items)

	if str, ok := s.items.(string); ok {
		rendered, err := renderer.Render(str, rc)
		if err != nil {
			return nil, false, err
		}
		ref = rendered
		value, err = resolveDotted(rendered, rc)
		if err != nil {
			return nil, false, &errors.LoopInputError{Items: rendered, Message: err.Error()}
		}
	}

	switch v := value.(type) {
	case []interface{}:
		iters := make([]iteration, len(v))
		for i, elem := range v {
			iters[i] = iteration{pos: i, value: elem}
		}
		return iters, false, nil
	case []string:
		iters := make([]iteration, len(v))
		for i, elem := range v {
			iters[i] = iteration{pos: i, value: elem}
		}
		return iters, false, nil
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for key := range v {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		iters := make([]iteration, len(keys))
		for i, key := range keys {
			iters[i] = iteration{pos: i, key: key, value: v[key]}
		}
		return iters, true, nil
	default:
		return nil, false, &errors.LoopInputError{Items: ref, Message: fmt.Sprintf("expected list or map, got %T", value)}
	}
}

// resolveDotted resolves a dotted path against the context: the first
// segment is an artifact key, the rest index into nested mappings.
func resolveDotted(path string, rc *recipe.Context) (interface{}, error) {
	segments := strings.Split(path, ".")
	value, err := rc.Get(segments[0])
	if err != nil {
		return nil, err
	}
	for _, segment := range segments[1:] {
		m, ok := value.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("segment %q indexes a %T, expected mapping", segment, value)
		}
		value, ok = m[segment]
		if !ok {
			return nil, fmt.Errorf("segment %q not found", segment)
		}
	}
	return value, nil
}
