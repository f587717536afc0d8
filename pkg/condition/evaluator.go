// Package condition evaluates rendered conditional expressions.
//
// The evaluation environment is deliberately small: boolean logic,
// comparison and arithmetic, and a whitelisted set of file predicates.
// Conditions are rendered by the template engine before they reach the
// evaluator, so context values arrive as literals; any identifier left
// over is rejected at compile time.
package condition

import (
	"fmt"
	"strings"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/recipekit/recipekit/pkg/errors"
)

// Evaluator compiles and evaluates condition expressions, caching
// compiled programs for repeated evaluations (loops re-evaluate the same
// condition text with different renders, but many recipes repeat exact
// conditions).
type Evaluator struct {
	cache map[string]*vm.Program
	mu    sync.RWMutex
}

// New creates a new condition evaluator.
func New() *Evaluator {
	return &Evaluator{
		cache: make(map[string]*vm.Program),
	}
}

// Evaluate evaluates a rendered condition string to a boolean.
//
// The empty string and the literals "true"/"false" (any case) short-circuit
// without touching the expression engine; everything else must parse under
// the restricted grammar or fail with a condition error.
func (e *Evaluator) Evaluate(rendered string) (bool, error) {
	switch strings.ToLower(strings.TrimSpace(rendered)) {
	case "", "true":
		return true, nil
	case "false":
		return false, nil
	}

	program, err := e.compile(rendered)
	if err != nil {
		return false, &errors.ConditionError{Condition: rendered, Cause: err}
	}

	result, err := expr.Run(program, sandboxEnv())
	if err != nil {
		return false, &errors.ConditionError{Condition: rendered, Cause: err}
	}

	boolResult, ok := result.(bool)
	if !ok {
		return false, &errors.ConditionError{
			Condition: rendered,
			Cause:     fmt.Errorf("condition must evaluate to a boolean, got %T", result),
		}
	}
	return boolResult, nil
}

// compile compiles an expression under the sandbox environment and caches
// the program.
func (e *Evaluator) compile(expression string) (*vm.Program, error) {
	e.mu.RLock()
	if prog, ok := e.cache[expression]; ok {
		e.mu.RUnlock()
		return prog, nil
	}
	e.mu.RUnlock()

	// No AllowUndefinedVariables here: unresolved identifiers are a
	// compile failure, which keeps the grammar closed.
	prog, err := expr.Compile(expression,
		expr.Env(sandboxEnv()),
		expr.AsBool(),
	)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	e.cache[expression] = prog
	e.mu.Unlock()

	return prog, nil
}

// CacheSize returns the number of cached compiled expressions.
func (e *Evaluator) CacheSize() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.cache)
}
