// Package executor dispatches recipe steps. The executor itself is
// stateless: all execution state lives in the recipe context, which makes
// sub-recipe invocation ordinary recursion.
package executor

import (
	"context"
	"log/slog"
	"sort"
	"sync"

	"github.com/recipekit/recipekit/pkg/recipe"
)

// Step is one unit of recipe work. Execute blocks until the step
// completes or fails; implementations must honor context cancellation at
// their I/O boundaries.
type Step interface {
	Execute(ctx context.Context, rc *recipe.Context) error
}

// Factory constructs a step from a logger and its raw config. Factories
// validate the config shape and fail with a config error before any
// execution happens.
type Factory func(logger *slog.Logger, config map[string]interface{}) (Step, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Factory)
)

// Register adds a step factory under the given type name. Re-registering
// a name replaces the previous factory.
func Register(stepType string, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[stepType] = factory
}

// Lookup returns the factory registered under stepType.
func Lookup(stepType string) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	factory, ok := registry[stepType]
	return factory, ok
}

// RegisteredTypes returns the registered step type names, sorted.
func RegisteredTypes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	types := make([]string, 0, len(registry))
	for name := range registry {
		types = append(types, name)
	}
	sort.Strings(types)
	return types
}
