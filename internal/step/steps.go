// Package step wires the builtin step implementations into the executor
// registry.
package step

import (
	"github.com/recipekit/recipekit/internal/step/file"
	"github.com/recipekit/recipekit/internal/step/flow"
	"github.com/recipekit/recipekit/internal/step/llmgen"
	"github.com/recipekit/recipekit/internal/step/mcp"
	"github.com/recipekit/recipekit/internal/step/setctx"
	"github.com/recipekit/recipekit/internal/step/shell"
)

// RegisterAll registers every builtin step type. Call once at startup,
// before any recipe executes.
func RegisterAll() {
	file.Register()
	flow.Register()
	llmgen.Register()
	mcp.Register()
	setctx.Register()
	shell.Register()
}
