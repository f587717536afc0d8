// Package mcp implements the mcp step: a single tool call against one
// MCP server, with the result stored in the recipe context.
package mcp

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	mcpclient "github.com/recipekit/recipekit/internal/mcp"
	"github.com/recipekit/recipekit/internal/step/conf"
	"github.com/recipekit/recipekit/pkg/errors"
	"github.com/recipekit/recipekit/pkg/executor"
	"github.com/recipekit/recipekit/pkg/recipe"
	"github.com/recipekit/recipekit/pkg/template"
)

var renderer = template.New()

// Step connects to a server, calls one tool, and disconnects.
type Step struct {
	logger    *slog.Logger
	server    map[string]interface{}
	toolName  string
	arguments map[string]interface{}
	outputKey string
	timeout   time.Duration
}

// New validates the mcp step config.
func New(logger *slog.Logger, config map[string]interface{}) (*Step, error) {
	server, err := conf.Map(config, "mcp", "server")
	if err != nil {
		return nil, err
	}
	if server == nil {
		return nil, &errors.ConfigError{StepType: "mcp", Field: "server", Message: "required"}
	}
	toolName, err := conf.String(config, "mcp", "tool_name")
	if err != nil {
		return nil, err
	}
	arguments, err := conf.Map(config, "mcp", "arguments")
	if err != nil {
		return nil, err
	}
	outputKey, err := conf.String(config, "mcp", "output_key")
	if err != nil {
		return nil, err
	}
	timeout, err := conf.SecondsOr(config, "mcp", "timeout", mcpclient.DefaultTimeout)
	if err != nil {
		return nil, err
	}

	return &Step{
		logger:    logger,
		server:    server,
		toolName:  toolName,
		arguments: arguments,
		outputKey: outputKey,
		timeout:   timeout,
	}, nil
}

// Execute renders the server config and arguments, dispatches the tool
// call, and stores the result under output_key.
func (s *Step) Execute(ctx context.Context, rc *recipe.Context) error {
	serverValue, err := renderer.RenderValue(s.server, rc)
	if err != nil {
		return err
	}
	serverMap, ok := serverValue.(map[string]interface{})
	if !ok {
		return &errors.ConfigError{StepType: "mcp", Field: "server", Message: fmt.Sprintf("rendered to %T, expected mapping", serverValue)}
	}
	cfg, err := mcpclient.ConfigFromMap(serverMap)
	if err != nil {
		return &errors.ConfigError{StepType: "mcp", Field: "server", Message: err.Error()}
	}

	args := map[string]interface{}{}
	if s.arguments != nil {
		rendered, err := renderer.RenderValue(s.arguments, rc)
		if err != nil {
			return err
		}
		args = rendered.(map[string]interface{})
	}

	toolName, err := renderer.Render(s.toolName, rc)
	if err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	client, err := mcpclient.Connect(callCtx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	s.logger.Debug("calling tool", "server", cfg.Identifier(), "tool", toolName)
	result, err := client.CallTool(callCtx, toolName, args)
	if err != nil {
		return err
	}

	rc.Set(s.outputKey, result)
	return nil
}

// Register adds the mcp step to the executor registry.
func Register() {
	executor.Register("mcp", func(logger *slog.Logger, config map[string]interface{}) (executor.Step, error) {
		return New(logger, config)
	})
}
