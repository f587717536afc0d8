// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package errors defines the error kinds raised by recipe execution.
// Each kind is a distinct struct so callers can match with errors.As
// while the executor propagates a uniform chain of step wrappers.
package errors

import (
	"fmt"
	"strings"
)

// ConfigError represents an invalid step configuration shape.
type ConfigError struct {
	// StepType is the step whose config failed validation
	StepType string

	// Field is the path of the offending config field
	Field string

	// Message is the human-readable error description
	Message string
}

// Error implements the error interface.
func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("invalid %s config at %s: %s", e.StepType, e.Field, e.Message)
	}
	return fmt.Sprintf("invalid %s config: %s", e.StepType, e.Message)
}

// UnknownStepError is raised when a recipe references an unregistered step type.
type UnknownStepError struct {
	// StepType is the unregistered type name
	StepType string
}

// Error implements the error interface.
func (e *UnknownStepError) Error() string {
	return fmt.Sprintf("unknown step type: %s", e.StepType)
}

// ParseError represents a recipe source that is not valid JSON or YAML.
type ParseError struct {
	// Source identifies where the recipe came from (path or "inline")
	Source string

	// Cause is the underlying decode error
	Cause error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse recipe %s: %v", e.Source, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ParseError) Unwrap() error { return e.Cause }

// ValidationError represents a recipe whose shape does not match the schema.
type ValidationError struct {
	// Source identifies where the recipe came from
	Source string

	// Message explains which part of the shape is wrong
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid recipe %s: %s", e.Source, e.Message)
}

// MissingRecipeError is raised by execute_recipe when the rendered path does not exist.
type MissingRecipeError struct {
	Path string
}

// Error implements the error interface.
func (e *MissingRecipeError) Error() string {
	return fmt.Sprintf("recipe not found: %s", e.Path)
}

// MissingFileError is raised by read_files when a required file is absent.
type MissingFileError struct {
	Path string
}

// Error implements the error interface.
func (e *MissingFileError) Error() string {
	return fmt.Sprintf("file not found: %s", e.Path)
}

// MissingKeyError is raised on index access of an absent context key.
type MissingKeyError struct {
	Key string
}

// Error implements the error interface.
func (e *MissingKeyError) Error() string {
	return fmt.Sprintf("context key not found: %s", e.Key)
}

// RenderError represents a template syntax or runtime failure.
// It carries the offending template and the context key names (never
// values, which may hold secrets).
type RenderError struct {
	// Template is the source text that failed to render
	Template string

	// ContextKeys is a snapshot of the artifact keys at render time
	ContextKeys []string

	// Cause is the underlying engine error
	Cause error
}

// Error implements the error interface.
func (e *RenderError) Error() string {
	return fmt.Sprintf("template render failed for %q (context keys: [%s]): %v",
		truncate(e.Template, 120), strings.Join(e.ContextKeys, " "), e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *RenderError) Unwrap() error { return e.Cause }

// ConditionError represents a conditional expression that failed to evaluate.
type ConditionError struct {
	// Condition is the rendered expression text
	Condition string

	// Cause is the underlying evaluation error
	Cause error
}

// Error implements the error interface.
func (e *ConditionError) Error() string {
	return fmt.Sprintf("condition evaluation failed for %q: %v", truncate(e.Condition, 120), e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *ConditionError) Unwrap() error { return e.Cause }

// LoopInputError is raised when a loop's items are missing or the wrong type.
type LoopInputError struct {
	// Items is the configured items reference
	Items string

	// Message explains what was wrong with the resolved value
	Message string
}

// Error implements the error interface.
func (e *LoopInputError) Error() string {
	return fmt.Sprintf("loop items %q: %s", e.Items, e.Message)
}

// LoopError wraps the first iteration failure of a fail-fast loop.
type LoopError struct {
	// Index is the list position of the failing iteration, or -1 for map input
	Index int

	// Key is the map key of the failing iteration, empty for list input
	Key string

	// Cause is the iteration failure
	Cause error
}

// Error implements the error interface.
func (e *LoopError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("loop iteration %q failed: %v", e.Key, e.Cause)
	}
	return fmt.Sprintf("loop iteration %d failed: %v", e.Index, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *LoopError) Unwrap() error { return e.Cause }

// LLMError represents a provider or schema failure during generation.
type LLMError struct {
	// Model is the full model identifier (provider/model[/deployment])
	Model string

	// Message is a short cause description
	Message string

	// Cause is the underlying error, if any
	Cause error
}

// Error implements the error interface.
func (e *LLMError) Error() string {
	return fmt.Sprintf("llm %s: %s", e.Model, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *LLMError) Unwrap() error { return e.Cause }

// ShellError represents a non-zero subprocess exit.
type ShellError struct {
	// Command is the command that failed
	Command string

	// ExitCode is the subprocess exit status
	ExitCode int

	// Stderr is the tail of the captured standard error
	Stderr string
}

// Error implements the error interface.
func (e *ShellError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("command exited with code %d: %s", e.ExitCode, e.Stderr)
	}
	return fmt.Sprintf("command exited with code %d", e.ExitCode)
}

// MCPError represents a transport or tool failure against an MCP server.
type MCPError struct {
	// Server identifies the server (URL or command)
	Server string

	// Tool is the tool that was being called, if any
	Tool string

	// Cause is the underlying error
	Cause error
}

// Error implements the error interface.
func (e *MCPError) Error() string {
	if e.Tool != "" {
		return fmt.Sprintf("mcp %s tool %s: %v", e.Server, e.Tool, e.Cause)
	}
	return fmt.Sprintf("mcp %s: %v", e.Server, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *MCPError) Unwrap() error { return e.Cause }

// StepError wraps a step failure with its position in the recipe.
// Nested StepErrors form a path from the top-level recipe to the
// failing leaf.
type StepError struct {
	// RecipeSource identifies the recipe containing the step
	RecipeSource string

	// StepIndex is the zero-based position of the step
	StepIndex int

	// StepType is the step's registered type name
	StepType string

	// Cause is the step's failure
	Cause error
}

// Error implements the error interface.
func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (%s) in %s: %v", e.StepIndex, e.StepType, e.RecipeSource, e.Cause)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *StepError) Unwrap() error { return e.Cause }

// truncate shortens a string for inclusion in error messages.
func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max-3] + "..."
	}
	return s
}
