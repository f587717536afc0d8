// Package llm provides the model dispatch facade: it maps a model
// identifier of the form provider/model[/deployment] to a provider
// client, invokes it, and coerces the response into the requested output
// shape. Provider credentials come from the recipe context config, never
// from the process environment directly.
package llm

import (
	"context"
	"fmt"
	"strings"
)

// Provider is a minimal LLM client: one synchronous completion call.
// Retries are the caller's responsibility.
type Provider interface {
	// Name returns the provider identifier (e.g. "anthropic").
	Name() string

	// Complete sends a completion request and blocks for the response.
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error)
}

// MessageRole identifies the sender of a message.
type MessageRole string

const (
	// MessageRoleSystem indicates a system message (context, instructions).
	MessageRoleSystem MessageRole = "system"

	// MessageRoleUser indicates a message from the user.
	MessageRoleUser MessageRole = "user"

	// MessageRoleAssistant indicates a message from the model.
	MessageRoleAssistant MessageRole = "assistant"

	// MessageRoleTool indicates a tool execution result.
	MessageRoleTool MessageRole = "tool"
)

// Message represents a single message in a conversation.
type Message struct {
	// Role indicates who sent this message.
	Role MessageRole `json:"role"`

	// Content is the text content of the message.
	Content string `json:"content"`

	// ToolCalls contains tool invocations made by the assistant.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`

	// ToolCallID links a tool-role message to the call it answers.
	ToolCallID string `json:"tool_call_id,omitempty"`
}

// ToolCall represents a function invocation requested by the model.
type ToolCall struct {
	// ID uniquely identifies this call within a completion.
	ID string

	// Name is the tool name to invoke.
	Name string

	// Arguments contains the JSON-encoded tool parameters.
	Arguments string
}

// Tool defines a function the model can invoke.
type Tool struct {
	// Name is the tool identifier.
	Name string

	// Description explains what this tool does.
	Description string

	// InputSchema is a JSON Schema describing the tool parameters.
	InputSchema map[string]interface{}
}

// CompletionRequest contains the parameters for one completion call.
type CompletionRequest struct {
	// Model is the provider-specific model name.
	Model string

	// Deployment is the Azure deployment name; ignored by other providers.
	Deployment string

	// Messages is the conversation, including the current prompt.
	Messages []Message

	// MaxTokens limits the response length. Nil uses the provider default.
	MaxTokens *int

	// Tools defines functions the model may call.
	Tools []Tool
}

// CompletionResponse is the full response from a completion call.
type CompletionResponse struct {
	// Content is the generated text.
	Content string

	// ToolCalls contains tool invocations requested by the model.
	ToolCalls []ToolCall

	// Model is the model that handled the request.
	Model string

	// RequestID identifies this request for tracing.
	RequestID string
}

// ModelID is a parsed model identifier.
type ModelID struct {
	// Provider is one of openai, azure, anthropic, ollama.
	Provider string

	// Model is the provider-specific model name.
	Model string

	// Deployment is the optional Azure deployment name.
	Deployment string
}

// String reassembles the identifier.
func (m ModelID) String() string {
	if m.Deployment != "" {
		return m.Provider + "/" + m.Model + "/" + m.Deployment
	}
	return m.Provider + "/" + m.Model
}

// ParseModelID parses "provider/model" or "provider/model/deployment".
func ParseModelID(id string) (ModelID, error) {
	parts := strings.Split(id, "/")
	if len(parts) < 2 || len(parts) > 3 || parts[0] == "" || parts[1] == "" {
		return ModelID{}, fmt.Errorf("model id %q must be provider/model or provider/model/deployment", id)
	}
	parsed := ModelID{Provider: parts[0], Model: parts[1]}
	if len(parts) == 3 {
		parsed.Deployment = parts[2]
	}
	return parsed, nil
}
