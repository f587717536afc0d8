package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/recipekit/recipekit/internal/log"
	"github.com/recipekit/recipekit/pkg/errors"
	"github.com/recipekit/recipekit/pkg/recipe"
)

// OutputType selects the shape of a generation result.
type OutputType string

const (
	// OutputText returns the raw response text.
	OutputText OutputType = "text"

	// OutputFiles returns a list of generated file specs.
	OutputFiles OutputType = "files"

	// OutputObject returns a mapping validated against a schema.
	OutputObject OutputType = "object"

	// OutputList returns a list of objects validated against a schema.
	OutputList OutputType = "list"
)

// DefaultModel is used when neither the step nor the config names one.
const DefaultModel = "openai/gpt-4o"

// maxToolRounds bounds the MCP tool-call loop.
const maxToolRounds = 10

// ToolServer exposes callable tools to the generation loop. The MCP
// client satisfies this through a thin adapter in the llm step.
type ToolServer interface {
	// Identifier names the server for logs and errors.
	Identifier() string

	// ListTools returns the tools the server exposes.
	ListTools(ctx context.Context) ([]Tool, error)

	// CallTool invokes one tool and returns its result value.
	CallTool(ctx context.Context, name string, args map[string]interface{}) (interface{}, error)
}

// Request describes one generation.
type Request struct {
	// Prompt is the rendered user prompt.
	Prompt string

	// Model is the full model identifier; empty falls back to the config
	// "model" entry, then DefaultModel.
	Model string

	// MaxTokens limits the response length when set.
	MaxTokens *int

	// Output selects the result shape.
	Output OutputType

	// Schema is the object schema for OutputObject, or the element schema
	// for OutputList.
	Schema map[string]interface{}

	// History is prior conversation turns to include before the prompt.
	History []Message

	// Servers are connected tool servers available to the model.
	Servers []ToolServer
}

// Result is the outcome of a generation.
type Result struct {
	// Value is the coerced output: string, []recipe.FileSpec,
	// map[string]interface{}, or []interface{} depending on the request.
	Value interface{}

	// Content is the model's final raw text, for conversation history.
	Content string

	// Model is the resolved full model identifier.
	Model string
}

// Generate resolves the model, runs the completion (with a bounded tool
// loop when tool servers are present), and coerces the output.
func Generate(ctx context.Context, logger *slog.Logger, config map[string]interface{}, req Request) (*Result, error) {
	modelRef := req.Model
	if modelRef == "" {
		modelRef = ConfigString(config, "model", "default_model")
	}
	if modelRef == "" {
		modelRef = DefaultModel
	}

	id, err := ParseModelID(modelRef)
	if err != nil {
		return nil, &errors.LLMError{Model: modelRef, Message: err.Error()}
	}

	provider, err := newProvider(id.Provider, config)
	if err != nil {
		return nil, &errors.LLMError{Model: modelRef, Message: err.Error(), Cause: err}
	}

	tools, byName, err := collectTools(ctx, req.Servers)
	if err != nil {
		return nil, &errors.LLMError{Model: modelRef, Message: "tool discovery failed", Cause: err}
	}

	messages := make([]Message, 0, len(req.History)+2)
	if system := systemPrompt(req); system != "" {
		messages = append(messages, Message{Role: MessageRoleSystem, Content: system})
	}
	messages = append(messages, req.History...)
	messages = append(messages, Message{Role: MessageRoleUser, Content: req.Prompt})

	completion := CompletionRequest{
		Model:      id.Model,
		Deployment: id.Deployment,
		MaxTokens:  req.MaxTokens,
		Tools:      tools,
	}

	log.Trace(logger, "llm request",
		slog.String(log.ProviderKey, id.Provider),
		slog.String("model", id.Model),
		slog.String("prompt", req.Prompt))

	var resp *CompletionResponse
	for round := 0; ; round++ {
		if round >= maxToolRounds {
			return nil, &errors.LLMError{Model: modelRef, Message: fmt.Sprintf("tool loop did not settle within %d rounds", maxToolRounds)}
		}

		completion.Messages = messages
		resp, err = provider.Complete(ctx, completion)
		if err != nil {
			return nil, &errors.LLMError{Model: modelRef, Message: "completion failed", Cause: err}
		}
		log.Trace(logger, "llm response",
			slog.String(log.ProviderKey, id.Provider),
			slog.String("request_id", resp.RequestID),
			slog.String("content", resp.Content))
		if len(resp.ToolCalls) == 0 {
			break
		}

		logger.Debug("model requested tools",
			log.ProviderKey, id.Provider, "request_id", resp.RequestID, "calls", len(resp.ToolCalls), "round", round)

		messages = append(messages, Message{
			Role:      MessageRoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})
		for _, call := range resp.ToolCalls {
			result, callErr := dispatchToolCall(ctx, byName, call)
			if callErr != nil {
				// Feed the failure back to the model rather than aborting;
				// the model may recover or choose another tool.
				result = fmt.Sprintf("error: %v", callErr)
			}
			content, _ := json.Marshal(result)
			messages = append(messages, Message{
				Role:       MessageRoleTool,
				Content:    string(content),
				ToolCallID: call.ID,
			})
		}
	}

	value, err := coerceOutput(resp.Content, req)
	if err != nil {
		return nil, &errors.LLMError{Model: modelRef, Message: "output did not match requested format", Cause: err}
	}

	return &Result{Value: value, Content: resp.Content, Model: modelRef}, nil
}

// collectTools lists every server's tools and indexes them by name.
// Later servers win name collisions, matching server-list precedence.
func collectTools(ctx context.Context, servers []ToolServer) ([]Tool, map[string]ToolServer, error) {
	if len(servers) == 0 {
		return nil, nil, nil
	}

	var tools []Tool
	byName := make(map[string]ToolServer)
	for _, server := range servers {
		serverTools, err := server.ListTools(ctx)
		if err != nil {
			return nil, nil, fmt.Errorf("list tools from %s: %w", server.Identifier(), err)
		}
		for _, tool := range serverTools {
			if _, exists := byName[tool.Name]; !exists {
				tools = append(tools, tool)
			}
			byName[tool.Name] = server
		}
	}
	return tools, byName, nil
}

// dispatchToolCall routes one tool call to its server.
func dispatchToolCall(ctx context.Context, byName map[string]ToolServer, call ToolCall) (interface{}, error) {
	server, ok := byName[call.Name]
	if !ok {
		return nil, fmt.Errorf("no server exposes tool %q", call.Name)
	}

	args := make(map[string]interface{})
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return nil, fmt.Errorf("tool %q arguments are not valid JSON: %w", call.Name, err)
		}
	}
	return server.CallTool(ctx, call.Name, args)
}

// systemPrompt returns format instructions for structured outputs.
func systemPrompt(req Request) string {
	switch req.Output {
	case OutputFiles:
		return "Respond with only a JSON array of file objects, each {\"path\": string, \"content\": string}. No prose, no code fences."
	case OutputObject:
		schema, _ := json.Marshal(req.Schema)
		return fmt.Sprintf("Respond with only a single JSON object matching this JSON Schema. No prose, no code fences.\nSchema: %s", schema)
	case OutputList:
		schema, _ := json.Marshal(req.Schema)
		return fmt.Sprintf("Respond with only a JSON array whose elements match this JSON Schema. No prose, no code fences.\nSchema: %s", schema)
	default:
		return ""
	}
}

// coerceOutput converts the raw response into the requested shape.
func coerceOutput(content string, req Request) (interface{}, error) {
	switch req.Output {
	case OutputText, "":
		return content, nil

	case OutputFiles:
		payload := extractJSON(content)
		var files []recipe.FileSpec
		if err := json.Unmarshal([]byte(payload), &files); err != nil {
			return nil, fmt.Errorf("expected a JSON array of file specs: %w", err)
		}
		for i, file := range files {
			if file.Path == "" {
				return nil, fmt.Errorf("file spec %d has an empty path", i)
			}
		}
		return files, nil

	case OutputObject:
		payload := extractJSON(content)
		var object map[string]interface{}
		if err := json.Unmarshal([]byte(payload), &object); err != nil {
			return nil, fmt.Errorf("expected a JSON object: %w", err)
		}
		if err := ValidateSchema(object, req.Schema); err != nil {
			return nil, err
		}
		return object, nil

	case OutputList:
		payload := extractJSON(content)
		var list []interface{}
		if err := json.Unmarshal([]byte(payload), &list); err != nil {
			return nil, fmt.Errorf("expected a JSON array: %w", err)
		}
		for i, elem := range list {
			if err := ValidateSchema(elem, req.Schema); err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
		}
		return list, nil

	default:
		return nil, fmt.Errorf("unsupported output type %q", req.Output)
	}
}

// extractJSON strips markdown fences and surrounding prose from a
// response that should be pure JSON. Models occasionally wrap payloads
// despite instructions.
func extractJSON(content string) string {
	trimmed := strings.TrimSpace(content)

	if strings.HasPrefix(trimmed, "```") {
		if idx := strings.Index(trimmed, "\n"); idx >= 0 {
			trimmed = trimmed[idx+1:]
		}
		if idx := strings.LastIndex(trimmed, "```"); idx >= 0 {
			trimmed = trimmed[:idx]
		}
		trimmed = strings.TrimSpace(trimmed)
	}

	start := strings.IndexAny(trimmed, "[{")
	if start < 0 {
		return trimmed
	}
	var end int
	if trimmed[start] == '[' {
		end = strings.LastIndex(trimmed, "]")
	} else {
		end = strings.LastIndex(trimmed, "}")
	}
	if end <= start {
		return trimmed
	}
	return trimmed[start : end+1]
}
