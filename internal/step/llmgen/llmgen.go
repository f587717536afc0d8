// Package llmgen implements the llm_generate step: rendered prompt in,
// coerced model output stored back into the recipe context.
package llmgen

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	mcpclient "github.com/recipekit/recipekit/internal/mcp"
	"github.com/recipekit/recipekit/internal/step/conf"
	"github.com/recipekit/recipekit/pkg/errors"
	"github.com/recipekit/recipekit/pkg/executor"
	"github.com/recipekit/recipekit/pkg/llm"
	"github.com/recipekit/recipekit/pkg/recipe"
	"github.com/recipekit/recipekit/pkg/template"
)

var renderer = template.New()

// Step runs one generation through the dispatch facade.
type Step struct {
	logger      *slog.Logger
	prompt      string
	model       string
	maxTokens   interface{}
	mcpServers  []interface{}
	outputType  llm.OutputType
	schema      map[string]interface{}
	outputKey   string
	messagesKey string
}

// New validates the llm_generate config. output_format accepts "text",
// "files", an object schema, or a single-element list holding the
// element schema.
func New(logger *slog.Logger, config map[string]interface{}) (*Step, error) {
	prompt, err := conf.String(config, "llm_generate", "prompt")
	if err != nil {
		return nil, err
	}
	model, err := conf.StringOr(config, "llm_generate", "model", "")
	if err != nil {
		return nil, err
	}
	outputKey, err := conf.StringOr(config, "llm_generate", "output_key", "llm_output")
	if err != nil {
		return nil, err
	}
	messagesKey, err := conf.StringOr(config, "llm_generate", "messages_key", "")
	if err != nil {
		return nil, err
	}

	var servers []interface{}
	if raw, ok := config["mcp_servers"]; ok {
		servers, ok = raw.([]interface{})
		if !ok {
			return nil, &errors.ConfigError{StepType: "llm_generate", Field: "mcp_servers", Message: fmt.Sprintf("expected list, got %T", raw)}
		}
	}

	outputType, schema, err := parseOutputFormat(config["output_format"])
	if err != nil {
		return nil, err
	}

	return &Step{
		logger:      logger,
		prompt:      prompt,
		model:       model,
		maxTokens:   config["max_tokens"],
		mcpServers:  servers,
		outputType:  outputType,
		schema:      schema,
		outputKey:   outputKey,
		messagesKey: messagesKey,
	}, nil
}

// parseOutputFormat maps the config value to an output type and schema.
func parseOutputFormat(raw interface{}) (llm.OutputType, map[string]interface{}, error) {
	switch v := raw.(type) {
	case nil:
		return llm.OutputText, nil, nil
	case string:
		switch v {
		case "text":
			return llm.OutputText, nil, nil
		case "files":
			return llm.OutputFiles, nil, nil
		}
		return "", nil, &errors.ConfigError{StepType: "llm_generate", Field: "output_format", Message: fmt.Sprintf("expected text, files, or a schema, got %q", v)}
	case map[string]interface{}:
		return llm.OutputObject, v, nil
	case []interface{}:
		if len(v) != 1 {
			return "", nil, &errors.ConfigError{StepType: "llm_generate", Field: "output_format", Message: "list form must hold exactly one element schema"}
		}
		schema, ok := v[0].(map[string]interface{})
		if !ok {
			return "", nil, &errors.ConfigError{StepType: "llm_generate", Field: "output_format", Message: fmt.Sprintf("list element is %T, expected a schema mapping", v[0])}
		}
		return llm.OutputList, schema, nil
	default:
		return "", nil, &errors.ConfigError{StepType: "llm_generate", Field: "output_format", Message: fmt.Sprintf("unexpected type %T", raw)}
	}
}

// Execute renders the config, connects tool servers, runs the
// generation, and stores the coerced value under output_key.
func (s *Step) Execute(ctx context.Context, rc *recipe.Context) error {
	prompt, err := renderer.Render(s.prompt, rc)
	if err != nil {
		return err
	}
	model, err := renderer.Render(s.model, rc)
	if err != nil {
		return err
	}
	outputKey, err := renderer.Render(s.outputKey, rc)
	if err != nil {
		return err
	}
	maxTokens, err := s.renderMaxTokens(rc)
	if err != nil {
		return err
	}

	servers, closeAll, err := s.connectServers(ctx, rc)
	if err != nil {
		return err
	}
	defer closeAll()

	history, err := s.loadHistory(rc)
	if err != nil {
		return err
	}

	result, err := llm.Generate(ctx, s.logger, rc.Config(), llm.Request{
		Prompt:    prompt,
		Model:     model,
		MaxTokens: maxTokens,
		Output:    s.outputType,
		Schema:    s.schema,
		History:   history,
		Servers:   servers,
	})
	if err != nil {
		return err
	}

	rc.Set(outputKey, result.Value)
	if s.messagesKey != "" {
		s.appendHistory(rc, history, prompt, result.Content)
	}
	return nil
}

// renderMaxTokens accepts an integer or a template string rendering to one.
func (s *Step) renderMaxTokens(rc *recipe.Context) (*int, error) {
	switch v := s.maxTokens.(type) {
	case nil:
		return nil, nil
	case int:
		return &v, nil
	case int64:
		n := int(v)
		return &n, nil
	case float64:
		n := int(v)
		return &n, nil
	case string:
		rendered, err := renderer.Render(v, rc)
		if err != nil {
			return nil, err
		}
		if strings.TrimSpace(rendered) == "" {
			return nil, nil
		}
		n, err := strconv.Atoi(strings.TrimSpace(rendered))
		if err != nil {
			return nil, &errors.ConfigError{StepType: "llm_generate", Field: "max_tokens", Message: fmt.Sprintf("rendered to %q, expected an integer", rendered)}
		}
		return &n, nil
	default:
		return nil, &errors.ConfigError{StepType: "llm_generate", Field: "max_tokens", Message: fmt.Sprintf("expected integer or string, got %T", s.maxTokens)}
	}
}

// connectServers renders and connects the effective server list: the
// step's own servers followed by config().mcp_servers.
func (s *Step) connectServers(ctx context.Context, rc *recipe.Context) ([]llm.ToolServer, func(), error) {
	raw := make([]interface{}, 0, len(s.mcpServers))
	raw = append(raw, s.mcpServers...)
	if configured, ok := rc.Config()["mcp_servers"].([]interface{}); ok {
		raw = append(raw, configured...)
	}
	if len(raw) == 0 {
		return nil, func() {}, nil
	}

	var clients []*mcpclient.Client
	closeAll := func() {
		for _, client := range clients {
			client.Close()
		}
	}

	servers := make([]llm.ToolServer, 0, len(raw))
	for i, elem := range raw {
		m, ok := elem.(map[string]interface{})
		if !ok {
			closeAll()
			return nil, nil, &errors.ConfigError{StepType: "llm_generate", Field: fmt.Sprintf("mcp_servers[%d]", i), Message: fmt.Sprintf("expected mapping, got %T", elem)}
		}
		rendered, err := renderer.RenderValue(m, rc)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		cfg, err := mcpclient.ConfigFromMap(rendered.(map[string]interface{}))
		if err != nil {
			closeAll()
			return nil, nil, &errors.ConfigError{StepType: "llm_generate", Field: fmt.Sprintf("mcp_servers[%d]", i), Message: err.Error()}
		}
		client, err := mcpclient.Connect(ctx, cfg)
		if err != nil {
			closeAll()
			return nil, nil, err
		}
		clients = append(clients, client)
		servers = append(servers, &toolServer{client: client})
	}
	return servers, closeAll, nil
}

// loadHistory reads prior turns from messages_key, if configured.
func (s *Step) loadHistory(rc *recipe.Context) ([]llm.Message, error) {
	if s.messagesKey == "" || !rc.Contains(s.messagesKey) {
		return nil, nil
	}
	value, err := rc.Get(s.messagesKey)
	if err != nil {
		return nil, err
	}

	switch v := value.(type) {
	case []llm.Message:
		return v, nil
	case []interface{}:
		messages := make([]llm.Message, 0, len(v))
		for i, elem := range v {
			m, ok := elem.(map[string]interface{})
			if !ok {
				return nil, &errors.ConfigError{StepType: "llm_generate", Field: "messages_key", Message: fmt.Sprintf("turn %d is %T, expected a message mapping", i, elem)}
			}
			role, _ := m["role"].(string)
			content, _ := m["content"].(string)
			messages = append(messages, llm.Message{Role: llm.MessageRole(role), Content: content})
		}
		return messages, nil
	default:
		return nil, &errors.ConfigError{StepType: "llm_generate", Field: "messages_key", Message: fmt.Sprintf("expected a message list, got %T", value)}
	}
}

// appendHistory stores the conversation including this turn back under
// messages_key.
func (s *Step) appendHistory(rc *recipe.Context, history []llm.Message, prompt, response string) {
	turns := make([]llm.Message, 0, len(history)+2)
	turns = append(turns, history...)
	turns = append(turns,
		llm.Message{Role: llm.MessageRoleUser, Content: prompt},
		llm.Message{Role: llm.MessageRoleAssistant, Content: response},
	)
	rc.Set(s.messagesKey, turns)
}

// toolServer adapts the MCP client to the facade's tool interface.
type toolServer struct {
	client *mcpclient.Client
}

func (t *toolServer) Identifier() string { return t.client.Identifier() }

func (t *toolServer) ListTools(ctx context.Context) ([]llm.Tool, error) {
	defs, err := t.client.ListTools(ctx)
	if err != nil {
		return nil, err
	}
	tools := make([]llm.Tool, 0, len(defs))
	for _, def := range defs {
		tools = append(tools, llm.Tool{
			Name:        def.Name,
			Description: def.Description,
			InputSchema: def.InputSchema,
		})
	}
	return tools, nil
}

func (t *toolServer) CallTool(ctx context.Context, name string, args map[string]interface{}) (interface{}, error) {
	return t.client.CallTool(ctx, name, args)
}

// Register adds the llm_generate step to the executor registry.
func Register() {
	executor.Register("llm_generate", func(logger *slog.Logger, config map[string]interface{}) (executor.Step, error) {
		return New(logger, config)
	})
}
