package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/recipekit/recipekit/pkg/llm"
)

// openaiAPIBaseURL is the base URL for the OpenAI API
const openaiAPIBaseURL = "https://api.openai.com/v1"

// OpenAIProvider implements the Provider interface for OpenAI's
// chat-completions API.
type OpenAIProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewOpenAIProvider creates a new OpenAI provider instance.
func NewOpenAIProvider(apiKey, baseURL string) (*OpenAIProvider, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("openai api key is required")
	}
	if baseURL == "" {
		baseURL = openaiAPIBaseURL
	}
	return &OpenAIProvider{
		apiKey:     apiKey,
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: newHTTPClient(),
	}, nil
}

// Name returns the provider identifier.
func (p *OpenAIProvider) Name() string { return "openai" }

// The chat-completions wire format is shared with Azure OpenAI, which
// serves the same API behind deployment-scoped URLs.

type openaiChatRequest struct {
	Model     string          `json:"model,omitempty"`
	Messages  []openaiMessage `json:"messages"`
	MaxTokens *int            `json:"max_tokens,omitempty"`
	Tools     []openaiTool    `json:"tools,omitempty"`
}

type openaiMessage struct {
	Role       string           `json:"role"`
	Content    string           `json:"content"`
	ToolCalls  []openaiToolCall `json:"tool_calls,omitempty"`
	ToolCallID string           `json:"tool_call_id,omitempty"`
}

type openaiToolCall struct {
	ID       string             `json:"id"`
	Type     string             `json:"type"`
	Function openaiFunctionCall `json:"function"`
}

type openaiFunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

type openaiTool struct {
	Type     string            `json:"type"`
	Function openaiFunctionDef `json:"function"`
}

type openaiFunctionDef struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description,omitempty"`
	Parameters  map[string]interface{} `json:"parameters"`
}

type openaiChatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message      openaiMessage `json:"message"`
		FinishReason string        `json:"finish_reason"`
	} `json:"choices"`
}

// Complete sends a synchronous chat-completions request.
func (p *OpenAIProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("completion request must have at least one message")
	}

	requestID := uuid.New().String()
	apiReq := buildOpenAIRequest(req)
	apiReq.Model = req.Model

	var apiResp openaiChatResponse
	headers := map[string]string{
		"Authorization": "Bearer " + p.apiKey,
	}
	if err := postJSON(ctx, p.httpClient, p.baseURL+"/chat/completions", headers, apiReq, &apiResp); err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}

	return parseOpenAIResponse(&apiResp, requestID)
}

// buildOpenAIRequest converts a CompletionRequest to the chat-completions
// shape, leaving the model field for the caller (Azure routes it through
// the URL instead).
func buildOpenAIRequest(req llm.CompletionRequest) *openaiChatRequest {
	messages := make([]openaiMessage, 0, len(req.Messages))
	for _, msg := range req.Messages {
		apiMsg := openaiMessage{
			Role:       string(msg.Role),
			Content:    msg.Content,
			ToolCallID: msg.ToolCallID,
		}
		for _, tc := range msg.ToolCalls {
			apiMsg.ToolCalls = append(apiMsg.ToolCalls, openaiToolCall{
				ID:   tc.ID,
				Type: "function",
				Function: openaiFunctionCall{
					Name:      tc.Name,
					Arguments: tc.Arguments,
				},
			})
		}
		messages = append(messages, apiMsg)
	}

	var tools []openaiTool
	for _, tool := range req.Tools {
		tools = append(tools, openaiTool{
			Type: "function",
			Function: openaiFunctionDef{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  tool.InputSchema,
			},
		})
	}

	return &openaiChatRequest{
		Messages:  messages,
		MaxTokens: req.MaxTokens,
		Tools:     tools,
	}
}

// parseOpenAIResponse extracts the first choice into a CompletionResponse.
func parseOpenAIResponse(resp *openaiChatResponse, requestID string) (*llm.CompletionResponse, error) {
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("response contained no choices")
	}

	choice := resp.Choices[0].Message
	var toolCalls []llm.ToolCall
	for _, tc := range choice.ToolCalls {
		toolCalls = append(toolCalls, llm.ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}

	return &llm.CompletionResponse{
		Content:   choice.Content,
		ToolCalls: toolCalls,
		Model:     resp.Model,
		RequestID: requestID,
	}, nil
}
