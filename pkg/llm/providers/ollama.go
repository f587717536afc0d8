package providers

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/recipekit/recipekit/pkg/llm"
)

// ollamaDefaultBaseURL is the default local Ollama server address.
const ollamaDefaultBaseURL = "http://localhost:11434"

// OllamaProvider implements the Provider interface for a local Ollama
// server. Tool definitions in the request are ignored; local models
// served this way do not take part in the tool loop.
type OllamaProvider struct {
	baseURL    string
	httpClient *http.Client
}

// NewOllamaProvider creates a new Ollama provider instance. No
// credentials are required.
func NewOllamaProvider(baseURL string) *OllamaProvider {
	if baseURL == "" {
		baseURL = ollamaDefaultBaseURL
	}
	return &OllamaProvider{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: newHTTPClient(),
	}
}

// Name returns the provider identifier.
func (p *OllamaProvider) Name() string { return "ollama" }

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Options  *ollamaOptions  `json:"options,omitempty"`
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaOptions struct {
	NumPredict int `json:"num_predict,omitempty"`
}

type ollamaChatResponse struct {
	Model   string        `json:"model"`
	Message ollamaMessage `json:"message"`
	Done    bool          `json:"done"`
}

// Complete sends a synchronous chat request to the Ollama server.
func (p *OllamaProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("completion request must have at least one message")
	}

	requestID := uuid.New().String()

	messages := make([]ollamaMessage, 0, len(req.Messages))
	for _, msg := range req.Messages {
		role := string(msg.Role)
		// The /api/chat endpoint has no tool role; fold tool results into
		// user turns so conversation replay still works.
		if msg.Role == llm.MessageRoleTool {
			role = "user"
		}
		messages = append(messages, ollamaMessage{Role: role, Content: msg.Content})
	}

	apiReq := &ollamaChatRequest{
		Model:    req.Model,
		Messages: messages,
		Stream:   false,
	}
	if req.MaxTokens != nil {
		apiReq.Options = &ollamaOptions{NumPredict: *req.MaxTokens}
	}

	var apiResp ollamaChatResponse
	if err := postJSON(ctx, p.httpClient, p.baseURL+"/api/chat", nil, apiReq, &apiResp); err != nil {
		return nil, fmt.Errorf("ollama: %w", err)
	}

	return &llm.CompletionResponse{
		Content:   apiResp.Message.Content,
		Model:     apiResp.Model,
		RequestID: requestID,
	}, nil
}
