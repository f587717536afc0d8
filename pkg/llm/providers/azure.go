package providers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"

	"github.com/recipekit/recipekit/pkg/llm"
)

// azureAPIVersion is the query-string api-version sent on every call.
const azureAPIVersion = "2024-06-01"

// AzureProvider implements the Provider interface for Azure OpenAI.
// It speaks the same chat-completions wire format as OpenAIProvider but
// routes requests to deployment-scoped URLs and authenticates with the
// api-key header.
type AzureProvider struct {
	endpoint   string
	apiKey     string
	httpClient *http.Client
}

// NewAzureProvider creates a new Azure OpenAI provider instance.
func NewAzureProvider(endpoint, apiKey string) (*AzureProvider, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("azure openai endpoint is required")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("azure openai api key is required")
	}
	return &AzureProvider{
		endpoint:   strings.TrimRight(endpoint, "/"),
		apiKey:     apiKey,
		httpClient: newHTTPClient(),
	}, nil
}

// Name returns the provider identifier.
func (p *AzureProvider) Name() string { return "azure" }

// Complete sends a synchronous chat-completions request to the model's
// deployment. When the model identifier carries no deployment segment,
// the deployment name defaults to the model name.
func (p *AzureProvider) Complete(ctx context.Context, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	if len(req.Messages) == 0 {
		return nil, fmt.Errorf("completion request must have at least one message")
	}

	deployment := req.Deployment
	if deployment == "" {
		deployment = req.Model
	}

	requestID := uuid.New().String()
	apiReq := buildOpenAIRequest(req)

	endpoint := fmt.Sprintf("%s/openai/deployments/%s/chat/completions?api-version=%s",
		p.endpoint, url.PathEscape(deployment), azureAPIVersion)

	var apiResp openaiChatResponse
	headers := map[string]string{
		"api-key": p.apiKey,
	}
	if err := postJSON(ctx, p.httpClient, endpoint, headers, apiReq, &apiResp); err != nil {
		return nil, fmt.Errorf("azure: %w", err)
	}

	return parseOpenAIResponse(&apiResp, requestID)
}
