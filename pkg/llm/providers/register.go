package providers

import (
	"github.com/recipekit/recipekit/pkg/llm"
)

// Register wires all built-in providers into the llm registry. Each
// factory reads its credentials from the context config; env_mask
// surfaces them under their environment-variable names, so both the
// lowercase config key and the uppercase env name are tried.
func Register() {
	llm.RegisterProvider("openai", func(config map[string]interface{}) (llm.Provider, error) {
		return NewOpenAIProvider(
			llm.ConfigString(config, "openai_api_key", "OPENAI_API_KEY"),
			llm.ConfigString(config, "openai_base_url", "OPENAI_BASE_URL"),
		)
	})

	llm.RegisterProvider("anthropic", func(config map[string]interface{}) (llm.Provider, error) {
		return NewAnthropicProvider(
			llm.ConfigString(config, "anthropic_api_key", "ANTHROPIC_API_KEY"),
			llm.ConfigString(config, "anthropic_base_url", "ANTHROPIC_BASE_URL"),
		)
	})

	llm.RegisterProvider("azure", func(config map[string]interface{}) (llm.Provider, error) {
		return NewAzureProvider(
			llm.ConfigString(config, "azure_openai_endpoint", "AZURE_OPENAI_ENDPOINT"),
			llm.ConfigString(config, "azure_openai_api_key", "AZURE_OPENAI_API_KEY"),
		)
	})

	llm.RegisterProvider("ollama", func(config map[string]interface{}) (llm.Provider, error) {
		return NewOllamaProvider(
			llm.ConfigString(config, "ollama_base_url", "OLLAMA_BASE_URL"),
		), nil
	})
}
