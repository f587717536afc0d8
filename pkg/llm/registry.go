package llm

import (
	"fmt"
	"sync"
)

// ProviderFactory constructs a provider from the context config.
type ProviderFactory func(config map[string]interface{}) (Provider, error)

var (
	factoriesMu sync.RWMutex
	factories   = make(map[string]ProviderFactory)
)

// RegisterProvider adds a provider factory under the given name.
// Re-registration replaces, which tests use to inject mocks.
func RegisterProvider(name string, factory ProviderFactory) {
	factoriesMu.Lock()
	defer factoriesMu.Unlock()
	factories[name] = factory
}

// newProvider constructs the provider registered under name.
func newProvider(name string, config map[string]interface{}) (Provider, error) {
	factoriesMu.RLock()
	factory, ok := factories[name]
	factoriesMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported provider %q (expected openai, azure, anthropic, or ollama)", name)
	}
	return factory(config)
}

// ConfigString reads a string config value, trying each key in order.
// Credentials surfaced via env_mask keep their environment-style names,
// so lookups typically try both "openai_api_key" and "OPENAI_API_KEY".
func ConfigString(config map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if value, ok := config[key].(string); ok && value != "" {
			return value
		}
	}
	return ""
}
