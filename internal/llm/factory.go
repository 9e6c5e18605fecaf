package llm

import (
	"fmt"
	"strings"

	"github.com/ppiankov/veritas/internal/model"
)

// NewProvider creates the configured provider. It returns nil, nil when no
// provider is configured.
func NewProvider(config Config) (Provider, error) {
	switch strings.ToLower(config.Provider) {
	case "openai":
		return wrap(NewOpenAIProvider(config))

	case "anthropic", "claude":
		return wrap(NewAnthropicProvider(config))

	case "ollama":
		return wrap(NewOllamaProvider(config))

	case "":
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai, anthropic, ollama)", config.Provider)
	}
}

// wrap keeps a failed constructor from leaking a typed nil into the interface
func wrap[T Provider](p T, err error) (Provider, error) {
	if err != nil {
		return nil, err
	}
	return p, nil
}

// ConfigFromModel converts the application config into a provider config
func ConfigFromModel(llmCfg model.LLMConfig, httpCfg model.HTTPConfig) Config {
	return Config{
		Provider:   llmCfg.Provider,
		Model:      llmCfg.Model,
		APIKey:     llmCfg.APIKey,
		BaseURL:    llmCfg.BaseURL,
		Timeout:    llmCfg.Timeout,
		MaxTokens:  llmCfg.MaxTokens,
		HTTPProxy:  httpCfg.HTTPProxy,
		HTTPSProxy: httpCfg.HTTPSProxy,
		NoProxy:    httpCfg.NoProxy,
	}
}
