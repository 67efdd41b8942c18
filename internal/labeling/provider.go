package labeling

import (
	"context"
	"fmt"
	"strings"
)

// Provider is one concrete LLM backend able to answer a single batched
// labeling prompt. Implementations must be safe for concurrent use.
type Provider interface {
	Name() string
	Model() string
	Available() bool
	Complete(ctx context.Context, prompt string) (string, error)
}

// NewProvider builds the configured backend. A nil Provider (with nil error)
// means labeling is disabled and builds run lexical-only.
func NewProvider(provider, model, apiKey, baseURL string) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(provider)) {
	case "", "disabled", "none", "off":
		return nil, nil
	case "openai":
		return newOpenAIProvider(model, apiKey, baseURL), nil
	case "anthropic":
		return newAnthropicProvider(model, apiKey), nil
	case "ollama":
		return newOllamaProvider(model, baseURL), nil
	default:
		return nil, fmt.Errorf("unknown llm provider %q", provider)
	}
}
