package labeling

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"
)

// openAIProvider speaks the OpenAI chat API. With a base URL override it
// also covers OpenAI-compatible gateways (OpenRouter, vLLM, LM Studio).
type openAIProvider struct {
	client    *openai.Client
	model     string
	available bool
}

func newOpenAIProvider(model, apiKey, baseURL string) *openAIProvider {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &openAIProvider{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		// Compatible local gateways accept requests without a key.
		available: apiKey != "" || baseURL != "",
	}
}

func (p *openAIProvider) Name() string    { return "openai" }
func (p *openAIProvider) Model() string   { return p.model }
func (p *openAIProvider) Available() bool { return p.available }

func (p *openAIProvider) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: p.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleUser,
				Content: prompt,
			},
		},
		Temperature: 0.1,
	})
	if err != nil {
		return "", fmt.Errorf("openai chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}
	return resp.Choices[0].Message.Content, nil
}
