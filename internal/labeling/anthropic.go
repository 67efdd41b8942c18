package labeling

import (
	"context"
	"fmt"

	"github.com/liushuangls/go-anthropic/v2"
)

type anthropicProvider struct {
	client *anthropic.Client
	model  string
	hasKey bool
}

func newAnthropicProvider(model, apiKey string) *anthropicProvider {
	return &anthropicProvider{
		client: anthropic.NewClient(apiKey),
		model:  model,
		hasKey: apiKey != "",
	}
}

func (p *anthropicProvider) Name() string    { return "anthropic" }
func (p *anthropicProvider) Model() string   { return p.model }
func (p *anthropicProvider) Available() bool { return p.hasKey }

func (p *anthropicProvider) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := p.client.CreateMessages(ctx, anthropic.MessagesRequest{
		Model: anthropic.Model(p.model),
		Messages: []anthropic.Message{
			{
				Role: anthropic.RoleUser,
				Content: []anthropic.MessageContent{
					anthropic.NewTextMessageContent(prompt),
				},
			},
		},
		// Batched label sets run long; leave generous budget.
		MaxTokens: 8192,
	})
	if err != nil {
		return "", fmt.Errorf("anthropic create messages: %w", err)
	}
	if len(resp.Content) == 0 || resp.Content[0].Text == nil {
		return "", fmt.Errorf("anthropic returned no content")
	}
	return *resp.Content[0].Text, nil
}
