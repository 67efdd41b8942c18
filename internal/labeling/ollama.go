package labeling

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const ollamaDefaultBaseURL = "http://localhost:11434"

// ollamaProvider talks to a local Ollama server directly. The format field
// carries a JSON schema so small local models stay on the strict label shape.
type ollamaProvider struct {
	baseURL string
	model   string
	httpc   *http.Client
}

func newOllamaProvider(model, baseURL string) *ollamaProvider {
	if baseURL == "" {
		baseURL = ollamaDefaultBaseURL
	}
	return &ollamaProvider{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		httpc:   &http.Client{Timeout: 120 * time.Second},
	}
}

func (p *ollamaProvider) Name() string  { return "ollama" }
func (p *ollamaProvider) Model() string { return p.model }

// Available pings the server; a labeling pass is pointless when nothing is
// listening.
func (p *ollamaProvider) Available() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}
	resp, err := p.httpc.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

type ollamaMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string          `json:"model"`
	Messages []ollamaMessage `json:"messages"`
	Stream   bool            `json:"stream"`
	Format   *schema         `json:"format,omitempty"`
}

type ollamaChatResponse struct {
	Message ollamaMessage `json:"message"`
}

func (p *ollamaProvider) Complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(ollamaChatRequest{
		Model:    p.model,
		Messages: []ollamaMessage{{Role: "user", Content: prompt}},
		Stream:   false,
		Format:   labelSchema(),
	})
	if err != nil {
		return "", fmt.Errorf("encoding chat request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("building chat request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.httpc.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling ollama: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("ollama chat returned %d: %s", resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var parsed ollamaChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decoding chat response: %w", err)
	}
	return parsed.Message.Content, nil
}

// schema mirrors the JSON-schema subset Ollama accepts as a format constraint.
type schema struct {
	Type       string                    `json:"type"`
	Properties map[string]schemaProperty `json:"properties,omitempty"`
	Required   []string                  `json:"required,omitempty"`
}

type schemaProperty struct {
	Type       string                    `json:"type"`
	Enum       []string                  `json:"enum,omitempty"`
	Items      *schema                   `json:"items,omitempty"`
	Properties map[string]schemaProperty `json:"properties,omitempty"`
	Required   []string                  `json:"required,omitempty"`
}

func labelSchema() *schema {
	return &schema{
		Type: "object",
		Properties: map[string]schemaProperty{
			"labels": {
				Type: "array",
				Items: &schema{
					Type: "object",
					Properties: map[string]schemaProperty{
						"id":      {Type: "string"},
						"topic":   {Type: "string"},
						"trend":   {Type: "string", Enum: []string{"UP", "DOWN", "NEUTRAL"}},
						"urgency": {Type: "string", Enum: []string{"LOW", "MEDIUM", "HIGH", "CRITICAL"}},
						"keywords": {
							Type:  "array",
							Items: &schema{Type: "string"},
						},
					},
					Required: []string{"id", "topic"},
				},
			},
		},
		Required: []string{"labels"},
	}
}
