package ai

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/sashabaranov/go-openai"
)

type preset struct {
	baseURL string
	model   string
}

var presets = map[string]preset{
	"pollinations": {baseURL: "https://text.pollinations.ai/openai", model: "openai"},
	"g4f":          {baseURL: "https://g4f.dev/api/gpt-oss-120b", model: "gpt-oss-120b"},
	"openai":       {baseURL: "https://api.openai.com/v1", model: "gpt-4o-mini"},
}

// OpenAICompatible talks to any chat-completions endpoint.
type OpenAICompatible struct {
	name   string
	model  string
	client *openai.Client
}

// NewOpenAICompatible applies the named preset and then the overrides.
// For g4f a model prefixed "groq/" or "ollama/" selects that g4f route.
func NewOpenAICompatible(provider, model, baseURL, apiKey string) (*OpenAICompatible, error) {
	p, ok := presets[provider]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, provider)
	}
	if model == "" {
		model = p.model
	}
	if provider == "g4f" {
		switch {
		case strings.HasPrefix(model, "groq/"):
			p.baseURL = "https://g4f.dev/api/groq"
			model = strings.TrimPrefix(model, "groq/")
		case strings.HasPrefix(model, "ollama/"):
			p.baseURL = "https://g4f.dev/api/ollama"
			model = strings.TrimPrefix(model, "ollama/")
		}
	}
	if baseURL != "" {
		p.baseURL = baseURL
	}
	if provider == "openai" && apiKey == "" {
		return nil, fmt.Errorf("openai provider requires OPENAI_API_KEY")
	}

	cfg := openai.DefaultConfig(apiKey)
	cfg.BaseURL = strings.TrimSuffix(p.baseURL, "/")
	return &OpenAICompatible{
		name:   provider,
		model:  model,
		client: openai.NewClientWithConfig(cfg),
	}, nil
}

func (c *OpenAICompatible) Name() string { return c.name }

func (c *OpenAICompatible) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: c.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("%s completion: %w", c.name, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: %w", c.name, ErrEmptyReply)
	}
	return finish(c.name, resp.Choices[0].Message.Content)
}
