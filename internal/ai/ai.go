// Package ai wraps the text-generation backends the assistant can talk to.
package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/keshon/server-companion/internal/config"
)

var (
	ErrEmptyReply   = errors.New("completion returned no text")
	ErrGarbageReply = errors.New("completion returned unusable text")
	ErrUnsupported  = errors.New("unsupported AI provider")
)

// Completer turns a prompt into a single reply.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
	// Name is shown to users next to the reply.
	Name() string
}

// New builds the Completer selected by cfg.AIProvider.
func New(ctx context.Context, cfg *config.Config) (Completer, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.AIProvider))
	switch provider {
	case "", "pollinations", "g4f", "openai":
		if provider == "" {
			provider = "pollinations"
		}
		return NewOpenAICompatible(provider, cfg.AIModel, cfg.AIBaseURL, cfg.OpenAIAPIKey)
	case "gemini":
		return NewGemini(ctx, cfg.AIModel, cfg.GeminiAPIKey)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupported, cfg.AIProvider)
	}
}

// finish cleans raw model output and rejects replies that are not worth posting.
func finish(provider, raw string) (string, error) {
	reply := cleanReply(raw)
	if reply == "" {
		return "", fmt.Errorf("%s: %w", provider, ErrEmptyReply)
	}
	if isGarbageResponse(reply) {
		return "", fmt.Errorf("%s: %w", provider, ErrGarbageReply)
	}
	return reply, nil
}
