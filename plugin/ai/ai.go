package ai

import (
	"context"

	"github.com/pkg/errors"

	"github.com/murmurchat/murmur/internal/profile"
)

// Role is the author of a message in a conversation.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one turn of a conversation.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// Generator produces a completion for prompt, given the prior turns as context.
type Generator interface {
	Generate(ctx context.Context, prompt string, history []Message) (string, error)
}

// ErrNotConfigured is returned by NewGenerator when no API key is set.
var ErrNotConfigured = errors.New("AI generation is not configured")

const systemInstruction = "You are a helpful AI assistant. Answer clearly and concisely."

// NewGenerator builds the generator selected by the profile.
func NewGenerator(ctx context.Context, p *profile.Profile) (Generator, error) {
	if p.AIAPIKey == "" {
		return nil, ErrNotConfigured
	}
	switch p.AIProvider {
	case "gemini":
		return NewGeminiGenerator(ctx, p.AIAPIKey, p.AIBaseURL, p.AIModel)
	case "openai":
		return NewOpenAIGenerator(p.AIAPIKey, p.AIBaseURL, p.AIModel)
	default:
		return nil, errors.Errorf("unsupported AI provider %q", p.AIProvider)
	}
}
