package ai

import (
	"context"
	"fmt"
)

// Provider rates a page digest against the user's criteria
type Provider interface {
	Assess(ctx context.Context, page Page, criteria string) (*Assessment, error)
}

// NewProvider creates a new AI provider based on the provider name
func NewProvider(name, model string) (Provider, error) {
	switch name {
	case "claude", "anthropic":
		return NewClaudeProvider(model)
	case "openai", "gpt":
		return NewOpenAIProvider(model)
	default:
		return nil, fmt.Errorf("unknown provider: %s (supported: claude, openai)", name)
	}
}
