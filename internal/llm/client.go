package llm

import (
	"context"
	"fmt"

	"github.com/jpender/revisit/internal/config"
)

// Client is the interface for LLM completion providers. Implementations
// enforce their own timeouts; callers treat any error as "no result".
type Client interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// NewClient creates an LLM client from config. An empty provider returns
// (nil, nil): LLM-backed producers are simply disabled.
func NewClient(cfg config.LLMConfig) (Client, error) {
	switch cfg.Provider {
	case "":
		return nil, nil
	case "anthropic":
		if cfg.AnthropicKey == "" {
			return nil, fmt.Errorf("anthropic provider requires an API key")
		}
		model := cfg.Model
		if model == "" {
			model = "claude-haiku-4-5-20251001"
		}
		return NewAnthropic(cfg.AnthropicKey, model), nil
	case "ollama":
		url := cfg.OllamaURL
		if url == "" {
			url = "http://localhost:11434"
		}
		model := cfg.OllamaModel
		if model == "" {
			model = "llama3.2"
		}
		return NewOllama(url, model), nil
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q", cfg.Provider)
	}
}
