package llm

import (
	"fmt"
	"strings"
)

// NewClient creates an LLM client based on the provided configuration.
func NewClient(cfg Config) (Client, error) {
	switch strings.ToLower(cfg.Provider) {
	case "openai":
		return newOpenAIClient(cfg)
	case "anthropic", "claude":
		return newAnthropicClient(cfg)
	case "gemini":
		return newGeminiClient(cfg)
	case "groq":
		return newGroqClient(cfg)
	case "openrouter":
		return newOpenRouterClient(cfg)
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", cfg.Provider)
	}
}
