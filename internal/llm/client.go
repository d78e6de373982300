package llm

import (
	"context"
	"time"

	"github.com/Veraticus/tariff/internal/model"
)

// Client defines the interface for LLM providers.
type Client interface {
	// Complete sends one chat-style prompt and returns the text of the reply.
	Complete(ctx context.Context, req Request) (string, error)
	// Backend identifies the provider and model behind this client.
	Backend() model.Backend
}

// Request is a single completion request. Zero Temperature or MaxTokens
// fall back to the client's configured defaults.
type Request struct {
	System      string
	Prompt      string
	Temperature float64
	MaxTokens   int
}

// Config holds configuration for a single backend client.
type Config struct {
	Provider    string
	APIKey      string
	Model       string
	BaseURL     string
	Referer     string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

const (
	defaultTemperature = 0.5
	defaultMaxTokens   = 200
	defaultHTTPTimeout = 90 * time.Second
)

// settings resolves the effective sampling parameters for a request.
func settings(req Request, temperature float64, maxTokens int) (float64, int) {
	if req.Temperature > 0 {
		temperature = req.Temperature
	}
	if req.MaxTokens > 0 {
		maxTokens = req.MaxTokens
	}
	return temperature, maxTokens
}

func withDefaults(cfg Config, model string, maxTokens int) Config {
	if cfg.Model == "" {
		cfg.Model = model
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = defaultTemperature
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = maxTokens
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultHTTPTimeout
	}
	return cfg
}
