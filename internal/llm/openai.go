package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/Veraticus/tariff/internal/common"
	"github.com/Veraticus/tariff/internal/model"
)

// openAIClient implements the Client interface for OpenAI-compatible chat
// completion APIs. Groq and OpenRouter speak the same protocol.
type openAIClient struct {
	httpClient  *http.Client
	headers     map[string]string
	vendor      string
	provider    string
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

// openAIResponse represents the chat completion response structure.
type openAIResponse struct {
	ID      string `json:"id"`
	Object  string `json:"object"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
		Index        int    `json:"index"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage"`
	Created int64 `json:"created"`
}

// newOpenAIClient creates a new OpenAI API client.
func newOpenAIClient(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	cfg = withDefaults(cfg, "gpt-4-turbo-preview", defaultMaxTokens)
	return newChatCompletionsClient(cfg, "OpenAI", "openai", "https://api.openai.com/v1", nil), nil
}

// newGroqClient creates a client for Groq's OpenAI-compatible endpoint.
func newGroqClient(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("groq API key is required")
	}
	cfg = withDefaults(cfg, "llama3-8b-8192", defaultMaxTokens)
	return newChatCompletionsClient(cfg, "Groq", "groq", "https://api.groq.com/openai/v1", nil), nil
}

// newOpenRouterClient creates a client for the OpenRouter gateway.
func newOpenRouterClient(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenRouter API key is required")
	}
	cfg = withDefaults(cfg, "openai/gpt-4-turbo-preview", 1024)

	headers := map[string]string{}
	if cfg.Referer != "" {
		headers["HTTP-Referer"] = cfg.Referer
	}
	return newChatCompletionsClient(cfg, "OpenRouter", "openrouter", "https://openrouter.ai/api/v1", headers), nil
}

func newChatCompletionsClient(cfg Config, vendor, provider, defaultBaseURL string, headers map[string]string) *openAIClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if headers == nil {
		headers = map[string]string{}
	}
	headers["Authorization"] = "Bearer " + cfg.APIKey

	return &openAIClient{
		vendor:      vendor,
		provider:    provider,
		baseURL:     strings.TrimRight(baseURL, "/"),
		headers:     headers,
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		httpClient:  newHTTPClient(cfg.Timeout),
	}
}

// Backend identifies the provider and model.
func (c *openAIClient) Backend() model.Backend {
	return model.Backend{Provider: c.provider, Model: c.model}
}

// Complete sends a chat completion request.
func (c *openAIClient) Complete(ctx context.Context, req Request) (string, error) {
	temperature, maxTokens := settings(req, c.temperature, c.maxTokens)

	messages := make([]chatMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	var response openAIResponse
	err := postJSON(ctx, c.httpClient, c.vendor, c.baseURL+"/chat/completions", c.headers, chatRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}, &response)
	if err != nil {
		return "", err
	}

	if len(response.Choices) == 0 {
		return "", fmt.Errorf("%w: no completion choices returned", common.ErrEmptyResponse)
	}

	return strings.TrimSpace(response.Choices[0].Message.Content), nil
}
