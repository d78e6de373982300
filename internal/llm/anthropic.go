package llm

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/Veraticus/tariff/internal/common"
	"github.com/Veraticus/tariff/internal/model"
)

// anthropicClient implements the Client interface for Anthropic API.
type anthropicClient struct {
	httpClient  *http.Client
	apiKey      string
	baseURL     string
	model       string
	temperature float64
	maxTokens   int
}

type anthropicRequest struct {
	Model       string        `json:"model"`
	System      string        `json:"system,omitempty"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

// anthropicResponse represents the Anthropic API response structure.
type anthropicResponse struct {
	ID           string `json:"id"`
	Type         string `json:"type"`
	Role         string `json:"role"`
	Model        string `json:"model"`
	StopReason   string `json:"stop_reason"`
	StopSequence string `json:"stop_sequence"`
	Content      []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// newAnthropicClient creates a new Anthropic API client.
func newAnthropicClient(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic API key is required")
	}

	cfg = withDefaults(cfg, "claude-3-5-sonnet-20240620", 1024)

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = "https://api.anthropic.com"
	}

	return &anthropicClient{
		apiKey:      cfg.APIKey,
		baseURL:     strings.TrimRight(baseURL, "/"),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		httpClient:  newHTTPClient(cfg.Timeout),
	}, nil
}

// Backend identifies the provider and model.
func (c *anthropicClient) Backend() model.Backend {
	return model.Backend{Provider: "anthropic", Model: c.model}
}

// Complete sends a messages request to Anthropic.
func (c *anthropicClient) Complete(ctx context.Context, req Request) (string, error) {
	temperature, maxTokens := settings(req, c.temperature, c.maxTokens)

	headers := map[string]string{
		"x-api-key":         c.apiKey,
		"anthropic-version": "2023-06-01",
	}

	var response anthropicResponse
	err := postJSON(ctx, c.httpClient, "anthropic", c.baseURL+"/v1/messages", headers, anthropicRequest{
		Model:       c.model,
		System:      req.System,
		Messages:    []chatMessage{{Role: "user", Content: req.Prompt}},
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}, &response)
	if err != nil {
		return "", err
	}

	if len(response.Content) == 0 {
		return "", fmt.Errorf("%w: no content in response", common.ErrEmptyResponse)
	}

	var sb strings.Builder
	for _, block := range response.Content {
		if block.Type == "text" || block.Type == "" {
			sb.WriteString(block.Text)
		}
	}

	return strings.TrimSpace(sb.String()), nil
}
