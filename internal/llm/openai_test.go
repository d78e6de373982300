package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Veraticus/tariff/internal/common"
)

func TestNewOpenAIClient(t *testing.T) {
	tests := []struct {
		name    string
		config  Config
		wantErr bool
	}{
		{
			name:    "valid config",
			config:  Config{APIKey: "test-key"},
			wantErr: false,
		},
		{
			name:    "missing API key",
			config:  Config{APIKey: ""},
			wantErr: true,
		},
		{
			name: "custom model and settings",
			config: Config{
				APIKey:      "test-key",
				Model:       "gpt-4",
				Temperature: 0.2,
				MaxTokens:   300,
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := newOpenAIClient(tt.config)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, client)
		})
	}
}

func TestOpenAIClient_Complete(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		want       string
		statusCode int
		wantIs     error
		wantErr    bool
		retryable  bool
	}{
		{
			name:       "successful completion",
			statusCode: http.StatusOK,
			body:       `{"choices":[{"message":{"role":"assistant","content":"  HS Code: 7323.93\nStainless steel household articles.  "}}]}`,
			want:       "HS Code: 7323.93\nStainless steel household articles.",
		},
		{
			name:       "server error",
			statusCode: http.StatusInternalServerError,
			body:       `{"error":"boom"}`,
			wantErr:    true,
			wantIs:     common.ErrBackendUnavailable,
			retryable:  true,
		},
		{
			name:       "unauthorized",
			statusCode: http.StatusUnauthorized,
			body:       `{"error":"bad key"}`,
			wantErr:    true,
		},
		{
			name:       "rate limited",
			statusCode: http.StatusTooManyRequests,
			body:       `{"error":"slow down"}`,
			wantErr:    true,
			wantIs:     common.ErrRateLimit,
			retryable:  true,
		},
		{
			name:       "malformed body",
			statusCode: http.StatusOK,
			body:       `not json`,
			wantErr:    true,
		},
		{
			name:       "no choices",
			statusCode: http.StatusOK,
			body:       `{"choices":[]}`,
			wantErr:    true,
			wantIs:     common.ErrEmptyResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/v1/chat/completions", r.URL.Path)
				assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

				var req chatRequest
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, "gpt-4-turbo-preview", req.Model)
				assert.InDelta(t, 0.5, req.Temperature, 0.0001)
				assert.Equal(t, 200, req.MaxTokens)
				if assert.Len(t, req.Messages, 2) {
					assert.Equal(t, "system", req.Messages[0].Role)
					assert.Equal(t, "user", req.Messages[1].Role)
				}

				w.WriteHeader(tt.statusCode)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client, err := NewClient(Config{Provider: "openai", APIKey: "test-key", BaseURL: server.URL + "/v1"})
			require.NoError(t, err)

			got, err := client.Complete(context.Background(), Request{
				System: "You are an expert in HS code classification.",
				Prompt: "Classify a stainless steel water bottle.",
			})
			if tt.wantErr {
				require.Error(t, err)
				if tt.wantIs != nil {
					assert.ErrorIs(t, err, tt.wantIs)
				}
				assert.Equal(t, tt.retryable, common.IsRetryable(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestOpenAICompatibleProviders(t *testing.T) {
	tests := []struct {
		provider  string
		wantModel string
		wantAuth  string
		referer   string
	}{
		{provider: "groq", wantModel: "llama3-8b-8192", wantAuth: "Bearer groq-key"},
		{provider: "openrouter", wantModel: "openai/gpt-4-turbo-preview", wantAuth: "Bearer openrouter-key", referer: "http://localhost:5000"},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, tt.wantAuth, r.Header.Get("Authorization"))
				assert.Equal(t, tt.referer, r.Header.Get("HTTP-Referer"))

				var req chatRequest
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				assert.Equal(t, tt.wantModel, req.Model)
				assert.Len(t, req.Messages, 1)

				_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"847130"}}]}`))
			}))
			defer server.Close()

			client, err := NewClient(Config{
				Provider: tt.provider,
				APIKey:   tt.provider + "-key",
				BaseURL:  server.URL,
				Referer:  tt.referer,
			})
			require.NoError(t, err)
			assert.Equal(t, tt.provider, client.Backend().Provider)
			assert.Equal(t, tt.wantModel, client.Backend().Model)

			got, err := client.Complete(context.Background(), Request{Prompt: "hello"})
			require.NoError(t, err)
			assert.Equal(t, "847130", got)
		})
	}
}

func TestNewClient_UnsupportedProvider(t *testing.T) {
	_, err := NewClient(Config{Provider: "palm", APIKey: "k"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported LLM provider")
}
