package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeminiClient_Complete(t *testing.T) {
	tests := []struct {
		name       string
		body       string
		want       string
		statusCode int
		wantErr    bool
	}{
		{
			name:       "successful completion",
			statusCode: http.StatusOK,
			body:       `{"candidates":[{"content":{"role":"model","parts":[{"text":"HS code: "},{"text":"9617.00"}]}}]}`,
			want:       "HS code: 9617.00",
		},
		{
			name:       "no candidates",
			statusCode: http.StatusOK,
			body:       `{"candidates":[]}`,
			wantErr:    true,
		},
		{
			name:       "bad request",
			statusCode: http.StatusBadRequest,
			body:       `{"error":{"message":"API key not valid"}}`,
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/models/gemini-1.5-flash-latest:generateContent", r.URL.Path)
				assert.Equal(t, "gem-key", r.Header.Get("x-goog-api-key"))

				var req geminiRequest
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
				if assert.Len(t, req.Contents, 1) {
					assert.Equal(t, "classify this", req.Contents[0].Parts[0].Text)
				}
				assert.Nil(t, req.SystemInstruction)
				assert.InDelta(t, 0.5, req.GenerationConfig.Temperature, 0.0001)

				w.WriteHeader(tt.statusCode)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client, err := NewClient(Config{Provider: "gemini", APIKey: "gem-key", BaseURL: server.URL})
			require.NoError(t, err)

			got, err := client.Complete(context.Background(), Request{Prompt: "classify this"})
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
