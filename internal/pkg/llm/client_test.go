package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kaizen-comms/backend/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLLMConfig(url string) config.LLMConfig {
	return config.LLMConfig{
		Provider:  ProviderCompatible,
		APIURL:    url,
		APIKey:    "test-key",
		Model:     "gpt-4o-mini",
		MaxTokens: 2000,
		Timeout:   5 * time.Second,
	}
}

var testPrompt = Prompt{System: "You are an expert.", User: "Write: Executive Summary"}

func TestNewClient(t *testing.T) {
	client := NewClient(testLLMConfig("https://api.example.com/v1/"))

	assert.Equal(t, "https://api.example.com/v1", client.BaseURL)
	assert.Equal(t, "test-key", client.APIKey)
	assert.Equal(t, "gpt-4o-mini", client.Model)
	assert.Equal(t, 2000, client.MaxTokens)
	require.NotNil(t, client.Client)
	assert.Equal(t, 5*time.Second, client.Client.Timeout)
	assert.Equal(t, ProviderCompatible, client.Name())
}

func TestClientGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req ChatRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, testPrompt.User, req.Messages[1].Content)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","object":"chat.completion","model":"gpt-4o-mini-2024",` +
			`"choices":[{"index":0,"message":{"role":"assistant","content":"Draft text"},"finish_reason":"stop"}],` +
			`"usage":{"prompt_tokens":10,"completion_tokens":5,"total_tokens":15}}`))
	}))
	defer server.Close()

	c, err := NewClient(testLLMConfig(server.URL)).Generate(context.Background(), testPrompt)
	require.NoError(t, err)
	assert.Equal(t, "Draft text", c.Text)
	assert.Equal(t, "gpt-4o-mini-2024", c.Model)
	assert.Equal(t, Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}, c.Usage)
}

func TestClientGenerateErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		kind   error
	}{
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"Incorrect API key provided"}}`, ErrAuthentication},
		{"forbidden", http.StatusForbidden, `forbidden`, ErrAuthentication},
		{"rate limited", http.StatusTooManyRequests, `{"error":{"message":"You exceeded your current quota"}}`, ErrRateLimited},
		{"server error", http.StatusInternalServerError, `oops`, ErrUpstream},
		{"gateway timeout", http.StatusGatewayTimeout, ``, ErrConnection},
		{"empty choices", http.StatusOK, `{"choices":[]}`, ErrEmptyResponse},
		{"error in body", http.StatusOK, `{"error":{"message":"model overloaded"}}`, ErrUpstream},
		{"invalid body", http.StatusOK, `not json`, ErrUpstream},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&hits, 1)
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			_, err := NewClient(testLLMConfig(server.URL)).Generate(context.Background(), testPrompt)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.kind), "got %v", err)

			var llmErr *Error
			require.True(t, errors.As(err, &llmErr))
			assert.Equal(t, ProviderCompatible, llmErr.Provider)
			assert.Equal(t, int32(1), atomic.LoadInt32(&hits), "no retries")
		})
	}
}

func TestClientConnectionError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	_, err := NewClient(testLLMConfig(url)).Generate(context.Background(), testPrompt)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrConnection)
}
