package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIClient_GenerateJSON(t *testing.T) {
	var got chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"{\"confidence\":0.8}"},"finish_reason":"stop"}]}`))
	}))
	defer server.Close()

	client := NewOpenAIClient(Options{
		Provider:    ProviderOpenAI,
		Model:       "llama3.1:8b",
		BaseURL:     server.URL + "/v1/",
		APIKey:      "secret",
		Temperature: DefaultTemperature,
	})
	defer client.Close()

	out, err := client.GenerateJSON(context.Background(), "verify कर्म")
	require.NoError(t, err)
	assert.Equal(t, `{"confidence":0.8}`, out)

	assert.Equal(t, "llama3.1:8b", got.Model)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "user", got.Messages[0].Role)
	assert.Equal(t, "verify कर्म", got.Messages[0].Content)
	require.NotNil(t, got.ResponseFormat)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
	assert.Equal(t, "llama3.1:8b", client.Model())
}

func TestOpenAIClient_StatusError(t *testing.T) {
	tests := []struct {
		status    int
		retryable bool
	}{
		{http.StatusTooManyRequests, true},
		{http.StatusBadGateway, true},
		{http.StatusUnauthorized, false},
		{http.StatusBadRequest, false},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "nope", tt.status)
			}))
			defer server.Close()

			client := NewOpenAIClient(Options{Provider: ProviderOpenAI, Model: "m", BaseURL: server.URL})
			_, err := client.GenerateJSON(context.Background(), "p")
			require.Error(t, err)

			var statusErr *StatusError
			require.True(t, errors.As(err, &statusErr))
			assert.Equal(t, tt.status, statusErr.StatusCode)
			assert.Equal(t, tt.retryable, statusErr.Retryable())
		})
	}
}

func TestOpenAIClient_EmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	client := NewOpenAIClient(Options{Provider: ProviderOpenAI, Model: "m", BaseURL: server.URL})
	_, err := client.GenerateJSON(context.Background(), "p")
	assert.ErrorContains(t, err, "missing choices")
}

func TestOpenAIClient_HonorsContextDeadline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer server.Close()

	client := NewOpenAIClient(Options{Provider: ProviderOpenAI, Model: "m", BaseURL: server.URL})
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.GenerateJSON(ctx, "p")
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestNewClient_RejectsInvalidOptions(t *testing.T) {
	_, err := NewClient(context.Background(), Options{Provider: ProviderGemini, Model: "m"})
	assert.ErrorContains(t, err, "API key is required")

	c, err := NewClient(context.Background(), Options{Provider: ProviderOpenAI, Model: "m", BaseURL: "http://localhost:1"})
	require.NoError(t, err)
	assert.IsType(t, &OpenAIClient{}, c)
}
