package llm

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jonathan/shabda-setu/internal/config"
)

func TestOptionsFromVerifier(t *testing.T) {
	t.Setenv("TEST_LLM_KEY", "k")

	v := config.DefaultVerifier()
	v.Name = "flash"
	v.Provider = config.ProviderGemini
	v.Model = "gemini-2.5-flash"
	v.APIKeyEnv = "TEST_LLM_KEY"
	v.Timeout = 10 * time.Second

	opts := OptionsFromVerifier(v)
	assert.Equal(t, ProviderGemini, opts.Provider)
	assert.Equal(t, "gemini-2.5-flash", opts.Model)
	assert.Equal(t, "k", opts.APIKey)
	assert.Equal(t, DefaultTemperature, opts.Temperature)
	assert.Equal(t, 20*time.Second, opts.HTTPTimeout)
	assert.NoError(t, opts.Validate())
}

func TestOptionsValidate(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		wantErr string
	}{
		{"missing model", Options{Provider: ProviderGemini, APIKey: "k"}, "model is required"},
		{"gemini without key", Options{Provider: ProviderGemini, Model: "m"}, "API key is required"},
		{"genai without key", Options{Provider: ProviderGenAI, Model: "m"}, "API key is required"},
		{"openai without base url", Options{Provider: ProviderOpenAI, Model: "m"}, "base URL is required"},
		{"unknown provider", Options{Provider: "anthropic", Model: "m"}, "unknown provider"},
		{"openai without key is fine", Options{Provider: ProviderOpenAI, Model: "m", BaseURL: "http://x"}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			assert.ErrorContains(t, err, tt.wantErr)
		})
	}
}
