// Package llm provides client abstractions over the LLM backends used as verifiers.
package llm

import (
	"fmt"
	"time"

	"github.com/jonathan/shabda-setu/internal/config"
)

// Provider represents an LLM provider
type Provider string

// Provider constants define supported LLM providers
const (
	// ProviderGemini is Google Gemini through github.com/google/generative-ai-go
	ProviderGemini Provider = config.ProviderGemini
	// ProviderGenAI is Google Gemini through the google.golang.org/genai SDK
	ProviderGenAI Provider = config.ProviderGenAI
	// ProviderOpenAI is any OpenAI-compatible chat completions endpoint
	ProviderOpenAI Provider = config.ProviderOpenAI
)

// DefaultTemperature keeps verifier output stable across calls.
const DefaultTemperature float32 = 0.1

// Options holds what a backend needs to serve one verifier.
type Options struct {
	Provider    Provider
	Model       string
	BaseURL     string
	APIKey      string
	Temperature float32
	HTTPTimeout time.Duration // transport-level ceiling; callers bound each attempt with a context deadline
}

// OptionsFromVerifier maps a verifier's configuration onto backend options.
func OptionsFromVerifier(v config.VerifierConfig) Options {
	return Options{
		Provider:    Provider(v.Provider),
		Model:       v.Model,
		BaseURL:     v.BaseURL,
		APIKey:      v.APIKey(),
		Temperature: DefaultTemperature,
		HTTPTimeout: 2 * v.Timeout,
	}
}

// Validate checks the options a provider requires.
func (o Options) Validate() error {
	if o.Model == "" {
		return fmt.Errorf("model is required")
	}
	switch o.Provider {
	case ProviderGemini, ProviderGenAI:
		if o.APIKey == "" {
			return fmt.Errorf("API key is required for provider %s", o.Provider)
		}
	case ProviderOpenAI:
		if o.BaseURL == "" {
			return fmt.Errorf("base URL is required for provider %s", o.Provider)
		}
	default:
		return fmt.Errorf("unknown provider %q", o.Provider)
	}
	return nil
}
