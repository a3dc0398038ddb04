package llm

import (
	"context"
	"fmt"
	"strings"

	gogenai "google.golang.org/genai"
)

// GenAIClient implements Client on the google.golang.org/genai SDK
type GenAIClient struct {
	client *gogenai.Client
	opts   Options
}

// NewGenAIClient creates a client against the Gemini API backend
func NewGenAIClient(ctx context.Context, opts Options) (*GenAIClient, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}

	client, err := gogenai.NewClient(ctx, &gogenai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: gogenai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &GenAIClient{client: client, opts: opts}, nil
}

// GenerateJSON generates JSON content with the configured model
func (c *GenAIClient) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.opts.Model, gogenai.Text(prompt), &gogenai.GenerateContentConfig{
		Temperature:      gogenai.Ptr(c.opts.Temperature),
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}

	text := resp.Text()
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("no text parts in response")
	}
	return text, nil
}

// Model returns the model name
func (c *GenAIClient) Model() string {
	return c.opts.Model
}

// Close is a no-op; the SDK client holds no closable resources
func (c *GenAIClient) Close() error {
	return nil
}
