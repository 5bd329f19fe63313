package llm

import (
	"context"
	"strings"

	"github.com/vigil-ai/vigil/pkg/errors"
)

// Client binds a Provider to a model and temperature so callers can issue
// single-prompt generations without carrying request plumbing around.
type Client struct {
	Provider    Provider
	Model       string
	Temperature float64
}

// NewClient creates a Client for the given provider and model.
func NewClient(provider Provider, model string, temperature float64) *Client {
	return &Client{Provider: provider, Model: model, Temperature: temperature}
}

// Generate sends a single user prompt and returns the raw text response.
// Failures are reported as CodeGenerationFailure and marked recoverable so
// callers can retry once before degrading.
func (c *Client) Generate(ctx context.Context, prompt string, images ...string) (string, error) {
	if c == nil || c.Provider == nil {
		return "", errors.New(errors.CodeGenerationFailure, "no generation provider configured", nil)
	}
	resp, err := c.Provider.Chat(ctx, ChatRequest{
		Model:       c.Model,
		Temperature: c.Temperature,
		Messages: []Message{
			{Role: RoleUser, Content: prompt, Images: images},
		},
	})
	if err != nil {
		return "", errors.New(errors.CodeGenerationFailure, "generation call failed", err).
			WithRecoverable(true)
	}
	content := strings.TrimSpace(resp.Content)
	if content == "" {
		return "", errors.New(errors.CodeGenerationFailure, "generation returned empty response", nil).
			WithRecoverable(true)
	}
	return content, nil
}
