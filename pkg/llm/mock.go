package llm

import (
	"context"
	"fmt"
	"unicode/utf8"
)

// MockProvider is a canned Provider for tests. The zero value answers
// every chat with an empty response; set Response or Err for a fixed
// outcome, or ChatFunc to take over entirely.
type MockProvider struct {
	Response string
	Err      error
	ChatFunc func(ctx context.Context, req ChatRequest) (*ChatResponse, error)

	// Calls counts Chat invocations.
	Calls int
	// LastRequest holds the most recent request, for prompt assertions.
	LastRequest *ChatRequest
}

func (m *MockProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	m.Calls++
	m.LastRequest = &req
	if m.ChatFunc != nil {
		return m.ChatFunc(ctx, req)
	}
	if m.Err != nil {
		return nil, m.Err
	}
	return &ChatResponse{
		Content: m.Response,
		Usage:   mockUsage(req, m.Response),
	}, nil
}

// FailingMockProvider simulates an unreachable model server.
type FailingMockProvider struct {
	Err error
}

func (f *FailingMockProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	if f.Err == nil {
		return nil, fmt.Errorf("mock error")
	}
	return nil, f.Err
}

// mockUsage approximates the token accounting the ollama provider
// reports, so usage fields are populated without real counts.
func mockUsage(req ChatRequest, response string) Usage {
	prompt := 0
	for _, msg := range req.Messages {
		prompt += utf8.RuneCountInString(msg.Content) / 4
	}
	completion := utf8.RuneCountInString(response) / 4
	return Usage{
		PromptTokens:     prompt,
		CompletionTokens: completion,
		TotalTokens:      prompt + completion,
	}
}
