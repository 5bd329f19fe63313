package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	vigilerrors "github.com/vigil-ai/vigil/pkg/errors"
)

func TestClientGenerate(t *testing.T) {
	mock := &MockProvider{Response: "  generated text  "}
	client := NewClient(mock, "test-model", 0.2)

	out, err := client.Generate(context.Background(), "hello")
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if out != "generated text" {
		t.Fatalf("expected trimmed response, got %q", out)
	}
}

func TestClientGenerateFailure(t *testing.T) {
	client := NewClient(&FailingMockProvider{}, "test-model", 0)

	_, err := client.Generate(context.Background(), "hello")
	if err == nil {
		t.Fatal("expected error")
	}
	ve := vigilerrors.AsVigilError(err)
	if ve.Code != vigilerrors.CodeGenerationFailure {
		t.Fatalf("expected CodeGenerationFailure, got %v", ve.Code)
	}
	if !ve.Recoverable {
		t.Fatal("generation failures should be recoverable")
	}
}

func TestClientGenerateEmptyResponse(t *testing.T) {
	client := NewClient(&MockProvider{Response: "   "}, "test-model", 0)
	if _, err := client.Generate(context.Background(), "hello"); err == nil {
		t.Fatal("expected error for empty response")
	}
}

func TestClientGenerateNoProvider(t *testing.T) {
	var client *Client
	if _, err := client.Generate(context.Background(), "hello"); err == nil {
		t.Fatal("expected error for nil client")
	}
}

func TestMockProviderRecordsRequests(t *testing.T) {
	mock := &MockProvider{Response: "ok"}
	client := NewClient(mock, "test-model", 0)

	if _, err := client.Generate(context.Background(), "첫 번째 질문입니다"); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if mock.Calls != 1 {
		t.Fatalf("expected 1 call, got %d", mock.Calls)
	}
	if mock.LastRequest == nil || len(mock.LastRequest.Messages) == 0 {
		t.Fatal("expected recorded request")
	}
	last := mock.LastRequest.Messages[len(mock.LastRequest.Messages)-1]
	if last.Content != "첫 번째 질문입니다" {
		t.Fatalf("unexpected recorded prompt %q", last.Content)
	}
	resp, err := mock.Chat(context.Background(), *mock.LastRequest)
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if resp.Usage.TotalTokens == 0 {
		t.Fatal("expected approximated usage")
	}
}

func TestScriptedMockProvider(t *testing.T) {
	scripted := NewScriptedMockProvider("first", "second")

	resp, err := scripted.Chat(context.Background(), ChatRequest{
		Messages: []Message{{Role: RoleUser, Content: "q1"}},
	})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if resp.Content != "first" {
		t.Fatalf("expected first response, got %q", resp.Content)
	}

	resp, _ = scripted.Chat(context.Background(), ChatRequest{
		Messages: []Message{{Role: RoleUser, Content: "q2"}},
	})
	if resp.Content != "second" {
		t.Fatalf("expected second response, got %q", resp.Content)
	}

	if _, err := scripted.Chat(context.Background(), ChatRequest{}); err == nil {
		t.Fatal("expected error when responses are exhausted")
	}
	if scripted.CallCount != 3 {
		t.Fatalf("expected 3 calls, got %d", scripted.CallCount)
	}
	if scripted.LastPrompt() != "q2" {
		t.Fatalf("expected last prompt q2, got %q", scripted.LastPrompt())
	}
}

func TestOllamaChat(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var req ollamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Stream {
			t.Error("expected non-streaming request")
		}
		if len(req.Messages) != 1 || len(req.Messages[0].Images) != 1 {
			t.Errorf("expected one message with one image, got %+v", req.Messages)
		}
		json.NewEncoder(w).Encode(ollamaResponse{
			Message:         Message{Role: RoleAssistant, Content: "ok"},
			Done:            true,
			EvalCount:       5,
			PromptEvalCount: 7,
		})
	}))
	defer srv.Close()

	provider := NewOllama(srv.URL)
	resp, err := provider.Chat(context.Background(), ChatRequest{
		Model: "test",
		Messages: []Message{
			{Role: RoleUser, Content: "analyze", Images: []string{"aGVsbG8="}},
		},
	})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if resp.Content != "ok" {
		t.Fatalf("unexpected content %q", resp.Content)
	}
	if resp.Usage.TotalTokens != 12 {
		t.Fatalf("unexpected usage %+v", resp.Usage)
	}
}

func TestOllamaChatHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	provider := NewOllama(srv.URL)
	if _, err := provider.Chat(context.Background(), ChatRequest{Model: "test"}); err == nil {
		t.Fatal("expected error on non-200 status")
	}
}
