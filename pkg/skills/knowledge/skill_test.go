package knowledge

import (
	"context"
	"strings"
	"testing"

	"github.com/vigil-ai/vigil/pkg/errors"
	kb "github.com/vigil-ai/vigil/pkg/knowledge"
	"github.com/vigil-ai/vigil/pkg/llm"
	"github.com/vigil-ai/vigil/pkg/skill"
	"github.com/vigil-ai/vigil/pkg/store"
)

func newTestSkill(provider llm.Provider, opts ...Option) *Skill {
	var client *llm.Client
	if provider != nil {
		client = llm.NewClient(provider, "test-model", 0.0)
	}
	return New(kb.NewStaticRetriever(kb.DefaultDocuments()), client, opts...)
}

type failingRetriever struct{}

func (failingRetriever) Retrieve(ctx context.Context, query string, limit int) ([]kb.Snippet, error) {
	return nil, errors.New(errors.CodeRetrievalError, "vector store unavailable", nil)
}

func TestSearchKnowledge(t *testing.T) {
	s := newTestSkill(nil)

	result, err := s.Execute(context.Background(), "search_knowledge", skill.Context{
		skill.KeyQuery: "안전모 미착용 조치",
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result["total_results"].(int) == 0 {
		t.Fatalf("expected matches for helmet query, got %v", result)
	}
	rendered := result.Render()
	if !strings.Contains(rendered, "안전모") {
		t.Fatalf("top snippet not rendered:\n%s", rendered)
	}
}

func TestSearchKnowledgeNoMatch(t *testing.T) {
	s := newTestSkill(nil)

	result, err := s.Execute(context.Background(), "search_knowledge", skill.Context{
		skill.KeyQuery: "quantum chromodynamics",
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result["total_results"] != 0 {
		t.Fatalf("expected no matches, got %v", result["total_results"])
	}
	if result.Render() != noResultsMessage {
		t.Fatalf("expected no-results message, got %q", result.Render())
	}
}

func TestActionGuide(t *testing.T) {
	s := newTestSkill(nil)

	result, err := s.Execute(context.Background(), "get_action_guide", skill.Context{
		skill.KeyQuery: "낙상 발생 시 조치",
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result["event_type"] != store.EventFallDetected {
		t.Fatalf("unexpected event type: %v", result["event_type"])
	}
	guide := result["guide"].(string)
	if !strings.Contains(guide, "119") {
		t.Fatalf("expected the fall guide, got:\n%s", guide)
	}
	if result.Render() != guide {
		t.Fatalf("guide should render directly, got %q", result.Render())
	}
}

func TestSearchRegulations(t *testing.T) {
	s := newTestSkill(nil)

	result, err := s.Execute(context.Background(), "search_regulations", skill.Context{
		skill.KeyQuery: "안전모 착용 규정",
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result["total_results"].(int) == 0 {
		t.Fatalf("expected regulation matches, got %v", result)
	}
	// only regulation-category documents, no action guides
	for _, entry := range result["regulations"].([]any) {
		if entry.(map[string]any)["category"] != "regulation" {
			t.Fatalf("non-regulation snippet leaked: %v", entry)
		}
	}
	if !strings.Contains(result.Render(), "산업안전보건") {
		t.Fatalf("regulation text not rendered:\n%s", result.Render())
	}
}

func TestAnswerQuestion(t *testing.T) {
	mock := &llm.ScriptedMockProvider{Responses: []string{"안전모는 작업 전 반드시 착용해야 합니다."}}
	s := newTestSkill(mock)

	result, err := s.Execute(context.Background(), "answer_question", skill.Context{
		skill.KeyQuery: "안전모 착용 의무가 있나요?",
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result["answer"] != "안전모는 작업 전 반드시 착용해야 합니다." {
		t.Fatalf("unexpected answer: %v", result["answer"])
	}
	if len(result["sources"].([]any)) == 0 {
		t.Fatalf("expected cited sources, got %v", result["sources"])
	}

	prompt := mock.LastPrompt()
	if !strings.Contains(prompt, "[문서 1]") {
		t.Errorf("retrieved context missing from prompt:\n%s", prompt)
	}
	if !strings.Contains(prompt, "안전모 착용 의무가 있나요?") {
		t.Errorf("question missing from prompt:\n%s", prompt)
	}
}

func TestAnswerQuestionWithoutClient(t *testing.T) {
	s := newTestSkill(nil)

	result, err := s.Execute(context.Background(), "answer_question", skill.Context{
		skill.KeyQuery: "안전모 규정 알려줘",
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	// degrades to raw search results
	if _, ok := result["results"]; !ok {
		t.Fatalf("expected search fallback, got %v", result)
	}
}

func TestRetrievalFailurePropagates(t *testing.T) {
	s := New(failingRetriever{}, nil)

	_, err := s.Execute(context.Background(), "search_knowledge", skill.Context{
		skill.KeyQuery: "안전모",
	})
	if errors.CodeOf(err) != errors.CodeRetrievalError {
		t.Fatalf("expected CodeRetrievalError, got %v", err)
	}
}

func TestValidateRequiresQuery(t *testing.T) {
	s := newTestSkill(nil)
	for _, task := range s.TaskNames() {
		if err := s.Validate(task, skill.Context{}); err == nil {
			t.Errorf("task %s: expected validation error without query", task)
		}
	}
	if err := s.Validate("bogus", skill.Context{skill.KeyQuery: "x"}); errors.CodeOf(err) != errors.CodeUnknownTask {
		t.Fatalf("expected CodeUnknownTask, got %v", err)
	}
}
