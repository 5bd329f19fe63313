// Package knowledge implements the knowledge skill: safety knowledge
// base search, per-event action guides, regulation lookup and
// retrieval-grounded question answering.
package knowledge

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vigil-ai/vigil/pkg/errors"
	kb "github.com/vigil-ai/vigil/pkg/knowledge"
	"github.com/vigil-ai/vigil/pkg/llm"
	"github.com/vigil-ai/vigil/pkg/skill"
	"github.com/vigil-ai/vigil/pkg/store"
)

// Name is the registry name of this skill.
const Name = "knowledge"

const noResultsMessage = "관련 정보를 찾을 수 없습니다."

// Skill answers questions from the safety knowledge base.
type Skill struct {
	retriever kb.Retriever
	client    *llm.Client
	limit     int
	logger    *slog.Logger
}

// Option configures the knowledge skill.
type Option func(*Skill)

// WithLimit caps how many snippets a search returns. Default 3.
func WithLimit(limit int) Option {
	return func(s *Skill) { s.limit = limit }
}

// WithLogger sets the skill's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Skill) { s.logger = logger }
}

// New builds the knowledge skill. The client is only needed for
// answer_question; passing nil disables that task gracefully.
func New(retriever kb.Retriever, client *llm.Client, opts ...Option) *Skill {
	s := &Skill{
		retriever: retriever,
		client:    client,
		limit:     3,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Skill) Descriptor() *skill.Descriptor {
	return &skill.Descriptor{
		Name:        Name,
		Description: "안전 지식 베이스 검색, 법규 조회 및 질의 응답",
		Version:     "1.0.0",
		Author:      "Safety Team",
		Tags:        []string{"knowledge", "search", "rag", "regulation"},
		Examples:    []string{"안전모 규정 알려줘", "낙상 시 조치 방법 검색해줘", "관련 법규 찾아줘"},
		TaskRules: []skill.TaskRule{
			{Keyword: "검색", Task: "search_knowledge"},
			{Keyword: "찾아", Task: "search_knowledge"},
			{Keyword: "법규", Task: "search_regulations"},
			{Keyword: "규정", Task: "search_regulations"},
			{Keyword: "알려", Task: "answer_question"},
		},
		DefaultTask: "search_knowledge",
	}
}

func (s *Skill) TaskNames() []string {
	return []string{
		"search_knowledge",
		"get_action_guide",
		"search_regulations",
		"answer_question",
	}
}

func (s *Skill) Validate(task string, c skill.Context) error {
	switch task {
	case "search_knowledge", "get_action_guide", "search_regulations", "answer_question":
		return c.Require(skill.KeyQuery)
	default:
		return errors.New(errors.CodeUnknownTask, "unknown knowledge task", nil).
			WithContext("task", task)
	}
}

func (s *Skill) Execute(ctx context.Context, task string, c skill.Context) (skill.Result, error) {
	switch task {
	case "search_knowledge":
		return s.search(ctx, c)
	case "get_action_guide":
		return s.actionGuide(ctx, c)
	case "search_regulations":
		return s.regulations(ctx, c)
	case "answer_question":
		return s.answer(ctx, c)
	default:
		return nil, errors.New(errors.CodeUnknownTask, "unknown knowledge task", nil).
			WithContext("task", task)
	}
}

func (s *Skill) search(ctx context.Context, c skill.Context) (skill.Result, error) {
	query := c.Query()
	snippets, err := s.retrieve(ctx, query)
	if err != nil {
		return nil, err
	}
	if len(snippets) == 0 {
		s.logger.Debug("no knowledge results", "query", query)
		return skill.Result{
			"query":         query,
			"results":       []any{map[string]any{"content": noResultsMessage}},
			"total_results": 0,
		}, nil
	}
	return skill.Result{
		"query":         query,
		"results":       snippetEntries(snippets),
		"total_results": len(snippets),
	}, nil
}

func (s *Skill) actionGuide(ctx context.Context, c skill.Context) (skill.Result, error) {
	query := c.Query()
	eventType := store.EventTypeFromText(query)

	snippets, err := s.retrieve(ctx, query+" 조치 가이드")
	if err != nil {
		return nil, err
	}
	snippets = filterCategory(snippets, "action_guide")

	guide := noResultsMessage
	if len(snippets) > 0 {
		guide = snippets[0].Content
	}
	return skill.Result{
		"event_type": eventType,
		"guide":      guide,
	}, nil
}

func (s *Skill) regulations(ctx context.Context, c skill.Context) (skill.Result, error) {
	query := c.Query()
	snippets, err := s.retrieve(ctx, query)
	if err != nil {
		return nil, err
	}
	snippets = filterCategory(snippets, "regulation")

	if len(snippets) == 0 {
		return skill.Result{
			"query":         query,
			"regulations":   []any{},
			"total_results": 0,
			"content":       "관련 법규를 찾을 수 없습니다.",
		}, nil
	}

	var b strings.Builder
	for i, snippet := range snippets {
		fmt.Fprintf(&b, "%d. %s\n%s\n\n", i+1, snippet.Title, snippet.Content)
	}
	return skill.Result{
		"query":         query,
		"regulations":   snippetEntries(snippets),
		"total_results": len(snippets),
		"content":       strings.TrimSpace(b.String()),
	}, nil
}

func (s *Skill) answer(ctx context.Context, c skill.Context) (skill.Result, error) {
	question := c.Query()
	snippets, err := s.retrieve(ctx, question)
	if err != nil {
		return nil, err
	}
	if s.client == nil {
		// no generation model: fall back to raw retrieval
		return s.search(ctx, c)
	}

	docContext := "관련 문서 없음"
	var sources []any
	if len(snippets) > 0 {
		var b strings.Builder
		for i, snippet := range snippets {
			fmt.Fprintf(&b, "[문서 %d] %s\n%s\n\n", i+1, snippet.Title, snippet.Content)
			sources = append(sources, snippet.Title)
		}
		docContext = strings.TrimSpace(b.String())
	}

	prompt := fmt.Sprintf(`당신은 산업 안전 전문가입니다.

다음 참고 문서를 바탕으로 질문에 답변해주세요:

참고 문서:
%s

질문: %s

답변 지침:
1. 참고 문서의 내용을 근거로 답변
2. 문서에 없는 내용은 일반적인 안전 원칙에 따라 답변하되 그 사실을 명시
3. 관련 법규가 있다면 함께 안내
4. 간결하고 실용적으로 작성

답변:`, docContext, question)

	answer, err := s.client.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return skill.Result{
		"question": question,
		"answer":   answer,
		"sources":  sources,
	}, nil
}

func (s *Skill) retrieve(ctx context.Context, query string) ([]kb.Snippet, error) {
	snippets, err := s.retriever.Retrieve(ctx, query, s.limit)
	if err != nil {
		return nil, errors.New(errors.CodeRetrievalError, "knowledge retrieval failed", err).
			WithContext("query", query)
	}
	return snippets, nil
}

func snippetEntries(snippets []kb.Snippet) []any {
	entries := make([]any, 0, len(snippets))
	for _, snippet := range snippets {
		entries = append(entries, map[string]any{
			"title":    snippet.Title,
			"content":  snippet.Content,
			"category": snippet.Category,
			"score":    snippet.Score,
		})
	}
	return entries
}

func filterCategory(snippets []kb.Snippet, category string) []kb.Snippet {
	var out []kb.Snippet
	for _, snippet := range snippets {
		if snippet.Category == category {
			out = append(out, snippet)
		}
	}
	return out
}
