// Package report implements the report skill: event reports, action
// plans, summaries and composed daily reports written by the
// generation model from event data.
package report

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/vigil-ai/vigil/pkg/errors"
	"github.com/vigil-ai/vigil/pkg/knowledge"
	"github.com/vigil-ai/vigil/pkg/llm"
	"github.com/vigil-ai/vigil/pkg/skill"
	"github.com/vigil-ai/vigil/pkg/store"
)

// Name is the registry name of this skill.
const Name = "report"

// ExtractEventType maps free text to a detection event type, falling
// back to UNKNOWN.
func ExtractEventType(text string) string {
	return store.EventTypeFromText(text)
}

// Skill writes reports about safety events.
type Skill struct {
	store     store.Store
	client    *llm.Client
	retriever knowledge.Retriever
	prompts   map[string]string
	now       func() time.Time
	logger    *slog.Logger
}

// Option configures the report skill.
type Option func(*Skill)

// WithRetriever attaches a knowledge retriever; action plans then cite
// retrieved guidance.
func WithRetriever(r knowledge.Retriever) Option {
	return func(s *Skill) { s.retriever = r }
}

// WithPrompts overrides the built-in prompt templates by name
// (event_report, statistics_report, action_plan, incident_report).
func WithPrompts(prompts map[string]string) Option {
	return func(s *Skill) { s.prompts = prompts }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Skill) { s.now = now }
}

// WithLogger sets the skill's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Skill) { s.logger = logger }
}

// New builds the report skill.
func New(st store.Store, client *llm.Client, opts ...Option) *Skill {
	s := &Skill{
		store:  st,
		client: client,
		now:    time.Now,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Skill) Descriptor() *skill.Descriptor {
	return &skill.Descriptor{
		Name:        Name,
		Description: "분석 결과 기반 보고서 및 조치 방안 작성",
		Version:     "1.0.0",
		Author:      "Safety Team",
		Tags:        []string{"report", "document", "analysis", "summary"},
		Examples:    []string{"보고서 작성해줘", "대응 방안 알려줘", "조치 사항은?"},
		TaskRules: []skill.TaskRule{
			{Keyword: "조치", Task: "generate_action_plan"},
			{Keyword: "대응", Task: "generate_action_plan"},
			{Keyword: "방안", Task: "generate_action_plan"},
			{Keyword: "어떻게", Task: "generate_action_plan"},
			{Keyword: "일일", Task: "generate_daily_report"},
			{Keyword: "주간", Task: "generate_weekly_report"},
			{Keyword: "사고", Task: "generate_incident_report"},
			{Keyword: "요약", Task: "generate_summary"},
			{Keyword: "보고서", Task: "generate_event_report"},
		},
		DefaultTask: "generate_action_plan",
	}
}

func (s *Skill) TaskNames() []string {
	return []string{
		"generate_event_report",
		"generate_statistics_report",
		"generate_action_plan",
		"generate_summary",
		"generate_incident_report",
		"generate_daily_report",
		"generate_weekly_report",
	}
}

func (s *Skill) Validate(task string, c skill.Context) error {
	switch task {
	case "generate_event_report", "generate_statistics_report",
		"generate_daily_report", "generate_weekly_report":
		return nil
	case "generate_action_plan":
		return c.Require(skill.KeyQuery)
	case "generate_summary":
		// summarizes the previous step's output or explicit content
		if c.String("content") == "" && c.PreviousResult() == "" {
			return errors.New(errors.CodeValidationFailed, "요약할 내용이 필요합니다.", nil)
		}
		return nil
	case "generate_incident_report":
		return c.Require(skill.KeyQuery)
	default:
		return errors.New(errors.CodeUnknownTask, "unknown report task", nil).
			WithContext("task", task)
	}
}

func (s *Skill) Execute(ctx context.Context, task string, c skill.Context) (skill.Result, error) {
	switch task {
	case "generate_event_report":
		return s.eventReport(ctx, c)
	case "generate_statistics_report":
		return s.statisticsReport(ctx, c)
	case "generate_action_plan":
		return s.actionPlan(ctx, c)
	case "generate_summary":
		return s.summary(ctx, c)
	case "generate_incident_report":
		return s.incidentReport(ctx, c)
	case "generate_daily_report":
		return s.dailyReport(ctx, c)
	case "generate_weekly_report":
		return s.weeklyReport(ctx, c)
	default:
		return nil, errors.New(errors.CodeUnknownTask, "unknown report task", nil).
			WithContext("task", task)
	}
}

func (s *Skill) eventReport(ctx context.Context, c skill.Context) (skill.Result, error) {
	period := periodLabel(c, "일일")
	events, err := s.recentEvents(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return skill.ErrorResult("보고할 이벤트가 없습니다."), nil
	}

	report, err := s.generateEventReport(ctx, events, period)
	if err != nil {
		return nil, err
	}
	return skill.Result{
		"report_type":  "event_report",
		"period":       period,
		"total_events": len(events),
		"report":       report,
	}, nil
}

func (s *Skill) statisticsReport(ctx context.Context, c skill.Context) (skill.Result, error) {
	period := periodLabel(c, "주간")
	statsText := c.PreviousResult()
	if statsText == "" {
		return skill.ErrorResult("통계 데이터가 필요합니다."), nil
	}
	report, err := s.generateStatisticsReport(ctx, statsText, period)
	if err != nil {
		return nil, err
	}
	return skill.Result{
		"report_type": "statistics_report",
		"period":      period,
		"report":      report,
	}, nil
}

func (s *Skill) actionPlan(ctx context.Context, c skill.Context) (skill.Result, error) {
	query := c.Query()
	eventType := ExtractEventType(query)

	eventData := map[string]any{
		"event_type":  eventType,
		"description": query,
		"severity":    store.SeverityMedium,
	}
	if prev := c.PreviousResult(); prev != "" {
		eventData["upstream_findings"] = prev
	}

	knowledgeContext := s.retrieveGuidance(ctx, query, eventType)

	prompt := s.prompt("action_plan", defaultActionPlanPrompt)
	eventText, _ := json.MarshalIndent(eventData, "", "  ")
	prompt = strings.ReplaceAll(prompt, "{event}", string(eventText))
	prompt = strings.ReplaceAll(prompt, "{knowledge_context}", knowledgeContext)

	plan, err := s.client.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return skill.Result{
		"report_type": "action_plan",
		"event_type":  eventType,
		"action_plan": plan,
	}, nil
}

func (s *Skill) summary(ctx context.Context, c skill.Context) (skill.Result, error) {
	content := c.String("content")
	if content == "" {
		content = c.PreviousResult()
	}
	maxLength := 200

	prompt := fmt.Sprintf(`다음 내용을 %d자 이내로 요약해주세요:

%s

요약 (핵심 내용만 간결하게):`, maxLength, content)

	summary, err := s.client.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	return skill.Result{
		"original_length": len([]rune(content)),
		"summary_length":  len([]rune(summary)),
		"summary":         summary,
	}, nil
}

func (s *Skill) incidentReport(ctx context.Context, c skill.Context) (skill.Result, error) {
	query := c.Query()
	eventType := ExtractEventType(query)

	// pull the most recent matching event as the incident under analysis
	events, err := s.store.List(ctx, store.Filter{EventType: eventType})
	if err != nil {
		return nil, err
	}
	var incident map[string]any
	if len(events) > 0 {
		last := events[len(events)-1]
		incident = map[string]any{
			"id":          last.ID,
			"event_type":  last.EventType,
			"severity":    last.Severity,
			"camera_id":   last.CameraID,
			"camera_name": last.CameraName,
			"timestamp":   last.Timestamp.Format(time.RFC3339),
			"description": last.Description,
		}
	} else {
		incident = map[string]any{
			"event_type":  eventType,
			"description": query,
		}
	}

	analysis := c.PreviousResult()
	if analysis == "" {
		analysis = "분석 데이터 없음"
	}

	prompt := s.prompt("incident_report", defaultIncidentReportPrompt)
	incidentText, _ := json.MarshalIndent(incident, "", "  ")
	prompt = strings.ReplaceAll(prompt, "{incident}", string(incidentText))
	prompt = strings.ReplaceAll(prompt, "{analysis}", analysis)

	report, err := s.client.Generate(ctx, prompt)
	if err != nil {
		return nil, err
	}
	result := skill.Result{
		"report_type": "incident_report",
		"report":      report,
	}
	if id, ok := incident["id"]; ok {
		result["incident_id"] = id
		result["severity"] = incident["severity"]
	}
	return result, nil
}

func (s *Skill) dailyReport(ctx context.Context, c skill.Context) (skill.Result, error) {
	return s.composedReport(ctx, 1, "일일", "daily_report")
}

func (s *Skill) weeklyReport(ctx context.Context, c skill.Context) (skill.Result, error) {
	return s.composedReport(ctx, 7, "주간", "weekly_report")
}

// composedReport builds the combined report: an event section written
// by the model plus a plain statistics section.
func (s *Skill) composedReport(ctx context.Context, days int, period, reportType string) (skill.Result, error) {
	now := s.now()
	events, err := s.recentEvents(ctx, days)
	if err != nil {
		return nil, err
	}

	eventSection := "이벤트 없음"
	if len(events) > 0 {
		eventSection, err = s.generateEventReport(ctx, events, period)
		if err != nil {
			return nil, err
		}
	}

	statsSection := "통계 데이터 없음"
	if len(events) > 0 {
		statsSection = statisticsSection(events)
	}

	combined := fmt.Sprintf(`# %s 안전 모니터링 보고서
날짜: %s

## 1. 이벤트 현황
%s

## 2. 통계 분석
%s

---
보고서 생성 시각: %s
`, period, now.Format("2006-01-02"), eventSection, statsSection, now.Format("2006-01-02 15:04:05"))

	return skill.Result{
		"report_type":  reportType,
		"date":         now.Format("2006-01-02"),
		"total_events": len(events),
		"report":       combined,
	}, nil
}

func (s *Skill) generateEventReport(ctx context.Context, events []store.Event, period string) (string, error) {
	prompt := s.prompt("event_report", defaultEventReportPrompt)
	prompt = strings.ReplaceAll(prompt, "{period}", period)
	prompt = strings.ReplaceAll(prompt, "{total_events}", fmt.Sprintf("%d", len(events)))
	prompt = strings.ReplaceAll(prompt, "{events}", formatEvents(events))
	return s.client.Generate(ctx, prompt)
}

func (s *Skill) generateStatisticsReport(ctx context.Context, statsText, period string) (string, error) {
	prompt := s.prompt("statistics_report", defaultStatisticsReportPrompt)
	prompt = strings.ReplaceAll(prompt, "{period}", period)
	prompt = strings.ReplaceAll(prompt, "{statistics}", statsText)
	return s.client.Generate(ctx, prompt)
}

func (s *Skill) recentEvents(ctx context.Context, days int) ([]store.Event, error) {
	end := s.now()
	start := end.AddDate(0, 0, -days)
	return s.store.List(ctx, store.Filter{Since: start, Until: end})
}

// retrieveGuidance pulls knowledge base context for an action plan.
// Retrieval failure is not fatal: the plan is written without it.
func (s *Skill) retrieveGuidance(ctx context.Context, query, eventType string) string {
	if s.retriever == nil {
		return "관련 지식 베이스 정보 없음"
	}
	snippets, err := s.retriever.Retrieve(ctx, query+" "+eventType, 3)
	if err != nil || len(snippets) == 0 {
		if err != nil {
			s.logger.Warn("guidance retrieval failed", "error", err)
		}
		return "관련 지식 베이스 정보 없음"
	}
	var b strings.Builder
	for i, snippet := range snippets {
		fmt.Fprintf(&b, "[문서 %d] %s\n%s\n\n", i+1, snippet.Title, snippet.Content)
	}
	return strings.TrimSpace(b.String())
}

func (s *Skill) prompt(name, fallback string) string {
	if p, ok := s.prompts[name]; ok && p != "" {
		return p
	}
	return fallback
}

func periodLabel(c skill.Context, fallback string) string {
	if p := c.String("period"); p != "" {
		return p
	}
	return fallback
}

func formatEvents(events []store.Event) string {
	var b strings.Builder
	for i, e := range events {
		resolved := "미해결"
		if e.Resolved {
			resolved = "해결됨"
		}
		fmt.Fprintf(&b, `
이벤트 %d:
- ID: %s
- 타입: %s
- 심각도: %s
- 카메라: %s (%s)
- 시간: %s
- 해결 여부: %s
- 설명: %s
`, i+1, e.ID, e.EventType, e.Severity, e.CameraName, e.CameraID,
			e.Timestamp.Format("2006-01-02 15:04:05"), resolved, e.Description)
	}
	return b.String()
}

func statisticsSection(events []store.Event) string {
	total := len(events)
	resolved := 0
	byType := map[string]int{}
	for _, e := range events {
		if e.Resolved {
			resolved++
		}
		byType[e.EventType]++
	}
	var b strings.Builder
	fmt.Fprintf(&b, "총 이벤트: %d건 (해결 %d건, 미해결 %d건)\n", total, resolved, total-resolved)
	b.WriteString("타입별:\n")
	for _, eventType := range store.EventTypes() {
		if n, ok := byType[eventType]; ok {
			fmt.Fprintf(&b, "  - %s: %d건\n", eventType, n)
		}
	}
	if n, ok := byType[store.EventUnknown]; ok {
		fmt.Fprintf(&b, "  - %s: %d건\n", store.EventUnknown, n)
	}
	return strings.TrimSpace(b.String())
}

const defaultEventReportPrompt = `당신은 안전 모니터링 시스템의 보고서 작성 전문가입니다.

다음 {period} 이벤트 데이터를 바탕으로 전문적인 보고서를 작성해주세요:

총 이벤트 수: {total_events}

{events}

보고서 작성 지침:
1. 명확하고 구조화된 형식으로 작성
2. 주요 이벤트를 우선순위별로 정리
3. 심각도가 높은 이벤트를 강조
4. 미해결 이벤트에 대한 조치 필요성 언급
5. 전문적이고 간결한 문체 사용

보고서:`

const defaultStatisticsReportPrompt = `당신은 안전 모니터링 시스템의 데이터 분석 전문가입니다.

다음 {period} 통계 데이터를 바탕으로 분석 보고서를 작성해주세요:

{statistics}

보고서 작성 지침:
1. 주요 통계 지표를 명확하게 제시
2. 데이터에서 발견되는 패턴이나 트렌드 분석
3. 우려되는 부분을 강조
4. 개선이 필요한 영역 식별
5. 구체적인 숫자와 퍼센트 포함

분석 보고서:`

const defaultActionPlanPrompt = `당신은 안전 관리 전문가입니다.

다음 이벤트에 대한 구체적인 조치 방안을 작성해주세요:

이벤트 정보:
{event}

관련 지식:
{knowledge_context}

조치 방안 작성 지침:
1. 즉시 조치 사항 (Immediate Actions)
2. 단기 조치 사항 (Short-term Actions)
3. 장기 예방 조치 (Long-term Prevention)
4. 관련 법규 및 규정 준수 사항
5. 담당자 및 책임 소재

조치 방안:`

const defaultIncidentReportPrompt = `당신은 안전 사고 조사 전문가입니다.

다음 사고에 대한 상세 분석 보고서를 작성해주세요:

사고 정보:
{incident}

분석 데이터:
{analysis}

보고서 구성:
1. 사고 개요 (Incident Overview)
2. 발생 경위 (Sequence of Events)
3. 원인 분석 (Root Cause Analysis)
4. 영향 평가 (Impact Assessment)
5. 재발 방지 대책 (Prevention Measures)
6. 권고 사항 (Recommendations)

사고 분석 보고서:`
