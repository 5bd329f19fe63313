package report

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/vigil-ai/vigil/pkg/errors"
	"github.com/vigil-ai/vigil/pkg/knowledge"
	"github.com/vigil-ai/vigil/pkg/llm"
	"github.com/vigil-ai/vigil/pkg/skill"
	"github.com/vigil-ai/vigil/pkg/store"
)

var testNow = time.Date(2025, 6, 8, 12, 0, 0, 0, time.UTC)

func seededStore(t *testing.T) *store.MemoryStore {
	t.Helper()
	st := store.NewMemoryStore()
	events := []store.Event{
		{ID: "e1", CameraID: "CAM-001", CameraName: "정문 입구", EventType: store.EventNoHelmet, Severity: store.SeverityHigh, Resolved: false, Timestamp: testNow.Add(-2 * time.Hour), Description: "안전모 미착용 감지"},
		{ID: "e2", CameraID: "CAM-002", CameraName: "자재 창고", EventType: store.EventFallDetected, Severity: store.SeverityCritical, Resolved: true, Timestamp: testNow.Add(-5 * time.Hour), Description: "낙상 감지"},
		// outside the daily window, inside the weekly one
		{ID: "e3", CameraID: "CAM-003", CameraName: "옥상 작업장", EventType: store.EventFireHazard, Severity: store.SeverityMedium, Resolved: false, Timestamp: testNow.AddDate(0, 0, -3), Description: "연기 감지"},
	}
	for _, e := range events {
		if err := st.Insert(context.Background(), e); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	return st
}

func newTestSkill(t *testing.T, provider llm.Provider, opts ...Option) *Skill {
	t.Helper()
	var client *llm.Client
	if provider != nil {
		client = llm.NewClient(provider, "test-model", 0.0)
	}
	opts = append([]Option{WithClock(func() time.Time { return testNow })}, opts...)
	return New(seededStore(t), client, opts...)
}

func TestExtractEventType(t *testing.T) {
	tests := []struct {
		text string
		want string
	}{
		{"헬멧 안 쓴 사람한테 어떻게 해야 해?", store.EventNoHelmet},
		{"안전모 미착용 조치 방안", store.EventNoHelmet},
		{"조끼 미착용 대응", store.EventNoSafetyVest},
		{"낙상 사고 보고서", store.EventFallDetected},
		{"화재 위험 대응 방안", store.EventFireHazard},
		{"출입금지 구역 침입", store.EventRestrictedArea},
		{"장비 오용 조치", store.EventEquipmentMisuse},
		{"오늘 날씨 어때", store.EventUnknown},
	}
	for _, tt := range tests {
		if got := ExtractEventType(tt.text); got != tt.want {
			t.Errorf("ExtractEventType(%q) = %q, want %q", tt.text, got, tt.want)
		}
	}
}

func TestEventReport(t *testing.T) {
	mock := &llm.ScriptedMockProvider{Responses: []string{"생성된 이벤트 보고서"}}
	s := newTestSkill(t, mock)

	result, err := s.Execute(context.Background(), "generate_event_report", skill.Context{})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result["report"] != "생성된 이벤트 보고서" {
		t.Fatalf("unexpected report: %v", result["report"])
	}
	if result["total_events"] != 3 {
		t.Fatalf("expected 3 events in the default window, got %v", result["total_events"])
	}

	prompt := mock.LastPrompt()
	for _, want := range []string{"안전모 미착용 감지", "자재 창고", "CRITICAL", "미해결"} {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q:\n%s", want, prompt)
		}
	}
}

func TestEventReportNoEvents(t *testing.T) {
	st := store.NewMemoryStore()
	mock := &llm.MockProvider{Response: "unused"}
	s := New(st, llm.NewClient(mock, "test-model", 0.0),
		WithClock(func() time.Time { return testNow }))

	result, err := s.Execute(context.Background(), "generate_event_report", skill.Context{})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !result.IsError() {
		t.Fatalf("expected error result for empty window, got %v", result)
	}
}

func TestStatisticsReportNeedsUpstreamData(t *testing.T) {
	s := newTestSkill(t, &llm.MockProvider{Response: "unused"})

	result, err := s.Execute(context.Background(), "generate_statistics_report", skill.Context{})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !result.IsError() {
		t.Fatalf("expected error result without statistics input, got %v", result)
	}
}

func TestStatisticsReport(t *testing.T) {
	mock := &llm.ScriptedMockProvider{Responses: []string{"주간 통계 분석 보고서"}}
	s := newTestSkill(t, mock)

	result, err := s.Execute(context.Background(), "generate_statistics_report", skill.Context{
		skill.KeyPreviousResult: "총 이벤트: 42건",
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result["report"] != "주간 통계 분석 보고서" {
		t.Fatalf("unexpected report: %v", result["report"])
	}
	if !strings.Contains(mock.LastPrompt(), "총 이벤트: 42건") {
		t.Fatalf("statistics not threaded into prompt:\n%s", mock.LastPrompt())
	}
}

func TestActionPlanExtractsEventTypeAndGuidance(t *testing.T) {
	mock := &llm.ScriptedMockProvider{Responses: []string{"1. 즉시 작업 중지"}}
	retriever := knowledge.NewStaticRetriever(knowledge.DefaultDocuments())
	s := newTestSkill(t, mock, WithRetriever(retriever))

	result, err := s.Execute(context.Background(), "generate_action_plan", skill.Context{
		skill.KeyQuery: "안전모 미착용 발견됐는데 어떻게 조치해야 해?",
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result["event_type"] != store.EventNoHelmet {
		t.Fatalf("unexpected event type: %v", result["event_type"])
	}
	if result["action_plan"] != "1. 즉시 작업 중지" {
		t.Fatalf("unexpected plan: %v", result["action_plan"])
	}

	prompt := mock.LastPrompt()
	if !strings.Contains(prompt, store.EventNoHelmet) {
		t.Errorf("prompt missing event type:\n%s", prompt)
	}
	if !strings.Contains(prompt, "[문서 1]") {
		t.Errorf("prompt missing retrieved guidance:\n%s", prompt)
	}
}

func TestActionPlanWithoutRetriever(t *testing.T) {
	mock := &llm.ScriptedMockProvider{Responses: []string{"조치 방안"}}
	s := newTestSkill(t, mock)

	if _, err := s.Execute(context.Background(), "generate_action_plan", skill.Context{
		skill.KeyQuery: "화재 대응 방안",
	}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(mock.LastPrompt(), "관련 지식 베이스 정보 없음") {
		t.Fatalf("expected no-knowledge marker in prompt:\n%s", mock.LastPrompt())
	}
}

func TestSummaryUsesPreviousResult(t *testing.T) {
	mock := &llm.ScriptedMockProvider{Responses: []string{"요약본"}}
	s := newTestSkill(t, mock)

	result, err := s.Execute(context.Background(), "generate_summary", skill.Context{
		skill.KeyPreviousResult: "매우 긴 분석 결과 텍스트",
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result["summary"] != "요약본" {
		t.Fatalf("unexpected summary: %v", result["summary"])
	}
	if !strings.Contains(mock.LastPrompt(), "매우 긴 분석 결과 텍스트") {
		t.Fatalf("content not in prompt:\n%s", mock.LastPrompt())
	}
}

func TestSummaryValidateRequiresContent(t *testing.T) {
	s := newTestSkill(t, nil)
	if err := s.Validate("generate_summary", skill.Context{}); err == nil {
		t.Fatal("expected validation error without content")
	}
	if err := s.Validate("generate_summary", skill.Context{skill.KeyPreviousResult: "x"}); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
}

func TestIncidentReportUsesMatchingEvent(t *testing.T) {
	mock := &llm.ScriptedMockProvider{Responses: []string{"사고 분석 보고서"}}
	s := newTestSkill(t, mock)

	result, err := s.Execute(context.Background(), "generate_incident_report", skill.Context{
		skill.KeyQuery: "낙상 사고 보고서 작성해줘",
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result["incident_id"] != "e2" {
		t.Fatalf("expected most recent fall event, got %v", result["incident_id"])
	}
	if result["severity"] != store.SeverityCritical {
		t.Fatalf("unexpected severity: %v", result["severity"])
	}
	if !strings.Contains(mock.LastPrompt(), "자재 창고") {
		t.Fatalf("incident details missing from prompt:\n%s", mock.LastPrompt())
	}
}

func TestDailyReportComposesSections(t *testing.T) {
	mock := &llm.ScriptedMockProvider{Responses: []string{"이벤트 섹션 본문"}}
	s := newTestSkill(t, mock)

	result, err := s.Execute(context.Background(), "generate_daily_report", skill.Context{})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result["report_type"] != "daily_report" {
		t.Fatalf("unexpected report type: %v", result["report_type"])
	}
	// daily window covers e1 and e2 only
	if result["total_events"] != 2 {
		t.Fatalf("expected 2 events in daily window, got %v", result["total_events"])
	}

	report := result["report"].(string)
	for _, want := range []string{
		"# 일일 안전 모니터링 보고서",
		"날짜: 2025-06-08",
		"## 1. 이벤트 현황",
		"이벤트 섹션 본문",
		"## 2. 통계 분석",
		"총 이벤트: 2건 (해결 1건, 미해결 1건)",
	} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q:\n%s", want, report)
		}
	}
}

func TestWeeklyReportWindow(t *testing.T) {
	mock := &llm.ScriptedMockProvider{Responses: []string{"주간 이벤트 섹션"}}
	s := newTestSkill(t, mock)

	result, err := s.Execute(context.Background(), "generate_weekly_report", skill.Context{})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result["report_type"] != "weekly_report" {
		t.Fatalf("unexpected report type: %v", result["report_type"])
	}
	if result["total_events"] != 3 {
		t.Fatalf("expected 3 events in weekly window, got %v", result["total_events"])
	}
	if !strings.Contains(result["report"].(string), "# 주간 안전 모니터링 보고서") {
		t.Fatalf("weekly heading missing:\n%v", result["report"])
	}
}

func TestDailyReportNoEvents(t *testing.T) {
	st := store.NewMemoryStore()
	mock := &llm.ScriptedMockProvider{Responses: []string{"should not be called"}}
	s := New(st, llm.NewClient(mock, "test-model", 0.0),
		WithClock(func() time.Time { return testNow }))

	result, err := s.Execute(context.Background(), "generate_daily_report", skill.Context{})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if mock.CallCount != 0 {
		t.Fatalf("model should not run for an empty window, called %d times", mock.CallCount)
	}
	report := result["report"].(string)
	if !strings.Contains(report, "이벤트 없음") {
		t.Fatalf("expected empty-window marker:\n%s", report)
	}
}

func TestUnknownTask(t *testing.T) {
	s := newTestSkill(t, nil)
	if err := s.Validate("rewrite_history", skill.Context{}); errors.CodeOf(err) != errors.CodeUnknownTask {
		t.Fatalf("expected CodeUnknownTask, got %v", err)
	}
	if _, err := s.Execute(context.Background(), "rewrite_history", skill.Context{}); errors.CodeOf(err) != errors.CodeUnknownTask {
		t.Fatalf("expected CodeUnknownTask, got %v", err)
	}
}

func TestPromptOverride(t *testing.T) {
	mock := &llm.ScriptedMockProvider{Responses: []string{"ok"}}
	s := newTestSkill(t, mock, WithPrompts(map[string]string{
		"event_report": "커스텀 템플릿: {period} / {total_events}\n{events}",
	}))

	if _, err := s.Execute(context.Background(), "generate_event_report", skill.Context{}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !strings.Contains(mock.LastPrompt(), "커스텀 템플릿: 일일 / 3") {
		t.Fatalf("override template not applied:\n%s", mock.LastPrompt())
	}
}
