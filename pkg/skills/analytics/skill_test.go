package analytics

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/vigil-ai/vigil/pkg/errors"
	"github.com/vigil-ai/vigil/pkg/llm"
	"github.com/vigil-ai/vigil/pkg/skill"
	"github.com/vigil-ai/vigil/pkg/store"
)

var testNow = time.Date(2025, 6, 8, 12, 0, 0, 0, time.UTC)

func seededSkill(t *testing.T, provider llm.Provider) *Skill {
	t.Helper()
	st := store.NewMemoryStore()
	events := []store.Event{
		{ID: "e1", CameraID: "CAM-001", CameraName: "정문 입구", EventType: store.EventNoHelmet, Severity: store.SeverityHigh, Resolved: false, Timestamp: testNow.AddDate(0, 0, -1)},
		{ID: "e2", CameraID: "CAM-001", CameraName: "정문 입구", EventType: store.EventNoHelmet, Severity: store.SeverityHigh, Resolved: true, Timestamp: testNow.AddDate(0, 0, -2)},
		{ID: "e3", CameraID: "CAM-002", CameraName: "자재 창고", EventType: store.EventFallDetected, Severity: store.SeverityCritical, Resolved: false, Timestamp: testNow.AddDate(0, 0, -3)},
		{ID: "e4", CameraID: "CAM-003", CameraName: "옥상 작업장", EventType: store.EventFireHazard, Severity: store.SeverityMedium, Resolved: true, Timestamp: testNow.AddDate(0, 0, -4)},
		// previous week, for trend comparison
		{ID: "p1", CameraID: "CAM-001", CameraName: "정문 입구", EventType: store.EventNoHelmet, Severity: store.SeverityLow, Resolved: true, Timestamp: testNow.AddDate(0, 0, -10)},
	}
	for _, e := range events {
		if err := st.Insert(context.Background(), e); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}
	var client *llm.Client
	if provider != nil {
		client = llm.NewClient(provider, "test-model", 0.0)
	}
	return New(st, client, WithClock(func() time.Time { return testNow }))
}

func TestCalculateStatistics(t *testing.T) {
	s := seededSkill(t, nil)

	result, err := s.Execute(context.Background(), "calculate_statistics", skill.Context{})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	stats, ok := result["statistics"].(map[string]any)
	if !ok {
		t.Fatalf("missing statistics block: %v", result)
	}
	if stats["total_events"] != 4 {
		t.Fatalf("expected 4 events in window, got %v", stats["total_events"])
	}
	if stats["resolved"] != 2 || stats["unresolved"] != 2 {
		t.Fatalf("unexpected resolution split: %v / %v", stats["resolved"], stats["unresolved"])
	}
	if stats["resolution_rate"] != 50.0 {
		t.Fatalf("unexpected resolution rate: %v", stats["resolution_rate"])
	}
	byType := stats["by_event_type"].(map[string]any)
	if byType[store.EventNoHelmet] != 2 {
		t.Fatalf("unexpected helmet count: %v", byType[store.EventNoHelmet])
	}

	rendered := result.Render()
	if !strings.Contains(rendered, "Total events: 4") {
		t.Fatalf("statistics did not render:\n%s", rendered)
	}
}

func TestCalculateStatisticsEmptyPeriod(t *testing.T) {
	s := seededSkill(t, nil)

	result, err := s.Execute(context.Background(), "calculate_statistics", skill.Context{
		"start_date": "2020-01-01",
		"end_date":   "2020-01-07",
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !result.IsError() {
		t.Fatalf("expected error-shaped result, got %v", result)
	}
}

func TestAnalyzeTrend(t *testing.T) {
	s := seededSkill(t, nil)

	result, err := s.Execute(context.Background(), "analyze_trend", skill.Context{})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	curr := result["current_period"].(map[string]any)
	prev := result["previous_period"].(map[string]any)
	if curr["total_events"] != 4 {
		t.Fatalf("unexpected current count: %v", curr["total_events"])
	}
	if prev["total_events"] != 1 {
		t.Fatalf("unexpected previous count: %v", prev["total_events"])
	}
	if result["overall_change"] != 3 {
		t.Fatalf("unexpected change: %v", result["overall_change"])
	}
	if result["overall_change_rate"] != 300.0 {
		t.Fatalf("unexpected change rate: %v", result["overall_change_rate"])
	}
}

func TestComparePeriodsAliasesTrend(t *testing.T) {
	s := seededSkill(t, nil)
	result, err := s.Execute(context.Background(), "compare_periods", skill.Context{})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if _, ok := result["overall_change_rate"]; !ok {
		t.Fatalf("compare_periods should produce trend output, got %v", result)
	}
}

func TestAssessRisk(t *testing.T) {
	s := seededSkill(t, nil)

	result, err := s.Execute(context.Background(), "assess_risk", skill.Context{})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	// critical unresolved event forces CRITICAL regardless of average
	if result["risk_level"] != "CRITICAL" {
		t.Fatalf("expected CRITICAL, got %v", result["risk_level"])
	}
	if result["critical_unresolved"] != 1 {
		t.Fatalf("unexpected critical unresolved: %v", result["critical_unresolved"])
	}
	if result["recommendation"] == "" {
		t.Fatal("missing recommendation")
	}
	// scores: HIGH 7 + HIGH 7 + CRITICAL 10 + MEDIUM 3 = 27 / 4
	if result["average_severity_score"] != 6.75 {
		t.Fatalf("unexpected avg score: %v", result["average_severity_score"])
	}
}

func TestAssessRiskSingleCamera(t *testing.T) {
	s := seededSkill(t, nil)

	result, err := s.Execute(context.Background(), "assess_risk", skill.Context{"camera_id": "CAM-003"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	// single resolved MEDIUM event: avg 3.0 → MEDIUM
	if result["risk_level"] != "MEDIUM" {
		t.Fatalf("expected MEDIUM, got %v", result["risk_level"])
	}
	if result["target"] != "CAM-003" {
		t.Fatalf("unexpected target: %v", result["target"])
	}
}

func TestAssessRiskNoEvents(t *testing.T) {
	s := seededSkill(t, nil)
	result, err := s.Execute(context.Background(), "assess_risk", skill.Context{"camera_id": "CAM-999"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !result.IsError() {
		t.Fatalf("expected error-shaped result, got %v", result)
	}
}

func TestFindTopCameras(t *testing.T) {
	s := seededSkill(t, nil)

	result, err := s.Execute(context.Background(), "find_top_cameras", skill.Context{"limit": 2})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	top := result["top_cameras"].([]map[string]any)
	if len(top) != 2 {
		t.Fatalf("expected 2 cameras, got %d", len(top))
	}
	if top[0]["camera_id"] != "CAM-001" || top[0]["total_events"] != 2 {
		t.Fatalf("unexpected top camera: %v", top[0])
	}
}

func TestAnalyzeQuery(t *testing.T) {
	provider := &llm.ScriptedMockProvider{Responses: []string{
		`{"tool": "assess_risk", "parameters": {"days": 7}}`,
		"최근 7일간 위험도는 CRITICAL 수준입니다.",
	}}
	s := seededSkill(t, provider)

	result, err := s.Execute(context.Background(), "analyze_query", skill.Context{
		skill.KeyQuery: "요즘 얼마나 위험한가요?",
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if result["tool_used"] != "assess_risk" {
		t.Fatalf("unexpected tool: %v", result["tool_used"])
	}
	if got := result.Render(); got != "최근 7일간 위험도는 CRITICAL 수준입니다." {
		t.Fatalf("explanation should render, got %q", got)
	}
}

func TestAnalyzeQueryBadPlan(t *testing.T) {
	provider := &llm.MockProvider{Response: "no json here"}
	s := seededSkill(t, provider)

	result, err := s.Execute(context.Background(), "analyze_query", skill.Context{
		skill.KeyQuery: "질문",
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if !result.IsError() {
		t.Fatalf("expected error-shaped result, got %v", result)
	}
}

func TestUnknownTask(t *testing.T) {
	s := seededSkill(t, nil)
	if err := s.Validate("no_such_task", skill.Context{}); errors.CodeOf(err) != errors.CodeUnknownTask {
		t.Fatalf("expected UNKNOWN_TASK, got %v", err)
	}
	if _, err := s.Execute(context.Background(), "no_such_task", skill.Context{}); errors.CodeOf(err) != errors.CodeUnknownTask {
		t.Fatalf("expected UNKNOWN_TASK, got %v", err)
	}
}
