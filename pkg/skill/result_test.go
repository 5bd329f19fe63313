package skill

import (
	"strings"
	"testing"
)

func TestRenderExtractionOrder(t *testing.T) {
	tests := []struct {
		name   string
		result Result
		want   string
	}{
		{
			name:   "report wins over answer",
			result: Result{"report": "the report", "answer": "the answer"},
			want:   "the report",
		},
		{
			name:   "action plan",
			result: Result{"action_plan": "do this", "summary": "short"},
			want:   "do this",
		},
		{
			name:   "answer",
			result: Result{"answer": "42"},
			want:   "42",
		},
		{
			name:   "guide",
			result: Result{"guide": "follow the steps"},
			want:   "follow the steps",
		},
		{
			name:   "summary wins over answer",
			result: Result{"summary": "짧은 요약", "answer": "긴 답변"},
			want:   "짧은 요약",
		},
		{
			name:   "ranked results win over guide",
			result: Result{"guide": "대응 절차", "results": []any{map[string]any{"content": "검색 결과"}}},
			want:   "검색 결과",
		},
		{
			name:   "error shape",
			result: ErrorResult("skill ghost not found"),
			want:   "skill ghost not found",
		},
		{
			name:   "first ranked result content",
			result: Result{"results": []any{map[string]any{"content": "top snippet"}, map[string]any{"content": "second"}}},
			want:   "top snippet",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.result.Render(); got != tt.want {
				t.Errorf("Render() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRenderIdempotent(t *testing.T) {
	r := Result{"report": "stable", "statistics": map[string]any{"total_events": 3}}
	first := r.Render()
	second := r.Render()
	if first != second {
		t.Fatalf("render must be deterministic: %q vs %q", first, second)
	}
}

func TestRenderStatistics(t *testing.T) {
	r := Result{"statistics": map[string]any{
		"period":          map[string]any{"start_date": "2026-08-01", "end_date": "2026-08-07"},
		"total_events":    10,
		"resolved":        7,
		"unresolved":      3,
		"resolution_rate": 70.0,
		"by_event_type":   map[string]any{"NO_HELMET": 6, "FALL_DETECTED": 4},
		"by_severity":     map[string]any{"HIGH": 2, "MEDIUM": 8},
	}}
	out := r.Render()
	if !strings.Contains(out, "Total events: 10") {
		t.Errorf("expected totals in output, got %s", out)
	}
	if !strings.Contains(out, "NO_HELMET: 6") {
		t.Errorf("expected type breakdown, got %s", out)
	}
	if !strings.Contains(out, "2026-08-01") {
		t.Errorf("expected period, got %s", out)
	}
}

func TestRenderFallbackDump(t *testing.T) {
	r := Result{"unrecognized_field": map[string]any{"x": 1}}
	out := r.Render()
	if !strings.Contains(out, "unrecognized_field") {
		t.Errorf("expected structured dump fallback, got %s", out)
	}
}

func TestRenderEmpty(t *testing.T) {
	if got := Result(nil).Render(); got != "" {
		t.Errorf("nil result should render empty, got %q", got)
	}
	if got := (Result{}).Render(); got != "" {
		t.Errorf("empty result should render empty, got %q", got)
	}
}

func TestIsError(t *testing.T) {
	if !ErrorResult("boom").IsError() {
		t.Error("expected error result")
	}
	if (Result{"answer": "fine"}).IsError() {
		t.Error("expected non-error result")
	}
}
