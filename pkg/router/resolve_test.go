package router

import (
	"testing"

	"github.com/vigil-ai/vigil/pkg/skill"
)

func analyticsDescriptor() *skill.Descriptor {
	return &skill.Descriptor{
		Name: "data_analytics",
		TaskRules: []skill.TaskRule{
			{Keyword: "통계", Task: "calculate_statistics"},
			{Keyword: "추세", Task: "analyze_trend"},
			{Keyword: "위험도", Task: "assess_risk"},
			{Keyword: "비교", Task: "compare_periods"},
			{Keyword: "많은", Task: "find_top_cameras"},
		},
		DefaultTask: "calculate_statistics",
	}
}

func TestResolveTask(t *testing.T) {
	d := analyticsDescriptor()

	tests := []struct {
		name string
		text string
		want string
	}{
		{"keyword match", "이번 주 통계 보여줘", "calculate_statistics"},
		{"later rule", "가장 위험도 높은 카메라", "assess_risk"},
		{"rule order wins on double match", "통계 추세 알려줘", "calculate_statistics"},
		{"no match falls to default", "아무거나 해줘", "calculate_statistics"},
		{"empty text falls to default", "", "calculate_statistics"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ResolveTask(tt.text, d); got != tt.want {
				t.Errorf("ResolveTask(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestResolveTaskIdempotent(t *testing.T) {
	d := analyticsDescriptor()
	first := ResolveTask("추세 분석", d)
	second := ResolveTask("추세 분석", d)
	if first != second {
		t.Fatalf("resolver not idempotent: %q vs %q", first, second)
	}
}

func TestResolveTaskNilAndEmptyDescriptor(t *testing.T) {
	if got := ResolveTask("whatever", nil); got != "execute" {
		t.Errorf("nil descriptor: got %q", got)
	}
	if got := ResolveTask("whatever", &skill.Descriptor{Name: "bare"}); got != "execute" {
		t.Errorf("descriptor without default: got %q", got)
	}
}
