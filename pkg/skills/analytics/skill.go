// Package analytics implements the data_analytics skill: statistics,
// trends, risk assessment and camera rankings over the event store.
package analytics

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/vigil-ai/vigil/pkg/errors"
	"github.com/vigil-ai/vigil/pkg/llm"
	"github.com/vigil-ai/vigil/pkg/skill"
	"github.com/vigil-ai/vigil/pkg/store"
)

// Name is the registry name of this skill.
const Name = "data_analytics"

var severityScores = map[string]int{
	store.SeverityLow:      1,
	store.SeverityMedium:   3,
	store.SeverityHigh:     7,
	store.SeverityCritical: 10,
}

var riskRecommendations = map[string]string{
	"LOW":      "현재 안전 수준이 양호합니다. 정기적인 모니터링을 계속하세요.",
	"MEDIUM":   "주의가 필요합니다. 미해결 이벤트를 우선 처리하고 안전 교육을 강화하세요.",
	"HIGH":     "즉시 조치가 필요합니다. 모든 미해결 이벤트를 긴급 점검하고 안전 관리자 회의를 소집하세요.",
	"CRITICAL": "긴급 상황입니다. 즉시 현장 작업을 중단하고 전체 안전 점검을 실시하세요.",
}

// Skill analyzes safety events.
type Skill struct {
	store  store.Store
	client *llm.Client
	now    func() time.Time
	logger *slog.Logger
}

// Option configures the analytics skill.
type Option func(*Skill)

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(s *Skill) { s.now = now }
}

// WithLogger sets the skill's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Skill) { s.logger = logger }
}

// New builds the analytics skill over an event store. The client backs
// the analyze_query task; the other tasks are pure computations.
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
		Description: "이벤트 데이터 분석 및 통계 생성",
		Version:     "1.0.0",
		Author:      "Safety Team",
		Tags:        []string{"analytics", "statistics", "data", "events", "trend"},
		Examples:    []string{"통계 분석해줘", "가장 위험한 카메라는?", "증감률 계산"},
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

func (s *Skill) TaskNames() []string {
	return []string{
		"calculate_statistics",
		"analyze_trend",
		"assess_risk",
		"compare_periods",
		"find_top_cameras",
		"analyze_query",
	}
}

func (s *Skill) Validate(task string, c skill.Context) error {
	switch task {
	case "calculate_statistics", "analyze_trend", "assess_risk", "compare_periods", "find_top_cameras":
		return nil
	case "analyze_query":
		return c.Require(skill.KeyQuery)
	default:
		return errors.New(errors.CodeUnknownTask, "unknown analytics task", nil).
			WithContext("task", task)
	}
}

func (s *Skill) Execute(ctx context.Context, task string, c skill.Context) (skill.Result, error) {
	switch task {
	case "calculate_statistics":
		return s.calculateStatistics(ctx, c)
	case "analyze_trend", "compare_periods":
		return s.analyzeTrend(ctx, c)
	case "assess_risk":
		return s.assessRisk(ctx, c)
	case "find_top_cameras":
		return s.findTopCameras(ctx, c)
	case "analyze_query":
		return s.analyzeQuery(ctx, c)
	default:
		return nil, errors.New(errors.CodeUnknownTask, "unknown analytics task", nil).
			WithContext("task", task)
	}
}

func (s *Skill) calculateStatistics(ctx context.Context, c skill.Context) (skill.Result, error) {
	start, end := s.period(c, 7)
	events, err := s.store.List(ctx, store.Filter{Since: start, Until: end})
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return skill.ErrorResult("해당 기간에 발생한 이벤트가 없습니다."), nil
	}
	return skill.Result{"statistics": statisticsFor(events, start, end)}, nil
}

func statisticsFor(events []store.Event, start, end time.Time) map[string]any {
	total := len(events)
	resolved := 0
	byType := map[string]any{}
	bySeverity := map[string]any{}
	byCamera := map[string]any{}
	for _, e := range events {
		if e.Resolved {
			resolved++
		}
		byType[e.EventType] = count(byType[e.EventType]) + 1
		bySeverity[e.Severity] = count(bySeverity[e.Severity]) + 1
		byCamera[e.CameraID] = count(byCamera[e.CameraID]) + 1
	}
	return map[string]any{
		"period": map[string]any{
			"start_date": start.Format("2006-01-02"),
			"end_date":   end.Format("2006-01-02"),
		},
		"total_events":    total,
		"resolved":        resolved,
		"unresolved":      total - resolved,
		"resolution_rate": round2(float64(resolved) / float64(total) * 100),
		"by_event_type":   byType,
		"by_severity":     bySeverity,
		"by_camera":       byCamera,
	}
}

func (s *Skill) analyzeTrend(ctx context.Context, c skill.Context) (skill.Result, error) {
	// current period from the context, previous period of the same
	// length directly before it
	currStart, currEnd := s.period(c, 7)
	length := currEnd.Sub(currStart)
	prevEnd := currStart.Add(-time.Second)
	prevStart := prevEnd.Add(-length)

	current, err := s.store.List(ctx, store.Filter{Since: currStart, Until: currEnd})
	if err != nil {
		return nil, err
	}
	previous, err := s.store.List(ctx, store.Filter{Since: prevStart, Until: prevEnd})
	if err != nil {
		return nil, err
	}

	currCount, prevCount := len(current), len(previous)
	currTypes := countByType(current)
	prevTypes := countByType(previous)

	typeChanges := map[string]any{}
	for eventType := range union(currTypes, prevTypes) {
		curr := currTypes[eventType]
		prev := prevTypes[eventType]
		typeChanges[eventType] = map[string]any{
			"current":     curr,
			"previous":    prev,
			"change":      curr - prev,
			"change_rate": changeRate(curr, prev),
		}
	}

	return skill.Result{
		"current_period": map[string]any{
			"start":        currStart.Format("2006-01-02"),
			"end":          currEnd.Format("2006-01-02"),
			"total_events": currCount,
		},
		"previous_period": map[string]any{
			"start":        prevStart.Format("2006-01-02"),
			"end":          prevEnd.Format("2006-01-02"),
			"total_events": prevCount,
		},
		"overall_change":      currCount - prevCount,
		"overall_change_rate": changeRate(currCount, prevCount),
		"by_event_type":       typeChanges,
	}, nil
}

func (s *Skill) assessRisk(ctx context.Context, c skill.Context) (skill.Result, error) {
	days := intFrom(c, "days", 7)
	cameraID := c.String("camera_id")

	end := s.now()
	start := end.AddDate(0, 0, -days)
	events, err := s.store.List(ctx, store.Filter{CameraID: cameraID, Since: start, Until: end})
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		target := "시스템"
		if cameraID != "" {
			target = "카메라 " + cameraID
		}
		return skill.ErrorResult(fmt.Sprintf("%s에서 최근 %d일간 발생한 이벤트가 없습니다.", target, days)), nil
	}

	totalScore := 0
	unresolved := 0
	criticalUnresolved := 0
	for _, e := range events {
		totalScore += severityScores[e.Severity]
		if !e.Resolved {
			unresolved++
			if e.Severity == store.SeverityCritical {
				criticalUnresolved++
			}
		}
	}
	avgScore := float64(totalScore) / float64(len(events))

	var riskLevel string
	switch {
	case criticalUnresolved > 0 || avgScore >= 7:
		riskLevel = "CRITICAL"
	case avgScore >= 5 || float64(unresolved) > float64(len(events))*0.5:
		riskLevel = "HIGH"
	case avgScore >= 3:
		riskLevel = "MEDIUM"
	default:
		riskLevel = "LOW"
	}

	target := "전체 시스템"
	if cameraID != "" {
		target = cameraID
	}
	return skill.Result{
		"target":                 target,
		"period_days":            days,
		"total_events":           len(events),
		"unresolved_events":      unresolved,
		"critical_unresolved":    criticalUnresolved,
		"average_severity_score": round2(avgScore),
		"risk_level":             riskLevel,
		"recommendation":         riskRecommendations[riskLevel],
	}, nil
}

func (s *Skill) findTopCameras(ctx context.Context, c skill.Context) (skill.Result, error) {
	start, end := s.period(c, 7)
	limit := intFrom(c, "limit", 3)

	events, err := s.store.List(ctx, store.Filter{Since: start, Until: end})
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return skill.ErrorResult("해당 기간에 발생한 이벤트가 없습니다."), nil
	}

	type cameraStat struct {
		id, name string
		total    int
		types    map[string]int
	}
	stats := map[string]*cameraStat{}
	for _, e := range events {
		cs, ok := stats[e.CameraID]
		if !ok {
			cs = &cameraStat{id: e.CameraID, name: e.CameraName, types: map[string]int{}}
			stats[e.CameraID] = cs
		}
		cs.total++
		cs.types[e.EventType]++
	}

	sorted := make([]*cameraStat, 0, len(stats))
	for _, cs := range stats {
		sorted = append(sorted, cs)
	}
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].total > sorted[j].total })
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}

	top := make([]map[string]any, 0, len(sorted))
	for _, cs := range sorted {
		types := map[string]any{}
		for t, n := range cs.types {
			types[t] = n
		}
		top = append(top, map[string]any{
			"camera_id":    cs.id,
			"camera_name":  cs.name,
			"total_events": cs.total,
			"event_types":  types,
		})
	}

	return skill.Result{
		"period": map[string]any{
			"start_date": start.Format("2006-01-02"),
			"end_date":   end.Format("2006-01-02"),
		},
		"top_cameras": top,
	}, nil
}

var toolPlanPattern = regexp.MustCompile(`\{[\s\S]*\}`)

// analyzeQuery answers a free-form analytics question: the model first
// picks one of the deterministic tools and its parameters, then
// explains the tool's raw output in the user's language.
func (s *Skill) analyzeQuery(ctx context.Context, c skill.Context) (skill.Result, error) {
	query := c.Query()

	raw, err := s.client.Generate(ctx, s.toolPlanningPrompt(query))
	if err != nil {
		return nil, err
	}

	cleaned := strings.ReplaceAll(raw, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	match := toolPlanPattern.FindString(strings.TrimSpace(cleaned))
	if match == "" {
		s.logger.Warn("tool planning returned no JSON", "query", query)
		return skill.ErrorResult("도구 선택에 실패했습니다."), nil
	}
	var plan struct {
		Tool       string         `json:"tool"`
		Parameters map[string]any `json:"parameters"`
	}
	if err := json.Unmarshal([]byte(match), &plan); err != nil {
		s.logger.Warn("tool planning returned invalid JSON", "error", err)
		return skill.ErrorResult("도구 선택에 실패했습니다."), nil
	}

	toolContext := skill.Context(plan.Parameters)
	if toolContext == nil {
		toolContext = skill.Context{}
	}

	var result skill.Result
	switch plan.Tool {
	case "calculate_statistics":
		result, err = s.calculateStatistics(ctx, toolContext)
	case "analyze_trend":
		result, err = s.analyzeTrend(ctx, toolContext)
	case "assess_risk":
		result, err = s.assessRisk(ctx, toolContext)
	case "find_top_cameras":
		result, err = s.findTopCameras(ctx, toolContext)
	default:
		return skill.ErrorResult(fmt.Sprintf("알 수 없는 도구: %s", plan.Tool)), nil
	}
	if err != nil {
		return nil, err
	}

	explanation, err := s.client.Generate(ctx, explanationPrompt(plan.Tool, result, query))
	if err != nil {
		// raw tool output is still useful without the narration
		return result, nil
	}
	return skill.Result{
		"raw_result":  map[string]any(result),
		"explanation": explanation,
		"tool_used":   plan.Tool,
	}, nil
}

func (s *Skill) toolPlanningPrompt(query string) string {
	now := s.now()
	dateInfo := fmt.Sprintf(`오늘 날짜: %s
어제 날짜: %s
7일 전: %s
14일 전: %s
30일 전: %s`,
		now.Format("2006-01-02"),
		now.AddDate(0, 0, -1).Format("2006-01-02"),
		now.AddDate(0, 0, -7).Format("2006-01-02"),
		now.AddDate(0, 0, -14).Format("2006-01-02"),
		now.AddDate(0, 0, -30).Format("2006-01-02"))

	return fmt.Sprintf(`당신은 안전 모니터링 시스템의 데이터 분석 전문가입니다.

현재 날짜 정보:
%s

사용자 요청: %s

사용 가능한 도구:
1. calculate_statistics - 기간별 통계 계산
   파라미터: start_date, end_date (YYYY-MM-DD)

2. find_top_cameras - 상위 카메라 찾기
   파라미터: start_date, end_date, limit (선택)

3. analyze_trend - 추세 분석
   파라미터: start_date, end_date

4. assess_risk - 위험도 평가
   파라미터: camera_id (선택), days

어떤 도구를 사용해야 하는지 JSON 형식으로만 답변하세요.

{
  "tool": "도구_이름",
  "parameters": {
    "param1": "value1"
  }
}`, dateInfo, query)
}

func explanationPrompt(tool string, result skill.Result, query string) string {
	data, _ := json.MarshalIndent(result, "", "  ")
	return fmt.Sprintf(`다음은 %s 도구의 실행 결과입니다:

%s

사용자 요청: %s

위 데이터를 바탕으로 사용자가 이해하기 쉽도록 설명해주세요.
- 구체적인 숫자와 퍼센트를 포함하세요
- 주요 인사이트를 강조하세요
- 필요하면 권장 사항을 제시하세요
- 명확하고 간결하게 작성하세요`, tool, data, query)
}

// period reads start_date/end_date from the context, defaulting to the
// trailing defaultDays window. The end date extends to 23:59:59.
func (s *Skill) period(c skill.Context, defaultDays int) (time.Time, time.Time) {
	now := s.now()
	end := now
	start := now.AddDate(0, 0, -defaultDays)

	if v := c.String("start_date"); v != "" {
		if t, err := parseDate(v, now); err == nil {
			start = t
		}
	}
	if v := c.String("end_date"); v != "" {
		if t, err := parseDate(v, now); err == nil {
			end = t.Add(24*time.Hour - time.Second)
		}
	}
	return start, end
}

// parseDate accepts YYYY-MM-DD plus the relative forms "today" and
// "yesterday".
func parseDate(v string, now time.Time) (time.Time, error) {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "today":
		return truncateDay(now), nil
	case "yesterday":
		return truncateDay(now.AddDate(0, 0, -1)), nil
	}
	return time.ParseInLocation("2006-01-02", v, time.UTC)
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func countByType(events []store.Event) map[string]int {
	counts := map[string]int{}
	for _, e := range events {
		counts[e.EventType]++
	}
	return counts
}

func union(a, b map[string]int) map[string]struct{} {
	out := make(map[string]struct{}, len(a)+len(b))
	for k := range a {
		out[k] = struct{}{}
	}
	for k := range b {
		out[k] = struct{}{}
	}
	return out
}

func changeRate(curr, prev int) float64 {
	if prev > 0 {
		return round2(float64(curr-prev) / float64(prev) * 100)
	}
	if curr > 0 {
		return 100.0
	}
	return 0.0
}

func count(v any) int {
	if n, ok := v.(int); ok {
		return n
	}
	return 0
}

func intFrom(c skill.Context, key string, fallback int) int {
	switch v := c[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	}
	return fallback
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
