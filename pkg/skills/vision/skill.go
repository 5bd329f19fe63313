// Package vision implements the vision skill: scene analysis, PPE
// detection and safety assessment over camera frames using a
// vision-capable generation model.
package vision

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/vigil-ai/vigil/pkg/errors"
	"github.com/vigil-ai/vigil/pkg/llm"
	"github.com/vigil-ai/vigil/pkg/skill"
)

// Name is the registry name of this skill.
const Name = "vision"

// Violation is one PPE finding parsed out of a model response.
type Violation struct {
	Type     string `json:"type"`
	Severity string `json:"severity"`
}

// Skill analyzes camera frames with a vision model.
type Skill struct {
	client *llm.Client
	logger *slog.Logger
}

// Option configures the vision skill.
type Option func(*Skill)

// WithLogger sets the skill's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Skill) { s.logger = logger }
}

// New builds the vision skill. The client must target a vision-capable
// model.
func New(client *llm.Client, opts ...Option) *Skill {
	s := &Skill{client: client, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Skill) Descriptor() *skill.Descriptor {
	return &skill.Descriptor{
		Name:        Name,
		Description: "이미지 분석, PPE 착용 감지 및 안전 상태 평가",
		Version:     "1.0.0",
		Author:      "Safety Team",
		Tags:        []string{"vision", "image", "ppe", "detection"},
		Examples:    []string{"이 사진 분석해줘", "PPE 착용 확인해줘", "두 이미지 비교해줘"},
		TaskRules: []skill.TaskRule{
			{Keyword: "분석", Task: "analyze_image"},
			{Keyword: "PPE", Task: "detect_ppe"},
			{Keyword: "착용", Task: "detect_ppe"},
			{Keyword: "비교", Task: "compare_images"},
		},
		DefaultTask:   "analyze_image",
		AcceptsImages: true,
	}
}

func (s *Skill) TaskNames() []string {
	return []string{
		"analyze_image",
		"detect_ppe",
		"assess_safety",
		"compare_images",
	}
}

func (s *Skill) Validate(task string, c skill.Context) error {
	switch task {
	case "analyze_image", "detect_ppe", "assess_safety":
		if len(c.Images()) == 0 {
			return errors.New(errors.CodeValidationFailed, "분석할 이미지가 필요합니다.", nil)
		}
		return nil
	case "compare_images":
		if len(c.Images()) < 2 {
			return errors.New(errors.CodeValidationFailed, "비교하려면 이미지 2장이 필요합니다.", nil)
		}
		return nil
	default:
		return errors.New(errors.CodeUnknownTask, "unknown vision task", nil).
			WithContext("task", task)
	}
}

func (s *Skill) Execute(ctx context.Context, task string, c skill.Context) (skill.Result, error) {
	switch task {
	case "analyze_image":
		return s.analyzeImage(ctx, c)
	case "detect_ppe":
		return s.detectPPE(ctx, c)
	case "assess_safety":
		return s.assessSafety(ctx, c)
	case "compare_images":
		return s.compareImages(ctx, c)
	default:
		return nil, errors.New(errors.CodeUnknownTask, "unknown vision task", nil).
			WithContext("task", task)
	}
}

func (s *Skill) analyzeImage(ctx context.Context, c skill.Context) (skill.Result, error) {
	prompt := analyzePrompt
	if q := c.Query(); q != "" {
		prompt = fmt.Sprintf("%s\n\n사용자 요청: %s", analyzePrompt, q)
	}
	analysis, err := s.client.Generate(ctx, prompt, c.Images()[0])
	if err != nil {
		return nil, err
	}
	return skill.Result{
		"task":     "analyze_image",
		"analysis": analysis,
		"content":  analysis,
	}, nil
}

func (s *Skill) detectPPE(ctx context.Context, c skill.Context) (skill.Result, error) {
	response, err := s.client.Generate(ctx, ppePrompt, c.Images()[0])
	if err != nil {
		return nil, err
	}
	violations := parseViolations(response)
	riskLevel := riskFromViolations(violations)
	return skill.Result{
		"task":             "detect_ppe",
		"analysis":         response,
		"violations":       violationEntries(violations),
		"total_violations": len(violations),
		"risk_level":       riskLevel,
		"recommendations":  recommendations(violations),
		"content":          response,
	}, nil
}

func (s *Skill) assessSafety(ctx context.Context, c skill.Context) (skill.Result, error) {
	response, err := s.client.Generate(ctx, safetyPrompt, c.Images()[0])
	if err != nil {
		return nil, err
	}
	violations := parseViolations(response)
	return skill.Result{
		"task":       "assess_safety",
		"assessment": response,
		"risk_level": riskFromViolations(violations),
		"content":    response,
	}, nil
}

func (s *Skill) compareImages(ctx context.Context, c skill.Context) (skill.Result, error) {
	images := c.Images()
	response, err := s.client.Generate(ctx, comparePrompt, images[0], images[1])
	if err != nil {
		return nil, err
	}
	return skill.Result{
		"task":       "compare_images",
		"comparison": response,
		"content":    response,
	}, nil
}

// parseViolations extracts PPE findings from the model's Korean
// response text.
func parseViolations(response string) []Violation {
	var violations []Violation
	if mentionsMissing(response, "안전모") || mentionsMissing(response, "헬멧") {
		violations = append(violations, Violation{Type: "helmet_missing", Severity: "high"})
	}
	if mentionsMissing(response, "조끼") {
		violations = append(violations, Violation{Type: "vest_missing", Severity: "medium"})
	}
	if mentionsMissing(response, "안전화") {
		violations = append(violations, Violation{Type: "boots_missing", Severity: "medium"})
	}
	if mentionsMissing(response, "장갑") {
		violations = append(violations, Violation{Type: "gloves_missing", Severity: "low"})
	}
	return violations
}

// mentionsMissing reports whether the response marks the given item as
// not worn.
func mentionsMissing(response, item string) bool {
	idx := strings.Index(response, item)
	for idx >= 0 {
		rest := response[idx+len(item):]
		// look for a non-wearing marker near the item mention
		window := rest
		if len(window) > 60 {
			window = window[:60]
		}
		if strings.Contains(window, "미착용") || strings.Contains(window, "착용하지 않") ||
			strings.Contains(window, "착용 안") {
			return true
		}
		next := strings.Index(rest, item)
		if next < 0 {
			return false
		}
		idx += len(item) + next
	}
	return false
}

func riskFromViolations(violations []Violation) string {
	for _, v := range violations {
		if v.Severity == "high" {
			return "high"
		}
	}
	if len(violations) > 2 {
		return "medium"
	}
	if len(violations) > 0 {
		return "low"
	}
	return "safe"
}

func recommendations(violations []Violation) []any {
	messages := map[string]string{
		"helmet_missing": "즉시 작업을 중지시키고 안전모를 착용하도록 지시하세요.",
		"vest_missing":   "안전조끼 착용을 지시하고 예비 조끼 비치 상태를 점검하세요.",
		"boots_missing":  "안전화 착용을 확인하고 미지급 시 지급 절차를 진행하세요.",
		"gloves_missing": "작업 종류에 맞는 보호 장갑 착용을 안내하세요.",
	}
	var out []any
	for _, v := range violations {
		if msg, ok := messages[v.Type]; ok {
			out = append(out, msg)
		}
	}
	if len(out) == 0 {
		out = append(out, "현재 특이사항이 없습니다. 정기 점검을 유지하세요.")
	}
	return out
}

func violationEntries(violations []Violation) []any {
	entries := make([]any, 0, len(violations))
	for _, v := range violations {
		entries = append(entries, map[string]any{
			"type":     v.Type,
			"severity": v.Severity,
		})
	}
	return entries
}

const analyzePrompt = `이 산업 현장 이미지를 분석해주세요.

다음 항목을 중심으로 설명해주세요:
1. 현장 상황 (작업 내용, 인원, 장비)
2. 안전 관련 특이사항
3. 주목할 만한 위험 요소

분석 결과:`

const ppePrompt = `이 이미지에서 작업자의 개인보호구(PPE) 착용 상태를 점검해주세요.

각 작업자에 대해 다음을 확인하세요:
1. 안전모 착용 여부
2. 안전조끼 착용 여부
3. 안전화 착용 여부
4. 기타 보호구 (장갑, 보안경 등)

미착용 항목이 있으면 "미착용"이라고 명시해주세요.

점검 결과:`

const safetyPrompt = `이 산업 현장 이미지의 전반적인 안전 상태를 평가해주세요.

평가 항목:
1. 작업자 보호구 착용 상태
2. 작업 환경의 위험 요소 (낙하물, 전선, 적재물 등)
3. 안전 설비 상태 (펜스, 표지판, 소화기 등)
4. 종합 위험도 (낮음/보통/높음)

평가 결과:`

const comparePrompt = `두 이미지를 비교 분석해주세요.

비교 항목:
1. 현장 상황의 변화
2. 안전 상태의 개선 또는 악화
3. 인원 및 장비 변동

비교 결과:`
