package router

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vigil-ai/vigil/pkg/llm"
	"github.com/vigil-ai/vigil/pkg/resilience"
	"github.com/vigil-ai/vigil/pkg/skill"
	"github.com/vigil-ai/vigil/pkg/telemetry"
)

// FallbackSkill is where requests land when planning fails: the
// knowledge skill can answer anything as a plain RAG question.
const FallbackSkill = "knowledge"

// RouteRule binds a skill to the keywords that short-circuit routing
// to it. Rules are evaluated in slice order; the first rule with a
// keyword present in the request wins.
type RouteRule struct {
	Skill    string
	Keywords []string
}

// DefaultRouteRules returns the built-in quick-route table. Order
// matters: a request matching both an analytics and a report keyword
// routes to analytics because analytics is declared first.
func DefaultRouteRules() []RouteRule {
	return []RouteRule{
		{Skill: "data_analytics", Keywords: []string{
			"통계", "분석", "추세", "위험도", "비교", "계산",
			"증감", "변화", "평가", "많은", "적은", "높은", "낮은",
		}},
		{Skill: "report", Keywords: []string{
			"보고서", "조치", "방안", "대응", "작성", "생성",
			"가이드", "계획", "요약", "정리",
		}},
		{Skill: "knowledge", Keywords: []string{
			"검색", "찾아", "알려", "법규", "규정", "어떻게",
			"무엇", "왜", "설명", "안내", "교육",
		}},
		{Skill: "vision", Keywords: []string{
			"이미지", "사진", "영상", "PPE", "착용", "감지", "확인",
		}},
	}
}

// Router decides which skills handle a request. It tries the keyword
// table first (no model call) and falls back to asking the generation
// model for a structured plan. Route never fails: any planning error
// degrades to a deterministic single-step plan on the fallback skill.
type Router struct {
	registry *skill.Registry
	client   *llm.Client
	rules    []RouteRule
	fallback string
	retry    resilience.RetryConfig
	tracer   trace.Tracer
	metrics  *telemetry.RouterMetrics
	logger   *slog.Logger
}

// RouterOption configures a Router.
type RouterOption func(*Router)

// WithRouteRules replaces the built-in quick-route table.
func WithRouteRules(rules []RouteRule) RouterOption {
	return func(r *Router) { r.rules = rules }
}

// WithFallbackSkill overrides the skill used for fallback plans.
func WithFallbackSkill(name string) RouterOption {
	return func(r *Router) { r.fallback = name }
}

// WithRetry overrides the retry policy for planning calls.
func WithRetry(rc resilience.RetryConfig) RouterOption {
	return func(r *Router) { r.retry = rc }
}

// WithMetrics attaches router metrics. Nil metrics are a no-op.
func WithMetrics(m *telemetry.RouterMetrics) RouterOption {
	return func(r *Router) { r.metrics = m }
}

// WithRouterLogger sets the router's logger.
func WithRouterLogger(logger *slog.Logger) RouterOption {
	return func(r *Router) { r.logger = logger }
}

// NewRouter builds a Router over a registry and a generation client.
func NewRouter(registry *skill.Registry, client *llm.Client, opts ...RouterOption) *Router {
	r := &Router{
		registry: registry,
		client:   client,
		rules:    DefaultRouteRules(),
		fallback: FallbackSkill,
		retry:    resilience.GenerationRetryConfig(),
		tracer:   otel.Tracer("vigil/router"),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// QuickRoute scans the request against the keyword table. It returns
// the matched skill name and true, or "" and false when the request
// needs the planning model.
func (r *Router) QuickRoute(text string) (string, bool) {
	for _, rule := range r.rules {
		for _, kw := range rule.Keywords {
			if strings.Contains(text, kw) {
				return rule.Skill, true
			}
		}
	}
	return "", false
}

// Route produces a plan for the request. The quick-route tier wins
// whenever a keyword matches, even if the planner would have chosen
// differently; this preserves determinism for the common cases.
func (r *Router) Route(ctx context.Context, text string) *Plan {
	ctx, span := r.tracer.Start(ctx, "router.route")
	defer span.End()

	if name, ok := r.QuickRoute(text); ok {
		span.SetAttributes(attribute.String("route.skill", name), attribute.String("route.source", string(SourceQuickRoute)))
		r.metrics.RecordQuickRoute(ctx, name)
		r.logger.Debug("quick route", "skill", name)
		// task is left empty: the task resolver fills it at execution time.
		return SingleStep(name, "", "keyword match", SourceQuickRoute)
	}

	r.metrics.RecordPlannerCall(ctx)
	plan, err := r.planWithModel(ctx, text)
	if err != nil {
		span.SetAttributes(attribute.String("route.source", string(SourceFallback)))
		r.metrics.RecordFallback(ctx, "generation_failure")
		r.logger.Warn("planning failed, using fallback plan", "error", err)
		return SingleStep(r.fallback, text, fmt.Sprintf("planning failed: %v", err), SourceFallback)
	}
	span.SetAttributes(attribute.String("route.source", string(SourcePlanner)))
	return plan
}

func (r *Router) planWithModel(ctx context.Context, text string) (*Plan, error) {
	prompt := r.buildPlanningPrompt(text)

	var plan *Plan
	err := r.retry.Do(ctx, func() error {
		raw, err := r.client.Generate(ctx, prompt)
		if err != nil {
			return err
		}
		plan, err = ParsePlan(raw)
		return err
	})
	if err != nil {
		return nil, err
	}
	return plan, nil
}

// buildPlanningPrompt enumerates registered skills with their
// descriptions and example utterances and asks for a JSON plan.
func (r *Router) buildPlanningPrompt(text string) string {
	var b strings.Builder
	b.WriteString("You are the task dispatcher of a safety monitoring assistant.\n\n")
	fmt.Fprintf(&b, "User request: %s\n\n", text)
	b.WriteString("Available skills:\n")

	for i, d := range r.registry.Descriptors() {
		fmt.Fprintf(&b, "%d. %s - %s\n", i+1, d.Name, d.Description)
		if len(d.Examples) > 0 {
			fmt.Fprintf(&b, "   Examples: %s\n", strings.Join(d.Examples, ", "))
		}
	}

	b.WriteString(`
Decide which skill should handle the request. Complex requests may
chain several skills sequentially, each later step building on the
previous step's output.

Respond with JSON only:
{
  "skill": "<skill name>",
  "task": "<specific task description>",
  "reason": "<why this skill>",
  "multi_step": false
}

Or for multi-step requests:
{
  "multi_step": true,
  "steps": [
    {"skill": "<skill name>", "task": "<specific task description>"},
    {"skill": "<skill name>", "task": "<specific task description>"}
  ],
  "reason": "<why multiple steps>"
}`)
	return b.String()
}
