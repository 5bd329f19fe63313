// Package engine executes routing plans: it resolves each step's skill
// and task, threads the previous step's output forward, and synthesizes
// the final answer. The engine's public surface returns text only;
// every failure degrades to a user-readable message.
package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vigil-ai/vigil/pkg/errors"
	"github.com/vigil-ai/vigil/pkg/llm"
	"github.com/vigil-ai/vigil/pkg/router"
	"github.com/vigil-ai/vigil/pkg/skill"
	"github.com/vigil-ai/vigil/pkg/telemetry"
)

// Apology is returned when a plan is empty or every step failed.
const Apology = "요청을 처리하지 못했습니다. 잠시 후 다시 시도해 주세요."

// StepResult is the outcome of one executed plan step. The sequence of
// results is append-only and ordered like the plan's steps.
type StepResult struct {
	Index  int
	Skill  string
	Task   string
	Output string
	Err    error
}

// Failed reports whether the step degraded to an error result.
func (r StepResult) Failed() bool { return r.Err != nil }

// Engine runs plans against the skill registry.
type Engine struct {
	registry *skill.Registry
	router   *router.Router
	client   *llm.Client
	tracer   trace.Tracer
	metrics  *telemetry.EngineMetrics
	logger   *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithMetrics attaches engine metrics. Nil metrics are a no-op.
func WithMetrics(m *telemetry.EngineMetrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger sets the engine's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// New builds an Engine.
func New(registry *skill.Registry, rt *router.Router, client *llm.Client, opts ...Option) *Engine {
	e := &Engine{
		registry: registry,
		router:   rt,
		client:   client,
		tracer:   otel.Tracer("vigil/engine"),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Handle processes one request end to end: route, run, synthesize.
// It never returns an error; any failure surfaces as text. The second
// return value is the run identifier stamped on logs and traces.
func (e *Engine) Handle(ctx context.Context, text string, images []string) (string, string) {
	runID := uuid.NewString()
	ctx = telemetry.WithRunID(ctx, runID)
	ctx, span := e.tracer.Start(ctx, "engine.handle",
		trace.WithAttributes(attribute.String("run.id", runID)))
	defer span.End()

	e.metrics.RecordRequest(ctx)
	logger := e.logger.With("run_id", runID)
	logger.Info("handling request", "images", len(images))

	plan := e.router.Route(ctx, text)
	logger.Info("plan ready", "source", plan.Source, "steps", len(plan.Steps))

	return e.Run(ctx, plan, text, images), runID
}

// Run executes a plan sequentially. Steps are strictly ordered: step
// i+1's context carries step i's rendered output. A failing step
// degrades to an error-shaped result and execution continues with the
// remaining steps. Run always returns text.
func (e *Engine) Run(ctx context.Context, plan *router.Plan, request string, images []string) string {
	if plan == nil || len(plan.Steps) == 0 {
		return Apology
	}

	results := make([]StepResult, 0, len(plan.Steps))
	previous := ""
	for i, step := range plan.Steps {
		result := e.executeStep(ctx, i, step, request, images, previous)
		results = append(results, result)
		// The error text travels forward too: downstream steps may
		// still be independent of the failed one.
		previous = result.Output

		if result.Failed() {
			e.metrics.RecordStepFailure(ctx, step.Skill, string(errors.CodeOf(result.Err)))
			e.logger.Warn("step failed", "step", i, "skill", step.Skill, "error", result.Err)
		}
	}

	return e.Synthesize(ctx, request, results)
}

func (e *Engine) executeStep(ctx context.Context, index int, step router.Step, request string, images []string, previous string) (result StepResult) {
	ctx, span := e.tracer.Start(ctx, "engine.step",
		trace.WithAttributes(
			attribute.Int("step.index", index),
			attribute.String("step.skill", step.Skill),
		))
	defer span.End()

	result = StepResult{Index: index, Skill: step.Skill}
	defer func() {
		if r := recover(); r != nil {
			result.Err = errors.New(errors.CodeExecutionFailure,
				fmt.Sprintf("skill panicked: %v", r), nil).
				WithContext("skill", step.Skill)
			result.Output = skill.ErrorResult(fmt.Sprintf("%s 작업 중 오류가 발생했습니다.", step.Skill)).Render()
		}
	}()

	e.metrics.RecordStep(ctx, step.Skill)

	s, ok := e.registry.Get(step.Skill)
	if !ok {
		result.Err = errors.New(errors.CodeUnknownSkill, "skill not found", nil).
			WithContext("skill", step.Skill)
		result.Output = skill.ErrorResult(fmt.Sprintf("%s not found", step.Skill)).Render()
		return result
	}
	desc := s.Descriptor()

	task := router.ResolveTask(request, desc)
	result.Task = task

	taskDescription := step.Task
	if taskDescription == "" {
		taskDescription = request
	}

	c := skill.Context{
		skill.KeyQuery:           request,
		skill.KeyTask:            task,
		skill.KeyTaskDescription: taskDescription,
	}
	if previous != "" {
		c[skill.KeyPreviousResult] = previous
	}
	if len(images) > 0 && desc.AcceptsImages {
		c[skill.KeyImages] = images
	}

	if err := s.Validate(task, c); err != nil {
		result.Err = err
		result.Output = skill.ErrorResult(err.Error()).Render()
		return result
	}

	out, err := s.Execute(ctx, task, c)
	if err != nil {
		result.Err = errors.New(errors.CodeExecutionFailure, "skill execution failed", err).
			WithContext("skill", step.Skill).
			WithContext("task", task)
		result.Output = skill.ErrorResult(fmt.Sprintf("%s 작업 중 오류가 발생했습니다.", step.Skill)).Render()
		return result
	}

	result.Output = out.Render()
	return result
}
