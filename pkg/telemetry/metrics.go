// SPDX-License-Identifier: Apache-2.0
// Package telemetry provides observability for the Vigil routing engine.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// RouterMetrics tracks routing decisions for production monitoring.
type RouterMetrics struct {
	// quickRouteHits counts requests resolved by the keyword table.
	quickRouteHits metric.Int64Counter

	// plannerCalls counts requests that needed the generation collaborator.
	plannerCalls metric.Int64Counter

	// fallbackPlans counts plans degraded to the default skill.
	fallbackPlans metric.Int64Counter
}

// NewRouterMetrics creates a router metrics tracker with OTEL meters.
func NewRouterMetrics() (*RouterMetrics, error) {
	meter := otel.Meter("vigil/router")

	quickRouteHits, err := meter.Int64Counter(
		"vigil.router.quick_route_hits",
		metric.WithDescription("Requests resolved by the keyword table, by skill"),
	)
	if err != nil {
		return nil, err
	}

	plannerCalls, err := meter.Int64Counter(
		"vigil.router.planner_calls",
		metric.WithDescription("Requests routed through the generation collaborator"),
	)
	if err != nil {
		return nil, err
	}

	fallbackPlans, err := meter.Int64Counter(
		"vigil.router.fallback_plans",
		metric.WithDescription("Plans degraded to the default skill"),
	)
	if err != nil {
		return nil, err
	}

	return &RouterMetrics{
		quickRouteHits: quickRouteHits,
		plannerCalls:   plannerCalls,
		fallbackPlans:  fallbackPlans,
	}, nil
}

// RecordQuickRoute increments the quick-route counter for a skill.
func (m *RouterMetrics) RecordQuickRoute(ctx context.Context, skill string) {
	if m == nil {
		return
	}
	m.quickRouteHits.Add(ctx, 1, metric.WithAttributes(attribute.String("skill", skill)))
}

// RecordPlannerCall increments the planner-call counter.
func (m *RouterMetrics) RecordPlannerCall(ctx context.Context) {
	if m == nil {
		return
	}
	m.plannerCalls.Add(ctx, 1)
}

// RecordFallback increments the fallback counter with the failure reason class.
func (m *RouterMetrics) RecordFallback(ctx context.Context, cause string) {
	if m == nil {
		return
	}
	m.fallbackPlans.Add(ctx, 1, metric.WithAttributes(attribute.String("cause", cause)))
}

// EngineMetrics tracks step execution for production monitoring.
type EngineMetrics struct {
	requestsHandled metric.Int64Counter
	stepsExecuted   metric.Int64Counter
	stepFailures    metric.Int64Counter
}

// NewEngineMetrics creates an engine metrics tracker with OTEL meters.
func NewEngineMetrics() (*EngineMetrics, error) {
	meter := otel.Meter("vigil/engine")

	requestsHandled, err := meter.Int64Counter(
		"vigil.engine.requests",
		metric.WithDescription("Requests handled end to end"),
	)
	if err != nil {
		return nil, err
	}

	stepsExecuted, err := meter.Int64Counter(
		"vigil.engine.steps",
		metric.WithDescription("Plan steps executed, by skill"),
	)
	if err != nil {
		return nil, err
	}

	stepFailures, err := meter.Int64Counter(
		"vigil.engine.step_failures",
		metric.WithDescription("Plan steps that degraded to an error result, by code"),
	)
	if err != nil {
		return nil, err
	}

	return &EngineMetrics{
		requestsHandled: requestsHandled,
		stepsExecuted:   stepsExecuted,
		stepFailures:    stepFailures,
	}, nil
}

// RecordRequest increments the request counter.
func (m *EngineMetrics) RecordRequest(ctx context.Context) {
	if m == nil {
		return
	}
	m.requestsHandled.Add(ctx, 1)
}

// RecordStep increments the step counter for a skill.
func (m *EngineMetrics) RecordStep(ctx context.Context, skill string) {
	if m == nil {
		return
	}
	m.stepsExecuted.Add(ctx, 1, metric.WithAttributes(attribute.String("skill", skill)))
}

// RecordStepFailure increments the failure counter with the error code.
func (m *EngineMetrics) RecordStepFailure(ctx context.Context, skill, code string) {
	if m == nil {
		return
	}
	m.stepFailures.Add(ctx, 1, metric.WithAttributes(
		attribute.String("skill", skill),
		attribute.String("code", code),
	))
}
