package router

import (
	"encoding/json"
	"regexp"
	"strings"

	"github.com/vigil-ai/vigil/pkg/errors"
)

// Source records which routing tier produced a plan.
type Source string

const (
	SourceQuickRoute Source = "quick_route"
	SourcePlanner    Source = "planner"
	SourceFallback   Source = "fallback"
)

// Step is one unit of work inside a plan: the skill to invoke and a
// free-text description of what it should do. The skill name is not
// checked against the registry here; unknown names surface as a
// degraded step at execution time.
type Step struct {
	Skill string `json:"skill"`
	Task  string `json:"task"`
}

// Plan is the router's decision for a single request.
type Plan struct {
	MultiStep bool   `json:"multi_step"`
	Steps     []Step `json:"steps"`
	Reason    string `json:"reason,omitempty"`
	Source    Source `json:"-"`
}

// SingleStep builds a one-step plan.
func SingleStep(skillName, task, reason string, source Source) *Plan {
	return &Plan{
		Steps:  []Step{{Skill: skillName, Task: task}},
		Reason: reason,
		Source: source,
	}
}

// Validate checks the plan's structural invariant: at least one step,
// each with a non-empty skill name.
func (p *Plan) Validate() error {
	if p == nil || len(p.Steps) == 0 {
		return errors.New(errors.CodeInvalidInput, "plan has no steps", nil)
	}
	for i, step := range p.Steps {
		if strings.TrimSpace(step.Skill) == "" {
			return errors.New(errors.CodeInvalidInput, "plan step has empty skill name", nil).
				WithContext("step", i)
		}
	}
	return nil
}

var jsonObjectPattern = regexp.MustCompile(`\{[\s\S]*\}`)

// planPayload mirrors the JSON shape the planning prompt asks the model
// to produce. Single-step responses put skill/task at the top level;
// multi-step responses carry a steps array.
type planPayload struct {
	Skill     string `json:"skill"`
	Task      string `json:"task"`
	Reason    string `json:"reason"`
	MultiStep bool   `json:"multi_step"`
	Steps     []Step `json:"steps"`
}

// ParsePlan extracts a plan from raw model output. The output is
// untrusted: code fences are stripped and the first JSON object found
// is parsed. Any failure returns a GENERATION_FAILURE error so the
// caller can degrade to the fallback plan.
func ParsePlan(raw string) (*Plan, error) {
	cleaned := strings.ReplaceAll(raw, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")
	cleaned = strings.TrimSpace(cleaned)

	match := jsonObjectPattern.FindString(cleaned)
	if match == "" {
		return nil, errors.New(errors.CodeGenerationFailure, "no JSON object in planner output", nil).WithRecoverable(true)
	}

	var payload planPayload
	if err := json.Unmarshal([]byte(match), &payload); err != nil {
		return nil, errors.New(errors.CodeGenerationFailure, "invalid planner JSON", err).WithRecoverable(true)
	}

	plan := &Plan{
		MultiStep: payload.MultiStep,
		Reason:    payload.Reason,
		Source:    SourcePlanner,
	}
	if payload.MultiStep {
		plan.Steps = payload.Steps
	} else {
		plan.Steps = []Step{{Skill: payload.Skill, Task: payload.Task}}
	}
	if err := plan.Validate(); err != nil {
		return nil, errors.New(errors.CodeGenerationFailure, "planner produced malformed plan", err).WithRecoverable(true)
	}
	return plan, nil
}
