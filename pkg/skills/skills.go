// Package skills assembles the built-in skill set: factories in
// registration order, with optional SKILL.md metadata overlays.
package skills

import (
	"log/slog"

	kb "github.com/vigil-ai/vigil/pkg/knowledge"
	"github.com/vigil-ai/vigil/pkg/llm"
	"github.com/vigil-ai/vigil/pkg/skill"
	"github.com/vigil-ai/vigil/pkg/skills/analytics"
	knowledgeskill "github.com/vigil-ai/vigil/pkg/skills/knowledge"
	"github.com/vigil-ai/vigil/pkg/skills/report"
	"github.com/vigil-ai/vigil/pkg/skills/vision"
	"github.com/vigil-ai/vigil/pkg/store"
)

// Deps carries the shared services the built-in skills are constructed
// from.
type Deps struct {
	Store     store.Store
	Client    *llm.Client
	Retriever kb.Retriever

	// VisionClient targets a vision-capable model. Falls back to Client
	// when unset.
	VisionClient *llm.Client

	// RetrieverLimit caps how many snippets knowledge lookups pull per
	// query. Zero keeps the skill's default.
	RetrieverLimit int

	// SpecDir optionally points at a directory of SKILL.md overlays.
	SpecDir string

	Logger *slog.Logger
}

// Factories returns the built-in skill factories in registration order.
// SKILL.md overlays, when configured, adjust descriptor metadata and
// prompt templates; a broken overlay directory is logged and skipped.
func Factories(deps Deps) []skill.Factory {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	visionClient := deps.VisionClient
	if visionClient == nil {
		visionClient = deps.Client
	}

	specs := loadSpecs(deps.SpecDir, logger)

	factories := []skill.Factory{
		{Name: analytics.Name, New: func() (skill.Skill, error) {
			return overlay(analytics.New(deps.Store, deps.Client,
				analytics.WithLogger(logger)), specs), nil
		}},
		{Name: report.Name, New: func() (skill.Skill, error) {
			opts := []report.Option{
				report.WithRetriever(deps.Retriever),
				report.WithLogger(logger),
			}
			if spec, ok := specs[report.Name]; ok && len(spec.Prompts) > 0 {
				opts = append(opts, report.WithPrompts(spec.Prompts))
			}
			return overlay(report.New(deps.Store, deps.Client, opts...), specs), nil
		}},
		{Name: knowledgeskill.Name, New: func() (skill.Skill, error) {
			opts := []knowledgeskill.Option{knowledgeskill.WithLogger(logger)}
			if deps.RetrieverLimit > 0 {
				opts = append(opts, knowledgeskill.WithLimit(deps.RetrieverLimit))
			}
			return overlay(knowledgeskill.New(deps.Retriever, deps.Client, opts...), specs), nil
		}},
		{Name: vision.Name, New: func() (skill.Skill, error) {
			return overlay(vision.New(visionClient,
				vision.WithLogger(logger)), specs), nil
		}},
	}
	return factories
}

func loadSpecs(dir string, logger *slog.Logger) map[string]skill.Spec {
	if dir == "" {
		return nil
	}
	loaded, err := skill.LoadSpecDir(dir)
	if err != nil {
		logger.Warn("skill spec directory unreadable, using built-in metadata",
			"dir", dir, "error", err)
		return nil
	}
	specs := make(map[string]skill.Spec, len(loaded))
	for _, spec := range loaded {
		specs[spec.Name] = spec
	}
	return specs
}

// overlaid applies a SKILL.md spec on top of a skill's built-in
// descriptor.
type overlaid struct {
	skill.Skill
	spec skill.Spec
}

func (o overlaid) Descriptor() *skill.Descriptor {
	d := o.Skill.Descriptor()
	o.spec.Apply(d)
	return d
}

func overlay(s skill.Skill, specs map[string]skill.Spec) skill.Skill {
	spec, ok := specs[s.Descriptor().Name]
	if !ok {
		return s
	}
	return overlaid{Skill: s, spec: spec}
}
