package skill

import (
	"fmt"
	"log/slog"

	"github.com/vigil-ai/vigil/pkg/errors"
)

// Factory constructs one skill under a declared name. Registration is
// explicit and configuration-driven; there is no runtime discovery.
type Factory struct {
	Name string
	New  func() (Skill, error)
}

// Registry owns the skill instances, indexed by name. It is populated once
// at startup and only mutated again under an explicit, caller-serialized
// reload; it is not safe for concurrent mutation by design.
type Registry struct {
	skills map[string]Skill
	names  []string
	logger *slog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithLogger sets the logger used for registration diagnostics.
func WithLogger(logger *slog.Logger) RegistryOption {
	return func(r *Registry) { r.logger = logger }
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{skills: make(map[string]Skill)}
	for _, opt := range opts {
		opt(r)
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// RegisterAll instantiates every factory and indexes the result by name.
// A factory that fails to construct is logged and skipped; one bad unit
// never prevents the others from loading. Returns the number registered.
func (r *Registry) RegisterAll(factories []Factory) int {
	loaded := 0
	for _, factory := range factories {
		if factory.Name == "" || factory.New == nil {
			r.logger.Warn("skipping malformed skill factory", "name", factory.Name)
			continue
		}
		s, err := factory.New()
		if err != nil {
			r.logger.Error("failed to load skill", "skill", factory.Name, "error", err)
			continue
		}
		if s.Descriptor().Name != factory.Name {
			r.logger.Error("skill descriptor name mismatch",
				"skill", factory.Name, "descriptor", s.Descriptor().Name)
			continue
		}
		r.Register(factory.Name, s)
		r.logger.Info("loaded skill", "skill", factory.Name, "tasks", len(s.TaskNames()))
		loaded++
	}
	return loaded
}

// Register indexes a skill under name. Re-registering replaces the prior
// instance while keeping its position in the name order (hot-reload).
func (r *Registry) Register(name string, s Skill) {
	if _, exists := r.skills[name]; !exists {
		r.names = append(r.names, name)
	}
	r.skills[name] = s
}

// Get returns the skill registered under name.
func (r *Registry) Get(name string) (Skill, bool) {
	s, ok := r.skills[name]
	return s, ok
}

// Names returns registered skill names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Capabilities returns the task identifiers a named skill exposes.
func (r *Registry) Capabilities(name string) ([]string, error) {
	s, ok := r.skills[name]
	if !ok {
		return nil, errors.New(errors.CodeUnknownSkill,
			fmt.Sprintf("skill not registered: %s", name), nil)
	}
	return s.TaskNames(), nil
}

// Descriptors returns every registered descriptor in registration order.
func (r *Registry) Descriptors() []*Descriptor {
	out := make([]*Descriptor, 0, len(r.names))
	for _, name := range r.names {
		out = append(out, r.skills[name].Descriptor())
	}
	return out
}
