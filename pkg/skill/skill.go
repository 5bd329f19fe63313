// Package skill defines the capability unit contract for the Vigil engine:
// descriptors, the task context bag, results, and the registry that owns
// skill instances.
package skill

import "context"

// TaskRule maps a request keyword to a task identifier. Rules are evaluated
// in declared order; the first match wins.
type TaskRule struct {
	Keyword string
	Task    string
}

// Descriptor is the immutable identity of a skill. It is created once by the
// skill's constructor and read by the registry and the router.
type Descriptor struct {
	Name         string
	Description  string
	Version      string
	Author       string
	Dependencies []string
	Tags         []string

	// Examples are sample utterances shown to the planning collaborator.
	Examples []string

	// TaskRules is the ordered keyword-to-task table for this skill.
	// DefaultTask is returned when no rule matches; every skill must
	// declare one.
	TaskRules   []TaskRule
	DefaultTask string

	// AcceptsImages marks skills that consume image attachments.
	AcceptsImages bool
}

// Skill is the contract every capability unit implements.
type Skill interface {
	// Descriptor returns the skill identity. The returned value must not
	// be mutated by callers.
	Descriptor() *Descriptor

	// TaskNames returns the task identifiers this skill accepts.
	TaskNames() []string

	// Validate checks structural preconditions (required context keys)
	// before Execute. A validation failure is a caller error, not an
	// internal fault.
	Validate(task string, c Context) error

	// Execute performs the task. Unknown tasks fail with CodeUnknownTask.
	Execute(ctx context.Context, task string, c Context) (Result, error)
}
