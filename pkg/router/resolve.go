package router

import (
	"strings"

	"github.com/vigil-ai/vigil/pkg/skill"
)

// ResolveTask maps free request text to one of the skill's task names
// using the descriptor's ordered keyword rules. The first rule whose
// keyword appears in the text wins; when nothing matches, the skill's
// declared default task is returned. The function is pure and never
// fails: a descriptor with no default still yields "execute".
func ResolveTask(text string, d *skill.Descriptor) string {
	if d == nil {
		return "execute"
	}
	for _, rule := range d.TaskRules {
		if strings.Contains(text, rule.Keyword) {
			return rule.Task
		}
	}
	if d.DefaultTask != "" {
		return d.DefaultTask
	}
	return "execute"
}
