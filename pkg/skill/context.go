package skill

import (
	"fmt"
	"strings"

	"github.com/vigil-ai/vigil/pkg/errors"
)

// Reserved context keys. A Context always carries the resolved task and the
// request text; PreviousResult is set by the execution engine for step i>0 of
// a multi-step plan.
const (
	KeyQuery           = "query"
	KeyTask            = "task"
	KeyTaskDescription = "task_description"
	KeyPreviousResult  = "previous_result"
	KeyImages          = "images"
)

// Context is the open key/value bag passed into a skill's task invocation.
// It is created fresh per step and never shared across steps.
type Context map[string]any

// String returns the string value for key, or empty string.
func (c Context) String(key string) string {
	if c == nil {
		return ""
	}
	s, _ := c[key].(string)
	return s
}

// Query returns the original (or augmented) request text.
func (c Context) Query() string { return c.String(KeyQuery) }

// TaskDescription returns the free-text task description for this step.
func (c Context) TaskDescription() string { return c.String(KeyTaskDescription) }

// PreviousResult returns the rendered output of the previous step, if any.
func (c Context) PreviousResult() string { return c.String(KeyPreviousResult) }

// Images returns base64-encoded image attachments, if any.
func (c Context) Images() []string {
	if c == nil {
		return nil
	}
	switch v := c[KeyImages].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}

// Clone returns a shallow copy of the context.
func (c Context) Clone() Context {
	out := make(Context, len(c))
	for k, v := range c {
		out[k] = v
	}
	return out
}

// Require returns a validation error naming every missing or empty key.
func (c Context) Require(keys ...string) error {
	var missing []string
	for _, key := range keys {
		v, ok := c[key]
		if !ok || v == nil {
			missing = append(missing, key)
			continue
		}
		if s, isString := v.(string); isString && strings.TrimSpace(s) == "" {
			missing = append(missing, key)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return errors.New(errors.CodeValidationFailed,
		fmt.Sprintf("missing required context keys: %s", strings.Join(missing, ", ")), nil).
		WithContext("missing", missing)
}
