package skill

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Result is a task's output: a mapping whose fields are recognized by caller
// convention. Callers must never assume a single canonical key.
type Result map[string]any

// renderKeys is the deterministic extraction order for well-known result
// fields. The first present string field wins; the ranked results list
// is consulted next, then lateRenderKeys.
var renderKeys = []string{
	"report",
	"action_plan",
	"summary",
	"answer",
}

var lateRenderKeys = []string{
	"guide",
	"explanation",
	"content",
}

// ErrorResult builds an error-shaped result for a degraded step.
func ErrorResult(msg string) Result {
	return Result{"error": msg}
}

// IsError reports whether the result is error-shaped.
func (r Result) IsError() bool {
	if r == nil {
		return false
	}
	_, ok := r["error"]
	return ok
}

// Render converts a result into user-facing text using the deterministic
// extraction order, falling back to a structured dump.
func (r Result) Render() string {
	if len(r) == 0 {
		return ""
	}
	if msg, ok := r["error"].(string); ok {
		return msg
	}
	for _, key := range renderKeys {
		if s, ok := r[key].(string); ok && s != "" {
			return s
		}
	}
	if s := renderResultsList(r["results"]); s != "" {
		return s
	}
	for _, key := range lateRenderKeys {
		if s, ok := r[key].(string); ok && s != "" {
			return s
		}
	}
	if stats, ok := r["statistics"]; ok {
		if s := renderStatistics(stats); s != "" {
			return s
		}
	}
	return r.dump()
}

// renderResultsList extracts the content of the first (most relevant) entry
// of a ranked results list.
func renderResultsList(v any) string {
	items, ok := v.([]any)
	if !ok || len(items) == 0 {
		if typed, ok := v.([]map[string]any); ok && len(typed) > 0 {
			if content, ok := typed[0]["content"].(string); ok {
				return content
			}
		}
		return ""
	}
	first, ok := items[0].(map[string]any)
	if !ok {
		return fmt.Sprintf("%v", items[0])
	}
	if content, ok := first["content"].(string); ok {
		return content
	}
	return ""
}

// renderStatistics formats a statistics mapping into a readable block.
func renderStatistics(v any) string {
	stats, ok := v.(map[string]any)
	if !ok {
		return ""
	}
	var b strings.Builder
	b.WriteString("Statistics\n")
	if period, ok := stats["period"].(map[string]any); ok {
		b.WriteString(fmt.Sprintf("\nPeriod: %v ~ %v\n", period["start_date"], period["end_date"]))
	}
	if total, ok := stats["total_events"]; ok {
		b.WriteString(fmt.Sprintf("\nTotal events: %v\n", total))
		b.WriteString(fmt.Sprintf("- Resolved: %v\n", stats["resolved"]))
		b.WriteString(fmt.Sprintf("- Unresolved: %v\n", stats["unresolved"]))
		b.WriteString(fmt.Sprintf("- Resolution rate: %v%%\n", stats["resolution_rate"]))
	}
	if byType, ok := stats["by_event_type"].(map[string]any); ok && len(byType) > 0 {
		b.WriteString("\nBy event type:\n")
		b.WriteString(formatCounts(byType))
	}
	if bySeverity, ok := stats["by_severity"].(map[string]any); ok && len(bySeverity) > 0 {
		b.WriteString("\nBy severity:\n")
		b.WriteString(formatCounts(bySeverity))
	}
	if byCamera, ok := stats["by_camera"].(map[string]any); ok && len(byCamera) > 0 {
		b.WriteString("\nBy camera:\n")
		b.WriteString(formatCounts(byCamera))
	}
	return b.String()
}

func formatCounts(counts map[string]any) string {
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		b.WriteString(fmt.Sprintf("  - %s: %v\n", k, counts[k]))
	}
	return b.String()
}

func (r Result) dump() string {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Sprintf("%v", map[string]any(r))
	}
	return string(data)
}
