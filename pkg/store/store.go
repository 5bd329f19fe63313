package store

import (
	"context"
	"strings"
	"time"
)

// Event is one safety event detected by a monitoring camera.
type Event struct {
	ID          string    `json:"id"`
	CameraID    string    `json:"camera_id"`
	CameraName  string    `json:"camera_name"`
	EventType   string    `json:"event_type"`
	Severity    string    `json:"severity"`
	Resolved    bool      `json:"resolved"`
	Timestamp   time.Time `json:"timestamp"`
	Description string    `json:"description,omitempty"`
}

// Severity levels in ascending order of weight.
const (
	SeverityLow      = "LOW"
	SeverityMedium   = "MEDIUM"
	SeverityHigh     = "HIGH"
	SeverityCritical = "CRITICAL"
)

// Known event types. Unrecognized detections map to EventUnknown.
const (
	EventNoHelmet        = "NO_HELMET"
	EventNoSafetyVest    = "NO_SAFETY_VEST"
	EventFallDetected    = "FALL_DETECTED"
	EventFireHazard      = "FIRE_HAZARD"
	EventRestrictedArea  = "RESTRICTED_AREA"
	EventEquipmentMisuse = "EQUIPMENT_MISUSE"
	EventUnknown         = "UNKNOWN"
)

// eventTypeKeywords maps Korean request keywords to the event type they
// refer to. Ordered; the first matching entry wins.
var eventTypeKeywords = []struct {
	eventType string
	keywords  []string
}{
	{EventNoHelmet, []string{"헬멧", "안전모", "모자"}},
	{EventNoSafetyVest, []string{"조끼", "안전조끼", "형광조끼"}},
	{EventFallDetected, []string{"낙상", "넘어짐", "떨어짐", "추락"}},
	{EventFireHazard, []string{"화재", "불", "연기"}},
	{EventRestrictedArea, []string{"제한구역", "출입금지", "통제구역"}},
	{EventEquipmentMisuse, []string{"장비", "도구", "기계"}},
}

// EventTypeFromText maps free text to a known event type, falling back
// to EventUnknown.
func EventTypeFromText(text string) string {
	for _, entry := range eventTypeKeywords {
		for _, kw := range entry.keywords {
			if strings.Contains(text, kw) {
				return entry.eventType
			}
		}
	}
	return EventUnknown
}

// EventTypes returns the known event types in declaration order,
// EventUnknown excluded.
func EventTypes() []string {
	types := make([]string, 0, len(eventTypeKeywords))
	for _, entry := range eventTypeKeywords {
		types = append(types, entry.eventType)
	}
	return types
}

// Filter narrows a List call. Zero-valued fields are ignored.
type Filter struct {
	CameraID  string
	EventType string
	Severity  string
	// Resolved filters on resolution state when non-nil.
	Resolved *bool
	// Since/Until bound the event timestamp (inclusive).
	Since time.Time
	Until time.Time
	Limit int
}

// Store persists and queries safety events.
type Store interface {
	Insert(ctx context.Context, event Event) error
	List(ctx context.Context, filter Filter) ([]Event, error)
	Count(ctx context.Context, filter Filter) (int, error)
	Close() error
}
