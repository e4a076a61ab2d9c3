package eventstream

import "time"

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeTimelineAppended is emitted after a timeline event is persisted.
	EventTypeTimelineAppended = "mindlink.timeline.appended"
)

// TimelineAppendedEvent is a transport-neutral payload for a persisted
// timeline event.
type TimelineAppendedEvent struct {
	SchemaVersion int            `json:"schema_version"`
	EventType     string         `json:"event_type"`
	EventID       string         `json:"event_id"`
	EmittedAt     time.Time      `json:"emitted_at"`
	UserID        string         `json:"user_id"`
	TopicID       string         `json:"topic_id"`
	TimelineType  string         `json:"timeline_type"`
	Summary       string         `json:"summary"`
	Payload       map[string]any `json:"payload,omitempty"`
	OccurredAt    time.Time      `json:"occurred_at"`
}
