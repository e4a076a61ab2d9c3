package store

import (
	"time"

	"github.com/mindlinkco/mindlink/pkg/crystal"
)

// Topic is a user's named space for one evolving line of thought.
// A topic is owned exclusively by its user and is destroyed together with its
// feeds, timeline, tag associations, and outputs; anchors survive at the user
// level.
type Topic struct {
	ID        string           `json:"id"`
	UserID    string           `json:"user_id"`
	Title     string           `json:"title"`
	NorthStar string           `json:"north_star,omitempty"`
	Crystal   *crystal.Crystal `json:"crystal,omitempty"`
	Summary   string           `json:"summary,omitempty"`
	Narrative string           `json:"narrative,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// FeedItem is one raw note submitted into a topic. CleanedContent is empty
// until consolidation has run; items without cleaned content are excluded
// from all downstream aggregation.
type FeedItem struct {
	ID             string    `json:"id"`
	TopicID        string    `json:"topic_id"`
	Content        string    `json:"content"`
	CleanedContent string    `json:"cleaned_content,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// Anchor categories. General is the catch-all the pipeline falls back to when
// the gateway proposes an unknown category.
const (
	CategoryPerson  = "person"
	CategoryProject = "project"
	CategoryConcept = "concept"
	CategoryGoal    = "goal"
	CategoryGeneral = "general"
)

// ValidCategory reports whether c is a known anchor category.
func ValidCategory(c string) bool {
	switch c {
	case CategoryPerson, CategoryProject, CategoryConcept, CategoryGoal, CategoryGeneral:
		return true
	}
	return false
}

// Anchor is a versioned, user-scoped, cross-topic fact. (UserID, Key) is
// unique; every update overwrites the mutable fields and increments Version.
// The automatic pipeline never hard-deletes an anchor; retirement only flips
// Active to false.
type Anchor struct {
	ID            string    `json:"id"`
	UserID        string    `json:"user_id"`
	Key           string    `json:"key"`
	Definition    string    `json:"definition"`
	Category      string    `json:"category"`
	Aliases       []string  `json:"aliases"`
	SourceTopicID string    `json:"source_topic_id,omitempty"`
	Version       int       `json:"version"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// AnchorUpsert carries the mutable fields of an anchor write.
type AnchorUpsert struct {
	Key           string   `json:"key"`
	Definition    string   `json:"definition"`
	Category      string   `json:"category"`
	Aliases       []string `json:"aliases"`
	SourceTopicID string   `json:"source_topic_id,omitempty"`
}

// Timeline event types appended by the engine.
const (
	EventCreate    = "create"
	EventFeed      = "feed"
	EventOrganize  = "organize"
	EventNarrative = "narrative"
	EventAbsorb    = "absorb"
	EventOutput    = "output"
)

// TimelineEvent is one entry in a topic's audit log.
type TimelineEvent struct {
	ID        int64          `json:"id"`
	TopicID   string         `json:"topic_id"`
	EventType string         `json:"event_type"`
	Summary   string         `json:"summary"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// OutputTask records one instruction-driven expression run against a topic.
type OutputTask struct {
	ID          string    `json:"id"`
	TopicID     string    `json:"topic_id"`
	Instruction string    `json:"instruction"`
	Result      string    `json:"result"`
	CreatedAt   time.Time `json:"created_at"`
}

// SynthesisApply is the atomic write set produced by one narrative synthesis.
// Narrative always overwrites. Summary and Tags are applied only when non-nil
// (the synthesizer passes nil to keep the current value). Anchors are
// upserted for the topic's user. EventSummary becomes a "narrative" timeline
// event.
type SynthesisApply struct {
	UserID       string
	TopicID      string
	Narrative    string
	Summary      *string
	Tags         []string
	Anchors      []AnchorUpsert
	EventSummary string
}

// MaxTopicTags caps the tag set on a topic.
const MaxTopicTags = 5
