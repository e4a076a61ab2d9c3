// Package store defines the persistence interface for the mindlink engine.
//
// The Store is the durable substrate beneath the consolidation pipeline:
// topics with their crystals, the per-topic ordered feed log, the user-scoped
// anchor store, the global tag vocabulary, the per-topic audit timeline, and
// output records. Implementations live in the sqlite, postgres, and inmemory
// subpackages.
package store

import (
	"context"

	"github.com/mindlinkco/mindlink/pkg/crystal"
)

// Store persists and retrieves all engine state. Methods that take a userID
// are ownership-scoped: a record owned by a different user behaves exactly
// like a missing record (NotFoundError).
type Store interface {
	// CreateTopic inserts a topic and appends its "create" timeline event.
	CreateTopic(ctx context.Context, t *Topic) error

	// GetTopic returns the topic if it exists and belongs to userID.
	GetTopic(ctx context.Context, userID, topicID string) (*Topic, error)

	// ListTopics returns the user's topics, most recently updated first.
	ListTopics(ctx context.Context, userID string) ([]*Topic, error)

	// UpdateCrystal overwrites the topic's crystal and bumps its updated-at.
	UpdateCrystal(ctx context.Context, topicID string, c *crystal.Crystal) error

	// DeleteTopic removes the topic and all owned data (feeds, timeline,
	// tag associations, outputs) in one transaction. Anchors are untouched.
	DeleteTopic(ctx context.Context, userID, topicID string) error

	// AddFeed appends a feed item. The caller supplies the ID and timestamp;
	// fusion inserts historical items this way.
	AddFeed(ctx context.Context, f *FeedItem) error

	// GetFeed returns a feed item by ID.
	GetFeed(ctx context.Context, feedID string) (*FeedItem, error)

	// ListFeeds returns the topic's feed items, newest first, up to limit
	// (0 means no limit).
	ListFeeds(ctx context.Context, topicID string, limit int) ([]*FeedItem, error)

	// ListCleanedFeeds returns the topic's cleaned items in chronological
	// order. Items with no cleaned content are excluded.
	ListCleanedFeeds(ctx context.Context, topicID string) ([]*FeedItem, error)

	// SetFeedCleaned records the consolidator's cleaned text for a feed item.
	SetFeedCleaned(ctx context.Context, feedID, cleaned string) error

	// UpdateFeedContent is the explicit user edit: it overwrites both the raw
	// and cleaned content.
	UpdateFeedContent(ctx context.Context, userID, feedID, content string) error

	// DeleteFeed removes a feed item owned (via its topic) by userID.
	DeleteFeed(ctx context.Context, userID, feedID string) error

	// CountFeeds returns the number of feed items in the topic.
	CountFeeds(ctx context.Context, topicID string) (int, error)

	// UpsertAnchor creates the anchor at version 1 or overwrites its mutable
	// fields and increments the version. The anchor is always left active.
	// Writes to the same (user, key) are serialized.
	UpsertAnchor(ctx context.Context, userID string, up AnchorUpsert) (*Anchor, error)

	// GetAnchor returns the user's anchor by key.
	GetAnchor(ctx context.Context, userID, key string) (*Anchor, error)

	// ListAnchors returns all of the user's anchors, active or not,
	// most recently updated first.
	ListAnchors(ctx context.Context, userID string) ([]*Anchor, error)

	// ListActiveAnchors returns active anchors, most recently updated first,
	// up to limit (0 means no limit).
	ListActiveAnchors(ctx context.Context, userID string, limit int) ([]*Anchor, error)

	// DeactivateAnchor flips the anchor's active flag off, preserving history.
	DeactivateAnchor(ctx context.Context, userID, key string) (bool, error)

	// DeleteAnchor hard-deletes the anchor. Explicit user action only.
	DeleteAnchor(ctx context.Context, userID, key string) (bool, error)

	// SetTopicTags replaces the topic's tag set (at most MaxTopicTags),
	// reusing global tags by exact name and creating missing ones lazily.
	SetTopicTags(ctx context.Context, topicID string, names []string) error

	// GetTopicTags returns the topic's tag names.
	GetTopicTags(ctx context.Context, topicID string) ([]string, error)

	// ListTagNames returns the global tag vocabulary.
	ListTagNames(ctx context.Context) ([]string, error)

	// AppendEvent appends a timeline event to the topic's audit log.
	AppendEvent(ctx context.Context, e *TimelineEvent) error

	// ListEvents returns the topic's timeline, newest first, up to limit
	// (0 means no limit).
	ListEvents(ctx context.Context, topicID string, limit int) ([]*TimelineEvent, error)

	// AddOutput records an expression run.
	AddOutput(ctx context.Context, o *OutputTask) error

	// ListOutputs returns the topic's output records, newest first, up to
	// limit (0 means no limit).
	ListOutputs(ctx context.Context, topicID string, limit int) ([]*OutputTask, error)

	// GetPromptOverride returns the stored override for a prompt key, or ""
	// when the default should apply.
	GetPromptOverride(ctx context.Context, key string) (string, error)

	// SetPromptOverride stores (or clears, with empty content) an override.
	SetPromptOverride(ctx context.Context, key, content string) error

	// ApplySynthesis applies one narrative synthesis result atomically.
	ApplySynthesis(ctx context.Context, apply *SynthesisApply) error

	// AbsorbTopic performs the fusion confirm transaction: insert the
	// provenance note and every supplement into the master's timeline, then
	// delete the slave topic with all its owned data. Nothing commits if any
	// step fails.
	AbsorbTopic(ctx context.Context, userID, masterID, slaveID string, note *FeedItem, supplements []*FeedItem) error

	// Close releases the store's resources.
	Close() error
}
