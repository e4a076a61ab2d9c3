// Package consolidate runs the background pipeline that turns a raw feed
// note into cleaned content and an updated crystal.
package consolidate

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mindlinkco/mindlink/pkg/crystal"
	"github.com/mindlinkco/mindlink/pkg/eventstream"
	"github.com/mindlinkco/mindlink/pkg/gateway"
	"github.com/mindlinkco/mindlink/pkg/prompt"
	"github.com/mindlinkco/mindlink/pkg/store"
)

// processTimeout bounds one background consolidation, gateway call included.
const processTimeout = 3 * time.Minute

// Store is the slice of the store the consolidator needs.
type Store interface {
	GetTopic(ctx context.Context, userID, topicID string) (*store.Topic, error)
	SetFeedCleaned(ctx context.Context, feedID, cleaned string) error
	UpdateCrystal(ctx context.Context, topicID string, c *crystal.Crystal) error
	AppendEvent(ctx context.Context, e *store.TimelineEvent) error
}

// cleanResult is the gateway's answer to the cleaner task.
type cleanResult struct {
	CleanedContent string          `json:"cleaned_content"`
	Structure      crystal.Crystal `json:"structure"`
	Summary        string          `json:"summary"`
}

// Consolidator serializes consolidation per topic and runs each submission
// as a fire-and-forget background task.
type Consolidator struct {
	store   Store
	gateway gateway.Client
	prompts *prompt.Registry
	events  eventstream.Publisher
	logger  *zap.Logger

	mu         sync.Mutex
	topicLocks map[string]*sync.Mutex
	wg         sync.WaitGroup
}

// New creates a consolidator.
func New(st Store, gw gateway.Client, prompts *prompt.Registry, events eventstream.Publisher, logger *zap.Logger) *Consolidator {
	return &Consolidator{
		store:      st,
		gateway:    gw,
		prompts:    prompts,
		events:     events,
		logger:     logger,
		topicLocks: make(map[string]*sync.Mutex),
	}
}

// Process schedules consolidation of one submitted note. It returns
// immediately; the submitter has already been told "accepted" and never
// hears about the outcome.
func (c *Consolidator) Process(userID, topicID, feedID, content string) {
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()

		ctx, cancel := context.WithTimeout(context.Background(), processTimeout)
		defer cancel()

		if err := c.consolidate(ctx, userID, topicID, feedID, content); err != nil {
			c.logger.Error("consolidation failed",
				zap.String("topic_id", topicID),
				zap.String("feed_id", feedID),
				zap.Error(err))
		}
	}()
}

// Wait blocks until every in-flight consolidation has finished.
func (c *Consolidator) Wait() {
	c.wg.Wait()
}

// topicLock returns the mutex serializing one topic's consolidations.
func (c *Consolidator) topicLock(topicID string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()

	lock, ok := c.topicLocks[topicID]
	if !ok {
		lock = &sync.Mutex{}
		c.topicLocks[topicID] = lock
	}
	return lock
}

func (c *Consolidator) consolidate(ctx context.Context, userID, topicID, feedID, content string) error {
	// One topic at a time: the read-crystal, gateway, write-crystal span
	// must not interleave with another note's span for the same topic.
	lock := c.topicLock(topicID)
	lock.Lock()
	defer lock.Unlock()

	topic, err := c.store.GetTopic(ctx, userID, topicID)
	if err != nil {
		return fmt.Errorf("load topic: %w", err)
	}

	messages := []gateway.Message{
		gateway.NewTextMessage(gateway.RoleSystem, c.prompts.Get(ctx, prompt.KeyCleaner)),
		gateway.NewTextMessage(gateway.RoleUser, cleanerContext(topic, content)),
	}

	response, err := c.gateway.Complete(ctx, &gateway.Request{Messages: messages})
	if err != nil {
		return fmt.Errorf("gateway: %w", err)
	}

	var result cleanResult
	if err := gateway.DecodeJSON(response, &result); err != nil {
		return fmt.Errorf("decode cleaner response: %w", err)
	}

	next := result.Structure
	next.Normalize()
	if topic.Crystal != nil {
		// Evolution is append-only; entries the gateway dropped come back.
		next.MergeEvolution(topic.Crystal.Evolution)
	}

	if err := c.store.SetFeedCleaned(ctx, feedID, result.CleanedContent); err != nil {
		return fmt.Errorf("save cleaned content: %w", err)
	}
	if err := c.store.UpdateCrystal(ctx, topicID, &next); err != nil {
		return fmt.Errorf("save crystal: %w", err)
	}

	now := time.Now()
	event := &store.TimelineEvent{
		TopicID:   topicID,
		EventType: store.EventOrganize,
		Summary:   result.Summary,
		CreatedAt: now,
	}
	if err := c.store.AppendEvent(ctx, event); err != nil {
		return fmt.Errorf("append event: %w", err)
	}

	if err := c.events.PublishTimeline(ctx, &eventstream.TimelineAppendedEvent{
		SchemaVersion: eventstream.SchemaVersionV1,
		EventType:     eventstream.EventTypeTimelineAppended,
		EventID:       uuid.NewString(),
		EmittedAt:     now,
		UserID:        userID,
		TopicID:       topicID,
		TimelineType:  store.EventOrganize,
		Summary:       result.Summary,
		OccurredAt:    now,
	}); err != nil {
		c.logger.Warn("publish timeline event failed",
			zap.String("topic_id", topicID),
			zap.Error(err))
	}

	c.logger.Info("consolidated note",
		zap.String("topic_id", topicID),
		zap.String("feed_id", feedID),
		zap.String("summary", result.Summary))
	return nil
}

// cleanerContext builds the user message for the cleaner task. A topic with
// no prior structure at all gets the fresh-generation variant with no crystal
// section. A seeded core goal counts as prior structure.
func cleanerContext(topic *store.Topic, content string) string {
	if topic.Crystal == nil || (topic.Crystal.IsEmpty() && topic.Crystal.CoreGoal == "") {
		return fmt.Sprintf("Topic: %s\n\nNew note:\n%s", topic.Title, content)
	}
	return fmt.Sprintf("Topic: %s\n\nCurrent structure:\n%s\n\nNew note:\n%s",
		topic.Title, topic.Crystal.Markdown(), content)
}
