// Package narrative turns a topic's cleaned timeline into a single evolving
// document, refreshing the topic's summary, tags and the user's memory
// anchors in the same pass.
package narrative

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mindlinkco/mindlink/pkg/anchor"
	"github.com/mindlinkco/mindlink/pkg/eventstream"
	"github.com/mindlinkco/mindlink/pkg/gateway"
	"github.com/mindlinkco/mindlink/pkg/prompt"
	"github.com/mindlinkco/mindlink/pkg/store"
)

// EmptyNarrative is returned for a topic with no cleaned content. Nothing is
// written in that case.
const EmptyNarrative = "No content yet. Feed this topic some thoughts first."

// Store is the slice of the store the synthesizer needs.
type Store interface {
	GetTopic(ctx context.Context, userID, topicID string) (*store.Topic, error)
	ListCleanedFeeds(ctx context.Context, topicID string) ([]*store.FeedItem, error)
	GetTopicTags(ctx context.Context, topicID string) ([]string, error)
	ListTagNames(ctx context.Context) ([]string, error)
	ApplySynthesis(ctx context.Context, apply *store.SynthesisApply) error
}

// Result is what one synthesis produced.
type Result struct {
	Narrative      string   `json:"narrative"`
	FeedCount      int      `json:"feed_count"`
	Summary        string   `json:"summary,omitempty"`
	SummaryChanged bool     `json:"summary_changed"`
	Tags           []string `json:"tags,omitempty"`
	TagsChanged    bool     `json:"tags_changed"`
	AnchorsCreated int      `json:"anchors_created"`
	AnchorsUpdated int      `json:"anchors_updated"`
}

// synthResult is the gateway's combined answer.
type synthResult struct {
	Narrative      string           `json:"narrative"`
	Summary        string           `json:"summary"`
	SummaryChanged bool             `json:"summary_changed"`
	Tags           []string         `json:"tags"`
	TagsChanged    bool             `json:"tags_changed"`
	MemoryAnchors  []anchorProposal `json:"memory_anchors"`
}

// anchorProposal is one extracted memory anchor candidate.
type anchorProposal struct {
	Key        string   `json:"key"`
	Definition string   `json:"definition"`
	Category   string   `json:"category"`
	Aliases    []string `json:"aliases"`
	Action     string   `json:"action"`
	Reason     string   `json:"reason"`
}

// Synthesizer produces narratives on explicit request.
type Synthesizer struct {
	store   Store
	gateway gateway.Client
	prompts *prompt.Registry
	anchors *anchor.Service
	events  eventstream.Publisher
	logger  *zap.Logger
}

// NewSynthesizer creates a synthesizer.
func NewSynthesizer(st Store, gw gateway.Client, prompts *prompt.Registry, anchors *anchor.Service, events eventstream.Publisher, logger *zap.Logger) *Synthesizer {
	return &Synthesizer{
		store:   st,
		gateway: gw,
		prompts: prompts,
		anchors: anchors,
		events:  events,
		logger:  logger,
	}
}

// Synthesize runs one combined narrative pass for the topic. A gateway call
// failure surfaces to the caller; an unparsable response does not, the raw
// text simply becomes the narrative with no metadata or anchor changes.
func (s *Synthesizer) Synthesize(ctx context.Context, userID, topicID string) (*Result, error) {
	topic, err := s.store.GetTopic(ctx, userID, topicID)
	if err != nil {
		return nil, err
	}

	feeds, err := s.store.ListCleanedFeeds(ctx, topicID)
	if err != nil {
		return nil, fmt.Errorf("list cleaned feeds: %w", err)
	}
	if len(feeds) == 0 {
		return &Result{Narrative: EmptyNarrative}, nil
	}

	currentTags, err := s.store.GetTopicTags(ctx, topicID)
	if err != nil {
		return nil, fmt.Errorf("get tags: %w", err)
	}
	tagLibrary, err := s.store.ListTagNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tag names: %w", err)
	}
	memory, err := s.anchors.Summarize(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("summarize anchors: %w", err)
	}
	if memory == "" {
		memory = "(empty)"
	}

	system := s.prompts.Get(ctx, prompt.KeyNarrativeWithMeta) + "\n\n" +
		fmt.Sprintf(s.prompts.Get(ctx, prompt.KeyMemoryAnchor), memory)

	messages := []gateway.Message{
		gateway.NewTextMessage(gateway.RoleSystem, system),
		gateway.NewTextMessage(gateway.RoleUser, synthesisContext(topic, feeds, currentTags, tagLibrary)),
	}

	response, err := s.gateway.Complete(ctx, &gateway.Request{Messages: messages})
	if err != nil {
		return nil, fmt.Errorf("gateway: %w", err)
	}

	var parsed synthResult
	if err := gateway.DecodeJSON(response, &parsed); err != nil {
		// The model ignored the JSON contract. The text is still a
		// narrative, so it is kept; summary, tags and anchors stay put.
		s.logger.Warn("narrative response not parseable, keeping raw text",
			zap.String("topic_id", topicID),
			zap.Error(err))
		apply := &store.SynthesisApply{
			UserID:       userID,
			TopicID:      topicID,
			Narrative:    response,
			EventSummary: "narrative refreshed",
		}
		if err := s.store.ApplySynthesis(ctx, apply); err != nil {
			return nil, err
		}
		s.publish(ctx, userID, topicID, apply.EventSummary)
		return &Result{Narrative: response, FeedCount: len(feeds)}, nil
	}

	result := &Result{
		Narrative:      parsed.Narrative,
		FeedCount:      len(feeds),
		Summary:        parsed.Summary,
		SummaryChanged: parsed.SummaryChanged,
		Tags:           parsed.Tags,
		TagsChanged:    parsed.TagsChanged,
	}

	apply := &store.SynthesisApply{
		UserID:       userID,
		TopicID:      topicID,
		Narrative:    parsed.Narrative,
		EventSummary: fmt.Sprintf("narrative refreshed from %d notes", len(feeds)),
	}
	if parsed.SummaryChanged && parsed.Summary != "" {
		summary := parsed.Summary
		apply.Summary = &summary
	}
	if parsed.TagsChanged && len(parsed.Tags) > 0 {
		tags := parsed.Tags
		if len(tags) > store.MaxTopicTags {
			tags = tags[:store.MaxTopicTags]
		}
		apply.Tags = tags
	}

	for _, p := range parsed.MemoryAnchors {
		if p.Key == "" {
			continue
		}
		switch p.Action {
		case "create":
			result.AnchorsCreated++
		case "update":
			result.AnchorsUpdated++
		default:
			continue
		}
		apply.Anchors = append(apply.Anchors, store.AnchorUpsert{
			Key:           p.Key,
			Definition:    p.Definition,
			Category:      p.Category,
			Aliases:       p.Aliases,
			SourceTopicID: topicID,
		})
	}

	if err := s.store.ApplySynthesis(ctx, apply); err != nil {
		return nil, err
	}
	s.publish(ctx, userID, topicID, apply.EventSummary)

	s.logger.Info("narrative synthesized",
		zap.String("topic_id", topicID),
		zap.Int("feed_count", len(feeds)),
		zap.Bool("summary_changed", apply.Summary != nil),
		zap.Bool("tags_changed", apply.Tags != nil),
		zap.Int("anchors_created", result.AnchorsCreated),
		zap.Int("anchors_updated", result.AnchorsUpdated))
	return result, nil
}

func (s *Synthesizer) publish(ctx context.Context, userID, topicID, summary string) {
	now := time.Now()
	err := s.events.PublishTimeline(ctx, &eventstream.TimelineAppendedEvent{
		SchemaVersion: eventstream.SchemaVersionV1,
		EventType:     eventstream.EventTypeTimelineAppended,
		EventID:       uuid.NewString(),
		EmittedAt:     now,
		UserID:        userID,
		TopicID:       topicID,
		TimelineType:  store.EventNarrative,
		Summary:       summary,
		OccurredAt:    now,
	})
	if err != nil {
		s.logger.Warn("publish timeline event failed",
			zap.String("topic_id", topicID),
			zap.Error(err))
	}
}

// synthesisContext builds the user message: the full ordered cleaned
// timeline plus the current metadata the model may choose to keep.
func synthesisContext(topic *store.Topic, feeds []*store.FeedItem, currentTags, tagLibrary []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Topic: %s\n", topic.Title)

	if topic.Summary != "" {
		fmt.Fprintf(&b, "\nCurrent summary: %s\n", topic.Summary)
	}
	if len(currentTags) > 0 {
		fmt.Fprintf(&b, "Current tags: %s\n", strings.Join(currentTags, ", "))
	}
	if len(tagLibrary) > 0 {
		fmt.Fprintf(&b, "Existing tag pool: %s\n", strings.Join(tagLibrary, ", "))
	}

	b.WriteString("\nTimeline:\n")
	for _, f := range feeds {
		fmt.Fprintf(&b, "[%s] %s\n", f.CreatedAt.Format("2006-01-02 15:04"), f.CleanedContent)
	}
	return b.String()
}
