// Package express renders a topic's accumulated thinking into a requested
// form, such as a pitch or an explainer for a specific audience.
package express

import (
	"context"
	"errors"
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

// ErrNoContent is returned when the topic has no cleaned notes yet.
var ErrNoContent = errors.New("topic has no cleaned content yet")

// Store is the slice of the store the expression service needs.
type Store interface {
	GetTopic(ctx context.Context, userID, topicID string) (*store.Topic, error)
	ListCleanedFeeds(ctx context.Context, topicID string) ([]*store.FeedItem, error)
	AddOutput(ctx context.Context, o *store.OutputTask) error
}

// Service runs instruction-driven expression tasks.
type Service struct {
	store   Store
	gateway gateway.Client
	prompts *prompt.Registry
	anchors *anchor.Service
	events  eventstream.Publisher
	logger  *zap.Logger
}

// NewService creates an expression service.
func NewService(st Store, gw gateway.Client, prompts *prompt.Registry, anchors *anchor.Service, events eventstream.Publisher, logger *zap.Logger) *Service {
	return &Service{store: st, gateway: gw, prompts: prompts, anchors: anchors, events: events, logger: logger}
}

// Render expresses the topic's cleaned timeline per the instruction and
// records the run as an output task.
func (s *Service) Render(ctx context.Context, userID, topicID, instruction string) (*store.OutputTask, error) {
	topic, err := s.store.GetTopic(ctx, userID, topicID)
	if err != nil {
		return nil, err
	}

	feeds, err := s.store.ListCleanedFeeds(ctx, topicID)
	if err != nil {
		return nil, fmt.Errorf("list cleaned feeds: %w", err)
	}
	if len(feeds) == 0 {
		return nil, ErrNoContent
	}

	system := s.prompts.Get(ctx, prompt.KeyExpresser)

	// The instruction may reference anchored people or projects.
	matched, err := s.anchors.MatchByContent(ctx, userID, instruction)
	if err != nil {
		return nil, fmt.Errorf("match anchors: %w", err)
	}
	if len(matched) > 0 {
		system += "\n\n## Background definitions\n" + anchor.Render(matched)
	}

	messages := []gateway.Message{
		gateway.NewTextMessage(gateway.RoleSystem, system),
		gateway.NewTextMessage(gateway.RoleUser, renderContext(topic, feeds, instruction)),
	}

	result, err := s.gateway.Complete(ctx, &gateway.Request{Messages: messages})
	if err != nil {
		return nil, fmt.Errorf("gateway: %w", err)
	}

	now := time.Now()
	task := &store.OutputTask{
		ID:          outputID(now),
		TopicID:     topicID,
		Instruction: instruction,
		Result:      result,
		CreatedAt:   now,
	}
	if err := s.store.AddOutput(ctx, task); err != nil {
		return nil, fmt.Errorf("record output: %w", err)
	}

	s.publish(ctx, userID, topicID, instruction)
	return task, nil
}

func (s *Service) publish(ctx context.Context, userID, topicID, instruction string) {
	now := time.Now()
	err := s.events.PublishTimeline(ctx, &eventstream.TimelineAppendedEvent{
		SchemaVersion: eventstream.SchemaVersionV1,
		EventType:     eventstream.EventTypeTimelineAppended,
		EventID:       uuid.NewString(),
		EmittedAt:     now,
		UserID:        userID,
		TopicID:       topicID,
		TimelineType:  store.EventOutput,
		Summary:       instruction,
		OccurredAt:    now,
	})
	if err != nil {
		s.logger.Warn("publish timeline event failed",
			zap.String("topic_id", topicID),
			zap.Error(err))
	}
}

func outputID(t time.Time) string {
	return fmt.Sprintf("output_%s%06d", t.UTC().Format("20060102150405"), t.Nanosecond()/1000)
}

func renderContext(topic *store.Topic, feeds []*store.FeedItem, instruction string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Topic: %s\n\nNotes:\n", topic.Title)
	for _, f := range feeds {
		fmt.Fprintf(&b, "[%s] %s\n", f.CreatedAt.Format("2006-01-02 15:04"), f.CleanedContent)
	}
	fmt.Fprintf(&b, "\nInstruction: %s\n", instruction)
	return b.String()
}
