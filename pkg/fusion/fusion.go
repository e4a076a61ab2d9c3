// Package fusion merges one topic into another: a preview pass asks the
// gateway which of the slave's notes carry information the master lacks, and
// a confirm pass absorbs the chosen notes and retires the slave.
package fusion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mindlinkco/mindlink/pkg/eventstream"
	"github.com/mindlinkco/mindlink/pkg/gateway"
	"github.com/mindlinkco/mindlink/pkg/prompt"
	"github.com/mindlinkco/mindlink/pkg/store"
)

// ErrSameTopic is returned when master and slave are the same topic.
var ErrSameTopic = errors.New("cannot fuse a topic with itself")

// timeLayouts are tried in order when resolving a supplement's original
// timestamp. RFC3339 first, then the looser forms the gateway tends to echo.
var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04",
	"2006-01-02 15:04",
	"2006-01-02 15:04:05",
}

// Store is the slice of the store the fusion engine needs.
type Store interface {
	GetTopic(ctx context.Context, userID, topicID string) (*store.Topic, error)
	ListCleanedFeeds(ctx context.Context, topicID string) ([]*store.FeedItem, error)
	AbsorbTopic(ctx context.Context, userID, masterID, slaveID string, note *store.FeedItem, supplements []*store.FeedItem) error
}

// Supplement is one slave note judged unique enough to carry over. The user
// may edit or drop supplements between preview and confirm.
type Supplement struct {
	OriginalTime string `json:"original_time"`
	Content      string `json:"content"`
}

// Preview is the read-only result of a fusion preview.
type Preview struct {
	MasterID    string       `json:"master_id"`
	SlaveID     string       `json:"slave_id"`
	SlaveTitle  string       `json:"slave_title"`
	Supplements []Supplement `json:"supplements"`
	Reasoning   string       `json:"reasoning,omitempty"`
}

// extractResult is the gateway's answer to the unique-content extraction.
type extractResult struct {
	Supplements []Supplement `json:"supplements"`
	Reasoning   string       `json:"reasoning"`
}

// Engine runs topic fusions.
type Engine struct {
	store   Store
	gateway gateway.Client
	prompts *prompt.Registry
	events  eventstream.Publisher
	logger  *zap.Logger
}

// NewEngine creates a fusion engine.
func NewEngine(st Store, gw gateway.Client, prompts *prompt.Registry, events eventstream.Publisher, logger *zap.Logger) *Engine {
	return &Engine{store: st, gateway: gw, prompts: prompts, events: events, logger: logger}
}

// RunPreview compares the two topics' cleaned timelines and proposes the
// slave notes worth carrying over. Nothing is written.
func (e *Engine) RunPreview(ctx context.Context, userID, masterID, slaveID string) (*Preview, error) {
	if masterID == slaveID {
		return nil, ErrSameTopic
	}

	if _, err := e.store.GetTopic(ctx, userID, masterID); err != nil {
		return nil, err
	}
	slave, err := e.store.GetTopic(ctx, userID, slaveID)
	if err != nil {
		return nil, err
	}

	masterFeeds, err := e.store.ListCleanedFeeds(ctx, masterID)
	if err != nil {
		return nil, fmt.Errorf("list master feeds: %w", err)
	}
	slaveFeeds, err := e.store.ListCleanedFeeds(ctx, slaveID)
	if err != nil {
		return nil, fmt.Errorf("list slave feeds: %w", err)
	}

	preview := &Preview{
		MasterID:   masterID,
		SlaveID:    slaveID,
		SlaveTitle: slave.Title,
	}

	if len(slaveFeeds) == 0 {
		preview.Reasoning = "the slave topic has no cleaned notes to carry over"
		return preview, nil
	}

	messages := []gateway.Message{
		gateway.NewTextMessage(gateway.RoleSystem, e.prompts.Get(ctx, prompt.KeyFusionExtract)),
		gateway.NewTextMessage(gateway.RoleUser, extractContext(masterFeeds, slaveFeeds)),
	}

	response, err := e.gateway.Complete(ctx, &gateway.Request{Messages: messages})
	if err != nil {
		return nil, fmt.Errorf("gateway: %w", err)
	}

	var parsed extractResult
	if err := gateway.DecodeJSON(response, &parsed); err != nil {
		return nil, fmt.Errorf("decode extraction response: %w", err)
	}

	preview.Supplements = parsed.Supplements
	preview.Reasoning = parsed.Reasoning
	return preview, nil
}

// Confirm absorbs the slave into the master: one provenance note, every
// supplement at its historical position, then the slave is deleted. All of
// it is a single storage transaction.
func (e *Engine) Confirm(ctx context.Context, userID, masterID, slaveID string, supplements []Supplement) error {
	if masterID == slaveID {
		return ErrSameTopic
	}

	slave, err := e.store.GetTopic(ctx, userID, slaveID)
	if err != nil {
		return err
	}

	now := time.Now()

	noteText := fmt.Sprintf("Absorbed topic %q; %d unique notes carried over.", slave.Title, len(supplements))
	note := &store.FeedItem{
		ID:             feedID(now, 0),
		TopicID:        masterID,
		Content:        noteText,
		CleanedContent: noteText,
		CreatedAt:      now,
	}

	items := make([]*store.FeedItem, 0, len(supplements))
	for i, sup := range supplements {
		at := resolveTime(sup.OriginalTime, now)
		content := fmt.Sprintf("[from slave topic: %s] %s", slave.Title, sup.Content)
		items = append(items, &store.FeedItem{
			ID:             feedID(at, i+1),
			TopicID:        masterID,
			Content:        content,
			CleanedContent: content,
			CreatedAt:      at,
		})
	}

	if err := e.store.AbsorbTopic(ctx, userID, masterID, slaveID, note, items); err != nil {
		return err
	}

	e.publish(ctx, userID, masterID, noteText)

	e.logger.Info("topic absorbed",
		zap.String("master_id", masterID),
		zap.String("slave_id", slaveID),
		zap.Int("supplements", len(items)))
	return nil
}

func (e *Engine) publish(ctx context.Context, userID, topicID, summary string) {
	now := time.Now()
	err := e.events.PublishTimeline(ctx, &eventstream.TimelineAppendedEvent{
		SchemaVersion: eventstream.SchemaVersionV1,
		EventType:     eventstream.EventTypeTimelineAppended,
		EventID:       uuid.NewString(),
		EmittedAt:     now,
		UserID:        userID,
		TopicID:       topicID,
		TimelineType:  store.EventAbsorb,
		Summary:       summary,
		OccurredAt:    now,
	})
	if err != nil {
		e.logger.Warn("publish timeline event failed",
			zap.String("topic_id", topicID),
			zap.Error(err))
	}
}

// feedID embeds the note's timestamp and a per-batch sequence number, so ids
// minted in one fusion sort with the timeline they joined.
func feedID(t time.Time, seq int) string {
	return fmt.Sprintf("feed_%s_%03d", t.UTC().Format("20060102150405"), seq)
}

// resolveTime parses a supplement's original timestamp, falling back to the
// fusion's own time when no layout matches.
func resolveTime(value string, fallback time.Time) time.Time {
	value = strings.TrimSpace(value)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t
		}
	}
	return fallback
}

// extractContext renders both timelines for the extraction task.
func extractContext(master, slave []*store.FeedItem) string {
	var b strings.Builder
	b.WriteString("MASTER notes:\n")
	writeFeeds(&b, master)
	b.WriteString("\nCANDIDATE notes:\n")
	writeFeeds(&b, slave)
	return b.String()
}

func writeFeeds(b *strings.Builder, feeds []*store.FeedItem) {
	if len(feeds) == 0 {
		b.WriteString("(none)\n")
		return
	}
	for _, f := range feeds {
		fmt.Fprintf(b, "[%s] %s\n", f.CreatedAt.Format("2006-01-02 15:04"), f.CleanedContent)
	}
}
