// Package chat holds topic-scoped conversations. The system prompt is
// rebuilt on every turn from the topic's current crystal and timeline, so
// the conversation always sees the latest state.
package chat

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mindlinkco/mindlink/pkg/anchor"
	"github.com/mindlinkco/mindlink/pkg/gateway"
	"github.com/mindlinkco/mindlink/pkg/prompt"
	"github.com/mindlinkco/mindlink/pkg/store"
)

// Conversation styles.
const (
	StyleDefault  = "default"
	StyleSocratic = "socratic"
	StyleCreative = "creative"
)

// timelineWindow caps how many cleaned notes the system prompt carries.
const timelineWindow = 100

// maxTokens is the reply budget; conversations run longer than pipeline tasks.
const maxTokens = 15000

// Style describes a conversation style for listing surfaces.
type Style struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Styles returns the selectable conversation styles.
func Styles() []Style {
	return []Style{
		{ID: StyleDefault, Name: "Analytical", Description: "objective, structured reasoning"},
		{ID: StyleSocratic, Name: "Socratic", Description: "guided questions over direct answers"},
		{ID: StyleCreative, Name: "Divergent", Description: "free association and unexpected angles"},
	}
}

func stylePromptKey(style string) string {
	switch style {
	case StyleSocratic:
		return prompt.KeyChatStyleSocratic
	case StyleCreative:
		return prompt.KeyChatStyleCreative
	default:
		return prompt.KeyChatStyleDefault
	}
}

// Turn is one prior exchange in the conversation, kept by the caller.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Store is the slice of the store the chat service needs.
type Store interface {
	GetTopic(ctx context.Context, userID, topicID string) (*store.Topic, error)
	ListCleanedFeeds(ctx context.Context, topicID string) ([]*store.FeedItem, error)
}

// Service answers conversation turns.
type Service struct {
	store   Store
	gateway gateway.Client
	prompts *prompt.Registry
	anchors *anchor.Service
	logger  *zap.Logger
}

// NewService creates a chat service.
func NewService(st Store, gw gateway.Client, prompts *prompt.Registry, anchors *anchor.Service, logger *zap.Logger) *Service {
	return &Service{store: st, gateway: gw, prompts: prompts, anchors: anchors, logger: logger}
}

// Send runs one conversation turn and returns the reply. The caller owns the
// history; nothing is persisted.
func (s *Service) Send(ctx context.Context, userID, topicID, message string, history []Turn, style string) (string, error) {
	topic, err := s.store.GetTopic(ctx, userID, topicID)
	if err != nil {
		return "", err
	}

	system, err := s.buildSystemPrompt(ctx, userID, topic, message, style)
	if err != nil {
		return "", err
	}

	messages := make([]gateway.Message, 0, len(history)+2)
	messages = append(messages, gateway.NewTextMessage(gateway.RoleSystem, system))
	for _, turn := range history {
		messages = append(messages, gateway.NewTextMessage(turn.Role, turn.Content))
	}
	messages = append(messages, gateway.NewTextMessage(gateway.RoleUser, message))

	reply, err := s.gateway.Complete(ctx, &gateway.Request{
		Messages:  messages,
		MaxTokens: maxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("gateway: %w", err)
	}
	return reply, nil
}

func (s *Service) buildSystemPrompt(ctx context.Context, userID string, topic *store.Topic, message, style string) (string, error) {
	crystalSummary := "No structured understanding yet."
	if topic.Crystal != nil && !topic.Crystal.IsEmpty() {
		crystalSummary = topic.Crystal.Markdown()
	}

	feeds, err := s.store.ListCleanedFeeds(ctx, topic.ID)
	if err != nil {
		return "", fmt.Errorf("list cleaned feeds: %w", err)
	}
	if len(feeds) > timelineWindow {
		feeds = feeds[len(feeds)-timelineWindow:]
	}

	timeline := "(no notes yet)"
	if len(feeds) > 0 {
		var b strings.Builder
		for _, f := range feeds {
			fmt.Fprintf(&b, "- [%s] %s\n", f.CreatedAt.Format("2006-01-02 15:04"), f.CleanedContent)
		}
		timeline = strings.TrimRight(b.String(), "\n")
	}

	system := fmt.Sprintf(s.prompts.Get(ctx, prompt.KeyChatBase), topic.Title, crystalSummary, timeline) +
		"\n\n" + s.prompts.Get(ctx, stylePromptKey(style))

	// The user's message may name people or projects defined in other
	// topics; matched anchors ride along as private background.
	matched, err := s.anchors.MatchByContent(ctx, userID, message)
	if err != nil {
		return "", fmt.Errorf("match anchors: %w", err)
	}
	if len(matched) > 0 {
		system += "\n\n## Private background (not to be quoted verbatim)\n" + anchor.Render(matched)
	}

	return system, nil
}
