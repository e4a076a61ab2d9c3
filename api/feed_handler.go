package api

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mindlinkco/mindlink/pkg/eventstream"
	"github.com/mindlinkco/mindlink/pkg/fusion"
	"github.com/mindlinkco/mindlink/pkg/store"
)

// FeedRequest is the body of POST /minds/:id/feed.
type FeedRequest struct {
	Content string `json:"content"`
}

// FeedResponse acknowledges an accepted note. Consolidation runs in the
// background; the caller never hears about its outcome.
type FeedResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	FeedID  string `json:"feed_id"`
}

func (s *Server) handleAddFeed(c *fiber.Ctx) error {
	var req FeedRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if req.Content == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "content required"})
	}

	ctx := c.Context()
	uid := userID(c)

	topic, err := s.services.Store.GetTopic(ctx, uid, c.Params("id"))
	if err != nil {
		return s.respondError(c, err)
	}

	now := time.Now()
	feed := &store.FeedItem{
		ID:        fmt.Sprintf("feed_%s%06d", now.UTC().Format("20060102150405"), now.Nanosecond()/1000),
		TopicID:   topic.ID,
		Content:   req.Content,
		CreatedAt: now,
	}
	if err := s.services.Store.AddFeed(ctx, feed); err != nil {
		return s.respondError(c, err)
	}

	summary := "feed: " + preview(req.Content, 50)
	if err := s.services.Store.AppendEvent(ctx, &store.TimelineEvent{
		TopicID:   topic.ID,
		EventType: store.EventFeed,
		Summary:   summary,
		CreatedAt: now,
	}); err != nil {
		return s.respondError(c, err)
	}
	s.publishTimeline(c, uid, topic.ID, store.EventFeed, summary)

	s.services.Consolidator.Process(uid, topic.ID, feed.ID, req.Content)

	return c.JSON(FeedResponse{
		Status:  "ok",
		Message: "recorded, consolidating",
		FeedID:  feed.ID,
	})
}

func (s *Server) handleListFeeds(c *fiber.Ctx) error {
	ctx := c.Context()

	topic, err := s.services.Store.GetTopic(ctx, userID(c), c.Params("id"))
	if err != nil {
		return s.respondError(c, err)
	}

	feeds, err := s.services.Store.ListFeeds(ctx, topic.ID, c.QueryInt("limit", 20))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{"feeds": feeds})
}

// UpdateFeedRequest is the body of PUT /feeds/:feedID.
type UpdateFeedRequest struct {
	Content string `json:"content"`
}

func (s *Server) handleUpdateFeed(c *fiber.Ctx) error {
	var req UpdateFeedRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if req.Content == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "content required"})
	}

	err := s.services.Store.UpdateFeedContent(c.Context(), userID(c), c.Params("feedID"), req.Content)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handleDeleteFeed(c *fiber.Ctx) error {
	if err := s.services.Store.DeleteFeed(c.Context(), userID(c), c.Params("feedID")); err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handleNarrative(c *fiber.Ctx) error {
	result, err := s.services.Synthesizer.Synthesize(c.Context(), userID(c), c.Params("id"))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(result)
}

// OutputRequest is the body of POST /minds/:id/output.
type OutputRequest struct {
	Instruction string `json:"instruction"`
}

func (s *Server) handleOutput(c *fiber.Ctx) error {
	var req OutputRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if req.Instruction == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "instruction required"})
	}

	task, err := s.services.Express.Render(c.Context(), userID(c), c.Params("id"), req.Instruction)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{
		"content": task.Result,
		"mind_id": task.TopicID,
		"id":      task.ID,
	})
}

func (s *Server) handleListOutputs(c *fiber.Ctx) error {
	ctx := c.Context()

	topic, err := s.services.Store.GetTopic(ctx, userID(c), c.Params("id"))
	if err != nil {
		return s.respondError(c, err)
	}

	outputs, err := s.services.Store.ListOutputs(ctx, topic.ID, c.QueryInt("limit", 0))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{"outputs": outputs})
}

// AbsorbPreviewRequest is the body of POST /minds/:id/absorb/preview.
type AbsorbPreviewRequest struct {
	SlaveID string `json:"slave_id"`
}

func (s *Server) handleAbsorbPreview(c *fiber.Ctx) error {
	var req AbsorbPreviewRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if req.SlaveID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "slave_id required"})
	}

	result, err := s.services.Fusion.RunPreview(c.Context(), userID(c), c.Params("id"), req.SlaveID)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(result)
}

// AbsorbConfirmRequest is the body of POST /minds/:id/absorb. Supplements
// are whatever survived the user's review of the preview.
type AbsorbConfirmRequest struct {
	SlaveID     string              `json:"slave_id"`
	Supplements []fusion.Supplement `json:"supplements"`
}

func (s *Server) handleAbsorbConfirm(c *fiber.Ctx) error {
	var req AbsorbConfirmRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if req.SlaveID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "slave_id required"})
	}

	err := s.services.Fusion.Confirm(c.Context(), userID(c), c.Params("id"), req.SlaveID, req.Supplements)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{"status": "ok", "absorbed": len(req.Supplements)})
}

func (s *Server) publishTimeline(c *fiber.Ctx, uid, topicID, eventType, summary string) {
	now := time.Now()
	err := s.services.Events.PublishTimeline(c.Context(), &eventstream.TimelineAppendedEvent{
		SchemaVersion: eventstream.SchemaVersionV1,
		EventType:     eventstream.EventTypeTimelineAppended,
		EventID:       uuid.NewString(),
		EmittedAt:     now,
		UserID:        uid,
		TopicID:       topicID,
		TimelineType:  eventType,
		Summary:       summary,
		OccurredAt:    now,
	})
	if err != nil {
		s.logger.Warn("publish timeline event failed",
			zap.String("topic_id", topicID),
			zap.Error(err))
	}
}

func preview(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	// Back up to a rune boundary so a multi-byte rune is never split.
	for maxLen > 0 && !utf8.RuneStart(s[maxLen]) {
		maxLen--
	}
	return s[:maxLen] + "..."
}
