package api

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/mindlinkco/mindlink/pkg/crystal"
	"github.com/mindlinkco/mindlink/pkg/store"
)

// CreateTopicRequest is the body of POST /minds.
type CreateTopicRequest struct {
	Title     string `json:"title"`
	NorthStar string `json:"north_star"`
}

// TopicResponse is a topic with its tags.
type TopicResponse struct {
	*store.Topic
	Tags      []string `json:"tags"`
	FeedCount int      `json:"feed_count"`
}

func (s *Server) handleCreateTopic(c *fiber.Ctx) error {
	var req CreateTopicRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if req.Title == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "title required"})
	}

	now := time.Now()
	topic := &store.Topic{
		ID:        uuid.NewString(),
		UserID:    userID(c),
		Title:     req.Title,
		NorthStar: req.NorthStar,
		CreatedAt: now,
		UpdatedAt: now,
	}
	// The north star, when given, seeds the crystal's core goal.
	if req.NorthStar != "" {
		topic.Crystal = crystal.New(req.NorthStar)
	}

	if err := s.services.Store.CreateTopic(c.Context(), topic); err != nil {
		return s.respondError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(topic)
}

func (s *Server) handleListTopics(c *fiber.Ctx) error {
	ctx := c.Context()

	topics, err := s.services.Store.ListTopics(ctx, userID(c))
	if err != nil {
		return s.respondError(c, err)
	}

	out := make([]TopicResponse, 0, len(topics))
	for _, t := range topics {
		tags, err := s.services.Store.GetTopicTags(ctx, t.ID)
		if err != nil {
			return s.respondError(c, err)
		}
		count, err := s.services.Store.CountFeeds(ctx, t.ID)
		if err != nil {
			return s.respondError(c, err)
		}
		out = append(out, TopicResponse{Topic: t, Tags: tags, FeedCount: count})
	}
	return c.JSON(fiber.Map{"minds": out})
}

func (s *Server) handleGetTopic(c *fiber.Ctx) error {
	ctx := c.Context()

	topic, err := s.services.Store.GetTopic(ctx, userID(c), c.Params("id"))
	if err != nil {
		return s.respondError(c, err)
	}
	tags, err := s.services.Store.GetTopicTags(ctx, topic.ID)
	if err != nil {
		return s.respondError(c, err)
	}
	count, err := s.services.Store.CountFeeds(ctx, topic.ID)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(TopicResponse{Topic: topic, Tags: tags, FeedCount: count})
}

func (s *Server) handleDeleteTopic(c *fiber.Ctx) error {
	if err := s.services.Store.DeleteTopic(c.Context(), userID(c), c.Params("id")); err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handleGetCrystal(c *fiber.Ctx) error {
	topic, err := s.services.Store.GetTopic(c.Context(), userID(c), c.Params("id"))
	if err != nil {
		return s.respondError(c, err)
	}

	cr := topic.Crystal
	if cr == nil {
		cr = &crystal.Crystal{}
		cr.Normalize()
	}
	return c.JSON(fiber.Map{
		"crystal":  cr,
		"markdown": cr.Markdown(),
	})
}

func (s *Server) handleGetTimeline(c *fiber.Ctx) error {
	ctx := c.Context()

	topic, err := s.services.Store.GetTopic(ctx, userID(c), c.Params("id"))
	if err != nil {
		return s.respondError(c, err)
	}

	events, err := s.services.Store.ListEvents(ctx, topic.ID, c.QueryInt("limit", 0))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{"events": events})
}

// TimelineDay groups one day's cleaned notes, newest time first.
type TimelineDay struct {
	Date  string            `json:"date"`
	Items []TimelineDayItem `json:"items"`
}

// TimelineDayItem is one cleaned note in the day view.
type TimelineDayItem struct {
	ID      string `json:"id"`
	Time    string `json:"time"`
	Content string `json:"content"`
}

func (s *Server) handleTimelineView(c *fiber.Ctx) error {
	ctx := c.Context()

	topic, err := s.services.Store.GetTopic(ctx, userID(c), c.Params("id"))
	if err != nil {
		return s.respondError(c, err)
	}

	feeds, err := s.services.Store.ListCleanedFeeds(ctx, topic.ID)
	if err != nil {
		return s.respondError(c, err)
	}

	// Feeds arrive oldest first; walking backwards yields newest-first days
	// with newest-first items inside each day.
	var days []TimelineDay
	for i := len(feeds) - 1; i >= 0; i-- {
		f := feeds[i]
		date := f.CreatedAt.Format("2006-01-02")
		item := TimelineDayItem{
			ID:      f.ID,
			Time:    f.CreatedAt.Format("15:04"),
			Content: f.CleanedContent,
		}
		if len(days) > 0 && days[len(days)-1].Date == date {
			days[len(days)-1].Items = append(days[len(days)-1].Items, item)
			continue
		}
		days = append(days, TimelineDay{Date: date, Items: []TimelineDayItem{item}})
	}
	return c.JSON(fiber.Map{"timeline": days})
}
