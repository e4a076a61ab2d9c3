package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mindlinkco/mindlink/pkg/store"
)

// UpsertAnchorRequest is the body of POST /memory.
type UpsertAnchorRequest struct {
	Key           string   `json:"key"`
	Definition    string   `json:"definition"`
	Category      string   `json:"category"`
	Aliases       []string `json:"aliases"`
	SourceTopicID string   `json:"source_topic_id"`
}

func (s *Server) handleListAnchors(c *fiber.Ctx) error {
	anchors, err := s.services.Anchors.List(c.Context(), userID(c))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{"anchors": anchors})
}

func (s *Server) handleUpsertAnchor(c *fiber.Ctx) error {
	var req UpsertAnchorRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if req.Key == "" || req.Definition == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "key and definition required"})
	}

	a, err := s.services.Anchors.Upsert(c.Context(), userID(c), store.AnchorUpsert{
		Key:           req.Key,
		Definition:    req.Definition,
		Category:      req.Category,
		Aliases:       req.Aliases,
		SourceTopicID: req.SourceTopicID,
	})
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(a)
}

func (s *Server) handleGetAnchor(c *fiber.Ctx) error {
	a, err := s.services.Anchors.Get(c.Context(), userID(c), c.Params("key"))
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(a)
}

func (s *Server) handleDeactivateAnchor(c *fiber.Ctx) error {
	ok, err := s.services.Anchors.Deactivate(c.Context(), userID(c), c.Params("key"))
	if err != nil {
		return s.respondError(c, err)
	}
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "anchor not found"})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

func (s *Server) handleDeleteAnchor(c *fiber.Ctx) error {
	ok, err := s.services.Anchors.Delete(c.Context(), userID(c), c.Params("key"))
	if err != nil {
		return s.respondError(c, err)
	}
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "anchor not found"})
	}
	return c.JSON(fiber.Map{"status": "ok"})
}
