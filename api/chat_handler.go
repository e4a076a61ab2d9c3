package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mindlinkco/mindlink/pkg/chat"
)

// ChatRequest is the body of POST /minds/:id/chat. History is held by the
// client and replayed on every turn.
type ChatRequest struct {
	Message string      `json:"message"`
	History []chat.Turn `json:"history"`
	Style   string      `json:"style"`
}

func (s *Server) handleChat(c *fiber.Ctx) error {
	var req ChatRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}
	if req.Message == "" {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "message required"})
	}

	reply, err := s.services.Chat.Send(c.Context(), userID(c), c.Params("id"), req.Message, req.History, req.Style)
	if err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{"reply": reply})
}

func (s *Server) handleChatStyles(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"styles": chat.Styles()})
}
