package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/mindlinkco/mindlink/pkg/prompt"
)

// PromptInfo is one prompt's metadata plus its active text.
type PromptInfo struct {
	prompt.Meta
	Content    string `json:"content"`
	Overridden bool   `json:"overridden"`
}

func (s *Server) handleListPrompts(c *fiber.Ctx) error {
	ctx := c.Context()

	infos := make([]PromptInfo, 0, len(prompt.Keys()))
	for _, key := range prompt.Keys() {
		meta, _ := prompt.GetMeta(key)
		content := s.services.Prompts.Get(ctx, key)
		infos = append(infos, PromptInfo{
			Meta:       meta,
			Content:    content,
			Overridden: content != prompt.Default(key),
		})
	}
	return c.JSON(fiber.Map{"prompts": infos})
}

func (s *Server) handleGetPrompt(c *fiber.Ctx) error {
	key := c.Params("key")
	meta, ok := prompt.GetMeta(key)
	if !ok {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "unknown prompt key"})
	}

	content := s.services.Prompts.Get(c.Context(), key)
	return c.JSON(PromptInfo{
		Meta:       meta,
		Content:    content,
		Overridden: content != prompt.Default(key),
	})
}

// SetPromptRequest is the body of PUT /admin/prompts/:key. Empty content
// restores the default.
type SetPromptRequest struct {
	Content string `json:"content"`
}

func (s *Server) handleSetPrompt(c *fiber.Ctx) error {
	key := c.Params("key")
	if _, ok := prompt.GetMeta(key); !ok {
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: "unknown prompt key"})
	}

	var req SetPromptRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: "invalid request body"})
	}

	if err := s.services.Prompts.SetOverride(c.Context(), key, req.Content); err != nil {
		return s.respondError(c, err)
	}
	return c.JSON(fiber.Map{"status": "ok"})
}
