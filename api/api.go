package api

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/mindlinkco/mindlink/pkg/anchor"
	"github.com/mindlinkco/mindlink/pkg/chat"
	"github.com/mindlinkco/mindlink/pkg/consolidate"
	"github.com/mindlinkco/mindlink/pkg/eventstream"
	"github.com/mindlinkco/mindlink/pkg/express"
	"github.com/mindlinkco/mindlink/pkg/fusion"
	"github.com/mindlinkco/mindlink/pkg/narrative"
	"github.com/mindlinkco/mindlink/pkg/prompt"
	"github.com/mindlinkco/mindlink/pkg/store"
)

// UserHeader carries the pre-authenticated user identity. Requests without
// it are rejected; the engine itself performs no authentication.
const UserHeader = "X-User-ID"

// ErrorResponse is the JSON body of every non-2xx answer.
type ErrorResponse struct {
	Error string `json:"error"`
}

// Services bundles the engine components the server fronts.
type Services struct {
	Store        store.Store
	Consolidator *consolidate.Consolidator
	Synthesizer  *narrative.Synthesizer
	Anchors      *anchor.Service
	Fusion       *fusion.Engine
	Chat         *chat.Service
	Express      *express.Service
	Prompts      *prompt.Registry
	Events       eventstream.Publisher
}

// Server is the HTTP API server.
type Server struct {
	config   Config
	services Services
	logger   *zap.Logger
	app      *fiber.App
}

// NewServer creates the API server and registers its routes.
func NewServer(config Config, services Services, logger *zap.Logger) *Server {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})

	s := &Server{
		config:   config,
		services: services,
		logger:   logger,
		app:      app,
	}

	app.Get("/ping", s.handlePing)

	authed := app.Group("", s.requireUser)

	authed.Post("/minds", s.handleCreateTopic)
	authed.Get("/minds", s.handleListTopics)
	authed.Get("/minds/:id", s.handleGetTopic)
	authed.Delete("/minds/:id", s.handleDeleteTopic)
	authed.Get("/minds/:id/crystal", s.handleGetCrystal)
	authed.Get("/minds/:id/timeline", s.handleGetTimeline)
	authed.Get("/minds/:id/timeline-view", s.handleTimelineView)

	authed.Post("/minds/:id/feed", s.handleAddFeed)
	authed.Get("/minds/:id/feeds", s.handleListFeeds)
	authed.Put("/feeds/:feedID", s.handleUpdateFeed)
	authed.Delete("/feeds/:feedID", s.handleDeleteFeed)

	authed.Post("/minds/:id/narrative", s.handleNarrative)
	authed.Post("/minds/:id/output", s.handleOutput)
	authed.Get("/minds/:id/outputs", s.handleListOutputs)

	authed.Post("/minds/:id/absorb/preview", s.handleAbsorbPreview)
	authed.Post("/minds/:id/absorb", s.handleAbsorbConfirm)

	authed.Get("/memory", s.handleListAnchors)
	authed.Post("/memory", s.handleUpsertAnchor)
	authed.Get("/memory/:key", s.handleGetAnchor)
	authed.Post("/memory/:key/deactivate", s.handleDeactivateAnchor)
	authed.Delete("/memory/:key", s.handleDeleteAnchor)

	authed.Post("/minds/:id/chat", s.handleChat)
	authed.Get("/chat/styles", s.handleChatStyles)

	authed.Get("/admin/prompts", s.handleListPrompts)
	authed.Get("/admin/prompts/:key", s.handleGetPrompt)
	authed.Put("/admin/prompts/:key", s.handleSetPrompt)

	return s
}

// Run starts the API server on the configured address.
func (s *Server) Run() error {
	s.logger.Info("starting API server",
		zap.String("listen", s.config.ListenAddr),
	)
	return s.app.Listen(s.config.ListenAddr)
}

// Shutdown gracefully shuts down the API server.
func (s *Server) Shutdown() error {
	return s.app.Shutdown()
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App {
	return s.app
}

// requireUser rejects requests without a user identity header.
func (s *Server) requireUser(c *fiber.Ctx) error {
	userID := c.Get(UserHeader)
	if userID == "" {
		return c.Status(fiber.StatusUnauthorized).JSON(ErrorResponse{Error: "missing user identity"})
	}
	c.Locals("userID", userID)
	return c.Next()
}

func userID(c *fiber.Ctx) string {
	id, _ := c.Locals("userID").(string)
	return id
}

func (s *Server) handlePing(c *fiber.Ctx) error {
	return c.JSON("pong")
}

// respondError maps service errors onto HTTP statuses. Ownership mismatches
// already come back as not-found from the store.
func (s *Server) respondError(c *fiber.Ctx, err error) error {
	switch {
	case store.IsNotFound(err):
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{Error: err.Error()})
	case errors.Is(err, fusion.ErrSameTopic), errors.Is(err, express.ErrNoContent):
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{Error: err.Error()})
	default:
		s.logger.Error("request failed",
			zap.String("path", c.Path()),
			zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{Error: err.Error()})
	}
}
