// Package server exposes graph validation, compilation, persistence and chat
// sessions over HTTP.
package server

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/gofiber/fiber/v3/middleware/cors"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"github.com/meikuraledutech/agentflow"
	"github.com/meikuraledutech/agentflow/session"
)

const (
	// HeaderOwnerID scopes graph persistence to a user.
	HeaderOwnerID = "X-Owner-ID"

	// TempWorkflowID selects the default configuration in chat requests.
	TempWorkflowID = "temp-workflow"
)

// Dependencies is everything the HTTP surface needs.
type Dependencies struct {
	Store    agentflow.Store
	Sessions *session.Manager

	// Redis enables rate limiting when set.
	Redis      *goredis.Client
	RateLimit  int
	RateWindow time.Duration

	StrictConnectivity bool
}

type handlers struct {
	deps Dependencies
}

// New builds the fiber application.
func New(deps Dependencies) *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:      "agentflow",
		ErrorHandler: errorHandler,
	})

	app.Use(cors.New())
	app.Use(requestLogger())
	if deps.Redis != nil {
		app.Use(rateLimiter(deps.Redis, deps.RateLimit, deps.RateWindow))
	}

	h := &handlers{deps: deps}

	app.Get("/health", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status":    "healthy",
			"service":   "agentflow",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	})

	// ── Stateless graph operations ───────────────────────────────────
	app.Post("/graphs/validate", h.validateGraph)
	app.Post("/graphs/compile", h.compileGraph)

	// ── Stored graphs ────────────────────────────────────────────────
	graphs := app.Group("/graphs")
	graphs.Post("/", h.createGraph)
	graphs.Get("/", h.listGraphs)
	graphs.Get("/:id", h.getGraph)
	graphs.Put("/:id", h.updateGraph)
	graphs.Delete("/:id", h.deleteGraph)
	graphs.Get("/:id/config", h.graphConfig)

	graphs.Post("/:id/nodes", h.addNode)
	graphs.Put("/:id/nodes/:nodeId", h.updateNode)
	graphs.Delete("/:id/nodes/:nodeId", h.deleteNode)

	graphs.Post("/:id/edges", h.addEdge)
	graphs.Delete("/:id/edges/:edgeId", h.deleteEdge)

	graphs.Post("/:id/sessions", h.startGraphSession)

	// ── Sessions ─────────────────────────────────────────────────────
	app.Post("/sessions", h.startSession)
	app.Get("/sessions/:id", h.getSession)
	app.Delete("/sessions/:id", h.closeSession)
	app.Post("/sessions/:id/messages", h.sendMessage)

	app.Post("/chat", h.chat)

	return app
}

func (h *handlers) validateOptions() []agentflow.ValidateOption {
	if h.deps.StrictConnectivity {
		return []agentflow.ValidateOption{agentflow.WithStrictConnectivity()}
	}
	return nil
}

// statusOf maps domain errors onto HTTP status codes.
func statusOf(err error) int {
	var fe *fiber.Error
	switch {
	case errors.As(err, &fe):
		return fe.Code
	case errors.Is(err, agentflow.ErrMalformedInput), errors.Is(err, session.ErrEmptyMessage):
		return fiber.StatusBadRequest
	case errors.Is(err, agentflow.ErrInvalidGraph):
		return fiber.StatusUnprocessableEntity
	case errors.Is(err, session.ErrSessionBusy):
		return fiber.StatusConflict
	case errors.Is(err, agentflow.ErrGraphNotFound),
		errors.Is(err, agentflow.ErrNodeNotFound),
		errors.Is(err, agentflow.ErrEdgeNotFound),
		errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, session.ErrSessionClosed):
		return fiber.StatusNotFound
	case errors.Is(err, session.ErrGeneration):
		return fiber.StatusBadGateway
	}
	return fiber.StatusInternalServerError
}

func errorHandler(c fiber.Ctx, err error) error {
	code := statusOf(err)
	body := fiber.Map{"error": err.Error()}

	var fe *fiber.Error
	var ie *agentflow.InputError
	var ve *agentflow.ValidationError
	switch {
	case errors.As(err, &fe):
		body["error"] = fe.Message
	case errors.As(err, &ie):
		body["error"] = ie.Msg
		if len(ie.Details) > 0 {
			body["details"] = ie.Details
		}
	case errors.As(err, &ve):
		body["error"] = ve.Msg
		if ve.NodeID != "" {
			body["nodeId"] = ve.NodeID
		}
	case code == fiber.StatusInternalServerError:
		log.Error().Err(err).Str("path", c.Path()).Msg("Request failed")
		body["error"] = "internal server error"
	}
	return c.Status(code).JSON(body)
}
