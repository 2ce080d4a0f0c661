// Package api provides the HTTP handlers for the council engine.
package api

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Tom-dlhy/local-llm-consensus-engine/config"
	"github.com/Tom-dlhy/local-llm-consensus-engine/council"
	"github.com/Tom-dlhy/local-llm-consensus-engine/ollama"
	"github.com/Tom-dlhy/local-llm-consensus-engine/ws"
)

// Handler handles HTTP requests.
type Handler struct {
	svc    *council.Service
	ollama *ollama.Client
	ws     *ws.Server
	config *config.Config
}

// NewHandler creates a new handler. The council service and WebSocket server
// are nil on a worker, which only serves the generate passthrough.
func NewHandler(svc *council.Service, ollamaClient *ollama.Client, wsServer *ws.Server, cfg *config.Config) *Handler {
	return &Handler{
		svc:    svc,
		ollama: ollamaClient,
		ws:     wsServer,
		config: cfg,
	}
}

// RegisterRoutes registers routes with the echo server. The surface depends
// on the process role: masters expose the council API, workers expose the
// generate passthrough, and both serve the health endpoints.
func (h *Handler) RegisterRoutes(e *echo.Echo) {
	if h.config.Role == config.RoleMaster {
		e.POST("/api/council/query", h.StartCouncil)
		e.GET("/api/council/sessions", h.ListSessions)
		e.GET("/api/council/session/:session_id", h.GetSession)
		e.GET("/api/council/session/:session_id/events", h.SessionEvents)
		e.GET("/api/council/models", h.GetModels)
		e.GET("/ws/council/:session_id", h.ws.HandleSession)
	}

	if h.config.Role == config.RoleWorker {
		e.POST("/api/generate", h.Generate)
		e.POST("/api/generate/batch", h.GenerateBatch)
	}

	e.GET("/health", h.Health)
	e.GET("/health/ollama", h.OllamaHealth)
	e.GET("/health/models", h.HealthModels)
}

// Health returns basic health status.
func (h *Handler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "consensus-engine",
		"role":    string(h.config.Role),
		"version": "0.1.0",
	})
}
