package api

import (
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
)

// OllamaHealth handles GET /health/ollama: reachability of the configured
// inference endpoint.
func (h *Handler) OllamaHealth(c echo.Context) error {
	connected := h.ollama.Health(c.Request().Context(), h.config.HealthTimeout)

	status := "ok"
	if !connected {
		status = "error"
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":     status,
		"ollama_url": h.ollama.BaseURL(),
		"connected":  connected,
	})
}

// HealthModels handles GET /health/models: the models installed on the
// inference endpoint.
func (h *Handler) HealthModels(c echo.Context) error {
	models, err := h.ollama.ListModels(c.Request().Context())
	if err != nil {
		log.Printf("ERROR: failed to list models: %v", err)
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "failed to list models"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status": "ok",
		"models": models,
		"count":  len(models),
	})
}
