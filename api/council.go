package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"github.com/Tom-dlhy/local-llm-consensus-engine/council"
	"github.com/Tom-dlhy/local-llm-consensus-engine/domain"
	"github.com/Tom-dlhy/local-llm-consensus-engine/store"
)

// StartCouncil handles POST /api/council/query. By default the full
// three-stage workflow runs before the response is written, returning the
// terminal session. With ?async=true the pending session is returned
// immediately and the workflow runs in the background; clients follow
// progress over SSE or WebSocket.
func (h *Handler) StartCouncil(c echo.Context) error {
	var req domain.CouncilRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}

	session, err := h.svc.CreateSession(c.Request().Context(), req)
	if err != nil {
		var blocked *council.BlockedError
		if errors.As(err, &blocked) {
			return c.JSON(http.StatusBadRequest, map[string]string{"error": blocked.Reason})
		}
		log.Printf("ERROR: failed to create session: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to create session"})
	}

	if c.QueryParam("async") == "true" {
		// The workflow outlives the request; detach it from the request
		// context.
		go func() {
			if _, err := h.svc.Run(context.Background(), session.SessionID); err != nil {
				log.Printf("ERROR: council run %s failed: %v", session.SessionID, err)
			}
		}()
		return c.JSON(http.StatusAccepted, session)
	}

	final, err := h.svc.Run(c.Request().Context(), session.SessionID)
	if err != nil {
		log.Printf("ERROR: council run %s failed: %v", session.SessionID, err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "council workflow failed"})
	}
	return c.JSON(http.StatusOK, final)
}

// GetSession handles GET /api/council/session/:session_id.
func (h *Handler) GetSession(c echo.Context) error {
	session, err := h.svc.GetSession(c.Request().Context(), c.Param("session_id"))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "session not found"})
		}
		log.Printf("ERROR: failed to get session: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get session"})
	}
	return c.JSON(http.StatusOK, session)
}

// ListSessions handles GET /api/council/sessions.
func (h *Handler) ListSessions(c echo.Context) error {
	sessions, err := h.svc.ListSessions(c.Request().Context())
	if err != nil {
		log.Printf("ERROR: failed to list sessions: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to list sessions"})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"sessions": sessions,
		"count":    len(sessions),
	})
}

// recommendedModel describes one entry of the curated model list.
type recommendedModel struct {
	Name            string `json:"name"`
	DisplayName     string `json:"display_name"`
	Size            string `json:"size"`
	Description     string `json:"description"`
	RecommendedRole string `json:"recommended_role"`
	Installed       bool   `json:"installed"`
}

// recommendedModels is the curated list of small models that work well in a
// council on modest hardware.
var recommendedModels = []recommendedModel{
	{Name: "llama3.2:1b", DisplayName: "Llama 3.2", Size: "~1.3 GB", Description: "Strong scorer for the review stage", RecommendedRole: "reviewer"},
	{Name: "qwen2.5:0.5b", DisplayName: "Qwen 2.5", Size: "~350 MB", Description: "Very fast for simple opinions", RecommendedRole: "opinions"},
	{Name: "gemma2:2b", DisplayName: "Gemma 2", Size: "~1.6 GB", Description: "More accurate but heavier", RecommendedRole: "expert"},
	{Name: "phi3.5:latest", DisplayName: "Phi-3.5 Mini", Size: "~2.2 GB", Description: "Good synthesizer", RecommendedRole: "chairman"},
	{Name: "tinyllama", DisplayName: "TinyLlama", Size: "~600 MB", Description: "Lightweight backup for constrained machines", RecommendedRole: "backup"},
}

// GetModels handles GET /api/council/models. Recommended models are matched
// against the installed list by base name, so "llama3.2:1b" counts as
// installed when any llama3.2 tag is present.
func (h *Handler) GetModels(c echo.Context) error {
	installed, err := h.ollama.ListModels(c.Request().Context())
	if err != nil {
		log.Printf("ERROR: failed to list models: %v", err)
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "failed to list models"})
	}

	installedNames := make(map[string]bool, len(installed))
	installedBases := make(map[string]bool, len(installed))
	names := make([]string, 0, len(installed))
	for _, m := range installed {
		installedNames[m.Name] = true
		installedBases[baseName(m.Name)] = true
		names = append(names, m.Name)
	}

	recommended := make([]recommendedModel, len(recommendedModels))
	for i, m := range recommendedModels {
		m.Installed = installedNames[m.Name] || installedBases[baseName(m.Name)]
		recommended[i] = m
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"recommended": recommended,
		"installed":   names,
	})
}

func baseName(model string) string {
	if i := strings.IndexByte(model, ':'); i >= 0 {
		return model[:i]
	}
	return model
}
