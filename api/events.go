package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/Tom-dlhy/local-llm-consensus-engine/domain"
	"github.com/Tom-dlhy/local-llm-consensus-engine/store"
)

// SessionEvents handles GET /api/council/session/:session_id/events as an
// SSE stream. The client first receives a snapshot of the session as it
// stands, then every stage transition until the session terminates. The
// subscription is attached before the snapshot is read, so a transition
// between the two is delivered rather than lost.
func (h *Handler) SessionEvents(c echo.Context) error {
	sessionID := c.Param("session_id")

	events, cancel := h.svc.Subscribe(sessionID)
	defer cancel()

	session, err := h.svc.GetSession(c.Request().Context(), sessionID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "session not found"})
		}
		log.Printf("ERROR: failed to get session: %v", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "failed to get session"})
	}

	resp := c.Response()
	resp.Header().Set(echo.HeaderContentType, "text/event-stream")
	resp.Header().Set("Cache-Control", "no-cache")
	resp.Header().Set("Connection", "keep-alive")
	resp.WriteHeader(http.StatusOK)

	if err := writeSSE(resp, domain.SnapshotEvent(session, time.Now().UnixMilli())); err != nil {
		return nil
	}
	if session.Stage.Terminal() {
		return nil
	}

	ctx := c.Request().Context()
	for {
		select {
		case event, ok := <-events:
			if !ok {
				// Dropped by the broker, client should resynchronize.
				return nil
			}
			if err := writeSSE(resp, event); err != nil {
				return nil
			}
			if event.Stage.Terminal() {
				return nil
			}

		case <-ctx.Done():
			return nil
		}
	}
}

func writeSSE(resp *echo.Response, event domain.ProgressEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(resp, "event: %s\ndata: %s\n\n", event.Type, data); err != nil {
		return err
	}
	resp.Flush()
	return nil
}
