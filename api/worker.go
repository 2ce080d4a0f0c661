package api

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/Tom-dlhy/local-llm-consensus-engine/dispatch"
	"github.com/Tom-dlhy/local-llm-consensus-engine/ollama"
)

const maxBatchSize = 5

// Generate handles POST /api/generate: a single passthrough generation
// against the local Ollama instance, called by a master to delegate inference
// to this machine. The response body stays wire-compatible with Ollama so a
// master cannot tell a worker from a direct endpoint.
func (h *Handler) Generate(c echo.Context) error {
	var req ollama.GenerateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if req.Model == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "model is required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.config.GenerateTimeout)
	defer cancel()

	resp, err := h.ollama.GenerateRaw(ctx, req)
	if err != nil {
		log.Printf("ERROR: generation failed for %s: %v", req.Model, err)
		return c.JSON(generateStatus(err), map[string]string{"error": err.Error()})
	}
	return c.JSON(http.StatusOK, resp)
}

// batchGenerateRequest is the payload for POST /api/generate/batch.
type batchGenerateRequest struct {
	Requests []ollama.GenerateRequest `json:"requests"`
}

// batchGenerateResponse reports per-request outcomes: either the raw Ollama
// response or an error object, index-aligned with the request list.
type batchGenerateResponse struct {
	Results      []interface{} `json:"results"`
	SuccessCount int           `json:"success_count"`
	ErrorCount   int           `json:"error_count"`
}

// GenerateBatch handles POST /api/generate/batch: up to five generations run
// in parallel, with one request's failure never failing its siblings.
func (h *Handler) GenerateBatch(c echo.Context) error {
	var req batchGenerateRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "invalid request body"})
	}
	if len(req.Requests) == 0 || len(req.Requests) > maxBatchSize {
		return c.JSON(http.StatusBadRequest, map[string]string{
			"error": "requests must contain between 1 and 5 entries",
		})
	}

	tasks := make([]dispatch.Task[*ollama.GenerateResponse], len(req.Requests))
	for i, genReq := range req.Requests {
		genReq := genReq
		tasks[i] = func(ctx context.Context) (*ollama.GenerateResponse, error) {
			return h.ollama.GenerateRaw(ctx, genReq)
		}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), h.config.GenerateTimeout)
	defer cancel()
	results := dispatch.Run(ctx, tasks)

	resp := batchGenerateResponse{Results: make([]interface{}, len(results))}
	for i, res := range results {
		if res.Err != nil {
			log.Printf("WARN: batch generation failed for %s: %v", req.Requests[i].Model, res.Err)
			resp.Results[i] = map[string]string{
				"error": res.Err.Error(),
				"model": req.Requests[i].Model,
			}
			resp.ErrorCount++
			continue
		}
		resp.Results[i] = res.Value
		resp.SuccessCount++
	}
	return c.JSON(http.StatusOK, resp)
}

// generateStatus maps a client error to the passthrough's HTTP status.
func generateStatus(err error) int {
	var oerr *ollama.Error
	if !errors.As(err, &oerr) {
		return http.StatusInternalServerError
	}
	switch oerr.Kind {
	case ollama.KindTimeout:
		return http.StatusGatewayTimeout
	case ollama.KindStatus:
		if oerr.StatusCode >= 400 {
			return oerr.StatusCode
		}
		return http.StatusBadGateway
	default:
		return http.StatusBadGateway
	}
}
