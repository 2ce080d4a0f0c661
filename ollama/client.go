// Package ollama provides an HTTP client for the Ollama generate API.
package ollama

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// Client is the Ollama API client.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new Ollama client. connectTimeout bounds dialing the
// endpoint so an unreachable host fails fast; totalTimeout bounds the whole
// call, including a slow generation.
func NewClient(baseURL string, connectTimeout, totalTimeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: totalTimeout,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: connectTimeout,
				}).DialContext,
			},
		},
	}
}

// GenerateRequest is the payload for /api/generate. Format is passed through
// uninterpreted; "json" requests machine-parseable output.
type GenerateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	System  string         `json:"system,omitempty"`
	Format  string         `json:"format,omitempty"`
	Options map[string]any `json:"options,omitempty"`
	Stream  bool           `json:"stream"`
}

// GenerateResponse is the raw /api/generate response body.
type GenerateResponse struct {
	Model            string `json:"model"`
	Response         string `json:"response"`
	Done             bool   `json:"done"`
	PromptEvalCount  int    `json:"prompt_eval_count"`
	EvalCount        int    `json:"eval_count"`
	TotalDurationNs  int64  `json:"total_duration"`
}

// GenerateResult is the normalized outcome of one generation.
type GenerateResult struct {
	Model            string
	Content          string
	PromptTokens     int
	CompletionTokens int
	Duration         time.Duration
}

// Generate issues a single non-streaming generation request.
func (c *Client) Generate(ctx context.Context, req GenerateRequest) (*GenerateResult, error) {
	req.Stream = false

	start := time.Now()
	resp, err := c.postGenerate(ctx, req)
	if err != nil {
		return nil, err
	}

	return &GenerateResult{
		Model:            req.Model,
		Content:          resp.Response,
		PromptTokens:     resp.PromptEvalCount,
		CompletionTokens: resp.EvalCount,
		Duration:         time.Since(start),
	}, nil
}

// GenerateRaw issues a generation request and returns the raw response body.
// The worker passthrough uses this to stay wire-compatible with Ollama.
func (c *Client) GenerateRaw(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	req.Stream = false
	return c.postGenerate(ctx, req)
}

func (c *Client) postGenerate(ctx context.Context, req GenerateRequest) (*GenerateResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, classifyTransportError(err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, &Error{
			Kind:       KindStatus,
			Message:    strings.TrimSpace(string(respBody)),
			StatusCode: httpResp.StatusCode,
		}
	}

	var result GenerateResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, &Error{Kind: KindMalformed, Message: fmt.Sprintf("failed to decode response: %v", err)}
	}

	return &result, nil
}

// ModelInfo describes one installed model from /api/tags.
type ModelInfo struct {
	Name       string `json:"name"`
	Size       int64  `json:"size"`
	ModifiedAt string `json:"modified_at"`
}

type tagsResponse struct {
	Models []ModelInfo `json:"models"`
}

// ListModels returns the models installed on the endpoint.
func (c *Client) ListModels(ctx context.Context) ([]ModelInfo, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, classifyTransportError(err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, classifyTransportError(err)
	}

	if httpResp.StatusCode != http.StatusOK {
		return nil, &Error{
			Kind:       KindStatus,
			Message:    strings.TrimSpace(string(respBody)),
			StatusCode: httpResp.StatusCode,
		}
	}

	var result tagsResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, &Error{Kind: KindMalformed, Message: fmt.Sprintf("failed to decode response: %v", err)}
	}
	return result.Models, nil
}

// Health reports whether the endpoint is responsive within the given timeout.
func (c *Client) Health(ctx context.Context, timeout time.Duration) bool {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, err := c.ListModels(ctx)
	return err == nil
}

// BaseURL returns the endpoint the client talks to.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func classifyTransportError(err error) *Error {
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		return &Error{Kind: KindTimeout, Message: err.Error()}
	}
	return &Error{Kind: KindConnection, Message: err.Error()}
}
