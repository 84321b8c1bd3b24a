// Package client talks to the answer service over HTTP.
//
// It owns the wire types of the /api/chat contract, a per-attempt timeout,
// and a pure retry policy (retry.go) that the chat layer drives. Error
// classification for user-facing failure messages lives in errors.go.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/entropy1208/halsaveda-copilot/internal/log"
)

// Request is the /api/chat request body. TopK of 0 lets the server apply
// its default.
type Request struct {
	Question string `json:"question"`
	TopK     int    `json:"top_k,omitempty"`
}

// Source is one cited document in a Response.
type Source struct {
	Title string  `json:"title"`
	URL   string  `json:"url"`
	Score float64 `json:"score"`
}

// Response is the /api/chat success body.
type Response struct {
	Answer  string   `json:"answer"`
	Sources []Source `json:"sources"`
}

// Stats is the /api/stats body. Fields are telemetry, not contract; absent
// fields decode to zero values.
type Stats struct {
	QuestionsAnswered int64  `json:"questions_answered"`
	Chunks            int64  `json:"chunks"`
	EmbeddingModel    string `json:"embedding_model"`
	ChatModel         string `json:"chat_model"`
}

// Client is a thin HTTP client for the answer service. One attempt per
// call; retries are the caller's concern.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
	logger     log.Logger
}

// New creates a Client for the service at baseURL. timeout bounds each
// individual request.
func New(baseURL string, timeout time.Duration, logger log.Logger) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("base URL is required")
	}
	if timeout <= 0 {
		return nil, errors.New("timeout must be positive")
	}
	if logger == nil {
		return nil, errors.New("logger is required")
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{},
		timeout:    timeout,
		logger:     logger,
	}, nil
}

// Ask sends one question to the answer service. Non-2xx statuses become a
// *StatusError; exceeding the per-attempt timeout surfaces as a deadline
// error from the underlying transport.
func (c *Client) Ask(ctx context.Context, req Request) (*Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer func() {
		if err := httpResp.Body.Close(); err != nil {
			c.logger.Debug("failed to close response body", "error", err)
		}
	}()

	if httpResp.StatusCode != http.StatusOK {
		// Drain so the connection can be reused.
		_, _ = io.Copy(io.Discard, io.LimitReader(httpResp.Body, 4096))
		return nil, &StatusError{Code: httpResp.StatusCode}
	}

	var resp Response
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &resp, nil
}

// Stats fetches service telemetry. Callers treat failures as non-critical.
func (c *Client) Stats(ctx context.Context) (*Stats, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/stats", nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer func() {
		if err := httpResp.Body.Close(); err != nil {
			c.logger.Debug("failed to close response body", "error", err)
		}
	}()

	if httpResp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(httpResp.Body, 4096))
		return nil, &StatusError{Code: httpResp.StatusCode}
	}

	var stats Stats
	if err := json.NewDecoder(httpResp.Body).Decode(&stats); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &stats, nil
}
