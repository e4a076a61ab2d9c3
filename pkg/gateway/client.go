// Package gateway provides the language model gateway client.
//
// The gateway is the only semantic capability the engine depends on: callers
// send an ordered list of role-tagged messages plus a thinking-effort hint and
// an output cap, and receive the first candidate's text back. Everything the
// engine does with that text (JSON extraction, fallback behavior) is a caller
// concern; transport and candidate selection live here.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// DefaultTimeout bounds a single gateway call. There is no retry and no
// mid-flight cancellation; this timeout is the only latency bound.
const DefaultTimeout = 120 * time.Second

// Client is the interface the engine components call for all semantic
// transformations.
type Client interface {
	// Complete sends the request and returns the first candidate's text.
	Complete(ctx context.Context, req *Request) (string, error)
}

// HubConfig holds configuration for the AI hub client.
type HubConfig struct {
	// Target is the hub base URL, e.g. "http://localhost:8000".
	Target string

	// Model selects the chat-completion model route.
	Model string

	// ThinkingEffort is the default effort hint when a request leaves it empty.
	ThinkingEffort string

	// MaxTokens is the default output cap when a request leaves it zero.
	MaxTokens int

	// Timeout overrides DefaultTimeout when non-zero.
	Timeout time.Duration
}

// HubClient implements Client against an AI hub chat-completion endpoint.
type HubClient struct {
	config HubConfig
	http   *http.Client
}

// NewHubClient creates a gateway client for the configured hub.
func NewHubClient(config HubConfig) *HubClient {
	timeout := config.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}

	return &HubClient{
		config: config,
		http:   &http.Client{Timeout: timeout},
	}
}

type hubRequest struct {
	Messages    []Message      `json:"messages"`
	ModelParams hubModelParams `json:"model_params"`
}

type hubModelParams struct {
	ThinkingLevel   string `json:"thinking_level,omitempty"`
	MaxOutputTokens int    `json:"max_output_tokens,omitempty"`
}

type hubResponse struct {
	ErrorMessage string `json:"error_message,omitempty"`
	Choices      []struct {
		Content string `json:"content"`
	} `json:"choices"`
}

// Complete posts the request to the hub and returns the first choice's content.
// Non-200 status, transport failure, a hub-reported error message, and an empty
// choice list are all gateway errors.
func (c *HubClient) Complete(ctx context.Context, req *Request) (string, error) {
	effort := req.ThinkingEffort
	if effort == "" {
		effort = c.config.ThinkingEffort
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.config.MaxTokens
	}

	body := hubRequest{
		Messages: req.Messages,
		ModelParams: hubModelParams{
			ThinkingLevel:   effort,
			MaxOutputTokens: maxTokens,
		},
	}

	data, err := json.Marshal(body)
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/run/chat_completion/%s", c.config.Target, c.config.Model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("gateway request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gateway error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result hubResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return "", fmt.Errorf("unmarshal response: %w", err)
	}

	if result.ErrorMessage != "" {
		return "", fmt.Errorf("gateway error: %s", result.ErrorMessage)
	}

	if len(result.Choices) == 0 || result.Choices[0].Content == "" {
		return "", errors.New("gateway returned no content")
	}

	return result.Choices[0].Content, nil
}
