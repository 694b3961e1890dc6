// Package textgen calls an OpenAI-compatible chat-completions endpoint to
// produce agent chat. Every call is bounded in time and treated as
// fallible; callers substitute local fallbacks on error.
package textgen

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

	"golang.org/x/time/rate"
)

// ErrDisabled is returned when no API key is configured. Agents then run
// purely on fallback chat.
var ErrDisabled = errors.New("textgen: no api key configured")

// Request is a single-prompt completion request.
type Request struct {
	Prompt      string
	Temperature float64
	MaxTokens   int
	Stop        []string
}

// Generator is implemented by the backing text-generation service.
type Generator interface {
	Generate(ctx context.Context, req Request) (string, error)
}

type Client struct {
	http    *http.Client
	apiURL  string
	apiKey  string
	model   string
	limiter *rate.Limiter
}

// NewClient builds a client for an OpenAI-compatible endpoint. The limiter
// bounds the outbound request rate across all agents; pass nil to disable.
func NewClient(apiURL, apiKey, model string, timeout time.Duration, limiter *rate.Limiter) *Client {
	return &Client{
		http:    &http.Client{Timeout: timeout},
		apiURL:  apiURL,
		apiKey:  apiKey,
		model:   model,
		limiter: limiter,
	}
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
	Stop        []string      `json:"stop,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (c *Client) Generate(ctx context.Context, req Request) (string, error) {
	if c.apiKey == "" {
		return "", ErrDisabled
	}
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", fmt.Errorf("textgen: rate limit wait: %w", err)
		}
	}

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		Messages:    []chatMessage{{Role: "user", Content: req.Prompt}},
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
		Stop:        req.Stop,
	})
	if err != nil {
		return "", err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("textgen: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		// Drain a little of the body for the log line; the caller only
		// branches on non-nil.
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return "", fmt.Errorf("textgen: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var out chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("textgen: decode: %w", err)
	}
	if len(out.Choices) == 0 {
		return "", errors.New("textgen: empty choices")
	}
	content := strings.TrimSpace(out.Choices[0].Message.Content)
	if content == "" {
		return "", errors.New("textgen: empty completion")
	}
	return content, nil
}
