// Package enhance provides a rate-limited client for the AI text
// enhancement endpoint used to rewrite note content.
package enhance

import (
	"bytes"
	"context"
	"encoding/json/v2"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/notedly/notedly-server/internal/ratelimit"
)

// Sentinel errors reported by the client.
var (
	// ErrUnavailable means no enhancement endpoint is configured.
	ErrUnavailable = errors.New("enhancement service not configured")
	// ErrRateLimited means the upstream rejected the call with 429.
	ErrRateLimited = errors.New("enhancement service rate limited")
	// ErrUpstream covers upstream failures and malformed responses.
	ErrUpstream = errors.New("enhancement service failed")
)

const (
	defaultBurst = 1

	systemPrompt = "You are a writing assistant. Improve the clarity, grammar and " +
		"structure of the user's note while preserving its meaning and language. " +
		"The note content is HTML; respond with the improved content as HTML only, " +
		"with no commentary."
)

// Config configures the enhancement client.
type Config struct {
	Endpoint string
	APIKey   string
	Model    string
	Timeout  time.Duration
	RPS      float64
}

// Client calls an OpenAI-compatible chat completions endpoint to rewrite
// note content. Calls are rate limited so a burst of enhance requests
// doesn't trip upstream quotas.
type Client struct {
	http     *http.Client
	limiter  *ratelimit.KeyedRateLimiter
	logger   *slog.Logger
	endpoint string
	apiKey   string
	model    string
}

// New creates an enhancement client. An empty endpoint yields a client whose
// calls fail with ErrUnavailable; the server still boots without upstream
// credentials.
func New(cfg Config, logger *slog.Logger) *Client {
	return &Client{
		http: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter:  ratelimit.New(cfg.RPS, defaultBurst),
		logger:   logger,
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		model:    cfg.Model,
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// Enhance sends note content upstream and returns the rewritten HTML.
// Markdown code fences wrapping the reply are stripped; some models insist
// on fencing their output no matter what the prompt says.
func (c *Client) Enhance(ctx context.Context, content string) (string, error) {
	if c.endpoint == "" {
		return "", ErrUnavailable
	}

	if err := c.limiter.Wait(ctx, "enhance"); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}

	payload, err := json.Marshal(chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: content},
		},
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	c.logger.Debug("enhance request", "model", c.model, "content_bytes", len(content))

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrUpstream, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%w: read response: %w", ErrUpstream, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusTooManyRequests:
		return "", ErrRateLimited
	default:
		c.logger.Warn("enhance upstream error", "status", resp.StatusCode)
		return "", fmt.Errorf("%w: status %d", ErrUpstream, resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("%w: decode response: %w", ErrUpstream, err)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("%w: empty response", ErrUpstream)
	}

	enhanced := StripFences(parsed.Choices[0].Message.Content)
	if enhanced == "" {
		return "", fmt.Errorf("%w: empty response", ErrUpstream)
	}
	return enhanced, nil
}

// StripFences removes a single wrapping markdown code fence, with or
// without a language tag, from the text. Text without a fence passes
// through unchanged.
func StripFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}

	// Drop the opening fence line, language tag included.
	rest := trimmed[3:]
	if i := strings.IndexByte(rest, '\n'); i >= 0 {
		rest = rest[i+1:]
	} else {
		// Single-line fence such as ```html<p>hi</p>```.
		rest = strings.TrimSuffix(rest, "```")
		return strings.TrimSpace(trimLanguageTag(rest))
	}

	rest = strings.TrimSpace(rest)
	rest = strings.TrimSuffix(rest, "```")
	return strings.TrimSpace(rest)
}

// trimLanguageTag drops a leading language identifier when the body
// continues on the same line as the opening fence. A body that is all
// alphanumeric is left alone.
func trimLanguageTag(s string) string {
	i := 0
	for i < len(s) && (s[i] >= 'a' && s[i] <= 'z' || s[i] >= 'A' && s[i] <= 'Z' || s[i] >= '0' && s[i] <= '9') {
		i++
	}
	if i == 0 || i == len(s) {
		return s
	}
	return s[i:]
}
