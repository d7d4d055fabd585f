// Package llm adapts a remote text-generation endpoint to the evaluation
// contract. The adapter never fails: transport and parse errors collapse to
// a fixed fallback result.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/explainable-finance/verdict/internal/domain"
)

// generation options tuned for small CPU-hosted models.
var generateOptions = map[string]any{
	"num_ctx":        2048,
	"temperature":    0.3,
	"top_p":          0.9,
	"repeat_penalty": 1.1,
	"num_predict":    512,
}

// Client calls an Ollama-style generate endpoint with bounded concurrency
// and a hard per-call timeout.
type Client struct {
	url     string
	model   string
	timeout time.Duration
	permits chan struct{}
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a remote decision client. maxInFlight bounds concurrent
// calls across all goroutines sharing this client.
func NewClient(cfg domain.ModelConfig, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	maxInFlight := cfg.MaxInFlight
	if maxInFlight <= 0 {
		maxInFlight = 3
	}
	return &Client{
		url:     cfg.URL,
		model:   cfg.Model,
		timeout: timeout,
		permits: make(chan struct{}, maxInFlight),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

type generateRequest struct {
	Model   string         `json:"model"`
	Prompt  string         `json:"prompt"`
	Stream  bool           `json:"stream"`
	Format  string         `json:"format"`
	Options map[string]any `json:"options"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Decide evaluates the applicant via the remote model. It never returns an
// error: any failure, including permit-wait cancellation and timeout, yields
// the fallback result exactly once with no retry.
func (c *Client) Decide(ctx context.Context, d domain.Domain, a domain.Applicant, policies []*domain.PolicyConfig, history []*domain.DecisionRecord) *domain.DecisionResult {
	select {
	case c.permits <- struct{}{}:
		defer func() { <-c.permits }()
	case <-ctx.Done():
		c.logger.Warn("remote decision abandoned waiting for permit", "domain", d)
		return FallbackResult(d)
	}

	raw, err := c.generate(ctx, BuildPrompt(d, a, policies, history))
	if err != nil {
		c.logger.Warn("remote decision call failed", "domain", d, "error", err)
		return FallbackResult(d)
	}

	parsed := ExtractDecision(d, raw)
	if parsed.Fallback {
		c.logger.Warn("remote decision output unparseable", "domain", d, "reason", parsed.Reason)
	}
	return parsed.Result
}

// Ping verifies the endpoint responds to a minimal generation request.
func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	_, err := c.generate(ctx, "test")
	return err
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(generateRequest{
		Model:   c.model,
		Prompt:  prompt,
		Stream:  false,
		Format:  "json",
		Options: generateOptions,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("generate call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("generate call returned status %d", resp.StatusCode)
	}

	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	return out.Response, nil
}
