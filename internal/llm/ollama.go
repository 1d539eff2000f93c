package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/aafontoura/budget-notion/internal/common"
)

// ollamaClient implements the Client interface for a local Ollama server.
type ollamaClient struct {
	httpClient *http.Client
	baseURL    string
	model      string
	retryOpts  common.RetryOptions
}

// newOllamaClient creates a client for the Ollama /api/generate endpoint.
func newOllamaClient(cfg Config) (Client, error) {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}

	model := cfg.Model
	if model == "" {
		model = "llama3.1:8b"
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	return &ollamaClient{
		baseURL: baseURL,
		model:   model,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 2,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retryOpts: common.DefaultRetryOptions(),
	}, nil
}

type ollamaGenerateRequest struct {
	Model     string         `json:"model"`
	Prompt    string         `json:"prompt"`
	Stream    bool           `json:"stream"`
	KeepAlive string         `json:"keep_alive,omitempty"`
	Options   map[string]any `json:"options,omitempty"`
}

type ollamaGenerateResponse struct {
	Response string `json:"response"`
}

// Generate sends a prompt to Ollama, retrying rate-limited and transient
// failures with exponential backoff. Permanent failures propagate
// immediately.
func (c *ollamaClient) Generate(ctx context.Context, prompt string, isBatch bool) (string, error) {
	var result string

	err := common.WithRetry(ctx, func() error {
		text, genErr := c.generateOnce(ctx, prompt, isBatch)
		if genErr != nil {
			return wrapForRetry(genErr)
		}
		result = text
		return nil
	}, c.retryOpts)
	if err != nil {
		return "", fmt.Errorf("ollama generate failed: %w", err)
	}

	return result, nil
}

func (c *ollamaClient) generateOnce(ctx context.Context, prompt string, isBatch bool) (string, error) {
	// Context/output budgets tuned for an 8B-class model on CPU. Batch
	// prompts carry 30-40 transactions and need room for the full JSON
	// array; single prompts only produce one small object.
	options := map[string]any{"temperature": 0.1}
	if isBatch {
		options["num_ctx"] = 4096
		options["num_predict"] = 2000
	} else {
		options["num_ctx"] = 1024
		options["num_predict"] = 100
	}

	payload := ollamaGenerateRequest{
		Model:  c.model,
		Prompt: prompt,
		Stream: false,
		// Keep the model loaded between calls during batch jobs.
		KeepAlive: "30m",
		Options:   options,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", &PermanentError{Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/generate", strings.NewReader(string(body)))
	if err != nil {
		return "", &PermanentError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	slog.Debug("sending Ollama request",
		"model", c.model,
		"batch", isBatch,
		"prompt_chars", len(prompt))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", classifyTransportError(err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &TransientError{Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return "", classifyHTTPStatus(resp, respBody)
	}

	var parsed ollamaGenerateResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", &TransientError{Err: fmt.Errorf("failed to parse response: %w", err)}
	}

	slog.Debug("received Ollama response", "chars", len(parsed.Response))
	return parsed.Response, nil
}

// TestConnection probes the Ollama tags endpoint.
func (c *ollamaClient) TestConnection(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/tags", nil)
	if err != nil {
		return false
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Warn("Ollama connection test failed", "error", err)
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	return resp.StatusCode == http.StatusOK
}

// classifyTransportError maps connection-level failures to the taxonomy.
// Everything at this level (timeouts, refused connections, DNS failures) is
// worth retrying, so it all classifies as transient.
func classifyTransportError(err error) error {
	return &TransientError{Err: err}
}

// classifyHTTPStatus maps an HTTP error response to the taxonomy: 429 is a
// rate limit (honoring Retry-After), 5xx is transient, 4xx is permanent.
func classifyHTTPStatus(resp *http.Response, body []byte) error {
	err := fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := defaultRetryAfter
		if header := resp.Header.Get("Retry-After"); header != "" {
			if seconds, parseErr := strconv.Atoi(header); parseErr == nil && seconds > 0 {
				retryAfter = time.Duration(seconds) * time.Second
			}
		}
		return &RateLimitError{Err: err, RetryAfter: retryAfter}
	case resp.StatusCode >= 500:
		return &TransientError{Err: err}
	default:
		return &PermanentError{Err: err}
	}
}

// wrapForRetry marks taxonomy errors for the retry helper: rate-limited and
// transient failures retry (rate limits at their hinted delay), permanent
// failures do not.
func wrapForRetry(err error) error {
	var rateLimit *RateLimitError
	if errors.As(err, &rateLimit) {
		return &common.RetryableError{Err: err, Retryable: true, RetryAfter: rateLimit.RetryAfter}
	}
	if IsRetryable(err) {
		return &common.RetryableError{Err: err, Retryable: true}
	}
	return err
}
