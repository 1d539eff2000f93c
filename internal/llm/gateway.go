package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/aafontoura/budget-notion/internal/common"
)

// gatewayClient implements the Client interface against an OpenAI-compatible
// chat completions endpoint. Commercial providers (OpenAI, Anthropic via a
// proxy, Groq, OpenRouter) all speak this format.
type gatewayClient struct {
	httpClient  *http.Client
	baseURL     string
	apiKey      string
	model       string
	temperature float64
	retryOpts   common.RetryOptions
}

// newGatewayClient creates a client for a commercial multi-provider gateway.
func newGatewayClient(cfg Config) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required for gateway provider")
	}

	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}

	temperature := cfg.Temperature
	if temperature == 0 {
		temperature = 0.1
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 120 * time.Second
	}

	return &gatewayClient{
		baseURL:     baseURL,
		apiKey:      cfg.APIKey,
		model:       model,
		temperature: temperature,
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		retryOpts: common.DefaultRetryOptions(),
	}, nil
}

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Generate sends a chat completion request, retrying rate-limited and
// transient failures. Permanent failures (auth, validation) propagate
// immediately.
func (c *gatewayClient) Generate(ctx context.Context, prompt string, isBatch bool) (string, error) {
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
		return "", fmt.Errorf("gateway generate failed: %w", err)
	}

	return result, nil
}

func (c *gatewayClient) generateOnce(ctx context.Context, prompt string, isBatch bool) (string, error) {
	maxTokens := 150
	if isBatch {
		maxTokens = 2000
	}

	payload := chatCompletionRequest{
		Model: c.model,
		Messages: []chatMessage{
			{
				Role:    "system",
				Content: "You are a financial transaction categorizer. Respond with ONLY valid JSON, no explanatory text or markdown.",
			},
			{Role: "user", Content: prompt},
		},
		Temperature: c.temperature,
		MaxTokens:   maxTokens,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", &PermanentError{Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", strings.NewReader(string(body)))
	if err != nil {
		return "", &PermanentError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	slog.Debug("sending gateway request",
		"model", c.model,
		"batch", isBatch,
		"max_tokens", maxTokens)

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
		return "", classifyGatewayStatus(resp, respBody)
	}

	var parsed chatCompletionResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", &TransientError{Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	if parsed.Error != nil {
		return "", &PermanentError{Err: fmt.Errorf("provider error: %s", parsed.Error.Message)}
	}
	if len(parsed.Choices) == 0 {
		return "", &TransientError{Err: fmt.Errorf("no completion choices returned")}
	}

	return parsed.Choices[0].Message.Content, nil
}

// TestConnection sends a minimal completion request to verify credentials
// and reachability.
func (c *gatewayClient) TestConnection(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	payload := chatCompletionRequest{
		Model:     c.model,
		Messages:  []chatMessage{{Role: "user", Content: "test"}},
		MaxTokens: 5,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return false
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", strings.NewReader(string(body)))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		slog.Warn("gateway connection test failed", "error", err)
		return false
	}
	defer func() { _ = resp.Body.Close() }()

	return resp.StatusCode == http.StatusOK
}

// retryAfterPattern matches throttle hints embedded in provider error
// messages, e.g. "try again in 20s" or "retry after 4.5 seconds".
var retryAfterPattern = regexp.MustCompile(`(?i)(?:retry|wait|try again)[^0-9]*(\d+(?:\.\d+)?)\s*s`)

// classifyGatewayStatus maps an HTTP error response to the taxonomy. Rate
// limit hints are taken from the Retry-After header first, then from the
// error message body.
func classifyGatewayStatus(resp *http.Response, body []byte) error {
	message := strings.TrimSpace(string(body))
	err := fmt.Errorf("status %d: %s", resp.StatusCode, message)

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := defaultRetryAfter
		if header := resp.Header.Get("Retry-After"); header != "" {
			if seconds, parseErr := strconv.Atoi(header); parseErr == nil && seconds > 0 {
				retryAfter = time.Duration(seconds) * time.Second
			}
		} else if match := retryAfterPattern.FindStringSubmatch(message); match != nil {
			if seconds, parseErr := strconv.ParseFloat(match[1], 64); parseErr == nil && seconds > 0 {
				retryAfter = time.Duration(seconds * float64(time.Second))
			}
		}
		return &RateLimitError{Err: err, RetryAfter: retryAfter}
	case resp.StatusCode >= 500:
		return &TransientError{Err: err}
	default:
		return &PermanentError{Err: err}
	}
}
