package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aafontoura/budget-notion/internal/common"
)

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{
			name: "rate limit is retryable",
			err:  &RateLimitError{Err: errors.New("429"), RetryAfter: time.Second},
			want: true,
		},
		{
			name: "transient is retryable",
			err:  &TransientError{Err: errors.New("503")},
			want: true,
		},
		{
			name: "permanent is not retryable",
			err:  &PermanentError{Err: errors.New("401")},
			want: false,
		},
		{
			name: "wrapped rate limit is retryable",
			err:  fmt.Errorf("generate failed: %w", &RateLimitError{Err: errors.New("429")}),
			want: true,
		},
		{
			name: "plain error is not retryable",
			err:  errors.New("boom"),
			want: false,
		},
		{
			name: "nil is not retryable",
			err:  nil,
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryable(tt.err))
		})
	}
}

func TestErrorUnwrapping(t *testing.T) {
	cause := errors.New("underlying failure")

	var rateLimit *RateLimitError
	err := fmt.Errorf("wrapped: %w", &RateLimitError{Err: cause, RetryAfter: 30 * time.Second})
	require.True(t, errors.As(err, &rateLimit))
	assert.Equal(t, 30*time.Second, rateLimit.RetryAfter)
	assert.ErrorIs(t, err, cause)

	var transient *TransientError
	err = fmt.Errorf("wrapped: %w", &TransientError{Err: cause})
	require.True(t, errors.As(err, &transient))
	assert.ErrorIs(t, err, cause)

	var permanent *PermanentError
	err = fmt.Errorf("wrapped: %w", &PermanentError{Err: cause})
	require.True(t, errors.As(err, &permanent))
	assert.ErrorIs(t, err, cause)
}

func TestWrapForRetry(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantRetryable bool
		wantAfter     time.Duration
	}{
		{
			name:          "rate limit carries hint",
			err:           &RateLimitError{Err: errors.New("429"), RetryAfter: 45 * time.Second},
			wantRetryable: true,
			wantAfter:     45 * time.Second,
		},
		{
			name:          "transient retries without hint",
			err:           &TransientError{Err: errors.New("timeout")},
			wantRetryable: true,
		},
		{
			name:          "permanent does not retry",
			err:           &PermanentError{Err: errors.New("bad request")},
			wantRetryable: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			wrapped := wrapForRetry(tt.err)

			var retryable *common.RetryableError
			if !tt.wantRetryable {
				// Permanent failures pass through untouched so WithRetry
				// stops after the first attempt.
				assert.False(t, errors.As(wrapped, &retryable))
				assert.Equal(t, tt.err, wrapped)
				return
			}

			require.True(t, errors.As(wrapped, &retryable))
			assert.True(t, retryable.Retryable)
			assert.Equal(t, tt.wantAfter, retryable.RetryAfter)
			assert.ErrorIs(t, wrapped, tt.err)
		})
	}
}

func TestNewClient(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{
			name: "ollama provider",
			cfg:  Config{Provider: "ollama"},
		},
		{
			name: "empty provider defaults to ollama",
			cfg:  Config{},
		},
		{
			name: "gateway provider requires key",
			cfg:  Config{Provider: "gateway"},

			wantErr: true,
		},
		{
			name: "gateway provider with key",
			cfg:  Config{Provider: "gateway", APIKey: "sk-test"},
		},
		{
			name:    "unknown provider",
			cfg:     Config{Provider: "bedrock"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client, err := NewClient(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, client)
		})
	}
}

func TestOllamaGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/generate", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"response": "{\"category\": \"FOOD & GROCERIES\"}", "done": true}`)
	}))
	defer server.Close()

	client, err := NewClient(Config{Provider: "ollama", BaseURL: server.URL})
	require.NoError(t, err)

	resp, err := client.Generate(context.Background(), "categorize this", false)
	require.NoError(t, err)
	assert.Contains(t, resp, "FOOD & GROCERIES")
}

func TestOllamaGeneratePermanentFailure(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer server.Close()

	client, err := NewClient(Config{Provider: "ollama", BaseURL: server.URL})
	require.NoError(t, err)

	_, err = client.Generate(context.Background(), "categorize this", false)
	require.Error(t, err)

	var permanent *PermanentError
	assert.True(t, errors.As(err, &permanent))
}

func TestGatewayGenerate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"choices": [{"message": {"content": "{\"category\": \"SHOPPING\"}"}}]}`)
	}))
	defer server.Close()

	client, err := NewClient(Config{Provider: "gateway", BaseURL: server.URL, APIKey: "sk-test"})
	require.NoError(t, err)

	resp, err := client.Generate(context.Background(), "categorize this", true)
	require.NoError(t, err)
	assert.Contains(t, resp, "SHOPPING")
}

func TestClassifyGatewayStatus(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		header    string
		body      string
		wantType  any
		wantAfter time.Duration
	}{
		{
			name:      "429 with header",
			status:    http.StatusTooManyRequests,
			header:    "15",
			body:      "rate limited",
			wantType:  &RateLimitError{},
			wantAfter: 15 * time.Second,
		},
		{
			name:      "429 with message hint",
			status:    http.StatusTooManyRequests,
			body:      `{"error": {"message": "Rate limit reached. Please try again in 20s."}}`,
			wantType:  &RateLimitError{},
			wantAfter: 20 * time.Second,
		},
		{
			name:      "429 without hint uses default",
			status:    http.StatusTooManyRequests,
			body:      "slow down",
			wantType:  &RateLimitError{},
			wantAfter: defaultRetryAfter,
		},
		{
			name:     "500 is transient",
			status:   http.StatusInternalServerError,
			body:     "internal error",
			wantType: &TransientError{},
		},
		{
			name:     "401 is permanent",
			status:   http.StatusUnauthorized,
			body:     "invalid api key",
			wantType: &PermanentError{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := &http.Response{
				StatusCode: tt.status,
				Header:     http.Header{},
			}
			if tt.header != "" {
				resp.Header.Set("Retry-After", tt.header)
			}

			err := classifyGatewayStatus(resp, []byte(tt.body))
			require.Error(t, err)

			switch tt.wantType.(type) {
			case *RateLimitError:
				var rateLimit *RateLimitError
				require.True(t, errors.As(err, &rateLimit))
				assert.Equal(t, tt.wantAfter, rateLimit.RetryAfter)
			case *TransientError:
				var transient *TransientError
				assert.True(t, errors.As(err, &transient))
			case *PermanentError:
				var permanent *PermanentError
				assert.True(t, errors.As(err, &permanent))
			}
		})
	}
}
