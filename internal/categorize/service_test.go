package categorize

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aafontoura/budget-notion/internal/llm"
	"github.com/aafontoura/budget-notion/internal/model"
	"github.com/aafontoura/budget-notion/internal/taxonomy"
)

// fakeClient scripts Generate responses and errors per call.
type fakeClient struct {
	generate  func(prompt string, isBatch bool) (string, error)
	calls     int
	connected bool
}

func (f *fakeClient) Generate(_ context.Context, prompt string, isBatch bool) (string, error) {
	f.calls++
	return f.generate(prompt, isBatch)
}

func (f *fakeClient) TestConnection(_ context.Context) bool {
	return f.connected
}

func requests(n int) []model.CategorizationRequest {
	reqs := make([]model.CategorizationRequest, n)
	for i := range reqs {
		reqs[i] = model.CategorizationRequest{
			ID:          fmt.Sprintf("txn-%d", i),
			Description: fmt.Sprintf("Purchase %d", i),
			Amount:      "-12.50",
			Date:        "2026-01-15",
		}
	}
	return reqs
}

func TestCategorizeBatch(t *testing.T) {
	client := &fakeClient{
		generate: func(prompt string, isBatch bool) (string, error) {
			require.True(t, isBatch)
			return `[
				{"id": "txn-0", "category": "FOOD & GROCERIES", "subcategory": "Groceries", "confidence": 0.95},
				{"id": "txn-1", "category": "TRANSPORTATION", "subcategory": "Fuel", "confidence": 0.88}
			]`, nil
		},
	}

	svc := NewService(client)
	results, err := svc.CategorizeBatch(context.Background(), requests(2))
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "FOOD & GROCERIES", results["txn-0"].Category)
	assert.Equal(t, "Groceries", results["txn-0"].Subcategory)
	assert.InDelta(t, 0.95, results["txn-0"].Confidence, 0.001)
	assert.Equal(t, "TRANSPORTATION", results["txn-1"].Category)
	assert.Equal(t, 1, client.calls)
}

func TestCategorizeBatchSplitsByBatchSize(t *testing.T) {
	var batchSizes []int
	client := &fakeClient{
		generate: func(prompt string, isBatch bool) (string, error) {
			batchSizes = append(batchSizes, strings.Count(prompt, `"id":"txn-`))
			return "[]", nil
		},
	}

	var progress [][2]int
	svc := NewService(client,
		WithBatchSize(3),
		WithProgress(func(done, total int) { progress = append(progress, [2]int{done, total}) }),
	)

	results, err := svc.CategorizeBatch(context.Background(), requests(7))
	require.NoError(t, err)

	assert.Equal(t, []int{3, 3, 1}, batchSizes)
	assert.Len(t, results, 7)
	assert.Equal(t, [][2]int{{3, 7}, {6, 7}, {7, 7}}, progress)
}

func TestCategorizeBatchMissingIDsGetFallbacks(t *testing.T) {
	client := &fakeClient{
		generate: func(prompt string, isBatch bool) (string, error) {
			// Model only returned one of three transactions.
			return `[{"id": "txn-1", "category": "SHOPPING", "subcategory": "Clothing", "confidence": 0.8}]`, nil
		},
	}

	svc := NewService(client)
	results, err := svc.CategorizeBatch(context.Background(), requests(3))
	require.NoError(t, err)
	require.Len(t, results, 3)

	assert.Equal(t, "SHOPPING", results["txn-1"].Category)
	for _, id := range []string{"txn-0", "txn-2"} {
		assert.Equal(t, taxonomy.FallbackCategory, results[id].Category)
		assert.Equal(t, taxonomy.FallbackSubcategory, results[id].Subcategory)
		assert.Zero(t, results[id].Confidence)
	}
}

func TestCategorizeBatchFallsBackToIndividual(t *testing.T) {
	client := &fakeClient{
		generate: func(prompt string, isBatch bool) (string, error) {
			if isBatch {
				return "", &llm.TransientError{Err: errors.New("server overloaded")}
			}
			return `{"category": "ENTERTAINMENT & LEISURE", "subcategory": "Streaming Services", "confidence": 0.9}`, nil
		},
	}

	svc := NewService(client)
	results, err := svc.CategorizeBatch(context.Background(), requests(2))
	require.NoError(t, err)
	require.Len(t, results, 2)

	for _, id := range []string{"txn-0", "txn-1"} {
		assert.Equal(t, "ENTERTAINMENT & LEISURE", results[id].Category)
	}
	// One failed batch call plus one individual call per transaction.
	assert.Equal(t, 3, client.calls)
}

func TestCategorizeBatchTotalFailureStillCoversEveryInput(t *testing.T) {
	client := &fakeClient{
		generate: func(prompt string, isBatch bool) (string, error) {
			return "", &llm.PermanentError{Err: errors.New("invalid api key")}
		},
	}

	svc := NewService(client, WithBatchSize(2))
	results, err := svc.CategorizeBatch(context.Background(), requests(5))
	require.NoError(t, err)
	require.Len(t, results, 5)

	for id, result := range results {
		assert.Equal(t, taxonomy.FallbackCategory, result.Category, id)
		assert.Equal(t, taxonomy.FallbackSubcategory, result.Subcategory, id)
		assert.Zero(t, result.Confidence, id)
		assert.Equal(t, model.ErrorTypePermanent, result.ErrorType, id)
		assert.False(t, result.Retriable, id)
	}
}

func TestCategorizeBatchRateLimitErrorCarriesHint(t *testing.T) {
	client := &fakeClient{
		generate: func(prompt string, isBatch bool) (string, error) {
			return "", &llm.RateLimitError{Err: errors.New("429"), RetryAfter: 30 * time.Second}
		},
	}

	svc := NewService(client)
	results, err := svc.CategorizeBatch(context.Background(), requests(1))
	require.NoError(t, err)

	result := results["txn-0"]
	assert.Equal(t, model.ErrorTypeRateLimit, result.ErrorType)
	assert.True(t, result.Retriable)
	assert.Equal(t, 30, result.RetryAfter)
}

func TestCategorizeBatchEmptyInput(t *testing.T) {
	svc := NewService(&fakeClient{})
	results, err := svc.CategorizeBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestCategorizeBatchRespectsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := NewService(&fakeClient{
		generate: func(prompt string, isBatch bool) (string, error) { return "[]", nil },
	})

	_, err := svc.CategorizeBatch(ctx, requests(1))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCategorizeSingleTwoStep(t *testing.T) {
	step := 0
	client := &fakeClient{
		generate: func(prompt string, isBatch bool) (string, error) {
			step++
			if step == 1 {
				assert.Contains(t, prompt, "Categories:")
				return `{"category": "food & groceries", "confidence": 0.9}`, nil
			}
			assert.Contains(t, prompt, "FOOD & GROCERIES")
			return `{"subcategory": "groceries", "confidence": 0.85}`, nil
		},
	}

	svc := NewService(client)
	result, err := svc.CategorizeSingle(context.Background(), requests(1)[0])
	require.NoError(t, err)

	assert.Equal(t, "FOOD & GROCERIES", result.Category)
	assert.Equal(t, "Groceries", result.Subcategory)
	assert.InDelta(t, 0.85, result.Confidence, 0.001)
}

func TestTestConnection(t *testing.T) {
	svc := NewService(&fakeClient{connected: true})
	assert.True(t, svc.TestConnection(context.Background()))

	svc = NewService(&fakeClient{connected: false})
	assert.False(t, svc.TestConnection(context.Background()))
}
