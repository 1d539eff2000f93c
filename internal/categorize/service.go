package categorize

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/aafontoura/budget-notion/internal/llm"
	"github.com/aafontoura/budget-notion/internal/model"
)

// DefaultBatchSize balances prompt size against LLM call count. Around 35
// transactions keeps batch responses within small-model output limits.
const DefaultBatchSize = 35

// ProgressFunc is invoked after each completed batch with the number of
// transactions processed so far and the total.
type ProgressFunc func(done, total int)

// Service categorizes transactions through an LLM client, batching requests
// and degrading gracefully when calls fail. Results are keyed by request ID
// and every input always gets a result.
type Service struct {
	client    llm.Client
	progress  ProgressFunc
	batchSize int
}

// Option configures a Service.
type Option func(*Service)

// WithBatchSize overrides the number of transactions per LLM call.
func WithBatchSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.batchSize = size
		}
	}
}

// WithProgress registers a callback reporting batch completion.
func WithProgress(fn ProgressFunc) Option {
	return func(s *Service) {
		s.progress = fn
	}
}

// NewService creates a categorization service.
func NewService(client llm.Client, opts ...Option) *Service {
	s := &Service{
		client:    client,
		batchSize: DefaultBatchSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CategorizeBatch categorizes all requests, splitting them into batches of
// one LLM call each. A failed batch call falls back to per-transaction
// calls; a failed per-transaction call produces a fallback result carrying
// the error class. The returned map always contains an entry for every
// request ID.
func (s *Service) CategorizeBatch(ctx context.Context, requests []model.CategorizationRequest) (map[string]model.CategorizationResult, error) {
	if len(requests) == 0 {
		return map[string]model.CategorizationResult{}, nil
	}

	results := make(map[string]model.CategorizationResult, len(requests))
	totalBatches := (len(requests) + s.batchSize - 1) / s.batchSize

	for start := 0; start < len(requests); start += s.batchSize {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		end := start + s.batchSize
		if end > len(requests) {
			end = len(requests)
		}
		batch := requests[start:end]
		batchNum := start/s.batchSize + 1

		ids := make([]string, len(batch))
		for i, req := range batch {
			ids[i] = req.ID
		}

		slog.Info("categorizing batch",
			"batch", batchNum,
			"total_batches", totalBatches,
			"size", len(batch))

		response, err := s.client.Generate(ctx, buildBatchPrompt(batch), true)
		if err != nil {
			slog.Error("batch categorization failed, falling back to individual calls",
				"batch", batchNum, "error", err)
			for _, req := range batch {
				results[req.ID] = s.categorizeWithFallback(ctx, req)
			}
		} else {
			for id, result := range parseBatchResponse(response, ids) {
				results[id] = result
			}
		}

		if s.progress != nil {
			s.progress(end, len(requests))
		}
	}

	return results, nil
}

// categorizeWithFallback runs the single-call path and converts any error
// into a fallback result so the caller never loses a transaction.
func (s *Service) categorizeWithFallback(ctx context.Context, req model.CategorizationRequest) model.CategorizationResult {
	result, err := s.CategorizeFull(ctx, req)
	if err != nil {
		slog.Error("individual categorization failed", "id", req.ID, "error", err)
		return errorResult(err)
	}
	return result
}

// CategorizeFull categorizes a single transaction with one combined
// category-and-subcategory prompt.
func (s *Service) CategorizeFull(ctx context.Context, req model.CategorizationRequest) (model.CategorizationResult, error) {
	response, err := s.client.Generate(ctx, buildFullPrompt(req), false)
	if err != nil {
		return errorResult(err), err
	}
	return parseFullResponse(response), nil
}

// CategorizeSingle categorizes a single transaction with the two-step path:
// category first, then subcategory within it. Slower than CategorizeFull
// but more accurate for small models.
func (s *Service) CategorizeSingle(ctx context.Context, req model.CategorizationRequest) (model.CategorizationResult, error) {
	categoryResponse, err := s.client.Generate(ctx, buildCategoryPrompt(req), false)
	if err != nil {
		return errorResult(err), err
	}
	categoryResult := parseCategoryResponse(categoryResponse)

	subcategoryResponse, err := s.client.Generate(ctx, buildSubcategoryPrompt(req, categoryResult.Category), false)
	if err != nil {
		return errorResult(err), err
	}

	return parseSubcategoryResponse(subcategoryResponse, categoryResult.Category), nil
}

// TestConnection reports whether the LLM backend is reachable.
func (s *Service) TestConnection(ctx context.Context) bool {
	return s.client.TestConnection(ctx)
}

// errorResult builds a fallback result annotated with the failure class so
// callers can decide whether a later retry is worthwhile.
func errorResult(err error) model.CategorizationResult {
	result := fallbackResult(err.Error(), model.ErrorTypePermanent)
	result.Retriable = false

	var rateLimit *llm.RateLimitError
	var transient *llm.TransientError
	switch {
	case errors.As(err, &rateLimit):
		result.ErrorType = model.ErrorTypeRateLimit
		result.Retriable = true
		result.RetryAfter = int(rateLimit.RetryAfter / time.Second)
	case errors.As(err, &transient):
		result.ErrorType = model.ErrorTypeTransient
		result.Retriable = true
	}

	return result
}
