package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aafontoura/budget-notion/internal/common"
	"github.com/aafontoura/budget-notion/internal/model"
)

const (
	notionBaseURL    = "https://api.notion.com/v1"
	notionAPIVersion = "2022-06-28"
	notionPageSize   = 100
)

// NotionRepository implements TransactionRepository against a Notion
// database. Each transaction is a page; the UUID lives in a "Transaction ID"
// rich text property because Notion assigns its own page IDs.
type NotionRepository struct {
	httpClient *http.Client
	baseURL    string
	token      string
	databaseID string
	retryOpts  common.RetryOptions
}

// NotionOption configures a NotionRepository.
type NotionOption func(*NotionRepository)

// WithNotionBaseURL overrides the API endpoint. Used in tests.
func WithNotionBaseURL(baseURL string) NotionOption {
	return func(r *NotionRepository) {
		r.baseURL = baseURL
	}
}

// NewNotionRepository creates a repository backed by a Notion database.
func NewNotionRepository(token, databaseID string, opts ...NotionOption) (*NotionRepository, error) {
	if token == "" {
		return nil, fmt.Errorf("%w: notion token cannot be empty", common.ErrMissingConfig)
	}
	if databaseID == "" {
		return nil, fmt.Errorf("%w: notion database ID cannot be empty", common.ErrMissingConfig)
	}

	return &NotionRepository{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    notionBaseURL,
		token:      token,
		databaseID: databaseID,
		retryOpts:  common.DefaultRetryOptions(),
	}, nil
}

// Add creates a page for the transaction.
func (r *NotionRepository) Add(ctx context.Context, txn model.Transaction) error {
	if err := txn.Validate(); err != nil {
		return fmt.Errorf("invalid transaction: %w", err)
	}

	if _, err := r.findPage(ctx, txn.ID); err == nil {
		return fmt.Errorf("%w: transaction %s", common.ErrDuplicate, txn.ID)
	} else if !isNotFound(err) {
		return err
	}

	payload := map[string]any{
		"parent":     map[string]any{"database_id": r.databaseID},
		"properties": transactionToProperties(txn),
	}

	var page notionPage
	if err := r.do(ctx, http.MethodPost, "/pages", payload, &page); err != nil {
		return fmt.Errorf("failed to create notion page: %w", err)
	}

	slog.Info("created transaction in notion", "id", txn.ID, "page_id", page.ID)
	return nil
}

// Get retrieves a transaction by its UUID.
func (r *NotionRepository) Get(ctx context.Context, id uuid.UUID) (model.Transaction, error) {
	page, err := r.findPage(ctx, id)
	if err != nil {
		return model.Transaction{}, err
	}
	return pageToTransaction(page)
}

// List retrieves transactions matching the filter. Date, category and
// account constraints are pushed into the Notion query; the rest is applied
// in memory.
func (r *NotionRepository) List(ctx context.Context, filter ListFilter) ([]model.Transaction, error) {
	var filters []map[string]any
	if !filter.From.IsZero() {
		filters = append(filters, map[string]any{
			"property": "Date",
			"date":     map[string]any{"on_or_after": filter.From.Format("2006-01-02")},
		})
	}
	if !filter.To.IsZero() {
		filters = append(filters, map[string]any{
			"property": "Date",
			"date":     map[string]any{"on_or_before": filter.To.Format("2006-01-02")},
		})
	}
	if filter.Category != "" {
		filters = append(filters, map[string]any{
			"property": "Category",
			"select":   map[string]any{"equals": filter.Category},
		})
	}
	if filter.Account != "" {
		filters = append(filters, map[string]any{
			"property": "Account",
			"select":   map[string]any{"equals": filter.Account},
		})
	}

	var queryFilter map[string]any
	switch len(filters) {
	case 0:
	case 1:
		queryFilter = filters[0]
	default:
		queryFilter = map[string]any{"and": filters}
	}

	txns, err := r.queryAll(ctx, queryFilter)
	if err != nil {
		return nil, err
	}

	var out []model.Transaction
	for _, txn := range txns {
		if filter.Uncategorized && txn.Category != "" && txn.Category != "Miscellaneous" {
			continue
		}
		if filter.NeedsReview && !txn.NeedsReview(filter.reviewThreshold()) {
			continue
		}
		out = append(out, txn)
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}

	return out, nil
}

// Update replaces the properties of the transaction's page.
func (r *NotionRepository) Update(ctx context.Context, txn model.Transaction) error {
	if err := txn.Validate(); err != nil {
		return fmt.Errorf("invalid transaction: %w", err)
	}

	page, err := r.findPage(ctx, txn.ID)
	if err != nil {
		return err
	}

	payload := map[string]any{"properties": transactionToProperties(txn)}
	if err := r.do(ctx, http.MethodPatch, "/pages/"+page.ID, payload, nil); err != nil {
		return fmt.Errorf("failed to update notion page: %w", err)
	}

	slog.Info("updated transaction in notion", "id", txn.ID, "page_id", page.ID)
	return nil
}

// Delete archives the transaction's page. Notion has no true deletion.
func (r *NotionRepository) Delete(ctx context.Context, id uuid.UUID) error {
	page, err := r.findPage(ctx, id)
	if err != nil {
		return err
	}

	payload := map[string]any{"archived": true}
	if err := r.do(ctx, http.MethodPatch, "/pages/"+page.ID, payload, nil); err != nil {
		return fmt.Errorf("failed to archive notion page: %w", err)
	}

	slog.Info("archived transaction in notion", "id", id, "page_id", page.ID)
	return nil
}

// Search finds transactions whose description contains the query.
func (r *NotionRepository) Search(ctx context.Context, query string) ([]model.Transaction, error) {
	return r.queryAll(ctx, map[string]any{
		"property": "Description",
		"title":    map[string]any{"contains": query},
	})
}

// GetByCategory retrieves all transactions in a category.
func (r *NotionRepository) GetByCategory(ctx context.Context, category string) ([]model.Transaction, error) {
	return r.List(ctx, ListFilter{Category: category})
}

// GetTotalByCategory sums amounts per category within the date range.
func (r *NotionRepository) GetTotalByCategory(ctx context.Context, from, to time.Time) (map[string]decimal.Decimal, error) {
	txns, err := r.List(ctx, ListFilter{From: from, To: to})
	if err != nil {
		return nil, err
	}

	totals := make(map[string]decimal.Decimal)
	for _, txn := range txns {
		totals[txn.Category] = totals[txn.Category].Add(txn.Amount)
	}
	return totals, nil
}

type notionPage struct {
	ID             string                     `json:"id"`
	CreatedTime    time.Time                  `json:"created_time"`
	LastEditedTime time.Time                  `json:"last_edited_time"`
	Properties     map[string]json.RawMessage `json:"properties"`
}

type notionQueryResponse struct {
	Results    []notionPage `json:"results"`
	HasMore    bool         `json:"has_more"`
	NextCursor string       `json:"next_cursor"`
}

// findPage locates the page holding the transaction with the given UUID.
func (r *NotionRepository) findPage(ctx context.Context, id uuid.UUID) (notionPage, error) {
	payload := map[string]any{
		"filter": map[string]any{
			"property":  "Transaction ID",
			"rich_text": map[string]any{"equals": id.String()},
		},
		"page_size": 1,
	}

	var resp notionQueryResponse
	if err := r.do(ctx, http.MethodPost, "/databases/"+r.databaseID+"/query", payload, &resp); err != nil {
		return notionPage{}, fmt.Errorf("failed to query notion: %w", err)
	}
	if len(resp.Results) == 0 {
		return notionPage{}, fmt.Errorf("%w: transaction %s", common.ErrNotFound, id)
	}

	return resp.Results[0], nil
}

// queryAll runs a database query and follows pagination, skipping pages that
// don't map to valid transactions.
func (r *NotionRepository) queryAll(ctx context.Context, filter map[string]any) ([]model.Transaction, error) {
	var txns []model.Transaction
	cursor := ""

	for {
		payload := map[string]any{"page_size": notionPageSize}
		if filter != nil {
			payload["filter"] = filter
		}
		if cursor != "" {
			payload["start_cursor"] = cursor
		}

		var resp notionQueryResponse
		if err := r.do(ctx, http.MethodPost, "/databases/"+r.databaseID+"/query", payload, &resp); err != nil {
			return nil, fmt.Errorf("failed to query notion: %w", err)
		}

		for _, page := range resp.Results {
			txn, err := pageToTransaction(page)
			if err != nil {
				slog.Warn("skipping invalid notion page", "page_id", page.ID, "error", err)
				continue
			}
			txns = append(txns, txn)
		}

		if !resp.HasMore {
			return txns, nil
		}
		cursor = resp.NextCursor
	}
}

// do sends one API request with retry on rate limits and server errors.
func (r *NotionRepository) do(ctx context.Context, method, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	return common.WithRetry(ctx, func() error {
		req, reqErr := http.NewRequestWithContext(ctx, method, r.baseURL+path, bytes.NewReader(body))
		if reqErr != nil {
			return fmt.Errorf("failed to create request: %w", reqErr)
		}
		req.Header.Set("Authorization", "Bearer "+r.token)
		req.Header.Set("Notion-Version", notionAPIVersion)
		req.Header.Set("Content-Type", "application/json")

		resp, doErr := r.httpClient.Do(req)
		if doErr != nil {
			return &common.RetryableError{Err: doErr, Retryable: true}
		}
		defer func() { _ = resp.Body.Close() }()

		respBody, readErr := io.ReadAll(resp.Body)
		if readErr != nil {
			return &common.RetryableError{Err: readErr, Retryable: true}
		}

		switch {
		case resp.StatusCode == http.StatusOK:
		case resp.StatusCode == http.StatusTooManyRequests:
			retryAfter := time.Duration(0)
			if header := resp.Header.Get("Retry-After"); header != "" {
				if seconds, parseErr := strconv.Atoi(header); parseErr == nil {
					retryAfter = time.Duration(seconds) * time.Second
				}
			}
			return &common.RetryableError{
				Err:        fmt.Errorf("notion rate limited: %s", respBody),
				Retryable:  true,
				RetryAfter: retryAfter,
			}
		case resp.StatusCode >= 500:
			return &common.RetryableError{
				Err:       fmt.Errorf("notion server error %d: %s", resp.StatusCode, respBody),
				Retryable: true,
			}
		default:
			return fmt.Errorf("notion API error %d: %s", resp.StatusCode, respBody)
		}

		if out != nil {
			if unmarshalErr := json.Unmarshal(respBody, out); unmarshalErr != nil {
				return fmt.Errorf("failed to parse notion response: %w", unmarshalErr)
			}
		}
		return nil
	}, r.retryOpts)
}
