// Package repository defines transaction persistence and its two backends:
// a local SQLite database and a Notion database accessed over REST.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aafontoura/budget-notion/internal/model"
)

// ListFilter narrows List results. Zero values mean no constraint.
type ListFilter struct {
	From        time.Time
	To          time.Time
	Category    string
	Account     string
	Uncategorized bool
	NeedsReview bool
	// ReviewThreshold is the AI confidence below which NeedsReview matches.
	// Zero falls back to model.DefaultReviewThreshold.
	ReviewThreshold float64
	Limit           int
}

// reviewThreshold resolves the effective confidence cutoff.
func (f ListFilter) reviewThreshold() float64 {
	if f.ReviewThreshold > 0 {
		return f.ReviewThreshold
	}
	return model.DefaultReviewThreshold
}

// TransactionRepository stores transactions. Implementations preserve the
// transaction ID as given; it is the identity used to join records across
// backends. Get and Update return common.ErrNotFound for unknown IDs; Add
// returns common.ErrDuplicate when the ID already exists.
type TransactionRepository interface {
	Add(ctx context.Context, txn model.Transaction) error
	Get(ctx context.Context, id uuid.UUID) (model.Transaction, error)
	List(ctx context.Context, filter ListFilter) ([]model.Transaction, error)
	Update(ctx context.Context, txn model.Transaction) error
	Delete(ctx context.Context, id uuid.UUID) error
	Search(ctx context.Context, query string) ([]model.Transaction, error)
	GetByCategory(ctx context.Context, category string) ([]model.Transaction, error)
	GetTotalByCategory(ctx context.Context, from, to time.Time) (map[string]decimal.Decimal, error)
}
