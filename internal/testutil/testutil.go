// Package testutil provides shared test helpers: an in-memory SQLite
// repository, a map-backed fake repository, and transaction builders.
package testutil

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/aafontoura/budget-notion/internal/common"
	"github.com/aafontoura/budget-notion/internal/model"
	"github.com/aafontoura/budget-notion/internal/repository"
)

// SetupTestDB creates an in-memory SQLite repository with migrations applied
// and cleanup registered.
func SetupTestDB(t *testing.T) *repository.SQLiteRepository {
	t.Helper()

	repo, err := repository.NewSQLiteRepository(context.Background(), ":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	t.Cleanup(func() {
		_ = repo.Close()
	})

	return repo
}

// MakeTransaction builds a valid transaction with deterministic defaults for
// tests. Override fields on the returned value as needed; sync comparisons
// go through Update so modified copies keep their identity.
func MakeTransaction(t *testing.T, description string, amount string) model.Transaction {
	t.Helper()

	value, err := decimal.NewFromString(amount)
	if err != nil {
		t.Fatalf("invalid amount %q: %v", amount, err)
	}

	txn, err := model.NewTransaction(
		time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
		description,
		value,
		"Miscellaneous",
	)
	if err != nil {
		t.Fatalf("failed to build transaction: %v", err)
	}
	return txn
}

// MemoryRepository is a map-backed TransactionRepository for tests that need
// to script or inspect repository state without SQLite, and to stand in for
// the Notion backend.
type MemoryRepository struct {
	mu   sync.Mutex
	txns map[uuid.UUID]model.Transaction

	// FailNext makes the next mutating call return this error once.
	FailNext error

	// Adds, Updates and Deletes count mutating calls that succeeded.
	Adds    int
	Updates int
	Deletes int
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{txns: make(map[uuid.UUID]model.Transaction)}
}

// Seed inserts transactions directly, bypassing counters.
func (m *MemoryRepository) Seed(txns ...model.Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, txn := range txns {
		m.txns[txn.ID] = txn
	}
}

func (m *MemoryRepository) failNext() error {
	if m.FailNext != nil {
		err := m.FailNext
		m.FailNext = nil
		return err
	}
	return nil
}

// Add stores a new transaction.
func (m *MemoryRepository) Add(_ context.Context, txn model.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failNext(); err != nil {
		return err
	}
	if _, ok := m.txns[txn.ID]; ok {
		return fmt.Errorf("%w: transaction %s", common.ErrDuplicate, txn.ID)
	}
	m.txns[txn.ID] = txn
	m.Adds++
	return nil
}

// Get retrieves a transaction by ID.
func (m *MemoryRepository) Get(_ context.Context, id uuid.UUID) (model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	txn, ok := m.txns[id]
	if !ok {
		return model.Transaction{}, fmt.Errorf("%w: transaction %s", common.ErrNotFound, id)
	}
	return txn, nil
}

// List returns transactions matching the filter, newest first.
func (m *MemoryRepository) List(_ context.Context, filter repository.ListFilter) ([]model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []model.Transaction
	for _, txn := range m.txns {
		if !filter.From.IsZero() && txn.Date.Before(filter.From) {
			continue
		}
		if !filter.To.IsZero() && txn.Date.After(filter.To) {
			continue
		}
		if filter.Category != "" && txn.Category != filter.Category {
			continue
		}
		if filter.Account != "" && txn.Account != filter.Account {
			continue
		}
		if filter.Uncategorized && txn.Category != "" && txn.Category != "Miscellaneous" {
			continue
		}
		if filter.NeedsReview && !txn.NeedsReview(filter.ReviewThreshold) {
			continue
		}
		out = append(out, txn)
	}

	sortByDateDesc(out)
	if filter.Limit > 0 && len(out) > filter.Limit {
		out = out[:filter.Limit]
	}
	return out, nil
}

// Update replaces a stored transaction.
func (m *MemoryRepository) Update(_ context.Context, txn model.Transaction) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failNext(); err != nil {
		return err
	}
	if _, ok := m.txns[txn.ID]; !ok {
		return fmt.Errorf("%w: transaction %s", common.ErrNotFound, txn.ID)
	}
	m.txns[txn.ID] = txn
	m.Updates++
	return nil
}

// Delete removes a transaction by ID.
func (m *MemoryRepository) Delete(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failNext(); err != nil {
		return err
	}
	if _, ok := m.txns[id]; !ok {
		return fmt.Errorf("%w: transaction %s", common.ErrNotFound, id)
	}
	delete(m.txns, id)
	m.Deletes++
	return nil
}

// Search finds transactions whose description or notes contain the query.
func (m *MemoryRepository) Search(_ context.Context, query string) ([]model.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []model.Transaction
	for _, txn := range m.txns {
		if containsFold(txn.Description, query) || containsFold(txn.Notes, query) {
			out = append(out, txn)
		}
	}
	sortByDateDesc(out)
	return out, nil
}

// GetByCategory retrieves all transactions in a category.
func (m *MemoryRepository) GetByCategory(ctx context.Context, category string) ([]model.Transaction, error) {
	return m.List(ctx, repository.ListFilter{Category: category})
}

// GetTotalByCategory sums amounts per category within the date range.
func (m *MemoryRepository) GetTotalByCategory(ctx context.Context, from, to time.Time) (map[string]decimal.Decimal, error) {
	txns, err := m.List(ctx, repository.ListFilter{From: from, To: to})
	if err != nil {
		return nil, err
	}
	totals := make(map[string]decimal.Decimal)
	for _, txn := range txns {
		totals[txn.Category] = totals[txn.Category].Add(txn.Amount)
	}
	return totals, nil
}

// Snapshot returns a copy of all stored transactions keyed by ID.
func (m *MemoryRepository) Snapshot() map[uuid.UUID]model.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[uuid.UUID]model.Transaction, len(m.txns))
	for id, txn := range m.txns {
		out[id] = txn
	}
	return out
}

// Len returns the number of stored transactions.
func (m *MemoryRepository) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.txns)
}
