package repository_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aafontoura/budget-notion/internal/common"
	"github.com/aafontoura/budget-notion/internal/model"
	"github.com/aafontoura/budget-notion/internal/repository"
	"github.com/aafontoura/budget-notion/internal/testutil"
)

func TestSQLiteAddAndGet(t *testing.T) {
	repo := testutil.SetupTestDB(t)
	ctx := context.Background()

	txn := testutil.MakeTransaction(t, "Albert Heijn", "-42.50")
	txn.Subcategory = "Groceries"
	txn.Account = "Checking"
	txn.Tags = []string{"food", "weekly"}
	confidence := 0.92
	txn.AIConfidence = &confidence

	require.NoError(t, repo.Add(ctx, txn))

	got, err := repo.Get(ctx, txn.ID)
	require.NoError(t, err)

	assert.Equal(t, txn.ID, got.ID)
	assert.Equal(t, "Albert Heijn", got.Description)
	assert.True(t, got.Amount.Equal(decimal.RequireFromString("-42.50")), "amount %s", got.Amount)
	assert.Equal(t, "Groceries", got.Subcategory)
	assert.Equal(t, "Checking", got.Account)
	assert.Equal(t, []string{"food", "weekly"}, got.Tags)
	require.NotNil(t, got.AIConfidence)
	assert.InDelta(t, 0.92, *got.AIConfidence, 0.001)
	assert.Equal(t, model.ReimbursementNone, got.ReimbursementStatus)
	assert.True(t, got.UpdatedAt.Equal(txn.UpdatedAt), "updated_at %s != %s", got.UpdatedAt, txn.UpdatedAt)
}

func TestSQLiteAddDuplicate(t *testing.T) {
	repo := testutil.SetupTestDB(t)
	ctx := context.Background()

	txn := testutil.MakeTransaction(t, "Jumbo", "-10.00")
	require.NoError(t, repo.Add(ctx, txn))

	err := repo.Add(ctx, txn)
	assert.ErrorIs(t, err, common.ErrDuplicate)
}

func TestSQLiteGetNotFound(t *testing.T) {
	repo := testutil.SetupTestDB(t)

	_, err := repo.Get(context.Background(), uuid.New())
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSQLiteUpdate(t *testing.T) {
	repo := testutil.SetupTestDB(t)
	ctx := context.Background()

	txn := testutil.MakeTransaction(t, "Shell", "-65.00")
	require.NoError(t, repo.Add(ctx, txn))

	confidence := 0.88
	updated := txn.WithCategory("TRANSPORTATION", "Fuel", &confidence)
	require.NoError(t, repo.Update(ctx, updated))

	got, err := repo.Get(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, "TRANSPORTATION", got.Category)
	assert.Equal(t, "Fuel", got.Subcategory)
	assert.True(t, got.UpdatedAt.After(txn.UpdatedAt))
}

func TestSQLiteUpdateNotFound(t *testing.T) {
	repo := testutil.SetupTestDB(t)

	txn := testutil.MakeTransaction(t, "Ghost", "-5.00")
	err := repo.Update(context.Background(), txn)
	assert.ErrorIs(t, err, common.ErrNotFound)
}

func TestSQLiteDelete(t *testing.T) {
	repo := testutil.SetupTestDB(t)
	ctx := context.Background()

	txn := testutil.MakeTransaction(t, "Refund me", "12.00")
	require.NoError(t, repo.Add(ctx, txn))
	require.NoError(t, repo.Delete(ctx, txn.ID))

	_, err := repo.Get(ctx, txn.ID)
	assert.ErrorIs(t, err, common.ErrNotFound)

	assert.ErrorIs(t, repo.Delete(ctx, txn.ID), common.ErrNotFound)
}

func TestSQLiteList(t *testing.T) {
	repo := testutil.SetupTestDB(t)
	ctx := context.Background()

	groceries := testutil.MakeTransaction(t, "Albert Heijn", "-20.00")
	groceries.Category = "FOOD & GROCERIES"
	groceries.Date = time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC)

	fuel := testutil.MakeTransaction(t, "Shell", "-60.00")
	fuel.Category = "TRANSPORTATION"
	fuel.Account = "Credit Card"
	fuel.Date = time.Date(2026, 1, 20, 0, 0, 0, 0, time.UTC)

	salary := testutil.MakeTransaction(t, "Salary", "3000.00")
	salary.Category = "INCOME"
	salary.Date = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)

	for _, txn := range []model.Transaction{groceries, fuel, salary} {
		require.NoError(t, repo.Add(ctx, txn))
	}

	tests := []struct {
		name   string
		filter repository.ListFilter
		want   []string
	}{
		{
			name:   "no filter returns all newest first",
			filter: repository.ListFilter{},
			want:   []string{"Salary", "Shell", "Albert Heijn"},
		},
		{
			name:   "date range",
			filter: repository.ListFilter{
				From: time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC),
				To:   time.Date(2026, 1, 31, 0, 0, 0, 0, time.UTC),
			},
			want: []string{"Shell"},
		},
		{
			name:   "category filter",
			filter: repository.ListFilter{Category: "INCOME"},
			want:   []string{"Salary"},
		},
		{
			name:   "account filter",
			filter: repository.ListFilter{Account: "Credit Card"},
			want:   []string{"Shell"},
		},
		{
			name:   "limit",
			filter: repository.ListFilter{Limit: 2},
			want:   []string{"Salary", "Shell"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := repo.List(ctx, tt.filter)
			require.NoError(t, err)

			var descriptions []string
			for _, txn := range got {
				descriptions = append(descriptions, txn.Description)
			}
			assert.Equal(t, tt.want, descriptions)
		})
	}
}

func TestSQLiteListNeedsReview(t *testing.T) {
	repo := testutil.SetupTestDB(t)
	ctx := context.Background()

	low := testutil.MakeTransaction(t, "Unclear merchant", "-5.00")
	lowConfidence := 0.4
	low.AIConfidence = &lowConfidence

	high := testutil.MakeTransaction(t, "Spotify", "-9.99")
	highConfidence := 0.95
	high.AIConfidence = &highConfidence

	reviewed := testutil.MakeTransaction(t, "Reviewed already", "-3.00")
	reviewed.Reviewed = true

	noConfidence := testutil.MakeTransaction(t, "Never categorized", "-7.00")

	for _, txn := range []model.Transaction{low, high, reviewed, noConfidence} {
		require.NoError(t, repo.Add(ctx, txn))
	}

	got, err := repo.List(ctx, repository.ListFilter{NeedsReview: true})
	require.NoError(t, err)

	descriptions := make(map[string]bool)
	for _, txn := range got {
		descriptions[txn.Description] = true
	}
	assert.Len(t, got, 2)
	assert.True(t, descriptions["Unclear merchant"])
	assert.True(t, descriptions["Never categorized"])

	// Raising the threshold pulls in the 0.95-confidence transaction too.
	got, err = repo.List(ctx, repository.ListFilter{NeedsReview: true, ReviewThreshold: 0.99})
	require.NoError(t, err)
	assert.Len(t, got, 3)

	// Lowering it below the 0.4-confidence one leaves only the unscored.
	got, err = repo.List(ctx, repository.ListFilter{NeedsReview: true, ReviewThreshold: 0.3})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "Never categorized", got[0].Description)
}

func TestSQLiteSearch(t *testing.T) {
	repo := testutil.SetupTestDB(t)
	ctx := context.Background()

	coffee := testutil.MakeTransaction(t, "Coffee Company Amsterdam", "-4.50")
	noted := testutil.MakeTransaction(t, "ATM withdrawal", "-50.00")
	noted.Notes = "cash for coffee machine"
	other := testutil.MakeTransaction(t, "Jumbo", "-20.00")

	for _, txn := range []model.Transaction{coffee, noted, other} {
		require.NoError(t, repo.Add(ctx, txn))
	}

	got, err := repo.Search(ctx, "coffee")
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestSQLiteGetTotalByCategory(t *testing.T) {
	repo := testutil.SetupTestDB(t)
	ctx := context.Background()

	first := testutil.MakeTransaction(t, "Albert Heijn", "-20.10")
	first.Category = "FOOD & GROCERIES"
	second := testutil.MakeTransaction(t, "Jumbo", "-9.90")
	second.Category = "FOOD & GROCERIES"
	fuel := testutil.MakeTransaction(t, "Shell", "-60.00")
	fuel.Category = "TRANSPORTATION"

	for _, txn := range []model.Transaction{first, second, fuel} {
		require.NoError(t, repo.Add(ctx, txn))
	}

	totals, err := repo.GetTotalByCategory(ctx,
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 12, 31, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)

	assert.True(t, totals["FOOD & GROCERIES"].Equal(decimal.RequireFromString("-30.00")),
		"food total %s", totals["FOOD & GROCERIES"])
	assert.True(t, totals["TRANSPORTATION"].Equal(decimal.RequireFromString("-60.00")),
		"fuel total %s", totals["TRANSPORTATION"])
}

func TestSQLiteAmountPrecisionRoundTrip(t *testing.T) {
	repo := testutil.SetupTestDB(t)
	ctx := context.Background()

	// Amounts that lose precision as float64 must survive storage exactly.
	txn := testutil.MakeTransaction(t, "Precision check", "-0.10")
	txn.Amount = decimal.RequireFromString("1234567.89")
	require.NoError(t, repo.Add(ctx, txn))

	got, err := repo.Get(ctx, txn.ID)
	require.NoError(t, err)
	assert.Equal(t, "1234567.89", got.Amount.String())
}
