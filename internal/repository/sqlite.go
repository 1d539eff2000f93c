package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/aafontoura/budget-notion/internal/common"
	"github.com/aafontoura/budget-notion/internal/model"
)

// transactionColumns is the column list shared by every SELECT; keep the
// scan order in scanTransaction in step with it.
const transactionColumns = `id, date, description, amount, category, subcategory,
	account, notes, tags, ai_confidence, reviewed,
	reimbursable, expected_reimbursement, actual_reimbursement, reimbursement_status,
	created_at, updated_at`

// SQLiteRepository implements TransactionRepository on a local SQLite file.
type SQLiteRepository struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteRepository opens (creating if needed) the database at dbPath and
// applies pending migrations.
func NewSQLiteRepository(ctx context.Context, dbPath string) (*SQLiteRepository, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("%w: database path cannot be empty", common.ErrInvalidConfig)
	}

	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	repo := &SQLiteRepository{db: db, dbPath: dbPath}
	if err := repo.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return repo, nil
}

// Close closes the database connection.
func (s *SQLiteRepository) Close() error {
	return s.db.Close()
}

// Add inserts a transaction. The ID must be unique.
func (s *SQLiteRepository) Add(ctx context.Context, txn model.Transaction) error {
	if err := txn.Validate(); err != nil {
		return fmt.Errorf("invalid transaction: %w", err)
	}

	tags, err := marshalTags(txn.Tags)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO transactions (
			id, date, description, amount, category, subcategory,
			account, notes, tags, ai_confidence, reviewed,
			reimbursable, expected_reimbursement, actual_reimbursement, reimbursement_status,
			created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		txn.ID.String(), txn.Date.UTC(), txn.Description, txn.Amount.String(),
		txn.Category, txn.Subcategory, txn.Account, txn.Notes, tags,
		txn.AIConfidence, txn.Reviewed,
		txn.Reimbursable, txn.ExpectedReimbursement.String(), txn.ActualReimbursement.String(),
		string(txn.ReimbursementStatus),
		txn.CreatedAt.UTC(), txn.UpdatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check insert result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: transaction %s", common.ErrDuplicate, txn.ID)
	}

	return nil
}

// Get retrieves a transaction by ID.
func (s *SQLiteRepository) Get(ctx context.Context, id uuid.UUID) (model.Transaction, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ?`, id.String())

	txn, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Transaction{}, fmt.Errorf("%w: transaction %s", common.ErrNotFound, id)
	}
	if err != nil {
		return model.Transaction{}, fmt.Errorf("failed to get transaction: %w", err)
	}
	return txn, nil
}

// List retrieves transactions matching the filter, newest first.
func (s *SQLiteRepository) List(ctx context.Context, filter ListFilter) ([]model.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions`
	var conditions []string
	var args []any

	if !filter.From.IsZero() {
		conditions = append(conditions, "date >= ?")
		args = append(args, filter.From.UTC())
	}
	if !filter.To.IsZero() {
		conditions = append(conditions, "date <= ?")
		args = append(args, filter.To.UTC())
	}
	if filter.Category != "" {
		conditions = append(conditions, "category = ?")
		args = append(args, filter.Category)
	}
	if filter.Account != "" {
		conditions = append(conditions, "account = ?")
		args = append(args, filter.Account)
	}
	if filter.Uncategorized {
		conditions = append(conditions, "(category = '' OR category = 'Miscellaneous')")
	}
	if filter.NeedsReview {
		conditions = append(conditions, "reviewed = 0 AND (ai_confidence IS NULL OR ai_confidence < ?)")
		args = append(args, filter.reviewThreshold())
	}

	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY date DESC, id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	return s.queryTransactions(ctx, query, args...)
}

// Update replaces a stored transaction.
func (s *SQLiteRepository) Update(ctx context.Context, txn model.Transaction) error {
	if err := txn.Validate(); err != nil {
		return fmt.Errorf("invalid transaction: %w", err)
	}

	tags, err := marshalTags(txn.Tags)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE transactions SET
			date = ?, description = ?, amount = ?, category = ?, subcategory = ?,
			account = ?, notes = ?, tags = ?, ai_confidence = ?, reviewed = ?,
			reimbursable = ?, expected_reimbursement = ?, actual_reimbursement = ?,
			reimbursement_status = ?, created_at = ?, updated_at = ?
		WHERE id = ?`,
		txn.Date.UTC(), txn.Description, txn.Amount.String(), txn.Category, txn.Subcategory,
		txn.Account, txn.Notes, tags, txn.AIConfidence, txn.Reviewed,
		txn.Reimbursable, txn.ExpectedReimbursement.String(), txn.ActualReimbursement.String(),
		string(txn.ReimbursementStatus), txn.CreatedAt.UTC(), txn.UpdatedAt.UTC(),
		txn.ID.String())
	if err != nil {
		return fmt.Errorf("failed to update transaction: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check update result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: transaction %s", common.ErrNotFound, txn.ID)
	}

	return nil
}

// Delete removes a transaction by ID.
func (s *SQLiteRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ?`, id.String())
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check delete result: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: transaction %s", common.ErrNotFound, id)
	}

	return nil
}

// Search finds transactions whose description or notes contain the query,
// case-insensitively.
func (s *SQLiteRepository) Search(ctx context.Context, query string) ([]model.Transaction, error) {
	pattern := "%" + query + "%"
	return s.queryTransactions(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE description LIKE ? OR notes LIKE ?
		ORDER BY date DESC, id`, pattern, pattern)
}

// GetByCategory retrieves all transactions in a category, newest first.
func (s *SQLiteRepository) GetByCategory(ctx context.Context, category string) ([]model.Transaction, error) {
	return s.queryTransactions(ctx, `
		SELECT `+transactionColumns+` FROM transactions
		WHERE category = ?
		ORDER BY date DESC, id`, category)
}

// GetTotalByCategory sums transaction amounts per category within the date
// range. Sums are computed in Go to keep decimal arithmetic exact.
func (s *SQLiteRepository) GetTotalByCategory(ctx context.Context, from, to time.Time) (map[string]decimal.Decimal, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT category, amount FROM transactions
		WHERE date >= ? AND date <= ?`, from.UTC(), to.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query totals: %w", err)
	}
	defer func() { _ = rows.Close() }()

	totals := make(map[string]decimal.Decimal)
	for rows.Next() {
		var category, amountStr string
		if err := rows.Scan(&category, &amountStr); err != nil {
			return nil, fmt.Errorf("failed to scan total row: %w", err)
		}
		amount, err := decimal.NewFromString(amountStr)
		if err != nil {
			return nil, fmt.Errorf("invalid stored amount %q: %w", amountStr, err)
		}
		totals[category] = totals[category].Add(amount)
	}

	return totals, rows.Err()
}

func (s *SQLiteRepository) queryTransactions(ctx context.Context, query string, args ...any) ([]model.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var txns []model.Transaction
	for rows.Next() {
		txn, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		txns = append(txns, txn)
	}

	return txns, rows.Err()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row scanner) (model.Transaction, error) {
	var (
		txn          model.Transaction
		idStr        string
		amountStr    string
		expectedStr  string
		actualStr    string
		statusStr    string
		tagsJSON     sql.NullString
		aiConfidence sql.NullFloat64
	)

	err := row.Scan(
		&idStr, &txn.Date, &txn.Description, &amountStr, &txn.Category, &txn.Subcategory,
		&txn.Account, &txn.Notes, &tagsJSON, &aiConfidence, &txn.Reviewed,
		&txn.Reimbursable, &expectedStr, &actualStr, &statusStr,
		&txn.CreatedAt, &txn.UpdatedAt)
	if err != nil {
		return model.Transaction{}, err
	}

	txn.ID, err = uuid.Parse(idStr)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("invalid stored ID %q: %w", idStr, err)
	}
	txn.Amount, err = decimal.NewFromString(amountStr)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("invalid stored amount %q: %w", amountStr, err)
	}
	txn.ExpectedReimbursement, err = decimal.NewFromString(expectedStr)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("invalid stored expected reimbursement %q: %w", expectedStr, err)
	}
	txn.ActualReimbursement, err = decimal.NewFromString(actualStr)
	if err != nil {
		return model.Transaction{}, fmt.Errorf("invalid stored actual reimbursement %q: %w", actualStr, err)
	}
	txn.ReimbursementStatus = model.ReimbursementStatus(statusStr)

	if tagsJSON.Valid && tagsJSON.String != "" {
		if err := json.Unmarshal([]byte(tagsJSON.String), &txn.Tags); err != nil {
			return model.Transaction{}, fmt.Errorf("invalid stored tags %q: %w", tagsJSON.String, err)
		}
	}
	if aiConfidence.Valid {
		txn.AIConfidence = &aiConfidence.Float64
	}

	return txn, nil
}

func marshalTags(tags []string) (sql.NullString, error) {
	if len(tags) == 0 {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(tags)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to marshal tags: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}
