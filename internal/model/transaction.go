// Package model defines the core domain models used throughout the application.
package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ReimbursementStatus tracks repayment of shared expenses.
type ReimbursementStatus string

// Reimbursement status constants.
const (
	ReimbursementNone     ReimbursementStatus = "none"
	ReimbursementPending  ReimbursementStatus = "pending"
	ReimbursementPartial  ReimbursementStatus = "partial"
	ReimbursementComplete ReimbursementStatus = "complete"
)

// DefaultReviewThreshold is the AI confidence below which a transaction
// needs manual review.
const DefaultReviewThreshold = 0.7

// Transaction represents a single financial transaction. The ID is assigned
// at creation and preserved across repositories; it is the join key for sync.
// Instances are treated as immutable: mutations go through the With* methods,
// which return a copy with UpdatedAt bumped.
type Transaction struct {
	Date                   time.Time
	CreatedAt              time.Time
	UpdatedAt              time.Time
	ID                     uuid.UUID
	Description            string
	Category               string
	Subcategory            string
	Account                string
	Notes                  string
	Tags                   []string
	Amount                 decimal.Decimal
	ExpectedReimbursement  decimal.Decimal
	ActualReimbursement    decimal.Decimal
	ReimbursementStatus    ReimbursementStatus
	AIConfidence           *float64
	Reviewed               bool
	Reimbursable           bool
}

// NewTransaction creates a validated transaction with a fresh ID and
// timestamps. Tags are normalized to lowercase; the reimbursement status is
// derived from the reimbursement amounts.
func NewTransaction(date time.Time, description string, amount decimal.Decimal, category string) (Transaction, error) {
	now := time.Now()
	txn := Transaction{
		ID:                    uuid.New(),
		Date:                  date,
		Description:           description,
		Amount:                amount,
		Category:              category,
		ExpectedReimbursement: decimal.Zero,
		ActualReimbursement:   decimal.Zero,
		ReimbursementStatus:   ReimbursementNone,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := txn.Validate(); err != nil {
		return Transaction{}, err
	}
	return txn.normalized(), nil
}

// Validate checks the transaction's field invariants.
func (t Transaction) Validate() error {
	if strings.TrimSpace(t.Description) == "" {
		return fmt.Errorf("transaction description cannot be empty")
	}
	if strings.TrimSpace(t.Category) == "" {
		return fmt.Errorf("transaction category cannot be empty")
	}
	if t.AIConfidence != nil && (*t.AIConfidence < 0.0 || *t.AIConfidence > 1.0) {
		return fmt.Errorf("ai confidence must be between 0.0 and 1.0, got %v", *t.AIConfidence)
	}
	if t.ExpectedReimbursement.IsNegative() {
		return fmt.Errorf("expected reimbursement cannot be negative")
	}
	if t.ActualReimbursement.IsNegative() {
		return fmt.Errorf("actual reimbursement cannot be negative")
	}
	if t.ActualReimbursement.GreaterThan(t.Amount.Abs()) {
		return fmt.Errorf("actual reimbursement cannot exceed transaction amount")
	}
	return nil
}

// normalized returns a copy with lowercase deduplicated tags and the derived
// reimbursement status.
func (t Transaction) normalized() Transaction {
	t.Tags = NormalizeTags(t.Tags)
	t.ReimbursementStatus = DeriveReimbursementStatus(t.Reimbursable, t.ExpectedReimbursement, t.ActualReimbursement)
	return t
}

// NormalizeTags lowercases and trims tags, dropping empties and duplicates
// while preserving first-seen order.
func NormalizeTags(tags []string) []string {
	if len(tags) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, tag := range tags {
		tag = strings.ToLower(strings.TrimSpace(tag))
		if tag == "" {
			continue
		}
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out = append(out, tag)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// DeriveReimbursementStatus computes the status implied by the reimbursement
// amounts: not reimbursable means none; nothing received yet means pending;
// received at least the expected amount (when one is set) means complete;
// anything in between means partial.
func DeriveReimbursementStatus(reimbursable bool, expected, actual decimal.Decimal) ReimbursementStatus {
	switch {
	case !reimbursable:
		return ReimbursementNone
	case actual.IsZero():
		return ReimbursementPending
	case expected.IsPositive() && actual.GreaterThanOrEqual(expected):
		return ReimbursementComplete
	default:
		return ReimbursementPartial
	}
}

// copyWith returns a modified copy with UpdatedAt bumped. CreatedAt and ID
// are never changed.
func (t Transaction) copyWith(mutate func(*Transaction)) Transaction {
	c := t
	c.Tags = append([]string(nil), t.Tags...)
	mutate(&c)
	c.UpdatedAt = time.Now()
	return c.normalized()
}

// WithCategory returns a copy with category, subcategory and AI confidence
// replaced.
func (t Transaction) WithCategory(category, subcategory string, confidence *float64) Transaction {
	return t.copyWith(func(c *Transaction) {
		c.Category = category
		c.Subcategory = subcategory
		c.AIConfidence = confidence
	})
}

// WithReviewed returns a copy marked as reviewed (or not).
func (t Transaction) WithReviewed(reviewed bool) Transaction {
	return t.copyWith(func(c *Transaction) {
		c.Reviewed = reviewed
	})
}

// WithNotes returns a copy with notes replaced.
func (t Transaction) WithNotes(notes string) Transaction {
	return t.copyWith(func(c *Transaction) {
		c.Notes = notes
	})
}

// WithTag returns a copy with the tag added. Adding an existing tag returns
// the receiver unchanged.
func (t Transaction) WithTag(tag string) Transaction {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if tag == "" || t.HasTag(tag) {
		return t
	}
	return t.copyWith(func(c *Transaction) {
		c.Tags = append(c.Tags, tag)
	})
}

// WithoutTag returns a copy with the tag removed. Removing an absent tag
// returns the receiver unchanged.
func (t Transaction) WithoutTag(tag string) Transaction {
	tag = strings.ToLower(strings.TrimSpace(tag))
	if !t.HasTag(tag) {
		return t
	}
	return t.copyWith(func(c *Transaction) {
		kept := make([]string, 0, len(c.Tags))
		for _, existing := range c.Tags {
			if existing != tag {
				kept = append(kept, existing)
			}
		}
		c.Tags = kept
	})
}

// WithReimbursement returns a copy with the reimbursement state replaced and
// the status re-derived.
func (t Transaction) WithReimbursement(reimbursable bool, expected, actual decimal.Decimal) (Transaction, error) {
	if actual.IsNegative() {
		return Transaction{}, fmt.Errorf("reimbursement amount cannot be negative")
	}
	if actual.GreaterThan(t.Amount.Abs()) {
		return Transaction{}, fmt.Errorf("reimbursement cannot exceed transaction amount")
	}
	return t.copyWith(func(c *Transaction) {
		c.Reimbursable = reimbursable
		c.ExpectedReimbursement = expected
		c.ActualReimbursement = actual
	}), nil
}

// HasTag reports whether the transaction carries the tag (case-insensitive).
func (t Transaction) HasTag(tag string) bool {
	tag = strings.ToLower(strings.TrimSpace(tag))
	for _, existing := range t.Tags {
		if existing == tag {
			return true
		}
	}
	return false
}

// IsExpense reports whether the amount is negative.
func (t Transaction) IsExpense() bool {
	return t.Amount.IsNegative()
}

// IsIncome reports whether the amount is positive.
func (t Transaction) IsIncome() bool {
	return t.Amount.IsPositive()
}

// NeedsReview reports whether the transaction should be surfaced for manual
// review: not yet reviewed and AI confidence absent or below the threshold.
func (t Transaction) NeedsReview(threshold float64) bool {
	if threshold <= 0 {
		threshold = DefaultReviewThreshold
	}
	if t.Reviewed {
		return false
	}
	return t.AIConfidence == nil || *t.AIConfidence < threshold
}

// NetAmount is the amount after actual reimbursements.
func (t Transaction) NetAmount() decimal.Decimal {
	if t.Amount.IsNegative() {
		return t.Amount.Add(t.ActualReimbursement)
	}
	return t.Amount.Sub(t.ActualReimbursement)
}

// PendingReimbursement is the outstanding reimbursement amount, never
// negative.
func (t Transaction) PendingReimbursement() decimal.Decimal {
	if !t.Reimbursable {
		return decimal.Zero
	}
	pending := t.ExpectedReimbursement.Sub(t.ActualReimbursement)
	if pending.IsNegative() {
		return decimal.Zero
	}
	return pending
}

// TagsEqual compares two tag slices as sets.
func TagsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	set := make(map[string]struct{}, len(a))
	for _, tag := range a {
		set[tag] = struct{}{}
	}
	for _, tag := range b {
		if _, ok := set[tag]; !ok {
			return false
		}
	}
	return true
}

func (t Transaction) String() string {
	return fmt.Sprintf("%s | %.30s | %s | %s | %s",
		t.Date.Format("2006-01-02"),
		t.Description,
		t.Amount.StringFixed(2),
		t.Category,
		t.Subcategory)
}
