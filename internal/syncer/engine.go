package syncer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aafontoura/budget-notion/internal/model"
	"github.com/aafontoura/budget-notion/internal/repository"
)

// Engine synchronizes transactions between the Notion and SQLite
// repositories. Transactions are joined by UUID; per-transaction failures
// are counted, logged and do not abort the run.
type Engine struct {
	notion repository.TransactionRepository
	sqlite repository.TransactionRepository
}

// New creates a sync engine over the two repositories.
func New(notion, sqlite repository.TransactionRepository) *Engine {
	return &Engine{notion: notion, sqlite: sqlite}
}

// Sync runs one synchronization according to the options. Bidirectional runs
// are two independent passes, Notion to SQLite first, with summed counters;
// a transaction updated by the first pass will not be re-examined against
// fresh state by the second.
func (e *Engine) Sync(ctx context.Context, opts Options) (Result, error) {
	slog.Info("starting sync",
		"direction", opts.Direction,
		"mode", opts.Mode,
		"conflict_resolution", opts.ConflictResolution,
		"dry_run", opts.DryRun)

	result := Result{
		Direction: opts.Direction,
		DryRun:    opts.DryRun,
		StartedAt: time.Now(),
	}

	var err error
	switch opts.Direction {
	case NotionToSQLite:
		err = e.syncOneWay(ctx, e.notion, e.sqlite, opts, &result)
	case SQLiteToNotion:
		err = e.syncOneWay(ctx, e.sqlite, e.notion, opts, &result)
	case Bidirectional:
		slog.Info("bidirectional sync: notion to sqlite pass")
		if err = e.syncOneWay(ctx, e.notion, e.sqlite, opts, &result); err == nil {
			slog.Info("bidirectional sync: sqlite to notion pass")
			err = e.syncOneWay(ctx, e.sqlite, e.notion, opts, &result)
		}
	default:
		err = fmt.Errorf("unknown sync direction: %q", opts.Direction)
	}

	result.CompletedAt = time.Now()
	if err != nil {
		return result, fmt.Errorf("sync failed: %w", err)
	}

	slog.Info("sync completed",
		"created", result.Created,
		"updated", result.Updated,
		"skipped", result.Skipped,
		"conflicts_resolved", result.ConflictsResolved,
		"errors", result.Errors,
		"duration", result.Duration())
	return result, nil
}

// syncOneWay pushes source transactions into target, accumulating counters
// into result.
func (e *Engine) syncOneWay(ctx context.Context, source, target repository.TransactionRepository, opts Options, result *Result) error {
	sourceTxns, err := source.List(ctx, repository.ListFilter{})
	if err != nil {
		return fmt.Errorf("failed to list source transactions: %w", err)
	}

	if opts.Mode == Incremental && !opts.LastSyncTime.IsZero() {
		slog.Info("incremental sync", "since", opts.LastSyncTime)
		filtered := sourceTxns[:0]
		for _, txn := range sourceTxns {
			if !txn.UpdatedAt.Before(opts.LastSyncTime) {
				filtered = append(filtered, txn)
			}
		}
		sourceTxns = filtered
	}

	targetTxns, err := target.List(ctx, repository.ListFilter{})
	if err != nil {
		return fmt.Errorf("failed to list target transactions: %w", err)
	}

	targetMap := make(map[uuid.UUID]model.Transaction, len(targetTxns))
	for _, txn := range targetTxns {
		targetMap[txn.ID] = txn
	}

	slog.Info("sync pass",
		"source_count", len(sourceTxns),
		"target_count", len(targetTxns))

	for _, sourceTxn := range sourceTxns {
		if err := ctx.Err(); err != nil {
			return err
		}
		result.TotalProcessed++

		targetTxn, exists := targetMap[sourceTxn.ID]
		if !exists {
			if !opts.DryRun {
				if err := target.Add(ctx, sourceTxn); err != nil {
					slog.Error("failed to create transaction in target",
						"id", sourceTxn.ID, "error", err)
					result.Errors++
					continue
				}
			}
			result.Created++
			slog.Debug("created transaction in target", "id", sourceTxn.ID)
			continue
		}

		if !needsUpdate(sourceTxn, targetTxn) {
			continue
		}

		if !shouldOverwrite(sourceTxn, targetTxn, opts.ConflictResolution) {
			result.Skipped++
			slog.Debug("skipped transaction",
				"id", sourceTxn.ID, "strategy", opts.ConflictResolution)
			continue
		}

		if !opts.DryRun {
			if err := target.Update(ctx, sourceTxn); err != nil {
				slog.Error("failed to update transaction in target",
					"id", sourceTxn.ID, "error", err)
				result.Errors++
				continue
			}
		}
		result.Updated++
		result.ConflictsResolved++
		slog.Debug("updated transaction in target",
			"id", sourceTxn.ID, "strategy", opts.ConflictResolution)
	}

	return nil
}

// needsUpdate reports whether two copies of the same transaction differ.
// UpdatedAt is checked first; the field comparison backstops backends that
// don't preserve timestamps faithfully.
func needsUpdate(source, target model.Transaction) bool {
	if !source.UpdatedAt.Equal(target.UpdatedAt) {
		return true
	}

	return !source.Date.Equal(target.Date) ||
		source.Description != target.Description ||
		!source.Amount.Equal(target.Amount) ||
		source.Category != target.Category ||
		source.Subcategory != target.Subcategory ||
		source.Account != target.Account ||
		source.Notes != target.Notes ||
		source.Reviewed != target.Reviewed ||
		!confidenceEqual(source.AIConfidence, target.AIConfidence) ||
		!model.TagsEqual(source.Tags, target.Tags) ||
		source.Reimbursable != target.Reimbursable ||
		!source.ExpectedReimbursement.Equal(target.ExpectedReimbursement) ||
		!source.ActualReimbursement.Equal(target.ActualReimbursement) ||
		source.ReimbursementStatus != target.ReimbursementStatus
}

// shouldOverwrite applies the conflict strategy. Newest-wins is a strict
// comparison: when timestamps tie, the target is kept.
func shouldOverwrite(source, target model.Transaction, strategy ConflictResolution) bool {
	switch strategy {
	case SourceWins:
		return true
	case TargetWins, Skip:
		return false
	case NewestWins:
		return source.UpdatedAt.After(target.UpdatedAt)
	default:
		slog.Warn("unknown conflict resolution strategy", "strategy", strategy)
		return false
	}
}

func confidenceEqual(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
