package syncer

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/aafontoura/budget-notion/internal/model"
	"github.com/aafontoura/budget-notion/internal/repository"
)

// SyncStatus describes how far apart the two repositories are. It is a pure
// read; computing it never mutates either side.
type SyncStatus struct {
	NotionCount  int
	SQLiteCount  int
	OnlyInNotion int
	OnlyInSQLite int
	OutOfSync    int
	InSync       bool
}

// Summary renders a human-readable report.
func (s SyncStatus) Summary() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Notion transactions: %d\n", s.NotionCount)
	fmt.Fprintf(&b, "SQLite transactions: %d\n", s.SQLiteCount)
	fmt.Fprintf(&b, "Only in Notion: %d\n", s.OnlyInNotion)
	fmt.Fprintf(&b, "Only in SQLite: %d\n", s.OnlyInSQLite)
	fmt.Fprintf(&b, "Out of sync: %d\n", s.OutOfSync)
	if s.InSync {
		b.WriteString("Repositories are in sync")
	} else {
		b.WriteString("Repositories are NOT in sync")
	}
	return b.String()
}

// Status compares the two repositories without modifying them.
func (e *Engine) Status(ctx context.Context) (SyncStatus, error) {
	notionTxns, err := e.notion.List(ctx, repository.ListFilter{})
	if err != nil {
		return SyncStatus{}, fmt.Errorf("failed to list notion transactions: %w", err)
	}
	sqliteTxns, err := e.sqlite.List(ctx, repository.ListFilter{})
	if err != nil {
		return SyncStatus{}, fmt.Errorf("failed to list sqlite transactions: %w", err)
	}

	notionMap := make(map[uuid.UUID]model.Transaction, len(notionTxns))
	for _, txn := range notionTxns {
		notionMap[txn.ID] = txn
	}
	sqliteMap := make(map[uuid.UUID]model.Transaction, len(sqliteTxns))
	for _, txn := range sqliteTxns {
		sqliteMap[txn.ID] = txn
	}

	status := SyncStatus{
		NotionCount: len(notionTxns),
		SQLiteCount: len(sqliteTxns),
	}

	for id, notionTxn := range notionMap {
		sqliteTxn, ok := sqliteMap[id]
		if !ok {
			status.OnlyInNotion++
			continue
		}
		if needsUpdate(notionTxn, sqliteTxn) {
			status.OutOfSync++
		}
	}
	for id := range sqliteMap {
		if _, ok := notionMap[id]; !ok {
			status.OnlyInSQLite++
		}
	}

	status.InSync = status.NotionCount == status.SQLiteCount &&
		status.OnlyInNotion == 0 &&
		status.OnlyInSQLite == 0 &&
		status.OutOfSync == 0

	return status, nil
}
