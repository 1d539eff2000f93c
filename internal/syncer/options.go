// Package syncer reconciles transactions between two repositories, typically
// the local SQLite database and Notion.
package syncer

import (
	"fmt"
	"strings"
	"time"
)

// Direction selects which repository is read and which is written.
type Direction string

// Sync directions.
const (
	NotionToSQLite Direction = "notion_to_sqlite"
	SQLiteToNotion Direction = "sqlite_to_notion"
	Bidirectional  Direction = "bidirectional"
)

// ParseDirection converts a CLI string to a Direction.
func ParseDirection(s string) (Direction, error) {
	switch Direction(strings.ToLower(s)) {
	case NotionToSQLite, SQLiteToNotion, Bidirectional:
		return Direction(strings.ToLower(s)), nil
	default:
		return "", fmt.Errorf("unknown sync direction: %q", s)
	}
}

// ConflictResolution decides what happens when the same transaction differs
// between source and target.
type ConflictResolution string

// Conflict resolution strategies.
const (
	SourceWins ConflictResolution = "source_wins"
	TargetWins ConflictResolution = "target_wins"
	NewestWins ConflictResolution = "newest_wins"
	Skip       ConflictResolution = "skip"
)

// ParseConflictResolution converts a CLI string to a ConflictResolution.
func ParseConflictResolution(s string) (ConflictResolution, error) {
	switch ConflictResolution(strings.ToLower(s)) {
	case SourceWins, TargetWins, NewestWins, Skip:
		return ConflictResolution(strings.ToLower(s)), nil
	default:
		return "", fmt.Errorf("unknown conflict resolution strategy: %q", s)
	}
}

// Mode selects full or incremental sync.
type Mode string

// Sync modes.
const (
	Full        Mode = "full"
	Incremental Mode = "incremental"
)

// Options configures one sync run.
type Options struct {
	Direction          Direction
	ConflictResolution ConflictResolution
	Mode               Mode
	// LastSyncTime limits incremental runs to transactions updated at or
	// after this instant. Ignored in full mode.
	LastSyncTime time.Time
	// DryRun counts everything but writes nothing.
	DryRun bool
}

// DefaultOptions returns a full newest-wins sync.
func DefaultOptions(direction Direction) Options {
	return Options{
		Direction:          direction,
		ConflictResolution: NewestWins,
		Mode:               Full,
	}
}

// Result captures the statistics of one sync run.
type Result struct {
	StartedAt         time.Time
	CompletedAt       time.Time
	Direction         Direction
	Created           int
	Updated           int
	Skipped           int
	ConflictsResolved int
	Errors            int
	TotalProcessed    int
	DryRun            bool
}

// Duration is how long the run took.
func (r Result) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.CompletedAt.IsZero() {
		return 0
	}
	return r.CompletedAt.Sub(r.StartedAt)
}

// Summary renders a human-readable report.
func (r Result) Summary() string {
	var b strings.Builder
	if r.DryRun {
		b.WriteString("[DRY RUN] ")
	}
	fmt.Fprintf(&b, "Sync Result (%s):\n", r.Direction)
	fmt.Fprintf(&b, "  Created: %d\n", r.Created)
	fmt.Fprintf(&b, "  Updated: %d\n", r.Updated)
	fmt.Fprintf(&b, "  Skipped: %d\n", r.Skipped)
	fmt.Fprintf(&b, "  Conflicts Resolved: %d\n", r.ConflictsResolved)
	fmt.Fprintf(&b, "  Errors: %d\n", r.Errors)
	fmt.Fprintf(&b, "  Total Processed: %d\n", r.TotalProcessed)
	fmt.Fprintf(&b, "  Duration: %.2fs", r.Duration().Seconds())
	return b.String()
}
