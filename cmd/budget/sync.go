package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/aafontoura/budget-notion/internal/syncer"
)

func syncCmd() *cobra.Command {
	var (
		direction   string
		conflict    string
		dryRun      bool
		incremental bool
		since       string
	)

	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Synchronize transactions between Notion and the local database",
		Long: `Synchronize transactions between the Notion database and the local SQLite store.

Direction controls which side is the source of truth:
  notion_to_sqlite  pull transactions from Notion into the local database
  sqlite_to_notion  push local transactions up to Notion
  bidirectional     pull then push, so both sides converge

Conflicts between transactions that exist on both sides are resolved
according to --conflict: source_wins, target_wins, newest_wins, or skip.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			dir, err := syncer.ParseDirection(direction)
			if err != nil {
				return err
			}
			resolution, err := syncer.ParseConflictResolution(conflict)
			if err != nil {
				return err
			}

			opts := syncer.DefaultOptions(dir)
			opts.ConflictResolution = resolution
			opts.DryRun = dryRun
			if incremental || since != "" {
				opts.Mode = syncer.Incremental
				cutoff, err := resolveSyncCutoff(since)
				if err != nil {
					return err
				}
				opts.LastSyncTime = cutoff
			}

			ctx := cmd.Context()
			engine, cleanup, err := buildSyncEngine(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			result, err := engine.Sync(ctx, opts)
			if err != nil {
				return fmt.Errorf("sync failed: %w", err)
			}

			cmd.Println(result.Summary())
			return nil
		},
	}

	cmd.Flags().StringVar(&direction, "direction", string(syncer.Bidirectional), "sync direction (notion_to_sqlite, sqlite_to_notion, bidirectional)")
	cmd.Flags().StringVar(&conflict, "conflict", string(syncer.NewestWins), "conflict resolution strategy (source_wins, target_wins, newest_wins, skip)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report what would change without writing anything")
	cmd.Flags().BoolVar(&incremental, "incremental", false, "only sync transactions modified since the last sync")
	cmd.Flags().StringVar(&since, "since", "", "only sync transactions modified on or after this time (RFC3339 or YYYY-MM-DD)")

	cmd.AddCommand(syncStatusCmd())

	return cmd
}

func syncStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show how far Notion and the local database have drifted apart",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			engine, cleanup, err := buildSyncEngine(ctx, cfg)
			if err != nil {
				return err
			}
			defer cleanup()

			status, err := engine.Status(ctx)
			if err != nil {
				return fmt.Errorf("failed to compute sync status: %w", err)
			}

			cmd.Println(status.Summary())
			return nil
		},
	}
}

// resolveSyncCutoff turns the --since flag into a cutoff time. Without an
// explicit value we fall back to the start of the current day, which keeps
// repeated incremental runs cheap without tracking sync state on disk.
func resolveSyncCutoff(since string) (time.Time, error) {
	if since == "" {
		now := time.Now()
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location()), nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, since); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid --since value %q: expected RFC3339 or YYYY-MM-DD", since)
}
