package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aafontoura/budget-notion/internal/categorize"
	"github.com/aafontoura/budget-notion/internal/model"
	"github.com/aafontoura/budget-notion/internal/repository"
	"github.com/aafontoura/budget-notion/internal/taxonomy"
)

func categorizeCmd() *cobra.Command {
	var (
		all       bool
		batchSize int
		dryRun    bool
	)

	cmd := &cobra.Command{
		Use:   "categorize",
		Short: "Categorize stored transactions with the configured LLM",
		Long: `Run the LLM categorization pipeline over transactions in the local
database. By default only uncategorized transactions are processed; pass
--all to also re-examine low-confidence ones that still need review.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if batchSize > 0 {
				cfg.BatchSize = batchSize
			}

			ctx := cmd.Context()
			repo, err := openSQLite(ctx, cfg)
			if err != nil {
				return err
			}
			defer repo.Close()

			filter := repository.ListFilter{Uncategorized: true}
			if all {
				filter = repository.ListFilter{
					NeedsReview:     true,
					ReviewThreshold: cfg.ConfidenceThreshold,
				}
			}
			transactions, err := repo.List(ctx, filter)
			if err != nil {
				return fmt.Errorf("failed to list transactions: %w", err)
			}
			if len(transactions) == 0 {
				cmd.Println("Nothing to categorize")
				return nil
			}

			bar := newProgressBar(cmd.OutOrStdout(), len(transactions), "Categorizing transactions...")
			service, err := buildCategorizer(cfg, categorize.WithProgress(progressFunc(bar)))
			if err != nil {
				return err
			}

			requests := make([]model.CategorizationRequest, len(transactions))
			byID := make(map[string]model.Transaction, len(transactions))
			for i, txn := range transactions {
				requests[i] = model.CategorizationRequest{
					ID:          txn.ID.String(),
					Description: txn.Description,
					Amount:      txn.Amount.String(),
					Date:        txn.Date.Format("2006-01-02"),
				}
				byID[txn.ID.String()] = txn
			}

			results, err := service.CategorizeBatch(ctx, requests)
			if err != nil {
				return fmt.Errorf("categorization failed: %w", err)
			}
			_ = bar.Finish()

			updated, failed := 0, 0
			for id, result := range results {
				txn, ok := byID[id]
				if !ok {
					continue
				}
				if result.ErrorType != "" {
					failed++
					continue
				}
				if dryRun {
					updated++
					cmd.Printf("%s -> %s / %s (%.0f%%)\n", txn.Description, result.Category, result.Subcategory, result.Confidence*100)
					continue
				}
				confidence := result.Confidence
				next := txn.WithCategory(result.Category, result.Subcategory, &confidence)
				for _, tag := range taxonomy.TagsFor(result.Category, result.Subcategory) {
					next = next.WithTag(tag)
				}
				if err := repo.Update(ctx, next); err != nil {
					return fmt.Errorf("failed to update transaction %s: %w", id, err)
				}
				updated++
			}

			if dryRun {
				cmd.Printf("[DRY RUN] Would categorize %d transactions (%d failed)\n", updated, failed)
				return nil
			}
			cmd.Printf("Categorized %d transactions (%d failed)\n", updated, failed)
			return nil
		},
	}

	cmd.Flags().BoolVar(&all, "all", false, "also recategorize low-confidence transactions that need review")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "transactions per LLM call (defaults to the configured batch size)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show proposed categories without writing them")

	cmd.AddCommand(categorizeOneCmd(), categorizeTestCmd())

	return cmd
}

func categorizeOneCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "one <description> [amount]",
		Short: "Categorize a single description using the two-step prompt path",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			service, err := buildCategorizer(cfg)
			if err != nil {
				return err
			}

			req := model.CategorizationRequest{
				ID:          "adhoc",
				Description: args[0],
			}
			if len(args) > 1 {
				req.Amount = args[1]
			}

			result, err := service.CategorizeSingle(cmd.Context(), req)
			if err != nil {
				return fmt.Errorf("categorization failed: %w", err)
			}

			cmd.Printf("%s / %s (%.0f%% confident)\n",
				result.Category, result.Subcategory, result.Confidence*100)
			return nil
		},
	}
}

func categorizeTestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test",
		Short: "Check that the configured LLM endpoint is reachable",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			service, err := buildCategorizer(cfg)
			if err != nil {
				return err
			}

			if !service.TestConnection(cmd.Context()) {
				return fmt.Errorf("LLM endpoint is not reachable (provider %s)", cfg.LLM.Provider)
			}
			cmd.Printf("LLM endpoint is reachable (provider %s, model %s)\n", cfg.LLM.Provider, cfg.LLM.Model)
			return nil
		},
	}
}
