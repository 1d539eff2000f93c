package main

import (
	"fmt"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/aafontoura/budget-notion/internal/model"
	"github.com/aafontoura/budget-notion/internal/repository"
)

func transactionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "transactions",
		Aliases: []string{"txn"},
		Short:   "Add, list, and review transactions in the local database",
	}

	cmd.AddCommand(
		transactionsAddCmd(),
		transactionsListCmd(),
		transactionsSearchCmd(),
		transactionsReviewCmd(),
		transactionsTotalsCmd(),
	)

	return cmd
}

func transactionsAddCmd() *cobra.Command {
	var (
		date        string
		category    string
		subcategory string
		account     string
		notes       string
		tags        []string
	)

	cmd := &cobra.Command{
		Use:   "add <description> <amount>",
		Short: "Add a transaction manually",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			amount, err := decimal.NewFromString(args[1])
			if err != nil {
				return fmt.Errorf("invalid amount %q: %w", args[1], err)
			}

			when := time.Now()
			if date != "" {
				when, err = time.Parse("2006-01-02", date)
				if err != nil {
					return fmt.Errorf("invalid --date %q: expected YYYY-MM-DD", date)
				}
			}

			txn, err := model.NewTransaction(when, args[0], amount, category)
			if err != nil {
				return err
			}
			txn.Subcategory = subcategory
			txn.Account = account
			txn.Notes = notes
			txn.Tags = model.NormalizeTags(tags)
			txn.Reviewed = true

			ctx := cmd.Context()
			repo, err := openSQLite(ctx, cfg)
			if err != nil {
				return err
			}
			defer repo.Close()

			if err := repo.Add(ctx, txn); err != nil {
				return fmt.Errorf("failed to store transaction: %w", err)
			}

			cmd.Printf("Added %s (%s)\n", txn.Description, txn.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&date, "date", "", "transaction date (YYYY-MM-DD, defaults to today)")
	cmd.Flags().StringVar(&category, "category", "Miscellaneous", "category name")
	cmd.Flags().StringVar(&subcategory, "subcategory", "", "subcategory name")
	cmd.Flags().StringVar(&account, "account", "", "account name")
	cmd.Flags().StringVar(&notes, "notes", "", "free-form notes")
	cmd.Flags().StringSliceVar(&tags, "tags", nil, "comma-separated tags")

	return cmd
}

func transactionsListCmd() *cobra.Command {
	var (
		from          string
		to            string
		category      string
		account       string
		uncategorized bool
		needsReview   bool
		limit         int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List transactions",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			filter := repository.ListFilter{
				Category:        category,
				Account:         account,
				Uncategorized:   uncategorized,
				NeedsReview:     needsReview,
				ReviewThreshold: cfg.ConfidenceThreshold,
				Limit:           limit,
			}
			if filter.From, err = parseDateFlag(from, "--from"); err != nil {
				return err
			}
			if filter.To, err = parseDateFlag(to, "--to"); err != nil {
				return err
			}

			ctx := cmd.Context()
			repo, err := openSQLite(ctx, cfg)
			if err != nil {
				return err
			}
			defer repo.Close()

			transactions, err := repo.List(ctx, filter)
			if err != nil {
				return fmt.Errorf("failed to list transactions: %w", err)
			}

			printTransactions(cmd, transactions)
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "only transactions on or after this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "only transactions on or before this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&category, "category", "", "filter by category")
	cmd.Flags().StringVar(&account, "account", "", "filter by account")
	cmd.Flags().BoolVar(&uncategorized, "uncategorized", false, "only uncategorized transactions")
	cmd.Flags().BoolVar(&needsReview, "needs-review", false, "only transactions awaiting review")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum number of transactions to show")

	return cmd
}

func transactionsSearchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search <query>",
		Short: "Search transaction descriptions and notes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			repo, err := openSQLite(ctx, cfg)
			if err != nil {
				return err
			}
			defer repo.Close()

			transactions, err := repo.Search(ctx, args[0])
			if err != nil {
				return fmt.Errorf("search failed: %w", err)
			}

			printTransactions(cmd, transactions)
			return nil
		},
	}
}

func transactionsReviewCmd() *cobra.Command {
	var (
		category    string
		subcategory string
	)

	cmd := &cobra.Command{
		Use:   "review <id>",
		Short: "Mark a transaction as reviewed, optionally correcting its category",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid transaction id %q: %w", args[0], err)
			}

			ctx := cmd.Context()
			repo, err := openSQLite(ctx, cfg)
			if err != nil {
				return err
			}
			defer repo.Close()

			txn, err := repo.Get(ctx, id)
			if err != nil {
				return fmt.Errorf("failed to load transaction: %w", err)
			}

			if category != "" {
				// Manual corrections are authoritative, so confidence is cleared.
				txn = txn.WithCategory(category, subcategory, nil)
			}
			txn = txn.WithReviewed(true)

			if err := repo.Update(ctx, txn); err != nil {
				return fmt.Errorf("failed to update transaction: %w", err)
			}

			cmd.Printf("Reviewed %s: %s / %s\n", txn.Description, txn.Category, txn.Subcategory)
			return nil
		},
	}

	cmd.Flags().StringVar(&category, "category", "", "correct the category while reviewing")
	cmd.Flags().StringVar(&subcategory, "subcategory", "", "correct the subcategory while reviewing")

	return cmd
}

func transactionsTotalsCmd() *cobra.Command {
	var (
		from string
		to   string
	)

	cmd := &cobra.Command{
		Use:   "totals",
		Short: "Show spending totals per category",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			fromTime, err := parseDateFlag(from, "--from")
			if err != nil {
				return err
			}
			toTime, err := parseDateFlag(to, "--to")
			if err != nil {
				return err
			}
			if toTime.IsZero() {
				toTime = time.Now()
			}

			ctx := cmd.Context()
			repo, err := openSQLite(ctx, cfg)
			if err != nil {
				return err
			}
			defer repo.Close()

			totals, err := repo.GetTotalByCategory(ctx, fromTime, toTime)
			if err != nil {
				return fmt.Errorf("failed to compute totals: %w", err)
			}

			categories := make([]string, 0, len(totals))
			for category := range totals {
				categories = append(categories, category)
			}
			sort.Strings(categories)

			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			for _, category := range categories {
				fmt.Fprintf(w, "%s\t%s\n", category, totals[category].StringFixed(2))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "start of the period (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "end of the period (YYYY-MM-DD, defaults to now)")

	return cmd
}

func parseDateFlag(value, flag string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse("2006-01-02", value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid %s value %q: expected YYYY-MM-DD", flag, value)
	}
	return t, nil
}

func printTransactions(cmd *cobra.Command, transactions []model.Transaction) {
	if len(transactions) == 0 {
		cmd.Println("No transactions found")
		return
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "DATE\tDESCRIPTION\tAMOUNT\tCATEGORY\tID")
	for _, txn := range transactions {
		description := txn.Description
		if len(description) > 40 {
			description = description[:37] + "..."
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			txn.Date.Format("2006-01-02"),
			description,
			txn.Amount.StringFixed(2),
			txn.Category,
			txn.ID)
	}
	if err := w.Flush(); err != nil {
		cmd.PrintErrln("failed to render table:", err)
	}
	cmd.Printf("\n%d transactions\n", len(transactions))
}
