package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aafontoura/budget-notion/internal/categorize"
	"github.com/aafontoura/budget-notion/internal/config"
	"github.com/aafontoura/budget-notion/internal/importer"
	"github.com/aafontoura/budget-notion/internal/model"
	"github.com/aafontoura/budget-notion/internal/taxonomy"
)

func importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import bank transactions into the local database",
	}

	cmd.AddCommand(importCSVCmd(), importCAMTCmd(), importOFXCmd())

	return cmd
}

func importCSVCmd() *cobra.Command {
	var (
		account      string
		noCategorize bool
		dateColumn   string
		descColumn   string
		amountColumn string
		dateFormat   string
		delimiter    string
		decimalComma bool
		skipRows     int
	)

	cmd := &cobra.Command{
		Use:   "csv <file>",
		Short: "Import transactions from a CSV export",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			csvCfg := importer.DefaultCSVConfig()
			csvCfg.DateColumn = dateColumn
			csvCfg.DescriptionColumn = descColumn
			csvCfg.AmountColumn = amountColumn
			csvCfg.DateFormat = dateFormat
			csvCfg.SkipRows = skipRows
			if delimiter != "" {
				csvCfg.Comma = rune(delimiter[0])
			}
			if decimalComma {
				csvCfg.DecimalSeparator = ","
				csvCfg.ThousandsSeparator = "."
			}

			raws, err := importer.NewCSVImporter(csvCfg).ParseFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to parse %s: %w", args[0], err)
			}

			return runImport(cmd, cfg, raws, account, noCategorize)
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "account name to record on imported transactions")
	cmd.Flags().BoolVar(&noCategorize, "no-categorize", false, "skip LLM categorization; imported transactions stay uncategorized")
	cmd.Flags().StringVar(&dateColumn, "date-column", "Date", "header of the date column")
	cmd.Flags().StringVar(&descColumn, "description-column", "Description", "header of the description column")
	cmd.Flags().StringVar(&amountColumn, "amount-column", "Amount", "header of the amount column")
	cmd.Flags().StringVar(&dateFormat, "date-format", "2006-01-02", "date layout in Go reference time format")
	cmd.Flags().StringVar(&delimiter, "delimiter", "", "field delimiter (defaults to comma)")
	cmd.Flags().BoolVar(&decimalComma, "decimal-comma", false, "amounts use comma as decimal separator and dot for thousands")
	cmd.Flags().IntVar(&skipRows, "skip-rows", 0, "number of rows to skip before the header")

	return cmd
}

func importCAMTCmd() *cobra.Command {
	var (
		account      string
		noCategorize bool
	)

	cmd := &cobra.Command{
		Use:   "camt <file>",
		Short: "Import transactions from a CAMT.053 bank statement (XML or ZIP)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			camt := importer.NewCAMT053Importer()
			var raws []model.RawTransaction
			if strings.HasSuffix(strings.ToLower(args[0]), ".zip") {
				raws, err = camt.ParseZip(args[0])
			} else {
				raws, err = camt.ParseFile(args[0])
			}
			if err != nil {
				return fmt.Errorf("failed to parse %s: %w", args[0], err)
			}

			return runImport(cmd, cfg, raws, account, noCategorize)
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "account name to record on imported transactions")
	cmd.Flags().BoolVar(&noCategorize, "no-categorize", false, "skip LLM categorization; imported transactions stay uncategorized")

	return cmd
}

func importOFXCmd() *cobra.Command {
	var (
		account      string
		noCategorize bool
	)

	cmd := &cobra.Command{
		Use:   "ofx <file>",
		Short: "Import transactions from an OFX/QFX statement",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			raws, err := importer.NewOFXImporter().ParseFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to parse %s: %w", args[0], err)
			}

			return runImport(cmd, cfg, raws, account, noCategorize)
		},
	}

	cmd.Flags().StringVar(&account, "account", "", "account name to record on imported transactions")
	cmd.Flags().BoolVar(&noCategorize, "no-categorize", false, "skip LLM categorization; imported transactions stay uncategorized")

	return cmd
}

// runImport stores the parsed transactions, optionally categorizing them
// first. Every raw transaction is stored even when categorization fails; the
// failures just land in the fallback category for later review.
func runImport(cmd *cobra.Command, cfg *config.Config, raws []model.RawTransaction, account string, noCategorize bool) error {
	if len(raws) == 0 {
		cmd.Println("No transactions found in input")
		return nil
	}

	transactions := make([]model.Transaction, 0, len(raws))
	for _, raw := range raws {
		txn, err := model.NewTransaction(raw.Date, raw.Description, raw.Amount, taxonomy.FallbackCategory)
		if err != nil {
			return fmt.Errorf("invalid transaction %q: %w", raw.Description, err)
		}
		txn.Subcategory = taxonomy.FallbackSubcategory
		txn.Account = account
		transactions = append(transactions, txn)
	}

	ctx := cmd.Context()

	if !noCategorize {
		bar := newProgressBar(cmd.OutOrStdout(), len(transactions), "Categorizing transactions...")
		service, err := buildCategorizer(cfg, categorize.WithProgress(progressFunc(bar)))
		if err != nil {
			return err
		}

		requests := make([]model.CategorizationRequest, len(transactions))
		for i, txn := range transactions {
			requests[i] = model.CategorizationRequest{
				ID:          txn.ID.String(),
				Description: txn.Description,
				Amount:      txn.Amount.String(),
				Date:        txn.Date.Format("2006-01-02"),
			}
		}

		results, err := service.CategorizeBatch(ctx, requests)
		if err != nil {
			return fmt.Errorf("categorization failed: %w", err)
		}
		_ = bar.Finish()

		for i, txn := range transactions {
			result, ok := results[txn.ID.String()]
			if !ok {
				continue
			}
			confidence := result.Confidence
			updated := txn.WithCategory(result.Category, result.Subcategory, &confidence)
			for _, tag := range taxonomy.TagsFor(result.Category, result.Subcategory) {
				updated = updated.WithTag(tag)
			}
			transactions[i] = updated
		}
	}

	repo, err := openSQLite(ctx, cfg)
	if err != nil {
		return err
	}
	defer repo.Close()

	stored := 0
	for _, txn := range transactions {
		if err := repo.Add(ctx, txn); err != nil {
			return fmt.Errorf("failed to store transaction %q: %w", txn.Description, err)
		}
		stored++
	}

	cmd.Printf("Imported %d transactions into %s\n", stored, cfg.DatabasePath)
	return nil
}
