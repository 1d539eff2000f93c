package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aafontoura/budget-notion/internal/model"
	"github.com/aafontoura/budget-notion/internal/repository"
)

func exportCmd() *cobra.Command {
	var (
		output   string
		from     string
		to       string
		category string
		account  string
	)

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export transactions to CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			filter := repository.ListFilter{Category: category, Account: account}
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

			var w io.Writer = cmd.OutOrStdout()
			if output != "" {
				f, err := os.Create(output)
				if err != nil {
					return fmt.Errorf("failed to create %s: %w", output, err)
				}
				defer f.Close()
				w = f
			}

			if err := writeCSV(w, transactions); err != nil {
				return fmt.Errorf("failed to write CSV: %w", err)
			}

			if output != "" {
				cmd.Printf("Exported %d transactions to %s\n", len(transactions), output)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "write to this file instead of stdout")
	cmd.Flags().StringVar(&from, "from", "", "only transactions on or after this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&to, "to", "", "only transactions on or before this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&category, "category", "", "filter by category")
	cmd.Flags().StringVar(&account, "account", "", "filter by account")

	return cmd
}

var exportHeader = []string{
	"ID", "Date", "Description", "Amount", "Category", "Subcategory",
	"Account", "Notes", "Tags", "Reviewed", "AI Confidence",
	"Reimbursable", "Expected Reimbursement", "Actual Reimbursement", "Reimbursement Status",
}

func writeCSV(w io.Writer, transactions []model.Transaction) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(exportHeader); err != nil {
		return err
	}

	for _, txn := range transactions {
		confidence := ""
		if txn.AIConfidence != nil {
			confidence = strconv.FormatFloat(*txn.AIConfidence, 'f', 2, 64)
		}
		record := []string{
			txn.ID.String(),
			txn.Date.Format("2006-01-02"),
			txn.Description,
			txn.Amount.String(),
			txn.Category,
			txn.Subcategory,
			txn.Account,
			txn.Notes,
			strings.Join(txn.Tags, ";"),
			strconv.FormatBool(txn.Reviewed),
			confidence,
			strconv.FormatBool(txn.Reimbursable),
			txn.ExpectedReimbursement.String(),
			txn.ActualReimbursement.String(),
			string(txn.ReimbursementStatus),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}
