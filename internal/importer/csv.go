// Package importer reads bank statement files (CSV, CAMT.053 XML, and
// OFX/QFX) into raw transactions ready for categorization and storage.
package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aafontoura/budget-notion/internal/model"
)

// CSVConfig maps a bank's CSV layout onto the fields we need. Different
// banks name and format their columns differently.
type CSVConfig struct {
	DateColumn         string
	DescriptionColumn  string
	AmountColumn       string
	DateFormat         string
	DecimalSeparator   string
	ThousandsSeparator string
	Comma              rune
	SkipRows           int
}

// DefaultCSVConfig matches a plain export: Date, Description, Amount columns
// with ISO dates and dot decimals.
func DefaultCSVConfig() CSVConfig {
	return CSVConfig{
		DateColumn:        "Date",
		DescriptionColumn: "Description",
		AmountColumn:      "Amount",
		DateFormat:        "2006-01-02",
		DecimalSeparator:  ".",
		Comma:             ',',
	}
}

// CSVImporter parses bank statement CSV files.
type CSVImporter struct {
	config CSVConfig
}

// NewCSVImporter creates an importer for the given layout.
func NewCSVImporter(config CSVConfig) *CSVImporter {
	if config.Comma == 0 {
		config.Comma = ','
	}
	if config.DateFormat == "" {
		config.DateFormat = "2006-01-02"
	}
	return &CSVImporter{config: config}
}

// ParseFile reads and parses the CSV file at path.
func (i *CSVImporter) ParseFile(path string) ([]model.RawTransaction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer func() { _ = f.Close() }()

	txns, err := i.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return txns, nil
}

// Parse reads CSV rows from r. Rows that cannot be parsed are logged and
// skipped; the header row decides column positions.
func (i *CSVImporter) Parse(r io.Reader) ([]model.RawTransaction, error) {
	reader := csv.NewReader(r)
	reader.Comma = i.config.Comma
	reader.FieldsPerRecord = -1

	for skipped := 0; skipped < i.config.SkipRows; skipped++ {
		if _, err := reader.Read(); err != nil {
			return nil, fmt.Errorf("failed to skip header rows: %w", err)
		}
	}

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	dateIdx, descIdx, amountIdx := -1, -1, -1
	for idx, name := range header {
		switch strings.TrimSpace(name) {
		case i.config.DateColumn:
			dateIdx = idx
		case i.config.DescriptionColumn:
			descIdx = idx
		case i.config.AmountColumn:
			amountIdx = idx
		}
	}
	if dateIdx < 0 || descIdx < 0 || amountIdx < 0 {
		return nil, fmt.Errorf("CSV is missing required columns %q, %q, %q",
			i.config.DateColumn, i.config.DescriptionColumn, i.config.AmountColumn)
	}

	var txns []model.RawTransaction
	line := i.config.SkipRows + 1
	for {
		line++
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			slog.Warn("skipping malformed CSV row", "line", line, "error", err)
			continue
		}
		if len(record) <= dateIdx || len(record) <= descIdx || len(record) <= amountIdx {
			slog.Warn("skipping short CSV row", "line", line)
			continue
		}

		date, err := time.Parse(i.config.DateFormat, strings.TrimSpace(record[dateIdx]))
		if err != nil {
			slog.Warn("skipping CSV row with invalid date", "line", line, "error", err)
			continue
		}

		amount, err := i.parseAmount(record[amountIdx])
		if err != nil {
			slog.Warn("skipping CSV row with invalid amount", "line", line, "error", err)
			continue
		}

		description := strings.TrimSpace(record[descIdx])
		if description == "" {
			slog.Warn("skipping CSV row with empty description", "line", line)
			continue
		}

		txns = append(txns, model.RawTransaction{
			Date:        date,
			Description: description,
			Amount:      amount,
		})
	}

	slog.Info("parsed CSV statement", "transactions", len(txns))
	return txns, nil
}

func (i *CSVImporter) parseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if i.config.ThousandsSeparator != "" {
		raw = strings.ReplaceAll(raw, i.config.ThousandsSeparator, "")
	}
	if i.config.DecimalSeparator != "" && i.config.DecimalSeparator != "." {
		raw = strings.ReplaceAll(raw, i.config.DecimalSeparator, ".")
	}
	return decimal.NewFromString(raw)
}
