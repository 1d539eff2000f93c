package importer

import (
	"archive/zip"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aafontoura/budget-notion/internal/model"
)

// CAMT053Importer parses ISO 20022 CAMT.053 bank statements, the XML format
// European banks are converging on. The element structure is stable across
// camt.053.001.02 through .09 for the fields we read.
type CAMT053Importer struct{}

// NewCAMT053Importer creates a CAMT.053 importer.
func NewCAMT053Importer() *CAMT053Importer {
	return &CAMT053Importer{}
}

// camt.053 document, reduced to the entry fields we consume.
type camtDocument struct {
	XMLName    xml.Name `xml:"Document"`
	Statements []struct {
		Entries []camtEntry `xml:"Ntry"`
	} `xml:"BkToCstmrStmt>Stmt"`
}

type camtEntry struct {
	Amount struct {
		Value    string `xml:",chardata"`
		Currency string `xml:"Ccy,attr"`
	} `xml:"Amt"`
	CreditDebit    string `xml:"CdtDbtInd"`
	BookingDate    camtDate `xml:"BookgDt"`
	ValueDate      camtDate `xml:"ValDt"`
	AdditionalInfo string   `xml:"AddtlNtryInf"`
	Details        []struct {
		Transactions []struct {
			Remittance struct {
				Unstructured []string `xml:"Ustrd"`
			} `xml:"RmtInf"`
			Parties struct {
				DebtorName   string `xml:"Dbtr>Nm"`
				CreditorName string `xml:"Cdtr>Nm"`
			} `xml:"RltdPties"`
		} `xml:"TxDtls"`
	} `xml:"NtryDtls"`
}

type camtDate struct {
	Date     string `xml:"Dt"`
	DateTime string `xml:"DtTm"`
}

// ParseFile reads and parses a CAMT.053 XML file.
func (i *CAMT053Importer) ParseFile(path string) ([]model.RawTransaction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open CAMT.053 file: %w", err)
	}
	defer func() { _ = f.Close() }()

	txns, err := i.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return txns, nil
}

// Parse decodes CAMT.053 XML from r. Entries missing a date or amount are
// logged and skipped.
func (i *CAMT053Importer) Parse(r io.Reader) ([]model.RawTransaction, error) {
	var doc camtDocument
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("invalid CAMT.053 XML: %w", err)
	}

	var txns []model.RawTransaction
	for _, stmt := range doc.Statements {
		for idx, entry := range stmt.Entries {
			txn, err := parseEntry(entry)
			if err != nil {
				slog.Warn("skipping CAMT.053 entry", "entry", idx+1, "error", err)
				continue
			}
			txns = append(txns, txn)
		}
	}

	slog.Info("parsed CAMT.053 statement", "transactions", len(txns))
	return txns, nil
}

// ParseZip parses every XML file inside a ZIP archive, the way banks deliver
// multi-statement downloads.
func (i *CAMT053Importer) ParseZip(path string) ([]model.RawTransaction, error) {
	archive, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ZIP archive: %w", err)
	}
	defer func() { _ = archive.Close() }()

	var txns []model.RawTransaction
	parsed := 0
	for _, file := range archive.File {
		if !strings.HasSuffix(strings.ToLower(file.Name), ".xml") {
			continue
		}

		rc, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("failed to open %s in archive: %w", file.Name, err)
		}
		fileTxns, err := i.Parse(rc)
		_ = rc.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", file.Name, err)
		}

		txns = append(txns, fileTxns...)
		parsed++
	}

	if parsed == 0 {
		return nil, fmt.Errorf("no XML files found in %s", path)
	}
	return txns, nil
}

func parseEntry(entry camtEntry) (model.RawTransaction, error) {
	date, err := entryDate(entry)
	if err != nil {
		return model.RawTransaction{}, err
	}

	if entry.Amount.Value == "" {
		return model.RawTransaction{}, fmt.Errorf("entry has no amount")
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(entry.Amount.Value))
	if err != nil {
		return model.RawTransaction{}, fmt.Errorf("invalid amount %q: %w", entry.Amount.Value, err)
	}

	// Debits are expenses, credits income.
	isDebit := strings.EqualFold(entry.CreditDebit, "DBIT")
	if isDebit {
		amount = amount.Abs().Neg()
	} else {
		amount = amount.Abs()
	}

	return model.RawTransaction{
		Date:        date,
		Description: entryDescription(entry, isDebit),
		Amount:      amount,
	}, nil
}

func entryDate(entry camtEntry) (time.Time, error) {
	for _, candidate := range []camtDate{entry.BookingDate, entry.ValueDate} {
		if candidate.Date != "" {
			return time.Parse("2006-01-02", candidate.Date)
		}
		if candidate.DateTime != "" {
			return time.Parse(time.RFC3339, candidate.DateTime)
		}
	}
	return time.Time{}, fmt.Errorf("entry has no booking or value date")
}

// entryDescription joins remittance text with the counterparty name, falling
// back through additional entry info to a generic label.
func entryDescription(entry camtEntry, isDebit bool) string {
	var parts []string

	for _, details := range entry.Details {
		for _, tx := range details.Transactions {
			for _, ustrd := range tx.Remittance.Unstructured {
				if text := strings.TrimSpace(ustrd); text != "" {
					parts = append(parts, text)
				}
			}
			if isDebit {
				if name := strings.TrimSpace(tx.Parties.CreditorName); name != "" {
					parts = append(parts, "to "+name)
				}
			} else {
				if name := strings.TrimSpace(tx.Parties.DebtorName); name != "" {
					parts = append(parts, "from "+name)
				}
			}
		}
	}

	if info := strings.TrimSpace(entry.AdditionalInfo); info != "" {
		parts = append(parts, info)
	}

	if len(parts) == 0 {
		return "Transaction"
	}
	return strings.Join(strings.Fields(strings.Join(parts, " - ")), " ")
}
