package importer

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"

	"github.com/aclindsa/ofxgo"
	"github.com/shopspring/decimal"

	"github.com/aafontoura/budget-notion/internal/model"
)

// OFXImporter parses OFX/QFX bank and credit card statements.
type OFXImporter struct{}

// NewOFXImporter creates an OFX importer.
func NewOFXImporter() *OFXImporter {
	return &OFXImporter{}
}

var (
	severityPattern = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	openTagPattern  = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

// preprocess fixes formatting quirks seen in real bank exports: mixed-case
// SEVERITY values and SGML-style tags missing their closing bracket.
func preprocess(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")
	content = severityPattern.ReplaceAllStringFunc(content, strings.ToUpper)
	return openTagPattern.ReplaceAllString(content, "$1>")
}

// ParseFile reads and parses the OFX file at path.
func (i *OFXImporter) ParseFile(path string) ([]model.RawTransaction, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open OFX file: %w", err)
	}
	defer func() { _ = f.Close() }()

	txns, err := i.Parse(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return txns, nil
}

// Parse reads an OFX document from r. Both bank and credit card statements
// are supported; statements that fail to convert are logged and skipped.
func (i *OFXImporter) Parse(r io.Reader) ([]model.RawTransaction, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(preprocess(string(content))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX document: %w", err)
	}

	var txns []model.RawTransaction
	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok && stmt.BankTranList != nil {
			txns = append(txns, convertTransactions(stmt.BankTranList.Transactions)...)
		}
	}
	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok && stmt.BankTranList != nil {
			txns = append(txns, convertTransactions(stmt.BankTranList.Transactions)...)
		}
	}

	slog.Info("parsed OFX statement", "transactions", len(txns))
	return txns, nil
}

func convertTransactions(entries []ofxgo.Transaction) []model.RawTransaction {
	txns := make([]model.RawTransaction, 0, len(entries))
	for _, entry := range entries {
		// OFX amounts are already signed: debits negative, credits positive.
		amount := decimal.NewFromBigRat(&entry.TrnAmt.Rat, 2)
		description := transactionDescription(entry)
		if description == "" {
			slog.Warn("skipping OFX transaction without a description", "fitid", entry.FiTID)
			continue
		}
		txns = append(txns, model.RawTransaction{
			Date:        entry.DtPosted.Time,
			Description: description,
			Amount:      amount,
		})
	}
	return txns
}

// processorPrefixes are boilerplate card processors prepend to the merchant
// name.
var processorPrefixes = []string{
	"POS PURCHASE ",
	"PURCHASE AUTHORIZED ON ",
	"DEBIT CARD PURCHASE ",
	"ACH DEBIT ",
	"CHECK CARD ",
	"VISA PURCHASE ",
	"MC PURCHASE ",
	"DEBIT PURCHASE ",
}

// transactionDescription picks the most descriptive field available: the
// payee name when present, otherwise NAME, falling back to MEMO when NAME is
// a generic transaction type.
func transactionDescription(entry ofxgo.Transaction) string {
	if entry.Payee != nil && entry.Payee.Name != "" {
		return strings.TrimSpace(string(entry.Payee.Name))
	}

	name := strings.TrimSpace(string(entry.Name))
	if entry.Memo != "" && isGenericName(name) {
		name = strings.TrimSpace(string(entry.Memo))
	}

	upper := strings.ToUpper(name)
	for _, prefix := range processorPrefixes {
		if strings.HasPrefix(upper, prefix) {
			name = strings.TrimSpace(name[len(prefix):])
			break
		}
	}

	// Strip a leading MM/DD date stamp.
	if len(name) > 6 && name[2] == '/' && name[5] == ' ' {
		name = strings.TrimSpace(name[6:])
	}

	return name
}

func isGenericName(name string) bool {
	switch strings.ToUpper(name) {
	case "DEBIT", "CREDIT", "WITHDRAWAL", "DEPOSIT", "PAYMENT", "PURCHASE", "":
		return true
	default:
		return false
	}
}
