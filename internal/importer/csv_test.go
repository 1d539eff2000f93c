package importer

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVParseDefaultLayout(t *testing.T) {
	input := `Date,Description,Amount
2026-01-15,Albert Heijn,-42.50
2026-01-16,Salary,3000.00
`

	importer := NewCSVImporter(DefaultCSVConfig())
	txns, err := importer.Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, txns, 2)

	assert.Equal(t, time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC), txns[0].Date)
	assert.Equal(t, "Albert Heijn", txns[0].Description)
	assert.Equal(t, "-42.5", txns[0].Amount.String())
	assert.Equal(t, "3000", txns[1].Amount.String())
}

func TestCSVParseEuropeanLayout(t *testing.T) {
	// Semicolon-separated with comma decimals and dot thousands, as Dutch
	// bank exports come.
	input := `Boekdatum;Omschrijving;Bedrag
15-01-2026;Jumbo Amsterdam;-1.042,50
`

	importer := NewCSVImporter(CSVConfig{
		DateColumn:         "Boekdatum",
		DescriptionColumn:  "Omschrijving",
		AmountColumn:       "Bedrag",
		DateFormat:         "02-01-2006",
		DecimalSeparator:   ",",
		ThousandsSeparator: ".",
		Comma:              ';',
	})
	txns, err := importer.Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, txns, 1)

	assert.Equal(t, "Jumbo Amsterdam", txns[0].Description)
	assert.Equal(t, "-1042.5", txns[0].Amount.String())
}

func TestCSVParseSkipsBadRows(t *testing.T) {
	input := `Date,Description,Amount
not-a-date,Broken row,-1.00
2026-01-15,Good row,-2.00
2026-01-16,,-3.00
2026-01-17,Bad amount,abc
`

	importer := NewCSVImporter(DefaultCSVConfig())
	txns, err := importer.Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, "Good row", txns[0].Description)
}

func TestCSVParseSkipRows(t *testing.T) {
	input := `Statement export
Account: NL12ABNA0123456789
Date,Description,Amount
2026-01-15,Coffee,-4.50
`

	config := DefaultCSVConfig()
	config.SkipRows = 2
	importer := NewCSVImporter(config)
	txns, err := importer.Parse(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, "Coffee", txns[0].Description)
}

func TestCSVParseMissingColumns(t *testing.T) {
	input := `When,What
2026-01-15,Coffee
`

	importer := NewCSVImporter(DefaultCSVConfig())
	_, err := importer.Parse(strings.NewReader(input))
	assert.Error(t, err)
}
