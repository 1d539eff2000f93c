package importer

import (
	"strings"
	"testing"

	"github.com/aclindsa/ofxgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeOFXEntry(name string) ofxgo.Transaction {
	return ofxgo.Transaction{Name: ofxgo.String(name)}
}

const sampleBankOFX = `OFXHEADER:100
DATA:OFXSGML
VERSION:102
SECURITY:NONE
ENCODING:USASCII
CHARSET:1252
COMPRESSION:NONE
OLDFILEUID:NONE
NEWFILEUID:NONE

<OFX>
<SIGNONMSGSRSV1>
<SONRS>
<STATUS>
<CODE>0
<SEVERITY>Info
</STATUS>
<DTSERVER>20260315120000[0:GMT]
<LANGUAGE>ENG
</SONRS>
</SIGNONMSGSRSV1>
<BANKMSGSRSV1>
<STMTTRNRS>
<TRNUID>1
<STATUS>
<CODE>0
<SEVERITY>INFO
</STATUS>
<STMTRS>
<CURDEF>EUR
<BANKACCTFROM>
<BANKID>123456789
<ACCTID>1234567890
<ACCTTYPE>CHECKING
</BANKACCTFROM>
<BANKTRANLIST>
<DTSTART>20260101120000[0:GMT]
<DTEND>20260131120000[0:GMT]
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20260115120000[0:GMT]
<TRNAMT>-25.50
<FITID>2026011501
<NAME>POS PURCHASE COFFEE COMPANY AMSTERDAM
</STMTTRN>
<STMTTRN>
<TRNTYPE>DEBIT
<DTPOSTED>20260120120000[0:GMT]
<TRNAMT>-125.00
<FITID>2026012001
<NAME>DEBIT
<MEMO>Albert Heijn 1610
</STMTTRN>
<STMTTRN>
<TRNTYPE>CREDIT
<DTPOSTED>20260125120000[0:GMT]
<TRNAMT>2500.00
<FITID>2026012501
<NAME>ACME Corp Salary
</STMTTRN>
</BANKTRANLIST>
<LEDGERBAL>
<BALAMT>1000.00
<DTASOF>20260131120000[0:GMT]
</LEDGERBAL>
</STMTRS>
</STMTTRNRS>
</BANKMSGSRSV1>
</OFX>`

func TestOFXParse(t *testing.T) {
	txns, err := NewOFXImporter().Parse(strings.NewReader(sampleBankOFX))
	require.NoError(t, err)
	require.Len(t, txns, 3)

	assert.Equal(t, "COFFEE COMPANY AMSTERDAM", txns[0].Description)
	assert.Equal(t, "-25.5", txns[0].Amount.String())
	assert.Equal(t, 2026, txns[0].Date.Year())

	// Generic NAME falls back to the memo.
	assert.Equal(t, "Albert Heijn 1610", txns[1].Description)
	assert.Equal(t, "-125", txns[1].Amount.String())

	assert.Equal(t, "ACME Corp Salary", txns[2].Description)
	assert.Equal(t, "2500", txns[2].Amount.String())
}

func TestOFXParseInvalid(t *testing.T) {
	_, err := NewOFXImporter().Parse(strings.NewReader("not an ofx file"))
	require.Error(t, err)
}

func TestPreprocessFixesSGMLQuirks(t *testing.T) {
	input := "  \n<OFX>\n<SEVERITY>Info</SEVERITY>\n<STMTTRN\n"
	fixed := preprocess(input)

	assert.True(t, strings.HasPrefix(fixed, "<OFX>"))
	assert.Contains(t, fixed, "<SEVERITY>INFO</SEVERITY>")
	assert.Contains(t, fixed, "<STMTTRN>")
}

func TestTransactionDescription(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"strips processor prefix", "CHECK CARD COFFEE BAR", "COFFEE BAR"},
		{"strips leading date stamp", "01/15 COFFEE BAR", "COFFEE BAR"},
		{"keeps plain names", "Albert Heijn", "Albert Heijn"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := makeOFXEntry(tt.raw)
			assert.Equal(t, tt.want, transactionDescription(entry))
		})
	}
}
