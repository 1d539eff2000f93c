package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// RawTransaction is the minimal shape produced by file importers before
// categorization and enrichment.
type RawTransaction struct {
	Date        time.Time
	Description string
	Amount      decimal.Decimal
}
