package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SnapshotHolding is a frozen valuation record of one holding. QuoteDividend is the
// monthly dividend converted at the rate and tax in effect when the snapshot was taken.
type SnapshotHolding struct {
	Ticker           string          `json:"ticker"`
	Price            decimal.Decimal `json:"price"`
	Quantity         int64           `json:"quantity"`
	InvestedAmount   decimal.Decimal `json:"invested_amount"`
	DividendPerShare decimal.Decimal `json:"dividend_per_share"`
	QuoteDividend    decimal.Decimal `json:"quote_dividend"`
}

// Snapshot is an immutable point-in-time copy of the fully valuated portfolio.
// Only Name may change after creation.
type Snapshot struct {
	ID        string            `json:"id"`
	Name      string            `json:"name"`
	CreatedAt time.Time         `json:"created_at"`
	Holdings  []SnapshotHolding `json:"holdings"`
}

// MaxSnapshots is the archive capacity; inserting beyond it evicts the oldest.
const MaxSnapshots = 10
