package model

import "github.com/shopspring/decimal"

// WatchEntry is a ticker registered for tracking, independent of whether it is held.
// Price and dividend are the last figures the market-data source returned; nil means
// the lookup has not succeeded yet.
type WatchEntry struct {
	Ticker            string           `json:"ticker"`
	LastKnownPrice    *decimal.Decimal `json:"last_known_price"`
	LastKnownDividend *decimal.Decimal `json:"last_known_dividend"`
}

// MaxWatchEntries is the watch-set capacity.
const MaxWatchEntries = 12
