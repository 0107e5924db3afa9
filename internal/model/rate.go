package model

import "github.com/shopspring/decimal"

// RateSource indicates where the effective exchange rate came from.
type RateSource string

const (
	RateRealtime RateSource = "realtime"
	RateManual   RateSource = "manual"
	RateNone     RateSource = "none"
)

// RateState is the resolved base→quote conversion rate and its provenance.
// A nil Rate (Source == RateNone) means the portfolio is not valuable in quote
// currency; base-currency figures remain valid.
type RateState struct {
	Rate   *decimal.Decimal `json:"rate"`
	Source RateSource       `json:"source"`
}
