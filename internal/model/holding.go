package model

import "github.com/shopspring/decimal"

// Holding is one ETF position in the live portfolio.
// InvestedAmount and MonthlyDividend are cached at write time for display but are
// always recomputable from price, quantity and dividend per share.
type Holding struct {
	Ticker           string          `json:"ticker"`
	Price            decimal.Decimal `json:"price"`
	Quantity         int64           `json:"quantity"`
	DividendPerShare decimal.Decimal `json:"dividend_per_share"`
	InvestedAmount   decimal.Decimal `json:"invested_amount"`
	MonthlyDividend  decimal.Decimal `json:"monthly_dividend"`
}

// Recompute refreshes the cached derived fields from the raw fields.
// Every mutation site must call this before the holding becomes observable.
func (h *Holding) Recompute() {
	qty := decimal.NewFromInt(h.Quantity)
	h.InvestedAmount = h.Price.Mul(qty)
	h.MonthlyDividend = h.DividendPerShare.Mul(qty)
}

// NewHolding builds a holding with derived fields populated.
func NewHolding(ticker string, price decimal.Decimal, quantity int64, dividendPerShare decimal.Decimal) Holding {
	h := Holding{
		Ticker:           ticker,
		Price:            price,
		Quantity:         quantity,
		DividendPerShare: dividendPerShare,
	}
	h.Recompute()
	return h
}
