package valuation

import (
	"errors"

	"github.com/shopspring/decimal"

	"DividendLedger/internal/model"
)

// Admission rejection reasons. A rejected holding causes no mutation anywhere;
// callers surface these as advisory messages.
var (
	ErrQuantityNotPositive = errors.New("quantity must be positive")
	ErrTargetNotPositive   = errors.New("target total investment must be positive")
	ErrInvestedNotPositive = errors.New("invested amount must be positive")
	ErrExceedsTarget       = errors.New("invested amount exceeds target total investment")
)

// Inputs are the explicit valuation parameters. The engine never reads ambient
// state; the caller resolves rate and tax exactly once per operation.
type Inputs struct {
	Rate           *decimal.Decimal // effective base→quote rate, nil when unknown
	TaxRatePercent decimal.Decimal  // applies to quote-currency dividends only
	Target         decimal.Decimal  // target total investment, base currency
}

// Position is the per-holding valuation projection.
type Position struct {
	model.Holding
	Weight          decimal.Decimal // fraction of target, 0 when target is 0
	QuoteInvestment decimal.Decimal // invested amount × rate, 0 when rate unknown
	QuoteDividend   decimal.Decimal // monthly dividend × rate × (1 − tax/100)
	YieldPercent    decimal.Decimal // monthly dividend / invested × 100
}

// Result is the aggregate projection. Totals are sums of the per-holding figures,
// never recomputed from aggregate price×quantity, to avoid double-rounding drift.
type Result struct {
	Positions []Position

	TotalWeight         decimal.Decimal
	IsOverweight        bool // total weight > 1; flagged, never blocked
	RemainingWeight     decimal.Decimal
	RemainingInvestment decimal.Decimal

	TotalQuantity        int64
	TotalInvested        decimal.Decimal
	TotalQuoteInvestment decimal.Decimal
	TotalMonthlyDividend decimal.Decimal
	TotalQuoteDividend   decimal.Decimal

	TargetQuote decimal.Decimal // target converted to quote currency
}

var hundred = decimal.NewFromInt(100)

// Compute derives the full valuation of a holdings list. It is a pure function of
// its arguments.
func Compute(holdings []model.Holding, in Inputs) Result {
	res := Result{Positions: make([]Position, 0, len(holdings))}

	taxKeep := decimal.NewFromInt(1).Sub(in.TaxRatePercent.Div(hundred))
	hasRate := in.Rate != nil && in.Rate.Sign() > 0
	hasTarget := in.Target.Sign() > 0

	for _, h := range holdings {
		p := Position{Holding: h}
		if hasTarget {
			p.Weight = h.InvestedAmount.Div(in.Target)
		}
		if hasRate {
			p.QuoteInvestment = h.InvestedAmount.Mul(*in.Rate)
			p.QuoteDividend = h.MonthlyDividend.Mul(*in.Rate).Mul(taxKeep)
		}
		if h.InvestedAmount.Sign() > 0 {
			p.YieldPercent = h.MonthlyDividend.Div(h.InvestedAmount).Mul(hundred)
		}

		res.Positions = append(res.Positions, p)
		res.TotalWeight = res.TotalWeight.Add(p.Weight)
		res.TotalQuantity += h.Quantity
		res.TotalInvested = res.TotalInvested.Add(h.InvestedAmount)
		res.TotalQuoteInvestment = res.TotalQuoteInvestment.Add(p.QuoteInvestment)
		res.TotalMonthlyDividend = res.TotalMonthlyDividend.Add(h.MonthlyDividend)
		res.TotalQuoteDividend = res.TotalQuoteDividend.Add(p.QuoteDividend)
	}

	res.IsOverweight = res.TotalWeight.GreaterThan(decimal.NewFromInt(1))
	res.RemainingWeight = decimal.Max(decimal.Zero, decimal.NewFromInt(1).Sub(res.TotalWeight))
	res.RemainingInvestment = decimal.Max(decimal.Zero, in.Target.Sub(res.TotalInvested))
	if hasRate {
		res.TargetQuote = in.Target.Mul(*in.Rate)
	}
	return res
}

// CheckAdmission applies the admission rule for adding a new holding: positive
// quantity, positive target, positive computed invested amount, and the single
// holding's cost may not by itself exceed the stated total budget. The sum of
// already-admitted holdings exceeding the budget is deliberately not checked
// here; that condition is only flagged as overweight.
func CheckAdmission(h model.Holding, target decimal.Decimal) error {
	if h.Quantity <= 0 {
		return ErrQuantityNotPositive
	}
	if target.Sign() <= 0 {
		return ErrTargetNotPositive
	}
	if h.InvestedAmount.Sign() <= 0 {
		return ErrInvestedNotPositive
	}
	if h.InvestedAmount.GreaterThan(target) {
		return ErrExceedsTarget
	}
	return nil
}

// FreezeSnapshot computes the frozen per-holding valuation records baked into a
// snapshot: raw fields plus the quote-currency dividend at the rate and tax in
// effect right now.
func FreezeSnapshot(holdings []model.Holding, in Inputs) []model.SnapshotHolding {
	frozen := make([]model.SnapshotHolding, 0, len(holdings))
	for _, p := range Compute(holdings, in).Positions {
		frozen = append(frozen, model.SnapshotHolding{
			Ticker:           p.Ticker,
			Price:            p.Price,
			Quantity:         p.Quantity,
			InvestedAmount:   p.InvestedAmount,
			DividendPerShare: p.DividendPerShare,
			QuoteDividend:    p.QuoteDividend,
		})
	}
	return frozen
}
