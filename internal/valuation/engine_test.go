package valuation

import (
	"errors"
	"testing"

	"github.com/shopspring/decimal"

	"DividendLedger/internal/model"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func decp(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestCompute_SingleHolding(t *testing.T) {
	h := model.NewHolding("SCHD", dec("27"), 100, dec("0.08"))
	res := Compute([]model.Holding{h}, Inputs{
		Rate:           decp("1400"),
		TaxRatePercent: dec("15"),
		Target:         dec("10000"),
	})

	if len(res.Positions) != 1 {
		t.Fatalf("expected 1 position, got %d", len(res.Positions))
	}
	p := res.Positions[0]
	if !p.InvestedAmount.Equal(dec("2700")) {
		t.Errorf("invested: got %s", p.InvestedAmount)
	}
	if !p.MonthlyDividend.Equal(dec("8")) {
		t.Errorf("monthly dividend: got %s", p.MonthlyDividend)
	}
	// 8 × 1400 × 0.85 = 9520
	if !p.QuoteDividend.Equal(dec("9520")) {
		t.Errorf("quote dividend: got %s", p.QuoteDividend)
	}
	if !p.QuoteInvestment.Equal(dec("3780000")) {
		t.Errorf("quote investment: got %s", p.QuoteInvestment)
	}
	// (8/2700)×100 ≈ 0.2963%
	if got := p.YieldPercent.Round(2); !got.Equal(dec("0.3")) {
		t.Errorf("yield: got %s", p.YieldPercent)
	}
	if !p.Weight.Equal(dec("0.27")) {
		t.Errorf("weight: got %s", p.Weight)
	}
}

func TestCompute_OverweightFlag(t *testing.T) {
	holdings := []model.Holding{
		model.NewHolding("SCHD", dec("60"), 100, dec("0.08")),
		model.NewHolding("JEPI", dec("60"), 100, dec("0.40")),
	}
	res := Compute(holdings, Inputs{Target: dec("10000"), TaxRatePercent: decimal.Zero})

	if !res.TotalWeight.Equal(dec("1.2")) {
		t.Errorf("total weight: got %s", res.TotalWeight)
	}
	if !res.IsOverweight {
		t.Error("expected overweight flag")
	}
	if !res.RemainingWeight.IsZero() {
		t.Errorf("remaining weight: got %s", res.RemainingWeight)
	}
	if !res.RemainingInvestment.IsZero() {
		t.Errorf("remaining investment: got %s", res.RemainingInvestment)
	}
}

func TestCompute_RemainingBudget(t *testing.T) {
	holdings := []model.Holding{
		model.NewHolding("SCHD", dec("27"), 100, dec("0.08")),
	}
	res := Compute(holdings, Inputs{Target: dec("10000"), TaxRatePercent: decimal.Zero})

	if res.IsOverweight {
		t.Error("unexpected overweight flag")
	}
	if !res.RemainingWeight.Equal(dec("0.73")) {
		t.Errorf("remaining weight: got %s", res.RemainingWeight)
	}
	if !res.RemainingInvestment.Equal(dec("7300")) {
		t.Errorf("remaining investment: got %s", res.RemainingInvestment)
	}
}

func TestCompute_UnknownRateZeroesQuoteFigures(t *testing.T) {
	holdings := []model.Holding{
		model.NewHolding("SCHD", dec("27"), 100, dec("0.08")),
	}
	res := Compute(holdings, Inputs{Rate: nil, TaxRatePercent: dec("15"), Target: dec("10000")})

	p := res.Positions[0]
	if !p.QuoteInvestment.IsZero() || !p.QuoteDividend.IsZero() {
		t.Errorf("quote figures must be zero without a rate: %s / %s", p.QuoteInvestment, p.QuoteDividend)
	}
	// Base-currency figures stay valid.
	if !p.InvestedAmount.Equal(dec("2700")) || !p.MonthlyDividend.Equal(dec("8")) {
		t.Errorf("base figures: %s / %s", p.InvestedAmount, p.MonthlyDividend)
	}
}

func TestCompute_TaxOnlyAffectsQuoteDividend(t *testing.T) {
	holdings := []model.Holding{
		model.NewHolding("SCHD", dec("27"), 100, dec("0.08")),
	}
	taxed := Compute(holdings, Inputs{Rate: decp("1400"), TaxRatePercent: dec("15"), Target: dec("10000")})
	untaxed := Compute(holdings, Inputs{Rate: decp("1400"), TaxRatePercent: decimal.Zero, Target: dec("10000")})

	if !taxed.TotalMonthlyDividend.Equal(untaxed.TotalMonthlyDividend) {
		t.Error("tax must not touch base-currency dividend")
	}
	if !taxed.TotalQuoteInvestment.Equal(untaxed.TotalQuoteInvestment) {
		t.Error("tax must not touch quote-currency investment")
	}
	if taxed.TotalQuoteDividend.Equal(untaxed.TotalQuoteDividend) {
		t.Error("tax must reduce quote-currency dividend")
	}
}

func TestCompute_ZeroTargetZeroWeights(t *testing.T) {
	holdings := []model.Holding{
		model.NewHolding("SCHD", dec("27"), 100, dec("0.08")),
	}
	res := Compute(holdings, Inputs{Target: decimal.Zero, TaxRatePercent: decimal.Zero})
	if !res.TotalWeight.IsZero() {
		t.Errorf("weight with zero target: got %s", res.TotalWeight)
	}
}

func TestCompute_TotalsAreSumsOfPositions(t *testing.T) {
	holdings := []model.Holding{
		model.NewHolding("SCHD", dec("27.13"), 37, dec("0.0817")),
		model.NewHolding("JEPI", dec("55.91"), 12, dec("0.3125")),
		model.NewHolding("QYLD", dec("17.02"), 210, dec("0.1692")),
	}
	res := Compute(holdings, Inputs{Rate: decp("1387.22"), TaxRatePercent: dec("15.4"), Target: dec("20000")})

	var invested, quoteDiv decimal.Decimal
	var qty int64
	for _, p := range res.Positions {
		invested = invested.Add(p.InvestedAmount)
		quoteDiv = quoteDiv.Add(p.QuoteDividend)
		qty += p.Quantity
	}
	if !res.TotalInvested.Equal(invested) {
		t.Errorf("total invested %s != sum %s", res.TotalInvested, invested)
	}
	if !res.TotalQuoteDividend.Equal(quoteDiv) {
		t.Errorf("total quote dividend %s != sum %s", res.TotalQuoteDividend, quoteDiv)
	}
	if res.TotalQuantity != qty {
		t.Errorf("total quantity %d != sum %d", res.TotalQuantity, qty)
	}
}

func TestCheckAdmission(t *testing.T) {
	tests := []struct {
		name   string
		price  string
		qty    int64
		target string
		want   error
	}{
		{"ok", "27", 100, "10000", nil},
		{"zero quantity", "27", 0, "10000", ErrQuantityNotPositive},
		{"zero target", "27", 100, "0", ErrTargetNotPositive},
		{"zero invested", "0", 100, "10000", ErrInvestedNotPositive},
		{"exceeds target", "27", 1000, "10000", ErrExceedsTarget},
		{"exactly target", "100", 100, "10000", nil},
	}
	for _, tt := range tests {
		h := model.NewHolding("SCHD", dec(tt.price), tt.qty, dec("0.08"))
		err := CheckAdmission(h, dec(tt.target))
		if !errors.Is(err, tt.want) {
			t.Errorf("%s: expected %v, got %v", tt.name, tt.want, err)
		}
	}
}

func TestFreezeSnapshot(t *testing.T) {
	holdings := []model.Holding{
		model.NewHolding("SCHD", dec("27"), 100, dec("0.08")),
	}
	frozen := FreezeSnapshot(holdings, Inputs{Rate: decp("1400"), TaxRatePercent: dec("15"), Target: dec("10000")})

	if len(frozen) != 1 {
		t.Fatalf("expected 1 record, got %d", len(frozen))
	}
	f := frozen[0]
	if f.Ticker != "SCHD" || f.Quantity != 100 {
		t.Errorf("raw fields: %+v", f)
	}
	if !f.QuoteDividend.Equal(dec("9520")) {
		t.Errorf("frozen quote dividend: got %s", f.QuoteDividend)
	}
}

func TestRecompute_MaterializedViewInvariant(t *testing.T) {
	h := model.NewHolding("SCHD", dec("27.13"), 37, dec("0.0817"))
	if !h.InvestedAmount.Equal(h.Price.Mul(decimal.NewFromInt(h.Quantity))) {
		t.Error("invested amount not recomputable from price × quantity")
	}
	if !h.MonthlyDividend.Equal(h.DividendPerShare.Mul(decimal.NewFromInt(h.Quantity))) {
		t.Error("monthly dividend not recomputable from dividend × quantity")
	}

	h.Price = dec("30")
	h.Quantity = 40
	h.Recompute()
	if !h.InvestedAmount.Equal(dec("1200")) {
		t.Errorf("after recompute: %s", h.InvestedAmount)
	}
	if !h.MonthlyDividend.Equal(dec("3.268")) {
		t.Errorf("after recompute: %s", h.MonthlyDividend)
	}
}
