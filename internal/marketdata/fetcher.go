package marketdata

import (
	"context"
	"log"

	"github.com/shopspring/decimal"
)

// Quote is the market-data view of one ticker. Dividend is a monthly-equivalent
// per-share figure. A nil field means the source could not supply it.
type Quote struct {
	Price    *decimal.Decimal
	Dividend *decimal.Decimal
}

// Fetcher defines the interface for looking up ticker market data.
type Fetcher interface {
	Lookup(ctx context.Context, ticker string) (Quote, error)
	Name() string
}

// Lookup degrades any fetcher failure to an empty quote. Callers never see an
// error from a market-data lookup; missing data stays representable as nils.
func Lookup(ctx context.Context, f Fetcher, ticker string) Quote {
	q, err := f.Lookup(ctx, ticker)
	if err != nil {
		log.Printf("[WARN] market data lookup %s via %s failed: %v", ticker, f.Name(), err)
		return Quote{}
	}
	return q
}
