package fx

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	"github.com/shopspring/decimal"

	"DividendLedger/internal/model"
	"DividendLedger/internal/store"
)

// ErrNonPositiveRate rejects manual rates that are zero or negative.
var ErrNonPositiveRate = errors.New("manual rate must be positive")

// Resolver picks the effective conversion rate: a positive live quote wins,
// otherwise the durably stored manual rate, otherwise no rate at all.
type Resolver struct {
	fetcher Fetcher
	db      *store.Dual
}

// NewResolver builds a resolver over the given live-rate fetcher and store.
func NewResolver(fetcher Fetcher, db *store.Dual) *Resolver {
	return &Resolver{fetcher: fetcher, db: db}
}

// Resolve returns the effective rate and its provenance. A transient fetch
// failure is never surfaced; it degrades to the manual fallback chain.
func (r *Resolver) Resolve(ctx context.Context) model.RateState {
	live, err := r.fetcher.FetchLiveRate(ctx)
	if err != nil {
		log.Printf("[WARN] live rate fetch via %s failed: %v", r.fetcher.Name(), err)
	} else if live.Sign() > 0 {
		return model.RateState{Rate: &live, Source: model.RateRealtime}
	}

	if manual := r.ManualRate(); manual != nil && manual.Sign() > 0 {
		return model.RateState{Rate: manual, Source: model.RateManual}
	}
	return model.RateState{Source: model.RateNone}
}

// ManualRate reads the stored manual rate, or nil if none was ever set.
func (r *Resolver) ManualRate() *decimal.Decimal {
	data, ok, err := r.db.Get(store.PartSettings, store.KeyManualRate)
	if err != nil || !ok {
		return nil
	}
	var rate decimal.Decimal
	if err := json.Unmarshal(data, &rate); err != nil {
		log.Printf("[WARN] stored manual rate unreadable: %v", err)
		return nil
	}
	return &rate
}

// SetManualRate persists the fallback rate for all future resolutions.
// Non-positive values are rejected without touching the stored value.
func (r *Resolver) SetManualRate(rate decimal.Decimal) error {
	if rate.Sign() <= 0 {
		return ErrNonPositiveRate
	}
	data, err := json.Marshal(rate)
	if err != nil {
		return err
	}
	return r.db.PutSync(store.PartSettings, store.KeyManualRate, data)
}
