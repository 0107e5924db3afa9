package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/shopspring/decimal"

	"DividendLedger/internal/marketdata"
	"DividendLedger/internal/model"
	"DividendLedger/internal/store"
	"DividendLedger/internal/valuation"
)

// Validation rejections. All are advisory no-ops; none aborts the session.
var (
	ErrNotWatched       = errors.New("ticker is not in the watch-set")
	ErrDuplicateTicker  = errors.New("ticker already registered")
	ErrDuplicateHolding = errors.New("ticker already held")
	ErrWatchSetFull     = fmt.Errorf("watch-set is full (max %d tickers)", model.MaxWatchEntries)
	ErrEmptyTicker      = errors.New("ticker must not be empty")
	ErrIndexOutOfRange  = errors.New("holding index out of range")
	ErrNegativeValue    = errors.New("price, quantity and dividend must not be negative")
	ErrBadTaxRate       = errors.New("tax rate must be in [0,100]")
)

// Ledger owns the authoritative in-memory holdings list and the watch-set, and
// mediates every mutation through the dual-tier store. Derived figures are a
// read-time projection; only raw holdings are persisted as the source of truth.
type Ledger struct {
	mu     sync.Mutex
	db     *store.Dual
	market marketdata.Fetcher

	holdings []model.Holding
	watch    []model.WatchEntry
	target   decimal.Decimal
	taxRate  decimal.Decimal
}

// Open loads the persisted ledger state. Absent keys yield an empty ledger.
func Open(db *store.Dual, market marketdata.Fetcher, defaultTaxRate decimal.Decimal) (*Ledger, error) {
	l := &Ledger{db: db, market: market, taxRate: defaultTaxRate}

	if err := loadJSON(db, store.PartPortfolio, store.KeyHoldings, &l.holdings); err != nil {
		return nil, fmt.Errorf("load holdings: %w", err)
	}
	if err := loadJSON(db, store.PartTickers, store.KeyWatchlist, &l.watch); err != nil {
		return nil, fmt.Errorf("load watchlist: %w", err)
	}
	if err := loadJSON(db, store.PartSettings, store.KeyTarget, &l.target); err != nil {
		return nil, fmt.Errorf("load target: %w", err)
	}
	var tax *decimal.Decimal
	if err := loadJSON(db, store.PartSettings, store.KeyTaxRate, &tax); err != nil {
		return nil, fmt.Errorf("load tax rate: %w", err)
	}
	if tax != nil {
		l.taxRate = *tax
	}

	// The cached derived fields are display copies; re-derive them on load so a
	// hand-edited or stale flat file can never violate the invariant.
	for i := range l.holdings {
		l.holdings[i].Recompute()
	}
	return l, nil
}

func loadJSON(db *store.Dual, partition, key string, out any) error {
	data, ok, err := db.Get(partition, key)
	if err != nil || !ok {
		return err
	}
	return json.Unmarshal(data, out)
}

// Holdings returns a copy of the live holdings list.
func (l *Ledger) Holdings() []model.Holding {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]model.Holding, len(l.holdings))
	copy(out, l.holdings)
	return out
}

// WatchSet returns a copy of the registered tickers.
func (l *Ledger) WatchSet() []model.WatchEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]model.WatchEntry, len(l.watch))
	copy(out, l.watch)
	return out
}

// Target returns the target total investment in base currency.
func (l *Ledger) Target() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.target
}

// TaxRate returns the configured dividend tax percentage.
func (l *Ledger) TaxRate() decimal.Decimal {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.taxRate
}

// SetTarget stores the target total investment.
func (l *Ledger) SetTarget(target decimal.Decimal) error {
	if target.Sign() < 0 {
		return ErrNegativeValue
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.target = target
	l.persist(store.PartSettings, store.KeyTarget, l.target)
	return nil
}

// SetTaxRate stores the dividend tax percentage applied to quote-currency
// projections.
func (l *Ledger) SetTaxRate(rate decimal.Decimal) error {
	if rate.Sign() < 0 || rate.GreaterThan(decimal.NewFromInt(100)) {
		return ErrBadTaxRate
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.taxRate = rate
	l.persist(store.PartSettings, store.KeyTaxRate, l.taxRate)
	return nil
}

// RegisterTicker adds a ticker to the watch-set with null market data. Callers
// fill the quote with RefreshTicker; a failed fetch leaves the fields null and
// never un-registers the ticker.
func (l *Ledger) RegisterTicker(ticker string) error {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if ticker == "" {
		return ErrEmptyTicker
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.watch) >= model.MaxWatchEntries {
		return ErrWatchSetFull
	}
	for _, w := range l.watch {
		if w.Ticker == ticker {
			return ErrDuplicateTicker
		}
	}
	l.watch = append(l.watch, model.WatchEntry{Ticker: ticker})
	l.persist(store.PartTickers, store.KeyWatchlist, l.watch)
	return nil
}

// UnregisterTicker removes a ticker from the watch-set. Unknown tickers are a
// no-op. Existing holdings are unaffected; the watch-set gate applies at
// creation time only.
func (l *Ledger) UnregisterTicker(ticker string) {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	l.mu.Lock()
	defer l.mu.Unlock()
	for i, w := range l.watch {
		if w.Ticker == ticker {
			l.watch = append(l.watch[:i], l.watch[i+1:]...)
			l.persist(store.PartTickers, store.KeyWatchlist, l.watch)
			return
		}
	}
}

// RefreshTicker fetches current market data for one watched ticker and records
// it. Lookup failure records nulls; a ticker removed meanwhile is a no-op.
func (l *Ledger) RefreshTicker(ctx context.Context, ticker string) {
	q := marketdata.Lookup(ctx, l.market, ticker)

	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range l.watch {
		if l.watch[i].Ticker == ticker {
			l.watch[i].LastKnownPrice = q.Price
			l.watch[i].LastKnownDividend = q.Dividend
			l.persist(store.PartTickers, store.KeyWatchlist, l.watch)
			return
		}
	}
}

// RefreshAll refetches market data for every watched ticker, one shot each.
func (l *Ledger) RefreshAll(ctx context.Context) {
	for _, w := range l.WatchSet() {
		if ctx.Err() != nil {
			return
		}
		l.RefreshTicker(ctx, w.Ticker)
	}
}

// AddHolding admits a new holding. The ticker must be watch-listed and the
// admission rule must pass; rejection mutates nothing.
func (l *Ledger) AddHolding(ticker string, price decimal.Decimal, quantity int64, dividendPerShare decimal.Decimal) error {
	ticker = strings.ToUpper(strings.TrimSpace(ticker))
	if price.Sign() < 0 || dividendPerShare.Sign() < 0 {
		return ErrNegativeValue
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	watched := false
	for _, w := range l.watch {
		if w.Ticker == ticker {
			watched = true
			break
		}
	}
	if !watched {
		return ErrNotWatched
	}
	for _, h := range l.holdings {
		if h.Ticker == ticker {
			return ErrDuplicateHolding
		}
	}

	h := model.NewHolding(ticker, price, quantity, dividendPerShare)
	if err := valuation.CheckAdmission(h, l.target); err != nil {
		return err
	}

	l.holdings = append(l.holdings, h)
	l.persist(store.PartPortfolio, store.KeyHoldings, l.holdings)
	return nil
}

// EditHolding replaces price, quantity and dividend of the holding at index and
// recomputes its derived fields.
func (l *Ledger) EditHolding(index int, price decimal.Decimal, quantity int64, dividendPerShare decimal.Decimal) error {
	if price.Sign() < 0 || quantity < 0 || dividendPerShare.Sign() < 0 {
		return ErrNegativeValue
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if index < 0 || index >= len(l.holdings) {
		return ErrIndexOutOfRange
	}

	h := &l.holdings[index]
	h.Price = price
	h.Quantity = quantity
	h.DividendPerShare = dividendPerShare
	h.Recompute()

	l.persist(store.PartPortfolio, store.KeyHoldings, l.holdings)
	return nil
}

// DeleteHolding removes the holding at index.
func (l *Ledger) DeleteHolding(index int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if index < 0 || index >= len(l.holdings) {
		return ErrIndexOutOfRange
	}
	l.holdings = append(l.holdings[:index], l.holdings[index+1:]...)
	l.persist(store.PartPortfolio, store.KeyHoldings, l.holdings)
	return nil
}

// ResetAll clears holdings, watch-set and the stored target in one logical step.
// It waits for all three removals so callers never observe a partial reset.
func (l *Ledger) ResetAll() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.holdings = nil
	l.watch = nil
	l.target = decimal.Zero

	acks := []<-chan error{
		l.db.Delete(store.PartPortfolio, store.KeyHoldings),
		l.db.Delete(store.PartTickers, store.KeyWatchlist),
		l.db.Delete(store.PartSettings, store.KeyTarget),
	}
	for _, ack := range acks {
		if err := <-ack; err != nil {
			return fmt.Errorf("reset: %w", err)
		}
	}
	return nil
}

// Valuate computes the current read-time projection of the ledger under the
// given effective rate. Rate and tax are resolved by the caller, once per
// operation; the engine itself reads no ambient state.
func (l *Ledger) Valuate(rate *decimal.Decimal) valuation.Result {
	l.mu.Lock()
	in := valuation.Inputs{Rate: rate, TaxRatePercent: l.taxRate, Target: l.target}
	holdings := make([]model.Holding, len(l.holdings))
	copy(holdings, l.holdings)
	l.mu.Unlock()

	return valuation.Compute(holdings, in)
}

// persist enqueues an asynchronous write and logs the acknowledgment in the
// background. Mutations do not block on storage; the dual store serializes
// writes per partition and guarantees durability via the flat tier.
func (l *Ledger) persist(partition, key string, value any) {
	data, err := json.Marshal(value)
	if err != nil {
		log.Printf("[ERROR] ledger: marshal %s/%s: %v", partition, key, err)
		return
	}
	ack := l.db.Put(partition, key, data)
	go func() {
		if err := <-ack; err != nil {
			log.Printf("[ERROR] ledger: persist %s/%s: %v", partition, key, err)
		}
	}()
}
