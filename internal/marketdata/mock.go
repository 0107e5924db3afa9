package marketdata

import (
	"context"
	"sync"

	"github.com/shopspring/decimal"
)

// MockFetcher returns controllable fixed data for development and testing.
type MockFetcher struct {
	mu       sync.Mutex
	Price    *decimal.Decimal
	Dividend *decimal.Decimal
	Err      error
	calls    []string
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) Lookup(_ context.Context, ticker string) (Quote, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, ticker)
	if m.Err != nil {
		return Quote{}, m.Err
	}
	return Quote{Price: m.Price, Dividend: m.Dividend}, nil
}

// Calls reports the tickers looked up so far.
func (m *MockFetcher) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}
