package fx

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
)

// Fetcher fetches the live base→quote conversion rate.
type Fetcher interface {
	FetchLiveRate(ctx context.Context) (decimal.Decimal, error)
	Name() string
}

// HTTPFetcher queries an exchangerate.host compatible endpoint.
type HTTPFetcher struct {
	Client  *http.Client
	BaseURL string
	Base    string
	Quote   string
}

// NewHTTPFetcher creates a fetcher for the given currency pair with optional proxy.
func NewHTTPFetcher(baseURL, base, quote, proxyURL string) *HTTPFetcher {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &HTTPFetcher{
		Client: &http.Client{
			Timeout:   15 * time.Second,
			Transport: transport,
		},
		BaseURL: baseURL,
		Base:    base,
		Quote:   quote,
	}
}

func (f *HTTPFetcher) Name() string { return "exchangerate-api" }

type latestRates struct {
	Rates map[string]float64 `json:"rates"`
}

func (f *HTTPFetcher) FetchLiveRate(ctx context.Context) (decimal.Decimal, error) {
	u := fmt.Sprintf("%s/latest?base=%s&symbols=%s",
		f.BaseURL, url.QueryEscape(f.Base), url.QueryEscape(f.Quote))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return decimal.Zero, err
	}

	resp, err := f.Client.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("rate fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return decimal.Zero, fmt.Errorf("rate read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("rate api: status %d", resp.StatusCode)
	}

	var lr latestRates
	if err := json.Unmarshal(body, &lr); err != nil {
		return decimal.Zero, fmt.Errorf("rate decode: %w", err)
	}
	v, ok := lr.Rates[f.Quote]
	if !ok {
		return decimal.Zero, fmt.Errorf("rate api: no %s rate in response", f.Quote)
	}
	return decimal.NewFromFloat(v), nil
}

// MockFetcher returns a fixed rate or error for tests.
type MockFetcher struct {
	Rate decimal.Decimal
	Err  error
}

func (m *MockFetcher) Name() string { return "mock" }

func (m *MockFetcher) FetchLiveRate(_ context.Context) (decimal.Decimal, error) {
	if m.Err != nil {
		return decimal.Zero, m.Err
	}
	return m.Rate, nil
}
