package marketdata

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

// AlphaVantageFetcher looks up price and dividend via the Alpha Vantage REST API.
// Price comes from GLOBAL_QUOTE; the dividend comes from the OVERVIEW endpoint's
// annual rate divided by 12 and rounded to 4 decimal places.
type AlphaVantageFetcher struct {
	Client  *http.Client
	BaseURL string
	APIKey  string
}

// NewAlphaVantageFetcher creates a fetcher with optional proxy support.
func NewAlphaVantageFetcher(baseURL, apiKey, proxyURL string) *AlphaVantageFetcher {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &AlphaVantageFetcher{
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
		BaseURL: baseURL,
		APIKey:  apiKey,
	}
}

func (f *AlphaVantageFetcher) Name() string { return "alphavantage" }

func (f *AlphaVantageFetcher) query(ctx context.Context, function, ticker string, out any) error {
	u := fmt.Sprintf("%s/query?function=%s&symbol=%s&apikey=%s",
		f.BaseURL, function, url.QueryEscape(ticker), url.QueryEscape(f.APIKey))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := f.Client.Do(req)
	if err != nil {
		return fmt.Errorf("alphavantage fetch: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("alphavantage read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("alphavantage: status %d, body: %s", resp.StatusCode, string(body))
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("alphavantage decode: %w", err)
	}
	return nil
}

type globalQuote struct {
	GlobalQuote struct {
		Price string `json:"05. price"`
	} `json:"Global Quote"`
}

type overview struct {
	AnnualDividendRate string `json:"AnnualDividendRate"`
}

// Lookup fetches price and dividend. Either field may come back nil when the
// source omits it; a transport failure returns an error for the caller to degrade.
func (f *AlphaVantageFetcher) Lookup(ctx context.Context, ticker string) (Quote, error) {
	var gq globalQuote
	if err := f.query(ctx, "GLOBAL_QUOTE", ticker, &gq); err != nil {
		return Quote{}, err
	}

	var q Quote
	if gq.GlobalQuote.Price != "" {
		if p, err := decimal.NewFromString(gq.GlobalQuote.Price); err == nil {
			q.Price = &p
		}
	}

	var ov overview
	if err := f.query(ctx, "OVERVIEW", ticker, &ov); err != nil {
		// Price alone is still useful; dividend stays nil.
		return q, nil
	}
	if ov.AnnualDividendRate != "" && ov.AnnualDividendRate != "None" {
		if annual, err := decimal.NewFromString(ov.AnnualDividendRate); err == nil {
			monthly := annual.Div(decimal.NewFromInt(12)).Round(4)
			q.Dividend = &monthly
		}
	}
	return q, nil
}
