package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	Currency struct {
		Base  string `yaml:"base"`  // currency holdings are priced in
		Quote string `yaml:"quote"` // local display currency
	} `yaml:"currency"`
	MarketData struct {
		Provider string `yaml:"provider"` // "alphavantage" or "yahoo"
		BaseURL  string `yaml:"base_url"`
		APIKey   string `yaml:"api_key"`
	} `yaml:"market_data"`
	ExchangeRate struct {
		BaseURL string `yaml:"base_url"`
	} `yaml:"exchange_rate"`
	Storage struct {
		SQLitePath string `yaml:"sqlite_path"`
		FlatDir    string `yaml:"flat_dir"`
	} `yaml:"storage"`
	Tax struct {
		DefaultRatePercent float64 `yaml:"default_rate_percent"`
	} `yaml:"tax"`
	Schedule struct {
		RefreshCron string `yaml:"refresh_cron"`
	} `yaml:"schedule"`
	Proxy string `yaml:"proxy"`
}

// Load reads config from a YAML file, then applies environment variable overrides.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	// Environment variable overrides
	if v := os.Getenv("MARKETDATA_BASE_URL"); v != "" {
		cfg.MarketData.BaseURL = v
	}
	if v := os.Getenv("MARKETDATA_API_KEY"); v != "" {
		cfg.MarketData.APIKey = v
	}
	if v := os.Getenv("EXCHANGE_RATE_BASE_URL"); v != "" {
		cfg.ExchangeRate.BaseURL = v
	}
	if v := os.Getenv("SQLITE_PATH"); v != "" {
		cfg.Storage.SQLitePath = v
	}
	if v := os.Getenv("FLAT_DIR"); v != "" {
		cfg.Storage.FlatDir = v
	}
	if v := os.Getenv("HTTPS_PROXY"); v != "" {
		cfg.Proxy = v
	}
	if v := os.Getenv("TAX_RATE_PERCENT"); v != "" {
		var rate float64
		if _, err := fmt.Sscanf(v, "%f", &rate); err == nil {
			cfg.Tax.DefaultRatePercent = rate
		}
	}
	if v := os.Getenv("REFRESH_CRON"); v != "" {
		cfg.Schedule.RefreshCron = v
	}

	// Defaults
	if cfg.Currency.Base == "" {
		cfg.Currency.Base = "USD"
	}
	if cfg.Currency.Quote == "" {
		cfg.Currency.Quote = "KRW"
	}
	if cfg.MarketData.Provider == "" {
		cfg.MarketData.Provider = "alphavantage"
	}
	if cfg.MarketData.BaseURL == "" {
		cfg.MarketData.BaseURL = "https://www.alphavantage.co"
	}
	if cfg.ExchangeRate.BaseURL == "" {
		cfg.ExchangeRate.BaseURL = "https://api.exchangerate.host"
	}
	if cfg.Storage.SQLitePath == "" {
		cfg.Storage.SQLitePath = "data/ledger.db"
	}
	if cfg.Storage.FlatDir == "" {
		cfg.Storage.FlatDir = "data/flat"
	}
	if cfg.Schedule.RefreshCron == "" {
		cfg.Schedule.RefreshCron = "0 0 9 * * 1-5"
	}

	return cfg, nil
}

// Validate checks that all required fields are set.
func (c *Config) Validate() error {
	if c.Currency.Base == c.Currency.Quote {
		return fmt.Errorf("currency.base and currency.quote must differ")
	}
	if c.MarketData.Provider != "alphavantage" && c.MarketData.Provider != "yahoo" {
		return fmt.Errorf("market_data.provider must be alphavantage or yahoo, got %q", c.MarketData.Provider)
	}
	if c.Tax.DefaultRatePercent < 0 || c.Tax.DefaultRatePercent > 100 {
		return fmt.Errorf("tax.default_rate_percent must be in [0,100]")
	}
	return nil
}
