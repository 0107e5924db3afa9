package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"DividendLedger/internal/archive"
	"DividendLedger/internal/config"
	"DividendLedger/internal/fx"
	"DividendLedger/internal/ledger"
	"DividendLedger/internal/marketdata"
	"DividendLedger/internal/store"
	"DividendLedger/internal/tracker"
	"DividendLedger/internal/valuation"
)

// app wires the library components for one CLI invocation.
type app struct {
	cfg      *config.Config
	db       *store.Dual
	ledger   *ledger.Ledger
	archive  *archive.Archive
	resolver *fx.Resolver
}

func newApp() (*app, error) {
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	db := store.NewDual(
		store.NewSQLiteTier(cfg.Storage.SQLitePath),
		store.NewFileTier(cfg.Storage.FlatDir),
	)

	var fetcher marketdata.Fetcher
	if cfg.MarketData.Provider == "yahoo" {
		fetcher = marketdata.NewYahooFetcher(cfg.Proxy)
	} else {
		fetcher = marketdata.NewAlphaVantageFetcher(cfg.MarketData.BaseURL, cfg.MarketData.APIKey, cfg.Proxy)
	}

	l, err := ledger.Open(db, fetcher, decimal.NewFromFloat(cfg.Tax.DefaultRatePercent))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open ledger: %w", err)
	}
	a, err := archive.Open(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("open archive: %w", err)
	}
	resolver := fx.NewResolver(
		fx.NewHTTPFetcher(cfg.ExchangeRate.BaseURL, cfg.Currency.Base, cfg.Currency.Quote, cfg.Proxy),
		db,
	)
	return &app{cfg: cfg, db: db, ledger: l, archive: a, resolver: resolver}, nil
}

func (a *app) Close() {
	if err := a.db.Close(); err != nil {
		log.Printf("[WARN] close store: %v", err)
	}
}

// parseAmount accepts the comma-grouped numbers users type, e.g. "1,400.50".
func parseAmount(s string) (decimal.Decimal, error) {
	return decimal.NewFromString(strings.ReplaceAll(strings.TrimSpace(s), ",", ""))
}

func main() {
	log.SetFlags(log.LstdFlags)

	root := &cobra.Command{
		Use:           "divledger",
		Short:         "Track a dividend ETF portfolio: holdings, valuation and snapshots",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		watchCmd(),
		addCmd(),
		editCmd(),
		rmCmd(),
		resetCmd(),
		targetCmd(),
		taxCmd(),
		rateCmd(),
		statusCmd(),
		snapshotCmd(),
		trackCmd(),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "divledger: %v\n", err)
		os.Exit(1)
	}
}

func watchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Manage the watch-set of tracked tickers",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "add TICKER",
		Short: "Register a ticker and fetch its market data",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			ticker := strings.ToUpper(args[0])
			if err := a.ledger.RegisterTicker(ticker); err != nil {
				return err
			}
			// One synchronous fetch so the user sees the figures right away.
			a.ledger.RefreshTicker(cmd.Context(), ticker)
			renderWatchSet(os.Stdout, a.ledger.WatchSet(), a.cfg.Currency.Base)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "rm TICKER",
		Short: "Remove a ticker from the watch-set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			a.ledger.UnregisterTicker(args[0])
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "ls",
		Short: "List watched tickers with last-known market data",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			renderWatchSet(os.Stdout, a.ledger.WatchSet(), a.cfg.Currency.Base)
			return nil
		},
	})
	return cmd
}

func addCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add TICKER PRICE QUANTITY DIVIDEND",
		Short: "Admit a holding (ticker must be watched; budget rule applies)",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			price, err := parseAmount(args[1])
			if err != nil {
				return fmt.Errorf("price: %w", err)
			}
			qty, err := strconv.ParseInt(strings.ReplaceAll(args[2], ",", ""), 10, 64)
			if err != nil {
				return fmt.Errorf("quantity: %w", err)
			}
			div, err := parseAmount(args[3])
			if err != nil {
				return fmt.Errorf("dividend: %w", err)
			}
			return a.ledger.AddHolding(args[0], price, qty, div)
		},
	}
}

func editCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit INDEX PRICE QUANTITY DIVIDEND",
		Short: "Replace a holding's price, quantity and dividend",
		Args:  cobra.ExactArgs(4),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			index, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("index: %w", err)
			}
			price, err := parseAmount(args[1])
			if err != nil {
				return fmt.Errorf("price: %w", err)
			}
			qty, err := strconv.ParseInt(strings.ReplaceAll(args[2], ",", ""), 10, 64)
			if err != nil {
				return fmt.Errorf("quantity: %w", err)
			}
			div, err := parseAmount(args[3])
			if err != nil {
				return fmt.Errorf("dividend: %w", err)
			}
			return a.ledger.EditHolding(index, price, qty, div)
		},
	}
}

func rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm INDEX",
		Short: "Delete the holding at INDEX",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			index, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("index: %w", err)
			}
			return a.ledger.DeleteHolding(index)
		},
	}
}

func resetCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Clear holdings, watch-set and target investment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to reset without --yes")
			}
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			return a.ledger.ResetAll()
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the reset")
	return cmd
}

func targetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "target [AMOUNT]",
		Short: "Show or set the target total investment",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			if len(args) == 0 {
				fmt.Printf("target: %s %s\n", commas(a.ledger.Target()), a.cfg.Currency.Base)
				return nil
			}
			amount, err := parseAmount(args[0])
			if err != nil {
				return fmt.Errorf("amount: %w", err)
			}
			return a.ledger.SetTarget(amount)
		},
	}
}

func taxCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tax [RATE]",
		Short: "Show or set the dividend tax rate percentage",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			if len(args) == 0 {
				fmt.Printf("tax rate: %s%%\n", a.ledger.TaxRate())
				return nil
			}
			rate, err := parseAmount(args[0])
			if err != nil {
				return fmt.Errorf("rate: %w", err)
			}
			return a.ledger.SetTaxRate(rate)
		},
	}
}

func rateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rate",
		Short: "Show the effective exchange rate and its source",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			st := a.resolver.Resolve(cmd.Context())
			if st.Rate == nil {
				fmt.Printf("no rate available (%s→%s); set one with: divledger rate set VALUE\n",
					a.cfg.Currency.Base, a.cfg.Currency.Quote)
				return nil
			}
			fmt.Printf("1 %s = %s %s (%s)\n", a.cfg.Currency.Base, commas(*st.Rate), a.cfg.Currency.Quote, st.Source)
			return nil
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "set VALUE",
		Short: "Store a manual fallback rate",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			rate, err := parseAmount(args[0])
			if err != nil {
				return fmt.Errorf("rate: %w", err)
			}
			return a.resolver.SetManualRate(rate)
		},
	})
	return cmd
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Render the valuated portfolio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			st := a.resolver.Resolve(cmd.Context())
			res := a.ledger.Valuate(st.Rate)
			renderStatus(os.Stdout, res, st, a.ledger.Target(), a.ledger.TaxRate(),
				a.cfg.Currency.Base, a.cfg.Currency.Quote)
			return nil
		},
	}
}

func snapshotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Manage portfolio snapshots (max 10, most recent first)",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "save [NAME]",
		Short: "Freeze the current valuation as a named snapshot",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			name := ""
			if len(args) == 1 {
				name = args[0]
			}
			// Rate and tax are resolved once, here, and baked into the record.
			st := a.resolver.Resolve(cmd.Context())
			frozen := valuation.FreezeSnapshot(a.ledger.Holdings(), valuation.Inputs{
				Rate:           st.Rate,
				TaxRatePercent: a.ledger.TaxRate(),
				Target:         a.ledger.Target(),
			})
			snap, err := a.archive.Create(name, frozen)
			if err != nil {
				return err
			}
			fmt.Printf("saved snapshot %s: %s\n", snap.ID, snap.Name)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "ls",
		Short: "List snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			renderSnapshotList(os.Stdout, a.archive.List())
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "show ID",
		Short: "Show a snapshot's frozen holdings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			for _, s := range a.archive.List() {
				if s.ID == args[0] {
					renderSnapshot(os.Stdout, s, a.cfg.Currency.Base, a.cfg.Currency.Quote)
					return nil
				}
			}
			return fmt.Errorf("snapshot %s not found", args[0])
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "rename ID NAME",
		Short: "Rename a snapshot",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			return a.archive.Rename(args[0], args[1])
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "rm ID",
		Short: "Delete a snapshot",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()
			return a.archive.Delete(args[0])
		},
	})
	return cmd
}

func trackCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "track",
		Short: "Run the watch-set refresh daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			tr := tracker.New(ctx, a.ledger)
			if err := tr.Register(a.cfg.Schedule.RefreshCron); err != nil {
				return err
			}
			tr.Start()
			defer tr.Stop()

			if os.Getenv("RUN_ON_START") == "true" {
				log.Println("[INFO] RUN_ON_START enabled, refreshing now")
				go tr.RunNow()
			}

			log.Println("[INFO] divledger tracker is running. Press Ctrl+C to stop.")
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			<-sigCh
			log.Println("[INFO] shutdown signal received, stopping...")
			return nil
		},
	}
}
