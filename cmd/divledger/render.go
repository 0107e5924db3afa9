package main

import (
	"fmt"
	"io"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/shopspring/decimal"

	"DividendLedger/internal/model"
	"DividendLedger/internal/valuation"
)

// commas renders an amount with thousands separators, e.g. 1,234,567.89.
func commas(d decimal.Decimal) string {
	f, _ := d.Float64()
	return humanize.CommafWithDigits(f, 2)
}

// commas4 keeps four decimal places for per-share dividend figures.
func commas4(d decimal.Decimal) string {
	f, _ := d.Float64()
	return humanize.CommafWithDigits(f, 4)
}

func newTable(w io.Writer) table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleColoredDark)
	tw.Style().Options.DrawBorder = false
	tw.Style().Options.SeparateRows = false
	tw.Style().Options.SeparateColumns = false
	return tw
}

func renderWatchSet(w io.Writer, watch []model.WatchEntry, base string) {
	if len(watch) == 0 {
		fmt.Fprintln(w, "watch-set is empty; add a ticker with: divledger watch add TICKER")
		return
	}
	tw := newTable(w)
	tw.AppendHeader(table.Row{"TICKER", "PRICE (" + base + ")", "MONTHLY DIV/SHARE"})
	for _, e := range watch {
		price, div := "-", "-"
		if e.LastKnownPrice != nil {
			price = commas(*e.LastKnownPrice)
		}
		if e.LastKnownDividend != nil {
			div = commas4(*e.LastKnownDividend)
		}
		tw.AppendRow(table.Row{e.Ticker, price, div})
	}
	tw.Render()
}

func renderStatus(w io.Writer, res valuation.Result, rate model.RateState, target, tax decimal.Decimal, base, quote string) {
	if len(res.Positions) == 0 {
		fmt.Fprintln(w, "portfolio is empty; admit a holding with: divledger add TICKER PRICE QTY DIVIDEND")
		return
	}

	tw := newTable(w)
	tw.AppendHeader(table.Row{
		"#", "TICKER", "PRICE", "QTY", "INVESTED (" + base + ")",
		"WEIGHT", "DIV (" + base + ")", "DIV (" + quote + ")", "YIELD",
	})
	for i, p := range res.Positions {
		tw.AppendRow(table.Row{
			i, p.Ticker, commas(p.Price), humanize.Comma(p.Quantity), commas(p.InvestedAmount),
			fmt.Sprintf("%s%%", p.Weight.Mul(decimal.NewFromInt(100)).Round(1)),
			commas(p.MonthlyDividend), commas(p.QuoteDividend),
			fmt.Sprintf("%s%%", p.YieldPercent.Round(2)),
		})
	}
	tw.AppendFooter(table.Row{
		"", "TOTAL", "", humanize.Comma(res.TotalQuantity), commas(res.TotalInvested),
		fmt.Sprintf("%s%%", res.TotalWeight.Mul(decimal.NewFromInt(100)).Round(1)),
		commas(res.TotalMonthlyDividend), commas(res.TotalQuoteDividend), "",
	})
	tw.Render()

	fmt.Fprintf(w, "\ntarget: %s %s", commas(target), base)
	if rate.Rate != nil {
		fmt.Fprintf(w, " (%s %s)", commas(res.TargetQuote), quote)
	}
	fmt.Fprintln(w)
	fmt.Fprintf(w, "remaining: %s %s (%s%% of target)\n",
		commas(res.RemainingInvestment), base,
		res.RemainingWeight.Mul(decimal.NewFromInt(100)).Round(1))

	switch rate.Source {
	case model.RateNone:
		fmt.Fprintf(w, "rate: unavailable; %s figures omitted\n", quote)
	default:
		fmt.Fprintf(w, "rate: 1 %s = %s %s (%s), dividend tax %s%%\n",
			base, commas(*rate.Rate), quote, rate.Source, tax)
	}
	if res.IsOverweight {
		fmt.Fprintln(w, text.FgRed.Sprint("warning: holdings exceed 100% of the target investment"))
	}
}

func renderSnapshotList(w io.Writer, snaps []model.Snapshot) {
	if len(snaps) == 0 {
		fmt.Fprintln(w, "no snapshots; save one with: divledger snapshot save [NAME]")
		return
	}
	tw := newTable(w)
	tw.AppendHeader(table.Row{"ID", "NAME", "CREATED", "HOLDINGS"})
	for _, s := range snaps {
		tw.AppendRow(table.Row{s.ID, s.Name, s.CreatedAt.Format("2006-01-02 15:04:05"), len(s.Holdings)})
	}
	tw.Render()
}

func renderSnapshot(w io.Writer, s model.Snapshot, base, quote string) {
	fmt.Fprintf(w, "%s: %s (%s)\n", s.ID, s.Name, s.CreatedAt.Format("2006-01-02 15:04:05"))
	tw := newTable(w)
	tw.AppendHeader(table.Row{
		"TICKER", "PRICE", "QTY", "INVESTED (" + base + ")", "DIV/SHARE", "DIV (" + quote + ")",
	})
	var invested, quoteDiv decimal.Decimal
	for _, h := range s.Holdings {
		tw.AppendRow(table.Row{
			h.Ticker, commas(h.Price), humanize.Comma(h.Quantity),
			commas(h.InvestedAmount), commas4(h.DividendPerShare), commas(h.QuoteDividend),
		})
		invested = invested.Add(h.InvestedAmount)
		quoteDiv = quoteDiv.Add(h.QuoteDividend)
	}
	tw.AppendFooter(table.Row{"TOTAL", "", "", commas(invested), "", commas(quoteDiv)})
	tw.Render()
}
