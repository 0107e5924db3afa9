package tracker

import (
	"context"
	"fmt"
	"log"

	"github.com/robfig/cron/v3"

	"DividendLedger/internal/ledger"
)

// Tracker periodically refreshes market data for every watched ticker, keeping
// the watch-set's last-known price and dividend current while the daemon runs.
type Tracker struct {
	Cron   *cron.Cron
	Ledger *ledger.Ledger
	Ctx    context.Context
}

// New creates a Tracker.
func New(ctx context.Context, l *ledger.Ledger) *Tracker {
	return &Tracker{
		Cron:   cron.New(cron.WithSeconds()),
		Ledger: l,
		Ctx:    ctx,
	}
}

// Register schedules the refresh task.
func (t *Tracker) Register(refreshCron string) error {
	if _, err := t.Cron.AddFunc(refreshCron, t.refreshTask); err != nil {
		return fmt.Errorf("register refresh task: %w", err)
	}
	return nil
}

// Start starts the cron scheduler.
func (t *Tracker) Start() {
	t.Cron.Start()
	log.Println("[INFO] tracker started")
}

// Stop stops the cron scheduler gracefully.
func (t *Tracker) Stop() {
	t.Cron.Stop()
	log.Println("[INFO] tracker stopped")
}

// RunNow executes the refresh task immediately (for manual trigger / RUN_ON_START).
func (t *Tracker) RunNow() {
	t.refreshTask()
}

func (t *Tracker) refreshTask() {
	if t.Ctx.Err() != nil {
		return
	}
	watched := t.Ledger.WatchSet()
	if len(watched) == 0 {
		return
	}
	log.Printf("[INFO] refreshing %d watched tickers", len(watched))
	t.Ledger.RefreshAll(t.Ctx)
}
