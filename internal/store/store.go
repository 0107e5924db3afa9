package store

// Persisted state layout: partition and logical key names shared by every
// component. Each key is independently readable and writable; there are no
// cross-partition transaction guarantees.
const (
	PartPortfolio = "portfolio"
	PartTickers   = "tickers"
	PartSettings  = "settings"
	PartStatus    = "status"

	KeyHoldings   = "holdings"
	KeyWatchlist  = "watchlist"
	KeyTarget     = "target_investment"
	KeyManualRate = "manual_rate"
	KeyTaxRate    = "tax_rate"
	KeySnapshots  = "snapshots"
)

// Tier is one persistence backend. Values are opaque JSON blobs keyed by a named
// partition and a logical key within it.
type Tier interface {
	Put(partition, key string, value []byte) error
	Get(partition, key string) ([]byte, bool, error)
	Delete(partition, key string) error
	Close() error
}

// Transactional is the primary tier. Recreate discards the backing database entirely
// and rebuilds it with the current schema; the dual store invokes it to self-heal
// after a structural failure.
type Transactional interface {
	Tier
	Recreate() error
}
