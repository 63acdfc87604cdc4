package chainstate

import "time"

// Config bundles the values a CacheView needs at construction that the
// source this package is modeled on keeps as process-wide globals
// (notably sc_coins_maturity, initialized once from chain parameters
// with a regtest override).  Modeling them as a value captured at
// construction instead of a mutable global makes every CacheView
// self-contained and safe to construct with different parameters in
// the same process, e.g. in tests exercising multiple networks.
type Config struct {
	// ScCoinMaturity is the number of blocks a newly created or
	// transferred sidechain amount must wait before it matures into
	// the sidechain's spendable balance.
	ScCoinMaturity Height

	// SafeguardMargin is the number of blocks past the end of an epoch
	// during which a certificate for that epoch may still arrive before
	// the sidechain is considered ceased.
	SafeguardMargin Height

	// CoinbaseMaturity is the number of blocks a coinbase output must
	// wait before it is spendable.
	CoinbaseMaturity Height

	// MaxCacheEntries bounds the number of entries, summed over all
	// five cache maps, a CacheView will hold before ShouldFlush
	// recommends flushing.  Zero means unbounded.
	MaxCacheEntries int

	// FlushPeriod bounds how long a CacheView may go after its last
	// Flush before ShouldFlush recommends another, independent of size.
	// A view that has never been flushed is not flushed on time alone.
	// Zero means time-based flushing is disabled.
	FlushPeriod time.Duration
}

// DefaultConfig returns reasonable defaults grounded on zend/Horizen's
// mainnet parameters: a two-block sidechain coin maturity, a two-block
// certificate safeguard margin typical of short-epoch test networks,
// and Bitcoin-style 100-block coinbase maturity. Production callers
// should override these from their own chain parameters.
func DefaultConfig() Config {
	return Config{
		ScCoinMaturity:   2,
		SafeguardMargin:  2,
		CoinbaseMaturity: 100,
		MaxCacheEntries:  50_000,
		FlushPeriod:      0,
	}
}
