package chainstate

// EntryFlags is the diff-versus-base bitset used by coin and anchor
// cache entries.  Unlike the sidechain/event CacheState below, FRESH
// and DIRTY are independent bits here: the source this package is
// grounded on alternates between OR-ing DIRTY onto an already-FRESH
// coin entry and treating FRESH/DIRTY as mutually exclusive for
// sidechain entries, and that distinction is preserved deliberately —
// collapsing it into one enum would lose information BatchWrite needs.
type EntryFlags uint8

const (
	// FlagFresh marks that this layer knows its base has no entry (or
	// only a pruned one) for this key, so a pruned/empty local entry
	// can be dropped entirely rather than propagated upward.
	FlagFresh EntryFlags = 1 << iota

	// FlagDirty marks that this layer holds a change that must be
	// written upward on the next batch_write/flush.
	FlagDirty
)

func (f EntryFlags) fresh() bool { return f&FlagFresh != 0 }
func (f EntryFlags) dirty() bool { return f&FlagDirty != 0 }

// CacheState is the mutually-exclusive diff-versus-base tag used by
// sidechain and sidechain-event cache entries.
type CacheState uint8

const (
	// StateDefault means the entry was loaded from the base and is
	// unchanged.
	StateDefault CacheState = iota

	// StateFresh means this layer knows the base has no entry for this
	// key.
	StateFresh

	// StateDirty means this layer holds a change to write upward.
	StateDirty

	// StateErased means this layer logically deletes the base's entry.
	StateErased
)

// coinCacheEntry is the value type stored in CacheView's coins map.
type coinCacheEntry struct {
	entry *CoinEntry
	flags EntryFlags
}

// anchorCacheEntry is the value type stored in CacheView's anchors map.
type anchorCacheEntry struct {
	tree    *AnchorTree
	entered bool
	flags   EntryFlags
}

// nullifierCacheEntry is the value type stored in CacheView's
// nullifiers map.  Only FlagDirty is ever meaningful here; FlagFresh is
// unused since nullifier negatives are cached as plain DEFAULT entries.
type nullifierCacheEntry struct {
	entered bool
	flags   EntryFlags
}

// sidechainCacheEntry is the value type stored in CacheView's
// sidechains map.
type sidechainCacheEntry struct {
	sc    *Sidechain
	state CacheState
}

// eventsCacheEntry is the value type stored in CacheView's events map.
type eventsCacheEntry struct {
	events *SidechainEvents
	state  CacheState
}
