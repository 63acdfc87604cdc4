package chainstate

import "time"

// CacheView is the workhorse of this package: a StateView that is also
// a BackedView, holding five dirty-tracked maps over its base.  It
// supports lazy hydration from the base on miss, point mutation through
// a scoped Modifier, and an atomic upward flush (BatchWrite) plus a
// downward flush that drains into the immediate base.
//
// A CacheView is not safe for concurrent use; callers serialize access
// externally (the host system's chain-state lock), since lazy
// hydration mutates the cache maps even on reads.
type CacheView struct {
	*BackedView

	cfg Config

	coins      map[Hash]*coinCacheEntry
	anchors    map[Hash]*anchorCacheEntry
	nullifiers map[Hash]*nullifierCacheEntry
	sidechains map[Hash]*sidechainCacheEntry
	events     map[Height]*eventsCacheEntry

	bestBlockHash   Hash
	bestBlockKnown  bool
	bestAnchorRoot  Hash
	bestAnchorKnown bool

	cachedUsage uint64

	hasModifier bool

	lastFlush time.Time
}

// NewCacheView constructs a CacheView layered over base.
func NewCacheView(base StateView, cfg Config) *CacheView {
	return &CacheView{
		BackedView: NewBackedView(base),
		cfg:        cfg,
		coins:      make(map[Hash]*coinCacheEntry),
		anchors:    make(map[Hash]*anchorCacheEntry),
		nullifiers: make(map[Hash]*nullifierCacheEntry),
		sidechains: make(map[Hash]*sidechainCacheEntry),
		events:     make(map[Height]*eventsCacheEntry),
	}
}

// ---------------------------------------------------------------------
// Coins
// ---------------------------------------------------------------------

// fetchCoinEntry returns the local cache entry for id, hydrating it
// from the base on a local miss.  A base hit is installed as a
// DEFAULT entry (no flags set); if the fetched value is already
// pruned, it is marked FRESH since this layer now knows the base has
// nothing useful to keep for it.
func (v *CacheView) fetchCoinEntry(id Hash) *coinCacheEntry {
	if e, ok := v.coins[id]; ok {
		return e
	}
	base, ok := v.BackedView.GetCoins(id)
	e := &coinCacheEntry{}
	if ok {
		log.Tracef("hydrating coin entry %s from base", id)
		e.entry = base
		if base.IsPruned() {
			e.flags = FlagFresh
		}
	} else {
		return nil
	}
	v.coins[id] = e
	v.cachedUsage += e.entry.size()
	return e
}

// GetCoins returns the coin entry for id, if any.
func (v *CacheView) GetCoins(id Hash) (*CoinEntry, bool) {
	e := v.fetchCoinEntry(id)
	if e == nil {
		return nil, false
	}
	return e.entry, true
}

// HaveCoins reports whether a non-pruned coin entry exists for id.
func (v *CacheView) HaveCoins(id Hash) bool {
	e := v.fetchCoinEntry(id)
	return e != nil && !e.entry.IsPruned()
}

// ModifyCoins returns a Modifier scoped to a single mutable borrow of
// the coin entry for id, creating a blank entry if none exists.  It
// asserts no other Modifier is currently live on this view.
func (v *CacheView) ModifyCoins(id Hash) *Modifier {
	assert(!v.hasModifier, "ModifyCoins called while another Modifier is live")

	e, existed := v.coins[id]
	if !existed {
		base, ok := v.BackedView.GetCoins(id)
		e = &coinCacheEntry{entry: &CoinEntry{FirstBwtPos: UnsetPos}}
		if ok {
			e.entry = base
			if base.IsPruned() {
				e.flags = FlagFresh
			}
		} else {
			e.flags = FlagFresh
		}
		v.coins[id] = e
	}
	e.flags |= FlagDirty

	v.hasModifier = true
	return &Modifier{view: v, key: id, entry: e, oldSize: e.entry.size()}
}

// releaseModifier is called by Modifier.Close to run the drop sequence:
// cleanup, usage accounting, FRESH+pruned erase, then release the
// exclusion latch.
func (v *CacheView) releaseModifier(m *Modifier) {
	assert(v.hasModifier, "Modifier release without a live Modifier")

	m.entry.entry.Cleanup()
	newSize := m.entry.entry.size()
	v.cachedUsage += newSize - m.oldSize

	if m.entry.flags.fresh() && m.entry.entry.IsPruned() {
		delete(v.coins, m.key)
	}

	v.hasModifier = false
}

// ---------------------------------------------------------------------
// Anchors
// ---------------------------------------------------------------------

// GetBestAnchor returns the root of the anchor currently at the top of
// the chain state, lazily fetching it from the base on first read.
func (v *CacheView) GetBestAnchor() Hash {
	if !v.bestAnchorKnown {
		v.bestAnchorRoot = v.BackedView.GetBestAnchor()
		v.bestAnchorKnown = true
	}
	return v.bestAnchorRoot
}

func (v *CacheView) fetchAnchorEntry(root Hash) *anchorCacheEntry {
	if e, ok := v.anchors[root]; ok {
		return e
	}
	tree, ok := v.BackedView.GetAnchorAt(root)
	if !ok {
		return nil
	}
	e := &anchorCacheEntry{tree: tree, entered: true}
	v.anchors[root] = e
	return e
}

// GetAnchorAt returns the tree stored at root, and whether it is
// present and currently entered (part of the chain state).
func (v *CacheView) GetAnchorAt(root Hash) (*AnchorTree, bool) {
	e := v.fetchAnchorEntry(root)
	if e == nil {
		return nil, false
	}
	if !e.entered {
		return nil, false
	}
	return e.tree, true
}

// PushAnchor installs tree as the new best anchor.  If tree's root
// already equals the current best anchor, this is a no-op.
func (v *CacheView) PushAnchor(tree *AnchorTree) {
	root := tree.Root()
	if root == v.GetBestAnchor() {
		return
	}
	e, ok := v.anchors[root]
	if !ok {
		e = &anchorCacheEntry{}
		v.anchors[root] = e
	}
	e.tree = tree
	e.entered = true
	e.flags |= FlagDirty
	v.bestAnchorRoot = root
	v.bestAnchorKnown = true
}

// PopAnchor restores newRoot as the best anchor, marking the anchor
// being popped away as no-longer-entered.  If newRoot already equals
// the current best anchor, this is a no-op (a block may add no
// shielded transactions at all, in which case restoring the same root
// on disconnect is a no-op).
func (v *CacheView) PopAnchor(newRoot Hash) error {
	cur := v.GetBestAnchor()
	if newRoot == cur {
		return nil
	}
	// Hydrate the current root so its tree is materialized locally
	// before being marked not-entered.
	e := v.fetchAnchorEntry(cur)
	if e == nil {
		return ruleErrorf(ErrNotFound, "pop_anchor: no anchor entry for current root %s", cur)
	}
	e.entered = false
	e.flags |= FlagDirty
	v.bestAnchorRoot = newRoot
	v.bestAnchorKnown = true
	return nil
}

// ---------------------------------------------------------------------
// Nullifiers
// ---------------------------------------------------------------------

// GetNullifier reports whether nullifier n has been spent.  A miss is
// cached as a negative DEFAULT entry so repeated lookups of the same
// absent nullifier don't keep hitting the base.
func (v *CacheView) GetNullifier(n Hash) bool {
	if e, ok := v.nullifiers[n]; ok {
		return e.entered
	}
	entered := v.BackedView.GetNullifier(n)
	v.nullifiers[n] = &nullifierCacheEntry{entered: entered}
	return entered
}

// SetNullifier marks nullifier n as spent (or unspent, on disconnect).
func (v *CacheView) SetNullifier(n Hash, spent bool) {
	e, ok := v.nullifiers[n]
	if !ok {
		e = &nullifierCacheEntry{}
		v.nullifiers[n] = e
	}
	e.entered = spent
	e.flags |= FlagDirty
}

// ---------------------------------------------------------------------
// Best block
// ---------------------------------------------------------------------

// GetBestBlock returns the hash of the block this view's state
// reflects, lazily fetched from the base on first read.
func (v *CacheView) GetBestBlock() Hash {
	if !v.bestBlockKnown {
		v.bestBlockHash = v.BackedView.GetBestBlock()
		v.bestBlockKnown = true
	}
	return v.bestBlockHash
}

// SetBestBlock updates the block hash this view's state reflects.
func (v *CacheView) SetBestBlock(hash Hash) {
	v.bestBlockHash = hash
	v.bestBlockKnown = true
}

// ---------------------------------------------------------------------
// Diagnostics (supplemented: GetCacheSize, DynamicMemoryUsage, Stats)
// ---------------------------------------------------------------------

// GetCacheSize returns the number of entries currently held across all
// five cache maps.
func (v *CacheView) GetCacheSize() int {
	return len(v.coins) + len(v.anchors) + len(v.nullifiers) + len(v.sidechains) + len(v.events)
}

// DynamicMemoryUsage returns the lazily maintained estimate of dynamic
// memory consumed by cached coin entries.
func (v *CacheView) DynamicMemoryUsage() uint64 {
	return v.cachedUsage
}

// GetStats reports aggregate counts for operational visibility.
func (v *CacheView) GetStats() (Stats, bool) {
	coinCount := 0
	for _, e := range v.coins {
		if !e.entry.IsPruned() {
			coinCount++
		}
	}
	scCount := 0
	for _, e := range v.sidechains {
		if e.state != StateErased {
			scCount++
		}
	}
	return Stats{
		CoinCount:      uint64(coinCount),
		SidechainCount: uint64(scCount),
		BestBlockHash:  v.GetBestBlock(),
		BestAnchorRoot: v.GetBestAnchor(),
	}, true
}

// ShouldFlush reports whether this view has grown past the
// configured size or time thresholds and should be flushed to its
// base soon, mirroring the cache-sizing knobs dcrd's UtxoCache exposes
// via shouldFlush/MaybeFlush.
func (v *CacheView) ShouldFlush(now time.Time) bool {
	if v.cfg.MaxCacheEntries > 0 && v.GetCacheSize() > v.cfg.MaxCacheEntries {
		return true
	}
	if v.cfg.FlushPeriod > 0 && !v.lastFlush.IsZero() && now.Sub(v.lastFlush) > v.cfg.FlushPeriod {
		return true
	}
	return false
}
