package chainstate

import "time"

// buildBatchWriteSet collects every locally-dirty (or fresh/erased, for
// the single-flag maps) entry into the form BatchWrite expects from a
// child layer.
func (v *CacheView) buildBatchWriteSet() *BatchWriteSet {
	set := &BatchWriteSet{
		Coins:           make(map[Hash]*CoinEntry),
		CoinFlags:       make(map[Hash]EntryFlags),
		BestBlockHash:   v.GetBestBlock(),
		BestAnchorRoot:  v.GetBestAnchor(),
		Anchors:         make(map[Hash]*AnchorTree),
		AnchorEntered:   make(map[Hash]bool),
		AnchorFlags:     make(map[Hash]EntryFlags),
		Nullifiers:      make(map[Hash]bool),
		NullifierFlags:  make(map[Hash]EntryFlags),
		Sidechains:      make(map[Hash]*Sidechain),
		SidechainStates: make(map[Hash]CacheState),
		Events:          make(map[Height]*SidechainEvents),
		EventStates:     make(map[Height]CacheState),
	}
	for id, e := range v.coins {
		if e.flags.dirty() {
			set.Coins[id] = e.entry
			set.CoinFlags[id] = e.flags
		}
	}
	for root, e := range v.anchors {
		if e.flags.dirty() {
			set.Anchors[root] = e.tree
			set.AnchorEntered[root] = e.entered
			set.AnchorFlags[root] = e.flags
		}
	}
	for n, e := range v.nullifiers {
		if e.flags.dirty() {
			set.Nullifiers[n] = e.entered
			set.NullifierFlags[n] = e.flags
		}
	}
	for id, e := range v.sidechains {
		if e.state != StateDefault {
			set.Sidechains[id] = e.sc
			set.SidechainStates[id] = e.state
		}
	}
	for h, e := range v.events {
		if e.state != StateDefault {
			set.Events[h] = e.events
			set.EventStates[h] = e.state
		}
	}
	return set
}

// BatchWrite applies a child layer's drained state atomically into v.
// It is the receiving side of an upward flush; the child's own maps are
// conceptually drained during the call, since once the child has
// finished propagating upward it has no further use for the entries
// (its own Flush clears them immediately afterward).
func (v *CacheView) BatchWrite(set *BatchWriteSet) error {
	assert(!v.hasModifier, "BatchWrite called while a Modifier is live")

	if err := v.applyCoins(set); err != nil {
		return err
	}
	v.applyAnchors(set)
	v.applyNullifiers(set)
	if err := v.applySidechains(set); err != nil {
		return err
	}
	if err := v.applyEvents(set); err != nil {
		return err
	}

	v.bestAnchorRoot = set.BestAnchorRoot
	v.bestAnchorKnown = true
	v.bestBlockHash = set.BestBlockHash
	v.bestBlockKnown = true
	return nil
}

func (v *CacheView) applyCoins(set *BatchWriteSet) error {
	for id, childEntry := range set.Coins {
		childFlags := set.CoinFlags[id]
		parent, present := v.coins[id]

		switch {
		case !present && !childEntry.IsPruned():
			assert(childFlags.fresh(), "batch_write: new non-pruned coin entry without FRESH child flag")
			v.coins[id] = &coinCacheEntry{entry: childEntry, flags: FlagDirty | FlagFresh}

		case !present && childEntry.IsPruned():
			// Nothing below has this key; a pruned record needs no
			// representation here either.

		case present && parent.flags.fresh() && childEntry.IsPruned():
			delete(v.coins, id)

		default:
			keepFresh := present && parent.flags.fresh()
			flags := FlagDirty
			if keepFresh {
				flags |= FlagFresh
			}
			v.coins[id] = &coinCacheEntry{entry: childEntry, flags: flags}
		}
	}
	return nil
}

func (v *CacheView) applyAnchors(set *BatchWriteSet) {
	for root, entered := range set.AnchorEntered {
		parent, present := v.anchors[root]
		if !present {
			v.anchors[root] = &anchorCacheEntry{
				tree:    set.Anchors[root],
				entered: entered,
				flags:   FlagDirty,
			}
			continue
		}
		parent.entered = entered
		parent.flags |= FlagDirty
	}
}

func (v *CacheView) applyNullifiers(set *BatchWriteSet) {
	for n, entered := range set.Nullifiers {
		parent, present := v.nullifiers[n]
		if !present {
			v.nullifiers[n] = &nullifierCacheEntry{entered: entered, flags: FlagDirty}
			continue
		}
		if parent.entered != entered {
			parent.entered = entered
			parent.flags |= FlagDirty
		}
	}
}

func (v *CacheView) applySidechains(set *BatchWriteSet) error {
	for id, childState := range set.SidechainStates {
		parent, present := v.sidechains[id]
		parentState := StateDefault
		if present {
			parentState = parent.state
		}

		switch childState {
		case StateFresh:
			if parentState != StateDefault {
				return ruleErrorf(ErrInconsistent, "batch_write: FRESH sidechain %s into non-empty parent", id)
			}
			v.sidechains[id] = &sidechainCacheEntry{sc: set.Sidechains[id], state: StateFresh}

		case StateDirty:
			if parentState == StateFresh {
				v.sidechains[id] = &sidechainCacheEntry{sc: set.Sidechains[id], state: StateFresh}
			} else {
				v.sidechains[id] = &sidechainCacheEntry{sc: set.Sidechains[id], state: StateDirty}
			}

		case StateErased:
			if parentState == StateFresh {
				delete(v.sidechains, id)
			} else {
				v.sidechains[id] = &sidechainCacheEntry{state: StateErased}
			}
		}
	}
	return nil
}

func (v *CacheView) applyEvents(set *BatchWriteSet) error {
	for h, childState := range set.EventStates {
		parent, present := v.events[h]
		parentState := StateDefault
		if present {
			parentState = parent.state
		}

		switch childState {
		case StateFresh:
			if parentState != StateDefault {
				return ruleErrorf(ErrInconsistent, "batch_write: FRESH events at height %d into non-empty parent", h)
			}
			v.events[h] = &eventsCacheEntry{events: set.Events[h], state: StateFresh}

		case StateDirty:
			if parentState == StateFresh {
				v.events[h] = &eventsCacheEntry{events: set.Events[h], state: StateFresh}
			} else {
				v.events[h] = &eventsCacheEntry{events: set.Events[h], state: StateDirty}
			}

		case StateErased:
			if parentState == StateFresh {
				delete(v.events, h)
			} else {
				v.events[h] = &eventsCacheEntry{state: StateErased}
			}
		}
	}
	return nil
}

// Flush drains this view's entire state into its immediate base via one
// BatchWrite call, then clears every local map and resets the cache's
// usage accounting.
func (v *CacheView) Flush(now time.Time) error {
	assert(!v.hasModifier, "Flush called while a Modifier is live")

	log.Debugf("flushing cache view: %d coins, %d anchors, %d nullifiers, %d sidechains, %d events",
		len(v.coins), len(v.anchors), len(v.nullifiers), len(v.sidechains), len(v.events))

	set := v.buildBatchWriteSet()
	if err := v.BackedView.BatchWrite(set); err != nil {
		return err
	}

	v.coins = make(map[Hash]*coinCacheEntry)
	v.anchors = make(map[Hash]*anchorCacheEntry)
	v.nullifiers = make(map[Hash]*nullifierCacheEntry)
	v.sidechains = make(map[Hash]*sidechainCacheEntry)
	v.events = make(map[Height]*eventsCacheEntry)
	v.cachedUsage = 0
	v.lastFlush = now
	return nil
}
