package chainstate

// modifyEventsEntry returns (creating a blank one if necessary) the
// local cache entry for the sidechain events scheduled at height.  A
// newly created entry is marked FRESH, mirroring ModifyCoins: this
// layer now knows definitively whether the base has anything at this
// height.
func (v *CacheView) modifyEventsEntry(height Height) *eventsCacheEntry {
	if e, ok := v.events[height]; ok {
		return e
	}
	base, ok := v.BackedView.GetSidechainEvents(height)
	e := &eventsCacheEntry{}
	if ok {
		e.events = base.clone()
		e.state = StateDefault
	} else {
		e.events = NewSidechainEvents()
		e.state = StateFresh
	}
	v.events[height] = e
	return e
}

// insertMaturing schedules scId into the maturing set at height.
func (v *CacheView) insertMaturing(scId Hash, height Height) {
	e := v.modifyEventsEntry(height)
	e.events.Maturing[scId] = struct{}{}
	if e.state != StateFresh {
		e.state = StateDirty
	}
}

// insertCeasing schedules scId into the ceasing set at height.
func (v *CacheView) insertCeasing(scId Hash, height Height) {
	e := v.modifyEventsEntry(height)
	e.events.Ceasing[scId] = struct{}{}
	if e.state != StateFresh {
		e.state = StateDirty
	}
}

// removeMaturing cancels a previously scheduled maturing entry for scId
// at height.  The event entry must already exist; callers check
// HaveSidechainEvents first.  Emptying the set marks the entry ERASED,
// never DIRTY, regardless of its prior state.
func (v *CacheView) removeMaturing(scId Hash, height Height) {
	e := v.modifyEventsEntry(height)
	delete(e.events.Maturing, scId)
	if e.events.IsNull() {
		e.state = StateErased
	} else {
		e.state = StateDirty
	}
}

// removeCeasing cancels a previously scheduled ceasing entry for scId
// at height, with the same erase-when-empty discipline as removeMaturing.
func (v *CacheView) removeCeasing(scId Hash, height Height) {
	e := v.modifyEventsEntry(height)
	delete(e.events.Ceasing, scId)
	if e.events.IsNull() {
		e.state = StateErased
	} else {
		e.state = StateDirty
	}
}

// ---------------------------------------------------------------------
// Scheduling (block connect)
// ---------------------------------------------------------------------

// ScheduleSidechainEventCreation schedules the two events a sidechain
// creation output triggers: its creation value matures at
// creationHeight+ScCoinMaturity, and the sidechain is scheduled to
// cease at the end of its first epoch's safeguard window unless a
// certificate arrives first.
func (v *CacheView) ScheduleSidechainEventCreation(c CcOutCreation, creationHeight Height) error {
	sc, ok := v.GetSidechain(c.ScId)
	if !ok {
		return ruleErrorf(ErrNotFound, "schedule_sidechain_event: unknown sidechain %s for creation", c.ScId)
	}
	v.insertMaturing(c.ScId, creationHeight+v.cfg.ScCoinMaturity)
	nextCeasing := startHeightForEpoch(sc, 1) + v.cfg.SafeguardMargin
	v.insertCeasing(c.ScId, nextCeasing)
	return nil
}

// ScheduleSidechainEventForwardTransfer schedules a forward transfer's
// value to mature at height+ScCoinMaturity.
func (v *CacheView) ScheduleSidechainEventForwardTransfer(ft CcOutForwardTransfer, height Height) error {
	if !v.HaveSidechain(ft.ScId) {
		return ruleErrorf(ErrNotFound, "schedule_sidechain_event: unknown sidechain %s for forward transfer", ft.ScId)
	}
	v.insertMaturing(ft.ScId, height+v.cfg.ScCoinMaturity)
	return nil
}

// ScheduleSidechainEventBwtRequest schedules a backward-transfer
// request's value to mature at height+ScCoinMaturity.
func (v *CacheView) ScheduleSidechainEventBwtRequest(bt CcOutBwtRequest, height Height) error {
	if !v.HaveSidechain(bt.ScId) {
		return ruleErrorf(ErrNotFound, "schedule_sidechain_event: unknown sidechain %s for backward-transfer request", bt.ScId)
	}
	v.insertMaturing(bt.ScId, height+v.cfg.ScCoinMaturity)
	return nil
}

// ScheduleSidechainEventCert rolls a sidechain's ceasing schedule
// forward by one epoch after cert is accepted as its top-quality
// certificate: the ceasing event at the epoch just closed is removed
// (or, if already absent, treated as an idempotent re-schedule when
// the next ceasing height is already in place) and a new ceasing event
// is scheduled one withdrawal-epoch-length later.
func (v *CacheView) ScheduleSidechainEventCert(cert CertificateSource) error {
	sc, ok := v.GetSidechain(cert.ScId())
	if !ok {
		return ruleErrorf(ErrNotFound, "schedule_sidechain_event: unknown sidechain %s for certificate", cert.ScId())
	}
	curCeasing := startHeightForEpoch(sc, cert.Epoch()+1) + v.cfg.SafeguardMargin
	nextCeasing := curCeasing + sc.Creation.WithdrawalEpochLength

	if v.HaveSidechainEvents(curCeasing) {
		v.removeCeasing(cert.ScId(), curCeasing)
	} else if !v.HaveSidechainEvents(nextCeasing) {
		return ruleErrorf(ErrNotFound, "schedule_sidechain_event: sidechain %s missing scheduling at current ceasing height %d or next ceasing height %d",
			cert.ScId(), curCeasing, nextCeasing)
	} else {
		// Current ceasing height already cleared and the next one is
		// already scheduled: a duplicate re-schedule, treated as a
		// successful no-op.
		return nil
	}

	v.insertCeasing(cert.ScId(), nextCeasing)
	return nil
}

// ---------------------------------------------------------------------
// Cancellation (block disconnect) — exact inverses of the above
// ---------------------------------------------------------------------

// CancelSidechainEventCreation reverses ScheduleSidechainEventCreation.
func (v *CacheView) CancelSidechainEventCreation(c CcOutCreation, creationHeight Height) error {
	if !v.HaveSidechain(c.ScId) {
		return ruleErrorf(ErrNotFound, "cancel_sidechain_event: unknown sidechain %s for creation", c.ScId)
	}
	maturityHeight := creationHeight + v.cfg.ScCoinMaturity
	if v.HaveSidechainEvents(maturityHeight) {
		v.removeMaturing(c.ScId, maturityHeight)
	}

	sc, _ := v.GetSidechain(c.ScId)
	curCeasing := startHeightForEpoch(sc, 1) + v.cfg.SafeguardMargin
	if !v.HaveSidechainEvents(curCeasing) {
		return ruleErrorf(ErrNotFound, "cancel_sidechain_event: sidechain %s missing current ceasing height %d", c.ScId, curCeasing)
	}
	v.removeCeasing(c.ScId, curCeasing)
	return nil
}

// CancelSidechainEventForwardTransfer reverses
// ScheduleSidechainEventForwardTransfer.  A missing maturity entry is
// not an error: concurrent cancellation of the same height can have
// already erased it.
func (v *CacheView) CancelSidechainEventForwardTransfer(ft CcOutForwardTransfer, height Height) error {
	maturityHeight := height + v.cfg.ScCoinMaturity
	if !v.HaveSidechainEvents(maturityHeight) {
		return nil
	}
	v.removeMaturing(ft.ScId, maturityHeight)
	return nil
}

// CancelSidechainEventBwtRequest reverses
// ScheduleSidechainEventBwtRequest, with the same missing-entry
// tolerance as CancelSidechainEventForwardTransfer.
func (v *CacheView) CancelSidechainEventBwtRequest(bt CcOutBwtRequest, height Height) error {
	maturityHeight := height + v.cfg.ScCoinMaturity
	if !v.HaveSidechainEvents(maturityHeight) {
		return nil
	}
	v.removeMaturing(bt.ScId, maturityHeight)
	return nil
}

// CancelSidechainEventCert reverses ScheduleSidechainEventCert: the
// ceasing event it scheduled one epoch ahead is removed and the one it
// may have cleared is restored.
func (v *CacheView) CancelSidechainEventCert(cert CertificateSource) error {
	sc, ok := v.GetSidechain(cert.ScId())
	if !ok {
		return ruleErrorf(ErrNotFound, "cancel_sidechain_event: unknown sidechain %s for certificate", cert.ScId())
	}
	curCeasing := startHeightForEpoch(sc, cert.Epoch()+2) + v.cfg.SafeguardMargin
	prevCeasing := curCeasing - sc.Creation.WithdrawalEpochLength

	if !v.HaveSidechainEvents(curCeasing) {
		if !v.HaveSidechainEvents(prevCeasing) {
			return ruleErrorf(ErrNotFound, "cancel_sidechain_event: sidechain %s missing scheduling at current ceasing height %d or previous ceasing height %d",
				cert.ScId(), curCeasing, prevCeasing)
		}
		return nil
	}
	v.removeCeasing(cert.ScId(), curCeasing)
	v.insertCeasing(cert.ScId(), prevCeasing)
	return nil
}

// ---------------------------------------------------------------------
// Handling and reverting (block connect / disconnect)
// ---------------------------------------------------------------------

// HandleSidechainEvents applies every maturity and ceasing event
// scheduled at height: matured amounts move from each sidechain's
// immature-amount schedule into its balance, and ceasing sidechains
// transition to CEASED with their top certificate's backward transfers
// nullified.  undo is populated so RevertSidechainEvents can reverse
// this exactly.  The event entry at height is always erased afterward,
// win or lose.
func (v *CacheView) HandleSidechainEvents(height Height, undo *BlockUndo) error {
	if !v.HaveSidechainEvents(height) {
		return nil
	}
	events, _ := v.GetSidechainEvents(height)

	for maturingScId := range events.Maturing {
		e := v.fetchSidechainEntry(maturingScId)
		assert(e != nil && e.state != StateErased, "handle_sidechain_events: maturing sidechain missing from view")
		sc := e.sc
		amount, ok := sc.ImmatureAmounts[height]
		assert(ok, "handle_sidechain_events: no immature amount scheduled at this height")

		sc.Balance += amount
		scUndo := undo.sidechainUndo(maturingScId)
		scUndo.MaturedAmount = amount
		scUndo.Sections |= SectionMaturedAmounts
		delete(sc.ImmatureAmounts, height)
		if e.state != StateFresh {
			e.state = StateDirty
		}
	}

	for ceasingScId := range events.Ceasing {
		e := v.fetchSidechainEntry(ceasingScId)
		assert(e != nil && e.state != StateErased, "handle_sidechain_events: ceasing sidechain missing from view")
		sc := e.sc

		sc.CurrentState = StateCeased
		if e.state != StateFresh {
			e.state = StateDirty
		}
		scUndo := undo.sidechainUndo(ceasingScId)
		scUndo.Sections |= SectionCeasedCertData

		if sc.LastTopQualityCertReferencedEpoch == NoEpoch {
			assert(sc.LastTopQualityCertHash == ZeroHash, "handle_sidechain_events: no referenced epoch but a top certificate hash is set")
			continue
		}
		v.NullifyBackwardTransfers(sc.LastTopQualityCertHash, &scUndo.CeasedBwts)
	}

	ee := v.modifyEventsEntry(height)
	ee.state = StateErased
	return nil
}

// RevertSidechainEvents reverses HandleSidechainEvents using the
// per-sidechain undo sections it populated: matured amounts are moved
// back from balance into the immature-amount schedule, and ceased
// sidechains are restored to ALIVE with their backward transfers
// un-nullified.  The event entry at height is recreated FRESH (only if
// the result is non-null), since HandleSidechainEvents always erased
// it.
func (v *CacheView) RevertSidechainEvents(undo *BlockUndo, height Height) error {
	if v.HaveSidechainEvents(height) {
		return ruleErrorf(ErrInconsistent, "revert_sidechain_events: event entry already exists at height %d", height)
	}

	recreated := NewSidechainEvents()

	for scId, scUndo := range undo.PerSidechain {
		if !scUndo.Sections.has(SectionMaturedAmounts) {
			continue
		}
		e := v.fetchSidechainEntry(scId)
		if e == nil || e.state == StateErased {
			return ruleErrorf(ErrNotFound, "revert_sidechain_events: sidechain %s not found", scId)
		}
		sc := e.sc

		amount := scUndo.MaturedAmount
		if amount > 0 {
			if sc.Balance < amount {
				return ruleErrorf(ErrInsufficientBalance, "revert_sidechain_events: reverting matured amount would drive sidechain %s balance negative", scId)
			}
			sc.ImmatureAmounts[height] += amount
			sc.Balance -= amount
			if e.state != StateFresh {
				e.state = StateDirty
			}
		}
		recreated.Maturing[scId] = struct{}{}
	}

	for scId, scUndo := range undo.PerSidechain {
		if !scUndo.Sections.has(SectionCeasedCertData) {
			continue
		}
		e := v.fetchSidechainEntry(scId)
		if e == nil || e.state == StateErased {
			return ruleErrorf(ErrNotFound, "revert_sidechain_events: sidechain %s not found", scId)
		}
		sc := e.sc

		if sc.LastTopQualityCertReferencedEpoch != NoEpoch {
			if err := v.RestoreBackwardTransfers(sc.LastTopQualityCertHash, scUndo.CeasedBwts); err != nil {
				return err
			}
		}
		recreated.Ceasing[scId] = struct{}{}
		sc.CurrentState = StateAlive
		if e.state != StateFresh {
			e.state = StateDirty
		}
	}

	if !recreated.IsNull() {
		v.events[height] = &eventsCacheEntry{events: recreated, state: StateFresh}
	}
	return nil
}

// ---------------------------------------------------------------------
// Backward-transfer nullification (ceasing) and restoration (revert)
// ---------------------------------------------------------------------

// NullifyBackwardTransfers spends every backward-transfer output of the
// coin entry belonging to certHash, recording each in outNullified so a
// later reorg can restore them exactly.  If the entry has no coins at
// all (the certificate had neither change nor backward transfers),
// this is a no-op.  The undo record for the spend that prunes the
// entry entirely additionally carries the entry's provenance, since
// restoring it later must reconstruct the whole entry, not just one
// output.
func (v *CacheView) NullifyBackwardTransfers(certHash Hash, outNullified *[]OutputUndo) {
	if certHash == ZeroHash {
		return
	}
	if !v.HaveCoins(certHash) {
		return
	}

	m := v.ModifyCoins(certHash)
	defer m.Close()
	c := m.Entry()

	for pos := c.FirstBwtPos; pos < uint32(len(c.Outputs)); pos++ {
		*outNullified = append(*outNullified, OutputUndo{Output: c.Outputs[pos]})
		c.Spend(pos)
		if len(c.Outputs) == 0 {
			last := &(*outNullified)[len(*outNullified)-1]
			last.HasProvenance = true
			last.IsCoinBase = c.IsCoinBase
			last.Height = c.Height
			last.Version = c.Version
			last.FirstBwtPos = c.FirstBwtPos
			last.BwtMaturityHeight = c.BwtMaturityHeight
		}
	}
}

// RestoreBackwardTransfers reconstructs the coin entry for certHash from
// the undo records NullifyBackwardTransfers produced, applied in
// reverse order.  A record carrying provenance reconstructs the
// entry's fixed fields; all other records restore one output at its
// original position, growing the outputs slice with nulls as needed.
// Inconsistencies (overwriting an already-available position,
// restoring into an entry with no provenance record) are collected
// into a MultiError rather than aborting early, so every problem in
// the batch is reported.
func (v *CacheView) RestoreBackwardTransfers(certHash Hash, inOuts []OutputUndo) error {
	m := v.ModifyCoins(certHash)
	defer m.Close()
	c := m.Entry()

	var errs MultiError
	for idx := len(inOuts) - 1; idx >= 0; idx-- {
		rec := inOuts[idx]
		if rec.HasProvenance {
			c.IsCoinBase = rec.IsCoinBase
			c.Height = rec.Height
			c.Version = rec.Version
			c.FirstBwtPos = rec.FirstBwtPos
			c.BwtMaturityHeight = rec.BwtMaturityHeight
		} else if c.IsPruned() {
			errs = append(errs, ruleErrorf(ErrInconsistent, "restore_backward_transfers: idx=%d adding output to missing transaction", idx))
		}

		pos := c.FirstBwtPos + uint32(idx)
		if c.IsAvailable(pos) {
			errs = append(errs, ruleErrorf(ErrInconsistent, "restore_backward_transfers: idx=%d overwriting existing output", idx))
		}
		if need := int(pos) + 1; len(c.Outputs) < need {
			grown := make([]Output, need)
			copy(grown, c.Outputs)
			c.Outputs = grown
		}
		c.Outputs[pos] = rec.Output
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
