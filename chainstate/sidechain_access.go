package chainstate

// fetchSidechainEntry returns the local cache entry for scId, hydrating
// it from the base on a local miss.  Returns nil if no record exists
// anywhere in the stack.
func (v *CacheView) fetchSidechainEntry(scId Hash) *sidechainCacheEntry {
	if e, ok := v.sidechains[scId]; ok {
		return e
	}
	base, ok := v.BackedView.GetSidechain(scId)
	if !ok {
		return nil
	}
	e := &sidechainCacheEntry{sc: base.clone(), state: StateDefault}
	v.sidechains[scId] = e
	return e
}

// GetSidechain returns the sidechain record for scId, if any.
func (v *CacheView) GetSidechain(scId Hash) (*Sidechain, bool) {
	e := v.fetchSidechainEntry(scId)
	if e == nil || e.state == StateErased {
		return nil, false
	}
	return e.sc, true
}

// HaveSidechain reports whether a live sidechain record exists for
// scId.
func (v *CacheView) HaveSidechain(scId Hash) bool {
	_, ok := v.GetSidechain(scId)
	return ok
}

// GetScIds enumerates sidechain ids known to this layer and its base,
// de-duplicated. Supplemented from the source's GetScIds, not given a
// cache-layer implementation of its own in the distilled operation
// list even though it is named as part of the base contract.
func (v *CacheView) GetScIds() []Hash {
	seen := make(map[Hash]struct{})
	var ids []Hash
	for id, e := range v.sidechains {
		seen[id] = struct{}{}
		if e.state != StateErased {
			ids = append(ids, id)
		}
	}
	for _, id := range v.BackedView.GetScIds() {
		if _, dup := seen[id]; dup {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// fetchEventsEntry returns the local cache entry for the sidechain
// events scheduled at height, hydrating it from the base on a local
// miss.
func (v *CacheView) fetchEventsEntry(height Height) *eventsCacheEntry {
	if e, ok := v.events[height]; ok {
		return e
	}
	base, ok := v.BackedView.GetSidechainEvents(height)
	if !ok {
		return nil
	}
	e := &eventsCacheEntry{events: base.clone(), state: StateDefault}
	v.events[height] = e
	return e
}

// GetSidechainEvents returns the events scheduled at height, if any.
func (v *CacheView) GetSidechainEvents(height Height) (*SidechainEvents, bool) {
	e := v.fetchEventsEntry(height)
	if e == nil || e.state == StateErased {
		return nil, false
	}
	return e.events, true
}

// HaveSidechainEvents reports whether any events are scheduled at
// height.
func (v *CacheView) HaveSidechainEvents(height Height) bool {
	_, ok := v.GetSidechainEvents(height)
	return ok
}

// CheckQuality reports true unless a sidechain exists with a different
// top-certificate hash, the same epoch as cert, and a quality greater
// than or equal to cert's.
func (v *CacheView) CheckQuality(cert CertificateSource) bool {
	sc, ok := v.GetSidechain(cert.ScId())
	if !ok {
		return true
	}
	if sc.LastTopQualityCertHash == cert.Hash() {
		return true
	}
	if sc.LastTopQualityCertReferencedEpoch == cert.Epoch() && sc.LastTopQualityCertQuality >= cert.Quality() {
		return false
	}
	return true
}

// GetActiveCertDataHash folds a sidechain's current and past top-quality
// certificate data hashes into one digest, used to bind a
// backward-transfer request's proof to the sidechain's certificate
// history. Supplemented from GetActiveCertDataHash in the source this
// package is grounded on, which spec.md's is_tx_applicable references
// without defining.
func (v *CacheView) GetActiveCertDataHash(scId Hash) Hash {
	sc, ok := v.GetSidechain(scId)
	if !ok {
		return ZeroHash
	}
	if sc.LastTopQualityCertReferencedEpoch == NoEpoch {
		return ZeroHash
	}
	var buf []byte
	buf = append(buf, sc.LastTopQualityCertDataHash[:]...)
	buf = append(buf, sc.PastEpochTopQualityCertDataHash[:]...)
	return hashBytes(buf)
}
