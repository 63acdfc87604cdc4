package chainstate

// startHeightForEpoch returns the height of the first block of epoch
// relative to a sidechain's creation height and withdrawal epoch
// length: epoch 0 begins the block after creation, and each
// subsequent epoch begins WithdrawalEpochLength blocks later.
func startHeightForEpoch(sc *Sidechain, epoch Epoch) Height {
	return sc.CreationBlockHeight + 1 + Height(epoch)*sc.Creation.WithdrawalEpochLength
}

// UpdateSidechainOnTx applies the cross-chain outputs of the one
// top-quality transaction set of a block: sidechain creations must not
// already exist and are installed ALIVE with a scheduled immature
// amount; forward transfers and backward-transfer requests must target
// an existing sidechain and add to its immature amount schedule.
func (v *CacheView) UpdateSidechainOnTx(tx SidechainTxSource, blockHash Hash, height Height) error {
	for _, c := range tx.ScCreations() {
		if v.HaveSidechain(c.ScId) {
			return ruleErrorf(ErrInconsistent, "sidechain %s already exists", c.ScId)
		}
		sc := NewSidechain(blockHash, height, tx.Hash(), c.Params)
		sc.ImmatureAmounts[height+v.cfg.ScCoinMaturity] = c.Value
		v.sidechains[c.ScId] = &sidechainCacheEntry{sc: sc, state: StateFresh}
	}

	for _, ft := range tx.ForwardTransfers() {
		if err := v.addImmatureAmount(ft.ScId, ft.Value, height); err != nil {
			return err
		}
	}
	for _, bt := range tx.BwtRequests() {
		if err := v.addImmatureAmount(bt.ScId, bt.Value, height); err != nil {
			return err
		}
	}
	return nil
}

func (v *CacheView) addImmatureAmount(scId Hash, value Amount, height Height) error {
	e := v.fetchSidechainEntry(scId)
	if e == nil || e.state == StateErased {
		return ruleErrorf(ErrNotFound, "sidechain %s does not exist", scId)
	}
	maturity := height + v.cfg.ScCoinMaturity
	e.sc.ImmatureAmounts[maturity] += value
	if e.state != StateFresh {
		e.state = StateDirty
	}
	return nil
}

// UpdateSidechainOnCert handles the block's single top-quality
// certificate for a sidechain: a cross-epoch transition promotes the
// current cert data hash into the past-epoch slot; a same-epoch
// supersession requires strictly higher quality, refunds the
// superseded certificate's backward-transfer total before debiting the
// new one, and nullifies the superseded certificate's own
// backward-transfer outputs (they were only ever spendable while their
// certificate held the top-quality slot). undo is populated with enough
// information to reverse the update exactly.
func (v *CacheView) UpdateSidechainOnCert(cert CertificateSource, undo *BlockUndo) error {
	scId := cert.ScId()
	e := v.fetchSidechainEntry(scId)
	if e == nil || e.state == StateErased {
		return ruleErrorf(ErrNotFound, "sidechain %s does not exist", scId)
	}
	sc := e.sc

	scUndo := undo.sidechainUndo(scId)
	assert(scUndo.Sections&SectionAnyEpochCertData == 0, "update_sidechain_on_cert called twice for the same sidechain in one block")

	switch {
	case cert.Epoch() == sc.LastTopQualityCertReferencedEpoch+1:
		scUndo.Sections |= SectionCrossEpochCertData
		scUndo.PrevPastEpochTopQualityCertDataHash = sc.PastEpochTopQualityCertDataHash
		sc.PastEpochTopQualityCertDataHash = sc.LastTopQualityCertDataHash

	case cert.Epoch() == sc.LastTopQualityCertReferencedEpoch:
		if cert.Quality() <= sc.LastTopQualityCertQuality {
			err := ruleErrorf(ErrQualityRejected, "certificate for sidechain %s has quality %d, not better than existing %d",
				scId, cert.Quality(), sc.LastTopQualityCertQuality)
			log.Warnf("%v", err)
			return err
		}
		sc.Balance += sc.LastTopQualityCertBwtAmount
		scUndo.Sections |= SectionSupersededCertData
		v.NullifyBackwardTransfers(sc.LastTopQualityCertHash, &scUndo.SupersededBwts)

	default:
		err := ruleErrorf(ErrInconsistent, "certificate for sidechain %s references epoch %d out of order (expected %d or %d)",
			scId, cert.Epoch(), sc.LastTopQualityCertReferencedEpoch, sc.LastTopQualityCertReferencedEpoch+1)
		log.Warnf("%v", err)
		return err
	}

	if sc.Balance-cert.BwtTotal() < 0 {
		err := ruleErrorf(ErrInsufficientBalance, "certificate for sidechain %s would drive balance negative", scId)
		log.Warnf("%v", err)
		return err
	}
	sc.Balance -= cert.BwtTotal()

	scUndo.Sections |= SectionAnyEpochCertData
	scUndo.PrevTopCertHash = sc.LastTopQualityCertHash
	scUndo.PrevTopCertReferencedEpoch = sc.LastTopQualityCertReferencedEpoch
	scUndo.PrevTopCertQuality = sc.LastTopQualityCertQuality
	scUndo.PrevTopCertBwtAmount = sc.LastTopQualityCertBwtAmount
	scUndo.PrevTopCertDataHash = sc.LastTopQualityCertDataHash

	sc.LastTopQualityCertHash = cert.Hash()
	sc.LastTopQualityCertReferencedEpoch = cert.Epoch()
	sc.LastTopQualityCertQuality = cert.Quality()
	sc.LastTopQualityCertBwtAmount = cert.BwtTotal()
	sc.LastTopQualityCertDataHash = cert.DataHash()

	if e.state != StateFresh {
		e.state = StateDirty
	}
	return nil
}

// RestoreSidechainFromCert exactly reverses UpdateSidechainOnCert using
// the undo payload it populated, including restoring the superseded
// certificate's backward-transfer outputs as spendable again when the
// update being reverted was a same-epoch supersession. The current
// top-certificate hash must equal cert's hash.
func (v *CacheView) RestoreSidechainFromCert(cert CertificateSource, undo *BlockUndo) error {
	scId := cert.ScId()
	e := v.fetchSidechainEntry(scId)
	if e == nil || e.state == StateErased {
		return ruleErrorf(ErrNotFound, "sidechain %s does not exist", scId)
	}
	sc := e.sc

	scUndo, ok := undo.PerSidechain[scId]
	assert(ok && scUndo.Sections.has(SectionAnyEpochCertData), "restore_sidechain_from_cert: missing certificate undo section")
	assert(sc.LastTopQualityCertHash == cert.Hash(), "restore_sidechain_from_cert: current top cert does not match cert being reverted")

	sc.Balance += cert.BwtTotal()

	if scUndo.Sections.has(SectionCrossEpochCertData) {
		sc.PastEpochTopQualityCertDataHash = scUndo.PrevPastEpochTopQualityCertDataHash
	}
	if scUndo.Sections.has(SectionSupersededCertData) {
		sc.Balance -= scUndo.PrevTopCertBwtAmount
		if err := v.RestoreBackwardTransfers(scUndo.PrevTopCertHash, scUndo.SupersededBwts); err != nil {
			return err
		}
	}

	sc.LastTopQualityCertHash = scUndo.PrevTopCertHash
	sc.LastTopQualityCertReferencedEpoch = scUndo.PrevTopCertReferencedEpoch
	sc.LastTopQualityCertQuality = scUndo.PrevTopCertQuality
	sc.LastTopQualityCertBwtAmount = scUndo.PrevTopCertBwtAmount
	sc.LastTopQualityCertDataHash = scUndo.PrevTopCertDataHash

	if e.state != StateFresh {
		e.state = StateDirty
	}
	return nil
}

// IsEpochDataValid reports whether epoch/endBlockHash are a coherent
// reference for sc: the epoch must be the sidechain's current or next
// referenced epoch, endBlockHash must be on the active chain, and must
// be exactly the last block of that epoch.
func (v *CacheView) IsEpochDataValid(sc *Sidechain, epoch Epoch, endBlockHash Hash, chain ChainContext) bool {
	if epoch < 0 || endBlockHash == ZeroHash {
		return false
	}
	if epoch != sc.LastTopQualityCertReferencedEpoch && epoch != sc.LastTopQualityCertReferencedEpoch+1 {
		return false
	}
	if !chain.Contains(endBlockHash) {
		return false
	}
	lastHeightOfEpoch := startHeightForEpoch(sc, epoch+1) - 1
	hdr, ok := chain.At(lastHeightOfEpoch)
	return ok && hdr.Hash() == endBlockHash
}

// IsCertApplicable validates cert for inclusion against sc's current
// state: the sidechain must be ALIVE, the certificate must land inside
// its epoch's safeguard window, strictly improve on any existing
// same-epoch top quality, stay within the available balance, and pass
// proof verification.
func (v *CacheView) IsCertApplicable(cert CertificateSource, height Height, chain ChainContext, verifier ProofVerifier, previousEndEpochBlockHash Hash) error {
	sc, ok := v.GetSidechain(cert.ScId())
	if !ok {
		return ruleErrorf(ErrNotFound, "sidechain %s does not exist", cert.ScId())
	}
	if sc.CurrentState != StateAlive {
		return ruleErrorf(ErrInconsistent, "sidechain %s is not alive", cert.ScId())
	}
	if !v.IsEpochDataValid(sc, cert.Epoch(), previousEndEpochBlockHash, chain) {
		return ruleErrorf(ErrInconsistent, "certificate for sidechain %s has invalid epoch data", cert.ScId())
	}

	windowStart := startHeightForEpoch(sc, cert.Epoch()+1)
	windowEnd := windowStart + v.cfg.SafeguardMargin
	if height < windowStart || height > windowEnd {
		return ruleErrorf(ErrInconsistent, "certificate for sidechain %s arrived outside its safeguard window", cert.ScId())
	}

	if !v.CheckQuality(cert) {
		return ruleErrorf(ErrQualityRejected, "certificate for sidechain %s does not improve on existing quality", cert.ScId())
	}

	available := sc.Balance
	if cert.Epoch() == sc.LastTopQualityCertReferencedEpoch {
		available += sc.LastTopQualityCertBwtAmount
	}
	if cert.BwtTotal() > available {
		return ruleErrorf(ErrInsufficientBalance, "certificate for sidechain %s requests more than available balance", cert.ScId())
	}

	if !verifier.VerifyCert(sc.Creation.Constant, sc.Creation.WCertVk, previousEndEpochBlockHash, cert) {
		return ruleErrorf(ErrProofInvalid, "proof verification failed for certificate of sidechain %s", cert.ScId())
	}
	return nil
}

// IsTxApplicable validates the sidechain cross-chain outputs of tx: new
// creations must not collide with an existing sidechain, forward
// transfers must target an ALIVE/UNCONFIRMED sidechain or a creation
// earlier in the same transaction, and backward-transfer requests must
// additionally target a sidechain that declared a request verification
// key and pass proof verification against the active cert data hash.
func (v *CacheView) IsTxApplicable(tx SidechainTxSource, verifier ProofVerifier) error {
	createdInTx := make(map[Hash]struct{})
	for _, c := range tx.ScCreations() {
		if v.HaveSidechain(c.ScId) {
			return ruleErrorf(ErrInconsistent, "sidechain %s already exists", c.ScId)
		}
		createdInTx[c.ScId] = struct{}{}
	}

	isTargetable := func(scId Hash) bool {
		if _, created := createdInTx[scId]; created {
			return true
		}
		sc, ok := v.GetSidechain(scId)
		return ok && (sc.CurrentState == StateAlive || sc.CurrentState == StateUnconfirmed)
	}

	for _, ft := range tx.ForwardTransfers() {
		if !isTargetable(ft.ScId) {
			return ruleErrorf(ErrNotFound, "forward transfer targets unknown or inactive sidechain %s", ft.ScId)
		}
	}

	for _, bt := range tx.BwtRequests() {
		if !isTargetable(bt.ScId) {
			return ruleErrorf(ErrNotFound, "backward-transfer request targets unknown or inactive sidechain %s", bt.ScId)
		}
		sc, ok := v.GetSidechain(bt.ScId)
		if !ok || !sc.Creation.HasMbtrVk() {
			return ruleErrorf(ErrInconsistent, "sidechain %s does not accept backward-transfer requests", bt.ScId)
		}
		activeCertDataHash := v.GetActiveCertDataHash(bt.ScId)
		if !verifier.VerifyBwtRequest(bt.ScId, bt.RequestData, bt.MCDestination, bt.Fee, bt.Proof, sc.Creation.WMbtrVkOpt, activeCertDataHash) {
			return ruleErrorf(ErrProofInvalid, "proof verification failed for backward-transfer request on sidechain %s", bt.ScId)
		}
	}
	return nil
}
