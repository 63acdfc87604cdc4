package chainstate

import "testing"

// createAndScheduleSidechain creates a sidechain at height 0 and
// schedules its creation events, returning the CcOutCreation used so
// callers can drive Cancel* with matching arguments.
func createAndScheduleSidechain(t *testing.T, cv *CacheView, scId Hash, epochLen Height) CcOutCreation {
	t.Helper()
	c := CcOutCreation{ScId: scId, Value: 100, Params: CreationParams{WithdrawalEpochLength: epochLen}}
	tx := &fakeSidechainTx{hash: hashFromByte(210), creations: []CcOutCreation{c}}
	if err := cv.UpdateSidechainOnTx(tx, hashFromByte(0), 0); err != nil {
		t.Fatalf("UpdateSidechainOnTx failed: %v", err)
	}
	if err := cv.ScheduleSidechainEventCreation(c, 0); err != nil {
		t.Fatalf("ScheduleSidechainEventCreation failed: %v", err)
	}
	return c
}

// S1: sidechain creation schedules maturity and an initial ceasing
// event; cancellation exactly reverses both.
func TestScheduleAndCancelSidechainEventCreation(t *testing.T) {
	cv := NewCacheView(NewNullView(), testConfig())
	scId := hashFromByte(1)
	c := createAndScheduleSidechain(t, cv, scId, 10)

	if !cv.HaveSidechainEvents(2) {
		t.Fatal("expected maturity event scheduled at height 2")
	}
	if !cv.HaveSidechainEvents(13) {
		t.Fatal("expected initial ceasing event scheduled at height 13")
	}

	if err := cv.CancelSidechainEventCreation(c, 0); err != nil {
		t.Fatalf("CancelSidechainEventCreation failed: %v", err)
	}
	if cv.HaveSidechainEvents(2) {
		t.Fatal("expected maturity event cancelled")
	}
	if cv.HaveSidechainEvents(13) {
		t.Fatal("expected ceasing event cancelled")
	}
}

// S2/S3: accepting a certificate rolls the ceasing schedule forward one
// epoch; a duplicate schedule call for the same certificate is an
// idempotent no-op (the same-epoch supersession case), and cancelling
// rolls it back exactly.
func TestScheduleSidechainEventCertRollsForwardAndCancels(t *testing.T) {
	cv := NewCacheView(NewNullView(), testConfig())
	scId := hashFromByte(1)
	createAndScheduleSidechain(t, cv, scId, 10)

	cert := &fakeCert{hash: hashFromByte(10), scId: scId, epoch: 0}
	if err := cv.ScheduleSidechainEventCert(cert); err != nil {
		t.Fatalf("ScheduleSidechainEventCert failed: %v", err)
	}
	if cv.HaveSidechainEvents(13) {
		t.Fatal("expected original ceasing height cleared")
	}
	if !cv.HaveSidechainEvents(23) {
		t.Fatal("expected ceasing rolled forward to height 23")
	}

	// Idempotent re-schedule: current ceasing height already cleared and
	// the next one already in place must be accepted as a no-op.
	if err := cv.ScheduleSidechainEventCert(cert); err != nil {
		t.Fatalf("expected idempotent re-schedule to succeed, got %v", err)
	}
	if !cv.HaveSidechainEvents(23) {
		t.Fatal("idempotent re-schedule should leave height 23 scheduled")
	}

	if err := cv.CancelSidechainEventCert(cert); err != nil {
		t.Fatalf("CancelSidechainEventCert failed: %v", err)
	}
	if cv.HaveSidechainEvents(23) {
		t.Fatal("expected rolled-forward ceasing height cancelled")
	}
	if !cv.HaveSidechainEvents(13) {
		t.Fatal("expected original ceasing height restored")
	}
}

// immatureThenMature: handling a maturity event moves the scheduled
// amount into balance and erases the event; reverting moves it back.
func TestHandleAndRevertSidechainEventsMaturing(t *testing.T) {
	cv := NewCacheView(NewNullView(), testConfig())
	scId := hashFromByte(1)
	createAndScheduleSidechain(t, cv, scId, 10)

	undo := NewBlockUndo()
	if err := cv.HandleSidechainEvents(2, undo); err != nil {
		t.Fatalf("HandleSidechainEvents failed: %v", err)
	}
	sc, _ := cv.GetSidechain(scId)
	if sc.Balance != 100 {
		t.Fatalf("expected balance 100 after maturity, got %d", sc.Balance)
	}
	if _, stillImmature := sc.ImmatureAmounts[2]; stillImmature {
		t.Fatal("expected matured amount removed from the immature schedule")
	}
	if cv.HaveSidechainEvents(2) {
		t.Fatal("expected maturity event entry erased after handling")
	}

	if err := cv.RevertSidechainEvents(undo, 2); err != nil {
		t.Fatalf("RevertSidechainEvents failed: %v", err)
	}
	sc, _ = cv.GetSidechain(scId)
	if sc.Balance != 0 {
		t.Fatalf("expected balance reverted to 0, got %d", sc.Balance)
	}
	if sc.ImmatureAmounts[2] != 100 {
		t.Fatalf("expected immature amount 100 restored at height 2, got %d", sc.ImmatureAmounts[2])
	}
	if !cv.HaveSidechainEvents(2) {
		t.Fatal("expected maturity event entry recreated after revert")
	}
}

// ceaseThenRevert (S4): a ceasing event nullifies the top certificate's
// backward transfers and marks the sidechain CEASED; reverting restores
// both the sidechain's ALIVE state and the nullified outputs.
func TestHandleAndRevertSidechainEventsCeasing(t *testing.T) {
	cv := NewCacheView(NewNullView(), testConfig())
	scId := hashFromByte(1)
	createAndScheduleSidechain(t, cv, scId, 10)
	cv.sidechains[scId].sc.Balance = 100

	certHash := hashFromByte(30)
	cert := &fakeCert{hash: certHash, scId: scId, epoch: 0, quality: 1, bwtTotal: 0, dataHash: hashFromByte(31)}
	if err := cv.UpdateSidechainOnCert(cert, NewBlockUndo()); err != nil {
		t.Fatalf("UpdateSidechainOnCert failed: %v", err)
	}

	m := cv.ModifyCoins(certHash)
	m.Entry().Version = CertVersionMarker
	m.Entry().FirstBwtPos = 0
	m.Entry().Outputs = []Output{{Value: 5, Script: []byte("bwt")}}
	m.Close()

	cv.insertCeasing(scId, 100)

	undo := NewBlockUndo()
	if err := cv.HandleSidechainEvents(100, undo); err != nil {
		t.Fatalf("HandleSidechainEvents failed: %v", err)
	}
	sc, _ := cv.GetSidechain(scId)
	if sc.CurrentState != StateCeased {
		t.Fatal("expected sidechain CEASED after its ceasing event fired")
	}
	if cv.HaveCoins(certHash) {
		t.Fatal("expected the certificate's backward transfers nullified (entry pruned)")
	}
	if cv.HaveSidechainEvents(100) {
		t.Fatal("expected ceasing event entry erased after handling")
	}

	if err := cv.RevertSidechainEvents(undo, 100); err != nil {
		t.Fatalf("RevertSidechainEvents failed: %v", err)
	}
	sc, _ = cv.GetSidechain(scId)
	if sc.CurrentState != StateAlive {
		t.Fatal("expected sidechain restored to ALIVE after revert")
	}
	if !cv.HaveCoins(certHash) {
		t.Fatal("expected the nullified backward transfer restored")
	}
	restored, _ := cv.GetCoins(certHash)
	if !restored.IsAvailable(0) || restored.Outputs[0].Value != 5 {
		t.Fatal("expected the exact output value restored at its original position")
	}
	if !cv.HaveSidechainEvents(100) {
		t.Fatal("expected ceasing event entry recreated after revert")
	}
}

// nullifyThenRestore is the standalone round trip for
// NullifyBackwardTransfers / RestoreBackwardTransfers: spending every
// backward-transfer output and then restoring from the collected undo
// records must exactly reproduce the original entry.
func TestNullifyAndRestoreBackwardTransfersRoundTrip(t *testing.T) {
	cv := NewCacheView(NewNullView(), testConfig())
	certHash := hashFromByte(40)

	m := cv.ModifyCoins(certHash)
	m.Entry().Version = CertVersionMarker
	m.Entry().FirstBwtPos = 1
	m.Entry().Outputs = []Output{
		{Value: 1, Script: []byte("change")},
		{Value: 2, Script: []byte("bwt0")},
		{Value: 3, Script: []byte("bwt1")},
	}
	m.Close()

	var nullified []OutputUndo
	cv.NullifyBackwardTransfers(certHash, &nullified)
	if len(nullified) != 2 {
		t.Fatalf("expected 2 backward-transfer outputs nullified, got %d", len(nullified))
	}

	entry, _ := cv.GetCoins(certHash)
	if entry.IsAvailable(1) || entry.IsAvailable(2) {
		t.Fatal("expected backward-transfer outputs spent")
	}
	if !entry.IsAvailable(0) {
		t.Fatal("expected change output left untouched")
	}

	if err := cv.RestoreBackwardTransfers(certHash, nullified); err != nil {
		t.Fatalf("RestoreBackwardTransfers failed: %v", err)
	}
	restored, _ := cv.GetCoins(certHash)
	if !restored.IsAvailable(1) || restored.Outputs[1].Value != 2 {
		t.Fatal("expected bwt output 1 restored")
	}
	if !restored.IsAvailable(2) || restored.Outputs[2].Value != 3 {
		t.Fatal("expected bwt output 2 restored")
	}
}

func TestNullifyBackwardTransfersNoCoinsIsNoOp(t *testing.T) {
	cv := NewCacheView(NewNullView(), testConfig())
	var nullified []OutputUndo
	cv.NullifyBackwardTransfers(hashFromByte(99), &nullified)
	if len(nullified) != 0 {
		t.Fatal("expected no-op when no coin entry exists for certHash")
	}
}
