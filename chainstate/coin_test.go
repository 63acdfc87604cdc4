package chainstate

import "testing"

func TestCoinEntryIsPruned(t *testing.T) {
	c := &CoinEntry{Outputs: []Output{{}, {}}}
	if !c.IsPruned() {
		t.Fatal("all-null outputs should be pruned")
	}
	c.Outputs[1] = Output{Value: 1}
	if c.IsPruned() {
		t.Fatal("entry with a live output should not be pruned")
	}
}

// prunedEquality is Testable Property "pruned equality": two pruned
// entries compare equal regardless of any other field.
func TestCoinEntryEqualPrunedEquality(t *testing.T) {
	a := &CoinEntry{Height: 10, IsCoinBase: true}
	b := &CoinEntry{Height: 999, Version: 7}
	if !a.Equal(b) {
		t.Fatal("two pruned entries must always be equal")
	}

	a.Outputs = []Output{{Value: 5}}
	if a.Equal(b) {
		t.Fatal("a live entry must not equal a pruned one")
	}
}

func TestCoinEntryEqualStructural(t *testing.T) {
	a := &CoinEntry{
		IsCoinBase: true,
		Height:     5,
		Version:    1,
		Outputs:    []Output{{Value: 10, Script: []byte("abc")}, {}},
	}
	b := &CoinEntry{
		IsCoinBase: true,
		Height:     5,
		Version:    1,
		Outputs:    []Output{{Value: 10, Script: []byte("abc")}, {}},
	}
	if !a.Equal(b) {
		t.Fatal("structurally identical entries should be equal")
	}
	b.Outputs[0].Value = 11
	if a.Equal(b) {
		t.Fatal("differing output value should not be equal")
	}
}

// cleanupIdempotence is Testable Property "cleanup idempotence":
// Cleanup(Cleanup(c)) == Cleanup(c).
func TestCoinEntryCleanupIdempotent(t *testing.T) {
	c := &CoinEntry{Outputs: []Output{{Value: 1}, {}, {}}}
	c.Cleanup()
	if len(c.Outputs) != 1 {
		t.Fatalf("expected trailing nulls trimmed, got %d outputs", len(c.Outputs))
	}
	before := append([]Output(nil), c.Outputs...)
	c.Cleanup()
	if len(c.Outputs) != len(before) {
		t.Fatal("second Cleanup call changed the outputs slice")
	}

	allNull := &CoinEntry{Outputs: []Output{{}, {}}}
	allNull.Cleanup()
	if allNull.Outputs != nil {
		t.Fatal("Cleanup should release the backing array when everything is null")
	}
}

// spendMonotonicity is Testable Property "spend monotonicity": once an
// output is spent it can never become available again through Spend.
func TestCoinEntrySpendMonotonicity(t *testing.T) {
	c := &CoinEntry{Outputs: []Output{{Value: 1}, {Value: 2}}}
	if !c.Spend(0) {
		t.Fatal("first spend of an available output should succeed")
	}
	if c.Spend(0) {
		t.Fatal("spending an already-spent output should report no effect")
	}
	if c.Spend(5) {
		t.Fatal("spending an out-of-range position should report no effect")
	}
	if c.IsAvailable(0) {
		t.Fatal("spent output should not be available")
	}
	if !c.IsAvailable(1) {
		t.Fatal("untouched output should remain available")
	}
}

// certOriginSurvivesTruncation is Testable Property "cert-origin
// detection survives truncation": IsFromCert only examines the bottom
// 7 bits of Version, so a compact encoding that only ever stores those
// 7 bits still identifies certificate-derived entries correctly.
func TestCoinEntryIsFromCertSurvivesTruncation(t *testing.T) {
	c := &CoinEntry{Version: CertVersionMarker}
	if !c.IsFromCert() {
		t.Fatal("expected CertVersionMarker to be recognized as cert-derived")
	}

	mask := uint32(0xFFFFFF80)
	truncated := &CoinEntry{Version: int32(uint32(CertVersionMarker) | mask)}
	if !truncated.IsFromCert() {
		t.Fatal("high bits set above bit 7 should not affect cert-origin detection")
	}

	notCert := &CoinEntry{Version: 1}
	if notCert.IsFromCert() {
		t.Fatal("plain transaction version should not be cert-derived")
	}
}

func TestCoinEntryIsOutputMature(t *testing.T) {
	coinbase := &CoinEntry{IsCoinBase: true, Height: 100}
	if coinbase.IsOutputMature(0, 150, 100) {
		t.Fatal("coinbase output should not be mature before Height+coinbaseMaturity")
	}
	if !coinbase.IsOutputMature(0, 200, 100) {
		t.Fatal("coinbase output should be mature at Height+coinbaseMaturity")
	}

	plain := &CoinEntry{}
	if !plain.IsOutputMature(0, 0, 100) {
		t.Fatal("plain output should always be mature")
	}

	cert := &CoinEntry{
		Version:           CertVersionMarker,
		FirstBwtPos:        1,
		BwtMaturityHeight:  50,
	}
	if !cert.IsOutputMature(0, 0, 100) {
		t.Fatal("certificate change output (before FirstBwtPos) should always be mature")
	}
	if cert.IsOutputMature(1, 10, 100) {
		t.Fatal("certificate backward-transfer output should not be mature before BwtMaturityHeight")
	}
	if !cert.IsOutputMature(1, 50, 100) {
		t.Fatal("certificate backward-transfer output should be mature at BwtMaturityHeight")
	}
}

func TestNewCoinEntryFromTransaction(t *testing.T) {
	tx := &fakeTx{
		hash:     hashFromByte(1),
		coinbase: true,
		outputs:  []Output{{Value: 1, Script: []byte("x")}, {}, {Value: 2, Script: []byte("y")}},
	}
	c := NewCoinEntryFromTransaction(tx, 10)
	if !c.IsCoinBase || c.Height != 10 {
		t.Fatal("expected coinbase flag and height carried over")
	}
	if len(c.Outputs) != 3 {
		t.Fatalf("expected trailing structure preserved up to last live output, got %d", len(c.Outputs))
	}
	if c.FirstBwtPos != UnsetPos {
		t.Fatal("plain transaction entry should have no FirstBwtPos")
	}
}

func TestNewCoinEntryFromTransactionDropsUnspendable(t *testing.T) {
	old := IsUnspendable
	defer func() { IsUnspendable = old }()
	IsUnspendable = func(script []byte) bool { return string(script) == "dead" }

	tx := &fakeTx{
		hash:    hashFromByte(2),
		outputs: []Output{{Value: 1, Script: []byte("dead")}, {Value: 2, Script: []byte("ok")}},
	}
	c := NewCoinEntryFromTransaction(tx, 0)
	if c.Outputs[0].Value != 0 {
		t.Fatal("unspendable output should have been dropped")
	}
	if c.Outputs[1].Value != 2 {
		t.Fatal("spendable output should survive")
	}
}

func TestNewCoinEntryFromCertificateTopQuality(t *testing.T) {
	cert := &fakeCert{
		change: []Output{{Value: 1, Script: []byte("chg")}},
		bwts:   []Output{{Value: 2, Script: []byte("bwt")}},
	}
	c := NewCoinEntryFromCertificate(cert, 5, 15, true)
	if !c.IsFromCert() {
		t.Fatal("expected cert-derived entry")
	}
	if c.FirstBwtPos != 1 {
		t.Fatalf("expected FirstBwtPos 1, got %d", c.FirstBwtPos)
	}
	if !c.IsAvailable(1) {
		t.Fatal("top-quality certificate's backward transfer should remain available")
	}
}

func TestNewCoinEntryFromCertificateNonTopQuality(t *testing.T) {
	cert := &fakeCert{
		change: []Output{{Value: 1, Script: []byte("chg")}},
		bwts:   []Output{{Value: 2, Script: []byte("bwt")}},
	}
	c := NewCoinEntryFromCertificate(cert, 5, 15, false)
	if c.IsAvailable(1) {
		t.Fatal("non-top-quality certificate's backward transfer must be pre-spent")
	}
	if !c.IsAvailable(0) {
		t.Fatal("change output must remain available regardless of quality")
	}
}

func TestNewCoinEntryFromCertificateNoBwts(t *testing.T) {
	cert := &fakeCert{change: []Output{{Value: 1, Script: []byte("chg")}}}
	c := NewCoinEntryFromCertificate(cert, 0, 0, true)
	if c.FirstBwtPos != UnsetPos {
		t.Fatal("certificate with no backward transfers should leave FirstBwtPos unset")
	}
}
