package chainstate

// Output is a single transaction or certificate output.  A null output
// (the zero value) marks a spent or never-present position; it is the
// canonical empty output used throughout CoinEntry's sparse outputs
// slice.
type Output struct {
	Value  Amount
	Script []byte
}

// IsNull reports whether o is the canonical empty output.
func (o *Output) IsNull() bool {
	return o == nil || (o.Value == 0 && len(o.Script) == 0)
}

// IsUnspendable reports whether the output's script can never be spent
// and should therefore be dropped when a CoinEntry is constructed.  The
// actual predicate is supplied by script-evaluation code, which is out
// of scope for this package; IsUnspendable is a package-level hook a
// caller may override before constructing entries.  The default never
// treats any script as unspendable, since this package has no script
// interpreter of its own.
var IsUnspendable = func(script []byte) bool { return false }

// CoinEntry is a compact per-transaction (or per-certificate) bundle of
// outputs plus provenance.  It is the unit of storage in the coins
// cache map, keyed by transaction or certificate id.
type CoinEntry struct {
	IsCoinBase bool
	Height     Height
	Version    int32
	Outputs    []Output

	// FirstBwtPos is the index of the first backward-transfer output
	// for certificate-derived entries, or UnsetPos for entries that did
	// not originate from a certificate.
	FirstBwtPos uint32

	// BwtMaturityHeight is the height at which backward-transfer
	// outputs of a certificate-derived entry become spendable.
	BwtMaturityHeight Height
}

// IsFromCert reports whether the entry was derived from a certificate.
// The test only examines the bottom 7 bits of Version so that it
// survives truncation of the version field when serialized compactly.
func (c *CoinEntry) IsFromCert() bool {
	return c.Version&0x7f == CertVersionMarker
}

// IsAvailable reports whether the output at pos exists and has not been
// spent.
func (c *CoinEntry) IsAvailable(pos uint32) bool {
	return pos < uint32(len(c.Outputs)) && !c.Outputs[pos].IsNull()
}

// IsPruned reports whether every output of the entry is null.  A
// pruned entry is behaviorally absent: two pruned entries always
// compare equal regardless of any other field.
func (c *CoinEntry) IsPruned() bool {
	for i := range c.Outputs {
		if !c.Outputs[i].IsNull() {
			return false
		}
	}
	return true
}

// IsOutputMature reports whether the output at pos is spendable at
// spendingHeight.  Non-coinbase, non-certificate outputs are always
// mature.  Coinbase outputs mature at Height+coinbaseMaturity.
// Certificate backward-transfer outputs mature at BwtMaturityHeight;
// certificate change outputs (everything before FirstBwtPos) are
// immediately mature.
func (c *CoinEntry) IsOutputMature(pos uint32, spendingHeight Height, coinbaseMaturity Height) bool {
	if c.IsFromCert() {
		if c.FirstBwtPos != UnsetPos && pos >= c.FirstBwtPos {
			return spendingHeight >= c.BwtMaturityHeight
		}
		return true
	}
	if c.IsCoinBase {
		return spendingHeight >= c.Height+coinbaseMaturity
	}
	return true
}

// Spend marks the output at pos as null.  It returns false without
// effect if pos is out of range or the output is already null;
// otherwise it nulls the output, runs Cleanup, and returns true.
func (c *CoinEntry) Spend(pos uint32) bool {
	if pos >= uint32(len(c.Outputs)) || c.Outputs[pos].IsNull() {
		return false
	}
	c.Outputs[pos] = Output{}
	c.Cleanup()
	return true
}

// Cleanup trims trailing null outputs and, when the outputs slice
// becomes empty, releases its backing array.  It is idempotent:
// Cleanup(Cleanup(c)) == Cleanup(c).
func (c *CoinEntry) Cleanup() {
	n := len(c.Outputs)
	for n > 0 && c.Outputs[n-1].IsNull() {
		n--
	}
	if n == len(c.Outputs) {
		return
	}
	c.Outputs = c.Outputs[:n]
	if n == 0 {
		c.Outputs = nil
	}
}

// Equal reports structural equality between two CoinEntry values.  Two
// pruned entries are always equal to one another regardless of any
// other field, matching the testable "pruned equality" property.
func (c *CoinEntry) Equal(other *CoinEntry) bool {
	if c == nil || other == nil {
		return c == other
	}
	if c.IsPruned() && other.IsPruned() {
		return true
	}
	if c.IsCoinBase != other.IsCoinBase ||
		c.Height != other.Height ||
		c.Version != other.Version ||
		c.FirstBwtPos != other.FirstBwtPos ||
		c.BwtMaturityHeight != other.BwtMaturityHeight ||
		len(c.Outputs) != len(other.Outputs) {
		return false
	}
	for i := range c.Outputs {
		a, b := c.Outputs[i], other.Outputs[i]
		if a.IsNull() != b.IsNull() {
			return false
		}
		if a.IsNull() {
			continue
		}
		if a.Value != b.Value || string(a.Script) != string(b.Script) {
			return false
		}
	}
	return true
}

// size estimates the dynamic memory used by the entry, for the cache's
// lazily-maintained usage accounting.
func (c *CoinEntry) size() uint64 {
	sz := uint64(40) // fixed fields, approximate
	for i := range c.Outputs {
		sz += uint64(24 + len(c.Outputs[i].Script))
	}
	return sz
}

// TransactionSource is the narrow data contract this package requires
// from a parsed transaction in order to build a CoinEntry.  Full
// transaction parsing and validation are out of scope for this package.
type TransactionSource interface {
	Hash() Hash
	IsCoinBase() bool
	Outputs() []Output
}

// CertificateSource is the narrow data contract this package requires
// from a parsed certificate in order to build a CoinEntry.
type CertificateSource interface {
	Hash() Hash
	ScId() Hash
	Epoch() Epoch
	Quality() uint64
	ChangeOutputs() []Output
	BackwardTransfers() []Output
	BwtTotal() Amount
	DataHash() Hash
}

// NewCoinEntryFromTransaction populates a CoinEntry from a transaction's
// outputs at the given height, removing unspendable outputs and
// trimming trailing nulls.
func NewCoinEntryFromTransaction(tx TransactionSource, height Height) *CoinEntry {
	c := &CoinEntry{
		IsCoinBase:  tx.IsCoinBase(),
		Height:      height,
		FirstBwtPos: UnsetPos,
		Outputs:     cloneDroppingUnspendable(tx.Outputs()),
	}
	c.Cleanup()
	return c
}

// NewCoinEntryFromCertificate populates a CoinEntry from a
// certificate's change and backward-transfer outputs.  If the
// certificate is not the top-quality certificate for its epoch, every
// backward-transfer position is immediately spent (nullified) since
// only the top-quality certificate's outputs are ever spendable.
func NewCoinEntryFromCertificate(cert CertificateSource, height Height, bwtMaturityHeight Height, isTopQuality bool) *CoinEntry {
	change := cloneDroppingUnspendable(cert.ChangeOutputs())
	bwts := cert.BackwardTransfers()

	outputs := make([]Output, 0, len(change)+len(bwts))
	outputs = append(outputs, change...)
	firstBwtPos := uint32(len(outputs))
	if len(bwts) == 0 {
		firstBwtPos = UnsetPos
	}
	outputs = append(outputs, bwts...)

	c := &CoinEntry{
		IsCoinBase:        false,
		Height:            height,
		Version:           CertVersionMarker,
		Outputs:           outputs,
		FirstBwtPos:       firstBwtPos,
		BwtMaturityHeight: bwtMaturityHeight,
	}

	if !isTopQuality && firstBwtPos != UnsetPos {
		for pos := firstBwtPos; pos < uint32(len(c.Outputs)); pos++ {
			c.Outputs[pos] = Output{}
		}
	}

	// Drop unspendable bwt outputs too, then trim.
	for i := range c.Outputs {
		if !c.Outputs[i].IsNull() && IsUnspendable(c.Outputs[i].Script) {
			c.Outputs[i] = Output{}
		}
	}
	c.Cleanup()
	return c
}

func cloneDroppingUnspendable(outs []Output) []Output {
	out := make([]Output, len(outs))
	for i, o := range outs {
		if !o.IsNull() && !IsUnspendable(o.Script) {
			out[i] = o
		}
	}
	return out
}
