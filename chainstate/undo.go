package chainstate

import (
	"bytes"

	"github.com/decred/dcrd/wire"
)

// undoMarker is the 16-bit compact-size value that, when found where a
// legacy transaction-undo count would otherwise be, signals that a
// BlockUndo record uses the newer format carrying per-sidechain undo
// data.  It is chosen strictly greater than any feasible transaction
// count in a block so it can never collide with a legitimate legacy
// count.
const undoMarker = 0xFFFF

// OutputUndo is the undo record for a single coin output, sufficient
// to restore a spent position (and, for the output whose spend pruned
// the entry, the whole entry's provenance).
type OutputUndo struct {
	Output Output

	// HasProvenance is true when the fields below are valid.  A record
	// only carries provenance when the spend that produced it pruned
	// the owning CoinEntry; all other records in the same undo run are
	// intra-outputs restores applied to an entry already reconstructed
	// by the provenance-carrying record.
	HasProvenance     bool
	IsCoinBase        bool
	Height            Height
	Version           int32
	FirstBwtPos       uint32
	BwtMaturityHeight Height
}

// UndoSection identifies which fields of a SidechainUndoData are
// populated.  Multiple sections may be set on the same record; readers
// must check the relevant bit before trusting a field, and an update
// path that reads an unset section is a programmer-error assertion
// failure, not a RuleError.
type UndoSection uint8

const (
	// SectionCrossEpochCertData is set when a certificate moved a
	// sidechain to a new epoch, and PrevPastEpochTopQualityCertDataHash
	// below holds the past-epoch data hash that the promotion overwrote.
	SectionCrossEpochCertData UndoSection = 1 << iota

	// SectionAnyEpochCertData is set whenever a certificate updates a
	// sidechain's top-quality pointer (cross-epoch or same-epoch
	// supersession alike); PrevTopCert* below hold the previous
	// top-quality certificate's identifying fields.
	SectionAnyEpochCertData

	// SectionSupersededCertData is set when a same-epoch supersession
	// occurred; SupersededBwts below holds the nullified backward-transfer
	// outputs of the certificate that was superseded, so a reorg
	// landing exactly on the supersession can restore them.
	SectionSupersededCertData

	// SectionMaturedAmounts is set when handle_sidechain_events moved
	// an immature amount into the sidechain's balance.
	SectionMaturedAmounts

	// SectionCeasedCertData is set when handle_sidechain_events ceased
	// a sidechain, nullifying its top certificate's backward transfers.
	SectionCeasedCertData
)

func (m UndoSection) has(s UndoSection) bool { return m&s != 0 }

// SidechainUndoData is the per-sidechain, per-block undo payload needed
// to reverse update_sidechain_on_cert, handle_sidechain_events, and
// nullify_backward_transfers.
type SidechainUndoData struct {
	Sections UndoSection

	// Populated when SectionCrossEpochCertData is set.
	PrevPastEpochTopQualityCertDataHash Hash

	// Populated when SectionAnyEpochCertData is set.
	PrevTopCertHash           Hash
	PrevTopCertReferencedEpoch Epoch
	PrevTopCertQuality        uint64
	PrevTopCertBwtAmount      Amount
	PrevTopCertDataHash       Hash

	// Populated when SectionSupersededCertData is set.
	SupersededBwts []OutputUndo

	// Populated when SectionMaturedAmounts is set.
	MaturedAmount Amount

	// Populated when SectionCeasedCertData is set.
	CeasedBwts []OutputUndo
}

// BlockUndo is the complete set of undo data needed to disconnect one
// block: the per-sidechain records plus, in the legacy encoding, the
// count of plain TxUndo records that would have followed a v1 encoding.
// This package does not implement transaction-level undo (out of
// scope), only the compact-size marker discipline that disambiguates
// the two formats and the per-sidechain section carried alongside it.
type BlockUndo struct {
	LegacyTxUndoCount uint64
	PerSidechain      map[Hash]*SidechainUndoData
}

// NewBlockUndo returns an empty BlockUndo ready to accumulate
// per-sidechain sections for one block.
func NewBlockUndo() *BlockUndo {
	return &BlockUndo{PerSidechain: make(map[Hash]*SidechainUndoData)}
}

// sidechainUndo returns (creating if necessary) the undo record for
// scId within this block.
func (u *BlockUndo) sidechainUndo(scId Hash) *SidechainUndoData {
	d, ok := u.PerSidechain[scId]
	if !ok {
		d = &SidechainUndoData{}
		u.PerSidechain[scId] = d
	}
	return d
}

// EncodeHeader returns the leading bytes of u's on-disk form: either the
// legacy TxUndo count, for a BlockUndo with no sidechain sections, or the
// undoMarker followed by u.LegacyTxUndoCount, signaling a reader that the
// per-sidechain sections recorded in PerSidechain follow.
func (u *BlockUndo) EncodeHeader() []byte {
	if len(u.PerSidechain) == 0 {
		var buf bytes.Buffer
		_ = wire.WriteVarInt(&buf, wire.ProtocolVersion, u.LegacyTxUndoCount)
		return buf.Bytes()
	}
	var buf bytes.Buffer
	buf.Write(EncodeUndoMarker())
	_ = wire.WriteVarInt(&buf, wire.ProtocolVersion, u.LegacyTxUndoCount)
	return buf.Bytes()
}

// DecodeBlockUndoHeader parses the leading bytes written by EncodeHeader,
// returning the legacy TxUndo count, whether the new-format marker was
// present, and the number of bytes consumed.
func DecodeBlockUndoHeader(serialized []byte) (legacyTxUndoCount uint64, isNewFormat bool, consumed int, err error) {
	first, isMarker, ferr := DecodeLegacyOrMarker(serialized)
	if ferr != nil {
		return 0, false, 0, ferr
	}
	if !isMarker {
		return first, false, wire.VarIntSerializeSize(first), nil
	}

	markerLen := wire.VarIntSerializeSize(undoMarker)
	if markerLen >= len(serialized) {
		return 0, false, 0, errDeserialize("unexpected end of data after undo marker")
	}
	count, cerr := wire.ReadVarInt(bytes.NewReader(serialized[markerLen:]), wire.ProtocolVersion)
	if cerr != nil {
		return 0, false, 0, errDeserialize("unexpected end of data reading legacy tx undo count")
	}
	return count, true, markerLen + wire.VarIntSerializeSize(count), nil
}
