package chainstate

import (
	"bytes"
	"fmt"

	"github.com/decred/dcrd/wire"
	"github.com/jrick/bitset"
)

// -----------------------------------------------------------------------
// CoinEntry uses a compressed on-the-wire form:
//
//   <version VLQ><flags byte><height VLQ><mask length VLQ><mask>
//     OPTIONAL (flags&coinFlagFromCert): <firstBwtPos VLQ><bwtMaturityHeight VLQ>
//   <outputs>...  (each non-null output: <value VLQ><script length VLQ><script>)
//
// version is a VLQ (MSB-first, so byte-wise comparisons of keys built
// from it sort in numeric order — the same property dcrd's utxo set
// keys are built for). The mask indicates which output positions
// starting at index 0 are non-null, packed into bits of bytes via
// jrick/bitset; CalcMaskSize returns both the total byte count and the
// length of the mask up to its last non-zero byte, which is the part
// actually worth serializing.
// -----------------------------------------------------------------------

const (
	coinFlagCoinBase byte = 1 << iota
	coinFlagFromCert
)

// serializeSizeVLQ returns the number of bytes it would take to encode
// n as a VLQ.
func serializeSizeVLQ(n uint64) int {
	size := 1
	for ; n > 0x7f; n = (n >> 7) - 1 {
		size++
	}
	return size
}

// putVLQ encodes n as a VLQ into target, which must be at least
// serializeSizeVLQ(n) bytes, and returns the number of bytes written.
func putVLQ(target []byte, n uint64) int {
	offset := 0
	for {
		b := byte(n & 0x7f)
		if offset != 0 {
			b |= 0x80
		}
		target[offset] = b
		if n <= 0x7f {
			break
		}
		n = (n >> 7) - 1
		offset++
	}
	for i, j := 0, offset; i < j; i, j = i+1, j-1 {
		target[i], target[j] = target[j], target[i]
	}
	return offset + 1
}

// deserializeVLQ decodes a VLQ from the front of serialized and returns
// its value along with the number of bytes consumed.
func deserializeVLQ(serialized []byte) (uint64, int) {
	var n uint64
	var size int
	for _, b := range serialized {
		size++
		n = (n << 7) | uint64(b&0x7f)
		if b&0x80 != 0x80 {
			break
		}
		n++
	}
	return n, size
}

// errDeserialize is used to distinguish malformed-input errors from
// other error types during decoding.
type errDeserialize string

func (e errDeserialize) Error() string { return string(e) }

// CalcMaskSize returns the number of bytes needed to encode a
// presence bitmap covering every output position starting at 0 (the
// original format this mirrors starts its mask at position 2 and gives
// positions 0 and 1 dedicated bits in a header byte; this package masks
// every position), and the number of leading mask bytes up to and
// including the last non-zero one, which is the part worth writing —
// trailing all-zero mask bytes are omitted from the wire form, the same
// way the source this is grounded on avoids serializing a long run of
// unset presence bits.
func CalcMaskSize(outputs []Output) (nBytes, nNonzeroBytes int) {
	n := len(outputs)
	nBytes = (n + 7) / 8
	for nNonzeroBytes = nBytes; nNonzeroBytes > 0; nNonzeroBytes-- {
		allZero := true
		for bit := 0; bit < 8; bit++ {
			pos := (nNonzeroBytes-1)*8 + bit
			if pos < n && !outputs[pos].IsNull() {
				allZero = false
				break
			}
		}
		if !allZero {
			break
		}
	}
	return nBytes, nNonzeroBytes
}

// outputMask builds the presence bitmap for outputs using the number
// of non-zero bytes CalcMaskSize reports.
func outputMask(outputs []Output, nNonzeroBytes int) bitset.Bytes {
	mask := bitset.Bytes(make([]byte, nNonzeroBytes))
	for i := range outputs {
		if i/8 >= nNonzeroBytes {
			break
		}
		if !outputs[i].IsNull() {
			mask.Set(i)
		}
	}
	return mask
}

// SerializeCoinEntry encodes c into its compact on-the-wire form.
func SerializeCoinEntry(c *CoinEntry) []byte {
	flags := byte(0)
	if c.IsCoinBase {
		flags |= coinFlagCoinBase
	}
	if c.IsFromCert() {
		flags |= coinFlagFromCert
	}

	_, nNonzero := CalcMaskSize(c.Outputs)
	mask := outputMask(c.Outputs, nNonzero)

	size := serializeSizeVLQ(uint64(c.Version)) + 1 +
		serializeSizeVLQ(uint64(c.Height)) +
		serializeSizeVLQ(uint64(nNonzero)) + nNonzero
	if flags&coinFlagFromCert != 0 {
		size += serializeSizeVLQ(uint64(c.FirstBwtPos)) + serializeSizeVLQ(uint64(c.BwtMaturityHeight))
	}
	for i := range c.Outputs {
		if c.Outputs[i].IsNull() {
			continue
		}
		size += serializeSizeVLQ(uint64(c.Outputs[i].Value)) +
			serializeSizeVLQ(uint64(len(c.Outputs[i].Script))) +
			len(c.Outputs[i].Script)
	}

	buf := make([]byte, size)
	off := putVLQ(buf, uint64(uint32(c.Version)))
	buf[off] = flags
	off++
	off += putVLQ(buf[off:], uint64(c.Height))
	off += putVLQ(buf[off:], uint64(nNonzero))
	off += copy(buf[off:], mask)
	if flags&coinFlagFromCert != 0 {
		off += putVLQ(buf[off:], uint64(c.FirstBwtPos))
		off += putVLQ(buf[off:], uint64(c.BwtMaturityHeight))
	}
	for i := range c.Outputs {
		if c.Outputs[i].IsNull() {
			continue
		}
		off += putVLQ(buf[off:], uint64(c.Outputs[i].Value))
		off += putVLQ(buf[off:], uint64(len(c.Outputs[i].Script)))
		off += copy(buf[off:], c.Outputs[i].Script)
	}
	return buf
}

// DeserializeCoinEntry decodes a CoinEntry from its compact wire form.
func DeserializeCoinEntry(serialized []byte) (*CoinEntry, error) {
	version, n := deserializeVLQ(serialized)
	off := n
	if off >= len(serialized) {
		return nil, errDeserialize("unexpected end of data after version")
	}
	flags := serialized[off]
	off++
	if off >= len(serialized) {
		return nil, errDeserialize("unexpected end of data after flags")
	}

	height, n := deserializeVLQ(serialized[off:])
	off += n
	if off >= len(serialized) {
		return nil, errDeserialize("unexpected end of data after height")
	}

	nNonzero, n := deserializeVLQ(serialized[off:])
	off += n
	if off+int(nNonzero) > len(serialized) {
		return nil, errDeserialize("unexpected end of data after mask")
	}
	mask := bitset.Bytes(serialized[off : off+int(nNonzero)])
	off += int(nNonzero)

	c := &CoinEntry{
		IsCoinBase:  flags&coinFlagCoinBase != 0,
		Version:     int32(uint32(version)),
		Height:      Height(height),
		FirstBwtPos: UnsetPos,
	}

	if flags&coinFlagFromCert != 0 {
		fbp, n := deserializeVLQ(serialized[off:])
		off += n
		bmh, n := deserializeVLQ(serialized[off:])
		off += n
		c.FirstBwtPos = uint32(fbp)
		c.BwtMaturityHeight = Height(bmh)
	}

	numOutputs := int(nNonzero) * 8
	c.Outputs = make([]Output, numOutputs)
	for i := 0; i < numOutputs; i++ {
		if !mask.Get(i) {
			continue
		}
		value, n := deserializeVLQ(serialized[off:])
		off += n
		if off >= len(serialized) {
			return nil, errDeserialize(fmt.Sprintf("unexpected end of data decoding output %d", i))
		}
		scriptLen, n := deserializeVLQ(serialized[off:])
		off += n
		if off+int(scriptLen) > len(serialized) {
			return nil, errDeserialize(fmt.Sprintf("unexpected end of data decoding script %d", i))
		}
		script := make([]byte, scriptLen)
		copy(script, serialized[off:off+int(scriptLen)])
		off += int(scriptLen)
		c.Outputs[i] = Output{Value: Amount(value), Script: script}
	}
	c.Cleanup()
	return c, nil
}

// EncodeUndoMarker writes the undoMarker compact-size value that flags a
// BlockUndo as using the new sidechain-aware format, using the same
// wire.WriteVarInt compact-size encoding dcrd uses for its own protocol
// element counts.
func EncodeUndoMarker() []byte {
	var buf bytes.Buffer
	// wire.WriteVarInt only fails if the underlying Writer does; a
	// bytes.Buffer never does.
	_ = wire.WriteVarInt(&buf, wire.ProtocolVersion, undoMarker)
	return buf.Bytes()
}

// DecodeLegacyOrMarker reads a compact-size value from the front of an
// encoded block undo and reports whether it is the new-format marker;
// if not, the returned value is the legacy TxUndo count.
func DecodeLegacyOrMarker(serialized []byte) (value uint64, isMarker bool, err error) {
	value, err = wire.ReadVarInt(bytes.NewReader(serialized), wire.ProtocolVersion)
	if err != nil {
		return 0, false, errDeserialize("unexpected end of data reading undo marker")
	}
	return value, value == undoMarker, nil
}
