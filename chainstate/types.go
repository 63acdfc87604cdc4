// Package chainstate implements the in-memory, layered chain-state cache
// that mediates between a durable chain-state store and block
// connect/disconnect processing for a UTXO-plus-sidechain ledger.  It
// tracks coin entries, shielded-pool anchors and nullifiers, and
// per-sidechain metadata and event schedules, and supports stacking
// short-lived views over long-lived ones with precise dirty/fresh/erased
// write-through semantics on flush.
package chainstate

import "github.com/decred/dcrd/chaincfg/chainhash"

// Hash is an opaque 256-bit digest used as the key for every map this
// package maintains: transaction/certificate ids, anchor roots,
// nullifiers, sidechain ids and block hashes.  It is chainhash.Hash
// rather than a locally defined array type so that every cache
// consumer shares one well-tested digest type with String/IsEqual
// already implemented.
type Hash = chainhash.Hash

// Amount is a signed quantity of value, expressed in the smallest
// indivisible unit of the ledger's currency.
type Amount int64

// Height is a block height.  Heights are always non-negative in
// practice; the type is a plain int64 (not unsigned) so that height
// arithmetic such as "height - maturity" can be performed and compared
// against sentinel negative values without wrapping.
type Height int64

// Epoch identifies a sidechain withdrawal epoch.  NoEpoch is the
// sentinel value meaning "no certificate has referenced any epoch yet."
type Epoch int32

// NoEpoch is the sentinel Epoch value used for a sidechain that has
// never received a certificate.
const NoEpoch Epoch = -1

// UnsetPos is the sentinel value of CoinEntry.FirstBwtPos for entries
// that did not originate from a certificate.
const UnsetPos uint32 = ^uint32(0)

// CertVersionMarker is the low-7-bits value that identifies a CoinEntry
// as certificate-derived.  The test (version & 0x7f) == CertVersionMarker
// must survive truncation of the version field to 7 bits on the wire.
const CertVersionMarker int32 = 0x7c

// ZeroHash is the all-zero digest used as a sentinel "no hash" value
// (e.g. a sidechain that has never had a top-quality certificate).
var ZeroHash Hash
