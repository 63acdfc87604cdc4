package chainstate

import "github.com/decred/dcrd/chaincfg/chainhash"

// hashBytes folds an arbitrary byte slice into a Hash.  It exists so
// that derived digests (e.g. the active cert data hash) are computed
// with the same primitive chainhash.Hash itself is built on, rather
// than a second hash function.
func hashBytes(b []byte) Hash {
	return chainhash.HashH(b)
}
