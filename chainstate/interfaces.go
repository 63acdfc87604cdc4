package chainstate

// ProofVerifier is the injected zero-knowledge proof verification
// collaborator.  Proof construction and verification are out of scope
// for this package; it only ever calls through this interface.
type ProofVerifier interface {
	// VerifyCert reports whether cert's proof is valid given the
	// sidechain's constant, its certificate verification key, and the
	// hash of the block ending the previous epoch.
	VerifyCert(constant, wCertVk []byte, previousEndEpochBlockHash Hash, cert CertificateSource) bool

	// VerifyBwtRequest reports whether a backward-transfer request's
	// proof is valid.
	VerifyBwtRequest(scId Hash, requestData [][]byte, mcDestination []byte, scFee Amount, proof []byte, wMbtrVk []byte, activeCertDataHash Hash) bool
}

// BlockHeader is the narrow view of a block header this package needs
// from the active chain: its own hash.  Block structure and validation
// are out of scope.
type BlockHeader interface {
	Hash() Hash
}

// ChainContext is the injected active-chain collaborator used to
// validate a certificate's epoch-ending block hash against the chain
// the cache is layered over.
type ChainContext interface {
	// Contains reports whether hash names a block on the active chain.
	Contains(hash Hash) bool

	// At returns the header of the block at height on the active
	// chain, or false if height is out of range.
	At(height Height) (BlockHeader, bool)
}
