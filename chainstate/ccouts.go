package chainstate

// CcOutCreation is a sidechain creation output.
type CcOutCreation struct {
	ScId   Hash
	Value  Amount
	Params CreationParams
}

// CcOutForwardTransfer moves value from the mainchain into an existing
// sidechain.
type CcOutForwardTransfer struct {
	ScId  Hash
	Value Amount
}

// CcOutBwtRequest requests a future backward transfer from a sidechain,
// backed by a zero-knowledge proof over its request data.
type CcOutBwtRequest struct {
	ScId          Hash
	Value         Amount
	RequestData   [][]byte
	MCDestination []byte
	Fee           Amount
	Proof         []byte
}

// SidechainTxSource is the narrow data contract update_sidechain_on_tx
// and is_tx_applicable need from a parsed transaction's sidechain
// cross-chain outputs.
type SidechainTxSource interface {
	Hash() Hash
	ScCreations() []CcOutCreation
	ForwardTransfers() []CcOutForwardTransfer
	BwtRequests() []CcOutBwtRequest
}
