package chainstate

// AnchorTree is an opaque shielded-pool note commitment tree.  Its
// internal structure (and the cryptography that builds it) is out of
// scope for this package; the cache only needs to store it keyed by its
// root digest and hand it back unchanged.
type AnchorTree struct {
	root Hash
	data []byte
}

// NewAnchorTree wraps an opaque tree blob with its root digest.
func NewAnchorTree(root Hash, data []byte) *AnchorTree {
	return &AnchorTree{root: root, data: data}
}

// Root returns the tree's root digest.
func (t *AnchorTree) Root() Hash {
	if t == nil {
		return ZeroHash
	}
	return t.root
}

// Bytes returns the tree's opaque serialized form.
func (t *AnchorTree) Bytes() []byte {
	if t == nil {
		return nil
	}
	return t.data
}

func (t *AnchorTree) clone() *AnchorTree {
	if t == nil {
		return nil
	}
	data := make([]byte, len(t.data))
	copy(data, t.data)
	return &AnchorTree{root: t.root, data: data}
}

// Stats summarizes the coin and sidechain population visible through a
// view, for operational diagnostics (grounded on CCoinsViewDB::GetStats
// / Dump_info in the source this package is modeled on).
type Stats struct {
	CoinCount      uint64
	SidechainCount uint64
	BestBlockHash  Hash
	BestAnchorRoot Hash
}

// BatchWriteSet bundles everything an upward flush moves from a child
// layer into its base in one atomic call.
type BatchWriteSet struct {
	Coins            map[Hash]*CoinEntry
	CoinFlags        map[Hash]EntryFlags
	BestBlockHash    Hash
	BestAnchorRoot   Hash
	Anchors          map[Hash]*AnchorTree
	AnchorEntered    map[Hash]bool
	AnchorFlags      map[Hash]EntryFlags
	Nullifiers       map[Hash]bool
	NullifierFlags   map[Hash]EntryFlags
	Sidechains       map[Hash]*Sidechain
	SidechainStates  map[Hash]CacheState
	Events           map[Height]*SidechainEvents
	EventStates      map[Height]CacheState
}

// StateView is the read interface every layer of the chain-state cache
// stack (and its ultimate persistent backing store) implements.  Every
// lookup returns false with its out-param unspecified on a miss; a
// bottom "null" view that always returns false/zero values is valid and
// used as the base of the lowest cache in tests.
type StateView interface {
	GetCoins(id Hash) (*CoinEntry, bool)
	HaveCoins(id Hash) bool

	GetAnchorAt(root Hash) (*AnchorTree, bool)
	GetBestAnchor() Hash

	GetNullifier(n Hash) bool

	GetSidechain(scId Hash) (*Sidechain, bool)
	HaveSidechain(scId Hash) bool
	GetScIds() []Hash

	GetSidechainEvents(height Height) (*SidechainEvents, bool)
	HaveSidechainEvents(height Height) bool

	CheckQuality(cert CertificateSource) bool

	GetBestBlock() Hash

	GetStats() (Stats, bool)

	BatchWrite(set *BatchWriteSet) error
}

// nullView is the bottom-of-stack StateView that always reports a miss.
// It lets a fresh CacheView be constructed without a real backing
// store, the pattern spec.md calls out for use in tests.
type nullView struct{}

// NewNullView returns a StateView with no entries, suitable as the base
// of the lowest cache layer in a stack, e.g. in unit tests.
func NewNullView() StateView { return nullView{} }

func (nullView) GetCoins(Hash) (*CoinEntry, bool)                { return nil, false }
func (nullView) HaveCoins(Hash) bool                             { return false }
func (nullView) GetAnchorAt(Hash) (*AnchorTree, bool)            { return nil, false }
func (nullView) GetBestAnchor() Hash                             { return ZeroHash }
func (nullView) GetNullifier(Hash) bool                          { return false }
func (nullView) GetSidechain(Hash) (*Sidechain, bool)            { return nil, false }
func (nullView) HaveSidechain(Hash) bool                         { return false }
func (nullView) GetScIds() []Hash                                { return nil }
func (nullView) GetSidechainEvents(Height) (*SidechainEvents, bool) { return nil, false }
func (nullView) HaveSidechainEvents(Height) bool                 { return false }
func (nullView) CheckQuality(CertificateSource) bool             { return true }
func (nullView) GetBestBlock() Hash                              { return ZeroHash }
func (nullView) GetStats() (Stats, bool)                         { return Stats{}, false }
func (nullView) BatchWrite(*BatchWriteSet) error                 { return nil }

// BackedView is a StateView that forwards every operation to a mutable
// pointer to a base StateView.  The base may be rebound at runtime via
// SetBackend without rebuilding any cache stacked on top of it.
type BackedView struct {
	base StateView
}

// NewBackedView returns a BackedView forwarding to base.
func NewBackedView(base StateView) *BackedView {
	if base == nil {
		base = NewNullView()
	}
	return &BackedView{base: base}
}

// SetBackend rebinds the view this BackedView forwards to.
func (v *BackedView) SetBackend(base StateView) {
	if base == nil {
		base = NewNullView()
	}
	v.base = base
}

func (v *BackedView) GetCoins(id Hash) (*CoinEntry, bool)     { return v.base.GetCoins(id) }
func (v *BackedView) HaveCoins(id Hash) bool                  { return v.base.HaveCoins(id) }
func (v *BackedView) GetAnchorAt(root Hash) (*AnchorTree, bool) {
	return v.base.GetAnchorAt(root)
}
func (v *BackedView) GetBestAnchor() Hash             { return v.base.GetBestAnchor() }
func (v *BackedView) GetNullifier(n Hash) bool        { return v.base.GetNullifier(n) }
func (v *BackedView) GetSidechain(scId Hash) (*Sidechain, bool) {
	return v.base.GetSidechain(scId)
}
func (v *BackedView) HaveSidechain(scId Hash) bool { return v.base.HaveSidechain(scId) }
func (v *BackedView) GetScIds() []Hash             { return v.base.GetScIds() }
func (v *BackedView) GetSidechainEvents(height Height) (*SidechainEvents, bool) {
	return v.base.GetSidechainEvents(height)
}
func (v *BackedView) HaveSidechainEvents(height Height) bool {
	return v.base.HaveSidechainEvents(height)
}
func (v *BackedView) CheckQuality(cert CertificateSource) bool { return v.base.CheckQuality(cert) }
func (v *BackedView) GetBestBlock() Hash                       { return v.base.GetBestBlock() }
func (v *BackedView) GetStats() (Stats, bool)                  { return v.base.GetStats() }
func (v *BackedView) BatchWrite(set *BatchWriteSet) error      { return v.base.BatchWrite(set) }
