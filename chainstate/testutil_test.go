package chainstate

// mapView is a trivial in-memory StateView used as a populated base in
// tests that need more than NewNullView's always-miss behavior, playing
// the role dcrd's testUtxoBackend fakes play for UtxoCache tests.
type mapView struct {
	coins      map[Hash]*CoinEntry
	anchors    map[Hash]*AnchorTree
	anchorIn   map[Hash]bool
	bestAnchor Hash
	nullifiers map[Hash]bool
	sidechains map[Hash]*Sidechain
	events     map[Height]*SidechainEvents
	bestBlock  Hash
}

func newMapView() *mapView {
	return &mapView{
		coins:      make(map[Hash]*CoinEntry),
		anchors:    make(map[Hash]*AnchorTree),
		anchorIn:   make(map[Hash]bool),
		nullifiers: make(map[Hash]bool),
		sidechains: make(map[Hash]*Sidechain),
		events:     make(map[Height]*SidechainEvents),
	}
}

func (m *mapView) GetCoins(id Hash) (*CoinEntry, bool) { c, ok := m.coins[id]; return c, ok }
func (m *mapView) HaveCoins(id Hash) bool {
	c, ok := m.coins[id]
	return ok && !c.IsPruned()
}
func (m *mapView) GetAnchorAt(root Hash) (*AnchorTree, bool) {
	t, ok := m.anchors[root]
	if !ok || !m.anchorIn[root] {
		return nil, false
	}
	return t, true
}
func (m *mapView) GetBestAnchor() Hash      { return m.bestAnchor }
func (m *mapView) GetNullifier(n Hash) bool { return m.nullifiers[n] }
func (m *mapView) GetSidechain(scId Hash) (*Sidechain, bool) {
	sc, ok := m.sidechains[scId]
	return sc, ok
}
func (m *mapView) HaveSidechain(scId Hash) bool { _, ok := m.sidechains[scId]; return ok }
func (m *mapView) GetScIds() []Hash {
	ids := make([]Hash, 0, len(m.sidechains))
	for id := range m.sidechains {
		ids = append(ids, id)
	}
	return ids
}
func (m *mapView) GetSidechainEvents(height Height) (*SidechainEvents, bool) {
	e, ok := m.events[height]
	return e, ok
}
func (m *mapView) HaveSidechainEvents(height Height) bool { _, ok := m.events[height]; return ok }
func (m *mapView) CheckQuality(cert CertificateSource) bool {
	sc, ok := m.sidechains[cert.ScId()]
	if !ok {
		return true
	}
	if sc.LastTopQualityCertHash == cert.Hash() {
		return true
	}
	if sc.LastTopQualityCertReferencedEpoch == cert.Epoch() && sc.LastTopQualityCertQuality >= cert.Quality() {
		return false
	}
	return true
}
func (m *mapView) GetBestBlock() Hash { return m.bestBlock }
func (m *mapView) GetStats() (Stats, bool) {
	return Stats{
		CoinCount:      uint64(len(m.coins)),
		SidechainCount: uint64(len(m.sidechains)),
		BestBlockHash:  m.bestBlock,
		BestAnchorRoot: m.bestAnchor,
	}, true
}

// BatchWrite applies a child cache's drained state directly into the
// maps, since mapView plays the role of a terminal backing store:
// pruned coin entries and ERASED sidechain/event entries are deleted,
// everything else overwrites what is there.  The FRESH/DIRTY flags are
// not checked, unlike CacheView.BatchWrite.
func (m *mapView) BatchWrite(set *BatchWriteSet) error {
	for id, e := range set.Coins {
		if e.IsPruned() {
			delete(m.coins, id)
			continue
		}
		m.coins[id] = e
	}
	for root, entered := range set.AnchorEntered {
		m.anchors[root] = set.Anchors[root]
		m.anchorIn[root] = entered
	}
	for n, entered := range set.Nullifiers {
		m.nullifiers[n] = entered
	}
	for id, state := range set.SidechainStates {
		if state == StateErased {
			delete(m.sidechains, id)
			continue
		}
		m.sidechains[id] = set.Sidechains[id]
	}
	for h, state := range set.EventStates {
		if state == StateErased {
			delete(m.events, h)
			continue
		}
		m.events[h] = set.Events[h]
	}
	m.bestBlock = set.BestBlockHash
	m.bestAnchor = set.BestAnchorRoot
	return nil
}

// hashFromByte builds a deterministic, distinguishable Hash for tests.
func hashFromByte(b byte) Hash {
	var h Hash
	h[0] = b
	return h
}

// fakeCert is a minimal CertificateSource for sidechain tests.
type fakeCert struct {
	hash      Hash
	scId      Hash
	epoch     Epoch
	quality   uint64
	change    []Output
	bwts      []Output
	bwtTotal  Amount
	dataHash  Hash
}

func (c *fakeCert) Hash() Hash                  { return c.hash }
func (c *fakeCert) ScId() Hash                   { return c.scId }
func (c *fakeCert) Epoch() Epoch                 { return c.epoch }
func (c *fakeCert) Quality() uint64              { return c.quality }
func (c *fakeCert) ChangeOutputs() []Output      { return c.change }
func (c *fakeCert) BackwardTransfers() []Output  { return c.bwts }
func (c *fakeCert) BwtTotal() Amount             { return c.bwtTotal }
func (c *fakeCert) DataHash() Hash               { return c.dataHash }

// fakeTx is a minimal TransactionSource for coin tests.
type fakeTx struct {
	hash     Hash
	coinbase bool
	outputs  []Output
}

func (t *fakeTx) Hash() Hash          { return t.hash }
func (t *fakeTx) IsCoinBase() bool    { return t.coinbase }
func (t *fakeTx) Outputs() []Output   { return t.outputs }

// fakeSidechainTx is a minimal SidechainTxSource for cross-chain output
// tests.
type fakeSidechainTx struct {
	hash        Hash
	creations   []CcOutCreation
	forwards    []CcOutForwardTransfer
	bwtRequests []CcOutBwtRequest
}

func (t *fakeSidechainTx) Hash() Hash                            { return t.hash }
func (t *fakeSidechainTx) ScCreations() []CcOutCreation          { return t.creations }
func (t *fakeSidechainTx) ForwardTransfers() []CcOutForwardTransfer { return t.forwards }
func (t *fakeSidechainTx) BwtRequests() []CcOutBwtRequest        { return t.bwtRequests }

// fakeHeader is a minimal BlockHeader for chain-context tests.
type fakeHeader struct{ hash Hash }

func (h fakeHeader) Hash() Hash { return h.hash }

// fakeChain is a linear ChainContext indexed by height, used to validate
// IsEpochDataValid / IsCertApplicable without a real block index.
type fakeChain struct {
	byHeight map[Height]Hash
}

func newFakeChain() *fakeChain { return &fakeChain{byHeight: make(map[Height]Hash)} }

func (c *fakeChain) set(height Height, hash Hash) { c.byHeight[height] = hash }

func (c *fakeChain) Contains(hash Hash) bool {
	for _, h := range c.byHeight {
		if h == hash {
			return true
		}
	}
	return false
}

func (c *fakeChain) At(height Height) (BlockHeader, bool) {
	h, ok := c.byHeight[height]
	if !ok {
		return nil, false
	}
	return fakeHeader{hash: h}, true
}

// acceptVerifier is a ProofVerifier that accepts everything, for tests
// that aren't exercising proof-rejection paths.
type acceptVerifier struct{}

func (acceptVerifier) VerifyCert([]byte, []byte, Hash, CertificateSource) bool { return true }
func (acceptVerifier) VerifyBwtRequest(Hash, [][]byte, []byte, Amount, []byte, []byte, Hash) bool {
	return true
}

// rejectVerifier is a ProofVerifier that rejects everything.
type rejectVerifier struct{}

func (rejectVerifier) VerifyCert([]byte, []byte, Hash, CertificateSource) bool { return false }
func (rejectVerifier) VerifyBwtRequest(Hash, [][]byte, []byte, Amount, []byte, []byte, Hash) bool {
	return false
}

func testConfig() Config {
	return Config{
		ScCoinMaturity:   2,
		SafeguardMargin:  2,
		CoinbaseMaturity: 100,
		MaxCacheEntries:  0,
		FlushPeriod:      0,
	}
}
