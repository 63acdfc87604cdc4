// Package store provides a concrete, optional StateView implementation
// backed by goleveldb, usable as the bottom of a chainstate.CacheView
// stack outside of tests. No persistence format is mandated by the
// specification this package implements; LevelDBStore is additive
// plumbing, not a reimplementation of consensus-critical storage.
package store

import (
	"bytes"
	"encoding/gob"

	"github.com/decred/dcrd/chaincfg/chainhash"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"

	"github.com/sidechainlabs/coinview/chainstate"
)

// Key prefixes separate the five state maps plus the two best-pointer
// scalars within one flat leveldb keyspace, the same convention
// LevelDbUtxoBackend uses for its single utxo-set bucket.
const (
	prefixCoin byte = iota
	prefixAnchor
	prefixNullifier
	prefixSidechain
	prefixEvents
	prefixBestBlock
	prefixBestAnchor
)

var bestBlockKey = []byte{prefixBestBlock}
var bestAnchorKey = []byte{prefixBestAnchor}

// LevelDBStore implements chainstate.StateView using an underlying
// goleveldb database instance as the durable backing store.
type LevelDBStore struct {
	db *leveldb.DB
}

var _ chainstate.StateView = (*LevelDBStore)(nil)

// Open opens (creating if necessary) a LevelDBStore at path.
func Open(path string) (*LevelDBStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, err
	}
	log.Debugf("opened leveldb chain-state store at %s", path)
	return &LevelDBStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *LevelDBStore) Close() error {
	return s.db.Close()
}

func prefixedKey(prefix byte, key chainstate.Hash) []byte {
	k := make([]byte, 1+chainhash.HashSize)
	k[0] = prefix
	copy(k[1:], key[:])
	return k
}

func heightKey(prefix byte, height chainstate.Height) []byte {
	k := make([]byte, 9)
	k[0] = prefix
	u := uint64(height)
	for i := 0; i < 8; i++ {
		k[1+i] = byte(u >> (56 - 8*i))
	}
	return k
}

func gobEncode(v interface{}) []byte {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		panic(err)
	}
	return buf.Bytes()
}

func gobDecode(data []byte, v interface{}) error {
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

// GetCoins implements chainstate.StateView.
func (s *LevelDBStore) GetCoins(id chainstate.Hash) (*chainstate.CoinEntry, bool) {
	data, err := s.db.Get(prefixedKey(prefixCoin, id), nil)
	if err != nil {
		return nil, false
	}
	c, err := chainstate.DeserializeCoinEntry(data)
	if err != nil {
		return nil, false
	}
	return c, true
}

// HaveCoins implements chainstate.StateView.
func (s *LevelDBStore) HaveCoins(id chainstate.Hash) bool {
	c, ok := s.GetCoins(id)
	return ok && !c.IsPruned()
}

type anchorRecord struct {
	Data    []byte
	Entered bool
}

// GetAnchorAt implements chainstate.StateView.
func (s *LevelDBStore) GetAnchorAt(root chainstate.Hash) (*chainstate.AnchorTree, bool) {
	data, err := s.db.Get(prefixedKey(prefixAnchor, root), nil)
	if err != nil {
		return nil, false
	}
	var rec anchorRecord
	if err := gobDecode(data, &rec); err != nil {
		return nil, false
	}
	if !rec.Entered {
		return nil, false
	}
	return chainstate.NewAnchorTree(root, rec.Data), true
}

// GetBestAnchor implements chainstate.StateView.
func (s *LevelDBStore) GetBestAnchor() chainstate.Hash {
	data, err := s.db.Get(bestAnchorKey, nil)
	if err != nil {
		return chainstate.ZeroHash
	}
	var h chainstate.Hash
	copy(h[:], data)
	return h
}

// GetNullifier implements chainstate.StateView.
func (s *LevelDBStore) GetNullifier(n chainstate.Hash) bool {
	data, err := s.db.Get(prefixedKey(prefixNullifier, n), nil)
	if err != nil {
		return false
	}
	return len(data) == 1 && data[0] == 1
}

type sidechainRecord struct {
	CreationBlockHash   chainstate.Hash
	CreationBlockHeight chainstate.Height
	CreationTxHash      chainstate.Hash

	LastTopQualityCertHash            chainstate.Hash
	LastTopQualityCertReferencedEpoch chainstate.Epoch
	LastTopQualityCertQuality         uint64
	LastTopQualityCertBwtAmount       chainstate.Amount
	LastTopQualityCertDataHash        chainstate.Hash

	PastEpochTopQualityCertDataHash chainstate.Hash

	Balance         chainstate.Amount
	ImmatureAmounts map[chainstate.Height]chainstate.Amount

	Creation     chainstate.CreationParams
	CurrentState chainstate.LifecycleState
}

// GetSidechain implements chainstate.StateView.
func (s *LevelDBStore) GetSidechain(scId chainstate.Hash) (*chainstate.Sidechain, bool) {
	data, err := s.db.Get(prefixedKey(prefixSidechain, scId), nil)
	if err != nil {
		return nil, false
	}
	var rec sidechainRecord
	if err := gobDecode(data, &rec); err != nil {
		return nil, false
	}
	return &chainstate.Sidechain{
		CreationBlockHash:                  rec.CreationBlockHash,
		CreationBlockHeight:                rec.CreationBlockHeight,
		CreationTxHash:                     rec.CreationTxHash,
		LastTopQualityCertHash:             rec.LastTopQualityCertHash,
		LastTopQualityCertReferencedEpoch:  rec.LastTopQualityCertReferencedEpoch,
		LastTopQualityCertQuality:          rec.LastTopQualityCertQuality,
		LastTopQualityCertBwtAmount:        rec.LastTopQualityCertBwtAmount,
		LastTopQualityCertDataHash:         rec.LastTopQualityCertDataHash,
		PastEpochTopQualityCertDataHash:    rec.PastEpochTopQualityCertDataHash,
		Balance:                            rec.Balance,
		ImmatureAmounts:                    rec.ImmatureAmounts,
		Creation:                           rec.Creation,
		CurrentState:                       rec.CurrentState,
	}, true
}

// HaveSidechain implements chainstate.StateView.
func (s *LevelDBStore) HaveSidechain(scId chainstate.Hash) bool {
	_, ok := s.GetSidechain(scId)
	return ok
}

// GetScIds implements chainstate.StateView by scanning every key under
// the sidechain prefix.
func (s *LevelDBStore) GetScIds() []chainstate.Hash {
	var ids []chainstate.Hash
	rng := util.BytesPrefix([]byte{prefixSidechain})
	iter := s.db.NewIterator(rng, nil)
	defer iter.Release()
	for iter.Next() {
		var h chainstate.Hash
		copy(h[:], iter.Key()[1:])
		ids = append(ids, h)
	}
	return ids
}

type eventsRecord struct {
	Maturing []chainstate.Hash
	Ceasing  []chainstate.Hash
}

// GetSidechainEvents implements chainstate.StateView.
func (s *LevelDBStore) GetSidechainEvents(height chainstate.Height) (*chainstate.SidechainEvents, bool) {
	data, err := s.db.Get(heightKey(prefixEvents, height), nil)
	if err != nil {
		return nil, false
	}
	var rec eventsRecord
	if err := gobDecode(data, &rec); err != nil {
		return nil, false
	}
	events := chainstate.NewSidechainEvents()
	for _, id := range rec.Maturing {
		events.Maturing[id] = struct{}{}
	}
	for _, id := range rec.Ceasing {
		events.Ceasing[id] = struct{}{}
	}
	return events, true
}

// HaveSidechainEvents implements chainstate.StateView.
func (s *LevelDBStore) HaveSidechainEvents(height chainstate.Height) bool {
	_, ok := s.GetSidechainEvents(height)
	return ok
}

// CheckQuality implements chainstate.StateView.
func (s *LevelDBStore) CheckQuality(cert chainstate.CertificateSource) bool {
	sc, ok := s.GetSidechain(cert.ScId())
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

// GetBestBlock implements chainstate.StateView.
func (s *LevelDBStore) GetBestBlock() chainstate.Hash {
	data, err := s.db.Get(bestBlockKey, nil)
	if err != nil {
		return chainstate.ZeroHash
	}
	var h chainstate.Hash
	copy(h[:], data)
	return h
}

// GetStats implements chainstate.StateView.
func (s *LevelDBStore) GetStats() (chainstate.Stats, bool) {
	coinCount := uint64(0)
	cIter := s.db.NewIterator(util.BytesPrefix([]byte{prefixCoin}), nil)
	for cIter.Next() {
		coinCount++
	}
	cIter.Release()

	return chainstate.Stats{
		CoinCount:      coinCount,
		SidechainCount: uint64(len(s.GetScIds())),
		BestBlockHash:  s.GetBestBlock(),
		BestAnchorRoot: s.GetBestAnchor(),
	}, true
}

// BatchWrite implements chainstate.StateView, applying a drained cache
// layer's dirty state to the database in one leveldb batch, the same
// atomicity LevelDbUtxoBackend.PutUtxos relies on.
func (s *LevelDBStore) BatchWrite(set *chainstate.BatchWriteSet) error {
	batch := new(leveldb.Batch)

	for id := range set.CoinFlags {
		entry := set.Coins[id]
		key := prefixedKey(prefixCoin, id)
		if entry.IsPruned() {
			batch.Delete(key)
			continue
		}
		batch.Put(key, chainstate.SerializeCoinEntry(entry))
	}

	for root := range set.AnchorFlags {
		rec := anchorRecord{Entered: set.AnchorEntered[root]}
		if tree := set.Anchors[root]; tree != nil {
			rec.Data = tree.Bytes()
		}
		batch.Put(prefixedKey(prefixAnchor, root), gobEncode(rec))
	}

	for n := range set.NullifierFlags {
		val := byte(0)
		if set.Nullifiers[n] {
			val = 1
		}
		batch.Put(prefixedKey(prefixNullifier, n), []byte{val})
	}

	for id, state := range set.SidechainStates {
		key := prefixedKey(prefixSidechain, id)
		if state == chainstate.StateErased {
			batch.Delete(key)
			continue
		}
		sc := set.Sidechains[id]
		rec := sidechainRecord{
			CreationBlockHash:                  sc.CreationBlockHash,
			CreationBlockHeight:                sc.CreationBlockHeight,
			CreationTxHash:                     sc.CreationTxHash,
			LastTopQualityCertHash:             sc.LastTopQualityCertHash,
			LastTopQualityCertReferencedEpoch:  sc.LastTopQualityCertReferencedEpoch,
			LastTopQualityCertQuality:          sc.LastTopQualityCertQuality,
			LastTopQualityCertBwtAmount:        sc.LastTopQualityCertBwtAmount,
			LastTopQualityCertDataHash:         sc.LastTopQualityCertDataHash,
			PastEpochTopQualityCertDataHash:    sc.PastEpochTopQualityCertDataHash,
			Balance:                            sc.Balance,
			ImmatureAmounts:                    sc.ImmatureAmounts,
			Creation:                           sc.Creation,
			CurrentState:                       sc.CurrentState,
		}
		batch.Put(key, gobEncode(rec))
	}

	for height, state := range set.EventStates {
		key := heightKey(prefixEvents, height)
		if state == chainstate.StateErased {
			batch.Delete(key)
			continue
		}
		events := set.Events[height]
		rec := eventsRecord{}
		for id := range events.Maturing {
			rec.Maturing = append(rec.Maturing, id)
		}
		for id := range events.Ceasing {
			rec.Ceasing = append(rec.Ceasing, id)
		}
		batch.Put(key, gobEncode(rec))
	}

	bestBlock := set.BestBlockHash
	batch.Put(bestBlockKey, bestBlock[:])
	bestAnchor := set.BestAnchorRoot
	batch.Put(bestAnchorKey, bestAnchor[:])

	return s.db.Write(batch, nil)
}
