package chainstate

// LifecycleState is the current state of a sidechain.
type LifecycleState uint8

const (
	// StateUnconfirmed means the sidechain's creation transaction has
	// not yet matured into ALIVE.  This package models sidechains as
	// ALIVE immediately on creation (see NewSidechain); Unconfirmed is
	// retained for callers whose mempool layer tracks unconfirmed
	// creations before they are known to this cache.
	StateUnconfirmed LifecycleState = iota
	StateAlive
	StateCeased
	StateNotApplicable
)

// CreationParams are the immutable parameters fixed when a sidechain is
// created.
type CreationParams struct {
	WithdrawalEpochLength Height
	CustomData            []byte
	Constant              []byte
	WCertVk               []byte
	WMbtrVkOpt            []byte
}

// HasMbtrVk reports whether the sidechain declared a backward-transfer
// request verification key, required for is_tx_applicable's bwt-request
// check.
func (p *CreationParams) HasMbtrVk() bool {
	return p != nil && len(p.WMbtrVkOpt) > 0
}

// Sidechain is the per-sidechain accumulated state: balance, immature
// amount schedule, the current top-quality certificate pointer, its
// creation parameters, and lifecycle state.
type Sidechain struct {
	CreationBlockHash   Hash
	CreationBlockHeight Height
	CreationTxHash      Hash

	LastTopQualityCertHash           Hash
	LastTopQualityCertReferencedEpoch Epoch
	LastTopQualityCertQuality        uint64
	LastTopQualityCertBwtAmount      Amount
	LastTopQualityCertDataHash       Hash

	PastEpochTopQualityCertDataHash Hash

	Balance Amount

	// ImmatureAmounts maps a future height to the amount that becomes
	// spendable (added to Balance) at that height.  Iteration order
	// matters for deterministic serialization; IterateImmatureAmounts
	// walks it in ascending height order.
	ImmatureAmounts map[Height]Amount

	Creation CreationParams

	CurrentState LifecycleState
}

// NewSidechain constructs a freshly created sidechain record.  It is
// always born ALIVE with LastTopQualityCertReferencedEpoch set to
// NoEpoch, per update_sidechain_on_tx's CcOutCreation handling.
func NewSidechain(creationBlockHash Hash, creationBlockHeight Height, creationTxHash Hash, params CreationParams) *Sidechain {
	return &Sidechain{
		CreationBlockHash:                 creationBlockHash,
		CreationBlockHeight:                creationBlockHeight,
		CreationTxHash:                     creationTxHash,
		LastTopQualityCertReferencedEpoch:  NoEpoch,
		ImmatureAmounts:                    make(map[Height]Amount),
		Creation:                           params,
		CurrentState:                       StateAlive,
	}
}

// clone returns a deep copy of the sidechain record, used when a cache
// layer materializes a mutable mirror of a base entry.
func (s *Sidechain) clone() *Sidechain {
	if s == nil {
		return nil
	}
	cp := *s
	cp.ImmatureAmounts = make(map[Height]Amount, len(s.ImmatureAmounts))
	for h, a := range s.ImmatureAmounts {
		cp.ImmatureAmounts[h] = a
	}
	cp.Creation.CustomData = append([]byte(nil), s.Creation.CustomData...)
	cp.Creation.Constant = append([]byte(nil), s.Creation.Constant...)
	cp.Creation.WCertVk = append([]byte(nil), s.Creation.WCertVk...)
	cp.Creation.WMbtrVkOpt = append([]byte(nil), s.Creation.WMbtrVkOpt...)
	return &cp
}

// IterateImmatureAmounts returns the immature amount schedule's heights
// in ascending order, for deterministic iteration.
func (s *Sidechain) IterateImmatureAmounts() []Height {
	heights := make([]Height, 0, len(s.ImmatureAmounts))
	for h := range s.ImmatureAmounts {
		heights = append(heights, h)
	}
	// simple insertion sort: schedules are small (a handful of pending
	// maturities per sidechain at any time).
	for i := 1; i < len(heights); i++ {
		for j := i; j > 0 && heights[j-1] > heights[j]; j-- {
			heights[j-1], heights[j] = heights[j], heights[j-1]
		}
	}
	return heights
}

// SidechainEvents is the set of sidechain ids with scheduled activity
// at a given height: those whose immature amounts mature, and those
// that cease unless superseded by a fresh certificate first.
type SidechainEvents struct {
	Maturing map[Hash]struct{}
	Ceasing  map[Hash]struct{}
}

// NewSidechainEvents returns an empty SidechainEvents.
func NewSidechainEvents() *SidechainEvents {
	return &SidechainEvents{
		Maturing: make(map[Hash]struct{}),
		Ceasing:  make(map[Hash]struct{}),
	}
}

// IsNull reports whether both sets are empty.  Null entries must be
// erased rather than written, per spec.
func (e *SidechainEvents) IsNull() bool {
	return e == nil || (len(e.Maturing) == 0 && len(e.Ceasing) == 0)
}

func (e *SidechainEvents) clone() *SidechainEvents {
	if e == nil {
		return nil
	}
	cp := NewSidechainEvents()
	for id := range e.Maturing {
		cp.Maturing[id] = struct{}{}
	}
	for id := range e.Ceasing {
		cp.Ceasing[id] = struct{}{}
	}
	return cp
}
