package mempool

// Entry is one record in the mempool graph: a transaction plus everything
// the pool tracks about it — fees, size, lock points, and the cached
// ancestor/descendant rollups that make eviction and ancestor-limit
// enforcement O(package size) instead of O(full traversal) on every call.
//
// Entries are pinned for their lifetime: once inserted, an *Entry is never
// moved or copied, so the parent/child sets below can hold direct pointers
// instead of indirecting through another lookup.
type Entry struct {
	Tx   Tx
	Fee  int64 // absolute fee paid, satoshis
	Size int   // ModifiedSize() at insertion time, cached

	Time           int64 // unix seconds, pool entry time
	Height         int32 // chain height at entry time
	SigOpCost      int64
	SpendsCoinbase bool
	LockPoints     LockPoints

	// UsageSize is this entry's contribution to DynamicMemoryUsage: its
	// Size plus entryOverheadBytes (struct overhead, index node cost).
	UsageSize int64

	// FeeDelta is the prioritisation modifier currently applied, kept in
	// sync with mapDeltas so removing and reinserting the same entry
	// doesn't require recomputing it from scratch.
	FeeDelta int64

	// EntryPriority, together with Height, supports GetPriority's
	// free-transaction priority. Not used by fee-based eviction; carried for
	// callers that still implement the legacy "ancient coins get a
	// relay break" policy.
	EntryPriority float64

	// Aggregates "with descendants": this entry plus every transitive
	// descendant currently in the mempool.
	CountWithDescendants int64
	SizeWithDescendants  int64
	ModFeesWithDescendants int64

	// Aggregates "with ancestors": this entry plus every transitive
	// ancestor currently in the mempool.
	CountWithAncestors      int64
	SizeWithAncestors       int64
	SigOpCostWithAncestors  int64
	ModFeesWithAncestors    int64

	// Parents and Children are the direct (one-hop) edges, keyed by
	// txid for O(1) membership tests.
	Parents  map[Hash]*Entry
	Children map[Hash]*Entry

	// epoch is the visitation tag used by EpochGuard; see epoch.go.
	epoch uint64

	// vTxHashesIdx is this entry's position in the mempool's witness-hash
	// side vector, maintained by addUnchecked/removeUnchecked via
	// swap-remove.
	vTxHashesIdx int

	// Index bookkeeping: the btree items most recently inserted for this
	// entry in each ordering, so removal and re-sort ("touch") can find
	// and delete the exact node without a second lookup.
	timeItem     *byTimeItem
	descScoreItem *byDescendantScoreItem
	ancScoreItem  *byAncestorScoreItem
	scoreItem     *byScoreItem
}

// newEntry builds an Entry with its self-referential aggregates
// initialized (count=1, size/fee equal to its own), exactly as
// NewTxentry/NewTxMempoolEntry do in the source.
func newEntry(tx Tx, fee int64, entryTime int64, height int32, lp LockPoints, sigOpCost int64, spendsCoinbase bool) *Entry {
	size := tx.ModifiedSize()
	e := &Entry{
		Tx:                     tx,
		Fee:                    fee,
		Size:                   size,
		Time:                   entryTime,
		Height:                 height,
		SigOpCost:              sigOpCost,
		SpendsCoinbase:         spendsCoinbase,
		LockPoints:             lp,
		UsageSize:              int64(size) + entryOverheadBytes,
		CountWithDescendants:   1,
		SizeWithDescendants:    int64(size),
		ModFeesWithDescendants: fee,
		CountWithAncestors:     1,
		SizeWithAncestors:      int64(size),
		SigOpCostWithAncestors: sigOpCost,
		ModFeesWithAncestors:   fee,
		Parents:                make(map[Hash]*Entry),
		Children:               make(map[Hash]*Entry),
	}
	return e
}

// entryOverheadBytes approximates the fixed per-entry bookkeeping cost
// (struct fields, map slots, index nodes) folded into DynamicMemoryUsage;
// the source measures this with unsafe.Sizeof over the concrete struct,
// which has no equivalent once Tx is an interface, so a constant estimate
// stands in for it.
const entryOverheadBytes = 368

// GetFeeRate returns the feerate of this transaction alone (its own fee
// over its own size), used by the "score only" ordering.
func (e *Entry) GetFeeRate() FeeRate {
	return NewFeeRateWithSize(e.Fee+e.FeeDelta, e.Size)
}

// descendantScore is modFeesWithDescendants / sizeWithDescendants, the key
// eviction sorts by ascending (lowest first).
func (e *Entry) descendantScore() FeeRate {
	return NewFeeRateWithSize(e.ModFeesWithDescendants, int(e.SizeWithDescendants))
}

// ancestorScore is modFeesWithAncestors / sizeWithAncestors, the key
// sorted output uses (highest first, i.e. best "package" to mine next).
func (e *Entry) ancestorScore() FeeRate {
	return NewFeeRateWithSize(e.ModFeesWithAncestors, int(e.SizeWithAncestors))
}

// GetPriority computes the free-transaction priority at currentHeight:
// EntryPriority plus the blocks elapsed since Height divided by Size, so
// it grows as the entry ages, floored at zero rather than going negative
// (a currentHeight below Height). It plays no role in
// fee-based eviction; it exists for callers implementing the legacy
// free-relay policy.
func (e *Entry) GetPriority(currentHeight int32) float64 {
	if e.Size == 0 {
		return e.EntryPriority
	}
	delta := float64(currentHeight-e.Height) / float64(e.Size)
	result := e.EntryPriority + delta
	if result < 0 {
		return 0
	}
	return result
}

// UpdateFeeDelta applies a new prioritisation delta, adjusting both
// descendant and ancestor aggregates by the difference from the old delta
// (mirrors TxMempoolEntry.UpdateFeeDelta: the entry's own aggregates
// include its own fee, so both rollups need the same correction).
func (e *Entry) UpdateFeeDelta(newFeeDelta int64) {
	diff := newFeeDelta - e.FeeDelta
	e.ModFeesWithDescendants += diff
	e.ModFeesWithAncestors += diff
	e.FeeDelta = newFeeDelta
}

// UpdateDescendantState applies a delta to the "with descendants" rollup,
// used when a descendant is added, removed, or re-prioritised.
func (e *Entry) UpdateDescendantState(sizeDelta int64, feeDelta int64, countDelta int64) {
	e.SizeWithDescendants += sizeDelta
	e.ModFeesWithDescendants += feeDelta
	e.CountWithDescendants += countDelta
}

// UpdateAncestorState applies a delta to the "with ancestors" rollup, used
// when an ancestor is added, removed, or re-prioritised.
func (e *Entry) UpdateAncestorState(sizeDelta int64, countDelta int64, sigOpDelta int64, feeDelta int64) {
	e.SizeWithAncestors += sizeDelta
	e.CountWithAncestors += countDelta
	e.SigOpCostWithAncestors += sigOpDelta
	e.ModFeesWithAncestors += feeDelta
}

// Info is the read-only snapshot returned by Mempool.Info/InfoAll: enough
// to answer RPC-style queries without exposing the live Entry for
// mutation.
type Info struct {
	Tx       Tx
	Time     int64
	FeeRate  FeeRate
	FeeDelta int64
}

func (e *Entry) Info() Info {
	return Info{
		Tx:       e.Tx,
		Time:     e.Time,
		FeeRate:  e.GetFeeRate(),
		FeeDelta: e.FeeDelta,
	}
}
