// Package mempool maintains an in-memory directed acyclic graph of
// unconfirmed transactions: insertion, removal, ancestor/descendant
// bookkeeping, fee-based eviction, and the consistency audit that ties it
// all together.
//
// The data model is a direct port of a full node's transaction memory
// pool (mapTx/mapNextTx/mapDeltas, cached ancestor/descendant rollups,
// epoch-tagged traversal in place of per-call visited sets). A single
// mutex serializes every operation; there is no internal concurrency.
package mempool

import (
	"math"
	"sync"

	"github.com/pkg/errors"

	"github.com/copernet/txcore/txlog"
)

// MempoolHeight is the fake height CoinsViewMemPool uses to mark a Coin as
// existing only in the mempool, never on chain.
const MempoolHeight = math.MaxInt32

// Mempool is a single mutex-protected mapTx plus its secondary indices.
// The zero value is not usable; construct with NewMempool.
type Mempool struct {
	cfg Config

	mu sync.Mutex

	index    *multiIndex
	mapNextTx map[OutPoint]*Entry
	mapDeltas map[Hash]int64
	vTxHashes []witnessHashSlot

	epochTracker epochTracker

	totalTxSize       int64
	cachedInnerUsage  int64
	transactionsUpdated uint64

	rollingMinimumFeeRate       float64
	lastRollingFeeUpdate        int64
	blockSinceLastRollingFeeBump bool

	isLoaded bool

	// checkFrequency gates how often Check runs a full audit when called
	// via MaybeCheck, expressed as parts-per-UINT32_MAX like the source;
	// 0 disables the probabilistic self-check entirely.
	checkFrequency uint32
}

type witnessHashSlot struct {
	hash  Hash
	entry *Entry
}

// NewMempool builds an empty mempool. cfg's zero-valued fields are filled
// with defaults (see Config.withDefaults).
func NewMempool(cfg Config) *Mempool {
	m := &Mempool{
		cfg:       cfg.withDefaults(),
		index:     newMultiIndex(),
		mapNextTx: make(map[OutPoint]*Entry),
		mapDeltas: make(map[Hash]int64),
	}
	m.lastRollingFeeUpdate = m.cfg.Now()
	return m
}

// Lock/Unlock let a caller hold the mempool's mutex around its own work
// on a collaborating UTXO view, or on an Entry returned by Get. The mutex
// is not reentrant and every exported Mempool method takes it itself, so
// no Mempool method can be called between Lock and Unlock.
func (m *Mempool) Lock()   { m.mu.Lock() }
func (m *Mempool) Unlock() { m.mu.Unlock() }

// AddUnchecked computes tx's in-mempool ancestors (searching its inputs)
// and, if within limits, inserts it. The caller is responsible for having
// already validated tx against consensus and policy rules; AddUnchecked
// itself performs no such checks.
func (m *Mempool) AddUnchecked(tx Tx, fee int64, entryTime int64, height int32, lp LockPoints, sigOpCost int64, spendsCoinbase bool, limits AncestorLimits, validFeeEstimate bool) (*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := newEntry(tx, fee, entryTime, height, lp, sigOpCost, spendsCoinbase)
	ancestors, err := m.calculateMemPoolAncestorsLocked(entry, limits, true)
	if err != nil {
		return nil, err
	}
	m.addUncheckedWithAncestorsLocked(entry, ancestors, validFeeEstimate)
	return entry, nil
}

// AddUncheckedWithAncestors inserts entry using a caller-supplied ancestor
// set, skipping the ancestor search — used when the caller already knows
// the ancestor set (e.g. reinserting transactions during a reorg).
func (m *Mempool) AddUncheckedWithAncestors(entry *Entry, ancestors map[Hash]*Entry, validFeeEstimate bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addUncheckedWithAncestorsLocked(entry, ancestors, validFeeEstimate)
}

func (m *Mempool) addUncheckedWithAncestorsLocked(entry *Entry, ancestors map[Hash]*Entry, validFeeEstimate bool) {
	txid := entry.Tx.Hash()
	m.index.add(entry)

	if delta, ok := m.mapDeltas[txid]; ok {
		entry.UpdateFeeDelta(delta)
		m.index.touchScore(entry)
		m.index.touchDescendantScore(entry)
		m.index.touchAncestorScore(entry)
	}

	m.cachedInnerUsage += entry.UsageSize

	for _, op := range entry.Tx.Inputs() {
		m.mapNextTx[op] = entry
		if parent := m.index.get(op.Hash); parent != nil {
			entry.Parents[parent.Tx.Hash()] = parent
		}
	}

	// updateAncestorsOfLocked(true, ...) wires entry into each direct
	// parent's Children set from entry.Parents (just populated above) and
	// applies entry's contribution to every ancestor's descendant rollup.
	m.updateAncestorsOfLocked(true, entry, ancestors)
	m.updateEntryForAncestorsLocked(entry, ancestors)

	m.transactionsUpdated++
	m.totalTxSize += int64(entry.Size)
	m.cfg.FeeEstimator.ProcessTransaction(entry, validFeeEstimate)

	m.vTxHashes = append(m.vTxHashes, witnessHashSlot{hash: entry.Tx.WitnessHash(), entry: entry})
	entry.vTxHashesIdx = len(m.vTxHashes) - 1

	m.cfg.Notifier.NotifyEntryAdded(entry)
	txlog.Trace("mempool: added %s (ancestors=%d)", txid, len(ancestors))
}

// updateAncestorsOfLocked adds or removes entry as a descendant of each of
// its parents (add=true on insertion, false on removal) and applies the
// corresponding size/fee/count delta to every entry in ancestors.
func (m *Mempool) updateAncestorsOfLocked(add bool, entry *Entry, ancestors map[Hash]*Entry) {
	if add {
		for _, p := range entry.Parents {
			p.Children[entry.Tx.Hash()] = entry
		}
	} else {
		for _, p := range entry.Parents {
			delete(p.Children, entry.Tx.Hash())
		}
	}

	count := int64(1)
	if !add {
		count = -1
	}
	size := count * int64(entry.Size)
	fee := count * (entry.Fee + entry.FeeDelta)

	for _, a := range ancestors {
		if resident := m.index.get(a.Tx.Hash()); resident != nil {
			resident.UpdateDescendantState(size, fee, count)
			m.index.touchDescendantScore(resident)
		}
	}
}

// updateEntryForAncestorsLocked sets entry's own "with ancestors" rollup
// from the supplied ancestor set, once, at insertion time.
func (m *Mempool) updateEntryForAncestorsLocked(entry *Entry, ancestors map[Hash]*Entry) {
	var size, fee, sigOps int64
	for _, a := range ancestors {
		size += int64(a.Size)
		fee += a.Fee + a.FeeDelta
		sigOps += a.SigOpCost
	}
	entry.UpdateAncestorState(size, int64(len(ancestors)), sigOps, fee)
	m.index.touchAncestorScore(entry)
}

// CalculateMemPoolAncestors computes tx's transitive in-mempool ancestor
// set (tx included is not part of the returned map; only ancestors are).
// searchForParents must be true for a transaction not yet resident in the
// mempool; false is faster and correct only for a transaction that already
// has populated Parents edges.
func (m *Mempool) CalculateMemPoolAncestors(tx Tx, limits AncestorLimits, searchForParents bool) (map[Hash]*Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := m.index.get(tx.Hash())
	if entry == nil {
		entry = newEntry(tx, 0, 0, 0, LockPoints{}, 0, false)
	}
	return m.calculateMemPoolAncestorsLocked(entry, limits, searchForParents)
}

func (m *Mempool) calculateMemPoolAncestorsLocked(entry *Entry, limits AncestorLimits, searchForParents bool) (map[Hash]*Entry, error) {
	guard := m.guard()
	defer guard.Release()

	var queue []*Entry
	if searchForParents {
		for _, op := range entry.Tx.Inputs() {
			parent := m.index.get(op.Hash)
			if parent == nil {
				continue
			}
			if guard.visit(parent) {
				queue = append(queue, parent)
			}
		}
	} else {
		resident := m.index.get(entry.Tx.Hash())
		if resident == nil {
			panic("mempool: calculateMemPoolAncestors(searchForParents=false) on a non-resident entry")
		}
		for _, p := range resident.Parents {
			if guard.visit(p) {
				queue = append(queue, p)
			}
		}
	}

	if uint64(len(queue)) > limits.MaxAncestorCount {
		return nil, errors.Errorf("too many unconfirmed parents [limit: %d]", limits.MaxAncestorCount)
	}

	ancestors := make(map[Hash]*Entry)
	totalSizeWithAncestors := int64(entry.Size)

	for len(queue) > 0 {
		p := queue[0]
		queue = queue[1:]
		ancestors[p.Tx.Hash()] = p
		totalSizeWithAncestors += int64(p.Size)

		if uint64(p.SizeWithDescendants+int64(entry.Size)) > limits.MaxDescendantSize {
			return nil, errors.Errorf("exceeds descendant size limit for tx %s [limit: %d]", p.Tx.Hash(), limits.MaxDescendantSize)
		}
		if uint64(p.CountWithDescendants+1) > limits.MaxDescendantCount {
			return nil, errors.Errorf("too many descendants for tx %s [limit: %d]", p.Tx.Hash(), limits.MaxDescendantCount)
		}
		if uint64(totalSizeWithAncestors) > limits.MaxAncestorSize {
			return nil, errors.Errorf("exceeds ancestor size limit [limit: %d]", limits.MaxAncestorSize)
		}

		for _, gp := range p.Parents {
			if _, already := ancestors[gp.Tx.Hash()]; already {
				continue
			}
			if guard.visit(gp) {
				queue = append(queue, gp)
			}
			if uint64(len(queue)+len(ancestors)+1) > limits.MaxAncestorCount {
				return nil, errors.Errorf("too many unconfirmed ancestors [limit: %d]", limits.MaxAncestorCount)
			}
		}
	}
	return ancestors, nil
}

// calculateDescendantsLocked returns entry plus every transitive
// descendant currently in the mempool.
func (m *Mempool) calculateDescendantsLocked(entry *Entry) map[Hash]*Entry {
	guard := m.guard()
	defer guard.Release()

	result := make(map[Hash]*Entry)
	stack := make([]*Entry, 0, 8)
	if guard.visit(entry) {
		stack = append(stack, entry)
	}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		result[cur.Tx.Hash()] = cur
		for _, c := range cur.Children {
			if guard.visit(c) {
				stack = append(stack, c)
			}
		}
	}
	return result
}

// UpdateForRemoveFromMempool adjusts ancestor/descendant aggregates for
// every entry bordering the stage, before the stage itself is actually
// erased by RemoveStaged. See spec §4.2 "Batch removal" for the exact
// three-pass structure this follows.
func (m *Mempool) UpdateForRemoveFromMempool(stage map[Hash]*Entry, updateDescendants bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updateForRemoveFromMempoolLocked(stage, updateDescendants)
}

func (m *Mempool) updateForRemoveFromMempoolLocked(stage map[Hash]*Entry, updateDescendants bool) {
	if updateDescendants {
		for _, removeIt := range stage {
			descendants := m.calculateDescendantsLocked(removeIt)
			delete(descendants, removeIt.Tx.Hash())

			modifySize := -int64(removeIt.Size)
			modifyFee := -(removeIt.Fee + removeIt.FeeDelta)
			modifySigOps := -removeIt.SigOpCost
			for _, d := range descendants {
				d.UpdateAncestorState(modifySize, -1, modifySigOps, modifyFee)
				m.index.touchAncestorScore(d)
			}
		}
	}

	for _, entry := range stage {
		ancestors, _ := m.calculateMemPoolAncestorsLocked(entry, NoLimits(), false)
		m.updateAncestorsOfLocked(false, entry, ancestors)
	}

	for _, removeIt := range stage {
		for _, c := range removeIt.Children {
			delete(c.Parents, removeIt.Tx.Hash())
		}
	}
}

// removeUncheckedLocked assumes UpdateForRemoveFromMempool has already
// been applied to entry's neighbours; it only erases entry itself.
func (m *Mempool) removeUncheckedLocked(entry *Entry, reason RemoveReason) {
	txid := entry.Tx.Hash()
	for _, op := range entry.Tx.Inputs() {
		delete(m.mapNextTx, op)
	}

	last := len(m.vTxHashes) - 1
	if entry.vTxHashesIdx != last {
		m.vTxHashes[entry.vTxHashesIdx] = m.vTxHashes[last]
		m.vTxHashes[entry.vTxHashesIdx].entry.vTxHashesIdx = entry.vTxHashesIdx
	}
	m.vTxHashes = m.vTxHashes[:last]

	m.totalTxSize -= int64(entry.Size)
	m.cachedInnerUsage -= entry.UsageSize
	m.index.remove(entry)
	m.transactionsUpdated++

	m.cfg.FeeEstimator.RemoveTx(txid, reason == ReasonBlock)
	m.cfg.Notifier.NotifyEntryRemoved(entry, reason)
}

// RemoveStaged removes every entry in stage. Callers must ensure stage is
// closed under descendants (every in-mempool descendant of a staged entry
// is itself staged), except when the removal is caused by a transaction
// confirming in a block, in which case updateDescendants must be true so
// surviving descendants get their ancestor rollups corrected.
func (m *Mempool) RemoveStaged(stage map[Hash]*Entry, updateDescendants bool, reason RemoveReason) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeStagedLocked(stage, updateDescendants, reason)
}

func (m *Mempool) removeStagedLocked(stage map[Hash]*Entry, updateDescendants bool, reason RemoveReason) {
	m.updateForRemoveFromMempoolLocked(stage, updateDescendants)
	for _, e := range stage {
		m.removeUncheckedLocked(e, reason)
	}
}

// RemoveRecursive removes tx (or, if tx itself isn't resident, any
// in-mempool children still spending its outputs — this happens during
// chain reorgs when tx was never re-accepted) along with every
// descendant.
func (m *Mempool) RemoveRecursive(tx Tx, reason RemoveReason) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeRecursiveLocked(tx, reason)
}

func (m *Mempool) removeRecursiveLocked(tx Tx, reason RemoveReason) {
	seed := make(map[Hash]*Entry)
	if e := m.index.get(tx.Hash()); e != nil {
		seed[tx.Hash()] = e
	} else {
		for i := 0; i < tx.OutputCount(); i++ {
			op := OutPoint{Hash: tx.Hash(), Index: uint32(i)}
			if spender, ok := m.mapNextTx[op]; ok {
				seed[spender.Tx.Hash()] = spender
			}
		}
	}
	if len(seed) == 0 {
		return
	}

	guard := m.guard()
	stack := make([]*Entry, 0, len(seed))
	for _, e := range seed {
		if guard.visit(e) {
			stack = append(stack, e)
		}
	}
	allRemoves := make(map[Hash]*Entry)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		allRemoves[cur.Tx.Hash()] = cur
		for _, c := range cur.Children {
			if guard.visit(c) {
				stack = append(stack, c)
			}
		}
	}
	guard.Release()

	m.removeStagedLocked(allRemoves, false, reason)
}

// RemoveConflicts removes, recursively, any mempool entry that spends an
// input also spent by tx but is not tx itself — used when tx is about to
// be confirmed or has replaced a conflicting entry.
func (m *Mempool) RemoveConflicts(tx Tx) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeConflictsLocked(tx)
}

func (m *Mempool) removeConflictsLocked(tx Tx) {
	for _, op := range tx.Inputs() {
		spender, ok := m.mapNextTx[op]
		if !ok || spender.Tx.Hash() == tx.Hash() {
			continue
		}
		m.removeRecursiveLocked(spender.Tx, ReasonConflict)
		delete(m.mapDeltas, spender.Tx.Hash())
	}
}

// RemoveForBlock removes every transaction in vtx (a connected block) from
// the mempool, together with anything left conflicting with them.
func (m *Mempool) RemoveForBlock(vtx []Tx, height int32) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var entries []*Entry
	for _, tx := range vtx {
		if e := m.index.get(tx.Hash()); e != nil {
			entries = append(entries, e)
		}
	}
	m.cfg.FeeEstimator.ProcessBlock(height, entries)

	for _, tx := range vtx {
		if e := m.index.get(tx.Hash()); e != nil {
			m.removeStagedLocked(map[Hash]*Entry{tx.Hash(): e}, true, ReasonBlock)
		}
		m.removeConflictsLocked(tx)
		delete(m.mapDeltas, tx.Hash())
	}

	m.lastRollingFeeUpdate = m.cfg.Now()
	m.blockSinceLastRollingFeeBump = true
}

// RemoveForReorg scans every resident entry for lock points or finality
// that no longer hold against the post-reorg chain, and removes those
// entries (and their descendants). view and oracle are the external
// collaborators needed to make that judgement.
func (m *Mempool) RemoveForReorg(view UtxoView, oracle FinalityOracle, height int32, flags int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var stale []*Entry
	for _, e := range m.index.byHash {
		if !oracle.CheckFinalTx(e.Tx, flags) || !oracle.CheckSequenceLocks(e.Tx, &e.LockPoints) {
			stale = append(stale, e)
			continue
		}
		if !e.SpendsCoinbase {
			continue
		}
		for _, op := range e.Tx.Inputs() {
			coin, ok := view.GetCoin(op)
			if !ok {
				if !view.HaveCoin(op) {
					stale = append(stale, e)
					break
				}
				continue
			}
			if coin.CoinBase && height-coin.Height < m.cfg.CoinbaseMaturity {
				stale = append(stale, e)
				break
			}
		}
	}

	if len(stale) == 0 {
		return
	}

	guard := m.guard()
	stack := make([]*Entry, 0, len(stale))
	for _, e := range stale {
		if guard.visit(e) {
			stack = append(stack, e)
		}
	}
	toRemove := make(map[Hash]*Entry)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		toRemove[cur.Tx.Hash()] = cur
		for _, c := range cur.Children {
			if guard.visit(c) {
				stack = append(stack, c)
			}
		}
	}
	guard.Release()

	m.removeStagedLocked(toRemove, false, ReasonReorg)
}

// UpdateTransactionsFromBlock reattaches descendant bookkeeping for
// transactions in hashesToUpdate (transactions from a disconnected block
// that have been re-added to the mempool): for each, any in-mempool child
// not already in hashesToUpdate gets linked as a child, and the parent's
// descendant rollups are corrected to include it.
func (m *Mempool) UpdateTransactionsFromBlock(hashesToUpdate []Hash) {
	m.mu.Lock()
	defer m.mu.Unlock()

	alreadyIncluded := make(map[Hash]bool, len(hashesToUpdate))
	for _, h := range hashesToUpdate {
		alreadyIncluded[h] = true
	}

	cachedDescendants := make(map[Hash]map[Hash]*Entry)

	// Walk in reverse so that whenever we process a transaction, every
	// in-mempool descendant that is also in hashesToUpdate has already
	// been processed — maximizing the benefit of cachedDescendants.
	for i := len(hashesToUpdate) - 1; i >= 0; i-- {
		h := hashesToUpdate[i]
		entry := m.index.get(h)
		if entry == nil {
			continue
		}
		for op, child := range m.mapNextTx {
			if op.Hash != h {
				continue
			}
			if alreadyIncluded[child.Tx.Hash()] {
				continue
			}
			entry.Children[child.Tx.Hash()] = child
			child.Parents[h] = entry
		}
		m.updateForDescendantsLocked(entry, cachedDescendants, alreadyIncluded)
	}
}

// updateForDescendantsLocked updates updateIt's descendant rollup (and
// every live descendant's ancestor rollup) to account for updateIt,
// assuming updateIt.Children is already correct.
func (m *Mempool) updateForDescendantsLocked(updateIt *Entry, cache map[Hash]map[Hash]*Entry, exclude map[Hash]bool) {
	stage := make([]*Entry, 0, len(updateIt.Children))
	for _, c := range updateIt.Children {
		stage = append(stage, c)
	}

	all := make(map[Hash]*Entry)
	for len(stage) > 0 {
		cur := stage[0]
		stage = stage[1:]
		if _, seen := all[cur.Tx.Hash()]; seen {
			continue
		}
		all[cur.Tx.Hash()] = cur
		if cached, ok := cache[cur.Tx.Hash()]; ok {
			for h, e := range cached {
				all[h] = e
			}
			continue
		}
		for _, c := range cur.Children {
			if _, seen := all[c.Tx.Hash()]; !seen {
				stage = append(stage, c)
			}
		}
	}

	var modifySize, modifyFee, modifyCount int64
	for h, cit := range all {
		if exclude[h] {
			continue
		}
		modifySize += int64(cit.Size)
		modifyFee += cit.Fee + cit.FeeDelta
		modifyCount++
		cit.UpdateAncestorState(int64(updateIt.Size), 1, updateIt.SigOpCost, updateIt.Fee+updateIt.FeeDelta)
		m.index.touchAncestorScore(cit)
	}
	cache[updateIt.Tx.Hash()] = all
	updateIt.UpdateDescendantState(modifySize, modifyFee, modifyCount)
	m.index.touchDescendantScore(updateIt)
}

// PrioritiseTransaction persists feeDelta against txid and, if the
// transaction is currently resident, applies it to the entry and every
// ancestor/descendant's cached aggregates.
func (m *Mempool) PrioritiseTransaction(txid Hash, feeDelta int64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.mapDeltas[txid] += feeDelta
	entry := m.index.get(txid)
	if entry == nil {
		return
	}

	entry.UpdateFeeDelta(m.mapDeltas[txid])
	m.index.touchScore(entry)
	m.index.touchDescendantScore(entry)
	m.index.touchAncestorScore(entry)

	ancestors, err := m.calculateMemPoolAncestorsLocked(entry, NoLimits(), false)
	if err != nil {
		txlog.Warn("mempool: prioritise %s: %s", txid, err)
	}
	for _, a := range ancestors {
		a.UpdateDescendantState(0, feeDelta, 0)
		m.index.touchDescendantScore(a)
	}

	descendants := m.calculateDescendantsLocked(entry)
	delete(descendants, txid)
	for _, d := range descendants {
		d.UpdateAncestorState(0, 0, 0, feeDelta)
		m.index.touchAncestorScore(d)
	}
}

// ApplyDelta returns feeDelta adjusted by any prioritisation persisted
// against txid.
func (m *Mempool) ApplyDelta(txid Hash, feeDelta int64) int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return feeDelta + m.mapDeltas[txid]
}

// ClearPrioritisation forgets any persisted fee delta for txid.
func (m *Mempool) ClearPrioritisation(txid Hash) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.mapDeltas, txid)
}

// TrimToSize evicts lowest-descendant-score packages until
// DynamicMemoryUsage is at or under sizeLimit, returning every outpoint
// the evicted packages spent whose creating transaction is not in the
// mempool and that is no longer spent by any remaining mempool
// transaction (candidates for UTXO-cache eviction).
func (m *Mempool) TrimToSize(sizeLimit int64) []OutPoint {
	m.mu.Lock()
	defer m.mu.Unlock()

	var noSpends []OutPoint
	removedCount := 0
	maxFeeRateRemoved := FeeRate{}

	for m.cachedInnerUsage > sizeLimit && m.index.size() > 0 {
		var victim *Entry
		m.index.ascendDescendantScore(func(e *Entry) bool {
			victim = e
			return false
		})
		if victim == nil {
			break
		}

		removed := NewFeeRateWithSize(victim.ModFeesWithDescendants, int(victim.SizeWithDescendants))
		removed = NewFeeRate(removed.SatoshisPerK + m.cfg.IncrementalRelayFee.SatoshisPerK)
		m.trackPackageRemovedLocked(removed)
		if removed.SatoshisPerK > maxFeeRateRemoved.SatoshisPerK {
			maxFeeRateRemoved = removed
		}

		descendants := m.calculateDescendantsLocked(victim)
		delete(descendants, victim.Tx.Hash())

		stage := make(map[Hash]*Entry, len(descendants)+1)
		staleTxs := make([]Tx, 0, len(descendants)+1)
		for h, d := range descendants {
			stage[h] = d
			staleTxs = append(staleTxs, d.Tx)
		}
		stage[victim.Tx.Hash()] = victim
		staleTxs = append(staleTxs, victim.Tx)

		removedCount += len(stage)
		m.removeStagedLocked(stage, false, ReasonSizeLimit)

		for _, tx := range staleTxs {
			for _, op := range tx.Inputs() {
				if m.index.get(op.Hash) != nil {
					continue
				}
				if _, stillSpent := m.mapNextTx[op]; !stillSpent {
					noSpends = append(noSpends, op)
				}
			}
		}
	}

	if maxFeeRateRemoved.SatoshisPerK > 0 {
		txlog.Debug("mempool: removed %d txn, rolling minimum fee bumped to %s", removedCount, maxFeeRateRemoved)
	}
	return noSpends
}

// trackPackageRemovedLocked raises the rolling minimum fee to at least
// rate and resets the decay clock.
func (m *Mempool) trackPackageRemovedLocked(rate FeeRate) {
	if float64(rate.SatoshisPerK) > m.rollingMinimumFeeRate {
		m.rollingMinimumFeeRate = float64(rate.SatoshisPerK)
		m.blockSinceLastRollingFeeBump = false
	}
}

// GetMinFee returns the current rolling minimum feerate. Until a block
// has arrived since the last bump the stored rate is returned unchanged;
// after that it is first decayed, once more than 10 seconds have passed
// since the last update.
func (m *Mempool) GetMinFee(sizeLimit int64) FeeRate {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !m.blockSinceLastRollingFeeBump || m.rollingMinimumFeeRate == 0 {
		return NewFeeRate(int64(m.rollingMinimumFeeRate))
	}

	now := m.cfg.Now()
	if now > m.lastRollingFeeUpdate+10 {
		halfLife := m.cfg.RollingFeeHalfLife
		usage := m.cachedInnerUsage
		switch {
		case usage < sizeLimit/4:
			halfLife /= 4
		case usage < sizeLimit/2:
			halfLife /= 2
		}

		m.rollingMinimumFeeRate = m.rollingMinimumFeeRate / math.Pow(2.0, float64(now-m.lastRollingFeeUpdate)/float64(halfLife))
		m.lastRollingFeeUpdate = now

		if m.rollingMinimumFeeRate < float64(m.cfg.IncrementalRelayFee.SatoshisPerK)/2 {
			m.rollingMinimumFeeRate = 0
			return NewFeeRate(0)
		}
	}

	result := math.Max(m.rollingMinimumFeeRate, float64(m.cfg.IncrementalRelayFee.SatoshisPerK))
	return NewFeeRate(int64(result))
}

// Expire removes every entry (and its descendants) that arrived before t,
// returning the number of entries removed.
func (m *Mempool) Expire(t int64) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	guard := m.guard()
	var seeds []*Entry
	m.index.ascendTime(func(e *Entry) bool {
		if e.Time >= t {
			return false
		}
		if guard.visit(e) {
			seeds = append(seeds, e)
		}
		return true
	})

	stage := make(map[Hash]*Entry)
	stack := seeds
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		stage[cur.Tx.Hash()] = cur
		for _, c := range cur.Children {
			if guard.visit(c) {
				stack = append(stack, c)
			}
		}
	}
	guard.Release()

	m.removeStagedLocked(stage, false, ReasonExpiry)
	return len(stage)
}

// QueryHashes returns every resident txid in depth-and-score order.
func (m *Mempool) QueryHashes() []Hash {
	m.mu.Lock()
	defer m.mu.Unlock()
	ordered := m.index.depthAndScoreOrder()
	out := make([]Hash, len(ordered))
	for i, e := range ordered {
		out[i] = e.Tx.Hash()
	}
	return out
}

// InfoAll returns an Info snapshot for every resident entry, in
// depth-and-score order.
func (m *Mempool) InfoAll() []Info {
	m.mu.Lock()
	defer m.mu.Unlock()
	ordered := m.index.depthAndScoreOrder()
	out := make([]Info, len(ordered))
	for i, e := range ordered {
		out[i] = e.Info()
	}
	return out
}

// GetTransactionAncestry returns txid's cached ancestor count and an
// upper bound on its descendant count (0, 0 if not resident). The
// descendant figure is not e.CountWithDescendants — it is the maximum
// countWithDescendants seen at any parentless entry reachable by walking
// up txid's ancestor graph (calculateDescendantMaximum). It is never less
// than txid's own descendant count, and exceeds it whenever such an
// ancestor has descendants outside txid's own closure (e.g. for B in a
// chain A -> B -> C -> D it is 4, A's count, not B's 3).
func (m *Mempool) GetTransactionAncestry(txid Hash) (ancestors int, descendants int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.index.get(txid)
	if e == nil {
		return 0, 0
	}
	return int(e.CountWithAncestors), int(m.calculateDescendantMaximumLocked(e))
}

// calculateDescendantMaximumLocked walks entry's ancestor graph and
// returns the largest CountWithDescendants found at any entry with no
// further parents — a cheap substitute for materializing entry's true
// descendant set, ported from the source's single-allocation-avoiding
// walk (here a plain epoch-guarded traversal, since Go's GC makes the
// original's heap-avoidance trick pointless).
func (m *Mempool) calculateDescendantMaximumLocked(entry *Entry) int64 {
	guard := m.guard()
	defer guard.Release()

	var maximum int64
	stack := []*Entry{entry}
	guard.visit(entry)
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if len(cur.Parents) == 0 {
			if cur.CountWithDescendants > maximum {
				maximum = cur.CountWithDescendants
			}
			continue
		}
		for _, p := range cur.Parents {
			if guard.visit(p) {
				stack = append(stack, p)
			}
		}
	}
	return maximum
}

// IsLoaded reports whether initial mempool load (from a persisted dump, if
// the embedding application has one) has completed. This module has no
// persistence layer itself; the flag exists for callers that do.
func (m *Mempool) IsLoaded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.isLoaded
}

func (m *Mempool) SetIsLoaded(loaded bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.isLoaded = loaded
}

// TransactionsUpdated returns a counter bumped on every insertion or
// removal, letting external pollers detect "did anything change" cheaply.
func (m *Mempool) TransactionsUpdated() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.transactionsUpdated
}

func (m *Mempool) Size() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.index.size()
}

func (m *Mempool) GetTotalTxSize() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.totalTxSize
}

func (m *Mempool) DynamicMemoryUsage() int64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cachedInnerUsage
}

func (m *Mempool) Exists(txid Hash) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.index.get(txid) != nil
}

func (m *Mempool) ExistsOutPoint(op OutPoint) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.index.get(op.Hash)
	if e == nil {
		return false
	}
	return int(op.Index) < e.Tx.OutputCount()
}

// HasNoInputsOf reports whether none of tx's inputs spend a transaction
// currently resident in the mempool.
func (m *Mempool) HasNoInputsOf(tx Tx) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, op := range tx.Inputs() {
		if m.index.get(op.Hash) != nil {
			return false
		}
	}
	return true
}

// Get returns the live Entry for txid, or nil if not resident. Callers
// must hold the mempool lock (via Lock/Unlock) for the duration of any
// mutation through the returned pointer.
func (m *Mempool) Get(txid Hash) *Entry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.index.get(txid)
}

// Info returns a snapshot for txid, or the zero Info and false if absent.
func (m *Mempool) Info(txid Hash) (Info, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e := m.index.get(txid)
	if e == nil {
		return Info{}, false
	}
	return e.Info(), true
}

// GetConflictTx returns the transaction currently spending op, if any.
func (m *Mempool) GetConflictTx(op OutPoint) (Tx, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.mapNextTx[op]
	if !ok {
		return nil, false
	}
	return e.Tx, true
}

// VTxHashes returns a copy of the witness-hash side vector, in whatever
// order swap-remove eviction currently leaves it — the intended use is
// compact-block short-id reconstruction, which doesn't require a stable
// order.
func (m *Mempool) VTxHashes() []Hash {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Hash, len(m.vTxHashes))
	for i, s := range m.vTxHashes {
		out[i] = s.hash
	}
	return out
}
