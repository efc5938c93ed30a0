package mempool

import (
	"math/rand"

	"github.com/pkg/errors"
)

// SetCheckFrequency sets how often MaybeCheck actually runs Check, as a
// fraction of math.MaxUint32 (4294967295 means "always", 0 means "never").
// Production callers leave this at 0; tests and fuzzers crank it up.
func (m *Mempool) SetCheckFrequency(freq uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkFrequency = freq
}

// MaybeCheck runs the full consistency audit with probability
// checkFrequency/2^32, mirroring the source's self-check hook that callers
// wire into every block-connection and mempool-acceptance path without
// paying Check's full cost in production.
func (m *Mempool) MaybeCheck(view UtxoView) error {
	m.mu.Lock()
	freq := m.checkFrequency
	m.mu.Unlock()
	if freq == 0 {
		return nil
	}
	if rand.Uint32() >= freq {
		return nil
	}
	return m.Check(view)
}

// Check walks every resident entry and verifies the structural invariants
// the rest of this package depends on: mapNextTx agreement, parent/child
// edge symmetry, and ancestor/descendant rollups that match a fresh
// traversal. It is O(n log n) or worse and is meant for tests and optional
// runtime assertions, never a request-serving hot path.
func (m *Mempool) Check(view UtxoView) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := m.checkIndexSizesLocked(); err != nil {
		return err
	}

	var totalSize int64
	var totalUsage int64

	for _, e := range m.index.byHash {
		totalSize += int64(e.Size)
		totalUsage += e.UsageSize

		if err := m.checkEntryEdgesLocked(e, view); err != nil {
			return err
		}
		if err := m.checkEntryRollupsLocked(e); err != nil {
			return err
		}
		if err := m.checkVTxHashesSlotLocked(e); err != nil {
			return err
		}
	}

	if totalSize != m.totalTxSize {
		return errors.Errorf("total tx size mismatch: tracked %d, recomputed %d", m.totalTxSize, totalSize)
	}
	if totalUsage != m.cachedInnerUsage {
		return errors.Errorf("cached inner usage mismatch: tracked %d, recomputed %d", m.cachedInnerUsage, totalUsage)
	}
	if len(m.vTxHashes) != len(m.index.byHash) {
		return errors.Errorf("witness hash vector length %d does not match entry count %d", len(m.vTxHashes), len(m.index.byHash))
	}

	return nil
}

func (m *Mempool) checkIndexSizesLocked() error {
	n := len(m.index.byHash)
	if m.index.byTime.Len() != n {
		return errors.Errorf("byTime index has %d items, want %d", m.index.byTime.Len(), n)
	}
	if m.index.byDescendantScore.Len() != n {
		return errors.Errorf("byDescendantScore index has %d items, want %d", m.index.byDescendantScore.Len(), n)
	}
	if m.index.byAncestorScore.Len() != n {
		return errors.Errorf("byAncestorScore index has %d items, want %d", m.index.byAncestorScore.Len(), n)
	}
	if m.index.byScore.Len() != n {
		return errors.Errorf("byScore index has %d items, want %d", m.index.byScore.Len(), n)
	}
	return nil
}

func (m *Mempool) checkEntryEdgesLocked(e *Entry, view UtxoView) error {
	txid := e.Tx.Hash()
	for _, op := range e.Tx.Inputs() {
		spender, ok := m.mapNextTx[op]
		if !ok || spender.Tx.Hash() != txid {
			return errors.Errorf("mapNextTx[%s] does not point back to spending tx %s", op, txid)
		}
		parent := m.index.get(op.Hash)
		if parent == nil {
			if !view.HaveCoin(op) {
				return errors.Errorf("tx %s input %s has no mempool parent and no base coin", txid, op)
			}
			continue
		}
		if parent.Children[txid] != e {
			return errors.Errorf("tx %s missing from parent %s's children", txid, parent.Tx.Hash())
		}
		if e.Parents[parent.Tx.Hash()] != parent {
			return errors.Errorf("tx %s missing parent edge to %s", txid, parent.Tx.Hash())
		}
	}
	for childHash, child := range e.Children {
		if child.Parents[txid] != e {
			return errors.Errorf("tx %s's child %s does not list it as a parent", txid, childHash)
		}
	}
	return nil
}

func (m *Mempool) checkEntryRollupsLocked(e *Entry) error {
	descendants := m.calculateDescendantsLocked(e)
	var size, fee, count int64
	for _, d := range descendants {
		size += int64(d.Size)
		fee += d.Fee + d.FeeDelta
		count++
	}
	if count != e.CountWithDescendants {
		return errors.Errorf("tx %s: countWithDescendants %d, recomputed %d", e.Tx.Hash(), e.CountWithDescendants, count)
	}
	if size != e.SizeWithDescendants {
		return errors.Errorf("tx %s: sizeWithDescendants %d, recomputed %d", e.Tx.Hash(), e.SizeWithDescendants, size)
	}
	if fee != e.ModFeesWithDescendants {
		return errors.Errorf("tx %s: modFeesWithDescendants %d, recomputed %d", e.Tx.Hash(), e.ModFeesWithDescendants, fee)
	}

	ancestors, err := m.calculateMemPoolAncestorsLocked(e, NoLimits(), false)
	if err != nil {
		return errors.Wrapf(err, "tx %s: recomputing ancestors", e.Tx.Hash())
	}
	var aSize, aFee, aSigOps int64
	for _, a := range ancestors {
		aSize += int64(a.Size)
		aFee += a.Fee + a.FeeDelta
		aSigOps += a.SigOpCost
	}
	aSize += int64(e.Size)
	aFee += e.Fee + e.FeeDelta
	aSigOps += e.SigOpCost
	aCount := int64(len(ancestors)) + 1

	if aCount != e.CountWithAncestors {
		return errors.Errorf("tx %s: countWithAncestors %d, recomputed %d", e.Tx.Hash(), e.CountWithAncestors, aCount)
	}
	if aSize != e.SizeWithAncestors {
		return errors.Errorf("tx %s: sizeWithAncestors %d, recomputed %d", e.Tx.Hash(), e.SizeWithAncestors, aSize)
	}
	if aFee != e.ModFeesWithAncestors {
		return errors.Errorf("tx %s: modFeesWithAncestors %d, recomputed %d", e.Tx.Hash(), e.ModFeesWithAncestors, aFee)
	}
	if aSigOps != e.SigOpCostWithAncestors {
		return errors.Errorf("tx %s: sigOpCostWithAncestors %d, recomputed %d", e.Tx.Hash(), e.SigOpCostWithAncestors, aSigOps)
	}
	return nil
}

func (m *Mempool) checkVTxHashesSlotLocked(e *Entry) error {
	if e.vTxHashesIdx < 0 || e.vTxHashesIdx >= len(m.vTxHashes) {
		return errors.Errorf("tx %s: vTxHashesIdx %d out of range [0,%d)", e.Tx.Hash(), e.vTxHashesIdx, len(m.vTxHashes))
	}
	slot := m.vTxHashes[e.vTxHashesIdx]
	if slot.entry != e {
		return errors.Errorf("tx %s: vTxHashes slot %d points to a different entry", e.Tx.Hash(), e.vTxHashesIdx)
	}
	if slot.hash != e.Tx.WitnessHash() {
		return errors.Errorf("tx %s: vTxHashes slot %d has stale witness hash", e.Tx.Hash(), e.vTxHashesIdx)
	}
	return nil
}
