package mempool

import "github.com/google/btree"

// btreeDegree is the node fan-out for every index below; 32 matches the
// teacher's model/mempool/txmempool.go btree.New(32) calls, a reasonable
// default for in-memory sets of this size.
const btreeDegree = 32

// byTimeItem orders entries by arrival time, oldest first, with the hash
// as a tiebreaker so two entries arriving in the same second still get a
// total order (btree requires one: equal keys would otherwise collide).
type byTimeItem struct {
	e *Entry
}

func (a byTimeItem) Less(than btree.Item) bool {
	b := than.(byTimeItem)
	if a.e.Time != b.e.Time {
		return a.e.Time < b.e.Time
	}
	return a.e.Tx.Hash().Cmp(b.e.Tx.Hash()) < 0
}

// byDescendantScoreItem orders entries by ascending descendant score
// (lowest first) — the ordering trimToSize walks to find what to evict.
type byDescendantScoreItem struct {
	e *Entry
}

func (a byDescendantScoreItem) Less(than btree.Item) bool {
	b := than.(byDescendantScoreItem)
	ra, rb := a.e.descendantScore(), b.e.descendantScore()
	if ra.SatoshisPerK != rb.SatoshisPerK {
		return ra.SatoshisPerK < rb.SatoshisPerK
	}
	return a.e.Tx.Hash().Cmp(b.e.Tx.Hash()) < 0
}

// byAncestorScoreItem orders entries by descending ancestor score
// (highest first) — the ordering sorted output (InfoAll/QueryHashes) uses
// as its secondary key.
type byAncestorScoreItem struct {
	e *Entry
}

func (a byAncestorScoreItem) Less(than btree.Item) bool {
	b := than.(byAncestorScoreItem)
	ra, rb := a.e.ancestorScore(), b.e.ancestorScore()
	if ra.SatoshisPerK != rb.SatoshisPerK {
		return ra.SatoshisPerK > rb.SatoshisPerK
	}
	return a.e.Tx.Hash().Cmp(b.e.Tx.Hash()) < 0
}

// byScoreItem orders entries by their own feerate alone (no ancestor or
// descendant contribution), descending, for "score only" output.
type byScoreItem struct {
	e *Entry
}

func (a byScoreItem) Less(than btree.Item) bool {
	b := than.(byScoreItem)
	ra, rb := a.e.GetFeeRate(), b.e.GetFeeRate()
	if ra.SatoshisPerK != rb.SatoshisPerK {
		return ra.SatoshisPerK > rb.SatoshisPerK
	}
	return a.e.Tx.Hash().Cmp(b.e.Tx.Hash()) < 0
}

// multiIndex is the single logical multi-indexed set over entries
// described in spec §3.4: one primary hash map plus four btree.BTree
// secondary orderings, all referencing the same *Entry objects.
type multiIndex struct {
	byHash          map[Hash]*Entry
	byTime          *btree.BTree
	byDescendantScore *btree.BTree
	byAncestorScore   *btree.BTree
	byScore           *btree.BTree
}

func newMultiIndex() *multiIndex {
	return &multiIndex{
		byHash:            make(map[Hash]*Entry),
		byTime:            btree.New(btreeDegree),
		byDescendantScore: btree.New(btreeDegree),
		byAncestorScore:   btree.New(btreeDegree),
		byScore:           btree.New(btreeDegree),
	}
}

// add inserts e into every index, using its current field values as the
// sort key snapshot for each — this must only be called once per entry,
// from addUnchecked.
func (mi *multiIndex) add(e *Entry) {
	h := e.Tx.Hash()
	mi.byHash[h] = e

	e.timeItem = &byTimeItem{e: e}
	mi.byTime.ReplaceOrInsert(*e.timeItem)

	e.descScoreItem = &byDescendantScoreItem{e: e}
	mi.byDescendantScore.ReplaceOrInsert(*e.descScoreItem)

	e.ancScoreItem = &byAncestorScoreItem{e: e}
	mi.byAncestorScore.ReplaceOrInsert(*e.ancScoreItem)

	e.scoreItem = &byScoreItem{e: e}
	mi.byScore.ReplaceOrInsert(*e.scoreItem)
}

// remove deletes e from every index and from the primary map.
func (mi *multiIndex) remove(e *Entry) {
	delete(mi.byHash, e.Tx.Hash())
	if e.timeItem != nil {
		mi.byTime.Delete(*e.timeItem)
	}
	if e.descScoreItem != nil {
		mi.byDescendantScore.Delete(*e.descScoreItem)
	}
	if e.ancScoreItem != nil {
		mi.byAncestorScore.Delete(*e.ancScoreItem)
	}
	if e.scoreItem != nil {
		mi.byScore.Delete(*e.scoreItem)
	}
}

// touchDescendantScore re-sorts e in the descendant-score index after its
// ModFeesWithDescendants/SizeWithDescendants aggregate changed. This is the
// "modify" pattern from the design notes: remove using the stale snapshot,
// recompute, reinsert.
func (mi *multiIndex) touchDescendantScore(e *Entry) {
	if e.descScoreItem != nil {
		mi.byDescendantScore.Delete(*e.descScoreItem)
	}
	e.descScoreItem = &byDescendantScoreItem{e: e}
	mi.byDescendantScore.ReplaceOrInsert(*e.descScoreItem)
}

// touchAncestorScore re-sorts e in the ancestor-score index after its
// ModFeesWithAncestors/SizeWithAncestors aggregate changed.
func (mi *multiIndex) touchAncestorScore(e *Entry) {
	if e.ancScoreItem != nil {
		mi.byAncestorScore.Delete(*e.ancScoreItem)
	}
	e.ancScoreItem = &byAncestorScoreItem{e: e}
	mi.byAncestorScore.ReplaceOrInsert(*e.ancScoreItem)
}

// touchScore re-sorts e in the score-only index after its own fee changed
// (i.e. after UpdateFeeDelta).
func (mi *multiIndex) touchScore(e *Entry) {
	if e.scoreItem != nil {
		mi.byScore.Delete(*e.scoreItem)
	}
	e.scoreItem = &byScoreItem{e: e}
	mi.byScore.ReplaceOrInsert(*e.scoreItem)
}

func (mi *multiIndex) get(h Hash) *Entry {
	return mi.byHash[h]
}

func (mi *multiIndex) size() int {
	return len(mi.byHash)
}

// ascendDescendantScore walks entries lowest-descendant-score first,
// stopping early if fn returns false.
func (mi *multiIndex) ascendDescendantScore(fn func(e *Entry) bool) {
	mi.byDescendantScore.Ascend(func(item btree.Item) bool {
		return fn(item.(byDescendantScoreItem).e)
	})
}

// ascendTime walks entries oldest-first, stopping early if fn returns
// false.
func (mi *multiIndex) ascendTime(fn func(e *Entry) bool) {
	mi.byTime.Ascend(func(item btree.Item) bool {
		return fn(item.(byTimeItem).e)
	})
}

// depthAndScoreOrder returns every entry ordered by countWithAncestors
// ascending (shallowest package first), then by descending ancestor score
// — the canonical ordering spec §4.2 "Depth-and-score ordering" describes
// for QueryHashes/InfoAll.
func (mi *multiIndex) depthAndScoreOrder() []*Entry {
	out := make([]*Entry, 0, len(mi.byHash))
	mi.byAncestorScore.Ascend(func(item btree.Item) bool {
		out = append(out, item.(byAncestorScoreItem).e)
		return true
	})
	sortByDepthAndScore(out)
	return out
}
