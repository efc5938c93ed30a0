package mempool

import "sort"

// sortByDepthAndScore implements spec §4.2's depth-and-score ordering:
// primary key countWithAncestors ascending (shallower packages — fewer
// unmet dependencies — sort first), secondary key ancestor score
// descending. Plain sort.Slice is preferred over a reflection-based
// sorter; the ordering needs no stability guarantee beyond what's encoded
// in the comparator itself.
func sortByDepthAndScore(entries []*Entry) {
	sort.Slice(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.CountWithAncestors != b.CountWithAncestors {
			return a.CountWithAncestors < b.CountWithAncestors
		}
		ra, rb := a.ancestorScore(), b.ancestorScore()
		if ra.SatoshisPerK != rb.SatoshisPerK {
			return ra.SatoshisPerK > rb.SatoshisPerK
		}
		return a.Tx.Hash().Cmp(b.Tx.Hash()) < 0
	})
}
