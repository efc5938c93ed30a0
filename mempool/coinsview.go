package mempool

// CoinsViewMemPool overlays a base UtxoView with the mempool's own
// transactions, so a caller building a new transaction against the chain
// tip can also spend an unconfirmed output — e.g. to validate a child
// transaction for acceptance, or to relay a transaction chain together.
//
// Ported from the source's CCoinsViewMemPool; grounded on the same overlay
// idea used in this pack's bottom-layer UTXO wrappers (a view that
// defers to a base store and only materializes entries it owns itself).
type CoinsViewMemPool struct {
	base UtxoView
	pool *Mempool
}

// NewCoinsViewMemPool builds an overlay that answers lookups from pool's
// resident transactions before falling back to base.
func NewCoinsViewMemPool(base UtxoView, pool *Mempool) *CoinsViewMemPool {
	return &CoinsViewMemPool{base: base, pool: pool}
}

// GetCoin returns op's coin, synthesizing one at MempoolHeight if op's
// creating transaction is mempool-resident. The mempool is checked first:
// checking the base view first risks returning a pruned entry instead of
// the mempool's authoritative one.
func (v *CoinsViewMemPool) GetCoin(op OutPoint) (Coin, bool) {
	entry := v.pool.Get(op.Hash)
	if entry != nil {
		if int(op.Index) >= entry.Tx.OutputCount() {
			return Coin{}, false
		}
		return Coin{Height: MempoolHeight, CoinBase: false, Spent: false}, true
	}
	return v.base.GetCoin(op)
}

// HaveCoin reports whether op exists, either on the base view or as an
// output of a mempool-resident transaction. Whether another mempool
// transaction already spends op is not checked.
func (v *CoinsViewMemPool) HaveCoin(op OutPoint) bool {
	if v.base.HaveCoin(op) {
		return true
	}
	_, ok := v.GetCoin(op)
	return ok
}
