package mempool

// Tx is everything the mempool needs from a parsed, validated transaction.
// Script interpretation, signature checking, and wire serialization are all
// external collaborators; the mempool only ever needs a transaction's
// identity, its inputs, and its size.
type Tx interface {
	Hash() Hash
	WitnessHash() Hash
	// Inputs returns the outpoints this transaction spends, in order.
	Inputs() []OutPoint
	OutputCount() int
	// SerializeSize is the transaction's size on the wire, in bytes.
	SerializeSize() int
	// ModifiedSize is the policy-weighted size used for fee-rate math
	// (e.g. witness discount); equal to SerializeSize when no such
	// discount applies.
	ModifiedSize() int
	IsCoinBase() bool
}

// Coin is a minimal UTXO record, synthesized by CoinsViewMemPool for
// outputs that exist only in the mempool.
type Coin struct {
	Height   int32
	CoinBase bool
	Spent    bool
}

// UtxoView is the subset of the chain's UTXO set the mempool consults:
// read-only lookups plus spentness. A concrete implementation lives
// outside this module.
type UtxoView interface {
	GetCoin(op OutPoint) (Coin, bool)
	HaveCoin(op OutPoint) bool
}

// FeeEstimator receives the mempool's entry/removal events so it can build
// a fee/confirmation-time model. A no-op implementation is fine when fee
// estimation isn't needed.
type FeeEstimator interface {
	ProcessTransaction(entry *Entry, validFeeEstimate bool)
	ProcessBlock(height int32, entries []*Entry)
	RemoveTx(txid Hash, inBlock bool)
}

// FinalityOracle answers the two questions the mempool needs about a
// transaction's maturity: whether it is final given the current chain tip,
// and whether its cached LockPoints are still valid.
type FinalityOracle interface {
	CheckFinalTx(tx Tx, flags int) bool
	CheckSequenceLocks(tx Tx, lp *LockPoints) bool
}

// EntryNotifier is the pair of callback slots the design notes describe:
// subscribers are told about every add/remove but must never re-enter the
// mempool from within the callback.
type EntryNotifier interface {
	NotifyEntryAdded(entry *Entry)
	NotifyEntryRemoved(entry *Entry, reason RemoveReason)
}

// LockPoints caches the block height and time that must be reached before
// a transaction's BIP68 relative-locktime inputs are satisfied, plus the
// highest input block that reorg invalidation must watch.
type LockPoints struct {
	Height        int32
	Time          int64
	MaxInputBlock int32 // height of the deepest relevant ancestor block; 0 if none
}

// RemoveReason is passed to EntryNotifier.NotifyEntryRemoved so subscribers
// can distinguish "confirmed" from "evicted" from "conflicted".
type RemoveReason int

const (
	ReasonUnknown RemoveReason = iota
	ReasonExpiry
	ReasonSizeLimit
	ReasonReorg
	ReasonBlock
	ReasonConflict
	ReasonReplaced
)

func (r RemoveReason) String() string {
	switch r {
	case ReasonExpiry:
		return "expiry"
	case ReasonSizeLimit:
		return "size-limit"
	case ReasonReorg:
		return "reorg"
	case ReasonBlock:
		return "block"
	case ReasonConflict:
		return "conflict"
	case ReasonReplaced:
		return "replaced"
	default:
		return "unknown"
	}
}
