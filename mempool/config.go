package mempool

import "time"

// Config carries every tunable limit the mempool needs, passed explicitly
// to NewMempool rather than read from a package-global, following the
// teacher's NewMemPool(minReasonableRelayFee) constructor and the
// btcsuite pack's Config-struct convention.
type Config struct {
	// IncrementalRelayFee is added to a removed package's feerate before
	// it's fed to the rolling-minimum-fee tracker, and is the lowest
	// nonzero rate GetMinFee reports once decay has started: a decayed
	// rate under half of it snaps to zero.
	IncrementalRelayFee FeeRate

	// RollingFeeHalfLife is the base half-life, in seconds, for the
	// rolling minimum fee's exponential decay (default 12h, matching
	// ROLLING_FEE_HALFLIFE in the source).
	RollingFeeHalfLife int64

	// FeeEstimator and Notifier may be nil; a nil value is treated as a
	// no-op collaborator.
	FeeEstimator FeeEstimator
	Notifier     EntryNotifier

	// Now returns the current unix time; overridable so tests can drive
	// the rolling-fee decay and Expire deterministically without
	// depending on wall-clock time.
	Now func() int64

	// CoinbaseMaturity is the number of confirmations a coinbase output
	// must have before it may be spent; RemoveForReorg evicts any entry
	// that spends an immature coinbase after a reorg changes height.
	CoinbaseMaturity int32
}

const defaultRollingFeeHalfLife = 60 * 60 * 12
const defaultCoinbaseMaturity = 100

// withDefaults fills in zero-valued fields with sane defaults, mirroring
// the teacher's NewMemPool/clear() initialization.
func (c Config) withDefaults() Config {
	if c.RollingFeeHalfLife == 0 {
		c.RollingFeeHalfLife = defaultRollingFeeHalfLife
	}
	if c.Now == nil {
		c.Now = func() int64 { return time.Now().Unix() }
	}
	if c.FeeEstimator == nil {
		c.FeeEstimator = noopFeeEstimator{}
	}
	if c.Notifier == nil {
		c.Notifier = noopNotifier{}
	}
	if c.CoinbaseMaturity == 0 {
		c.CoinbaseMaturity = defaultCoinbaseMaturity
	}
	return c
}

type noopFeeEstimator struct{}

func (noopFeeEstimator) ProcessTransaction(*Entry, bool)      {}
func (noopFeeEstimator) ProcessBlock(int32, []*Entry)         {}
func (noopFeeEstimator) RemoveTx(Hash, bool)                  {}

type noopNotifier struct{}

func (noopNotifier) NotifyEntryAdded(*Entry)               {}
func (noopNotifier) NotifyEntryRemoved(*Entry, RemoveReason) {}

// AncestorLimits bounds a package's ancestor/descendant closure, passed to
// CalculateMemPoolAncestors. The zero value (all fields 0) is almost never
// what a caller wants; NoLimits() is the common "don't enforce" case used
// internally by removal paths that must recompute ancestors regardless of
// policy limits.
type AncestorLimits struct {
	MaxAncestorCount    uint64
	MaxAncestorSize     uint64
	MaxDescendantCount  uint64
	MaxDescendantSize   uint64
}

// NoLimits returns limits wide enough to never be hit, for internal calls
// that need the full ancestor closure rather than policy enforcement.
func NoLimits() AncestorLimits {
	const max = ^uint64(0)
	return AncestorLimits{max, max, max, max}
}
