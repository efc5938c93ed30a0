package mempool

import "testing"

// fakeTx is the minimal Tx implementation tests build chains out of. Each
// fakeTx spends a fixed list of outpoints and has a fixed number of
// outputs; hash is whatever the test assigns, so building a chain is just
// wiring each child's input to its parent's hash.
type fakeTx struct {
	hash     Hash
	wHash    Hash
	ins      []OutPoint
	numOuts  int
	size     int
	coinbase bool
}

func (f *fakeTx) Hash() Hash          { return f.hash }
func (f *fakeTx) WitnessHash() Hash   { return f.wHash }
func (f *fakeTx) Inputs() []OutPoint  { return f.ins }
func (f *fakeTx) OutputCount() int    { return f.numOuts }
func (f *fakeTx) SerializeSize() int  { return f.size }
func (f *fakeTx) ModifiedSize() int   { return f.size }
func (f *fakeTx) IsCoinBase() bool    { return f.coinbase }

func hashN(n byte) Hash {
	var h Hash
	h[0] = n
	h[1] = n
	return h
}

func newFakeTx(id byte, spends ...OutPoint) *fakeTx {
	return &fakeTx{hash: hashN(id), wHash: hashN(id), ins: spends, numOuts: 2, size: 250}
}

func op(id byte, idx uint32) OutPoint {
	return OutPoint{Hash: hashN(id), Index: idx}
}

// alwaysHaveView treats every outpoint not otherwise registered as an
// existing, mature, non-coinbase confirmed coin — good enough for tests
// that only care about mempool-internal ancestry.
type alwaysHaveView struct {
	coins map[OutPoint]Coin
}

func newAlwaysHaveView() *alwaysHaveView {
	return &alwaysHaveView{coins: make(map[OutPoint]Coin)}
}

func (v *alwaysHaveView) GetCoin(o OutPoint) (Coin, bool) {
	if c, ok := v.coins[o]; ok {
		return c, true
	}
	return Coin{Height: 1}, true
}

func (v *alwaysHaveView) HaveCoin(o OutPoint) bool {
	return true
}

func testMempool() *Mempool {
	return NewMempool(Config{Now: func() int64 { return 1000 }})
}

func addTx(t *testing.T, m *Mempool, tx *fakeTx, fee int64) *Entry {
	t.Helper()
	e, err := m.AddUnchecked(tx, fee, 1000, 100, LockPoints{}, 0, false, AncestorLimits{
		MaxAncestorCount: 1000, MaxAncestorSize: 1 << 30, MaxDescendantCount: 1000, MaxDescendantSize: 1 << 30,
	}, true)
	if err != nil {
		t.Fatalf("AddUnchecked(%x): %v", tx.hash, err)
	}
	return e
}

func TestAddUncheckedSingleTx(t *testing.T) {
	m := testMempool()
	tx := newFakeTx(1)
	e := addTx(t, m, tx, 500)

	if m.Size() != 1 {
		t.Fatalf("Size() = %d, want 1", m.Size())
	}
	if e.CountWithAncestors != 1 || e.CountWithDescendants != 1 {
		t.Fatalf("fresh entry ancestor/descendant counts = %d/%d, want 1/1", e.CountWithAncestors, e.CountWithDescendants)
	}
	if got := m.GetTotalTxSize(); got != int64(tx.size) {
		t.Fatalf("GetTotalTxSize() = %d, want %d", got, tx.size)
	}
	info, ok := m.Info(tx.hash)
	if !ok || info.FeeRate.SatoshisPerK == 0 {
		t.Fatalf("Info() = %+v, ok=%v", info, ok)
	}
}

// chain builds A -> B -> C -> D, each spending output 0 of its parent,
// with fees 1,2,3,4 (in satoshis) as used throughout spec concrete
// scenarios.
func chain(t *testing.T, m *Mempool) (a, b, c, d *Entry) {
	t.Helper()
	txA := newFakeTx(0xA)
	txB := newFakeTx(0xB, op(0xA, 0))
	txC := newFakeTx(0xC, op(0xB, 0))
	txD := newFakeTx(0xD, op(0xC, 0))

	a = addTx(t, m, txA, 1)
	b = addTx(t, m, txB, 2)
	c = addTx(t, m, txC, 3)
	d = addTx(t, m, txD, 4)
	return
}

func TestAncestorDescendantChainRollups(t *testing.T) {
	m := testMempool()
	a, b, c, d := chain(t, m)

	if a.CountWithDescendants != 4 {
		t.Fatalf("A countWithDescendants = %d, want 4", a.CountWithDescendants)
	}
	if d.CountWithAncestors != 4 {
		t.Fatalf("D countWithAncestors = %d, want 4", d.CountWithAncestors)
	}
	if b.CountWithAncestors != 2 || b.CountWithDescendants != 3 {
		t.Fatalf("B ancestors/descendants = %d/%d, want 2/3", b.CountWithAncestors, b.CountWithDescendants)
	}
	if c.CountWithAncestors != 3 || c.CountWithDescendants != 2 {
		t.Fatalf("C ancestors/descendants = %d/%d, want 3/2", c.CountWithAncestors, c.CountWithDescendants)
	}

	wantFee := int64(1 + 2 + 3 + 4)
	if a.ModFeesWithDescendants != wantFee {
		t.Fatalf("A modFeesWithDescendants = %d, want %d", a.ModFeesWithDescendants, wantFee)
	}
	if d.ModFeesWithAncestors != wantFee {
		t.Fatalf("D modFeesWithAncestors = %d, want %d", d.ModFeesWithAncestors, wantFee)
	}

	// descendants is an upper bound (the largest countWithDescendants
	// found walking up B's ancestor graph to a parentless entry), not
	// B's own countWithDescendants — here that's A's full closure size.
	ancestors, descendants := m.GetTransactionAncestry(b.Tx.Hash())
	if ancestors != 2 || descendants != 4 {
		t.Fatalf("GetTransactionAncestry(B) = %d/%d, want 2/4", ancestors, descendants)
	}
}

func TestDiamondAncestryDedupesSharedAncestor(t *testing.T) {
	m := testMempool()
	txA := newFakeTx(0xA)
	txB := newFakeTx(0xB, op(0xA, 0))
	txC := newFakeTx(0xC, op(0xA, 1))
	txD := newFakeTx(0xD, op(0xB, 0), op(0xC, 0))

	addTx(t, m, txA, 1)
	addTx(t, m, txB, 1)
	addTx(t, m, txC, 1)
	d := addTx(t, m, txD, 1)

	// D's ancestors are A, B, C plus itself = 4, not 5 (A must not be
	// counted twice for arriving via both B and C).
	if d.CountWithAncestors != 4 {
		t.Fatalf("D countWithAncestors = %d, want 4", d.CountWithAncestors)
	}

	aEntry := m.Get(txA.hash)
	if aEntry.CountWithDescendants != 4 {
		t.Fatalf("A countWithDescendants = %d, want 4", aEntry.CountWithDescendants)
	}
}

func TestRemoveRecursiveCascadesToDescendants(t *testing.T) {
	m := testMempool()
	a, _, _, _ := chain(t, m)

	if m.Size() != 4 {
		t.Fatalf("Size() = %d, want 4 before removal", m.Size())
	}
	m.RemoveRecursive(a.Tx, ReasonConflict)
	if m.Size() != 0 {
		t.Fatalf("Size() = %d, want 0 after removing the root of the chain", m.Size())
	}
}

func TestRemoveRecursiveLeafLeavesAncestorsIntact(t *testing.T) {
	m := testMempool()
	a, _, _, d := chain(t, m)

	m.RemoveRecursive(d.Tx, ReasonExpiry)
	if m.Size() != 3 {
		t.Fatalf("Size() = %d, want 3 after removing the leaf", m.Size())
	}
	if a.CountWithDescendants != 3 {
		t.Fatalf("A countWithDescendants after leaf removal = %d, want 3", a.CountWithDescendants)
	}
}

func TestPrioritiseTransactionPropagatesToAncestorsAndDescendants(t *testing.T) {
	m := testMempool()
	a, b, c, _ := chain(t, m)
	_ = c

	baseAncestorFee := b.ModFeesWithAncestors
	baseDescFee := a.ModFeesWithDescendants

	m.PrioritiseTransaction(b.Tx.Hash(), 1000)

	if b.ModFeesWithAncestors != baseAncestorFee+1000 {
		t.Fatalf("B modFeesWithAncestors = %d, want %d", b.ModFeesWithAncestors, baseAncestorFee+1000)
	}
	if a.ModFeesWithDescendants != baseDescFee+1000 {
		t.Fatalf("A modFeesWithDescendants after prioritising its descendant B = %d, want %d", a.ModFeesWithDescendants, baseDescFee+1000)
	}

	m.ClearPrioritisation(b.Tx.Hash())
	if delta := m.ApplyDelta(b.Tx.Hash(), 0); delta != 0 {
		t.Fatalf("ApplyDelta after clear = %d, want 0", delta)
	}
}

func TestTrimToSizeEvictsLowestDescendantScoreFirst(t *testing.T) {
	m := testMempool()
	cheap := newFakeTx(1)
	rich := newFakeTx(2)
	addTx(t, m, cheap, 1)
	addTx(t, m, rich, 1000)

	usageBefore := m.DynamicMemoryUsage()
	limit := usageBefore - 1 // force exactly one eviction

	m.TrimToSize(limit)

	if m.Exists(rich.hash) == false {
		t.Fatalf("higher-feerate tx was evicted; expected the cheap one to go first")
	}
	if m.Exists(cheap.hash) {
		t.Fatalf("lower-feerate tx survived eviction")
	}
}

func TestExpireRemovesOnlyOldEntries(t *testing.T) {
	m := testMempool()
	old := newFakeTx(1)
	recent := newFakeTx(2)

	oldEntry, err := m.AddUnchecked(old, 10, 100, 1, LockPoints{}, 0, false, NoLimits(), true)
	if err != nil {
		t.Fatal(err)
	}
	_, err = m.AddUnchecked(recent, 10, 900, 1, LockPoints{}, 0, false, NoLimits(), true)
	if err != nil {
		t.Fatal(err)
	}

	removed := m.Expire(500)
	if removed != 1 {
		t.Fatalf("Expire(500) removed %d entries, want 1", removed)
	}
	if m.Exists(oldEntry.Tx.Hash()) {
		t.Fatalf("old entry should have been expired")
	}
	if !m.Exists(recent.hash) {
		t.Fatalf("recent entry should have survived")
	}
}

func TestRemoveForBlockClearsMempoolConflicts(t *testing.T) {
	m := testMempool()
	shared := op(0xA, 0)
	// conflicting is resident in our mempool; confirmed spends the same
	// output but was never relayed to us, and now arrives in a block.
	conflicting := newFakeTx(2, shared)
	confirmed := newFakeTx(1, shared)

	addTx(t, m, conflicting, 10)
	if m.Size() != 1 {
		t.Fatalf("Size() = %d, want 1 before block", m.Size())
	}

	m.RemoveForBlock([]Tx{confirmed}, 101)

	if m.Size() != 0 {
		t.Fatalf("Size() = %d, want 0: the mempool's conflicting spender should have been evicted", m.Size())
	}
}

func TestCheckPassesOnConsistentChain(t *testing.T) {
	m := testMempool()
	chain(t, m)
	if err := m.Check(newAlwaysHaveView()); err != nil {
		t.Fatalf("Check() = %v, want nil", err)
	}
}

func TestInsertThenRemoveIsIdempotentOnMapNextTx(t *testing.T) {
	m := testMempool()
	a, _, _, _ := chain(t, m)
	m.RemoveRecursive(a.Tx, ReasonReorg)

	if _, ok := m.GetConflictTx(op(0xA, 0)); ok {
		t.Fatalf("mapNextTx entry for A's output survived full removal")
	}
	if len(m.vTxHashes) != 0 {
		t.Fatalf("vTxHashes not drained after removing everything, len=%d", len(m.vTxHashes))
	}
}

func TestGetMinFeeDecaysTowardIncrementalFloor(t *testing.T) {
	now := int64(1000)
	m := NewMempool(Config{
		Now:                 func() int64 { return now },
		IncrementalRelayFee: NewFeeRate(1000),
		RollingFeeHalfLife:  100,
	})

	cheap := newFakeTx(1)
	addTx(t, m, cheap, 1)
	m.TrimToSize(0) // evict everything, bumping the rolling minimum fee
	// Decay only starts once a block has arrived since the last bump.
	m.RemoveForBlock(nil, 101)

	before := m.GetMinFee(1 << 20)
	now += 1000 // several half-lives later
	after := m.GetMinFee(1 << 20)

	if after.SatoshisPerK > before.SatoshisPerK {
		t.Fatalf("rolling min fee grew over time: before=%d after=%d", before.SatoshisPerK, after.SatoshisPerK)
	}
	if after.SatoshisPerK < m.cfg.IncrementalRelayFee.SatoshisPerK && after.SatoshisPerK != 0 {
		t.Fatalf("rolling min fee %d fell below the incremental floor without hitting zero", after.SatoshisPerK)
	}
}
