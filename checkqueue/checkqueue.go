// Package checkqueue distributes batches of independent boolean
// predicates across a fixed pool of worker goroutines with fast-exit
// short-circuiting: the first verifier to fail stops the whole batch from
// being reported successful, though goroutines already mid-verifier run
// to completion.
//
// The algorithm is a direct port of Bitcoin Core's CCheckQueue: a
// contiguous slice of verifiers published by a single Control at a time,
// claimed by worker goroutines via CAS on a "bot" counter, with a sealed
// high bit on "top" marking the end of a round and an "awake" counter
// used as the join barrier.
package checkqueue

import (
	"sync"
	"sync/atomic"

	"github.com/copernet/txcore/txlog"
)

// sealedBit marks that no further verifiers will be added to the current
// round. It is stored in the high bit of top so a single atomic load can
// observe both "how many verifiers are published" and "is the round
// sealed" at once.
const sealedBit uint32 = 1 << 31

// Verifier is an opaque boolean-producing computation — typically one
// script or signature check. Verifiers must be independent: the queue
// makes no ordering guarantees between them, and their boolean AND is
// commutative.
type Verifier func() bool

// cachePad is sized to push the following field onto its own cache line,
// eliminating false sharing between bot and top under concurrent CAS.
type cachePad [64 - 4]byte

// CheckQueue is a fixed pool of worker goroutines consuming a
// monotonically-growing, externally-allocated array of verifiers. It is
// safe to set up a new round only once the previous round's Wait has
// returned; Control enforces that serialization.
type CheckQueue struct {
	// mem points at the verifier storage for the current round. It is
	// only mutated under mu, between rounds.
	mem []Verifier

	// bot is the next index to claim; top is one past the last index
	// published, with its high bit doubling as the sealed flag. Each
	// lives on its own cache line.
	bot  atomic.Uint32
	_    cachePad
	top  atomic.Uint32
	_    cachePad

	// allOk is cleared by the first verifier to return false.
	allOk atomic.Bool

	// awake counts worker goroutines that are not currently sleeping on
	// cond. The master busy-waits on awake == 0 as its join barrier.
	awake atomic.Int32

	// mu/cond block workers that have run out of claimable work and are
	// waiting for the next round (Setup) or shutdown (Interrupt).
	mu   sync.Mutex
	cond *sync.Cond

	quit atomic.Bool

	wg sync.WaitGroup

	// ctrlMu ensures at most one Control is active at a time.
	ctrlMu sync.Mutex
}

// NewCheckQueue creates a queue with no workers started. Callers must
// call Start to spin up the worker pool before using a Control, and
// Interrupt (or letting the process exit) to tear it down.
func NewCheckQueue() *CheckQueue {
	q := &CheckQueue{}
	q.cond = sync.NewCond(&q.mu)
	q.allOk.Store(true)
	q.top.Store(sealedBit)
	return q
}

// Start launches n worker goroutines. Passing n == 0 is valid: the
// master alone will evaluate every verifier when it joins the pool in
// Wait.
func (q *CheckQueue) Start(n int) {
	for i := 0; i < n; i++ {
		q.wg.Add(1)
		go func() {
			defer q.wg.Done()
			q.loop(false)
		}()
	}
	txlog.Debug("checkqueue: started %d worker goroutines", n)
}

// setup points the queue at a fresh verifier slice and resets the round
// counters, then wakes any worker sleeping from the previous round.
func (q *CheckQueue) setup(mem []Verifier) {
	q.mu.Lock()
	q.mem = mem
	q.top.Store(0)
	q.bot.Store(0)
	q.allOk.Store(true)
	q.mu.Unlock()
	q.cond.Broadcast()
}

// add publishes that n further verifiers are now present in mem, making
// them claimable by workers.
func (q *CheckQueue) add(n int) {
	q.top.Add(uint32(n))
}

// doneAdding seals the round: no further verifiers will be added, so
// workers (and the master) can tell "no work left" apart from "wait for
// more work."
func (q *CheckQueue) doneAdding() {
	for {
		old := q.top.Load()
		if old&sealedBit != 0 {
			return
		}
		if q.top.CompareAndSwap(old, old|sealedBit) {
			return
		}
	}
}

// loop is the worker algorithm, parametrised by whether the caller is
// the master (the goroutine running Control.Wait, which joins the pool
// as an (N+1)'th worker rather than sleeping between rounds).
func (q *CheckQueue) loop(isMaster bool) bool {
	if !isMaster {
		q.awake.Add(1)
	}

	var topCache uint32
	finalCheckAdded := isMaster
	if isMaster {
		topCache = q.top.Load() &^ sealedBit
	}

	for {
		botCache := q.bot.Load()

		// Claim phase: CAS bot upward while there is unclaimed,
		// unsealed work.
		for topCache > botCache && !q.bot.CompareAndSwap(botCache, botCache+1) {
			botCache = q.bot.Load()
		}
		if topCache > botCache {
			verifier := q.mem[botCache]
			if !verifier() {
				// Fast-exit: a heuristic that stops further
				// claims quickly. Correctness does not depend
				// on this; it is carried entirely by the
				// sealed flag plus the awake count below.
				q.bot.Store(^uint32(0))
				q.allOk.Store(false)
				txlog.Trace("checkqueue: verifier failed, fast-exiting round")
			}
			continue
		}

		if isMaster {
			q.top.Store(sealedBit)
			for q.awake.Load() != 0 {
				// Busy-wait: the master holds no lock here,
				// so there is no harm in spinning until every
				// worker has observed the sealed round and
				// gone back to sleep.
			}
			return q.allOk.Load()
		}

		if !finalCheckAdded {
			top := q.top.Load()
			finalCheckAdded = top&sealedBit != 0
			topCache = top &^ sealedBit
			if finalCheckAdded {
				continue
			}
		}

		if finalCheckAdded {
			// Release all writes to allOk before sleeping.
			q.awake.Add(-1)
			q.mu.Lock()
			for !q.quit.Load() && q.top.Load() == sealedBit {
				q.cond.Wait()
			}
			quit := q.quit.Load()
			q.mu.Unlock()
			if quit {
				return false
			}
			q.awake.Add(1)
			top := q.top.Load()
			finalCheckAdded = top&sealedBit != 0
			topCache = top &^ sealedBit
			continue
		}
	}
}

// wait seals the round (if not already sealed by the caller) and joins
// the worker pool as the master, returning once every published
// verifier has been claimed and evaluated.
func (q *CheckQueue) wait() bool {
	q.doneAdding()
	return q.loop(true)
}

// Interrupt tells every worker to exit and blocks until they have. It is
// safe to call more than once. After Interrupt returns no worker
// goroutines remain; a round begun by a later Control is evaluated by the
// master alone.
func (q *CheckQueue) Interrupt() {
	for q.awake.Load() != 0 {
	}
	q.ctrlMu.Lock()
	q.mu.Lock()
	q.quit.Store(true)
	q.top.Store(sealedBit)
	q.mu.Unlock()
	q.ctrlMu.Unlock()
	q.cond.Broadcast()
	q.wg.Wait()
}
