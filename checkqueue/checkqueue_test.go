package checkqueue

import (
	"sync/atomic"
	"testing"
)

func runBatch(t *testing.T, workers, batch int, failAt int) bool {
	t.Helper()

	q := NewCheckQueue()
	q.Start(workers)
	defer q.Interrupt()

	var calls int64
	ctrl := NewControl(q, batch)
	for i := 0; i < batch; i++ {
		idx := i
		ctrl.Add(func() bool {
			atomic.AddInt64(&calls, 1)
			if failAt >= 0 && idx == failAt {
				return false
			}
			return true
		})
	}
	ctrl.Flush(batch)
	ok := ctrl.Wait()
	ctrl.Release()

	if got := atomic.LoadInt64(&calls); got > int64(batch) {
		t.Fatalf("verifier invoked more than once overall: %d calls for %d verifiers", got, batch)
	}
	return ok
}

func TestEmptyQueue(t *testing.T) {
	q := NewCheckQueue()
	q.Start(0)
	defer q.Interrupt()

	ctrl := NewControl(q, 0)
	if !ctrl.Wait() {
		t.Fatal("empty batch should report success")
	}
	ctrl.Release()
}

func TestAllPassFourWorkers(t *testing.T) {
	if !runBatch(t, 4, 1000, -1) {
		t.Fatal("expected all 1000 verifiers returning true to yield true")
	}
}

func TestOneFailureShortCircuits(t *testing.T) {
	if runBatch(t, 4, 1000, 237) {
		t.Fatal("expected a single failing verifier to yield false")
	}
}

func TestZeroWorkersMasterAlone(t *testing.T) {
	if !runBatch(t, 0, 64, -1) {
		t.Fatal("master alone should still evaluate every verifier correctly")
	}
}

func TestZeroWorkersMasterAloneFailure(t *testing.T) {
	if runBatch(t, 0, 64, 10) {
		t.Fatal("master alone should still observe a failing verifier")
	}
}

func TestSuccessiveRoundsDoNotLeak(t *testing.T) {
	q := NewCheckQueue()
	q.Start(2)
	defer q.Interrupt()

	for round := 0; round < 5; round++ {
		wantOK := round%2 == 0
		ctrl := NewControl(q, 10)
		for i := 0; i < 10; i++ {
			fail := !wantOK && i == 5
			ctrl.Add(func() bool { return !fail })
		}
		ctrl.Flush(10)
		if got := ctrl.Wait(); got != wantOK {
			t.Fatalf("round %d: got %v, want %v", round, got, wantOK)
		}
		ctrl.Release()
	}
}

func TestReleaseWithoutWaitStillJoins(t *testing.T) {
	q := NewCheckQueue()
	q.Start(3)
	defer q.Interrupt()

	var calls int64
	ctrl := NewControl(q, 50)
	for i := 0; i < 50; i++ {
		ctrl.Add(func() bool {
			atomic.AddInt64(&calls, 1)
			return true
		})
	}
	ctrl.Flush(50)
	ctrl.Release() // no explicit Wait() call

	if atomic.LoadInt64(&calls) != 50 {
		t.Fatalf("Release without Wait should still have joined the round: got %d calls", calls)
	}
}

func TestNilQueueControlIsNoop(t *testing.T) {
	ctrl := NewControl(nil, 10)
	ctrl.Add(func() bool { return false })
	ctrl.Flush(1)
	if !ctrl.Wait() {
		t.Fatal("a Control over a nil queue must always report success")
	}
	ctrl.Release()
}
