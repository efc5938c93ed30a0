package checkqueue

import "github.com/copernet/txcore/txlog"

// Control is a scoped handle owning the verifier storage for one round
// and serializing use of the underlying queue: only one Control may be
// active on a given CheckQueue at a time.
//
// The zero value is not usable; construct with NewControl. If Wait is
// never called explicitly, Release still waits for the round to finish
// before giving up the queue, mirroring the RAII destructor in the
// source this is ported from.
type Control struct {
	queue *CheckQueue
	mem   []Verifier
	next  int
	added int
	done  bool
}

// NewControl locks q's control mutex, reserves storage for exactly size
// verifiers (so every pointer into it stays stable for the lifetime of
// the round — the slice is never grown), and points q at that storage.
// Passing a nil queue yields a Control whose Wait trivially returns true
// — useful for callers that want to disable parallel verification
// without branching on a pointer.
func NewControl(q *CheckQueue, size int) *Control {
	c := &Control{queue: q}
	if q == nil {
		return c
	}
	q.ctrlMu.Lock()
	c.mem = make([]Verifier, size)
	q.setup(c.mem)
	return c
}

// Add writes a verifier into the Control's reserved storage without
// publishing it to workers yet. Call Flush once the batch is ready to be
// claimed. Adding more than the size passed to NewControl is a
// programming error.
func (c *Control) Add(v Verifier) {
	if c.queue == nil {
		return
	}
	c.mem[c.next] = v
	c.next++
}

// Flush publishes the last n verifiers added via Add, making them
// claimable by workers.
func (c *Control) Flush(n int) {
	if c.queue == nil {
		return
	}
	c.queue.add(n)
	c.added += n
}

// Wait seals the round and blocks until every published verifier has
// run, returning true iff all of them returned true. It is safe to call
// Release after Wait; Release becomes a no-op for the wait itself.
func (c *Control) Wait() bool {
	if c.queue == nil {
		return true
	}
	ok := c.queue.wait()
	c.done = true
	return ok
}

// Release gives up the queue's control mutex, first calling Wait if the
// caller never did. Every Control must be released; callers should defer
// it immediately after NewControl.
func (c *Control) Release() {
	if c.queue == nil {
		return
	}
	if !c.done {
		c.Wait()
	}
	c.queue.ctrlMu.Unlock()
	txlog.Trace("checkqueue: control released after %d verifiers", c.added)
}
