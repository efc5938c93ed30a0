package mempool

import "sync"

// ConflictTracker is a concrete EntryNotifier that remembers every entry
// removed for a conflict or a replacement, with that reason — grounded on
// the subscriber-callback pattern the source's
// SyncTransaction/NotifyEntryRemoved hooks follow for wallet and
// fee-estimator notification. Removals for any other reason (expiry, size
// limit, reorg, block) are not recorded. Callers that want to react to
// conflict or replaced-by-fee evictions can poll Take rather than wiring a
// bespoke notifier for each concern.
type ConflictTracker struct {
	mu      sync.Mutex
	removed []RemovedEntry
}

// RemovedEntry is a snapshot of one NotifyEntryRemoved callback.
type RemovedEntry struct {
	Txid   Hash
	Reason RemoveReason
}

// NewConflictTracker returns an empty tracker.
func NewConflictTracker() *ConflictTracker {
	return &ConflictTracker{}
}

func (c *ConflictTracker) NotifyEntryAdded(entry *Entry) {}

func (c *ConflictTracker) NotifyEntryRemoved(entry *Entry, reason RemoveReason) {
	if reason != ReasonConflict && reason != ReasonReplaced {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removed = append(c.removed, RemovedEntry{Txid: entry.Tx.Hash(), Reason: reason})
}

// Take returns and clears every conflict/replacement recorded so far.
func (c *ConflictTracker) Take() []RemovedEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.removed
	c.removed = nil
	return out
}
