// Package stats holds the monotonically increasing counters Replication
// Booster accumulates across the reader and worker pool, and the snapshot
// merge discipline described for the status publisher.
package stats

import "sync/atomic"

// Counters is the shared, process-wide statistics struct. Every field is
// updated with sync/atomic so readers (the status publisher) never need to
// take a lock to observe a consistent-enough snapshot for display.
type Counters struct {
	ParsedEvents   atomic.Uint64
	SkippedByOffset atomic.Uint64
	UnrelatedEvents atomic.Uint64
	DiscardedInFront atomic.Uint64
	Pushed         atomic.Uint64
	Popped         atomic.Uint64
	OldDiscarded   atomic.Uint64
	Converted      atomic.Uint64
	Executed       atomic.Uint64
	Errored        atomic.Uint64
	ReachedAhead   atomic.Uint64
	ReachedEOF     atomic.Uint64
	Cleared        atomic.Uint64
}

// Snapshot is a point-in-time copy of Counters suitable for rendering or
// comparing in tests, without exposing the atomics themselves.
type Snapshot struct {
	ParsedEvents     uint64
	SkippedByOffset  uint64
	UnrelatedEvents  uint64
	DiscardedInFront uint64
	Pushed           uint64
	Popped           uint64
	OldDiscarded     uint64
	Converted        uint64
	Executed         uint64
	Errored          uint64
	ReachedAhead     uint64
	ReachedEOF       uint64
	Cleared          uint64
}

func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		ParsedEvents:     c.ParsedEvents.Load(),
		SkippedByOffset:  c.SkippedByOffset.Load(),
		UnrelatedEvents:  c.UnrelatedEvents.Load(),
		DiscardedInFront: c.DiscardedInFront.Load(),
		Pushed:           c.Pushed.Load(),
		Popped:           c.Popped.Load(),
		OldDiscarded:     c.OldDiscarded.Load(),
		Converted:        c.Converted.Load(),
		Executed:         c.Executed.Load(),
		Errored:          c.Errored.Load(),
		ReachedAhead:     c.ReachedAhead.Load(),
		ReachedEOF:       c.ReachedEOF.Load(),
		Cleared:          c.Cleared.Load(),
	}
}

// Local accumulates a single worker's counts between merges. Keeping these
// as plain uint64 fields (rather than hitting the shared atomics on every
// pop) preserves cache locality in the worker's hot loop; Merge folds them
// into the shared Counters and resets the locals, the same discipline the
// original tool's per-worker worker_stats_t used.
type Local struct {
	Popped       uint64
	OldDiscarded uint64
	Converted    uint64
	Executed     uint64
	Errored      uint64
}

// Merge folds l into c and resets l to zero.
func (l *Local) Merge(c *Counters) {
	c.Popped.Add(l.Popped)
	c.OldDiscarded.Add(l.OldDiscarded)
	c.Converted.Add(l.Converted)
	c.Executed.Add(l.Executed)
	c.Errored.Add(l.Errored)
	*l = Local{}
}
