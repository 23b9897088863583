package runloop

import "sync/atomic"

// PendingEnvelope wraps an inbound Envelope with the first-delivery flag
// used to deduplicate broadcast fan-out across tasks sharing a partition
// (§3, §4.2). It is created once per chosen envelope by the RunLoop and
// referenced by every TaskWorker subscribed to its partition.
//
// processed is touched only from the loop thread during fetchEnvelope, so
// it needs no synchronization in the single-dispatcher design (§9). It is
// still an atomic so a future multi-dispatcher variant stays safe without
// revisiting call sites.
type PendingEnvelope struct {
	Envelope  Envelope
	processed atomic.Bool
}

// newPendingEnvelope wraps env for fan-out to every task subscribed to its partition.
func newPendingEnvelope(env Envelope) *PendingEnvelope {
	return &PendingEnvelope{Envelope: env}
}

// markProcessed flips processed from false to true and reports whether this
// call was the one that flipped it (i.e., the caller is the first task to
// fetch this envelope from its pending queue).
func (p *PendingEnvelope) markProcessed() bool {
	return p.processed.CompareAndSwap(false, true)
}
