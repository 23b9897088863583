package runloop

import (
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// callbackState enumerates CallbackHandle.state (§3).
type callbackState int32

const (
	callbackPending callbackState = iota
	callbackCompleted
	callbackFailed
	callbackTimedOut
)

// CallbackHandle is the per-dispatch handle a TaskWorker hands to the user
// task's CallbackFactory (§3, §4.2). sequence is the per-task dispatch
// order number used by the CallbackReorderBuffer to retire offsets in
// order regardless of completion order.
type CallbackHandle struct {
	sequence      int
	envelope      *PendingEnvelope
	coordinator   *Coordinator
	timeCreatedNs int64

	state atomic.Int32 // callbackState

	worker *TaskWorker
	timer  *time.Timer // armed iff callbackTimeoutMs > 0; guarded by state CAS
}

func newCallbackHandle(seq int, envelope *PendingEnvelope, coordinator *Coordinator, w *TaskWorker) *CallbackHandle {
	return &CallbackHandle{
		sequence:      seq,
		envelope:      envelope,
		coordinator:   coordinator,
		timeCreatedNs: clockNow().UnixNano(),
		worker:        w,
	}
}

// transition attempts the single-shot move from Pending to to. It reports
// whether this call won the race (§3: "terminal transitions are single-shot").
func (h *CallbackHandle) transition(to callbackState) bool {
	return h.state.CompareAndSwap(int32(callbackPending), int32(to))
}

// Complete reports success. Only the first Complete/Fail call has effect
// (§4.2, §7: duplicate completions are ignored, metrics-only).
func (h *CallbackHandle) Complete() {
	if !h.transition(callbackCompleted) {
		h.worker.noteDuplicateCompletion(h)
		return
	}
	h.stopTimer()
	h.worker.onComplete(h)
}

// Fail reports failure with err. Only the first Complete/Fail call has effect.
func (h *CallbackHandle) Fail(err error) {
	if !h.transition(callbackFailed) {
		h.worker.noteDuplicateCompletion(h)
		return
	}
	h.stopTimer()
	h.worker.onFailure(h, err)
}

// timeoutFire is invoked by the watchdog when the deadline elapses. It only
// has effect if no completion has raced it already.
func (h *CallbackHandle) timeoutFire() {
	if !h.transition(callbackTimedOut) {
		return
	}
	h.worker.loop.logger().WithFields(logrus.Fields{
		"task":     string(h.worker.name),
		"sequence": h.sequence,
	}).Warn("callback timed out")
	h.worker.onFailure(h, ErrCallbackTimeout)
}

func (h *CallbackHandle) stopTimer() {
	if h.timer != nil {
		h.timer.Stop()
	}
}
