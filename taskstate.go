package runloop

import "sync/atomic"

// op is the operation TaskState.nextOp selects (§4.2, "Priority / tie-break
// in nextOp").
type op int

const (
	opNone op = iota
	opCommit
	opWindow
	opProcess
)

// TaskState holds the per-task scheduling state described in §3. Flags are
// atomics: needWindow/needCommit/windowOrCommitInFlight are written by the
// periodic-timer thread, the loop thread, and TaskWorker's async
// window/commit continuations; messagesInFlight is written by the loop
// thread (increment, on dispatch) and by onComplete/onFailure (decrement,
// from any thread a user task's callback runs on). pendingQueue is mutated
// only by the loop thread (§5) and therefore needs no synchronization.
type TaskState struct {
	taskName       TaskName
	maxConcurrency int

	needWindow             atomic.Bool
	needCommit             atomic.Bool
	windowOrCommitInFlight atomic.Bool
	messagesInFlight       atomic.Int32

	pendingQueue []*PendingEnvelope

	requests *CoordinatorRequestSink
}

func newTaskState(name TaskName, maxConcurrency int, requests *CoordinatorRequestSink) *TaskState {
	return &TaskState{taskName: name, maxConcurrency: maxConcurrency, requests: requests}
}

// enqueue appends envelope to the pending queue. Loop thread only.
func (s *TaskState) enqueue(p *PendingEnvelope) {
	s.pendingQueue = append(s.pendingQueue, p)
}

// dequeue pops the head of the pending queue. Loop thread only.
func (s *TaskState) dequeue() (*PendingEnvelope, bool) {
	if len(s.pendingQueue) == 0 {
		return nil, false
	}
	p := s.pendingQueue[0]
	s.pendingQueue = s.pendingQueue[1:]
	return p, true
}

func (s *TaskState) pendingLen() int { return len(s.pendingQueue) }

// hasInFlight reports whether any dispatched callback is still outstanding.
func (s *TaskState) hasInFlight() bool { return s.messagesInFlight.Load() > 0 }

// inFlightCount and capacity back the utilization gauge (§C.2).
func (s *TaskState) inFlightCount() int { return int(s.messagesInFlight.Load()) }
func (s *TaskState) capacity() int      { return s.maxConcurrency }

// isReady folds any coordinator-requested commit into needCommit
// (consume-on-read, §4.3) and reports whether the task may run its next
// operation right now.
func (s *TaskState) isReady() bool {
	if s.requests.consumeCommitRequest(s.taskName) {
		s.needCommit.Store(true)
	}

	inFlight := s.messagesInFlight.Load()
	inWindowOrCommit := s.windowOrCommitInFlight.Load()

	if s.needWindow.Load() || s.needCommit.Load() {
		return inFlight == 0 && !inWindowOrCommit
	}
	return int(inFlight) < s.maxConcurrency && !inWindowOrCommit
}

// hasPendingOps reports whether the task has anything to do at all,
// irrespective of readiness (§4.1, blockIfBusy).
func (s *TaskState) hasPendingOps() bool {
	return s.pendingLen() > 0 || s.needWindow.Load() || s.needCommit.Load()
}

// nextOp applies the priority order from §4.2: commit, then window, then
// process, then no-op. Callers must have already established isReady().
func (s *TaskState) nextOp() op {
	if s.needCommit.Load() {
		return opCommit
	}
	if s.needWindow.Load() {
		return opWindow
	}
	if s.pendingLen() > 0 {
		return opProcess
	}
	return opNone
}

// startWindowOrCommit clears the corresponding need flag on *start*, not
// completion (§4.2 policy note; preserved per §9 open question: ticks
// during an in-flight window/commit do re-arm the flag rather than being
// coalesced away).
func (s *TaskState) startWindowOrCommit(o op) {
	s.windowOrCommitInFlight.Store(true)
	switch o {
	case opWindow:
		s.needWindow.Store(false)
	case opCommit:
		s.needCommit.Store(false)
	}
}

func (s *TaskState) finishWindowOrCommit() {
	s.windowOrCommitInFlight.Store(false)
}

func (s *TaskState) incInFlight() { s.messagesInFlight.Add(1) }
func (s *TaskState) decInFlight() { s.messagesInFlight.Add(-1) }

func (s *TaskState) setNeedWindow() { s.needWindow.Store(true) }
func (s *TaskState) setNeedCommit() { s.needCommit.Store(true) }

// mergeCoordinator folds a finished dispatch's Coordinator requests into
// the shared CoordinatorRequestSink, attributing commit requests to this
// task (§4.5).
func (s *TaskState) mergeCoordinator(c *Coordinator) { s.requests.update(s.taskName, c) }
