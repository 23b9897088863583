package runloop

import "sync"

// Coordinator is the per-dispatch object a UserTask mutates to request a
// commit or shutdown (§3, §4.5, GLOSSARY). A fresh Coordinator is built for
// every TaskWorker.process call; its requests are merged into the task's
// CoordinatorRequestSink once the dispatch's outcome (completion or, for
// window, direct merge) is known.
type Coordinator struct {
	mu                 sync.Mutex
	requestCommit      bool
	requestShutdownNow bool
	requestShutdown    bool // graceful variant, §C.3; tracked for observability
}

func newCoordinator() *Coordinator { return &Coordinator{} }

// RequestCommit asks that the owning task run a commit as soon as it is next ready.
func (c *Coordinator) RequestCommit() {
	c.mu.Lock()
	c.requestCommit = true
	c.mu.Unlock()
}

// RequestShutdown asks that the run loop stop once any commit debts this
// task owes are honored (§4.1 resume, §8 S6). This is the literal
// "requestShutdown" surface from spec.md's S6 scenario; it is the
// strongest shutdown intent this package exposes today.
func (c *Coordinator) RequestShutdown() {
	c.mu.Lock()
	c.requestShutdownNow = true
	c.mu.Unlock()
}

// RequestGracefulShutdown records shutdown intent without forcing the
// immediate-shutdown gate (§C.3, a feature recovered from
// original_source/AsyncRunLoop's requestShutdown vs requestShutdownNow
// distinction). The run loop does not yet treat it as an independent
// trigger — it is merged into CoordinatorRequestSink for observability and
// future use, documented as an open decision in DESIGN.md.
func (c *Coordinator) RequestGracefulShutdown() {
	c.mu.Lock()
	c.requestShutdown = true
	c.mu.Unlock()
}

func (c *Coordinator) snapshot() (commit, shutdownNow, shutdown bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.requestCommit, c.requestShutdownNow, c.requestShutdown
}

// CoordinatorRequestSink aggregates per-dispatch Coordinator requests
// (§4.5). A commit request is consumed (drained) by TaskState.isReady;
// shouldShutdownNow is sticky once set.
type CoordinatorRequestSink struct {
	mu                sync.Mutex
	commitRequested   map[TaskName]bool
	shouldShutdownNow bool
	shouldShutdown    bool
}

func newCoordinatorRequestSink() *CoordinatorRequestSink {
	return &CoordinatorRequestSink{commitRequested: make(map[TaskName]bool)}
}

// update merges c's requests, attributing the commit request to task.
func (s *CoordinatorRequestSink) update(task TaskName, c *Coordinator) {
	if c == nil {
		return
	}
	commit, shutdownNow, shutdown := c.snapshot()
	if !commit && !shutdownNow && !shutdown {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if commit {
		s.commitRequested[task] = true
	}
	if shutdownNow {
		s.shouldShutdownNow = true
	}
	if shutdown {
		s.shouldShutdown = true
	}
}

// consumeCommitRequest drains and reports whether task has a pending
// coordinator-requested commit (§4.3, "consume-on-read").
func (s *CoordinatorRequestSink) consumeCommitRequest(task TaskName) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.commitRequested[task] {
		delete(s.commitRequested, task)
		return true
	}
	return false
}

// hasPendingCommitRequests reports whether any task still owes a commit (§4.1 resume).
func (s *CoordinatorRequestSink) hasPendingCommitRequests() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.commitRequested) > 0
}

// shutdownNowRequested reports the sticky shouldShutdownNow flag.
func (s *CoordinatorRequestSink) shutdownNowRequested() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shouldShutdownNow
}
