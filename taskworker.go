package runloop

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// loopController is the narrow surface TaskWorker needs back from RunLoop.
// Modeled as an interface rather than a *RunLoop back-pointer (§9, "model
// ownership as a tree, not a cycle") so TaskWorker can be constructed by
// Assignment before any RunLoop exists; RunLoop binds itself via bind
// once it is built.
type loopController interface {
	consumer() Consumer
	offsetManager() OffsetManager
	metrics() MetricsSink
	logger() Logger
	resume()
	abort(err error)
}

// TaskWorker owns one UserTask's scheduling state, pending queue, and
// in-flight callback bookkeeping (§4.2). Adapted from the teacher's worker
// (worker.go/workers.go): same "one goroutine-free state machine driven by
// an external loop" shape, generalized from a single fixed operation to
// the process/window/commit trio with its own readiness and priority
// rules (TaskState).
type TaskWorker struct {
	task    UserTask
	name    TaskName
	cfg     Config
	state   *TaskState
	reorder *CallbackReorderBuffer
	loop    loopController

	seq int // next dispatch sequence number; loop thread only
}

func newTaskWorker(t UserTask, cfg Config, requests *CoordinatorRequestSink) *TaskWorker {
	name := t.Name()
	return &TaskWorker{
		task:    t,
		name:    name,
		cfg:     cfg,
		state:   newTaskState(name, cfg.MaxConcurrency, requests),
		reorder: newCallbackReorderBuffer(),
	}
}

// bind attaches the owning RunLoop. Called once, before Run starts ticking.
func (w *TaskWorker) bind(loop loopController) { w.loop = loop }

// init arms this task's periodic window and commit ticks on scheduler
// (§4.2). A tick only sets the corresponding need-flag and wakes the loop;
// it never runs Window/Commit itself (that stays on the loop thread, or on
// Config.Executor, per §5).
func (w *TaskWorker) init(scheduler *periodicScheduler) {
	w.loop.logger().WithFields(logrus.Fields{
		"task":       string(w.name),
		"windowable": w.task.IsWindowable(),
		"windowMs":   w.cfg.WindowMs,
		"commitMs":   w.cfg.CommitMs,
	}).Debug("task registered")

	if w.task.IsWindowable() && w.cfg.WindowMs > 0 {
		scheduler.schedule(time.Duration(w.cfg.WindowMs)*time.Millisecond, func() {
			w.state.setNeedWindow()
			w.loop.resume()
		})
	}
	if w.cfg.CommitMs > 0 {
		scheduler.schedule(time.Duration(w.cfg.CommitMs)*time.Millisecond, func() {
			w.state.setNeedCommit()
			w.loop.resume()
		})
	}
}

// run dispatches exactly one operation for this task if it is ready, per
// the priority order in TaskState.nextOp (§4.2). Called once per task per
// loop tick, in Assignment's stable order.
func (w *TaskWorker) run(ctx context.Context) {
	if !w.state.isReady() {
		return
	}
	switch w.state.nextOp() {
	case opCommit:
		w.commit(ctx)
	case opWindow:
		w.window(ctx)
	case opProcess:
		w.process(ctx)
	}
}

// fetchEnvelope pops this task's pending queue and, if this task is the
// first to see the envelope (markProcessed), advances the consumer's
// cursor for its partition exactly once (§4.2, broadcast fan-out). Loop
// thread only.
func (w *TaskWorker) fetchEnvelope() (*PendingEnvelope, bool) {
	pe, ok := w.state.dequeue()
	if !ok {
		return nil, false
	}
	if pe.markProcessed() {
		w.loop.consumer().TryUpdate(pe.Envelope.Partition)
	}
	return pe, true
}

// process dispatches one envelope to the user task asynchronously (§4.2).
func (w *TaskWorker) process(ctx context.Context) {
	pe, ok := w.fetchEnvelope()
	if !ok {
		return
	}

	w.state.incInFlight()
	seq := w.seq
	w.seq++

	coordinator := newCoordinator()

	var (
		once   sync.Once
		handle *CallbackHandle
	)
	factory := func() Callback {
		once.Do(func() {
			handle = newCallbackHandle(seq, pe, coordinator, w)
			handle.timer = armCallbackTimeout(handle, w.cfg.CallbackTimeoutMs)
		})
		return handle
	}

	w.loop.metrics().CounterAdd(MetricProcesses, 1)
	w.loop.metrics().HistogramObserve(MetricPendingMessage, float64(w.state.pendingLen()))

	func() {
		defer func() {
			if r := recover(); r != nil {
				w.loop.abort(withTaskPartition(fmt.Errorf("%w: %v", ErrTaskPanicked, r), w.name, pe.Envelope.Partition))
			}
		}()
		w.task.Process(ctx, pe.Envelope, coordinator, factory)
	}()
}

// window runs the task's periodic aggregation step, synchronously on the
// loop thread unless Config.Executor is set (§5, §6).
func (w *TaskWorker) window(ctx context.Context) {
	w.state.startWindowOrCommit(opWindow)
	w.runBody(func() {
		start := clockNow()
		coordinator := newCoordinator()

		defer func() {
			if r := recover(); r != nil {
				w.loop.abort(withTask(fmt.Errorf("%w: %v", ErrTaskPanicked, r), w.name))
			}
			w.state.mergeCoordinator(coordinator)
			w.state.finishWindowOrCommit()
			w.loop.metrics().HistogramObserve(MetricWindowNs, float64(clockNow().Sub(start).Nanoseconds()))
			w.loop.metrics().CounterAdd(MetricWindows, 1)
			w.loop.resume()
		}()

		if err := w.task.Window(ctx, coordinator); err != nil {
			w.loop.abort(withTask(err, w.name))
		}
	})
}

// commit runs the task's periodic checkpoint (§4.2, §6).
func (w *TaskWorker) commit(ctx context.Context) {
	w.state.startWindowOrCommit(opCommit)
	w.runBody(func() {
		start := clockNow()

		defer func() {
			if r := recover(); r != nil {
				w.loop.abort(withTask(fmt.Errorf("%w: %v", ErrTaskPanicked, r), w.name))
			}
			w.state.finishWindowOrCommit()
			w.loop.metrics().HistogramObserve(MetricCommitNs, float64(clockNow().Sub(start).Nanoseconds()))
			w.loop.metrics().CounterAdd(MetricCommits, 1)
			w.loop.resume()
		}()

		if err := w.task.Commit(ctx); err != nil {
			w.loop.abort(withTask(err, w.name))
		}
	})
}

// runBody submits fn to Config.Executor if one is configured, otherwise
// runs it inline on the calling (loop) goroutine.
func (w *TaskWorker) runBody(fn func()) {
	if w.cfg.Executor != nil {
		w.cfg.Executor.Submit(fn)
		return
	}
	fn()
}

// onComplete handles a successful callback completion (§4.2, §4.4). It
// retires the handle through the reorder buffer and, if that retirement
// advanced the cursor, commits the last envelope's own offset in order —
// so offsets committed to OffsetManager are always strictly increasing
// even when completions race out of dispatch order (§8 S1, S2).
func (w *TaskWorker) onComplete(handle *CallbackHandle) {
	w.state.decInFlight()

	last, advanced := w.reorder.retire(handle)
	if advanced && last != nil {
		partition := last.envelope.Envelope.Partition
		w.loop.offsetManager().Update(w.name, partition, last.envelope.Envelope.Offset)
	}

	w.state.mergeCoordinator(handle.coordinator)
	w.loop.metrics().HistogramObserve(MetricProcessNs, float64(clockNow().UnixNano()-handle.timeCreatedNs))
	w.loop.resume()
}

// onFailure handles a failed or timed-out callback (§7). No offset is
// advanced; the run loop is aborted, so the reorder buffer's cursor is
// left exactly where it was, since nothing past this point will be
// committed anyway.
func (w *TaskWorker) onFailure(handle *CallbackHandle, err error) {
	w.state.decInFlight()
	w.loop.logger().WithFields(logrus.Fields{
		"task":      string(w.name),
		"partition": handle.envelope.Envelope.Partition,
		"sequence":  handle.sequence,
		"error":     err,
	}).Error("callback failed")
	w.loop.abort(withTaskPartition(err, w.name, handle.envelope.Envelope.Partition))
	w.loop.resume()
}

// noteDuplicateCompletion handles a second Complete/Fail call racing the
// first one. Per §7 these are ignored for correctness purposes; we still
// log them since a well-behaved UserTask should never produce one.
func (w *TaskWorker) noteDuplicateCompletion(handle *CallbackHandle) {
	w.loop.logger().WithFields(logrus.Fields{
		"task":     string(w.name),
		"sequence": handle.sequence,
	}).Warn("duplicate callback completion ignored")
}
