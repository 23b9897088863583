package runloop

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/ygrebnov/errorc"
)

// RunLoop is the single-threaded scheduler described in §2 and §4.1: it
// repeatedly chooses one envelope from Consumer, fans it out to every
// TaskWorker subscribed to its partition, and lets each worker run at
// most one operation per tick, blocking only when every task is busy.
// Adapted from the teacher's dispatcher (dispatcher.go) and lifecycle
// (lifecycle.go): the same "drive workers from one coordinating goroutine,
// teardown deterministically on exit" shape, generalized from a fixed
// worker pool pulling from one shared queue to a partition-aware fan-out
// across tasks with asynchronous, possibly out-of-order, completions.
type RunLoop struct {
	cfg        Config
	assignment *Assignment
	consumerC  Consumer
	offsets    OffsetManager

	wakeCh chan struct{}

	running atomic.Bool

	fatalMu    sync.Mutex
	fatalErr   error
	abortOnce  sync.Once
	shutdownNR atomic.Bool // shutdownRequested, set by resume()/abort()

	scheduler *periodicScheduler
}

// New builds a RunLoop over assignment, reading envelopes from consumer
// and committing offsets through offsets (§6).
func New(cfg Config, assignment *Assignment, consumer Consumer, offsets OffsetManager) (*RunLoop, error) {
	if assignment == nil || consumer == nil || offsets == nil {
		return nil, ErrInvalidConfig
	}
	rl := &RunLoop{
		cfg:        cfg,
		assignment: assignment,
		consumerC:  consumer,
		offsets:    offsets,
		wakeCh:     make(chan struct{}, 1),
	}
	for _, w := range assignment.workers() {
		w.bind(rl)
	}
	return rl, nil
}

func (rl *RunLoop) consumer() Consumer           { return rl.consumerC }
func (rl *RunLoop) offsetManager() OffsetManager { return rl.offsets }
func (rl *RunLoop) metrics() MetricsSink         { return rl.cfg.Metrics }
func (rl *RunLoop) logger() Logger               { return rl.cfg.Logger }

// resume wakes a blocked tick and re-evaluates the sticky shutdown gate
// (§4.1): the loop may only stop once every task's coordinator-requested
// commit has been honored. It also republishes the utilization gauge
// (§C, "idle utilization gauge decay") so a wake triggered between ticks
// — e.g. by a completing callback — is reflected immediately rather than
// lagging until the next tick's own GaugeSet call.
func (rl *RunLoop) resume() {
	if rl.assignment.requests.shutdownNowRequested() && !rl.assignment.requests.hasPendingCommitRequests() {
		rl.shutdownNR.Store(true)
	}
	rl.cfg.Metrics.GaugeSet(MetricUtilization, rl.utilization())
	select {
	case rl.wakeCh <- struct{}{}:
	default:
	}
}

// Shutdown requests a graceful stop: the loop keeps ticking and exits at
// the end of the first tick after which no task has queued envelopes, a
// pending window or commit, or in-flight callbacks.
func (rl *RunLoop) Shutdown() {
	rl.cfg.Logger.Info("run loop shutdown requested")
	rl.shutdownNR.Store(true)
	rl.resume()
}

// abort records the first fatal error seen (sticky, first-writer-wins)
// and requests shutdown. Subsequent aborts are dropped; the first one
// wins the race and is what Run eventually returns (§7).
func (rl *RunLoop) abort(err error) {
	if err == nil {
		return
	}
	rl.abortOnce.Do(func() {
		rl.fatalMu.Lock()
		rl.fatalErr = err
		rl.fatalMu.Unlock()
		rl.cfg.Logger.WithFields(logrus.Fields{"error": err}).Error("run loop aborting")
	})
	rl.shutdownNR.Store(true)
	rl.resume()
}

func (rl *RunLoop) loadFatal() error {
	rl.fatalMu.Lock()
	defer rl.fatalMu.Unlock()
	return rl.fatalErr
}

// Run drives the loop until a fatal error, a contract violation, or a
// fully-honored shutdown request. A call made while another Run on the
// same RunLoop is still in progress returns ErrAlreadyRunning.
func (rl *RunLoop) Run(ctx context.Context) error {
	if !rl.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer rl.running.Store(false)

	rl.scheduler = newPeriodicScheduler(ctx, rl.cfg.Logger)
	for _, w := range rl.assignment.workers() {
		w.init(rl.scheduler)
	}
	defer rl.scheduler.stop()

	for {
		select {
		case <-ctx.Done():
			rl.abort(ctx.Err())
		default:
		}

		if err := rl.tick(ctx); err != nil {
			return err
		}

		if err := rl.loadFatal(); err != nil {
			return err
		}
		if rl.shutdownNR.Load() && !rl.anyTaskHasWork() {
			return nil
		}
	}
}

// tick performs one iteration: choose an envelope (if any), fan it out,
// run every task once in stable order, then block if none of them had
// anything ready (§4.1).
func (rl *RunLoop) tick(ctx context.Context) error {
	start := clockNow()
	env, ok := rl.consumerC.Choose()
	rl.cfg.Metrics.HistogramObserve(MetricChooseNs, float64(clockNow().Sub(start).Nanoseconds()))

	if ok {
		rl.cfg.Metrics.CounterAdd(MetricEnvelopes, 1)
		if err := rl.runTasks(env); err != nil {
			rl.abort(err)
			return nil
		}
	} else {
		rl.cfg.Metrics.CounterAdd(MetricNullEnvelopes, 1)
	}

	for _, w := range rl.assignment.workers() {
		w.run(ctx)
	}

	rl.cfg.Metrics.GaugeSet(MetricUtilization, rl.utilization())

	if !rl.anyTaskReady(ok) {
		rl.blockIfBusy(ctx, ok)
	}

	return nil
}

// runTasks fans env out to every TaskWorker subscribed to its partition,
// in Assignment's stable order (§4.1(c)). A partition absent from the
// Assignment is a fatal contract violation (§4.1).
func (rl *RunLoop) runTasks(env Envelope) error {
	workers, ok := rl.assignment.workersFor(env.Partition)
	if !ok || len(workers) == 0 {
		return withTaskPartition(ErrMissingPartitionMapping, "", env.Partition)
	}
	pe := newPendingEnvelope(env)
	for _, w := range workers {
		w.state.enqueue(pe)
	}
	return nil
}

// anyTaskReady reports whether any task can usefully run again without
// blocking (§4.1): ready, and either this tick delivered an envelope (more
// capacity may still be free to fill) or the task already has pending
// operations queued up. Mirrors original_source/AsyncRunLoop.java's
// `worker.state.isReady() && (envelope != null || worker.state.hasPendingOps())`.
func (rl *RunLoop) anyTaskReady(envelopeNonNull bool) bool {
	for _, w := range rl.assignment.workers() {
		if w.state.isReady() && (envelopeNonNull || w.state.hasPendingOps()) {
			return true
		}
	}
	return false
}

// utilization reports the fraction of total across-task concurrency
// capacity currently occupied by in-flight dispatches, a gauge carried
// over from original_source/AsyncRunLoop's idle-vs-busy accounting
// (§C.2). It decays toward zero as callbacks complete and ticks find
// nothing in flight.
func (rl *RunLoop) utilization() float64 {
	var inFlight, totalCapacity int
	for _, w := range rl.assignment.workers() {
		inFlight += w.state.inFlightCount()
		totalCapacity += w.state.capacity()
	}
	if totalCapacity == 0 {
		return 0
	}
	return float64(inFlight) / float64(totalCapacity)
}

func (rl *RunLoop) anyTaskHasWork() bool {
	for _, w := range rl.assignment.workers() {
		if w.state.hasPendingOps() || w.state.hasInFlight() {
			return true
		}
	}
	return false
}

// blockIfBusy waits for resume() to be signaled, bounding the wait by the
// consumer's poll interval when the last Choose returned nothing (§4.1,
// §6). wasEnvelope true means the loop should still wake promptly since
// more work may already be queued; it waits indefinitely for a wake in
// that case rather than busy-polling.
func (rl *RunLoop) blockIfBusy(ctx context.Context, wasEnvelope bool) {
	start := clockNow()
	defer func() {
		rl.cfg.Metrics.HistogramObserve(MetricBlockNs, float64(clockNow().Sub(start).Nanoseconds()))
	}()

	if wasEnvelope {
		select {
		case <-rl.wakeCh:
		case <-ctx.Done():
			rl.interrupted(ctx)
		}
		return
	}

	interval := rl.consumerC.PollIntervalMs()
	if interval <= 0 {
		interval = rl.cfg.FallbackPollIntervalMs
	}
	timer := time.NewTimer(time.Duration(interval) * time.Millisecond)
	defer timer.Stop()

	select {
	case <-rl.wakeCh:
	case <-timer.C:
	case <-ctx.Done():
		rl.interrupted(ctx)
	}
}

// interrupted aborts the loop with ErrRunLoopInterrupted when a blockIfBusy
// wait is cut short by context cancellation (§7: "Loop-thread interruption
// during wait"), mirroring the original's
// `catch (InterruptedException e) { throw new SamzaException("Run loop is interrupted", e); }`.
func (rl *RunLoop) interrupted(ctx context.Context) {
	rl.abort(errorc.With(ErrRunLoopInterrupted, errorc.String("", ctx.Err().Error())))
}
