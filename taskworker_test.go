package runloop

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func newBoundWorker(t *testing.T, task *fakeTask, cfg Config) (*TaskWorker, *fakeLoopController) {
	t.Helper()
	if cfg.MaxConcurrency == 0 {
		cfg.MaxConcurrency = 4
	}
	w := newTaskWorker(task, cfg, newCoordinatorRequestSink())
	loop := &fakeLoopController{
		offsetsD:    newFakeOffsetManager(),
		metricsSink: newRecordingMetrics(),
	}
	w.bind(loop)
	return w, loop
}

func TestTaskWorker_ProcessDispatchesAndCompletesInline(t *testing.T) {
	part := Partition{System: "s", Stream: "st"}
	task := newFakeTask("t", part)
	w, loop := newBoundWorker(t, task, Config{})

	pe := newPendingEnvelope(Envelope{Partition: part, Offset: 0})
	w.state.enqueue(pe)

	w.run(context.Background())

	pc, _, _ := task.getCounts()
	require.Equal(t, 1, pc)
	require.Equal(t, 0, w.state.inFlightCount(), "autoComplete should have driven in-flight back to 0")

	updates := loop.offsetsD.(*fakeOffsetManager).all()
	require.Len(t, updates, 1)
	require.EqualValues(t, 0, updates[0].Offset, "committed offset is the last processed envelope's own offset")
}

func TestTaskWorker_FetchEnvelope_OnlyFirstCallerAdvancesCursor(t *testing.T) {
	part := Partition{System: "s", Stream: "st"}
	taskA := newFakeTask("a", part)
	taskB := newFakeTask("b", part)

	wA, loopA := newBoundWorker(t, taskA, Config{})
	consumer := newFakeConsumer(100)
	loopA.consumerD = consumer
	wB, loopB := newBoundWorker(t, taskB, Config{})
	loopB.consumerD = consumer

	pe := newPendingEnvelope(Envelope{Partition: part})
	wA.state.enqueue(pe)
	wB.state.enqueue(pe)

	_, ok := wA.fetchEnvelope()
	require.True(t, ok)
	_, ok = wB.fetchEnvelope()
	require.True(t, ok)

	require.Equal(t, 1, consumer.updateCount(), "TryUpdate must fire exactly once for a shared broadcast envelope")
}

func TestTaskWorker_OnFailure_AbortsLoopAndDoesNotAdvanceOffset(t *testing.T) {
	part := Partition{System: "s", Stream: "st"}
	task := newFakeTask("t", part)
	task.autoComplete = false
	task.autoFail = errors.New("boom")

	w, loop := newBoundWorker(t, task, Config{})
	pe := newPendingEnvelope(Envelope{Partition: part, Offset: 5})
	w.state.enqueue(pe)

	w.run(context.Background())

	require.Error(t, loop.aborted())
	require.Empty(t, loop.offsetsD.(*fakeOffsetManager).all())
}

func TestTaskWorker_WindowClearsFlagBeforeRunningBody(t *testing.T) {
	task := newFakeTask("t")
	task.windowable = true
	w, _ := newBoundWorker(t, task, Config{WindowMs: 1000})
	w.state.setNeedWindow()

	w.run(context.Background())

	_, wc, _ := task.getCounts()
	require.Equal(t, 1, wc)
	require.False(t, w.state.needWindow.Load())
	require.False(t, w.state.windowOrCommitInFlight.Load(), "inline executor finishes synchronously")
}

func TestTaskWorker_CommitOutranksWindowAndProcess(t *testing.T) {
	part := Partition{System: "s", Stream: "st"}
	task := newFakeTask("t", part)
	task.windowable = true
	w, _ := newBoundWorker(t, task, Config{})

	w.state.enqueue(newPendingEnvelope(Envelope{Partition: part}))
	w.state.setNeedWindow()
	w.state.setNeedCommit()

	w.run(context.Background())

	pc, wc, cc := task.getCounts()
	require.Equal(t, 0, pc)
	require.Equal(t, 0, wc)
	require.Equal(t, 1, cc)
}

func TestTaskWorker_WindowErrorAborts(t *testing.T) {
	task := newFakeTask("t")
	task.windowable = true
	task.windowErr = errors.New("window broke")
	w, loop := newBoundWorker(t, task, Config{})
	w.state.setNeedWindow()

	w.run(context.Background())

	require.Error(t, loop.aborted())
}

func TestTaskWorker_NeverInvokesCallbackFactory_LeavesInFlightHeld(t *testing.T) {
	part := Partition{System: "s", Stream: "st"}
	task := newFakeTask("t", part)
	task.neverCallback = true
	w, _ := newBoundWorker(t, task, Config{})
	w.state.enqueue(newPendingEnvelope(Envelope{Partition: part}))

	w.run(context.Background())

	require.Equal(t, 1, w.state.inFlightCount(), "documented: a task that never completes its callback permanently holds a concurrency slot")
}
