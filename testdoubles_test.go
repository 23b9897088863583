package runloop

import (
	"context"
	"sync"
)

// fakeConsumer is an in-memory Consumer test double that serves envelopes
// from one fixed, ordered backlog shared by all partitions (§6). Adapted from the
// teacher's style of hand-written fakes under tests/ (e.g.
// fifo_local_test_impl.go): a minimal, synchronous stand-in with no
// goroutines of its own.
type fakeConsumer struct {
	mu           sync.Mutex
	backlog      []Envelope
	pollInterval int64
	updates      []Partition
}

func newFakeConsumer(pollIntervalMs int64, envelopes ...Envelope) *fakeConsumer {
	return &fakeConsumer{
		backlog:      envelopes,
		pollInterval: pollIntervalMs,
	}
}

func (c *fakeConsumer) Choose() (Envelope, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.backlog) == 0 {
		return Envelope{}, false
	}
	next := c.backlog[0]
	c.backlog = c.backlog[1:]
	return next, true
}

func (c *fakeConsumer) TryUpdate(partition Partition) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.updates = append(c.updates, partition)
}

func (c *fakeConsumer) PollIntervalMs() int64 { return c.pollInterval }

func (c *fakeConsumer) updateCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.updates)
}

// fakeOffsetManager records every Update call in arrival order (§6).
type fakeOffsetManager struct {
	mu      sync.Mutex
	updates []offsetUpdate
}

type offsetUpdate struct {
	Task      TaskName
	Partition Partition
	Offset    Offset
}

func newFakeOffsetManager() *fakeOffsetManager {
	return &fakeOffsetManager{}
}

func (m *fakeOffsetManager) Update(task TaskName, partition Partition, offset Offset) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.updates = append(m.updates, offsetUpdate{Task: task, Partition: partition, Offset: offset})
}

func (m *fakeOffsetManager) all() []offsetUpdate {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]offsetUpdate, len(m.updates))
	copy(out, m.updates)
	return out
}

// recordingMetrics sums counter increments per metric name, counts
// histogram and gauge updates per name, and keeps the last histogram or
// gauge value.
type recordingMetrics struct {
	mu      sync.Mutex
	counts  map[string]int
	lastVal map[string]float64
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{counts: make(map[string]int), lastVal: make(map[string]float64)}
}

func (m *recordingMetrics) CounterAdd(name string, n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[name] += int(n)
}

func (m *recordingMetrics) HistogramObserve(name string, v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[name]++
	m.lastVal[name] = v
}

func (m *recordingMetrics) GaugeSet(name string, v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counts[name]++
	m.lastVal[name] = v
}

func (m *recordingMetrics) count(name string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[name]
}

// fakeTask is a configurable UserTask test double. Process runs
// synchronously; the test controls completion through onProcess (which
// receives the handed-out Callback), autoFail, autoComplete (finish
// inline), or neverCallback.
type fakeTask struct {
	mu sync.Mutex

	name          TaskName
	partitions    []Partition
	windowable    bool
	autoComplete  bool
	autoFail      error
	onProcess     func(envelope Envelope, coordinator *Coordinator, cb Callback)
	windowErr     error
	commitErr     error
	windowCalls   int
	commitCalls   int
	processCalls  int
	neverCallback bool // simulates a task that never invokes the CallbackFactory
}

func newFakeTask(name TaskName, partitions ...Partition) *fakeTask {
	return &fakeTask{name: name, partitions: partitions, autoComplete: true}
}

func (t *fakeTask) Process(ctx context.Context, envelope Envelope, coordinator *Coordinator, newCallback CallbackFactory) {
	t.mu.Lock()
	t.processCalls++
	t.mu.Unlock()

	if t.neverCallback {
		return
	}

	cb := newCallback()
	if t.onProcess != nil {
		t.onProcess(envelope, coordinator, cb)
		return
	}
	if t.autoFail != nil {
		cb.Fail(t.autoFail)
		return
	}
	if t.autoComplete {
		cb.Complete()
	}
}

func (t *fakeTask) Window(ctx context.Context, coordinator *Coordinator) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.windowCalls++
	return t.windowErr
}

func (t *fakeTask) Commit(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.commitCalls++
	return t.commitErr
}

func (t *fakeTask) IsWindowable() bool      { return t.windowable }
func (t *fakeTask) Partitions() []Partition { return t.partitions }
func (t *fakeTask) Name() TaskName          { return t.name }

func (t *fakeTask) getCounts() (process, window, commit int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.processCalls, t.windowCalls, t.commitCalls
}

// fakeLoopController is a minimal loopController double letting TaskWorker
// tests run without constructing a full RunLoop.
type fakeLoopController struct {
	mu          sync.Mutex
	consumerD   Consumer
	offsetsD    OffsetManager
	metricsSink MetricsSink
	loggerD     Logger

	resumeCount int
	abortedErr  error
}

func (f *fakeLoopController) consumer() Consumer {
	if f.consumerD == nil {
		return newFakeConsumer(100)
	}
	return f.consumerD
}

func (f *fakeLoopController) offsetManager() OffsetManager {
	if f.offsetsD == nil {
		return newFakeOffsetManager()
	}
	return f.offsetsD
}

func (f *fakeLoopController) metrics() MetricsSink {
	if f.metricsSink == nil {
		return noopMetricsSink{}
	}
	return f.metricsSink
}

func (f *fakeLoopController) logger() Logger {
	if f.loggerD == nil {
		return noopLogger{}
	}
	return f.loggerD
}

func (f *fakeLoopController) resume() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resumeCount++
}

func (f *fakeLoopController) abort(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.abortedErr == nil {
		f.abortedErr = err
	}
}

func (f *fakeLoopController) aborted() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.abortedErr
}

func (f *fakeLoopController) resumes() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.resumeCount
}
