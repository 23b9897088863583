package runloop

import (
	"context"
	"time"
)

// TaskName stably identifies a user-defined task within an Assignment.
type TaskName string

// Partition identifies an independent ordered stream of envelopes.
// Equality (==) must hold for map-key use; keep this small and comparable.
type Partition struct {
	System string
	Stream string
	Key    string
}

// Offset is a monotonically increasing position within a Partition.
type Offset int64

// Envelope is an opaque inbound record identified by a partition and an
// offset within that partition. The run loop never inspects payload.
type Envelope struct {
	Partition Partition
	Offset    Offset
	Payload   any
}

// Consumer is the multiplexed consumer collaborator (§6, "Multiplexed
// Consumer"). The run loop is the sole caller of its methods and treats it
// as a black box.
type Consumer interface {
	// Choose performs a non-blocking peek and returns the next envelope, or
	// (Envelope{}, false) if none is currently available. It must not block
	// and must not advance any partition's cursor.
	Choose() (Envelope, bool)

	// TryUpdate advances partition's internal cursor. Idempotent per cycle:
	// calling it again before the next Choose for the same partition has no
	// additional effect.
	TryUpdate(partition Partition)

	// PollIntervalMs bounds the idle wait used by blockIfBusy when the last
	// chosen envelope was null.
	PollIntervalMs() int64
}

// CallbackFactory is handed to UserTask.Process. The user task calls it
// exactly once per dispatched envelope to obtain a completion callback.
type CallbackFactory func() Callback

// Callback is the single-shot completion signal a user task invokes after
// finishing asynchronous work for one envelope.
type Callback interface {
	// Complete reports success. Only the first call on a given Callback has
	// effect; later calls (of either method) are ignored.
	Complete()
	// Fail reports failure with err. Only the first call has effect.
	Fail(err error)
}

// UserTask is the user-supplied processor bound to one or more partitions
// (§6, "User Task").
type UserTask interface {
	// Process handles envelope asynchronously. The implementation must
	// invoke the callback factory exactly once and eventually call Complete
	// or Fail on the callback it creates.
	Process(ctx context.Context, envelope Envelope, coordinator *Coordinator, newCallback CallbackFactory)

	// Window runs a periodic aggregation step. Synchronous; may return an error.
	Window(ctx context.Context, coordinator *Coordinator) error

	// Commit runs a periodic checkpoint. Synchronous; may return an error.
	Commit(ctx context.Context) error

	// IsWindowable reports whether Window should ever be scheduled for this task.
	IsWindowable() bool

	// Partitions returns the set of partitions this task consumes.
	Partitions() []Partition

	// Name returns the task's stable identifier.
	Name() TaskName
}

// OffsetManager is the offset-commit collaborator (§6). Implementations
// must be idempotent for equal offsets and monotonic per (task, partition).
type OffsetManager interface {
	Update(task TaskName, partition Partition, offset Offset)
}

// MetricsSink is the metrics collaborator (§6): counters, histograms, and a
// utilization gauge.
type MetricsSink interface {
	CounterAdd(name string, n int64)
	HistogramObserve(name string, v float64)
	GaugeSet(name string, v float64)
}

// clockNow is overridable in tests; production code always uses time.Now.
var clockNow = time.Now
