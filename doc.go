// Package runloop implements a single-threaded, partition-aware run loop
// for asynchronous stream-processing tasks: it multiplexes envelopes from
// a Consumer across a fixed Assignment of UserTasks, bounds each task's
// in-flight concurrency, and schedules periodic windowing and commit
// operations alongside per-envelope processing.
//
// A RunLoop owns exactly one goroutine's worth of scheduling decisions;
// all actual work (UserTask.Process/Window/Commit) either runs inline on
// that goroutine or is handed to a configurable Executor. Completions
// arrive asynchronously and may race each other and the loop itself;
// offsets are still committed to the OffsetManager in strictly increasing
// order per task and partition via a reorder buffer.
package runloop
