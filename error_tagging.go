package runloop

import (
	"errors"
	"fmt"
)

// TaggedError exposes correlation metadata for a run-loop failure: which
// task and, where relevant, which partition it happened on. Adapted from
// the teacher's taskTaggedError (error_tagging.go), generalized from
// "task ID and input index" to "task name and partition".
type TaggedError interface {
	error
	Unwrap() error
	TaskName() (TaskName, bool)
	Partition() (Partition, bool)
}

type taggedError struct {
	err       error
	taskName  TaskName
	hasTask   bool
	partition Partition
	hasPart   bool
}

func newTaggedError(err error, task TaskName, hasTask bool, partition Partition, hasPart bool) error {
	if err == nil {
		return nil
	}
	return &taggedError{err: err, taskName: task, hasTask: hasTask, partition: partition, hasPart: hasPart}
}

// withTask tags err with the originating task name.
func withTask(err error, task TaskName) error {
	return newTaggedError(err, task, true, Partition{}, false)
}

// withTaskPartition tags err with both task name and partition.
func withTaskPartition(err error, task TaskName, partition Partition) error {
	return newTaggedError(err, task, true, partition, true)
}

func (e *taggedError) Error() string { return e.err.Error() }
func (e *taggedError) Unwrap() error { return e.err }

func (e *taggedError) TaskName() (TaskName, bool)   { return e.taskName, e.hasTask }
func (e *taggedError) Partition() (Partition, bool) { return e.partition, e.hasPart }

func (e *taggedError) Format(s fmt.State, verb rune) {
	switch verb {
	case 'v':
		if s.Flag('+') {
			_, _ = fmt.Fprintf(s, "task(%v) partition(%v): %+v", e.taskName, e.partition, e.err)
			return
		}
		fallthrough
	case 's':
		_, _ = fmt.Fprint(s, e.Error())
	case 'q':
		_, _ = fmt.Fprintf(s, "%q", e.Error())
	}
}

// ExtractTaskName returns the task name tagged on err, if any.
func ExtractTaskName(err error) (TaskName, bool) {
	var te TaggedError
	if errors.As(err, &te) {
		return te.TaskName()
	}
	return "", false
}

// ExtractPartition returns the partition tagged on err, if any.
func ExtractPartition(err error) (Partition, bool) {
	var te TaggedError
	if errors.As(err, &te) {
		return te.Partition()
	}
	return Partition{}, false
}
