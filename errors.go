package runloop

import "errors"

// Namespace prefixes every sentinel error raised by this package, matching
// the teacher's convention of a single namespaced error set per package.
const Namespace = "runloop"

var (
	// ErrInvalidConfig is returned by NewConfig and the Option builders for
	// an invalid setting, by NewAssignment for a duplicate task name, and by
	// New when the assignment, consumer or offset manager is nil.
	ErrInvalidConfig = errors.New(Namespace + ": invalid configuration")

	// ErrMissingPartitionMapping is the fatal contract violation from §4.1:
	// an envelope arrived for a partition absent from the Assignment.
	ErrMissingPartitionMapping = errors.New(Namespace + ": envelope partition has no assigned tasks")

	// ErrCallbackTimeout marks a CallbackHandle that expired before the user
	// task produced a completion.
	ErrCallbackTimeout = errors.New(Namespace + ": callback timed out")

	// ErrRunLoopInterrupted wraps an unexpected wake interruption inside
	// blockIfBusy (§4.1); it is always fatal.
	ErrRunLoopInterrupted = errors.New(Namespace + ": run loop wait interrupted")

	// ErrTaskPanicked marks a user task (process/window/commit) that panicked
	// instead of returning normally.
	ErrTaskPanicked = errors.New(Namespace + ": user task panicked")

	// ErrAlreadyRunning is returned by Run if it is called while another
	// call to Run on the same RunLoop is still in progress.
	ErrAlreadyRunning = errors.New(Namespace + ": run loop already running")
)
