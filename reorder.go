package runloop

import "sync"

// CallbackReorderBuffer retires completed CallbackHandles in strict
// dispatch-sequence order for one task (§3, §4.4), so offsets committed to
// the OffsetManager are always strictly increasing even though completions
// may arrive out of order (§8 S2). Adapted from the teacher's preserve-order
// reorderer (preserve_order.go/reorderer.go): the same cursor-plus-buffer
// technique, generalized from "buffer a result value per index" to "buffer
// a completed CallbackHandle per sequence number".
//
// Mutated only from onComplete/onFailure, which can race across
// MaxConcurrency in-flight callbacks on the same task — callers must hold
// mu for the whole retire (§5: "specify a per-task mutex around
// reorder/retire").
type CallbackReorderBuffer struct {
	mu           sync.Mutex
	nextToRetire int
	completed    map[int]*CallbackHandle
}

func newCallbackReorderBuffer() *CallbackReorderBuffer {
	return &CallbackReorderBuffer{completed: make(map[int]*CallbackHandle)}
}

// retire marks handle's sequence number complete and advances the cursor
// through every contiguous completed entry starting there. It returns the
// last handle retired by this call and whether any advance occurred.
func (b *CallbackReorderBuffer) retire(handle *CallbackHandle) (last *CallbackHandle, advanced bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.completed[handle.sequence] = handle

	for {
		h, ok := b.completed[b.nextToRetire]
		if !ok {
			break
		}
		delete(b.completed, b.nextToRetire)
		last = h
		advanced = true
		b.nextToRetire++
	}
	return last, advanced
}
