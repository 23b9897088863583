package runloop

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// handleAt builds a minimal CallbackHandle carrying sequence seq and
// offset off, sufficient for exercising the reorder buffer in isolation
// (no TaskWorker or Coordinator needed).
func handleAt(seq int, off Offset) *CallbackHandle {
	pe := newPendingEnvelope(Envelope{Offset: off})
	return newCallbackHandle(seq, pe, nil, nil)
}

func TestCallbackReorderBuffer_InOrder(t *testing.T) {
	b := newCallbackReorderBuffer()

	last, advanced := b.retire(handleAt(0, 1))
	require.True(t, advanced)
	require.EqualValues(t, 1, last.envelope.Envelope.Offset)

	last, advanced = b.retire(handleAt(1, 2))
	require.True(t, advanced)
	require.EqualValues(t, 2, last.envelope.Envelope.Offset)
}

func TestCallbackReorderBuffer_OutOfOrder_BufferThenFlush(t *testing.T) {
	b := newCallbackReorderBuffer()

	_, advanced := b.retire(handleAt(1, 2)) // arrives first, must wait for 0
	require.False(t, advanced)

	last, advanced := b.retire(handleAt(0, 1)) // unlocks 0 then 1
	require.True(t, advanced)
	require.EqualValues(t, 2, last.envelope.Envelope.Offset)
}

func TestCallbackReorderBuffer_GapHoldsCursor(t *testing.T) {
	b := newCallbackReorderBuffer()

	_, advanced := b.retire(handleAt(1, 2)) // seq 0 never arrives
	require.False(t, advanced)
	require.Equal(t, 0, b.nextToRetire)
}

func TestCallbackReorderBuffer_MultipleBufferedThenContiguousRun(t *testing.T) {
	b := newCallbackReorderBuffer()

	_, advanced := b.retire(handleAt(2, 3))
	require.False(t, advanced)
	_, advanced = b.retire(handleAt(1, 2))
	require.False(t, advanced)

	last, advanced := b.retire(handleAt(0, 1))
	require.True(t, advanced)
	require.EqualValues(t, 3, last.envelope.Envelope.Offset, "should advance through the whole contiguous run")
}

func TestCallbackReorderBuffer_RetireIsIdempotentPerSequence(t *testing.T) {
	b := newCallbackReorderBuffer()

	_, _ = b.retire(handleAt(0, 1))
	require.Equal(t, 1, b.nextToRetire)

	// A duplicate retire call for an already-passed sequence must not panic
	// or move the cursor backwards.
	_, advanced := b.retire(handleAt(0, 1))
	require.False(t, advanced)
	require.Equal(t, 1, b.nextToRetire)
}
