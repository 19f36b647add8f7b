package vm

import (
	"testing"

	"github.com/stretchr/testify/require"
)

type recordingShootdown struct {
	addrs []uintptr
	full  bool
	calls int
}

func (r *recordingShootdown) Shootdown(addrs []uintptr, full bool) {
	r.calls++
	r.addrs = addrs
	r.full = full
}

func TestTLBBatchFlushesQueuedAddresses(t *testing.T) {
	var b TLBBatch_t
	b.Queue(0x1000)
	b.Queue(0x2000)

	sd := &recordingShootdown{}
	b.Flush(sd)
	require.Equal(t, 1, sd.calls)
	require.False(t, sd.full)
	require.Equal(t, []uintptr{0x1000, 0x2000}, sd.addrs)
}

func TestTLBBatchDegradesToFullFlushOnOverflow(t *testing.T) {
	var b TLBBatch_t
	for i := 0; i < tlbOverflow+2; i++ {
		b.Queue(uintptr(i) * 0x1000)
	}

	sd := &recordingShootdown{}
	b.Flush(sd)
	require.Equal(t, 1, sd.calls)
	require.True(t, sd.full)
	require.Empty(t, sd.addrs)
}

func TestTLBBatchFlushIsNoopWhenNothingQueued(t *testing.T) {
	var b TLBBatch_t
	sd := &recordingShootdown{}
	b.Flush(sd)
	require.Zero(t, sd.calls)
}
