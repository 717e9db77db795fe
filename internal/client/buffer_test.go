package client

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func contents(ops []bufferedOp) []any {
	out := make([]any, 0, len(ops))
	for _, op := range ops {
		out = append(out, op.data)
	}
	return out
}

func Test_SendBuffer_DrainPreservesOrder(t *testing.T) {
	req := require.New(t)
	b := newSendBuffer()

	b.add("send-message", "one")
	b.add("send-message", "two")
	b.add("send-message", "three")
	req.Equal(3, b.len())

	fresh, stale := b.drain()
	req.Zero(stale)
	req.Equal([]any{"one", "two", "three"}, contents(fresh))
	req.Zero(b.len(), "drain empties the buffer")
}

func Test_SendBuffer_CapEvictsOldest(t *testing.T) {
	req := require.New(t)
	b := &sendBuffer{cap: 3, maxAge: defaultMaxAge}

	for _, v := range []string{"one", "two", "three", "four", "five"} {
		b.add("send-message", v)
	}
	req.Equal(3, b.len())

	fresh, _ := b.drain()
	req.Equal([]any{"three", "four", "five"}, contents(fresh))
}

func Test_SendBuffer_RequeueKeepsEnqueueTime(t *testing.T) {
	req := require.New(t)
	b := &sendBuffer{cap: defaultBufferCap, maxAge: 5 * time.Minute}

	enqueued := time.Now().Add(-4 * time.Minute)
	b.requeue(bufferedOp{event: "send-message", data: "old", at: enqueued})

	b.mu.Lock()
	req.Equal(enqueued, b.items[0].at, "staleness clock must not restart")
	b.mu.Unlock()

	// Age past maxAge and the op is discarded at the next drain.
	b.maxAge = 3 * time.Minute
	fresh, stale := b.drain()
	req.Empty(fresh)
	req.Equal(1, stale)
}

func Test_SendBuffer_StaleJudgedAtFlushTime(t *testing.T) {
	req := require.New(t)
	b := &sendBuffer{cap: defaultBufferCap, maxAge: 20 * time.Millisecond}

	b.add("send-message", "old")
	time.Sleep(30 * time.Millisecond)
	b.add("send-message", "new")

	fresh, stale := b.drain()
	req.Equal(1, stale)
	req.Equal([]any{"new"}, contents(fresh))
}
