package client

import (
	"sync"
	"time"
)

const (
	defaultBufferCap = 100
	defaultMaxAge    = 5 * time.Minute
)

type bufferedOp struct {
	event string
	data  any
	at    time.Time
}

// sendBuffer queues outbound operations produced while the transport is
// down. Capacity is bounded: enqueueing past the cap evicts the oldest
// entry. Staleness is judged at flush time, not enqueue time.
type sendBuffer struct {
	mu     sync.Mutex
	items  []bufferedOp
	cap    int
	maxAge time.Duration
}

func newSendBuffer() *sendBuffer {
	return &sendBuffer{cap: defaultBufferCap, maxAge: defaultMaxAge}
}

func (b *sendBuffer) add(event string, data any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.items) >= b.cap {
		b.items = b.items[1:]
	}
	b.items = append(b.items, bufferedOp{event: event, data: data, at: time.Now()})
}

// requeue puts a drained operation back without restarting its staleness
// clock: age is measured from the original enqueue, not the last flush
// attempt.
func (b *sendBuffer) requeue(op bufferedOp) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.items) >= b.cap {
		b.items = b.items[1:]
	}
	b.items = append(b.items, op)
}

// drain empties the buffer and returns the operations still fresh enough to
// replay, in original enqueue order, along with the number discarded as
// stale.
func (b *sendBuffer) drain() (fresh []bufferedOp, stale int) {
	b.mu.Lock()
	items := b.items
	b.items = nil
	b.mu.Unlock()

	cutoff := time.Now().Add(-b.maxAge)
	for _, op := range items {
		if op.at.Before(cutoff) {
			stale++
			continue
		}
		fresh = append(fresh, op)
	}
	return fresh, stale
}

func (b *sendBuffer) len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.items)
}
