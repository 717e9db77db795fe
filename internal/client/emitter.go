package client

import (
	"encoding/json"
	"sync"
)

type subscription struct {
	id int
	fn func(json.RawMessage)
}

// emitter is the publish/subscribe registry behind the typed On* methods.
// Subscribers for an event are invoked synchronously in registration order;
// unsubscribing is a capability returned at registration, no identity
// comparison involved.
type emitter struct {
	mu   sync.RWMutex
	seq  int
	subs map[string][]subscription
}

func newEmitter() *emitter {
	return &emitter{subs: make(map[string][]subscription)}
}

func (e *emitter) on(event string, fn func(json.RawMessage)) func() {
	e.mu.Lock()
	e.seq++
	id := e.seq
	e.subs[event] = append(e.subs[event], subscription{id: id, fn: fn})
	e.mu.Unlock()

	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		subs := e.subs[event]
		for i, s := range subs {
			if s.id == id {
				e.subs[event] = append(subs[:i:i], subs[i+1:]...)
				return
			}
		}
	}
}

func (e *emitter) emit(event string, data json.RawMessage) {
	e.mu.RLock()
	subs := make([]subscription, len(e.subs[event]))
	copy(subs, e.subs[event])
	e.mu.RUnlock()

	for _, s := range subs {
		s.fn(data)
	}
}
