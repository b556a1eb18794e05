// Package eventtest provides an in-memory event sink for tests.
package eventtest

import (
	"context"
	"sync"

	"github.com/dotcommander/mcpagent/internal/event"
)

// Recorder is a Sink that keeps every event in memory.
type Recorder struct {
	mu     sync.Mutex
	events []event.Event
}

// Emit implements event.Sink.
func (r *Recorder) Emit(_ context.Context, e event.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []event.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event.Event(nil), r.events...)
}

// Types returns the recorded event types in order.
func (r *Recorder) Types() []event.Type {
	r.mu.Lock()
	defer r.mu.Unlock()
	types := make([]event.Type, len(r.events))
	for i, e := range r.events {
		types[i] = e.Type
	}
	return types
}

// Count returns how many events of type t were recorded.
func (r *Recorder) Count(t event.Type) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Type == t {
			n++
		}
	}
	return n
}
