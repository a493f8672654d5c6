package world

import "sync"

// Change is a record of a world mutation that already happened.
type Change interface {
	ChangeKind() string
}

// Event is a record of a notable occurrence. Unlike a Change it is advisory.
type Event interface {
	EventKind() string
}

type ChangeHandler func(changes []Change)

type EventHandler func(events []Event)

type subscription[H any] struct {
	id uint64
	fn H
}

// Bus buffers the changes and events recorded during one unit of work and
// delivers them to subscribers when flushed.
//
// Flush always calls every subscriber, even with empty lists, so subscribers
// can tell a quiet step apart from one that has not been flushed yet.
type Bus struct {
	changes []Change
	events  []Event

	mu         sync.Mutex
	nextId     uint64
	changeSubs []subscription[ChangeHandler]
	eventSubs  []subscription[EventHandler]
}

// SubscribeChanges registers fn and returns a function that removes it.
func (b *Bus) SubscribeChanges(fn ChangeHandler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextId++
	id := b.nextId
	b.changeSubs = append(b.changeSubs, subscription[ChangeHandler]{id: id, fn: fn})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.changeSubs = removeSub(b.changeSubs, id)
	}
}

// SubscribeEvents registers fn and returns a function that removes it.
func (b *Bus) SubscribeEvents(fn EventHandler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextId++
	id := b.nextId
	b.eventSubs = append(b.eventSubs, subscription[EventHandler]{id: id, fn: fn})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		b.eventSubs = removeSub(b.eventSubs, id)
	}
}

func removeSub[H any](subs []subscription[H], id uint64) []subscription[H] {
	out := make([]subscription[H], 0, len(subs))
	for _, s := range subs {
		if s.id != id {
			out = append(out, s)
		}
	}
	return out
}

func (b *Bus) recordChange(c Change) {
	b.changes = append(b.changes, c)
}

func (b *Bus) recordEvent(e Event) {
	b.events = append(b.events, e)
}

func (b *Bus) pending() (changes, events int) {
	return len(b.changes), len(b.events)
}

// flush hands the buffered records to subscribers and starts new buffers.
// Subscribers may keep the slices they are given.
func (b *Bus) flush() {
	changes := b.changes
	events := b.events
	b.changes = nil
	b.events = nil

	if changes == nil {
		changes = []Change{}
	}
	if events == nil {
		events = []Event{}
	}

	b.mu.Lock()
	changeSubs := append([]subscription[ChangeHandler](nil), b.changeSubs...)
	eventSubs := append([]subscription[EventHandler](nil), b.eventSubs...)
	b.mu.Unlock()

	for _, s := range changeSubs {
		s.fn(changes)
	}
	for _, s := range eventSubs {
		s.fn(events)
	}
}
