package world

import "time"

type Opt func(*World)

// WithTickMethod selects the actor scheduling discipline.
func WithTickMethod(m TickMethod) Opt {
	return func(w *World) {
		w.method = m
	}
}

// WithMaxMoveTime bounds how long the world waits for actions: per tick in
// simultaneous mode, per actor in sequential mode. Zero waits forever.
func WithMaxMoveTime(d time.Duration) Opt {
	return func(w *World) {
		w.maxMoveTime = d
	}
}

// WithMinTickTime sets the minimum time between the end of one tick and the
// start of the next. Zero disables the limit.
func WithMinTickTime(d time.Duration) Opt {
	return func(w *World) {
		w.minTickTime = d
	}
}

// WithRequireUser controls whether ticks only start while a user is connected
// (or one has explicitly requested a tick).
func WithRequireUser(require bool) Opt {
	return func(w *World) {
		w.requireUser = require
	}
}

// WithInitializer registers a function run with the write lock held while the
// world is constructed. Changes it records are flushed once it returns.
func WithInitializer(fn func(*World) error) Opt {
	return func(w *World) {
		w.initializers = append(w.initializers, fn)
	}
}
