package world

import (
	"sync"
	"sync/atomic"
)

// Lock is the single-writer / many-reader lock guarding all world state.
// Only the scheduler takes it in write mode; observers take it in read mode.
type Lock struct {
	rw       sync.RWMutex
	writable atomic.Bool
}

func (l *Lock) lockWrite() {
	l.rw.Lock()
	l.writable.Store(true)
}

func (l *Lock) unlockWrite() {
	l.writable.Store(false)
	l.rw.Unlock()
}

// RLock acquires the lock in read mode.
func (l *Lock) RLock() {
	l.rw.RLock()
}

// RUnlock releases a read lock taken with RLock.
func (l *Lock) RUnlock() {
	l.rw.RUnlock()
}

// Writable reports whether the write lock is currently held by anyone.
// The flag is not tied to a goroutine: while the scheduler is working, a
// call from any other goroutine also sees true. It catches mutation outside
// of work, not mutation from the wrong goroutine during work.
func (l *Lock) Writable() bool {
	return l.writable.Load()
}

// assertWritable panics with ErrNotWritable unless the write lock is held.
// It shares the limits of Writable.
func (l *Lock) assertWritable() {
	if !l.writable.Load() {
		panic(ErrNotWritable)
	}
}
