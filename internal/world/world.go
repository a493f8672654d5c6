package world

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pixil98/go-colony/internal/registry"
)

// Actor is what the scheduler needs from a world entity that takes turns.
//
// All methods are called on the scheduler goroutine with the write lock held.
// PerformAction must clear the pending action once it has been applied;
// ClearAction is used by the scheduler when applying the action fails.
type Actor interface {
	ID() registry.ID
	HasAction() bool
	DetermineAction(w *World)
	PerformAction(w *World) error
	ClearAction()
}

// World owns all mutable simulation state and the scheduler that advances it.
// Producers on any goroutine submit work through the thread-safe request
// methods; a single worker applies it.
type World struct {
	lock  Lock
	bus   Bus
	queue WorkQueue

	addActors    fifo[Actor]
	removeActors fifo[Actor]

	usersMu sync.Mutex
	users   map[string]struct{}

	objects *registry.Table[any]

	// Tick state, mutated only by the worker with the write lock held.
	state  State
	tick   atomic.Int64
	roster []Actor
	cursor int

	method        TickMethod
	maxMoveTime   time.Duration
	minTickTime   time.Duration
	requireUser   bool
	nextMove      time.Time
	nextTick      time.Time
	tickRequested atomic.Bool
	initializers  []func(*World) error

	signal chan struct{}
	timer  *time.Timer
	now    func() time.Time

	workMu     sync.Mutex
	workActive bool

	stats stats
}

// New builds a world and runs its initializers.
func New(opts ...Opt) (*World, error) {
	w := &World{
		users:       make(map[string]struct{}),
		objects:     registry.NewTable[any](),
		method:      TickSimultaneous,
		requireUser: true,
		signal:      make(chan struct{}, 1),
		now:         time.Now,
	}

	for _, opt := range opts {
		opt(w)
	}

	w.timer = time.AfterFunc(time.Hour, w.Signal)
	w.timer.Stop()

	// Mark the worker active so nothing else can work while initializing.
	w.workMu.Lock()
	w.workActive = true
	w.workMu.Unlock()

	w.lock.lockWrite()
	for _, fn := range w.initializers {
		if err := fn(w); err != nil {
			w.lock.unlockWrite()
			return nil, fmt.Errorf("initializing world: %w", err)
		}
	}
	w.lock.unlockWrite()

	w.flush()

	w.workMu.Lock()
	w.workActive = false
	w.workMu.Unlock()

	return w, nil
}

// Start runs the scheduler until ctx is canceled.
func (w *World) Start(ctx context.Context) error {
	slog.InfoContext(ctx, "world scheduler started", "method", w.method, "max_move_time", w.maxMoveTime, "min_tick_time", w.minTickTime)

	// Pick up anything submitted before the loop started.
	w.Signal()

	for {
		select {
		case <-ctx.Done():
			w.timer.Stop()
			slog.InfoContext(ctx, "world scheduler stopped", "tick", w.TickNumber())
			return nil
		case <-w.signal:
			w.Pump(ctx)
		}
	}
}

// Signal wakes the scheduler. Signals sent while it is busy coalesce.
func (w *World) Signal() {
	select {
	case w.signal <- struct{}{}:
	default:
	}
}

// Pump performs units of work on the calling goroutine until none is
// immediately available or ctx is canceled. It returns at once if another
// goroutine is working.
func (w *World) Pump(ctx context.Context) {
	w.workMu.Lock()
	if w.workActive {
		w.workMu.Unlock()
		return
	}
	w.workActive = true
	w.workMu.Unlock()

	for {
		// Ticks can follow each other without a pause, so Start may never
		// get back to its select.
		if ctx.Err() != nil {
			w.workMu.Lock()
			w.workActive = false
			w.workMu.Unlock()
			return
		}

		w.work(ctx)

		w.workMu.Lock()
		if !w.workAvailable() {
			w.workActive = false
			w.workMu.Unlock()
			return
		}
		w.workMu.Unlock()
	}
}

// work is one unit of work: drain instant work, then either prepare for and
// possibly start a tick (idle) or advance the running tick, then flush.
func (w *World) work(ctx context.Context) {
	w.lock.lockWrite()
	if w.state == StateTickEnded {
		w.state = StateIdle
	}
	w.runWork(ctx, w.queue.instant.take(), &w.stats.instantProcessed)
	w.lock.unlockWrite()

	if w.state == StateIdle {
		w.lock.lockWrite()
		w.runWork(ctx, w.queue.preTick.take(), &w.stats.preTickProcessed)
		w.applyRosterChanges(ctx)
		if w.isTimeToStartTick() {
			w.startTick(ctx)
		}
		w.lock.unlockWrite()
	}

	if w.state == StateTickOngoing {
		w.lock.lockWrite()
		switch w.method {
		case TickSimultaneous:
			w.simultaneousWork(ctx)
		case TickSequential:
			w.sequentialWork(ctx)
		default:
			w.lock.unlockWrite()
			panic(fmt.Sprintf("unknown tick method %v", w.method))
		}
		w.lock.unlockWrite()
	}

	w.flush()
}

// workAvailable reports whether another unit of work would make progress.
// Called with workMu held.
func (w *World) workAvailable() bool {
	if w.queue.instant.len() > 0 {
		return true
	}

	switch w.state {
	case StateIdle:
		if w.queue.preTick.len() > 0 || w.addActors.len() > 0 || w.removeActors.len() > 0 {
			return true
		}
		return w.isTimeToStartTick()
	case StateTickOngoing:
		if w.method == TickSequential {
			return w.sequentialWorkAvailable()
		}
		return w.simultaneousWorkAvailable()
	default:
		// A finished tick becomes idle on the next unit of work.
		return true
	}
}

func (w *World) runWork(ctx context.Context, items []Work, processed *atomic.Uint64) {
	if len(items) > 0 {
		slog.DebugContext(ctx, "processing work", "count", len(items), "state", w.state)
	}
	for _, fn := range items {
		w.invoke(ctx, fn)
		processed.Add(1)
	}
}

func (w *World) invoke(ctx context.Context, fn Work) {
	defer func() {
		if r := recover(); r != nil {
			if invariantViolation(r) {
				panic(r)
			}
			w.stats.workFaults.Add(1)
			slog.ErrorContext(ctx, "deferred work panicked", "panic", r)
		}
	}()
	fn(w)
}

func (w *World) applyRosterChanges(ctx context.Context) {
	added := w.addActors.take()
	if len(added) > 0 {
		slog.DebugContext(ctx, "adding actors", "count", len(added))
	}
	for _, a := range added {
		if w.rosterIndex(a) >= 0 {
			panic(fmt.Errorf("%w: %s", ErrActorExists, a.ID()))
		}
		w.roster = append(w.roster, a)
	}

	removed := w.removeActors.take()
	if len(removed) > 0 {
		slog.DebugContext(ctx, "removing actors", "count", len(removed))
	}
	for _, a := range removed {
		i := w.rosterIndex(a)
		if i < 0 {
			panic(fmt.Errorf("%w: %s", ErrActorNotFound, a.ID()))
		}
		w.roster = append(w.roster[:i], w.roster[i+1:]...)
	}
}

func (w *World) rosterIndex(a Actor) int {
	for i, r := range w.roster {
		if r == a {
			return i
		}
	}
	return -1
}

func (w *World) flush() {
	w.bus.flush()
	w.stats.flushes.Add(1)
}

// EnqueueDeferred schedules fn on the instant or the pre-tick queue.
func (w *World) EnqueueDeferred(fn Work, instant bool) {
	if instant {
		w.queue.EnqueueInstant(fn)
	} else {
		w.queue.EnqueuePreTick(fn)
	}
	w.Signal()
}

// BeginInvoke schedules fn to run the next time the world is idle.
func (w *World) BeginInvoke(fn Work) {
	w.EnqueueDeferred(fn, false)
}

// BeginInvokeInstant schedules fn to run before the next unit of work, even
// in the middle of a tick.
func (w *World) BeginInvokeInstant(fn Work) {
	w.EnqueueDeferred(fn, true)
}

// RequestTickStart lets the next tick start even if no user is connected.
func (w *World) RequestTickStart() {
	w.tickRequested.Store(true)
	w.Signal()
}

// RequestAddActor adds a to the roster at the next idle point.
func (w *World) RequestAddActor(a Actor) {
	w.addActors.push(a)
	w.Signal()
}

// RequestRemoveActor removes a from the roster at the next idle point.
func (w *World) RequestRemoveActor(a Actor) {
	w.removeActors.push(a)
	w.Signal()
}

// AddUser records a connected user session.
func (w *World) AddUser(id string) {
	w.usersMu.Lock()
	w.users[id] = struct{}{}
	w.usersMu.Unlock()

	w.Signal()
}

// RemoveUser forgets a user session.
func (w *World) RemoveUser(id string) {
	w.usersMu.Lock()
	delete(w.users, id)
	w.usersMu.Unlock()

	w.Signal()
}

func (w *World) UserCount() int {
	w.usersMu.Lock()
	defer w.usersMu.Unlock()
	return len(w.users)
}

// SubscribeChanges registers fn to receive every flushed change list.
func (w *World) SubscribeChanges(fn ChangeHandler) func() {
	return w.bus.SubscribeChanges(fn)
}

// SubscribeEvents registers fn to receive every flushed event list.
func (w *World) SubscribeEvents(fn EventHandler) func() {
	return w.bus.SubscribeEvents(fn)
}

// RecordChange buffers c for the current unit of work. Requires the write lock.
func (w *World) RecordChange(c Change) {
	w.lock.assertWritable()
	w.bus.recordChange(c)
}

// RecordEvent buffers e for the current unit of work. Requires the write lock.
func (w *World) RecordEvent(e Event) {
	w.lock.assertWritable()
	w.bus.recordEvent(e)
}

// AddObject registers v in the object table. Requires the write lock.
func (w *World) AddObject(v any) registry.ID {
	w.lock.assertWritable()
	return w.objects.Insert(v)
}

// DestroyObject removes id from the object table. Requires the write lock.
func (w *World) DestroyObject(id registry.ID) bool {
	w.lock.assertWritable()
	return w.objects.Remove(id)
}

// FindObject looks up id. Callers must hold the read lock or be running as
// deferred work.
func (w *World) FindObject(id registry.ID) (any, bool) {
	return w.objects.Get(id)
}

// Writable reports whether the caller may mutate world state right now.
func (w *World) Writable() bool {
	return w.lock.Writable()
}
