package world

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pixil98/go-colony/internal/registry"
)

func (w *World) isTimeToStartTick() bool {
	if w.state != StateIdle {
		return false
	}

	if w.minTickTime > 0 && w.now().Before(w.nextTick) {
		return false
	}

	if w.requireUser && !w.tickRequested.Load() && w.UserCount() == 0 {
		return false
	}

	return true
}

func (w *World) startTick(ctx context.Context) {
	tick := int(w.tick.Add(1))
	w.stats.ticks.Add(1)
	w.bus.recordEvent(TickStartEvent{Tick: tick})

	slog.InfoContext(ctx, "tick started", "tick", tick, "actors", len(w.roster))

	w.cursor = 0
	w.state = StateTickOngoing

	switch w.method {
	case TickSimultaneous:
		for _, a := range w.roster {
			if !a.HasAction() {
				a.DetermineAction(w)
			}
		}
		for _, a := range w.roster {
			if !a.HasAction() {
				w.bus.recordEvent(ActionRequiredEvent{ObjectID: a.ID()})
			}
		}
		w.bus.recordChange(TurnStartChange{})
		w.armMoveDeadline()

	case TickSequential:
		w.cursor = -1
		if w.nextSequential() {
			w.endTick(ctx, 0)
		}
	}
}

func (w *World) endTick(ctx context.Context, skipped int) {
	if w.minTickTime > 0 {
		w.nextTick = w.now().Add(w.minTickTime)
		w.timer.Reset(w.minTickTime)
	}

	tick := w.TickNumber()
	w.bus.recordEvent(TickEndEvent{Tick: tick, Skipped: skipped})
	slog.InfoContext(ctx, "tick ended", "tick", tick, "skipped", skipped)

	w.tickRequested.Store(false)
	w.state = StateTickEnded
}

func (w *World) armMoveDeadline() {
	if w.maxMoveTime <= 0 {
		return
	}
	w.nextMove = w.now().Add(w.maxMoveTime)
	w.timer.Reset(w.maxMoveTime)
}

func (w *World) moveDeadlinePassed() bool {
	return w.maxMoveTime > 0 && !w.now().Before(w.nextMove)
}

func (w *World) allHaveActions() bool {
	for _, a := range w.roster {
		if !a.HasAction() {
			return false
		}
	}
	return true
}

func (w *World) simultaneousWorkAvailable() bool {
	return w.allHaveActions() || w.moveDeadlinePassed()
}

// simultaneousWork applies every pending action in one pass once all actors
// have one, or once the deliberation deadline has passed.
func (w *World) simultaneousWork(ctx context.Context) {
	forced := w.moveDeadlinePassed()
	if !forced && !w.allHaveActions() {
		return
	}

	skipped := 0
	for ; w.cursor < len(w.roster); w.cursor++ {
		a := w.roster[w.cursor]
		if a.HasAction() {
			w.perform(ctx, a)
		} else {
			skipped++
		}
	}

	if skipped > 0 {
		w.stats.skipped.Add(uint64(skipped))
		if forced {
			w.stats.forced.Add(1)
			slog.InfoContext(ctx, "deliberation timed out", "tick", w.TickNumber(), "skipped", skipped)
		}
	}

	w.bus.recordChange(TurnEndChange{})
	w.endTick(ctx, skipped)
}

func (w *World) sequentialWorkAvailable() bool {
	if w.cursor < 0 || w.cursor >= len(w.roster) {
		return true
	}
	return w.roster[w.cursor].HasAction() || w.moveDeadlinePassed()
}

// sequentialWork applies the current actor's action and moves on, repeating
// while actors are ready. An actor that times out forfeits its turn only; the
// next actor gets a fresh deadline.
func (w *World) sequentialWork(ctx context.Context) {
	forced := w.moveDeadlinePassed()
	skipped := 0

	for {
		a := w.roster[w.cursor]

		if !forced && !a.HasAction() {
			break
		}

		if a.HasAction() {
			w.perform(ctx, a)
		} else {
			skipped++
			w.stats.forced.Add(1)
			w.stats.skipped.Add(1)
			slog.InfoContext(ctx, "actor turn timed out", "tick", w.TickNumber(), "actor", a.ID())
		}
		w.bus.recordChange(TurnEndChange{ObjectID: a.ID()})
		forced = false

		if w.nextSequential() {
			w.endTick(ctx, skipped)
			return
		}
	}
}

// nextSequential advances to the next actor and asks it for an action. It
// reports true once the roster is exhausted.
func (w *World) nextSequential() bool {
	w.cursor++
	if w.cursor >= len(w.roster) {
		return true
	}

	w.armMoveDeadline()

	a := w.roster[w.cursor]
	w.bus.recordChange(TurnStartChange{ObjectID: a.ID()})
	if !a.HasAction() {
		a.DetermineAction(w)
	}
	if !a.HasAction() {
		w.bus.recordEvent(ActionRequiredEvent{ObjectID: a.ID()})
	}

	return false
}

// perform applies a's action. Failures, including panics, are contained to
// this one action: the action is cleared and the tick carries on.
func (w *World) perform(ctx context.Context, a Actor) {
	err := w.tryPerform(a)
	if err == nil {
		return
	}

	a.ClearAction()
	w.stats.actionFaults.Add(1)
	w.bus.recordEvent(ActionFaultEvent{ObjectID: a.ID(), Error: err.Error()})
	slog.WarnContext(ctx, "action failed", "tick", w.TickNumber(), "actor", a.ID(), "error", err)
}

func (w *World) tryPerform(a Actor) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if invariantViolation(r) {
				panic(r)
			}
			err = fmt.Errorf("%w: %v", ErrActionPanic, r)
		}
	}()
	return a.PerformAction(w)
}

// TickNumber returns the number of the current (or last) tick. It is safe to
// call from any goroutine, including from deferred work and actions.
func (w *World) TickNumber() int {
	return int(w.tick.Load())
}

// Roster returns the actor ids in scheduling order. It takes the read lock and
// must not be called from deferred work or actions.
func (w *World) Roster() []registry.ID {
	w.lock.RLock()
	defer w.lock.RUnlock()
	return w.rosterIDs()
}

func (w *World) rosterIDs() []registry.ID {
	ids := make([]registry.ID, len(w.roster))
	for i, a := range w.roster {
		ids[i] = a.ID()
	}
	return ids
}
