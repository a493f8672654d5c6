package game

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/pixil98/go-colony/internal/registry"
	"github.com/pixil98/go-colony/internal/world"
)

// Living is a creature in an environment. It is scheduled by the world as an
// actor; an AI or a connected user supplies its actions.
type Living struct {
	id      registry.ID
	name    string
	species *Species
	ai      AI

	env       *Environment
	pos       Point
	hp        int
	userID    string
	action    *Action
	ticksUsed int
}

var _ world.Actor = (*Living)(nil)

func NewLiving(name string, species *Species, ai AI) *Living {
	if ai == nil {
		ai = InteractiveAI{}
	}
	return &Living{
		name:    name,
		species: species,
		ai:      ai,
		hp:      species.HitPoints,
	}
}

// Spawn registers the living with the world and places it at p.
func (l *Living) Spawn(w *world.World, env *Environment, p Point) error {
	if !env.CanEnter(p) {
		return fmt.Errorf("spawning %s at %s: %w", l.name, p, ErrBlocked)
	}

	l.id = w.AddObject(l)
	l.env = env
	l.pos = p
	env.place(l.id, p)

	w.RecordChange(ObjectCreatedChange{
		ObjectID:      l.id,
		Name:          l.name,
		Species:       l.species.Name,
		EnvironmentID: env.ID(),
		Location:      p,
	})
	return nil
}

// Destroy removes the living from its environment and the object table. The
// caller is responsible for removing it from the roster.
func (l *Living) Destroy(w *world.World) {
	if l.env != nil {
		l.env.vacate(l.pos)
		l.env = nil
	}
	w.DestroyObject(l.id)
	w.RecordChange(ObjectDestructedChange{ObjectID: l.id, Name: l.name})
}

func (l *Living) ID() registry.ID { return l.id }

func (l *Living) Name() string { return l.name }

func (l *Living) Species() *Species { return l.species }

func (l *Living) Environment() *Environment { return l.env }

func (l *Living) Position() Point { return l.pos }

func (l *Living) HitPoints() int { return l.hp }

// Controller returns the id of the user driving this living, if any.
func (l *Living) Controller() string { return l.userID }

// SetController binds the living to a user session.
func (l *Living) SetController(userID string) {
	l.userID = userID
}

// CurrentAction returns the pending action.
func (l *Living) CurrentAction() (Action, bool) {
	if l.action == nil {
		return Action{}, false
	}
	return *l.action, true
}

func (l *Living) HasAction() bool {
	return l.action != nil
}

// SetAction replaces the pending action. An action already in progress is
// reported as interrupted.
func (l *Living) SetAction(w *world.World, a Action) error {
	if err := a.Validate(); err != nil {
		return fmt.Errorf("invalid action: %w", err)
	}

	if l.action != nil {
		w.RecordChange(ActionDoneChange{ObjectID: l.id, Action: *l.action, Error: "interrupted"})
	}

	l.action = &a
	l.ticksUsed = 0
	w.RecordChange(ActionStartedChange{ObjectID: l.id, Action: a})
	return nil
}

func (l *Living) DetermineAction(w *world.World) {
	a, ok := l.ai.Decide(w, l)
	if !ok {
		return
	}
	if err := l.SetAction(w, a); err != nil {
		slog.Warn("ai chose an invalid action", "living", l.name, "action", a, "error", err)
	}
}

// PerformAction spends one tick on the pending action and applies it once
// enough ticks have been spent.
func (l *Living) PerformAction(w *world.World) error {
	if l.action == nil {
		return nil
	}
	a := *l.action

	l.ticksUsed++
	total := a.TotalTurns(l.species)
	if l.ticksUsed < total {
		w.RecordEvent(ActionProgressEvent{
			ObjectID:   l.id,
			UserID:     a.UserID,
			TicksUsed:  l.ticksUsed,
			TotalTicks: total,
		})
		return nil
	}

	err := l.apply(w, a)

	done := ActionDoneChange{ObjectID: l.id, Action: a}
	if err != nil {
		done.Error = err.Error()
	}
	w.RecordChange(done)

	l.action = nil
	l.ticksUsed = 0

	// A wall in the way is an ordinary outcome for the player, not a fault.
	if errors.Is(err, ErrBlocked) || errors.Is(err, ErrNotMinable) {
		return nil
	}
	return err
}

func (l *Living) ClearAction() {
	l.action = nil
	l.ticksUsed = 0
}

func (l *Living) apply(w *world.World, a Action) error {
	if l.env == nil {
		return ErrNotSpawned
	}

	switch a.Kind {
	case ActionWait:
		return nil

	case ActionMove:
		to := l.pos.Add(a.Direction.Vector())
		if !l.env.CanEnter(to) {
			return fmt.Errorf("moving %s: %w", a.Direction, ErrBlocked)
		}
		from := l.pos
		l.env.vacate(from)
		l.env.place(l.id, to)
		l.pos = to
		w.RecordChange(ObjectMoveChange{
			ObjectID:      l.id,
			Name:          l.name,
			EnvironmentID: l.env.ID(),
			From:          from,
			To:            to,
		})
		return nil

	case ActionMine:
		at := l.pos.Add(a.Direction.Vector())
		t, ok := l.env.Tile(at)
		if !ok || !t.Minable() {
			return fmt.Errorf("mining %s: %w", a.Direction, ErrNotMinable)
		}
		return l.env.SetTile(w, at, Tile{Terrain: TerrainFloor, Material: t.Material})

	default:
		return fmt.Errorf("%w: %s", ErrUnknownAction, a.Kind)
	}
}
