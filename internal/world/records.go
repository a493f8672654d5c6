package world

import "github.com/pixil98/go-colony/internal/registry"

const (
	KindTickStart      = "tick_start"
	KindTickEnd        = "tick_end"
	KindActionRequired = "action_required"
	KindActionFault    = "action_fault"
	KindTurnStart      = "turn_start"
	KindTurnEnd        = "turn_end"
)

// TickStartEvent is recorded exactly once per tick, when it starts.
type TickStartEvent struct {
	Tick int `json:"tick"`
}

func (TickStartEvent) EventKind() string { return KindTickStart }

// TickEndEvent is recorded when a tick ends. Skipped counts the actors that
// had no action when the deliberation deadline forced the tick along.
type TickEndEvent struct {
	Tick    int `json:"tick"`
	Skipped int `json:"skipped"`
}

func (TickEndEvent) EventKind() string { return KindTickEnd }

// ActionRequiredEvent asks whoever controls ObjectID to supply an action.
type ActionRequiredEvent struct {
	ObjectID registry.ID `json:"object_id"`
}

func (ActionRequiredEvent) EventKind() string { return KindActionRequired }

// ActionFaultEvent reports an action that failed while being applied.
type ActionFaultEvent struct {
	ObjectID registry.ID `json:"object_id"`
	Error    string      `json:"error"`
}

func (ActionFaultEvent) EventKind() string { return KindActionFault }

// TurnStartChange marks the start of a turn. In simultaneous mode ObjectID is
// null and the turn covers every actor; in sequential mode it names the actor.
type TurnStartChange struct {
	ObjectID registry.ID `json:"object_id"`
}

func (TurnStartChange) ChangeKind() string { return KindTurnStart }

type TurnEndChange struct {
	ObjectID registry.ID `json:"object_id"`
}

func (TurnEndChange) ChangeKind() string { return KindTurnEnd }
