package game

import (
	"fmt"

	"github.com/pixil98/go-errors"
)

// ActionKind identifies what an Action does.
type ActionKind int

const (
	ActionMove ActionKind = iota + 1
	ActionWait
	ActionMine
)

var actionKindNames = map[ActionKind]string{
	ActionMove: "move",
	ActionWait: "wait",
	ActionMine: "mine",
}

func (k ActionKind) String() string {
	if name, ok := actionKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("action(%d)", int(k))
}

func (k ActionKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

func (k *ActionKind) UnmarshalText(text []byte) error {
	for v, name := range actionKindNames {
		if name == string(text) {
			*k = v
			return nil
		}
	}
	return fmt.Errorf("%w: %s", ErrUnknownAction, text)
}

// Action is a pending command for a living. Only the fields relevant to its
// Kind are set.
type Action struct {
	Kind      ActionKind `json:"kind"`
	Direction Direction  `json:"direction,omitempty"`
	Turns     int        `json:"turns,omitempty"`

	// UserID names the session that issued the action, empty for AI actions.
	UserID        string `json:"user_id,omitempty"`
	TransactionID int    `json:"transaction_id,omitempty"`
}

func MoveAction(d Direction) Action {
	return Action{Kind: ActionMove, Direction: d}
}

func MineAction(d Direction) Action {
	return Action{Kind: ActionMine, Direction: d}
}

func WaitAction(turns int) Action {
	return Action{Kind: ActionWait, Turns: turns}
}

func (a Action) Validate() error {
	el := errors.NewErrorList()

	switch a.Kind {
	case ActionMove, ActionMine:
		if a.Direction == DirNone {
			el.Add(fmt.Errorf("%s requires a direction", a.Kind))
		}
	case ActionWait:
		if a.Turns < 1 {
			el.Add(fmt.Errorf("wait requires at least one turn"))
		}
	default:
		el.Add(fmt.Errorf("%w: %s", ErrUnknownAction, a.Kind))
	}

	return el.Err()
}

// TotalTurns is how many ticks the action takes for a living of species sp.
func (a Action) TotalTurns(sp *Species) int {
	switch a.Kind {
	case ActionWait:
		return a.Turns
	case ActionMove:
		if sp != nil && sp.MoveTurns > 0 {
			return sp.MoveTurns
		}
	case ActionMine:
		if sp != nil && sp.MineTurns > 0 {
			return sp.MineTurns
		}
		return 3
	}
	return 1
}

func (a Action) String() string {
	switch a.Kind {
	case ActionWait:
		return fmt.Sprintf("wait %d", a.Turns)
	case ActionMove, ActionMine:
		return fmt.Sprintf("%s %s", a.Kind, a.Direction)
	default:
		return a.Kind.String()
	}
}
