package game

import "github.com/pixil98/go-colony/internal/registry"

const (
	KindMap              = "map"
	KindObjectCreated    = "object_created"
	KindObjectDestructed = "object_destructed"
	KindObjectMove       = "object_move"
	KindActionStarted    = "action_started"
	KindActionDone       = "action_done"
	KindActionProgress   = "action_progress"
)

// MapChange records a tile replacement.
type MapChange struct {
	EnvironmentID registry.ID `json:"environment_id"`
	Location      Point       `json:"location"`
	Tile          Tile        `json:"tile"`
}

func (MapChange) ChangeKind() string { return KindMap }

type ObjectCreatedChange struct {
	ObjectID      registry.ID `json:"object_id"`
	Name          string      `json:"name"`
	Species       string      `json:"species"`
	EnvironmentID registry.ID `json:"environment_id"`
	Location      Point       `json:"location"`
}

func (ObjectCreatedChange) ChangeKind() string { return KindObjectCreated }

type ObjectDestructedChange struct {
	ObjectID registry.ID `json:"object_id"`
	Name     string      `json:"name"`
}

func (ObjectDestructedChange) ChangeKind() string { return KindObjectDestructed }

type ObjectMoveChange struct {
	ObjectID      registry.ID `json:"object_id"`
	Name          string      `json:"name"`
	EnvironmentID registry.ID `json:"environment_id"`
	From          Point       `json:"from"`
	To            Point       `json:"to"`
}

func (ObjectMoveChange) ChangeKind() string { return KindObjectMove }

// ActionStartedChange records that a living accepted a new action.
type ActionStartedChange struct {
	ObjectID registry.ID `json:"object_id"`
	Action   Action      `json:"action"`
}

func (ActionStartedChange) ChangeKind() string { return KindActionStarted }

// ActionDoneChange records the end of an action. Error is set when the action
// could not be applied.
type ActionDoneChange struct {
	ObjectID registry.ID `json:"object_id"`
	Action   Action      `json:"action"`
	Error    string      `json:"error,omitempty"`
}

func (ActionDoneChange) ChangeKind() string { return KindActionDone }

// ActionProgressEvent reports a multi-turn action that is not finished yet.
type ActionProgressEvent struct {
	ObjectID   registry.ID `json:"object_id"`
	UserID     string      `json:"user_id,omitempty"`
	TicksUsed  int         `json:"ticks_used"`
	TotalTicks int         `json:"total_ticks"`
}

func (ActionProgressEvent) EventKind() string { return KindActionProgress }
