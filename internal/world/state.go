package world

import "fmt"

// State is the tick state machine's current state.
type State int

const (
	StateIdle State = iota
	StateTickOngoing
	StateTickEnded
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateTickOngoing:
		return "tick-ongoing"
	case StateTickEnded:
		return "tick-ended"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// TickMethod selects how actors are scheduled within a tick.
type TickMethod int

const (
	// TickSimultaneous waits for every actor's action, then applies them all.
	TickSimultaneous TickMethod = iota
	// TickSequential visits actors one at a time, applying each action at once.
	TickSequential
)

func (m TickMethod) String() string {
	switch m {
	case TickSimultaneous:
		return "simultaneous"
	case TickSequential:
		return "sequential"
	default:
		return fmt.Sprintf("method(%d)", int(m))
	}
}

func (m *TickMethod) UnmarshalText(text []byte) error {
	switch string(text) {
	case "simultaneous":
		*m = TickSimultaneous
	case "sequential":
		*m = TickSequential
	default:
		return fmt.Errorf("unknown tick method: %s", text)
	}
	return nil
}

func (m TickMethod) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}
