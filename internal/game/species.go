package game

import (
	"fmt"

	"github.com/pixil98/go-errors"
)

// Species describes a kind of living. Species are loaded from asset files.
type Species struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	// Symbol is the single character used to draw the living on a map.
	Symbol string `json:"symbol"`

	HitPoints int `json:"hit_points"`

	// MoveTurns and MineTurns are how many ticks those actions take.
	MoveTurns int `json:"move_turns,omitempty"`
	MineTurns int `json:"mine_turns,omitempty"`

	// Playable species may be picked by users when they log in.
	Playable bool `json:"playable,omitempty"`
}

func (s *Species) Validate() error {
	el := errors.NewErrorList()

	if s.Name == "" {
		el.Add(fmt.Errorf("name is required"))
	}
	if len([]rune(s.Symbol)) != 1 {
		el.Add(fmt.Errorf("symbol must be a single character"))
	}
	if s.HitPoints <= 0 {
		el.Add(fmt.Errorf("hit_points must be positive"))
	}
	if s.MoveTurns < 0 {
		el.Add(fmt.Errorf("move_turns must not be negative"))
	}
	if s.MineTurns < 0 {
		el.Add(fmt.Errorf("mine_turns must not be negative"))
	}

	return el.Err()
}

// Selector is the label shown when users pick a species.
func (s *Species) Selector() string {
	return s.Name
}
